package main

import (
	"fmt"

	"tutord/internal/catalog"
	"tutord/internal/fetch"
	"tutord/internal/llm"
	"tutord/internal/manager"
	"tutord/internal/store"
)

// services groups the collaborators built from the resolved config.
type services struct {
	cat     *catalog.Catalog
	store   *store.Store
	fetcher *fetch.Fetcher
}

func (a *app) services() (*services, error) {
	cat, err := a.catalog()
	if err != nil {
		return nil, err
	}
	st, err := store.New(a.cfg.ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("models dir: %w", err)
	}
	f := fetch.New(fetch.WithLogger(a.log.With().Str("component", "fetch").Logger()))
	return &services{cat: cat, store: st, fetcher: f}, nil
}

// catalog loads the configured catalog file, or the builtin entries, and
// applies the default model override.
func (a *app) catalog() (*catalog.Catalog, error) {
	if a.cfg.CatalogFile == "" {
		def := a.cfg.DefaultModel
		if def == "" {
			def = catalog.BuiltinDefaultID
		}
		return catalog.New(catalog.Builtin(), def)
	}
	cat, err := catalog.LoadFile(a.cfg.CatalogFile)
	if err != nil {
		return nil, err
	}
	if a.cfg.DefaultModel == "" {
		return cat, nil
	}
	return catalog.New(cat.List(), a.cfg.DefaultModel)
}

func (a *app) manager(s *services, pub manager.EventPublisher) (*manager.Manager, error) {
	if err := s.store.EnsureDir(); err != nil {
		return nil, err
	}
	return manager.New(manager.Config{
		Catalog:       s.cat,
		Store:         s.store,
		Fetcher:       s.fetcher,
		Sessions:      llm.NewLlamaRuntime(a.cfg.LlamaContext, a.cfg.LlamaThreads, a.cfg.LlamaGPULayers),
		Interpreters:  llm.NewTFLiteRuntime(a.cfg.TFLiteThreads),
		MaxQueueDepth: a.cfg.MaxQueueDepth,
		MaxWait:       a.cfg.MaxWait(),
		Logger:        a.log,
		Publisher:     pub,
	})
}

// eventLogger logs manager events at debug level.
func (a *app) eventLogger() manager.EventPublisher {
	log := a.log.With().Str("component", "events").Logger()
	return manager.LogPublisher(func(e manager.Event) {
		log.Debug().Str("event", e.Name).Str("model", e.ModelID).Fields(e.Fields).Msg("event")
	})
}
