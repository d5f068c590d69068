package manager

import (
	"time"

	"github.com/rs/zerolog"

	"tutord/internal/catalog"
	"tutord/internal/llm"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
)

// Config encapsulates all tunables for Manager construction.
type Config struct {
	Catalog *catalog.Catalog
	// Collaborators handed to every engine the manager builds.
	Store        llm.ModelStore
	Fetcher      llm.ModelFetcher
	Sessions     llm.SessionRuntime
	Interpreters llm.InterpreterRuntime

	MaxQueueDepth int
	MaxWait       time.Duration

	Logger    zerolog.Logger
	Publisher EventPublisher
}

func (c Config) deps() llm.Deps {
	return llm.Deps{
		Store:        c.Store,
		Fetcher:      c.Fetcher,
		Sessions:     c.Sessions,
		Interpreters: c.Interpreters,
		Logger:       c.Logger,
	}
}
