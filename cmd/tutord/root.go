package main

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tutord/internal/config"
	"tutord/internal/logging"
)

// app carries the resolved configuration and logger to subcommands.
type app struct {
	configPath string
	flags      config.Config // values given on the command line
	// comma-separated CORS lists, split into flags on resolve
	corsOrigins, corsMethods, corsHeaders string

	cfg       config.Config
	log       zerolog.Logger
	logCloser io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "tutord",
		Short:         "On-device LLM inference service for language tutoring",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.resolve(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logCloser != nil {
				_ = a.logCloser.Close()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Config file (.yaml, .json or .toml)")
	pf.StringVar(&a.flags.ModelsDir, "models-dir", "", "Directory holding downloaded model files (default models)")
	pf.StringVar(&a.flags.CatalogFile, "catalog", "", "Catalog file; the builtin catalog is used when empty")
	pf.StringVar(&a.flags.DefaultModel, "default-model", "", "Override the catalog default model id")
	pf.StringVar(&a.flags.LogLevel, "log-level", "", "Log level: trace|debug|info|warn|error (default info)")
	pf.StringVar(&a.flags.LogFormat, "log-format", "", "Log format: console|json (default console)")
	pf.StringVar(&a.flags.LogFile, "log-file", "", "Also write JSON logs to this rotated file")
	pf.IntVar(&a.flags.LlamaContext, "llama-ctx", 0, "llama.cpp context size in tokens (default 2048)")
	pf.IntVar(&a.flags.LlamaThreads, "llama-threads", 0, "llama.cpp threads (0 = library default)")
	pf.IntVar(&a.flags.LlamaGPULayers, "llama-gpu-layers", 0, "Layers to offload for gpu-backend models")
	pf.IntVar(&a.flags.TFLiteThreads, "tflite-threads", 0, "TFLite interpreter threads (0 = 1)")

	root.AddCommand(newServeCmd(a), newModelsCmd(a), newFetchCmd(a), newChatCmd(a), newGreetCmd(a))
	return root
}

// resolve merges the config file with explicitly set flags, applies
// defaults and builds the logger.
func (a *app) resolve(cmd *cobra.Command) error {
	var cfg config.Config
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	a.flags.CORSOrigins = splitCSV(a.corsOrigins)
	a.flags.CORSMethods = splitCSV(a.corsMethods)
	a.flags.CORSHeaders = splitCSV(a.corsHeaders)
	overlay(cmd, &cfg, a.flags)
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, closer, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return err
	}
	a.cfg, a.log, a.logCloser = cfg, log, closer
	return nil
}

// overlay copies the flags the user actually set over file values.
func overlay(cmd *cobra.Command, cfg *config.Config, f config.Config) {
	set := func(name string) bool {
		fl := cmd.Flags().Lookup(name)
		return fl != nil && fl.Changed
	}
	if set("addr") {
		cfg.Addr = f.Addr
	}
	if set("models-dir") {
		cfg.ModelsDir = f.ModelsDir
	}
	if set("catalog") {
		cfg.CatalogFile = f.CatalogFile
	}
	if set("default-model") {
		cfg.DefaultModel = f.DefaultModel
	}
	if set("log-level") {
		cfg.LogLevel = f.LogLevel
	}
	if set("log-format") {
		cfg.LogFormat = f.LogFormat
	}
	if set("log-file") {
		cfg.LogFile = f.LogFile
	}
	if set("llama-ctx") {
		cfg.LlamaContext = f.LlamaContext
	}
	if set("llama-threads") {
		cfg.LlamaThreads = f.LlamaThreads
	}
	if set("llama-gpu-layers") {
		cfg.LlamaGPULayers = f.LlamaGPULayers
	}
	if set("tflite-threads") {
		cfg.TFLiteThreads = f.TFLiteThreads
	}
	if set("max-queue-depth") {
		cfg.MaxQueueDepth = f.MaxQueueDepth
	}
	if set("max-wait") {
		cfg.MaxWaitSeconds = f.MaxWaitSeconds
	}
	if set("generate-timeout") {
		cfg.GenerateTimeoutSeconds = f.GenerateTimeoutSeconds
	}
	if set("max-body-bytes") {
		cfg.MaxBodyBytes = f.MaxBodyBytes
	}
	if set("cors") {
		cfg.CORSEnabled = f.CORSEnabled
	}
	if set("cors-origins") {
		cfg.CORSOrigins = f.CORSOrigins
	}
	if set("cors-methods") {
		cfg.CORSMethods = f.CORSMethods
	}
	if set("cors-headers") {
		cfg.CORSHeaders = f.CORSHeaders
	}
}

// splitCSV splits a comma-separated flag value, dropping empty items.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
