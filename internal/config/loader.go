package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir    string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	CatalogFile  string `json:"catalog_file" yaml:"catalog_file" toml:"catalog_file"`
	DefaultModel string `json:"default_model" yaml:"default_model" toml:"default_model"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"` // console | json
	LogFile   string `json:"log_file" yaml:"log_file" toml:"log_file"`

	LlamaContext   int `json:"llama_ctx" yaml:"llama_ctx" toml:"llama_ctx"`
	LlamaThreads   int `json:"llama_threads" yaml:"llama_threads" toml:"llama_threads"`
	LlamaGPULayers int `json:"llama_gpu_layers" yaml:"llama_gpu_layers" toml:"llama_gpu_layers"`
	TFLiteThreads  int `json:"tflite_threads" yaml:"tflite_threads" toml:"tflite_threads"`

	MaxQueueDepth          int   `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWaitSeconds         int   `json:"max_wait_seconds" yaml:"max_wait_seconds" toml:"max_wait_seconds"`
	GenerateTimeoutSeconds int64 `json:"generate_timeout_seconds" yaml:"generate_timeout_seconds" toml:"generate_timeout_seconds"`
	MaxBodyBytes           int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`

	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	CORSMethods []string `json:"cors_methods" yaml:"cors_methods" toml:"cors_methods"`
	CORSHeaders []string `json:"cors_headers" yaml:"cors_headers" toml:"cors_headers"`
}

// Defaults used by WithDefaults.
const (
	DefaultAddr          = ":8080"
	DefaultModelsDir     = "models"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
	DefaultLlamaContext  = 2048
	DefaultMaxQueueDepth = 32
	DefaultMaxWait       = 30 * time.Second
	DefaultMaxBodyBytes  = 1 << 20
)

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// WithDefaults returns a copy of c with unspecified fields filled in. Addr
// falls back to $TUTORD_ADDR before DefaultAddr.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = os.Getenv("TUTORD_ADDR")
	}
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.ModelsDir == "" {
		c.ModelsDir = DefaultModelsDir
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.LlamaContext == 0 {
		c.LlamaContext = DefaultLlamaContext
	}
	if c.MaxQueueDepth == 0 {
		c.MaxQueueDepth = DefaultMaxQueueDepth
	}
	if c.MaxWaitSeconds == 0 {
		c.MaxWaitSeconds = int(DefaultMaxWait / time.Second)
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return c
}

// MaxWait is MaxWaitSeconds as a duration.
func (c Config) MaxWait() time.Duration { return time.Duration(c.MaxWaitSeconds) * time.Second }

// Validate rejects values no component can work with.
func (c Config) Validate() error {
	var errs []error
	if c.MaxQueueDepth < 0 {
		errs = append(errs, fmt.Errorf("max_queue_depth must be >= 0, got %d", c.MaxQueueDepth))
	}
	if c.MaxWaitSeconds < 0 {
		errs = append(errs, fmt.Errorf("max_wait_seconds must be >= 0, got %d", c.MaxWaitSeconds))
	}
	if c.GenerateTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("generate_timeout_seconds must be >= 0, got %d", c.GenerateTimeoutSeconds))
	}
	if c.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("max_body_bytes must be >= 0, got %d", c.MaxBodyBytes))
	}
	if c.LlamaContext < 0 || c.LlamaThreads < 0 || c.LlamaGPULayers < 0 || c.TFLiteThreads < 0 {
		errs = append(errs, errors.New("runtime sizes must be >= 0"))
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be console or json, got %q", c.LogFormat))
	}
	if c.CORSEnabled && len(c.CORSOrigins) == 0 {
		errs = append(errs, errors.New("cors_enabled requires cors_origins"))
	}
	return errors.Join(errs...)
}
