// Package config loads pdfchat settings from defaults, an optional YAML file,
// a .env file and PDFCHAT_ environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment variables read as configuration. Nested keys
// use a double underscore: PDFCHAT_OLLAMA__HOST -> ollama.host
const EnvPrefix = "PDFCHAT_"

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"

	ScopeAll    = "all"
	ScopeLatest = "latest"
)

const defaults = `
storage:
  base_dir: "."
  upload_subdir: "uploaded_files/pdfs"
ollama:
  host: ""
  model: "deepseek-r1:8b"
  embedding_model: "deepseek-r1:8b"
  embed_timeout: "60s"
  generate_timeout: "120s"
  max_retries: 0
  max_concurrent: 4
  temperature: 0.1
chunker:
  chunk_size: 1000
  chunk_overlap: 200
index:
  backend: "memory"
  postgres_dsn: ""
  collection: "pdf_chunks"
  top_k: 4
  scope: "all"
  dedupe: true
server:
  host: "127.0.0.1"
  port: 8080
logging:
  level: "info"
  format: "console"
`

type Config struct {
	Storage StorageConfig `koanf:"storage"`
	Ollama  OllamaConfig  `koanf:"ollama"`
	Chunker ChunkerConfig `koanf:"chunker"`
	Index   IndexConfig   `koanf:"index"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
}

type StorageConfig struct {
	BaseDir      string `koanf:"base_dir"`
	UploadSubdir string `koanf:"upload_subdir"`
}

type OllamaConfig struct {
	Host            string        `koanf:"host"`
	Model           string        `koanf:"model"`
	EmbeddingModel  string        `koanf:"embedding_model"`
	EmbedTimeout    time.Duration `koanf:"embed_timeout"`
	GenerateTimeout time.Duration `koanf:"generate_timeout"`
	MaxRetries      int           `koanf:"max_retries"`
	MaxConcurrent   int           `koanf:"max_concurrent"`
	Temperature     float64       `koanf:"temperature"`
}

type ChunkerConfig struct {
	ChunkSize    int `koanf:"chunk_size"`
	ChunkOverlap int `koanf:"chunk_overlap"`
}

type IndexConfig struct {
	Backend     string `koanf:"backend"`
	PostgresDSN string `koanf:"postgres_dsn"`
	Collection  string `koanf:"collection"`
	TopK        int    `koanf:"top_k"`
	Scope       string `koanf:"scope"`
	Dedupe      bool   `koanf:"dedupe"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// Addr returns host:port for the HTTP listener
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the built-in configuration
func Default() *Config {
	cfg, err := load(nil, false)
	if err != nil {
		panic(fmt.Sprintf("invalid default config: %v", err))
	}
	return cfg
}

// Load reads configuration. configPath may be empty; a named file that does
// not exist is an error. A .env file in the working directory is applied to
// the process environment first, without overriding variables already set.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var content []byte
	if configPath != "" {
		b, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		content = b
	}

	cfg, err := load(content, true)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func load(content []byte, withEnv bool) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaults)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if len(content) > 0 {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if withEnv {
		if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
			return nil, fmt.Errorf("failed to load environment variables: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// envKey maps PDFCHAT_INDEX__TOP_K to index.top_k
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	var errs []error

	if c.Storage.BaseDir == "" {
		errs = append(errs, errors.New("storage.base_dir is required"))
	}
	if c.Storage.UploadSubdir == "" {
		errs = append(errs, errors.New("storage.upload_subdir is required"))
	}
	if c.Ollama.Model == "" {
		errs = append(errs, errors.New("ollama.model is required"))
	}
	if c.Ollama.EmbeddingModel == "" {
		errs = append(errs, errors.New("ollama.embedding_model is required"))
	}
	if c.Ollama.EmbedTimeout < 0 || c.Ollama.GenerateTimeout < 0 {
		errs = append(errs, errors.New("ollama timeouts cannot be negative"))
	}
	if c.Ollama.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("ollama.max_retries must be >= 0, got %d", c.Ollama.MaxRetries))
	}
	if c.Ollama.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("ollama.max_concurrent must be >= 1, got %d", c.Ollama.MaxConcurrent))
	}
	if c.Chunker.ChunkSize < 1 {
		errs = append(errs, fmt.Errorf("chunker.chunk_size must be >= 1, got %d", c.Chunker.ChunkSize))
	}
	if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		errs = append(errs, fmt.Errorf("chunker.chunk_overlap must be in [0, chunk_size), got %d", c.Chunker.ChunkOverlap))
	}
	switch c.Index.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Index.PostgresDSN == "" {
			errs = append(errs, errors.New("index.postgres_dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("index.backend must be %q or %q, got %q", BackendMemory, BackendPostgres, c.Index.Backend))
	}
	if c.Index.TopK < 1 {
		errs = append(errs, fmt.Errorf("index.top_k must be >= 1, got %d", c.Index.TopK))
	}
	if c.Index.Scope != ScopeAll && c.Index.Scope != ScopeLatest {
		errs = append(errs, fmt.Errorf("index.scope must be %q or %q, got %q", ScopeAll, ScopeLatest, c.Index.Scope))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
