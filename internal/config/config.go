// Package config loads service settings from defaults, an optional YAML
// file, a .env file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ChunkingConfig controls how extracted text is split before embedding.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size" json:"chunk_size" validate:"gt=0"`
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
}

// RetrievalConfig holds the defaults used when a request does not override them.
type RetrievalConfig struct {
	NResults          int     `yaml:"n_results" validate:"gt=0"`
	DistanceThreshold float64 `yaml:"distance_threshold" validate:"gte=0"`
}

// OllamaConfig configures the chat and embedding backend.
type OllamaConfig struct {
	BaseURL           string        `yaml:"base_url" validate:"required,url"`
	Model             string        `yaml:"model" validate:"required"`
	EmbeddingModel    string        `yaml:"embedding_model" validate:"required"`
	GenerationTimeout time.Duration `yaml:"generation_timeout" validate:"gt=0"`
	EmbedConcurrency  int           `yaml:"embed_concurrency" validate:"gt=0"`
}

// RedisConfig is only read when the store backend is "redis".
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// StoreConfig selects the vector index backend.
type StoreConfig struct {
	Backend string      `yaml:"backend" validate:"oneof=memory sqlite redis"`
	DataDir string      `yaml:"data_dir"`
	Redis   RedisConfig `yaml:"redis"`
}

// AppConfig is the root configuration.
type AppConfig struct {
	HTTPAddr     string          `yaml:"http_addr" validate:"required"`
	LogMode      string          `yaml:"log_mode"`
	WatchDir     string          `yaml:"watch_dir"`
	ConverterURL string          `yaml:"converter_url" validate:"omitempty,url"`
	Chunking     ChunkingConfig  `yaml:"chunking"`
	Retrieval    RetrievalConfig `yaml:"retrieval"`
	Ollama       OllamaConfig    `yaml:"ollama"`
	Store        StoreConfig     `yaml:"store"`
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	return &AppConfig{
		HTTPAddr: ":8000",
		LogMode:  "dev",
		Chunking: ChunkingConfig{ChunkSize: 1000, ChunkOverlap: 200},
		Retrieval: RetrievalConfig{
			NResults:          5,
			DistanceThreshold: 0.6,
		},
		Ollama: OllamaConfig{
			BaseURL:           "http://localhost:11434",
			Model:             "llama3.2",
			EmbeddingModel:    "nomic-embed-text",
			GenerationTimeout: time.Hour,
			EmbedConcurrency:  4,
		},
		Store: StoreConfig{
			Backend: "sqlite",
			DataDir: "./data",
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "ragstream:"},
		},
	}
}

// Load builds the configuration. path may be empty; a missing YAML file or
// .env file is not an error.
func Load(path string) (*AppConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	// .env never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *AppConfig, lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("HTTP_ADDR", &cfg.HTTPAddr)
	str("LOG_MODE", &cfg.LogMode)
	str("WATCH_DIR", &cfg.WatchDir)
	str("CONVERTER_URL", &cfg.ConverterURL)

	num("CHUNK_SIZE", &cfg.Chunking.ChunkSize)
	num("CHUNK_OVERLAP", &cfg.Chunking.ChunkOverlap)
	num("N_RESULTS", &cfg.Retrieval.NResults)
	float("DISTANCE_THRESHOLD", &cfg.Retrieval.DistanceThreshold)

	str("OLLAMA_BASE_URL", &cfg.Ollama.BaseURL)
	str("OLLAMA_MODEL", &cfg.Ollama.Model)
	str("EMBEDDING_MODEL", &cfg.Ollama.EmbeddingModel)
	duration("GENERATION_TIMEOUT", &cfg.Ollama.GenerationTimeout)
	num("EMBED_CONCURRENCY", &cfg.Ollama.EmbedConcurrency)

	str("VECTOR_BACKEND", &cfg.Store.Backend)
	str("DATA_DIR", &cfg.Store.DataDir)
	str("REDIS_ADDR", &cfg.Store.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Store.Redis.Password)
	num("REDIS_DB", &cfg.Store.Redis.DB)
	str("REDIS_PREFIX", &cfg.Store.Redis.Prefix)

	cfg.Ollama.BaseURL = strings.TrimRight(cfg.Ollama.BaseURL, "/")
	return errors.Join(errs...)
}
