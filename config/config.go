// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the radar configuration file and environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/poiesic/radar/ai"
	"github.com/poiesic/radar/chunk"
	"github.com/poiesic/radar/search"
)

// DefaultFile is the configuration file read when none is named.
const DefaultFile = "radar.toml"

// Storage backends.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// Environment variables consulted after the file is read.
const (
	EnvAPIKey  = "OPENAI_API_KEY"
	EnvBaseURL = "OPENAI_BASE_URL"
)

// DefaultQueryCache is the default number of cached query vectors.
const DefaultQueryCache = 256

// ErrUnknownBackend is returned for a storage backend other than badger or sqlite.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Storage selects where embeddings and raw records live.
type Storage struct {
	Backend    string `toml:"backend"`
	Path       string `toml:"path"`
	RawTextDir string `toml:"raw_text_dir"`
	// ArchiveSources limits the raw text archive to these sources. Empty archives all.
	ArchiveSources []string `toml:"archive_sources"`
}

// Embedding configures the embedding endpoint. The token only comes from the environment.
type Embedding struct {
	Host      string `toml:"host"`
	Model     string `toml:"model"`
	BatchSize int    `toml:"batch_size"`
	APIToken  string `toml:"-"`
}

type Chunking struct {
	MaxWords     int `toml:"max_words"`
	OverlapFloor int `toml:"overlap_floor"`
}

type Digest struct {
	PerSource       int      `toml:"per_source"`
	Oversample      int      `toml:"oversample"`
	ScanDepth       int      `toml:"scan_depth"`
	ExistingSources []string `toml:"existing_sources"`
	NewSources      []string `toml:"new_sources"`
}

// Search tunes the searcher shared by the search and digest commands.
type Search struct {
	// QueryCache is the number of query vectors kept between searches. 0 disables the cache.
	QueryCache int64 `toml:"query_cache"`
	// Workers sizes the scoring pool. 0 uses half the CPUs.
	Workers int `toml:"workers"`
}

// Config is the full radar configuration.
type Config struct {
	Storage   Storage   `toml:"storage"`
	Embedding Embedding `toml:"embedding"`
	Chunking  Chunking  `toml:"chunking"`
	Search    Search    `toml:"search"`
	Digest    Digest    `toml:"digest"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Storage: Storage{
			Backend: BackendBadger,
			Path:    "data",
		},
		Embedding: Embedding{
			Host:      ai.DefaultEmbeddingHost,
			Model:     ai.DefaultEmbeddingModel,
			BatchSize: ai.DefaultBatchSize,
		},
		Chunking: Chunking{
			MaxWords:     chunk.DefaultMaxWords,
			OverlapFloor: chunk.DefaultOverlapFloor,
		},
		Search: Search{
			QueryCache: DefaultQueryCache,
		},
		Digest: Digest{
			PerSource:       3,
			Oversample:      search.DefaultOversample,
			ExistingSources: []string{"wordpress"},
			NewSources:      []string{"rss", "nyt"},
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
// The environment is applied last.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv loads variables from the named .env files (".env" when none are given)
// without overriding variables already set. Missing files are ignored.
func LoadEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, name := range filenames {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", name, err)
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	if token := os.Getenv(EnvAPIKey); token != "" {
		c.Embedding.APIToken = token
	}
	if host := os.Getenv(EnvBaseURL); host != "" {
		c.Embedding.Host = host
	}
}

// Validate checks the values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendBadger, BackendSQLite:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Storage.Backend)
	}
	if c.Storage.Path == "" {
		return errors.New("storage path is required")
	}
	if _, err := c.Chunker(); err != nil {
		return err
	}
	if c.Search.QueryCache < 0 {
		return fmt.Errorf("search query_cache must not be negative, got %d", c.Search.QueryCache)
	}
	if c.Search.Workers < 0 {
		return fmt.Errorf("search workers must not be negative, got %d", c.Search.Workers)
	}
	if c.Digest.PerSource < 1 {
		return fmt.Errorf("digest per_source must be positive, got %d", c.Digest.PerSource)
	}
	if c.Digest.Oversample < 1 {
		return fmt.Errorf("digest oversample must be positive, got %d", c.Digest.Oversample)
	}
	if c.Digest.ScanDepth < 0 {
		return fmt.Errorf("digest scan_depth must not be negative, got %d", c.Digest.ScanDepth)
	}
	return nil
}

// AIConfig converts the embedding section into a normalized ai.Config.
func (c *Config) AIConfig() *ai.Config {
	cfg := ai.NewConfig(
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithAPIToken(c.Embedding.APIToken),
		ai.WithBatchSize(c.Embedding.BatchSize),
	)
	cfg.Normalize()
	return cfg
}

// Chunker builds the chunker described by the chunking section.
func (c *Config) Chunker() (*chunk.Chunker, error) {
	return chunk.New(
		chunk.WithMaxWords(c.Chunking.MaxWords),
		chunk.WithOverlapFloor(c.Chunking.OverlapFloor),
	)
}

// SearchOptions converts the search section into searcher options.
func (c *Config) SearchOptions() []search.Option {
	opts := []search.Option{search.WithQueryCache(c.Search.QueryCache)}
	if c.Search.Workers > 0 {
		opts = append(opts, search.WithPoolSize(c.Search.Workers))
	}
	return opts
}

// Write encodes the configuration as TOML.
func (c *Config) Write(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
