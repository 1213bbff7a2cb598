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

// Package radar wires storage, embedding, search and digest rendering into
// one content memory.
package radar

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/radar/ai"
	"github.com/poiesic/radar/ai/openai"
	"github.com/poiesic/radar/digest"
	"github.com/poiesic/radar/ingestion"
	"github.com/poiesic/radar/reembed"
	"github.com/poiesic/radar/search"
	"github.com/poiesic/radar/storage"
	"github.com/poiesic/radar/storage/badger"
	"github.com/poiesic/radar/storage/sqlite"
)

// Storage backends accepted by WithBackend.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// ErrUnknownBackend is returned when WithBackend names an unsupported store.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Database is a content memory: an embedding table, a raw record log and an embedder.
type Database struct {
	embeddings storage.EmbeddingRepository
	rawLog     storage.RawLog
	closeStore func() error
	provider   ai.AIProvider
	logger     *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig *ai.Config
	provider ai.AIProvider
	backend  string
	inMemory bool
	logger   *slog.Logger
}

// WithAIConfig sets the embedding service configuration.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = config
	}
}

// WithProvider uses provider instead of building an OpenAI-compatible one.
// The Database takes ownership and closes it.
func WithProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithBackend selects the storage engine, BackendBadger (default) or BackendSQLite.
func WithBackend(backend string) DatabaseOption {
	return func(o *databaseOptions) {
		o.backend = backend
	}
}

// InMemory keeps all data in memory. The path is ignored.
func InMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithLogger sets the logger handed to every component the Database creates.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// NewDatabase opens (or creates) the store at filePath.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
		backend:  BackendBadger,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	db := &Database{logger: options.logger}
	if err := db.openStore(filePath, options); err != nil {
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		var err error
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			db.closeStore()
			return nil, err
		}
	}
	db.provider = provider

	return db, nil
}

func (db *Database) openStore(filePath string, options *databaseOptions) error {
	switch options.backend {
	case BackendBadger:
		backend, err := badger.OpenBackend(filePath, options.inMemory)
		if err != nil {
			return err
		}
		embeddings, err := badger.NewEmbeddingRepository(backend)
		if err != nil {
			backend.Close()
			return err
		}
		rawLog, err := badger.NewRawLog(backend)
		if err != nil {
			backend.Close()
			return err
		}
		db.embeddings, db.rawLog = embeddings, rawLog
		db.closeStore = func() error {
			rawLog.Close()
			embeddings.Close()
			return backend.Close()
		}

	case BackendSQLite:
		var (
			store *sqlite.Store
			err   error
		)
		if options.inMemory {
			store, err = sqlite.NewMemoryStore()
		} else {
			store, err = sqlite.NewStore(filePath)
		}
		if err != nil {
			return err
		}
		db.embeddings, db.rawLog = store.EmbeddingRepository(), store.RawLog()
		db.closeStore = store.Close

	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, options.backend)
	}
	return nil
}

func (db *Database) Close() error {
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}

	if err := db.closeStore(); err != nil {
		db.logger.Error("error closing storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) EmbeddingRepository() storage.EmbeddingRepository {
	return db.embeddings
}

func (db *Database) RawLog() storage.RawLog {
	return db.rawLog
}

func (db *Database) Embedder() ai.Embedder {
	return db.provider.Embedder()
}

func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	opts = append([]ingestion.Option{ingestion.WithLogger(db.logger)}, opts...)
	return ingestion.NewPipeline(db.embeddings, db.rawLog, db.provider.Embedder(), opts...)
}

// NewSearcher creates a searcher over the stored chunks. Callers must Release it.
func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	opts = append([]search.Option{search.WithLogger(db.logger)}, opts...)
	return search.NewSearcher(db.embeddings, db.provider.Embedder(), opts...)
}

func (db *Database) NewBalancer(ranker search.Ranker, opts ...search.BalancerOption) (*search.Balancer, error) {
	opts = append([]search.BalancerOption{search.WithBalancerLogger(db.logger)}, opts...)
	return search.NewBalancer(ranker, opts...)
}

// NewDigestBuilder renders digests from grouper's results, reading titles and
// links back from the raw log.
func (db *Database) NewDigestBuilder(grouper digest.Grouper) (*digest.Builder, error) {
	return digest.NewBuilder(grouper, db.rawLog, db.logger)
}

func (db *Database) NewReembedder(config *reembed.Config, progress io.Writer) *reembed.Reembedder {
	return reembed.NewReembedder(db.embeddings, db.provider.Embedder(), config, progress)
}
