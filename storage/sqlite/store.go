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

// Package sqlite implements the radar storage interfaces on a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/poiesic/radar/core"
	"github.com/poiesic/radar/storage"
)

// DatabaseFile is the file name created inside the data directory.
const DatabaseFile = "content_memory.sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS embeddings (
	source TEXT NOT NULL,
	external_id TEXT NOT NULL,
	chunk_id TEXT NOT NULL,
	embedding BLOB NOT NULL,
	text_excerpt TEXT NOT NULL,
	token_count INTEGER,
	similarity_hint TEXT,
	PRIMARY KEY (source, external_id, chunk_id)
);

CREATE TABLE IF NOT EXISTS content_records (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT NOT NULL,
	external_id TEXT NOT NULL,
	payload BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_content_records_key ON content_records(source, external_id, seq);
`

// Store owns the SQLite connection and serves both repositories.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database inside dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return open(filepath.Join(dataDir, DatabaseFile))
}

// NewMemoryStore opens a private in-memory database.
func NewMemoryStore() (*Store, error) {
	return open(":memory:")
}

func open(dsn string) (*Store, error) {
	source := dsn
	if dsn != ":memory:" {
		// WAL lets readers run alongside the single writer
		source += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", source)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if dsn == ":memory:" {
		// Every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, path: dsn}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// EmbeddingRepository returns the embeddings table view of the store.
func (s *Store) EmbeddingRepository() storage.EmbeddingRepository {
	return &embeddingRepository{store: s}
}

// RawLog returns the content record log view of the store.
func (s *Store) RawLog() storage.RawLog {
	return &rawLog{store: s}
}

type embeddingRepository struct {
	store *Store
}

var _ storage.EmbeddingRepository = (*embeddingRepository)(nil)

func (r *embeddingRepository) Close() error {
	return nil
}

func (r *embeddingRepository) Upsert(ctx context.Context, records ...*core.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, record := range records {
		if err := core.ValidateEmbeddingRecord(record); err != nil {
			return err
		}
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embeddings (source, external_id, chunk_id, embedding, text_excerpt, token_count, similarity_hint)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, external_id, chunk_id) DO UPDATE SET
			embedding = excluded.embedding,
			text_excerpt = excluded.text_excerpt,
			token_count = excluded.token_count,
			similarity_hint = excluded.similarity_hint
	`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		_, err := stmt.ExecContext(ctx,
			record.Source, record.ExternalID, record.ChunkID,
			storage.MarshalVector(record.Embedding),
			record.TextExcerpt, record.TokenCount, nullString(record.SimilarityHint))
		if err != nil {
			return fmt.Errorf("upserting %s/%s/%s: %w", record.Source, record.ExternalID, record.ChunkID, err)
		}
	}
	return tx.Commit()
}

const selectEmbeddings = `SELECT source, external_id, chunk_id, embedding, text_excerpt, token_count, similarity_hint FROM embeddings`

func (r *embeddingRepository) Load(ctx context.Context, sources ...string) ([]*core.EmbeddingRecord, error) {
	query := selectEmbeddings
	var args []any
	if len(sources) > 0 {
		distinct := slices.Clone(sources)
		slices.Sort(distinct)
		distinct = slices.Compact(distinct)
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(distinct)), ",")
		query += " WHERE source IN (" + placeholders + ")"
		for _, source := range distinct {
			args = append(args, source)
		}
	}
	query += " ORDER BY source, external_id, chunk_id"

	var results []*core.EmbeddingRecord
	err := r.query(ctx, query, args, func(record *core.EmbeddingRecord) error {
		results = append(results, record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *embeddingRepository) ForEach(ctx context.Context, batchSize int, fn func([]*core.EmbeddingRecord) error) error {
	if batchSize < 1 {
		batchSize = 1
	}
	// Materialize first so fn may write to the table without holding a read cursor.
	records, err := r.Load(ctx)
	if err != nil {
		return err
	}
	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))
		if err := fn(records[start:end]); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (r *embeddingRepository) KnownKeys(ctx context.Context) (core.KeySet, error) {
	rows, err := r.store.db.QueryContext(ctx, `SELECT DISTINCT source, external_id FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("querying known keys: %w", err)
	}
	defer rows.Close()

	keys := core.KeySet{}
	for rows.Next() {
		var key core.ContentKey
		if err := rows.Scan(&key.Source, &key.ExternalID); err != nil {
			return nil, err
		}
		keys.Add(key)
	}
	return keys, rows.Err()
}

func (r *embeddingRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&count)
	return count, err
}

func (r *embeddingRepository) query(ctx context.Context, query string, args []any, fn func(*core.EmbeddingRecord) error) error {
	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			record core.EmbeddingRecord
			blob   []byte
			tokens sql.NullInt64
			hint   sql.NullString
		)
		if err := rows.Scan(&record.Source, &record.ExternalID, &record.ChunkID, &blob, &record.TextExcerpt, &tokens, &hint); err != nil {
			return err
		}
		vector, err := storage.UnmarshalVector(blob)
		if err != nil {
			return err
		}
		record.Embedding = vector
		record.TokenCount = int(tokens.Int64)
		record.SimilarityHint = hint.String
		if err := fn(&record); err != nil {
			return err
		}
	}
	return rows.Err()
}

type rawLog struct {
	store *Store
}

var _ storage.RawLog = (*rawLog)(nil)

func (l *rawLog) Close() error {
	return nil
}

func (l *rawLog) Append(ctx context.Context, record *core.ContentRecord) error {
	if err := core.ValidateContentRecord(record); err != nil {
		return err
	}
	_, err := l.store.db.ExecContext(ctx,
		`INSERT INTO content_records (source, external_id, payload) VALUES (?, ?, ?)`,
		record.Source, record.ExternalID, storage.MarshalContentRecord(record))
	if err != nil {
		return fmt.Errorf("appending content record: %w", err)
	}
	return nil
}

func (l *rawLog) Lookup(ctx context.Context, key core.ContentKey) (*core.ContentRecord, error) {
	var payload []byte
	err := l.store.db.QueryRowContext(ctx, `
		SELECT payload FROM content_records
		WHERE source = ? AND external_id = ?
		ORDER BY seq DESC LIMIT 1
	`, key.Source, key.ExternalID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return storage.UnmarshalContentRecord(payload)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
