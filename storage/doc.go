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

// Package storage provides the storage abstraction layer for radar.
//
// This package defines the repository interfaces that decouple the memory store
// from its storage engine. Two backends are provided:
//
//   - storage/badger: BadgerDB key-value store (default)
//   - storage/sqlite: SQLite table with ON CONFLICT upserts
//
// # Persisted State
//
// Both backends persist the same two logical tables:
//
//   - embeddings: one row per (source, external_id, chunk_id) holding the
//     serialized vector, excerpt, token count and similarity hint
//   - raw log: ContentRecords in append order
//
// Records are encoded with the mus-go based helpers in serialization.go so
// vectors round-trip bit-for-bit regardless of backend.
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	embeddings, rawLog, backend, err := badger.NewMemoryRepositories()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # Concurrency
//
// A single ingesting process writes at a time. Readers may run concurrently
// with the writer and can observe a partially applied batch.
//
// # Context Support
//
// All repository methods accept context.Context. Pass context.Background()
// for operations without specific timeout requirements.
package storage
