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

package core

import (
	"encoding/hex"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ChunkIDSize is the number of hash bytes in a chunk id (rendered as twice as many hex digits).
const ChunkIDSize = 6

// ContentKey is the content-level identity of an ingested item.
type ContentKey struct {
	Source     string
	ExternalID string
}

// String returns the key as "source/external_id".
func (k ContentKey) String() string {
	return k.Source + "/" + k.ExternalID
}

// KeySet is a set of content identities.
type KeySet map[ContentKey]struct{}

// Contains reports whether the set holds the given key.
func (s KeySet) Contains(key ContentKey) bool {
	_, ok := s[key]
	return ok
}

// Add inserts a key into the set.
func (s KeySet) Add(key ContentKey) {
	s[key] = struct{}{}
}

// ContentRecord is one normalized content item produced by an acquisition layer.
// It is treated as immutable once handed to the ingestion pipeline.
type ContentRecord struct {
	Source      string
	ExternalID  string
	Title       string
	URL         string     // Optional
	PublishedAt *time.Time // Optional
	Summary     string
	Text        string // Full body used for chunking
	MediaType   string // "article", "video", ...
	Extra       map[string]string
}

// Key returns the content identity of the record.
func (r *ContentRecord) Key() ContentKey {
	return ContentKey{Source: r.Source, ExternalID: r.ExternalID}
}

// ChunkDraft is a chunk that has been cut from a ContentRecord but has no vector yet.
type ChunkDraft struct {
	Source         string
	ExternalID     string
	ChunkID        string
	Index          int
	TextExcerpt    string
	TokenCount     int
	SimilarityHint string
}

// Key returns the content identity of the draft's parent record.
func (d *ChunkDraft) Key() ContentKey {
	return ContentKey{Source: d.Source, ExternalID: d.ExternalID}
}

// EmbeddingRecord is one indexed chunk. The storage primary key is
// (Source, ExternalID, ChunkID).
type EmbeddingRecord struct {
	Source         string
	ExternalID     string
	ChunkID        string
	TextExcerpt    string
	TokenCount     int
	Embedding      []float32
	SimilarityHint string // Not used for scoring
}

// Key returns the content identity of the record.
func (r *EmbeddingRecord) Key() ContentKey {
	return ContentKey{Source: r.Source, ExternalID: r.ExternalID}
}

// ScoredChunk is a similarity search hit.
type ScoredChunk struct {
	Source         string
	ExternalID     string
	ChunkID        string
	Score          float64
	TextExcerpt    string
	SimilarityHint string
	TokenCount     int
}

// Key returns the content identity of the hit.
func (c *ScoredChunk) Key() ContentKey {
	return ContentKey{Source: c.Source, ExternalID: c.ExternalID}
}

// ChunkID derives the stable identifier for the chunk at position index of an item.
// The same (externalID, index) always yields the same id.
func ChunkID(externalID string, index int) string {
	h, _ := blake2b.New(ChunkIDSize, nil)
	h.Write([]byte(externalID + ":" + strconv.Itoa(index)))
	return hex.EncodeToString(h.Sum(nil))
}
