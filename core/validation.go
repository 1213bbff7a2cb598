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
	"fmt"
	"strings"
)

// ValidateContentRecord validates a ContentRecord according to domain rules.
//
// Validation rules:
//   - Source and ExternalID must not be empty
//   - Source and ExternalID must not contain NUL bytes (they form storage keys)
//
// NOT validated:
//   - Text and Summary (an item with neither is skipped by ingestion, not rejected)
//   - Provenance of the item
func ValidateContentRecord(record *ContentRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidContentRecord)
	}
	if err := ValidateKey(record.Key()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidContentRecord, err)
	}
	return nil
}

// ValidateEmbeddingRecord validates an EmbeddingRecord before it is persisted.
// The vector itself is not inspected; degenerate vectors are scored 0 at query time.
func ValidateEmbeddingRecord(record *EmbeddingRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidEmbeddingRecord)
	}
	if err := ValidateKey(record.Key()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEmbeddingRecord, err)
	}
	if record.ChunkID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEmbeddingRecord, ErrEmptyChunkID)
	}
	if strings.IndexByte(record.ChunkID, 0) >= 0 {
		return fmt.Errorf("%w: %w", ErrInvalidEmbeddingRecord, ErrInvalidKeyByte)
	}
	return nil
}

// ValidateKey checks a content identity.
func ValidateKey(key ContentKey) error {
	if key.Source == "" {
		return ErrEmptySource
	}
	if key.ExternalID == "" {
		return ErrEmptyExternalID
	}
	if strings.IndexByte(key.Source, 0) >= 0 || strings.IndexByte(key.ExternalID, 0) >= 0 {
		return ErrInvalidKeyByte
	}
	return nil
}
