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

package badger

import (
	"bytes"
	"encoding/binary"

	"github.com/poiesic/radar/core"
)

const (
	embeddingPrefix = "embrec:"
	rawLogPrefix    = "rawlog:"
	rawIndexPrefix  = "rawidx:"
	rawLogSeq       = "rawlogseq"

	keySep = 0x00
)

// makeEmbeddingKey builds embrec:<source>\x00<external_id>\x00<chunk_id>.
// Identity fields are validated to be NUL-free, so the key sorts by
// source, then external id, then chunk id.
func makeEmbeddingKey(source, externalID, chunkID string) []byte {
	buf := make([]byte, 0, len(embeddingPrefix)+len(source)+len(externalID)+len(chunkID)+2)
	buf = append(buf, embeddingPrefix...)
	buf = append(buf, source...)
	buf = append(buf, keySep)
	buf = append(buf, externalID...)
	buf = append(buf, keySep)
	buf = append(buf, chunkID...)
	return buf
}

func makeEmbeddingSourcePrefix(source string) []byte {
	buf := make([]byte, 0, len(embeddingPrefix)+len(source)+1)
	buf = append(buf, embeddingPrefix...)
	buf = append(buf, source...)
	buf = append(buf, keySep)
	return buf
}

// parseEmbeddingKey extracts the content identity from an embedding key.
func parseEmbeddingKey(key []byte) (core.ContentKey, bool) {
	rest, ok := bytes.CutPrefix(key, []byte(embeddingPrefix))
	if !ok {
		return core.ContentKey{}, false
	}
	parts := bytes.SplitN(rest, []byte{keySep}, 3)
	if len(parts) != 3 {
		return core.ContentKey{}, false
	}
	return core.ContentKey{Source: string(parts[0]), ExternalID: string(parts[1])}, true
}

func makeRawLogKey(seq uint64) []byte {
	buf := make([]byte, len(rawLogPrefix)+8)
	offset := copy(buf, rawLogPrefix)
	// Write in BigEndian order so lexicographic sort follows append order
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

func makeRawIndexKey(key core.ContentKey) []byte {
	buf := make([]byte, 0, len(rawIndexPrefix)+len(key.Source)+len(key.ExternalID)+1)
	buf = append(buf, rawIndexPrefix...)
	buf = append(buf, key.Source...)
	buf = append(buf, keySep)
	buf = append(buf, key.ExternalID...)
	return buf
}

func encodeSeq(seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}
