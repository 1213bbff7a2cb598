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

import "github.com/poiesic/radar/storage"

// NewMemoryRepositories opens an in-memory backend with both repositories attached.
// Callers close the raw log before the backend.
func NewMemoryRepositories() (storage.EmbeddingRepository, storage.RawLog, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}

	embeddings, err := NewEmbeddingRepository(backend)
	if err != nil {
		backend.Close()
		return nil, nil, nil, err
	}

	rawLog, err := NewRawLog(backend)
	if err != nil {
		backend.Close()
		return nil, nil, nil, err
	}

	return embeddings, rawLog, backend, nil
}
