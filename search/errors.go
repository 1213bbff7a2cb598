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

package search

import "errors"

var (
	// ErrEmbeddingRepositoryRequired is returned when an embedding repository is not provided.
	ErrEmbeddingRepositoryRequired = errors.New("embedding repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrSearcherRequired is returned when a balancer is built without a searcher.
	ErrSearcherRequired = errors.New("searcher required")

	// ErrInvalidPerSource is returned when a per-source cap is not positive.
	ErrInvalidPerSource = errors.New("per-source limit must be positive")

	// ErrInvalidOversample is returned when the oversampling factor is below 1.
	ErrInvalidOversample = errors.New("oversample factor must be at least 1")
)
