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

// Package search ranks stored chunks against a query and balances the results by source.
//
// The Searcher embeds the query once, loads every candidate chunk (optionally
// restricted to a set of sources) and scores all of them by cosine similarity
// before truncating. Large candidate sets are scored in shards on a worker pool.
//
// The Balancer sits on top of the Searcher and produces:
//   - Grouped results, capped per source, with empty sources omitted
//   - Connections, a comparison of "new" and "existing" source buckets
package search
