// Package reembed rewrites the vector of every stored chunk using the
// currently configured embedder, for example after switching models.
//
// Chunks are read in key order and handed to the embedder in batches that
// never split a content item, so every chunk of one item is re-embedded by the
// same request. Failed requests are retried with exponential backoff and
// progress is written to a caller-supplied writer. Chunk ids, excerpts and
// hints are left untouched; only the vectors change.
package reembed
