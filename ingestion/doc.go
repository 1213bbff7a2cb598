// Package ingestion turns normalized content records into persisted chunk embeddings.
//
// The Pipeline type manages the ingestion workflow:
//   - Dropping records whose content identity is already stored
//   - Appending every record to the raw log
//   - Chunking each record's text, falling back to its summary
//   - Embedding the chunks of one record per request
//   - Upserting the resulting embedding records
//
// Work runs synchronously. An embedding failure stops the batch and is returned;
// records committed before the failure stay committed.
package ingestion
