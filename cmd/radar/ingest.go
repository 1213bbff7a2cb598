package main

import (
	"context"
	"iter"
	"log/slog"

	"github.com/poiesic/radar/core"
	"github.com/poiesic/radar/ingestion"
)

// ingestBatched reads records from source and ingests them in batches,
// summing the per-batch reports.
func ingestBatched(ctx context.Context, pipeline *ingestion.Pipeline, source iter.Seq2[*core.ContentRecord, error], batchSize int) (*ingestion.IngestReport, error) {
	total := &ingestion.IngestReport{}
	batch := make([]*core.ContentRecord, 0, batchSize)

	flush := func() error {
		report, err := pipeline.Ingest(ctx, batch)
		if report != nil {
			total.Fetched += report.Fetched
			total.New += report.New
			total.Chunks += report.Chunks
			total.Archived += report.Archived
		}
		batch = batch[:0]
		return err
	}

	for record, err := range source {
		if err != nil {
			return total, err
		}
		batch = append(batch, record)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return total, err
			}
			slog.Debug("ingested batch", "fetched", total.Fetched, "new", total.New)
		}
	}

	// Process any remaining records
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return total, err
		}
	}

	return total, nil
}
