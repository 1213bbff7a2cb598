package ingestion

import (
	"fmt"
	"strings"

	"github.com/poiesic/radar/chunk"
	"github.com/poiesic/radar/core"
)

// BuildPendingChunks chunks an item's text into drafts awaiting vectors.
// When the text yields no chunks the summary becomes the only chunk; when both
// are empty the item produces nothing.
func BuildPendingChunks(chunker *chunk.Chunker, item *core.ContentRecord) []*core.ChunkDraft {
	excerpts := chunker.Split(item.Text)
	if len(excerpts) == 0 {
		summary := strings.TrimSpace(item.Summary)
		if summary == "" {
			return nil
		}
		excerpts = []string{summary}
	}

	drafts := make([]*core.ChunkDraft, len(excerpts))
	for i, excerpt := range excerpts {
		drafts[i] = &core.ChunkDraft{
			Source:         item.Source,
			ExternalID:     item.ExternalID,
			ChunkID:        core.ChunkID(item.ExternalID, i),
			Index:          i,
			TextExcerpt:    excerpt,
			TokenCount:     len(strings.Fields(excerpt)),
			SimilarityHint: item.Summary,
		}
	}
	return drafts
}

// AttachVectors pairs drafts with vectors by position.
func AttachVectors(drafts []*core.ChunkDraft, vectors [][]float32) ([]*core.EmbeddingRecord, error) {
	if len(drafts) != len(vectors) {
		return nil, fmt.Errorf("%w: expected %d, received %d", ErrEmbeddingCountMismatch, len(drafts), len(vectors))
	}

	records := make([]*core.EmbeddingRecord, len(drafts))
	for i, draft := range drafts {
		if len(vectors[i]) == 0 {
			return nil, fmt.Errorf("%w: %s/%s chunk %d", ErrEmptyVector, draft.Source, draft.ExternalID, draft.Index)
		}
		records[i] = &core.EmbeddingRecord{
			Source:         draft.Source,
			ExternalID:     draft.ExternalID,
			ChunkID:        draft.ChunkID,
			TextExcerpt:    draft.TextExcerpt,
			TokenCount:     draft.TokenCount,
			Embedding:      vectors[i],
			SimilarityHint: draft.SimilarityHint,
		}
	}
	return records, nil
}

// draftGroup holds the drafts of one content item.
type draftGroup struct {
	key    core.ContentKey
	drafts []*core.ChunkDraft
}

// groupDrafts buckets drafts by content identity in first-seen order.
func groupDrafts(drafts []*core.ChunkDraft) []*draftGroup {
	index := make(map[core.ContentKey]*draftGroup)
	var groups []*draftGroup
	for _, draft := range drafts {
		key := draft.Key()
		group, ok := index[key]
		if !ok {
			group = &draftGroup{key: key}
			index[key] = group
			groups = append(groups, group)
		}
		group.drafts = append(group.drafts, draft)
	}
	return groups
}
