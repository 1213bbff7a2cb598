package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/poiesic/radar/core"
)

const (
	// BucketNew holds hits from newly fetched sources.
	BucketNew = "new"

	// BucketExisting holds hits from the existing archive sources.
	BucketExisting = "existing"

	// DefaultOversample multiplies the per-source cap when Connections scans.
	DefaultOversample = 3
)

// Ranker produces a ranked list of chunks for a query.
// *Searcher satisfies it.
type Ranker interface {
	Search(ctx context.Context, query string, topK int, sources ...string) ([]*core.ScoredChunk, error)
}

// Balancer turns a ranked list into source-diverse result sets.
type Balancer struct {
	ranker     Ranker
	scanDepth  int
	oversample int
	logger     *slog.Logger
}

// BalancerOption configures a Balancer.
type BalancerOption func(*Balancer) error

// WithScanDepth caps how many ranked chunks Grouped partitions.
// The default of 0 partitions every candidate, so no source loses hits to the cap.
func WithScanDepth(depth int) BalancerOption {
	return func(b *Balancer) error {
		if depth < 0 {
			depth = 0
		}
		b.scanDepth = depth
		return nil
	}
}

// WithOversample sets the factor applied to the per-source cap before
// Connections re-buckets results.
func WithOversample(factor int) BalancerOption {
	return func(b *Balancer) error {
		if factor < 1 {
			return fmt.Errorf("%w: %d", ErrInvalidOversample, factor)
		}
		b.oversample = factor
		return nil
	}
}

// WithBalancerLogger sets a custom logger.
func WithBalancerLogger(logger *slog.Logger) BalancerOption {
	return func(b *Balancer) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// NewBalancer creates a Balancer over ranker.
func NewBalancer(ranker Ranker, opts ...BalancerOption) (*Balancer, error) {
	if ranker == nil {
		return nil, ErrSearcherRequired
	}

	b := &Balancer{
		ranker:     ranker,
		oversample: DefaultOversample,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	b.logger = b.logger.With("component", "balancer")
	return b, nil
}

// sourceGroup is one source's hits in rank order.
type sourceGroup struct {
	source string
	hits   []*core.ScoredChunk
}

// Grouped returns at most perSource hits for each source, in rank order.
// Sources without hits are absent from the map.
func (b *Balancer) Grouped(ctx context.Context, query string, perSource int, sources ...string) (map[string][]*core.ScoredChunk, error) {
	groups, err := b.grouped(ctx, query, perSource, sources)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]*core.ScoredChunk, len(groups))
	for _, group := range groups {
		out[group.source] = group.hits
	}
	return out, nil
}

// grouped partitions the ranked list by source in order of each source's best hit.
func (b *Balancer) grouped(ctx context.Context, query string, perSource int, sources []string) ([]*sourceGroup, error) {
	if perSource < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPerSource, perSource)
	}

	ranked, err := b.ranker.Search(ctx, query, b.scanDepth, sources...)
	if err != nil {
		return nil, err
	}

	index := make(map[string]*sourceGroup)
	var groups []*sourceGroup
	for _, hit := range ranked {
		group, ok := index[hit.Source]
		if !ok {
			group = &sourceGroup{source: hit.Source}
			index[hit.Source] = group
			groups = append(groups, group)
		}
		if len(group.hits) < perSource {
			group.hits = append(group.hits, hit)
		}
	}

	b.logger.Debug("grouped results", "query", query, "ranked", len(ranked), "sources", len(groups))
	return groups, nil
}

// Connections compares hits from newSources against hits from existingSources.
// The result always holds BucketNew and BucketExisting, each ranked by score
// and capped to perSource. A source listed in both sets counts as new; hits
// from sources in neither set are dropped.
func (b *Balancer) Connections(ctx context.Context, query string, existingSources, newSources []string, perSource int) (map[string][]*core.ScoredChunk, error) {
	if perSource < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPerSource, perSource)
	}
	out := map[string][]*core.ScoredChunk{
		BucketNew:      {},
		BucketExisting: {},
	}

	bucketOf := make(map[string]string, len(existingSources)+len(newSources))
	for _, source := range existingSources {
		bucketOf[source] = BucketExisting
	}
	for _, source := range newSources {
		bucketOf[source] = BucketNew
	}
	if len(bucketOf) == 0 {
		return out, nil
	}

	sources := make([]string, 0, len(bucketOf))
	for source := range bucketOf {
		sources = append(sources, source)
	}
	slices.Sort(sources)

	groups, err := b.grouped(ctx, query, perSource*b.oversample, sources)
	if err != nil {
		return nil, err
	}

	for _, group := range groups {
		bucket, ok := bucketOf[group.source]
		if !ok {
			continue
		}
		out[bucket] = append(out[bucket], group.hits...)
	}

	for bucket, hits := range out {
		slices.SortStableFunc(hits, func(x, y *core.ScoredChunk) int {
			return cmp.Compare(y.Score, x.Score)
		})
		if len(hits) > perSource {
			hits = hits[:perSource]
		}
		out[bucket] = hits
	}
	return out, nil
}
