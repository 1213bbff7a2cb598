// Package digest renders grouped search results as a plain-text digest body.
package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode"

	"github.com/poiesic/radar/content"
	"github.com/poiesic/radar/core"
	"github.com/poiesic/radar/search"
	"github.com/poiesic/radar/storage"
)

const (
	titleFallbackChars = 100
	summaryChars       = 220
	snippetChars       = 240
)

var (
	// ErrGrouperRequired is returned when a builder is created without a result source.
	ErrGrouperRequired = errors.New("grouper required")

	// ErrRawLogRequired is returned when a builder is created without a raw log.
	ErrRawLogRequired = errors.New("raw log required")
)

// Grouper produces source-balanced result sets. *search.Balancer satisfies it.
type Grouper interface {
	Grouped(ctx context.Context, query string, perSource int, sources ...string) (map[string][]*core.ScoredChunk, error)
	Connections(ctx context.Context, query string, existingSources, newSources []string, perSource int) (map[string][]*core.ScoredChunk, error)
}

// Builder assembles digest bodies, looking up each hit's parent record for
// its title, link and summary.
type Builder struct {
	grouper Grouper
	rawLog  storage.RawLog
	logger  *slog.Logger
}

// NewBuilder creates a digest builder.
func NewBuilder(grouper Grouper, rawLog storage.RawLog, logger *slog.Logger) (*Builder, error) {
	if grouper == nil {
		return nil, ErrGrouperRequired
	}
	if rawLog == nil {
		return nil, ErrRawLogRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		grouper: grouper,
		rawLog:  rawLog,
		logger:  logger.With("component", "digest"),
	}, nil
}

// Subject returns the subject line for a digest about query.
func Subject(query string) string {
	return "Content Radar — " + query
}

// Build renders the top perSource hits of every source, sources in name order.
func (b *Builder) Build(ctx context.Context, query string, perSource int, sources ...string) (string, error) {
	grouped, err := b.grouper.Grouped(ctx, query, perSource, sources...)
	if err != nil {
		return "", err
	}

	parts := []string{fmt.Sprintf("Content Radar — query: '%s'", query)}
	names := make([]string, 0, len(grouped))
	for source := range grouped {
		names = append(names, source)
	}
	slices.Sort(names)

	for _, source := range names {
		section, err := b.section(ctx, TitleCase(source)+" highlights", grouped[source], false)
		if err != nil {
			return "", err
		}
		parts = append(parts, section...)
	}
	return strings.Join(parts, "\n"), nil
}

// BuildConnections renders how new sources relate to existing ones for query.
func (b *Builder) BuildConnections(ctx context.Context, query string, existingSources, newSources []string, perSource int) (string, error) {
	buckets, err := b.grouper.Connections(ctx, query, existingSources, newSources, perSource)
	if err != nil {
		return "", err
	}

	parts := []string{fmt.Sprintf("Content Radar — connections: '%s'", query)}
	for _, bucket := range []string{search.BucketNew, search.BucketExisting} {
		section, err := b.section(ctx, TitleCase(bucket)+" sources", buckets[bucket], true)
		if err != nil {
			return "", err
		}
		parts = append(parts, section...)
	}
	return strings.Join(parts, "\n"), nil
}

func (b *Builder) section(ctx context.Context, heading string, hits []*core.ScoredChunk, labelSource bool) ([]string, error) {
	if len(hits) == 0 {
		return nil, nil
	}

	lines := []string{"", fmt.Sprintf("%s (%d)", heading, len(hits))}
	for _, hit := range hits {
		record, err := b.lookup(ctx, hit.Key())
		if err != nil {
			return nil, err
		}
		entry := FormatEntry(hit, record)
		if labelSource {
			entry = "- [" + hit.Source + "] " + strings.TrimPrefix(entry, "- ")
		}
		lines = append(lines, entry)
	}
	return lines, nil
}

func (b *Builder) lookup(ctx context.Context, key core.ContentKey) (*core.ContentRecord, error) {
	record, err := b.rawLog.Lookup(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		b.logger.Debug("no raw record for hit", "key", key.String())
		return nil, nil
	}
	return record, err
}

// FormatEntry renders one hit. record may be nil when the raw log has no entry.
func FormatEntry(hit *core.ScoredChunk, record *core.ContentRecord) string {
	var title, url, summary string
	if record != nil {
		title, url, summary = record.Title, record.URL, record.Summary
	}

	var lines []string
	if title != "" {
		lines = append(lines, "- "+title)
	} else {
		lines = append(lines, "- "+content.Prefix(hit.TextExcerpt, titleFallbackChars)+content.Ellipsis)
	}
	if url != "" {
		lines = append(lines, "  "+url)
	}
	if summary != "" {
		lines = append(lines, "  "+content.Prefix(summary, summaryChars)+content.Ellipsis)
	}
	if hit.TextExcerpt != "" && (summary == "" || !strings.Contains(hit.TextExcerpt, summary)) {
		lines = append(lines, "  Snippet: "+content.Prefix(hit.TextExcerpt, snippetChars)+content.Ellipsis)
	}
	return strings.Join(lines, "\n")
}

// TitleCase upper-cases the first letter of every run of letters and
// lower-cases the rest, so "the-verge" becomes "The-Verge".
func TitleCase(s string) string {
	var sb strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				sb.WriteRune(unicode.ToLower(r))
			} else {
				sb.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		sb.WriteRune(r)
		prevLetter = false
	}
	return sb.String()
}
