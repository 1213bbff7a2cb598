package content

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/poiesic/radar/core"
)

// maxLineBytes bounds a single JSONL line; transcripts can be long.
const maxLineBytes = 16 << 20

// jsonRecord is the on-disk shape of a normalized content record.
type jsonRecord struct {
	Source      string         `json:"source"`
	ExternalID  string         `json:"external_id"`
	Title       string         `json:"title"`
	URL         string         `json:"url"`
	PublishedAt string         `json:"published_at"`
	Summary     string         `json:"summary"`
	Text        string         `json:"text"`
	ContentHTML string         `json:"content_html"`
	SummaryHTML string         `json:"summary_html"`
	MediaType   string         `json:"media_type"`
	Extra       map[string]any `json:"extra"`
}

// toRecord normalizes the decoded line. Markup fields only fill text or
// summary when the plain field is empty.
func (j *jsonRecord) toRecord() (*core.ContentRecord, error) {
	record := &core.ContentRecord{
		Source:      strings.TrimSpace(j.Source),
		ExternalID:  strings.TrimSpace(j.ExternalID),
		Title:       strings.TrimSpace(j.Title),
		URL:         strings.TrimSpace(j.URL),
		PublishedAt: ParseTimestamp(j.PublishedAt),
		Summary:     strings.TrimSpace(j.Summary),
		Text:        j.Text,
		MediaType:   j.MediaType,
	}
	if strings.TrimSpace(record.Text) == "" && j.ContentHTML != "" {
		text, err := PlainText(j.ContentHTML)
		if err != nil {
			return nil, fmt.Errorf("converting content_html: %w", err)
		}
		record.Text = text
	}
	if record.Summary == "" && j.SummaryHTML != "" {
		summary, err := PlainText(j.SummaryHTML)
		if err != nil {
			return nil, fmt.Errorf("converting summary_html: %w", err)
		}
		record.Summary = summary
	}
	if record.Summary == "" {
		record.Summary = Summarize(record.Text, DefaultSummaryChars)
	}
	if len(j.Extra) > 0 {
		record.Extra = make(map[string]string, len(j.Extra))
		for k, v := range j.Extra {
			if s, ok := v.(string); ok {
				record.Extra[k] = s
			} else {
				record.Extra[k] = fmt.Sprint(v)
			}
		}
	}
	return record, nil
}

// Records yields the content records of a JSONL stream, one per non-blank line.
// Iteration stops after the first error.
func Records(r io.Reader) iter.Seq2[*core.ContentRecord, error] {
	return func(yield func(*core.ContentRecord, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		line := 0
		for scanner.Scan() {
			line++
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			var raw jsonRecord
			if err := json.Unmarshal([]byte(text), &raw); err != nil {
				yield(nil, fmt.Errorf("line %d: %w", line, err))
				return
			}
			record, err := raw.toRecord()
			if err == nil {
				err = core.ValidateContentRecord(record)
			}
			if err != nil {
				yield(nil, fmt.Errorf("line %d: %w", line, err))
				return
			}
			if !yield(record, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(nil, err)
		}
	}
}
