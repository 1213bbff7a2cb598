package content

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/radar/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(r io.Reader) ([]*core.ContentRecord, error) {
	var records []*core.ContentRecord
	for record, err := range Records(r) {
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func TestRecords(t *testing.T) {
	input := `{"source":"wordpress","external_id":"hello-world","title":" Hello ","url":"https://example.com/hello","published_at":"2024-01-02T03:04:05Z","summary":"sum","text":"body text","media_type":"article","extra":{"wordpress_id":42,"slug":"hello-world"}}

{"source":"tiktok","external_id":"file-1","title":"clip","published_at":null,"text":"a transcript","media_type":"video"}
`
	records, err := readAll(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, core.ContentKey{Source: "wordpress", ExternalID: "hello-world"}, first.Key())
	assert.Equal(t, "Hello", first.Title)
	require.NotNil(t, first.PublishedAt)
	assert.True(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Equal(*first.PublishedAt))
	assert.Equal(t, map[string]string{"wordpress_id": "42", "slug": "hello-world"}, first.Extra)

	second := records[1]
	assert.Nil(t, second.PublishedAt)
	assert.Equal(t, "a transcript", second.Summary, "missing summary is derived from text")
	assert.Nil(t, second.Extra)
}

func TestRecords_Errors(t *testing.T) {
	_, err := readAll(strings.NewReader(`{"source":"rss","external_id":"a"}` + "\n" + `{not json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	_, err = readAll(strings.NewReader(`{"source":"rss","external_id":"  "}`))
	assert.ErrorIs(t, err, core.ErrInvalidContentRecord)
}

func TestRecords_StopsEarly(t *testing.T) {
	input := `{"source":"a","external_id":"1"}
{"source":"a","external_id":"2"}
{"source":"a","external_id":"3"}`

	var seen []string
	for record, err := range Records(strings.NewReader(input)) {
		require.NoError(t, err)
		seen = append(seen, record.ExternalID)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"1", "2"}, seen)
}

func TestRecords_ConvertsMarkup(t *testing.T) {
	input := `{"source":"wordpress","external_id":"p1","text":"","content_html":"<p>Solar <b>panels</b></p><script>track()</script><p>store&nbsp;energy</p>","summary_html":"<em>Short</em> take"}
{"source":"wordpress","external_id":"p2","text":"plain wins","content_html":"<p>ignored</p>"}
{"source":"rss","external_id":"r1","content_html":"<div>Only markup</div>"}`

	records, err := readAll(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "Solar panels store energy", records[0].Text)
	assert.Equal(t, "Short take", records[0].Summary)
	assert.Equal(t, "plain wins", records[1].Text)
	assert.Equal(t, "Only markup", records[2].Text)
	assert.Equal(t, "Only markup", records[2].Summary, "summary derives from converted text")
}
