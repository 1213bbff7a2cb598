package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	assert.Equal(t, "", Summarize("   ", 320))
	assert.Equal(t, "short text", Summarize("  short text \n", 320))

	long := strings.Repeat("word ", 100)
	summary := Summarize(long, 320)
	assert.True(t, strings.HasSuffix(summary, "…"))
	assert.LessOrEqual(t, len([]rune(summary)), 320)
	assert.True(t, strings.HasSuffix(strings.TrimSuffix(summary, "…"), "word"), "cut at a word boundary")

	assert.Equal(t, "abcd…", Summarize("abcdefghij", 5), "no space keeps the hard cut")
	assert.Equal(t, "héllo…", Summarize("héllo wörld", 8))
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "abc", Prefix("abc", 10))
	assert.Equal(t, "ab", Prefix("abc", 2))
	assert.Equal(t, "ü", Prefix("üß", 1))
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"fragment", "<p>Hello <b>bold</b> world</p>", "Hello bold world"},
		{"block elements are separated", "<p>one</p><p>two</p>", "one two"},
		{"entities", "<p>Fish &amp; chips&nbsp;today</p>", "Fish & chips today"},
		{"scripts dropped", "<div>keep<script>var x = 1;</script><style>p{}</style></div>", "keep"},
		{"plain text", "  already   plain\n text ", "already plain text"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PlainText(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
