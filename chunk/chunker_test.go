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

package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeWords(n int) []string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return words
}

func TestNew_Defaults(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, 450, c.MaxWords())
	// 15% of 450 is 67, below the floor of 80
	assert.Equal(t, 80, c.Overlap())
}

func TestNew_RatioAboveFloor(t *testing.T) {
	c, err := New(WithMaxWords(1000), WithOverlapFloor(80))
	require.NoError(t, err)
	assert.Equal(t, 150, c.Overlap())
}

func TestNew_InvalidSettings(t *testing.T) {
	_, err := New(WithMaxWords(0))
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = New(WithMaxWords(50), WithOverlapFloor(80))
	assert.ErrorIs(t, err, ErrOverlapTooLarge)
}

func TestSplit_Empty(t *testing.T) {
	c := Default()
	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split("   \n\t  "))
}

func TestSplit_ShortText(t *testing.T) {
	c := Default()
	chunks := c.Split("  hello   brave\nnew world ")
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello brave new world", chunks[0])
}

func TestSplit_ExactWindow(t *testing.T) {
	c := Default()
	chunks := c.Split(strings.Join(makeWords(450), " "))
	require.Len(t, chunks, 1)
}

func TestSplit_NineHundredWords(t *testing.T) {
	c := Default()
	words := makeWords(900)
	chunks := c.Split(strings.Join(words, " "))
	require.Len(t, chunks, 3)

	first := strings.Fields(chunks[0])
	second := strings.Fields(chunks[1])
	third := strings.Fields(chunks[2])

	assert.Len(t, first, 450)
	assert.Equal(t, "w0", first[0])
	assert.Equal(t, "w370", second[0], "second chunk starts overlap words before the end of the first")
	assert.Len(t, second, 450)
	assert.Equal(t, "w740", third[0])
	assert.Equal(t, "w899", third[len(third)-1], "last chunk ends at the last word")
	assert.Len(t, third, 160)
}

func TestSpans_Coverage(t *testing.T) {
	configs := []struct {
		maxWords int
		floor    int
	}{
		{450, 80},
		{10, 3},
		{7, 0},
		{100, 99},
	}

	for _, cfg := range configs {
		c, err := New(WithMaxWords(cfg.maxWords), WithOverlapFloor(cfg.floor))
		require.NoError(t, err)

		for _, n := range []int{1, 2, cfg.maxWords - 1, cfg.maxWords, cfg.maxWords + 1, 3*cfg.maxWords + 17} {
			if n < 1 {
				continue
			}
			t.Run(fmt.Sprintf("window=%d/words=%d", cfg.maxWords, n), func(t *testing.T) {
				spans := c.Spans(n)
				require.NotEmpty(t, spans)

				covered := make([]bool, n)
				for i, sp := range spans {
					assert.LessOrEqual(t, sp.End-sp.Start, cfg.maxWords)
					assert.Greater(t, sp.End, sp.Start)
					if i > 0 {
						assert.Greater(t, sp.Start, spans[i-1].Start, "windows must advance")
					}
					for w := sp.Start; w < sp.End; w++ {
						covered[w] = true
					}
				}
				for w, ok := range covered {
					assert.True(t, ok, "word %d not covered", w)
				}
				assert.Equal(t, n, spans[len(spans)-1].End)
			})
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	c := Default()
	text := strings.Join(makeWords(1234), " ")
	assert.Equal(t, c.Split(text), c.Split(text))
}
