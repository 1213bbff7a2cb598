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

// Package chunk splits item bodies into overlapping word-count windows.
package chunk

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultMaxWords is the default window size in words.
	DefaultMaxWords = 450

	// DefaultOverlapFloor is the minimum overlap between consecutive windows.
	DefaultOverlapFloor = 80

	// overlapRatio is the share of the window repeated at the start of the next chunk
	// when it exceeds the floor.
	overlapRatio = 0.15
)

var (
	// ErrInvalidWindow is returned when the window size is not positive.
	ErrInvalidWindow = errors.New("chunk window must be positive")

	// ErrOverlapTooLarge is returned when the overlap would keep the window from advancing.
	ErrOverlapTooLarge = errors.New("chunk overlap must be smaller than the window")
)

// Chunker cuts text into windows of at most maxWords words, each window after
// the first starting overlap words before the end of the previous one.
// A Chunker holds no mutable state and is safe for concurrent use.
type Chunker struct {
	maxWords int
	overlap  int
}

// Option configures a Chunker.
type Option func(*settings)

type settings struct {
	maxWords     int
	overlapFloor int
}

// WithMaxWords sets the window size.
func WithMaxWords(n int) Option {
	return func(s *settings) {
		s.maxWords = n
	}
}

// WithOverlapFloor sets the minimum overlap.
func WithOverlapFloor(n int) Option {
	return func(s *settings) {
		s.overlapFloor = n
	}
}

// New creates a Chunker. Overlap is max(overlapFloor, 15% of maxWords).
func New(opts ...Option) (*Chunker, error) {
	s := &settings{
		maxWords:     DefaultMaxWords,
		overlapFloor: DefaultOverlapFloor,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.maxWords < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, s.maxWords)
	}
	overlap := max(s.overlapFloor, int(float64(s.maxWords)*overlapRatio), 0)
	if overlap >= s.maxWords {
		return nil, fmt.Errorf("%w: overlap %d, window %d", ErrOverlapTooLarge, overlap, s.maxWords)
	}

	return &Chunker{
		maxWords: s.maxWords,
		overlap:  overlap,
	}, nil
}

// Default returns a Chunker with the default window and overlap.
func Default() *Chunker {
	c, _ := New()
	return c
}

// MaxWords returns the window size.
func (c *Chunker) MaxWords() int {
	return c.maxWords
}

// Overlap returns the effective overlap in words.
func (c *Chunker) Overlap() int {
	return c.overlap
}

// Split returns the ordered chunks of text. Empty or whitespace-only text yields nil.
// The last chunk always ends at the final word and may be shorter than the window.
func (c *Chunker) Split(text string) []string {
	words := strings.Fields(text)
	spans := c.Spans(len(words))
	if len(spans) == 0 {
		return nil
	}

	chunks := make([]string, len(spans))
	for i, sp := range spans {
		chunks[i] = strings.Join(words[sp.Start:sp.End], " ")
	}
	return chunks
}

// Span is a half-open [Start, End) range of word positions.
type Span struct {
	Start int
	End   int
}

// Spans returns the word windows for a text of wordCount words.
func (c *Chunker) Spans(wordCount int) []Span {
	if wordCount <= 0 {
		return nil
	}

	var spans []Span
	start := 0
	for start < wordCount {
		end := min(wordCount, start+c.maxWords)
		spans = append(spans, Span{Start: start, End: end})
		if end == wordCount {
			break
		}
		start = max(0, end-c.overlap)
	}
	return spans
}
