package search

import "github.com/poiesic/radar/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterEmbedding(dimensions int, cached bool)
	AfterLoad(candidates int)
	DegenerateCandidate(key core.ContentKey, chunkID string)
	Finish(results []*core.ScoredChunk)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                  {}
func (n *noopMonitor) AfterEmbedding(_ int, _ bool)                    {}
func (n *noopMonitor) AfterLoad(_ int)                                 {}
func (n *noopMonitor) DegenerateCandidate(_ core.ContentKey, _ string) {}
func (n *noopMonitor) Finish(_ []*core.ScoredChunk)                    {}
