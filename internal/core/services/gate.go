package services

import "sync"

// CorpusGate keeps dashboard reads from observing half of a multi-store write.
// Writes that change an item's status together with its chunks hold the gate
// shared and still run in parallel; Stats and Snapshot hold it exclusively.
// Share one gate between the services of a corpus.
type CorpusGate struct {
	mu sync.RWMutex
}

// NewCorpusGate creates a gate.
func NewCorpusGate() *CorpusGate {
	return &CorpusGate{}
}

// enterWrite admits one multi-store write. A nil gate admits everything.
func (g *CorpusGate) enterWrite() func() {
	if g == nil {
		return func() {}
	}
	g.mu.RLock()
	return g.mu.RUnlock
}

// enterSnapshot waits for in-flight writes and holds new ones off until released.
func (g *CorpusGate) enterSnapshot() func() {
	if g == nil {
		return func() {}
	}
	g.mu.Lock()
	return g.mu.Unlock
}
