// Package embedding holds the encoder access gate and embedder decorators.
package embedding

import "sync"

// Gate grants exclusive access to the single encoder device. Every embedding
// computation across all concurrently scored submissions serializes through
// one Gate instance created at process start.
type Gate struct {
	mu sync.Mutex
}

// NewGate creates a gate.
func NewGate() *Gate {
	return &Gate{}
}

// Acquire blocks until exclusive access is granted and returns the release
// function. Callers must release before doing unrelated network I/O.
func (g *Gate) Acquire() func() {
	g.mu.Lock()
	return g.mu.Unlock
}
