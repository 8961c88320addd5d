package results

import (
	"context"
	"sync"
)

// MemorySink keeps results in order of arrival.
type MemorySink struct {
	mu      sync.RWMutex
	results []Result
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Record(_ context.Context, r Result) error {
	m.mu.Lock()
	m.results = append(m.results, r)
	m.mu.Unlock()
	return nil
}

func (m *MemorySink) Close() error { return nil }

func (m *MemorySink) Results() []Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Result(nil), m.results...)
}

// Lines returns the results log as displayed.
func (m *MemorySink) Lines() []string {
	results := m.Results()
	lines := make([]string, len(results))
	for i, r := range results {
		lines[i] = r.LogLine()
	}
	return lines
}

func (m *MemorySink) Clear() {
	m.mu.Lock()
	m.results = nil
	m.mu.Unlock()
}
