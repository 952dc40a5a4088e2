// Package memory tracks per-conversation state: which medications have
// already been surfaced and the most recent exchange.
package memory

import (
	"sort"
	"strings"
	"sync"
)

// Exchange is one prompt and its generated response.
type Exchange struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// Memory is the state of one conversation. Safe for concurrent use.
type Memory struct {
	mu        sync.Mutex
	mentioned map[string]struct{}
	last      Exchange
}

// New creates an empty memory.
func New() *Memory {
	return &Memory{mentioned: make(map[string]struct{})}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// AlreadyMentioned reports whether name was remembered, ignoring case.
func (m *Memory) AlreadyMentioned(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.mentioned[normalize(name)]
	return ok
}

// Remember marks name as surfaced. Blank names are ignored.
func (m *Memory) Remember(name string) {
	key := normalize(name)
	if key == "" {
		return
	}
	m.mu.Lock()
	m.mentioned[key] = struct{}{}
	m.mu.Unlock()
}

// Update records the latest exchange.
func (m *Memory) Update(prompt, response string) {
	m.mu.Lock()
	m.last = Exchange{Prompt: prompt, Response: response}
	m.mu.Unlock()
}

// Last returns the latest exchange.
func (m *Memory) Last() Exchange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Mentioned returns the surfaced names, lowercased and sorted.
func (m *Memory) Mentioned() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.mentioned))
	for name := range m.mentioned {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Reset clears all state.
func (m *Memory) Reset() {
	m.mu.Lock()
	m.mentioned = make(map[string]struct{})
	m.last = Exchange{}
	m.mu.Unlock()
}
