// Package conversation keeps the recent turns of one chat session within a
// token budget.
package conversation

import (
	"sync"

	"groundchat/internal/domain"
	"groundchat/internal/textutil"
)

// turnOverhead approximates the role and separator tokens each turn costs.
const turnOverhead = 4

// DefaultTokenLimit is the budget used when New is given a non-positive limit.
const DefaultTokenLimit = 3000

// TurnTokens estimates the budget cost of one turn.
func TurnTokens(t domain.Turn) int {
	return textutil.EstimateTokens(t.Content) + turnOverhead
}

// Memory is a FIFO of turns whose estimated size never exceeds its limit.
// The oldest turns are evicted first.
type Memory struct {
	mu     sync.Mutex
	limit  int
	turns  []domain.Turn
	tokens int
}

func New(tokenLimit int) *Memory {
	if tokenLimit <= 0 {
		tokenLimit = DefaultTokenLimit
	}
	return &Memory{limit: tokenLimit}
}

// Append adds turns in order and then evicts from the front until the total
// fits. A turn larger than the whole budget is evicted as well.
func (m *Memory) Append(turns ...domain.Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range turns {
		m.turns = append(m.turns, t)
		m.tokens += TurnTokens(t)
	}
	drop := 0
	for m.tokens > m.limit && drop < len(m.turns) {
		m.tokens -= TurnTokens(m.turns[drop])
		drop++
	}
	if drop > 0 {
		m.turns = append([]domain.Turn(nil), m.turns[drop:]...)
	}
}

// Snapshot returns a copy of the retained turns, oldest first.
func (m *Memory) Snapshot() []domain.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}

// Tokens returns the estimated size of the retained turns.
func (m *Memory) Tokens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens
}

func (m *Memory) Limit() int { return m.limit }

func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = nil
	m.tokens = 0
}
