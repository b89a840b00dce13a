package conversation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundchat/internal/domain"
)

func TestTurnTokens(t *testing.T) {
	assert.Equal(t, 4, TurnTokens(domain.UserTurn("")))
	assert.Equal(t, 5, TurnTokens(domain.UserTurn("abcd")))
	assert.Equal(t, 6, TurnTokens(domain.UserTurn("abcde")))
}

func TestMemory_KeepsEverythingUnderBudget(t *testing.T) {
	m := New(100)
	m.Append(domain.UserTurn("hello"), domain.AssistantTurn("hi there"))

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, []domain.Turn{domain.UserTurn("hello"), domain.AssistantTurn("hi there")}, m.Snapshot())
	assert.Equal(t, TurnTokens(domain.UserTurn("hello"))+TurnTokens(domain.AssistantTurn("hi there")), m.Tokens())
}

func TestMemory_EvictsOldestFirst(t *testing.T) {
	// each turn "xxxxxxxx" costs 2+4 = 6 tokens; a budget of 20 holds three.
	m := New(20)
	var all []domain.Turn
	for i := 0; i < 6; i++ {
		turn := domain.UserTurn(fmt.Sprintf("turn%04d", i))
		all = append(all, turn)
		m.Append(turn)

		snap := m.Snapshot()
		require.LessOrEqual(t, m.Tokens(), 20)
		assert.Equal(t, all[len(all)-len(snap):], snap, "snapshot is a suffix of the appended sequence")
	}
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, "turn0003", m.Snapshot()[0].Content)
}

func TestMemory_OversizedTurnIsEvicted(t *testing.T) {
	m := New(10)
	m.Append(domain.UserTurn("short"))
	m.Append(domain.AssistantTurn(strings.Repeat("long ", 40)))

	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, m.Tokens())
	assert.Empty(t, m.Snapshot())
}

func TestMemory_SnapshotIsACopy(t *testing.T) {
	m := New(100)
	m.Append(domain.UserTurn("a"))
	snap := m.Snapshot()
	snap[0].Content = "mutated"
	assert.Equal(t, "a", m.Snapshot()[0].Content)
}

func TestMemory_Reset(t *testing.T) {
	m := New(0)
	assert.Equal(t, DefaultTokenLimit, m.Limit())
	m.Append(domain.UserTurn("a"), domain.AssistantTurn("b"))
	m.Reset()
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, m.Tokens())
}
