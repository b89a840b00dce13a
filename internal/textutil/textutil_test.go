package textutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentTokens(t *testing.T) {
	assert.Equal(t, []string{"plan", "costs", "10", "month"}, ContentTokens("The Plan costs $10/month."))
	assert.Empty(t, ContentTokens("is the of"))
}

func TestOchiai(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "plan costs money", "money costs plan", 1},
		{"disjoint", "plan costs", "capital france", 0},
		{"half", "plan costs", "plan", 1 / math.Sqrt2},
		{"empty", "", "plan", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Ochiai(TokenSet(tt.a), TokenSet(tt.b)), 1e-9)
		})
	}
}

func TestIsBlank(t *testing.T) {
	assert.True(t, IsBlank(""))
	assert.True(t, IsBlank(" \t\n"))
	assert.False(t, IsBlank(" x "))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 1, EstimateTokens("éééé"))
}
