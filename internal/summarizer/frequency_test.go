package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"groundchat/internal/domain"
)

func TestOverview_PicksFrequentSentencesInOrder(t *testing.T) {
	docs := []domain.Document{
		{Content: "Plan A costs $10/month. Plan A includes data. The office has a plant."},
		{Content: "Plan B costs $20/month."},
	}
	got := Overview(docs, 2)
	assert.Equal(t, "Plan A costs $10/month. Plan B costs $20/month.", got)
}

func TestOverview_Limits(t *testing.T) {
	docs := []domain.Document{{Content: "One sentence only"}}
	assert.Equal(t, "One sentence only", Overview(docs, 3))
	assert.Equal(t, "", Overview(docs, 0))
	assert.Equal(t, "", Overview([]domain.Document{{Content: "  \n"}}, 2))
	assert.Equal(t, "", Overview(nil, 2))
}

func TestOverview_CollapsesWhitespace(t *testing.T) {
	docs := []domain.Document{{Content: "Roaming is\n   free.\n"}}
	assert.Equal(t, "Roaming is free.", Overview(docs, 1))
}
