// Package summarizer produces a short extractive overview of a corpus.
package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"groundchat/internal/domain"
	"groundchat/internal/textutil"
)

var sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)

// Overview picks the maxSentences sentences whose content words are most
// frequent across the documents and returns them in corpus order.
func Overview(docs []domain.Document, maxSentences int) string {
	if maxSentences <= 0 {
		return ""
	}
	var sentences []string
	for _, d := range docs {
		found := sentenceRe.FindAllString(d.Content, -1)
		if len(found) == 0 && !textutil.IsBlank(d.Content) {
			found = []string{d.Content}
		}
		for _, s := range found {
			if s = strings.Join(strings.Fields(s), " "); s != "" {
				sentences = append(sentences, s)
			}
		}
	}
	if len(sentences) == 0 {
		return ""
	}

	tokens := make([][]string, len(sentences))
	freq := map[string]float64{}
	maxF := 0.0
	for i, s := range sentences {
		tokens[i] = textutil.ContentTokens(s)
		for _, t := range tokens[i] {
			freq[t]++
			maxF = math.Max(maxF, freq[t])
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(sentences))
	for i, toks := range tokens {
		sum := 0.0
		for _, t := range toks {
			sum += freq[t] / maxF
		}
		if len(toks) > 0 {
			// damp long sentences
			sum /= math.Sqrt(float64(len(toks)))
		}
		scores[i] = scored{i, sum}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if maxSentences > len(scores) {
		maxSentences = len(scores)
	}

	selected := make([]int, maxSentences)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, len(selected))
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " ")
}
