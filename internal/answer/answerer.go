package answer

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"

	"groundchat/internal/domain"
	"groundchat/internal/textutil"
)

// Options configures an Answerer.
type Options struct {
	Domain              string
	MaxOutputTokens     int
	ContextWindowTokens int
	// SupportWarnThreshold logs grounded answers whose token overlap with
	// the retrieved passages is below it. Zero disables the warning.
	SupportWarnThreshold float64
}

// Answerer asks the model a question constrained to retrieved passages.
type Answerer struct {
	llm         domain.LLM
	instruction string
	budget      int
	warnBelow   float64
	logger      *log.Logger
}

func New(llm domain.LLM, opts Options, logger *log.Logger) *Answerer {
	budget := opts.ContextWindowTokens - opts.MaxOutputTokens
	if opts.ContextWindowTokens <= 0 || budget < 0 {
		budget = 0
	}
	return &Answerer{
		llm:         llm,
		instruction: Instruction(opts.Domain),
		budget:      budget,
		warnBelow:   opts.SupportWarnThreshold,
		logger:      logger,
	}
}

// Answer builds the prompt, calls the model and classifies the reply.
// An empty retrieved slice is a valid input. Model failures are returned
// unchanged so callers can tell a refusal from an unreachable model.
func (a *Answerer) Answer(ctx context.Context, query string, retrieved []domain.SearchResult, history []domain.Turn) (domain.Answer, error) {
	prompt, st := BuildPrompt(PromptInput{
		Instruction: a.instruction,
		Chunks:      retrieved,
		History:     history,
		Question:    query,
		Budget:      a.budget,
	})
	if st.Truncated() {
		a.logger.Debug("prompt trimmed to budget", "budget", a.budget, "tokens", st.Tokens,
			"turns_dropped", st.TurnsDropped, "chunks_dropped", st.ChunksDropped)
	}

	raw, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		return domain.Answer{}, err
	}

	ans := domain.NewAnswer(raw)
	ans.Sources = retrieved[:st.ChunksUsed]
	if ans.Grounded {
		ans.Support = Support(ans.Text, ans.Sources)
		if a.warnBelow > 0 && ans.Support < a.warnBelow {
			a.logger.Warn("answer has little overlap with retrieved context", "support", ans.Support, "sources", len(ans.Sources))
		}
	}
	return ans, nil
}

// Support is the Ochiai overlap between the answer's content tokens and
// those of the passages.
func Support(text string, passages []domain.SearchResult) float64 {
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Chunk.Text
	}
	return textutil.Ochiai(textutil.TokenSet(text), textutil.TokenSet(strings.Join(texts, "\n")))
}
