// Package answer builds grounded prompts and turns model output into answers.
package answer

import (
	"fmt"
	"strings"

	"groundchat/internal/domain"
	"groundchat/internal/textutil"
)

// DefaultDomain names the assistant's subject when none is configured.
const DefaultDomain = "telecom customer support"

// Instruction returns the system instruction for a domain.
func Instruction(subject string) string {
	if strings.TrimSpace(subject) == "" {
		subject = DefaultDomain
	}
	return fmt.Sprintf(`You are a %s assistant.

You MUST answer using ONLY the provided context.
You are NOT allowed to use any external or general knowledge.

If the answer is NOT explicitly found in the context, reply EXACTLY with:
%q

Do not explain, guess, hedge, or add extra details.`, subject, domain.RefusalSentence)
}

// PromptInput is everything a prompt is assembled from.
type PromptInput struct {
	Instruction string
	// Chunks are ordered best first.
	Chunks []domain.SearchResult
	// History is ordered oldest first.
	History  []domain.Turn
	Question string
	// Budget is the token allowance for the whole prompt; 0 means unbounded.
	Budget int
}

// PromptStats reports what survived budget trimming.
type PromptStats struct {
	ChunksUsed    int
	TurnsUsed     int
	TurnsDropped  int
	ChunksDropped int
	Tokens        int
}

// Truncated reports whether anything was dropped to fit the budget.
func (s PromptStats) Truncated() bool { return s.TurnsDropped > 0 || s.ChunksDropped > 0 }

// BuildPrompt renders in into the instruction as the system part and the
// context, history and question as the user part. When the estimate
// exceeds the budget the oldest history turns are dropped first, then the
// lowest-ranked chunks. The instruction and question are never dropped.
func BuildPrompt(in PromptInput) (domain.Prompt, PromptStats) {
	chunks := in.Chunks
	history := in.History
	prompt := render(in.Instruction, chunks, history, in.Question)
	for in.Budget > 0 && textutil.EstimateTokens(prompt.String()) > in.Budget {
		switch {
		case len(history) > 0:
			history = history[1:]
		case len(chunks) > 0:
			chunks = chunks[:len(chunks)-1]
		default:
			return prompt, stats(in, chunks, history, prompt)
		}
		prompt = render(in.Instruction, chunks, history, in.Question)
	}
	return prompt, stats(in, chunks, history, prompt)
}

func stats(in PromptInput, chunks []domain.SearchResult, history []domain.Turn, prompt domain.Prompt) PromptStats {
	return PromptStats{
		ChunksUsed:    len(chunks),
		TurnsUsed:     len(history),
		ChunksDropped: len(in.Chunks) - len(chunks),
		TurnsDropped:  len(in.History) - len(history),
		Tokens:        textutil.EstimateTokens(prompt.String()),
	}
}

func render(instruction string, chunks []domain.SearchResult, history []domain.Turn, question string) domain.Prompt {
	var b strings.Builder
	b.WriteString("Context:\n")
	if len(chunks) == 0 {
		b.WriteString("(no context)\n")
	}
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%d] (source: %s)\n%s\n", i+1, c.Chunk.Source, strings.TrimSpace(c.Chunk.Text))
	}
	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, t := range history {
			fmt.Fprintf(&b, "%s: %s\n", speaker(t.Role), strings.TrimSpace(t.Content))
		}
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\nAnswer:")
	return domain.Prompt{System: strings.TrimSpace(instruction), User: b.String()}
}

func speaker(r domain.Role) string {
	if r == domain.RoleAssistant {
		return "Assistant"
	}
	return "User"
}
