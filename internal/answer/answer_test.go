package answer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groundchat/internal/domain"
	"groundchat/internal/textutil"
)

// stubLLM records the prompt and replies with a fixed text or error.
type stubLLM struct {
	reply  string
	err    error
	prompt domain.Prompt
	calls  int
}

func (s *stubLLM) Complete(_ context.Context, prompt domain.Prompt) (string, error) {
	s.calls++
	s.prompt = prompt
	return s.reply, s.err
}

// refusingLLM refuses unless the prompt carries at least one passage.
type refusingLLM struct{ fact string }

func (r refusingLLM) Complete(_ context.Context, prompt domain.Prompt) (string, error) {
	if strings.Contains(prompt.User, "(no context)") || !strings.Contains(prompt.User, r.fact) {
		return domain.RefusalSentence, nil
	}
	return r.fact, nil
}

func result(source, text string) domain.SearchResult {
	return domain.SearchResult{Chunk: domain.Chunk{ID: source, Source: source, Text: text}, Score: 1}
}

var quiet = log.New(io.Discard)

func TestInstruction(t *testing.T) {
	in := Instruction("")
	assert.Contains(t, in, "telecom customer support")
	assert.Contains(t, in, `"I do not have this information in my data."`)
	assert.Contains(t, Instruction("banking"), "You are a banking assistant.")
}

func TestBuildPrompt_Layout(t *testing.T) {
	prompt, st := BuildPrompt(PromptInput{
		Instruction: "INSTR",
		Chunks:      []domain.SearchResult{result("plans.txt", "Plan A costs $10/month."), result("roaming.txt", "Roaming is free.")},
		History:     []domain.Turn{domain.UserTurn("hi"), domain.AssistantTurn("hello")},
		Question:    "How much is Plan A?",
	})
	want := "Context:\n" +
		"[1] (source: plans.txt)\nPlan A costs $10/month.\n" +
		"\n[2] (source: roaming.txt)\nRoaming is free.\n" +
		"\nConversation so far:\nUser: hi\nAssistant: hello\n" +
		"\nQuestion: How much is Plan A?\nAnswer:"
	assert.Equal(t, "INSTR", prompt.System)
	assert.Equal(t, want, prompt.User)
	assert.Equal(t, "INSTR\n\n"+want, prompt.String())
	assert.Equal(t, 2, st.ChunksUsed)
	assert.Equal(t, 2, st.TurnsUsed)
	assert.False(t, st.Truncated())
	assert.Equal(t, textutil.EstimateTokens(prompt.String()), st.Tokens)
}

func TestBuildPrompt_EmptyRetrievalHasNoChunkEntries(t *testing.T) {
	prompt, st := BuildPrompt(PromptInput{Instruction: "INSTR", Question: "What is the capital of France?"})
	assert.Contains(t, prompt.User, "Context:\n(no context)\n")
	assert.NotContains(t, prompt.User, "[1]")
	assert.NotContains(t, prompt.User, "(source:")
	assert.NotContains(t, prompt.User, "Conversation so far:")
	assert.Equal(t, 0, st.ChunksUsed)
}

func TestBuildPrompt_DropsOldestTurnsBeforeChunks(t *testing.T) {
	var history []domain.Turn
	for i := 0; i < 10; i++ {
		history = append(history, domain.UserTurn(fmt.Sprintf("question number %d %s", i, strings.Repeat("x", 40))))
	}
	in := PromptInput{
		Instruction: "INSTR",
		Chunks:      []domain.SearchResult{result("a", "alpha passage"), result("b", "beta passage")},
		History:     history,
		Question:    "q?",
	}
	full, _ := BuildPrompt(in)
	in.Budget = textutil.EstimateTokens(full.String()) - 20

	prompt, st := BuildPrompt(in)
	assert.LessOrEqual(t, st.Tokens, in.Budget)
	assert.Equal(t, 2, st.ChunksUsed, "chunks survive while turns remain")
	assert.Greater(t, st.TurnsDropped, 0)
	assert.NotContains(t, prompt.User, "question number 0 ")
	assert.Contains(t, prompt.User, "question number 9 ")
}

func TestBuildPrompt_DropsLowestRankedChunks(t *testing.T) {
	in := PromptInput{
		Instruction: "INSTR",
		Chunks: []domain.SearchResult{
			result("a", strings.Repeat("alpha ", 20)),
			result("b", strings.Repeat("beta ", 20)),
			result("c", strings.Repeat("gamma ", 20)),
		},
		History:  []domain.Turn{domain.UserTurn("earlier")},
		Question: "q?",
	}
	withOne, _ := BuildPrompt(PromptInput{Instruction: in.Instruction, Chunks: in.Chunks[:1], Question: in.Question})
	in.Budget = textutil.EstimateTokens(withOne.String())

	prompt, st := BuildPrompt(in)
	assert.Equal(t, withOne, prompt)
	assert.Equal(t, 1, st.ChunksUsed)
	assert.Equal(t, 0, st.TurnsUsed)
	assert.Equal(t, 2, st.ChunksDropped)
	assert.True(t, st.Truncated())
}

func TestBuildPrompt_KeepsQuestionWhenBudgetTooSmall(t *testing.T) {
	prompt, st := BuildPrompt(PromptInput{
		Instruction: "INSTR",
		Chunks:      []domain.SearchResult{result("a", "alpha")},
		Question:    "the question",
		Budget:      1,
	})
	assert.Equal(t, "INSTR", prompt.System)
	assert.Contains(t, prompt.User, "Question: the question")
	assert.Equal(t, 0, st.ChunksUsed)
}

func TestAnswer_GroundedWhenContextHasFact(t *testing.T) {
	llm := &stubLLM{reply: "$10/month\n"}
	a := New(llm, Options{MaxOutputTokens: 256, ContextWindowTokens: 4096}, quiet)

	retrieved := []domain.SearchResult{result("plans.txt", "Plan A costs $10/month and includes 5GB data.")}
	ans, err := a.Answer(context.Background(), "How much does Plan A cost?", retrieved, nil)
	require.NoError(t, err)

	assert.True(t, ans.Grounded)
	assert.Equal(t, "$10/month", ans.Text)
	assert.Equal(t, "$10/month\n\n"+domain.GroundedMarker, ans.Display())
	assert.Equal(t, retrieved, ans.Sources)
	assert.Greater(t, ans.Support, 0.0)
	assert.Contains(t, llm.prompt.User, "Plan A costs $10/month")
	assert.Contains(t, llm.prompt.System, "You MUST answer using ONLY the provided context.")
}

func TestAnswer_EmptyRetrievalRefuses(t *testing.T) {
	a := New(refusingLLM{fact: "Plan A costs"}, Options{}, quiet)

	ans, err := a.Answer(context.Background(), "What is the capital of France?", nil, nil)
	require.NoError(t, err)
	assert.False(t, ans.Grounded)
	assert.Equal(t, domain.RefusalSentence, ans.Text)
	assert.Equal(t, domain.RefusalSentence+"\n\n"+domain.NotFoundMarker, ans.Display())
	assert.Empty(t, ans.Sources)
	assert.Zero(t, ans.Support)
}

func TestAnswer_PromptCarriesHistory(t *testing.T) {
	llm := &stubLLM{reply: "yes"}
	a := New(llm, Options{}, quiet)

	history := []domain.Turn{domain.UserTurn("How much does Plan A cost?"), domain.AssistantTurn("$10/month")}
	_, err := a.Answer(context.Background(), "Does it include data?", []domain.SearchResult{result("p", "Plan A includes 5GB data.")}, history)
	require.NoError(t, err)
	assert.Contains(t, llm.prompt.User, "User: How much does Plan A cost?\nAssistant: $10/month\n")
}

func TestAnswer_LLMErrorIsReturned(t *testing.T) {
	llm := &stubLLM{err: fmt.Errorf("call: %w", domain.ErrLLMTimeout)}
	a := New(llm, Options{}, quiet)

	_, err := a.Answer(context.Background(), "q", nil, nil)
	assert.ErrorIs(t, err, domain.ErrLLMTimeout)
	assert.True(t, domain.IsTransient(err))
}

func TestAnswer_LowSupportIsLoggedNotRefused(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)
	a := New(&stubLLM{reply: "Paris is the capital of France."}, Options{SupportWarnThreshold: 0.5}, logger)

	ans, err := a.Answer(context.Background(), "capital?", []domain.SearchResult{result("p", "Plan A costs $10/month.")}, nil)
	require.NoError(t, err)
	assert.True(t, ans.Grounded)
	assert.Zero(t, ans.Support)
	assert.Contains(t, buf.String(), "little overlap")
}

func TestSupport(t *testing.T) {
	passages := []domain.SearchResult{result("p", "Plan A costs $10/month.")}
	assert.InDelta(t, 1.0, Support("plan costs 10 month", passages), 1e-9)
	assert.Zero(t, Support("unrelated words", passages))
}
