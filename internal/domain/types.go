package domain

import "strings"

// Document represents a single text file loaded into the system.
type Document struct {
	ID      string
	Source  string
	Content string
}

// Chunk is a bounded span of a document, embedded and indexed as one unit.
// It is not modified after ingestion.
type Chunk struct {
	ID         string
	DocumentID string
	Source     string
	Index      int
	Text       string
	Vector     []float64
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation. The JSON shape matches what chat
// front ends expect: {"role": ..., "content": ...}.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func UserTurn(content string) Turn      { return Turn{Role: RoleUser, Content: content} }
func AssistantTurn(content string) Turn { return Turn{Role: RoleAssistant, Content: content} }

// Prompt is what the model is given: System carries the standing
// instruction, User the context, history and question.
type Prompt struct {
	System string
	User   string
}

// String joins both parts, for token estimates and logs.
func (p Prompt) String() string {
	if p.System == "" {
		return p.User
	}
	return p.System + "\n\n" + p.User
}

// RefusalSentence is the exact reply the model must give when the supplied
// context does not contain the answer.
const RefusalSentence = "I do not have this information in my data."

const (
	NotFoundMarker = "🔒 Source: Not found in documents"
	GroundedMarker = "✅ Source: Internal documents"
)

// Answer is the outcome of one grounded question.
type Answer struct {
	// Text is the trimmed model output without any provenance suffix.
	Text string
	// Grounded is false iff Text is exactly RefusalSentence.
	Grounded bool
	// Support is the token overlap between Text and the retrieved passages.
	// Informational only.
	Support float64
	Sources []SearchResult
}

// NewAnswer trims raw model output and derives the grounding flag.
func NewAnswer(raw string) Answer {
	text := strings.TrimSpace(raw)
	return Answer{Text: text, Grounded: text != RefusalSentence}
}

// Marker returns the provenance marker for the answer.
func (a Answer) Marker() string {
	if a.Grounded {
		return GroundedMarker
	}
	return NotFoundMarker
}

// Display returns the answer text followed by its provenance marker.
func (a Answer) Display() string {
	return a.Text + "\n\n" + a.Marker()
}
