// Package service runs the per-session chat pipeline:
// retrieve, answer, then remember the exchange.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/oklog/ulid/v2"

	"groundchat/internal/conversation"
	"groundchat/internal/domain"
	"groundchat/internal/textutil"
)

// Retriever finds the passages relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.SearchResult, error)
}

// Answerer produces a grounded answer from retrieved passages and history.
type Answerer interface {
	Answer(ctx context.Context, query string, retrieved []domain.SearchResult, history []domain.Turn) (domain.Answer, error)
}

// Options configures a RAGService.
type Options struct {
	TopK             int
	MemoryTokenLimit int
}

type session struct {
	mu     sync.Mutex
	memory *conversation.Memory
}

// RAGService answers chat messages. Each session has its own memory and
// handles one message at a time; sessions share the read-only index.
type RAGService struct {
	retriever Retriever
	answerer  Answerer
	opts      Options
	logger    *log.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

func NewRAGService(retriever Retriever, answerer Answerer, opts Options, logger *log.Logger) *RAGService {
	return &RAGService{
		retriever: retriever,
		answerer:  answerer,
		opts:      opts,
		logger:    logger,
		sessions:  make(map[string]*session),
	}
}

// NewSession registers an empty conversation and returns its id.
func (s *RAGService) NewSession() string {
	id := ulid.Make().String()
	s.session(id)
	return id
}

// EndSession forgets the conversation with the given id.
func (s *RAGService) EndSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// History returns the remembered turns of a session, oldest first.
func (s *RAGService) History(id string) []domain.Turn {
	return s.session(id).memory.Snapshot()
}

// session returns the session for id, creating it on first use.
func (s *RAGService) session(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{memory: conversation.New(s.opts.MemoryTokenLimit)}
		s.sessions[id] = sess
	}
	return sess
}

// Ask answers question within the session. Memory is only updated after a
// successful answer, so a failed turn leaves no trace.
func (s *RAGService) Ask(ctx context.Context, sessionID, question string) (domain.Answer, error) {
	sess := s.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	start := time.Now()
	retrieved, err := s.retriever.Retrieve(ctx, question, s.opts.TopK)
	if err != nil {
		return domain.Answer{}, domain.Wrap("retrieve", err)
	}
	ans, err := s.answerer.Answer(ctx, question, retrieved, sess.memory.Snapshot())
	if err != nil {
		return domain.Answer{}, domain.Wrap("answer", err)
	}
	sess.memory.Append(domain.UserTurn(question), domain.AssistantTurn(ans.Text))

	s.logger.Info("answered", "session", sessionID, "grounded", ans.Grounded, "sources", len(ans.Sources),
		"support", ans.Support, "memory_turns", sess.memory.Len(), "elapsed", time.Since(start))
	return ans, nil
}

// SendMessage is the chat front end entry point. On success it returns
// history extended with the user turn and the assistant's displayed answer,
// plus an empty string for the cleared input box. On failure history is
// returned unchanged along with userText so the input can be retried.
func (s *RAGService) SendMessage(ctx context.Context, sessionID, userText string, history []domain.Turn) ([]domain.Turn, string, error) {
	if textutil.IsBlank(userText) {
		return history, "", nil
	}
	ans, err := s.Ask(ctx, sessionID, userText)
	if err != nil {
		return history, userText, err
	}
	updated := make([]domain.Turn, 0, len(history)+2)
	updated = append(updated, history...)
	updated = append(updated, domain.UserTurn(userText), domain.AssistantTurn(ans.Display()))
	return updated, "", nil
}
