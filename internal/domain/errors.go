package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmbedding         = errors.New("embedding failed")
	ErrDuplicateID       = errors.New("duplicate chunk id")
	ErrEmptyIndex        = errors.New("vector index is empty")
	ErrInvalidK          = errors.New("k must be at least 1")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrEmptyCorpus       = errors.New("corpus produced no chunks")
	ErrLLMTimeout        = errors.New("language model timed out")
	ErrLLMUnavailable    = errors.New("language model unavailable")
	ErrLLMRequest        = errors.New("language model rejected request")
)

// OpError records the pipeline stage an error came from.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Wrap annotates err with op. A nil err stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}

// IsTransient reports whether err means the model could not be asked, as
// opposed to the model answering. Callers must not present these as a refusal.
func IsTransient(err error) bool {
	return errors.Is(err, ErrLLMTimeout) || errors.Is(err, ErrLLMUnavailable)
}
