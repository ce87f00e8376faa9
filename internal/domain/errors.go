package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures by how far they reach.
type ErrorKind string

const (
	// KindDocument fails a single document; batch callers move on.
	KindDocument ErrorKind = "document"
	// KindStore means the vector collection is unusable.
	KindStore     ErrorKind = "store"
	KindEmbedding ErrorKind = "embedding"
	KindConfig    ErrorKind = "config"
)

// Error is a classified error with context.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified error.
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func DocumentError(message string, err error) *Error {
	return NewError(KindDocument, message, err)
}

func StoreError(message string, err error) *Error {
	return NewError(KindStore, message, err)
}

func EmbeddingError(message string, err error) *Error {
	return NewError(KindEmbedding, message, err)
}

func ConfigError(message string, err error) *Error {
	return NewError(KindConfig, message, err)
}

// IsKind reports whether any error in err's chain is an *Error of kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}
