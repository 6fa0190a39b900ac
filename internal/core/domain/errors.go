package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")

	// ErrRetrievalUnavailable means both search sources failed; fatal for the query.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrRerankerUnavailable is returned by the disabled reranker variant so that
	// absence is distinguishable from a genuine relevance score of zero.
	ErrRerankerUnavailable = errors.New("reranker unavailable")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
