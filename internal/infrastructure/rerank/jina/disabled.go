package jina

import (
	"context"
	"errors"

	"github.com/kirillkom/knowledge-qa/internal/core/domain"
)

// Disabled stands in when no rerank endpoint is configured. Every call fails
// with ErrRerankerUnavailable, which the pipeline turns into fused-order
// results rather than a request failure.
type Disabled struct{}

func NewDisabled() Disabled { return Disabled{} }

func (Disabled) ScoreBatch(context.Context, string, []string) ([]float64, error) {
	return nil, domain.WrapError(domain.ErrRerankerUnavailable, "rerank", errors.New("no rerank endpoint configured"))
}
