package qdrant

import (
	"context"
	"fmt"

	"github.com/kirillkom/knowledge-qa/internal/core/domain"
	"github.com/kirillkom/knowledge-qa/internal/core/ports"
)

// SemanticSearcher embeds the query text and searches the dense vector.
type SemanticSearcher struct {
	client   *Client
	embedder ports.Embedder
}

func NewSemanticSearcher(client *Client, embedder ports.Embedder) *SemanticSearcher {
	return &SemanticSearcher{client: client, embedder: embedder}
}

func (s *SemanticSearcher) SearchSemantic(
	ctx context.Context,
	query string,
	limit int,
	filter domain.SearchFilter,
) ([]domain.Candidate, error) {
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.client.SearchDense(ctx, vector, limit, filter)
}

// LexicalSearcher searches the sparse term vector directly from query text.
type LexicalSearcher struct {
	client *Client
}

func NewLexicalSearcher(client *Client) *LexicalSearcher {
	return &LexicalSearcher{client: client}
}

func (s *LexicalSearcher) SearchLexical(
	ctx context.Context,
	query string,
	limit int,
	filter domain.SearchFilter,
) ([]domain.Candidate, error) {
	return s.client.SearchSparse(ctx, query, limit, filter)
}
