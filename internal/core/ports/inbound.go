package ports

import (
	"context"
	"io"

	"github.com/kirillkom/knowledge-qa/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// QueryPipeline is the inbound contract for retrieval-fusion query execution.
// Execute builds the generation-ready prompt and ranked sources; Answer
// additionally runs the answer generator over the assembled prompt.
type QueryPipeline interface {
	Execute(ctx context.Context, question string, topK int, useReranker bool, filter domain.SearchFilter) (*domain.PipelineResult, error)
	Answer(ctx context.Context, question string, topK int, useReranker bool, filter domain.SearchFilter) (*domain.PipelineResult, error)
}
