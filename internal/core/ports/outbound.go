package ports

import (
	"context"
	"io"

	"github.com/kirillkom/knowledge-qa/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveClassification(ctx context.Context, id string, cls domain.Classification) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// DocumentClassifier classifies extracted text at ingestion time.
type DocumentClassifier interface {
	Classify(ctx context.Context, text string) (domain.Classification, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits text into semantically usable chunks.
type Chunker interface {
	Split(text string) []string
}

// ChunkIndexer indexes processed chunks for retrieval.
type ChunkIndexer interface {
	IndexChunks(ctx context.Context, doc *domain.Document, chunks []string, vectors [][]float32) error
}

// SemanticSearcher retrieves candidates by embedding similarity. Failures and
// timeouts surface as errors, distinguishable from an empty candidate list.
type SemanticSearcher interface {
	SearchSemantic(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.Candidate, error)
}

// LexicalSearcher retrieves candidates by keyword/term matching under the same
// error contract as SemanticSearcher.
type LexicalSearcher interface {
	SearchLexical(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.Candidate, error)
}

// Reranker scores (query, text) pairs with an external relevance model.
// ScoreBatch returns one score per input text, in input order. The disabled
// variant returns domain.ErrRerankerUnavailable.
type Reranker interface {
	ScoreBatch(ctx context.Context, query string, texts []string) ([]float64, error)
}

// AnswerGenerator creates the final user-facing answer from an assembled prompt.
type AnswerGenerator interface {
	GenerateFromPrompt(ctx context.Context, prompt string) (string, error)
}
