// Package bootstrap wires configuration, infrastructure and use cases into
// the two process entry points (api and worker).
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/knowledge-qa/internal/config"
	"github.com/kirillkom/knowledge-qa/internal/core/ports"
	"github.com/kirillkom/knowledge-qa/internal/core/usecase"
	"github.com/kirillkom/knowledge-qa/internal/infrastructure/chunking"
	"github.com/kirillkom/knowledge-qa/internal/infrastructure/extractor"
	"github.com/kirillkom/knowledge-qa/internal/infrastructure/extractor/pdfdoc"
	"github.com/kirillkom/knowledge-qa/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/knowledge-qa/internal/infrastructure/extractor/xlsxdoc"
	"github.com/kirillkom/knowledge-qa/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/knowledge-qa/internal/infrastructure/queue/nats"
	"github.com/kirillkom/knowledge-qa/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/knowledge-qa/internal/infrastructure/rerank/jina"
	"github.com/kirillkom/knowledge-qa/internal/infrastructure/resilience"
	"github.com/kirillkom/knowledge-qa/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/knowledge-qa/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/knowledge-qa/internal/observability/logging"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue     ports.MessageQueue
	Repo      ports.DocumentRepository
	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	Pipeline  ports.QueryPipeline

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	exec := resilience.NewExecutor(resilience.DefaultPolicy())

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{Executor: exec})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, exec)
	classifier := ollama.NewClassifier(ollamaClient)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	vectorClient := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, exec)
	semantic := qdrant.NewSemanticSearcher(vectorClient, embedder)
	lexical := qdrant.NewLexicalSearcher(vectorClient)

	var reranker ports.Reranker
	if cfg.RerankURL != "" {
		reranker = jina.NewScorer(cfg.RerankURL, cfg.RerankModel)
	} else {
		reranker = jina.NewDisabled()
	}

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	extract := extractor.NewDispatcher(
		plaintext.NewExtractor(storage),
		pdfdoc.NewExtractor(storage),
		xlsxdoc.NewExtractor(storage),
	)

	overrides, err := config.LoadPromptStrategies(cfg.PromptStrategiesPath)
	if err != nil {
		return nil, fmt.Errorf("load prompt strategies: %w", err)
	}
	prompts := usecase.NewPromptLibrary(overrides, cfg.RAGMaxContextChars)

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, extract, classifier, chunker, embedder, vectorClient)
	pipeline := usecase.NewRetrievalPipeline(semantic, lexical, reranker, generator, prompts, usecase.PipelineConfig{
		SemanticWeight: cfg.RAGSemanticWeight,
		LexicalWeight:  cfg.RAGLexicalWeight,
		CandidateLimit: cfg.RAGHybridCandidates,
		RerankTopN:     cfg.RAGRerankTopN,
		ClassifyTopK:   cfg.RAGClassifyTopK,
		DomainMinHits:  cfg.RAGDomainMinHits,
		AdapterTimeout: time.Duration(cfg.RAGAdapterTimeoutMs) * time.Millisecond,
		RerankTimeout:  time.Duration(cfg.RAGRerankTimeoutMs) * time.Millisecond,
	})

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:     queue,
		Repo:      repo,
		IngestUC:  ingestUC,
		ProcessUC: processUC,
		Pipeline:  pipeline,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
