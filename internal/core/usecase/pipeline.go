package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-qa/internal/core/domain"
	"github.com/kirillkom/knowledge-qa/internal/core/ports"
)

type PipelineConfig struct {
	SemanticWeight float64
	LexicalWeight  float64

	// CandidateLimit is the per-source fetch size; fusion sees up to twice
	// this many candidates before the result is trimmed to the caller's topK.
	CandidateLimit int
	RerankTopN     int
	ClassifyTopK   int
	DomainMinHits  float64

	AdapterTimeout time.Duration
	RerankTimeout  time.Duration
}

func (c PipelineConfig) normalize() PipelineConfig {
	out := c
	if out.SemanticWeight <= 0 && out.LexicalWeight <= 0 {
		weights := defaultFusionWeights()
		out.SemanticWeight = weights.Semantic
		out.LexicalWeight = weights.Lexical
	}
	if out.CandidateLimit <= 0 {
		out.CandidateLimit = 30
	}
	if out.RerankTopN <= 0 {
		out.RerankTopN = 20
	}
	if out.ClassifyTopK <= 0 {
		out.ClassifyTopK = 5
	}
	if out.AdapterTimeout <= 0 {
		out.AdapterTimeout = 10 * time.Second
	}
	if out.RerankTimeout <= 0 {
		out.RerankTimeout = 10 * time.Second
	}
	return out
}

// RetrievalPipeline runs one query end to end: concurrent semantic+lexical
// fan-out, score fusion, optional rerank, domain classification, and prompt
// assembly. Each call owns its working set; there is no cross-query state.
type RetrievalPipeline struct {
	semantic   ports.SemanticSearcher
	lexical    ports.LexicalSearcher
	reranker   ports.Reranker
	generator  ports.AnswerGenerator
	classifier *DomainClassifier
	prompts    *PromptLibrary
	cfg        PipelineConfig
}

func NewRetrievalPipeline(
	semantic ports.SemanticSearcher,
	lexical ports.LexicalSearcher,
	reranker ports.Reranker,
	generator ports.AnswerGenerator,
	prompts *PromptLibrary,
	cfg PipelineConfig,
) *RetrievalPipeline {
	cfg = cfg.normalize()
	return &RetrievalPipeline{
		semantic:   semantic,
		lexical:    lexical,
		reranker:   reranker,
		generator:  generator,
		classifier: NewDomainClassifier(cfg.DomainMinHits, cfg.ClassifyTopK),
		prompts:    prompts,
		cfg:        cfg,
	}
}

type sourceResult struct {
	source     domain.SourceKind
	candidates []domain.Candidate
	err        error
	elapsed    time.Duration
}

func (uc *RetrievalPipeline) Execute(
	ctx context.Context,
	question string,
	topK int,
	useReranker bool,
	filter domain.SearchFilter,
) (*domain.PipelineResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "execute query", errors.New("empty question"))
	}
	if topK <= 0 {
		topK = 5
	}
	fetchLimit := uc.cfg.CandidateLimit
	if fetchLimit < topK {
		fetchLimit = topK
	}

	// Buffered channel: a straggler finishing after the caller cancels writes
	// into the buffer and is garbage collected, never blocked.
	results := make(chan sourceResult, 2)
	fetch := func(source domain.SourceKind, search func(context.Context) ([]domain.Candidate, error)) {
		fetchCtx, cancel := context.WithTimeout(ctx, uc.cfg.AdapterTimeout)
		defer cancel()
		start := time.Now()
		candidates, err := search(fetchCtx)
		results <- sourceResult{
			source:     source,
			candidates: candidates,
			err:        err,
			elapsed:    time.Since(start),
		}
	}

	go fetch(domain.SourceSemantic, func(c context.Context) ([]domain.Candidate, error) {
		return uc.semantic.SearchSemantic(c, question, fetchLimit, filter)
	})
	go fetch(domain.SourceLexical, func(c context.Context) ([]domain.Candidate, error) {
		return uc.lexical.SearchLexical(c, question, fetchLimit, filter)
	})

	var (
		semantic, lexical []domain.Candidate
		semErr, lexErr    error
		timings           domain.PipelineTimings
	)
	for i := 0; i < 2; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r := <-results:
			ms := float64(r.elapsed.Microseconds()) / 1000.0
			if r.source == domain.SourceSemantic {
				semantic, semErr = r.candidates, r.err
				timings.SemanticMs = ms
			} else {
				lexical, lexErr = r.candidates, r.err
				timings.LexicalMs = ms
			}
		}
	}

	if semErr != nil && lexErr != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, domain.WrapError(
			domain.ErrRetrievalUnavailable,
			"hybrid retrieval",
			errors.Join(semErr, lexErr),
		)
	}

	var degraded domain.SourceKind
	if semErr != nil {
		degraded = domain.SourceSemantic
		semantic = nil
	}
	if lexErr != nil {
		degraded = domain.SourceLexical
		lexical = nil
	}

	fused := fuseCandidates(semantic, lexical, fusionWeights{
		Semantic: uc.cfg.SemanticWeight,
		Lexical:  uc.cfg.LexicalWeight,
	})

	rerankerUsed := false
	if useReranker && len(fused) > 0 {
		rerankCtx, cancel := context.WithTimeout(ctx, uc.cfg.RerankTimeout)
		start := time.Now()
		fused, rerankerUsed = rerankCandidates(rerankCtx, uc.reranker, question, fused, uc.cfg.RerankTopN)
		cancel()
		timings.RerankMs = float64(time.Since(start).Microseconds()) / 1000.0
	}

	ranked := trimCandidates(fused, topK)
	label := uc.classifier.Classify(ranked)
	prompt, _ := assemblePrompt(uc.prompts.StrategyFor(label.Domain), question, ranked)

	return &domain.PipelineResult{
		Prompt:         prompt,
		RankedSources:  ranked,
		Domain:         label,
		RerankerUsed:   rerankerUsed,
		DegradedSource: degraded,
		Timings:        timings,
	}, nil
}

func (uc *RetrievalPipeline) Answer(
	ctx context.Context,
	question string,
	topK int,
	useReranker bool,
	filter domain.SearchFilter,
) (*domain.PipelineResult, error) {
	result, err := uc.Execute(ctx, question, topK, useReranker, filter)
	if err != nil {
		return nil, err
	}

	answer, err := uc.generator.GenerateFromPrompt(ctx, result.Prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	result.Answer = answer
	return result, nil
}
