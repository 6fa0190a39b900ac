package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/knowledge-qa/internal/core/domain"
)

type ingestFake struct {
	err error
}

func (f ingestFake) Upload(_ context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, err := io.ReadAll(body); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &domain.Document{
		ID:          "doc-1",
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: "doc-1_file.txt",
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

type pipelineFake struct {
	result      *domain.PipelineResult
	err         error
	gotTopK     int
	gotRerank   bool
	gotFilter   domain.SearchFilter
	answerCalls int
	execCalls   int
}

func (f *pipelineFake) Execute(_ context.Context, _ string, topK int, useReranker bool, filter domain.SearchFilter) (*domain.PipelineResult, error) {
	f.execCalls++
	f.gotTopK, f.gotRerank, f.gotFilter = topK, useReranker, filter
	return f.result, f.err
}

func (f *pipelineFake) Answer(_ context.Context, _ string, topK int, useReranker bool, filter domain.SearchFilter) (*domain.PipelineResult, error) {
	f.answerCalls++
	f.gotTopK, f.gotRerank, f.gotFilter = topK, useReranker, filter
	return f.result, f.err
}

type readerFake struct {
	doc *domain.Document
	err error
}

func (f readerFake) GetByID(context.Context, string) (*domain.Document, error) {
	return f.doc, f.err
}

func pipelineResultFixture() *domain.PipelineResult {
	return &domain.PipelineResult{
		Prompt: "assembled prompt",
		Answer: "the answer",
		RankedSources: []domain.FusedCandidate{
			{ID: "c1", Text: "alpha", Filename: "a.txt", FusedScore: 0.8},
		},
		Domain:       domain.DomainLabel{Domain: domain.DomainFinancial, Confidence: 0.7},
		RerankerUsed: true,
	}
}

func newTestRouter(ingest ingestFake, pipeline *pipelineFake, reader readerFake, cfg RouterConfig) http.Handler {
	return NewRouter(ingest, pipeline, reader, nil, cfg).Handler()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestRouter(ingestFake{}, &pipelineFake{}, readerFake{}, RouterConfig{})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("request id header missing")
	}
}

func TestUploadDocumentSuccess(t *testing.T) {
	handler := newTestRouter(ingestFake{}, &pipelineFake{}, readerFake{}, RouterConfig{})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "file.txt")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	var doc domain.Document
	if err := json.Unmarshal(res.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc.ID != "doc-1" || doc.Filename != "file.txt" {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestUploadDocumentRequiresMultipart(t *testing.T) {
	handler := newTestRouter(ingestFake{}, &pipelineFake{}, readerFake{}, RouterConfig{})
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", strings.NewReader("not multipart"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetDocumentNotFoundMapsTo404(t *testing.T) {
	reader := readerFake{err: domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("missing"))}
	handler := newTestRouter(ingestFake{}, &pipelineFake{}, reader, RouterConfig{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestQueryAnswerSuccess(t *testing.T) {
	pipeline := &pipelineFake{result: pipelineResultFixture()}
	handler := newTestRouter(ingestFake{}, pipeline, readerFake{}, RouterConfig{DefaultTopK: 7})

	body := `{"question":"what is revenue?","use_reranker":true,"category":"finance"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/rag/query", strings.NewReader(body))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if pipeline.answerCalls != 1 || pipeline.execCalls != 0 {
		t.Fatalf("expected Answer path, got answer=%d exec=%d", pipeline.answerCalls, pipeline.execCalls)
	}
	if pipeline.gotTopK != 7 {
		t.Fatalf("default top_k not applied: %d", pipeline.gotTopK)
	}
	if !pipeline.gotRerank || pipeline.gotFilter.Category != "finance" {
		t.Fatalf("request fields not forwarded: rerank=%v filter=%+v", pipeline.gotRerank, pipeline.gotFilter)
	}

	var result domain.PipelineResult
	if err := json.Unmarshal(res.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Answer != "the answer" || len(result.RankedSources) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestQueryPromptOnlySkipsGeneration(t *testing.T) {
	pipeline := &pipelineFake{result: pipelineResultFixture()}
	handler := newTestRouter(ingestFake{}, pipeline, readerFake{}, RouterConfig{})

	body := `{"question":"q","prompt_only":true}`
	req := httptest.NewRequest(http.MethodPost, "/v1/rag/query", strings.NewReader(body))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if pipeline.execCalls != 1 || pipeline.answerCalls != 0 {
		t.Fatalf("expected Execute path, got answer=%d exec=%d", pipeline.answerCalls, pipeline.execCalls)
	}
}

func TestQueryValidation(t *testing.T) {
	handler := newTestRouter(ingestFake{}, &pipelineFake{}, readerFake{}, RouterConfig{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/rag/query", strings.NewReader(`{"question":"  "}`)))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("blank question: expected 400, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/rag/query", strings.NewReader(`{broken`)))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("broken json: expected 400, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/rag/query", nil))
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("wrong method: expected 405, got %d", res.Code)
	}
}

func TestQueryRetrievalUnavailableMapsTo503(t *testing.T) {
	pipeline := &pipelineFake{err: domain.WrapError(domain.ErrRetrievalUnavailable, "hybrid retrieval", errors.New("both sources down"))}
	handler := newTestRouter(ingestFake{}, pipeline, readerFake{}, RouterConfig{})

	req := httptest.NewRequest(http.MethodPost, "/v1/rag/query", strings.NewReader(`{"question":"q"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestQueryDeadlineMapsTo504(t *testing.T) {
	pipeline := &pipelineFake{err: context.DeadlineExceeded}
	handler := newTestRouter(ingestFake{}, pipeline, readerFake{}, RouterConfig{})

	req := httptest.NewRequest(http.MethodPost, "/v1/rag/query", strings.NewReader(`{"question":"q"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", res.Code)
	}
}

func TestRateLimitSheds(t *testing.T) {
	handler := newTestRouter(ingestFake{}, &pipelineFake{}, readerFake{}, RouterConfig{
		RateLimitRPS:   1,
		RateLimitBurst: 1,
	})

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first request must pass, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request must be limited, got %d", second.Code)
	}
}
