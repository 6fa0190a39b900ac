// Package httpadapter exposes document ingestion and question answering over
// a small JSON API.
package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-qa/internal/core/domain"
	"github.com/kirillkom/knowledge-qa/internal/core/ports"
	"github.com/kirillkom/knowledge-qa/internal/observability/metrics"
)

const serviceName = "api"

type RouterConfig struct {
	RateLimitRPS   float64
	RateLimitBurst int
	DefaultTopK    int
}

type Router struct {
	ingestUC ports.DocumentIngestor
	pipeline ports.QueryPipeline
	repo     ports.DocumentReader
	metrics  *metrics.HTTPServerMetrics
	cfg      RouterConfig
}

func NewRouter(
	ingestUC ports.DocumentIngestor,
	pipeline ports.QueryPipeline,
	repo ports.DocumentReader,
	m *metrics.HTTPServerMetrics,
	cfg RouterConfig,
) *Router {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	return &Router{
		ingestUC: ingestUC,
		pipeline: pipeline,
		repo:     repo,
		metrics:  m,
		cfg:      cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/rag/query", rt.query)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = rateLimitMiddleware(rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst, handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	doc, err := rt.ingestUC.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	doc, err := rt.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type queryRequest struct {
	Question    string `json:"question"`
	TopK        int    `json:"top_k"`
	UseReranker bool   `json:"use_reranker"`
	Category    string `json:"category"`
	PromptOnly  bool   `json:"prompt_only"`
}

func (rt *Router) query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.TopK <= 0 {
		req.TopK = rt.cfg.DefaultTopK
	}

	filter := domain.SearchFilter{Category: req.Category}
	start := time.Now()

	var (
		result *domain.PipelineResult
		err    error
	)
	if req.PromptOnly {
		result, err = rt.pipeline.Execute(r.Context(), req.Question, req.TopK, req.UseReranker, filter)
	} else {
		result, err = rt.pipeline.Answer(r.Context(), req.Question, req.TopK, req.UseReranker, filter)
	}
	if err != nil {
		if rt.metrics != nil {
			rt.metrics.RecordPipelineFailure(serviceName, "/v1/rag/query")
		}
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordPipelineResult(serviceName, "/v1/rag/query", result, req.UseReranker, time.Since(start))
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
