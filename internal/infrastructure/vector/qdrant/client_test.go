package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kirillkom/knowledge-qa/internal/core/domain"
)

func TestIndexChunksEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls int32
	var upsertBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs/points":
			_ = json.NewDecoder(r.Body).Decode(&upsertBody)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "docs", nil)
	doc := &domain.Document{ID: "doc-1", Filename: "report.txt", Category: "finance"}
	chunks := []string{"first chunk", "second chunk"}
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}

	if err := client.IndexChunks(context.Background(), doc, chunks, vectors); err != nil {
		t.Fatalf("first IndexChunks() error = %v", err)
	}
	if err := client.IndexChunks(context.Background(), doc, chunks, vectors); err != nil {
		t.Fatalf("second IndexChunks() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}

	points, ok := upsertBody["points"].([]any)
	if !ok || len(points) != 2 {
		t.Fatalf("expected 2 upserted points, got %v", upsertBody["points"])
	}
	first := points[0].(map[string]any)
	vector := first["vector"].(map[string]any)
	if _, ok := vector[denseVectorName]; !ok {
		t.Fatalf("point misses dense vector: %v", vector)
	}
	if _, ok := vector[lexicalVectorName]; !ok {
		t.Fatalf("point misses lexical vector: %v", vector)
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/docs" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "docs", nil)
	doc := &domain.Document{ID: "doc-1", Filename: "a.txt"}
	err := client.IndexChunks(context.Background(), doc, []string{"a"}, [][]float32{{0.1, 0.2}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}

func TestSearchDenseMapsCandidates(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/docs/points/search" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"result":[
			{"id":"p1","score":0.91,"payload":{"doc_id":"d1","filename":"a.txt","category":"finance","chunk_index":2,"text":"alpha"}},
			{"id":"p2","score":0.42,"payload":{"doc_id":"d2","filename":"b.txt","category":"legal","chunk_index":0,"text":"beta"}}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, "docs", nil)
	out, err := client.SearchDense(context.Background(), []float32{0.1, 0.2}, 5, domain.SearchFilter{Category: "finance"})
	if err != nil {
		t.Fatalf("SearchDense() error = %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(out))
	}
	first := out[0]
	if first.ID != "p1" || first.Source != domain.SourceSemantic || first.RawScore != 0.91 {
		t.Fatalf("candidate mapping broken: %+v", first)
	}
	if first.Text != "alpha" || first.Filename != "a.txt" || first.ChunkIndex != 2 {
		t.Fatalf("payload mapping broken: %+v", first)
	}

	vector := gotBody["vector"].(map[string]any)
	if vector["name"] != denseVectorName {
		t.Fatalf("dense search must use the dense named vector, got %v", vector["name"])
	}
	if _, ok := gotBody["filter"]; !ok {
		t.Fatalf("category filter not forwarded: %v", gotBody)
	}
}

func TestSearchSparseUsesLexicalVector(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"result":[{"id":"p1","score":7.5,"payload":{"text":"alpha"}}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "docs", nil)
	out, err := client.SearchSparse(context.Background(), "quarterly revenue", 5, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("SearchSparse() error = %v", err)
	}
	if len(out) != 1 || out[0].Source != domain.SourceLexical {
		t.Fatalf("lexical candidates broken: %+v", out)
	}
	vector := gotBody["vector"].(map[string]any)
	if vector["name"] != lexicalVectorName {
		t.Fatalf("sparse search must use the lexical named vector, got %v", vector["name"])
	}
}

func TestSearchSparseEmptyQueryReturnsNoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Errorf("no request expected for a tokenless query")
	}))
	defer server.Close()

	client := New(server.URL, "docs", nil)
	out, err := client.SearchSparse(context.Background(), "___!!!", 5, domain.SearchFilter{})
	if err != nil || len(out) != 0 {
		t.Fatalf("expected empty result without error, got %v, %v", out, err)
	}
}

func TestSearchServerErrorIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "docs", nil)
	_, err := client.SearchDense(context.Background(), []float32{0.1}, 5, domain.SearchFilter{})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}
