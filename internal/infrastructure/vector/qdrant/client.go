// Package qdrant stores document chunks as points carrying two named vectors:
// a dense embedding for semantic search and a hashed term vector for lexical
// search. Both searches run against the same points, so a chunk keeps one
// identity across retrieval sources.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/knowledge-qa/internal/core/domain"
	"github.com/kirillkom/knowledge-qa/internal/infrastructure/resilience"
)

const (
	denseVectorName   = "dense"
	lexicalVectorName = "lexical"
)

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	exec       *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

// New builds a client for one collection. exec guards indexing writes only;
// query-path reads are never retried so a slow store degrades instead of
// stacking attempts inside the request deadline.
func New(baseURL, collection string, exec *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		exec:       exec,
	}
}

func (c *Client) IndexChunks(ctx context.Context, doc *domain.Document, chunks []string, vectors [][]float32) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors))
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  map[string]any `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i := range chunks {
		points = append(points, point{
			ID: uuid.NewString(),
			Vector: map[string]any{
				denseVectorName:   vectors[i],
				lexicalVectorName: encodeDocumentTerms(chunks[i], doc.Filename),
			},
			Payload: map[string]any{
				"doc_id":      doc.ID,
				"filename":    doc.Filename,
				"category":    doc.Category,
				"chunk_index": i,
				"text":        chunks[i],
			},
		})
	}

	body, err := json.Marshal(map[string]any{"points": points})
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	upsert := func(ctx context.Context) error {
		url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
		return c.doJSON(ctx, http.MethodPut, url, body, nil)
	}
	if c.exec == nil {
		return upsert(ctx)
	}
	return c.exec.Run(ctx, "qdrant_upsert", upsert, indexClassifier)
}

// SearchDense runs nearest-neighbor search over the dense named vector.
func (c *Client) SearchDense(
	ctx context.Context,
	queryVector []float32,
	limit int,
	filter domain.SearchFilter,
) ([]domain.Candidate, error) {
	return c.search(ctx, map[string]any{
		"name":   denseVectorName,
		"vector": queryVector,
	}, limit, filter, domain.SourceSemantic)
}

// SearchSparse runs term matching over the lexical named vector.
func (c *Client) SearchSparse(
	ctx context.Context,
	query string,
	limit int,
	filter domain.SearchFilter,
) ([]domain.Candidate, error) {
	sparse := encodeQueryTerms(query)
	if len(sparse.Indices) == 0 {
		return nil, nil
	}
	return c.search(ctx, map[string]any{
		"name":   lexicalVectorName,
		"vector": sparse,
	}, limit, filter, domain.SourceLexical)
}

func (c *Client) search(
	ctx context.Context,
	namedVector map[string]any,
	limit int,
	filter domain.SearchFilter,
	source domain.SourceKind,
) ([]domain.Candidate, error) {
	reqBody := map[string]any{
		"vector":       namedVector,
		"limit":        limit,
		"with_payload": true,
	}
	if filter.Category != "" {
		reqBody["filter"] = map[string]any{
			"must": []map[string]any{
				{
					"key":   "category",
					"match": map[string]any{"value": filter.Category},
				},
			},
		}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	var searchResp struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	if err := c.doJSON(ctx, http.MethodPost, url, body, &searchResp); err != nil {
		return nil, err
	}

	out := make([]domain.Candidate, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.Candidate{
			ID:         r.ID,
			Source:     source,
			RawScore:   r.Score,
			Text:       payloadString(r.Payload, "text"),
			Filename:   payloadString(r.Payload, "filename"),
			Category:   payloadString(r.Payload, "category"),
			ChunkIndex: payloadInt(r.Payload, "chunk_index"),
		})
	}
	return out, nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	body, err := json.Marshal(map[string]any{
		"vectors": map[string]any{
			denseVectorName: map[string]any{
				"size":     vectorSize,
				"distance": "Cosine",
			},
		},
		"sparse_vectors": map[string]any{
			lexicalVectorName: map[string]any{},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant ensure collection request: %w", err)
	}
	defer resp.Body.Close()

	// 409 means the collection already exists, which is the steady state.
	if resp.StatusCode == http.StatusConflict {
		c.markCollectionEnsured(vectorSize)
		return nil
	}
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			return fmt.Errorf("qdrant ensure collection status: %s: %s", resp.Status, msg)
		}
		return fmt.Errorf("qdrant ensure collection status: %s", resp.Status)
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func (c *Client) doJSON(ctx context.Context, method, url string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create qdrant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "qdrant request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		err := fmt.Errorf("qdrant status: %s", resp.Status)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return domain.WrapError(domain.ErrTemporary, "qdrant request", err)
		}
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode qdrant response: %w", err)
	}
	return nil
}

// indexClassifier retries only transient failures during background indexing.
func indexClassifier(err error) resilience.Verdict {
	transient := domain.IsKind(err, domain.ErrTemporary)
	return resilience.Verdict{Retry: transient, CountFailure: transient}
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func payloadInt(payload map[string]any, key string) int {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	// JSON numbers decode as float64.
	if f, ok := v.(float64); ok {
		return int(f)
	}
	return 0
}
