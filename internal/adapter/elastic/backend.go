package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"docrag/internal/domain"
)

// Config holds connection details for the cluster.
type Config struct {
	Addresses []string
	Index     string
	Username  string
	Password  string
	Timeout   time.Duration
	Transport http.RoundTripper
}

// Backend keeps one record per chunk in a single index. doc_id is a keyword
// field for exact filtering; chunk is a text field scored with BM25.
type Backend struct {
	es      *elasticsearch.Client
	index   string
	timeout time.Duration
}

func NewBackend(cfg Config) (*Backend, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Backend{es: es, index: cfg.Index, timeout: timeout}, nil
}

var indexSchema = map[string]any{
	"settings": map[string]any{
		"similarity": map[string]any{
			"default": map[string]any{"type": "BM25"},
		},
	},
	"mappings": map[string]any{
		"properties": map[string]any{
			"doc_id": map[string]any{"type": "keyword"},
			"chunk":  map[string]any{"type": "text"},
		},
	},
}

type record struct {
	DocID string `json:"doc_id"`
	Chunk string `json:"chunk"`
}

// EnsureSchema creates the index when it is missing. Losing a creation race
// to another process counts as success.
func (b *Backend) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	res, err := esapi.IndicesExistsRequest{Index: []string{b.index}}.Do(ctx, b.es)
	if err != nil {
		return fmt.Errorf("check index %s: %w", b.index, err)
	}
	drain(res)
	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("check index %s: unexpected status %d", b.index, res.StatusCode)
	}

	body, err := json.Marshal(indexSchema)
	if err != nil {
		return err
	}
	res, err = esapi.IndicesCreateRequest{
		Index: b.index,
		Body:  bytes.NewReader(body),
	}.Do(ctx, b.es)
	if err != nil {
		return fmt.Errorf("create index %s: %w", b.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		e := decodeError(res)
		if e.Type == "resource_already_exists_exception" {
			return nil
		}
		return fmt.Errorf("create index %s: %s", b.index, e)
	}
	return nil
}

func (b *Backend) Put(ctx context.Context, chunk domain.Chunk) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	body, err := json.Marshal(record{DocID: chunk.DocID, Chunk: chunk.Text})
	if err != nil {
		return err
	}
	res, err := esapi.IndexRequest{
		Index:      b.index,
		DocumentID: chunk.Key(),
		Body:       bytes.NewReader(body),
	}.Do(ctx, b.es)
	if err != nil {
		return fmt.Errorf("index chunk %s: %w", chunk.Key(), err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index chunk %s: %s", chunk.Key(), decodeError(res))
	}
	return nil
}

func (b *Backend) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	res, err := esapi.IndicesRefreshRequest{Index: []string{b.index}}.Do(ctx, b.es)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", b.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("refresh %s: %s", b.index, decodeError(res))
	}
	return nil
}

// searchBody builds the bool query: the doc_id term is always mandatory, the
// chunk match is mandatory only in strict mode.
func searchBody(q domain.SearchQuery) map[string]any {
	match := []any{map[string]any{"match": map[string]any{"chunk": map[string]any{"query": q.Text}}}}
	boolQuery := map[string]any{
		"must": []any{map[string]any{"term": map[string]any{"doc_id": q.DocID}}},
	}
	if q.Mode == domain.MatchPermissive {
		boolQuery["should"] = match
	} else {
		boolQuery["must"] = append(boolQuery["must"].([]any), match...)
	}

	body := map[string]any{"query": map[string]any{"bool": boolQuery}}
	if q.TopK > 0 {
		body["size"] = q.TopK
	}
	return body
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string   `json:"_id"`
			Score  *float64 `json:"_score"`
			Source record   `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (b *Backend) Search(ctx context.Context, q domain.SearchQuery) ([]domain.ScoredChunk, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	body, err := json.Marshal(searchBody(q))
	if err != nil {
		return nil, err
	}
	res, err := esapi.SearchRequest{
		Index: []string{b.index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, b.es)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", b.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		e := decodeError(res)
		if e.Type == "index_not_found_exception" {
			return nil, nil
		}
		return nil, fmt.Errorf("search %s: %s", b.index, e)
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	results := make([]domain.ScoredChunk, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		chunk := domain.Chunk{DocID: hit.Source.DocID, Text: hit.Source.Chunk}
		if _, ordinal, err := domain.ParseChunkKey(hit.ID); err == nil {
			chunk.Ordinal = ordinal
		}
		var score float64
		if hit.Score != nil && *hit.Score > 0 {
			score = *hit.Score
		}
		results = append(results, domain.ScoredChunk{Chunk: chunk, Score: score})
	}
	return results, nil
}

// Close is a no-op; the client holds nothing beyond pooled HTTP connections.
func (b *Backend) Close() error {
	return nil
}

type apiError struct {
	Status int
	Type   string
	Reason string
}

func (e apiError) String() string {
	if e.Type == "" {
		return fmt.Sprintf("status %d: %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("status %d: %s: %s", e.Status, e.Type, e.Reason)
}

func decodeError(res *esapi.Response) apiError {
	e := apiError{Status: res.StatusCode}
	var body struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return e
	}
	if json.Unmarshal(data, &body) == nil {
		e.Type = body.Error.Type
		e.Reason = body.Error.Reason
	}
	if e.Type == "" {
		e.Reason = strings.TrimSpace(string(data))
	}
	return e
}

func drain(res *esapi.Response) {
	if res.Body != nil {
		io.Copy(io.Discard, res.Body)
		res.Body.Close()
	}
}
