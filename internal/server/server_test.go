package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/adapter/analyzer"
	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/extract"
	"docrag/internal/adapter/fs"
	"docrag/internal/adapter/memstore"
	"docrag/internal/adapter/retriever"
	"docrag/internal/domain"
	"docrag/internal/usecase"
)

const foxText = "The quick brown fox. Jumps over the lazy dog. Repeat forever."

type ingestResponse struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	ChunkCount int    `json:"chunk_count"`
	Stored     int    `json:"stored"`
	Failed     int    `json:"failed"`
}

type retrieveResponse struct {
	Fragments []domain.Fragment `json:"fragments"`
}

func newTestServer(t *testing.T, opts Options) (*Server, string) {
	t.Helper()
	logger := log.New(io.Discard)
	backend := retriever.NewBM25Backend(memstore.NewMemoryStore(), analyzer.NewTokenizer(false), 1.2, 0.75)
	chk, err := chunker.NewSentenceChunker(6, 2)
	require.NoError(t, err)

	dataDir := t.TempDir()
	extensions := []string{"pptx", "ppt", "docx", "doc", "pdf", "txt", "json", "py"}
	ingest := usecase.NewIngestUseCase(
		usecase.NewFragmentStore(backend, logger),
		chk,
		extract.NewRegistry(extensions),
		fs.NewWalker(nil, nil, extensions),
		dataDir,
		nil,
		logger,
	)
	retrieve := usecase.NewRetrieveUseCase(backend, 5, domain.MatchStrict, 0, logger)
	return New(opts, ingest, retrieve, logger), dataDir
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, h http.Handler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return do(t, h, req)
}

func retrieveURL(params map[string]string) string {
	v := url.Values{}
	for k, val := range params {
		v.Set(k, val)
	}
	return "/retrieve?" + v.Encode()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	rec := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestUploadThenRetrieve(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	h := s.Handler()

	rec := upload(t, h, "fox.txt", []byte(foxText))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ingested := decode[ingestResponse](t, rec)
	assert.NotEmpty(t, ingested.DocumentID)
	assert.Equal(t, "fox.txt", ingested.Name)
	assert.Equal(t, 3, ingested.ChunkCount)
	assert.Equal(t, 3, ingested.Stored)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, retrieveURL(map[string]string{
		"document_id": ingested.DocumentID,
		"question":    "lazy dog",
		"top_k":       "1",
	}), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[retrieveResponse](t, rec)
	require.Len(t, got.Fragments, 1)
	assert.Contains(t, got.Fragments[0].Chunk, "lazy dog")
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	h := s.Handler()

	for _, name := range []string{"page.html", "archive.tar", "README"} {
		rec := upload(t, h, name, []byte("content"))
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code, name)
		assert.Contains(t, rec.Body.String(), "unsupported")
	}

	rec := upload(t, h, "empty.txt", nil)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestUploadMissingFile(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("x=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := do(t, s.Handler(), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestText(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	h := s.Handler()

	rec := do(t, h, httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(`{"document_id":"doc-1","text":"`+foxText+`"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	ingested := decode[ingestResponse](t, rec)
	assert.Equal(t, "doc-1", ingested.DocumentID)
	assert.Equal(t, 3, ingested.ChunkCount)

	rec = do(t, h, httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(`{"text":""}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	empty := decode[ingestResponse](t, rec)
	assert.Zero(t, empty.ChunkCount)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, retrieveURL(map[string]string{
		"document_id": empty.DocumentID,
		"query":       "anything",
	}), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"fragments":[]}`, rec.Body.String())
}

func TestIngestBadJSON(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	h := s.Handler()

	for _, body := range []string{`{"text":`, `{}`} {
		rec := do(t, h, httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestIngestPath(t *testing.T) {
	s, dataDir := newTestServer(t, Options{})
	h := s.Handler()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "fox.txt"), []byte(foxText), 0644))

	rec := do(t, h, httptest.NewRequest(http.MethodPost, "/ingest/path", strings.NewReader(`{"path":"fox.txt"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3, decode[ingestResponse](t, rec).ChunkCount)

	rec = do(t, h, httptest.NewRequest(http.MethodPost, "/ingest/path", strings.NewReader(`{"path":"gone.txt"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, httptest.NewRequest(http.MethodPost, "/ingest/path", strings.NewReader(`{"path":"../fox.txt"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRetrieveValidation(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	h := s.Handler()

	tests := []struct {
		name   string
		params map[string]string
		want   int
	}{
		{"unknown document", map[string]string{"document_id": "nonexistent-id", "question": "query"}, http.StatusOK},
		{"missing question", map[string]string{"document_id": "doc"}, http.StatusBadRequest},
		{"missing document", map[string]string{"question": "q"}, http.StatusBadRequest},
		{"non-numeric top_k", map[string]string{"document_id": "doc", "question": "q", "top_k": "many"}, http.StatusBadRequest},
		{"zero top_k", map[string]string{"document_id": "doc", "question": "q", "top_k": "0"}, http.StatusBadRequest},
		{"bad mode", map[string]string{"document_id": "doc", "question": "q", "mode": "fuzzy"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, httptest.NewRequest(http.MethodGet, retrieveURL(tt.params), nil))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestRetrievePermissiveMode(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	h := s.Handler()
	do(t, h, httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(`{"document_id":"doc","text":"`+foxText+`"}`)))

	rec := do(t, h, httptest.NewRequest(http.MethodGet, retrieveURL(map[string]string{
		"document_id": "doc", "question": "zebra", "mode": "permissive",
	}), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[retrieveResponse](t, rec).Fragments, 3)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	rec := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/upload", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, Options{RateLimit: 0.001, Burst: 2})
	h := s.Handler()

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = do(t, h, httptest.NewRequest(http.MethodGet, "/health", nil)).Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnsupportedMediaType, statusFor(domain.ErrUnsupportedInput))
	assert.Equal(t, http.StatusBadRequest, statusFor(domain.ErrInvalidRequest))
	assert.Equal(t, http.StatusNotFound, statusFor(domain.ErrNotFound))
	assert.Equal(t, http.StatusInternalServerError, statusFor(domain.ErrBackendUnavailable))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		res, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		res.Body.Close()
		return res.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
