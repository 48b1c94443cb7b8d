package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"docrag/internal/domain"
	"docrag/internal/usecase"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpload handles POST /upload (multipart field "file").
// Response: {"document_id": "...", "chunk_count": N, ...}
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read upload: "+err.Error())
		return
	}

	result, err := s.ingest.IngestFile(r.Context(), header.Filename, data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleIngest handles POST /ingest
// Request: {"document_id": "optional", "text": "..."}
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentID string  `json:"document_id,omitempty"`
		Text       *string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Text == nil {
		writeJSONError(w, http.StatusBadRequest, "text is required")
		return
	}

	result, err := s.ingest.Ingest(r.Context(), req.DocumentID, *req.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleIngestPath handles POST /ingest/path
// Request: {"path": "relative/to/data_dir.pdf"}
func (s *Server) handleIngestPath(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	result, err := s.ingest.IngestPath(r.Context(), req.Path)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleRetrieve handles GET /retrieve?document_id=&question=&top_k=&mode=
// Response: {"fragments": [{"chunk": "...", "score": 1.2}]}
func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := usecase.RetrieveRequest{
		DocumentID: q.Get("document_id"),
		Query:      q.Get("question"),
		Mode:       domain.MatchMode(q.Get("mode")),
	}
	if req.Query == "" {
		req.Query = q.Get("query")
	}
	if raw := q.Get("top_k"); raw != "" {
		topK, err := strconv.Atoi(raw)
		if err != nil || topK <= 0 {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("top_k must be a positive integer, got %q", raw))
			return
		}
		req.TopK = topK
	}

	resp, err := s.retrieve.Retrieve(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnsupportedInput):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	writeJSONError(w, status, err.Error())
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
