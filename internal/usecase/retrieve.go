package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// RetrieveUseCase answers document-scoped queries.
type RetrieveUseCase struct {
	retriever   port.Retriever
	defaultTopK int
	mode        domain.MatchMode
	minScore    float64 // 0 disables the filter
	logger      *log.Logger
}

func NewRetrieveUseCase(
	retriever port.Retriever,
	defaultTopK int,
	mode domain.MatchMode,
	minScore float64,
	logger *log.Logger,
) *RetrieveUseCase {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	if mode == "" {
		mode = domain.MatchStrict
	}
	return &RetrieveUseCase{
		retriever:   retriever,
		defaultTopK: defaultTopK,
		mode:        mode,
		minScore:    minScore,
		logger:      logger,
	}
}

// RetrieveRequest carries one query. Zero TopK and empty Mode fall back to
// the configured defaults.
type RetrieveRequest struct {
	DocumentID string
	Query      string
	TopK       int
	Mode       domain.MatchMode
}

// RetrieveResponse is the caller-facing result. Fragments is never nil.
type RetrieveResponse struct {
	Fragments []domain.Fragment `json:"fragments"`
}

func (u *RetrieveUseCase) Retrieve(ctx context.Context, req RetrieveRequest) (*RetrieveResponse, error) {
	q, err := u.buildQuery(req)
	if err != nil {
		return nil, err
	}

	results, err := u.retriever.Search(ctx, q)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		u.logger.Error("retrieval failed", "doc_id", q.DocID, "err", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}

	resp := &RetrieveResponse{Fragments: make([]domain.Fragment, 0, len(results))}
	for _, r := range results {
		if r.Score < 0 {
			return nil, fmt.Errorf("%w: negative score %v for %s", domain.ErrBackendUnavailable, r.Score, r.Chunk.Key())
		}
		if u.minScore > 0 && r.Score < u.minScore {
			continue
		}
		if r.Chunk.DocID != "" && r.Chunk.DocID != q.DocID {
			return nil, fmt.Errorf("%w: result %s outside document %s", domain.ErrBackendUnavailable, r.Chunk.Key(), q.DocID)
		}
		resp.Fragments = append(resp.Fragments, domain.Fragment{Chunk: r.Chunk.Text, Score: r.Score})
		if len(resp.Fragments) == q.TopK {
			break
		}
	}
	return resp, nil
}

func (u *RetrieveUseCase) buildQuery(req RetrieveRequest) (domain.SearchQuery, error) {
	if req.DocumentID == "" {
		return domain.SearchQuery{}, fmt.Errorf("%w: document_id is required", domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Query) == "" {
		return domain.SearchQuery{}, fmt.Errorf("%w: query must not be empty", domain.ErrInvalidRequest)
	}

	topK := req.TopK
	switch {
	case topK < 0:
		return domain.SearchQuery{}, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidRequest, topK)
	case topK == 0:
		topK = u.defaultTopK
	}

	mode := req.Mode
	switch mode {
	case "":
		mode = u.mode
	case domain.MatchStrict, domain.MatchPermissive:
	default:
		return domain.SearchQuery{}, fmt.Errorf("%w: unknown match mode %q", domain.ErrInvalidRequest, mode)
	}

	return domain.SearchQuery{DocID: req.DocumentID, Text: req.Query, TopK: topK, Mode: mode}, nil
}
