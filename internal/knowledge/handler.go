package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

const defaultSearchLimit = 5

// Searcher queries the knowledge base.
type Searcher interface {
	Search(ctx context.Context, query, deviceID string, limit int) ([]Hit, error)
}

// SearchHandler serves GET /api/v1/knowledge/search.
type SearchHandler struct {
	searcher Searcher
}

// NewSearchHandler constructs a search handler.
func NewSearchHandler(searcher Searcher) (*SearchHandler, error) {
	if searcher == nil {
		return nil, errors.New("knowledge handler: nil searcher")
	}
	return &SearchHandler{searcher: searcher}, nil
}

// ServeHTTP handles knowledge search requests.
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "missing query", http.StatusBadRequest)
		return
	}
	deviceID := r.URL.Query().Get("deviceId")
	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 50 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	hits, err := h.searcher.Search(r.Context(), query, deviceID, limit)
	if err != nil {
		http.Error(w, "search error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"hits": hits})
}
