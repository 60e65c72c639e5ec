package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeSearcher struct {
	hits      []Hit
	err       error
	gotQuery  string
	gotDevice string
	gotLimit  int
}

func (f *fakeSearcher) Search(_ context.Context, query, deviceID string, limit int) ([]Hit, error) {
	f.gotQuery = query
	f.gotDevice = deviceID
	f.gotLimit = limit
	return f.hits, f.err
}

func TestSearchHandler(t *testing.T) {
	searcher := &fakeSearcher{hits: []Hit{{DeviceID: "dev-1", Content: "check the seal", Score: 0.9}}}
	handler, err := NewSearchHandler(searcher)
	if err != nil {
		t.Fatalf("NewSearchHandler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/knowledge/search?q=seal&deviceId=dev-1&limit=3", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if searcher.gotQuery != "seal" || searcher.gotDevice != "dev-1" || searcher.gotLimit != 3 {
		t.Fatalf("search args = %q %q %d", searcher.gotQuery, searcher.gotDevice, searcher.gotLimit)
	}
	var out struct {
		Hits []Hit `json:"hits"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Hits) != 1 || out.Hits[0].Content != "check the seal" {
		t.Fatalf("hits = %+v", out.Hits)
	}
}

func TestSearchHandlerValidation(t *testing.T) {
	handler, _ := NewSearchHandler(&fakeSearcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/knowledge/search", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("missing q: expected 400, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/knowledge/search?q=x&limit=0", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: expected 400, got %d", resp.Code)
	}
}

func TestSearchHandlerBackendError(t *testing.T) {
	handler, _ := NewSearchHandler(&fakeSearcher{err: errors.New("weaviate down")})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/knowledge/search?q=x", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
}
