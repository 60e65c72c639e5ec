// fake_ai_server is a standalone fake of the AI generation pipeline for
// local development and integration tests. It accepts document uploads and
// returns canned generation results, with configurable latency and failure
// injection.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type fakeAIServer struct {
	start    time.Time
	latency  time.Duration
	failRate float64

	mu        sync.Mutex
	docSeq    int64
	documents map[string]string

	totalCalls int64
}

func main() {
	addr := getenvDefault("FAKE_AI_ADDR", ":18090")
	latencyMs := getenvIntDefault("FAKE_AI_LATENCY_MS", 0)
	failRate := getenvFloatDefault("FAKE_AI_FAIL_RATE", 0)

	srv := &fakeAIServer{
		start:     time.Now().UTC(),
		latency:   time.Duration(latencyMs) * time.Millisecond,
		failRate:  failRate,
		documents: make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/metrics", srv.handleMetrics)
	mux.HandleFunc("/api/v1/documents", srv.handleUpload)
	mux.HandleFunc("/api/v1/generate/rules", srv.handleGenerateRules)
	mux.HandleFunc("/api/v1/generate/maintenance", srv.handleGenerateMaintenance)
	mux.HandleFunc("/api/v1/generate/safety", srv.handleGenerateSafety)

	log.Printf("fake AI pipeline server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}

func (s *fakeAIServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *fakeAIServer) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	docs := len(s.documents)
	s.mu.Unlock()
	payload := map[string]any{
		"started_at": s.start.Format(time.RFC3339),
		"total":      atomic.LoadInt64(&s.totalCalls),
		"documents":  docs,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *fakeAIServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	atomic.AddInt64(&s.totalCalls, 1)
	s.sleep()
	if s.shouldFail() {
		http.Error(w, `{"error":"injected upload failure"}`, http.StatusServiceUnavailable)
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, `{"error":"invalid multipart form"}`, http.StatusBadRequest)
		return
	}
	_, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, `{"error":"missing file"}`, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.docSeq++
	documentID := fmt.Sprintf("doc-%06d", s.docSeq)
	s.documents[documentID] = header.Filename
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"documentId": documentID})
}

func (s *fakeAIServer) handleGenerateRules(w http.ResponseWriter, r *http.Request) {
	s.handleGenerate(w, r, map[string]any{
		"rules": []map[string]any{
			{
				"name":        "High temperature alert",
				"description": "Alert when temperature exceeds the documented limit",
				"metric":      "temperature",
				"operator":    ">",
				"value":       "85",
				"actionType":  "notification",
				"priority":    "HIGH",
				"category":    "temperature",
			},
			{
				"name":       "Connection lost",
				"metric":     "last_seen_seconds",
				"operator":   ">",
				"value":      "300",
				"actionType": "notification",
				"priority":   "HIGH",
				"category":   "connectivity",
			},
			{
				"name":       "Low efficiency",
				"metric":     "efficiency_pct",
				"operator":   "<",
				"value":      "70",
				"actionType": "notification",
				"priority":   "LOW",
				"category":   "efficiency",
			},
		},
	})
}

func (s *fakeAIServer) handleGenerateMaintenance(w http.ResponseWriter, r *http.Request) {
	s.handleGenerate(w, r, map[string]any{
		"items": []map[string]any{
			{
				"taskName":      "Inspect seals and wiring",
				"description":   "Visual inspection per the maintenance chapter",
				"frequency":     "monthly",
				"priority":      "HIGH",
				"estimatedMins": 30,
			},
			{
				"taskName":  "Full calibration",
				"frequency": "quarterly",
				"priority":  "MEDIUM",
			},
		},
	})
}

func (s *fakeAIServer) handleGenerateSafety(w http.ResponseWriter, r *http.Request) {
	s.handleGenerate(w, r, map[string]any{
		"precautions": []map[string]any{
			{
				"title":      "Disconnect power before servicing",
				"severity":   "CRITICAL",
				"category":   "electrical",
				"mitigation": "Lock out the breaker and verify zero voltage",
			},
			{
				"title":          "Hot surfaces",
				"severity":       "HIGH",
				"recommendedPpe": "Heat-resistant gloves",
			},
		},
	})
}

func (s *fakeAIServer) handleGenerate(w http.ResponseWriter, r *http.Request, body map[string]any) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	atomic.AddInt64(&s.totalCalls, 1)
	s.sleep()
	if s.shouldFail() {
		http.Error(w, `{"error":"injected generation failure"}`, http.StatusServiceUnavailable)
		return
	}
	var req struct {
		DocumentID string `json:"documentId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DocumentID == "" {
		http.Error(w, `{"error":"missing documentId"}`, http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	_, known := s.documents[req.DocumentID]
	s.mu.Unlock()
	if !known {
		http.Error(w, `{"error":"unknown document"}`, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func (s *fakeAIServer) sleep() {
	if s.latency > 0 {
		time.Sleep(s.latency)
	}
}

func (s *fakeAIServer) shouldFail() bool {
	return s.failRate > 0 && rand.Float64() < s.failRate
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
