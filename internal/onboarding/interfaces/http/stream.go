package http

import (
	"encoding/json"
	"net/http"

	"iot-console/internal/observability/metrics"
	onboardingapp "iot-console/internal/onboarding/application"
)

// handleStream serves the per-run SSE progress stream. The run's snapshot
// channel is latest-wins with capacity one, so a slow client only ever
// misses intermediate percentages, never the terminal snapshot.
func (h *OnboardingHandler) handleStream(w http.ResponseWriter, r *http.Request, runID string) {
	run, err := h.manager.Get(runID)
	if err != nil {
		respondRunError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	metrics.ProgressClientConnected()
	defer metrics.ProgressClientDisconnected()

	_, _ = w.Write([]byte("event: ready\ndata: {}\n\n"))
	flusher.Flush()

	// Late subscribers get the last known position before live updates.
	if snapshot, ok := run.Stream.Latest(); ok {
		writeProgressEvent(w, snapshot)
		flusher.Flush()
	}

	notify := r.Context().Done()
	for {
		select {
		case snapshot, ok := <-run.Stream.Snapshots():
			if !ok {
				// The view taken at subscribe time predates the terminal
				// state; re-fetch it for the final event.
				if final, err := h.manager.Get(runID); err == nil {
					run = final
				}
				writeFinishedEvent(w, run)
				flusher.Flush()
				return
			}
			writeProgressEvent(w, snapshot)
			flusher.Flush()
		case <-notify:
			return
		}
	}
}

func writeProgressEvent(w http.ResponseWriter, snapshot any) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	_, _ = w.Write([]byte("event: progress\n"))
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n\n"))
}

func writeFinishedEvent(w http.ResponseWriter, run onboardingapp.RunView) {
	body := map[string]any{"runId": run.ID, "state": run.State}
	if run.Err != nil {
		body["error"] = run.Err.Error()
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return
	}
	_, _ = w.Write([]byte("event: finished\n"))
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n\n"))
}
