package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/yourusername/farklesolver/pkg/solver"
)

// sseEventBuffer is how many progress events may queue for a slow client
// before further ones are dropped.
const sseEventBuffer = 64

const ssePollInterval = 250 * time.Millisecond

// IterateSSE streams the progress of an iteration as Server-Sent Events.
// GET /api/iterate/stream?generations=N starts N further generations first;
// without it the stream follows the iteration already running, if any.
//
// Events: "progress" (ProgressEvent), "result" (IterationResult), "error",
// then "done".
func (h *Handlers) IterateSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeSSEError(w, "streaming not supported")
		return
	}
	if h.engine == nil {
		writeSSEError(w, errNotReady.msg)
		return
	}

	// Subscribe before starting so no pass is missed.
	events := make(chan solver.Progress, sseEventBuffer)
	unsubscribe := h.engine.Subscribe(func(p solver.Progress) {
		select {
		case events <- p:
		default:
		}
	})
	defer unsubscribe()

	var done <-chan error
	if gens := parseIntParam(r.URL.Query().Get("generations"), 0); gens > 0 {
		_, started, err := h.startIteration(IterateRequest{Generations: gens})
		if err != nil {
			writeSSEError(w, err.Error())
			return
		}
		done = started
	} else if !h.engine.Running() {
		h.finishSSE(w, flusher, nil)
		return
	}

	ticker := time.NewTicker(ssePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case p := <-events:
			writeSSEEvent(w, "progress", ProgressEvent{
				Generation: h.engine.Current().N() + 1,
				Pass:       p.Pass,
				Done:       p.Done,
				Total:      p.Total,
				Percent:    p.Percent(),
			})
			flusher.Flush()
		case err := <-done:
			h.finishSSE(w, flusher, err)
			return
		case <-ticker.C:
			// Following an iteration someone else started.
			if done == nil && !h.engine.Running() {
				h.finishSSE(w, flusher, nil)
				return
			}
		}
	}
}

func (h *Handlers) finishSSE(w http.ResponseWriter, flusher http.Flusher, err error) {
	res := IterationResult{Generation: h.engine.Current().N()}
	if err != nil {
		res.Error = err.Error()
	}
	writeSSEEvent(w, "result", res)
	writeSSEEvent(w, "done", nil)
	flusher.Flush()
}

// writeSSEEvent writes a Server-Sent Event to the response.
func writeSSEEvent(w http.ResponseWriter, event string, data interface{}) {
	fmt.Fprintf(w, "event: %s\n", event)
	if data != nil {
		jsonData, _ := json.Marshal(data)
		fmt.Fprintf(w, "data: %s\n", jsonData)
	}
	fmt.Fprintf(w, "\n")
}

// writeSSEError writes an error event and closes the stream.
func writeSSEError(w http.ResponseWriter, message string) {
	writeSSEEvent(w, "error", map[string]string{"error": message})
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// parseIntParam parses an integer from a string with a default value.
func parseIntParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
