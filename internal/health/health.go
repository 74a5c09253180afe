// Package health serves liveness and readiness probes.
//
// /healthz reports liveness and always answers 200 while the process can
// serve HTTP. /readyz runs every registered [Checker] and answers 503 as
// soon as one fails, so load balancers stop routing to a replica whose
// backing services (Redis, Postgres) are down.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Per-check deadline on /readyz. A stuck dependency must not hold the probe
// open past the kubelet's own timeout.
const checkTimeout = 5 * time.Second

// Checker probes one dependency. Check returns nil when healthy; the error
// text is surfaced in the probe response.
type Checker struct {
	// Name labels the check in the JSON response ("redis", "postgres").
	Name string

	// Check probes the dependency. It must respect ctx cancellation.
	Check func(ctx context.Context) error
}

// probeResponse is the body written by both endpoints.
type probeResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler answers /healthz and /readyz. The checker set is fixed at
// construction, so the handler is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New returns a [Handler] evaluating the given checkers on every /readyz
// request.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Healthz always answers 200. Liveness is "the process serves HTTP".
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, probeResponse{Status: "ok"})
}

// Readyz runs all checkers concurrently, each under a [checkTimeout]
// deadline, and answers 503 when any of them fails.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	type outcome struct {
		name string
		err  error
	}

	results := make([]outcome, len(h.checkers))
	var wg sync.WaitGroup
	for i, c := range h.checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			results[i] = outcome{name: c.Name, err: c.Check(ctx)}
		}()
	}
	wg.Wait()

	resp := probeResponse{Status: "ok", Checks: make(map[string]string, len(results))}
	status := http.StatusOK
	for _, out := range results {
		if out.err != nil {
			resp.Checks[out.name] = "fail: " + out.err.Error()
			resp.Status = "fail"
			status = http.StatusServiceUnavailable
		} else {
			resp.Checks[out.name] = "ok"
		}
	}

	writeJSON(w, status, resp)
}

// Register mounts both probe routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
