package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"farmbook/internal/core"
	flog "farmbook/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReady pings the database.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]string{"database": "ok"}
	if err := s.storage.Ping(ctx); err != nil {
		checks["database"] = fmt.Sprintf("failed: %v", err)
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics reports counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateMetrics := s.rateLimiter.GetMetrics()
	hits, misses := s.auth.SessionCacheStats()

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_request_duration_avg_seconds", "gauge", "Average request duration", traceMetrics.AverageResponseTime.Seconds())
	metric("rate_limit_hits_total", "counter", "Requests checked by the rate limiter", rateMetrics.TotalHits)
	metric("rate_limit_rejections_total", "counter", "Requests rejected by the rate limiter", rateMetrics.LimitedHits)
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", s.detector.SuspiciousRequests())
	metric("session_cache_hits_total", "counter", "Sessions resolved from the cache", hits)
	metric("session_cache_misses_total", "counter", "Sessions resolved from the database", misses)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.startedAt).Seconds()))
}

// list serves GET on a collection.
func list[T any](s *Server, fn func(context.Context, core.Identity) ([]T, error)) identityHandler {
	return func(w http.ResponseWriter, r *http.Request, id core.Identity) {
		items, err := fn(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if items == nil {
			items = []T{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// get serves GET on a single record.
func get[T any](s *Server, fn func(context.Context, core.Identity, int64) (T, error)) identityHandler {
	return func(w http.ResponseWriter, r *http.Request, id core.Identity) {
		recordID, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		item, err := fn(r.Context(), id, recordID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

// create serves POST on a collection and answers 201 with the stored record.
func create[T any](s *Server, kind core.RecordKind, fn func(context.Context, core.Identity, T) (T, error)) identityHandler {
	return func(w http.ResponseWriter, r *http.Request, id core.Identity) {
		var in T
		if err := decodeJSON(w, r, &in); err != nil {
			s.writeError(w, r, err)
			return
		}
		out, err := fn(r.Context(), id, in)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		flog.FromContext(r.Context()).InfoContext(r.Context(), "Record created",
			flog.FieldKind, kind, flog.FieldOperation, flog.OpCreate)
		writeJSON(w, http.StatusCreated, out)
	}
}

// remove serves DELETE on a single record and answers 204.
func remove(s *Server, kind core.RecordKind, fn func(context.Context, core.Identity, int64) error) identityHandler {
	return func(w http.ResponseWriter, r *http.Request, id core.Identity) {
		recordID, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := fn(r.Context(), id, recordID); err != nil {
			s.writeError(w, r, err)
			return
		}
		flog.FromContext(r.Context()).InfoContext(r.Context(), "Record deleted",
			flog.NewFields().WithRecord(id.UserID, string(kind), recordID).WithOperation(flog.OpDelete).ToSlice()...)
		w.WriteHeader(http.StatusNoContent)
	}
}
