package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/moznion/go-optional"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/oanda-data/internal/reconcile"
	"github.com/rickgao/oanda-data/internal/txid"
	"github.com/rickgao/oanda-data/internal/writer"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type reconcilerStatus interface {
	LastID() optional.Option[string]
	Stats() reconcile.Stats
}

type writerStatus interface {
	Stats() writer.WriterMetrics
	Pending() int
}

// newHealthHandler serves /health and the Prometheus registry at metricsPath.
func newHealthHandler(db pinger, hub *txid.Hub, rec reconcilerStatus, w writerStatus, reg *prometheus.Registry, metricsPath string) http.Handler {
	mux := http.NewServeMux()

	mux.Handle(metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	mux.HandleFunc("/health", func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		if err := db.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["database"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["database"] = "connected"
		}

		hubStats := hub.Stats()
		health.Components["hub"] = map[string]any{
			"published":   hubStats.Published,
			"discarded":   hubStats.Discarded,
			"subscribers": hubStats.Subscribers,
		}

		recStats := rec.Stats()
		health.Components["reconciler"] = map[string]any{
			"last_id":       rec.LastID().TakeOr(""),
			"range_fetches": recStats.RangeFetches,
			"poll_fetches":  recStats.PollFetches,
			"handled":       recStats.Handled,
			"errors":        recStats.Errors,
		}
		if rec.LastID().IsNone() {
			health.Status = degrade(health.Status)
		}

		wStats := w.Stats()
		health.Components["writer"] = map[string]any{
			"inserts":   wStats.Inserts,
			"conflicts": wStats.Conflicts,
			"errors":    wStats.Errors,
			"pending":   w.Pending(),
		}

		rw.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			rw.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(rw).Encode(health)
	})

	return mux
}

func degrade(status string) string {
	if status == "healthy" {
		return "degraded"
	}
	return status
}
