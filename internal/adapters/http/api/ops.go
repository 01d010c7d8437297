package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/reachyou/pkg/metrics"
)

// StatsProvider reports runtime counters of the service.
type StatsProvider interface {
	GetStats(ctx context.Context) map[string]any
}

// OpsHandler serves the liveness and statistics endpoints.
type OpsHandler struct {
	stats      StatsProvider
	exposition http.Handler
}

// NewOpsHandler creates the handler. The exposition is bound to the
// service's own Prometheus registry.
func NewOpsHandler(stats StatsProvider) *OpsHandler {
	return &OpsHandler{
		stats:      stats,
		exposition: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleHealth handles GET /healthz. A live process answers with its
// metrics exposition.
func (h *OpsHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.exposition.ServeHTTP(w, r)
}

// HandleStats handles GET /stats.
func (h *OpsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.GetStats(r.Context()))
}
