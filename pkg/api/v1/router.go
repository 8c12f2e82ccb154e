package v1

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stacklok/rrbroker/pkg/broker"
)

// Mount wires the session, config, and admin resource routers plus the
// ambient /healthz and /metrics endpoints under prefix.
func Mount(r chi.Router, prefix string, b *broker.Broker, registry ConfigRegistry, forwardTimeout time.Duration) {
	r.Route(prefix, func(api chi.Router) {
		api.Mount("/session", SessionRouter(b, forwardTimeout))
		api.Mount("/config", ConfigRouter(registry))
		api.Mount("/admin", AdminRouter(b))
	})
	r.Get("/healthz", healthz)
	r.Handle("/metrics", promhttp.Handler())
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
