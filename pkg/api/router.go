// Package api serves the entity registry and the prometheus metrics over HTTP.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nimdanitro/hub-sensors-go/pkg/entity"
)

type handler struct {
	registry *entity.Registry
	log      *zap.Logger
}

// NewRouter returns the read-only state API. A nil gatherer serves the
// default prometheus registry.
func NewRouter(registry *entity.Registry, gatherer prometheus.Gatherer, log *zap.Logger) *mux.Router {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	h := &handler{registry: registry, log: log}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/api/states", h.listStates).Methods(http.MethodGet)
	r.HandleFunc("/api/states/{unique_id}", h.getState).Methods(http.MethodGet)
	return r
}

func (h *handler) listStates(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.registry.All())
}

func (h *handler) getState(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["unique_id"]
	rec, ok := h.registry.Get(id)
	if !ok {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown entity " + id})
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("cannot encode response", zap.Error(err))
	}
}
