package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tcriess/lightspeed-hubs/orchestrator"
)

// NewRouter exposes the operational endpoints: an integrity check, a manual
// sweep trigger and prometheus metrics.
func NewRouter(manager *orchestrator.Manager, logger hclog.Logger) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/integrity", func(w http.ResponseWriter, r *http.Request) {
		report, err := manager.VerifyIntegrity(r.Context())
		if err != nil {
			logger.Error("integrity check failed", "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, report, logger)
	}).Methods(http.MethodGet)

	router.HandleFunc("/sweep", func(w http.ResponseWriter, r *http.Request) {
		report, err := manager.Sweep(r.Context())
		if err != nil {
			logger.Error("sweep failed", "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, report, logger)
	}).Methods(http.MethodPost)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return router
}

func writeJSON(w http.ResponseWriter, v interface{}, logger hclog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("could not encode response", "error", err)
	}
}
