package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/punchamoorthee/cashflow/internal/domain"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cashflow_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cashflow_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

func respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, code int, errCode, message, method, endpoint string) {
	respondJSON(w, code, map[string]string{"code": errCode, "error": message}, method, endpoint)
}

// respondDomainError maps the error taxonomy to HTTP. Validation and
// NotFound pass their code+message through; anything else is a generic 500
// with no internal detail leaked.
func respondDomainError(w http.ResponseWriter, err error, method, endpoint string) {
	var de *domain.Error
	if errors.As(err, &de) {
		switch de.Kind {
		case domain.KindValidation:
			respondError(w, http.StatusBadRequest, de.Code, de.Message, method, endpoint)
			return
		case domain.KindNotFound:
			respondError(w, http.StatusNotFound, de.Code, de.Message, method, endpoint)
			return
		case domain.KindConflict:
			respondError(w, http.StatusConflict, de.Code, de.Message, method, endpoint)
			return
		}
	}
	respondError(w, http.StatusInternalServerError, "Internal.Failure", "Internal Server Error", method, endpoint)
}
