package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/punchamoorthee/cashflow/internal/domain"
	"github.com/punchamoorthee/cashflow/internal/service"
)

const dateLayout = "2006-01-02"

// ConsolidationHandler serves the consolidation reads and the admin
// recompute endpoint.
type ConsolidationHandler struct {
	svc *service.ConsolidationService
	log zerolog.Logger
}

func NewConsolidationHandler(svc *service.ConsolidationService, log zerolog.Logger) *ConsolidationHandler {
	return &ConsolidationHandler{svc: svc, log: log}
}

func (h *ConsolidationHandler) Register(r *mux.Router) {
	r.HandleFunc("/consolidations", h.GetRange).Methods("GET")
	r.HandleFunc("/consolidations/{date}", h.GetDaily).Methods("GET")
	r.HandleFunc("/admin/recalculate/{date}", h.Recalculate).Methods("POST")
}

func (h *ConsolidationHandler) GetDaily(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse(dateLayout, mux.Vars(r)["date"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Consolidation.InvalidDate", "date must be YYYY-MM-DD", "GET", "/consolidations/{date}")
		return
	}

	c, err := h.svc.GetDaily(r.Context(), date)
	if err != nil {
		respondDomainError(w, err, "GET", "/consolidations/{date}")
		return
	}
	respondJSON(w, http.StatusOK, c, "GET", "/consolidations/{date}")
}

func (h *ConsolidationHandler) GetRange(w http.ResponseWriter, r *http.Request) {
	start, err := time.Parse(dateLayout, r.URL.Query().Get("start"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Consolidation.InvalidDateRange", "start query parameter must be YYYY-MM-DD", "GET", "/consolidations")
		return
	}
	end, err := time.Parse(dateLayout, r.URL.Query().Get("end"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Consolidation.InvalidDateRange", "end query parameter must be YYYY-MM-DD", "GET", "/consolidations")
		return
	}

	out, err := h.svc.GetRange(r.Context(), start, end)
	if err != nil {
		respondDomainError(w, err, "GET", "/consolidations")
		return
	}
	if out == nil {
		out = []domain.DailyConsolidation{}
	}
	respondJSON(w, http.StatusOK, out, "GET", "/consolidations")
}

func (h *ConsolidationHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/admin/recalculate/{date}"))
	defer timer.ObserveDuration()

	date, err := time.Parse(dateLayout, mux.Vars(r)["date"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Consolidation.InvalidDate", "date must be YYYY-MM-DD", "POST", "/admin/recalculate/{date}")
		return
	}

	processed, err := h.svc.Recompute(r.Context(), date)
	if err != nil {
		h.log.Error().Err(err).Str("date", date.Format(dateLayout)).Msg("recompute failed")
		respondDomainError(w, err, "POST", "/admin/recalculate/{date}")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":               "Recalculation completed successfully",
		"date":                  date.Format(dateLayout),
		"transactionsProcessed": processed,
	}, "POST", "/admin/recalculate/{date}")
}
