package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/cashflow/internal/domain"
	"github.com/punchamoorthee/cashflow/internal/service"
)

var idempotencyKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9-_]+$`)

type createTransactionRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	Type            string          `json:"type"`
	Description     string          `json:"description"`
	TransactionDate time.Time       `json:"transactionDate"`
	IdempotencyKey  string          `json:"idempotencyKey"`
	Reference       string          `json:"reference"`
}

type transactionResponse struct {
	Transaction         *domain.Transaction         `json:"transaction"`
	IsNewTransaction    bool                        `json:"isNewTransaction"`
	Message             string                      `json:"message"`
	PotentialDuplicates []domain.PotentialDuplicate `json:"potentialDuplicates,omitempty"`
}

// TransactionsHandler serves the ingestion service's HTTP surface.
type TransactionsHandler struct {
	svc *service.IngestService
	log zerolog.Logger
}

func NewTransactionsHandler(svc *service.IngestService, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{svc: svc, log: log}
}

// Register mounts the transaction routes on the router.
func (h *TransactionsHandler) Register(r *mux.Router) {
	r.HandleFunc("/transactions", h.Create).Methods("POST")
	r.HandleFunc("/transactions", h.ListByDate).Methods("GET")
	r.HandleFunc("/transactions/{id}", h.GetByID).Methods("GET")
}

func (h *TransactionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/transactions"))
	defer timer.ObserveDuration()

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Request.MalformedBody", "malformed JSON body", "POST", "/transactions")
		return
	}

	if code, msg := validateCreateRequest(&req); code != "" {
		respondError(w, http.StatusBadRequest, code, msg, "POST", "/transactions")
		return
	}

	result, err := h.svc.CreateTransaction(r.Context(), service.CreateTransactionRequest{
		Amount:          req.Amount,
		Type:            req.Type,
		Description:     req.Description,
		TransactionDate: req.TransactionDate,
		IdempotencyKey:  req.IdempotencyKey,
		Reference:       req.Reference,
	})
	if err != nil {
		h.logFailure(err, "create transaction")
		respondDomainError(w, err, "POST", "/transactions")
		return
	}

	status := http.StatusCreated
	if !result.IsNew {
		// Idempotent replay: same transaction returned, nothing created.
		status = http.StatusOK
	}
	respondJSON(w, status, transactionResponse{
		Transaction:         result.Transaction,
		IsNewTransaction:    result.IsNew,
		Message:             result.Message,
		PotentialDuplicates: result.PotentialDuplicates,
	}, "POST", "/transactions")
}

// validateCreateRequest enforces the transport contract. The domain factory
// re-checks its own invariants; the 3-character description minimum, the key
// charset, the 2dp rule and the date window live only here.
func validateCreateRequest(req *createTransactionRequest) (code, message string) {
	amount := req.Amount
	switch {
	case amount.LessThanOrEqual(decimal.Zero):
		return "Transaction.InvalidAmount", "amount must be greater than zero"
	case amount.GreaterThan(domain.MaxAmount):
		return "Transaction.InvalidAmount", "amount exceeds maximum allowed value"
	case !amount.Equal(amount.Round(2)):
		return "Transaction.InvalidAmount", "amount cannot have more than 2 decimal places"
	}

	if req.Type != string(domain.Credit) && req.Type != string(domain.Debit) {
		return "Transaction.InvalidType", "transaction type must be either 'Credit' or 'Debit' (case-sensitive)"
	}

	desc := strings.TrimSpace(req.Description)
	switch {
	case desc == "":
		return "Transaction.InvalidDescription", "description is required"
	case utf8.RuneCountInString(desc) < 3:
		return "Transaction.InvalidDescription", "description must be at least 3 characters"
	case utf8.RuneCountInString(req.Description) > 500:
		return "Transaction.InvalidDescription", "description cannot exceed 500 characters"
	}

	now := time.Now().UTC()
	switch {
	case req.TransactionDate.IsZero():
		return "Transaction.InvalidDate", "transaction date is required"
	case req.TransactionDate.After(now.AddDate(0, 0, 1)):
		return "Transaction.InvalidDate", "transaction date cannot be in the future"
	case req.TransactionDate.Before(now.AddDate(-10, 0, 0)):
		return "Transaction.InvalidDate", "transaction date cannot be more than 10 years in the past"
	}

	key := req.IdempotencyKey
	switch {
	case key == "":
		return "Transaction.InvalidIdempotencyKey", "idempotency key is required to prevent duplicate transactions"
	case len(key) < 16:
		return "Transaction.InvalidIdempotencyKey", "idempotency key must be at least 16 characters"
	case len(key) > 100:
		return "Transaction.InvalidIdempotencyKey", "idempotency key cannot exceed 100 characters"
	case !idempotencyKeyPattern.MatchString(key):
		return "Transaction.InvalidIdempotencyKey", "idempotency key can only contain alphanumeric characters, hyphens, and underscores"
	}

	if len(req.Reference) > 100 {
		return "Transaction.InvalidReference", "reference cannot exceed 100 characters"
	}

	return "", ""
}

func (h *TransactionsHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Transaction.InvalidId", "transaction id must be a UUID", "GET", "/transactions/{id}")
		return
	}

	tx, err := h.svc.GetTransaction(r.Context(), id)
	if err != nil {
		h.logFailure(err, "get transaction")
		respondDomainError(w, err, "GET", "/transactions/{id}")
		return
	}
	respondJSON(w, http.StatusOK, tx, "GET", "/transactions/{id}")
}

func (h *TransactionsHandler) ListByDate(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Transaction.InvalidDate", "date query parameter must be YYYY-MM-DD", "GET", "/transactions")
		return
	}

	txs, err := h.svc.GetTransactionsByDate(r.Context(), date)
	if err != nil {
		h.logFailure(err, "list transactions")
		respondDomainError(w, err, "GET", "/transactions")
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	respondJSON(w, http.StatusOK, txs, "GET", "/transactions")
}

func (h *TransactionsHandler) logFailure(err error, op string) {
	var de *domain.Error
	if errors.As(err, &de) && de.Kind != domain.KindFailure {
		return
	}
	h.log.Error().Err(err).Str("op", op).Msg("request failed")
}
