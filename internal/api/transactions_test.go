package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/cashflow/internal/api"
	"github.com/punchamoorthee/cashflow/internal/domain"
	"github.com/punchamoorthee/cashflow/internal/events"
	"github.com/punchamoorthee/cashflow/internal/service"
	"github.com/punchamoorthee/cashflow/internal/store"
)

// In-memory collaborators backing a real IngestService. The handler is
// exercised end to end minus the database and the broker.

type memTxStore struct {
	byKey map[string]*domain.Transaction
	byID  map[uuid.UUID]*domain.Transaction
}

func newMemTxStore() *memTxStore {
	return &memTxStore{byKey: map[string]*domain.Transaction{}, byID: map[uuid.UUID]*domain.Transaction{}}
}

func (m *memTxStore) Insert(ctx context.Context, t *domain.Transaction) error {
	if _, ok := m.byKey[t.IdempotencyKey]; ok {
		return store.ErrDuplicateKey
	}
	m.byKey[t.IdempotencyKey] = t
	m.byID[t.ID] = t
	return nil
}

func (m *memTxStore) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	if t, ok := m.byKey[key]; ok {
		return t, nil
	}
	return nil, store.ErrNotFound
}

func (m *memTxStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	if t, ok := m.byID[id]; ok {
		return t, nil
	}
	return nil, store.ErrNotFound
}

func (m *memTxStore) GetByDate(ctx context.Context, date time.Time) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, t := range m.byID {
		if domain.DateOnly(t.TransactionDate).Equal(domain.DateOnly(date)) {
			out = append(out, *t)
		}
	}
	return out, nil
}

type noScanner struct{}

func (noScanner) FindPotentialDuplicates(ctx context.Context, amount decimal.Decimal, typ, description string, date time.Time, reference string) ([]domain.PotentialDuplicate, error) {
	return nil, nil
}

type noPublisher struct{}

func (noPublisher) PublishTransactionCreated(ctx context.Context, evt events.TransactionCreated) error {
	return nil
}

type noCache struct{}

func (noCache) Get(ctx context.Context, key string) (string, bool)            { return "", false }
func (noCache) Set(ctx context.Context, key, value string, ttl time.Duration) {}
func (noCache) Remove(ctx context.Context, key string)                        {}

func newTransactionsRouter() (*mux.Router, *memTxStore) {
	st := newMemTxStore()
	svc := service.NewIngestService(st, noScanner{}, noPublisher{}, noCache{}, zerolog.Nop())
	r := mux.NewRouter()
	api.NewTransactionsHandler(svc, zerolog.Nop()).Register(r)
	return r, st
}

func validBody() map[string]interface{} {
	return map[string]interface{}{
		"amount":          100.50,
		"type":            "Credit",
		"description":     "Office supplies",
		"transactionDate": "2026-02-03T00:00:00Z",
		"idempotencyKey":  "office-2026-02-03-001",
	}
}

func postTransaction(t *testing.T, r *mux.Router, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateTransaction_Created(t *testing.T) {
	r, _ := newTransactionsRouter()

	rec := postTransaction(t, r, validBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Transaction      *domain.Transaction `json:"transaction"`
		IsNewTransaction bool                `json:"isNewTransaction"`
		Message          string              `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.IsNewTransaction)
	require.NotNil(t, resp.Transaction)
	assert.Equal(t, domain.Credit, resp.Transaction.Type)
	assert.True(t, decimal.RequireFromString("100.50").Equal(resp.Transaction.Amount))
}

func TestCreateTransaction_ReplayReturns200(t *testing.T) {
	r, _ := newTransactionsRouter()

	first := postTransaction(t, r, validBody())
	require.Equal(t, http.StatusCreated, first.Code)
	var created struct {
		Transaction *domain.Transaction `json:"transaction"`
	}
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &created))

	second := postTransaction(t, r, validBody())
	require.Equal(t, http.StatusOK, second.Code)

	var replay struct {
		Transaction      *domain.Transaction `json:"transaction"`
		IsNewTransaction bool                `json:"isNewTransaction"`
	}
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &replay))
	assert.False(t, replay.IsNewTransaction)
	assert.Equal(t, created.Transaction.ID, replay.Transaction.ID)
}

func TestCreateTransaction_Validation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(map[string]interface{})
		wantCode string
	}{
		{"zero amount", func(b map[string]interface{}) { b["amount"] = 0 }, "Transaction.InvalidAmount"},
		{"negative amount", func(b map[string]interface{}) { b["amount"] = -5 }, "Transaction.InvalidAmount"},
		{"three decimal places", func(b map[string]interface{}) { b["amount"] = "10.555" }, "Transaction.InvalidAmount"},
		{"over maximum", func(b map[string]interface{}) { b["amount"] = "1000000000.00" }, "Transaction.InvalidAmount"},
		{"lowercase type", func(b map[string]interface{}) { b["type"] = "credit" }, "Transaction.InvalidType"},
		{"unknown type", func(b map[string]interface{}) { b["type"] = "Transfer" }, "Transaction.InvalidType"},
		{"blank description", func(b map[string]interface{}) { b["description"] = "   " }, "Transaction.InvalidDescription"},
		{"short description", func(b map[string]interface{}) { b["description"] = "ab" }, "Transaction.InvalidDescription"},
		{"missing date", func(b map[string]interface{}) { delete(b, "transactionDate") }, "Transaction.InvalidDate"},
		{"future date", func(b map[string]interface{}) {
			b["transactionDate"] = time.Now().UTC().AddDate(0, 0, 2).Format(time.RFC3339)
		}, "Transaction.InvalidDate"},
		{"ancient date", func(b map[string]interface{}) {
			b["transactionDate"] = time.Now().UTC().AddDate(-11, 0, 0).Format(time.RFC3339)
		}, "Transaction.InvalidDate"},
		{"missing key", func(b map[string]interface{}) { delete(b, "idempotencyKey") }, "Transaction.InvalidIdempotencyKey"},
		{"short key", func(b map[string]interface{}) { b["idempotencyKey"] = "too-short" }, "Transaction.InvalidIdempotencyKey"},
		{"key with spaces", func(b map[string]interface{}) { b["idempotencyKey"] = "has spaces in the key" }, "Transaction.InvalidIdempotencyKey"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTransactionsRouter()
			body := validBody()
			tt.mutate(body)

			rec := postTransaction(t, r, body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp struct {
				Code string `json:"code"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestCreateTransaction_DescriptionBoundsCountRunes(t *testing.T) {
	r, _ := newTransactionsRouter()

	// 400 multibyte characters exceed 500 bytes but stay within the limit.
	body := validBody()
	body["description"] = strings.Repeat("é", 400)
	rec := postTransaction(t, r, body)
	assert.Equal(t, http.StatusCreated, rec.Code)

	body = validBody()
	body["description"] = strings.Repeat("é", 501)
	body["idempotencyKey"] = "office-2026-02-03-002"
	rec = postTransaction(t, r, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Transaction.InvalidDescription", resp.Code)
}

func TestCreateTransaction_MalformedBody(t *testing.T) {
	r, _ := newTransactionsRouter()

	req := httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTransactionByID(t *testing.T) {
	r, st := newTransactionsRouter()
	rec := postTransaction(t, r, validBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	var id uuid.UUID
	for k := range st.byID {
		id = k
	}

	get := httptest.NewRecorder()
	r.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/transactions/"+id.String(), nil))
	require.Equal(t, http.StatusOK, get.Code)

	var tx domain.Transaction
	require.NoError(t, json.Unmarshal(get.Body.Bytes(), &tx))
	assert.Equal(t, id, tx.ID)
}

func TestGetTransactionByID_Errors(t *testing.T) {
	r, _ := newTransactionsRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transactions/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transactions/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTransactionsByDate(t *testing.T) {
	r, _ := newTransactionsRouter()
	rec := postTransaction(t, r, validBody())
	require.Equal(t, http.StatusCreated, rec.Code)

	list := httptest.NewRecorder()
	r.ServeHTTP(list, httptest.NewRequest(http.MethodGet, "/transactions?date=2026-02-03", nil))
	require.Equal(t, http.StatusOK, list.Code)

	var txs []domain.Transaction
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &txs))
	assert.Len(t, txs, 1)

	// A date with no data yields an empty array, not null.
	empty := httptest.NewRecorder()
	r.ServeHTTP(empty, httptest.NewRequest(http.MethodGet, "/transactions?date=2020-01-01", nil))
	require.Equal(t, http.StatusOK, empty.Code)
	assert.Equal(t, "[]", string(bytes.TrimSpace(empty.Body.Bytes())))

	bad := httptest.NewRecorder()
	r.ServeHTTP(bad, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/transactions?date=%s", "03-02-2026"), nil))
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}
