package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Broker topology. The topic exchange is routed by event type name; the
// consolidation worker binds one durable queue to it.
const (
	ExchangeName = "cashflow-events"
	QueueName    = "cashflow-consolidation"

	EventNameTransactionCreated = "TransactionCreated"
)

// TransactionCreated is the integration event emitted after a transaction is
// persisted. It carries everything the consolidation side needs to replay
// the update without consulting the sender's store. Field names match
// case-insensitively on receipt (encoding/json default).
type TransactionCreated struct {
	EventID         uuid.UUID       `json:"eventId"`
	OccurredOn      time.Time       `json:"occurredOn"`
	TransactionID   uuid.UUID       `json:"transactionId"`
	Amount          decimal.Decimal `json:"amount"`
	Type            string          `json:"type"`
	TransactionDate time.Time       `json:"transactionDate"`
}
