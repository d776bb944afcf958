package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Cache is the read-through accelerator capability. It is never the system
// of record: implementations must degrade every failure to a miss.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Remove(ctx context.Context, key string)
}

const (
	ConsolidationTTL = 10 * time.Minute
	TransactionTTL   = 5 * time.Minute
)

func ConsolidationKey(date time.Time) string {
	return "consolidation:" + date.UTC().Format("2006-01-02")
}

func TransactionKey(id uuid.UUID) string {
	return "transaction:" + id.String()
}
