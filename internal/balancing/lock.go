package balancing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// ErrInvoiceLocked means another balancing pass holds the invoice.
var ErrInvoiceLocked = errors.New("landlord invoice is locked by another balancing pass")

// InvoiceLocker serializes balancing passes per landlord invoice. Two
// concurrent payouts must never double-apply against the same capacity.
type InvoiceLocker struct {
	client *redis.Client
	script *redis.Script
}

func NewInvoiceLocker(client *redis.Client) *InvoiceLocker {
	if client == nil {
		return nil
	}
	return &InvoiceLocker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

// Acquire takes the invoice lock or fails fast with ErrInvoiceLocked.
// The returned token must be passed to Release.
func (l *InvoiceLocker) Acquire(ctx context.Context, invoiceID snowflake.ID, ttl time.Duration) (string, error) {
	if l == nil || l.client == nil {
		// no locker configured: the database transaction is the only guard
		return "", nil
	}
	if ttl <= 0 {
		return "", errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey(invoiceID), token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrInvoiceLocked
	}
	return token, nil
}

func (l *InvoiceLocker) Release(ctx context.Context, invoiceID snowflake.ID, token string) error {
	if l == nil || l.client == nil || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{lockKey(invoiceID)}, token).Err()
}

func lockKey(invoiceID snowflake.ID) string {
	return fmt.Sprintf("balancing:invoice:%s", invoiceID)
}
