package archive

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/pizzeria-agent/internal/models"
)

// schemaSQL creates the closed-order archive. Conversations live in redis
// while open; only confirmed orders land here, so the KV store does not have
// to retain history forever.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS orders (
  id BIGSERIAL PRIMARY KEY,
  phone TEXT NOT NULL,
  customer_name TEXT NULL,
  order_code TEXT NOT NULL,
  summary TEXT NOT NULL,
  started_at TIMESTAMPTZ NOT NULL,
  closed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_orders_phone_time ON orders (phone, closed_at DESC);
CREATE INDEX IF NOT EXISTS idx_orders_code ON orders (order_code);
`

// Archive stores closed orders in Postgres.
type Archive struct {
	pool *pgxpool.Pool
}

// Connect creates the connection pool and applies the schema.
func Connect(ctx context.Context, url string) (*Archive, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	// Basic tuning for small workloads
	cfg.MaxConns = 8
	cfg.MinConns = 0
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, err
	}
	return &Archive{pool: pool}, nil
}

// SaveOrder inserts one closed conversation. Called best-effort from the
// closing path; the caller logs failures and keeps going.
func (a *Archive) SaveOrder(ctx context.Context, rec models.ConversationRecord) error {
	var namePtr *string
	if rec.Customer.Name != "" {
		namePtr = &rec.Customer.Name
	}
	_, err := a.pool.Exec(ctx, `
        INSERT INTO orders (phone, customer_name, order_code, summary, started_at)
        VALUES ($1,$2,$3,$4,$5)
    `, rec.Customer.Phone, namePtr, rec.OrderCode, rec.OrderSummary, rec.ChatAt)
	return err
}

// Close releases the pool.
func (a *Archive) Close() {
	a.pool.Close()
}
