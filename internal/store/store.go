package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/your-org/pizzeria-agent/internal/models"
)

// Store persists one ConversationRecord per customer phone in redis, as JSON
// under customer:<phone>:chat. No TTL: a closed record stays until the next
// conversation overwrites it.
type Store struct {
	client *redis.Client
}

// Connect creates the redis client and verifies the connection.
func Connect(addr, password string, db int) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{client: client}, nil
}

// NewWithClient wraps an existing client (tests).
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Load reads the record for a phone. A missing key and an empty value both
// report found=false with a zero record.
func (s *Store) Load(ctx context.Context, phone string) (models.ConversationRecord, bool, error) {
	data, err := s.client.Get(ctx, models.CustomerKey(phone)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.ConversationRecord{}, false, nil
	}
	if err != nil {
		return models.ConversationRecord{}, false, fmt.Errorf("redis get: %w", err)
	}
	return decodeRecord(data)
}

// decodeRecord turns a stored value into a record. An empty value counts as a
// key miss; a value that no longer parses is an error, never a silent fresh
// conversation.
func decodeRecord(data []byte) (models.ConversationRecord, bool, error) {
	var rec models.ConversationRecord
	if len(data) == 0 {
		return rec, false, nil
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.ConversationRecord{}, false, fmt.Errorf("decode record: %w", err)
	}
	return rec, true, nil
}

// Save serializes and writes the record under the customer key.
func (s *Store) Save(ctx context.Context, phone string, rec models.ConversationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := s.client.Set(ctx, models.CustomerKey(phone), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.client.Close()
}
