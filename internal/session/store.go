package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/pos-resto/internal/draft"
	"github.com/noah-isme/pos-resto/internal/gate"
)

// ErrNotFound indicates the requested session could not be located.
var ErrNotFound = errors.New("session not found")

// Record is the persisted state of one POS terminal session: its draft, its
// checkout state and whether the operator has confirmed the total.
type Record struct {
	ID        string           `json:"id"`
	Draft     draft.OrderDraft `json:"draft"`
	State     gate.State       `json:"state"`
	Confirmed bool             `json:"confirmed"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Store persists session records in Redis. Every save refreshes the TTL so an
// active terminal keeps its draft alive.
type Store struct {
	Client *redis.Client
	TTL    time.Duration
	Now    func() time.Time
}

func (s *Store) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 12 * time.Hour
	}
	return s.TTL
}

func (s *Store) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func sessionKey(id string) string {
	return "pos:session:" + id
}

// Save writes the record and refreshes its TTL.
func (s *Store) Save(ctx context.Context, rec Record) error {
	if s == nil || s.Client == nil {
		return errors.New("session store not configured")
	}
	if rec.ID == "" {
		return errors.New("session id is empty")
	}
	rec.UpdatedAt = s.now()
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.Client.Set(ctx, sessionKey(rec.ID), data, s.ttl()).Err()
}

// Load fetches a session record by identifier.
func (s *Store) Load(ctx context.Context, id string) (Record, error) {
	if s == nil || s.Client == nil {
		return Record{}, errors.New("session store not configured")
	}
	data, err := s.Client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return rec, nil
}

// Delete removes a session record. Deleting a missing record is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if s == nil || s.Client == nil {
		return errors.New("session store not configured")
	}
	return s.Client.Del(ctx, sessionKey(id)).Err()
}
