// Package session stores a denormalized profile snapshot per signed-in
// user in Redis. The snapshot is written at sign-in, refreshed whenever
// the profile is edited, and deleted on sign-out. It is a cache of the
// users table, never the source of truth: admin-gated access checks go
// back to the database.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoSession is returned when no snapshot exists for the subject.
var ErrNoSession = errors.New("no session")

// ErrMalformedSession is returned when a stored snapshot fails to parse
// or validate. The store deletes the offending key before returning, so
// a corrupt entry degrades to "signed out" rather than an exception.
var ErrMalformedSession = errors.New("malformed session snapshot")

// Snapshot is the cached profile held for a signed-in user.
type Snapshot struct {
	UserID      uint64    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	IsActive    bool      `json:"is_active"`
	IssuedAt    time.Time `json:"issued_at"`
}

// validate rejects structurally broken snapshots. The role check is
// deliberately exhaustive: an unknown role means the payload did not come
// from this application.
func (s Snapshot) validate() error {
	if s.UserID == 0 || s.Email == "" {
		return ErrMalformedSession
	}
	if s.Role != "admin" && s.Role != "user" {
		return ErrMalformedSession
	}
	return nil
}

// Store reads and writes snapshots keyed by user id. A nil Redis client
// disables the store: Get reports no session and writes are dropped, so
// the service keeps working against the database alone.
type Store struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{rdb: rdb, ttl: ttl, prefix: "session"}
}

func (s *Store) key(userID uint64) string {
	return s.prefix + ":" + strconv.FormatUint(userID, 10)
}

// Put writes a snapshot, stamping IssuedAt when unset.
func (s *Store) Put(ctx context.Context, snap Snapshot) error {
	if s.rdb == nil {
		return nil
	}
	if err := snap.validate(); err != nil {
		return err
	}
	if snap.IssuedAt.IsZero() {
		snap.IssuedAt = time.Now().UTC()
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(snap.UserID), b, s.ttl).Err()
}

// Get loads the snapshot for a user. Missing keys are ErrNoSession;
// unparseable or invalid payloads are deleted and reported as
// ErrMalformedSession.
func (s *Store) Get(ctx context.Context, userID uint64) (Snapshot, error) {
	if s.rdb == nil {
		return Snapshot{}, ErrNoSession
	}
	b, err := s.rdb.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, ErrNoSession
		}
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		_ = s.rdb.Del(ctx, s.key(userID)).Err()
		return Snapshot{}, ErrMalformedSession
	}
	if err := snap.validate(); err != nil {
		_ = s.rdb.Del(ctx, s.key(userID)).Err()
		return Snapshot{}, ErrMalformedSession
	}
	return snap, nil
}

// Clear removes the snapshot for a user. Clearing an absent key is fine.
func (s *Store) Clear(ctx context.Context, userID uint64) error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Del(ctx, s.key(userID)).Err()
}
