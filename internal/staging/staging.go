// Package staging holds one validated, not yet confirmed order per guardian
// session between the input and confirm steps.
package staging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
	"github.com/kinder-supplies/api/internal/intake"
)

var (
	ErrNotStaged     = errors.New("no order staged")
	ErrTokenMismatch = errors.New("confirmation token does not match")
)

const keyPrefix = "staged/"

// Staged is the stored form of a pending order plus the token the guardian
// must echo back to confirm it.
type Staged struct {
	Token     string              `json:"confirmation_token"`
	Order     intake.PendingOrder `json:"order"`
	StagedAt  time.Time           `json:"staged_at"`
	ExpiresAt time.Time           `json:"expires_at"`
}

// Store is a pebble-backed staging area keyed by session id.
type Store struct {
	db       *pebble.DB
	ttl      time.Duration
	now      func() time.Time
	newToken func() string

	// locks serialise operations per session; keys hash onto a fixed set.
	locks [lockStripes]sync.Mutex
}

const lockStripes = 64

func Open(dir string, ttl time.Duration) (*Store, error) {
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &Store{
		db:       db,
		ttl:      ttl,
		now:      time.Now,
		newToken: func() string { return uuid.NewString() },
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Session scopes staging operations to one guardian session.
func (s *Store) Session(id string) *Session {
	return &Session{store: s, key: []byte(keyPrefix + id)}
}

func (s *Store) lock(key []byte) func() {
	h := fnv.New32a()
	_, _ = h.Write(key)
	mu := &s.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// PurgeExpired deletes every staged order past its expiry and returns how
// many were removed.
func (s *Store) PurgeExpired() (int, error) {
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: prefixEnd([]byte(keyPrefix)),
	})
	if err != nil {
		return 0, fmt.Errorf("pebble iter: %w", err)
	}

	now := s.now()
	var expired [][]byte
	for it.First(); it.Valid(); it.Next() {
		st, err := decode(it.Value())
		if err != nil || !now.Before(st.ExpiresAt) {
			expired = append(expired, append([]byte(nil), it.Key()...))
		}
	}
	if err := it.Close(); err != nil {
		return 0, fmt.Errorf("pebble iter: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	b := s.db.NewBatch()
	defer b.Close()
	for _, k := range expired {
		if err := b.Delete(k, nil); err != nil {
			return 0, err
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("pebble commit: %w", err)
	}
	return len(expired), nil
}

type Session struct {
	store *Store
	key   []byte
}

// Stage replaces any previously staged order and issues a new token.
func (s *Session) Stage(ctx context.Context, order intake.PendingOrder) (Staged, error) {
	if err := ctx.Err(); err != nil {
		return Staged{}, err
	}
	defer s.store.lock(s.key)()

	now := s.store.now()
	st := Staged{
		Token:     s.store.newToken(),
		Order:     order,
		StagedAt:  now,
		ExpiresAt: now.Add(s.store.ttl),
	}
	if err := s.put(st); err != nil {
		return Staged{}, err
	}
	return st, nil
}

// Peek returns the staged order, or ErrNotStaged when there is none or it
// has expired.
func (s *Session) Peek(ctx context.Context) (Staged, error) {
	if err := ctx.Err(); err != nil {
		return Staged{}, err
	}
	defer s.store.lock(s.key)()
	return s.get()
}

// Take removes and returns the staged order if token matches it. Only one
// caller can take a given staged order; a concurrent Take sees ErrNotStaged.
func (s *Session) Take(ctx context.Context, token string) (Staged, error) {
	if err := ctx.Err(); err != nil {
		return Staged{}, err
	}
	defer s.store.lock(s.key)()

	st, err := s.get()
	if err != nil {
		return Staged{}, err
	}
	if token == "" || token != st.Token {
		return Staged{}, ErrTokenMismatch
	}
	if err := s.store.db.Delete(s.key, pebble.Sync); err != nil {
		return Staged{}, fmt.Errorf("pebble delete: %w", err)
	}
	return st, nil
}

// Restore puts back an order removed by Take, keeping its token and expiry.
// It does nothing if the session has staged another order in the meantime.
func (s *Session) Restore(ctx context.Context, st Staged) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.store.lock(s.key)()

	_, closer, err := s.store.db.Get(s.key)
	if err == nil {
		_ = closer.Close()
		return nil
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("pebble get: %w", err)
	}
	return s.put(st)
}

func (s *Session) put(st Staged) error {
	val, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode staged order: %w", err)
	}
	if err := s.store.db.Set(s.key, val, pebble.Sync); err != nil {
		return fmt.Errorf("pebble set: %w", err)
	}
	return nil
}

// get reads the staged order; callers hold the session lock.
func (s *Session) get() (Staged, error) {
	val, closer, err := s.store.db.Get(s.key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Staged{}, ErrNotStaged
		}
		return Staged{}, fmt.Errorf("pebble get: %w", err)
	}
	st, decodeErr := decode(val)
	_ = closer.Close()
	if decodeErr != nil {
		return Staged{}, fmt.Errorf("decode staged order: %w", decodeErr)
	}

	if !s.store.now().Before(st.ExpiresAt) {
		if err := s.store.db.Delete(s.key, pebble.Sync); err != nil {
			return Staged{}, fmt.Errorf("pebble delete: %w", err)
		}
		return Staged{}, ErrNotStaged
	}
	return st, nil
}

// Clear drops the staged order. Clearing an empty session is not an error.
func (s *Session) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer s.store.lock(s.key)()
	if err := s.store.db.Delete(s.key, pebble.Sync); err != nil {
		return fmt.Errorf("pebble delete: %w", err)
	}
	return nil
}

func decode(val []byte) (Staged, error) {
	var st Staged
	if err := json.Unmarshal(val, &st); err != nil {
		return Staged{}, err
	}
	return st, nil
}

func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	end[len(end)-1]++
	return end
}
