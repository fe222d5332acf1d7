// Package conversation owns per-session assistant memory and runs the loop
// that answers questions arriving on the message bus.
package conversation

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dotsetgreg/daybook/pkg/logger"
	"github.com/dotsetgreg/daybook/pkg/memory"
)

// HistoryStore persists long-term logs across processes.
// memory.SQLiteStore implements it.
type HistoryStore interface {
	Load(ctx context.Context, sessionKey string, opts ...memory.Option) (*memory.Memory, error)
	AppendRecord(ctx context.Context, sessionKey string, rec memory.Record) error
}

// DefaultIdleSessions is how many unused sessions a Registry keeps in memory.
const DefaultIdleSessions = 256

// Registry hands out one Memory per session key. Access to a session is
// serialized; different sessions proceed in parallel.
//
// Sessions in use live in active. Once released they move to an LRU of idle
// sessions; an evicted session is restored from the store on its next use.
type Registry struct {
	store   HistoryStore
	memOpts []memory.Option
	mu      sync.Mutex
	active  map[string]*session
	idle    *lru.Cache[string, *session]
}

type session struct {
	mu   sync.Mutex
	mem  *memory.Memory
	refs int
}

// NewRegistry keeps memories in process only when store is nil.
func NewRegistry(store HistoryStore, opts ...memory.Option) *Registry {
	idle, err := lru.New[string, *session](DefaultIdleSessions)
	if err != nil {
		panic(err)
	}
	return &Registry{
		store:   store,
		memOpts: opts,
		active:  make(map[string]*session),
		idle:    idle,
	}
}

// SetIdleLimit resizes the idle LRU. Values below 1 are ignored.
func (r *Registry) SetIdleLimit(n int) {
	if n < 1 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if evicted := r.idle.Resize(n); evicted > 0 {
		logger.DebugCF("conversation", "Evicted idle sessions", map[string]any{"count": evicted})
	}
}

func (r *Registry) acquire(key string) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.active[key]
	if !ok {
		if s, ok = r.idle.Peek(key); ok {
			r.idle.Remove(key)
		} else {
			s = &session{}
		}
		r.active[key] = s
	}
	s.refs++
	return s
}

func (r *Registry) release(key string, s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.refs--
	if s.refs > 0 {
		return
	}
	delete(r.active, key)
	// A session whose restore failed is dropped so the next call retries.
	if s.mem != nil {
		r.idle.Add(key, s)
	}
}

// With runs fn with exclusive access to the session's memory and persists the
// records fn added. The memory is restored from the store on first use.
func (r *Registry) With(ctx context.Context, key string, fn func(*memory.Memory) error) error {
	s := r.acquire(key)
	defer r.release(key, s)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mem == nil {
		mem, err := r.restore(ctx, key)
		if err != nil {
			return err
		}
		s.mem = mem
	}

	before := len(s.mem.LongTerm)
	if err := fn(s.mem); err != nil {
		return err
	}
	if r.store == nil {
		return nil
	}
	for _, rec := range s.mem.LongTerm[before:] {
		if err := r.store.AppendRecord(ctx, key, rec); err != nil {
			return fmt.Errorf("persist history for %s: %w", key, err)
		}
	}
	return nil
}

func (r *Registry) restore(ctx context.Context, key string) (*memory.Memory, error) {
	if r.store == nil {
		return memory.New(r.memOpts...), nil
	}
	mem, err := r.store.Load(ctx, key, r.memOpts...)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", key, err)
	}
	if n := len(mem.LongTerm); n > 0 {
		logger.DebugCF("conversation", "Restored session history", map[string]any{
			"session": key,
			"records": n,
		})
	}
	return mem, nil
}

// Sessions reports how many sessions are held in this process.
func (r *Registry) Sessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active) + r.idle.Len()
}
