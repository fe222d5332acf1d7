package conversation

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotsetgreg/daybook/pkg/assistant"
	"github.com/dotsetgreg/daybook/pkg/bus"
	"github.com/dotsetgreg/daybook/pkg/memory"
	"github.com/dotsetgreg/daybook/pkg/notes"
)

func TestRegistry_SerializesPerSession(t *testing.T) {
	r := NewRegistry(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.With(context.Background(), "s1", func(m *memory.Memory) error {
				m.Record("q", "a")
				return nil
			})
		}()
	}
	wg.Wait()

	require.NoError(t, r.With(context.Background(), "s1", func(m *memory.Memory) error {
		assert.Len(t, m.LongTerm, 50)
		assert.Len(t, m.ShortTerm, memory.ShortTermLimit)
		return nil
	}))
	assert.Equal(t, 1, r.Sessions())
}

func TestRegistry_PersistsAndRestores(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := memory.NewSQLiteStore(path)
	require.NoError(t, err)
	r := NewRegistry(store)
	for _, q := range []string{"one", "two"} {
		require.NoError(t, r.With(ctx, "cli:default", func(m *memory.Memory) error {
			m.Record(q, "answer "+q)
			return nil
		}))
	}
	require.NoError(t, store.Close())

	store2, err := memory.NewSQLiteStore(path)
	require.NoError(t, err)
	defer store2.Close()

	fresh := NewRegistry(store2)
	require.NoError(t, fresh.With(ctx, "cli:default", func(m *memory.Memory) error {
		require.Len(t, m.LongTerm, 2)
		assert.Equal(t, "two", m.LongTerm[1].Question)
		return nil
	}))
	require.NoError(t, fresh.With(ctx, "other", func(m *memory.Memory) error {
		assert.Empty(t, m.LongTerm)
		return nil
	}))
}

func TestRegistry_EvictsIdleSessions(t *testing.T) {
	ctx := context.Background()
	store, err := memory.NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	r := NewRegistry(store)
	r.SetIdleLimit(2)
	for _, key := range []string{"http:a", "http:b", "http:c", "http:d"} {
		require.NoError(t, r.With(ctx, key, func(m *memory.Memory) error {
			m.Record("hello from "+key, "hi")
			return nil
		}))
	}
	assert.Equal(t, 2, r.Sessions())

	// http:a was evicted and comes back from the store.
	require.NoError(t, r.With(ctx, "http:a", func(m *memory.Memory) error {
		require.Len(t, m.LongTerm, 1)
		assert.Equal(t, "hello from http:a", m.LongTerm[0].Question)
		return nil
	}))
	assert.Equal(t, 2, r.Sessions())
}

func TestRegistry_KeepsBusySessionsPastTheLimit(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	r.SetIdleLimit(1)

	require.NoError(t, r.With(ctx, "outer", func(outer *memory.Memory) error {
		outer.Record("q1", "a1")
		for _, key := range []string{"x", "y", "z"} {
			require.NoError(t, r.With(ctx, key, func(*memory.Memory) error { return nil }))
		}
		outer.Record("q2", "a2")
		return nil
	}))

	require.NoError(t, r.With(ctx, "outer", func(m *memory.Memory) error {
		assert.Len(t, m.LongTerm, 2)
		return nil
	}))
	assert.Equal(t, 1, r.Sessions())
}

func TestRegistry_PropagatesCallbackError(t *testing.T) {
	boom := errors.New("boom")
	err := NewRegistry(nil).With(context.Background(), "k", func(*memory.Memory) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func newTestGateway(t *testing.T, mb *bus.MessageBus) (*Gateway, *notes.Journal) {
	t.Helper()
	journal := notes.NewJournal(notes.NewFileStore(filepath.Join(t.TempDir(), "notes.json")))
	a := assistant.New(assistant.WithClock(func() time.Time {
		return time.Date(2024, 6, 13, 9, 0, 0, 0, time.UTC)
	}))
	return NewGateway(mb, journal, a, NewRegistry(nil)), journal
}

func TestGateway_AskUsesCurrentJournal(t *testing.T) {
	ctx := context.Background()
	g, journal := newTestGateway(t, bus.NewMessageBus())

	_, err := journal.SetText(ctx, "2024-06-11", "Dinner with Ana")
	require.NoError(t, err)
	_, err = journal.SetImportant(ctx, "2024-06-11", true)
	require.NoError(t, err)

	got, err := g.Ask(ctx, "cli:default", "what's important this week")
	require.NoError(t, err)
	assert.Contains(t, got, "⭐ 11/06: Dinner with Ana")
}

func TestGateway_RunAnswersOnTheBus(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()
	g, journal := newTestGateway(t, mb)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := journal.SetText(ctx, "2024-06-12", "ran 5k in the park")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	mb.PublishInbound(bus.InboundMessage{
		Channel:  "discord",
		ChatID:   "42",
		Content:  "what happened in the park?",
		Metadata: map[string]string{bus.MetaMessageID: "m1"},
	})
	out, ok := mb.SubscribeOutbound(ctx)
	require.True(t, ok)
	assert.Equal(t, "discord", out.Channel)
	assert.Equal(t, "42", out.ChatID)
	assert.Equal(t, "m1", out.ReplyTo)
	assert.Equal(t, bus.KindAnswer, out.Kind)
	assert.Contains(t, out.Content, "- 2024-06-12: ran 5k in the park")

	mb.PublishInbound(bus.InboundMessage{
		Channel:  "discord",
		ChatID:   "42",
		Metadata: map[string]string{bus.MetaCommand: bus.CommandReport},
	})
	out, ok = mb.SubscribeOutbound(ctx)
	require.True(t, ok)
	assert.Contains(t, out.Content, "📅 2024-06")

	g.Stop()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("gateway did not stop")
	}
}

func TestGateway_ReportOnEmptyJournal(t *testing.T) {
	g, _ := newTestGateway(t, bus.NewMessageBus())
	got, err := g.Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, emptyReport, got)
}
