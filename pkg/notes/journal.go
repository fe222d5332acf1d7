package notes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type upserter interface {
	Upsert(ctx context.Context, n Note) error
}

// Journal is the day-note CRUD surface over a Store.
type Journal struct {
	store Store
}

func NewJournal(store Store) *Journal {
	return &Journal{store: store}
}

// Snapshot loads the current collection.
func (j *Journal) Snapshot(ctx context.Context) (Snapshot, error) {
	return j.store.Load(ctx)
}

// Get returns the note for key, or an empty not-important note when the day
// has nothing stored.
func (j *Journal) Get(ctx context.Context, key string) (Note, error) {
	d, err := ParseDate(key)
	if err != nil {
		return Note{}, err
	}
	snap, err := j.store.Load(ctx)
	if err != nil {
		return Note{}, err
	}
	if n, ok := snap.Get(key); ok {
		return n, nil
	}
	return Note{Date: d}, nil
}

// SetText stores trimmed text for the day. A new day starts not important;
// an existing day keeps its flag.
func (j *Journal) SetText(ctx context.Context, key, text string) (Note, error) {
	return j.update(ctx, key, func(n *Note) {
		n.Text = strings.TrimSpace(text)
	})
}

// SetImportant flags or unflags the day. A new day starts with empty text.
func (j *Journal) SetImportant(ctx context.Context, key string, important bool) (Note, error) {
	return j.update(ctx, key, func(n *Note) {
		n.Important = important
	})
}

func (j *Journal) update(ctx context.Context, key string, mutate func(*Note)) (Note, error) {
	d, err := ParseDate(key)
	if err != nil {
		return Note{}, err
	}
	snap, err := j.store.Load(ctx)
	if err != nil {
		return Note{}, err
	}

	n, ok := snap.Get(key)
	if !ok {
		n = Note{Date: d}
	}
	mutate(&n)

	if u, ok := j.store.(upserter); ok {
		if err := u.Upsert(ctx, n); err != nil {
			return Note{}, err
		}
		return n, nil
	}
	if err := j.store.Save(ctx, snap.With(n)); err != nil {
		return Note{}, err
	}
	return n, nil
}

// ToggleRequest is the payload of an importance toggle.
type ToggleRequest struct {
	Key       string
	Important bool
}

// DecodeToggle parses a toggle payload, failing with MissingFieldError when
// "key" or "important" is absent.
func DecodeToggle(data []byte) (ToggleRequest, error) {
	var raw struct {
		Key       *string `json:"key"`
		Important *bool   `json:"important"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return ToggleRequest{}, fmt.Errorf("decode toggle payload: %w", err)
	}
	if raw.Key == nil {
		return ToggleRequest{}, &MissingFieldError{Field: "key"}
	}
	if raw.Important == nil {
		return ToggleRequest{}, &MissingFieldError{Field: "important"}
	}
	if _, err := ParseDate(*raw.Key); err != nil {
		return ToggleRequest{}, err
	}
	return ToggleRequest{Key: *raw.Key, Important: *raw.Important}, nil
}
