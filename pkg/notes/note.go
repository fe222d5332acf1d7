// Package notes holds the day-note record, the validated snapshot the insight
// engine reads from, and the stores that persist notes.
package notes

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateLayout is the canonical key format for a note.
const DateLayout = "2006-01-02"

// Note is one day's entry. The date is the unique key.
type Note struct {
	Date      time.Time `json:"-"`
	Text      string    `json:"text"`
	Important bool      `json:"important"`
}

// Key returns the YYYY-MM-DD key of the note.
func (n Note) Key() string {
	return n.Date.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD key strictly.
func ParseDate(key string) (time.Time, error) {
	if strings.TrimSpace(key) == "" {
		return time.Time{}, &InvalidDateError{Key: key, Err: ErrEmptyKey}
	}
	d, err := time.Parse(DateLayout, key)
	if err != nil {
		return time.Time{}, &InvalidDateError{Key: key, Err: err}
	}
	return d, nil
}

// Snapshot is a read-only view of every note, keyed by date. The zero value
// is an empty snapshot.
type Snapshot struct {
	byKey  map[string]Note
	sorted []Note
}

// NewSnapshot validates every key and builds a snapshot. The Date of each
// input note is ignored and replaced by the parsed key.
func NewSnapshot(raw map[string]Note) (Snapshot, error) {
	byKey := make(map[string]Note, len(raw))
	for key, n := range raw {
		d, err := ParseDate(key)
		if err != nil {
			return Snapshot{}, err
		}
		n.Date = d
		byKey[key] = n
	}
	return fromValidated(byKey), nil
}

// MustSnapshot is NewSnapshot for fixtures; it panics on invalid keys.
func MustSnapshot(raw map[string]Note) Snapshot {
	s, err := NewSnapshot(raw)
	if err != nil {
		panic(err)
	}
	return s
}

func fromValidated(byKey map[string]Note) Snapshot {
	sorted := make([]Note, 0, len(byKey))
	for _, n := range byKey {
		sorted = append(sorted, n)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return Snapshot{byKey: byKey, sorted: sorted}
}

type storedNote struct {
	Text      *string `json:"text"`
	Important *bool   `json:"important"`
}

// ParseSnapshot decodes the persisted JSON object keyed by ISO date. Absent
// fields default to empty text and not important.
func ParseSnapshot(data []byte) (Snapshot, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return Snapshot{}, nil
	}
	var raw map[string]storedNote
	if err := json.Unmarshal(data, &raw); err != nil {
		return Snapshot{}, fmt.Errorf("decode notes: %w", err)
	}
	out := make(map[string]Note, len(raw))
	for key, sn := range raw {
		var n Note
		if sn.Text != nil {
			n.Text = *sn.Text
		}
		if sn.Important != nil {
			n.Important = *sn.Important
		}
		out[key] = n
	}
	return NewSnapshot(out)
}

// MarshalJSON encodes the snapshot in the persisted layout.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := make(map[string]Note, len(s.byKey))
	for k, n := range s.byKey {
		out[k] = n
	}
	return json.Marshal(out)
}

func (s Snapshot) Len() int {
	return len(s.byKey)
}

// Get returns the note stored under key.
func (s Snapshot) Get(key string) (Note, bool) {
	n, ok := s.byKey[key]
	return n, ok
}

// Sorted returns a copy of all notes in chronological order.
func (s Snapshot) Sorted() []Note {
	out := make([]Note, len(s.sorted))
	copy(out, s.sorted)
	return out
}

// Filter returns the notes for which keep reports true.
func (s Snapshot) Filter(keep func(Note) bool) Snapshot {
	byKey := make(map[string]Note)
	for k, n := range s.byKey {
		if keep(n) {
			byKey[k] = n
		}
	}
	return fromValidated(byKey)
}

// Year returns the notes dated in year.
func (s Snapshot) Year(year int) Snapshot {
	return s.Filter(func(n Note) bool { return n.Date.Year() == year })
}

// With returns a new snapshot where n replaces any note on the same day.
func (s Snapshot) With(n Note) Snapshot {
	byKey := make(map[string]Note, len(s.byKey)+1)
	for k, v := range s.byKey {
		byKey[k] = v
	}
	d := n.Date
	n.Date = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	byKey[n.Key()] = n
	return fromValidated(byKey)
}
