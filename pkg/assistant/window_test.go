package assistant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func TestResolveWindow(t *testing.T) {
	// Thursday, mid-morning.
	now := time.Date(2024, 6, 13, 10, 45, 0, 0, time.UTC)

	tests := []struct {
		question   string
		start, end string
	}{
		{"what happened this week", "2024-06-10", "2024-06-13"},
		{"O que aconteceu ESSA SEMANA?", "2024-06-10", "2024-06-13"},
		{"notes from the last 7 days", "2024-06-06", "2024-06-13"},
		{"o que fiz nos últimos 7 dias", "2024-06-06", "2024-06-13"},
		{"summary of this month", "2024-06-01", "2024-06-13"},
		{"resumo do mês passado", "2024-05-01", "2024-05-31"},
		{"last month please", "2024-05-01", "2024-05-31"},
		{"this year so far", "2024-01-01", "2024-06-13"},
		// The first rule in table order wins.
		{"this week or last month", "2024-06-10", "2024-06-13"},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			w := ResolveWindow(tt.question, now)
			require.NotNil(t, w)
			assert.Equal(t, day(t, tt.start), w.Start)
			assert.Equal(t, day(t, tt.end), w.End)
		})
	}
}

func TestResolveWindow_NoPhrase(t *testing.T) {
	assert.Nil(t, ResolveWindow("what did I write about running", time.Now()))
	assert.Nil(t, ResolveWindow("", time.Now()))
}

func TestResolveWindow_WeekStartsMonday(t *testing.T) {
	sunday := time.Date(2024, 6, 16, 23, 0, 0, 0, time.UTC)
	w := ResolveWindow("this week", sunday)
	require.NotNil(t, w)
	assert.Equal(t, day(t, "2024-06-10"), w.Start)

	monday := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	w = ResolveWindow("this week", monday)
	require.NotNil(t, w)
	assert.Equal(t, w.Start, w.End)
}

func TestResolveWindow_LastMonthAcrossYear(t *testing.T) {
	w := ResolveWindow("last month", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	require.NotNil(t, w)
	assert.Equal(t, day(t, "2023-12-01"), w.Start)
	assert.Equal(t, day(t, "2023-12-31"), w.End)
}

func TestWindowContainsIsInclusive(t *testing.T) {
	w := Window{Start: day(t, "2024-06-10"), End: day(t, "2024-06-13")}
	assert.True(t, w.Contains(day(t, "2024-06-10")))
	assert.True(t, w.Contains(day(t, "2024-06-13")))
	assert.True(t, w.Contains(time.Date(2024, 6, 13, 23, 59, 0, 0, time.UTC)))
	assert.False(t, w.Contains(day(t, "2024-06-09")))
	assert.False(t, w.Contains(day(t, "2024-06-14")))
}
