package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotsetgreg/daybook/pkg/assistant"
	"github.com/dotsetgreg/daybook/pkg/bus"
	"github.com/dotsetgreg/daybook/pkg/conversation"
	"github.com/dotsetgreg/daybook/pkg/insights"
	"github.com/dotsetgreg/daybook/pkg/notes"
)

type fixture struct {
	handler http.Handler
	journal *notes.Journal
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	journal := notes.NewJournal(notes.NewFileStore(filepath.Join(t.TempDir(), "notes.json")))
	a := assistant.New(assistant.WithClock(func() time.Time {
		return time.Date(2024, 6, 13, 9, 0, 0, 0, time.UTC)
	}))
	gw := conversation.NewGateway(bus.NewMessageBus(), journal, a, conversation.NewRegistry(nil))
	return fixture{handler: NewServer(journal, gw, nil).Handler(), journal: journal}
}

func (f fixture) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/ready", "").Code)
}

func TestNotesCRUD(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/notes/2024-06-11", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, NoteResponse{Date: "2024-06-11"}, decode[NoteResponse](t, rec))

	rec = f.do(t, http.MethodPut, "/api/notes/2024-06-11", `{"text":"  Dentist at 3pm  "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, NoteResponse{Date: "2024-06-11", Text: "Dentist at 3pm"}, decode[NoteResponse](t, rec))

	rec = f.do(t, http.MethodPost, "/api/notes/toggle-important", `{"key":"2024-06-11","important":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "ok"}, decode[map[string]string](t, rec))

	n, err := f.journal.Get(context.Background(), "2024-06-11")
	require.NoError(t, err)
	assert.True(t, n.Important)
	assert.Equal(t, "Dentist at 3pm", n.Text)
}

func TestPutNote_Validation(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/notes/2024-06-11", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/notes/2024-13-40", `{"text":"x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/notes/yesterday", "").Code)
}

func TestToggleImportant_MissingField(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		body  string
		field string
	}{
		{`{"important":true}`, "key"},
		{`{"key":"2024-06-11"}`, "important"},
	}
	for _, tt := range tests {
		rec := f.do(t, http.MethodPost, "/api/notes/toggle-important", tt.body)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decode[map[string]any](t, rec)
		assert.Equal(t, tt.field, body["field"])
	}

	rec := f.do(t, http.MethodPost, "/api/notes/toggle-important", `{"key":"06/11/2024","important":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAsk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.journal.SetText(ctx, "2024-06-12", "Lunch with the team")
	require.NoError(t, err)
	_, err = f.journal.SetImportant(ctx, "2024-06-12", true)
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/api/ask", `{"question":"any commitments this week?"}`, sessionHeader, "abc")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[AnswerResponse](t, rec).Answer, "⭐ 12/06: Lunch with the team")

	rec = f.do(t, http.MethodPost, "/api/ask", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAsk_UnclassifiableQuestionsGetClarification(t *testing.T) {
	f := newFixture(t)
	clarification := assistant.New().Answer("", notes.Snapshot{}, nil)

	for name, body := range map[string]string{
		"empty":  `{"question":""}`,
		"absent": `{}`,
		"long":   `{"question":"` + strings.Repeat("x", 2001) + `"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/ask", body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, clarification, decode[AnswerResponse](t, rec).Answer)
		})
	}
}

func TestAskScores(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/ask/scores",
		`{"question":"risk of collapse?","data":{"burnout":80,"antifragile":50,"predicted":85,"weekly":[1,2,3,9,1,0,0]}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	answer := decode[AnswerResponse](t, rec).Answer
	assert.Contains(t, answer, "Collapse risk is high.")
	assert.Contains(t, answer, "highest mental load is: Thu.")

	rec = f.do(t, http.MethodPost, "/api/ask/scores", `{"data":{"burnout":120}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/ask/scores", `{"data":{"weekly":[1,2]}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalysisEndpoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.journal.SetText(ctx, "2024-03-15", "hello")
	require.NoError(t, err)
	_, err = f.journal.SetImportant(ctx, "2024-03-15", true)
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/analysis", "")
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[insights.Report](t, rec)
	assert.Equal(t, 1, report.TotalNotes)
	assert.Equal(t, 1, report.ImportantDays)

	rec = f.do(t, http.MethodGet, "/api/analysis/2024", "")
	require.Equal(t, http.StatusOK, rec.Code)
	yearly := decode[insights.YearlyReport](t, rec)
	assert.Equal(t, 3, yearly.BusiestMonth)
	assert.Equal(t, map[int]int{3: 1}, yearly.MonthlyActivity)
	assert.Equal(t, map[string]int{"Friday": 1}, yearly.WeekdayDistribution)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/analysis/abc", "").Code)

	rec = f.do(t, http.MethodGet, "/api/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[ReportResponse](t, rec)
	require.Len(t, got.Periods, 1)
	assert.Equal(t, "2024-03", got.Periods[0].Period)
	assert.Equal(t, "📊 Important: 1 | Intensity: 1.00", got.Periods[0].Insights[0])
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/ask", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
