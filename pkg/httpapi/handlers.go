package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dotsetgreg/daybook/pkg/assistant"
	"github.com/dotsetgreg/daybook/pkg/bus"
	"github.com/dotsetgreg/daybook/pkg/insights"
	"github.com/dotsetgreg/daybook/pkg/notes"
)

const (
	sessionHeader  = "X-Session-ID"
	defaultSession = "default"
	maxBodyBytes   = 1 << 20
)

// AskRequest is the body of POST /api/ask. Any question is accepted; the
// assistant answers what it cannot classify with a clarification.
type AskRequest struct {
	Question string `json:"question"`
}

// ScoresRequest is the body of POST /api/ask/scores.
type ScoresRequest struct {
	Question string    `json:"question"`
	Data     ScoreData `json:"data"`
}

type ScoreData struct {
	Burnout     float64   `json:"burnout" validate:"gte=0,lte=100"`
	Antifragile float64   `json:"antifragile" validate:"gte=0,lte=100"`
	Predicted   float64   `json:"predicted" validate:"gte=0,lte=100"`
	Weekly      []float64 `json:"weekly" validate:"omitempty,len=7"`
}

type AnswerResponse struct {
	Answer string `json:"answer"`
}

// PutNoteRequest is the body of PUT /api/notes/{date}.
type PutNoteRequest struct {
	Text *string `json:"text" validate:"required"`
}

type NoteResponse struct {
	Date      string `json:"date"`
	Text      string `json:"text"`
	Important bool   `json:"important"`
}

type ReportPeriod struct {
	Period   string   `json:"period"`
	Insights []string `json:"insights"`
}

type ReportResponse struct {
	Periods []ReportPeriod `json:"periods"`
}

func noteResponse(n notes.Note) NoteResponse {
	return NoteResponse{Date: n.Key(), Text: n.Text, Important: n.Important}
}

// decodeJSON reads a size-limited body into dst and validates it.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	return validateStruct(dst)
}

func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session := strings.TrimSpace(r.Header.Get(sessionHeader))
	if session == "" {
		session = defaultSession
	}

	answer, err := s.gateway.Ask(r.Context(), bus.ChannelHTTP+":"+session, req.Question)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, AnswerResponse{Answer: answer})
}

func (s *Server) askScores(w http.ResponseWriter, r *http.Request) {
	var req ScoresRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	answer := s.scores.Respond(req.Question, assistant.ScoreInput{
		Burnout:     req.Data.Burnout,
		Antifragile: req.Data.Antifragile,
		Predicted:   req.Data.Predicted,
		Weekly:      req.Data.Weekly,
	})
	s.respondJSON(w, http.StatusOK, AnswerResponse{Answer: answer})
}

func (s *Server) analysis(w http.ResponseWriter, r *http.Request) {
	snap, err := s.journal.Snapshot(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, insights.Aggregate(snap))
}

func (s *Server) yearlyAnalysis(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1 || year > 9999 {
		s.respondError(w, http.StatusBadRequest, "year must be a four-digit number")
		return
	}
	snap, err := s.journal.Snapshot(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, insights.AggregateYear(snap, year))
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	snap, err := s.journal.Snapshot(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	report := insights.BuildStrategicReport(snap)
	resp := ReportResponse{Periods: make([]ReportPeriod, 0, len(report))}
	for _, label := range report.Labels() {
		resp.Periods = append(resp.Periods, ReportPeriod{Period: label, Insights: report[label]})
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) getNote(w http.ResponseWriter, r *http.Request) {
	n, err := s.journal.Get(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, noteResponse(n))
}

func (s *Server) putNote(w http.ResponseWriter, r *http.Request) {
	var req PutNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := s.journal.SetText(r.Context(), chi.URLParam(r, "date"), *req.Text)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, noteResponse(n))
}

func (s *Server) toggleImportant(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req, err := notes.DecodeToggle(body)
	if err != nil {
		var missing *notes.MissingFieldError
		if errors.As(err, &missing) {
			s.respondJSON(w, http.StatusBadRequest, map[string]any{
				"error":   true,
				"message": err.Error(),
				"field":   missing.Field,
				"code":    http.StatusBadRequest,
			})
			return
		}
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.journal.SetImportant(r.Context(), req.Key, req.Important); err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondStoreError maps bad date keys to 400 and everything else to 500.
func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	var invalid *notes.InvalidDateError
	if errors.As(err, &invalid) {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error("Request failed", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]any{
		"error":   true,
		"message": message,
		"code":    status,
	})
}
