package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tankkwon/delivery-app/internal/core"
	"github.com/tankkwon/delivery-app/internal/log"
	"github.com/tankkwon/delivery-app/internal/stats"
)

var errBadQuery = errors.New("bad request")

// badQuery marks err as a malformed query or path parameter.
func badQuery(err error) error {
	return fmt.Errorf("%w: %v", errBadQuery, err)
}

// StatsResponse echoes the resolved filter next to the summary.
type StatsResponse struct {
	Period   core.Period   `json:"period"`
	Platform core.Platform `json:"platform"`
	stats.Summary
}

// RatioResponse is the platform breakdown of one period.
type RatioResponse struct {
	Period core.Period           `json:"period"`
	Total  int64                 `json:"total"`
	Shares []stats.PlatformShare `json:"shares"`
}

// fail writes err and logs it. Server-side failures go through LogError with
// the request id; client errors are logged at warn.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, msg, operation string, err error, fields log.LogFields) {
	ctx := r.Context()
	if fields == nil {
		fields = log.NewFields()
	}
	status, _ := statusFor(err)
	if status == http.StatusInternalServerError {
		s.access.LogError(ctx, msg, err, log.ComponentHTTP, operation, log.ErrorTypeStorage,
			fields.WithRequestID(RequestID(ctx)))
	} else {
		log.FromContext(ctx).WarnContext(ctx, msg, fields.
			WithError(err).
			WithOperation(operation).
			WithErrorType(log.ErrorTypeValidation).
			ToSlice()...)
	}
	writeErr(w, err)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records := s.dash.Records()
	if records == nil {
		records = []core.Record{}
	}
	WriteJSON(w, http.StatusOK, records)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	in, err := ParseRecordInput(NewRequestBodyParser(r))
	if err != nil {
		s.fail(w, r, "Record input rejected", log.OpParse, err, nil)
		return
	}

	rec, err := s.dash.AddRecord(ctx, in)
	if err != nil {
		s.fail(w, r, "Record create failed", log.OpCreate, err, nil)
		return
	}

	w.Header().Set("Location", "/api/v1/records/"+strconv.FormatInt(rec.ID, 10))
	WriteJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeErr(w, badQuery(err))
		return
	}
	rec, ok := s.dash.Record(id)
	if !ok {
		writeErr(w, errNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// handleDeleteRecord answers 204 for unknown ids as well.
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := parseID(r)
	if err != nil {
		writeErr(w, badQuery(err))
		return
	}
	if err := s.dash.DeleteRecord(ctx, id); err != nil {
		s.fail(w, r, "Record delete failed", log.OpDelete, err, log.LogFields{log.FieldRecordID: id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	groups := s.dash.History()
	if groups == nil {
		groups = []stats.DayGroup{}
	}
	WriteJSON(w, http.StatusOK, groups)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period, err := core.ParsePeriod(q.Get("period"))
	if err != nil {
		writeErr(w, badQuery(err))
		return
	}
	platform, err := core.ParsePlatformFilter(q.Get("platform"))
	if err != nil {
		writeErr(w, badQuery(err))
		return
	}
	WriteJSON(w, http.StatusOK, StatsResponse{
		Period:   period,
		Platform: platform,
		Summary:  s.dash.Stats(period, platform),
	})
}

func (s *Server) handleDailySeries(w http.ResponseWriter, r *http.Request) {
	days, err := parseSeriesDays(r)
	if err != nil {
		writeErr(w, badQuery(err))
		return
	}
	WriteJSON(w, http.StatusOK, s.dash.DailySeries(days))
}

func (s *Server) handleMonthlySeries(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, s.dash.MonthlySeries())
}

func (s *Server) handleRatio(w http.ResponseWriter, r *http.Request) {
	period, err := core.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeErr(w, badQuery(err))
		return
	}
	total, shares := s.dash.PlatformRatio(period)
	WriteJSON(w, http.StatusOK, RatioResponse{
		Period: period,
		Total:  total,
		Shares: shares,
	})
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query(), s.dash.Now())
	if err != nil {
		writeErr(w, badQuery(err))
		return
	}
	WriteJSON(w, http.StatusOK, s.dash.Calendar(params.Year, params.Month))
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, s.dash.Overview())
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, s.dash.GoalStatus())
}

func (s *Server) handleSetGoal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	amount, err := ParseGoalAmount(NewRequestBodyParser(r))
	if err != nil {
		s.fail(w, r, "Goal input rejected", log.OpParse, err, nil)
		return
	}
	if err := s.dash.SetGoal(ctx, amount); err != nil {
		s.fail(w, r, "Goal update failed", log.OpUpdate, err, log.LogFields{log.FieldGoal: amount})
		return
	}
	WriteJSON(w, http.StatusOK, s.dash.GoalStatus())
}

func (s *Server) handleClearGoal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.dash.ClearGoal(ctx); err != nil {
		s.fail(w, r, "Goal clear failed", log.OpDelete, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
