package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/core"
)

type habitPayload struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	StartDate core.Date `json:"start_date"`
	EndDate   core.Date `json:"end_date"`
	Interval  int       `json:"interval"`
	Unit      string    `json:"unit"`
}

type dueHabitPayload struct {
	habitPayload
	Checked bool `json:"checked"`
}

func habitToPayload(h core.Habit) habitPayload {
	return habitPayload{
		ID:        h.ID,
		Name:      h.Name,
		StartDate: h.StartDate,
		EndDate:   h.EndDate,
		Interval:  h.Interval,
		Unit:      string(h.Unit),
	}
}

// dateQuery reads an optional ?date= parameter, defaulting to today.
func dateQuery(r *http.Request) (core.Date, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return core.DateOf(time.Now()), true
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		return core.Date{}, false
	}
	return d, true
}

func (s *Server) handleListHabits(w http.ResponseWriter, r *http.Request) {
	habits, err := s.habits.ListHabits(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]habitPayload, 0, len(habits))
	for _, h := range habits {
		out = append(out, habitToPayload(h))
	}
	writeJSON(w, http.StatusOK, out)
}

type createHabitRequest struct {
	Name      string    `json:"name"`
	StartDate core.Date `json:"start_date"`
	EndDate   core.Date `json:"end_date"`
	Interval  int       `json:"interval"`
	Unit      string    `json:"unit"`
}

func (s *Server) handleCreateHabit(w http.ResponseWriter, r *http.Request) {
	var req createHabitRequest
	if !decodeBody(w, r, &req) {
		return
	}

	unit, err := core.ParseRepeatUnit(req.Unit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	h, err := s.habits.CreateHabit(r.Context(), req.Name, req.StartDate, req.EndDate, req.Interval, unit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, habitToPayload(h))
}

func (s *Server) handleListDue(w http.ResponseWriter, r *http.Request) {
	date, ok := dateQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}

	due, err := s.habits.ListDueForDate(r.Context(), date)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]dueHabitPayload, 0, len(due))
	for _, d := range due {
		out = append(out, dueHabitPayload{habitPayload: habitToPayload(d.Habit), Checked: d.Checked})
	}
	writeJSON(w, http.StatusOK, out)
}

type toggleRequest struct {
	Date core.Date `json:"date"`
}

type toggleResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	habitID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid habit id")
		return
	}

	var req toggleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	date := req.Date
	if date.IsZero() {
		date = core.DateOf(time.Now())
	}

	status, err := s.habits.ToggleCompletion(r.Context(), habitID, date)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleResponse{Status: string(status)})
}

type completionsResponse struct {
	Date              core.Date   `json:"date"`
	CompletedHabitIDs []uuid.UUID `json:"completed_habit_ids"`
}

func (s *Server) handleListCompletions(w http.ResponseWriter, r *http.Request) {
	date, ok := dateQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}

	ids, err := s.habits.ListCompletionsForDate(r.Context(), date)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	writeJSON(w, http.StatusOK, completionsResponse{Date: date, CompletedHabitIDs: ids})
}
