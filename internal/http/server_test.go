package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"bilancio/internal/core"
	"bilancio/internal/suggest"
)

type fakeHabitAPI struct {
	habits       []core.Habit
	due          []core.DueHabit
	completions  []uuid.UUID
	toggleStatus core.ToggleStatus
	toggleErr    error
	created      *core.Habit
}

func (f *fakeHabitAPI) CreateHabit(_ context.Context, name string, start, end core.Date, interval int, unit core.RepeatUnit) (core.Habit, error) {
	h := core.Habit{ID: uuid.New(), Name: name, StartDate: start, EndDate: end, Interval: interval, Unit: unit}
	if err := h.Validate(); err != nil {
		return core.Habit{}, err
	}
	f.created = &h
	return h, nil
}

func (f *fakeHabitAPI) ListHabits(_ context.Context) ([]core.Habit, error) {
	return f.habits, nil
}

func (f *fakeHabitAPI) ListDueForDate(_ context.Context, _ core.Date) ([]core.DueHabit, error) {
	return f.due, nil
}

func (f *fakeHabitAPI) ToggleCompletion(_ context.Context, _ uuid.UUID, _ core.Date) (core.ToggleStatus, error) {
	if f.toggleErr != nil {
		return "", f.toggleErr
	}
	return f.toggleStatus, nil
}

func (f *fakeHabitAPI) ListCompletionsForDate(_ context.Context, _ core.Date) ([]uuid.UUID, error) {
	return f.completions, nil
}

type fakeFinanceAPI struct {
	categories  []core.Category
	labels      []core.Label
	labelErr    error
	txs         []core.Transaction
	txErr       error
	review      core.WeeklyReview
	reviewErr   error
	reviewCalls int
}

func (f *fakeFinanceAPI) ListCategories(_ context.Context) ([]core.Category, error) {
	return f.categories, nil
}

func (f *fakeFinanceAPI) ListLabels(_ context.Context) ([]core.Label, error) {
	return f.labels, nil
}

func (f *fakeFinanceAPI) CreateLabel(_ context.Context, text string, categoryID uuid.UUID) (core.Label, error) {
	if f.labelErr != nil {
		return core.Label{}, f.labelErr
	}
	return core.Label{ID: uuid.New(), Label: text, CategoryID: categoryID}, nil
}

func (f *fakeFinanceAPI) CreateTransaction(_ context.Context, amount core.Money, occurredAt core.Date, description string, labelID uuid.UUID) (core.Transaction, error) {
	if f.txErr != nil {
		return core.Transaction{}, f.txErr
	}
	t := core.Transaction{ID: uuid.New(), Amount: amount, OccurredAt: occurredAt, Description: description, LabelID: labelID}
	f.txs = append(f.txs, t)
	return t, nil
}

func (f *fakeFinanceAPI) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	return f.txs, nil
}

func (f *fakeFinanceAPI) WeeklyReview(_ context.Context, start, end core.Date) (core.WeeklyReview, error) {
	f.reviewCalls++
	if f.reviewErr != nil {
		return core.WeeklyReview{}, f.reviewErr
	}
	r := f.review
	r.StartDate = start
	r.EndDate = end
	return r, nil
}

func newTestServer(habits HabitAPI, finance FinanceAPI) *Server {
	if habits == nil {
		habits = &fakeHabitAPI{}
	}
	if finance == nil {
		finance = &fakeFinanceAPI{}
	}
	return NewServer(":0", habits, finance, suggest.NewRuleBased())
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(nil, nil)
	defer s.Shutdown(context.Background())

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(t, s, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestCreateHabitEndpoint(t *testing.T) {
	habits := &fakeHabitAPI{}
	s := newTestServer(habits, nil)
	defer s.Shutdown(context.Background())

	rec := doRequest(t, s, http.MethodPost, "/api/habits",
		`{"name":"read","start_date":"2024-01-01","interval":2,"unit":"week"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp habitPayload
	decodeInto(t, rec, &resp)
	if resp.Name != "read" || resp.Interval != 2 || resp.Unit != "week" {
		t.Errorf("payload = %+v", resp)
	}
	if habits.created == nil {
		t.Error("habit not passed to the service")
	}
}

func TestCreateHabitValidationErrors(t *testing.T) {
	s := newTestServer(nil, nil)
	defer s.Shutdown(context.Background())

	cases := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"bad unit", `{"name":"x","start_date":"2024-01-01","interval":1,"unit":"fortnight"}`, http.StatusUnprocessableEntity},
		{"zero interval", `{"name":"x","start_date":"2024-01-01","interval":0,"unit":"day"}`, http.StatusUnprocessableEntity},
		{"empty name", `{"name":"","start_date":"2024-01-01","interval":1,"unit":"day"}`, http.StatusUnprocessableEntity},
		{"end before start", `{"name":"x","start_date":"2024-05-01","end_date":"2024-04-01","interval":1,"unit":"day"}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/api/habits", tc.body)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestToggleEndpoint(t *testing.T) {
	habits := &fakeHabitAPI{toggleStatus: core.StatusChecked}
	s := newTestServer(habits, nil)
	defer s.Shutdown(context.Background())

	id := uuid.New()
	rec := doRequest(t, s, http.MethodPost, "/api/habits/"+id.String()+"/toggle", `{"date":"2024-02-10"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp toggleResponse
	decodeInto(t, rec, &resp)
	if resp.Status != "checked" {
		t.Errorf("status = %q, want checked", resp.Status)
	}
}

func TestToggleEndpointErrors(t *testing.T) {
	cases := []struct {
		name      string
		toggleErr error
		path      string
		want      int
	}{
		{"unknown habit", core.ErrHabitNotFound, "/api/habits/" + uuid.NewString() + "/toggle", http.StatusNotFound},
		{"not scheduled", core.ErrNotScheduled, "/api/habits/" + uuid.NewString() + "/toggle", http.StatusBadRequest},
		{"bad id", nil, "/api/habits/not-a-uuid/toggle", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(&fakeHabitAPI{toggleErr: tc.toggleErr, toggleStatus: core.StatusChecked}, nil)
			defer s.Shutdown(context.Background())

			rec := doRequest(t, s, http.MethodPost, tc.path, `{"date":"2024-02-10"}`)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestListDueEndpoint(t *testing.T) {
	h := core.Habit{ID: uuid.New(), Name: "read", Interval: 1, Unit: core.UnitDay}
	habits := &fakeHabitAPI{due: []core.DueHabit{{Habit: h, Checked: true}}}
	s := newTestServer(habits, nil)
	defer s.Shutdown(context.Background())

	rec := doRequest(t, s, http.MethodGet, "/api/habits/due?date=2024-02-10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp []dueHabitPayload
	decodeInto(t, rec, &resp)
	if len(resp) != 1 || !resp[0].Checked || resp[0].Name != "read" {
		t.Errorf("payload = %+v", resp)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/habits/due?date=garbage", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid date status = %d, want 400", rec.Code)
	}
}

func TestListCompletionsEndpoint(t *testing.T) {
	id := uuid.New()
	s := newTestServer(&fakeHabitAPI{completions: []uuid.UUID{id}}, nil)
	defer s.Shutdown(context.Background())

	rec := doRequest(t, s, http.MethodGet, "/api/habits/completions?date=2024-02-10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp completionsResponse
	decodeInto(t, rec, &resp)
	if resp.Date.String() != "2024-02-10" {
		t.Errorf("date = %s", resp.Date)
	}
	if len(resp.CompletedHabitIDs) != 1 || resp.CompletedHabitIDs[0] != id {
		t.Errorf("ids = %v", resp.CompletedHabitIDs)
	}
}

func TestCompletionsEmptyListNotNull(t *testing.T) {
	s := newTestServer(nil, nil)
	defer s.Shutdown(context.Background())

	rec := doRequest(t, s, http.MethodGet, "/api/habits/completions?date=2024-02-10", "")
	if !strings.Contains(rec.Body.String(), `"completed_habit_ids":[]`) {
		t.Errorf("body = %s, want empty array", rec.Body.String())
	}
}

func TestCreateLabelEndpoint(t *testing.T) {
	finance := &fakeFinanceAPI{}
	s := newTestServer(nil, finance)
	defer s.Shutdown(context.Background())

	body := `{"label":"rent","category_id":"` + uuid.NewString() + `"}`
	rec := doRequest(t, s, http.MethodPost, "/api/labels", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	finance.labelErr = core.ErrLabelExists
	rec = doRequest(t, s, http.MethodPost, "/api/labels", body)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rec.Code)
	}

	finance.labelErr = core.ErrCategoryNotFound
	rec = doRequest(t, s, http.MethodPost, "/api/labels", body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown category status = %d, want 400", rec.Code)
	}
}

func TestCreateTransactionEndpoint(t *testing.T) {
	finance := &fakeFinanceAPI{}
	s := newTestServer(nil, finance)
	defer s.Shutdown(context.Background())

	body := `{"amount":"12.34","occurred_at":"2024-06-03","description":"shop","label_id":"` + uuid.NewString() + `"}`
	rec := doRequest(t, s, http.MethodPost, "/api/transactions", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp transactionPayload
	decodeInto(t, rec, &resp)
	if resp.Amount != "12.34" {
		t.Errorf("amount = %q, want 12.34", resp.Amount)
	}

	rec = doRequest(t, s, http.MethodPost, "/api/transactions",
		`{"amount":"-5","occurred_at":"2024-06-03","label_id":"`+uuid.NewString()+`"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("negative amount status = %d, want 422", rec.Code)
	}
}

func TestWeeklyReviewEndpoint(t *testing.T) {
	finance := &fakeFinanceAPI{review: core.WeeklyReview{
		Total: core.Money{Cents: 92100},
		ByCategory: []core.CategoryTotal{
			{CategoryKey: "house", Total: core.Money{Cents: 90000}},
			{CategoryKey: "supermarket", Total: core.Money{Cents: 2100}},
		},
	}}
	s := newTestServer(nil, finance)
	defer s.Shutdown(context.Background())

	rec := doRequest(t, s, http.MethodGet, "/api/reviews/weekly?start_date=2024-06-03&end_date=2024-06-09", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp reviewPayload
	decodeInto(t, rec, &resp)
	if resp.TotalAmount != "921.00" {
		t.Errorf("total = %q, want 921.00", resp.TotalAmount)
	}
	if len(resp.ByCategory) != 2 || resp.ByCategory[0].CategoryKey != "house" {
		t.Errorf("by_category = %+v", resp.ByCategory)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/reviews/weekly?start_date=nope&end_date=2024-06-09", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid start status = %d, want 400", rec.Code)
	}
}

func TestWeeklyReviewCaching(t *testing.T) {
	finance := &fakeFinanceAPI{}
	s := newTestServer(nil, finance)
	defer s.Shutdown(context.Background())

	url := "/api/reviews/weekly?start_date=2024-06-03&end_date=2024-06-09"
	doRequest(t, s, http.MethodGet, url, "")
	doRequest(t, s, http.MethodGet, url, "")
	if finance.reviewCalls != 1 {
		t.Errorf("review calls = %d, want 1 (second should hit cache)", finance.reviewCalls)
	}

	// A new transaction flushes the cache.
	body := `{"amount":"1.00","occurred_at":"2024-06-04","label_id":"` + uuid.NewString() + `"}`
	doRequest(t, s, http.MethodPost, "/api/transactions", body)
	doRequest(t, s, http.MethodGet, url, "")
	if finance.reviewCalls != 2 {
		t.Errorf("review calls = %d, want 2 after invalidation", finance.reviewCalls)
	}
}

func TestWeeklySuggestionEndpoint(t *testing.T) {
	finance := &fakeFinanceAPI{review: core.WeeklyReview{
		Total: core.Money{Cents: 92100},
		ByCategory: []core.CategoryTotal{
			{CategoryKey: "house", Total: core.Money{Cents: 90000}},
			{CategoryKey: "supermarket", Total: core.Money{Cents: 2100}},
		},
	}}
	s := newTestServer(nil, finance)
	defer s.Shutdown(context.Background())

	rec := doRequest(t, s, http.MethodGet, "/api/reviews/weekly/suggestion?start_date=2024-06-03&end_date=2024-06-09", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp suggestionPayload
	decodeInto(t, rec, &resp)
	if resp.Summary.TotalAmount != "921.00" {
		t.Errorf("summary total = %q, want 921.00", resp.Summary.TotalAmount)
	}
	if !strings.Contains(resp.Suggestion, "Housing") {
		t.Errorf("suggestion = %q, want the housing tip", resp.Suggestion)
	}
	if resp.StartDate.String() != "2024-06-03" || resp.EndDate.String() != "2024-06-09" {
		t.Errorf("range = %s..%s", resp.StartDate, resp.EndDate)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/reviews/weekly/suggestion?start_date=2024-06-03&end_date=bad", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid end status = %d, want 400", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(nil, nil)
	defer s.Shutdown(context.Background())

	rec := doRequest(t, s, http.MethodGet, "/api/habits", "")
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}
