package http

import (
	"net/http"

	"github.com/google/uuid"

	"bilancio/internal/core"
)

type categoryPayload struct {
	ID  uuid.UUID `json:"id"`
	Key string    `json:"key"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.finance.ListCategories(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]categoryPayload, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryPayload{ID: c.ID, Key: c.Key})
	}
	writeJSON(w, http.StatusOK, out)
}

type labelPayload struct {
	ID         uuid.UUID `json:"id"`
	Label      string    `json:"label"`
	CategoryID uuid.UUID `json:"category_id"`
}

func (s *Server) handleListLabels(w http.ResponseWriter, r *http.Request) {
	labels, err := s.finance.ListLabels(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]labelPayload, 0, len(labels))
	for _, l := range labels {
		out = append(out, labelPayload{ID: l.ID, Label: l.Label, CategoryID: l.CategoryID})
	}
	writeJSON(w, http.StatusOK, out)
}

type createLabelRequest struct {
	Label      string    `json:"label"`
	CategoryID uuid.UUID `json:"category_id"`
}

func (s *Server) handleCreateLabel(w http.ResponseWriter, r *http.Request) {
	var req createLabelRequest
	if !decodeBody(w, r, &req) {
		return
	}
	l, err := s.finance.CreateLabel(r.Context(), req.Label, req.CategoryID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, labelPayload{ID: l.ID, Label: l.Label, CategoryID: l.CategoryID})
}

type transactionPayload struct {
	ID          uuid.UUID `json:"id"`
	Amount      string    `json:"amount"`
	OccurredAt  core.Date `json:"occurred_at"`
	Description string    `json:"description"`
	LabelID     uuid.UUID `json:"label_id"`
}

func transactionToPayload(t core.Transaction) transactionPayload {
	return transactionPayload{
		ID:          t.ID,
		Amount:      t.Amount.Decimal(),
		OccurredAt:  t.OccurredAt,
		Description: t.Description,
		LabelID:     t.LabelID,
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.finance.ListTransactions(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]transactionPayload, 0, len(txs))
	for _, t := range txs {
		out = append(out, transactionToPayload(t))
	}
	writeJSON(w, http.StatusOK, out)
}

type createTransactionRequest struct {
	Amount      string    `json:"amount"`
	OccurredAt  core.Date `json:"occurred_at"`
	Description string    `json:"description"`
	LabelID     uuid.UUID `json:"label_id"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}

	t, err := s.finance.CreateTransaction(r.Context(), core.Money{Cents: cents}, req.OccurredAt, req.Description, req.LabelID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	// New spending changes every cached review that could cover it.
	s.reviewCache.Clear()

	writeJSON(w, http.StatusCreated, transactionToPayload(t))
}

type categoryTotalPayload struct {
	CategoryKey string `json:"category_key"`
	TotalAmount string `json:"total_amount"`
}

type reviewPayload struct {
	StartDate   core.Date              `json:"start_date"`
	EndDate     core.Date              `json:"end_date"`
	TotalAmount string                 `json:"total_amount"`
	ByCategory  []categoryTotalPayload `json:"by_category"`
}

// reviewForRequest parses the range from the query string and returns
// the review, serving from the cache when the range was seen recently.
// It writes the error response itself and reports ok=false on failure.
func (s *Server) reviewForRequest(w http.ResponseWriter, r *http.Request) (core.WeeklyReview, bool) {
	q := r.URL.Query()
	start, err := core.ParseDate(q.Get("start_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date")
		return core.WeeklyReview{}, false
	}
	end, err := core.ParseDate(q.Get("end_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date")
		return core.WeeklyReview{}, false
	}

	cacheKey := start.String() + ".." + end.String()
	review, cached := s.reviewCache.Get(cacheKey)
	if !cached {
		review, err = s.finance.WeeklyReview(r.Context(), start, end)
		if err != nil {
			writeDomainError(w, r, err)
			return core.WeeklyReview{}, false
		}
		s.reviewCache.Set(cacheKey, review)
	}
	return review, true
}

func reviewToPayload(review core.WeeklyReview) reviewPayload {
	out := reviewPayload{
		StartDate:   review.StartDate,
		EndDate:     review.EndDate,
		TotalAmount: review.Total.Decimal(),
		ByCategory:  make([]categoryTotalPayload, 0, len(review.ByCategory)),
	}
	for _, ct := range review.ByCategory {
		out.ByCategory = append(out.ByCategory, categoryTotalPayload{
			CategoryKey: ct.CategoryKey,
			TotalAmount: ct.Total.Decimal(),
		})
	}
	return out
}

func (s *Server) handleWeeklyReview(w http.ResponseWriter, r *http.Request) {
	review, ok := s.reviewForRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, reviewToPayload(review))
}

type suggestionPayload struct {
	StartDate  core.Date     `json:"start_date"`
	EndDate    core.Date     `json:"end_date"`
	Summary    reviewPayload `json:"summary"`
	Suggestion string        `json:"suggestion"`
}

// handleWeeklySuggestion returns the review for the range together
// with a piece of advice derived from it.
func (s *Server) handleWeeklySuggestion(w http.ResponseWriter, r *http.Request) {
	review, ok := s.reviewForRequest(w, r)
	if !ok {
		return
	}

	suggestion, err := s.suggester.Suggest(r.Context(), review)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, suggestionPayload{
		StartDate:  review.StartDate,
		EndDate:    review.EndDate,
		Summary:    reviewToPayload(review),
		Suggestion: suggestion,
	})
}
