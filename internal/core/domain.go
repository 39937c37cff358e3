package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RepeatUnit is the closed set of habit recurrence units. Anything else
// is rejected at parse time so the scheduler's dispatch stays exhaustive.
const (
	UnitDay   RepeatUnit = "day"
	UnitWeek  RepeatUnit = "week"
	UnitMonth RepeatUnit = "month"
)

// ToggleStatus is the outcome of flipping a (habit, date) completion.
const (
	StatusChecked   ToggleStatus = "checked"
	StatusUnchecked ToggleStatus = "unchecked"
)

type (
	RepeatUnit   string
	ToggleStatus string

	// Category is one of the fixed top-level spending categories,
	// seeded by migration.
	Category struct {
		ID        uuid.UUID
		Key       string
		CreatedAt time.Time
	}

	// Label is a free-form tag under a category. Label text is unique.
	Label struct {
		ID         uuid.UUID
		Label      string
		CategoryID uuid.UUID
		CreatedAt  time.Time
	}

	// Transaction is a single categorized expense or income entry.
	Transaction struct {
		ID          uuid.UUID
		Amount      Money
		OccurredAt  Date
		Description string
		LabelID     uuid.UUID
		CreatedAt   time.Time
	}

	// Habit is a recurring task definition. EndDate is optional: the
	// zero value means the habit never expires. Habits are immutable
	// once created.
	Habit struct {
		ID        uuid.UUID
		Name      string
		StartDate Date
		EndDate   Date
		Interval  int
		Unit      RepeatUnit
		CreatedAt time.Time
	}

	// DueHabit is a habit due on a specific date, annotated with its
	// completion state for that date.
	DueHabit struct {
		Habit
		Checked bool
	}

	// CategoryTotal is an amount aggregated under one category key.
	CategoryTotal struct {
		CategoryKey string
		Total       Money
	}

	// WeeklyReview summarizes spending over an inclusive date range,
	// largest category first.
	WeeklyReview struct {
		StartDate  Date
		EndDate    Date
		Total      Money
		ByCategory []CategoryTotal
	}
)

var (
	ErrHabitNotFound    = errors.New("habit not found")
	ErrNotScheduled     = errors.New("habit is not scheduled on this date")
	ErrCategoryNotFound = errors.New("category not found")
	ErrLabelNotFound    = errors.New("label not found")
	ErrLabelExists      = errors.New("label already exists")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyLabel       = errors.New("empty label")
	ErrInvalidInterval  = errors.New("interval must be at least 1")
	ErrInvalidUnit      = errors.New("unit must be day, week or month")
	ErrEndBeforeStart   = errors.New("end date must not precede start date")
	ErrInvalidRange     = errors.New("start date must be on or before end date")
)

// ParseRepeatUnit validates a unit string coming from the outside.
func ParseRepeatUnit(s string) (RepeatUnit, error) {
	switch RepeatUnit(strings.ToLower(strings.TrimSpace(s))) {
	case UnitDay:
		return UnitDay, nil
	case UnitWeek:
		return UnitWeek, nil
	case UnitMonth:
		return UnitMonth, nil
	default:
		return "", ErrInvalidUnit
	}
}

// Validate enforces the habit creation invariants: non-empty name,
// a start date, interval >= 1, a known unit, and end >= start when an
// end date is set. Stored habits therefore never hit the scheduler's
// defensive branches.
func (h Habit) Validate() error {
	if len(strings.TrimSpace(h.Name)) == 0 {
		return ErrEmptyName
	}
	if len(h.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if err := h.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}
	if h.Interval < 1 {
		return ErrInvalidInterval
	}
	switch h.Unit {
	case UnitDay, UnitWeek, UnitMonth:
	default:
		return ErrInvalidUnit
	}
	if !h.EndDate.IsZero() && h.EndDate.BeforeDate(h.StartDate) {
		return ErrEndBeforeStart
	}
	return nil
}

// Validate enforces the label creation invariants.
func (l Label) Validate() error {
	if len(strings.TrimSpace(l.Label)) == 0 {
		return ErrEmptyLabel
	}
	if len(l.Label) > 200 {
		return errors.New("label too long (max 200 characters)")
	}
	if l.CategoryID == uuid.Nil {
		return ErrCategoryNotFound
	}
	return nil
}

// Validate enforces the transaction creation invariants.
func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.OccurredAt.Validate(); err != nil {
		return errors.New("invalid date: " + err.Error())
	}
	if len(t.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	if t.LabelID == uuid.Nil {
		return ErrLabelNotFound
	}
	return nil
}
