package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/core"
	"bilancio/internal/schedule"
	"bilancio/internal/storage"
)

// EventPublisher pushes domain events to the message broker. A nil
// publisher is valid and means events are skipped.
type EventPublisher interface {
	PublishHabitToggled(ctx context.Context, habitID uuid.UUID, date core.Date, status core.ToggleStatus) error
	PublishTransactionCreated(ctx context.Context, t core.Transaction) error
}

// HabitService orchestrates habit scheduling and completion toggling.
type HabitService struct {
	habits storage.HabitStore
	ledger storage.CompletionLedger
	events EventPublisher
}

func NewHabitService(habits storage.HabitStore, ledger storage.CompletionLedger, events EventPublisher) *HabitService {
	return &HabitService{
		habits: habits,
		ledger: ledger,
		events: events,
	}
}

// CreateHabit validates and stores a new habit. Invalid schedules are
// rejected here so stored habits always evaluate cleanly.
func (s *HabitService) CreateHabit(ctx context.Context, name string, start, end core.Date, interval int, unit core.RepeatUnit) (core.Habit, error) {
	h := core.Habit{
		ID:        uuid.New(),
		Name:      name,
		StartDate: start,
		EndDate:   end,
		Interval:  interval,
		Unit:      unit,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Validate(); err != nil {
		return core.Habit{}, err
	}
	if err := s.habits.CreateHabit(ctx, h); err != nil {
		return core.Habit{}, fmt.Errorf("create habit: %w", err)
	}
	return h, nil
}

// ListHabits returns every habit, ordered by name.
func (s *HabitService) ListHabits(ctx context.Context) ([]core.Habit, error) {
	return s.habits.ListHabits(ctx)
}

// GetHabit returns a habit by id.
func (s *HabitService) GetHabit(ctx context.Context, id uuid.UUID) (core.Habit, error) {
	return s.habits.GetHabit(ctx, id)
}

// DeleteHabit removes a habit and its completion history.
func (s *HabitService) DeleteHabit(ctx context.Context, id uuid.UUID) error {
	return s.habits.DeleteHabit(ctx, id)
}

// ListDueForDate returns the habits scheduled for date, each annotated
// with its completion state for that date.
func (s *HabitService) ListDueForDate(ctx context.Context, date core.Date) ([]core.DueHabit, error) {
	habits, err := s.habits.ListHabits(ctx)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}

	var due []core.DueHabit
	for _, h := range habits {
		if schedule.IsDue(h, date) {
			due = append(due, core.DueHabit{Habit: h})
		}
	}
	if len(due) == 0 {
		return due, nil
	}

	checkedIDs, err := s.ledger.ListChecked(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	checked := make(map[uuid.UUID]bool, len(checkedIDs))
	for _, id := range checkedIDs {
		checked[id] = true
	}
	for i := range due {
		due[i].Checked = checked[due[i].ID]
	}
	return due, nil
}

// ToggleCompletion flips the completion state of a habit on a date.
// Toggling is only allowed on dates the habit is actually scheduled.
func (s *HabitService) ToggleCompletion(ctx context.Context, habitID uuid.UUID, date core.Date) (core.ToggleStatus, error) {
	h, err := s.habits.GetHabit(ctx, habitID)
	if err != nil {
		return "", err
	}
	if !schedule.IsDue(h, date) {
		return "", core.ErrNotScheduled
	}

	status, err := s.ledger.Toggle(ctx, habitID, date)
	if err != nil {
		return "", fmt.Errorf("toggle completion: %w", err)
	}

	if err := s.publishToggled(ctx, habitID, date, status); err != nil {
		slog.ErrorContext(ctx, "Failed to publish toggle event",
			"habit_id", habitID, "date", date, "error", err)
		// Don't fail the request, the toggle is committed.
	}

	return status, nil
}

// ListCompletionsForDate returns the ids of every habit checked on date.
func (s *HabitService) ListCompletionsForDate(ctx context.Context, date core.Date) ([]uuid.UUID, error) {
	return s.ledger.ListChecked(ctx, date)
}

func (s *HabitService) publishToggled(ctx context.Context, habitID uuid.UUID, date core.Date, status core.ToggleStatus) error {
	if s.events == nil {
		slog.WarnContext(ctx, "Event publisher not available, skipping toggle event")
		return nil
	}
	return s.events.PublishHabitToggled(ctx, habitID, date, status)
}
