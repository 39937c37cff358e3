package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"bilancio/internal/core"
	"bilancio/internal/export"
)

// DueLister returns habits scheduled for a date with completion state.
type DueLister interface {
	ListDueForDate(ctx context.Context, date core.Date) ([]core.DueHabit, error)
}

// ReminderPublisher announces habits that are due and unchecked.
type ReminderPublisher interface {
	PublishHabitReminder(ctx context.Context, h core.Habit, date core.Date) error
}

// Reviewer computes the weekly review over a range.
type Reviewer interface {
	WeeklyReview(ctx context.Context, start, end core.Date) (core.WeeklyReview, error)
}

// ReminderWorker runs the scheduled jobs: daily habit reminders and the
// weekly review export.
type ReminderWorker struct {
	habits    DueLister
	publisher ReminderPublisher
	reviews   Reviewer
	exporter  export.ReviewAppender

	cron *cron.Cron
}

func NewReminderWorker(habits DueLister, publisher ReminderPublisher, reviews Reviewer, exporter export.ReviewAppender) *ReminderWorker {
	return &ReminderWorker{
		habits:    habits,
		publisher: publisher,
		reviews:   reviews,
		exporter:  exporter,
		cron:      cron.New(),
	}
}

// Start registers the cron entries and starts the scheduler. Empty
// specs disable the corresponding job.
func (w *ReminderWorker) Start(ctx context.Context, reminderSpec, exportSpec string) error {
	if reminderSpec != "" {
		if _, err := w.cron.AddFunc(reminderSpec, func() {
			if err := w.RunReminders(ctx, core.DateOf(time.Now())); err != nil {
				slog.ErrorContext(ctx, "Reminder run failed", "error", err)
			}
		}); err != nil {
			return fmt.Errorf("schedule reminders: %w", err)
		}
	}

	if exportSpec != "" && w.exporter != nil {
		if _, err := w.cron.AddFunc(exportSpec, func() {
			if err := w.RunWeeklyExport(ctx, time.Now()); err != nil {
				slog.ErrorContext(ctx, "Weekly export failed", "error", err)
			}
		}); err != nil {
			return fmt.Errorf("schedule weekly export: %w", err)
		}
	}

	w.cron.Start()
	slog.InfoContext(ctx, "Reminder worker started",
		"reminder_cron", reminderSpec,
		"export_cron", exportSpec,
		"export_enabled", w.exporter != nil)
	return nil
}

// Stop halts the scheduler and waits for running jobs.
func (w *ReminderWorker) Stop() {
	stopCtx := w.cron.Stop()
	<-stopCtx.Done()
}

// RunReminders publishes a reminder for every habit due on date that is
// still unchecked.
func (w *ReminderWorker) RunReminders(ctx context.Context, date core.Date) error {
	due, err := w.habits.ListDueForDate(ctx, date)
	if err != nil {
		return fmt.Errorf("list due habits: %w", err)
	}

	published := 0
	for _, d := range due {
		if d.Checked {
			continue
		}
		if err := w.publisher.PublishHabitReminder(ctx, d.Habit, date); err != nil {
			slog.ErrorContext(ctx, "Failed to publish reminder",
				"habit_id", d.ID, "name", d.Name, "error", err)
			continue
		}
		published++
	}

	slog.InfoContext(ctx, "Reminder run completed",
		"date", date,
		"due", len(due),
		"published", published)
	return nil
}

// RunWeeklyExport exports the review for the calendar week before now
// (Monday through Sunday).
func (w *ReminderWorker) RunWeeklyExport(ctx context.Context, now time.Time) error {
	if w.exporter == nil {
		return nil
	}

	start, end := previousWeek(now)
	review, err := w.reviews.WeeklyReview(ctx, start, end)
	if err != nil {
		return fmt.Errorf("weekly review: %w", err)
	}
	if err := w.exporter.AppendReview(ctx, review); err != nil {
		return fmt.Errorf("export review: %w", err)
	}
	return nil
}

// previousWeek returns the Monday and Sunday of the week before now.
func previousWeek(now time.Time) (core.Date, core.Date) {
	today := core.DateOf(now)

	// Days since Monday of the current week.
	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	monday := today.AddDays(-(weekday - 1))

	start := monday.AddDays(-7)
	end := monday.AddDays(-1)
	return start, end
}
