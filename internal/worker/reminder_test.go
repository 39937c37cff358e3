package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/core"
)

type fakeDueLister struct {
	due []core.DueHabit
	err error
}

func (f *fakeDueLister) ListDueForDate(_ context.Context, _ core.Date) ([]core.DueHabit, error) {
	return f.due, f.err
}

type fakeReminderPublisher struct {
	published []uuid.UUID
	err       error
}

func (f *fakeReminderPublisher) PublishHabitReminder(_ context.Context, h core.Habit, _ core.Date) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, h.ID)
	return nil
}

type fakeReviewer struct {
	start, end core.Date
	review     core.WeeklyReview
}

func (f *fakeReviewer) WeeklyReview(_ context.Context, start, end core.Date) (core.WeeklyReview, error) {
	f.start, f.end = start, end
	r := f.review
	r.StartDate, r.EndDate = start, end
	return r, nil
}

type fakeAppender struct {
	appended []core.WeeklyReview
	err      error
}

func (f *fakeAppender) AppendReview(_ context.Context, review core.WeeklyReview) error {
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, review)
	return nil
}

func dueHabit(name string, checked bool) core.DueHabit {
	return core.DueHabit{
		Habit:   core.Habit{ID: uuid.New(), Name: name, Interval: 1, Unit: core.UnitDay},
		Checked: checked,
	}
}

func mustDate(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func TestRunRemindersSkipsChecked(t *testing.T) {
	unchecked := dueHabit("floss", false)
	lister := &fakeDueLister{due: []core.DueHabit{
		dueHabit("read", true),
		unchecked,
	}}
	pub := &fakeReminderPublisher{}
	w := NewReminderWorker(lister, pub, nil, nil)

	if err := w.RunReminders(context.Background(), mustDate(t, "2024-03-10")); err != nil {
		t.Fatalf("RunReminders: %v", err)
	}
	if len(pub.published) != 1 || pub.published[0] != unchecked.ID {
		t.Errorf("published = %v, want only the unchecked habit", pub.published)
	}
}

func TestRunRemindersPublishErrorDoesNotAbort(t *testing.T) {
	lister := &fakeDueLister{due: []core.DueHabit{dueHabit("a", false), dueHabit("b", false)}}
	pub := &fakeReminderPublisher{err: errors.New("broker down")}
	w := NewReminderWorker(lister, pub, nil, nil)

	if err := w.RunReminders(context.Background(), mustDate(t, "2024-03-10")); err != nil {
		t.Fatalf("RunReminders should tolerate publish failures: %v", err)
	}
}

func TestRunRemindersListError(t *testing.T) {
	lister := &fakeDueLister{err: errors.New("db down")}
	w := NewReminderWorker(lister, &fakeReminderPublisher{}, nil, nil)

	if err := w.RunReminders(context.Background(), mustDate(t, "2024-03-10")); err == nil {
		t.Error("expected error when listing fails")
	}
}

func TestRunWeeklyExport(t *testing.T) {
	reviewer := &fakeReviewer{review: core.WeeklyReview{Total: core.Money{Cents: 5000}}}
	appender := &fakeAppender{}
	w := NewReminderWorker(&fakeDueLister{}, &fakeReminderPublisher{}, reviewer, appender)

	// Wednesday 2024-06-12; the previous week is Mon 06-03 to Sun 06-09.
	now := time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)
	if err := w.RunWeeklyExport(context.Background(), now); err != nil {
		t.Fatalf("RunWeeklyExport: %v", err)
	}
	if reviewer.start.String() != "2024-06-03" || reviewer.end.String() != "2024-06-09" {
		t.Errorf("range = %s..%s, want 2024-06-03..2024-06-09", reviewer.start, reviewer.end)
	}
	if len(appender.appended) != 1 || appender.appended[0].Total.Cents != 5000 {
		t.Errorf("appended = %+v", appender.appended)
	}
}

func TestRunWeeklyExportNilExporter(t *testing.T) {
	w := NewReminderWorker(&fakeDueLister{}, &fakeReminderPublisher{}, &fakeReviewer{}, nil)
	if err := w.RunWeeklyExport(context.Background(), time.Now()); err != nil {
		t.Errorf("nil exporter should be a no-op, got %v", err)
	}
}

func TestPreviousWeek(t *testing.T) {
	cases := []struct {
		now        string
		start, end string
	}{
		{"2024-06-12", "2024-06-03", "2024-06-09"}, // Wednesday
		{"2024-06-10", "2024-06-03", "2024-06-09"}, // Monday
		{"2024-06-16", "2024-06-03", "2024-06-09"}, // Sunday
		{"2024-06-17", "2024-06-10", "2024-06-16"}, // next Monday
	}
	for _, tc := range cases {
		t.Run(tc.now, func(t *testing.T) {
			now, err := time.Parse("2006-01-02", tc.now)
			if err != nil {
				t.Fatal(err)
			}
			start, end := previousWeek(now)
			if start.String() != tc.start || end.String() != tc.end {
				t.Errorf("previousWeek(%s) = %s..%s, want %s..%s", tc.now, start, end, tc.start, tc.end)
			}
		})
	}
}
