package services

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/core"
)

type fakeHabitStore struct {
	habits map[uuid.UUID]core.Habit
}

func newFakeHabitStore() *fakeHabitStore {
	return &fakeHabitStore{habits: make(map[uuid.UUID]core.Habit)}
}

func (f *fakeHabitStore) CreateHabit(_ context.Context, h core.Habit) error {
	f.habits[h.ID] = h
	return nil
}

func (f *fakeHabitStore) GetHabit(_ context.Context, id uuid.UUID) (core.Habit, error) {
	h, ok := f.habits[id]
	if !ok {
		return core.Habit{}, core.ErrHabitNotFound
	}
	return h, nil
}

func (f *fakeHabitStore) ListHabits(_ context.Context) ([]core.Habit, error) {
	out := make([]core.Habit, 0, len(f.habits))
	for _, h := range f.habits {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeHabitStore) DeleteHabit(_ context.Context, id uuid.UUID) error {
	if _, ok := f.habits[id]; !ok {
		return core.ErrHabitNotFound
	}
	delete(f.habits, id)
	return nil
}

type completionKey struct {
	habitID uuid.UUID
	date    string
}

type fakeLedger struct {
	checked map[completionKey]bool
	err     error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{checked: make(map[completionKey]bool)}
}

func (f *fakeLedger) IsChecked(_ context.Context, habitID uuid.UUID, date core.Date) (bool, error) {
	return f.checked[completionKey{habitID, date.String()}], nil
}

func (f *fakeLedger) ListChecked(_ context.Context, date core.Date) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for k, on := range f.checked {
		if on && k.date == date.String() {
			ids = append(ids, k.habitID)
		}
	}
	return ids, nil
}

func (f *fakeLedger) Toggle(_ context.Context, habitID uuid.UUID, date core.Date) (core.ToggleStatus, error) {
	if f.err != nil {
		return "", f.err
	}
	key := completionKey{habitID, date.String()}
	if f.checked[key] {
		delete(f.checked, key)
		return core.StatusUnchecked, nil
	}
	f.checked[key] = true
	return core.StatusChecked, nil
}

type publishedToggle struct {
	habitID uuid.UUID
	date    string
	status  core.ToggleStatus
}

type fakePublisher struct {
	toggles      []publishedToggle
	transactions []uuid.UUID
	err          error
}

func (f *fakePublisher) PublishHabitToggled(_ context.Context, habitID uuid.UUID, date core.Date, status core.ToggleStatus) error {
	if f.err != nil {
		return f.err
	}
	f.toggles = append(f.toggles, publishedToggle{habitID, date.String(), status})
	return nil
}

func (f *fakePublisher) PublishTransactionCreated(_ context.Context, t core.Transaction) error {
	if f.err != nil {
		return f.err
	}
	f.transactions = append(f.transactions, t.ID)
	return nil
}

func date(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func seedHabit(t *testing.T, store *fakeHabitStore, name, start string, interval int, unit core.RepeatUnit) core.Habit {
	t.Helper()
	h := core.Habit{
		ID:        uuid.New(),
		Name:      name,
		StartDate: date(t, start),
		Interval:  interval,
		Unit:      unit,
		CreatedAt: time.Now(),
	}
	store.habits[h.ID] = h
	return h
}

func TestCreateHabitValidates(t *testing.T) {
	store := newFakeHabitStore()
	svc := NewHabitService(store, newFakeLedger(), nil)
	ctx := context.Background()

	h, err := svc.CreateHabit(ctx, "read", date(t, "2024-01-01"), core.Date{}, 2, core.UnitWeek)
	if err != nil {
		t.Fatalf("CreateHabit: %v", err)
	}
	if _, ok := store.habits[h.ID]; !ok {
		t.Error("habit not stored")
	}

	cases := []struct {
		name     string
		habit    string
		start    core.Date
		end      core.Date
		interval int
		unit     core.RepeatUnit
		want     error
	}{
		{"empty name", "  ", date(t, "2024-01-01"), core.Date{}, 1, core.UnitDay, core.ErrEmptyName},
		{"zero interval", "x", date(t, "2024-01-01"), core.Date{}, 0, core.UnitDay, core.ErrInvalidInterval},
		{"negative interval", "x", date(t, "2024-01-01"), core.Date{}, -3, core.UnitDay, core.ErrInvalidInterval},
		{"bad unit", "x", date(t, "2024-01-01"), core.Date{}, 1, core.RepeatUnit("year"), core.ErrInvalidUnit},
		{"end before start", "x", date(t, "2024-05-01"), date(t, "2024-04-01"), 1, core.UnitDay, core.ErrEndBeforeStart},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateHabit(ctx, tc.habit, tc.start, tc.end, tc.interval, tc.unit)
			if !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestListDueForDate(t *testing.T) {
	store := newFakeHabitStore()
	ledger := newFakeLedger()
	svc := NewHabitService(store, ledger, nil)
	ctx := context.Background()

	daily := seedHabit(t, store, "daily", "2024-01-01", 1, core.UnitDay)
	weekly := seedHabit(t, store, "weekly", "2024-01-01", 1, core.UnitWeek)
	seedHabit(t, store, "future", "2024-07-01", 1, core.UnitDay)

	// 2024-03-05 is a Tuesday; the weekly habit anchored on Monday
	// 2024-01-01 is not due.
	target := date(t, "2024-03-05")
	ledger.checked[completionKey{daily.ID, target.String()}] = true

	due, err := svc.ListDueForDate(ctx, target)
	if err != nil {
		t.Fatalf("ListDueForDate: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("got %d due habits, want 1", len(due))
	}
	if due[0].ID != daily.ID {
		t.Errorf("due habit = %s, want %s", due[0].Name, daily.Name)
	}
	if !due[0].Checked {
		t.Error("daily habit should be checked")
	}

	// On the Monday both are due and neither is checked.
	due, err = svc.ListDueForDate(ctx, date(t, "2024-03-04"))
	if err != nil {
		t.Fatalf("ListDueForDate: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("got %d due habits, want 2", len(due))
	}
	for _, d := range due {
		if d.Checked {
			t.Errorf("habit %s should be unchecked", d.Name)
		}
	}
	_ = weekly
}

func TestToggleCompletion(t *testing.T) {
	store := newFakeHabitStore()
	ledger := newFakeLedger()
	pub := &fakePublisher{}
	svc := NewHabitService(store, ledger, pub)
	ctx := context.Background()

	h := seedHabit(t, store, "read", "2024-01-01", 1, core.UnitDay)
	target := date(t, "2024-02-10")

	status, err := svc.ToggleCompletion(ctx, h.ID, target)
	if err != nil {
		t.Fatalf("ToggleCompletion: %v", err)
	}
	if status != core.StatusChecked {
		t.Errorf("status = %q, want checked", status)
	}

	status, err = svc.ToggleCompletion(ctx, h.ID, target)
	if err != nil {
		t.Fatalf("second ToggleCompletion: %v", err)
	}
	if status != core.StatusUnchecked {
		t.Errorf("status = %q, want unchecked", status)
	}

	if len(pub.toggles) != 2 {
		t.Fatalf("published %d events, want 2", len(pub.toggles))
	}
	if pub.toggles[0].status != core.StatusChecked || pub.toggles[1].status != core.StatusUnchecked {
		t.Errorf("event statuses = %v", pub.toggles)
	}
}

func TestToggleCompletionUnknownHabit(t *testing.T) {
	svc := NewHabitService(newFakeHabitStore(), newFakeLedger(), nil)

	_, err := svc.ToggleCompletion(context.Background(), uuid.New(), date(t, "2024-02-10"))
	if !errors.Is(err, core.ErrHabitNotFound) {
		t.Errorf("got %v, want ErrHabitNotFound", err)
	}
}

func TestToggleCompletionNotScheduled(t *testing.T) {
	store := newFakeHabitStore()
	svc := NewHabitService(store, newFakeLedger(), nil)
	ctx := context.Background()

	h := seedHabit(t, store, "weekly", "2024-01-01", 1, core.UnitWeek)

	// Tuesday, one day off the weekly anchor.
	_, err := svc.ToggleCompletion(ctx, h.ID, date(t, "2024-01-02"))
	if !errors.Is(err, core.ErrNotScheduled) {
		t.Errorf("got %v, want ErrNotScheduled", err)
	}

	// Before the start date.
	_, err = svc.ToggleCompletion(ctx, h.ID, date(t, "2023-12-25"))
	if !errors.Is(err, core.ErrNotScheduled) {
		t.Errorf("got %v, want ErrNotScheduled", err)
	}
}

func TestTogglePublishFailureDoesNotFail(t *testing.T) {
	store := newFakeHabitStore()
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewHabitService(store, newFakeLedger(), pub)
	ctx := context.Background()

	h := seedHabit(t, store, "read", "2024-01-01", 1, core.UnitDay)

	status, err := svc.ToggleCompletion(ctx, h.ID, date(t, "2024-02-10"))
	if err != nil {
		t.Fatalf("ToggleCompletion with failing publisher: %v", err)
	}
	if status != core.StatusChecked {
		t.Errorf("status = %q, want checked", status)
	}
}
