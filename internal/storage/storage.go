// Package storage defines the persistence ports consumed by the service
// layer, plus the SQLite and Postgres implementations. Services receive
// these interfaces explicitly; there is no ambient database handle.
package storage

import (
	"context"

	"github.com/google/uuid"

	"bilancio/internal/core"
)

type (
	// HabitStore persists habit definitions. Habits are immutable once
	// created; Delete exists to honor the completion cascade contract.
	HabitStore interface {
		CreateHabit(ctx context.Context, h core.Habit) error
		GetHabit(ctx context.Context, id uuid.UUID) (core.Habit, error)
		// ListHabits returns all habits ordered by name, then id.
		ListHabits(ctx context.Context) ([]core.Habit, error)
		DeleteHabit(ctx context.Context, id uuid.UUID) error
	}

	// CompletionLedger records which (habit, date) pairs are checked.
	// Toggle is the sole mutation: it must serialize concurrent calls
	// for the same pair into a single deterministic flip.
	CompletionLedger interface {
		IsChecked(ctx context.Context, habitID uuid.UUID, date core.Date) (bool, error)
		ListChecked(ctx context.Context, date core.Date) ([]uuid.UUID, error)
		Toggle(ctx context.Context, habitID uuid.UUID, date core.Date) (core.ToggleStatus, error)
	}

	// TaxonomyStore serves the fixed categories and free-form labels.
	TaxonomyStore interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
		GetCategory(ctx context.Context, id uuid.UUID) (core.Category, error)
		ListLabels(ctx context.Context) ([]core.Label, error)
		GetLabel(ctx context.Context, id uuid.UUID) (core.Label, error)
		CreateLabel(ctx context.Context, l core.Label) error
	}

	// TransactionStore persists transactions and answers the weekly
	// aggregation query.
	TransactionStore interface {
		CreateTransaction(ctx context.Context, t core.Transaction) error
		// ListTransactions returns all transactions, newest first.
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
		WeeklyReview(ctx context.Context, start, end core.Date) (core.WeeklyReview, error)
	}

	// Repository bundles every port. Both backends implement it.
	Repository interface {
		HabitStore
		CompletionLedger
		TaxonomyStore
		TransactionStore
		Close() error
	}
)
