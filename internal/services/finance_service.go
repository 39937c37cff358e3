package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

// FinanceService orchestrates labels, transactions and the weekly review.
type FinanceService struct {
	taxonomy     storage.TaxonomyStore
	transactions storage.TransactionStore
	events       EventPublisher
}

func NewFinanceService(taxonomy storage.TaxonomyStore, transactions storage.TransactionStore, events EventPublisher) *FinanceService {
	return &FinanceService{
		taxonomy:     taxonomy,
		transactions: transactions,
		events:       events,
	}
}

// ListCategories returns the fixed category set.
func (s *FinanceService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.taxonomy.ListCategories(ctx)
}

// ListLabels returns every label, ordered by text.
func (s *FinanceService) ListLabels(ctx context.Context) ([]core.Label, error) {
	return s.taxonomy.ListLabels(ctx)
}

// CreateLabel validates and stores a new label under an existing category.
func (s *FinanceService) CreateLabel(ctx context.Context, text string, categoryID uuid.UUID) (core.Label, error) {
	l := core.Label{
		ID:         uuid.New(),
		Label:      text,
		CategoryID: categoryID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := l.Validate(); err != nil {
		return core.Label{}, err
	}
	if _, err := s.taxonomy.GetCategory(ctx, categoryID); err != nil {
		return core.Label{}, err
	}
	if err := s.taxonomy.CreateLabel(ctx, l); err != nil {
		return core.Label{}, err
	}
	return l, nil
}

// CreateTransaction validates and stores a transaction, then announces it.
func (s *FinanceService) CreateTransaction(ctx context.Context, amount core.Money, occurredAt core.Date, description string, labelID uuid.UUID) (core.Transaction, error) {
	t := core.Transaction{
		ID:          uuid.New(),
		Amount:      amount,
		OccurredAt:  occurredAt,
		Description: description,
		LabelID:     labelID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if _, err := s.taxonomy.GetLabel(ctx, labelID); err != nil {
		return core.Transaction{}, err
	}
	if err := s.transactions.CreateTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishTransactionCreated(ctx, t); err != nil {
			slog.ErrorContext(ctx, "Failed to publish transaction event",
				"transaction_id", t.ID, "error", err)
			// Don't fail the request, the transaction is saved.
		}
	}

	return t, nil
}

// ListTransactions returns every transaction, newest first.
func (s *FinanceService) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	return s.transactions.ListTransactions(ctx)
}

// WeeklyReview aggregates spending per category over an inclusive range.
func (s *FinanceService) WeeklyReview(ctx context.Context, start, end core.Date) (core.WeeklyReview, error) {
	if err := start.Validate(); err != nil {
		return core.WeeklyReview{}, core.ErrInvalidRange
	}
	if err := end.Validate(); err != nil {
		return core.WeeklyReview{}, core.ErrInvalidRange
	}
	if end.BeforeDate(start) {
		return core.WeeklyReview{}, core.ErrInvalidRange
	}
	return s.transactions.WeeklyReview(ctx, start, end)
}
