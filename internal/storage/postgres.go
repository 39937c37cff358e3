package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"bilancio/internal/core"
)

// PostgresRepository implements every storage port on a Postgres pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	r := &PostgresRepository{pool: pool}
	if err := r.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return r, nil
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS categories (
			id UUID PRIMARY KEY,
			key TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS labels (
			id UUID PRIMARY KEY,
			label TEXT NOT NULL UNIQUE,
			category_id UUID NOT NULL REFERENCES categories(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id UUID PRIMARY KEY,
			amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
			occurred_at DATE NOT NULL,
			description TEXT,
			label_id UUID NOT NULL REFERENCES labels(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_occurred_at ON transactions(occurred_at)`,
		`CREATE TABLE IF NOT EXISTS habits (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			start_date DATE NOT NULL,
			end_date DATE,
			interval INTEGER NOT NULL CHECK (interval >= 1),
			unit TEXT NOT NULL CHECK (unit IN ('day', 'week', 'month')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CHECK (end_date IS NULL OR end_date >= start_date)
		)`,
		`CREATE TABLE IF NOT EXISTS habit_completions (
			id UUID PRIMARY KEY,
			habit_id UUID NOT NULL REFERENCES habits(id) ON DELETE CASCADE,
			date DATE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (habit_id, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_habit_completions_date ON habit_completions(date)`,
	}
	for _, stmt := range statements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}

	seed := []struct {
		id  string
		key string
	}{
		{"11111111-1111-1111-1111-111111111111", "house"},
		{"22222222-2222-2222-2222-222222222222", "health"},
		{"33333333-3333-3333-3333-333333333333", "supermarket"},
		{"44444444-4444-4444-4444-444444444444", "fun"},
		{"55555555-5555-5555-5555-555555555555", "subscriptions"},
	}
	for _, s := range seed {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO categories (id, key) VALUES ($1, $2)
			ON CONFLICT (key) DO NOTHING`, s.id, s.key)
		if err != nil {
			return err
		}
	}
	return nil
}

// CreateHabit implements HabitStore.
func (r *PostgresRepository) CreateHabit(ctx context.Context, h core.Habit) error {
	var endDate any
	if !h.EndDate.IsZero() {
		endDate = h.EndDate.Time
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO habits (id, name, start_date, end_date, interval, unit, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		h.ID, h.Name, h.StartDate.Time, endDate, h.Interval, string(h.Unit), h.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert habit: %w", err)
	}
	return nil
}

// GetHabit implements HabitStore.
func (r *PostgresRepository) GetHabit(ctx context.Context, id uuid.UUID) (core.Habit, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, start_date, end_date, interval, unit, created_at
		FROM habits WHERE id = $1`, id)
	h, err := scanPgHabit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Habit{}, core.ErrHabitNotFound
	}
	if err != nil {
		return core.Habit{}, fmt.Errorf("get habit: %w", err)
	}
	return h, nil
}

// ListHabits implements HabitStore.
func (r *PostgresRepository) ListHabits(ctx context.Context) ([]core.Habit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, start_date, end_date, interval, unit, created_at
		FROM habits ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	var habits []core.Habit
	for rows.Next() {
		h, err := scanPgHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan habit: %w", err)
		}
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate habits: %w", err)
	}
	return habits, nil
}

// DeleteHabit implements HabitStore.
func (r *PostgresRepository) DeleteHabit(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM habits WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrHabitNotFound
	}
	return nil
}

// IsChecked implements CompletionLedger.
func (r *PostgresRepository) IsChecked(ctx context.Context, habitID uuid.UUID, date core.Date) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM habit_completions WHERE habit_id = $1 AND date = $2)`,
		habitID, date.Time,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check completion: %w", err)
	}
	return exists, nil
}

// ListChecked implements CompletionLedger.
func (r *PostgresRepository) ListChecked(ctx context.Context, date core.Date) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT habit_id FROM habit_completions WHERE date = $1 ORDER BY habit_id`,
		date.Time)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completions: %w", err)
	}
	return ids, nil
}

// Toggle implements CompletionLedger. The UNIQUE(habit_id, date)
// constraint decides the race between two concurrent first toggles;
// the loser's insert fails and surfaces as an error to that caller.
func (r *PostgresRepository) Toggle(ctx context.Context, habitID uuid.UUID, date core.Date) (core.ToggleStatus, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin toggle: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		DELETE FROM habit_completions WHERE habit_id = $1 AND date = $2`,
		habitID, date.Time)
	if err != nil {
		return "", fmt.Errorf("delete completion: %w", err)
	}
	if tag.RowsAffected() > 0 {
		if err := tx.Commit(ctx); err != nil {
			return "", fmt.Errorf("commit toggle: %w", err)
		}
		return core.StatusUnchecked, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO habit_completions (id, habit_id, date, created_at)
		VALUES ($1, $2, $3, $4)`,
		uuid.New(), habitID, date.Time, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("insert completion: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit toggle: %w", err)
	}
	return core.StatusChecked, nil
}

// ListCategories implements TaxonomyStore.
func (r *PostgresRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, key, created_at FROM categories ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Key, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return cats, nil
}

// GetCategory implements TaxonomyStore.
func (r *PostgresRepository) GetCategory(ctx context.Context, id uuid.UUID) (core.Category, error) {
	var c core.Category
	err := r.pool.QueryRow(ctx, `
		SELECT id, key, created_at FROM categories WHERE id = $1`, id,
	).Scan(&c.ID, &c.Key, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Category{}, core.ErrCategoryNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// ListLabels implements TaxonomyStore.
func (r *PostgresRepository) ListLabels(ctx context.Context) ([]core.Label, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, label, category_id, created_at FROM labels ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	defer rows.Close()

	var labels []core.Label
	for rows.Next() {
		var l core.Label
		if err := rows.Scan(&l.ID, &l.Label, &l.CategoryID, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		labels = append(labels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate labels: %w", err)
	}
	return labels, nil
}

// GetLabel implements TaxonomyStore.
func (r *PostgresRepository) GetLabel(ctx context.Context, id uuid.UUID) (core.Label, error) {
	var l core.Label
	err := r.pool.QueryRow(ctx, `
		SELECT id, label, category_id, created_at FROM labels WHERE id = $1`, id,
	).Scan(&l.ID, &l.Label, &l.CategoryID, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Label{}, core.ErrLabelNotFound
	}
	if err != nil {
		return core.Label{}, fmt.Errorf("get label: %w", err)
	}
	return l, nil
}

// CreateLabel implements TaxonomyStore.
func (r *PostgresRepository) CreateLabel(ctx context.Context, l core.Label) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO labels (id, label, category_id, created_at)
		VALUES ($1, $2, $3, $4)`,
		l.ID, l.Label, l.CategoryID, l.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return core.ErrLabelExists
		}
		return fmt.Errorf("insert label: %w", err)
	}
	return nil
}

// CreateTransaction implements TransactionStore.
func (r *PostgresRepository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO transactions (id, amount_cents, occurred_at, description, label_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.Amount.Cents, t.OccurredAt.Time, t.Description, t.LabelID, t.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ListTransactions implements TransactionStore.
func (r *PostgresRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, amount_cents, occurred_at, description, label_id, created_at
		FROM transactions ORDER BY occurred_at DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var (
			t          core.Transaction
			occurredAt time.Time
			desc       *string
		)
		if err := rows.Scan(&t.ID, &t.Amount.Cents, &occurredAt, &desc, &t.LabelID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.OccurredAt = core.DateOf(occurredAt)
		if desc != nil {
			t.Description = *desc
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

// WeeklyReview implements TransactionStore.
func (r *PostgresRepository) WeeklyReview(ctx context.Context, start, end core.Date) (core.WeeklyReview, error) {
	review := core.WeeklyReview{StartDate: start, EndDate: end}

	rows, err := r.pool.Query(ctx, `
		SELECT c.key, SUM(t.amount_cents) AS total
		FROM transactions t
		JOIN labels l ON l.id = t.label_id
		JOIN categories c ON c.id = l.category_id
		WHERE t.occurred_at >= $1 AND t.occurred_at <= $2
		GROUP BY c.key
		ORDER BY total DESC, c.key`,
		start.Time, end.Time)
	if err != nil {
		return review, fmt.Errorf("weekly review query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ct core.CategoryTotal
		if err := rows.Scan(&ct.CategoryKey, &ct.Total.Cents); err != nil {
			return review, fmt.Errorf("scan review row: %w", err)
		}
		review.Total.Cents += ct.Total.Cents
		review.ByCategory = append(review.ByCategory, ct)
	}
	if err := rows.Err(); err != nil {
		return review, fmt.Errorf("iterate review rows: %w", err)
	}
	return review, nil
}

type pgRowScanner interface {
	Scan(dest ...any) error
}

func scanPgHabit(row pgRowScanner) (core.Habit, error) {
	var (
		h         core.Habit
		startDate time.Time
		endDate   *time.Time
		rawUnit   string
	)
	err := row.Scan(&h.ID, &h.Name, &startDate, &endDate, &h.Interval, &rawUnit, &h.CreatedAt)
	if err != nil {
		return core.Habit{}, err
	}
	h.StartDate = core.DateOf(startDate)
	if endDate != nil {
		h.EndDate = core.DateOf(*endDate)
	}
	h.Unit = core.RepeatUnit(rawUnit)
	return h, nil
}
