package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"bilancio/internal/core"
)

// SQLiteRepository implements every storage port on a local SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Foreign keys are off by default in SQLite; the completion
	// cascade depends on them.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateHabit implements HabitStore.
func (r *SQLiteRepository) CreateHabit(ctx context.Context, h core.Habit) error {
	var endDate any
	if !h.EndDate.IsZero() {
		endDate = h.EndDate.String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO habits (id, name, start_date, end_date, interval, unit, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.ID.String(), h.Name, h.StartDate.String(), endDate, h.Interval, string(h.Unit), h.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert habit: %w", err)
	}

	slog.InfoContext(ctx, "Habit saved",
		"id", h.ID,
		"name", h.Name,
		"interval", h.Interval,
		"unit", h.Unit)
	return nil
}

// GetHabit implements HabitStore.
func (r *SQLiteRepository) GetHabit(ctx context.Context, id uuid.UUID) (core.Habit, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, start_date, end_date, interval, unit, created_at
		FROM habits WHERE id = ?`, id.String())
	h, err := scanHabit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Habit{}, core.ErrHabitNotFound
	}
	if err != nil {
		return core.Habit{}, fmt.Errorf("get habit: %w", err)
	}
	return h, nil
}

// ListHabits implements HabitStore.
func (r *SQLiteRepository) ListHabits(ctx context.Context) ([]core.Habit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, start_date, end_date, interval, unit, created_at
		FROM habits ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	var habits []core.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
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

// DeleteHabit implements HabitStore. Completions go with the habit via
// the foreign-key cascade.
func (r *SQLiteRepository) DeleteHabit(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM habits WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrHabitNotFound
	}
	return nil
}

// IsChecked implements CompletionLedger.
func (r *SQLiteRepository) IsChecked(ctx context.Context, habitID uuid.UUID, date core.Date) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM habit_completions WHERE habit_id = ? AND date = ?)`,
		habitID.String(), date.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check completion: %w", err)
	}
	return exists, nil
}

// ListChecked implements CompletionLedger.
func (r *SQLiteRepository) ListChecked(ctx context.Context, date core.Date) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT habit_id FROM habit_completions WHERE date = ? ORDER BY habit_id`,
		date.String())
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse habit id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completions: %w", err)
	}
	return ids, nil
}

// Toggle implements CompletionLedger. Delete-then-insert runs inside a
// single transaction; SQLite's single-writer locking plus the
// UNIQUE(habit_id, date) constraint make concurrent toggles for the
// same pair resolve to one deterministic flip.
func (r *SQLiteRepository) Toggle(ctx context.Context, habitID uuid.UUID, date core.Date) (core.ToggleStatus, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin toggle: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM habit_completions WHERE habit_id = ? AND date = ?`,
		habitID.String(), date.String())
	if err != nil {
		return "", fmt.Errorf("delete completion: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		if err := tx.Commit(); err != nil {
			return "", fmt.Errorf("commit toggle: %w", err)
		}
		return core.StatusUnchecked, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO habit_completions (id, habit_id, date, created_at)
		VALUES (?, ?, ?, ?)`,
		uuid.New().String(), habitID.String(), date.String(), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("insert completion: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit toggle: %w", err)
	}
	return core.StatusChecked, nil
}

// ListCategories implements TaxonomyStore.
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, key, created_at FROM categories ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		var (
			raw       string
			c         core.Category
			createdAt time.Time
		)
		if err := rows.Scan(&raw, &c.Key, &createdAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.ID, err = uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse category id %q: %w", raw, err)
		}
		c.CreatedAt = createdAt
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return cats, nil
}

// GetCategory implements TaxonomyStore.
func (r *SQLiteRepository) GetCategory(ctx context.Context, id uuid.UUID) (core.Category, error) {
	var (
		raw       string
		c         core.Category
		createdAt time.Time
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, key, created_at FROM categories WHERE id = ?`, id.String(),
	).Scan(&raw, &c.Key, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrCategoryNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	c.ID, _ = uuid.Parse(raw)
	c.CreatedAt = createdAt
	return c, nil
}

// ListLabels implements TaxonomyStore.
func (r *SQLiteRepository) ListLabels(ctx context.Context) ([]core.Label, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, label, category_id, created_at FROM labels ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	defer rows.Close()

	var labels []core.Label
	for rows.Next() {
		l, err := scanLabel(rows)
		if err != nil {
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
func (r *SQLiteRepository) GetLabel(ctx context.Context, id uuid.UUID) (core.Label, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, label, category_id, created_at FROM labels WHERE id = ?`, id.String())
	l, err := scanLabel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Label{}, core.ErrLabelNotFound
	}
	if err != nil {
		return core.Label{}, fmt.Errorf("get label: %w", err)
	}
	return l, nil
}

// CreateLabel implements TaxonomyStore. The UNIQUE constraint on the
// label text maps to core.ErrLabelExists.
func (r *SQLiteRepository) CreateLabel(ctx context.Context, l core.Label) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO labels (id, label, category_id, created_at)
		VALUES (?, ?, ?, ?)`,
		l.ID.String(), l.Label, l.CategoryID.String(), l.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrLabelExists
		}
		return fmt.Errorf("insert label: %w", err)
	}
	return nil
}

// CreateTransaction implements TransactionStore.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, amount_cents, occurred_at, description, label_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.Amount.Cents, t.OccurredAt.String(), t.Description, t.LabelID.String(), t.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"amount_cents", t.Amount.Cents,
		"occurred_at", t.OccurredAt)
	return nil
}

// ListTransactions implements TransactionStore.
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, amount_cents, occurred_at, description, label_id, created_at
		FROM transactions ORDER BY occurred_at DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var (
			rawID, rawDate, rawLabel string
			desc                     sql.NullString
			t                        core.Transaction
			createdAt                time.Time
		)
		if err := rows.Scan(&rawID, &t.Amount.Cents, &rawDate, &desc, &rawLabel, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.ID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("parse transaction id %q: %w", rawID, err)
		}
		if t.OccurredAt, err = core.ParseDate(rawDate); err != nil {
			return nil, fmt.Errorf("parse transaction date %q: %w", rawDate, err)
		}
		if t.LabelID, err = uuid.Parse(rawLabel); err != nil {
			return nil, fmt.Errorf("parse label id %q: %w", rawLabel, err)
		}
		t.Description = desc.String
		t.CreatedAt = createdAt
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

// WeeklyReview implements TransactionStore: per-category sums over the
// inclusive range, largest first. ISO dates compare correctly as text.
func (r *SQLiteRepository) WeeklyReview(ctx context.Context, start, end core.Date) (core.WeeklyReview, error) {
	review := core.WeeklyReview{StartDate: start, EndDate: end}

	rows, err := r.db.QueryContext(ctx, `
		SELECT c.key, SUM(t.amount_cents) AS total
		FROM transactions t
		JOIN labels l ON l.id = t.label_id
		JOIN categories c ON c.id = l.category_id
		WHERE t.occurred_at >= ? AND t.occurred_at <= ?
		GROUP BY c.key
		ORDER BY total DESC, c.key`,
		start.String(), end.String())
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHabit(row rowScanner) (core.Habit, error) {
	var (
		rawID, rawStart string
		rawEnd          sql.NullString
		rawUnit         string
		h               core.Habit
		createdAt       time.Time
	)
	err := row.Scan(&rawID, &h.Name, &rawStart, &rawEnd, &h.Interval, &rawUnit, &createdAt)
	if err != nil {
		return core.Habit{}, err
	}
	if h.ID, err = uuid.Parse(rawID); err != nil {
		return core.Habit{}, fmt.Errorf("parse habit id %q: %w", rawID, err)
	}
	if h.StartDate, err = core.ParseDate(rawStart); err != nil {
		return core.Habit{}, fmt.Errorf("parse start date %q: %w", rawStart, err)
	}
	if rawEnd.Valid {
		if h.EndDate, err = core.ParseDate(rawEnd.String); err != nil {
			return core.Habit{}, fmt.Errorf("parse end date %q: %w", rawEnd.String, err)
		}
	}
	h.Unit = core.RepeatUnit(rawUnit)
	h.CreatedAt = createdAt
	return h, nil
}

func scanLabel(row rowScanner) (core.Label, error) {
	var (
		rawID, rawCat string
		l             core.Label
		createdAt     time.Time
	)
	err := row.Scan(&rawID, &l.Label, &rawCat, &createdAt)
	if err != nil {
		return core.Label{}, err
	}
	if l.ID, err = uuid.Parse(rawID); err != nil {
		return core.Label{}, fmt.Errorf("parse label id %q: %w", rawID, err)
	}
	if l.CategoryID, err = uuid.Parse(rawCat); err != nil {
		return core.Label{}, fmt.Errorf("parse category id %q: %w", rawCat, err)
	}
	l.CreatedAt = createdAt
	return l, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
