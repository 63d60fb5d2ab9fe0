package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"taskboard/internal/core"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so text ordering in SQL matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) stamp() string {
	return formatTime(r.now())
}

// CreateTodo implements ports.TodoRepository
func (r *SQLiteRepository) CreateTodo(ctx context.Context, in core.TodoInput) (core.Todo, error) {
	if err := in.Validate(); err != nil {
		return core.Todo{}, err
	}
	ts := r.stamp()
	var id int64
	err := r.withTx(ctx, func(q *Queries) error {
		var err error
		id, err = q.CreateTodo(ctx, todoRow{
			Title:       in.Title,
			Description: in.Description,
			Completed:   in.Completed,
			DueDate:     nullTime(in.DueDate),
			CreatedAt:   ts,
			UpdatedAt:   ts,
		})
		if err != nil {
			return fmt.Errorf("create todo: %w", err)
		}
		return linkCategories(ctx, q, id, in.CategoryIDs)
	})
	if err != nil {
		return core.Todo{}, err
	}

	slog.InfoContext(ctx, "Todo saved to SQLite", "id", id, "categories", len(in.CategoryIDs))
	return r.GetTodo(ctx, id)
}

func linkCategories(ctx context.Context, q *Queries, todoID int64, ids []int64) error {
	for _, cid := range ids {
		if err := q.LinkTodoCategory(ctx, todoID, cid); err != nil {
			return fmt.Errorf("link category %d: %w", cid, err)
		}
	}
	return nil
}

// GetTodo implements ports.TodoRepository
func (r *SQLiteRepository) GetTodo(ctx context.Context, id int64) (core.Todo, error) {
	row, err := r.queries.GetTodo(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Todo{}, fmt.Errorf("todo %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Todo{}, fmt.Errorf("get todo by id: %w", err)
	}
	links, err := r.queries.ListCategoriesForTodo(ctx, id)
	if err != nil {
		return core.Todo{}, fmt.Errorf("get todo categories: %w", err)
	}
	todo, err := row.toCore()
	if err != nil {
		return core.Todo{}, err
	}
	todo.Categories = toCategories(links)
	return todo, nil
}

// ListTodos implements ports.TodoRepository
func (r *SQLiteRepository) ListTodos(ctx context.Context) ([]core.Todo, error) {
	rows, err := r.queries.ListTodos(ctx)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	byTodo, err := r.categoriesByTodo(ctx)
	if err != nil {
		return nil, err
	}

	todos := make([]core.Todo, 0, len(rows))
	for _, row := range rows {
		todo, err := row.toCore()
		if err != nil {
			return nil, err
		}
		todo.Categories = toCategories(byTodo[row.ID])
		todos = append(todos, todo)
	}
	return todos, nil
}

// ListSnapshots implements ports.SnapshotSource
func (r *SQLiteRepository) ListSnapshots(ctx context.Context) ([]core.TodoSnapshot, error) {
	todos, err := r.ListTodos(ctx)
	if err != nil {
		return nil, err
	}
	snaps := make([]core.TodoSnapshot, len(todos))
	for i, t := range todos {
		snaps[i] = t.Snapshot()
	}
	return snaps, nil
}

func (r *SQLiteRepository) categoriesByTodo(ctx context.Context) (map[int64][]todoCategoryRow, error) {
	links, err := r.queries.ListTodoCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list todo categories: %w", err)
	}
	out := make(map[int64][]todoCategoryRow)
	for _, l := range links {
		out[l.TodoID] = append(out[l.TodoID], l)
	}
	return out, nil
}

// UpdateTodo implements ports.TodoRepository
func (r *SQLiteRepository) UpdateTodo(ctx context.Context, id int64, p core.TodoPatch) (core.Todo, error) {
	if err := p.Validate(); err != nil {
		return core.Todo{}, err
	}
	err := r.withTx(ctx, func(q *Queries) error {
		row, err := q.GetTodo(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("todo %d: %w", id, core.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get todo by id: %w", err)
		}

		if p.Title != nil {
			row.Title = *p.Title
		}
		if p.Description != nil {
			row.Description = *p.Description
		}
		if p.Completed != nil {
			row.Completed = *p.Completed
		}
		switch {
		case p.ClearDueDate:
			row.DueDate = sql.NullString{}
		case p.DueDate != nil:
			row.DueDate = nullTime(p.DueDate)
		}
		row.UpdatedAt = r.stamp()

		if _, err := q.UpdateTodo(ctx, row); err != nil {
			return fmt.Errorf("update todo: %w", err)
		}
		if p.CategoryIDs != nil {
			if err := q.ClearTodoCategories(ctx, id); err != nil {
				return fmt.Errorf("clear todo categories: %w", err)
			}
			return linkCategories(ctx, q, id, *p.CategoryIDs)
		}
		return nil
	})
	if err != nil {
		return core.Todo{}, err
	}

	slog.InfoContext(ctx, "Todo updated", "id", id)
	return r.GetTodo(ctx, id)
}

// ToggleTodo implements ports.TodoRepository
func (r *SQLiteRepository) ToggleTodo(ctx context.Context, id int64) (core.Todo, error) {
	n, err := r.queries.ToggleTodo(ctx, id, r.stamp())
	if err != nil {
		return core.Todo{}, fmt.Errorf("toggle todo: %w", err)
	}
	if n == 0 {
		return core.Todo{}, fmt.Errorf("todo %d: %w", id, core.ErrNotFound)
	}
	return r.GetTodo(ctx, id)
}

// DeleteTodo implements ports.TodoRepository
func (r *SQLiteRepository) DeleteTodo(ctx context.Context, id int64) error {
	return r.withTx(ctx, func(q *Queries) error {
		if err := q.ClearTodoCategories(ctx, id); err != nil {
			return fmt.Errorf("clear todo categories: %w", err)
		}
		n, err := q.DeleteTodo(ctx, id)
		if err != nil {
			return fmt.Errorf("delete todo: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("todo %d: %w", id, core.ErrNotFound)
		}
		slog.InfoContext(ctx, "Todo deleted", "id", id)
		return nil
	})
}

// CreateCategory implements ports.CategoryRepository
func (r *SQLiteRepository) CreateCategory(ctx context.Context, in core.CategoryInput) (core.Category, error) {
	if err := in.Validate(); err != nil {
		return core.Category{}, err
	}
	in = in.WithDefaults()
	ts := r.stamp()
	id, err := r.queries.CreateCategory(ctx, categoryRow{
		Name:        in.Name,
		Description: in.Description,
		Color:       in.Color,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	})
	if isUniqueViolation(err) {
		return core.Category{}, fmt.Errorf("category %q: %w", in.Name, core.ErrCategoryConflict)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}

	slog.InfoContext(ctx, "Category saved to SQLite", "id", id, "name", in.Name)
	return r.GetCategory(ctx, id)
}

// GetCategory implements ports.CategoryRepository
func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	row, err := r.queries.GetCategory(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category by id: %w", err)
	}
	return row.toCore()
}

// ListCategories implements ports.CategoryRepository
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, 0, len(rows))
	for _, row := range rows {
		c, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// UpdateCategory implements ports.CategoryRepository
func (r *SQLiteRepository) UpdateCategory(ctx context.Context, id int64, p core.CategoryPatch) (core.Category, error) {
	if err := p.Validate(); err != nil {
		return core.Category{}, err
	}
	row, err := r.queries.GetCategory(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category by id: %w", err)
	}

	if p.Name != nil {
		row.Name = *p.Name
	}
	if p.Description != nil {
		row.Description = *p.Description
	}
	if p.Color != nil {
		row.Color = *p.Color
	}
	row.UpdatedAt = r.stamp()

	n, err := r.queries.UpdateCategory(ctx, row)
	if isUniqueViolation(err) {
		return core.Category{}, fmt.Errorf("category %q: %w", row.Name, core.ErrCategoryConflict)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	if n == 0 {
		return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	return r.GetCategory(ctx, id)
}

// DeleteCategory implements ports.CategoryRepository
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) error {
	return r.withTx(ctx, func(q *Queries) error {
		n, err := q.DeleteCategory(ctx, id)
		if err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("category %d: %w", id, core.ErrNotFound)
		}
		slog.InfoContext(ctx, "Category deleted", "id", id)
		return nil
	})
}

// CategoryStats implements ports.CategoryRepository
func (r *SQLiteRepository) CategoryStats(ctx context.Context) (core.CategoryStats, error) {
	total, withTodos, err := r.queries.CategoryStats(ctx)
	if err != nil {
		return core.CategoryStats{}, fmt.Errorf("category stats: %w", err)
	}
	return core.CategoryStats{TotalCategories: int(total), CategoriesWithTodos: int(withTodos)}, nil
}

// SaveStatsSnapshot implements ports.StatsSnapshotStore
func (r *SQLiteRepository) SaveStatsSnapshot(ctx context.Context, s core.StatsSnapshot) (int64, error) {
	body, err := json.Marshal(s.Report)
	if err != nil {
		return 0, fmt.Errorf("marshal report: %w", err)
	}
	id, err := r.queries.InsertStatsSnapshot(ctx, snapshotRow{
		GeneratedAt: formatTime(s.GeneratedAt),
		Reason:      s.Reason,
		Report:      string(body),
	})
	if err != nil {
		return 0, fmt.Errorf("insert stats snapshot: %w", err)
	}
	return id, nil
}

// LatestStatsSnapshot implements ports.StatsSnapshotStore
func (r *SQLiteRepository) LatestStatsSnapshot(ctx context.Context) (core.StatsSnapshot, error) {
	row, err := r.queries.LatestStatsSnapshot(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return core.StatsSnapshot{}, fmt.Errorf("stats snapshot: %w", core.ErrNotFound)
	}
	if err != nil {
		return core.StatsSnapshot{}, fmt.Errorf("get latest stats snapshot: %w", err)
	}
	generatedAt, err := parseTime(row.GeneratedAt)
	if err != nil {
		return core.StatsSnapshot{}, err
	}
	snap := core.StatsSnapshot{ID: row.ID, GeneratedAt: generatedAt, Reason: row.Reason}
	if err := json.Unmarshal([]byte(row.Report), &snap.Report); err != nil {
		return core.StatsSnapshot{}, fmt.Errorf("decode stats snapshot %d: %w", row.ID, err)
	}
	return snap, nil
}

// PruneStatsSnapshots keeps the newest keep snapshots and deletes the rest.
func (r *SQLiteRepository) PruneStatsSnapshots(ctx context.Context, keep int) (int64, error) {
	n, err := r.queries.PruneStatsSnapshots(ctx, keep)
	if err != nil {
		return 0, fmt.Errorf("prune stats snapshots: %w", err)
	}
	if n > 0 {
		slog.DebugContext(ctx, "Pruned stats snapshots", "deleted", n, "kept", keep)
	}
	return n, nil
}

func (row todoRow) toCore() (core.Todo, error) {
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return core.Todo{}, err
	}
	updated, err := parseTime(row.UpdatedAt)
	if err != nil {
		return core.Todo{}, err
	}
	todo := core.Todo{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Completed:   row.Completed,
		Categories:  []core.Category{},
		CreatedAt:   created,
		UpdatedAt:   updated,
	}
	if row.DueDate.Valid {
		due, err := parseTime(row.DueDate.String)
		if err != nil {
			return core.Todo{}, err
		}
		todo.DueDate = &due
	}
	return todo, nil
}

func (row categoryRow) toCore() (core.Category, error) {
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return core.Category{}, err
	}
	updated, err := parseTime(row.UpdatedAt)
	if err != nil {
		return core.Category{}, err
	}
	return core.Category{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Color:       row.Color,
		TodoCount:   int(row.TodoCount),
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}

func toCategories(links []todoCategoryRow) []core.Category {
	out := make([]core.Category, 0, len(links))
	for _, l := range links {
		out = append(out, core.Category{ID: l.CategoryID, Name: l.Name, Color: l.Color})
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}
