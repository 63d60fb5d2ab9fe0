package storage

import (
	"context"
	"database/sql"
	"strings"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Row types mirror the table columns; timestamps are kept as text and
// converted by the repository.
type (
	todoRow struct {
		ID          int64
		Title       string
		Description string
		Completed   bool
		DueDate     sql.NullString
		CreatedAt   string
		UpdatedAt   string
	}

	categoryRow struct {
		ID          int64
		Name        string
		Description string
		Color       string
		CreatedAt   string
		UpdatedAt   string
		TodoCount   int64
	}

	todoCategoryRow struct {
		TodoID     int64
		CategoryID int64
		Name       string
		Color      string
	}

	snapshotRow struct {
		ID          int64
		GeneratedAt string
		Reason      string
		Report      string
	}
)

const createTodo = `
INSERT INTO todos (title, description, completed, due_date, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
`

func (q *Queries) CreateTodo(ctx context.Context, r todoRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, createTodo, r.Title, r.Description, r.Completed, r.DueDate, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const todoColumns = `id, title, description, completed, due_date, created_at, updated_at`

const getTodo = `SELECT ` + todoColumns + ` FROM todos WHERE id = ?`

func (q *Queries) GetTodo(ctx context.Context, id int64) (todoRow, error) {
	var r todoRow
	err := q.db.QueryRowContext(ctx, getTodo, id).Scan(
		&r.ID, &r.Title, &r.Description, &r.Completed, &r.DueDate, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

const listTodos = `SELECT ` + todoColumns + ` FROM todos ORDER BY created_at DESC, id DESC`

func (q *Queries) ListTodos(ctx context.Context) ([]todoRow, error) {
	rows, err := q.db.QueryContext(ctx, listTodos)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []todoRow
	for rows.Next() {
		var r todoRow
		if err := rows.Scan(&r.ID, &r.Title, &r.Description, &r.Completed, &r.DueDate, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const updateTodo = `
UPDATE todos SET title = ?, description = ?, completed = ?, due_date = ?, updated_at = ?
WHERE id = ?
`

func (q *Queries) UpdateTodo(ctx context.Context, r todoRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTodo, r.Title, r.Description, r.Completed, r.DueDate, r.UpdatedAt, r.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const toggleTodo = `UPDATE todos SET completed = NOT completed, updated_at = ? WHERE id = ?`

func (q *Queries) ToggleTodo(ctx context.Context, id int64, updatedAt string) (int64, error) {
	res, err := q.db.ExecContext(ctx, toggleTodo, updatedAt, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteTodo = `DELETE FROM todos WHERE id = ?`

func (q *Queries) DeleteTodo(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTodo, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const clearTodoCategories = `DELETE FROM todo_categories WHERE todo_id = ?`

func (q *Queries) ClearTodoCategories(ctx context.Context, todoID int64) error {
	_, err := q.db.ExecContext(ctx, clearTodoCategories, todoID)
	return err
}

// Unknown category ids select no row and are skipped.
const linkTodoCategory = `
INSERT OR IGNORE INTO todo_categories (todo_id, category_id)
SELECT ?, id FROM categories WHERE id = ?
`

func (q *Queries) LinkTodoCategory(ctx context.Context, todoID, categoryID int64) error {
	_, err := q.db.ExecContext(ctx, linkTodoCategory, todoID, categoryID)
	return err
}

const todoCategoryColumns = `
SELECT tc.todo_id, c.id, c.name, c.color
FROM todo_categories tc
JOIN categories c ON c.id = tc.category_id
`

const listTodoCategories = todoCategoryColumns + `ORDER BY tc.todo_id, c.id`

func (q *Queries) ListTodoCategories(ctx context.Context) ([]todoCategoryRow, error) {
	return q.queryTodoCategories(ctx, listTodoCategories)
}

const listCategoriesForTodo = todoCategoryColumns + `WHERE tc.todo_id = ? ORDER BY c.id`

func (q *Queries) ListCategoriesForTodo(ctx context.Context, todoID int64) ([]todoCategoryRow, error) {
	return q.queryTodoCategories(ctx, listCategoriesForTodo, todoID)
}

func (q *Queries) queryTodoCategories(ctx context.Context, query string, args ...interface{}) ([]todoCategoryRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []todoCategoryRow
	for rows.Next() {
		var r todoCategoryRow
		if err := rows.Scan(&r.TodoID, &r.CategoryID, &r.Name, &r.Color); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const createCategory = `
INSERT INTO categories (name, description, color, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
`

func (q *Queries) CreateCategory(ctx context.Context, r categoryRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, createCategory, r.Name, r.Description, r.Color, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const categorySelect = `
SELECT c.id, c.name, c.description, c.color, c.created_at, c.updated_at, COUNT(tc.todo_id)
FROM categories c
LEFT JOIN todo_categories tc ON tc.category_id = c.id
`

const getCategory = categorySelect + `WHERE c.id = ? GROUP BY c.id`

func (q *Queries) GetCategory(ctx context.Context, id int64) (categoryRow, error) {
	var r categoryRow
	err := q.db.QueryRowContext(ctx, getCategory, id).Scan(
		&r.ID, &r.Name, &r.Description, &r.Color, &r.CreatedAt, &r.UpdatedAt, &r.TodoCount,
	)
	return r, err
}

const listCategories = categorySelect + `GROUP BY c.id ORDER BY c.created_at DESC, c.id DESC`

func (q *Queries) ListCategories(ctx context.Context) ([]categoryRow, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []categoryRow
	for rows.Next() {
		var r categoryRow
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.Color, &r.CreatedAt, &r.UpdatedAt, &r.TodoCount); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const updateCategory = `
UPDATE categories SET name = ?, description = ?, color = ?, updated_at = ?
WHERE id = ?
`

func (q *Queries) UpdateCategory(ctx context.Context, r categoryRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateCategory, r.Name, r.Description, r.Color, r.UpdatedAt, r.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteCategoryLinks = `DELETE FROM todo_categories WHERE category_id = ?`

const deleteCategory = `DELETE FROM categories WHERE id = ?`

func (q *Queries) DeleteCategory(ctx context.Context, id int64) (int64, error) {
	if _, err := q.db.ExecContext(ctx, deleteCategoryLinks, id); err != nil {
		return 0, err
	}
	res, err := q.db.ExecContext(ctx, deleteCategory, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const categoryStats = `
SELECT
    (SELECT COUNT(*) FROM categories),
    (SELECT COUNT(DISTINCT category_id) FROM todo_categories)
`

func (q *Queries) CategoryStats(ctx context.Context) (total, withTodos int64, err error) {
	err = q.db.QueryRowContext(ctx, categoryStats).Scan(&total, &withTodos)
	return total, withTodos, err
}

const insertStatsSnapshot = `
INSERT INTO stats_snapshots (generated_at, reason, report) VALUES (?, ?, ?)
`

func (q *Queries) InsertStatsSnapshot(ctx context.Context, r snapshotRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertStatsSnapshot, r.GeneratedAt, r.Reason, r.Report)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const latestStatsSnapshot = `
SELECT id, generated_at, reason, report FROM stats_snapshots
ORDER BY generated_at DESC, id DESC
LIMIT 1
`

func (q *Queries) LatestStatsSnapshot(ctx context.Context) (snapshotRow, error) {
	var r snapshotRow
	err := q.db.QueryRowContext(ctx, latestStatsSnapshot).Scan(&r.ID, &r.GeneratedAt, &r.Reason, &r.Report)
	return r, err
}

const pruneStatsSnapshots = `
DELETE FROM stats_snapshots
WHERE id NOT IN (SELECT id FROM stats_snapshots ORDER BY generated_at DESC, id DESC LIMIT ?)
`

func (q *Queries) PruneStatsSnapshots(ctx context.Context, keep int) (int64, error) {
	res, err := q.db.ExecContext(ctx, pruneStatsSnapshots, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
