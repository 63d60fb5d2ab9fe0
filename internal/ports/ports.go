package ports

import (
	"context"

	"taskboard/internal/core"
)

// Ports for outbound adapters.
type (
	TodoRepository interface {
		CreateTodo(ctx context.Context, in core.TodoInput) (core.Todo, error)
		// ListTodos returns every todo with its categories, newest first.
		ListTodos(ctx context.Context) ([]core.Todo, error)
		GetTodo(ctx context.Context, id int64) (core.Todo, error)
		UpdateTodo(ctx context.Context, id int64, p core.TodoPatch) (core.Todo, error)
		ToggleTodo(ctx context.Context, id int64) (core.Todo, error)
		DeleteTodo(ctx context.Context, id int64) error
	}

	CategoryRepository interface {
		CreateCategory(ctx context.Context, in core.CategoryInput) (core.Category, error)
		// ListCategories returns every category with its todo count, newest first.
		ListCategories(ctx context.Context) ([]core.Category, error)
		GetCategory(ctx context.Context, id int64) (core.Category, error)
		UpdateCategory(ctx context.Context, id int64, p core.CategoryPatch) (core.Category, error)
		DeleteCategory(ctx context.Context, id int64) error
		CategoryStats(ctx context.Context) (core.CategoryStats, error)
	}

	// SnapshotSource feeds the aggregator.
	SnapshotSource interface {
		// ListSnapshots returns all todos with category names resolved,
		// ordered by creation time descending, then id descending.
		ListSnapshots(ctx context.Context) ([]core.TodoSnapshot, error)
	}

	// StatsSnapshotStore persists precomputed reports.
	StatsSnapshotStore interface {
		SaveStatsSnapshot(ctx context.Context, s core.StatsSnapshot) (int64, error)
		// LatestStatsSnapshot returns core.ErrNotFound when nothing was saved yet.
		LatestStatsSnapshot(ctx context.Context) (core.StatsSnapshot, error)
	}

	// StatsExporter publishes a report to an external destination.
	StatsExporter interface {
		ExportStats(ctx context.Context, s core.StatsSnapshot) error
	}

	// EventPublisher announces todo and category changes.
	EventPublisher interface {
		PublishTodoEvent(ctx context.Context, e core.TodoEvent) error
	}
)
