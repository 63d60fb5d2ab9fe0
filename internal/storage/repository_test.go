package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"taskboard/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	// deterministic, strictly increasing clock
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return repo
}

func mustCategory(t *testing.T, repo *SQLiteRepository, name string) core.Category {
	t.Helper()
	c, err := repo.CreateCategory(context.Background(), core.CategoryInput{Name: name})
	if err != nil {
		t.Fatalf("CreateCategory(%q): %v", name, err)
	}
	return c
}

func TestRepositoryTodoLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	work := mustCategory(t, repo, "Work")

	due := time.Date(2025, 3, 10, 18, 30, 0, 0, time.FixedZone("CET", 3600))
	created, err := repo.CreateTodo(ctx, core.TodoInput{
		Title:       "Write report",
		Description: "quarterly",
		DueDate:     &due,
		CategoryIDs: []int64{work.ID, 999},
	})
	if err != nil {
		t.Fatalf("CreateTodo: %v", err)
	}
	if created.ID == 0 || created.Title != "Write report" || created.Completed {
		t.Fatalf("unexpected todo %+v", created)
	}
	if created.DueDate == nil || !created.DueDate.Equal(due) {
		t.Fatalf("due date = %v, want %v", created.DueDate, due)
	}
	if len(created.Categories) != 1 || created.Categories[0].Name != "Work" {
		t.Fatalf("unknown category ids should be ignored, got %+v", created.Categories)
	}

	title := "Write final report"
	done := true
	updated, err := repo.UpdateTodo(ctx, created.ID, core.TodoPatch{
		Title:        &title,
		Completed:    &done,
		ClearDueDate: true,
		CategoryIDs:  &[]int64{},
	})
	if err != nil {
		t.Fatalf("UpdateTodo: %v", err)
	}
	if updated.Title != title || !updated.Completed || updated.DueDate != nil || len(updated.Categories) != 0 {
		t.Fatalf("unexpected update result %+v", updated)
	}
	if updated.Description != "quarterly" {
		t.Fatalf("untouched field changed: %q", updated.Description)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Fatalf("updated_at not advanced")
	}

	toggled, err := repo.ToggleTodo(ctx, created.ID)
	if err != nil {
		t.Fatalf("ToggleTodo: %v", err)
	}
	if toggled.Completed {
		t.Fatalf("toggle should flip completion back to false")
	}

	if err := repo.DeleteTodo(ctx, created.ID); err != nil {
		t.Fatalf("DeleteTodo: %v", err)
	}
	if _, err := repo.GetTodo(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("GetTodo after delete: want ErrNotFound, got %v", err)
	}
}

func TestRepositoryNotFound(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	checks := map[string]error{}
	_, checks["GetTodo"] = repo.GetTodo(ctx, 1)
	_, checks["UpdateTodo"] = repo.UpdateTodo(ctx, 1, core.TodoPatch{})
	_, checks["ToggleTodo"] = repo.ToggleTodo(ctx, 1)
	checks["DeleteTodo"] = repo.DeleteTodo(ctx, 1)
	_, checks["GetCategory"] = repo.GetCategory(ctx, 1)
	_, checks["UpdateCategory"] = repo.UpdateCategory(ctx, 1, core.CategoryPatch{})
	checks["DeleteCategory"] = repo.DeleteCategory(ctx, 1)
	_, checks["LatestStatsSnapshot"] = repo.LatestStatsSnapshot(ctx)

	for name, err := range checks {
		if !errors.Is(err, core.ErrNotFound) {
			t.Errorf("%s: want ErrNotFound, got %v", name, err)
		}
	}
}

func TestRepositoryValidation(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, err := repo.CreateTodo(ctx, core.TodoInput{Title: " "}); !errors.Is(err, core.ErrEmptyTitle) {
		t.Fatalf("want ErrEmptyTitle, got %v", err)
	}
	if _, err := repo.CreateCategory(ctx, core.CategoryInput{Name: "x", Color: "red"}); !errors.Is(err, core.ErrInvalidColor) {
		t.Fatalf("want ErrInvalidColor, got %v", err)
	}
}

func TestRepositoryCategories(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	work := mustCategory(t, repo, "Work")
	if work.Color != core.DefaultCategoryColor {
		t.Fatalf("default color = %q", work.Color)
	}
	home := mustCategory(t, repo, "Home")
	mustCategory(t, repo, "Unused")

	if _, err := repo.CreateCategory(ctx, core.CategoryInput{Name: "Work"}); !errors.Is(err, core.ErrCategoryConflict) {
		t.Fatalf("duplicate name: want ErrCategoryConflict, got %v", err)
	}
	name := "Home"
	if _, err := repo.UpdateCategory(ctx, work.ID, core.CategoryPatch{Name: &name}); !errors.Is(err, core.ErrCategoryConflict) {
		t.Fatalf("rename onto existing: want ErrCategoryConflict, got %v", err)
	}

	if _, err := repo.CreateTodo(ctx, core.TodoInput{Title: "a", CategoryIDs: []int64{work.ID, home.ID}}); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.CreateTodo(ctx, core.TodoInput{Title: "b", CategoryIDs: []int64{work.ID}}); err != nil {
		t.Fatal(err)
	}

	list, err := repo.ListCategories(ctx)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(list) != 3 || list[0].Name != "Unused" || list[2].Name != "Work" {
		t.Fatalf("categories should be newest first, got %+v", list)
	}
	if list[2].TodoCount != 2 || list[1].TodoCount != 1 || list[0].TodoCount != 0 {
		t.Fatalf("unexpected todo counts %+v", list)
	}

	stats, err := repo.CategoryStats(ctx)
	if err != nil {
		t.Fatalf("CategoryStats: %v", err)
	}
	if stats != (core.CategoryStats{TotalCategories: 3, CategoriesWithTodos: 2}) {
		t.Fatalf("stats = %+v", stats)
	}

	color := "#112233"
	updated, err := repo.UpdateCategory(ctx, home.ID, core.CategoryPatch{Color: &color})
	if err != nil {
		t.Fatalf("UpdateCategory: %v", err)
	}
	if updated.Color != color || updated.Name != "Home" {
		t.Fatalf("unexpected category %+v", updated)
	}

	if err := repo.DeleteCategory(ctx, work.ID); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	todos, err := repo.ListTodos(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, td := range todos {
		for _, c := range td.Categories {
			if c.ID == work.ID {
				t.Fatalf("deleted category still linked to todo %d", td.ID)
			}
		}
	}
}

func TestRepositoryListSnapshotsOrder(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	work := mustCategory(t, repo, "Work")

	due := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	first, _ := repo.CreateTodo(ctx, core.TodoInput{Title: "first"})
	second, _ := repo.CreateTodo(ctx, core.TodoInput{Title: "second", Completed: true, DueDate: &due, CategoryIDs: []int64{work.ID}})

	snaps, err := repo.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(snaps) != 2 || snaps[0].ID != second.ID || snaps[1].ID != first.ID {
		t.Fatalf("snapshots should be newest first, got %+v", snaps)
	}
	if !snaps[0].Completed || snaps[0].DueAt == nil || !snaps[0].DueAt.Equal(due) {
		t.Fatalf("unexpected snapshot %+v", snaps[0])
	}
	if len(snaps[0].CategoryNames) != 1 || snaps[0].CategoryNames[0] != "Work" {
		t.Fatalf("category names = %v", snaps[0].CategoryNames)
	}
	if len(snaps[1].CategoryNames) != 0 || snaps[1].DueAt != nil {
		t.Fatalf("unexpected snapshot %+v", snaps[1])
	}
}

func TestRepositoryListSnapshotsSameCreatedAt(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	a, _ := repo.CreateTodo(ctx, core.TodoInput{Title: "a"})
	b, _ := repo.CreateTodo(ctx, core.TodoInput{Title: "b"})

	snaps, err := repo.ListSnapshots(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snaps[0].ID != b.ID || snaps[1].ID != a.ID {
		t.Fatalf("ties should break by id descending, got %d, %d", snaps[0].ID, snaps[1].ID)
	}
}

func TestRepositoryStatsSnapshots(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		report := core.Aggregate(make([]core.TodoSnapshot, i+1), base)
		_, err := repo.SaveStatsSnapshot(ctx, core.StatsSnapshot{
			GeneratedAt: base.Add(time.Duration(i) * time.Minute),
			Reason:      "tick",
			Report:      report,
		})
		if err != nil {
			t.Fatalf("SaveStatsSnapshot: %v", err)
		}
	}

	latest, err := repo.LatestStatsSnapshot(ctx)
	if err != nil {
		t.Fatalf("LatestStatsSnapshot: %v", err)
	}
	if latest.Report.Total != 4 || latest.Reason != "tick" || !latest.GeneratedAt.Equal(base.Add(3*time.Minute)) {
		t.Fatalf("unexpected latest snapshot %+v", latest)
	}
	if len(latest.Report.CategoryDistribution) != 1 || latest.Report.CategoryDistribution[0].Count != 4 {
		t.Fatalf("report not round-tripped: %+v", latest.Report)
	}

	n, err := repo.PruneStatsSnapshots(ctx, 2)
	if err != nil {
		t.Fatalf("PruneStatsSnapshots: %v", err)
	}
	if n != 2 {
		t.Fatalf("pruned %d, want 2", n)
	}
	latest, err = repo.LatestStatsSnapshot(ctx)
	if err != nil || latest.Report.Total != 4 {
		t.Fatalf("latest lost after prune: %+v, %v", latest, err)
	}
}
