package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"taskboard/internal/core"
)

type todoRecord struct {
	todo        core.Todo
	categoryIDs []int64
}

// Store keeps todos, categories and stats snapshots in process memory. It
// implements the same ports as the SQLite repository.
type Store struct {
	mu         sync.Mutex
	now        func() time.Time
	nextTodo   int64
	nextCat    int64
	todos      map[int64]*todoRecord
	categories map[int64]core.Category
	snapshots  []core.StatsSnapshot
}

func New() *Store {
	return &Store{
		now:        time.Now,
		todos:      map[int64]*todoRecord{},
		categories: map[int64]core.Category{},
	}
}

// NewFromFiles seeds categories from base/seed_categories.txt, one per line
// as "name" or "name,#rrggbb". Missing or unreadable files yield an empty store.
func NewFromFiles(base string) *Store {
	s := New()
	for _, line := range readLines(filepath.Join(base, "seed_categories.txt")) {
		name, color, _ := strings.Cut(line, ",")
		in := core.CategoryInput{Name: strings.TrimSpace(name), Color: strings.TrimSpace(color)}
		// bad seed lines are skipped
		_, _ = s.CreateCategory(context.Background(), in)
	}
	return s
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) CreateTodo(_ context.Context, in core.TodoInput) (core.Todo, error) {
	if err := in.Validate(); err != nil {
		return core.Todo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTodo++
	ts := s.now()
	rec := &todoRecord{
		todo: core.Todo{
			ID:          s.nextTodo,
			Title:       in.Title,
			Description: in.Description,
			Completed:   in.Completed,
			DueDate:     copyTime(in.DueDate),
			CreatedAt:   ts,
			UpdatedAt:   ts,
		},
		categoryIDs: s.knownCategories(in.CategoryIDs),
	}
	s.todos[rec.todo.ID] = rec
	return s.resolve(rec), nil
}

func (s *Store) GetTodo(_ context.Context, id int64) (core.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.todos[id]
	if !ok {
		return core.Todo{}, fmt.Errorf("todo %d: %w", id, core.ErrNotFound)
	}
	return s.resolve(rec), nil
}

// ListTodos returns todos newest first; ties break by id descending.
func (s *Store) ListTodos(_ context.Context) ([]core.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := make([]*todoRecord, 0, len(s.todos))
	for _, rec := range s.todos {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i].todo, recs[j].todo
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	out := make([]core.Todo, len(recs))
	for i, rec := range recs {
		out[i] = s.resolve(rec)
	}
	return out, nil
}

func (s *Store) ListSnapshots(ctx context.Context) ([]core.TodoSnapshot, error) {
	todos, err := s.ListTodos(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.TodoSnapshot, len(todos))
	for i, t := range todos {
		out[i] = t.Snapshot()
	}
	return out, nil
}

func (s *Store) UpdateTodo(_ context.Context, id int64, p core.TodoPatch) (core.Todo, error) {
	if err := p.Validate(); err != nil {
		return core.Todo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.todos[id]
	if !ok {
		return core.Todo{}, fmt.Errorf("todo %d: %w", id, core.ErrNotFound)
	}
	t := &rec.todo
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	switch {
	case p.ClearDueDate:
		t.DueDate = nil
	case p.DueDate != nil:
		t.DueDate = copyTime(p.DueDate)
	}
	if p.CategoryIDs != nil {
		rec.categoryIDs = s.knownCategories(*p.CategoryIDs)
	}
	t.UpdatedAt = s.now()
	return s.resolve(rec), nil
}

func (s *Store) ToggleTodo(_ context.Context, id int64) (core.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.todos[id]
	if !ok {
		return core.Todo{}, fmt.Errorf("todo %d: %w", id, core.ErrNotFound)
	}
	rec.todo.Completed = !rec.todo.Completed
	rec.todo.UpdatedAt = s.now()
	return s.resolve(rec), nil
}

func (s *Store) DeleteTodo(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.todos[id]; !ok {
		return fmt.Errorf("todo %d: %w", id, core.ErrNotFound)
	}
	delete(s.todos, id)
	return nil
}

func (s *Store) CreateCategory(_ context.Context, in core.CategoryInput) (core.Category, error) {
	if err := in.Validate(); err != nil {
		return core.Category{}, err
	}
	in = in.WithDefaults()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameTaken(in.Name, 0) {
		return core.Category{}, fmt.Errorf("category %q: %w", in.Name, core.ErrCategoryConflict)
	}
	s.nextCat++
	ts := s.now()
	c := core.Category{
		ID:          s.nextCat,
		Name:        in.Name,
		Description: in.Description,
		Color:       in.Color,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) GetCategory(_ context.Context, id int64) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	c.TodoCount = s.todoCount(id)
	return c, nil
}

func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0, len(s.categories))
	for id, c := range s.categories {
		c.TodoCount = s.todoCount(id)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateCategory(_ context.Context, id int64, p core.CategoryPatch) (core.Category, error) {
	if err := p.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	if p.Name != nil {
		if s.nameTaken(*p.Name, id) {
			return core.Category{}, fmt.Errorf("category %q: %w", *p.Name, core.ErrCategoryConflict)
		}
		c.Name = *p.Name
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Color != nil {
		c.Color = *p.Color
	}
	c.UpdatedAt = s.now()
	s.categories[id] = c
	c.TodoCount = s.todoCount(id)
	return c, nil
}

func (s *Store) DeleteCategory(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	delete(s.categories, id)
	for _, rec := range s.todos {
		rec.categoryIDs = s.knownCategories(rec.categoryIDs)
	}
	return nil
}

func (s *Store) CategoryStats(_ context.Context) (core.CategoryStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	used := map[int64]struct{}{}
	for _, rec := range s.todos {
		for _, id := range rec.categoryIDs {
			used[id] = struct{}{}
		}
	}
	return core.CategoryStats{TotalCategories: len(s.categories), CategoriesWithTodos: len(used)}, nil
}

func (s *Store) SaveStatsSnapshot(_ context.Context, snap core.StatsSnapshot) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.ID = int64(len(s.snapshots) + 1)
	s.snapshots = append(s.snapshots, snap)
	return snap.ID, nil
}

func (s *Store) LatestStatsSnapshot(_ context.Context) (core.StatsSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snapshots) == 0 {
		return core.StatsSnapshot{}, fmt.Errorf("stats snapshot: %w", core.ErrNotFound)
	}
	latest := s.snapshots[0]
	for _, snap := range s.snapshots[1:] {
		if !snap.GeneratedAt.Before(latest.GeneratedAt) {
			latest = snap
		}
	}
	return latest, nil
}

// resolve returns a copy of the todo with its categories attached, in id order.
// Callers hold s.mu.
func (s *Store) resolve(rec *todoRecord) core.Todo {
	t := rec.todo
	t.DueDate = copyTime(rec.todo.DueDate)
	ids := append([]int64(nil), rec.categoryIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	t.Categories = make([]core.Category, 0, len(ids))
	for _, id := range ids {
		c := s.categories[id]
		t.Categories = append(t.Categories, core.Category{ID: c.ID, Name: c.Name, Color: c.Color})
	}
	return t
}

// knownCategories filters ids to existing categories and drops duplicates.
func (s *Store) knownCategories(ids []int64) []int64 {
	seen := map[int64]struct{}{}
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.categories[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *Store) nameTaken(name string, except int64) bool {
	for id, c := range s.categories {
		if id != except && c.Name == name {
			return true
		}
	}
	return false
}

func (s *Store) todoCount(categoryID int64) int {
	n := 0
	for _, rec := range s.todos {
		for _, id := range rec.categoryIDs {
			if id == categoryID {
				n++
				break
			}
		}
	}
	return n
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

// dedupe drops repeated lines and keeps the first occurrence order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
