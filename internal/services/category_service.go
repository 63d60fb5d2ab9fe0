package services

import (
	"context"
	"fmt"

	"taskboard/internal/core"
	"taskboard/internal/ports"
)

// CategoryService manages categories. Renames and deletions change the
// category distribution, so every write also invalidates statistics.
type CategoryService struct {
	repo ports.CategoryRepository
	notifier
}

func NewCategoryService(repo ports.CategoryRepository, events ports.EventPublisher, stats Invalidator) *CategoryService {
	return &CategoryService{repo: repo, notifier: notifier{events: events, stats: stats}}
}

func (s *CategoryService) Create(ctx context.Context, in core.CategoryInput) (core.Category, error) {
	if err := in.Validate(); err != nil {
		return core.Category{}, err
	}
	c, err := s.repo.CreateCategory(ctx, in.WithDefaults())
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	s.changed(ctx, core.TodoEvent{Type: core.EventCategoryCreated, CategoryID: c.ID})
	return c, nil
}

func (s *CategoryService) List(ctx context.Context) ([]core.Category, error) {
	cats, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

func (s *CategoryService) Get(ctx context.Context, id int64) (core.Category, error) {
	return s.repo.GetCategory(ctx, id)
}

func (s *CategoryService) Update(ctx context.Context, id int64, p core.CategoryPatch) (core.Category, error) {
	if err := p.Validate(); err != nil {
		return core.Category{}, err
	}
	c, err := s.repo.UpdateCategory(ctx, id, p)
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	s.changed(ctx, core.TodoEvent{Type: core.EventCategoryUpdated, CategoryID: id})
	return c, nil
}

func (s *CategoryService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	s.changed(ctx, core.TodoEvent{Type: core.EventCategoryDeleted, CategoryID: id})
	return nil
}

// Stats counts categories and how many of them are attached to a todo.
func (s *CategoryService) Stats(ctx context.Context) (core.CategoryStats, error) {
	stats, err := s.repo.CategoryStats(ctx)
	if err != nil {
		return core.CategoryStats{}, fmt.Errorf("category stats: %w", err)
	}
	return stats, nil
}
