package services

import (
	"context"
	"fmt"

	"taskboard/internal/core"
	"taskboard/internal/ports"
)

// TodoService applies todo writes to the repository, then announces them.
type TodoService struct {
	repo ports.TodoRepository
	notifier
}

// NewTodoService wires the service; events and stats may be nil.
func NewTodoService(repo ports.TodoRepository, events ports.EventPublisher, stats Invalidator) *TodoService {
	return &TodoService{repo: repo, notifier: notifier{events: events, stats: stats}}
}

func (s *TodoService) Create(ctx context.Context, in core.TodoInput) (core.Todo, error) {
	if err := in.Validate(); err != nil {
		return core.Todo{}, err
	}
	todo, err := s.repo.CreateTodo(ctx, in)
	if err != nil {
		return core.Todo{}, fmt.Errorf("create todo: %w", err)
	}
	s.changed(ctx, core.TodoEvent{Type: core.EventTodoCreated, TodoID: todo.ID})
	return todo, nil
}

func (s *TodoService) List(ctx context.Context) ([]core.Todo, error) {
	todos, err := s.repo.ListTodos(ctx)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

func (s *TodoService) Get(ctx context.Context, id int64) (core.Todo, error) {
	return s.repo.GetTodo(ctx, id)
}

func (s *TodoService) Update(ctx context.Context, id int64, p core.TodoPatch) (core.Todo, error) {
	if err := p.Validate(); err != nil {
		return core.Todo{}, err
	}
	todo, err := s.repo.UpdateTodo(ctx, id, p)
	if err != nil {
		return core.Todo{}, fmt.Errorf("update todo: %w", err)
	}
	s.changed(ctx, core.TodoEvent{Type: core.EventTodoUpdated, TodoID: id})
	return todo, nil
}

// Toggle flips the completion flag.
func (s *TodoService) Toggle(ctx context.Context, id int64) (core.Todo, error) {
	todo, err := s.repo.ToggleTodo(ctx, id)
	if err != nil {
		return core.Todo{}, fmt.Errorf("toggle todo: %w", err)
	}
	s.changed(ctx, core.TodoEvent{Type: core.EventTodoToggled, TodoID: id})
	return todo, nil
}

func (s *TodoService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteTodo(ctx, id); err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	s.changed(ctx, core.TodoEvent{Type: core.EventTodoDeleted, TodoID: id})
	return nil
}
