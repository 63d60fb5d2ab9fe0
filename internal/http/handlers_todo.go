package http

import (
	"net/http"

	"taskboard/internal/core"
	"taskboard/internal/log"
)

func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request) {
	todos, err := s.todos.List(r.Context())
	if err != nil {
		s.fail(w, r, err, log.ComponentTodo, log.OpList)
		return
	}
	if todos == nil {
		todos = []core.Todo{}
	}
	NewJSONResponse().Body(todos).Write(w)
}

func (s *Server) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	var req todoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err, log.ComponentTodo, log.OpCreate)
		return
	}
	in, err := req.toInput(s.location)
	if err != nil {
		s.fail(w, r, err, log.ComponentTodo, log.OpCreate)
		return
	}

	todo, err := s.todos.Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, err, log.ComponentTodo, log.OpCreate)
		return
	}

	s.logger.InfoContext(r.Context(), "Todo created",
		log.NewFields().WithComponent(log.ComponentTodo).WithOperation(log.OpCreate).WithTodo(todo.ID).ToSlice()...)
	NewJSONResponse().Status(http.StatusCreated).Body(todo).Write(w)
}

func (s *Server) handleGetTodo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err, log.ComponentTodo, log.OpRead)
		return
	}
	todo, err := s.todos.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, log.ComponentTodo, log.OpRead)
		return
	}
	NewJSONResponse().Body(todo).Write(w)
}

func (s *Server) handleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err, log.ComponentTodo, log.OpUpdate)
		return
	}
	var req todoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err, log.ComponentTodo, log.OpUpdate)
		return
	}
	patch, err := req.toPatch(s.location)
	if err != nil {
		s.fail(w, r, err, log.ComponentTodo, log.OpUpdate)
		return
	}

	todo, err := s.todos.Update(r.Context(), id, patch)
	if err != nil {
		s.fail(w, r, err, log.ComponentTodo, log.OpUpdate)
		return
	}
	NewJSONResponse().Body(todo).Write(w)
}

func (s *Server) handleToggleTodo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err, log.ComponentTodo, log.OpToggle)
		return
	}
	todo, err := s.todos.Toggle(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, log.ComponentTodo, log.OpToggle)
		return
	}
	NewJSONResponse().Body(todo).Write(w)
}

func (s *Server) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err, log.ComponentTodo, log.OpDelete)
		return
	}
	if err := s.todos.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err, log.ComponentTodo, log.OpDelete)
		return
	}
	s.logger.InfoContext(r.Context(), "Todo deleted",
		log.NewFields().WithComponent(log.ComponentTodo).WithOperation(log.OpDelete).WithTodo(id).ToSlice()...)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
