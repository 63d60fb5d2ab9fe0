package http

import (
	"net/http"

	"taskboard/internal/core"
	"taskboard/internal/log"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.categories.List(r.Context())
	if err != nil {
		s.fail(w, r, err, log.ComponentCategory, log.OpList)
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	NewJSONResponse().Body(cats).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err, log.ComponentCategory, log.OpCreate)
		return
	}
	cat, err := s.categories.Create(r.Context(), req.toInput())
	if err != nil {
		s.fail(w, r, err, log.ComponentCategory, log.OpCreate)
		return
	}
	s.logger.InfoContext(r.Context(), "Category created",
		log.NewFields().WithComponent(log.ComponentCategory).WithOperation(log.OpCreate).WithCategory(cat.ID).ToSlice()...)
	NewJSONResponse().Status(http.StatusCreated).Body(cat).Write(w)
}

func (s *Server) handleCategoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.categories.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err, log.ComponentCategory, log.OpAggregate)
		return
	}
	NewJSONResponse().Body(stats).Write(w)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err, log.ComponentCategory, log.OpRead)
		return
	}
	cat, err := s.categories.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, log.ComponentCategory, log.OpRead)
		return
	}
	NewJSONResponse().Body(cat).Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err, log.ComponentCategory, log.OpUpdate)
		return
	}
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err, log.ComponentCategory, log.OpUpdate)
		return
	}
	cat, err := s.categories.Update(r.Context(), id, req.toPatch())
	if err != nil {
		s.fail(w, r, err, log.ComponentCategory, log.OpUpdate)
		return
	}
	NewJSONResponse().Body(cat).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err, log.ComponentCategory, log.OpDelete)
		return
	}
	if err := s.categories.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err, log.ComponentCategory, log.OpDelete)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
