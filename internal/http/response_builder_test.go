package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"taskboard/internal/core"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/todos/1").
		Body(map[string]int{"id": 1}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := w.Header().Get("Location"); got != "/todos/1" {
		t.Errorf("Location = %q", got)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"id":1}` {
		t.Errorf("Body = %q", got)
	}
}

func TestJSONResponseBuilder_NoBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)

	if w.Code != http.StatusNoContent {
		t.Errorf("Status code = %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("Body = %q, want empty", w.Body.String())
	}
	if w.Header().Get("Content-Type") != "" {
		t.Error("Content-Type should not be set without a body")
	}
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Body(map[string]any{"bad": make(chan int)}).Write(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		builder    *JSONResponseBuilder
		wantStatus int
		wantBody   string
	}{
		{"bad request", BadRequestError("Invalid input"), http.StatusBadRequest, `{"error":"Invalid input"}`},
		{"unprocessable entity", UnprocessableEntityError("Validation failed"), http.StatusUnprocessableEntity, `{"error":"Validation failed"}`},
		{"not found", NotFoundError("not found"), http.StatusNotFound, `{"error":"not found"}`},
		{"conflict", ConflictError("taken"), http.StatusConflict, `{"error":"taken"}`},
		{"internal server error", InternalServerError("Something broke"), http.StatusInternalServerError, `{"error":"Something broke"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := strings.TrimSpace(w.Body.String()); got != tt.wantBody {
				t.Errorf("Body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestErrorResponse_EscapesHTML(t *testing.T) {
	w := httptest.NewRecorder()
	BadRequestError("<script>alert('xss')</script>").Write(w)

	if strings.Contains(w.Body.String(), "<script>") {
		t.Errorf("error body must not contain raw markup: %s", w.Body.String())
	}
}

func TestErrorResponseFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"request error", badRequest("invalid JSON body"), http.StatusBadRequest},
		{"wrapped not found", fmt.Errorf("get todo: %w", core.ErrNotFound), http.StatusNotFound},
		{"conflict", fmt.Errorf("create category: %w", core.ErrCategoryConflict), http.StatusConflict},
		{"empty title", core.ErrEmptyTitle, http.StatusUnprocessableEntity},
		{"title too long", core.ErrTitleTooLong, http.StatusUnprocessableEntity},
		{"category name", core.ErrEmptyCategoryName, http.StatusUnprocessableEntity},
		{"category name too long", core.ErrCategoryNameTooLong, http.StatusUnprocessableEntity},
		{"description", core.ErrDescriptionTooLong, http.StatusUnprocessableEntity},
		{"color", core.ErrInvalidColor, http.StatusUnprocessableEntity},
		{"due date", core.ErrInvalidDueDate, http.StatusUnprocessableEntity},
		{"unknown", errors.New("sql: connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := errorResponseFor(tt.err)
			if resp.statusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.statusCode, tt.want)
			}
		})
	}
}
