// Package http provides HTTP server and handler implementations.
//
// This file decodes JSON request bodies into the domain inputs and patches,
// and extracts path parameters.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"taskboard/internal/core"
)

// maxBodyBytes caps request bodies; todos and categories are tiny.
const maxBodyBytes = 1 << 20

// requestError is a malformed request, reported as 400.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// decodeJSON reads a single JSON object from the body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest("request body too large")
		}
		return badRequest("failed to read request body")
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return badRequest("request body is empty")
	}
	if body[0] != '{' {
		return badRequest("request body must be a JSON object")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return badRequest("invalid value for field %q", typeErr.Field)
		}
		return badRequest("invalid JSON body")
	}
	if dec.More() {
		return badRequest("request body must contain a single JSON object")
	}
	return nil
}

// optionalString distinguishes a missing field from an explicit null.
type optionalString struct {
	Set   bool
	Null  bool
	Value string
}

func (o *optionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Null = true
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

type todoRequest struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Completed   *bool          `json:"completed"`
	DueDate     optionalString `json:"dueDate"`
	CategoryIDs *[]int64       `json:"categoryIds"`
}

func (req todoRequest) dueDate(loc *time.Location) (*time.Time, error) {
	if !req.DueDate.Set || req.DueDate.Null || strings.TrimSpace(req.DueDate.Value) == "" {
		return nil, nil
	}
	due, err := core.ParseDueDate(req.DueDate.Value, loc)
	if err != nil {
		return nil, err
	}
	return &due, nil
}

// toInput builds a create request. Bare dates resolve in loc.
func (req todoRequest) toInput(loc *time.Location) (core.TodoInput, error) {
	var in core.TodoInput
	if req.Title != nil {
		in.Title = sanitizeInput(*req.Title)
	}
	if req.Description != nil {
		in.Description = sanitizeInput(*req.Description)
	}
	if req.Completed != nil {
		in.Completed = *req.Completed
	}
	if req.CategoryIDs != nil {
		in.CategoryIDs = *req.CategoryIDs
	}
	due, err := req.dueDate(loc)
	if err != nil {
		return core.TodoInput{}, err
	}
	in.DueDate = due
	return in, nil
}

// toPatch builds a partial update. "dueDate": null (or "") clears the due
// date; a missing dueDate leaves it untouched.
func (req todoRequest) toPatch(loc *time.Location) (core.TodoPatch, error) {
	var p core.TodoPatch
	if req.Title != nil {
		title := sanitizeInput(*req.Title)
		p.Title = &title
	}
	if req.Description != nil {
		desc := sanitizeInput(*req.Description)
		p.Description = &desc
	}
	p.Completed = req.Completed
	p.CategoryIDs = req.CategoryIDs

	if req.DueDate.Set {
		due, err := req.dueDate(loc)
		if err != nil {
			return core.TodoPatch{}, err
		}
		if due == nil {
			p.ClearDueDate = true
		} else {
			p.DueDate = due
		}
	}
	return p, nil
}

type categoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
}

func (req categoryRequest) toInput() core.CategoryInput {
	var in core.CategoryInput
	if req.Name != nil {
		in.Name = sanitizeInput(*req.Name)
	}
	if req.Description != nil {
		in.Description = sanitizeInput(*req.Description)
	}
	if req.Color != nil {
		in.Color = strings.TrimSpace(*req.Color)
	}
	return in
}

func (req categoryRequest) toPatch() core.CategoryPatch {
	var p core.CategoryPatch
	if req.Name != nil {
		name := sanitizeInput(*req.Name)
		p.Name = &name
	}
	if req.Description != nil {
		desc := sanitizeInput(*req.Description)
		p.Description = &desc
	}
	if req.Color != nil {
		color := strings.TrimSpace(*req.Color)
		p.Color = &color
	}
	return p
}

// pathID parses the {id} path value as a positive integer.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid id %q", raw)
	}
	return id, nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims surrounding whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
