package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskboard/internal/core"
)

func decodeTodoRequest(t *testing.T, body string) todoRequest {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/todos", strings.NewReader(body))
	var req todoRequest
	if err := decodeJSON(httptest.NewRecorder(), r, &req); err != nil {
		t.Fatalf("decodeJSON(%s): %v", body, err)
	}
	return req
}

func TestDecodeJSON_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", "", "request body is empty"},
		{"whitespace", "  \n ", "request body is empty"},
		{"not an object", `"title"`, "request body must be a JSON object"},
		{"truncated", `{"title":"x"`, "invalid JSON body"},
		{"two objects", `{"title":"a"} {"title":"b"}`, "single JSON object"},
		{"type mismatch", `{"completed":"yes"}`, `invalid value for field "completed"`},
		{"too large", `{"title":"` + strings.Repeat("a", maxBodyBytes) + `"}`, "request body too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/todos", strings.NewReader(tt.body))
			var req todoRequest
			err := decodeJSON(httptest.NewRecorder(), r, &req)
			var reqErr *requestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("error = %v, want *requestError", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestTodoRequest_ToInput(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	req := decodeTodoRequest(t, `{"title":" Buy milk\u0007 ","description":"2L","completed":true,"dueDate":"2025-03-10","categoryIds":[3,1]}`)
	in, err := req.toInput(rome)
	if err != nil {
		t.Fatalf("toInput: %v", err)
	}
	if in.Title != "Buy milk" {
		t.Errorf("Title = %q, want control characters stripped and trimmed", in.Title)
	}
	if !in.Completed || in.Description != "2L" {
		t.Errorf("input = %+v", in)
	}
	if in.DueDate == nil || !in.DueDate.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, rome)) {
		t.Errorf("DueDate = %v, want midnight in Rome", in.DueDate)
	}
	if len(in.CategoryIDs) != 2 || in.CategoryIDs[0] != 3 {
		t.Errorf("CategoryIDs = %v", in.CategoryIDs)
	}
}

func TestTodoRequest_ToInputDueDates(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    *time.Time
		wantErr error
	}{
		{"absent", `{"title":"x"}`, nil, nil},
		{"null", `{"title":"x","dueDate":null}`, nil, nil},
		{"empty", `{"title":"x","dueDate":""}`, nil, nil},
		{"rfc3339", `{"title":"x","dueDate":"2025-01-02T15:04:05Z"}`, ptrTime(time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)), nil},
		{"garbage", `{"title":"x","dueDate":"next friday"}`, nil, core.ErrInvalidDueDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := decodeTodoRequest(t, tt.body).toInput(time.UTC)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if (in.DueDate == nil) != (tt.want == nil) {
				t.Fatalf("DueDate = %v, want %v", in.DueDate, tt.want)
			}
			if tt.want != nil && !in.DueDate.Equal(*tt.want) {
				t.Errorf("DueDate = %v, want %v", in.DueDate, tt.want)
			}
		})
	}
}

func TestTodoRequest_ToPatch(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		check func(t *testing.T, p core.TodoPatch)
	}{
		{
			name:  "empty patch touches nothing",
			body:  `{}`,
			check: func(t *testing.T, p core.TodoPatch) {
				if p.Title != nil || p.Description != nil || p.Completed != nil || p.DueDate != nil || p.ClearDueDate || p.CategoryIDs != nil {
					t.Errorf("patch = %+v, want zero", p)
				}
			},
		},
		{
			name:  "null due date clears",
			body:  `{"dueDate":null}`,
			check: func(t *testing.T, p core.TodoPatch) {
				if !p.ClearDueDate || p.DueDate != nil {
					t.Errorf("patch = %+v, want ClearDueDate", p)
				}
			},
		},
		{
			name:  "due date set",
			body:  `{"dueDate":"2025-06-01"}`,
			check: func(t *testing.T, p core.TodoPatch) {
				if p.ClearDueDate || p.DueDate == nil || p.DueDate.Day() != 1 {
					t.Errorf("patch = %+v", p)
				}
			},
		},
		{
			name:  "empty category list replaces with none",
			body:  `{"categoryIds":[]}`,
			check: func(t *testing.T, p core.TodoPatch) {
				if p.CategoryIDs == nil || len(*p.CategoryIDs) != 0 {
					t.Errorf("CategoryIDs = %v, want non-nil empty", p.CategoryIDs)
				}
			},
		},
		{
			name:  "fields are sanitized",
			body:  `{"title":"  Renamed ","completed":false}`,
			check: func(t *testing.T, p core.TodoPatch) {
				if p.Title == nil || *p.Title != "Renamed" {
					t.Errorf("Title = %v", p.Title)
				}
				if p.Completed == nil || *p.Completed {
					t.Errorf("Completed = %v, want explicit false", p.Completed)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := decodeTodoRequest(t, tt.body).toPatch(time.UTC)
			if err != nil {
				t.Fatalf("toPatch: %v", err)
			}
			tt.check(t, p)
		})
	}

	if _, err := decodeTodoRequest(t, `{"dueDate":"31/12/2025"}`).toPatch(time.UTC); !errors.Is(err, core.ErrInvalidDueDate) {
		t.Errorf("invalid due date err = %v", err)
	}
}

func TestCategoryRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/categories", strings.NewReader(`{"name":" Work ","color":" #ABCDEF "}`))
	var req categoryRequest
	if err := decodeJSON(httptest.NewRecorder(), r, &req); err != nil {
		t.Fatalf("decodeJSON: %v", err)
	}

	in := req.toInput()
	if in.Name != "Work" || in.Color != "#ABCDEF" || in.Description != "" {
		t.Errorf("input = %+v", in)
	}

	p := req.toPatch()
	if p.Name == nil || *p.Name != "Work" || p.Color == nil || p.Description != nil {
		t.Errorf("patch = %+v", p)
	}
}

func TestPathID(t *testing.T) {
	tests := []struct {
		value   string
		want    int64
		wantErr bool
	}{
		{"1", 1, false},
		{"9007199254740993", 9007199254740993, false},
		{"0", 0, true},
		{"-4", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/todos/x", nil)
		r.SetPathValue("id", tt.value)
		got, err := pathID(r)
		if (err != nil) != tt.wantErr {
			t.Errorf("pathID(%q) err = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("pathID(%q) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello  ", "hello"},
		{"a\x00b\x1fc", "abc"},
		{"line1\nline2\ttab", "line1\nline2\ttab"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
