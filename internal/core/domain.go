package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultCategoryColor is assigned to categories created without a color.
	DefaultCategoryColor = "#007bff"

	MaxTitleLength               = 255
	MaxCategoryNameLength        = 100
	MaxCategoryDescriptionLength = 255
)

type (
	Category struct {
		ID          int64     `json:"id"`
		Name        string    `json:"name"`
		Description string    `json:"description"`
		Color       string    `json:"color"`
		TodoCount   int       `json:"todoCount"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	Todo struct {
		ID          int64      `json:"id"`
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Completed   bool       `json:"completed"`
		DueDate     *time.Time `json:"dueDate"`
		Categories  []Category `json:"categories"`
		CreatedAt   time.Time  `json:"createdAt"`
		UpdatedAt   time.Time  `json:"updatedAt"`
	}

	// TodoInput carries the fields accepted when creating a todo.
	TodoInput struct {
		Title       string
		Description string
		Completed   bool
		DueDate     *time.Time
		CategoryIDs []int64
	}

	// TodoPatch is a partial update. Nil fields are left untouched; ClearDueDate
	// removes the due date, and a non-nil CategoryIDs replaces the associations.
	TodoPatch struct {
		Title        *string
		Description  *string
		Completed    *bool
		DueDate      *time.Time
		ClearDueDate bool
		CategoryIDs  *[]int64
	}

	CategoryInput struct {
		Name        string
		Description string
		Color       string
	}

	CategoryPatch struct {
		Name        *string
		Description *string
		Color       *string
	}

	// StatsSnapshot is a persisted report with the instant it was computed at
	// and the event that caused the computation.
	StatsSnapshot struct {
		ID          int64       `json:"id"`
		GeneratedAt time.Time   `json:"generatedAt"`
		Reason      string      `json:"reason"`
		Report      StatsReport `json:"report"`
	}

	// CategoryStats summarises category usage.
	CategoryStats struct {
		TotalCategories     int `json:"totalCategories"`
		CategoriesWithTodos int `json:"categoriesWithTodos"`
	}
)

var (
	ErrEmptyTitle          = errors.New("empty title")
	ErrTitleTooLong        = errors.New("title too long (max 255 characters)")
	ErrEmptyCategoryName   = errors.New("empty category name")
	ErrCategoryNameTooLong = errors.New("category name too long (max 100 characters)")
	ErrDescriptionTooLong  = errors.New("description too long (max 255 characters)")
	ErrInvalidColor        = errors.New("color must be a valid hex color")
	ErrNotFound            = errors.New("not found")
	ErrCategoryConflict    = errors.New("category name already exists")
)

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}
	if len(title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	return nil
}

func (in TodoInput) Validate() error {
	return validateTitle(in.Title)
}

func (p TodoPatch) Validate() error {
	if p.Title != nil {
		return validateTitle(*p.Title)
	}
	return nil
}

func validateCategoryName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyCategoryName
	}
	if len(name) > MaxCategoryNameLength {
		return ErrCategoryNameTooLong
	}
	return nil
}

func validateColor(color string) error {
	if !hexColor.MatchString(color) {
		return ErrInvalidColor
	}
	return nil
}

// Validate checks the input; an empty color is accepted and later defaulted.
func (in CategoryInput) Validate() error {
	if err := validateCategoryName(in.Name); err != nil {
		return err
	}
	if len(in.Description) > MaxCategoryDescriptionLength {
		return ErrDescriptionTooLong
	}
	if in.Color != "" {
		return validateColor(in.Color)
	}
	return nil
}

// WithDefaults returns a copy with the default color filled in.
func (in CategoryInput) WithDefaults() CategoryInput {
	if in.Color == "" {
		in.Color = DefaultCategoryColor
	}
	return in
}

func (p CategoryPatch) Validate() error {
	if p.Name != nil {
		if err := validateCategoryName(*p.Name); err != nil {
			return err
		}
	}
	if p.Description != nil && len(*p.Description) > MaxCategoryDescriptionLength {
		return ErrDescriptionTooLong
	}
	if p.Color != nil {
		return validateColor(*p.Color)
	}
	return nil
}

// Snapshot projects the todo onto the read-only shape the aggregator consumes.
func (t Todo) Snapshot() TodoSnapshot {
	names := make([]string, 0, len(t.Categories))
	for _, c := range t.Categories {
		names = append(names, c.Name)
	}
	var due *time.Time
	if t.DueDate != nil {
		d := *t.DueDate
		due = &d
	}
	return TodoSnapshot{
		ID:            t.ID,
		Completed:     t.Completed,
		DueAt:         due,
		CategoryNames: names,
	}
}
