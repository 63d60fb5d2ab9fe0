// Package core provides the todo domain model and the statistics aggregation.
//
// This file contains Aggregate, which turns a snapshot of todos into a
// StatsReport. It is pure: no I/O, no shared state, and the input is never
// modified, so concurrent callers need no locking.
package core

import "time"

const (
	// UncategorizedLabel names the bucket for todos without categories.
	UncategorizedLabel = "Uncategorized"
	// UncategorizedColor is the neutral color of the uncategorized bucket.
	UncategorizedColor = "#6c757d"
	// DistributionColor is used for every real category bucket; the stored
	// category color is not consulted.
	DistributionColor = DefaultCategoryColor
)

type (
	// TodoSnapshot is the read-only view of a todo used by Aggregate.
	TodoSnapshot struct {
		ID            int64
		Completed     bool
		DueAt         *time.Time
		CategoryNames []string
	}

	// CategoryBucket counts the todos tagged with one category name.
	CategoryBucket struct {
		CategoryName string `json:"categoryName"`
		Count        int    `json:"count"`
		Color        string `json:"color"`
	}

	// DueDateDistribution counts incomplete todos with a due date by horizon.
	DueDateDistribution struct {
		Today     int `json:"today"`
		ThisWeek  int `json:"thisWeek"`
		ThisMonth int `json:"thisMonth"`
		Future    int `json:"future"`
		Overdue   int `json:"overdue"`
	}

	// StatsReport is the result of Aggregate, serialized as-is.
	StatsReport struct {
		Total                int                 `json:"total"`
		Completed            int                 `json:"completed"`
		Pending              int                 `json:"pending"`
		Overdue              int                 `json:"overdue"`
		CompletionRate       int                 `json:"completionRate"`
		CategoryDistribution []CategoryBucket    `json:"categoryDistribution"`
		DueDateDistribution  DueDateDistribution `json:"dueDateDistribution"`
	}
)

// Sum returns the number of todos classified across all due-date buckets.
func (d DueDateDistribution) Sum() int {
	return d.Today + d.ThisWeek + d.ThisMonth + d.Future + d.Overdue
}

// Aggregate computes the statistics report for todos as seen at now.
//
// Calendar boundaries (start of day, end of month) are taken in now's
// location, so callers decide the timezone by converting now before the call.
//
// Due-date classification for incomplete todos with a due date, first match wins:
//
//	dueAt <  now          -> overdue
//	dueAt <= today        -> today
//	dueAt <= thisWeekEnd  -> thisWeek   (today + 7 days, sliding window)
//	dueAt <= thisMonthEnd -> thisMonth  (midnight of the month's last day)
//	otherwise             -> future
//
// Because today is midnight and therefore never after now, the today bucket
// only receives a todo due exactly at now when now is midnight.
func Aggregate(todos []TodoSnapshot, now time.Time) StatsReport {
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	thisWeekEnd := today.Add(7 * 24 * time.Hour)
	thisMonthEnd := time.Date(today.Year(), today.Month()+1, 0, 0, 0, 0, 0, loc)

	report := StatsReport{
		Total:                len(todos),
		CategoryDistribution: []CategoryBucket{},
	}

	index := make(map[string]int)
	bump := func(name string) {
		if i, ok := index[name]; ok {
			report.CategoryDistribution[i].Count++
			return
		}
		index[name] = len(report.CategoryDistribution)
		report.CategoryDistribution = append(report.CategoryDistribution, CategoryBucket{
			CategoryName: name,
			Count:        1,
			Color:        bucketColor(name),
		})
	}

	for _, t := range todos {
		if t.Completed {
			report.Completed++
		}

		if len(t.CategoryNames) == 0 {
			bump(UncategorizedLabel)
		}
		for _, name := range t.CategoryNames {
			bump(name)
		}

		if t.Completed || t.DueAt == nil {
			continue
		}
		due := *t.DueAt
		switch {
		case due.Before(now):
			report.Overdue++
			report.DueDateDistribution.Overdue++
		case !due.After(today):
			report.DueDateDistribution.Today++
		case !due.After(thisWeekEnd):
			report.DueDateDistribution.ThisWeek++
		case !due.After(thisMonthEnd):
			report.DueDateDistribution.ThisMonth++
		default:
			report.DueDateDistribution.Future++
		}
	}

	report.Pending = report.Total - report.Completed
	report.CompletionRate = completionRate(report.Completed, report.Total)
	return report
}

// bucketColor keys the color on the bucket name, so a real category that
// happens to be called UncategorizedLabel shares the neutral color.
func bucketColor(name string) string {
	if name == UncategorizedLabel {
		return UncategorizedColor
	}
	return DistributionColor
}

// completionRate returns round-half-up(100*completed/total), or 0 for an empty set.
func completionRate(completed, total int) int {
	if total == 0 {
		return 0
	}
	return (200*completed + total) / (2 * total)
}
