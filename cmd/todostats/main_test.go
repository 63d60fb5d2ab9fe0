package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"taskboard/internal/core"
	"taskboard/internal/storage"
)

func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskboard.db")
	repo, err := storage.NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	due := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if _, err := repo.CreateTodo(ctx, core.TodoInput{Title: "late", DueDate: &due}); err != nil {
		t.Fatalf("CreateTodo: %v", err)
	}
	if _, err := repo.CreateTodo(ctx, core.TodoInput{Title: "done", Completed: true}); err != nil {
		t.Fatalf("CreateTodo: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestReport(t *testing.T) {
	db := seedDB(t)

	out, err := execute(t, "report", "--db", db, "--tz", "UTC", "--now", "2024-06-15T10:00:00Z")
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	var report core.StatsReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("output is not a report: %v\n%s", err, out)
	}
	if report.Total != 2 || report.Completed != 1 || report.Pending != 1 {
		t.Errorf("counts = %+v", report)
	}
	if report.CompletionRate != 50 {
		t.Errorf("CompletionRate = %d, want 50", report.CompletionRate)
	}
	if report.Overdue != 1 || report.DueDateDistribution.Overdue != 1 {
		t.Errorf("Overdue = %d / %d, want 1", report.Overdue, report.DueDateDistribution.Overdue)
	}
}

func TestReport_InvalidFlags(t *testing.T) {
	db := seedDB(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"timezone", []string{"report", "--db", db, "--tz", "Nowhere/Land"}, "invalid --tz"},
		{"instant", []string{"report", "--db", db, "--now", "yesterday"}, "must be RFC3339"},
		{"extra args", []string{"report", "extra"}, "unknown command"},
		{"missing database", []string{"report", "--db", filepath.Join(t.TempDir(), "typo.db")}, "does not exist"},
		{"database is a directory", []string{"report", "--db", t.TempDir()}, "is a directory"},
		{"latest missing database", []string{"latest", "--db", filepath.Join(t.TempDir(), "typo.db")}, "does not exist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestReport_MissingDatabaseIsNotCreated(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "nested", "typo.db")
	if _, err := execute(t, "report", "--db", db); err == nil {
		t.Fatal("report on a missing database should fail")
	}
	if _, err := os.Stat(filepath.Dir(db)); !os.IsNotExist(err) {
		t.Errorf("report created %s, err = %v", filepath.Dir(db), err)
	}
}

func TestLatest(t *testing.T) {
	db := seedDB(t)

	if _, err := execute(t, "latest", "--db", db); err == nil || !strings.Contains(err.Error(), "no stats snapshot") {
		t.Fatalf("latest on empty store error = %v", err)
	}

	repo, err := storage.NewSQLiteRepository(db)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	snap := core.StatsSnapshot{
		GeneratedAt: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC),
		Reason:      "interval",
		Report:      core.StatsReport{Total: 7},
	}
	if _, err := repo.SaveStatsSnapshot(context.Background(), snap); err != nil {
		t.Fatalf("SaveStatsSnapshot: %v", err)
	}
	repo.Close()

	out, err := execute(t, "latest", "--db", db)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	var got core.StatsSnapshot
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not a snapshot: %v\n%s", err, out)
	}
	if got.Reason != "interval" || got.Report.Total != 7 {
		t.Errorf("snapshot = %+v", got)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "todostats "+version) {
		t.Errorf("output = %q", out)
	}
}
