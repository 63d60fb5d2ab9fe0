package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"taskboard/internal/core"
	"taskboard/internal/ports"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config selects the spreadsheet and the credentials used to reach it.
type Config struct {
	SpreadsheetID string
	// StatsSheet is overwritten with the latest report on every export.
	StatsSheet string
	// HistoryBase names the yearly history tab; the year is prefixed.
	HistoryBase     string
	CredentialsJSON string
	CredentialsFile string

	// OAuth user credentials, used when no service account is configured.
	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenJSON  string
	OAuthTokenFile  string
}

// Client exports statistics snapshots to Google Sheets.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	statsSheet    string
	historyBase   string
}

var _ ports.StatsExporter = (*Client)(nil)

func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	statsSheet := strings.TrimSpace(cfg.StatsSheet)
	if statsSheet == "" {
		statsSheet = "Stats"
	}
	historyBase := strings.TrimSpace(cfg.HistoryBase)
	if historyBase == "" {
		historyBase = "History"
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		statsSheet:    statsSheet,
		historyBase:   historyBase,
	}, nil
}

// newSheetsService initializes a Sheets Service. A service account (inline
// JSON, then file) wins over an OAuth user token; GOOGLE_APPLICATION_CREDENTIALS
// is the last resort.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.CredentialsJSON)
	serviceAccountFile := strings.TrimSpace(cfg.CredentialsFile)
	hasOAuthClient := strings.TrimSpace(cfg.OAuthClientJSON) != "" || strings.TrimSpace(cfg.OAuthClientFile) != ""

	if serviceAccountJSON == "" && serviceAccountFile == "" && hasOAuthClient {
		ts, err := oauthTokenSource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		slog.DebugContext(ctx, "Using OAuth user credentials")
		return createService(ctx, goption.WithTokenSource(ts))
	}

	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var creds []byte
	switch {
	case serviceAccountJSON != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		creds = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.DebugContext(ctx, "Reading service account credentials", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		creds = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	return createService(ctx, goption.WithCredentialsJSON(creds))
}

func createService(ctx context.Context, creds goption.ClientOption) (*gsheet.Service, error) {
	service, err := gsheet.NewService(ctx, creds, goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// oauthTokenSource builds a refreshing token source from an OAuth client
// and a token previously saved by sheets-auth.
func oauthTokenSource(ctx context.Context, cfg Config) (oauth2.TokenSource, error) {
	clientJSON, err := readSecret(cfg.OAuthClientJSON, cfg.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client: %w", err)
	}
	tokenJSON, err := readSecret(cfg.OAuthTokenJSON, cfg.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token: %w", err)
	}
	if tokenJSON == nil {
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
	}

	oauthCfg, err := OAuthConfig(clientJSON)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}
	return oauthCfg.TokenSource(ctx, &tok), nil
}

// OAuthConfig parses an OAuth client definition scoped to Sheets.
func OAuthConfig(clientJSON []byte) (*oauth2.Config, error) {
	cfg, err := googleoauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return cfg, nil
}

// SaveToken writes tok as JSON, readable only by the owner.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// readSecret prefers the inline value; nil means neither was set.
func readSecret(inline, path string) ([]byte, error) {
	if v := strings.TrimSpace(inline); v != "" {
		return []byte(v), nil
	}
	if p := strings.TrimSpace(path); p != "" {
		return os.ReadFile(p)
	}
	return nil, nil
}

// ExportStats replaces the stats tab with the report and appends a summary
// row to the history tab of the snapshot's year.
func (c *Client) ExportStats(ctx context.Context, snap core.StatsSnapshot) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	clearRange := fmt.Sprintf("%s!A:C", c.statsSheet)
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	rows := buildStatsRows(snap)
	writeRange := fmt.Sprintf("%s!A1:C%d", c.statsSheet, len(rows))
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRange, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", writeRange, err)
	}

	historySheet := yearPrefixedName(c.historyBase, snap.GeneratedAt.Year())
	historyRange := fmt.Sprintf("%s!A:K", historySheet)
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, historyRange,
		&gsheet.ValueRange{Values: [][]interface{}{buildHistoryRow(snap)}}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append %s: %w", historyRange, err)
	}

	slog.InfoContext(ctx, "Exported stats to Google Sheets",
		"sheet", c.statsSheet,
		"history", historySheet,
		"rows", len(rows),
		"total", snap.Report.Total)
	return nil
}

// buildStatsRows lays the report out as three blocks: headline numbers,
// due-date buckets and category distribution, separated by empty rows.
func buildStatsRows(snap core.StatsSnapshot) [][]interface{} {
	r := snap.Report
	d := r.DueDateDistribution
	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Generated at", formatTimestamp(snap.GeneratedAt)},
		{"Reason", snap.Reason},
		{"Total", r.Total},
		{"Completed", r.Completed},
		{"Pending", r.Pending},
		{"Overdue", r.Overdue},
		{"Completion rate (%)", r.CompletionRate},
		{},
		{"Due date", "Count"},
		{"Today", d.Today},
		{"This week", d.ThisWeek},
		{"This month", d.ThisMonth},
		{"Future", d.Future},
		{"Overdue", d.Overdue},
		{},
		{"Category", "Count", "Color"},
	}
	for _, b := range r.CategoryDistribution {
		rows = append(rows, []interface{}{b.CategoryName, b.Count, b.Color})
	}
	return rows
}

// buildHistoryRow columns: generated at, reason, total, completed, pending,
// overdue, completion rate, today, this week, this month, future.
func buildHistoryRow(snap core.StatsSnapshot) []interface{} {
	r := snap.Report
	d := r.DueDateDistribution
	return []interface{}{
		formatTimestamp(snap.GeneratedAt),
		snap.Reason,
		r.Total,
		r.Completed,
		r.Pending,
		r.Overdue,
		r.CompletionRate,
		d.Today,
		d.ThisWeek,
		d.ThisMonth,
		d.Future,
	}
}

// formatTimestamp uses a layout Sheets parses as a date-time under USER_ENTERED.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
