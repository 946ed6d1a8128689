package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"budgets/internal/cache"
	"budgets/internal/core"
	ports "budgets/internal/sheets"

	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	// lastColumn is the column of the final Header cell.
	lastColumn       = "L"
	valueInputOption = "USER_ENTERED"
	indexCacheTTL    = 5 * time.Minute
)

// Config selects the spreadsheet and the credentials used to reach it.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountFile string
	ServiceAccountJSON string
}

// valuesAPI is the slice of the Sheets values API the client uses.
type valuesAPI interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	BatchUpdate(ctx context.Context, spreadsheetID string, data []*gsheet.ValueRange) error
}

// Client keeps one summary row per budget in a single sheet.
type Client struct {
	api           valuesAPI
	spreadsheetID string
	sheetName     string
	now           func() time.Time

	// index caches the sheet's id column between upserts.
	index *cache.LRUCache[rowIndex]
}

var _ ports.SummaryWriter = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(cfg.SheetName) == "" {
		return nil, errors.New("missing sheet name")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(serviceValues{svc: svc}, cfg), nil
}

func newClient(api valuesAPI, cfg Config) *Client {
	return &Client{
		api:           api,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		sheetName:     strings.TrimSpace(cfg.SheetName),
		now:           time.Now,
		index:         cache.NewLRUCache[rowIndex](1, indexCacheTTL),
	}
}

// IndexCache exposes the row index cache so callers can register it for
// periodic cleanup.
func (c *Client) IndexCache() cache.Cleaner { return c.index }

// newSheetsService builds a Sheets service from inline JSON or a key file.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		credentialsJSON = []byte(cfg.ServiceAccountJSON)
	case strings.TrimSpace(cfg.ServiceAccountFile) != "":
		data, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	slog.DebugContext(ctx, "Creating Google Sheets service",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	creds, err := googleoauth.CredentialsFromJSON(ctx, credentialsJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}

	service, err := gsheet.NewService(ctx, goption.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// UpsertBudgetSummaries rewrites the rows of the user's budgets in place,
// appends rows for budgets seen for the first time and blanks rows of
// budgets the user no longer owns.
func (c *Client) UpsertBudgetSummaries(ctx context.Context, user *core.User, summaries []core.BudgetSummary) error {
	if c.api == nil {
		return errors.New("sheets service not initialized")
	}
	if user == nil {
		return errors.New("user is required")
	}

	idx, err := c.loadIndex(ctx)
	if err != nil {
		return err
	}

	now := c.now()
	var data []*gsheet.ValueRange
	if idx.empty() {
		data = append(data, c.rowRange(1, ports.HeaderValues()))
		idx.next = 2
	}

	keep := make(map[string]struct{}, len(summaries))
	for _, s := range summaries {
		keep[s.BudgetID] = struct{}{}
		row, ok := idx.rows[s.BudgetID]
		if !ok {
			row = idx.next
			idx.next++
			idx.rows[s.BudgetID] = row
			idx.owners[s.BudgetID] = user.ID
		}
		data = append(data, c.rowRange(row, ports.NewRow(user, s, now).Values()))
	}

	for budgetID, owner := range idx.owners {
		if owner != user.ID {
			continue
		}
		if _, ok := keep[budgetID]; ok {
			continue
		}
		data = append(data, c.rowRange(idx.rows[budgetID], blankRow()))
		delete(idx.rows, budgetID)
		delete(idx.owners, budgetID)
	}

	if len(data) == 0 {
		return nil
	}
	if err := c.api.BatchUpdate(ctx, c.spreadsheetID, data); err != nil {
		c.index.Delete(c.sheetName)
		return fmt.Errorf("update %s: %w", c.sheetName, err)
	}
	c.index.Set(c.sheetName, idx)

	slog.DebugContext(ctx, "Budget summaries exported",
		"user_id", user.ID,
		"sheet", c.sheetName,
		"ranges", len(data))
	return nil
}

func (c *Client) loadIndex(ctx context.Context) (rowIndex, error) {
	if idx, ok := c.index.Get(c.sheetName); ok {
		return idx.clone(), nil
	}
	rng := fmt.Sprintf("%s!A:B", c.sheetName)
	values, err := c.api.Get(ctx, c.spreadsheetID, rng)
	if err != nil {
		return rowIndex{}, fmt.Errorf("read %s: %w", rng, err)
	}
	idx := parseRowIndex(values)
	c.index.Set(c.sheetName, idx)
	return idx.clone(), nil
}

func (c *Client) rowRange(row int, values []any) *gsheet.ValueRange {
	return &gsheet.ValueRange{
		Range:  fmt.Sprintf("%s!A%d:%s%d", c.sheetName, row, lastColumn, row),
		Values: [][]any{values},
	}
}

func blankRow() []any {
	out := make([]any, len(ports.Header))
	for i := range out {
		out[i] = ""
	}
	return out
}

// serviceValues adapts the generated Sheets service to valuesAPI.
type serviceValues struct {
	svc *gsheet.Service
}

func (s serviceValues) Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s serviceValues) BatchUpdate(ctx context.Context, spreadsheetID string, data []*gsheet.ValueRange) error {
	req := &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: valueInputOption,
		Data:             data,
	}
	_, err := s.svc.Spreadsheets.Values.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	return err
}
