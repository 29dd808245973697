package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/sheets"
)

var _ sheets.Mirror = (*Client)(nil)

// Config selects the spreadsheet and credentials. Exactly one of
// ServiceAccountJSON and ServiceAccountFile is needed.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
	// Attempts bounds retries of a single Sheets call.
	Attempts uint
	// Delay is the first backoff step.
	Delay time.Duration
}

// values is the slice of the Sheets values API the mirror needs.
type values interface {
	Get(ctx context.Context, rng string) ([][]any, error)
	Append(ctx context.Context, rng string, rows [][]any) error
	Update(ctx context.Context, rng string, rows [][]any) error
	Clear(ctx context.Context, rng string) error
}

// Client mirrors expenses into one sheet of a spreadsheet.
type Client struct {
	values   values
	sheet    string
	attempts uint
	delay    time.Duration
	logger   *log.Logger
}

// New builds a Sheets service from service account credentials.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return newClient(&serviceValues{svc: svc, spreadsheetID: cfg.SpreadsheetID}, cfg, logger), nil
}

func newClient(v values, cfg Config, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.NewDefault()
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Expenses"
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 5
	}
	if cfg.Delay <= 0 {
		cfg.Delay = time.Second
	}
	return &Client{
		values:   v,
		sheet:    cfg.SheetName,
		attempts: cfg.Attempts,
		delay:    cfg.Delay,
		logger:   logger.WithComponent(log.ComponentSheets),
	}
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		return []byte(cfg.ServiceAccountJSON), nil
	case strings.TrimSpace(cfg.ServiceAccountFile) != "":
		b, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// EnsureHeader writes the header row when the sheet is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	var rows [][]any
	err := c.do(ctx, "read header", func() error {
		var err error
		rows, err = c.values.Get(ctx, c.a1("A1:"+sheets.LastColumn+"1"))
		return err
	})
	if err != nil {
		return err
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		return nil
	}
	return c.do(ctx, "write header", func() error {
		return c.values.Update(ctx, c.a1("A1:"+sheets.LastColumn+"1"), [][]any{sheets.Header})
	})
}

// UpsertExpense rewrites the row holding e.ID or appends a new one.
func (c *Client) UpsertExpense(ctx context.Context, e core.Expense) error {
	n, err := c.findRow(ctx, e.ID)
	if err != nil {
		return err
	}
	row := [][]any{sheets.ToRow(e)}

	if n == 0 {
		err = c.do(ctx, "append row", func() error {
			return c.values.Append(ctx, c.a1("A:"+sheets.LastColumn), row)
		})
	} else {
		rng := c.a1(fmt.Sprintf("A%d:%s%d", n, sheets.LastColumn, n))
		err = c.do(ctx, "update row", func() error {
			return c.values.Update(ctx, rng, row)
		})
	}
	if err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "Mirrored expense",
		log.FieldExpenseID, e.ID,
		log.FieldUserID, e.UserID,
		log.FieldAmountCents, e.Amount.Cents,
		"row", n)
	return nil
}

// DeleteExpense blanks the row holding id.
func (c *Client) DeleteExpense(ctx context.Context, id string) error {
	n, err := c.findRow(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		c.logger.DebugContext(ctx, "No mirrored row to delete", log.FieldExpenseID, id)
		return nil
	}

	rng := c.a1(fmt.Sprintf("A%d:%s%d", n, sheets.LastColumn, n))
	if err := c.do(ctx, "clear row", func() error { return c.values.Clear(ctx, rng) }); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Removed mirrored expense", log.FieldExpenseID, id, "row", n)
	return nil
}

// findRow returns the 1-based row number whose first cell is id, or 0.
func (c *Client) findRow(ctx context.Context, id string) (int, error) {
	var rows [][]any
	err := c.do(ctx, "read ids", func() error {
		var err error
		rows, err = c.values.Get(ctx, c.a1("A:A"))
		return err
	})
	if err != nil {
		return 0, err
	}
	for i, row := range rows {
		if len(row) > 0 && strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1, nil
		}
	}
	return 0, nil
}

// do runs one Sheets call, retrying transient failures with backoff.
func (c *Client) do(ctx context.Context, what string, fn func() error) error {
	err := retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.MaxDelay(time.Minute),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(transient),
		retry.OnRetry(func(n uint, err error) {
			c.logger.WarnContext(ctx, "Sheets call failed, retrying",
				"call", what,
				log.FieldAttempt, n+1,
				log.FieldError, err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("sheets %s: %w", what, err)
	}
	return nil
}

// transient reports whether err is worth retrying: rate limiting, server
// errors and network failures.
func transient(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}

// a1 prefixes rng with the quoted sheet name.
func (c *Client) a1(rng string) string {
	return "'" + strings.ReplaceAll(c.sheet, "'", "''") + "'!" + rng
}

// valueInputOption stores cells exactly as ToRow renders them. Sheets never
// interprets user text as a formula, number or date.
const valueInputOption = "RAW"

type serviceValues struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (s *serviceValues) Get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s *serviceValues) Append(ctx context.Context, rng string, rows [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption(valueInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func (s *serviceValues) Update(ctx context.Context, rng string, rows [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption(valueInputOption).
		Context(ctx).
		Do()
	return err
}

func (s *serviceValues) Clear(ctx context.Context, rng string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).
		Do()
	return err
}
