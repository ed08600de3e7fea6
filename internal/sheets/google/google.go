// Package google exports transactions to a Google Sheets tab through a
// service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	gsheet "google.golang.org/api/sheets/v4"

	"pocketbook/internal/config"
	"pocketbook/internal/core"
	"pocketbook/internal/log"
	ports "pocketbook/internal/sheets"
)

var _ ports.TransactionExporter = (*Client)(nil)

// valuesAPI is the slice of the Sheets values service the exporter uses.
type valuesAPI interface {
	Clear(ctx context.Context, spreadsheetID, rng string) error
	Update(ctx context.Context, spreadsheetID, rng string, values [][]interface{}) error
}

type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string

	// OAuth user credentials, used instead of the service account when
	// OAuthTokenFile is set
	OAuthClientFile string
	OAuthClientJSON string
	OAuthTokenFile  string

	Location *time.Location
}

// FromAppConfig maps the sheets section of the application config.
func FromAppConfig(sc config.SheetsConfig, loc *time.Location) Config {
	return Config{
		SpreadsheetID:   sc.SpreadsheetID,
		SheetName:       sc.SheetName,
		CredentialsFile: sc.CredentialsFile,
		CredentialsJSON: sc.CredentialsJSON,
		OAuthClientFile: sc.OAuthClientFile,
		OAuthClientJSON: sc.OAuthClientJSON,
		OAuthTokenFile:  sc.OAuthTokenFile,
		Location:        loc,
	}
}

type Client struct {
	values        valuesAPI
	spreadsheetID string
	sheetName     string
	loc           *time.Location
	logger        *slog.Logger
}

// New authenticates with the OAuth token or service account in cfg.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	opts, err := clientOptions(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return newClient(&serviceValues{svc: svc}, cfg, logger), nil
}

func newClient(values valuesAPI, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = "Transactions"
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		values:        values,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheet,
		loc:           loc,
		logger:        logger.With(log.FieldComponent, log.ComponentSheets),
	}
}

func loadCredentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case cfg.CredentialsFile != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set sheets.credentials_json or sheets.credentials_file)")
	}
}

// ExportTransactions clears the tab and writes the header plus one row per
// transaction. It returns the number of transaction rows written.
func (c *Client) ExportTransactions(ctx context.Context, txs []core.Transaction) (int, error) {
	columns := fmt.Sprintf("%s!A:%s", c.sheetName, lastColumn())
	if err := c.values.Clear(ctx, c.spreadsheetID, columns); err != nil {
		return 0, fmt.Errorf("clear sheet %s: %w", c.sheetName, err)
	}

	rows := ports.Rows(txs, c.loc)
	values := make([][]interface{}, len(rows))
	for i, r := range rows {
		values[i] = toInterfaces(r)
	}

	rng := fmt.Sprintf("%s!A1", c.sheetName)
	if err := c.values.Update(ctx, c.spreadsheetID, rng, values); err != nil {
		return 0, fmt.Errorf("write sheet %s: %w", c.sheetName, err)
	}

	c.logger.InfoContext(ctx, "Transactions exported to Google Sheets",
		log.FieldOperation, log.OpExport,
		log.FieldCount, len(txs),
		log.FieldSheetsRef, rng)
	return len(txs), nil
}

func lastColumn() string {
	return string(rune('A' + len(ports.Header) - 1))
}

func toInterfaces(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

type serviceValues struct {
	svc *gsheet.Service
}

func (s *serviceValues) Clear(ctx context.Context, spreadsheetID, rng string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func (s *serviceValues) Update(ctx context.Context, spreadsheetID, rng string, values [][]interface{}) error {
	vr := &gsheet.ValueRange{Values: values}
	_, err := s.svc.Spreadsheets.Values.Update(spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}
