package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"resty.dev/v3"
)

// DefaultBaseURL is the Google Sheets API endpoint.
const DefaultBaseURL = "https://sheets.googleapis.com"

// ClientConfig configures a Sheets client.
type ClientConfig struct {
	BaseURL       string
	SpreadsheetID string
	AccessToken   string
	Timeout       time.Duration
}

// Client is a Store backed by one Google Sheets spreadsheet; each table is a
// sheet (tab) of that spreadsheet.
type Client struct {
	http          *resty.Client
	spreadsheetID string
	logger        *zap.Logger

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// NewClient creates a Sheets client. The access token is an opaque OAuth
// bearer credential supplied by the caller.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	hc := resty.New().
		SetBaseURL(strings.TrimRight(base, "/")).
		SetHeader("Accept", "application/json").
		SetPathParam("spreadsheetId", cfg.SpreadsheetID)
	if cfg.AccessToken != "" {
		hc.SetAuthToken(cfg.AccessToken)
	}
	if cfg.Timeout > 0 {
		hc.SetTimeout(cfg.Timeout)
	}
	return &Client{
		http:          hc,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
		sheetIDs:      map[string]int64{},
	}
}

// Close releases the underlying HTTP client.
func (c *Client) Close() error {
	return c.http.Close()
}

type sheetProperties struct {
	SheetID        int64  `json:"sheetId"`
	Title          string `json:"title"`
	GridProperties *struct {
		FrozenRowCount int `json:"frozenRowCount"`
	} `json:"gridProperties,omitempty"`
}

type spreadsheetResponse struct {
	Sheets []struct {
		Properties sheetProperties `json:"properties"`
	} `json:"sheets"`
}

type valueRange struct {
	Range          string  `json:"range,omitempty"`
	MajorDimension string  `json:"majorDimension,omitempty"`
	Values         [][]any `json:"values"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *Client) ListTables(ctx context.Context) ([]string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("fields", "sheets.properties(sheetId,title)").
		Get("/v4/spreadsheets/{spreadsheetId}")
	if err := c.check("list tables", resp, err); err != nil {
		return nil, err
	}

	var out spreadsheetResponse
	if err := json.Unmarshal([]byte(resp.String()), &out); err != nil {
		return nil, fmt.Errorf("list tables: decoding response: %w", err)
	}

	ids := make(map[string]int64, len(out.Sheets))
	names := make([]string, 0, len(out.Sheets))
	for _, s := range out.Sheets {
		ids[s.Properties.Title] = s.Properties.SheetID
		names = append(names, s.Properties.Title)
	}
	c.mu.Lock()
	c.sheetIDs = ids
	c.mu.Unlock()
	return names, nil
}

func (c *Client) CreateTable(ctx context.Context, name string, header Row) error {
	body := map[string]any{
		"requests": []any{
			map[string]any{
				"addSheet": map[string]any{
					"properties": map[string]any{
						"title":          name,
						"gridProperties": map[string]any{"frozenRowCount": 1},
					},
				},
			},
		},
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/v4/spreadsheets/{spreadsheetId}:batchUpdate")
	if err := c.check("create table "+name, resp, err); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("%w: %s", ErrTableExists, name)
		}
		return err
	}

	c.logger.Info("sheet created", zap.String("table", name))
	return c.OverwriteRange(ctx, name, Line(1, len(header)), []Row{header})
}

func (c *Client) ReadRange(ctx context.Context, table string, rng Range) ([]Row, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("range", rng.Qualified(table)).
		SetQueryParam("majorDimension", "ROWS").
		SetQueryParam("valueRenderOption", "UNFORMATTED_VALUE").
		// Cells written as USER_ENTERED hold date serials; read them back as text.
		SetQueryParam("dateTimeRenderOption", "FORMATTED_STRING").
		Get("/v4/spreadsheets/{spreadsheetId}/values/{range}")
	if err := c.check("read "+rng.Qualified(table), resp, err); err != nil {
		return nil, c.notFound(table, err)
	}

	var out valueRange
	if err := json.Unmarshal([]byte(resp.String()), &out); err != nil {
		return nil, fmt.Errorf("read %s: decoding response: %w", table, err)
	}
	rows := make([]Row, len(out.Values))
	for i, vals := range out.Values {
		row := make(Row, len(vals))
		for j, v := range vals {
			row[j] = cellString(v)
		}
		rows[i] = row
	}
	return rows, nil
}

func (c *Client) AppendRows(ctx context.Context, table string, rows []Row) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("range", Rows(1, 0).Qualified(table)).
		SetQueryParam("valueInputOption", "RAW").
		SetQueryParam("insertDataOption", "INSERT_ROWS").
		SetBody(valueRange{MajorDimension: "ROWS", Values: toValues(rows)}).
		Post("/v4/spreadsheets/{spreadsheetId}/values/{range}:append")
	return c.notFound(table, c.check("append "+table, resp, err))
}

func (c *Client) OverwriteRange(ctx context.Context, table string, rng Range, rows []Row) error {
	qualified := rng.Qualified(table)
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("range", qualified).
		SetQueryParam("valueInputOption", "RAW").
		SetBody(valueRange{Range: qualified, MajorDimension: "ROWS", Values: toValues(rows)}).
		Put("/v4/spreadsheets/{spreadsheetId}/values/{range}")
	return c.notFound(table, c.check("overwrite "+qualified, resp, err))
}

func (c *Client) DeleteRow(ctx context.Context, table string, index int) error {
	sheetID, err := c.sheetID(ctx, table)
	if err != nil {
		return err
	}
	body := map[string]any{
		"requests": []any{
			map[string]any{
				"deleteDimension": map[string]any{
					"range": map[string]any{
						"sheetId":    sheetID,
						"dimension":  "ROWS",
						"startIndex": index,
						"endIndex":   index + 1,
					},
				},
			},
		},
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/v4/spreadsheets/{spreadsheetId}:batchUpdate")
	return c.check(fmt.Sprintf("delete row %d of %s", index, table), resp, err)
}

func (c *Client) sheetID(ctx context.Context, table string) (int64, error) {
	c.mu.Lock()
	id, ok := c.sheetIDs[table]
	c.mu.Unlock()
	if ok {
		return id, nil
	}
	if _, err := c.ListTables(ctx); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok = c.sheetIDs[table]; !ok {
		return 0, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return id, nil
}

func (c *Client) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		c.logger.Error("sheets request failed", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%s: %w: %v", op, ErrRemote, err)
	}
	if !resp.IsError() {
		return nil
	}

	apiErr := &APIError{Op: op, Status: resp.StatusCode(), Message: http.StatusText(resp.StatusCode())}
	var body errorResponse
	if json.Unmarshal([]byte(resp.String()), &body) == nil && body.Error.Message != "" {
		apiErr.Message = body.Error.Message
	}
	c.logger.Warn("sheets API error",
		zap.String("op", op),
		zap.Int("status", apiErr.Status),
		zap.String("message", apiErr.Message),
	)
	return apiErr
}

// notFound maps the API's range-parse rejection for an unknown sheet onto ErrTableNotFound.
func (c *Client) notFound(table string, err error) error {
	if err == nil {
		return nil
	}
	if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusBadRequest &&
		strings.Contains(apiErr.Message, "Unable to parse range") {
		return fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return err
}

func toValues(rows []Row) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		vals := make([]any, len(r))
		for j, c := range r {
			vals[j] = c
		}
		out[i] = vals
	}
	return out
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
