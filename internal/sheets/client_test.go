package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeSheets serves the subset of the Sheets v4 API the client uses.
type fakeSheets struct {
	t        *testing.T
	requests []string
	bodies   []map[string]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	if r.Body != nil {
		raw, _ := io.ReadAll(r.Body)
		if len(raw) > 0 {
			var body map[string]any
			_ = json.Unmarshal(raw, &body)
			f.bodies = append(f.bodies, body)
		}
	}
	assert.Equal(f.t, "Bearer secret-token", r.Header.Get("Authorization"))

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/v4/spreadsheets/sheet-1":
		w.Write([]byte(`{"sheets":[{"properties":{"sheetId":0,"title":"Products"}},{"properties":{"sheetId":42,"title":"Sales_02_2026"}}]}`))
	case r.Method == http.MethodGet && r.URL.Path == "/v4/spreadsheets/sheet-1/values/Sales_02_2026!A2:F":
		assert.Equal(f.t, "UNFORMATTED_VALUE", r.URL.Query().Get("valueRenderOption"))
		if r.URL.Query().Get("dateTimeRenderOption") != "FORMATTED_STRING" {
			// A date-formatted cell comes back as its serial number.
			w.Write([]byte(`{"range":"Sales_02_2026!A2:F","values":[["DH1",46057.416666666664,"A x2",2000,800.5]]}`))
			return
		}
		w.Write([]byte(`{"range":"Sales_02_2026!A2:F","values":[["DH1","4/2/2026 10:00:00","A x2",2000,800.5]]}`))
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v4/spreadsheets/sheet-1/values/Nope"):
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"Unable to parse range: Nope!A2:F","status":"INVALID_ARGUMENT"}}`))
	case r.Method == http.MethodPost && r.URL.Path == "/v4/spreadsheets/sheet-1/values/Sales_02_2026!A1:ZZ:append":
		assert.Equal(f.t, "RAW", r.URL.Query().Get("valueInputOption"))
		assert.Equal(f.t, "INSERT_ROWS", r.URL.Query().Get("insertDataOption"))
		w.Write([]byte(`{}`))
	case r.Method == http.MethodPut && r.URL.Path == "/v4/spreadsheets/sheet-1/values/Sales_03_2026!A1:C1":
		w.Write([]byte(`{}`))
	case r.Method == http.MethodPost && r.URL.Path == "/v4/spreadsheets/sheet-1:batchUpdate":
		w.Write([]byte(`{}`))
	default:
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"code":500,"message":"unexpected request"}}`))
	}
}

func newTestClient(t *testing.T) (*Client, *fakeSheets) {
	fake := &fakeSheets{t: t}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c := NewClient(ClientConfig{
		BaseURL:       srv.URL,
		SpreadsheetID: "sheet-1",
		AccessToken:   "secret-token",
	}, zaptest.NewLogger(t))
	t.Cleanup(func() { c.Close() })
	return c, fake
}

func TestClient_ListTables(t *testing.T) {
	c, _ := newTestClient(t)

	names, err := c.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Products", "Sales_02_2026"}, names)
}

func TestClient_ReadRangeFormatsDatesAndConvertsNumbers(t *testing.T) {
	c, _ := newTestClient(t)

	rows, err := c.ReadRange(context.Background(), "Sales_02_2026", Rows(2, 6))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, Row{"DH1", "4/2/2026 10:00:00", "A x2", "2000", "800.5"}, rows[0])
}

func TestClient_ReadUnknownSheet(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.ReadRange(context.Background(), "Nope", Rows(2, 6))
	assert.True(t, errors.Is(err, ErrTableNotFound), "got %v", err)
}

func TestClient_AppendRows(t *testing.T) {
	c, fake := newTestClient(t)

	err := c.AppendRows(context.Background(), "Sales_02_2026", []Row{{"DH2", "x"}})
	require.NoError(t, err)
	require.Len(t, fake.bodies, 1)
	assert.Equal(t, []any{[]any{"DH2", "x"}}, fake.bodies[0]["values"])
}

func TestClient_CreateTableWritesHeader(t *testing.T) {
	c, fake := newTestClient(t)

	err := c.CreateTable(context.Background(), "Sales_03_2026", Row{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"POST /v4/spreadsheets/sheet-1:batchUpdate",
		"PUT /v4/spreadsheets/sheet-1/values/Sales_03_2026!A1:C1",
	}, fake.requests)
}

func TestClient_DeleteRowResolvesSheetID(t *testing.T) {
	c, fake := newTestClient(t)

	require.NoError(t, c.DeleteRow(context.Background(), "Sales_02_2026", 3))
	require.Len(t, fake.bodies, 1)

	reqs := fake.bodies[0]["requests"].([]any)
	dim := reqs[0].(map[string]any)["deleteDimension"].(map[string]any)["range"].(map[string]any)
	assert.Equal(t, float64(42), dim["sheetId"])
	assert.Equal(t, float64(3), dim["startIndex"])
	assert.Equal(t, float64(4), dim["endIndex"])
}

func TestClient_RemoteErrorIsTyped(t *testing.T) {
	c, _ := newTestClient(t)

	err := c.OverwriteRange(context.Background(), "Other", Cell(2, 2), []Row{{"x"}})
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.True(t, errors.Is(err, ErrRemote))
}
