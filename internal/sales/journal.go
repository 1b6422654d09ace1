package sales

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pos_ledger/internal/sheets"
)

// JournalTable holds one row per checkout attempt.
const JournalTable = "Checkouts"

// JournalHeader is the header row of the journal table.
var JournalHeader = sheets.Row{"ID", "Mã đơn", "Thời gian", "Trạng thái", "Dòng hàng", "Đã trừ kho", "Mã GD", "Lỗi"}

// ErrCheckoutNotFound is returned for unknown journal ids.
var ErrCheckoutNotFound = errors.New("checkout not found")

// CheckoutStatus is the state of a journal record.
type CheckoutStatus string

const (
	StatusPending             CheckoutStatus = "pending"
	StatusCommitted           CheckoutStatus = "committed"
	StatusFailed              CheckoutStatus = "failed"
	StatusNeedsReconciliation CheckoutStatus = "needs_reconciliation"
)

// JournalLine is the part of a cart line a checkout needs to replay.
type JournalLine struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// CheckoutRecord tracks the steps of one checkout.
type CheckoutRecord struct {
	ID            string         `json:"id"`
	SaleID        string         `json:"sale_id"`
	CreatedAt     time.Time      `json:"created_at"`
	Status        CheckoutStatus `json:"status"`
	Lines         []JournalLine  `json:"lines"`
	StockDone     []string       `json:"stock_done"`
	TransactionID string         `json:"transaction_id,omitempty"`
	Error         string         `json:"error,omitempty"`
}

func (r *CheckoutRecord) stockDone(code string) bool {
	for _, c := range r.StockDone {
		if c == code {
			return true
		}
	}
	return false
}

// Journal persists checkout records in a single unpartitioned table.
type Journal struct {
	store  sheets.Store
	logger *zap.Logger
	loc    *time.Location
}

// NewJournal creates a Journal.
func NewJournal(store sheets.Store, logger *zap.Logger, loc *time.Location) *Journal {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Journal{store: store, logger: logger, loc: loc}
}

// Begin appends rec, creating the table first if needed.
func (j *Journal) Begin(ctx context.Context, rec CheckoutRecord) error {
	err := j.store.CreateTable(ctx, JournalTable, JournalHeader)
	if err != nil && !errors.Is(err, sheets.ErrTableExists) {
		return fmt.Errorf("creating %s: %w", JournalTable, err)
	}
	row, err := j.encode(rec)
	if err != nil {
		return err
	}
	if err := j.store.AppendRows(ctx, JournalTable, []sheets.Row{row}); err != nil {
		return fmt.Errorf("appending checkout %s: %w", rec.ID, err)
	}
	return nil
}

// Save overwrites the row of rec.
func (j *Journal) Save(ctx context.Context, rec CheckoutRecord) error {
	rows, err := j.read(ctx)
	if err != nil {
		return err
	}
	for i, r := range rows {
		if r.Cell(0) != rec.ID {
			continue
		}
		row, err := j.encode(rec)
		if err != nil {
			return err
		}
		if err := j.store.OverwriteRange(ctx, JournalTable, sheets.Line(i+2, len(JournalHeader)), []sheets.Row{row}); err != nil {
			return fmt.Errorf("saving checkout %s: %w", rec.ID, err)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrCheckoutNotFound, rec.ID)
}

// Get returns the record with id.
func (j *Journal) Get(ctx context.Context, id string) (CheckoutRecord, error) {
	rows, err := j.read(ctx)
	if err != nil {
		return CheckoutRecord{}, err
	}
	for _, r := range rows {
		if r.Cell(0) == id {
			return j.decode(r)
		}
	}
	return CheckoutRecord{}, fmt.Errorf("%w: %s", ErrCheckoutNotFound, id)
}

// List returns the records whose status is one of statuses, or every record
// when none is given.
func (j *Journal) List(ctx context.Context, statuses ...CheckoutStatus) ([]CheckoutRecord, error) {
	rows, err := j.read(ctx)
	if err != nil {
		return nil, err
	}
	var out []CheckoutRecord
	for i, r := range rows {
		if r.Empty() {
			continue
		}
		rec, err := j.decode(r)
		if err != nil {
			j.logger.Warn("skipping invalid checkout row", zap.Int("row", i+2), zap.Error(err))
			continue
		}
		if len(statuses) == 0 || hasStatus(statuses, rec.Status) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func hasStatus(statuses []CheckoutStatus, s CheckoutStatus) bool {
	for _, x := range statuses {
		if x == s {
			return true
		}
	}
	return false
}

func (j *Journal) read(ctx context.Context) ([]sheets.Row, error) {
	rows, err := j.store.ReadRange(ctx, JournalTable, sheets.Rows(2, len(JournalHeader)))
	if errors.Is(err, sheets.ErrTableNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", JournalTable, err)
	}
	return rows, nil
}

func (j *Journal) encode(rec CheckoutRecord) (sheets.Row, error) {
	lines, err := json.Marshal(rec.Lines)
	if err != nil {
		return nil, fmt.Errorf("encoding checkout lines: %w", err)
	}
	done, err := json.Marshal(rec.StockDone)
	if err != nil {
		return nil, fmt.Errorf("encoding checkout stock: %w", err)
	}
	return sheets.Row{
		rec.ID,
		rec.SaleID,
		rec.CreatedAt.In(j.loc).Format(time.RFC3339),
		string(rec.Status),
		string(lines),
		string(done),
		rec.TransactionID,
		rec.Error,
	}, nil
}

func (j *Journal) decode(row sheets.Row) (CheckoutRecord, error) {
	rec := CheckoutRecord{
		ID:            row.Cell(0),
		SaleID:        row.Cell(1),
		Status:        CheckoutStatus(row.Cell(3)),
		TransactionID: row.Cell(6),
		Error:         row.Cell(7),
	}
	var err error
	if rec.CreatedAt, err = time.ParseInLocation(time.RFC3339, row.Cell(2), j.loc); err != nil {
		return CheckoutRecord{}, fmt.Errorf("checkout %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Cell(4)), &rec.Lines); err != nil {
		return CheckoutRecord{}, fmt.Errorf("checkout %s lines: %w", rec.ID, err)
	}
	if done := row.Cell(5); done != "" {
		if err := json.Unmarshal([]byte(done), &rec.StockDone); err != nil {
			return CheckoutRecord{}, fmt.Errorf("checkout %s stock: %w", rec.ID, err)
		}
	}
	return rec, nil
}
