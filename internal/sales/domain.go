package sales

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pos_ledger/internal/datefmt"
	"pos_ledger/internal/ledger"
	"pos_ledger/internal/money"
	"pos_ledger/internal/sheets"
)

// Base is the base table name of the sales ledger.
const Base = "Sales"

// Header is the header row of every sales partition.
var Header = sheets.Row{"Mã đơn", "Ngày giờ", "Chi tiết", "Tổng tiền", "Lợi nhuận", "Ghi chú"}

// TimestampColumn is the 1-based column holding the sale datetime.
const TimestampColumn = 2

var (
	// ErrNotFound is returned when a sale id is not in the partition.
	ErrNotFound = fmt.Errorf("sale %w", ledger.ErrNotFound)

	// ErrInvalidSale is returned for sales that fail validation.
	ErrInvalidSale = errors.New("invalid sale")
)

// Sale represents a completed sale in the system.
type Sale struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Details   string          `json:"details"`
	Total     decimal.Decimal `json:"total"`
	Profit    decimal.Decimal `json:"profit"`
	Note      string          `json:"note"`
}

// Items parses the details string.
func (s Sale) Items() ([]Item, error) {
	return ParseDetails(s.Details)
}

// Validate checks the fields a write requires.
func (s Sale) Validate() error {
	if s.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidSale)
	}
	if strings.TrimSpace(s.Details) == "" {
		return fmt.Errorf("%w: details are required", ErrInvalidSale)
	}
	if _, err := ParseDetails(s.Details); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSale, err)
	}
	if s.Total.IsNegative() {
		return fmt.Errorf("%w: total must not be negative", ErrInvalidSale)
	}
	return nil
}

type codec struct {
	loc *time.Location
}

func (codec) Header() sheets.Row { return Header }

func (codec) ID(s Sale) string { return s.ID }

func (codec) Encode(s Sale) sheets.Row {
	return sheets.Row{
		s.ID,
		datefmt.FormatDateTime(s.Timestamp),
		s.Details,
		money.Cell(s.Total),
		money.Cell(s.Profit),
		s.Note,
	}
}

func (c codec) Decode(row sheets.Row) (Sale, error) {
	s := Sale{
		ID:      strings.TrimSpace(row.Cell(0)),
		Details: row.Cell(2),
		Note:    row.Cell(5),
	}
	if s.ID == "" {
		return Sale{}, errors.New("empty id")
	}
	var err error
	if s.Timestamp, err = datefmt.ParseDateTime(row.Cell(1), c.loc); err != nil {
		return Sale{}, fmt.Errorf("sale %s: %w", s.ID, err)
	}
	if s.Total, err = money.Parse(row.Cell(3)); err != nil {
		return Sale{}, fmt.Errorf("sale %s total: %w", s.ID, err)
	}
	if s.Profit, err = money.Parse(row.Cell(4)); err != nil {
		return Sale{}, fmt.Errorf("sale %s profit: %w", s.ID, err)
	}
	return s, nil
}
