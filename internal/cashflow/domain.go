package cashflow

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pos_ledger/internal/datefmt"
	"pos_ledger/internal/money"
	"pos_ledger/internal/sheets"
)

// Base is the base table name of the transactions ledger.
const Base = "Transactions"

// Header is the header row of every transactions partition.
var Header = sheets.Row{"ID", "Ngày", "Loại", "Mô tả", "Số tiền", "Ghi chú", "Mã đơn"}

// DateColumn is the 1-based column holding the transaction date.
const DateColumn = 2

// Direction tells income from expense.
type Direction string

const (
	Income  Direction = "income"
	Expense Direction = "expense"
)

var (
	// ErrInvalidDirection is returned for directions other than income and expense.
	ErrInvalidDirection = errors.New("invalid direction")

	// ErrInvalidAmount is returned for amounts that are not strictly positive.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrEmptyDescription is returned when the description is blank.
	ErrEmptyDescription = errors.New("description is required")

	// ErrMissingDate is returned when the transaction has no date.
	ErrMissingDate = errors.New("date is required")
)

// Transaction is one cash-flow record.
type Transaction struct {
	ID           string          `json:"id"`
	Date         time.Time       `json:"date"`
	Direction    Direction       `json:"direction"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	Note         string          `json:"note"`
	LinkedSaleID string          `json:"linked_sale_id,omitempty"`
}

// Validate checks the fields a write requires.
func (t Transaction) Validate() error {
	if t.Direction != Income && t.Direction != Expense {
		return fmt.Errorf("%w: %q", ErrInvalidDirection, t.Direction)
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.Date.IsZero() {
		return ErrMissingDate
	}
	return nil
}

// SaleNote is the note written on transactions derived from a sale.
func SaleNote(saleID string) string {
	return "Đơn: " + saleID
}

var saleNotePattern = regexp.MustCompile(`Đơn:\s*(\S+)`)

// SaleIDFromNote extracts the sale id embedded by SaleNote.
func SaleIDFromNote(note string) (string, bool) {
	m := saleNotePattern.FindStringSubmatch(note)
	if m == nil {
		return "", false
	}
	return strings.TrimRight(m[1], ",;."), true
}

type codec struct {
	loc *time.Location
}

func (codec) Header() sheets.Row { return Header }

func (codec) ID(t Transaction) string { return t.ID }

func (codec) Encode(t Transaction) sheets.Row {
	return sheets.Row{
		t.ID,
		datefmt.FormatDate(t.Date),
		string(t.Direction),
		t.Description,
		money.Cell(t.Amount),
		t.Note,
		t.LinkedSaleID,
	}
}

func (c codec) Decode(row sheets.Row) (Transaction, error) {
	t := Transaction{
		ID:           strings.TrimSpace(row.Cell(0)),
		Direction:    Direction(strings.TrimSpace(row.Cell(2))),
		Description:  row.Cell(3),
		Note:         row.Cell(5),
		LinkedSaleID: strings.TrimSpace(row.Cell(6)),
	}
	if t.ID == "" {
		return Transaction{}, errors.New("empty id")
	}
	var err error
	if t.Date, err = datefmt.ParseDate(row.Cell(1), c.loc); err != nil {
		return Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	if t.Direction != Income && t.Direction != Expense {
		return Transaction{}, fmt.Errorf("transaction %s: %w: %q", t.ID, ErrInvalidDirection, t.Direction)
	}
	if t.Amount, err = money.Parse(row.Cell(4)); err != nil {
		return Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	if t.LinkedSaleID == "" {
		// Rows written before the link column existed only carry the note token.
		t.LinkedSaleID, _ = SaleIDFromNote(t.Note)
	}
	return t, nil
}
