// Package xref keeps a sale and its income transaction on the same date when
// either one is edited.
//
// The pair is joined by the transaction's linked sale id. Writes are not
// atomic: the edited record is written first, and when the write to its
// partner fails the two diverge. That failure is logged and reported in
// Result.LinkErr; the edit itself still succeeds.
package xref

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pos_ledger/internal/cashflow"
	"pos_ledger/internal/datefmt"
	"pos_ledger/internal/sales"
)

// Result describes what an edit wrote.
type Result struct {
	Sale        *sales.Entry    `json:"sale,omitempty"`
	Transaction *cashflow.Entry `json:"transaction,omitempty"`
	// LinkErr is set when the partner record could not be located or written.
	LinkErr error `json:"-"`
}

// Propagator applies date edits to linked sale/transaction pairs.
type Propagator struct {
	sales  *sales.Ledger
	txs    *cashflow.Ledger
	logger *zap.Logger
}

// New creates a Propagator.
func New(s *sales.Ledger, txs *cashflow.Ledger, logger *zap.Logger) *Propagator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Propagator{sales: s, txs: txs, logger: logger}
}

// UpdateSaleTimestamp sets the timestamp of the sale saleID, found in the
// partition of month, and moves its linked transaction to the same day.
func (p *Propagator) UpdateSaleTimestamp(ctx context.Context, month time.Time, saleID string, ts time.Time) (Result, error) {
	e, err := p.sales.Find(ctx, month, saleID)
	if err != nil {
		return Result{}, err
	}
	original := e.Record.Timestamp

	updated, err := p.sales.UpdateTimestamp(ctx, e, ts)
	if err != nil {
		return Result{}, err
	}
	res := Result{Sale: &updated}

	tx, found, err := p.linkedTransaction(ctx, saleID, month, original)
	if err != nil {
		return p.diverged(res, "locating linked transaction", saleID, err), nil
	}
	if !found {
		p.logger.Debug("sale has no linked transaction", zap.String("sale_id", saleID))
		return res, nil
	}

	moved, err := p.txs.UpdateDate(ctx, tx, ts)
	if err != nil {
		return p.diverged(res, "updating linked transaction", saleID, err), nil
	}
	res.Transaction = &moved
	p.logger.Info("sale timestamp propagated",
		zap.String("sale_id", saleID),
		zap.String("transaction_id", moved.Record.ID),
		zap.String("date", datefmt.FormatDate(moved.Record.Date)),
	)
	return res, nil
}

// UpdateTransactionDate sets the date of the transaction txID, found in the
// partition of month. When it is linked to a sale, the sale takes the new
// date and keeps its time of day.
func (p *Propagator) UpdateTransactionDate(ctx context.Context, month time.Time, txID string, date time.Time) (Result, error) {
	e, err := p.txs.Find(ctx, month, txID)
	if err != nil {
		return Result{}, err
	}
	original := e.Record.Date

	updated, err := p.txs.UpdateDate(ctx, e, date)
	if err != nil {
		return Result{}, err
	}
	res := Result{Transaction: &updated}

	saleID := updated.Record.LinkedSaleID
	if saleID == "" {
		return res, nil
	}

	s, found, err := p.linkedSale(ctx, saleID, month, original)
	if err != nil {
		return p.diverged(res, "locating linked sale", saleID, err), nil
	}
	if !found {
		p.logger.Warn("linked sale not found", zap.String("transaction_id", txID), zap.String("sale_id", saleID))
		return res, nil
	}

	moved, err := p.sales.UpdateTimestamp(ctx, s, datefmt.WithDate(s.Record.Timestamp, date.In(p.sales.Location())))
	if err != nil {
		return p.diverged(res, "updating linked sale", saleID, err), nil
	}
	res.Sale = &moved
	p.logger.Info("transaction date propagated",
		zap.String("transaction_id", txID),
		zap.String("sale_id", saleID),
		zap.String("timestamp", datefmt.FormatDateTime(moved.Record.Timestamp)),
	)
	return res, nil
}

func (p *Propagator) linkedTransaction(ctx context.Context, saleID string, months ...time.Time) (cashflow.Entry, bool, error) {
	for _, m := range distinctMonths(months) {
		part, err := p.txs.Load(ctx, m)
		if err != nil {
			return cashflow.Entry{}, false, err
		}
		if e, ok := cashflow.FindLinked(part, saleID); ok {
			return e, true, nil
		}
	}
	return cashflow.Entry{}, false, nil
}

func (p *Propagator) linkedSale(ctx context.Context, saleID string, months ...time.Time) (sales.Entry, bool, error) {
	for _, m := range distinctMonths(months) {
		part, err := p.sales.Load(ctx, m)
		if err != nil {
			return sales.Entry{}, false, err
		}
		if e, ok := part.Find(saleID); ok {
			return e, true, nil
		}
	}
	return sales.Entry{}, false, nil
}

func (p *Propagator) diverged(res Result, step, saleID string, err error) Result {
	p.logger.Warn("linked records diverged",
		zap.String("step", step),
		zap.String("sale_id", saleID),
		zap.Error(err),
	)
	res.LinkErr = err
	return res
}

func distinctMonths(months []time.Time) []time.Time {
	var out []time.Time
	for _, m := range months {
		dup := false
		for _, o := range out {
			if o.Year() == m.Year() && o.Month() == m.Month() {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, m)
		}
	}
	return out
}
