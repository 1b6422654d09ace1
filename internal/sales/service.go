package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pos_ledger/internal/cashflow"
	"pos_ledger/internal/catalog"
)

// DefaultRetries is how many times a checkout step is attempted.
const DefaultRetries = 3

// ErrNothingToResume is returned by Resume for checkouts that need no replay.
var ErrNothingToResume = errors.New("checkout has nothing to resume")

// Inventory is the catalog as seen by checkout.
type Inventory interface {
	Get(ctx context.Context, code string) (catalog.Product, error)
	AdjustStock(ctx context.Context, code string, delta int) (int, error)
}

// PartialCheckoutError is returned when the sale was recorded but a later
// step failed. The sale is not rolled back; the checkout is left in the
// journal for Resume.
type PartialCheckoutError struct {
	CheckoutID    string
	Sale          Sale
	StockDone     []string
	TransactionID string
	Err           error
}

func (e *PartialCheckoutError) Error() string {
	return fmt.Sprintf("checkout %s partially applied, sale %s recorded: %v", e.CheckoutID, e.Sale.ID, e.Err)
}

func (e *PartialCheckoutError) Unwrap() error {
	return e.Err
}

// Service commits carts into a sale, stock adjustments and an income
// transaction.
type Service struct {
	inventory Inventory
	sales     *Ledger
	txs       *cashflow.Ledger
	journal   *Journal
	logger    *zap.Logger
	retries   int
	clock     func() time.Time
}

// NewService creates a new Service. retries below one means DefaultRetries.
func NewService(inventory Inventory, sales *Ledger, txs *cashflow.Ledger, journal *Journal, logger *zap.Logger, retries int) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retries < 1 {
		retries = DefaultRetries
	}
	return &Service{
		inventory: inventory,
		sales:     sales,
		txs:       txs,
		journal:   journal,
		logger:    logger,
		retries:   retries,
		clock:     time.Now,
	}
}

// Checkout records the cart as a sale at now, decrements stock for every
// line and records the income. The cart is cleared only on full success.
func (s *Service) Checkout(ctx context.Context, cart *Cart, note string, now time.Time) (*Sale, error) {
	lines := cart.Lines()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	for _, l := range lines {
		p, err := s.inventory.Get(ctx, l.Code)
		if err != nil {
			return nil, err
		}
		if l.Quantity > p.Stock {
			return nil, fmt.Errorf("%w: %s has %d, cart needs %d", ErrInsufficientStock, l.Code, p.Stock, l.Quantity)
		}
	}

	now = truncate(now.In(s.sales.Location()))
	total, profit := totals(lines)
	sale := Sale{
		ID:        s.sales.NextID(now),
		Timestamp: now,
		Details:   RenderDetails(lines),
		Total:     total,
		Profit:    profit,
		Note:      strings.TrimSpace(note),
	}

	rec := CheckoutRecord{
		ID:        uuid.NewString(),
		SaleID:    sale.ID,
		CreatedAt: now,
		Status:    StatusPending,
		Lines:     make([]JournalLine, len(lines)),
	}
	for i, l := range lines {
		rec.Lines[i] = JournalLine{Code: l.Code, Name: l.Name, Quantity: l.Quantity}
	}
	if err := s.journal.Begin(ctx, rec); err != nil {
		s.logger.Error("failed to start checkout", zap.String("sale_id", sale.ID), zap.Error(err))
		return nil, fmt.Errorf("starting checkout: %w", err)
	}

	if _, err := s.sales.Append(ctx, sale); err != nil {
		s.logger.Error("failed to save sale", zap.String("sale_id", sale.ID), zap.Error(err))
		rec.Status = StatusFailed
		rec.Error = err.Error()
		s.checkpoint(ctx, rec)
		return nil, fmt.Errorf("failed to save sale: %w", err)
	}

	if err := s.complete(ctx, &rec, sale); err != nil {
		return &sale, s.partial(ctx, rec, sale, err)
	}

	cart.Clear()
	s.logger.Info("checkout committed",
		zap.String("checkout_id", rec.ID),
		zap.String("sale_id", sale.ID),
		zap.String("transaction_id", rec.TransactionID),
		zap.String("total", sale.Total.String()),
	)
	return &sale, nil
}

// Resume replays the unfinished steps of a checkout. Stock lines already
// adjusted are skipped, and the transaction step is skipped when a
// transaction linked to the sale already exists.
func (s *Service) Resume(ctx context.Context, checkoutID string) (*Sale, error) {
	rec, err := s.journal.Get(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	if rec.Status != StatusPending && rec.Status != StatusNeedsReconciliation {
		return nil, fmt.Errorf("%w: %s is %s", ErrNothingToResume, rec.ID, rec.Status)
	}

	e, err := s.sales.Find(ctx, rec.CreatedAt, rec.SaleID)
	if errors.Is(err, ErrNotFound) {
		// The sale never landed, so nothing downstream ran either.
		rec.Status = StatusFailed
		rec.Error = "sale was not recorded"
		s.checkpoint(ctx, rec)
		return nil, fmt.Errorf("%w: sale %s was not recorded", ErrNothingToResume, rec.SaleID)
	}
	if err != nil {
		return nil, err
	}

	sale := e.Record
	if err := s.complete(ctx, &rec, sale); err != nil {
		return &sale, s.partial(ctx, rec, sale, err)
	}
	s.logger.Info("checkout reconciled", zap.String("checkout_id", rec.ID), zap.String("sale_id", sale.ID))
	return &sale, nil
}

// Pending lists checkouts that did not commit.
func (s *Service) Pending(ctx context.Context) ([]CheckoutRecord, error) {
	return s.journal.List(ctx, StatusPending, StatusNeedsReconciliation)
}

func (s *Service) complete(ctx context.Context, rec *CheckoutRecord, sale Sale) error {
	for _, l := range rec.Lines {
		if rec.stockDone(l.Code) {
			continue
		}
		err := s.retry(ctx, "adjust stock", func() error {
			_, err := s.inventory.AdjustStock(ctx, l.Code, -l.Quantity)
			return err
		})
		if err != nil {
			return fmt.Errorf("adjusting stock of %s: %w", l.Code, err)
		}
		rec.StockDone = append(rec.StockDone, l.Code)
		s.checkpoint(ctx, *rec)
	}

	// A sale given away at zero has no income to record.
	if rec.TransactionID == "" && sale.Total.IsPositive() {
		err := s.retry(ctx, "record income", func() error {
			p, err := s.txs.Load(ctx, sale.Timestamp)
			if err != nil {
				return err
			}
			if e, ok := cashflow.FindLinked(p, sale.ID); ok {
				rec.TransactionID = e.Record.ID
				return nil
			}
			e, err := s.txs.Add(ctx, incomeFor(sale, rec.Lines), s.clock())
			if err != nil {
				return err
			}
			rec.TransactionID = e.Record.ID
			return nil
		})
		if err != nil {
			return fmt.Errorf("recording income: %w", err)
		}
	}

	rec.Status = StatusCommitted
	rec.Error = ""
	s.checkpoint(ctx, *rec)
	return nil
}

func (s *Service) partial(ctx context.Context, rec CheckoutRecord, sale Sale, cause error) error {
	rec.Status = StatusNeedsReconciliation
	rec.Error = cause.Error()
	s.checkpoint(ctx, rec)
	s.logger.Error("checkout left partial state, needs reconciliation",
		zap.String("checkout_id", rec.ID),
		zap.String("sale_id", sale.ID),
		zap.Strings("stock_done", rec.StockDone),
		zap.String("transaction_id", rec.TransactionID),
		zap.Error(cause),
	)
	return &PartialCheckoutError{
		CheckoutID:    rec.ID,
		Sale:          sale,
		StockDone:     rec.StockDone,
		TransactionID: rec.TransactionID,
		Err:           cause,
	}
}

// checkpoint saves rec. A failed journal write is logged and does not fail
// the checkout, which already reached the ledgers.
func (s *Service) checkpoint(ctx context.Context, rec CheckoutRecord) {
	if err := s.journal.Save(ctx, rec); err != nil {
		s.logger.Warn("failed to update checkout journal",
			zap.String("checkout_id", rec.ID),
			zap.String("status", string(rec.Status)),
			zap.Error(err),
		)
	}
}

func (s *Service) retry(ctx context.Context, step string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.retries; attempt++ {
		if err = fn(); err == nil || !retryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
		s.logger.Warn("checkout step failed",
			zap.String("step", step),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return err
}

// Domain rejections do not change on retry.
func retryable(err error) bool {
	return !errors.Is(err, catalog.ErrNegativeStock) &&
		!errors.Is(err, catalog.ErrProductNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func incomeFor(sale Sale, lines []JournalLine) cashflow.Transaction {
	names := make([]string, len(lines))
	for i, l := range lines {
		names[i] = l.Name
	}
	return cashflow.Transaction{
		Date:         sale.Timestamp,
		Direction:    cashflow.Income,
		Description:  strings.Join(names, ", "),
		Amount:       sale.Total,
		Note:         cashflow.SaleNote(sale.ID),
		LinkedSaleID: sale.ID,
	}
}
