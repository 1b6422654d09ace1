// Package catalog reads products from the Products table and applies stock
// adjustments to it.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pos_ledger/internal/datefmt"
	"pos_ledger/internal/money"
	"pos_ledger/internal/sheets"
)

// Table is the products table name.
const Table = "Products"

const stockColumn = 6

// Header is the products header row.
var Header = sheets.Row{"Mã SP", "Tên SP", "Giá nhập", "Giá bán", "Lãi", "Tồn kho", "Ngày tạo"}

var (
	// ErrProductNotFound is returned for unknown product codes.
	ErrProductNotFound = errors.New("product not found")

	// ErrNegativeStock is returned when an adjustment would take stock below zero.
	ErrNegativeStock = errors.New("not enough stock")

	// ErrDuplicateCode is returned by Create when the code is taken.
	ErrDuplicateCode = errors.New("product code already exists")

	// ErrInvalidProduct is returned by Create for incomplete products.
	ErrInvalidProduct = errors.New("invalid product")
)

// Product is one catalog entry.
type Product struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Cost      decimal.Decimal `json:"cost"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	CreatedAt string          `json:"created_at,omitempty"`
}

// Margin is the list price minus unit cost.
func (p Product) Margin() decimal.Decimal {
	return p.Price.Sub(p.Cost)
}

type entry struct {
	product Product
	row     int
}

// Catalog is the product collaborator used by the cart and checkout.
type Catalog struct {
	store  sheets.Store
	logger *zap.Logger
	loc    *time.Location
}

// New creates a Catalog.
func New(store sheets.Store, logger *zap.Logger, loc *time.Location) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Catalog{store: store, logger: logger, loc: loc}
}

// List returns every product in table order. A missing table is an empty catalog.
func (c *Catalog) List(ctx context.Context) ([]Product, error) {
	entries, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Product, len(entries))
	for i, e := range entries {
		out[i] = e.product
	}
	return out, nil
}

// Get returns the product with code, read fresh from the store.
func (c *Catalog) Get(ctx context.Context, code string) (Product, error) {
	e, err := c.find(ctx, code)
	if err != nil {
		return Product{}, err
	}
	return e.product, nil
}

// Create appends a product, creating the table when needed.
func (c *Catalog) Create(ctx context.Context, p Product, now time.Time) (Product, error) {
	p.Code = strings.TrimSpace(p.Code)
	p.Name = strings.TrimSpace(p.Name)
	if p.Code == "" || p.Name == "" || p.Cost.IsNegative() || p.Price.IsNegative() || p.Stock < 0 {
		return Product{}, ErrInvalidProduct
	}

	if _, err := c.find(ctx, p.Code); err == nil {
		return Product{}, fmt.Errorf("%w: %s", ErrDuplicateCode, p.Code)
	} else if !errors.Is(err, ErrProductNotFound) {
		return Product{}, err
	}

	err := c.store.CreateTable(ctx, Table, Header)
	if err != nil && !errors.Is(err, sheets.ErrTableExists) {
		return Product{}, fmt.Errorf("creating %s: %w", Table, err)
	}

	p.CreatedAt = datefmt.FormatDate(now.In(c.loc))
	if err := c.store.AppendRows(ctx, Table, []sheets.Row{encode(p)}); err != nil {
		return Product{}, fmt.Errorf("appending product %s: %w", p.Code, err)
	}
	c.logger.Info("product created", zap.String("code", p.Code))
	return p, nil
}

// AdjustStock adds delta to the product's stock and returns the new count.
// The product row is re-read first so the write is based on current stock.
func (c *Catalog) AdjustStock(ctx context.Context, code string, delta int) (int, error) {
	e, err := c.find(ctx, code)
	if err != nil {
		return 0, err
	}
	next := e.product.Stock + delta
	if next < 0 {
		return e.product.Stock, fmt.Errorf("%w: %s has %d, adjustment %d", ErrNegativeStock, code, e.product.Stock, delta)
	}

	err = c.store.OverwriteRange(ctx, Table, sheets.Cell(e.row, stockColumn), []sheets.Row{{strconv.Itoa(next)}})
	if err != nil {
		c.logger.Error("stock update failed", zap.String("code", code), zap.Int("delta", delta), zap.Error(err))
		return e.product.Stock, fmt.Errorf("updating stock of %s: %w", code, err)
	}

	c.logger.Info("stock adjusted",
		zap.String("code", code),
		zap.Int("delta", delta),
		zap.Int("stock", next),
	)
	return next, nil
}

func (c *Catalog) find(ctx context.Context, code string) (entry, error) {
	entries, err := c.load(ctx)
	if err != nil {
		return entry{}, err
	}
	for _, e := range entries {
		if e.product.Code == code {
			return e, nil
		}
	}
	return entry{}, fmt.Errorf("%w: %s", ErrProductNotFound, code)
}

func (c *Catalog) load(ctx context.Context) ([]entry, error) {
	rows, err := c.store.ReadRange(ctx, Table, sheets.Rows(2, len(Header)))
	if errors.Is(err, sheets.ErrTableNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", Table, err)
	}

	var out []entry
	for i, row := range rows {
		if row.Empty() {
			continue
		}
		p, err := decode(row)
		if err != nil {
			c.logger.Warn("skipping invalid product row", zap.Int("row", i+2), zap.Error(err))
			continue
		}
		out = append(out, entry{product: p, row: i + 2})
	}
	return out, nil
}

func encode(p Product) sheets.Row {
	return sheets.Row{
		p.Code,
		p.Name,
		money.Cell(p.Cost),
		money.Cell(p.Price),
		money.Cell(p.Margin()),
		strconv.Itoa(p.Stock),
		p.CreatedAt,
	}
}

func decode(row sheets.Row) (Product, error) {
	p := Product{Code: strings.TrimSpace(row.Cell(0)), Name: row.Cell(1), CreatedAt: row.Cell(6)}
	if p.Code == "" {
		return Product{}, fmt.Errorf("%w: empty code", ErrInvalidProduct)
	}
	var err error
	if p.Cost, err = money.Parse(row.Cell(2)); err != nil {
		return Product{}, fmt.Errorf("cost of %s: %w", p.Code, err)
	}
	if p.Price, err = money.Parse(row.Cell(3)); err != nil {
		return Product{}, fmt.Errorf("price of %s: %w", p.Code, err)
	}
	stock := strings.TrimSpace(row.Cell(5))
	if stock == "" {
		stock = "0"
	}
	if p.Stock, err = strconv.Atoi(stock); err != nil || p.Stock < 0 {
		return Product{}, fmt.Errorf("%w: stock of %s is %q", ErrInvalidProduct, p.Code, row.Cell(5))
	}
	return p, nil
}
