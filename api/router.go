package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pos_ledger/internal/cashflow"
	"pos_ledger/internal/catalog"
	"pos_ledger/internal/migration"
	"pos_ledger/internal/report"
	"pos_ledger/internal/sales"
	"pos_ledger/internal/sheets"
	"pos_ledger/internal/xref"
)

// Options tune the services built by NewDependencies.
type Options struct {
	Location        *time.Location
	CheckoutRetries int
	Currency        string
}

// Dependencies bundles the services the routes are bound to.
type Dependencies struct {
	Catalog      *catalog.Catalog
	Sales        *sales.Ledger
	Transactions *cashflow.Ledger
	Checkout     *sales.Service
	Propagator   *xref.Propagator
	Migrator     *migration.Migrator
	Reports      *report.Builder
	Location     *time.Location
	Logger       *zap.Logger
	// Clock is the source of "now" for checkouts and new records.
	Clock func() time.Time
}

// NewDependencies wires every service on top of store.
func NewDependencies(store sheets.Store, opts Options, logger *zap.Logger) Dependencies {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	cat := catalog.New(store, logger.Named("catalog"), loc)
	sl := sales.NewLedger(store, logger.Named("sales"), loc)
	tl := cashflow.NewLedger(store, logger.Named("transactions"), loc)
	journal := sales.NewJournal(store, logger.Named("journal"), loc)

	return Dependencies{
		Catalog:      cat,
		Sales:        sl,
		Transactions: tl,
		Checkout:     sales.NewService(cat, sl, tl, journal, logger.Named("checkout"), opts.CheckoutRetries),
		Propagator:   xref.New(sl, tl, logger.Named("xref")),
		Migrator:     migration.New(store, sl.Repo(), tl.Repo(), logger.Named("migration"), loc),
		Reports:      report.NewBuilder(sl, tl, opts.Currency, logger.Named("reports")),
		Location:     loc,
		Logger:       logger,
		Clock:        time.Now,
	}
}

// InitRoutes registers every endpoint on the given Gin engine.
func InitRoutes(e *gin.Engine, deps Dependencies) {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	salesHandler := NewSalesHandler(deps)
	txHandler := NewTransactionsHandler(deps)
	adminHandler := NewAdminHandler(deps)

	e.GET("/products", adminHandler.handleListProducts)

	e.GET("/cart", salesHandler.handleGetCart)
	e.POST("/cart/items", salesHandler.handleAddCartItem)
	e.PATCH("/cart/items/:code", salesHandler.handlePatchCartItem)
	e.DELETE("/cart/items/:code", salesHandler.handleRemoveCartItem)
	e.DELETE("/cart", salesHandler.handleClearCart)

	e.POST("/checkout", salesHandler.handleCheckout)
	e.GET("/checkouts/pending", salesHandler.handlePendingCheckouts)
	e.POST("/checkouts/:id/resume", salesHandler.handleResumeCheckout)

	e.GET("/sales", salesHandler.handleListSales)
	e.POST("/sales", salesHandler.handleCreateSale)
	e.PATCH("/sales/:id", salesHandler.handlePatchSale)
	e.DELETE("/sales/:id", salesHandler.handleDeleteSale)

	e.GET("/transactions", txHandler.handleListTransactions)
	e.POST("/transactions", txHandler.handleCreateTransaction)
	e.PATCH("/transactions/:id", txHandler.handlePatchTransaction)
	e.DELETE("/transactions/:id", txHandler.handleDeleteTransaction)

	e.POST("/migrations", adminHandler.handleMigrate)
	e.GET("/reports", adminHandler.handleReport)

	e.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
}
