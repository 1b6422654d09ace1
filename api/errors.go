package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pos_ledger/internal/cashflow"
	"pos_ledger/internal/catalog"
	"pos_ledger/internal/datefmt"
	"pos_ledger/internal/ledger"
	"pos_ledger/internal/money"
	"pos_ledger/internal/sales"
	"pos_ledger/internal/sheets"
)

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	var partial *sales.PartialCheckoutError
	switch {
	case errors.As(err, &partial):
		return http.StatusBadGateway
	case errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, sales.ErrLineNotFound),
		errors.Is(err, sales.ErrCheckoutNotFound):
		return http.StatusNotFound
	case errors.Is(err, sales.ErrInsufficientStock),
		errors.Is(err, sales.ErrEmptyCart),
		errors.Is(err, sales.ErrInvalidPrice),
		errors.Is(err, sales.ErrInvalidSale),
		errors.Is(err, sales.ErrInvalidDetails),
		errors.Is(err, cashflow.ErrInvalidAmount),
		errors.Is(err, cashflow.ErrInvalidDirection),
		errors.Is(err, cashflow.ErrEmptyDescription),
		errors.Is(err, cashflow.ErrMissingDate),
		errors.Is(err, catalog.ErrNegativeStock),
		errors.Is(err, catalog.ErrInvalidProduct),
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, datefmt.ErrInvalidDate):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrStalePosition),
		errors.Is(err, ledger.ErrDuplicateID),
		errors.Is(err, catalog.ErrDuplicateCode),
		errors.Is(err, sales.ErrNothingToResume):
		return http.StatusConflict
	case errors.Is(err, sheets.ErrRemote):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
	} else {
		logger.Warn(msg, zap.String("path", c.FullPath()), zap.Error(err))
	}

	body := gin.H{"error": err.Error()}
	var partial *sales.PartialCheckoutError
	if errors.As(err, &partial) {
		body["checkout_id"] = partial.CheckoutID
		body["sale"] = partial.Sale
		body["stock_done"] = partial.StockDone
	}
	c.JSON(status, body)
}

// month reads the ?month=YYYY-MM query parameter, defaulting to the
// current month.
func month(c *gin.Context, deps Dependencies) (time.Time, error) {
	m := c.Query("month")
	if m == "" {
		return deps.Clock().In(deps.Location), nil
	}
	return datefmt.ParseMonth(m, deps.Location)
}
