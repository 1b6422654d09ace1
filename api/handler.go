package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pos_ledger/internal/datefmt"
	"pos_ledger/internal/sales"
)

// salesHandler serves the cart, checkout and sales ledger endpoints. The
// register has a single cart; mu serializes every cart and checkout call.
type salesHandler struct {
	deps   Dependencies
	logger *zap.Logger

	mu   sync.Mutex
	cart *sales.Cart
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(deps Dependencies) *salesHandler {
	return &salesHandler{
		deps:   deps,
		logger: deps.Logger,
		cart:   sales.NewCart(),
	}
}

type cartResponse struct {
	Lines  []sales.CartLine `json:"lines"`
	Total  decimal.Decimal  `json:"total"`
	Profit decimal.Decimal  `json:"profit"`
}

type saleView struct {
	sales.Sale
	Partition string `json:"partition"`
	Row       int    `json:"row"`
}

func viewSale(e sales.Entry) saleView {
	return saleView{Sale: e.Record, Partition: e.Partition, Row: e.Row}
}

// cartState must be called with mu held.
func (h *salesHandler) cartState() cartResponse {
	total, profit := h.cart.Totals()
	return cartResponse{Lines: h.cart.Lines(), Total: total, Profit: profit}
}

func (h *salesHandler) handleGetCart(ctx *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ctx.JSON(http.StatusOK, h.cartState())
}

func (h *salesHandler) handleAddCartItem(ctx *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	p, err := h.deps.Catalog.Get(ctx.Request.Context(), req.Code)
	if err != nil {
		respondError(ctx, h.logger, "failed to read product", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.cart.Add(p); err != nil {
		respondError(ctx, h.logger, "failed to add to cart", err)
		return
	}
	ctx.JSON(http.StatusOK, h.cartState())
}

func (h *salesHandler) handlePatchCartItem(ctx *gin.Context) {
	code := ctx.Param("code")
	var req struct {
		Delta *int             `json:"delta"`
		Price *decimal.Decimal `json:"price"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil || (req.Delta == nil) == (req.Price == nil) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "provide either delta or price"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	var err error
	if req.Delta != nil {
		err = h.cart.SetQuantity(code, *req.Delta)
	} else {
		err = h.cart.SetPrice(code, *req.Price)
	}
	if err != nil {
		respondError(ctx, h.logger, "failed to update cart line", err)
		return
	}
	ctx.JSON(http.StatusOK, h.cartState())
}

func (h *salesHandler) handleRemoveCartItem(ctx *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.cart.Remove(ctx.Param("code")) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": sales.ErrLineNotFound.Error()})
		return
	}
	ctx.JSON(http.StatusOK, h.cartState())
}

func (h *salesHandler) handleClearCart(ctx *gin.Context) {
	if ctx.Query("confirm") != "true" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "clearing the cart requires confirm=true"})
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cart.Clear()
	ctx.JSON(http.StatusOK, h.cartState())
}

func (h *salesHandler) handleCheckout(ctx *gin.Context) {
	var req struct {
		Note string `json:"note"`
	}
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
			return
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	sale, err := h.deps.Checkout.Checkout(ctx.Request.Context(), h.cart, req.Note, h.deps.Clock())
	if err != nil {
		respondError(ctx, h.logger, "checkout failed", err)
		return
	}
	ctx.JSON(http.StatusCreated, sale)
}

func (h *salesHandler) handlePendingCheckouts(ctx *gin.Context) {
	pending, err := h.deps.Checkout.Pending(ctx.Request.Context())
	if err != nil {
		respondError(ctx, h.logger, "failed to list checkouts", err)
		return
	}
	if pending == nil {
		pending = []sales.CheckoutRecord{}
	}
	ctx.JSON(http.StatusOK, gin.H{"results": pending})
}

func (h *salesHandler) handleResumeCheckout(ctx *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sale, err := h.deps.Checkout.Resume(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, h.logger, "resume failed", err)
		return
	}
	ctx.JSON(http.StatusOK, sale)
}

func (h *salesHandler) handleListSales(ctx *gin.Context) {
	m, err := month(ctx, h.deps)
	if err != nil {
		respondError(ctx, h.logger, "invalid month", err)
		return
	}
	p, err := h.deps.Sales.Load(ctx.Request.Context(), m)
	if err != nil {
		respondError(ctx, h.logger, "failed to load sales", err)
		return
	}

	results := make([]saleView, len(p.Entries))
	for i, e := range p.Entries {
		results[i] = viewSale(e)
	}
	ctx.JSON(http.StatusOK, gin.H{
		"partition": p.Name,
		"results":   results,
		"metadata":  sales.Metadata(p),
	})
}

func (h *salesHandler) handleCreateSale(ctx *gin.Context) {
	var req struct {
		Timestamp string          `json:"timestamp"`
		Details   string          `json:"details"`
		Total     decimal.Decimal `json:"total"`
		Profit    decimal.Decimal `json:"profit"`
		Note      string          `json:"note"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	now := h.deps.Clock()
	sale := sales.Sale{Details: req.Details, Total: req.Total, Profit: req.Profit, Note: req.Note}
	if req.Timestamp != "" {
		ts, err := parseWhen(req.Timestamp, h.deps.Location)
		if err != nil {
			respondError(ctx, h.logger, "invalid timestamp", err)
			return
		}
		sale.Timestamp = ts
	}

	e, err := h.deps.Sales.Create(ctx.Request.Context(), sale, now)
	if err != nil {
		respondError(ctx, h.logger, "failed to create sale", err)
		return
	}
	ctx.JSON(http.StatusCreated, viewSale(e))
}

func (h *salesHandler) handlePatchSale(ctx *gin.Context) {
	id := ctx.Param("id")
	var req struct {
		Timestamp *string          `json:"timestamp"`
		Details   *string          `json:"details"`
		Total     *decimal.Decimal `json:"total"`
		Profit    *decimal.Decimal `json:"profit"`
		Note      *string          `json:"note"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	m, err := month(ctx, h.deps)
	if err != nil {
		respondError(ctx, h.logger, "invalid month", err)
		return
	}

	var ts time.Time
	if req.Timestamp != nil {
		if ts, err = parseWhen(*req.Timestamp, h.deps.Location); err != nil {
			respondError(ctx, h.logger, "invalid timestamp", err)
			return
		}
	}

	rctx := ctx.Request.Context()
	e, err := h.deps.Sales.Find(rctx, m, id)
	if err != nil {
		respondError(ctx, h.logger, "failed to find sale", err)
		return
	}

	if req.Details != nil || req.Total != nil || req.Profit != nil || req.Note != nil {
		if req.Details != nil {
			e.Record.Details = *req.Details
		}
		if req.Total != nil {
			e.Record.Total = *req.Total
		}
		if req.Profit != nil {
			e.Record.Profit = *req.Profit
		}
		if req.Note != nil {
			e.Record.Note = *req.Note
		}
		if err := h.deps.Sales.Update(rctx, e); err != nil {
			respondError(ctx, h.logger, "failed to update sale", err)
			return
		}
	}

	body := gin.H{"sale": viewSale(e)}
	if req.Timestamp != nil {
		res, err := h.deps.Propagator.UpdateSaleTimestamp(rctx, m, id, ts)
		if err != nil {
			respondError(ctx, h.logger, "failed to update sale timestamp", err)
			return
		}
		body["sale"] = viewSale(*res.Sale)
		if res.Transaction != nil {
			body["transaction"] = viewTransaction(*res.Transaction)
		}
		if res.LinkErr != nil {
			body["link_error"] = res.LinkErr.Error()
		}
	}
	ctx.JSON(http.StatusOK, body)
}

func (h *salesHandler) handleDeleteSale(ctx *gin.Context) {
	m, err := month(ctx, h.deps)
	if err != nil {
		respondError(ctx, h.logger, "invalid month", err)
		return
	}
	rctx := ctx.Request.Context()
	e, err := h.deps.Sales.Find(rctx, m, ctx.Param("id"))
	if err != nil {
		respondError(ctx, h.logger, "failed to find sale", err)
		return
	}
	if err := h.deps.Sales.Delete(rctx, e); err != nil {
		respondError(ctx, h.logger, "failed to delete sale", err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// parseWhen accepts any form of the ledger date grammar.
func parseWhen(s string, loc *time.Location) (time.Time, error) {
	p, err := datefmt.Parse(s, loc)
	if err != nil {
		return time.Time{}, err
	}
	return p.Time, nil
}
