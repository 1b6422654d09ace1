package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pos_ledger/internal/cashflow"
)

// transactionsHandler serves the cash-flow ledger endpoints.
type transactionsHandler struct {
	deps   Dependencies
	logger *zap.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(deps Dependencies) *transactionsHandler {
	return &transactionsHandler{deps: deps, logger: deps.Logger}
}

type transactionView struct {
	cashflow.Transaction
	Partition string `json:"partition"`
	Row       int    `json:"row"`
}

func viewTransaction(e cashflow.Entry) transactionView {
	return transactionView{Transaction: e.Record, Partition: e.Partition, Row: e.Row}
}

func (h *transactionsHandler) handleListTransactions(ctx *gin.Context) {
	m, err := month(ctx, h.deps)
	if err != nil {
		respondError(ctx, h.logger, "invalid month", err)
		return
	}
	p, err := h.deps.Transactions.Load(ctx.Request.Context(), m)
	if err != nil {
		respondError(ctx, h.logger, "failed to load transactions", err)
		return
	}

	results := make([]transactionView, len(p.Entries))
	for i, e := range p.Entries {
		results[i] = viewTransaction(e)
	}
	ctx.JSON(http.StatusOK, gin.H{
		"partition": p.Name,
		"results":   results,
		"skipped":   p.Skipped,
	})
}

func (h *transactionsHandler) handleCreateTransaction(ctx *gin.Context) {
	var req struct {
		Date        string             `json:"date"`
		Direction   cashflow.Direction `json:"direction"`
		Description string             `json:"description"`
		Amount      decimal.Decimal    `json:"amount"`
		Note        string             `json:"note"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	t := cashflow.Transaction{
		Direction:   req.Direction,
		Description: req.Description,
		Amount:      req.Amount,
		Note:        req.Note,
	}
	if req.Date != "" {
		d, err := parseWhen(req.Date, h.deps.Location)
		if err != nil {
			respondError(ctx, h.logger, "invalid date", err)
			return
		}
		t.Date = d
	}

	e, err := h.deps.Transactions.Add(ctx.Request.Context(), t, h.deps.Clock())
	if err != nil {
		respondError(ctx, h.logger, "failed to create transaction", err)
		return
	}
	ctx.JSON(http.StatusCreated, viewTransaction(e))
}

func (h *transactionsHandler) handlePatchTransaction(ctx *gin.Context) {
	id := ctx.Param("id")
	var req struct {
		Date        *string             `json:"date"`
		Direction   *cashflow.Direction `json:"direction"`
		Description *string             `json:"description"`
		Amount      *decimal.Decimal    `json:"amount"`
		Note        *string             `json:"note"`
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

	var date time.Time
	if req.Date != nil {
		if date, err = parseWhen(*req.Date, h.deps.Location); err != nil {
			respondError(ctx, h.logger, "invalid date", err)
			return
		}
	}

	rctx := ctx.Request.Context()
	e, err := h.deps.Transactions.Find(rctx, m, id)
	if err != nil {
		respondError(ctx, h.logger, "failed to find transaction", err)
		return
	}

	if req.Direction != nil || req.Description != nil || req.Amount != nil || req.Note != nil {
		if req.Direction != nil {
			e.Record.Direction = *req.Direction
		}
		if req.Description != nil {
			e.Record.Description = *req.Description
		}
		if req.Amount != nil {
			e.Record.Amount = *req.Amount
		}
		if req.Note != nil {
			e.Record.Note = *req.Note
		}
		if err := h.deps.Transactions.Update(rctx, e); err != nil {
			respondError(ctx, h.logger, "failed to update transaction", err)
			return
		}
	}

	body := gin.H{"transaction": viewTransaction(e)}
	if req.Date != nil {
		res, err := h.deps.Propagator.UpdateTransactionDate(rctx, m, id, date)
		if err != nil {
			respondError(ctx, h.logger, "failed to update transaction date", err)
			return
		}
		body["transaction"] = viewTransaction(*res.Transaction)
		if res.Sale != nil {
			body["sale"] = viewSale(*res.Sale)
		}
		if res.LinkErr != nil {
			body["link_error"] = res.LinkErr.Error()
		}
	}
	ctx.JSON(http.StatusOK, body)
}

func (h *transactionsHandler) handleDeleteTransaction(ctx *gin.Context) {
	m, err := month(ctx, h.deps)
	if err != nil {
		respondError(ctx, h.logger, "invalid month", err)
		return
	}
	rctx := ctx.Request.Context()
	e, err := h.deps.Transactions.Find(rctx, m, ctx.Param("id"))
	if err != nil {
		respondError(ctx, h.logger, "failed to find transaction", err)
		return
	}
	if err := h.deps.Transactions.Delete(rctx, e); err != nil {
		respondError(ctx, h.logger, "failed to delete transaction", err)
		return
	}
	ctx.Status(http.StatusNoContent)
}
