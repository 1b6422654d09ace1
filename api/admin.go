package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pos_ledger/internal/catalog"
)

// adminHandler serves products, migrations and reports.
type adminHandler struct {
	deps   Dependencies
	logger *zap.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps Dependencies) *adminHandler {
	return &adminHandler{deps: deps, logger: deps.Logger}
}

func (h *adminHandler) handleListProducts(ctx *gin.Context) {
	products, err := h.deps.Catalog.List(ctx.Request.Context())
	if err != nil {
		respondError(ctx, h.logger, "failed to list products", err)
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	ctx.JSON(http.StatusOK, gin.H{"results": products})
}

func (h *adminHandler) handleMigrate(ctx *gin.Context) {
	report, err := h.deps.Migrator.Migrate(ctx.Request.Context())
	if err != nil {
		h.logger.Error("migration stopped", zap.Error(err))
		ctx.JSON(errorStatus(err), gin.H{"error": err.Error(), "report": report})
		return
	}
	ctx.JSON(http.StatusOK, report)
}

func (h *adminHandler) handleReport(ctx *gin.Context) {
	m, err := month(ctx, h.deps)
	if err != nil {
		respondError(ctx, h.logger, "invalid month", err)
		return
	}
	summary, err := h.deps.Reports.Month(ctx.Request.Context(), m)
	if err != nil {
		respondError(ctx, h.logger, "failed to build report", err)
		return
	}
	ctx.JSON(http.StatusOK, summary)
}
