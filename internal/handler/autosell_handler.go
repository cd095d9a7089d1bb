package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"xianyu-autosell/internal/domain/autosell"
	"xianyu-autosell/internal/services"
	"xianyu-autosell/internal/transport/httpdto"
	autosell_errors "xianyu-autosell/pkg/errors"

	"github.com/gin-gonic/gin"
)

type AutoSellHandler struct {
	service  *services.AutoSellService
	importer *services.StockImporter
}

func NewAutoSellHandler(service *services.AutoSellService, importer *services.StockImporter) *AutoSellHandler {
	return &AutoSellHandler{service: service, importer: importer}
}

// Process runs one manual delivery attempt. The outcome is returned in full
// whether or not the delivery succeeded.
func (h *AutoSellHandler) Process(c *gin.Context) {
	var req httpdto.ProcessAutoSellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	outcome := h.service.ProcessAutoSell(context.WithoutCancel(c.Request.Context()), services.ProcessRequest{
		AccountID: strings.TrimSpace(req.AccountID),
		OrderID:   strings.TrimSpace(req.OrderID),
		ItemID:    strings.TrimSpace(req.ItemID),
		TriggerOn: autosell.TriggerOn(req.TriggerOn),
		Context: autosell.OrderContext{
			BuyerUserID: req.BuyerUserID,
			ChatID:      req.ChatID,
			SkuText:     req.SkuText,
		},
	})
	if outcome.Success {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(outcome))
		return
	}

	status := autosell_errors.HTTPStatus(outcome.Err)
	c.JSON(status, httpdto.Response[autosell.Outcome]{
		Success: false,
		Data:    outcome,
		Error:   outcome.Error,
		Code:    httpdto.ErrorCode(status),
		Kind:    autosell_errors.Kind(outcome.Err),
	})
}

func (h *AutoSellHandler) StockStatus(c *gin.Context) {
	ruleID, ok := ruleIDParam(c)
	if !ok {
		return
	}
	stats, err := h.service.GetRuleStockStatus(c.Request.Context(), ruleID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(stats))
}

func (h *AutoSellHandler) Deliveries(c *gin.Context) {
	logs, err := h.service.Deliveries(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"deliveries": httpdto.NewDeliveryLogResponses(logs)}))
}

func (h *AutoSellHandler) StockUploadURL(c *gin.Context) {
	ruleID, ok := ruleIDParam(c)
	if !ok {
		return
	}
	upload, err := h.importer.UploadURL(c.Request.Context(), ruleID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(upload))
}

// ImportStock adds units to a stock rule. A JSON body names an uploaded
// object; any other body is read as one unit per line.
func (h *AutoSellHandler) ImportStock(c *gin.Context) {
	ruleID, ok := ruleIDParam(c)
	if !ok {
		return
	}

	var (
		n   int
		err error
	)
	if c.ContentType() == "application/json" {
		var req httpdto.StockImportRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
			return
		}
		n, err = h.importer.ImportObject(c.Request.Context(), ruleID, req.Key)
	} else {
		n, err = h.importer.Import(c.Request.Context(), ruleID, c.Request.Body)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	stats, err := h.service.GetRuleStockStatus(c.Request.Context(), ruleID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.StockImportResponse{Imported: n, Stock: stats}))
}

func ruleIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("ruleId"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid rule id", "INVALID_REQUEST"))
		return 0, false
	}
	return id, true
}
