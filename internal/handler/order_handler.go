package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"xianyu-autosell/internal/domain/order"
	"xianyu-autosell/internal/services"
	"xianyu-autosell/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	tracker *services.OrderTracker
}

func NewOrderHandler(tracker *services.OrderTracker) *OrderHandler {
	return &OrderHandler{tracker: tracker}
}

// IngestMessage records an order seen in a chat and schedules its detail
// refresh. It answers before the refresh runs.
func (h *OrderHandler) IngestMessage(c *gin.Context) {
	var req httpdto.OrderMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	if err := h.tracker.HandleOrderMessage(c.Request.Context(), strings.TrimSpace(req.AccountID), strings.TrimSpace(req.OrderID), strings.TrimSpace(req.ChatID)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, httpdto.NewSuccessResponse(gin.H{"order_id": req.OrderID}))
}

func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.tracker.GetOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewOrderResponse(o)))
}

func (h *OrderHandler) List(c *gin.Context) {
	filter := order.ListFilter{AccountID: c.Query("account_id")}
	if raw := c.Query("status"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid status", "INVALID_REQUEST"))
			return
		}
		status := order.Status(n)
		filter.Status = &status
	}
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))
	filter.Offset, _ = strconv.Atoi(c.Query("offset"))

	orders, err := h.tracker.ListOrders(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"orders": httpdto.NewOrderResponses(orders)}))
}

// Refresh fetches the order detail now. The account comes from the body, the
// account_id query parameter, or the stored order, in that order. A delivery
// started by the refresh is not cancelled when the caller disconnects.
func (h *OrderHandler) Refresh(c *gin.Context) {
	orderID := c.Param("orderId")
	var req httpdto.RefreshOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	accountID := strings.TrimSpace(req.AccountID)
	if accountID == "" {
		accountID = strings.TrimSpace(c.Query("account_id"))
	}
	if accountID == "" {
		stored, err := h.tracker.GetOrder(c.Request.Context(), orderID)
		if err != nil {
			writeError(c, err)
			return
		}
		accountID = stored.AccountID
	}

	ctx := context.WithoutCancel(c.Request.Context())
	detail, err := h.tracker.RefreshOrderDetail(ctx, accountID, orderID)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := gin.H{"detail": httpdto.NewOrderDetailResponse(detail)}
	if stored, err := h.tracker.GetOrder(ctx, orderID); err == nil {
		resp["order"] = httpdto.NewOrderResponse(stored)
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(resp))
}
