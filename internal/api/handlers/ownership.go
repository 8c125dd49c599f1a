package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/langchou/voltledger/internal/models"
)

type transferRequest struct {
	NewOwnerID int64  `json:"new_owner_id" binding:"required"`
	Notes      string `json:"notes"`
}

// TransferOwnership 直接转让，请求方为 X-User-ID
// POST /api/vehicles/:id/transfer
func (h *Handler) TransferOwnership(c *gin.Context) {
	vehicleID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	requester, ok := h.requesterID(c)
	if !ok {
		return
	}
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body")
		return
	}

	transfer, err := h.ownership.Transfer(c.Request.Context(), vehicleID, requester, req.NewOwnerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": transfer})
}

// OwnershipHistory 车辆转让历史
func (h *Handler) OwnershipHistory(c *gin.Context) {
	vehicleID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	transfers, err := h.ownership.History(c.Request.Context(), vehicleID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": transfers})
}

// ProposeTransfer 发起转让请求
// POST /api/vehicles/:id/transfer-requests
func (h *Handler) ProposeTransfer(c *gin.Context) {
	vehicleID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	requester, ok := h.requesterID(c)
	if !ok {
		return
	}
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body")
		return
	}

	request, err := h.ownership.Propose(c.Request.Context(), vehicleID, requester, req.NewOwnerID, req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": request})
}

// ApproveTransfer 接收方审批
func (h *Handler) ApproveTransfer(c *gin.Context) {
	h.resolveTransfer(c, h.ownership.Approve)
}

// RejectTransfer 接收方拒绝
func (h *Handler) RejectTransfer(c *gin.Context) {
	h.resolveTransfer(c, h.ownership.Reject)
}

// CancelTransfer 发起方撤回
func (h *Handler) CancelTransfer(c *gin.Context) {
	h.resolveTransfer(c, h.ownership.Cancel)
}

func (h *Handler) resolveTransfer(c *gin.Context, fn func(ctx context.Context, requestID, userID int64) (*models.TransferRequest, error)) {
	requestID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := h.requesterID(c)
	if !ok {
		return
	}

	request, err := fn(c.Request.Context(), requestID, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": request})
}

// ListPendingTransfers 用户相关的待处理转让请求
func (h *Handler) ListPendingTransfers(c *gin.Context) {
	userID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	requests, err := h.ownership.ListPending(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": requests})
}
