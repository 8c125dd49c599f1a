package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ListTransactions 分页交易列表
// GET /api/ledger/transactions?page=1&page_size=20&type=charging
func (h *Handler) ListTransactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "0"))

	result, err := h.query.ListTransactions(c.Request.Context(), page, pageSize, c.Query("type"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": result.Entries,
		"pagination": gin.H{
			"page":        result.Page,
			"page_size":   result.PageSize,
			"total":       result.Total,
			"total_pages": result.TotalPages,
		},
	})
}

// GetTransaction 通过交易 ID 获取
func (h *Handler) GetTransaction(c *gin.Context) {
	entry, err := h.query.GetTransaction(c.Request.Context(), c.Param("txId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entry})
}

// ListVehicleTransactions 车辆相关的全部交易
func (h *Handler) ListVehicleTransactions(c *gin.Context) {
	vehicleID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	entries, err := h.query.ListByVehicle(c.Request.Context(), vehicleID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

// LedgerStats 各类型交易数
func (h *Handler) LedgerStats(c *gin.Context) {
	counts, err := h.query.CountsByType(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"by_type": counts,
			"total":   total,
		},
	})
}
