package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/langchou/voltledger/internal/service"
)

type startChargingRequest struct {
	Location  string `json:"location" binding:"required"`
	ChargerID string `json:"charger_id"`
}

type endChargingRequest struct {
	EnergyDelivered *float64 `json:"energy_delivered" binding:"required"`
	Cost            *float64 `json:"cost" binding:"required"`
}

// StartCharging 开始充电
// POST /api/vehicles/:id/charging/start
func (h *Handler) StartCharging(c *gin.Context) {
	vehicleID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req startChargingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body")
		return
	}

	session, err := h.charging.Start(c.Request.Context(), service.StartChargingInput{
		VehicleID: vehicleID,
		Location:  req.Location,
		ChargerID: req.ChargerID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": session})
}

// EndCharging 结束充电
// POST /api/vehicles/:id/charging/end
func (h *Handler) EndCharging(c *gin.Context) {
	vehicleID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req endChargingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body")
		return
	}

	session, err := h.charging.End(c.Request.Context(), vehicleID, *req.EnergyDelivered, *req.Cost)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": session})
}

// ListChargingSessions 获取充电列表
func (h *Handler) ListChargingSessions(c *gin.Context) {
	vehicleID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	sessions, err := h.charging.History(c.Request.Context(), vehicleID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sessions})
}

// GetActiveSession 获取进行中的充电
func (h *Handler) GetActiveSession(c *gin.Context) {
	vehicleID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	session, err := h.charging.Active(c.Request.Context(), vehicleID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": session})
}

// GetChargingAnalytics 充电统计
func (h *Handler) GetChargingAnalytics(c *gin.Context) {
	vehicleID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	analytics, err := h.charging.Analytics(c.Request.Context(), vehicleID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": analytics})
}
