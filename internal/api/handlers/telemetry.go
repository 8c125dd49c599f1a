package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/langchou/voltledger/internal/models"
	"github.com/langchou/voltledger/internal/service"
)

type batteryReadingRequest struct {
	StateOfCharge *float64 `json:"state_of_charge" binding:"required"`
	StateOfHealth *float64 `json:"state_of_health" binding:"required"`
	Temperature   float64  `json:"temperature"`
	CycleCount    int      `json:"cycle_count"`
	Source        string   `json:"source"`
}

type alertRequest struct {
	Type     string `json:"type" binding:"required"`
	Severity string `json:"severity"`
	Message  string `json:"message" binding:"required"`
}

type oemDataRequest struct {
	Provider string         `json:"provider" binding:"required"`
	Data     models.Payload `json:"data"`
}

// RecordBatteryReading 记录电池读数
// POST /api/vehicles/:id/battery
func (h *Handler) RecordBatteryReading(c *gin.Context) {
	vehicleID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req batteryReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body")
		return
	}

	reading, err := h.telemetry.RecordBatteryReading(c.Request.Context(), service.BatteryReadingInput{
		VehicleID:     vehicleID,
		StateOfCharge: *req.StateOfCharge,
		StateOfHealth: *req.StateOfHealth,
		Temperature:   req.Temperature,
		CycleCount:    req.CycleCount,
		Source:        req.Source,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": reading})
}

// ListBatteryReadings 电池读数历史，?limit= 限制条数
func (h *Handler) ListBatteryReadings(c *gin.Context) {
	vehicleID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	readings, err := h.telemetry.BatteryHistory(c.Request.Context(), vehicleID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": readings})
}

// GetLatestReading 最新电池读数
func (h *Handler) GetLatestReading(c *gin.Context) {
	vehicleID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	reading, err := h.telemetry.LatestReading(c.Request.Context(), vehicleID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": reading})
}

// GetBatteryAnalytics 电池健康统计
func (h *Handler) GetBatteryAnalytics(c *gin.Context) {
	vehicleID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	analytics, err := h.telemetry.BatteryAnalytics(c.Request.Context(), vehicleID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": analytics})
}

// RecordAlert 记录告警
func (h *Handler) RecordAlert(c *gin.Context) {
	vehicleID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req alertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body")
		return
	}

	alert, err := h.telemetry.RecordAlert(c.Request.Context(), service.AlertInput{
		VehicleID: vehicleID,
		Type:      req.Type,
		Severity:  req.Severity,
		Message:   req.Message,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": alert})
}

// ListAlerts 车辆告警
func (h *Handler) ListAlerts(c *gin.Context) {
	vehicleID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	alerts, err := h.telemetry.Alerts(c.Request.Context(), vehicleID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": alerts})
}

// RecordOEMData 记录主机厂数据
func (h *Handler) RecordOEMData(c *gin.Context) {
	vehicleID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req oemDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body")
		return
	}

	record, err := h.telemetry.RecordOEMData(c.Request.Context(), vehicleID, req.Provider, req.Data)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": record})
}

// ListOEMRecords 主机厂数据
func (h *Handler) ListOEMRecords(c *gin.Context) {
	vehicleID, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	records, err := h.telemetry.OEMRecords(c.Request.Context(), vehicleID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}
