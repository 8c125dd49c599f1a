package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/langchou/voltledger/internal/service"
	"github.com/langchou/voltledger/pkg/ws"
)

// Services 处理器依赖的业务服务
type Services struct {
	Vehicles  *service.VehicleService
	Ownership *service.OwnershipService
	Charging  *service.ChargingService
	Telemetry *service.TelemetryService
	Query     *service.QueryService
}

// Handler HTTP 处理器
type Handler struct {
	logger    *zap.Logger
	vehicles  *service.VehicleService
	ownership *service.OwnershipService
	charging  *service.ChargingService
	telemetry *service.TelemetryService
	query     *service.QueryService
	wsHub     *ws.Hub
	upgrader  websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(logger *zap.Logger, svc Services, wsHub *ws.Hub) *Handler {
	return &Handler{
		logger:    logger,
		vehicles:  svc.Vehicles,
		ownership: svc.Ownership,
		charging:  svc.Charging,
		telemetry: svc.Telemetry,
		query:     svc.Query,
		wsHub:     wsHub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 开发环境允许所有来源
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// API 路由
	api := r.Group("/api")
	{
		// 用户
		api.POST("/users", h.CreateUser)
		api.GET("/users/:id", h.GetUser)
		api.GET("/users/:id/transfer-requests", h.ListPendingTransfers)

		// 车辆
		api.GET("/vehicles", h.ListVehicles)
		api.POST("/vehicles", h.RegisterVehicle)
		api.GET("/vehicles/:id", h.GetVehicle)
		api.POST("/vehicles/:id/activate", h.ActivateVehicle)
		api.POST("/vehicles/:id/deactivate", h.DeactivateVehicle)

		// 所有权
		api.POST("/vehicles/:id/transfer", h.TransferOwnership)
		api.GET("/vehicles/:id/ownership-history", h.OwnershipHistory)
		api.POST("/vehicles/:id/transfer-requests", h.ProposeTransfer)
		api.POST("/transfer-requests/:id/approve", h.ApproveTransfer)
		api.POST("/transfer-requests/:id/reject", h.RejectTransfer)
		api.POST("/transfer-requests/:id/cancel", h.CancelTransfer)

		// 充电
		api.POST("/vehicles/:id/charging/start", h.StartCharging)
		api.POST("/vehicles/:id/charging/end", h.EndCharging)
		api.GET("/vehicles/:id/charging/sessions", h.ListChargingSessions)
		api.GET("/vehicles/:id/charging/active", h.GetActiveSession)
		api.GET("/vehicles/:id/charging/analytics", h.GetChargingAnalytics)

		// 电池、告警、主机厂数据
		api.POST("/vehicles/:id/battery", h.RecordBatteryReading)
		api.GET("/vehicles/:id/battery", h.ListBatteryReadings)
		api.GET("/vehicles/:id/battery/latest", h.GetLatestReading)
		api.GET("/vehicles/:id/battery/analytics", h.GetBatteryAnalytics)
		api.POST("/vehicles/:id/alerts", h.RecordAlert)
		api.GET("/vehicles/:id/alerts", h.ListAlerts)
		api.POST("/vehicles/:id/oem", h.RecordOEMData)
		api.GET("/vehicles/:id/oem", h.ListOEMRecords)

		// 账本
		api.GET("/ledger/transactions", h.ListTransactions)
		api.GET("/ledger/transactions/:txId", h.GetTransaction)
		api.GET("/ledger/vehicles/:id", h.ListVehicleTransactions)
		api.GET("/ledger/stats", h.LedgerStats)
	}

	// WebSocket
	r.GET("/ws", h.HandleWebSocket)

	// 健康检查
	r.GET("/health", h.HealthCheck)

	// Prometheus
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
