package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/voltledger/internal/apperr"
	"github.com/langchou/voltledger/pkg/ws"
)

// UserIDHeader 调用方身份，由外部认证层注入
const UserIDHeader = "X-User-ID"

// respondError 按错误类别输出状态码，存储错误不暴露底层原因
func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}

	body := gin.H{
		"error": apperr.PublicMessage(err),
		"code":  apperr.KindOf(err),
	}
	if fields := apperr.PublicFields(err); len(fields) > 0 {
		body["details"] = fields
	}
	c.JSON(status, body)
}

// badRequest 请求参数错误
func (h *Handler) badRequest(c *gin.Context, msg string) {
	h.respondError(c, apperr.InvalidArgument(msg))
}

// pathID 解析路径中的数字 ID
func (h *Handler) pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		h.badRequest(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// requesterID 读取调用方用户 ID
func (h *Handler) requesterID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.GetHeader(UserIDHeader), 10, 64)
	if err != nil || id < 1 {
		h.respondError(c, apperr.InvalidArgument("Missing or invalid "+UserIDHeader+" header"))
		return 0, false
	}
	return id, true
}

// HandleWebSocket WebSocket 处理
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	client.Register()

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"ws_clients": h.wsHub.ClientCount(),
	})
}
