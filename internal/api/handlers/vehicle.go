package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/langchou/voltledger/internal/service"
)

type createUserRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required"`
}

type registerVehicleRequest struct {
	Brand   string `json:"brand" binding:"required"`
	Model   string `json:"model" binding:"required"`
	VIN     string `json:"vin" binding:"required"`
	OwnerID int64  `json:"owner_id" binding:"required"`
}

// CreateUser 创建用户
func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body")
		return
	}

	user, err := h.vehicles.CreateUser(c.Request.Context(), req.Name, req.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": user})
}

// GetUser 获取用户
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	user, err := h.vehicles.GetUser(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user})
}

// ListVehicles 获取车辆列表
func (h *Handler) ListVehicles(c *gin.Context) {
	vehicles, err := h.vehicles.List(c.Request.Context(), c.Query("brand"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": vehicles})
}

// RegisterVehicle 登记车辆
func (h *Handler) RegisterVehicle(c *gin.Context) {
	var req registerVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body")
		return
	}

	vehicle, err := h.vehicles.Register(c.Request.Context(), service.RegisterVehicleInput{
		Brand:   req.Brand,
		Model:   req.Model,
		VIN:     req.VIN,
		OwnerID: req.OwnerID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": vehicle})
}

// GetVehicle 获取车辆详情
func (h *Handler) GetVehicle(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	vehicle, err := h.vehicles.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": vehicle})
}

// ActivateVehicle 启用车辆
func (h *Handler) ActivateVehicle(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	vehicle, err := h.vehicles.Activate(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": vehicle})
}

// DeactivateVehicle 停用车辆
func (h *Handler) DeactivateVehicle(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	vehicle, err := h.vehicles.Deactivate(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": vehicle})
}
