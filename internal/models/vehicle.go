package models

import "time"

// VehicleStatus 车辆状态
type VehicleStatus string

const (
	VehicleActive   VehicleStatus = "active"
	VehicleInactive VehicleStatus = "inactive"
)

// Vehicle 车辆信息
// OwnerID 只允许所有权转让流程修改
type Vehicle struct {
	ID        int64         `json:"id" db:"id"`
	Brand     string        `json:"brand" db:"brand"`
	Model     string        `json:"model" db:"model"`
	VIN       string        `json:"vin" db:"vin"`
	OwnerID   int64         `json:"owner_id" db:"owner_id"`
	Status    VehicleStatus `json:"status" db:"status"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// User 用户（注册与认证由外部负责，这里只做存在性校验）
type User struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
