package models

import "time"

// OwnershipTransfer 已完成的所有权转让记录，创建后不可变
type OwnershipTransfer struct {
	ID            int64     `json:"id" db:"id"`
	VehicleID     int64     `json:"vehicle_id" db:"vehicle_id"`
	PreviousOwner int64     `json:"previous_owner" db:"previous_owner"`
	NewOwner      int64     `json:"new_owner" db:"new_owner"`
	TransferredAt time.Time `json:"transferred_at" db:"transferred_at"`
	TxID          string    `json:"tx_id" db:"tx_id"`
}

// 转让请求状态
const (
	RequestPending   = "pending"
	RequestApproved  = "approved"
	RequestCompleted = "completed"
	RequestFailed    = "failed"
	RequestRejected  = "rejected"
	RequestCancelled = "cancelled"
)

// TransferRequest 待审批的转让请求，审批通过后调用直接转让
type TransferRequest struct {
	ID         int64      `json:"id" db:"id"`
	VehicleID  int64      `json:"vehicle_id" db:"vehicle_id"`
	FromOwner  int64      `json:"from_owner" db:"from_owner"`
	ToOwner    int64      `json:"to_owner" db:"to_owner"`
	Notes      string     `json:"notes,omitempty" db:"notes"`
	Status     string     `json:"status" db:"status"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	TransferID *int64     `json:"transfer_id,omitempty" db:"transfer_id"`
}
