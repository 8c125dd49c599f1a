package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TxType 账本交易类型
type TxType string

const (
	TxBattery   TxType = "battery"
	TxCharging  TxType = "charging"
	TxOwnership TxType = "ownership"
	TxAlert     TxType = "alert"
	TxOEM       TxType = "oem"
)

// TxTypes 全部交易类型
var TxTypes = []TxType{TxBattery, TxCharging, TxOwnership, TxAlert, TxOEM}

// Valid 是否为已知类型
func (t TxType) Valid() bool {
	for _, v := range TxTypes {
		if t == v {
			return true
		}
	}
	return false
}

// TxStatus 交易状态；当前只产生 confirmed，pending/failed 保留给异步后端
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
)

// Payload 交易负载（任意结构化数据）
type Payload map[string]any

// EncodePayload 序列化负载
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		p = Payload{}
	}
	return json.Marshal(p)
}

// DecodePayload 反序列化负载，数字保留为 json.Number 以保证往返一致
func DecodePayload(data []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	p := Payload{}
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	return p, nil
}

// NormalizePayload 将负载转换为存储后读回的形态
func NormalizePayload(p Payload) (Payload, error) {
	data, err := EncodePayload(p)
	if err != nil {
		return nil, err
	}
	return DecodePayload(data)
}

// Value 实现 driver.Valuer 接口，用于存储到 JSONB 列
func (p Payload) Value() (driver.Value, error) {
	data, err := EncodePayload(p)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan 实现 sql.Scanner 接口，用于从数据库读取
func (p *Payload) Scan(value interface{}) error {
	if value == nil {
		*p = Payload{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan payload: unsupported type %T", value)
	}
	decoded, err := DecodePayload(data)
	if err != nil {
		return fmt.Errorf("scan payload: %w", err)
	}
	*p = decoded
	return nil
}

// LedgerEntry 账本条目，创建后不可修改、不可删除
type LedgerEntry struct {
	TxID      string    `json:"tx_id" db:"tx_id"`
	Type      TxType    `json:"type" db:"type"`
	Status    TxStatus  `json:"status" db:"status"`
	Payload   Payload   `json:"payload" db:"payload"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// LedgerFilter 账本查询条件，零值字段不参与过滤
type LedgerFilter struct {
	Type         TxType
	PayloadKey   string
	PayloadValue string
}

// VehicleFilter 按负载中的 vehicleId 过滤
func VehicleFilter(vehicleID int64) LedgerFilter {
	return LedgerFilter{PayloadKey: "vehicleId", PayloadValue: fmt.Sprint(vehicleID)}
}

// Matches 内存实现使用的过滤判断
func (f LedgerFilter) Matches(e *LedgerEntry) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.PayloadKey != "" {
		v, ok := e.Payload[f.PayloadKey]
		if !ok || v == nil {
			return false
		}
		if fmt.Sprint(v) != f.PayloadValue {
			return false
		}
	}
	return true
}

// TransactionPage 分页交易列表
type TransactionPage struct {
	Entries    []*LedgerEntry `json:"entries"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	Total      int64          `json:"total"`
	TotalPages int            `json:"total_pages"`
}
