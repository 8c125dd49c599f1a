// Package memory 提供全部存储接口的内存实现，用于测试和单机运行。
// 每个操作在一把锁内完成，对调用方等价于一次原子存储操作。
package memory

import (
	"sync"

	"github.com/langchou/voltledger/internal/models"
)

type ledgerRecord struct {
	entry   models.LedgerEntry
	payload []byte
}

// Store 内存存储
type Store struct {
	mu sync.RWMutex

	seq int64

	ledger   map[string]*ledgerRecord
	vehicles map[int64]*models.Vehicle
	vins     map[string]int64
	users    map[int64]*models.User
	emails   map[string]int64

	sessions   map[int64]*models.ChargingSession
	openByCar  map[int64]int64 // vehicle_id -> 进行中会话 id
	transfers  []*models.OwnershipTransfer
	requests   map[int64]*models.TransferRequest
	readings   []*models.BatteryReading
	alerts     []*models.Alert
	oemRecords []*models.OEMRecord
}

// New 创建内存存储
func New() *Store {
	return &Store{
		ledger:    make(map[string]*ledgerRecord),
		vehicles:  make(map[int64]*models.Vehicle),
		vins:      make(map[string]int64),
		users:     make(map[int64]*models.User),
		emails:    make(map[string]int64),
		sessions:  make(map[int64]*models.ChargingSession),
		openByCar: make(map[int64]int64),
		requests:  make(map[int64]*models.TransferRequest),
	}
}

// nextID 调用方需持有写锁
func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
