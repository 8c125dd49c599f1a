package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/langchou/voltledger/internal/apperr"
	"github.com/langchou/voltledger/internal/models"
)

// QueryService 账本只读查询
type QueryService struct {
	store           LedgerStore
	logger          *zap.Logger
	defaultPageSize int
	maxPageSize     int
}

// NewQueryService 创建查询服务
func NewQueryService(store LedgerStore, logger *zap.Logger, defaultPageSize, maxPageSize int) *QueryService {
	if maxPageSize < 1 {
		maxPageSize = 100
	}
	if defaultPageSize < 1 || defaultPageSize > maxPageSize {
		defaultPageSize = min(20, maxPageSize)
	}
	return &QueryService{
		store:           store,
		logger:          logger,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

// ListTransactions 分页交易列表
// page < 1 按 1 处理；pageSize < 1 使用默认值，超过上限时截断
func (s *QueryService) ListTransactions(ctx context.Context, page, pageSize int, typeFilter string) (*models.TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = s.defaultPageSize
	}
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}

	var filter models.LedgerFilter
	if t := strings.ToLower(strings.TrimSpace(typeFilter)); t != "" {
		filter.Type = models.TxType(t)
		if !filter.Type.Valid() {
			return nil, apperr.InvalidArgument("unknown transaction type", "type", typeFilter)
		}
	}

	entries, total, err := s.store.ListEntries(ctx, filter, pageSize, pageOffset(page, pageSize))
	if err != nil {
		return nil, storageFailure(s.logger, "list_transactions", err)
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &models.TransactionPage{
		Entries:    entries,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// pageOffset 第 page 页的偏移量；溢出时返回 math.MaxInt，存储层返回空页
func pageOffset(page, pageSize int) int {
	if page-1 > math.MaxInt/pageSize {
		return math.MaxInt
	}
	return (page - 1) * pageSize
}

// ListByVehicle 负载中 vehicleId 匹配的全部条目，最新在前
func (s *QueryService) ListByVehicle(ctx context.Context, vehicleID int64) ([]*models.LedgerEntry, error) {
	entries, _, err := s.store.ListEntries(ctx, models.VehicleFilter(vehicleID), 0, 0)
	if err != nil {
		return nil, storageFailure(s.logger, "list_vehicle_transactions", err, "vehicleId", vehicleID)
	}
	return entries, nil
}

// CountsByType 各类型条目数，没有条目的类型计为 0
func (s *QueryService) CountsByType(ctx context.Context) (map[models.TxType]int64, error) {
	counts, err := s.store.CountEntriesByType(ctx)
	if err != nil {
		return nil, storageFailure(s.logger, "count_transactions", err)
	}
	out := make(map[models.TxType]int64, len(models.TxTypes))
	for _, t := range models.TxTypes {
		out[t] = counts[t]
	}
	return out, nil
}

// GetTransaction 通过交易 ID 获取
func (s *QueryService) GetTransaction(ctx context.Context, txID string) (*models.LedgerEntry, error) {
	entry, err := s.store.GetEntry(ctx, strings.TrimSpace(txID))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.NotFound("transaction not found", "txId", txID)
	}
	if err != nil {
		return nil, storageFailure(s.logger, "get_transaction", err, "txId", txID)
	}
	return entry, nil
}
