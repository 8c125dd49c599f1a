package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/langchou/voltledger/internal/apperr"
	"github.com/langchou/voltledger/internal/models"
)

// InsertEntry 插入账本条目，TxID 已存在时不写入
func (s *Store) InsertEntry(ctx context.Context, entry *models.LedgerEntry) error {
	payload, err := models.EncodePayload(entry.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ledger[entry.TxID]; ok {
		return apperr.ErrConflict
	}
	rec := &ledgerRecord{entry: *entry, payload: payload}
	rec.entry.Payload = nil
	s.ledger[entry.TxID] = rec
	return nil
}

func (r *ledgerRecord) materialize() (*models.LedgerEntry, error) {
	e := r.entry
	p, err := models.DecodePayload(r.payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	e.Payload = p
	return &e, nil
}

// GetEntry 按交易 ID 获取
func (s *Store) GetEntry(ctx context.Context, txID string) (*models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.ledger[txID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return rec.materialize()
}

// ListEntries 过滤、排序并分页
func (s *Store) ListEntries(ctx context.Context, filter models.LedgerFilter, limit, offset int) ([]*models.LedgerEntry, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*models.LedgerEntry, 0, len(s.ledger))
	for _, rec := range s.ledger {
		e, err := rec.materialize()
		if err != nil {
			return nil, 0, err
		}
		if filter.Matches(e) {
			matched = append(matched, e)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.TxID > b.TxID
	})

	total := int64(len(matched))
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []*models.LedgerEntry{}, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

// CountEntriesByType 按类型统计
func (s *Store) CountEntriesByType(ctx context.Context) (map[models.TxType]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.TxType]int64)
	for _, rec := range s.ledger {
		counts[rec.entry.Type]++
	}
	return counts, nil
}
