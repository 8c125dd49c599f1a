package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/langchou/voltledger/internal/apperr"
	"github.com/langchou/voltledger/internal/models"
)

// LedgerRepository 账本数据仓库，只提供插入和查询
type LedgerRepository struct {
	db *DB
}

// NewLedgerRepository 创建账本仓库
func NewLedgerRepository(db *DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// InsertEntry 插入账本条目，tx_id 冲突时不写入并返回 apperr.ErrConflict
func (r *LedgerRepository) InsertEntry(ctx context.Context, e *models.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (tx_id, type, status, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tx_id) DO NOTHING
	`
	tag, err := r.db.Pool.Exec(ctx, query,
		e.TxID,
		string(e.Type),
		string(e.Status),
		e.Payload,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrConflict
	}
	return nil
}

// GetEntry 通过交易 ID 获取
func (r *LedgerRepository) GetEntry(ctx context.Context, txID string) (*models.LedgerEntry, error) {
	query := `
		SELECT tx_id, type, status, payload, created_at
		FROM ledger_entries WHERE tx_id = $1
	`
	e := &models.LedgerEntry{}
	err := r.db.Pool.QueryRow(ctx, query, txID).Scan(
		&e.TxID,
		&e.Type,
		&e.Status,
		&e.Payload,
		&e.CreatedAt,
	)
	if isNoRows(err) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return e, nil
}

// buildLedgerWhere 根据过滤条件生成 WHERE 子句
func buildLedgerWhere(filter models.LedgerFilter) (string, []any) {
	var conds []string
	var args []any
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.PayloadKey != "" {
		args = append(args, filter.PayloadKey, filter.PayloadValue)
		conds = append(conds, fmt.Sprintf("payload->>$%d = $%d", len(args)-1, len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListEntries 按创建时间倒序分页，limit <= 0 表示全部
func (r *LedgerRepository) ListEntries(ctx context.Context, filter models.LedgerFilter, limit, offset int) ([]*models.LedgerEntry, int64, error) {
	where, args := buildLedgerWhere(filter)

	var total int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_entries`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}
	if offset > 0 && int64(offset) >= total {
		return []*models.LedgerEntry{}, total, nil
	}

	query := `SELECT tx_id, type, status, payload, created_at FROM ledger_entries` + where +
		` ORDER BY created_at DESC, tx_id DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := []*models.LedgerEntry{}
	for rows.Next() {
		e := &models.LedgerEntry{}
		if err := rows.Scan(&e.TxID, &e.Type, &e.Status, &e.Payload, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate ledger entries: %w", err)
	}

	return entries, total, nil
}

// CountEntriesByType 按类型统计
func (r *LedgerRepository) CountEntriesByType(ctx context.Context) (map[models.TxType]int64, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT type, COUNT(*) FROM ledger_entries GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("count ledger entries by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.TxType]int64)
	for rows.Next() {
		var typ string
		var n int64
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scan ledger count: %w", err)
		}
		counts[models.TxType(typ)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger counts: %w", err)
	}
	return counts, nil
}
