package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/langchou/voltledger/internal/apperr"
	"github.com/langchou/voltledger/internal/metrics"
	"github.com/langchou/voltledger/internal/models"
)

// maxAppendAttempts 交易 ID 冲突时最多尝试次数
const maxAppendAttempts = 5

// Notifier 账本条目写入后的通知方（WebSocket 推送）
type Notifier interface {
	PublishEntry(entry *models.LedgerEntry)
}

// Ledger 只追加账本，负责生成交易 ID
type Ledger struct {
	store    LedgerStore
	logger   *zap.Logger
	notifier Notifier

	now     func() time.Time
	newTxID func() string
}

// NewLedger 创建账本
func NewLedger(store LedgerStore, logger *zap.Logger) *Ledger {
	return &Ledger{
		store:   store,
		logger:  logger,
		now:     time.Now,
		newTxID: func() string { return uuid.NewString() },
	}
}

// SetNotifier 设置写入通知
func (l *Ledger) SetNotifier(n Notifier) {
	l.notifier = n
}

// Append 追加一条 confirmed 条目
// 交易 ID 冲突时换新 ID 重试，不向调用方暴露
func (l *Ledger) Append(ctx context.Context, typ models.TxType, payload models.Payload) (*models.LedgerEntry, error) {
	if !typ.Valid() {
		return nil, apperr.InvalidArgument("unknown ledger type", "type", string(typ))
	}
	normalized, err := models.NormalizePayload(payload)
	if err != nil {
		return nil, apperr.InvalidArgument("ledger payload is not serializable", "type", string(typ))
	}

	createdAt := l.now().UTC().Truncate(time.Microsecond)
	for attempt := 1; attempt <= maxAppendAttempts; attempt++ {
		entry := &models.LedgerEntry{
			TxID:      l.newTxID(),
			Type:      typ,
			Status:    models.TxConfirmed,
			Payload:   normalized,
			CreatedAt: createdAt,
		}

		err := l.store.InsertEntry(ctx, entry)
		if errors.Is(err, apperr.ErrConflict) {
			metrics.LedgerAppendRetriesTotal.Inc()
			l.logger.Warn("Ledger tx id collision, retrying",
				zap.String("tx_id", entry.TxID),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("append %s entry: %w", typ, err)
		}

		metrics.LedgerAppendsTotal.WithLabelValues(string(typ)).Inc()
		l.logger.Debug("Ledger entry appended", zap.String("tx_id", entry.TxID), zap.String("type", string(typ)))
		if l.notifier != nil {
			l.notifier.PublishEntry(entry)
		}
		return entry, nil
	}

	return nil, fmt.Errorf("append %s entry: no unique tx id after %d attempts", typ, maxAppendAttempts)
}
