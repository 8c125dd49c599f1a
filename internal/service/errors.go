package service

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/langchou/voltledger/internal/apperr"
	"github.com/langchou/voltledger/internal/metrics"
)

// reject 记录被拒绝的转换并原样返回
func reject(operation string, err *apperr.Error) error {
	metrics.TransitionRejectionsTotal.WithLabelValues(operation, string(err.Kind)).Inc()
	return err
}

// storageFailure 将仓库层错误包装为 StorageFailure；已分类的错误透传，哨兵补上操作名和相关 ID
func storageFailure(logger *zap.Logger, operation string, err error, kv ...any) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		if ae.Message != "" {
			return err
		}
		return apperr.WithContext(ae, operation+": "+strings.ReplaceAll(string(ae.Kind), "_", " "), kv...)
	}
	logger.Error("Storage failure", zap.String("operation", operation), zap.Error(err), zap.Any("fields", kv))
	return apperr.Storage(err, operation+": storage failure", kv...)
}

// ledgerFailure 领域变更已提交但账本写入失败
func ledgerFailure(logger *zap.Logger, operation string, err error, kv ...any) error {
	logger.Error("Transition committed but ledger append failed",
		zap.String("operation", operation),
		zap.Error(err),
		zap.Any("fields", kv),
	)
	return apperr.Storage(err, operation+": transition committed, ledger record missing", kv...)
}
