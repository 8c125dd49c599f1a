package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/voltledger/internal/apperr"
	"github.com/langchou/voltledger/internal/models"
	"github.com/langchou/voltledger/internal/state"
)

// OwnershipService 所有权转让管理
// 车主字段只通过 VehicleStore.ReassignOwner 的 CAS 修改，先写者胜出
type OwnershipService struct {
	vehicles  VehicleStore
	users     UserStore
	transfers TransferStore
	ledger    *Ledger
	logger    *zap.Logger

	now func() time.Time
}

// NewOwnershipService 创建转让服务
func NewOwnershipService(vehicles VehicleStore, users UserStore, transfers TransferStore, ledger *Ledger, logger *zap.Logger) *OwnershipService {
	return &OwnershipService{
		vehicles:  vehicles,
		users:     users,
		transfers: transfers,
		ledger:    ledger,
		logger:    logger,
		now:       time.Now,
	}
}

// validateTransfer 校验车辆存在、请求方为当前车主、新车主有效
func (s *OwnershipService) validateTransfer(ctx context.Context, op string, vehicleID, requesterID, newOwnerID int64) error {
	if _, err := s.vehicles.GetVehicle(ctx, vehicleID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return reject(op, apperr.NotFound("vehicle not found", "vehicleId", vehicleID))
		}
		return storageFailure(s.logger, op, err, "vehicleId", vehicleID)
	}

	// 每次重新读取车主，缩小竞争窗口
	owner, err := s.vehicles.GetOwner(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return reject(op, apperr.NotFound("vehicle not found", "vehicleId", vehicleID))
		}
		return storageFailure(s.logger, op, err, "vehicleId", vehicleID)
	}
	if owner != requesterID {
		return reject(op, apperr.Forbidden("requester is not the current owner", "vehicleId", vehicleID, "requesterId", requesterID))
	}

	if newOwnerID == requesterID {
		return reject(op, apperr.InvalidArgument("cannot transfer a vehicle to its current owner", "vehicleId", vehicleID, "newOwnerId", newOwnerID))
	}
	exists, err := s.users.UserExists(ctx, newOwnerID)
	if err != nil {
		return storageFailure(s.logger, op, err, "newOwnerId", newOwnerID)
	}
	if !exists {
		return reject(op, apperr.InvalidArgument("new owner does not exist", "newOwnerId", newOwnerID))
	}
	return nil
}

// Transfer 直接转让
func (s *OwnershipService) Transfer(ctx context.Context, vehicleID, requesterID, newOwnerID int64) (*models.OwnershipTransfer, error) {
	const op = "transfer_ownership"

	if err := s.validateTransfer(ctx, op, vehicleID, requesterID, newOwnerID); err != nil {
		return nil, err
	}

	err := s.vehicles.ReassignOwner(ctx, vehicleID, requesterID, newOwnerID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return nil, reject(op, apperr.NotFound("vehicle not found", "vehicleId", vehicleID))
	case errors.Is(err, apperr.ErrConflict):
		return nil, reject(op, apperr.Conflict("ownership changed concurrently, retry", "vehicleId", vehicleID))
	case err != nil:
		return nil, storageFailure(s.logger, op, err, "vehicleId", vehicleID)
	}

	entry, err := s.ledger.Append(ctx, models.TxOwnership, models.Payload{
		"action":        "transfer",
		"vehicleId":     vehicleID,
		"previousOwner": requesterID,
		"newOwner":      newOwnerID,
	})
	if err != nil {
		return nil, ledgerFailure(s.logger, op, err, "vehicleId", vehicleID, "newOwnerId", newOwnerID)
	}

	transfer := &models.OwnershipTransfer{
		VehicleID:     vehicleID,
		PreviousOwner: requesterID,
		NewOwner:      newOwnerID,
		TransferredAt: entry.CreatedAt,
		TxID:          entry.TxID,
	}
	if err := s.transfers.CreateTransfer(ctx, transfer); err != nil {
		return nil, storageFailure(s.logger, op, err, "vehicleId", vehicleID, "txId", entry.TxID)
	}

	s.logger.Info("Ownership transferred",
		zap.Int64("vehicle_id", vehicleID),
		zap.Int64("previous_owner", requesterID),
		zap.Int64("new_owner", newOwnerID),
		zap.String("tx_id", entry.TxID),
	)
	return transfer, nil
}

// History 车辆转让历史，最新在前
func (s *OwnershipService) History(ctx context.Context, vehicleID int64) ([]*models.OwnershipTransfer, error) {
	if _, err := s.vehicles.GetVehicle(ctx, vehicleID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("vehicle not found", "vehicleId", vehicleID)
		}
		return nil, storageFailure(s.logger, "ownership_history", err, "vehicleId", vehicleID)
	}
	transfers, err := s.transfers.ListTransfers(ctx, vehicleID)
	if err != nil {
		return nil, storageFailure(s.logger, "ownership_history", err, "vehicleId", vehicleID)
	}
	return transfers, nil
}

// Propose 当前车主发起转让请求，等待接收方审批
func (s *OwnershipService) Propose(ctx context.Context, vehicleID, requesterID, newOwnerID int64, notes string) (*models.TransferRequest, error) {
	const op = "propose_transfer"

	if err := s.validateTransfer(ctx, op, vehicleID, requesterID, newOwnerID); err != nil {
		return nil, err
	}

	req := &models.TransferRequest{
		VehicleID: vehicleID,
		FromOwner: requesterID,
		ToOwner:   newOwnerID,
		Notes:     strings.TrimSpace(notes),
		Status:    models.RequestPending,
		CreatedAt: s.now(),
	}
	if err := s.transfers.CreateRequest(ctx, req); err != nil {
		return nil, storageFailure(s.logger, op, err, "vehicleId", vehicleID)
	}

	s.logger.Info("Transfer proposed",
		zap.Int64("request_id", req.ID),
		zap.Int64("vehicle_id", vehicleID),
		zap.Int64("to_owner", newOwnerID),
	)
	return req, nil
}

// Approve 接收方审批：先 CAS 抢占请求，再调用 Transfer
func (s *OwnershipService) Approve(ctx context.Context, requestID, userID int64) (*models.TransferRequest, error) {
	const op = "approve_transfer"

	req, err := s.claimRequest(ctx, op, requestID, userID, state.EventApprove)
	if err != nil {
		return nil, err
	}

	transfer, err := s.Transfer(ctx, req.VehicleID, req.FromOwner, req.ToOwner)
	if err != nil {
		// 存储故障时车主可能已变更，保留 approved 以便人工核对
		if apperr.KindOf(err) != apperr.KindStorage {
			if ferr := s.finishRequest(ctx, req, state.EventFail, nil); ferr != nil {
				s.logger.Warn("Transfer request left approved after failed transfer",
					zap.Int64("request_id", requestID),
					zap.NamedError("transfer_error", err),
					zap.Error(ferr),
				)
				return nil, errors.Join(err, ferr)
			}
		}
		return nil, err
	}

	if err := s.finishRequest(ctx, req, state.EventComplete, &transfer.ID); err != nil {
		return nil, err
	}
	return s.getRequest(ctx, op, requestID)
}

// Reject 接收方拒绝
func (s *OwnershipService) Reject(ctx context.Context, requestID, userID int64) (*models.TransferRequest, error) {
	const op = "reject_transfer"
	if _, err := s.claimRequest(ctx, op, requestID, userID, state.EventReject); err != nil {
		return nil, err
	}
	return s.getRequest(ctx, op, requestID)
}

// Cancel 发起方撤回
func (s *OwnershipService) Cancel(ctx context.Context, requestID, userID int64) (*models.TransferRequest, error) {
	const op = "cancel_transfer"
	if _, err := s.claimRequest(ctx, op, requestID, userID, state.EventCancel); err != nil {
		return nil, err
	}
	return s.getRequest(ctx, op, requestID)
}

// ListPending 用户相关的待处理请求
func (s *OwnershipService) ListPending(ctx context.Context, userID int64) ([]*models.TransferRequest, error) {
	requests, err := s.transfers.ListPendingRequests(ctx, userID)
	if err != nil {
		return nil, storageFailure(s.logger, "list_pending_transfers", err, "userId", userID)
	}
	return requests, nil
}

func (s *OwnershipService) getRequest(ctx context.Context, op string, requestID int64) (*models.TransferRequest, error) {
	req, err := s.transfers.GetRequest(ctx, requestID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.NotFound("transfer request not found", "requestId", requestID)
	}
	if err != nil {
		return nil, storageFailure(s.logger, op, err, "requestId", requestID)
	}
	return req, nil
}

// claimRequest 校验操作人并通过 CAS 推进 pending 请求
func (s *OwnershipService) claimRequest(ctx context.Context, op string, requestID, userID int64, event string) (*models.TransferRequest, error) {
	req, err := s.getRequest(ctx, op, requestID)
	if err != nil {
		return nil, err
	}

	actor := req.ToOwner
	if event == state.EventCancel {
		actor = req.FromOwner
	}
	if userID != actor {
		return nil, reject(op, apperr.Forbidden("user may not "+event+" this request", "requestId", requestID, "userId", userID))
	}

	next, err := state.NewTransferRequestMachine(req.Status).Trigger(event)
	if err != nil {
		return nil, reject(op, apperr.Conflict("transfer request is "+req.Status, "requestId", requestID))
	}

	var resolvedAt *time.Time
	if next != models.RequestApproved {
		now := s.now()
		resolvedAt = &now
	}
	err = s.transfers.UpdateRequestStatus(ctx, requestID, req.Status, next, resolvedAt, nil)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return nil, apperr.NotFound("transfer request not found", "requestId", requestID)
	case errors.Is(err, apperr.ErrConflict):
		return nil, reject(op, apperr.Conflict("transfer request changed concurrently", "requestId", requestID))
	case err != nil:
		return nil, storageFailure(s.logger, op, err, "requestId", requestID)
	}

	s.logger.Info("Transfer request updated",
		zap.Int64("request_id", requestID),
		zap.String("from", req.Status),
		zap.String("to", next),
	)
	req.Status = next
	req.ResolvedAt = resolvedAt
	return req, nil
}

// finishRequest approved -> completed | failed
func (s *OwnershipService) finishRequest(ctx context.Context, req *models.TransferRequest, event string, transferID *int64) error {
	next, err := state.NewTransferRequestMachine(req.Status).Trigger(event)
	if err != nil {
		return apperr.Conflict("transfer request is "+req.Status, "requestId", req.ID)
	}

	now := s.now()
	if err := s.transfers.UpdateRequestStatus(ctx, req.ID, req.Status, next, &now, transferID); err != nil {
		s.logger.Error("Failed to resolve transfer request",
			zap.Int64("request_id", req.ID),
			zap.String("to", next),
			zap.Error(err),
		)
		return storageFailure(s.logger, "resolve_transfer_request", err, "requestId", req.ID)
	}
	req.Status = next
	req.ResolvedAt = &now
	return nil
}
