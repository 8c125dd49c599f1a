package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"

	"github.com/langchou/voltledger/internal/models"
)

// 车辆状态事件
const (
	EventActivate   = "activate"
	EventDeactivate = "deactivate"
)

// 转让请求事件
const (
	EventApprove  = "approve"
	EventReject   = "reject"
	EventCancel   = "cancel"
	EventComplete = "complete"
	EventFail     = "fail"
)

// ErrInvalidTransition 当前状态不允许该事件
var ErrInvalidTransition = errors.New("invalid state transition")

// Machine 单条记录的状态机
// 不在进程内保存状态：每次从存储读出当前状态构建，计算出目标状态后由存储层 CAS 写回
type Machine struct {
	fsm *fsm.FSM
}

// NewVehicleStatusMachine 车辆状态机 active <-> inactive
func NewVehicleStatusMachine(current models.VehicleStatus) *Machine {
	return &Machine{
		fsm: fsm.NewFSM(
			string(current),
			fsm.Events{
				{Name: EventActivate, Src: []string{string(models.VehicleInactive)}, Dst: string(models.VehicleActive)},
				{Name: EventDeactivate, Src: []string{string(models.VehicleActive)}, Dst: string(models.VehicleInactive)},
			},
			fsm.Callbacks{},
		),
	}
}

// NewTransferRequestMachine 转让请求状态机
//
//	pending -> approved -> completed | failed
//	pending -> rejected | cancelled
func NewTransferRequestMachine(current string) *Machine {
	return &Machine{
		fsm: fsm.NewFSM(
			current,
			fsm.Events{
				{Name: EventApprove, Src: []string{models.RequestPending}, Dst: models.RequestApproved},
				{Name: EventReject, Src: []string{models.RequestPending}, Dst: models.RequestRejected},
				{Name: EventCancel, Src: []string{models.RequestPending}, Dst: models.RequestCancelled},
				{Name: EventComplete, Src: []string{models.RequestApproved}, Dst: models.RequestCompleted},
				{Name: EventFail, Src: []string{models.RequestApproved}, Dst: models.RequestFailed},
			},
			fsm.Callbacks{},
		),
	}
}

// Current 当前状态
func (m *Machine) Current() string {
	return m.fsm.Current()
}

// Can 检查是否可以转换
func (m *Machine) Can(event string) bool {
	return m.fsm.Can(event)
}

// Trigger 触发事件并返回目标状态
func (m *Machine) Trigger(event string) (string, error) {
	from := m.fsm.Current()
	if err := m.fsm.Event(context.Background(), event); err != nil {
		return "", fmt.Errorf("%w: %s from %s: %v", ErrInvalidTransition, event, from, err)
	}
	return m.fsm.Current(), nil
}
