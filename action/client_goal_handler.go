package action

import (
	"sync/atomic"

	modular "github.com/edwinhayes/logrus-modular"

	"github.com/goalwire/goalwire/msgs"
)

// ClientGoalHandler is the caller's reference to one in-flight goal. It
// is created active; Shutdown makes it inert. Operations on an inactive
// handle are logged and return safe defaults, they never crash.
type ClientGoalHandler struct {
	manager      *GoalManager
	stateMachine *commStateMachine
	actionGoalID msgs.GoalID
	active       atomic.Bool
	logger       *modular.ModuleLogger
}

func newClientGoalHandler(gm *GoalManager, sm *commStateMachine) *ClientGoalHandler {
	gh := &ClientGoalHandler{
		manager:      gm,
		stateMachine: sm,
		actionGoalID: sm.goalID,
		logger:       gm.logger,
	}
	gh.active.Store(true)
	return gh
}

// GoalID returns the identifier of the tracked goal.
func (gh *ClientGoalHandler) GoalID() msgs.GoalID {
	return gh.actionGoalID
}

// IsActive reports whether the handle still delivers callbacks and
// accepts operations.
func (gh *ClientGoalHandler) IsActive() bool {
	return gh.active.Load()
}

// GetCommState returns the goal's communication state. On an inactive
// handle it reports Done.
func (gh *ClientGoalHandler) GetCommState() CommState {
	if !gh.IsActive() {
		logger := *gh.logger
		logger.Errorf("[GoalHandler] %v: trying to get state on an inactive goal handle", ErrInactiveHandle)
		return Done
	}

	return gh.stateMachine.getState()
}

// GetGoalStatus returns the latest server status observed for this
// goal, or Lost if none has arrived yet.
func (gh *ClientGoalHandler) GetGoalStatus() uint8 {
	if !gh.IsActive() {
		logger := *gh.logger
		logger.Errorf("[GoalHandler] %v: trying to get goal status on an inactive goal handle", ErrInactiveHandle)
		return msgs.Lost
	}

	status := gh.stateMachine.getGoalStatus()
	if status == nil {
		return msgs.Lost
	}
	return status.Status
}

// GetGoalStatusText returns the human text of the latest server status.
func (gh *ClientGoalHandler) GetGoalStatusText() string {
	if !gh.IsActive() {
		logger := *gh.logger
		logger.Errorf("[GoalHandler] %v: trying to get goal status text on an inactive goal handle", ErrInactiveHandle)
		return ""
	}

	status := gh.stateMachine.getGoalStatus()
	if status == nil {
		return ""
	}
	return status.Text
}

// GetTerminalState maps the goal's terminal server status onto a status
// code. Asking before the goal is done is answered (with a warning) per
// the latest status; an inactive handle reports Lost.
func (gh *ClientGoalHandler) GetTerminalState() uint8 {
	if !gh.IsActive() {
		logger := *gh.logger
		logger.Errorf("[GoalHandler] %v: trying to get terminal state on an inactive goal handle", ErrInactiveHandle)
		return msgs.Lost
	}

	return gh.stateMachine.getTerminalState()
}

// GetResult returns the unpacked user result, or nil while no result
// has arrived.
func (gh *ClientGoalHandler) GetResult() msgs.Message {
	if !gh.IsActive() {
		logger := *gh.logger
		logger.Errorf("[GoalHandler] %v: trying to get result on an inactive goal handle", ErrInactiveHandle)
		return nil
	}

	return gh.stateMachine.getResult()
}

// Resend republishes the original goal envelope, original id and stamp
// included. The server is expected to treat the repeat as idempotent.
func (gh *ClientGoalHandler) Resend() error {
	logger := *gh.logger
	if !gh.IsActive() {
		logger.Errorf("[GoalHandler] %v: trying to call resend on an inactive goal handle", ErrInactiveHandle)
		return ErrInactiveHandle
	}

	ag := gh.stateMachine.actionGoal
	if ag == nil {
		logger.Errorf("[GoalHandler] %v", ErrNoGoal)
		return ErrNoGoal
	}

	gh.manager.publishGoal(ag)
	return nil
}

// Cancel publishes a cancel message bearing this goal's id and
// optimistically advances the local state to WaitingForCancelAck. The
// server drives the rest of the lifecycle through subsequent status and
// result messages.
func (gh *ClientGoalHandler) Cancel() error {
	if !gh.IsActive() {
		logger := *gh.logger
		logger.Errorf("[GoalHandler] %v: trying to call cancel on an inactive goal handle", ErrInactiveHandle)
		return ErrInactiveHandle
	}

	gh.manager.SendCancel(msgs.GoalID{ID: gh.actionGoalID.ID})
	gh.stateMachine.transitionTo(WaitingForCancelAck, gh)
	return nil
}

// Shutdown deactivates the handle; no callbacks fire for it afterwards.
// With deleteFromManager set the manager forgets the handle entirely.
// Calling Shutdown twice is safe; the second call is a no-op.
func (gh *ClientGoalHandler) Shutdown(deleteFromManager bool) {
	if !gh.active.CompareAndSwap(true, false) {
		return
	}

	if deleteFromManager {
		gh.manager.DeleteGoalHandler(gh)
	}
}
