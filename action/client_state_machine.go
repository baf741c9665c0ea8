package action

import (
	"container/list"
	"fmt"
	"reflect"
	"sync"

	modular "github.com/edwinhayes/logrus-modular"

	"github.com/goalwire/goalwire/msgs"
)

// commStateMachine tracks one goal's communication state against the
// server's advertised status. A single mutex guards all mutable state
// and is held for the full duration of every update and query,
// including user callback invocations, so callers observe transitions
// atomically with the state change. Callbacks must therefore not
// re-enter this goal's handle; they may operate on other handles.
type commStateMachine struct {
	spec         *ActionSpec
	actionGoal   ActionGoal
	goalID       msgs.GoalID
	state        CommState
	latestStatus *msgs.GoalStatus
	latestResult ActionResult
	transitionCb interface{}
	feedbackCb   interface{}
	logger       *modular.ModuleLogger
	mutex        sync.Mutex
}

func newCommStateMachine(spec *ActionSpec, ag ActionGoal, transitionCb, feedbackCb interface{}, logger *modular.ModuleLogger) *commStateMachine {
	return &commStateMachine{
		spec:         spec,
		actionGoal:   ag,
		goalID:       ag.GetGoalID(),
		state:        WaitingForGoalAck,
		transitionCb: transitionCb,
		feedbackCb:   feedbackCb,
		logger:       logger,
	}
}

// findGoalStatus scans a status array for the entry matching the given
// goal id.
func findGoalStatus(statusArr *msgs.GoalStatusArray, id string) (msgs.GoalStatus, bool) {
	for _, st := range statusArr.StatusList {
		if st.GoalID.ID == id {
			return st, true
		}
	}
	return msgs.GoalStatus{}, false
}

func (sm *commStateMachine) getState() CommState {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	return sm.state
}

func (sm *commStateMachine) getGoalStatus() *msgs.GoalStatus {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if sm.latestStatus == nil {
		return nil
	}
	st := *sm.latestStatus
	return &st
}

func (sm *commStateMachine) getResult() msgs.Message {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if sm.latestResult == nil {
		return nil
	}
	return sm.spec.ResultOf(sm.latestResult)
}

// getTerminalState maps the latest server status onto a terminal status
// code. Defined for a machine in Done; asked earlier, or with the
// latest status still non-terminal, it reports Lost.
func (sm *commStateMachine) getTerminalState() uint8 {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	logger := *sm.logger
	if sm.state != Done {
		logger.Warnf("[CSM] asking for terminal state when we are in %v", sm.state)
	}

	if sm.latestStatus != nil {
		switch sm.latestStatus.Status {
		case msgs.Preempted, msgs.Succeeded, msgs.Aborted, msgs.Rejected, msgs.Recalled, msgs.Lost:
			return sm.latestStatus.Status
		}
		logger.Errorf("[CSM] asking for terminal state when latest status is %s", msgs.StatusString(sm.latestStatus.Status))
	}
	return msgs.Lost
}

// transitionTo enters a state explicitly; used by cancel to advance to
// WaitingForCancelAck ahead of the server.
func (sm *commStateMachine) transitionTo(state CommState, gh *ClientGoalHandler) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sm.transitionToLocked(state, gh)
}

func (sm *commStateMachine) transitionToLocked(state CommState, gh *ClientGoalHandler) {
	logger := *sm.logger
	logger.Debugf("[CSM] goal %s: %v -> %v", sm.goalID.ID, sm.state, state)
	sm.state = state

	if sm.transitionCb == nil || gh == nil || !gh.IsActive() {
		return
	}

	fun := reflect.ValueOf(sm.transitionCb)
	args := []reflect.Value{reflect.ValueOf(gh), reflect.ValueOf(state)}
	numArgsNeeded := fun.Type().NumIn()

	if numArgsNeeded <= 2 {
		fun.Call(args[:numArgsNeeded])
	}
}

// updateStatus interprets one status array against the current state
// and walks the resulting transition sequence.
func (sm *commStateMachine) updateStatus(statusArr *msgs.GoalStatusArray, gh *ClientGoalHandler) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sm.updateStatusLocked(statusArr, gh)
}

func (sm *commStateMachine) updateStatusLocked(statusArr *msgs.GoalStatusArray, gh *ClientGoalHandler) {
	logger := *sm.logger

	status, found := findGoalStatus(statusArr, sm.goalID.ID)
	if !found {
		// The server no longer advertises this goal. Before the first
		// ack, after the terminal status, or once done that is
		// expected; anywhere else the goal is lost.
		if sm.state != WaitingForGoalAck &&
			sm.state != WaitingForResult &&
			sm.state != Done {

			logger.Warnf("[CSM] goal %s not in status list, transitioning to LOST", sm.goalID.ID)
			sm.markLost()
			sm.transitionToLocked(Done, gh)
		}
		return
	}

	if sm.state == Done {
		return
	}

	st := status
	sm.latestStatus = &st

	nextStates, err := sm.transitions(status.Status)
	if err != nil {
		logger.Errorf("[CSM] goal %s: %v", sm.goalID.ID, err)
	}

	for e := nextStates.Front(); e != nil; e = e.Next() {
		sm.transitionToLocked(e.Value.(CommState), gh)
	}
}

// updateResult records the terminal result, replays any elided
// intermediate transitions through the status path, and enters Done.
func (sm *commStateMachine) updateResult(result ActionResult, gh *ClientGoalHandler) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	status := result.GetStatus()
	if !status.GoalID.Equal(sm.goalID) {
		return
	}

	logger := *sm.logger
	if sm.state == Done {
		logger.Errorf("[CSM] goal %s: got a result when we are already in DONE", sm.goalID.ID)
		return
	}

	st := status
	sm.latestStatus = &st
	sm.latestResult = result

	statusArr := &msgs.GoalStatusArray{StatusList: []msgs.GoalStatus{status}}
	sm.updateStatusLocked(statusArr, gh)

	sm.transitionToLocked(Done, gh)
}

// updateFeedback delivers feedback to the user callback. Feedback does
// not modify state.
func (sm *commStateMachine) updateFeedback(feedback ActionFeedback, gh *ClientGoalHandler) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if !feedback.GetStatus().GoalID.Equal(sm.goalID) {
		return
	}

	if sm.feedbackCb == nil || gh == nil || !gh.IsActive() {
		return
	}

	fun := reflect.ValueOf(sm.feedbackCb)
	args := []reflect.Value{reflect.ValueOf(gh), reflect.ValueOf(sm.spec.FeedbackOf(feedback))}
	numArgsNeeded := fun.Type().NumIn()

	if numArgsNeeded == 2 {
		fun.Call(args)
	}
}

// markLost overwrites the latest status with a synthesized LOST entry.
func (sm *commStateMachine) markLost() {
	if sm.latestStatus == nil {
		sm.latestStatus = &msgs.GoalStatus{GoalID: sm.goalID}
	}
	sm.latestStatus.Status = msgs.Lost
}

// transitions returns the ordered sequence of states to enter for one
// advertised server status. An empty list with a nil error is a no-op;
// a non-nil error is a protocol violation (or an unknown status code)
// and leaves the state unchanged.
func (sm *commStateMachine) transitions(status uint8) (stateList list.List, err error) {
	if status > msgs.Recalled {
		err = fmt.Errorf("unknown server status code %d", status)
		return
	}

	switch sm.state {
	case WaitingForGoalAck:
		switch status {
		case msgs.Pending:
			stateList.PushBack(Pending)
		case msgs.Active:
			stateList.PushBack(Active)
		case msgs.Preempted:
			stateList.PushBack(Active)
			stateList.PushBack(Preempting)
			stateList.PushBack(WaitingForResult)
		case msgs.Succeeded:
			stateList.PushBack(Active)
			stateList.PushBack(WaitingForResult)
		case msgs.Aborted:
			stateList.PushBack(Active)
			stateList.PushBack(WaitingForResult)
		case msgs.Rejected:
			stateList.PushBack(Pending)
			stateList.PushBack(WaitingForResult)
		case msgs.Preempting:
			stateList.PushBack(Active)
			stateList.PushBack(Preempting)
		case msgs.Recalling:
			stateList.PushBack(Pending)
			stateList.PushBack(Recalling)
		case msgs.Recalled:
			stateList.PushBack(Pending)
			stateList.PushBack(WaitingForResult)
		}

	case Pending:
		switch status {
		case msgs.Pending:
		case msgs.Active:
			stateList.PushBack(Active)
		case msgs.Preempted:
			stateList.PushBack(Active)
			stateList.PushBack(Preempting)
			stateList.PushBack(WaitingForResult)
		case msgs.Succeeded:
			stateList.PushBack(Active)
			stateList.PushBack(WaitingForResult)
		case msgs.Aborted:
			stateList.PushBack(Active)
			stateList.PushBack(WaitingForResult)
		case msgs.Rejected:
			stateList.PushBack(WaitingForResult)
		case msgs.Preempting:
			stateList.PushBack(Active)
			stateList.PushBack(Preempting)
		case msgs.Recalling:
			stateList.PushBack(Recalling)
		case msgs.Recalled:
			stateList.PushBack(Recalling)
			stateList.PushBack(WaitingForResult)
		}

	case Active:
		switch status {
		case msgs.Pending:
			err = fmt.Errorf("invalid transition from ACTIVE to PENDING")
		case msgs.Active:
		case msgs.Preempted:
			stateList.PushBack(Preempting)
			stateList.PushBack(WaitingForResult)
		case msgs.Succeeded:
			stateList.PushBack(WaitingForResult)
		case msgs.Aborted:
			stateList.PushBack(WaitingForResult)
		case msgs.Rejected:
			err = fmt.Errorf("invalid transition from ACTIVE to REJECTED")
		case msgs.Preempting:
			stateList.PushBack(Preempting)
		case msgs.Recalling:
			err = fmt.Errorf("invalid transition from ACTIVE to RECALLING")
		case msgs.Recalled:
			err = fmt.Errorf("invalid transition from ACTIVE to RECALLED")
		}

	case WaitingForResult:
		switch status {
		case msgs.Pending:
			err = fmt.Errorf("invalid transition from WAITING_FOR_RESULT to PENDING")
		case msgs.Active:
		case msgs.Preempted:
		case msgs.Succeeded:
		case msgs.Aborted:
		case msgs.Rejected:
		case msgs.Preempting:
			err = fmt.Errorf("invalid transition from WAITING_FOR_RESULT to PREEMPTING")
		case msgs.Recalling:
			err = fmt.Errorf("invalid transition from WAITING_FOR_RESULT to RECALLING")
		case msgs.Recalled:
		}

	case WaitingForCancelAck:
		switch status {
		case msgs.Pending:
		case msgs.Active:
		case msgs.Preempted:
			stateList.PushBack(Preempting)
			stateList.PushBack(WaitingForResult)
		case msgs.Succeeded:
			stateList.PushBack(Preempting)
			stateList.PushBack(WaitingForResult)
		case msgs.Aborted:
			stateList.PushBack(Preempting)
			stateList.PushBack(WaitingForResult)
		case msgs.Rejected:
			stateList.PushBack(WaitingForResult)
		case msgs.Preempting:
			stateList.PushBack(Preempting)
		case msgs.Recalling:
			stateList.PushBack(Recalling)
		case msgs.Recalled:
			stateList.PushBack(Recalling)
			stateList.PushBack(WaitingForResult)
		}

	case Recalling:
		switch status {
		case msgs.Pending:
			err = fmt.Errorf("invalid transition from RECALLING to PENDING")
		case msgs.Active:
			err = fmt.Errorf("invalid transition from RECALLING to ACTIVE")
		case msgs.Preempted:
			stateList.PushBack(Preempting)
			stateList.PushBack(WaitingForResult)
		case msgs.Succeeded:
			stateList.PushBack(Preempting)
			stateList.PushBack(WaitingForResult)
		case msgs.Aborted:
			stateList.PushBack(Preempting)
			stateList.PushBack(WaitingForResult)
		case msgs.Rejected:
			stateList.PushBack(WaitingForResult)
		case msgs.Preempting:
			stateList.PushBack(Preempting)
		case msgs.Recalling:
		case msgs.Recalled:
			stateList.PushBack(WaitingForResult)
		}

	case Preempting:
		switch status {
		case msgs.Pending:
			err = fmt.Errorf("invalid transition from PREEMPTING to PENDING")
		case msgs.Active:
			err = fmt.Errorf("invalid transition from PREEMPTING to ACTIVE")
		case msgs.Preempted:
			stateList.PushBack(WaitingForResult)
		case msgs.Succeeded:
			stateList.PushBack(WaitingForResult)
		case msgs.Aborted:
			stateList.PushBack(WaitingForResult)
		case msgs.Rejected:
			err = fmt.Errorf("invalid transition from PREEMPTING to REJECTED")
		case msgs.Preempting:
		case msgs.Recalling:
			err = fmt.Errorf("invalid transition from PREEMPTING to RECALLING")
		case msgs.Recalled:
			err = fmt.Errorf("invalid transition from PREEMPTING to RECALLED")
		}

	case Done:
		switch status {
		case msgs.Pending:
			err = fmt.Errorf("invalid transition from DONE to PENDING")
		case msgs.Active:
		case msgs.Preempted:
		case msgs.Succeeded:
		case msgs.Aborted:
		case msgs.Rejected:
		case msgs.Preempting:
			err = fmt.Errorf("invalid transition from DONE to PREEMPTING")
		case msgs.Recalling:
			err = fmt.Errorf("invalid transition from DONE to RECALLING")
		case msgs.Recalled:
		}
	}

	return
}
