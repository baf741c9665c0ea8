package action

import (
	"sync"

	modular "github.com/edwinhayes/logrus-modular"

	"github.com/goalwire/goalwire/msgs"
	"github.com/goalwire/goalwire/transport"
)

// GoalManager owns the set of live goal handles for one client. It
// publishes outgoing goal and cancel messages and fans each incoming
// status array, feedback and result out to every live goal's state
// machine. Fan-out is serialized per handle by the handle's own state
// machine mutex; the manager itself imposes no cross-handle ordering.
type GoalManager struct {
	spec          *ActionSpec
	goalPub       transport.Publisher
	cancelPub     transport.Publisher
	handlers      []*ClientGoalHandler
	handlersMutex sync.RWMutex
	goalIDGen     *goalIDGenerator
	logger        *modular.ModuleLogger
}

// NewGoalManager creates a manager publishing through the given goal
// and cancel publishers. nodeName seeds the goal-id generator.
func NewGoalManager(spec *ActionSpec, goalPub, cancelPub transport.Publisher, nodeName string, logger *modular.ModuleLogger) (*GoalManager, error) {
	if !spec.IsValid() {
		return nil, ErrInvalidSpec
	}

	return &GoalManager{
		spec:      spec,
		goalPub:   goalPub,
		cancelPub: cancelPub,
		goalIDGen: newGoalIDGenerator(nodeName),
		logger:    logger,
	}, nil
}

// SendGoal packs a user goal into an envelope with a generated id,
// publishes it, and returns the handle tracking it.
func (gm *GoalManager) SendGoal(goal msgs.Message, transitionCb, feedbackCb interface{}) *ClientGoalHandler {
	return gm.SendGoalWithID(goal, msgs.GoalID{}, transitionCb, feedbackCb)
}

// SendGoalWithID is SendGoal with a caller-supplied goal id. An empty
// id is replaced with a generated one; a zero id stamp is stamped with
// now.
func (gm *GoalManager) SendGoalWithID(goal msgs.Message, goalID msgs.GoalID, transitionCb, feedbackCb interface{}) *ClientGoalHandler {
	if goalID.ID == "" {
		goalID = gm.goalIDGen.generateID()
	}
	if goalID.Stamp.IsZero() {
		goalID.Stamp = msgs.Now()
	}

	ag := gm.spec.NewActionGoal(goal, msgs.Now(), goalID)
	gm.publishGoal(ag)

	sm := newCommStateMachine(gm.spec, ag, transitionCb, feedbackCb, gm.logger)
	handler := newClientGoalHandler(gm, sm)

	gm.handlersMutex.Lock()
	gm.handlers = append(gm.handlers, handler)
	gm.handlersMutex.Unlock()

	return handler
}

// OnStatus forwards a status array to every live goal.
func (gm *GoalManager) OnStatus(statusArr *msgs.GoalStatusArray) {
	gm.handlersMutex.RLock()
	defer gm.handlersMutex.RUnlock()

	for _, h := range gm.handlers {
		h.stateMachine.updateStatus(statusArr, h)
	}
}

// OnFeedback forwards a feedback envelope to every live goal.
func (gm *GoalManager) OnFeedback(feedback ActionFeedback) {
	gm.handlersMutex.RLock()
	defer gm.handlersMutex.RUnlock()

	for _, h := range gm.handlers {
		h.stateMachine.updateFeedback(feedback, h)
	}
}

// OnResult forwards a result envelope to every live goal.
func (gm *GoalManager) OnResult(result ActionResult) {
	gm.handlersMutex.RLock()
	defer gm.handlersMutex.RUnlock()

	for _, h := range gm.handlers {
		h.stateMachine.updateResult(result, h)
	}
}

// SendCancel publishes a cancel message for one goal id.
func (gm *GoalManager) SendCancel(goalID msgs.GoalID) {
	gm.cancelPub.Publish(&goalID)
}

// CancelAllGoals publishes the empty-id cancel that asks the server to
// cancel every goal it tracks.
func (gm *GoalManager) CancelAllGoals() {
	gm.cancelPub.Publish(&msgs.GoalID{})
}

// DeleteGoalHandler removes a handle from the live set.
func (gm *GoalManager) DeleteGoalHandler(gh *ClientGoalHandler) {
	gm.handlersMutex.Lock()
	defer gm.handlersMutex.Unlock()

	for i, h := range gm.handlers {
		if h == gh {
			gm.handlers[i] = gm.handlers[len(gm.handlers)-1]
			gm.handlers[len(gm.handlers)-1] = nil
			gm.handlers = gm.handlers[:len(gm.handlers)-1]
			break
		}
	}
}

// ShutdownHandlers deactivates every handle (each with Shutdown(false))
// and then empties the set; used by client shutdown.
func (gm *GoalManager) ShutdownHandlers() {
	gm.handlersMutex.Lock()
	defer gm.handlersMutex.Unlock()

	for _, h := range gm.handlers {
		h.Shutdown(false)
	}
	gm.handlers = nil
}

func (gm *GoalManager) publishGoal(ag ActionGoal) {
	gm.goalPub.Publish(ag)
}
