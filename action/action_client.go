package action

import (
	"fmt"
	"sync"

	modular "github.com/edwinhayes/logrus-modular"

	"github.com/goalwire/goalwire/msgs"
	"github.com/goalwire/goalwire/transport"
)

// Client wires one action onto a transport node: publishers for the
// goal and cancel topics, subscribers for the status, feedback and
// result streams, and a goal manager fanning the streams out to every
// live goal.
type Client struct {
	node        transport.Node
	action      string
	spec        *ActionSpec
	manager     *GoalManager
	goalPub     transport.Publisher
	cancelPub   transport.Publisher
	statusSub   transport.Subscriber
	feedbackSub transport.Subscriber
	resultSub   transport.Subscriber
	logger      *modular.ModuleLogger

	stateMutex     sync.Mutex
	statusReceived bool
	callerID       string
}

// NewClient creates a client for one action name on the given node.
func NewClient(node transport.Node, action string, spec *ActionSpec, logger *modular.ModuleLogger) (*Client, error) {
	if !spec.IsValid() {
		return nil, ErrInvalidSpec
	}

	c := &Client{
		node:   node,
		action: action,
		spec:   spec,
		logger: logger,
	}

	var err error
	c.goalPub, err = node.NewPublisher(fmt.Sprintf("%s/goal", action), spec.ActionGoalType())
	if err != nil {
		return nil, err
	}
	c.cancelPub, err = node.NewPublisher(fmt.Sprintf("%s/cancel", action), msgs.GoalIDType{})
	if err != nil {
		return nil, err
	}
	c.resultSub, err = node.NewSubscriber(fmt.Sprintf("%s/result", action), spec.ActionResultType(), c.internalResultCallback)
	if err != nil {
		return nil, err
	}
	c.feedbackSub, err = node.NewSubscriber(fmt.Sprintf("%s/feedback", action), spec.ActionFeedbackType(), c.internalFeedbackCallback)
	if err != nil {
		return nil, err
	}
	c.statusSub, err = node.NewSubscriber(fmt.Sprintf("%s/status", action), msgs.GoalStatusArrayType{}, c.internalStatusCallback)
	if err != nil {
		return nil, err
	}

	c.manager, err = NewGoalManager(spec, c.goalPub, c.cancelPub, node.Name(), logger)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// Manager exposes the goal manager, mainly for tests that drive the
// fan-out directly.
func (c *Client) Manager() *GoalManager { return c.manager }

// SendGoal submits a user goal and returns the handle tracking it.
func (c *Client) SendGoal(goal msgs.Message, transitionCb, feedbackCb interface{}) *ClientGoalHandler {
	return c.manager.SendGoal(goal, transitionCb, feedbackCb)
}

// SendGoalWithID submits a user goal under a caller-supplied id.
func (c *Client) SendGoalWithID(goal msgs.Message, goalID msgs.GoalID, transitionCb, feedbackCb interface{}) *ClientGoalHandler {
	return c.manager.SendGoalWithID(goal, goalID, transitionCb, feedbackCb)
}

// CancelAllGoals asks the server to cancel every goal it tracks.
func (c *Client) CancelAllGoals() {
	c.manager.CancelAllGoals()
}

// Shutdown deactivates every handle and tears the topic wiring down.
func (c *Client) Shutdown() {
	c.manager.ShutdownHandlers()

	c.statusSub.Shutdown()
	c.feedbackSub.Shutdown()
	c.resultSub.Shutdown()
	c.goalPub.Shutdown()
	c.cancelPub.Shutdown()
}

func (c *Client) internalResultCallback(msg msgs.Message, event transport.MessageEvent) {
	logger := *c.logger
	result, ok := msg.(ActionResult)
	if !ok {
		logger.Errorf("[Client] unexpected message type %T on %s/result", msg, c.action)
		return
	}
	c.manager.OnResult(result)
}

func (c *Client) internalFeedbackCallback(msg msgs.Message, event transport.MessageEvent) {
	logger := *c.logger
	feedback, ok := msg.(ActionFeedback)
	if !ok {
		logger.Errorf("[Client] unexpected message type %T on %s/feedback", msg, c.action)
		return
	}
	c.manager.OnFeedback(feedback)
}

func (c *Client) internalStatusCallback(msg msgs.Message, event transport.MessageEvent) {
	logger := *c.logger
	statusArr, ok := msg.(*msgs.GoalStatusArray)
	if !ok {
		logger.Errorf("[Client] unexpected message type %T on %s/status", msg, c.action)
		return
	}

	c.stateMutex.Lock()
	if !c.statusReceived {
		c.statusReceived = true
		logger.Debugf("[Client] received first status message from action server")
	} else if c.callerID != event.PublisherName {
		logger.Debugf("[Client] previously received status from %s, now from %s; did the action server change?", c.callerID, event.PublisherName)
	}
	c.callerID = event.PublisherName
	c.stateMutex.Unlock()

	c.manager.OnStatus(statusArr)
}
