// Package action implements the client side of a long-running goal
// protocol over a pub/sub fabric: an injected action specification, a
// per-goal communication state machine, goal handles, and the manager
// that fans incoming status, feedback and result streams out to every
// live goal.
package action

import (
	"github.com/goalwire/goalwire/msgs"
)

// ActionGoal is the envelope that carries a user goal to the server.
type ActionGoal interface {
	msgs.Message
	GetHeader() msgs.Header
	SetHeader(msgs.Header)
	GetGoalID() msgs.GoalID
	SetGoalID(msgs.GoalID)
	GetGoal() msgs.Message
	SetGoal(msgs.Message)
}

// ActionFeedback is the envelope that carries intermediate feedback
// back to the client, together with the goal's current status.
type ActionFeedback interface {
	msgs.Message
	GetHeader() msgs.Header
	SetHeader(msgs.Header)
	GetStatus() msgs.GoalStatus
	SetStatus(msgs.GoalStatus)
	GetFeedback() msgs.Message
	SetFeedback(msgs.Message)
}

// ActionResult is the envelope that carries the terminal result back to
// the client, together with the goal's terminal status.
type ActionResult interface {
	msgs.Message
	GetHeader() msgs.Header
	SetHeader(msgs.Header)
	GetStatus() msgs.GoalStatus
	SetStatus(msgs.GoalStatus)
	GetResult() msgs.Message
	SetResult(msgs.Message)
}

// ActionGoalType materializes goal envelopes.
type ActionGoalType interface {
	msgs.MessageType
	NewGoalMessage() ActionGoal
}

// ActionFeedbackType materializes feedback envelopes.
type ActionFeedbackType interface {
	msgs.MessageType
	NewFeedbackMessage() ActionFeedback
}

// ActionResultType materializes result envelopes.
type ActionResultType interface {
	msgs.MessageType
	NewResultMessage() ActionResult
}

// Action bundles one empty envelope of each kind.
type Action interface {
	GetActionGoal() ActionGoal
	GetActionFeedback() ActionFeedback
	GetActionResult() ActionResult
}
