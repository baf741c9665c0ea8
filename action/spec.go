package action

import (
	"github.com/pkg/errors"

	"github.com/goalwire/goalwire/msgs"
)

// defaultIDGen backs envelope constructors invoked with an empty goal
// id, so a constructed goal is always identifiable.
var defaultIDGen = newGoalIDGenerator("")

// ActionSpec is the injected schema for one action: the payload types
// resolved from a registry, the envelope types derived from them, and
// the accessors the rest of the client uses to stay payload agnostic.
type ActionSpec struct {
	name string

	goalType     msgs.MessageType
	feedbackType msgs.MessageType
	resultType   msgs.MessageType

	actionGoalType     *actionGoalType
	actionFeedbackType *actionFeedbackType
	actionResultType   *actionResultType
}

// NewActionSpec resolves the payload types <name>/Goal, <name>/Feedback
// and <name>/Result from the registry and derives the envelope types
// around them. Any type that cannot be materialized surfaces as an
// error; a spec that constructed successfully is ready for use.
func NewActionSpec(reg *msgs.Registry, name string) (*ActionSpec, error) {
	s := &ActionSpec{name: name}

	goalType, err := reg.TypeByName(name + "/Goal")
	if err != nil {
		return nil, errors.Wrap(err, "error resolving goal type")
	}
	s.goalType = goalType

	feedbackType, err := reg.TypeByName(name + "/Feedback")
	if err != nil {
		return nil, errors.Wrap(err, "error resolving feedback type")
	}
	s.feedbackType = feedbackType

	resultType, err := reg.TypeByName(name + "/Result")
	if err != nil {
		return nil, errors.Wrap(err, "error resolving result type")
	}
	s.resultType = resultType

	s.actionGoalType = &actionGoalType{name: name + "/ActionGoal", goalType: goalType}
	s.actionFeedbackType = &actionFeedbackType{name: name + "/ActionFeedback", feedbackType: feedbackType}
	s.actionResultType = &actionResultType{name: name + "/ActionResult", resultType: resultType}

	return s, nil
}

// Name returns the action name the spec was resolved for.
func (s *ActionSpec) Name() string { return s.name }

// IsValid reports whether every component type of the action resolved.
func (s *ActionSpec) IsValid() bool {
	return s != nil &&
		s.goalType != nil && s.feedbackType != nil && s.resultType != nil &&
		s.actionGoalType != nil && s.actionFeedbackType != nil && s.actionResultType != nil
}

// GoalType returns the payload type for goals.
func (s *ActionSpec) GoalType() msgs.MessageType { return s.goalType }

// FeedbackType returns the payload type for feedback.
func (s *ActionSpec) FeedbackType() msgs.MessageType { return s.feedbackType }

// ResultType returns the payload type for results.
func (s *ActionSpec) ResultType() msgs.MessageType { return s.resultType }

// ActionGoalType returns the envelope type for goals.
func (s *ActionSpec) ActionGoalType() ActionGoalType { return s.actionGoalType }

// ActionFeedbackType returns the envelope type for feedback.
func (s *ActionSpec) ActionFeedbackType() ActionFeedbackType { return s.actionFeedbackType }

// ActionResultType returns the envelope type for results.
func (s *ActionSpec) ActionResultType() ActionResultType { return s.actionResultType }

// NewAction bundles one empty envelope of each kind.
func (s *ActionSpec) NewAction() Action {
	if !s.IsValid() {
		return nil
	}
	return &defaultAction{
		goal:     s.actionGoalType.NewGoalMessage(),
		feedback: s.actionFeedbackType.NewFeedbackMessage(),
		result:   s.actionResultType.NewResultMessage(),
	}
}

// GoalOf unpacks the user goal from its envelope.
func (s *ActionSpec) GoalOf(ag ActionGoal) msgs.Message { return ag.GetGoal() }

// ResultOf unpacks the user result from its envelope.
func (s *ActionSpec) ResultOf(ar ActionResult) msgs.Message { return ar.GetResult() }

// FeedbackOf unpacks the user feedback from its envelope.
func (s *ActionSpec) FeedbackOf(af ActionFeedback) msgs.Message { return af.GetFeedback() }

// GoalIDOf returns the identifier embedded in a goal envelope.
func (s *ActionSpec) GoalIDOf(ag ActionGoal) msgs.GoalID { return ag.GetGoalID() }

// StatusOfFeedback returns the goal status carried on a feedback
// envelope.
func (s *ActionSpec) StatusOfFeedback(af ActionFeedback) msgs.GoalStatus { return af.GetStatus() }

// StatusOfResult returns the goal status carried on a result envelope.
func (s *ActionSpec) StatusOfResult(ar ActionResult) msgs.GoalStatus { return ar.GetStatus() }

// NewActionGoal packs a user goal into an envelope. A zero stamp is
// replaced with now; an empty goal id is replaced with a freshly
// generated one.
func (s *ActionSpec) NewActionGoal(goal msgs.Message, stamp msgs.Time, goalID msgs.GoalID) ActionGoal {
	if stamp.IsZero() {
		stamp = msgs.Now()
	}
	if goalID.ID == "" {
		goalID = defaultIDGen.generateID()
	}

	ag := s.actionGoalType.NewGoalMessage()
	ag.SetHeader(msgs.Header{Stamp: stamp})
	ag.SetGoalID(goalID)
	ag.SetGoal(goal)
	return ag
}

// NewActionFeedback packs user feedback into an envelope.
func (s *ActionSpec) NewActionFeedback(feedback msgs.Message, stamp msgs.Time, status msgs.GoalStatus) ActionFeedback {
	if stamp.IsZero() {
		stamp = msgs.Now()
	}

	af := s.actionFeedbackType.NewFeedbackMessage()
	af.SetHeader(msgs.Header{Stamp: stamp})
	af.SetStatus(status)
	af.SetFeedback(feedback)
	return af
}

// NewActionResult packs a user result into an envelope.
func (s *ActionSpec) NewActionResult(result msgs.Message, stamp msgs.Time, status msgs.GoalStatus) ActionResult {
	if stamp.IsZero() {
		stamp = msgs.Now()
	}

	ar := s.actionResultType.NewResultMessage()
	ar.SetHeader(msgs.Header{Stamp: stamp})
	ar.SetStatus(status)
	ar.SetResult(result)
	return ar
}
