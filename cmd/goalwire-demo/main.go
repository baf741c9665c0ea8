// Command goalwire-demo runs a goal client against a scripted action
// server on the in-memory bus: one goal runs to completion with
// feedback, a second one is cancelled mid-flight.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	modular "github.com/edwinhayes/logrus-modular"
	"github.com/sirupsen/logrus"

	"github.com/goalwire/goalwire/action"
	"github.com/goalwire/goalwire/config"
	"github.com/goalwire/goalwire/msgs"
	"github.com/goalwire/goalwire/transport"
)

func main() {
	configPath := flag.String("config", "", "path to goalwire.yaml")
	flag.Parse()

	root := logrus.New()
	root.SetLevel(logrus.InfoLevel)
	if path, err := config.FindConfig(*configPath); err == nil {
		cfg, err := config.Load(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
			root.SetLevel(level)
		}
	}

	rootLogger := modular.NewRootLogger(root)
	logger := rootLogger.GetModuleLogger()

	reg := msgs.NewRegistry()
	reg.Register(msgs.NewDynamicMessageType("fibonacci/Goal"))
	reg.Register(msgs.NewDynamicMessageType("fibonacci/Feedback"))
	reg.Register(msgs.NewDynamicMessageType("fibonacci/Result"))

	spec, err := action.NewActionSpec(reg, "fibonacci")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	bus := transport.NewBus(&logger)
	runResponder(bus, spec)

	client, err := action.NewClient(bus.NewNode("demo_client"), "fibonacci", spec, &logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer client.Shutdown()

	goal := spec.GoalType().(*msgs.DynamicMessageType).NewDynamicMessage()
	goal.Data()["order"] = 6

	done := make(chan struct{})
	transitionCb := func(gh *action.ClientGoalHandler, state action.CommState) {
		fmt.Printf("goal 1 entered %v\n", state)
		if state == action.Done {
			close(done)
		}
	}
	feedbackCb := func(gh *action.ClientGoalHandler, fb msgs.Message) {
		fmt.Printf("goal 1 feedback: %v\n", fb.(*msgs.DynamicMessage).Data()["sequence"])
	}

	gh := client.SendGoal(goal, transitionCb, feedbackCb)
	<-done
	fmt.Printf("goal 1 terminal state: %s\n", msgs.StatusString(gh.GetTerminalState()))
	if result := gh.GetResult(); result != nil {
		fmt.Printf("goal 1 result: %v\n", result.(*msgs.DynamicMessage).Data()["sequence"])
	}
	gh.Shutdown(true)

	// Second goal: cancel before the server gets anywhere.
	cancelled := make(chan struct{})
	gh2 := client.SendGoal(goal, func(gh *action.ClientGoalHandler, state action.CommState) {
		fmt.Printf("goal 2 entered %v\n", state)
		if state == action.Done {
			close(cancelled)
		}
	}, nil)
	if err := gh2.Cancel(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	<-cancelled
	fmt.Printf("goal 2 terminal state: %s\n", msgs.StatusString(gh2.GetTerminalState()))
	gh2.Shutdown(true)
}

// runResponder wires a scripted action server onto the bus: every goal
// is acked PENDING then ACTIVE, streams three feedback messages and
// succeeds with the fibonacci sequence, unless a cancel arrives first,
// in which case it is recalled.
func runResponder(bus *transport.Bus, spec *action.ActionSpec) {
	node := bus.NewNode("demo_server")

	statusPub, _ := node.NewPublisher("fibonacci/status", msgs.GoalStatusArrayType{})
	feedbackPub, _ := node.NewPublisher("fibonacci/feedback", spec.ActionFeedbackType())
	resultPub, _ := node.NewPublisher("fibonacci/result", spec.ActionResultType())

	cancels := make(chan msgs.GoalID, 8)
	node.NewSubscriber("fibonacci/cancel", msgs.GoalIDType{}, func(msg msgs.Message, _ transport.MessageEvent) {
		cancels <- *msg.(*msgs.GoalID)
	})

	publishStatus := func(id msgs.GoalID, status uint8) {
		statusPub.Publish(&msgs.GoalStatusArray{
			Header:     msgs.Header{Stamp: msgs.Now()},
			StatusList: []msgs.GoalStatus{{GoalID: id, Status: status}},
		})
	}

	node.NewSubscriber("fibonacci/goal", spec.ActionGoalType(), func(msg msgs.Message, _ transport.MessageEvent) {
		ag := msg.(action.ActionGoal)
		id := ag.GetGoalID()

		go func() {
			time.Sleep(10 * time.Millisecond)

			select {
			case <-cancels:
				publishStatus(id, msgs.Recalling)
				time.Sleep(10 * time.Millisecond)
				result := spec.ResultType().(*msgs.DynamicMessageType).NewDynamicMessage()
				resultPub.Publish(spec.NewActionResult(result, msgs.Now(), msgs.GoalStatus{GoalID: id, Status: msgs.Recalled}))
				return
			default:
			}

			publishStatus(id, msgs.Pending)
			time.Sleep(10 * time.Millisecond)
			publishStatus(id, msgs.Active)

			sequence := []interface{}{float64(0), float64(1)}
			for i := 0; i < 3; i++ {
				time.Sleep(10 * time.Millisecond)
				next := sequence[len(sequence)-1].(float64) + sequence[len(sequence)-2].(float64)
				sequence = append(sequence, next)

				fb := spec.FeedbackType().(*msgs.DynamicMessageType).NewDynamicMessage()
				fb.Data()["sequence"] = append([]interface{}{}, sequence...)
				feedbackPub.Publish(spec.NewActionFeedback(fb, msgs.Now(), msgs.GoalStatus{GoalID: id, Status: msgs.Active}))
			}

			time.Sleep(10 * time.Millisecond)
			publishStatus(id, msgs.Succeeded)

			result := spec.ResultType().(*msgs.DynamicMessageType).NewDynamicMessage()
			result.Data()["sequence"] = sequence
			resultPub.Publish(spec.NewActionResult(result, msgs.Now(), msgs.GoalStatus{GoalID: id, Status: msgs.Succeeded}))
		}()
	})
}
