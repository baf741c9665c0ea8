package transport

import (
	"io"
	"testing"

	modular "github.com/edwinhayes/logrus-modular"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goalwire/goalwire/msgs"
)

func newBusLogger() *modular.ModuleLogger {
	root := logrus.New()
	root.SetOutput(io.Discard)
	rootLogger := modular.NewRootLogger(root)
	logger := rootLogger.GetModuleLogger()
	return &logger
}

func TestBusDeliversThroughCodec(t *testing.T) {
	bus := NewBus(newBusLogger())
	pubNode := bus.NewNode("pub")
	subNode := bus.NewNode("sub")

	var received []*msgs.GoalID
	var events []MessageEvent
	_, err := subNode.NewSubscriber("cancel", msgs.GoalIDType{}, func(msg msgs.Message, event MessageEvent) {
		received = append(received, msg.(*msgs.GoalID))
		events = append(events, event)
	})
	require.NoError(t, err)

	pub, err := pubNode.NewPublisher("cancel", msgs.GoalIDType{})
	require.NoError(t, err)
	pub.Publish(&msgs.GoalID{ID: "g1", Stamp: msgs.NewTime(3, 4)})

	require.Len(t, received, 1)
	// The subscriber sees a decoded copy, not the published pointer.
	assert.Equal(t, "g1", received[0].ID)
	assert.Equal(t, msgs.NewTime(3, 4), received[0].Stamp)
	assert.Equal(t, "pub", events[0].PublisherName)
}

func TestBusDeliversInPublishOrder(t *testing.T) {
	bus := NewBus(newBusLogger())
	node := bus.NewNode("n")

	var ids []string
	_, err := node.NewSubscriber("t", msgs.GoalIDType{}, func(msg msgs.Message, _ MessageEvent) {
		ids = append(ids, msg.(*msgs.GoalID).ID)
	})
	require.NoError(t, err)

	pub, err := node.NewPublisher("t", msgs.GoalIDType{})
	require.NoError(t, err)
	pub.Publish(&msgs.GoalID{ID: "a"})
	pub.Publish(&msgs.GoalID{ID: "b"})
	pub.Publish(&msgs.GoalID{ID: "c"})

	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestBusFansOutToAllSubscribers(t *testing.T) {
	bus := NewBus(newBusLogger())
	node := bus.NewNode("n")

	counts := [2]int{}
	for i := 0; i < 2; i++ {
		i := i
		_, err := node.NewSubscriber("t", msgs.GoalIDType{}, func(msg msgs.Message, _ MessageEvent) {
			counts[i]++
		})
		require.NoError(t, err)
	}

	pub, err := node.NewPublisher("t", msgs.GoalIDType{})
	require.NoError(t, err)
	pub.Publish(&msgs.GoalID{ID: "a"})

	assert.Equal(t, [2]int{1, 1}, counts)
}

func TestSubscriberShutdownStopsDelivery(t *testing.T) {
	bus := NewBus(newBusLogger())
	node := bus.NewNode("n")

	count := 0
	sub, err := node.NewSubscriber("t", msgs.GoalIDType{}, func(msg msgs.Message, _ MessageEvent) {
		count++
	})
	require.NoError(t, err)

	pub, err := node.NewPublisher("t", msgs.GoalIDType{})
	require.NoError(t, err)

	pub.Publish(&msgs.GoalID{ID: "a"})
	sub.Shutdown()
	pub.Publish(&msgs.GoalID{ID: "b"})

	assert.Equal(t, 1, count)
}

func TestNodeShutdownRemovesItsSubscribers(t *testing.T) {
	bus := NewBus(newBusLogger())
	subNode := bus.NewNode("sub")
	otherNode := bus.NewNode("other")

	var gone, kept int
	_, err := subNode.NewSubscriber("t", msgs.GoalIDType{}, func(msg msgs.Message, _ MessageEvent) { gone++ })
	require.NoError(t, err)
	_, err = otherNode.NewSubscriber("t", msgs.GoalIDType{}, func(msg msgs.Message, _ MessageEvent) { kept++ })
	require.NoError(t, err)

	subNode.Shutdown()

	pub, err := otherNode.NewPublisher("t", msgs.GoalIDType{})
	require.NoError(t, err)
	pub.Publish(&msgs.GoalID{ID: "a"})

	assert.Equal(t, 0, gone)
	assert.Equal(t, 1, kept)
}
