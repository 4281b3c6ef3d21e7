package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInMemPubSub(t *testing.T) {
	for scenario, fn := range map[string]func(
		t *testing.T, ps *InMemPubSub,
	){
		"publish reaches all subscribers":      testFanOut,
		"unsubscribe stops delivery":           testUnsubscribe,
		"unsubscribe unknown id fails":         testUnsubscribeUnknown,
		"publish without subscribers is a noop": testPublishNoSubscribers,
	} {
		t.Run(scenario, func(t *testing.T) {
			ps := NewInMemPubSub()
			require.NoError(t, ps.Connect(context.Background()))
			fn(t, ps)
		})
	}
}

func testFanOut(t *testing.T, ps *InMemPubSub) {
	ctx := context.Background()
	first := make(chan []byte, 1)
	second := make(chan []byte, 1)
	_, err := ps.Subscribe(ctx, "ch", func(channel string, payload []byte, subscriptionId int) {
		first <- payload
	})
	require.NoError(t, err)
	_, err = ps.Subscribe(ctx, "ch", func(channel string, payload []byte, subscriptionId int) {
		second <- payload
	})
	require.NoError(t, err)
	require.Equal(t, 2, ps.SubscriberCount("ch"))

	require.NoError(t, ps.Publish(ctx, "ch", []byte("msg")))
	require.Equal(t, "msg", string(<-first))
	require.Equal(t, "msg", string(<-second))
}

func testUnsubscribe(t *testing.T, ps *InMemPubSub) {
	ctx := context.Background()
	received := make(chan []byte, 1)
	id, err := ps.Subscribe(ctx, "ch", func(channel string, payload []byte, subscriptionId int) {
		received <- payload
	})
	require.NoError(t, err)
	require.NoError(t, ps.Unsubscribe(ctx, "ch", id))
	require.Equal(t, 0, ps.SubscriberCount("ch"))

	require.NoError(t, ps.Publish(ctx, "ch", []byte("msg")))
	require.Empty(t, received)
}

func testUnsubscribeUnknown(t *testing.T, ps *InMemPubSub) {
	err := ps.Unsubscribe(context.Background(), "ch", 42)
	var noSub NoSubscriptionError
	require.ErrorAs(t, err, &noSub)
	require.Equal(t, 42, noSub.SubscriptionId)
}

func testPublishNoSubscribers(t *testing.T, ps *InMemPubSub) {
	require.NoError(t, ps.Publish(context.Background(), "nobody-listens", []byte("msg")))
}
