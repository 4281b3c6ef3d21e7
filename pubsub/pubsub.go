package pubsub

import (
	"context"
	"fmt"
)

// Callback is invoked once per delivered message on a subscribed channel.
type Callback func(channel string, payload []byte, subscriptionId int)

// PubSub is the correlation transport between independently invoked
// request handlers and suspended workflow steps. Delivery is at most
// once per subscription.
type PubSub interface {
	Subscribe(ctx context.Context, channel string, cb Callback) (int, error)
	Unsubscribe(ctx context.Context, channel string, subscriptionId int) error
	Publish(ctx context.Context, channel string, payload []byte) error
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool
}

type NotConnectedError struct{}

func (e NotConnectedError) Error() string {
	return "pubsub client is not connected"
}

type NoSubscriptionError struct {
	Channel        string
	SubscriptionId int
}

func (e NoSubscriptionError) Error() string {
	return fmt.Sprintf("no subscription %d on channel %s", e.SubscriptionId, e.Channel)
}
