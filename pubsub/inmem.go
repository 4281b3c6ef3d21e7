package pubsub

import (
	"context"
	"sync"
)

var _ PubSub = new(InMemPubSub)

// InMemPubSub dispatches within one process. It backs tests and single
// node deployments where publisher and subscriber share the process.
type InMemPubSub struct {
	mu          sync.Mutex
	nextId      int
	subscribers map[string]map[int]Callback
	connected   bool
}

func NewInMemPubSub() *InMemPubSub {
	return &InMemPubSub{
		subscribers: make(map[string]map[int]Callback),
	}
}

func (p *InMemPubSub) Subscribe(ctx context.Context, channel string, cb Callback) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextId++
	id := p.nextId
	if p.subscribers[channel] == nil {
		p.subscribers[channel] = make(map[int]Callback)
	}
	p.subscribers[channel][id] = cb
	return id, nil
}

func (p *InMemPubSub) Unsubscribe(ctx context.Context, channel string, subscriptionId int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	subs, ok := p.subscribers[channel]
	if !ok {
		return NoSubscriptionError{Channel: channel, SubscriptionId: subscriptionId}
	}
	if _, ok := subs[subscriptionId]; !ok {
		return NoSubscriptionError{Channel: channel, SubscriptionId: subscriptionId}
	}
	delete(subs, subscriptionId)
	if len(subs) == 0 {
		delete(p.subscribers, channel)
	}
	return nil
}

func (p *InMemPubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	p.mu.Lock()
	targets := make(map[int]Callback, len(p.subscribers[channel]))
	for id, cb := range p.subscribers[channel] {
		targets[id] = cb
	}
	p.mu.Unlock()
	for id, cb := range targets {
		cb(channel, payload, id)
	}
	return nil
}

// SubscriberCount is not part of the PubSub contract; tests use it to
// wait for a workflow step to reach its suspension point.
func (p *InMemPubSub) SubscriberCount(channel string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subscribers[channel])
}

func (p *InMemPubSub) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = true
	return nil
}

func (p *InMemPubSub) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	return nil
}

func (p *InMemPubSub) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}
