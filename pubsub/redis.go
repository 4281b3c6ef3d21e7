package pubsub

import (
	"context"
	"fmt"
	"sync"

	rd "github.com/go-redis/redis/v9"
	"github.com/pispworks/thirdparty-adapter/logger"
	"go.uber.org/zap"
)

type RedisConfig struct {
	Addrs     []string
	Namespace string
}

var _ PubSub = new(redisPubSub)

type redisSubscription struct {
	channel string
	sub     *rd.PubSub
	done    chan struct{}
}

type redisPubSub struct {
	redisClient rd.UniversalClient
	namespace   string
	mu          sync.Mutex
	nextId      int
	subs        map[int]*redisSubscription
	connected   bool
	wg          sync.WaitGroup
}

func NewRedisPubSub(conf RedisConfig) *redisPubSub {
	redisClient := rd.NewUniversalClient(&rd.UniversalOptions{
		Addrs: conf.Addrs,
	})
	return &redisPubSub{
		redisClient: redisClient,
		namespace:   conf.Namespace,
		subs:        make(map[int]*redisSubscription),
	}
}

func (p *redisPubSub) getNamespaceChannel(channel string) string {
	return fmt.Sprintf("%s:%s", p.namespace, channel)
}

func (p *redisPubSub) Subscribe(ctx context.Context, channel string, cb Callback) (int, error) {
	if !p.IsConnected() {
		return 0, NotConnectedError{}
	}
	sub := p.redisClient.Subscribe(ctx, p.getNamespaceChannel(channel))
	// forces the SUBSCRIBE round trip so no published message can be
	// missed after Subscribe returns
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return 0, err
	}
	p.mu.Lock()
	p.nextId++
	id := p.nextId
	rs := &redisSubscription{
		channel: channel,
		sub:     sub,
		done:    make(chan struct{}),
	}
	p.subs[id] = rs
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ch := sub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				cb(channel, []byte(msg.Payload), id)
			case <-rs.done:
				return
			}
		}
	}()
	return id, nil
}

func (p *redisPubSub) Unsubscribe(ctx context.Context, channel string, subscriptionId int) error {
	p.mu.Lock()
	rs, ok := p.subs[subscriptionId]
	if ok {
		delete(p.subs, subscriptionId)
	}
	p.mu.Unlock()
	if !ok || rs.channel != channel {
		return NoSubscriptionError{Channel: channel, SubscriptionId: subscriptionId}
	}
	close(rs.done)
	if err := rs.sub.Close(); err != nil {
		logger.Error("error closing redis subscription", zap.String("channel", channel), zap.Error(err))
		return err
	}
	return nil
}

func (p *redisPubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	if !p.IsConnected() {
		return NotConnectedError{}
	}
	return p.redisClient.Publish(ctx, p.getNamespaceChannel(channel), payload).Err()
}

func (p *redisPubSub) Connect(ctx context.Context) error {
	if err := p.redisClient.Ping(ctx).Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()
	return nil
}

func (p *redisPubSub) Disconnect() error {
	p.mu.Lock()
	p.connected = false
	subs := p.subs
	p.subs = make(map[int]*redisSubscription)
	p.mu.Unlock()
	for _, rs := range subs {
		close(rs.done)
		_ = rs.sub.Close()
	}
	p.wg.Wait()
	return p.redisClient.Close()
}

func (p *redisPubSub) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}
