package deferredjob

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pispworks/thirdparty-adapter/pubsub"
	"github.com/stretchr/testify/require"
)

func TestDeferredJob(t *testing.T) {
	for scenario, fn := range map[string]func(
		t *testing.T, ps *pubsub.InMemPubSub,
	){
		"reply sent during init is not lost":     testReplyDuringInit,
		"wait delivers one message to listener":  testWaitDelivers,
		"listener error propagates":              testListenerError,
		"wait times out and unsubscribes":        testWaitTimeout,
		"failed initiator tears down":            testInitiatorFailure,
		"cancel tears down without waiting":      testCancel,
		"extra messages are dropped":             testExtraMessagesDropped,
		"trigger publishes json":                 testTrigger,
	} {
		t.Run(scenario, func(t *testing.T) {
			ps := pubsub.NewInMemPubSub()
			require.NoError(t, ps.Connect(context.Background()))
			fn(t, ps)
		})
	}
}

func testReplyDuringInit(t *testing.T, ps *pubsub.InMemPubSub) {
	ctx := context.Background()
	job := New(ps, "ch1")
	// the reply lands while the initiator is still running, before Wait
	err := job.Init(ctx, func(channel string) error {
		return ps.Publish(ctx, channel, []byte(`"early"`))
	})
	require.NoError(t, err)

	var got string
	err = job.Job(func(payload []byte) error {
		return json.Unmarshal(payload, &got)
	}).Wait(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, "early", got)
	require.Equal(t, 0, ps.SubscriberCount("ch1"))
}

func testWaitDelivers(t *testing.T, ps *pubsub.InMemPubSub) {
	ctx := context.Background()
	job := New(ps, "ch1")
	require.NoError(t, job.Init(ctx, func(string) error { return nil }))

	go func() {
		_ = ps.Publish(ctx, "ch1", []byte(`{"ok":true}`))
	}()
	var got map[string]bool
	err := job.Job(func(payload []byte) error {
		return json.Unmarshal(payload, &got)
	}).Wait(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, got["ok"])
}

func testListenerError(t *testing.T, ps *pubsub.InMemPubSub) {
	ctx := context.Background()
	boom := errors.New("bad payload")
	job := New(ps, "ch1")
	err := job.Init(ctx, func(channel string) error {
		return ps.Publish(ctx, channel, []byte(`{}`))
	})
	require.NoError(t, err)

	err = job.Job(func(payload []byte) error { return boom }).Wait(ctx, time.Second)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 0, ps.SubscriberCount("ch1"))
}

func testWaitTimeout(t *testing.T, ps *pubsub.InMemPubSub) {
	ctx := context.Background()
	job := New(ps, "ch1")
	require.NoError(t, job.Init(ctx, func(string) error { return nil }))
	require.Equal(t, 1, ps.SubscriberCount("ch1"))

	start := time.Now()
	err := job.Job(func(payload []byte) error { return nil }).Wait(ctx, 20*time.Millisecond)
	var timeout TimeoutError
	require.ErrorAs(t, err, &timeout)
	require.Equal(t, "ch1", timeout.Channel)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	require.Equal(t, 0, ps.SubscriberCount("ch1"))
}

func testInitiatorFailure(t *testing.T, ps *pubsub.InMemPubSub) {
	boom := errors.New("send failed")
	job := New(ps, "ch1")
	err := job.Init(context.Background(), func(string) error { return boom })
	require.ErrorIs(t, err, boom)
	require.Equal(t, 0, ps.SubscriberCount("ch1"))
}

func testCancel(t *testing.T, ps *pubsub.InMemPubSub) {
	ctx := context.Background()
	job := New(ps, "ch1")
	require.NoError(t, job.Init(ctx, func(string) error { return nil }))
	require.Equal(t, 1, ps.SubscriberCount("ch1"))
	job.Cancel(ctx)
	require.Equal(t, 0, ps.SubscriberCount("ch1"))
}

func testExtraMessagesDropped(t *testing.T, ps *pubsub.InMemPubSub) {
	ctx := context.Background()
	job := New(ps, "ch1")
	err := job.Init(ctx, func(channel string) error {
		if err := ps.Publish(ctx, channel, []byte(`"first"`)); err != nil {
			return err
		}
		return ps.Publish(ctx, channel, []byte(`"second"`))
	})
	require.NoError(t, err)

	var got string
	err = job.Job(func(payload []byte) error {
		return json.Unmarshal(payload, &got)
	}).Wait(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, "first", got)
}

func testTrigger(t *testing.T, ps *pubsub.InMemPubSub) {
	ctx := context.Background()
	received := make(chan []byte, 1)
	_, err := ps.Subscribe(ctx, "ch1", func(channel string, payload []byte, subscriptionId int) {
		received <- payload
	})
	require.NoError(t, err)

	require.NoError(t, Trigger(ctx, ps, "ch1", map[string]string{"authToken": "123456"}))
	select {
	case payload := <-received:
		require.JSONEq(t, `{"authToken":"123456"}`, string(payload))
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
}
