package a2s

import (
	"context"
	"testing"
	"time"

	"github.com/pispworks/thirdparty-adapter/deferredjob"
	"github.com/pispworks/thirdparty-adapter/persistence"
	"github.com/pispworks/thirdparty-adapter/persistence/inmem"
	"github.com/pispworks/thirdparty-adapter/pubsub"
	"github.com/pispworks/thirdparty-adapter/statemachine"
	"github.com/pispworks/thirdparty-adapter/tperror"
	"github.com/stretchr/testify/require"
)

type args struct {
	Id string
}

type verdict struct {
	IsValid bool `json:"isValid"`
}

func testConfig(kvs persistence.KVS, ps pubsub.PubSub, requestAction func(ctx context.Context, a args, channel string) error) Config[args, verdict] {
	return Config[args, verdict]{
		Name:          "TestFlow",
		KVS:           kvs,
		PubSub:        ps,
		ChannelName:   func(a args) string { return "TestFlow_" + a.Id },
		RequestAction: requestAction,
		Timeout:       100 * time.Millisecond,
	}
}

func TestA2S(t *testing.T) {
	for scenario, fn := range map[string]func(
		t *testing.T, kvs persistence.KVS, ps *pubsub.InMemPubSub,
	){
		"request then correlated reply succeeds": testSuccess,
		"error payload becomes protocol error":   testErrorPayload,
		"no reply times out":                     testTimeout,
		"validation failure is pre-flight":       testValidation,
	} {
		t.Run(scenario, func(t *testing.T) {
			ps := pubsub.NewInMemPubSub()
			require.NoError(t, ps.Connect(context.Background()))
			fn(t, inmem.NewInMemKVS(), ps)
		})
	}
}

func testSuccess(t *testing.T, kvs persistence.KVS, ps *pubsub.InMemPubSub) {
	ctx := context.Background()
	conf := testConfig(kvs, ps, func(ctx context.Context, a args, channel string) error {
		// the reply arrives before Wait begins; the subscription is
		// already in place so nothing is lost
		return deferredjob.Trigger(ctx, ps, channel, verdict{IsValid: true})
	})
	response, err := Run(ctx, conf, "key1", args{Id: "1"})
	require.NoError(t, err)
	require.True(t, response.IsValid)

	loaded, err := statemachine.LoadFromKVS(ctx, &Data{}, statemachine.Config{Key: "key1", KVS: kvs}, statemachine.Spec[*Data]{
		Name:    conf.Name,
		Initial: StateStart,
		Transitions: []statemachine.Transition{
			{Name: "requestAction", From: []statemachine.State{StateStart}, To: StateSucceeded},
		},
	})
	require.NoError(t, err)
	require.Equal(t, StateSucceeded, loaded.State())
}

func testErrorPayload(t *testing.T, kvs persistence.KVS, ps *pubsub.InMemPubSub) {
	ctx := context.Background()
	conf := testConfig(kvs, ps, func(ctx context.Context, a args, channel string) error {
		return deferredjob.Trigger(ctx, ps, channel, map[string]any{
			"errorInformation": tperror.OTPValidationError.Information(),
		})
	})
	_, err := Run(ctx, conf, "key1", args{Id: "1"})
	var tpErr tperror.TPError
	require.ErrorAs(t, err, &tpErr)
	require.Equal(t, tperror.OTPValidationError.Code, tpErr.Code)
}

func testTimeout(t *testing.T, kvs persistence.KVS, ps *pubsub.InMemPubSub) {
	conf := testConfig(kvs, ps, func(ctx context.Context, a args, channel string) error {
		return nil
	})
	_, err := Run(context.Background(), conf, "key1", args{Id: "1"})
	var tpErr tperror.TPError
	require.ErrorAs(t, err, &tpErr)
	require.Equal(t, tperror.ServerError.Code, tpErr.Code)
	require.Equal(t, 0, ps.SubscriberCount("TestFlow_1"))
}

func testValidation(t *testing.T, kvs persistence.KVS, ps *pubsub.InMemPubSub) {
	called := false
	conf := testConfig(kvs, ps, func(ctx context.Context, a args, channel string) error {
		called = true
		return nil
	})
	conf.Validate = func(a args) error { return tperror.OTPValidationError }
	_, err := Run(context.Background(), conf, "key1", args{Id: "1"})
	require.ErrorIs(t, err, tperror.OTPValidationError)
	require.False(t, called)
}
