// Package a2s is the generic one shot "perform the request, then wait on
// a channel derived from the arguments for the async reply" pattern. It
// spares the simpler flows from duplicating the suspend, correlate and
// timeout boilerplate that the multi-step workflows carry.
package a2s

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pispworks/thirdparty-adapter/deferredjob"
	"github.com/pispworks/thirdparty-adapter/logger"
	"github.com/pispworks/thirdparty-adapter/persistence"
	"github.com/pispworks/thirdparty-adapter/pubsub"
	"github.com/pispworks/thirdparty-adapter/statemachine"
	"github.com/pispworks/thirdparty-adapter/tperror"
	"go.uber.org/zap"
)

const StateSucceeded statemachine.State = "succeeded"
const StateStart statemachine.State = "start"

const transitionRequestAction string = "requestAction"

type Data struct {
	statemachine.Base
	ErrorInformation *tperror.ErrorInformation `json:"errorInformation,omitempty"`
}

// Config fully describes a single step flow. Validate and Reformat are
// optional; without a Reformat the raw payload is decoded into Resp.
type Config[Args any, Resp any] struct {
	Name          string
	KVS           persistence.KVS
	PubSub        pubsub.PubSub
	ChannelName   func(args Args) string
	RequestAction func(ctx context.Context, args Args, channel string) error
	Validate      func(args Args) error
	Reformat      func(payload []byte) (*Resp, error)
	Timeout       time.Duration
}

// Run validates args, performs the request action, waits for the
// correlated reply, reformats it and persists the terminal state under
// key.
func Run[Args any, Resp any](ctx context.Context, conf Config[Args, Resp], key string, args Args) (*Resp, error) {
	if conf.ChannelName == nil || conf.RequestAction == nil {
		return nil, fmt.Errorf("a2s config for %s is missing channel name or request action", conf.Name)
	}
	if conf.Validate != nil {
		if err := conf.Validate(args); err != nil {
			return nil, err
		}
	}
	m, err := statemachine.New(&Data{}, statemachine.Config{Key: key, KVS: conf.KVS}, statemachine.Spec[*Data]{
		Name:    conf.Name,
		Initial: StateStart,
		Transitions: []statemachine.Transition{
			{Name: transitionRequestAction, From: []statemachine.State{StateStart}, To: StateSucceeded},
		},
	})
	if err != nil {
		return nil, err
	}

	var raw []byte
	job := deferredjob.New(conf.PubSub, conf.ChannelName(args))
	requestAndWait := func() error {
		if err := job.Init(ctx, func(channel string) error {
			return conf.RequestAction(ctx, args, channel)
		}); err != nil {
			return err
		}
		return job.Job(func(payload []byte) error {
			var probe struct {
				ErrorInformation *tperror.ErrorInformation `json:"errorInformation"`
			}
			if err := json.Unmarshal(payload, &probe); err != nil {
				return err
			}
			if probe.ErrorInformation != nil {
				return tperror.FromInformation(*probe.ErrorInformation)
			}
			raw = payload
			return nil
		}).Wait(ctx, conf.Timeout)
	}

	if err := requestAndWait(); err != nil {
		logger.Error("a2s flow failed", zap.String("flow", conf.Name), zap.String("key", key), zap.Error(err))
		tpErr := tperror.Reformat(err, tperror.ServerError)
		info := tpErr.Information()
		m.Data.ErrorInformation = &info
		if jumpErr := m.JumpToError(ctx); jumpErr != nil {
			logger.Error("error transition failed", zap.Error(jumpErr))
		}
		if saveErr := m.SaveToKVS(ctx); saveErr != nil {
			logger.Error("error persisting errored a2s flow", zap.Error(saveErr))
		}
		return nil, tpErr
	}
	if err := m.Transition(ctx, transitionRequestAction); err != nil {
		return nil, err
	}
	if err := m.SaveToKVS(ctx); err != nil {
		return nil, err
	}
	if conf.Reformat != nil {
		return conf.Reformat(raw)
	}
	var response Resp
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, err
	}
	return &response, nil
}
