// Package deferredjob expresses "send a request, then wait up to a
// timeout for one correlated asynchronous reply" as a single suspension
// point, hiding the subscribe/unsubscribe bookkeeping from workflow code.
package deferredjob

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pispworks/thirdparty-adapter/logger"
	"github.com/pispworks/thirdparty-adapter/metrics"
	"github.com/pispworks/thirdparty-adapter/pubsub"
	"go.uber.org/zap"
)

type TimeoutError struct {
	Channel string
	Timeout time.Duration
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting on channel %s", e.Timeout, e.Channel)
}

// Job is single use: subscribe before the outbound call in Init, consume
// exactly one message in Wait, unsubscribe on every exit path.
type Job struct {
	ps             pubsub.PubSub
	channel        string
	subscriptionId int
	subscribed     bool
	msgChan        chan []byte
	listener       func(payload []byte) error
}

func New(ps pubsub.PubSub, channel string) *Job {
	return &Job{
		ps:      ps,
		channel: channel,
		msgChan: make(chan []byte, 1),
	}
}

// Init subscribes to the job's channel and then runs initiator, so no
// message can slip through the gap between send and subscribe. If the
// initiator fails the subscription is torn down and the error returned
// immediately; Wait must not be called after a failed Init.
func (j *Job) Init(ctx context.Context, initiator func(channel string) error) error {
	id, err := j.ps.Subscribe(ctx, j.channel, func(channel string, payload []byte, subscriptionId int) {
		select {
		case j.msgChan <- payload:
		default:
			logger.Warn("dropping extra message on deferred job channel", zap.String("channel", channel))
		}
	})
	if err != nil {
		return err
	}
	j.subscriptionId = id
	j.subscribed = true
	if err := initiator(j.channel); err != nil {
		j.unsubscribe(ctx)
		return err
	}
	return nil
}

// Job registers the listener invoked with the first message received on
// the channel. The listener may reject to signal a business error
// extracted from the payload.
func (j *Job) Job(listener func(payload []byte) error) *Job {
	j.listener = listener
	return j
}

// Wait blocks until the listener completes or the timeout elapses. The
// channel is unsubscribed before returning on every path.
func (j *Job) Wait(ctx context.Context, timeout time.Duration) error {
	defer j.unsubscribe(ctx)
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case payload := <-j.msgChan:
		if j.listener != nil {
			return j.listener(payload)
		}
		return nil
	case <-timer.C:
		metrics.RecordDeferredJobTimeout(j.channel)
		return TimeoutError{Channel: j.channel, Timeout: timeout}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel tears the subscription down without waiting. For the rare case
// where a sibling job's initiator fails before this job's Wait begins.
func (j *Job) Cancel(ctx context.Context) {
	j.unsubscribe(ctx)
}

func (j *Job) unsubscribe(ctx context.Context) {
	if !j.subscribed {
		return
	}
	j.subscribed = false
	if err := j.ps.Unsubscribe(ctx, j.channel, j.subscriptionId); err != nil {
		logger.Error("error unsubscribing deferred job channel", zap.String("channel", j.channel), zap.Error(err))
	}
}

// Trigger delivers payload, JSON encoded, into whatever job is suspended
// on channel. It is how an unrelated inbound request handler resumes a
// waiting workflow step.
func Trigger(ctx context.Context, ps pubsub.PubSub, channel string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return ps.Publish(ctx, channel, raw)
}
