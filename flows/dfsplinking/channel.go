package dfsplinking

import (
	"context"
	"fmt"

	"github.com/pispworks/thirdparty-adapter/deferredjob"
	"github.com/pispworks/thirdparty-adapter/pubsub"
)

type Phase string

const (
	PhaseRequestAuthToken          Phase = "requestAuthToken"
	PhaseWaitOnSignedCredential    Phase = "waitOnSignedCredential"
	PhaseWaitOnAuthServiceResponse Phase = "waitOnAuthServiceResponse"
)

// NotificationChannel is the sole correlation mechanism between an
// inbound request handler and a suspended linking step. Publisher and
// subscriber must compute byte identical names.
func NotificationChannel(phase Phase, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("notification channel requires a non-empty id")
	}
	return fmt.Sprintf("DFSPLinking_%s_%s", phase, id), nil
}

// TriggerWorkflow lets an unrelated inbound handler deliver a message
// into a suspended linking workflow without holding the model instance.
func TriggerWorkflow(ctx context.Context, phase Phase, id string, ps pubsub.PubSub, payload any) error {
	channel, err := NotificationChannel(phase, id)
	if err != nil {
		return err
	}
	return deferredjob.Trigger(ctx, ps, channel, payload)
}
