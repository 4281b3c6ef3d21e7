// Package otpvalidate is the outbound OTP validation flow: submit the
// auth token the user typed and wait for the validation result. A single
// step, so it rides on the generic a2s pattern.
package otpvalidate

import (
	"context"
	"fmt"
	"time"

	"github.com/pispworks/thirdparty-adapter/clients"
	"github.com/pispworks/thirdparty-adapter/flows/a2s"
	"github.com/pispworks/thirdparty-adapter/model"
	"github.com/pispworks/thirdparty-adapter/persistence"
	"github.com/pispworks/thirdparty-adapter/pubsub"
	"github.com/pispworks/thirdparty-adapter/tperror"
)

const WorkflowName string = "OTPValidate"

type Request struct {
	ConsentRequestId string `json:"consentRequestId"`
	AuthToken        string `json:"authToken"`
	ToParticipantId  string `json:"toParticipantId"`
}

func NotificationChannel(consentRequestId string) string {
	return fmt.Sprintf("OTPValidate_%s", consentRequestId)
}

type ModelConfig struct {
	KVS        persistence.KVS
	PubSub     pubsub.PubSub
	Thirdparty clients.ThirdpartyRequests
	Timeout    time.Duration
}

// Validate runs the flow and returns the validation outcome.
func Validate(ctx context.Context, conf ModelConfig, req Request) (*model.OTPValidateResponse, error) {
	a2sConf := a2s.Config[Request, model.OTPValidateResponse]{
		Name:   WorkflowName,
		KVS:    conf.KVS,
		PubSub: conf.PubSub,
		ChannelName: func(args Request) string {
			return NotificationChannel(args.ConsentRequestId)
		},
		RequestAction: func(ctx context.Context, args Request, channel string) error {
			patch := &model.ConsentRequestsIDPatchRequest{AuthToken: args.AuthToken}
			return conf.Thirdparty.PatchConsentRequests(ctx, args.ConsentRequestId, patch, args.ToParticipantId)
		},
		Validate: func(args Request) error {
			if args.ConsentRequestId == "" || args.AuthToken == "" {
				return tperror.OTPValidationError
			}
			return nil
		},
		Timeout: conf.Timeout,
	}
	return a2s.Run(ctx, a2sConf, req.ConsentRequestId, req)
}
