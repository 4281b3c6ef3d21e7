// Package pisplinking drives the PISP's half of account linking: request
// consent, branch on the DFSP's chosen channel, submit the user's auth
// token and await the consent grant. Unlike the DFSP side, several steps
// here are resumed by inbound switch callbacks through TriggerWorkflow.
package pisplinking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pispworks/thirdparty-adapter/clients"
	"github.com/pispworks/thirdparty-adapter/config"
	"github.com/pispworks/thirdparty-adapter/deferredjob"
	"github.com/pispworks/thirdparty-adapter/logger"
	"github.com/pispworks/thirdparty-adapter/model"
	"github.com/pispworks/thirdparty-adapter/persistence"
	"github.com/pispworks/thirdparty-adapter/pubsub"
	"github.com/pispworks/thirdparty-adapter/statemachine"
	"github.com/pispworks/thirdparty-adapter/tperror"
	"go.uber.org/zap"
)

const WorkflowName string = "PISPLinking"

const (
	StateStart                             statemachine.State = "start"
	StateChannelResponseReceived           statemachine.State = "channelResponseReceived"
	StateOTPChannelResponseReceived        statemachine.State = "OTPAuthenticationChannelResponseReceived"
	StateWebChannelResponseReceived        statemachine.State = "WebAuthenticationChannelResponseReceived"
	StateConsentReceivedAwaitingCredential statemachine.State = "consentReceivedAwaitingCredential"
)

const (
	transitionRequestConsent            string = "requestConsent"
	transitionChangeToOTPAuthentication string = "changeToOTPAuthentication"
	transitionChangeToWebAuthentication string = "changeToWebAuthentication"
	transitionAuthenticate              string = "authenticate"
)

type Phase string

const (
	PhaseWaitOnChannelResponse Phase = "waitOnChannelResponse"
	PhaseWaitOnConsent         Phase = "waitOnConsent"
)

func NotificationChannel(phase Phase, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("notification channel requires a non-empty id")
	}
	return fmt.Sprintf("PISPLinking_%s_%s", phase, id), nil
}

func TriggerWorkflow(ctx context.Context, phase Phase, id string, ps pubsub.PubSub, payload any) error {
	channel, err := NotificationChannel(phase, id)
	if err != nil {
		return err
	}
	return deferredjob.Trigger(ctx, ps, channel, payload)
}

type Data struct {
	statemachine.Base
	ConsentRequestId string                               `json:"consentRequestId"`
	ToParticipantId  string                               `json:"toParticipantId"`
	Request          *model.ConsentRequestsPostRequest    `json:"request"`
	ChannelResponse  *model.ConsentRequestChannelResponse `json:"channelResponse,omitempty"`
	AuthToken        string                               `json:"authToken,omitempty"`
	Consent          *model.ConsentsPostRequest           `json:"consent,omitempty"`
	ErrorInformation *tperror.ErrorInformation            `json:"errorInformation,omitempty"`
}

type ModelConfig struct {
	Key        string
	KVS        persistence.KVS
	PubSub     pubsub.PubSub
	Thirdparty clients.ThirdpartyRequests
	Timeouts   config.Timeouts
}

type Model struct {
	*statemachine.Model[*Data]
	conf ModelConfig
}

func spec(m *Model) statemachine.Spec[*Data] {
	return statemachine.Spec[*Data]{
		Name:    WorkflowName,
		Initial: StateStart,
		Transitions: []statemachine.Transition{
			{Name: transitionRequestConsent, From: []statemachine.State{StateStart}, To: StateChannelResponseReceived},
			{Name: transitionChangeToOTPAuthentication, From: []statemachine.State{StateChannelResponseReceived}, To: StateOTPChannelResponseReceived},
			{Name: transitionChangeToWebAuthentication, From: []statemachine.State{StateChannelResponseReceived}, To: StateWebChannelResponseReceived},
			{Name: transitionAuthenticate, From: []statemachine.State{StateOTPChannelResponseReceived, StateWebChannelResponseReceived}, To: StateConsentReceivedAwaitingCredential},
		},
		Handlers: map[string]statemachine.Handler[*Data]{
			transitionRequestConsent: m.onRequestConsent,
			transitionAuthenticate:   m.onAuthenticate,
		},
	}
}

func Create(data *Data, conf ModelConfig) (*Model, error) {
	m := &Model{conf: conf}
	sm, err := statemachine.New(data, statemachine.Config{Key: conf.Key, KVS: conf.KVS}, spec(m))
	if err != nil {
		return nil, err
	}
	m.Model = sm
	return m, nil
}

func LoadFromKVS(ctx context.Context, conf ModelConfig) (*Model, error) {
	m := &Model{conf: conf}
	sm, err := statemachine.LoadFromKVS(ctx, &Data{}, statemachine.Config{Key: conf.Key, KVS: conf.KVS}, spec(m))
	if err != nil {
		return nil, err
	}
	m.Model = sm
	return m, nil
}

// RequestConsent opens the linking conversation and suspends until the
// DFSP's channel selection arrives.
func (m *Model) RequestConsent(ctx context.Context) error {
	if err := m.step(ctx, transitionRequestConsent); err != nil {
		return err
	}
	// branch on the channel the DFSP selected
	branch := transitionChangeToWebAuthentication
	if len(m.Data.ChannelResponse.AuthChannels) > 0 && m.Data.ChannelResponse.AuthChannels[0] == model.AUTH_CHANNEL_OTP {
		branch = transitionChangeToOTPAuthentication
	}
	return m.step(ctx, branch)
}

// Authenticate submits the auth token the user obtained over the
// selected channel and suspends until the consent grant arrives.
func (m *Model) Authenticate(ctx context.Context, authToken string) error {
	m.Data.AuthToken = authToken
	return m.step(ctx, transitionAuthenticate)
}

func (m *Model) step(ctx context.Context, transition string) error {
	if err := m.Transition(ctx, transition); err != nil {
		tpErr := tperror.Reformat(err, tperror.GenericLinkingError)
		info := tpErr.Information()
		m.Data.ErrorInformation = &info
		if jumpErr := m.JumpToError(ctx); jumpErr != nil {
			logger.Error("error transition failed", zap.Error(jumpErr))
		}
		if saveErr := m.SaveToKVS(ctx); saveErr != nil {
			logger.Error("error persisting errored linking workflow", zap.Error(saveErr))
		}
		return tpErr
	}
	return m.SaveToKVS(ctx)
}

func (m *Model) onRequestConsent(ctx context.Context, _ *statemachine.Model[*Data]) error {
	channel, err := NotificationChannel(PhaseWaitOnChannelResponse, m.Data.ConsentRequestId)
	if err != nil {
		return err
	}
	job := deferredjob.New(m.conf.PubSub, channel)
	err = job.Init(ctx, func(string) error {
		return m.conf.Thirdparty.PostConsentRequests(ctx, m.Data.Request, m.Data.ToParticipantId)
	})
	if err != nil {
		logger.Error("posting consent request failed", zap.String("consentRequestId", m.Data.ConsentRequestId), zap.Error(err))
		return tperror.Reformat(err, tperror.GenericLinkingError)
	}
	err = job.Job(func(payload []byte) error {
		var response model.ConsentRequestChannelResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			return err
		}
		if response.ErrorInformation != nil {
			return tperror.FromInformation(*response.ErrorInformation)
		}
		m.Data.ChannelResponse = &response
		return nil
	}).Wait(ctx, m.timeout(m.conf.Timeouts.AuthTokenExchangeSeconds))
	if err != nil {
		logger.Error("waiting for channel response failed", zap.String("consentRequestId", m.Data.ConsentRequestId), zap.Error(err))
		return tperror.Reformat(err, tperror.ServerTimedOut)
	}
	return nil
}

func (m *Model) onAuthenticate(ctx context.Context, _ *statemachine.Model[*Data]) error {
	patch := &model.ConsentRequestsIDPatchRequest{AuthToken: m.Data.AuthToken}
	channel, err := NotificationChannel(PhaseWaitOnConsent, m.Data.ConsentRequestId)
	if err != nil {
		return err
	}
	job := deferredjob.New(m.conf.PubSub, channel)
	err = job.Init(ctx, func(string) error {
		return m.conf.Thirdparty.PatchConsentRequests(ctx, m.Data.ConsentRequestId, patch, m.Data.ToParticipantId)
	})
	if err != nil {
		logger.Error("submitting auth token failed", zap.String("consentRequestId", m.Data.ConsentRequestId), zap.Error(err))
		return tperror.Reformat(err, tperror.GenericLinkingError)
	}
	err = job.Job(func(payload []byte) error {
		var consent model.ConsentsPostRequest
		if err := json.Unmarshal(payload, &consent); err != nil {
			return err
		}
		if consent.ConsentId == "" {
			var errResponse model.ConsentRequestChannelResponse
			if err := json.Unmarshal(payload, &errResponse); err == nil && errResponse.ErrorInformation != nil {
				return tperror.FromInformation(*errResponse.ErrorInformation)
			}
			return tperror.GenericLinkingError
		}
		m.Data.Consent = &consent
		return nil
	}).Wait(ctx, m.timeout(m.conf.Timeouts.GrantConsentSeconds))
	if err != nil {
		logger.Error("waiting for consent failed", zap.String("consentRequestId", m.Data.ConsentRequestId), zap.Error(err))
		return tperror.Reformat(err, tperror.ServerTimedOut)
	}
	return nil
}

// LinkingResponse is the outward facing view of the workflow, shaped by
// the current state.
type LinkingResponse struct {
	CurrentState     string                               `json:"currentState"`
	ChannelResponse  *model.ConsentRequestChannelResponse `json:"channelResponse,omitempty"`
	Consent          *model.ConsentsPostRequest           `json:"consent,omitempty"`
	ErrorInformation *tperror.ErrorInformation            `json:"errorInformation,omitempty"`
}

// GetResponse is a pure function of currentState over the data bag.
func (m *Model) GetResponse() *LinkingResponse {
	response := &LinkingResponse{CurrentState: string(m.State())}
	switch m.State() {
	case StateChannelResponseReceived, StateOTPChannelResponseReceived, StateWebChannelResponseReceived:
		response.ChannelResponse = m.Data.ChannelResponse
	case StateConsentReceivedAwaitingCredential:
		response.Consent = m.Data.Consent
	case statemachine.Errored:
		response.ErrorInformation = m.Data.ErrorInformation
	}
	return response
}

func (m *Model) timeout(seconds int) time.Duration {
	if seconds <= 0 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}
