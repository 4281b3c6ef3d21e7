// Package dfsplinking drives the DFSP's half of the account linking
// conversation: validate the consent request, pick the auth channel,
// await the user's auth token, grant consent, have the signed credential
// verified by the auth service and notify the PISP.
package dfsplinking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
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

const WorkflowName string = "DFSPLinking"

const (
	StateStart                            statemachine.State = "start"
	StateRequestIsValid                   statemachine.State = "requestIsValid"
	StateConsentRequestValidatedAndStored statemachine.State = "consentRequestValidatedAndStored"
	StateAuthTokenReceived                statemachine.State = "authTokenReceived"
	StateAuthTokenValidated               statemachine.State = "authTokenValidated"
	StateConsentGranted                   statemachine.State = "consentGranted"
	StateConsentRegisteredAndValidated    statemachine.State = "consentRegisteredAndValidated"
	StateValidatedConsentStoredWithDFSP   statemachine.State = "validatedConsentStoredWithDFSP"
	StatePISPDFSPLinkEstablished          statemachine.State = "PISPDFSPLinkEstablished"
	StateNotificationSent                 statemachine.State = "notificationSent"
)

const (
	transitionValidateRequest               string = "validateRequest"
	transitionStoreReqAndSendOTP            string = "storeReqAndSendOTP"
	transitionSendLinkingChannelResponse    string = "sendLinkingChannelResponse"
	transitionValidateAuthToken             string = "validateAuthToken"
	transitionGrantConsent                  string = "grantConsent"
	transitionValidateWithAuthService       string = "validateWithAuthService"
	transitionStoreValidatedConsentWithDFSP string = "storeValidatedConsentWithDFSP"
	transitionFinalizeThirdpartyLink        string = "finalizeThirdpartyLinkWithALS"
	transitionNotifyVerificationToPISP      string = "notifyVerificationToPISP"
)

// Data is the durable workflow snapshot. Fields are written once each on
// the happy path and read by later transitions or the HTTP layer.
type Data struct {
	statemachine.Base
	ConsentRequestId string                               `json:"consentRequestId"`
	ConsentId        string                               `json:"consentId,omitempty"`
	ToParticipantId  string                               `json:"toParticipantId"`
	Request          *model.ConsentRequestsPostRequest    `json:"request"`
	AuthChannel      model.AuthChannel                    `json:"authChannel,omitempty"`
	ChannelResponse  *model.ConsentRequestChannelResponse `json:"channelResponse,omitempty"`
	AuthToken        string                               `json:"authToken,omitempty"`
	SignedCredential *model.SignedCredential              `json:"signedCredential,omitempty"`
	ErrorInformation *tperror.ErrorInformation            `json:"errorInformation,omitempty"`
}

type ModelConfig struct {
	Key           string
	KVS           persistence.KVS
	PubSub        pubsub.PubSub
	Backend       clients.DFSPBackend
	Thirdparty    clients.ThirdpartyRequests
	AuthService   clients.AuthServiceRequests
	Timeouts      config.Timeouts
	TestOverrides config.TestOverrides
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
			{Name: transitionValidateRequest, From: []statemachine.State{StateStart}, To: StateRequestIsValid},
			{Name: transitionStoreReqAndSendOTP, From: []statemachine.State{StateRequestIsValid}, To: StateConsentRequestValidatedAndStored},
			{Name: transitionSendLinkingChannelResponse, From: []statemachine.State{StateConsentRequestValidatedAndStored}, To: StateAuthTokenReceived},
			{Name: transitionValidateAuthToken, From: []statemachine.State{StateAuthTokenReceived}, To: StateAuthTokenValidated},
			{Name: transitionGrantConsent, From: []statemachine.State{StateAuthTokenValidated}, To: StateConsentGranted},
			{Name: transitionValidateWithAuthService, From: []statemachine.State{StateConsentGranted}, To: StateConsentRegisteredAndValidated},
			{Name: transitionStoreValidatedConsentWithDFSP, From: []statemachine.State{StateConsentRegisteredAndValidated}, To: StateValidatedConsentStoredWithDFSP},
			{Name: transitionFinalizeThirdpartyLink, From: []statemachine.State{StateValidatedConsentStoredWithDFSP}, To: StatePISPDFSPLinkEstablished},
			{Name: transitionNotifyVerificationToPISP, From: []statemachine.State{StatePISPDFSPLinkEstablished}, To: StateNotificationSent},
		},
		Handlers: map[string]statemachine.Handler[*Data]{
			transitionValidateRequest:               m.onValidateRequest,
			transitionStoreReqAndSendOTP:            m.onStoreReqAndSendOTP,
			transitionSendLinkingChannelResponse:    m.onSendLinkingChannelResponse,
			transitionValidateAuthToken:             m.onValidateAuthToken,
			transitionGrantConsent:                  m.onGrantConsent,
			transitionValidateWithAuthService:       m.onValidateWithAuthService,
			transitionStoreValidatedConsentWithDFSP: m.onStoreValidatedConsentWithDFSP,
			transitionFinalizeThirdpartyLink:        m.onFinalizeThirdpartyLink,
			transitionNotifyVerificationToPISP:      m.onNotifyVerificationToPISP,
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

// Run walks the workflow forward from its current state until it reaches
// a terminal state or a transition fails. Each completed transition is
// persisted so a restart resumes exactly where it left off.
func (m *Model) Run(ctx context.Context) error {
	for {
		switch m.State() {
		case StateStart:
			if err := m.step(ctx, transitionValidateRequest); err != nil {
				return err
			}
		case StateRequestIsValid:
			if err := m.step(ctx, transitionStoreReqAndSendOTP); err != nil {
				return err
			}
		case StateConsentRequestValidatedAndStored:
			if err := m.step(ctx, transitionSendLinkingChannelResponse); err != nil {
				return err
			}
		case StateAuthTokenReceived:
			if err := m.step(ctx, transitionValidateAuthToken); err != nil {
				return err
			}
		case StateAuthTokenValidated:
			if err := m.step(ctx, transitionGrantConsent); err != nil {
				return err
			}
		case StateConsentGranted:
			if err := m.step(ctx, transitionValidateWithAuthService); err != nil {
				return err
			}
		case StateConsentRegisteredAndValidated:
			if err := m.step(ctx, transitionStoreValidatedConsentWithDFSP); err != nil {
				return err
			}
		case StateValidatedConsentStoredWithDFSP:
			if err := m.step(ctx, transitionFinalizeThirdpartyLink); err != nil {
				return err
			}
		case StatePISPDFSPLinkEstablished:
			if err := m.step(ctx, transitionNotifyVerificationToPISP); err != nil {
				return err
			}
		case StateNotificationSent:
			logger.Info("linking workflow complete", zap.String("consentRequestId", m.Data.ConsentRequestId))
			return nil
		case statemachine.Errored:
			logger.Warn("attempted to run an errored linking workflow", zap.String("consentRequestId", m.Data.ConsentRequestId))
			return nil
		default:
			logger.Error("linking workflow in unexpected state", zap.String("state", string(m.State())))
			return nil
		}
	}
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

func (m *Model) onValidateRequest(ctx context.Context, _ *statemachine.Model[*Data]) error {
	resp, err := m.conf.Backend.ValidateConsentRequests(ctx, m.Data.Request)
	if err != nil {
		logger.Error("backend consent request validation failed", zap.String("consentRequestId", m.Data.ConsentRequestId), zap.Error(err))
		return m.notifyConsentRequestError(ctx, tperror.ConsentRequestValidationError)
	}
	if !resp.IsValid {
		tpErr := tperror.ConsentRequestValidationError
		if resp.ErrorInformation != nil {
			tpErr = tperror.FromInformation(*resp.ErrorInformation)
		}
		return m.notifyConsentRequestError(ctx, tpErr)
	}
	if len(resp.AuthChannels) == 0 {
		return m.notifyConsentRequestError(ctx, tperror.UnsupportedAuthChannel)
	}
	m.Data.AuthChannel = resp.AuthChannels[0]
	return nil
}

func (m *Model) onStoreReqAndSendOTP(ctx context.Context, _ *statemachine.Model[*Data]) error {
	switch m.Data.AuthChannel {
	case model.AUTH_CHANNEL_WEB:
		if err := m.conf.Backend.StoreConsentRequests(ctx, m.Data.Request); err != nil {
			logger.Error("storing consent request failed", zap.String("consentRequestId", m.Data.ConsentRequestId), zap.Error(err))
			return m.notifyConsentRequestError(ctx, tperror.ConsentStoreError)
		}
	case model.AUTH_CHANNEL_OTP:
		if err := m.conf.Backend.SendOTP(ctx, m.Data.Request); err != nil {
			logger.Error("sending OTP failed", zap.String("consentRequestId", m.Data.ConsentRequestId), zap.Error(err))
			return m.notifyConsentRequestError(ctx, tperror.OTPDeliveryError)
		}
	default:
		return m.notifyConsentRequestError(ctx, tperror.UnsupportedAuthChannel)
	}
	return nil
}

func (m *Model) onSendLinkingChannelResponse(ctx context.Context, _ *statemachine.Model[*Data]) error {
	response := &model.ConsentRequestChannelResponse{
		ConsentRequestId: m.Data.ConsentRequestId,
		Scopes:           m.Data.Request.Scopes,
		AuthChannels:     []model.AuthChannel{m.Data.AuthChannel},
		CallbackUri:      m.Data.Request.CallbackUri,
	}
	if m.Data.AuthChannel == model.AUTH_CHANNEL_WEB {
		response.AuthUri = m.Data.Request.CallbackUri + "/authenticate"
	}
	m.Data.ChannelResponse = response

	channel, err := NotificationChannel(PhaseRequestAuthToken, m.Data.ConsentRequestId)
	if err != nil {
		return err
	}
	job := deferredjob.New(m.conf.PubSub, channel)
	err = job.Init(ctx, func(string) error {
		return m.conf.Thirdparty.PutConsentRequests(ctx, m.Data.ConsentRequestId, response, m.Data.ToParticipantId)
	})
	if err != nil {
		logger.Error("sending channel response failed", zap.String("consentRequestId", m.Data.ConsentRequestId), zap.Error(err))
		return m.notifyConsentRequestError(ctx, tperror.GenericLinkingError)
	}
	err = job.Job(func(payload []byte) error {
		var patch model.ConsentRequestsIDPatchRequest
		if err := json.Unmarshal(payload, &patch); err != nil {
			return err
		}
		if patch.ErrorInformation != nil {
			return tperror.FromInformation(*patch.ErrorInformation)
		}
		m.Data.AuthToken = patch.AuthToken
		return nil
	}).Wait(ctx, m.timeout(m.conf.Timeouts.AuthTokenExchangeSeconds))
	if err != nil {
		logger.Error("waiting for auth token failed", zap.String("consentRequestId", m.Data.ConsentRequestId), zap.Error(err))
		return m.notifyConsentRequestError(ctx, tperror.Reformat(err, tperror.ServerTimedOut))
	}
	return nil
}

func (m *Model) onValidateAuthToken(ctx context.Context, _ *statemachine.Model[*Data]) error {
	resp, err := m.conf.Backend.ValidateAuthToken(ctx, m.Data.ConsentRequestId, m.Data.AuthToken)
	if err != nil || resp == nil {
		logger.Error("auth token validation yielded no response", zap.String("consentRequestId", m.Data.ConsentRequestId), zap.Error(err))
		return m.notifyConsentRequestError(ctx, tperror.AuthTokenNoResponse)
	}
	if !resp.IsValid {
		return m.notifyConsentRequestError(ctx, tperror.OTPValidationError)
	}
	return nil
}

func (m *Model) onGrantConsent(ctx context.Context, _ *statemachine.Model[*Data]) error {
	consentId := uuid.New().String()
	if override, ok := m.conf.TestOverrides.ConsentIDLookup[m.Data.ConsentRequestId]; ok {
		logger.Warn("using deterministic consent id from test configuration",
			zap.String("consentRequestId", m.Data.ConsentRequestId))
		consentId = override
	}
	m.Data.ConsentId = consentId
	consent := &model.ConsentsPostRequest{
		ConsentId:        consentId,
		ConsentRequestId: m.Data.ConsentRequestId,
		Scopes:           m.Data.Request.Scopes,
	}

	channel, err := NotificationChannel(PhaseWaitOnSignedCredential, consentId)
	if err != nil {
		return err
	}
	job := deferredjob.New(m.conf.PubSub, channel)
	err = job.Init(ctx, func(string) error {
		return m.conf.Thirdparty.PostConsents(ctx, consent, m.Data.ToParticipantId)
	})
	if err != nil {
		logger.Error("granting consent failed", zap.String("consentId", consentId), zap.Error(err))
		return m.notifyConsentError(ctx, tperror.GenericLinkingError)
	}
	err = job.Job(func(payload []byte) error {
		var put model.ConsentsIDPutResponse
		if err := json.Unmarshal(payload, &put); err != nil {
			return err
		}
		if put.ErrorInformation != nil {
			return tperror.FromInformation(*put.ErrorInformation)
		}
		if put.Credential == nil {
			return tperror.SignedCredentialInvalid
		}
		m.Data.SignedCredential = put.Credential
		return nil
	}).Wait(ctx, m.timeout(m.conf.Timeouts.GrantConsentSeconds))
	if err != nil {
		logger.Error("waiting for signed credential failed", zap.String("consentId", consentId), zap.Error(err))
		return m.notifyConsentError(ctx, tperror.Reformat(err, tperror.ServerTimedOut))
	}
	return nil
}

func (m *Model) onValidateWithAuthService(ctx context.Context, _ *statemachine.Model[*Data]) error {
	consent := &model.ConsentsPostRequest{
		ConsentId:        m.Data.ConsentId,
		ConsentRequestId: m.Data.ConsentRequestId,
		Scopes:           m.Data.Request.Scopes,
		Credential:       m.Data.SignedCredential,
	}
	channel, err := NotificationChannel(PhaseWaitOnAuthServiceResponse, m.Data.ConsentId)
	if err != nil {
		return err
	}
	job := deferredjob.New(m.conf.PubSub, channel)
	err = job.Init(ctx, func(string) error {
		return m.conf.AuthService.PostConsents(ctx, consent)
	})
	if err != nil {
		logger.Error("registering consent with auth service failed", zap.String("consentId", m.Data.ConsentId), zap.Error(err))
		return m.notifyConsentError(ctx, tperror.ConsentInvalid)
	}
	err = job.Job(func(payload []byte) error {
		var put model.ConsentsIDPutResponse
		if err := json.Unmarshal(payload, &put); err != nil {
			return err
		}
		if put.ErrorInformation != nil {
			return tperror.ConsentInvalid
		}
		if put.Credential == nil || put.Credential.Status != model.CREDENTIAL_STATUS_VERIFIED {
			return tperror.ConsentInvalid
		}
		return nil
	}).Wait(ctx, m.timeout(m.conf.Timeouts.VerifyConsentSeconds))
	if err != nil {
		logger.Error("consent verification failed", zap.String("consentId", m.Data.ConsentId), zap.Error(err))
		return m.notifyConsentError(ctx, tperror.Reformat(err, tperror.ConsentInvalid))
	}
	return nil
}

func (m *Model) onStoreValidatedConsentWithDFSP(ctx context.Context, _ *statemachine.Model[*Data]) error {
	consent := &model.ConsentsPostRequest{
		ConsentId:        m.Data.ConsentId,
		ConsentRequestId: m.Data.ConsentRequestId,
		Scopes:           m.Data.Request.Scopes,
		Credential:       m.Data.SignedCredential,
	}
	if err := m.conf.Backend.StoreValidatedConsent(ctx, consent); err != nil {
		logger.Error("storing validated consent failed", zap.String("consentId", m.Data.ConsentId), zap.Error(err))
		return m.notifyConsentError(ctx, tperror.ConsentStoreError)
	}
	return nil
}

// onFinalizeThirdpartyLink is a placeholder. The account lookup registry
// contract for THIRD_PARTY_LINK entries is not specified yet, so the
// transition advances state without an outbound call.
func (m *Model) onFinalizeThirdpartyLink(ctx context.Context, _ *statemachine.Model[*Data]) error {
	logger.Debug("skipping registry notification, contract not specified",
		zap.String("consentId", m.Data.ConsentId))
	return nil
}

func (m *Model) onNotifyVerificationToPISP(ctx context.Context, _ *statemachine.Model[*Data]) error {
	patch := &model.ConsentsIDPatchRequest{
		Credential: model.SignedCredential{
			CredentialType: m.Data.SignedCredential.CredentialType,
			Status:         model.CREDENTIAL_STATUS_VERIFIED,
		},
	}
	if err := m.conf.Thirdparty.PatchConsents(ctx, m.Data.ConsentId, patch, m.Data.ToParticipantId); err != nil {
		logger.Error("notifying verification to PISP failed", zap.String("consentId", m.Data.ConsentId), zap.Error(err))
		return tperror.Reformat(err, tperror.GenericLinkingError)
	}
	return nil
}

// notifyConsentRequestError sends a best effort error callback keyed by
// the consent request id and returns tpErr for the caller to rethrow.
func (m *Model) notifyConsentRequestError(ctx context.Context, tpErr tperror.TPError) error {
	if err := m.conf.Thirdparty.PutConsentRequestsError(ctx, m.Data.ConsentRequestId, tpErr.Information(), m.Data.ToParticipantId); err != nil {
		logger.Error("error callback to PISP failed", zap.String("consentRequestId", m.Data.ConsentRequestId), zap.Error(err))
	}
	return tpErr
}

func (m *Model) notifyConsentError(ctx context.Context, tpErr tperror.TPError) error {
	if err := m.conf.Thirdparty.PutConsentsError(ctx, m.Data.ConsentId, tpErr.Information(), m.Data.ToParticipantId); err != nil {
		logger.Error("error callback to PISP failed", zap.String("consentId", m.Data.ConsentId), zap.Error(err))
	}
	return tpErr
}

func (m *Model) timeout(seconds int) time.Duration {
	if seconds <= 0 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}
