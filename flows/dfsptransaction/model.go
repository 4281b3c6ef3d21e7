// Package dfsptransaction orchestrates a third-party initiated
// transaction on the DFSP side: validate the request, notify acceptance,
// quote, obtain and verify the user's authorization, execute the
// transfer and notify completion.
package dfsptransaction

import (
	"context"
	"encoding/json"
	"fmt"
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

const WorkflowName string = "DFSPTransaction"

const (
	StateStart                        statemachine.State = "start"
	StateTransactionRequestIsValid    statemachine.State = "transactionRequestIsValid"
	StateNotifiedTransactionRequest   statemachine.State = "notifiedTransactionRequestIsValid"
	StateQuoteReceived                statemachine.State = "quoteReceived"
	StateAuthorizationReceived        statemachine.State = "authorizationReceived"
	StateAuthorizationReceivedIsValid statemachine.State = "authorizationReceivedIsValid"
	StateTransferIsDone               statemachine.State = "transferIsDone"
	StateTransactionRequestIsDone     statemachine.State = "transactionRequestIsDone"
)

const (
	transitionValidateTransactionRequest string = "validateTransactionRequest"
	transitionNotifyTransactionIsValid   string = "notifyTransactionRequestIsValid"
	transitionRequestQuote               string = "requestQuote"
	transitionRequestAuthorization       string = "requestAuthorization"
	transitionVerifyAuthorization        string = "verifyAuthorization"
	transitionRequestTransfer            string = "requestTransfer"
	transitionNotifyTransferIsDone       string = "notifyTransferIsDone"
)

type Phase string

const (
	PhaseWaitOnAuthResponse         Phase = "waitOnAuthResponseFromPISP"
	PhaseWaitOnVerificationResponse Phase = "waitOnVerificationResponse"
)

func NotificationChannel(phase Phase, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("notification channel requires a non-empty id")
	}
	return fmt.Sprintf("DFSPTransaction_%s_%s", phase, id), nil
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
	TransactionRequestId  string                              `json:"transactionRequestId"`
	TransactionId         string                              `json:"transactionId,omitempty"`
	TransferId            string                              `json:"transferId,omitempty"`
	ParticipantId         string                              `json:"participantId"`
	Request               *model.ThirdpartyTransactionRequest `json:"request"`
	QuoteRequest          *model.QuoteRequest                 `json:"quoteRequest,omitempty"`
	QuoteResponse         *model.QuoteResponse                `json:"quoteResponse,omitempty"`
	AuthorizationRequest  *model.AuthorizationRequest         `json:"authorizationRequest,omitempty"`
	AuthorizationResponse *model.AuthorizationResponse        `json:"authorizationResponse,omitempty"`
	VerificationRequest   *model.VerificationRequest          `json:"verificationRequest,omitempty"`
	TransferRequest       *model.TransferRequest              `json:"transferRequest,omitempty"`
	TransferResponse      *model.TransferResponse             `json:"transferResponse,omitempty"`
	ErrorInformation      *tperror.ErrorInformation           `json:"errorInformation,omitempty"`
}

type ModelConfig struct {
	Key           string
	KVS           persistence.KVS
	PubSub        pubsub.PubSub
	Backend       clients.DFSPBackend
	Thirdparty    clients.ThirdpartyRequests
	AuthService   clients.AuthServiceRequests
	SDK           clients.SDKOutgoing
	ParticipantId string
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
			{Name: transitionValidateTransactionRequest, From: []statemachine.State{StateStart}, To: StateTransactionRequestIsValid},
			{Name: transitionNotifyTransactionIsValid, From: []statemachine.State{StateTransactionRequestIsValid}, To: StateNotifiedTransactionRequest},
			{Name: transitionRequestQuote, From: []statemachine.State{StateNotifiedTransactionRequest}, To: StateQuoteReceived},
			{Name: transitionRequestAuthorization, From: []statemachine.State{StateQuoteReceived}, To: StateAuthorizationReceived},
			{Name: transitionVerifyAuthorization, From: []statemachine.State{StateAuthorizationReceived}, To: StateAuthorizationReceivedIsValid},
			{Name: transitionRequestTransfer, From: []statemachine.State{StateAuthorizationReceivedIsValid}, To: StateTransferIsDone},
			{Name: transitionNotifyTransferIsDone, From: []statemachine.State{StateTransferIsDone}, To: StateTransactionRequestIsDone},
		},
		Handlers: map[string]statemachine.Handler[*Data]{
			transitionValidateTransactionRequest: m.onValidateTransactionRequest,
			transitionNotifyTransactionIsValid:   m.onNotifyTransactionRequestIsValid,
			transitionRequestQuote:               m.onRequestQuote,
			transitionRequestAuthorization:       m.onRequestAuthorization,
			transitionVerifyAuthorization:        m.onVerifyAuthorization,
			transitionRequestTransfer:            m.onRequestTransfer,
			transitionNotifyTransferIsDone:       m.onNotifyTransferIsDone,
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

// Run resumes at the persisted state and proceeds through all remaining
// steps, persisting after each transition. Any failure is reformatted
// once here, persisted as errored and rethrown.
func (m *Model) Run(ctx context.Context) error {
	for {
		var transition string
		switch m.State() {
		case StateStart:
			transition = transitionValidateTransactionRequest
		case StateTransactionRequestIsValid:
			transition = transitionNotifyTransactionIsValid
		case StateNotifiedTransactionRequest:
			transition = transitionRequestQuote
		case StateQuoteReceived:
			transition = transitionRequestAuthorization
		case StateAuthorizationReceived:
			transition = transitionVerifyAuthorization
		case StateAuthorizationReceivedIsValid:
			transition = transitionRequestTransfer
		case StateTransferIsDone:
			transition = transitionNotifyTransferIsDone
		case StateTransactionRequestIsDone:
			logger.Info("transaction workflow complete", zap.String("transactionRequestId", m.Data.TransactionRequestId))
			return nil
		case statemachine.Errored:
			logger.Warn("attempted to run an errored transaction workflow", zap.String("transactionRequestId", m.Data.TransactionRequestId))
			return nil
		default:
			logger.Error("transaction workflow in unexpected state", zap.String("state", string(m.State())))
			return nil
		}
		if err := m.Transition(ctx, transition); err != nil {
			tpErr := tperror.Reformat(err, tperror.GenericTransactionError)
			info := tpErr.Information()
			m.Data.ErrorInformation = &info
			if jumpErr := m.JumpToError(ctx); jumpErr != nil {
				logger.Error("error transition failed", zap.Error(jumpErr))
			}
			if saveErr := m.SaveToKVS(ctx); saveErr != nil {
				logger.Error("error persisting errored transaction workflow", zap.Error(saveErr))
			}
			return tpErr
		}
		if err := m.SaveToKVS(ctx); err != nil {
			return err
		}
	}
}

func (m *Model) onValidateTransactionRequest(ctx context.Context, _ *statemachine.Model[*Data]) error {
	isValid, err := m.conf.Backend.ValidateTransactionRequest(ctx, m.Data.Request)
	if err != nil {
		logger.Error("transaction request validation failed", zap.String("transactionRequestId", m.Data.TransactionRequestId), zap.Error(err))
		return m.notifyTransactionError(ctx, tperror.TransactionRequestValidationError)
	}
	if !isValid {
		return m.notifyTransactionError(ctx, tperror.TransactionRequestValidationError)
	}
	return nil
}

func (m *Model) onNotifyTransactionRequestIsValid(ctx context.Context, _ *statemachine.Model[*Data]) error {
	m.Data.TransactionId = uuid.New().String()
	response := &model.TransactionRequestResponse{
		TransactionId:           m.Data.TransactionId,
		TransactionRequestState: model.TRANSACTION_REQUEST_STATE_RECEIVED,
	}
	if err := m.conf.Thirdparty.PutTransactionRequests(ctx, m.Data.TransactionRequestId, response, m.Data.ParticipantId); err != nil {
		logger.Error("notifying transaction request acceptance failed", zap.String("transactionRequestId", m.Data.TransactionRequestId), zap.Error(err))
		return m.notifyTransactionError(ctx, tperror.TransactionRequestNotificationError)
	}
	return nil
}

func (m *Model) onRequestQuote(ctx context.Context, _ *statemachine.Model[*Data]) error {
	// the quote payer is built solely from the request's payer id info,
	// never copied wholesale from an inbound party
	quoteRequest := &model.QuoteRequest{
		QuoteId:              uuid.New().String(),
		TransactionId:        m.Data.TransactionId,
		TransactionRequestId: m.Data.TransactionRequestId,
		Payee:                m.Data.Request.Payee,
		Payer:                model.Party{PartyIdInfo: m.Data.Request.Payer},
		AmountType:           model.AMOUNT_TYPE_SEND,
		Amount:               m.Data.Request.Amount,
		TransactionType:      m.Data.Request.TransactionType,
	}
	m.Data.QuoteRequest = quoteRequest
	response, err := m.conf.SDK.RequestQuote(ctx, quoteRequest, m.Data.Request.Payee.PartyIdInfo.FspId)
	if err != nil {
		logger.Error("quote request failed", zap.String("transactionRequestId", m.Data.TransactionRequestId), zap.Error(err))
		return m.notifyTransactionError(ctx, tperror.QuoteRequestError)
	}
	m.Data.QuoteResponse = response
	return nil
}

func (m *Model) onRequestAuthorization(ctx context.Context, _ *statemachine.Model[*Data]) error {
	receiveAmount, fees, err := CalculateReceiveAmountAndFees(
		m.Data.QuoteResponse.TransferAmount,
		m.Data.QuoteResponse.PayeeFspFee,
		m.Data.QuoteResponse.PayeeFspCommission,
	)
	if err != nil {
		return m.notifyTransactionError(ctx, tperror.Reformat(err, tperror.AuthorizationRequestError))
	}
	partial := AuthRequestPartial{
		AuthorizationRequestId: uuid.New().String(),
		TransactionRequestId:   m.Data.TransactionRequestId,
		TransferAmount:         m.Data.QuoteResponse.TransferAmount,
		PayeeReceiveAmount:     receiveAmount,
		Fees:                   fees,
		Payer:                  m.Data.Request.Payer,
		Payee:                  m.Data.Request.Payee,
		TransactionType:        m.Data.Request.TransactionType,
		Expiration:             m.Data.Request.Expiration,
	}
	challenge := m.conf.TestOverrides.FixedChallenge
	if challenge != "" {
		logger.Warn("using fixed challenge from test configuration",
			zap.String("transactionRequestId", m.Data.TransactionRequestId))
	} else {
		challenge, err = DeriveTransactionChallenge(partial)
		if err != nil {
			return m.notifyTransactionError(ctx, tperror.Reformat(err, tperror.AuthorizationRequestError))
		}
	}
	authRequest := &model.AuthorizationRequest{
		AuthorizationRequestId: partial.AuthorizationRequestId,
		TransactionRequestId:   partial.TransactionRequestId,
		Challenge:              challenge,
		TransferAmount:         partial.TransferAmount,
		PayeeReceiveAmount:     partial.PayeeReceiveAmount,
		Fees:                   partial.Fees,
		Payer:                  partial.Payer,
		Payee:                  partial.Payee,
		TransactionType:        partial.TransactionType,
		Expiration:             partial.Expiration,
	}
	m.Data.AuthorizationRequest = authRequest

	// keyed by the authorization request id, the only correlation id the
	// inbound PUT authorization handler has
	channel, err := NotificationChannel(PhaseWaitOnAuthResponse, authRequest.AuthorizationRequestId)
	if err != nil {
		return err
	}
	job := deferredjob.New(m.conf.PubSub, channel)
	err = job.Init(ctx, func(string) error {
		return m.conf.Thirdparty.PostAuthorizations(ctx, authRequest, m.Data.ParticipantId)
	})
	if err != nil {
		logger.Error("posting authorization request failed", zap.String("transactionRequestId", m.Data.TransactionRequestId), zap.Error(err))
		return m.notifyTransactionError(ctx, tperror.AuthorizationRequestError)
	}
	err = job.Job(func(payload []byte) error {
		var response model.AuthorizationResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			return err
		}
		if response.ErrorInformation != nil {
			return tperror.FromInformation(*response.ErrorInformation)
		}
		if response.ResponseType == model.AUTHORIZATION_RESPONSE_REJECTED {
			return tperror.AuthorizationRejectedByUser
		}
		m.Data.AuthorizationResponse = &response
		return nil
	}).Wait(ctx, m.timeout(m.conf.Timeouts.AuthorizationSeconds))
	if err != nil {
		logger.Error("waiting for authorization failed", zap.String("transactionRequestId", m.Data.TransactionRequestId), zap.Error(err))
		return m.notifyTransactionError(ctx, tperror.Reformat(err, tperror.AuthorizationRequestError))
	}
	return nil
}

func (m *Model) onVerifyAuthorization(ctx context.Context, _ *statemachine.Model[*Data]) error {
	verification := &model.VerificationRequest{
		VerificationRequestId: uuid.New().String(),
		Challenge:             m.Data.AuthorizationRequest.Challenge,
		ConsentId:             m.Data.AuthorizationResponse.AuthorizationRequestId,
		SignedPayload:         m.Data.AuthorizationResponse.SignedPayload,
	}
	m.Data.VerificationRequest = verification

	channel, err := NotificationChannel(PhaseWaitOnVerificationResponse, verification.VerificationRequestId)
	if err != nil {
		return err
	}
	job := deferredjob.New(m.conf.PubSub, channel)
	err = job.Init(ctx, func(string) error {
		return m.conf.AuthService.PostVerifyAuthorization(ctx, verification)
	})
	if err != nil {
		logger.Error("posting verification request failed", zap.String("transactionRequestId", m.Data.TransactionRequestId), zap.Error(err))
		return m.notifyTransactionError(ctx, tperror.AuthorizationVerificationError)
	}
	err = job.Job(func(payload []byte) error {
		var response model.VerificationResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			return err
		}
		if response.ErrorInformation != nil {
			return tperror.AuthorizationVerificationError
		}
		if response.AuthenticationResponse != model.AUTHENTICATION_RESPONSE_VERIFIED {
			return tperror.AuthorizationVerificationError
		}
		return nil
	}).Wait(ctx, m.timeout(m.conf.Timeouts.VerificationSeconds))
	if err != nil {
		logger.Error("authorization verification failed", zap.String("transactionRequestId", m.Data.TransactionRequestId), zap.Error(err))
		return m.notifyTransactionError(ctx, tperror.Reformat(err, tperror.AuthorizationVerificationError))
	}
	return nil
}

func (m *Model) onRequestTransfer(ctx context.Context, _ *statemachine.Model[*Data]) error {
	m.Data.TransferId = uuid.New().String()
	transferRequest := &model.TransferRequest{
		TransferId: m.Data.TransferId,
		PayerFsp:   m.Data.Request.Payer.FspId,
		PayeeFsp:   m.Data.Request.Payee.PartyIdInfo.FspId,
		Amount:     m.Data.QuoteResponse.TransferAmount,
		IlpPacket:  m.Data.QuoteResponse.IlpPacket,
		Condition:  m.Data.QuoteResponse.Condition,
		Expiration: m.Data.Request.Expiration,
	}
	m.Data.TransferRequest = transferRequest
	response, err := m.conf.SDK.RequestTransfer(ctx, transferRequest)
	if err != nil {
		logger.Error("transfer request failed", zap.String("transferId", m.Data.TransferId), zap.Error(err))
		return m.notifyTransactionError(ctx, tperror.TransferRequestError)
	}
	if response.TransferState != model.TRANSFER_STATE_COMMITTED {
		logger.Error("transfer not committed", zap.String("transferId", m.Data.TransferId), zap.String("state", response.TransferState))
		return m.notifyTransactionError(ctx, tperror.TransferRequestError)
	}
	m.Data.TransferResponse = response
	return nil
}

func (m *Model) onNotifyTransferIsDone(ctx context.Context, _ *statemachine.Model[*Data]) error {
	patch := &model.TransactionRequestPatch{
		TransactionId:    m.Data.TransactionId,
		TransactionState: model.TRANSACTION_STATE_COMPLETED,
	}
	if err := m.conf.Thirdparty.PatchTransactionRequests(ctx, m.Data.TransactionRequestId, patch, m.Data.ParticipantId); err != nil {
		logger.Error("notifying transaction completion failed", zap.String("transactionRequestId", m.Data.TransactionRequestId), zap.Error(err))
		return m.notifyTransactionError(ctx, tperror.TransactionCompletionNotifyError)
	}
	return nil
}

func (m *Model) notifyTransactionError(ctx context.Context, tpErr tperror.TPError) error {
	if err := m.conf.Thirdparty.PutTransactionRequestsError(ctx, m.Data.TransactionRequestId, tpErr.Information(), m.Data.ParticipantId); err != nil {
		logger.Error("error callback to PISP failed", zap.String("transactionRequestId", m.Data.TransactionRequestId), zap.Error(err))
	}
	return tpErr
}

func (m *Model) timeout(seconds int) time.Duration {
	if seconds <= 0 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}
