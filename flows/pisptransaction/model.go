// Package pisptransaction mirrors the transaction flow from the
// initiating party's perspective: look the payee up, initiate the
// transaction (awaiting the switch's acknowledgement and the payee
// DFSP's authorization request concurrently) and submit the approval.
package pisptransaction

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

const WorkflowName string = "PISPTransaction"

const (
	StatePartyLookupSuccess    statemachine.State = "partyLookupSuccess"
	StateStart                 statemachine.State = "start"
	StateAuthorizationReceived statemachine.State = "authorizationReceived"
	StateApprovalReceived      statemachine.State = "approvalReceived"
)

const (
	transitionRequestPartyLookup string = "requestPartyLookup"
	transitionInitiate           string = "initiate"
	transitionApprove            string = "approve"
)

type Phase string

const (
	PhaseWaitOnTransactionPut    Phase = "waitOnTransactionPut"
	PhaseWaitOnAuthorizationPost Phase = "waitOnAuthorizationPost"
	PhaseWaitOnApprovalPatch     Phase = "waitOnApprovalPatch"
)

// NotificationChannel follows the pisp_transaction_<phase>_<id> scheme.
func NotificationChannel(phase Phase, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("notification channel requires a non-empty id")
	}
	return fmt.Sprintf("pisp_transaction_%s_%s", phase, id), nil
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
	PayeeFspId            string                              `json:"payeeFspId,omitempty"`
	Request               *model.ThirdpartyTransactionRequest `json:"request"`
	Payee                 *model.Party                        `json:"payee,omitempty"`
	TransactionResponse   *model.TransactionRequestResponse   `json:"transactionResponse,omitempty"`
	AuthorizationRequest  *model.AuthorizationRequest         `json:"authorizationRequest,omitempty"`
	AuthorizationResponse *model.AuthorizationResponse        `json:"authorizationResponse,omitempty"`
	TransactionStatus     *model.TransactionRequestPatch      `json:"transactionStatus,omitempty"`
	ErrorInformation      *tperror.ErrorInformation           `json:"errorInformation,omitempty"`
}

type ModelConfig struct {
	Key        string
	KVS        persistence.KVS
	PubSub     pubsub.PubSub
	Thirdparty clients.ThirdpartyRequests
	SDK        clients.SDKOutgoing
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
			{Name: transitionRequestPartyLookup, From: []statemachine.State{StateStart}, To: StatePartyLookupSuccess},
			{Name: transitionInitiate, From: []statemachine.State{StatePartyLookupSuccess}, To: StateAuthorizationReceived},
			{Name: transitionApprove, From: []statemachine.State{StateAuthorizationReceived}, To: StateApprovalReceived},
		},
		Handlers: map[string]statemachine.Handler[*Data]{
			transitionRequestPartyLookup: m.onRequestPartyLookup,
			transitionInitiate:           m.onInitiate,
			transitionApprove:            m.onApprove,
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

// RequestPartyLookup resolves the payee so the end user can confirm who
// they are paying before initiation.
func (m *Model) RequestPartyLookup(ctx context.Context) error {
	return m.step(ctx, transitionRequestPartyLookup)
}

// Initiate sends the transaction request and suspends until both the
// switch acknowledgement and the payee DFSP's authorization request have
// arrived.
func (m *Model) Initiate(ctx context.Context) error {
	return m.step(ctx, transitionInitiate)
}

// Approve submits the signed authorization and suspends until the
// completion notification arrives.
func (m *Model) Approve(ctx context.Context, response *model.AuthorizationResponse) error {
	m.Data.AuthorizationResponse = response
	return m.step(ctx, transitionApprove)
}

func (m *Model) step(ctx context.Context, transition string) error {
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
	return m.SaveToKVS(ctx)
}

func (m *Model) onRequestPartyLookup(ctx context.Context, _ *statemachine.Model[*Data]) error {
	idInfo := m.Data.Request.Payee.PartyIdInfo
	party, err := m.conf.SDK.RequestPartiesInformation(ctx, idInfo.PartyIdType, idInfo.PartyIdentifier, idInfo.PartySubIdOrTyp)
	if err != nil {
		logger.Error("party lookup failed", zap.String("transactionRequestId", m.Data.TransactionRequestId), zap.Error(err))
		return tperror.Reformat(err, tperror.PartyLookupError)
	}
	m.Data.Payee = party
	m.Data.PayeeFspId = party.PartyIdInfo.FspId
	return nil
}

// onInitiate correlates on two differently keyed channels concurrently.
// Both subscriptions are established before the outbound request goes
// out, so neither reply can be missed regardless of arrival order.
func (m *Model) onInitiate(ctx context.Context, _ *statemachine.Model[*Data]) error {
	putChannel, err := NotificationChannel(PhaseWaitOnTransactionPut, m.Data.TransactionRequestId)
	if err != nil {
		return err
	}
	authChannel, err := NotificationChannel(PhaseWaitOnAuthorizationPost, m.Data.TransactionRequestId)
	if err != nil {
		return err
	}

	putJob := deferredjob.New(m.conf.PubSub, putChannel)
	if err := putJob.Init(ctx, func(string) error { return nil }); err != nil {
		return tperror.Reformat(err, tperror.GenericTransactionError)
	}
	authJob := deferredjob.New(m.conf.PubSub, authChannel)
	err = authJob.Init(ctx, func(string) error {
		return m.conf.Thirdparty.PostTransactionRequests(ctx, m.Data.Request, m.Data.PayeeFspId)
	})
	if err != nil {
		logger.Error("posting transaction request failed", zap.String("transactionRequestId", m.Data.TransactionRequestId), zap.Error(err))
		putJob.Cancel(ctx)
		return tperror.Reformat(err, tperror.GenericTransactionError)
	}

	putJob.Job(func(payload []byte) error {
		var response model.TransactionRequestResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			return err
		}
		if response.ErrorInformation != nil {
			return tperror.FromInformation(*response.ErrorInformation)
		}
		m.Data.TransactionResponse = &response
		m.Data.TransactionId = response.TransactionId
		return nil
	})
	authJob.Job(func(payload []byte) error {
		var request model.AuthorizationRequest
		if err := json.Unmarshal(payload, &request); err != nil {
			return err
		}
		m.Data.AuthorizationRequest = &request
		return nil
	})

	putResult := make(chan error, 1)
	authResult := make(chan error, 1)
	go func() {
		putResult <- putJob.Wait(ctx, m.timeout(m.conf.Timeouts.TransactionPutSeconds))
	}()
	go func() {
		authResult <- authJob.Wait(ctx, m.timeout(m.conf.Timeouts.AuthorizationSeconds))
	}()
	putErr := <-putResult
	authErr := <-authResult
	if putErr != nil {
		logger.Error("waiting for transaction acknowledgement failed", zap.String("transactionRequestId", m.Data.TransactionRequestId), zap.Error(putErr))
		return tperror.Reformat(putErr, tperror.TransactionRequestNoResponse)
	}
	if authErr != nil {
		logger.Error("waiting for authorization request failed", zap.String("transactionRequestId", m.Data.TransactionRequestId), zap.Error(authErr))
		return tperror.Reformat(authErr, tperror.AuthorizationRequestNoResponse)
	}
	return nil
}

func (m *Model) onApprove(ctx context.Context, _ *statemachine.Model[*Data]) error {
	channel, err := NotificationChannel(PhaseWaitOnApprovalPatch, m.Data.TransactionRequestId)
	if err != nil {
		return err
	}
	job := deferredjob.New(m.conf.PubSub, channel)
	err = job.Init(ctx, func(string) error {
		return m.conf.Thirdparty.PutAuthorizations(ctx, m.Data.AuthorizationRequest.AuthorizationRequestId, m.Data.AuthorizationResponse, m.Data.PayeeFspId)
	})
	if err != nil {
		logger.Error("submitting authorization failed", zap.String("transactionRequestId", m.Data.TransactionRequestId), zap.Error(err))
		return tperror.Reformat(err, tperror.GenericTransactionError)
	}
	err = job.Job(func(payload []byte) error {
		var patch model.TransactionRequestPatch
		if err := json.Unmarshal(payload, &patch); err != nil {
			return err
		}
		if patch.ErrorInformation != nil {
			return tperror.FromInformation(*patch.ErrorInformation)
		}
		m.Data.TransactionStatus = &patch
		return nil
	}).Wait(ctx, m.timeout(m.conf.Timeouts.ApprovalSeconds))
	if err != nil {
		logger.Error("waiting for approval confirmation failed", zap.String("transactionRequestId", m.Data.TransactionRequestId), zap.Error(err))
		return tperror.Reformat(err, tperror.TransactionApprovalNoResponse)
	}
	return nil
}

// TransactionResponse is the outward facing view of the workflow, shaped
// by the current state.
type TransactionResponse struct {
	CurrentState         string                         `json:"currentState"`
	Payee                *model.Party                   `json:"payee,omitempty"`
	AuthorizationRequest *model.AuthorizationRequest    `json:"authorization,omitempty"`
	TransactionStatus    *model.TransactionRequestPatch `json:"transactionStatus,omitempty"`
	ErrorInformation     *tperror.ErrorInformation      `json:"errorInformation,omitempty"`
}

func (m *Model) GetResponse() *TransactionResponse {
	response := &TransactionResponse{CurrentState: string(m.State())}
	switch m.State() {
	case StatePartyLookupSuccess:
		response.Payee = m.Data.Payee
	case StateAuthorizationReceived:
		response.AuthorizationRequest = m.Data.AuthorizationRequest
	case StateApprovalReceived:
		response.TransactionStatus = m.Data.TransactionStatus
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
