package dfsptransaction

import (
	"context"
	"testing"

	"github.com/pispworks/thirdparty-adapter/clients/mock"
	"github.com/pispworks/thirdparty-adapter/config"
	"github.com/pispworks/thirdparty-adapter/model"
	"github.com/pispworks/thirdparty-adapter/persistence/inmem"
	"github.com/pispworks/thirdparty-adapter/pubsub"
	"github.com/pispworks/thirdparty-adapter/statemachine"
	"github.com/pispworks/thirdparty-adapter/tperror"
	"github.com/stretchr/testify/require"
)

const (
	testTransactionRequestId = "tr-400"
	testPISPId               = "pisp-a"
)

type deps struct {
	ps          *pubsub.InMemPubSub
	backend     *mock.DFSPBackend
	thirdparty  *mock.ThirdpartyRequests
	authService *mock.AuthServiceRequests
	sdk         *mock.SDKOutgoing
}

func newDeps(t *testing.T) *deps {
	t.Helper()
	ps := pubsub.NewInMemPubSub()
	require.NoError(t, ps.Connect(context.Background()))
	d := &deps{
		ps:          ps,
		backend:     &mock.DFSPBackend{},
		thirdparty:  &mock.ThirdpartyRequests{},
		authService: &mock.AuthServiceRequests{},
		sdk:         &mock.SDKOutgoing{},
	}
	d.sdk.RequestQuoteFn = func(ctx context.Context, req *model.QuoteRequest, toParticipantId string) (*model.QuoteResponse, error) {
		return &model.QuoteResponse{
			TransferAmount:     req.Amount,
			PayeeFspFee:        &model.Money{Currency: req.Amount.Currency, Amount: "1"},
			PayeeFspCommission: &model.Money{Currency: req.Amount.Currency, Amount: "0.5"},
			IlpPacket:          "packet",
			Condition:          "condition",
		}, nil
	}
	// the PISP accepts every authorization request
	d.thirdparty.PostAuthorizationsFn = func(ctx context.Context, req *model.AuthorizationRequest, toParticipantId string) error {
		return TriggerWorkflow(ctx, PhaseWaitOnAuthResponse, req.AuthorizationRequestId, d.ps,
			model.AuthorizationResponse{
				AuthorizationRequestId: req.AuthorizationRequestId,
				ResponseType:           model.AUTHORIZATION_RESPONSE_ACCEPTED,
				SignedPayload:          "signature",
			})
	}
	// the auth service verifies every signature
	d.authService.PostVerifyAuthorizationFn = func(ctx context.Context, req *model.VerificationRequest) error {
		return TriggerWorkflow(ctx, PhaseWaitOnVerificationResponse, req.VerificationRequestId, d.ps,
			model.VerificationResponse{AuthenticationResponse: model.AUTHENTICATION_RESPONSE_VERIFIED})
	}
	return d
}

func (d *deps) newModel(t *testing.T) *Model {
	t.Helper()
	m, err := Create(&Data{
		TransactionRequestId: testTransactionRequestId,
		ParticipantId:        testPISPId,
		Request: &model.ThirdpartyTransactionRequest{
			TransactionRequestId: testTransactionRequestId,
			Payee: model.Party{
				PartyIdInfo: model.PartyIdInfo{
					PartyIdType:     "MSISDN",
					PartyIdentifier: "447700900001",
					FspId:           "dfsp-b",
				},
				Name: "Bob Beneficiary",
			},
			Payer: model.PartyIdInfo{
				PartyIdType:     "THIRD_PARTY_LINK",
				PartyIdentifier: "acct-1",
				FspId:           "dfsp-a",
			},
			Amount:     model.Money{Currency: "USD", Amount: "100"},
			Expiration: "2026-09-01T00:00:00.000Z",
		},
	}, ModelConfig{
		Key:           testTransactionRequestId,
		KVS:           inmem.NewInMemKVS(),
		PubSub:        d.ps,
		Backend:       d.backend,
		Thirdparty:    d.thirdparty,
		AuthService:   d.authService,
		SDK:           d.sdk,
		ParticipantId: "dfsp-a",
		Timeouts: config.Timeouts{
			AuthorizationSeconds: 2,
			VerificationSeconds:  2,
		},
	})
	require.NoError(t, err)
	return m
}

func TestDFSPTransactionHappyPath(t *testing.T) {
	d := newDeps(t)
	var accepted *model.TransactionRequestResponse
	d.thirdparty.PutTransactionRequestsFn = func(ctx context.Context, transactionRequestId string, response *model.TransactionRequestResponse, toParticipantId string) error {
		require.Equal(t, testPISPId, toParticipantId)
		accepted = response
		return nil
	}
	var quote *model.QuoteRequest
	requestQuote := d.sdk.RequestQuoteFn
	d.sdk.RequestQuoteFn = func(ctx context.Context, req *model.QuoteRequest, toParticipantId string) (*model.QuoteResponse, error) {
		quote = req
		return requestQuote(ctx, req, toParticipantId)
	}
	var completed *model.TransactionRequestPatch
	d.thirdparty.PatchTransactionRequestsFn = func(ctx context.Context, transactionRequestId string, patch *model.TransactionRequestPatch, toParticipantId string) error {
		completed = patch
		return nil
	}

	m := d.newModel(t)
	require.NoError(t, m.Run(context.Background()))
	require.Equal(t, StateTransactionRequestIsDone, m.State())

	require.NotNil(t, accepted)
	require.Equal(t, model.TRANSACTION_REQUEST_STATE_RECEIVED, accepted.TransactionRequestState)
	require.Equal(t, m.Data.TransactionId, accepted.TransactionId)

	// the quote payer is rebuilt from the request's payer id info alone
	require.NotNil(t, quote)
	require.Equal(t, model.Party{PartyIdInfo: m.Data.Request.Payer}, quote.Payer)
	require.Equal(t, model.AMOUNT_TYPE_SEND, quote.AmountType)

	// derived amounts reach the authorization request
	require.Equal(t, "98.5", m.Data.AuthorizationRequest.PayeeReceiveAmount.Amount)
	require.Equal(t, "1.5", m.Data.AuthorizationRequest.Fees.Amount)
	require.NotEmpty(t, m.Data.AuthorizationRequest.Challenge)

	require.NotNil(t, completed)
	require.Equal(t, model.TRANSACTION_STATE_COMPLETED, completed.TransactionState)
	require.Equal(t, m.Data.TransactionId, completed.TransactionId)

	require.Equal(t, []string{"RequestQuote", "RequestTransfer"}, d.sdk.Calls())
	require.Equal(t, []string{"PostVerifyAuthorization"}, d.authService.Calls())
}

func TestDFSPTransactionUserRejects(t *testing.T) {
	d := newDeps(t)
	d.thirdparty.PostAuthorizationsFn = func(ctx context.Context, req *model.AuthorizationRequest, toParticipantId string) error {
		return TriggerWorkflow(ctx, PhaseWaitOnAuthResponse, req.AuthorizationRequestId, d.ps,
			model.AuthorizationResponse{
				AuthorizationRequestId: req.AuthorizationRequestId,
				ResponseType:           model.AUTHORIZATION_RESPONSE_REJECTED,
			})
	}
	var sentError *tperror.ErrorInformation
	d.thirdparty.PutTransactionRequestsErrorFn = func(ctx context.Context, transactionRequestId string, errInfo tperror.ErrorInformation, toParticipantId string) error {
		sentError = &errInfo
		return nil
	}

	m := d.newModel(t)
	err := m.Run(context.Background())
	var tpErr tperror.TPError
	require.ErrorAs(t, err, &tpErr)
	require.Equal(t, tperror.AuthorizationRejectedByUser.Code, tpErr.Code)
	require.Equal(t, statemachine.Errored, m.State())
	require.NotNil(t, sentError)
	require.Equal(t, tperror.AuthorizationRejectedByUser.Code, sentError.ErrorCode)
	// the transfer never runs for a rejected authorization
	require.NotContains(t, d.sdk.Calls(), "RequestTransfer")
}

func TestDFSPTransactionInvalidRequest(t *testing.T) {
	d := newDeps(t)
	d.backend.ValidateTransactionRequestFn = func(ctx context.Context, req *model.ThirdpartyTransactionRequest) (bool, error) {
		return false, nil
	}
	var sentError *tperror.ErrorInformation
	d.thirdparty.PutTransactionRequestsErrorFn = func(ctx context.Context, transactionRequestId string, errInfo tperror.ErrorInformation, toParticipantId string) error {
		sentError = &errInfo
		return nil
	}

	m := d.newModel(t)
	err := m.Run(context.Background())
	var tpErr tperror.TPError
	require.ErrorAs(t, err, &tpErr)
	require.Equal(t, tperror.TransactionRequestValidationError.Code, tpErr.Code)
	require.NotNil(t, sentError)
	require.Equal(t, statemachine.Errored, m.State())
}

func TestDFSPTransactionFixedChallengeOverride(t *testing.T) {
	d := newDeps(t)
	m, err := Create(&Data{
		TransactionRequestId: testTransactionRequestId,
		ParticipantId:        testPISPId,
		Request: &model.ThirdpartyTransactionRequest{
			TransactionRequestId: testTransactionRequestId,
			Payee:                model.Party{PartyIdInfo: model.PartyIdInfo{FspId: "dfsp-b"}},
			Payer:                model.PartyIdInfo{FspId: "dfsp-a"},
			Amount:               model.Money{Currency: "USD", Amount: "100"},
		},
	}, ModelConfig{
		Key:           testTransactionRequestId,
		KVS:           inmem.NewInMemKVS(),
		PubSub:        d.ps,
		Backend:       d.backend,
		Thirdparty:    d.thirdparty,
		AuthService:   d.authService,
		SDK:           d.sdk,
		ParticipantId: "dfsp-a",
		Timeouts:      config.Timeouts{AuthorizationSeconds: 2, VerificationSeconds: 2},
		TestOverrides: config.TestOverrides{FixedChallenge: "fixed-challenge"},
	})
	require.NoError(t, err)

	require.NoError(t, m.Run(context.Background()))
	require.Equal(t, "fixed-challenge", m.Data.AuthorizationRequest.Challenge)
}
