package pisplinking

import (
	"context"
	"testing"
	"time"

	"github.com/pispworks/thirdparty-adapter/clients/mock"
	"github.com/pispworks/thirdparty-adapter/config"
	"github.com/pispworks/thirdparty-adapter/model"
	"github.com/pispworks/thirdparty-adapter/persistence"
	"github.com/pispworks/thirdparty-adapter/persistence/inmem"
	"github.com/pispworks/thirdparty-adapter/pubsub"
	"github.com/pispworks/thirdparty-adapter/statemachine"
	"github.com/pispworks/thirdparty-adapter/tperror"
	"github.com/stretchr/testify/require"
)

const (
	testConsentRequestId = "cr-200"
	testDFSP             = "dfsp-b"
)

func newModel(t *testing.T, kvs persistence.KVS, ps *pubsub.InMemPubSub, thirdparty *mock.ThirdpartyRequests) *Model {
	t.Helper()
	m, err := Create(&Data{
		ConsentRequestId: testConsentRequestId,
		ToParticipantId:  testDFSP,
		Request: &model.ConsentRequestsPostRequest{
			ConsentRequestId: testConsentRequestId,
			UserId:           "user-1",
			Scopes:           []model.Scope{{AccountId: "acct-1", Actions: []string{"accounts.getBalance"}}},
			AuthChannels:     []model.AuthChannel{model.AUTH_CHANNEL_WEB, model.AUTH_CHANNEL_OTP},
			CallbackUri:      "https://pisp.example/callback",
		},
	}, ModelConfig{
		Key:        testConsentRequestId,
		KVS:        kvs,
		PubSub:     ps,
		Thirdparty: thirdparty,
		Timeouts: config.Timeouts{
			AuthTokenExchangeSeconds: 2,
			GrantConsentSeconds:      2,
		},
	})
	require.NoError(t, err)
	return m
}

func TestPISPLinkingFullConversation(t *testing.T) {
	ctx := context.Background()
	ps := pubsub.NewInMemPubSub()
	require.NoError(t, ps.Connect(ctx))
	kvs := inmem.NewInMemKVS()

	thirdparty := &mock.ThirdpartyRequests{}
	// the DFSP answers each outbound call through the switch; replying
	// from inside the mock proves the subscription precedes the send
	thirdparty.PostConsentRequestsFn = func(ctx context.Context, req *model.ConsentRequestsPostRequest, toParticipantId string) error {
		return TriggerWorkflow(ctx, PhaseWaitOnChannelResponse, req.ConsentRequestId, ps,
			model.ConsentRequestChannelResponse{
				ConsentRequestId: req.ConsentRequestId,
				Scopes:           req.Scopes,
				AuthChannels:     []model.AuthChannel{model.AUTH_CHANNEL_OTP},
				CallbackUri:      req.CallbackUri,
			})
	}
	thirdparty.PatchConsentRequestsFn = func(ctx context.Context, consentRequestId string, patch *model.ConsentRequestsIDPatchRequest, toParticipantId string) error {
		return TriggerWorkflow(ctx, PhaseWaitOnConsent, consentRequestId, ps,
			model.ConsentsPostRequest{
				ConsentId:        "consent-200",
				ConsentRequestId: consentRequestId,
			})
	}

	m := newModel(t, kvs, ps, thirdparty)
	require.NoError(t, m.RequestConsent(ctx))
	require.Equal(t, StateOTPChannelResponseReceived, m.State())
	response := m.GetResponse()
	require.NotNil(t, response.ChannelResponse)
	require.Equal(t, []model.AuthChannel{model.AUTH_CHANNEL_OTP}, response.ChannelResponse.AuthChannels)

	// the workflow survives a process restart between the two calls
	loaded, err := LoadFromKVS(ctx, ModelConfig{
		Key:        testConsentRequestId,
		KVS:        kvs,
		PubSub:     ps,
		Thirdparty: thirdparty,
		Timeouts:   config.Timeouts{GrantConsentSeconds: 2},
	})
	require.NoError(t, err)
	require.Equal(t, StateOTPChannelResponseReceived, loaded.State())

	require.NoError(t, loaded.Authenticate(ctx, "123456"))
	require.Equal(t, StateConsentReceivedAwaitingCredential, loaded.State())
	response = loaded.GetResponse()
	require.NotNil(t, response.Consent)
	require.Equal(t, "consent-200", response.Consent.ConsentId)
}

func TestPISPLinkingWebBranch(t *testing.T) {
	ctx := context.Background()
	ps := pubsub.NewInMemPubSub()
	require.NoError(t, ps.Connect(ctx))

	thirdparty := &mock.ThirdpartyRequests{}
	thirdparty.PostConsentRequestsFn = func(ctx context.Context, req *model.ConsentRequestsPostRequest, toParticipantId string) error {
		return TriggerWorkflow(ctx, PhaseWaitOnChannelResponse, req.ConsentRequestId, ps,
			model.ConsentRequestChannelResponse{
				AuthChannels: []model.AuthChannel{model.AUTH_CHANNEL_WEB},
				AuthUri:      "https://dfsp.example/login",
			})
	}

	m := newModel(t, inmem.NewInMemKVS(), ps, thirdparty)
	require.NoError(t, m.RequestConsent(ctx))
	require.Equal(t, StateWebChannelResponseReceived, m.State())
	require.Equal(t, "https://dfsp.example/login", m.GetResponse().ChannelResponse.AuthUri)
}

func TestPISPLinkingChannelResponseError(t *testing.T) {
	ctx := context.Background()
	ps := pubsub.NewInMemPubSub()
	require.NoError(t, ps.Connect(ctx))

	thirdparty := &mock.ThirdpartyRequests{}
	thirdparty.PostConsentRequestsFn = func(ctx context.Context, req *model.ConsentRequestsPostRequest, toParticipantId string) error {
		info := tperror.ConsentRequestValidationError.Information()
		return TriggerWorkflow(ctx, PhaseWaitOnChannelResponse, req.ConsentRequestId, ps,
			model.ConsentRequestChannelResponse{ErrorInformation: &info})
	}

	m := newModel(t, inmem.NewInMemKVS(), ps, thirdparty)
	err := m.RequestConsent(ctx)
	var tpErr tperror.TPError
	require.ErrorAs(t, err, &tpErr)
	require.Equal(t, tperror.ConsentRequestValidationError.Code, tpErr.Code)
	require.Equal(t, statemachine.Errored, m.State())
	require.Equal(t, tperror.ConsentRequestValidationError.Code, m.GetResponse().ErrorInformation.ErrorCode)
}

func TestPISPLinkingTimeout(t *testing.T) {
	ctx := context.Background()
	ps := pubsub.NewInMemPubSub()
	require.NoError(t, ps.Connect(ctx))

	thirdparty := &mock.ThirdpartyRequests{}
	m, err := Create(&Data{
		ConsentRequestId: testConsentRequestId,
		ToParticipantId:  testDFSP,
		Request:          &model.ConsentRequestsPostRequest{ConsentRequestId: testConsentRequestId},
	}, ModelConfig{
		Key:        testConsentRequestId,
		KVS:        inmem.NewInMemKVS(),
		PubSub:     ps,
		Thirdparty: thirdparty,
		Timeouts:   config.Timeouts{AuthTokenExchangeSeconds: 1},
	})
	require.NoError(t, err)

	start := time.Now()
	err = m.RequestConsent(ctx)
	var tpErr tperror.TPError
	require.ErrorAs(t, err, &tpErr)
	require.Equal(t, tperror.ServerTimedOut.Code, tpErr.Code)
	require.GreaterOrEqual(t, time.Since(start), time.Second)
	require.Equal(t, statemachine.Errored, m.State())
}
