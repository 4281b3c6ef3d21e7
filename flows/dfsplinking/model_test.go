package dfsplinking

import (
	"context"
	"testing"
	"time"

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
	testConsentRequestId = "cr-100"
	testConsentId        = "consent-100"
	testPISP             = "pisp-a"
)

func newFixture(t *testing.T) (*Model, *mock.DFSPBackend, *mock.ThirdpartyRequests, *mock.AuthServiceRequests, *pubsub.InMemPubSub) {
	t.Helper()
	ps := pubsub.NewInMemPubSub()
	require.NoError(t, ps.Connect(context.Background()))
	backend := &mock.DFSPBackend{}
	thirdparty := &mock.ThirdpartyRequests{}
	authService := &mock.AuthServiceRequests{}

	m, err := Create(&Data{
		ConsentRequestId: testConsentRequestId,
		ToParticipantId:  testPISP,
		Request: &model.ConsentRequestsPostRequest{
			ConsentRequestId: testConsentRequestId,
			UserId:           "user-1",
			Scopes:           []model.Scope{{AccountId: "acct-1", Actions: []string{"accounts.transfer"}}},
			AuthChannels:     []model.AuthChannel{model.AUTH_CHANNEL_WEB, model.AUTH_CHANNEL_OTP},
			CallbackUri:      "https://pisp.example/callback",
		},
	}, ModelConfig{
		Key:         testConsentRequestId,
		KVS:         inmem.NewInMemKVS(),
		PubSub:      ps,
		Backend:     backend,
		Thirdparty:  thirdparty,
		AuthService: authService,
		Timeouts: config.Timeouts{
			AuthTokenExchangeSeconds: 2,
			GrantConsentSeconds:      2,
			VerifyConsentSeconds:     2,
		},
		TestOverrides: config.TestOverrides{
			ConsentIDLookup: map[string]string{testConsentRequestId: testConsentId},
		},
	})
	require.NoError(t, err)
	return m, backend, thirdparty, authService, ps
}

func waitForSubscriber(t *testing.T, ps *pubsub.InMemPubSub, phase Phase, id string) string {
	t.Helper()
	channel, err := NotificationChannel(phase, id)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return ps.SubscriberCount(channel) == 1
	}, 2*time.Second, 5*time.Millisecond, "workflow never suspended on %s", channel)
	return channel
}

func TestDFSPLinkingWebHappyPath(t *testing.T) {
	m, backend, thirdparty, authService, ps := newFixture(t)
	backend.ValidateConsentRequestsFn = func(ctx context.Context, req *model.ConsentRequestsPostRequest) (*model.ConsentRequestsValidateResponse, error) {
		return &model.ConsentRequestsValidateResponse{
			IsValid:      true,
			AuthChannels: []model.AuthChannel{model.AUTH_CHANNEL_WEB},
		}, nil
	}
	var sentResponse *model.ConsentRequestChannelResponse
	thirdparty.PutConsentRequestsFn = func(ctx context.Context, consentRequestId string, response *model.ConsentRequestChannelResponse, toParticipantId string) error {
		sentResponse = response
		return nil
	}
	var patched *model.ConsentsIDPatchRequest
	thirdparty.PatchConsentsFn = func(ctx context.Context, consentId string, patch *model.ConsentsIDPatchRequest, toParticipantId string) error {
		patched = patch
		return nil
	}

	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	// the PISP answers with the user's auth token
	waitForSubscriber(t, ps, PhaseRequestAuthToken, testConsentRequestId)
	require.NoError(t, TriggerWorkflow(ctx, PhaseRequestAuthToken, testConsentRequestId, ps,
		model.ConsentRequestsIDPatchRequest{AuthToken: "123456"}))

	// the PISP answers the consent grant with a signed credential
	waitForSubscriber(t, ps, PhaseWaitOnSignedCredential, testConsentId)
	require.NoError(t, TriggerWorkflow(ctx, PhaseWaitOnSignedCredential, testConsentId, ps,
		model.ConsentsIDPutResponse{Credential: &model.SignedCredential{
			CredentialType: "FIDO",
			Status:         model.CREDENTIAL_STATUS_PENDING,
			Payload:        "signed",
		}}))

	// the auth service confirms the credential
	waitForSubscriber(t, ps, PhaseWaitOnAuthServiceResponse, testConsentId)
	require.NoError(t, TriggerWorkflow(ctx, PhaseWaitOnAuthServiceResponse, testConsentId, ps,
		model.ConsentsIDPutResponse{Credential: &model.SignedCredential{
			CredentialType: "FIDO",
			Status:         model.CREDENTIAL_STATUS_VERIFIED,
		}}))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("workflow did not finish")
	}

	require.Equal(t, StateNotificationSent, m.State())
	require.Equal(t, "123456", m.Data.AuthToken)
	require.Equal(t, testConsentId, m.Data.ConsentId)

	// WEB channel carries an auth uri derived from the callback
	require.NotNil(t, sentResponse)
	require.Equal(t, []model.AuthChannel{model.AUTH_CHANNEL_WEB}, sentResponse.AuthChannels)
	require.Equal(t, "https://pisp.example/callback/authenticate", sentResponse.AuthUri)

	// final notification marks the credential verified
	require.NotNil(t, patched)
	require.Equal(t, model.CREDENTIAL_STATUS_VERIFIED, patched.Credential.Status)

	require.Equal(t, []string{"ValidateConsentRequests", "StoreConsentRequests", "ValidateAuthToken", "StoreValidatedConsent"}, backend.Calls())
	require.Equal(t, []string{"PutConsentRequests", "PostConsents", "PatchConsents"}, thirdparty.Calls())
	require.Equal(t, []string{"PostConsents"}, authService.Calls())
}

func TestDFSPLinkingInvalidOTP(t *testing.T) {
	m, backend, thirdparty, _, ps := newFixture(t)
	backend.ValidateConsentRequestsFn = func(ctx context.Context, req *model.ConsentRequestsPostRequest) (*model.ConsentRequestsValidateResponse, error) {
		return &model.ConsentRequestsValidateResponse{
			IsValid:      true,
			AuthChannels: []model.AuthChannel{model.AUTH_CHANNEL_OTP},
		}, nil
	}
	backend.ValidateAuthTokenFn = func(ctx context.Context, consentRequestId string, authToken string) (*model.AuthTokenValidateResponse, error) {
		return &model.AuthTokenValidateResponse{IsValid: false}, nil
	}
	var sentError *tperror.ErrorInformation
	thirdparty.PutConsentRequestsErrorFn = func(ctx context.Context, consentRequestId string, errInfo tperror.ErrorInformation, toParticipantId string) error {
		sentError = &errInfo
		return nil
	}

	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	waitForSubscriber(t, ps, PhaseRequestAuthToken, testConsentRequestId)
	require.NoError(t, TriggerWorkflow(ctx, PhaseRequestAuthToken, testConsentRequestId, ps,
		model.ConsentRequestsIDPatchRequest{AuthToken: "000000"}))

	var runErr error
	select {
	case runErr = <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("workflow did not finish")
	}

	// a failed OTP check is its own error, distinct from no response
	var tpErr tperror.TPError
	require.ErrorAs(t, runErr, &tpErr)
	require.Equal(t, tperror.OTPValidationError.Code, tpErr.Code)
	require.Equal(t, statemachine.Errored, m.State())
	require.NotNil(t, m.Data.ErrorInformation)
	require.Equal(t, tperror.OTPValidationError.Code, m.Data.ErrorInformation.ErrorCode)
	require.NotNil(t, sentError)
	require.Equal(t, tperror.OTPValidationError.Code, sentError.ErrorCode)

	// OTP channel stores nothing, it sends the token instead
	require.Equal(t, []string{"ValidateConsentRequests", "SendOTP", "ValidateAuthToken"}, backend.Calls())
}

func TestDFSPLinkingValidationRejected(t *testing.T) {
	m, backend, thirdparty, _, _ := newFixture(t)
	backend.ValidateConsentRequestsFn = func(ctx context.Context, req *model.ConsentRequestsPostRequest) (*model.ConsentRequestsValidateResponse, error) {
		return &model.ConsentRequestsValidateResponse{IsValid: false}, nil
	}
	var sentError *tperror.ErrorInformation
	thirdparty.PutConsentRequestsErrorFn = func(ctx context.Context, consentRequestId string, errInfo tperror.ErrorInformation, toParticipantId string) error {
		sentError = &errInfo
		return nil
	}

	err := m.Run(context.Background())
	var tpErr tperror.TPError
	require.ErrorAs(t, err, &tpErr)
	require.Equal(t, tperror.ConsentRequestValidationError.Code, tpErr.Code)
	require.Equal(t, statemachine.Errored, m.State())
	require.NotNil(t, sentError)
}

func TestNotificationChannelRequiresId(t *testing.T) {
	_, err := NotificationChannel(PhaseRequestAuthToken, "")
	require.Error(t, err)

	channel, err := NotificationChannel(PhaseWaitOnSignedCredential, "abc")
	require.NoError(t, err)
	require.Equal(t, "DFSPLinking_waitOnSignedCredential_abc", channel)
}
