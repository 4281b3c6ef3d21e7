package rest

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pispworks/thirdparty-adapter/clients/mock"
	"github.com/pispworks/thirdparty-adapter/config"
	"github.com/pispworks/thirdparty-adapter/flows/dfsplinking"
	"github.com/pispworks/thirdparty-adapter/model"
	"github.com/pispworks/thirdparty-adapter/persistence/inmem"
	"github.com/pispworks/thirdparty-adapter/pubsub"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *pubsub.InMemPubSub) {
	t.Helper()
	ps := pubsub.NewInMemPubSub()
	require.NoError(t, ps.Connect(context.Background()))
	s, err := NewServer(0, &Deps{
		KVS:         inmem.NewInMemKVS(),
		PubSub:      ps,
		Backend:     &mock.DFSPBackend{},
		Thirdparty:  &mock.ThirdpartyRequests{},
		AuthService: &mock.AuthServiceRequests{},
		SDK:         &mock.SDKOutgoing{},
		Conf: config.Config{
			ParticipantId: "dfsp-a",
			Timeouts:      config.Timeouts{AuthTokenExchangeSeconds: 1},
		},
	})
	require.NoError(t, err)
	return s, ps
}

func do(s *Server, method, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("FSPIOP-Source", "pisp-a")
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"OK"}`, rec.Body.String())
}

func TestPostConsentRequestsAccepted(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(s, http.MethodPost, "/consentRequests",
		`{"consentRequestId":"cr-1","userId":"u-1","scopes":[],"authChannels":["WEB"],"callbackUri":"https://pisp/cb"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestPostConsentRequestsBadBody(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(s, http.MethodPost, "/consentRequests", `{not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func subscribe(t *testing.T, ps *pubsub.InMemPubSub, phase dfsplinking.Phase, id string) chan []byte {
	t.Helper()
	channel, err := dfsplinking.NotificationChannel(phase, id)
	require.NoError(t, err)
	received := make(chan []byte, 1)
	_, err = ps.Subscribe(context.Background(), channel, func(channel string, payload []byte, subscriptionId int) {
		received <- payload
	})
	require.NoError(t, err)
	return received
}

// The credential status decides which suspended linking step a consent
// update resumes; errors fan out to both.
func TestPutConsentsRouting(t *testing.T) {
	s, ps := newTestServer(t)
	pending := subscribe(t, ps, dfsplinking.PhaseWaitOnSignedCredential, "consent-1")
	verified := subscribe(t, ps, dfsplinking.PhaseWaitOnAuthServiceResponse, "consent-1")

	rec := do(s, http.MethodPut, "/consents/consent-1",
		`{"credential":{"credentialType":"FIDO","status":"PENDING","payload":"p"}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, pending, 1)
	require.Empty(t, verified)
	<-pending

	rec = do(s, http.MethodPut, "/consents/consent-1",
		`{"credential":{"credentialType":"FIDO","status":"VERIFIED"}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Empty(t, pending)
	require.Len(t, verified, 1)
	<-verified

	rec = do(s, http.MethodPut, "/consents/consent-1",
		`{"errorInformation":{"errorCode":"7209","errorDescription":"rejected"}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, pending, 1)
	require.Len(t, verified, 1)
}

func TestGetAccounts(t *testing.T) {
	s, _ := newTestServer(t)
	s.deps.Backend = &mock.DFSPBackend{
		GetUserAccountsFn: func(ctx context.Context, userId string) ([]model.Account, error) {
			require.Equal(t, "u-1", userId)
			return []model.Account{{AccountNickname: "savings", Id: "acc-1", Currency: "USD"}}, nil
		},
	}
	rec := do(s, http.MethodGet, "/linking/accounts/u-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"accounts":[{"accountNickname":"savings","id":"acc-1","currency":"USD"}]}`, rec.Body.String())
}

func TestPutAuthorizationsRouting(t *testing.T) {
	s, ps := newTestServer(t)
	received := make(chan []byte, 1)
	_, err := ps.Subscribe(context.Background(), "DFSPTransaction_waitOnAuthResponseFromPISP_ar-1",
		func(channel string, payload []byte, subscriptionId int) {
			received <- payload
		})
	require.NoError(t, err)

	rec := do(s, http.MethodPut, "/thirdpartyRequests/authorizations/ar-1",
		`{"authorizationRequestId":"ar-1","responseType":"ACCEPTED","signedPayload":"sig"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, received, 1)
	require.JSONEq(t, `{"authorizationRequestId":"ar-1","responseType":"ACCEPTED","signedPayload":"sig"}`, string(<-received))
}
