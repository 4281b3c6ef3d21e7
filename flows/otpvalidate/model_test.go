package otpvalidate

import (
	"context"
	"testing"
	"time"

	"github.com/pispworks/thirdparty-adapter/clients/mock"
	"github.com/pispworks/thirdparty-adapter/deferredjob"
	"github.com/pispworks/thirdparty-adapter/model"
	"github.com/pispworks/thirdparty-adapter/persistence/inmem"
	"github.com/pispworks/thirdparty-adapter/pubsub"
	"github.com/pispworks/thirdparty-adapter/tperror"
	"github.com/stretchr/testify/require"
)

func newConfig(t *testing.T, thirdparty *mock.ThirdpartyRequests) (ModelConfig, *pubsub.InMemPubSub) {
	t.Helper()
	ps := pubsub.NewInMemPubSub()
	require.NoError(t, ps.Connect(context.Background()))
	return ModelConfig{
		KVS:        inmem.NewInMemKVS(),
		PubSub:     ps,
		Thirdparty: thirdparty,
		Timeout:    2 * time.Second,
	}, ps
}

func TestOTPValidate(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		thirdparty := &mock.ThirdpartyRequests{}
		var conf ModelConfig
		var ps *pubsub.InMemPubSub
		thirdparty.PatchConsentRequestsFn = func(ctx context.Context, consentRequestId string, patch *model.ConsentRequestsIDPatchRequest, toParticipantId string) error {
			require.Equal(t, "123456", patch.AuthToken)
			return deferredjob.Trigger(ctx, ps, NotificationChannel(consentRequestId),
				model.OTPValidateResponse{IsValid: true})
		}
		conf, ps = newConfig(t, thirdparty)

		response, err := Validate(context.Background(), conf, Request{
			ConsentRequestId: "cr-1",
			AuthToken:        "123456",
			ToParticipantId:  "dfsp-b",
		})
		require.NoError(t, err)
		require.True(t, response.IsValid)
	})

	t.Run("rejected token", func(t *testing.T) {
		thirdparty := &mock.ThirdpartyRequests{}
		var conf ModelConfig
		var ps *pubsub.InMemPubSub
		thirdparty.PatchConsentRequestsFn = func(ctx context.Context, consentRequestId string, patch *model.ConsentRequestsIDPatchRequest, toParticipantId string) error {
			return deferredjob.Trigger(ctx, ps, NotificationChannel(consentRequestId), map[string]any{
				"errorInformation": tperror.OTPValidationError.Information(),
			})
		}
		conf, ps = newConfig(t, thirdparty)

		_, err := Validate(context.Background(), conf, Request{
			ConsentRequestId: "cr-1",
			AuthToken:        "000000",
			ToParticipantId:  "dfsp-b",
		})
		var tpErr tperror.TPError
		require.ErrorAs(t, err, &tpErr)
		require.Equal(t, tperror.OTPValidationError.Code, tpErr.Code)
	})

	t.Run("missing token fails fast", func(t *testing.T) {
		conf, _ := newConfig(t, &mock.ThirdpartyRequests{})
		_, err := Validate(context.Background(), conf, Request{ConsentRequestId: "cr-1"})
		require.ErrorIs(t, err, tperror.OTPValidationError)
	})
}
