package clients

import (
	"context"
	"net/http"

	"github.com/pispworks/thirdparty-adapter/model"
)

var _ AuthServiceRequests = new(authServiceClient)

type authServiceClient struct {
	*httpClient
}

func NewAuthServiceClient(conf HTTPConfig) *authServiceClient {
	return &authServiceClient{httpClient: newHTTPClient(conf)}
}

func (c *authServiceClient) PostConsents(ctx context.Context, consent *model.ConsentsPostRequest) error {
	_, err := c.send(ctx, http.MethodPost, "/consents", consent, nil)
	return err
}

func (c *authServiceClient) PostVerifyAuthorization(ctx context.Context, req *model.VerificationRequest) error {
	_, err := c.send(ctx, http.MethodPost, "/thirdpartyRequests/verifications", req, nil)
	return err
}
