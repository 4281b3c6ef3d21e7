package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pispworks/thirdparty-adapter/model"
)

var _ DFSPBackend = new(dfspBackendClient)

type dfspBackendClient struct {
	*httpClient
}

func NewDFSPBackendClient(conf HTTPConfig) *dfspBackendClient {
	return &dfspBackendClient{httpClient: newHTTPClient(conf)}
}

func (c *dfspBackendClient) ValidateConsentRequests(ctx context.Context, req *model.ConsentRequestsPostRequest) (*model.ConsentRequestsValidateResponse, error) {
	return sendAndDecode[model.ConsentRequestsValidateResponse](ctx, c.httpClient, http.MethodPost, "/validateConsentRequests", req, nil)
}

func (c *dfspBackendClient) StoreConsentRequests(ctx context.Context, req *model.ConsentRequestsPostRequest) error {
	_, err := c.send(ctx, http.MethodPost, "/store/consentRequests", req, nil)
	return err
}

func (c *dfspBackendClient) SendOTP(ctx context.Context, req *model.ConsentRequestsPostRequest) error {
	_, err := c.send(ctx, http.MethodPost, "/sendOTP", req, nil)
	return err
}

type validateAuthTokenRequest struct {
	ConsentRequestId string `json:"consentRequestId"`
	AuthToken        string `json:"authToken"`
}

func (c *dfspBackendClient) ValidateAuthToken(ctx context.Context, consentRequestId string, authToken string) (*model.AuthTokenValidateResponse, error) {
	body := validateAuthTokenRequest{ConsentRequestId: consentRequestId, AuthToken: authToken}
	return sendAndDecode[model.AuthTokenValidateResponse](ctx, c.httpClient, http.MethodPost, "/validateAuthToken", body, nil)
}

func (c *dfspBackendClient) ValidateOTP(ctx context.Context, consentRequestId string, authToken string) (*model.OTPValidateResponse, error) {
	body := validateAuthTokenRequest{ConsentRequestId: consentRequestId, AuthToken: authToken}
	return sendAndDecode[model.OTPValidateResponse](ctx, c.httpClient, http.MethodPost, "/validateOTP", body, nil)
}

func (c *dfspBackendClient) StoreValidatedConsent(ctx context.Context, consent *model.ConsentsPostRequest) error {
	_, err := c.send(ctx, http.MethodPost, "/store/consents", consent, nil)
	return err
}

func (c *dfspBackendClient) GetUserAccounts(ctx context.Context, userId string) ([]model.Account, error) {
	type accountList struct {
		Accounts []model.Account `json:"accounts"`
	}
	res, err := sendAndDecode[accountList](ctx, c.httpClient, http.MethodGet, fmt.Sprintf("/accounts/%s", userId), nil, nil)
	if err != nil {
		return nil, err
	}
	return res.Accounts, nil
}

func (c *dfspBackendClient) ValidateTransactionRequest(ctx context.Context, req *model.ThirdpartyTransactionRequest) (bool, error) {
	type validity struct {
		IsValid bool `json:"isValid"`
	}
	res, err := sendAndDecode[validity](ctx, c.httpClient, http.MethodPost, fmt.Sprintf("/verify-trx-req/%s", req.TransactionRequestId), req, nil)
	if err != nil {
		return false, err
	}
	return res.IsValid, nil
}
