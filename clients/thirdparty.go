package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pispworks/thirdparty-adapter/model"
	"github.com/pispworks/thirdparty-adapter/tperror"
)

var _ ThirdpartyRequests = new(thirdpartyRequestsClient)

type thirdpartyRequestsClient struct {
	*httpClient
}

func NewThirdpartyRequestsClient(conf HTTPConfig) *thirdpartyRequestsClient {
	return &thirdpartyRequestsClient{httpClient: newHTTPClient(conf)}
}

type errorInformationObject struct {
	ErrorInformation tperror.ErrorInformation `json:"errorInformation"`
}

func (c *thirdpartyRequestsClient) PostConsentRequests(ctx context.Context, req *model.ConsentRequestsPostRequest, toParticipantId string) error {
	_, err := c.send(ctx, http.MethodPost, "/consentRequests", req, destinationHeader(toParticipantId))
	return err
}

func (c *thirdpartyRequestsClient) PutConsentRequests(ctx context.Context, consentRequestId string, response *model.ConsentRequestChannelResponse, toParticipantId string) error {
	_, err := c.send(ctx, http.MethodPut, fmt.Sprintf("/consentRequests/%s", consentRequestId), response, destinationHeader(toParticipantId))
	return err
}

func (c *thirdpartyRequestsClient) PutConsentRequestsError(ctx context.Context, consentRequestId string, errInfo tperror.ErrorInformation, toParticipantId string) error {
	body := errorInformationObject{ErrorInformation: errInfo}
	_, err := c.send(ctx, http.MethodPut, fmt.Sprintf("/consentRequests/%s/error", consentRequestId), body, destinationHeader(toParticipantId))
	return err
}

func (c *thirdpartyRequestsClient) PatchConsentRequests(ctx context.Context, consentRequestId string, patch *model.ConsentRequestsIDPatchRequest, toParticipantId string) error {
	_, err := c.send(ctx, http.MethodPatch, fmt.Sprintf("/consentRequests/%s", consentRequestId), patch, destinationHeader(toParticipantId))
	return err
}

func (c *thirdpartyRequestsClient) PostConsents(ctx context.Context, consent *model.ConsentsPostRequest, toParticipantId string) error {
	_, err := c.send(ctx, http.MethodPost, "/consents", consent, destinationHeader(toParticipantId))
	return err
}

func (c *thirdpartyRequestsClient) PutConsents(ctx context.Context, consentId string, response *model.ConsentsIDPutResponse, toParticipantId string) error {
	_, err := c.send(ctx, http.MethodPut, fmt.Sprintf("/consents/%s", consentId), response, destinationHeader(toParticipantId))
	return err
}

func (c *thirdpartyRequestsClient) PutConsentsError(ctx context.Context, consentId string, errInfo tperror.ErrorInformation, toParticipantId string) error {
	body := errorInformationObject{ErrorInformation: errInfo}
	_, err := c.send(ctx, http.MethodPut, fmt.Sprintf("/consents/%s/error", consentId), body, destinationHeader(toParticipantId))
	return err
}

func (c *thirdpartyRequestsClient) PatchConsents(ctx context.Context, consentId string, patch *model.ConsentsIDPatchRequest, toParticipantId string) error {
	_, err := c.send(ctx, http.MethodPatch, fmt.Sprintf("/consents/%s", consentId), patch, destinationHeader(toParticipantId))
	return err
}

func (c *thirdpartyRequestsClient) PostTransactionRequests(ctx context.Context, req *model.ThirdpartyTransactionRequest, toParticipantId string) error {
	_, err := c.send(ctx, http.MethodPost, "/thirdpartyRequests/transactions", req, destinationHeader(toParticipantId))
	return err
}

func (c *thirdpartyRequestsClient) PutTransactionRequests(ctx context.Context, transactionRequestId string, response *model.TransactionRequestResponse, toParticipantId string) error {
	_, err := c.send(ctx, http.MethodPut, fmt.Sprintf("/thirdpartyRequests/transactions/%s", transactionRequestId), response, destinationHeader(toParticipantId))
	return err
}

func (c *thirdpartyRequestsClient) PutTransactionRequestsError(ctx context.Context, transactionRequestId string, errInfo tperror.ErrorInformation, toParticipantId string) error {
	body := errorInformationObject{ErrorInformation: errInfo}
	_, err := c.send(ctx, http.MethodPut, fmt.Sprintf("/thirdpartyRequests/transactions/%s/error", transactionRequestId), body, destinationHeader(toParticipantId))
	return err
}

func (c *thirdpartyRequestsClient) PatchTransactionRequests(ctx context.Context, transactionRequestId string, patch *model.TransactionRequestPatch, toParticipantId string) error {
	_, err := c.send(ctx, http.MethodPatch, fmt.Sprintf("/thirdpartyRequests/transactions/%s", transactionRequestId), patch, destinationHeader(toParticipantId))
	return err
}

func (c *thirdpartyRequestsClient) PostAuthorizations(ctx context.Context, req *model.AuthorizationRequest, toParticipantId string) error {
	_, err := c.send(ctx, http.MethodPost, "/thirdpartyRequests/authorizations", req, destinationHeader(toParticipantId))
	return err
}

func (c *thirdpartyRequestsClient) PutAuthorizations(ctx context.Context, authorizationRequestId string, response *model.AuthorizationResponse, toParticipantId string) error {
	_, err := c.send(ctx, http.MethodPut, fmt.Sprintf("/thirdpartyRequests/authorizations/%s", authorizationRequestId), response, destinationHeader(toParticipantId))
	return err
}
