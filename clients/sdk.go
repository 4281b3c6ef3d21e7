package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pispworks/thirdparty-adapter/model"
)

var _ SDKOutgoing = new(sdkOutgoingClient)

type sdkOutgoingClient struct {
	*httpClient
}

func NewSDKOutgoingClient(conf HTTPConfig) *sdkOutgoingClient {
	return &sdkOutgoingClient{httpClient: newHTTPClient(conf)}
}

type partiesInformationResponse struct {
	Party model.Party `json:"party"`
}

func (c *sdkOutgoingClient) RequestPartiesInformation(ctx context.Context, partyIdType string, partyIdentifier string, partySubId string) (*model.Party, error) {
	path := fmt.Sprintf("/parties/%s/%s", partyIdType, partyIdentifier)
	if partySubId != "" {
		path = fmt.Sprintf("%s/%s", path, partySubId)
	}
	res, err := sendAndDecode[partiesInformationResponse](ctx, c.httpClient, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	return &res.Party, nil
}

func (c *sdkOutgoingClient) RequestQuote(ctx context.Context, req *model.QuoteRequest, toParticipantId string) (*model.QuoteResponse, error) {
	return sendAndDecode[model.QuoteResponse](ctx, c.httpClient, http.MethodPost, "/quotes", req, destinationHeader(toParticipantId))
}

func (c *sdkOutgoingClient) RequestTransfer(ctx context.Context, req *model.TransferRequest) (*model.TransferResponse, error) {
	return sendAndDecode[model.TransferResponse](ctx, c.httpClient, http.MethodPost, "/transfers", req, nil)
}
