// Package clients holds the typed outbound request contracts the
// workflows depend on, plus plain JSON over HTTP implementations. Flows
// only ever see the interfaces.
package clients

import (
	"context"

	"github.com/pispworks/thirdparty-adapter/model"
	"github.com/pispworks/thirdparty-adapter/tperror"
)

// DFSPBackend is the account holding institution's own backend.
type DFSPBackend interface {
	ValidateConsentRequests(ctx context.Context, req *model.ConsentRequestsPostRequest) (*model.ConsentRequestsValidateResponse, error)
	StoreConsentRequests(ctx context.Context, req *model.ConsentRequestsPostRequest) error
	SendOTP(ctx context.Context, req *model.ConsentRequestsPostRequest) error
	ValidateAuthToken(ctx context.Context, consentRequestId string, authToken string) (*model.AuthTokenValidateResponse, error)
	ValidateOTP(ctx context.Context, consentRequestId string, authToken string) (*model.OTPValidateResponse, error)
	StoreValidatedConsent(ctx context.Context, consent *model.ConsentsPostRequest) error
	ValidateTransactionRequest(ctx context.Context, req *model.ThirdpartyTransactionRequest) (bool, error)
	GetUserAccounts(ctx context.Context, userId string) ([]model.Account, error)
}

// ThirdpartyRequests reaches peer participants through the switch.
type ThirdpartyRequests interface {
	PostConsentRequests(ctx context.Context, req *model.ConsentRequestsPostRequest, toParticipantId string) error
	PutConsentRequests(ctx context.Context, consentRequestId string, response *model.ConsentRequestChannelResponse, toParticipantId string) error
	PutConsentRequestsError(ctx context.Context, consentRequestId string, errInfo tperror.ErrorInformation, toParticipantId string) error
	PatchConsentRequests(ctx context.Context, consentRequestId string, patch *model.ConsentRequestsIDPatchRequest, toParticipantId string) error
	PostConsents(ctx context.Context, consent *model.ConsentsPostRequest, toParticipantId string) error
	PutConsents(ctx context.Context, consentId string, response *model.ConsentsIDPutResponse, toParticipantId string) error
	PutConsentsError(ctx context.Context, consentId string, errInfo tperror.ErrorInformation, toParticipantId string) error
	PatchConsents(ctx context.Context, consentId string, patch *model.ConsentsIDPatchRequest, toParticipantId string) error
	PostTransactionRequests(ctx context.Context, req *model.ThirdpartyTransactionRequest, toParticipantId string) error
	PutTransactionRequests(ctx context.Context, transactionRequestId string, response *model.TransactionRequestResponse, toParticipantId string) error
	PutTransactionRequestsError(ctx context.Context, transactionRequestId string, errInfo tperror.ErrorInformation, toParticipantId string) error
	PatchTransactionRequests(ctx context.Context, transactionRequestId string, patch *model.TransactionRequestPatch, toParticipantId string) error
	PostAuthorizations(ctx context.Context, req *model.AuthorizationRequest, toParticipantId string) error
	PutAuthorizations(ctx context.Context, authorizationRequestId string, response *model.AuthorizationResponse, toParticipantId string) error
}

// AuthServiceRequests reaches the central authorization service.
type AuthServiceRequests interface {
	PostConsents(ctx context.Context, consent *model.ConsentsPostRequest) error
	PostVerifyAuthorization(ctx context.Context, req *model.VerificationRequest) error
}

// SDKOutgoing is the SDK facade for synchronous switch round trips.
type SDKOutgoing interface {
	RequestPartiesInformation(ctx context.Context, partyIdType string, partyIdentifier string, partySubId string) (*model.Party, error)
	RequestQuote(ctx context.Context, req *model.QuoteRequest, toParticipantId string) (*model.QuoteResponse, error)
	RequestTransfer(ctx context.Context, req *model.TransferRequest) (*model.TransferResponse, error)
}
