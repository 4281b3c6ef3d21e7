// Package mock provides hand written fakes for the outbound client
// interfaces. Behavior is injected per test through the Fn fields; every
// invocation is recorded in Calls in arrival order.
package mock

import (
	"context"
	"sync"

	"github.com/pispworks/thirdparty-adapter/clients"
	"github.com/pispworks/thirdparty-adapter/model"
	"github.com/pispworks/thirdparty-adapter/tperror"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

// Calls returns a copy of the recorded call names.
func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

var _ clients.DFSPBackend = new(DFSPBackend)

type DFSPBackend struct {
	recorder
	ValidateConsentRequestsFn    func(ctx context.Context, req *model.ConsentRequestsPostRequest) (*model.ConsentRequestsValidateResponse, error)
	StoreConsentRequestsFn       func(ctx context.Context, req *model.ConsentRequestsPostRequest) error
	SendOTPFn                    func(ctx context.Context, req *model.ConsentRequestsPostRequest) error
	ValidateAuthTokenFn          func(ctx context.Context, consentRequestId string, authToken string) (*model.AuthTokenValidateResponse, error)
	ValidateOTPFn                func(ctx context.Context, consentRequestId string, authToken string) (*model.OTPValidateResponse, error)
	StoreValidatedConsentFn      func(ctx context.Context, consent *model.ConsentsPostRequest) error
	ValidateTransactionRequestFn func(ctx context.Context, req *model.ThirdpartyTransactionRequest) (bool, error)
	GetUserAccountsFn            func(ctx context.Context, userId string) ([]model.Account, error)
}

func (m *DFSPBackend) ValidateConsentRequests(ctx context.Context, req *model.ConsentRequestsPostRequest) (*model.ConsentRequestsValidateResponse, error) {
	m.record("ValidateConsentRequests")
	if m.ValidateConsentRequestsFn != nil {
		return m.ValidateConsentRequestsFn(ctx, req)
	}
	return &model.ConsentRequestsValidateResponse{IsValid: true}, nil
}

func (m *DFSPBackend) StoreConsentRequests(ctx context.Context, req *model.ConsentRequestsPostRequest) error {
	m.record("StoreConsentRequests")
	if m.StoreConsentRequestsFn != nil {
		return m.StoreConsentRequestsFn(ctx, req)
	}
	return nil
}

func (m *DFSPBackend) SendOTP(ctx context.Context, req *model.ConsentRequestsPostRequest) error {
	m.record("SendOTP")
	if m.SendOTPFn != nil {
		return m.SendOTPFn(ctx, req)
	}
	return nil
}

func (m *DFSPBackend) ValidateAuthToken(ctx context.Context, consentRequestId string, authToken string) (*model.AuthTokenValidateResponse, error) {
	m.record("ValidateAuthToken")
	if m.ValidateAuthTokenFn != nil {
		return m.ValidateAuthTokenFn(ctx, consentRequestId, authToken)
	}
	return &model.AuthTokenValidateResponse{IsValid: true}, nil
}

func (m *DFSPBackend) ValidateOTP(ctx context.Context, consentRequestId string, authToken string) (*model.OTPValidateResponse, error) {
	m.record("ValidateOTP")
	if m.ValidateOTPFn != nil {
		return m.ValidateOTPFn(ctx, consentRequestId, authToken)
	}
	return &model.OTPValidateResponse{IsValid: true}, nil
}

func (m *DFSPBackend) StoreValidatedConsent(ctx context.Context, consent *model.ConsentsPostRequest) error {
	m.record("StoreValidatedConsent")
	if m.StoreValidatedConsentFn != nil {
		return m.StoreValidatedConsentFn(ctx, consent)
	}
	return nil
}

func (m *DFSPBackend) ValidateTransactionRequest(ctx context.Context, req *model.ThirdpartyTransactionRequest) (bool, error) {
	m.record("ValidateTransactionRequest")
	if m.ValidateTransactionRequestFn != nil {
		return m.ValidateTransactionRequestFn(ctx, req)
	}
	return true, nil
}

func (m *DFSPBackend) GetUserAccounts(ctx context.Context, userId string) ([]model.Account, error) {
	m.record("GetUserAccounts")
	if m.GetUserAccountsFn != nil {
		return m.GetUserAccountsFn(ctx, userId)
	}
	return []model.Account{}, nil
}

var _ clients.ThirdpartyRequests = new(ThirdpartyRequests)

type ThirdpartyRequests struct {
	recorder
	PostConsentRequestsFn         func(ctx context.Context, req *model.ConsentRequestsPostRequest, toParticipantId string) error
	PutConsentRequestsFn          func(ctx context.Context, consentRequestId string, response *model.ConsentRequestChannelResponse, toParticipantId string) error
	PutConsentRequestsErrorFn     func(ctx context.Context, consentRequestId string, errInfo tperror.ErrorInformation, toParticipantId string) error
	PatchConsentRequestsFn        func(ctx context.Context, consentRequestId string, patch *model.ConsentRequestsIDPatchRequest, toParticipantId string) error
	PostConsentsFn                func(ctx context.Context, consent *model.ConsentsPostRequest, toParticipantId string) error
	PutConsentsFn                 func(ctx context.Context, consentId string, response *model.ConsentsIDPutResponse, toParticipantId string) error
	PutConsentsErrorFn            func(ctx context.Context, consentId string, errInfo tperror.ErrorInformation, toParticipantId string) error
	PatchConsentsFn               func(ctx context.Context, consentId string, patch *model.ConsentsIDPatchRequest, toParticipantId string) error
	PostTransactionRequestsFn     func(ctx context.Context, req *model.ThirdpartyTransactionRequest, toParticipantId string) error
	PutTransactionRequestsFn      func(ctx context.Context, transactionRequestId string, response *model.TransactionRequestResponse, toParticipantId string) error
	PutTransactionRequestsErrorFn func(ctx context.Context, transactionRequestId string, errInfo tperror.ErrorInformation, toParticipantId string) error
	PatchTransactionRequestsFn    func(ctx context.Context, transactionRequestId string, patch *model.TransactionRequestPatch, toParticipantId string) error
	PostAuthorizationsFn          func(ctx context.Context, req *model.AuthorizationRequest, toParticipantId string) error
	PutAuthorizationsFn           func(ctx context.Context, authorizationRequestId string, response *model.AuthorizationResponse, toParticipantId string) error
}

func (m *ThirdpartyRequests) PostConsentRequests(ctx context.Context, req *model.ConsentRequestsPostRequest, toParticipantId string) error {
	m.record("PostConsentRequests")
	if m.PostConsentRequestsFn != nil {
		return m.PostConsentRequestsFn(ctx, req, toParticipantId)
	}
	return nil
}

func (m *ThirdpartyRequests) PutConsentRequests(ctx context.Context, consentRequestId string, response *model.ConsentRequestChannelResponse, toParticipantId string) error {
	m.record("PutConsentRequests")
	if m.PutConsentRequestsFn != nil {
		return m.PutConsentRequestsFn(ctx, consentRequestId, response, toParticipantId)
	}
	return nil
}

func (m *ThirdpartyRequests) PutConsentRequestsError(ctx context.Context, consentRequestId string, errInfo tperror.ErrorInformation, toParticipantId string) error {
	m.record("PutConsentRequestsError")
	if m.PutConsentRequestsErrorFn != nil {
		return m.PutConsentRequestsErrorFn(ctx, consentRequestId, errInfo, toParticipantId)
	}
	return nil
}

func (m *ThirdpartyRequests) PatchConsentRequests(ctx context.Context, consentRequestId string, patch *model.ConsentRequestsIDPatchRequest, toParticipantId string) error {
	m.record("PatchConsentRequests")
	if m.PatchConsentRequestsFn != nil {
		return m.PatchConsentRequestsFn(ctx, consentRequestId, patch, toParticipantId)
	}
	return nil
}

func (m *ThirdpartyRequests) PostConsents(ctx context.Context, consent *model.ConsentsPostRequest, toParticipantId string) error {
	m.record("PostConsents")
	if m.PostConsentsFn != nil {
		return m.PostConsentsFn(ctx, consent, toParticipantId)
	}
	return nil
}

func (m *ThirdpartyRequests) PutConsents(ctx context.Context, consentId string, response *model.ConsentsIDPutResponse, toParticipantId string) error {
	m.record("PutConsents")
	if m.PutConsentsFn != nil {
		return m.PutConsentsFn(ctx, consentId, response, toParticipantId)
	}
	return nil
}

func (m *ThirdpartyRequests) PutConsentsError(ctx context.Context, consentId string, errInfo tperror.ErrorInformation, toParticipantId string) error {
	m.record("PutConsentsError")
	if m.PutConsentsErrorFn != nil {
		return m.PutConsentsErrorFn(ctx, consentId, errInfo, toParticipantId)
	}
	return nil
}

func (m *ThirdpartyRequests) PatchConsents(ctx context.Context, consentId string, patch *model.ConsentsIDPatchRequest, toParticipantId string) error {
	m.record("PatchConsents")
	if m.PatchConsentsFn != nil {
		return m.PatchConsentsFn(ctx, consentId, patch, toParticipantId)
	}
	return nil
}

func (m *ThirdpartyRequests) PostTransactionRequests(ctx context.Context, req *model.ThirdpartyTransactionRequest, toParticipantId string) error {
	m.record("PostTransactionRequests")
	if m.PostTransactionRequestsFn != nil {
		return m.PostTransactionRequestsFn(ctx, req, toParticipantId)
	}
	return nil
}

func (m *ThirdpartyRequests) PutTransactionRequests(ctx context.Context, transactionRequestId string, response *model.TransactionRequestResponse, toParticipantId string) error {
	m.record("PutTransactionRequests")
	if m.PutTransactionRequestsFn != nil {
		return m.PutTransactionRequestsFn(ctx, transactionRequestId, response, toParticipantId)
	}
	return nil
}

func (m *ThirdpartyRequests) PutTransactionRequestsError(ctx context.Context, transactionRequestId string, errInfo tperror.ErrorInformation, toParticipantId string) error {
	m.record("PutTransactionRequestsError")
	if m.PutTransactionRequestsErrorFn != nil {
		return m.PutTransactionRequestsErrorFn(ctx, transactionRequestId, errInfo, toParticipantId)
	}
	return nil
}

func (m *ThirdpartyRequests) PatchTransactionRequests(ctx context.Context, transactionRequestId string, patch *model.TransactionRequestPatch, toParticipantId string) error {
	m.record("PatchTransactionRequests")
	if m.PatchTransactionRequestsFn != nil {
		return m.PatchTransactionRequestsFn(ctx, transactionRequestId, patch, toParticipantId)
	}
	return nil
}

func (m *ThirdpartyRequests) PostAuthorizations(ctx context.Context, req *model.AuthorizationRequest, toParticipantId string) error {
	m.record("PostAuthorizations")
	if m.PostAuthorizationsFn != nil {
		return m.PostAuthorizationsFn(ctx, req, toParticipantId)
	}
	return nil
}

func (m *ThirdpartyRequests) PutAuthorizations(ctx context.Context, authorizationRequestId string, response *model.AuthorizationResponse, toParticipantId string) error {
	m.record("PutAuthorizations")
	if m.PutAuthorizationsFn != nil {
		return m.PutAuthorizationsFn(ctx, authorizationRequestId, response, toParticipantId)
	}
	return nil
}

var _ clients.AuthServiceRequests = new(AuthServiceRequests)

type AuthServiceRequests struct {
	recorder
	PostConsentsFn            func(ctx context.Context, consent *model.ConsentsPostRequest) error
	PostVerifyAuthorizationFn func(ctx context.Context, req *model.VerificationRequest) error
}

func (m *AuthServiceRequests) PostConsents(ctx context.Context, consent *model.ConsentsPostRequest) error {
	m.record("PostConsents")
	if m.PostConsentsFn != nil {
		return m.PostConsentsFn(ctx, consent)
	}
	return nil
}

func (m *AuthServiceRequests) PostVerifyAuthorization(ctx context.Context, req *model.VerificationRequest) error {
	m.record("PostVerifyAuthorization")
	if m.PostVerifyAuthorizationFn != nil {
		return m.PostVerifyAuthorizationFn(ctx, req)
	}
	return nil
}

var _ clients.SDKOutgoing = new(SDKOutgoing)

type SDKOutgoing struct {
	recorder
	RequestPartiesInformationFn func(ctx context.Context, partyIdType string, partyIdentifier string, partySubId string) (*model.Party, error)
	RequestQuoteFn              func(ctx context.Context, req *model.QuoteRequest, toParticipantId string) (*model.QuoteResponse, error)
	RequestTransferFn           func(ctx context.Context, req *model.TransferRequest) (*model.TransferResponse, error)
}

func (m *SDKOutgoing) RequestPartiesInformation(ctx context.Context, partyIdType string, partyIdentifier string, partySubId string) (*model.Party, error) {
	m.record("RequestPartiesInformation")
	if m.RequestPartiesInformationFn != nil {
		return m.RequestPartiesInformationFn(ctx, partyIdType, partyIdentifier, partySubId)
	}
	return &model.Party{}, nil
}

func (m *SDKOutgoing) RequestQuote(ctx context.Context, req *model.QuoteRequest, toParticipantId string) (*model.QuoteResponse, error) {
	m.record("RequestQuote")
	if m.RequestQuoteFn != nil {
		return m.RequestQuoteFn(ctx, req, toParticipantId)
	}
	return &model.QuoteResponse{}, nil
}

func (m *SDKOutgoing) RequestTransfer(ctx context.Context, req *model.TransferRequest) (*model.TransferResponse, error) {
	m.record("RequestTransfer")
	if m.RequestTransferFn != nil {
		return m.RequestTransferFn(ctx, req)
	}
	return &model.TransferResponse{TransferState: model.TRANSFER_STATE_COMMITTED}, nil
}
