package model

import (
	"github.com/pispworks/thirdparty-adapter/tperror"
)

type AuthChannel string

const AUTH_CHANNEL_WEB AuthChannel = "WEB"
const AUTH_CHANNEL_OTP AuthChannel = "OTP"

type Scope struct {
	AccountId string   `json:"accountId"`
	Actions   []string `json:"actions"`
}

// ConsentRequestsPostRequest opens the linking conversation: a PISP asks
// a DFSP for consent to the listed scopes on behalf of a user.
type ConsentRequestsPostRequest struct {
	ConsentRequestId string        `json:"consentRequestId"`
	UserId           string        `json:"userId"`
	Scopes           []Scope       `json:"scopes"`
	AuthChannels     []AuthChannel `json:"authChannels"`
	CallbackUri      string        `json:"callbackUri"`
}

// ConsentRequestChannelResponse is the DFSP's channel selection, sent
// back as PUT /consentRequests/{id}. AuthUri is set for the WEB channel.
type ConsentRequestChannelResponse struct {
	ConsentRequestId string                     `json:"consentRequestId,omitempty"`
	Scopes           []Scope                    `json:"scopes"`
	AuthChannels     []AuthChannel              `json:"authChannels"`
	CallbackUri      string                     `json:"callbackUri"`
	AuthUri          string                     `json:"authUri,omitempty"`
	ErrorInformation *tperror.ErrorInformation `json:"errorInformation,omitempty"`
}

// ConsentRequestsIDPatchRequest carries the auth token the user obtained
// over the selected channel back to the DFSP.
type ConsentRequestsIDPatchRequest struct {
	AuthToken        string                    `json:"authToken,omitempty"`
	ErrorInformation *tperror.ErrorInformation `json:"errorInformation,omitempty"`
}

const CREDENTIAL_STATUS_PENDING string = "PENDING"
const CREDENTIAL_STATUS_VERIFIED string = "VERIFIED"

type SignedCredential struct {
	CredentialType string `json:"credentialType"`
	Status         string `json:"status"`
	Payload        string `json:"payload,omitempty"`
}

type ConsentsPostRequest struct {
	ConsentId        string            `json:"consentId"`
	ConsentRequestId string            `json:"consentRequestId"`
	Scopes           []Scope           `json:"scopes"`
	Credential       *SignedCredential `json:"credential,omitempty"`
}

// ConsentsIDPutResponse is the signed credential coming back on
// PUT /consents/{id}, either from the PISP (status PENDING) or from the
// auth service after verification (status VERIFIED). The credential
// status discriminates the two.
type ConsentsIDPutResponse struct {
	Scopes           []Scope                   `json:"scopes,omitempty"`
	Credential       *SignedCredential         `json:"credential,omitempty"`
	ErrorInformation *tperror.ErrorInformation `json:"errorInformation,omitempty"`
}

type ConsentsIDPatchRequest struct {
	Credential SignedCredential `json:"credential"`
}

// Backend response shapes.

type ConsentRequestsValidateResponse struct {
	IsValid          bool                      `json:"isValid"`
	AuthChannels     []AuthChannel             `json:"authChannels,omitempty"`
	ErrorInformation *tperror.ErrorInformation `json:"errorInformation,omitempty"`
}

type AuthTokenValidateResponse struct {
	IsValid bool `json:"isValid"`
}

type OTPValidateResponse struct {
	IsValid bool `json:"isValid"`
}

// Account is one entry of the user's linkable accounts as reported by
// the DFSP backend.
type Account struct {
	AccountNickname string `json:"accountNickname"`
	Id              string `json:"id"`
	Currency        string `json:"currency"`
}
