package model

import (
	"github.com/pispworks/thirdparty-adapter/tperror"
)

const TRANSACTION_REQUEST_STATE_RECEIVED string = "RECEIVED"
const TRANSACTION_REQUEST_STATE_ACCEPTED string = "ACCEPTED"
const TRANSACTION_REQUEST_STATE_REJECTED string = "REJECTED"

const TRANSACTION_STATE_COMPLETED string = "COMPLETED"

const TRANSFER_STATE_COMMITTED string = "COMMITTED"

const AUTHORIZATION_RESPONSE_ACCEPTED string = "ACCEPTED"
const AUTHORIZATION_RESPONSE_REJECTED string = "REJECTED"

// ThirdpartyTransactionRequest is a PISP initiated transaction proposal.
// Payer carries only id info; the DFSP owns the rest of the payer party.
type ThirdpartyTransactionRequest struct {
	TransactionRequestId string          `json:"transactionRequestId"`
	Payee                Party           `json:"payee"`
	Payer                PartyIdInfo     `json:"payer"`
	Amount               Money           `json:"amount"`
	TransactionType      TransactionType `json:"transactionType"`
	Expiration           string          `json:"expiration"`
}

// TransactionRequestResponse acknowledges a transaction request, sent as
// PUT /thirdpartyRequests/transactions/{id}.
type TransactionRequestResponse struct {
	TransactionId           string                    `json:"transactionId,omitempty"`
	TransactionRequestState string                    `json:"transactionRequestState,omitempty"`
	ErrorInformation        *tperror.ErrorInformation `json:"errorInformation,omitempty"`
}

type TransactionRequestPatch struct {
	TransactionId    string                    `json:"transactionId,omitempty"`
	TransactionState string                    `json:"transactionState,omitempty"`
	ErrorInformation *tperror.ErrorInformation `json:"errorInformation,omitempty"`
}

type QuoteRequest struct {
	QuoteId              string          `json:"quoteId"`
	TransactionId        string          `json:"transactionId"`
	TransactionRequestId string          `json:"transactionRequestId"`
	Payee                Party           `json:"payee"`
	Payer                Party           `json:"payer"`
	AmountType           string          `json:"amountType"`
	Amount               Money           `json:"amount"`
	TransactionType      TransactionType `json:"transactionType"`
}

type QuoteResponse struct {
	TransferAmount     Money  `json:"transferAmount"`
	PayeeReceiveAmount *Money `json:"payeeReceiveAmount,omitempty"`
	PayeeFspFee        *Money `json:"payeeFspFee,omitempty"`
	PayeeFspCommission *Money `json:"payeeFspCommission,omitempty"`
	IlpPacket          string `json:"ilpPacket"`
	Condition          string `json:"condition"`
	Expiration         string `json:"expiration,omitempty"`
}

// AuthorizationRequest asks the PISP's end user to approve the
// transaction described by the challenge and its surrounding fields.
type AuthorizationRequest struct {
	AuthorizationRequestId string          `json:"authorizationRequestId"`
	TransactionRequestId   string          `json:"transactionRequestId"`
	Challenge              string          `json:"challenge"`
	TransferAmount         Money           `json:"transferAmount"`
	PayeeReceiveAmount     Money           `json:"payeeReceiveAmount"`
	Fees                   Money           `json:"fees"`
	Payer                  PartyIdInfo     `json:"payer"`
	Payee                  Party           `json:"payee"`
	TransactionType        TransactionType `json:"transactionType"`
	Expiration             string          `json:"expiration"`
}

type AuthorizationResponse struct {
	AuthorizationRequestId string                    `json:"authorizationRequestId,omitempty"`
	ResponseType           string                    `json:"responseType,omitempty"`
	SignedPayload          string                    `json:"signedPayload,omitempty"`
	ErrorInformation       *tperror.ErrorInformation `json:"errorInformation,omitempty"`
}

type VerificationRequest struct {
	VerificationRequestId string `json:"verificationRequestId"`
	Challenge             string `json:"challenge"`
	ConsentId             string `json:"consentId"`
	SignedPayload         string `json:"signedPayload"`
}

type VerificationResponse struct {
	AuthenticationResponse string                    `json:"authenticationResponse,omitempty"`
	ErrorInformation       *tperror.ErrorInformation `json:"errorInformation,omitempty"`
}

const AUTHENTICATION_RESPONSE_VERIFIED string = "VERIFIED"

type TransferRequest struct {
	TransferId string `json:"transferId"`
	PayerFsp   string `json:"payerFsp"`
	PayeeFsp   string `json:"payeeFsp"`
	Amount     Money  `json:"amount"`
	IlpPacket  string `json:"ilpPacket"`
	Condition  string `json:"condition"`
	Expiration string `json:"expiration"`
}

type TransferResponse struct {
	TransferState       string `json:"transferState"`
	Fulfilment          string `json:"fulfilment,omitempty"`
	CompletedTimestamp  string `json:"completedTimestamp,omitempty"`
}
