package model

type Money struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

type PartyIdInfo struct {
	PartyIdType     string `json:"partyIdType"`
	PartyIdentifier string `json:"partyIdentifier"`
	PartySubIdOrTyp string `json:"partySubIdOrType,omitempty"`
	FspId           string `json:"fspId,omitempty"`
}

type Party struct {
	PartyIdInfo PartyIdInfo `json:"partyIdInfo"`
	Name        string      `json:"name,omitempty"`
}

type TransactionType struct {
	Scenario      string `json:"scenario"`
	Initiator     string `json:"initiator"`
	InitiatorType string `json:"initiatorType"`
}

const AMOUNT_TYPE_SEND string = "SEND"
const AMOUNT_TYPE_RECEIVE string = "RECEIVE"
