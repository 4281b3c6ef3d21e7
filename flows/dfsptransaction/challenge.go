package dfsptransaction

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/pispworks/thirdparty-adapter/model"
	"github.com/pispworks/thirdparty-adapter/util"
	"github.com/shopspring/decimal"
)

// AuthRequestPartial is the authorization request minus the challenge
// itself. The challenge is a digest over its canonical serialization, so
// the same logical request always yields the same challenge.
type AuthRequestPartial struct {
	AuthorizationRequestId string                `json:"authorizationRequestId"`
	TransactionRequestId   string                `json:"transactionRequestId"`
	TransferAmount         model.Money           `json:"transferAmount"`
	PayeeReceiveAmount     model.Money           `json:"payeeReceiveAmount"`
	Fees                   model.Money           `json:"fees"`
	Payer                  model.PartyIdInfo     `json:"payer"`
	Payee                  model.Party           `json:"payee"`
	TransactionType        model.TransactionType `json:"transactionType"`
	Expiration             string                `json:"expiration"`
}

func DeriveTransactionChallenge(partial AuthRequestPartial) (string, error) {
	canonical, err := util.CanonicalJSON(partial)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

// CalculateReceiveAmountAndFees computes what the payee receives after
// the payee FSP's fee and commission, and the total fees as the
// difference against the transfer amount.
func CalculateReceiveAmountAndFees(transferAmount model.Money, payeeFee *model.Money, payeeCommission *model.Money) (model.Money, model.Money, error) {
	amount, err := decimal.NewFromString(transferAmount.Amount)
	if err != nil {
		return model.Money{}, model.Money{}, fmt.Errorf("invalid transfer amount %s: %w", transferAmount.Amount, err)
	}
	receive := amount
	for _, deduction := range []*model.Money{payeeFee, payeeCommission} {
		if deduction == nil {
			continue
		}
		value, err := decimal.NewFromString(deduction.Amount)
		if err != nil {
			return model.Money{}, model.Money{}, fmt.Errorf("invalid fee amount %s: %w", deduction.Amount, err)
		}
		receive = receive.Sub(value)
	}
	fees := amount.Sub(receive)
	receiveAmount := model.Money{Currency: transferAmount.Currency, Amount: receive.String()}
	feesAmount := model.Money{Currency: transferAmount.Currency, Amount: fees.String()}
	return receiveAmount, feesAmount, nil
}
