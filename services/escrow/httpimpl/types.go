package httpimpl

import (
	"github.com/bsv-blockchain/escrowledger/model"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// Amounts and nonces travel as decimal or 0x-hex strings, signatures as 0x-hex.

type reserveRequest struct {
	Owner       model.Address `json:"owner"`
	Recipient   model.Address `json:"recipient"`
	Executor    model.Address `json:"executor"`
	Amount      *uint256.Int  `json:"amount"`
	Fee         *uint256.Int  `json:"fee"`
	Nonce       *uint256.Int  `json:"nonce"`
	ExpiryBlock uint64        `json:"expiryBlock"`
	Signature   hexutil.Bytes `json:"signature"`
	Submitter   model.Address `json:"submitter"`
}

func (r *reserveRequest) model() *model.ReserveRequest {
	return &model.ReserveRequest{
		Owner:       r.Owner,
		Recipient:   r.Recipient,
		Executor:    r.Executor,
		Amount:      r.Amount,
		Fee:         r.Fee,
		Nonce:       r.Nonce,
		ExpiryBlock: r.ExpiryBlock,
		Signature:   r.Signature,
	}
}

// closeRequest is the body of execute and reclaim. The signature covers the close message for
// :owner/:nonce and identifies the submitter; without it the submitter field is trusted as-is.
type closeRequest struct {
	Submitter model.Address `json:"submitter"`
	Signature hexutil.Bytes `json:"signature"`
}

type transferRequest struct {
	From   model.Address `json:"from"`
	To     model.Address `json:"to"`
	Amount *uint256.Int  `json:"amount"`
}

type signedTransferRequest struct {
	Owner     model.Address `json:"owner"`
	Recipient model.Address `json:"recipient"`
	Amount    *uint256.Int  `json:"amount"`
	Fee       *uint256.Int  `json:"fee"`
	Nonce     *uint256.Int  `json:"nonce"`
	Signature hexutil.Bytes `json:"signature"`
	Submitter model.Address `json:"submitter"`
}

func (r *signedTransferRequest) model() *model.TransferRequest {
	return &model.TransferRequest{
		Owner:     r.Owner,
		Recipient: r.Recipient,
		Amount:    r.Amount,
		Fee:       r.Fee,
		Nonce:     r.Nonce,
		Signature: r.Signature,
	}
}

type balanceResponse struct {
	Account    model.Address `json:"account"`
	Balance    *uint256.Int  `json:"balance"`
	Reserved   *uint256.Int  `json:"reserved"`
	Unreserved *uint256.Int  `json:"unreserved"`
}

func newBalanceResponse(a *model.Account) *balanceResponse {
	return &balanceResponse{
		Account:    a.Address,
		Balance:    a.Balance,
		Reserved:   a.Reserved,
		Unreserved: a.Unreserved(),
	}
}

type clockRequest struct {
	Blocks uint64 `json:"blocks"`
	Block  uint64 `json:"block"`
}

type clockResponse struct {
	Block uint64 `json:"block"`
}
