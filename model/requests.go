package model

import (
	"github.com/holiman/uint256"
)

// ReserveRequest is a signed request to put amount+fee of the owner's balance on hold.
type ReserveRequest struct {
	Owner       Address      `json:"owner"`
	Recipient   Address      `json:"recipient"`
	Executor    Address      `json:"executor"`
	Amount      *uint256.Int `json:"amount"`
	Fee         *uint256.Int `json:"fee"`
	Nonce       *uint256.Int `json:"nonce"`
	ExpiryBlock uint64       `json:"expiryBlock"`
	Signature   []byte       `json:"signature"`
}

// TransferRequest is an owner-signed transfer relayed by a third party that collects the fee.
type TransferRequest struct {
	Owner     Address      `json:"owner"`
	Recipient Address      `json:"recipient"`
	Amount    *uint256.Int `json:"amount"`
	Fee       *uint256.Int `json:"fee"`
	Nonce     *uint256.Int `json:"nonce"`
	Signature []byte       `json:"signature"`
}

// Account is a balance snapshot. Reserved never exceeds Balance.
type Account struct {
	Address  Address      `json:"address"`
	Balance  *uint256.Int `json:"balance"`
	Reserved *uint256.Int `json:"reserved"`
}

// NewAccount returns an empty account for addr.
func NewAccount(addr Address) *Account {
	return &Account{Address: addr, Balance: new(uint256.Int), Reserved: new(uint256.Int)}
}

func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}

	return &Account{Address: a.Address, Balance: cloneInt(a.Balance), Reserved: cloneInt(a.Reserved)}
}

func (a *Account) Unreserved() *uint256.Int {
	if a.Reserved.Gt(a.Balance) {
		return new(uint256.Int)
	}

	return new(uint256.Int).Sub(a.Balance, a.Reserved)
}
