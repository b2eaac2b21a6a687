package escrow

import (
	"context"

	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/bsv-blockchain/escrowledger/model"
	"github.com/bsv-blockchain/escrowledger/stores/ledger"
	"github.com/holiman/uint256"
)

// Arithmetic on locked accounts. None of these touch the store; the caller writes the accounts back.

func credit(account *model.Account, amount *uint256.Int) error {
	sum, overflow := new(uint256.Int).AddOverflow(account.Balance, amount)
	if overflow {
		return errors.NewProcessingError("crediting %s to %s overflows its balance", amount.Dec(), account.Address.Hex())
	}

	account.Balance = sum

	return nil
}

// debit fails with InsufficientBalance when amount exceeds the total balance. It does not look at the
// reserved part; ordinary transfers go through debitUnreserved.
func debit(account *model.Account, amount *uint256.Int) error {
	if amount.Gt(account.Balance) {
		return errors.NewInsufficientBalanceError("%s has %s, needs %s", account.Address.Hex(), account.Balance.Dec(), amount.Dec())
	}

	account.Balance = new(uint256.Int).Sub(account.Balance, amount)

	return nil
}

// debitUnreserved may bring the balance down to exactly the reserved amount, never below it.
func debitUnreserved(account *model.Account, amount *uint256.Int) error {
	if unreserved := account.Unreserved(); amount.Gt(unreserved) {
		return errors.NewExceedsUnreservedBalanceError("%s has %s unreserved, needs %s", account.Address.Hex(), unreserved.Dec(), amount.Dec())
	}

	return debit(account, amount)
}

func hold(account *model.Account, held *uint256.Int) error {
	if unreserved := account.Unreserved(); held.Gt(unreserved) {
		return errors.NewInsufficientUnreservedBalanceError("%s has %s unreserved, reservation holds %s", account.Address.Hex(), unreserved.Dec(), held.Dec())
	}

	account.Reserved = new(uint256.Int).Add(account.Reserved, held)

	return nil
}

// release gives back a hold. A reserved total smaller than the hold means the counter was corrupted.
func release(account *model.Account, held *uint256.Int) error {
	if held.Gt(account.Reserved) {
		return errors.NewStorageError("%s reserved %s is smaller than released hold %s", account.Address.Hex(), account.Reserved.Dec(), held.Dec())
	}

	account.Reserved = new(uint256.Int).Sub(account.Reserved, held)

	return nil
}

// putAccounts writes back every locked account.
func putAccounts(ctx context.Context, txn ledger.Txn, accounts map[model.Address]*model.Account) error {
	for _, account := range accounts {
		if err := txn.PutAccount(ctx, account); err != nil {
			return err
		}
	}

	return nil
}
