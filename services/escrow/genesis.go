package escrow

import (
	"bytes"
	"context"
	"os"
	"sort"

	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/bsv-blockchain/escrowledger/model"
	"github.com/bsv-blockchain/escrowledger/stores/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	jsoniter "github.com/json-iterator/go"
)

const genesisMetaKey = "genesis"

// Genesis seeds a fresh ledger. Amounts are decimal strings so they are not limited to 64 bits.
//
//	{"allocations": {"0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266": "2000"}}
type Genesis struct {
	Allocations map[string]string `json:"allocations"`
}

type Allocation struct {
	Address model.Address
	Amount  *uint256.Int
}

// ParseGenesis decodes and validates a genesis document and returns its allocations in address order.
func ParseGenesis(data []byte) ([]Allocation, error) {
	var genesis Genesis

	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &genesis); err != nil {
		return nil, errors.NewConfigurationError("invalid genesis document", err)
	}

	allocations := make([]Allocation, 0, len(genesis.Allocations))
	seen := make(map[model.Address]struct{}, len(genesis.Allocations))

	for rawAddress, rawAmount := range genesis.Allocations {
		if !common.IsHexAddress(rawAddress) {
			return nil, errors.NewConfigurationError("invalid genesis address %q", rawAddress)
		}

		address := common.HexToAddress(rawAddress)
		if _, ok := seen[address]; ok {
			return nil, errors.NewConfigurationError("duplicate genesis address %s", address.Hex())
		}

		seen[address] = struct{}{}

		amount, err := uint256.FromDecimal(rawAmount)
		if err != nil {
			return nil, errors.NewConfigurationError("invalid genesis amount %q for %s", rawAmount, address.Hex(), err)
		}

		allocations = append(allocations, Allocation{Address: address, Amount: amount})
	}

	sort.Slice(allocations, func(i, j int) bool {
		return bytes.Compare(allocations[i].Address.Bytes(), allocations[j].Address.Bytes()) < 0
	})

	return allocations, nil
}

// ApplyGenesisFile credits the allocations in path exactly once per ledger. The keccak hash of the file is
// recorded in the ledger; starting again with the same file is a no-op, with a different file an error.
func (e *Escrow) ApplyGenesisFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.NewConfigurationError("failed to read genesis file %s", path, err)
	}

	return e.ApplyGenesis(ctx, data)
}

func (e *Escrow) ApplyGenesis(ctx context.Context, data []byte) error {
	allocations, err := ParseGenesis(data)
	if err != nil {
		return err
	}

	hash := crypto.Keccak256Hash(data).Hex()
	applied := false

	err = e.store.Update(ctx, func(txn ledger.Txn) error {
		existing, found, err := txn.GetMeta(ctx, genesisMetaKey)
		if err != nil {
			return err
		}

		if found {
			if existing != hash {
				return errors.NewConfigurationError("ledger was seeded with genesis %s, refusing genesis %s", existing, hash)
			}

			return nil
		}

		for _, a := range allocations {
			if err = creditTxn(ctx, txn, a.Address, a.Amount); err != nil {
				return err
			}
		}

		applied = true

		return txn.SetMeta(ctx, genesisMetaKey, hash)
	})
	if err != nil {
		return err
	}

	if applied {
		prometheusEscrowCredit.Add(float64(len(allocations)))
		e.logger.Infof("[Escrow:Genesis] credited %d allocations from genesis %s", len(allocations), hash)
	} else {
		e.logger.Infof("[Escrow:Genesis] genesis %s already applied", hash)
	}

	return nil
}
