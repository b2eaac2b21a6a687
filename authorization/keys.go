package authorization

import (
	"crypto/ecdsa"
	"strings"

	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/bsv-blockchain/escrowledger/model"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

func GenerateKey() (*ecdsa.PrivateKey, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, errors.NewProcessingError("failed to generate key", err)
	}

	return key, nil
}

// ParseKey accepts a hex private key with or without 0x prefix.
func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.NewInvalidArgumentError("invalid private key", err)
	}

	return key, nil
}

func KeyHex(key *ecdsa.PrivateKey) string {
	return hexutil.Encode(crypto.FromECDSA(key))
}

func AddressOf(key *ecdsa.PrivateKey) model.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}
