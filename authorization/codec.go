// Package authorization builds the domain separated messages owners sign off-chain and recovers the signer
// from a signature over them.
//
// A message is the tightly packed concatenation of its fields (uint8 tag, uint256 as 32 bytes, addresses as
// 20 bytes), hashed with keccak256. The digest is then signed as a personal message, i.e. the signature
// covers keccak256("\x19Ethereum Signed Message:\n32" || digest). Changing the layout invalidates every
// signature already issued.
package authorization

import (
	"crypto/ecdsa"

	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/bsv-blockchain/escrowledger/model"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Domain tags keep signatures for one kind of intent from being replayed as another. Tags 1 and 2 are
// reserved for burn and mint.
const (
	DomainTransfer uint8 = 3
	DomainReserve  uint8 = 4
	DomainExecute  uint8 = 5
	DomainReclaim  uint8 = 6
)

// SchemeEthPersonalSign is keccak256 + secp256k1 with the EIP-191 personal message prefix.
const SchemeEthPersonalSign = "eth_personal_sign"

const signatureLength = 65

// Verifier recovers the signer of reservation and transfer authorizations. It never compares the result
// with the expected owner.
type Verifier interface {
	RecoverReserve(msg *ReserveMessage, signature []byte) (model.Address, error)
	RecoverTransfer(msg *TransferMessage, signature []byte) (model.Address, error)
	RecoverClose(msg *CloseMessage, signature []byte) (model.Address, error)
}

type ReserveMessage struct {
	Owner       model.Address
	Recipient   model.Address
	Executor    model.Address
	Amount      *uint256.Int
	Fee         *uint256.Int
	Nonce       *uint256.Int
	ExpiryBlock uint64
}

func ReserveMessageFromRequest(req *model.ReserveRequest) *ReserveMessage {
	return &ReserveMessage{
		Owner:       req.Owner,
		Recipient:   req.Recipient,
		Executor:    req.Executor,
		Amount:      req.Amount,
		Fee:         req.Fee,
		Nonce:       req.Nonce,
		ExpiryBlock: req.ExpiryBlock,
	}
}

type TransferMessage struct {
	Owner     model.Address
	Recipient model.Address
	Amount    *uint256.Int
	Fee       *uint256.Int
	Nonce     *uint256.Int
}

func TransferMessageFromRequest(req *model.TransferRequest) *TransferMessage {
	return &TransferMessage{
		Owner:     req.Owner,
		Recipient: req.Recipient,
		Amount:    req.Amount,
		Fee:       req.Fee,
		Nonce:     req.Nonce,
	}
}

// CloseMessage is signed by the submitter of an execute or reclaim. Domain is DomainExecute or DomainReclaim.
type CloseMessage struct {
	Domain uint8
	Owner  model.Address
	Nonce  *uint256.Int
}

// Codec binds messages to one chain and one ledger instance.
type Codec struct {
	chainID  *uint256.Int
	contract common.Address
}

func NewCodec(chainID uint64, contract common.Address, scheme string) (*Codec, error) {
	if scheme != SchemeEthPersonalSign {
		return nil, errors.NewConfigurationError("unsupported signature scheme %q", scheme)
	}

	return &Codec{
		chainID:  uint256.NewInt(chainID),
		contract: contract,
	}, nil
}

// ReserveHash is keccak256(uint8 4, chainId, contract, owner, recipient, executor, amount, fee, nonce, expiry).
func (c *Codec) ReserveHash(msg *ReserveMessage) []byte {
	p := newPacker(1 + 32 + 4*20 + 4*32)
	p.uint8(DomainReserve)
	p.uint256(c.chainID)
	p.address(c.contract)
	p.address(msg.Owner)
	p.address(msg.Recipient)
	p.address(msg.Executor)
	p.uint256(msg.Amount)
	p.uint256(msg.Fee)
	p.uint256(msg.Nonce)
	p.uint256(uint256.NewInt(msg.ExpiryBlock))

	return crypto.Keccak256(p.bytes())
}

// TransferHash is keccak256(uint8 3, chainId, contract, owner, recipient, amount, fee, nonce).
func (c *Codec) TransferHash(msg *TransferMessage) []byte {
	p := newPacker(1 + 32 + 3*20 + 3*32)
	p.uint8(DomainTransfer)
	p.uint256(c.chainID)
	p.address(c.contract)
	p.address(msg.Owner)
	p.address(msg.Recipient)
	p.uint256(msg.Amount)
	p.uint256(msg.Fee)
	p.uint256(msg.Nonce)

	return crypto.Keccak256(p.bytes())
}

// CloseHash is keccak256(uint8 5|6, chainId, contract, owner, nonce).
func (c *Codec) CloseHash(msg *CloseMessage) ([]byte, error) {
	if msg.Domain != DomainExecute && msg.Domain != DomainReclaim {
		return nil, errors.NewInvalidArgumentError("domain tag %d is not execute or reclaim", msg.Domain)
	}

	p := newPacker(1 + 32 + 2*20 + 32)
	p.uint8(msg.Domain)
	p.uint256(c.chainID)
	p.address(c.contract)
	p.address(msg.Owner)
	p.uint256(msg.Nonce)

	return crypto.Keccak256(p.bytes()), nil
}

func (c *Codec) RecoverReserve(msg *ReserveMessage, signature []byte) (model.Address, error) {
	return recoverPersonal(c.ReserveHash(msg), signature)
}

func (c *Codec) RecoverTransfer(msg *TransferMessage, signature []byte) (model.Address, error) {
	return recoverPersonal(c.TransferHash(msg), signature)
}

func (c *Codec) RecoverClose(msg *CloseMessage, signature []byte) (model.Address, error) {
	digest, err := c.CloseHash(msg)
	if err != nil {
		return model.ZeroAddress, err
	}

	return recoverPersonal(digest, signature)
}

func (c *Codec) SignReserve(msg *ReserveMessage, key *ecdsa.PrivateKey) ([]byte, error) {
	return signPersonal(c.ReserveHash(msg), key)
}

func (c *Codec) SignTransfer(msg *TransferMessage, key *ecdsa.PrivateKey) ([]byte, error) {
	return signPersonal(c.TransferHash(msg), key)
}

func (c *Codec) SignClose(msg *CloseMessage, key *ecdsa.PrivateKey) ([]byte, error) {
	digest, err := c.CloseHash(msg)
	if err != nil {
		return nil, err
	}

	return signPersonal(digest, key)
}

func signPersonal(digest []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(digest), key)
	if err != nil {
		return nil, errors.NewProcessingError("failed to sign authorization", err)
	}

	// wallets publish v as 27/28
	sig[crypto.RecoveryIDOffset] += 27

	return sig, nil
}

func recoverPersonal(digest []byte, signature []byte) (model.Address, error) {
	if len(signature) != signatureLength {
		return model.ZeroAddress, errors.NewInvalidSignatureError("signature must be %d bytes, got %d", signatureLength, len(signature))
	}

	sig := make([]byte, signatureLength)
	copy(sig, signature)

	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	if sig[crypto.RecoveryIDOffset] > 1 {
		return model.ZeroAddress, errors.NewInvalidSignatureError("invalid signature recovery id %d", signature[crypto.RecoveryIDOffset])
	}

	pub, err := crypto.SigToPub(accounts.TextHash(digest), sig)
	if err != nil {
		return model.ZeroAddress, errors.NewInvalidSignatureError("failed to recover signer", err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}
