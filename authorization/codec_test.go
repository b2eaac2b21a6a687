package authorization

import (
	"testing"

	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/bsv-blockchain/escrowledger/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// well known development key, address 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266
const devKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var (
	contract  = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	recipient = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	executor  = common.HexToAddress("0x00000000000000000000000000000000000000e0")
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()

	c, err := NewCodec(1337, contract, SchemeEthPersonalSign)
	require.NoError(t, err)

	return c
}

func reserveMessage(owner model.Address) *ReserveMessage {
	return &ReserveMessage{
		Owner:       owner,
		Recipient:   recipient,
		Executor:    executor,
		Amount:      uint256.NewInt(1900),
		Fee:         uint256.NewInt(100),
		Nonce:       uint256.NewInt(1),
		ExpiryBlock: 15,
	}
}

func TestAddressOfDevKey(t *testing.T) {
	key, err := ParseKey(devKey)
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), AddressOf(key))
	assert.Equal(t, devKey, KeyHex(key))
}

func TestReserveHashLayout(t *testing.T) {
	c := newTestCodec(t)
	owner := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	packed := hexutil.MustDecode("0x04000000000000000000000000000000000000000000000000000000000000053900000000000000000000000000000000000000c0f39fd6e51aad88f6f4ce6ab8827279cfffb9226600000000000000000000000000000000000000b000000000000000000000000000000000000000e0000000000000000000000000000000000000000000000000000000000000076c00000000000000000000000000000000000000000000000000000000000000640000000000000000000000000000000000000000000000000000000000000001000000000000000000000000000000000000000000000000000000000000000f")
	require.Len(t, packed, 241)

	assert.Equal(t, crypto.Keccak256(packed), c.ReserveHash(reserveMessage(owner)))
}

func TestTransferHashLayout(t *testing.T) {
	c := newTestCodec(t)

	msg := &TransferMessage{
		Owner:     common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		Recipient: recipient,
		Amount:    uint256.NewInt(500),
		Fee:       uint256.NewInt(5),
		Nonce:     uint256.NewInt(9),
	}

	packed := hexutil.MustDecode("0x03000000000000000000000000000000000000000000000000000000000000053900000000000000000000000000000000000000c0f39fd6e51aad88f6f4ce6ab8827279cfffb9226600000000000000000000000000000000000000b000000000000000000000000000000000000000000000000000000000000001f400000000000000000000000000000000000000000000000000000000000000050000000000000000000000000000000000000000000000000000000000000009")
	require.Len(t, packed, 189)

	assert.Equal(t, crypto.Keccak256(packed), c.TransferHash(msg))
}

func TestSignAndRecoverReserve(t *testing.T) {
	c := newTestCodec(t)
	key, err := ParseKey(devKey)
	require.NoError(t, err)

	msg := reserveMessage(AddressOf(key))

	sig, err := c.SignReserve(msg, key)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.Contains(t, []byte{27, 28}, sig[64])

	signer, err := c.RecoverReserve(msg, sig)
	require.NoError(t, err)
	assert.Equal(t, AddressOf(key), signer)

	// v in 0/1 form is accepted too
	raw := append([]byte(nil), sig...)
	raw[64] -= 27

	signer, err = c.RecoverReserve(msg, raw)
	require.NoError(t, err)
	assert.Equal(t, AddressOf(key), signer)
}

func TestTamperedReserveRecoversDifferentSigner(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	c := newTestCodec(t)
	owner := AddressOf(key)

	sig, err := c.SignReserve(reserveMessage(owner), key)
	require.NoError(t, err)

	tests := []struct {
		name   string
		tamper func(m *ReserveMessage)
	}{
		{"amount", func(m *ReserveMessage) { m.Amount = uint256.NewInt(1901) }},
		{"fee", func(m *ReserveMessage) { m.Fee = uint256.NewInt(99) }},
		{"nonce", func(m *ReserveMessage) { m.Nonce = uint256.NewInt(2) }},
		{"expiry", func(m *ReserveMessage) { m.ExpiryBlock = 16 }},
		{"recipient", func(m *ReserveMessage) { m.Recipient = common.HexToAddress("0xb1") }},
		{"executor", func(m *ReserveMessage) { m.Executor = common.HexToAddress("0xe1") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := reserveMessage(owner)
			tt.tamper(msg)

			signer, err := c.RecoverReserve(msg, sig)
			if err == nil {
				assert.NotEqual(t, owner, signer)
			}
		})
	}
}

func TestSignatureBoundToChainAndContract(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	owner := AddressOf(key)
	c := newTestCodec(t)

	sig, err := c.SignReserve(reserveMessage(owner), key)
	require.NoError(t, err)

	otherChain, err := NewCodec(1, contract, SchemeEthPersonalSign)
	require.NoError(t, err)

	otherContract, err := NewCodec(1337, common.HexToAddress("0xc1"), SchemeEthPersonalSign)
	require.NoError(t, err)

	for _, other := range []*Codec{otherChain, otherContract} {
		signer, err := other.RecoverReserve(reserveMessage(owner), sig)
		if err == nil {
			assert.NotEqual(t, owner, signer)
		}
	}
}

func TestTransferSignatureNotValidForReserve(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	owner := AddressOf(key)
	c := newTestCodec(t)

	transfer := &TransferMessage{Owner: owner, Recipient: recipient, Amount: uint256.NewInt(1900), Fee: uint256.NewInt(100), Nonce: uint256.NewInt(1)}

	sig, err := c.SignTransfer(transfer, key)
	require.NoError(t, err)

	signer, err := c.RecoverTransfer(transfer, sig)
	require.NoError(t, err)
	assert.Equal(t, owner, signer)

	signer, err = c.RecoverReserve(reserveMessage(owner), sig)
	if err == nil {
		assert.NotEqual(t, owner, signer)
	}
}

func TestMalformedSignatures(t *testing.T) {
	c := newTestCodec(t)
	msg := reserveMessage(common.HexToAddress("0x01"))

	_, err := c.RecoverReserve(msg, []byte{1, 2, 3})
	assert.ErrorIs(t, err, errors.ErrInvalidSignature)

	bad := make([]byte, 65)
	bad[64] = 31
	_, err = c.RecoverReserve(msg, bad)
	assert.ErrorIs(t, err, errors.ErrInvalidSignature)

	zero := make([]byte, 65)
	_, err = c.RecoverReserve(msg, zero)
	assert.ErrorIs(t, err, errors.ErrInvalidSignature)
}

func TestUnsupportedScheme(t *testing.T) {
	_, err := NewCodec(1, contract, "ed25519")
	assert.ErrorIs(t, err, errors.ErrConfiguration)
}

func TestCloseHashLayout(t *testing.T) {
	c := newTestCodec(t)
	owner := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	chainID := uint256.NewInt(1337).Bytes32()
	nonce := uint256.NewInt(7).Bytes32()

	packed := []byte{DomainReclaim}
	packed = append(packed, chainID[:]...)
	packed = append(packed, contract.Bytes()...)
	packed = append(packed, owner.Bytes()...)
	packed = append(packed, nonce[:]...)
	require.Len(t, packed, 105)

	digest, err := c.CloseHash(&CloseMessage{Domain: DomainReclaim, Owner: owner, Nonce: uint256.NewInt(7)})
	require.NoError(t, err)
	assert.Equal(t, crypto.Keccak256(packed), digest)

	_, err = c.CloseHash(&CloseMessage{Domain: DomainReserve, Owner: owner, Nonce: uint256.NewInt(7)})
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

func TestSignAndRecoverClose(t *testing.T) {
	c := newTestCodec(t)

	key, err := ParseKey(devKey)
	require.NoError(t, err)

	submitter := AddressOf(key)
	owner := common.HexToAddress("0x00000000000000000000000000000000000000a1")

	execute := &CloseMessage{Domain: DomainExecute, Owner: owner, Nonce: uint256.NewInt(3)}

	sig, err := c.SignClose(execute, key)
	require.NoError(t, err)

	signer, err := c.RecoverClose(execute, sig)
	require.NoError(t, err)
	assert.Equal(t, submitter, signer)

	t.Run("execute signature does not authorize reclaim", func(t *testing.T) {
		signer, err := c.RecoverClose(&CloseMessage{Domain: DomainReclaim, Owner: owner, Nonce: uint256.NewInt(3)}, sig)
		require.NoError(t, err)
		assert.NotEqual(t, submitter, signer)
	})

	t.Run("other nonce", func(t *testing.T) {
		signer, err := c.RecoverClose(&CloseMessage{Domain: DomainExecute, Owner: owner, Nonce: uint256.NewInt(4)}, sig)
		require.NoError(t, err)
		assert.NotEqual(t, submitter, signer)
	})
}
