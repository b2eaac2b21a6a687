// Package model holds the ledger and reservation types shared by stores, services and the HTTP API.
package model

import (
	"strconv"
	"strings"

	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Address identifies an account. The zero value is the null address.
type Address = common.Address

var ZeroAddress = Address{}

// Status of a reservation. Draft is never stored: an absent record is the draft.
type Status uint8

const (
	StatusDraft     Status = 0
	StatusActive    Status = 1
	StatusReclaimed Status = 2
	StatusCompleted Status = 3
)

var statusNames = map[Status]string{
	StatusDraft:     "draft",
	StatusActive:    "active",
	StatusReclaimed: "reclaimed",
	StatusCompleted: "completed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}

	return "unknown"
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusReclaimed
}

// MarshalJSON writes the numeric status, the same value the stores keep.
func (s Status) MarshalJSON() ([]byte, error) {
	return strconv.AppendUint(nil, uint64(s), 10), nil
}

// UnmarshalJSON accepts the numeric status and, for hand-written input, its quoted name.
func (s *Status) UnmarshalJSON(data []byte) error {
	text := string(data)

	if unquoted, err := strconv.Unquote(text); err == nil {
		for status, name := range statusNames {
			if strings.EqualFold(name, unquoted) {
				*s = status
				return nil
			}
		}

		return errors.NewInvalidArgumentError("unknown reservation status %q", unquoted)
	}

	v, err := strconv.ParseUint(text, 10, 8)
	if err != nil {
		return errors.NewInvalidArgumentError("invalid reservation status %s", text, err)
	}

	if _, ok := statusNames[Status(v)]; !ok {
		return errors.NewInvalidArgumentError("unknown reservation status %d", v)
	}

	*s = Status(v)

	return nil
}

// ParseStatus converts a stored status byte.
func ParseStatus(v int64) (Status, error) {
	s := Status(v)
	if _, ok := statusNames[s]; !ok || s == StatusDraft {
		return StatusDraft, errors.NewStorageError("invalid stored reservation status %d", v)
	}

	return s, nil
}

// ReservationKey is the compound (owner, nonce) key. Nonces are scoped per owner.
type ReservationKey struct {
	Owner Address
	Nonce [32]byte
}

func NewReservationKey(owner Address, nonce *uint256.Int) ReservationKey {
	return ReservationKey{Owner: owner, Nonce: nonce.Bytes32()}
}

func (k ReservationKey) NonceInt() *uint256.Int {
	return new(uint256.Int).SetBytes32(k.Nonce[:])
}

type Reservation struct {
	Owner       Address      `json:"owner"`
	Nonce       *uint256.Int `json:"nonce"`
	Recipient   Address      `json:"recipient"`
	Executor    Address      `json:"executor"`
	Amount      *uint256.Int `json:"amount"`
	Fee         *uint256.Int `json:"fee"`
	ExpiryBlock uint64       `json:"expiryBlock"`
	Status      Status       `json:"status"`
	// CreatedBlock is the logical clock value the reservation was admitted at.
	CreatedBlock uint64 `json:"createdBlock"`
}

func (r *Reservation) Key() ReservationKey {
	return NewReservationKey(r.Owner, r.Nonce)
}

// Held is amount+fee, the part of the owner's balance the reservation takes out of circulation.
// The second return value is false when the sum overflows 256 bits.
func (r *Reservation) Held() (*uint256.Int, bool) {
	return HeldAmount(r.Amount, r.Fee)
}

func (r *Reservation) Clone() *Reservation {
	if r == nil {
		return nil
	}

	c := *r
	c.Nonce = cloneInt(r.Nonce)
	c.Amount = cloneInt(r.Amount)
	c.Fee = cloneInt(r.Fee)

	return &c
}

// HeldAmount returns amount+fee and false if the addition overflows.
func HeldAmount(amount, fee *uint256.Int) (*uint256.Int, bool) {
	sum, overflow := new(uint256.Int).AddOverflow(amount, fee)

	return sum, !overflow
}

func cloneInt(v *uint256.Int) *uint256.Int {
	if v == nil {
		return nil
	}

	return v.Clone()
}
