package httpimpl

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bsv-blockchain/escrowledger/authorization"
	"github.com/bsv-blockchain/escrowledger/clock"
	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/bsv-blockchain/escrowledger/model"
	"github.com/bsv-blockchain/escrowledger/services/escrow"
	"github.com/bsv-blockchain/escrowledger/settings"
	"github.com/bsv-blockchain/escrowledger/stores/ledger/memory"
	"github.com/bsv-blockchain/escrowledger/ulogger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	contract  = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	recipient = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	stranger  = common.HexToAddress("0x00000000000000000000000000000000000000d1")
)

type apiFixture struct {
	t           *testing.T
	h           *HTTP
	escrow      *escrow.Escrow
	clock       *clock.Manual
	codec       *authorization.Codec
	ownerKey    *ecdsa.PrivateKey
	owner       model.Address
	executorKey *ecdsa.PrivateKey
	executor    model.Address
}

// newAPIFixture serves the API the way a deployment behind an authenticating gateway does.
func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	return newAPIFixtureWith(t, func(tSettings *settings.Settings) {
		tSettings.Escrow.TrustedGateway = true
		tSettings.Escrow.ClockControl = true
	})
}

func newAPIFixtureWith(t *testing.T, configure func(tSettings *settings.Settings)) *apiFixture {
	t.Helper()

	codec, err := authorization.NewCodec(1337, contract, authorization.SchemeEthPersonalSign)
	require.NoError(t, err)

	ownerKey, err := authorization.GenerateKey()
	require.NoError(t, err)

	executorKey, err := authorization.GenerateKey()
	require.NoError(t, err)

	tSettings := settings.NewSettings()
	if configure != nil {
		configure(tSettings)
	}

	manual := clock.NewManual(10)

	esc := escrow.New(ulogger.TestLogger{}, tSettings, memory.New(ulogger.TestLogger{}), manual, codec, nil)

	f := &apiFixture{
		t:           t,
		h:           New(ulogger.TestLogger{}, tSettings, esc, manual),
		escrow:      esc,
		clock:       manual,
		codec:       codec,
		ownerKey:    ownerKey,
		owner:       authorization.AddressOf(ownerKey),
		executorKey: executorKey,
		executor:    authorization.AddressOf(executorKey),
	}

	require.NoError(t, esc.Credit(context.Background(), f.owner, uint256.NewInt(1000)))

	return f
}

func (f *apiFixture) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	f.t.Helper()

	var reader *bytes.Reader

	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(f.t, err)

		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)

	return rec
}

func (f *apiFixture) reserveBody(amount, fee, nonce, expiry uint64) map[string]interface{} {
	f.t.Helper()

	req := &model.ReserveRequest{
		Owner:       f.owner,
		Recipient:   recipient,
		Executor:    f.executor,
		Amount:      uint256.NewInt(amount),
		Fee:         uint256.NewInt(fee),
		Nonce:       uint256.NewInt(nonce),
		ExpiryBlock: expiry,
	}

	sig, err := f.codec.SignReserve(authorization.ReserveMessageFromRequest(req), f.ownerKey)
	require.NoError(f.t, err)

	return map[string]interface{}{
		"owner":       f.owner.Hex(),
		"recipient":   recipient.Hex(),
		"executor":    f.executor.Hex(),
		"amount":      req.Amount.Dec(),
		"fee":         req.Fee.Dec(),
		"nonce":       req.Nonce.Dec(),
		"expiryBlock": expiry,
		"signature":   hexutil.Encode(sig),
	}
}

func decodeReservation(t *testing.T, rec *httptest.ResponseRecorder) *model.Reservation {
	t.Helper()

	r := &model.Reservation{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), r), rec.Body.String())

	return r
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *errorResponse {
	t.Helper()

	e := &errorResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), e), rec.Body.String())
	assert.Equal(t, int32(rec.Code), e.Status)

	return e
}

func decodeBalance(t *testing.T, rec *httptest.ResponseRecorder) (balance, reserved, unreserved string) {
	t.Helper()

	var body struct {
		Balance    string `json:"balance"`
		Reserved   string `json:"reserved"`
		Unreserved string `json:"unreserved"`
	}

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())

	return body.Balance, body.Reserved, body.Unreserved
}

func (f *apiFixture) closeBody(domain uint8, nonce uint64, key *ecdsa.PrivateKey) map[string]string {
	f.t.Helper()

	msg := &authorization.CloseMessage{Domain: domain, Owner: f.owner, Nonce: uint256.NewInt(nonce)}

	sig, err := f.codec.SignClose(msg, key)
	require.NoError(f.t, err)

	return map[string]string{"signature": hexutil.Encode(sig)}
}

func (f *apiFixture) reservationPath(nonce string, suffix string) string {
	return "/api/v1/reservation/" + f.owner.Hex() + "/" + nonce + suffix
}

func TestAliveAndHealth(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/alive", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Escrow service is alive")

	rec = f.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReserveExecuteOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/reserve", f.reserveBody(100, 10, 1, 20))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	r := decodeReservation(t, rec)
	assert.Equal(t, model.StatusActive, r.Status)
	assert.Equal(t, uint64(100), r.Amount.Uint64())
	assert.Equal(t, uint64(10), r.CreatedBlock)

	rec = f.do(http.MethodGet, "/api/v1/balance/"+f.owner.Hex(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	balance, reserved, unreserved := decodeBalance(t, rec)
	assert.Equal(t, "1000", balance)
	assert.Equal(t, "110", reserved)
	assert.Equal(t, "890", unreserved)

	rec = f.do(http.MethodPost, f.reservationPath("1", "/execute"), map[string]string{"submitter": f.executor.Hex()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.StatusCompleted, decodeReservation(t, rec).Status)

	rec = f.do(http.MethodGet, "/api/v1/balance/"+recipient.Hex(), nil)
	balance, _, _ = decodeBalance(t, rec)
	assert.Equal(t, "100", balance)

	rec = f.do(http.MethodGet, "/api/v1/balance/"+f.executor.Hex(), nil)
	balance, _, _ = decodeBalance(t, rec)
	assert.Equal(t, "10", balance)
}

func TestReserveRejectionsOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/reserve", f.reserveBody(100, 0, 1, 20))
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("nonce reused", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/v1/reserve", f.reserveBody(100, 0, 1, 20))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, int32(errors.ERR_NONCE_ALREADY_USED), decodeError(t, rec).Code)
	})

	t.Run("insufficient unreserved", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/v1/reserve", f.reserveBody(901, 0, 2, 20))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, int32(errors.ERR_INSUFFICIENT_UNRESERVED_BALANCE), decodeError(t, rec).Code)
	})

	t.Run("expiry not in the future", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/v1/reserve", f.reserveBody(1, 0, 3, 10))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, int32(errors.ERR_INVALID_EXPIRY), decodeError(t, rec).Code)
	})

	t.Run("tampered amount", func(t *testing.T) {
		body := f.reserveBody(1, 0, 4, 20)
		body["amount"] = "2"

		rec := f.do(http.MethodPost, "/api/v1/reserve", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, int32(errors.ERR_INVALID_SIGNATURE), decodeError(t, rec).Code)
	})

	t.Run("missing nonce", func(t *testing.T) {
		body := f.reserveBody(1, 0, 5, 20)
		delete(body, "nonce")

		rec := f.do(http.MethodPost, "/api/v1/reserve", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, int32(errors.ERR_INVALID_ARGUMENT), decodeError(t, rec).Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reserve", strings.NewReader("{nope"))
		req.Header.Set("Content-Type", "application/json")

		rec := httptest.NewRecorder()
		f.h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, int32(errors.ERR_INVALID_ARGUMENT), decodeError(t, rec).Code)
	})

	rec = f.do(http.MethodGet, "/api/v1/balance/"+f.owner.Hex(), nil)
	_, reserved, _ := decodeBalance(t, rec)
	assert.Equal(t, "100", reserved)
}

func TestReclaimOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/reserve", f.reserveBody(100, 10, 7, 12))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodPost, f.reservationPath("7", "/reclaim"), map[string]string{"submitter": f.owner.Hex()})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, int32(errors.ERR_NOT_EXPIRED_TO_RECLAIM), decodeError(t, rec).Code)

	rec = f.do(http.MethodPost, f.reservationPath("7", "/reclaim"), map[string]string{"submitter": stranger.Hex()})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, int32(errors.ERR_UNAUTHORIZED_RECLAIM), decodeError(t, rec).Code)

	rec = f.do(http.MethodPost, f.reservationPath("7", "/reclaim"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/v1/clock/advance", map[string]uint64{"blocks": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"block":13}`, rec.Body.String())

	rec = f.do(http.MethodPost, f.reservationPath("7", "/execute"), map[string]string{"submitter": f.executor.Hex()})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, int32(errors.ERR_RESERVATION_EXPIRED), decodeError(t, rec).Code)

	rec = f.do(http.MethodPost, f.reservationPath("7", "/reclaim"), map[string]string{"submitter": f.owner.Hex()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.StatusReclaimed, decodeReservation(t, rec).Status)

	rec = f.do(http.MethodGet, "/api/v1/balance/"+f.owner.Hex(), nil)
	balance, reserved, _ := decodeBalance(t, rec)
	assert.Equal(t, "1000", balance)
	assert.Equal(t, "0", reserved)
}

func TestGetAndListReservations(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/reservations/"+f.owner.Hex(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	for _, nonce := range []uint64{3, 1, 2} {
		rec = f.do(http.MethodPost, "/api/v1/reserve", f.reserveBody(10, 0, nonce, 50))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec = f.do(http.MethodGet, "/api/v1/reservations/"+f.owner.Hex(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []*model.Reservation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 3)
	assert.Equal(t, uint64(1), list[0].Nonce.Uint64())
	assert.Equal(t, uint64(3), list[2].Nonce.Uint64())

	rec = f.do(http.MethodGet, f.reservationPath("0x2", ""), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(2), decodeReservation(t, rec).Nonce.Uint64())

	rec = f.do(http.MethodGet, f.reservationPath("99", ""), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, int32(errors.ERR_RESERVATION_NOT_FOUND), decodeError(t, rec).Code)

	rec = f.do(http.MethodGet, f.reservationPath("-1", ""), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/reservations/not-an-address", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransfersOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPost, "/api/v1/reserve", f.reserveBody(600, 0, 1, 50))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodPost, "/api/v1/transfer", map[string]string{"from": f.owner.Hex(), "to": recipient.Hex(), "amount": "401"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, int32(errors.ERR_EXCEEDS_UNRESERVED_BALANCE), decodeError(t, rec).Code)

	rec = f.do(http.MethodPost, "/api/v1/transfer", map[string]string{"from": f.owner.Hex(), "to": recipient.Hex(), "amount": "300"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	balance, reserved, unreserved := decodeBalance(t, rec)
	assert.Equal(t, "700", balance)
	assert.Equal(t, "600", reserved)
	assert.Equal(t, "100", unreserved)

	req := &model.TransferRequest{
		Owner:     f.owner,
		Recipient: recipient,
		Amount:    uint256.NewInt(90),
		Fee:       uint256.NewInt(10),
		Nonce:     uint256.NewInt(1),
	}

	sig, err := f.codec.SignTransfer(authorization.TransferMessageFromRequest(req), f.ownerKey)
	require.NoError(t, err)

	body := map[string]string{
		"owner":     f.owner.Hex(),
		"recipient": recipient.Hex(),
		"amount":    "90",
		"fee":       "10",
		"nonce":     "1",
		"signature": hexutil.Encode(sig),
		"submitter": stranger.Hex(),
	}

	rec = f.do(http.MethodPost, "/api/v1/transfer/signed", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	balance, _, unreserved = decodeBalance(t, rec)
	assert.Equal(t, "600", balance)
	assert.Equal(t, "0", unreserved)

	rec = f.do(http.MethodPost, "/api/v1/transfer/signed", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, int32(errors.ERR_NONCE_ALREADY_USED), decodeError(t, rec).Code)

	delete(body, "submitter")

	rec = f.do(http.MethodPost, "/api/v1/transfer/signed", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/balance/"+stranger.Hex(), nil)
	balance, _, _ = decodeBalance(t, rec)
	assert.Equal(t, "10", balance)
}

func TestClockOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/clock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"block":10}`, rec.Body.String())

	rec = f.do(http.MethodPost, "/api/v1/clock/advance", nil)
	assert.JSONEq(t, `{"block":11}`, rec.Body.String())

	rec = f.do(http.MethodPost, "/api/v1/clock/advance", map[string]uint64{"block": 40})
	assert.JSONEq(t, `{"block":40}`, rec.Body.String())

	rec = f.do(http.MethodPost, "/api/v1/clock/advance", map[string]uint64{"block": 20})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, int32(errors.ERR_INVALID_CLOCK_UPDATE), decodeError(t, rec).Code)
	assert.Equal(t, uint64(40), f.clock.CurrentBlock())

	rec = f.do(http.MethodPost, "/api/v1/clock/advance", map[string]uint64{"blocks": math.MaxUint64})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, int32(errors.ERR_INVALID_CLOCK_UPDATE), decodeError(t, rec).Code)
	assert.Equal(t, uint64(40), f.clock.CurrentBlock())

	t.Run("interval clock cannot be driven", func(t *testing.T) {
		tSettings := settings.NewSettings()
		tSettings.Escrow.ClockControl = true

		h := New(ulogger.TestLogger{}, tSettings, f.escrow, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/clock/advance", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSendLedgerError(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/balance/0x1234", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	e := decodeError(t, rec)
	assert.Equal(t, int32(errors.ERR_INVALID_ARGUMENT), e.Code)
	assert.Contains(t, e.Err, "0x1234")
}

func TestDefaultsRejectCallerAssertedIdentity(t *testing.T) {
	f := newAPIFixtureWith(t, nil)

	rec := f.do(http.MethodPost, "/api/v1/reserve", f.reserveBody(100, 10, 1, 20))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	t.Run("unsigned transfer", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/v1/transfer", map[string]string{"from": f.owner.Hex(), "to": stranger.Hex(), "amount": "1"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, int32(errors.ERR_FORBIDDEN), decodeError(t, rec).Code)
	})

	t.Run("unsigned execute", func(t *testing.T) {
		rec := f.do(http.MethodPost, f.reservationPath("1", "/execute"), map[string]string{"submitter": f.executor.Hex()})
		assert.Equal(t, http.StatusForbidden, rec.Code)

		e := decodeError(t, rec)
		assert.Equal(t, int32(errors.ERR_FORBIDDEN), e.Code)
		assert.Equal(t, "execute and reclaim must be signed by the submitter", e.Err)
	})

	t.Run("clock advance", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/v1/clock/advance", map[string]uint64{"blocks": 100})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, uint64(10), f.clock.CurrentBlock())
	})

	rec = f.do(http.MethodGet, "/api/v1/balance/"+stranger.Hex(), nil)
	balance, _, _ := decodeBalance(t, rec)
	assert.Equal(t, "0", balance)

	rec = f.do(http.MethodGet, f.reservationPath("1", ""), nil)
	assert.Equal(t, model.StatusActive, decodeReservation(t, rec).Status)
}

func TestSignedExecuteAndReclaim(t *testing.T) {
	f := newAPIFixtureWith(t, nil)

	for _, nonce := range []uint64{1, 2} {
		rec := f.do(http.MethodPost, "/api/v1/reserve", f.reserveBody(100, 10, nonce, 20))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	strangerKey, err := authorization.GenerateKey()
	require.NoError(t, err)

	t.Run("signed by someone else", func(t *testing.T) {
		rec := f.do(http.MethodPost, f.reservationPath("1", "/execute"), f.closeBody(authorization.DomainExecute, 1, strangerKey))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, int32(errors.ERR_UNAUTHORIZED_EXECUTE), decodeError(t, rec).Code)
	})

	t.Run("reclaim signature replayed on execute", func(t *testing.T) {
		rec := f.do(http.MethodPost, f.reservationPath("1", "/execute"), f.closeBody(authorization.DomainReclaim, 1, f.executorKey))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, int32(errors.ERR_UNAUTHORIZED_EXECUTE), decodeError(t, rec).Code)
	})

	t.Run("submitter does not match signer", func(t *testing.T) {
		body := f.closeBody(authorization.DomainExecute, 1, f.executorKey)
		body["submitter"] = f.owner.Hex()

		rec := f.do(http.MethodPost, f.reservationPath("1", "/execute"), body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, int32(errors.ERR_INVALID_SIGNATURE), decodeError(t, rec).Code)
	})

	rec := f.do(http.MethodPost, f.reservationPath("1", "/execute"), f.closeBody(authorization.DomainExecute, 1, f.executorKey))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.StatusCompleted, decodeReservation(t, rec).Status)

	rec = f.do(http.MethodPost, f.reservationPath("2", "/reclaim"), f.closeBody(authorization.DomainReclaim, 2, f.executorKey))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.StatusReclaimed, decodeReservation(t, rec).Status)

	rec = f.do(http.MethodGet, "/api/v1/balance/"+f.executor.Hex(), nil)
	balance, _, _ := decodeBalance(t, rec)
	assert.Equal(t, "10", balance)
}

func counterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()

	metric := &dto.Metric{}
	require.NoError(t, counter.Write(metric))

	return metric.GetCounter().GetValue()
}

func TestRateLimitPerClient(t *testing.T) {
	f := newAPIFixtureWith(t, func(tSettings *settings.Settings) {
		tSettings.Escrow.RateLimit = 0.001
		tSettings.Escrow.RateLimitBurst = 2
	})

	limited := prometheusEscrowHTTPRequests.WithLabelValues("/api/v1/clock", "4xx")
	before := counterValue(t, limited)

	get := func(realIP string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/clock", nil)
		req.Header.Set(echo.HeaderXRealIP, realIP)

		rec := httptest.NewRecorder()
		f.h.ServeHTTP(rec, req)

		return rec
	}

	assert.Equal(t, http.StatusOK, get("198.51.100.1").Code)
	assert.Equal(t, http.StatusOK, get("198.51.100.1").Code)

	rec := get("198.51.100.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")

	assert.Equal(t, http.StatusOK, get("198.51.100.2").Code, "another client has its own bucket")
	assert.InDelta(t, before+1, counterValue(t, limited), 0)
}

func TestRateLimitDisabledByDefault(t *testing.T) {
	f := newAPIFixture(t)

	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/v1/clock", nil).Code)
	}
}
