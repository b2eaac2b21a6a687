package httpimpl

import (
	"context"
	"net/http"

	"github.com/bsv-blockchain/escrowledger/authorization"
	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/bsv-blockchain/escrowledger/model"
	"github.com/bsv-blockchain/escrowledger/tracing"
	"github.com/holiman/uint256"
	"github.com/labstack/echo/v4"
)

// Reserve admits a signed reservation and answers 201 with the stored record.
// A missing submitter means the owner relays its own request.
func (h *HTTP) Reserve(c echo.Context) error {
	ctx, _, deferFn := tracing.StartTracing(c.Request().Context(), "EscrowHTTP:Reserve",
		tracing.WithHistogram(prometheusEscrowHTTPDuration.WithLabelValues("Reserve")),
	)
	defer deferFn()

	var body reserveRequest
	if err := bindBody(c, &body); err != nil {
		return sendLedgerError(c, err)
	}

	submitter := body.Submitter
	if submitter == model.ZeroAddress {
		submitter = body.Owner
	}

	if err := h.escrow.Reserve(ctx, submitter, body.model()); err != nil {
		return sendLedgerError(c, err)
	}

	return h.sendReservation(ctx, c, http.StatusCreated, body.Owner, body.Nonce)
}

// Execute pays out the reservation at :owner/:nonce on behalf of the submitter.
func (h *HTTP) Execute(c echo.Context) error {
	ctx, _, deferFn := tracing.StartTracing(c.Request().Context(), "EscrowHTTP:Execute",
		tracing.WithHistogram(prometheusEscrowHTTPDuration.WithLabelValues("Execute")),
	)
	defer deferFn()

	return h.closeReservation(ctx, c, authorization.DomainExecute, h.escrow.Execute)
}

// Reclaim returns the held funds of the reservation at :owner/:nonce to its owner.
func (h *HTTP) Reclaim(c echo.Context) error {
	ctx, _, deferFn := tracing.StartTracing(c.Request().Context(), "EscrowHTTP:Reclaim",
		tracing.WithHistogram(prometheusEscrowHTTPDuration.WithLabelValues("Reclaim")),
	)
	defer deferFn()

	return h.closeReservation(ctx, c, authorization.DomainReclaim, h.escrow.Reclaim)
}

type closeFn func(ctx context.Context, submitter, owner model.Address, nonce *uint256.Int) error

func (h *HTTP) closeReservation(ctx context.Context, c echo.Context, domain uint8, fn closeFn) error {
	owner, nonce, err := reservationParams(c)
	if err != nil {
		return sendLedgerError(c, err)
	}

	var body closeRequest
	if err = bindBody(c, &body); err != nil {
		return sendLedgerError(c, err)
	}

	submitter, err := h.closeSubmitter(domain, owner, nonce, &body)
	if err != nil {
		return sendLedgerError(c, err)
	}

	if submitter == model.ZeroAddress {
		return sendForbidden(c, "execute and reclaim must be signed by the submitter")
	}

	if err = fn(ctx, submitter, owner, nonce); err != nil {
		return sendLedgerError(c, err)
	}

	return h.sendReservation(ctx, c, http.StatusOK, owner, nonce)
}

// closeSubmitter recovers the submitter from the signature. Unsigned requests are only taken at their word
// behind a trusted gateway; otherwise the zero address is returned.
func (h *HTTP) closeSubmitter(domain uint8, owner model.Address, nonce *uint256.Int, body *closeRequest) (model.Address, error) {
	if len(body.Signature) == 0 {
		if !h.settings.Escrow.TrustedGateway {
			return model.ZeroAddress, nil
		}

		return body.Submitter, requireSubmitter(body.Submitter)
	}

	msg := &authorization.CloseMessage{Domain: domain, Owner: owner, Nonce: nonce}

	signer, err := h.escrow.Verifier().RecoverClose(msg, body.Signature)
	if err != nil {
		return model.ZeroAddress, err
	}

	if body.Submitter != model.ZeroAddress && body.Submitter != signer {
		return model.ZeroAddress, errors.NewInvalidSignatureError("signer %s is not the submitter %s", signer.Hex(), body.Submitter.Hex())
	}

	return signer, nil
}

func (h *HTTP) GetReservation(c echo.Context) error {
	ctx, _, deferFn := tracing.StartTracing(c.Request().Context(), "EscrowHTTP:GetReservation",
		tracing.WithHistogram(prometheusEscrowHTTPDuration.WithLabelValues("GetReservation")),
	)
	defer deferFn()

	owner, nonce, err := reservationParams(c)
	if err != nil {
		return sendLedgerError(c, err)
	}

	return h.sendReservation(ctx, c, http.StatusOK, owner, nonce)
}

// ListReservations returns every reservation of :owner ordered by nonce.
func (h *HTTP) ListReservations(c echo.Context) error {
	ctx, _, deferFn := tracing.StartTracing(c.Request().Context(), "EscrowHTTP:ListReservations",
		tracing.WithHistogram(prometheusEscrowHTTPDuration.WithLabelValues("ListReservations")),
	)
	defer deferFn()

	owner, err := parseAddress("owner", c.Param("owner"))
	if err != nil {
		return sendLedgerError(c, err)
	}

	reservations, err := h.escrow.ListReservations(ctx, owner)
	if err != nil {
		return sendLedgerError(c, err)
	}

	if reservations == nil {
		reservations = []*model.Reservation{}
	}

	return c.JSON(http.StatusOK, reservations)
}

func (h *HTTP) sendReservation(ctx context.Context, c echo.Context, status int, owner model.Address, nonce *uint256.Int) error {
	reservation, err := h.escrow.GetReservation(ctx, owner, nonce)
	if err != nil {
		return sendLedgerError(c, err)
	}

	return c.JSON(status, reservation)
}
