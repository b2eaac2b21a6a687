package httpimpl

import (
	"net/http"

	"github.com/bsv-blockchain/escrowledger/tracing"
	"github.com/labstack/echo/v4"
)

// GetBalance reports the balance, reserved and unreserved amounts of :account.
func (h *HTTP) GetBalance(c echo.Context) error {
	ctx, _, deferFn := tracing.StartTracing(c.Request().Context(), "EscrowHTTP:GetBalance",
		tracing.WithHistogram(prometheusEscrowHTTPDuration.WithLabelValues("GetBalance")),
	)
	defer deferFn()

	account, err := parseAddress("account", c.Param("account"))
	if err != nil {
		return sendLedgerError(c, err)
	}

	a, err := h.escrow.Account(ctx, account)
	if err != nil {
		return sendLedgerError(c, err)
	}

	return c.JSON(http.StatusOK, newBalanceResponse(a))
}

// Transfer moves unreserved funds and answers with the sender's new balances. The sender is taken from
// the body, so the route is only served behind a trusted gateway.
func (h *HTTP) Transfer(c echo.Context) error {
	ctx, _, deferFn := tracing.StartTracing(c.Request().Context(), "EscrowHTTP:Transfer",
		tracing.WithHistogram(prometheusEscrowHTTPDuration.WithLabelValues("Transfer")),
	)
	defer deferFn()

	if !h.settings.Escrow.TrustedGateway {
		return sendForbidden(c, "unsigned transfers need a trusted gateway, use %s/transfer/signed", h.settings.Escrow.APIPrefix)
	}

	var body transferRequest
	if err := bindBody(c, &body); err != nil {
		return sendLedgerError(c, err)
	}

	if err := h.escrow.Transfer(ctx, body.From, body.To, body.Amount); err != nil {
		return sendLedgerError(c, err)
	}

	a, err := h.escrow.Account(ctx, body.From)
	if err != nil {
		return sendLedgerError(c, err)
	}

	return c.JSON(http.StatusOK, newBalanceResponse(a))
}

// TransferSigned relays an owner-signed transfer; the submitter earns the fee.
func (h *HTTP) TransferSigned(c echo.Context) error {
	ctx, _, deferFn := tracing.StartTracing(c.Request().Context(), "EscrowHTTP:TransferSigned",
		tracing.WithHistogram(prometheusEscrowHTTPDuration.WithLabelValues("TransferSigned")),
	)
	defer deferFn()

	var body signedTransferRequest
	if err := bindBody(c, &body); err != nil {
		return sendLedgerError(c, err)
	}

	if err := requireSubmitter(body.Submitter); err != nil {
		return sendLedgerError(c, err)
	}

	if err := h.escrow.TransferWithAuthorization(ctx, body.Submitter, body.model()); err != nil {
		return sendLedgerError(c, err)
	}

	a, err := h.escrow.Account(ctx, body.Owner)
	if err != nil {
		return sendLedgerError(c, err)
	}

	return c.JSON(http.StatusOK, newBalanceResponse(a))
}
