package httpimpl

import (
	"net/http"

	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/labstack/echo/v4"
)

func (h *HTTP) GetClock(c echo.Context) error {
	return c.JSON(http.StatusOK, &clockResponse{Block: h.escrow.Clock().CurrentBlock()})
}

// AdvanceClock moves a manual clock forward by "blocks" (default 1), or to "block" when that is set.
// Interval clocks cannot be driven over the API, and manual ones only with escrow_clockControl.
func (h *HTTP) AdvanceClock(c echo.Context) error {
	if !h.settings.Escrow.ClockControl {
		return sendForbidden(c, "clock control is disabled")
	}

	if h.manualClock == nil {
		return sendLedgerError(c, errors.NewInvalidClockUpdateError("clock is not manually driven"))
	}

	var body clockRequest
	if err := bindBody(c, &body); err != nil {
		return sendLedgerError(c, err)
	}

	if body.Block != 0 {
		if err := h.manualClock.Set(body.Block); err != nil {
			return sendLedgerError(c, err)
		}
	} else {
		blocks := body.Blocks
		if blocks == 0 {
			blocks = 1
		}

		if _, err := h.manualClock.Advance(blocks); err != nil {
			return sendLedgerError(c, err)
		}
	}

	block := h.manualClock.CurrentBlock()

	h.logger.Infof("[EscrowHTTP] clock moved to block %d", block)

	return c.JSON(http.StatusOK, &clockResponse{Block: block})
}
