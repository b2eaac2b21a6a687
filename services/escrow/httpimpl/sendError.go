package httpimpl

import (
	"net/http"

	"github.com/bsv-blockchain/escrowledger/errors"
	"github.com/labstack/echo/v4"
)

// errorResponse is the body of every failed API call.
type errorResponse struct {
	// Status repeats the HTTP status code
	Status int32 `json:"status"`

	// Code is the ledger error code, e.g. 120 for NONCE_ALREADY_USED
	Code int32 `json:"code"`

	Err string `json:"error"`
}

// sendError writes msg as an errorResponse with the given status.
func sendError(c echo.Context, status int, code errors.ERR, msg string) error {
	e := &errorResponse{
		Status: int32(status),
		Code:   int32(code),
		Err:    msg,
	}

	return c.JSON(status, e)
}

// sendLedgerError maps a ledger error onto its HTTP status. Rejections and forbidden routes keep their own
// message; anything else is reported with the wrapped chain.
func sendLedgerError(c echo.Context, err error) error {
	code := errors.CodeOf(err)
	status := errors.ErrorCodeToHTTPStatus(code)

	msg := err.Error()

	var tErr *errors.Error
	if (errors.IsRejection(err) || errors.Is(err, errors.ErrForbidden)) && errors.As(err, &tErr) {
		msg = tErr.Message()
	}

	return sendError(c, status, code, msg)
}

// sendForbidden rejects a request this deployment does not accept from untrusted callers.
func sendForbidden(c echo.Context, format string, args ...interface{}) error {
	return sendLedgerError(c, errors.NewForbiddenError(format, args...))
}

func sendTooManyRequests(c echo.Context) error {
	return sendError(c, http.StatusTooManyRequests, errors.ERR_SERVICE_UNAVAILABLE, "rate limit exceeded")
}
