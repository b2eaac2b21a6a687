package errors

import (
	"context"
	"errors"
	"net/http"
)

// IsRejection reports whether err is a deterministic rejection of a ledger or reservation operation.
// Rejections leave no state behind and are safe to report back to the caller as-is.
func IsRejection(err error) bool {
	if err == nil {
		return false
	}

	var tErr *Error
	if !As(err, &tErr) {
		return false
	}

	code := tErr.Code()

	return code >= ERR_INSUFFICIENT_BALANCE && code <= ERR_UNAUTHORIZED_RECLAIM
}

// IsRetryableError determines if an error is transient and the operation could be resubmitted.
// Rejections are never retryable.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Check if context was cancelled - not retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var tErr *Error
	if As(err, &tErr) {
		switch tErr.Code() {
		case ERR_SERVICE_UNAVAILABLE,
			ERR_STORAGE_UNAVAILABLE:
			return true
		}
	}

	return false
}

// IsContextError determines if an error is related to context cancellation or deadline.
func IsContextError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var tErr *Error
	if As(err, &tErr) {
		return tErr.Code() == ERR_CONTEXT_CANCELED
	}

	return false
}

// ErrorCodeToHTTPStatus maps application error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code ERR) int {
	switch code {
	case ERR_INVALID_ARGUMENT,
		ERR_INVALID_CLOCK_UPDATE,
		ERR_EXECUTOR_ZERO_ADDRESS,
		ERR_INVALID_EXPIRY,
		ERR_INVALID_SIGNATURE:
		return http.StatusBadRequest
	case ERR_FORBIDDEN,
		ERR_UNAUTHORIZED_EXECUTE,
		ERR_UNAUTHORIZED_RECLAIM:
		return http.StatusForbidden
	case ERR_RESERVATION_NOT_FOUND:
		return http.StatusNotFound
	case ERR_NONCE_ALREADY_USED,
		ERR_INVALID_STATUS_FOR_EXECUTE,
		ERR_INVALID_STATUS_FOR_RECLAIM,
		ERR_RESERVATION_EXPIRED,
		ERR_NOT_EXPIRED_TO_RECLAIM:
		return http.StatusConflict
	case ERR_INSUFFICIENT_BALANCE,
		ERR_EXCEEDS_UNRESERVED_BALANCE,
		ERR_INSUFFICIENT_UNRESERVED_BALANCE:
		return http.StatusUnprocessableEntity
	case ERR_SERVICE_UNAVAILABLE,
		ERR_STORAGE_UNAVAILABLE:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
