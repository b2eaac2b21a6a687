package errors

import "strconv"

// ERR is the numeric error code carried by every *Error.
type ERR int32

//nolint:revive,stylecheck // codes keep the upper snake case used on the wire
const (
	ERR_UNKNOWN              ERR = 0
	ERR_INVALID_ARGUMENT     ERR = 1
	ERR_PROCESSING           ERR = 3
	ERR_CONFIGURATION        ERR = 4
	ERR_CONTEXT_CANCELED     ERR = 5
	ERR_FORBIDDEN            ERR = 7
	ERR_SERVICE_UNAVAILABLE  ERR = 10
	ERR_SERVICE_ERROR        ERR = 12
	ERR_STORAGE_UNAVAILABLE  ERR = 20
	ERR_STORAGE_ERROR        ERR = 22
	ERR_KAFKA_ERROR          ERR = 30
	ERR_INVALID_CLOCK_UPDATE ERR = 40

	// ledger rejections
	ERR_INSUFFICIENT_BALANCE       ERR = 100
	ERR_EXCEEDS_UNRESERVED_BALANCE ERR = 101

	// reservation rejections
	ERR_EXECUTOR_ZERO_ADDRESS           ERR = 110
	ERR_INVALID_EXPIRY                  ERR = 111
	ERR_INVALID_SIGNATURE               ERR = 112
	ERR_NONCE_ALREADY_USED              ERR = 113
	ERR_INSUFFICIENT_UNRESERVED_BALANCE ERR = 114
	ERR_RESERVATION_NOT_FOUND           ERR = 115
	ERR_INVALID_STATUS_FOR_EXECUTE      ERR = 116
	ERR_INVALID_STATUS_FOR_RECLAIM      ERR = 117
	ERR_RESERVATION_EXPIRED             ERR = 118
	ERR_UNAUTHORIZED_EXECUTE            ERR = 119
	ERR_NOT_EXPIRED_TO_RECLAIM          ERR = 120
	ERR_UNAUTHORIZED_RECLAIM            ERR = 121
)

var ERR_name = map[int32]string{
	0:   "UNKNOWN",
	1:   "INVALID_ARGUMENT",
	3:   "PROCESSING",
	4:   "CONFIGURATION",
	5:   "CONTEXT_CANCELED",
	7:   "FORBIDDEN",
	10:  "SERVICE_UNAVAILABLE",
	12:  "SERVICE_ERROR",
	20:  "STORAGE_UNAVAILABLE",
	22:  "STORAGE_ERROR",
	30:  "KAFKA_ERROR",
	40:  "INVALID_CLOCK_UPDATE",
	100: "INSUFFICIENT_BALANCE",
	101: "EXCEEDS_UNRESERVED_BALANCE",
	110: "EXECUTOR_ZERO_ADDRESS",
	111: "INVALID_EXPIRY",
	112: "INVALID_SIGNATURE",
	113: "NONCE_ALREADY_USED",
	114: "INSUFFICIENT_UNRESERVED_BALANCE",
	115: "RESERVATION_NOT_FOUND",
	116: "INVALID_STATUS_FOR_EXECUTE",
	117: "INVALID_STATUS_FOR_RECLAIM",
	118: "RESERVATION_EXPIRED",
	119: "UNAUTHORIZED_EXECUTE",
	120: "NOT_EXPIRED_TO_RECLAIM",
	121: "UNAUTHORIZED_RECLAIM",
}

var ERR_value = func() map[string]int32 {
	m := make(map[string]int32, len(ERR_name))
	for k, v := range ERR_name {
		m[v] = k
	}

	return m
}()

func (x ERR) String() string {
	if name, ok := ERR_name[int32(x)]; ok {
		return name
	}

	return strconv.Itoa(int(x))
}

// Enum returns the code name, mirroring generated enum accessors.
func (x ERR) Enum() string {
	return x.String()
}

var (
	ErrInvalidArgument         = New(ERR_INVALID_ARGUMENT, "invalid argument")
	ErrProcessing              = New(ERR_PROCESSING, "error processing")
	ErrConfiguration           = New(ERR_CONFIGURATION, "configuration error")
	ErrContextCanceled         = New(ERR_CONTEXT_CANCELED, "context canceled")
	ErrForbidden               = New(ERR_FORBIDDEN, "forbidden")
	ErrServiceError            = New(ERR_SERVICE_ERROR, "service error")
	ErrStorageUnavailable      = New(ERR_STORAGE_UNAVAILABLE, "storage unavailable")
	ErrStorageError            = New(ERR_STORAGE_ERROR, "storage error")
	ErrKafka                   = New(ERR_KAFKA_ERROR, "kafka error")
	ErrInvalidClockUpdate      = New(ERR_INVALID_CLOCK_UPDATE, "invalid clock update")
	ErrInsufficientBalance     = New(ERR_INSUFFICIENT_BALANCE, "transfer amount exceeds balance")
	ErrExceedsUnreserved       = New(ERR_EXCEEDS_UNRESERVED_BALANCE, "transfer amount exceeds unreserved balance")
	ErrExecutorZeroAddress     = New(ERR_EXECUTOR_ZERO_ADDRESS, "cannot execute from zero address")
	ErrInvalidExpiry           = New(ERR_INVALID_EXPIRY, "invalid block expiry number")
	ErrInvalidSignature        = New(ERR_INVALID_SIGNATURE, "invalid signature")
	ErrNonceAlreadyUsed        = New(ERR_NONCE_ALREADY_USED, "the nonce has already been used for this address")
	ErrInsufficientUnreserved  = New(ERR_INSUFFICIENT_UNRESERVED_BALANCE, "insufficient unreserved balance")
	ErrReservationNotFound     = New(ERR_RESERVATION_NOT_FOUND, "reservation does not exist")
	ErrInvalidStatusForExecute = New(ERR_INVALID_STATUS_FOR_EXECUTE, "invalid reservation status to execute")
	ErrInvalidStatusForReclaim = New(ERR_INVALID_STATUS_FOR_RECLAIM, "invalid reservation status to reclaim")
	ErrReservationExpired      = New(ERR_RESERVATION_EXPIRED, "reservation has expired and cannot be executed")
	ErrUnauthorizedExecute     = New(ERR_UNAUTHORIZED_EXECUTE, "address is not authorized to execute this reservation")
	ErrNotExpiredToReclaim     = New(ERR_NOT_EXPIRED_TO_RECLAIM, "reservation has not expired or you are not the executor and cannot be reclaimed")
	ErrUnauthorizedReclaim     = New(ERR_UNAUTHORIZED_RECLAIM, "only the owner or the executor can reclaim the reservation")
)

// errors initialization functions

func NewInvalidArgumentError(message string, params ...interface{}) error {
	return New(ERR_INVALID_ARGUMENT, message, params...)
}
func NewProcessingError(message string, params ...interface{}) error {
	return New(ERR_PROCESSING, message, params...)
}
func NewConfigurationError(message string, params ...interface{}) error {
	return New(ERR_CONFIGURATION, message, params...)
}
func NewContextCanceledError(message string, params ...interface{}) error {
	return New(ERR_CONTEXT_CANCELED, message, params...)
}
func NewForbiddenError(message string, params ...interface{}) error {
	return New(ERR_FORBIDDEN, message, params...)
}
func NewServiceUnavailableError(message string, params ...interface{}) error {
	return New(ERR_SERVICE_UNAVAILABLE, message, params...)
}
func NewServiceError(message string, params ...interface{}) error {
	return New(ERR_SERVICE_ERROR, message, params...)
}
func NewStorageUnavailableError(message string, params ...interface{}) error {
	return New(ERR_STORAGE_UNAVAILABLE, message, params...)
}
func NewStorageError(message string, params ...interface{}) error {
	return New(ERR_STORAGE_ERROR, message, params...)
}
func NewKafkaError(message string, params ...interface{}) error {
	return New(ERR_KAFKA_ERROR, message, params...)
}
func NewInvalidClockUpdateError(message string, params ...interface{}) error {
	return New(ERR_INVALID_CLOCK_UPDATE, message, params...)
}
func NewInsufficientBalanceError(message string, params ...interface{}) error {
	return New(ERR_INSUFFICIENT_BALANCE, message, params...)
}
func NewExceedsUnreservedBalanceError(message string, params ...interface{}) error {
	return New(ERR_EXCEEDS_UNRESERVED_BALANCE, message, params...)
}
func NewExecutorZeroAddressError(message string, params ...interface{}) error {
	return New(ERR_EXECUTOR_ZERO_ADDRESS, message, params...)
}
func NewInvalidExpiryError(message string, params ...interface{}) error {
	return New(ERR_INVALID_EXPIRY, message, params...)
}
func NewInvalidSignatureError(message string, params ...interface{}) error {
	return New(ERR_INVALID_SIGNATURE, message, params...)
}
func NewNonceAlreadyUsedError(message string, params ...interface{}) error {
	return New(ERR_NONCE_ALREADY_USED, message, params...)
}
func NewInsufficientUnreservedBalanceError(message string, params ...interface{}) error {
	return New(ERR_INSUFFICIENT_UNRESERVED_BALANCE, message, params...)
}
func NewReservationNotFoundError(message string, params ...interface{}) error {
	return New(ERR_RESERVATION_NOT_FOUND, message, params...)
}
func NewInvalidStatusForExecuteError(message string, params ...interface{}) error {
	return New(ERR_INVALID_STATUS_FOR_EXECUTE, message, params...)
}
func NewInvalidStatusForReclaimError(message string, params ...interface{}) error {
	return New(ERR_INVALID_STATUS_FOR_RECLAIM, message, params...)
}
func NewReservationExpiredError(message string, params ...interface{}) error {
	return New(ERR_RESERVATION_EXPIRED, message, params...)
}
func NewUnauthorizedExecuteError(message string, params ...interface{}) error {
	return New(ERR_UNAUTHORIZED_EXECUTE, message, params...)
}
func NewNotExpiredToReclaimError(message string, params ...interface{}) error {
	return New(ERR_NOT_EXPIRED_TO_RECLAIM, message, params...)
}
func NewUnauthorizedReclaimError(message string, params ...interface{}) error {
	return New(ERR_UNAUTHORIZED_RECLAIM, message, params...)
}
