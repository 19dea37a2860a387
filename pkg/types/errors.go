package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is a stable, machine readable identifier returned to API callers and stored on
// failed snapshot tasks.
type ErrorCode string

const (
	ErrCodeValidation            ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound              ErrorCode = "NOT_FOUND"
	ErrCodeNotIncluded           ErrorCode = "NOT_INCLUDED"
	ErrCodeInvalidBlock          ErrorCode = "INVALID_BLOCK"
	ErrCodeChainQuery            ErrorCode = "CHAIN_QUERY_ERROR"
	ErrCodeInternalInconsistency ErrorCode = "INTERNAL_INCONSISTENCY"
	ErrCodeTaskTimeout           ErrorCode = "TASK_TIMEOUT"
	ErrCodeQueueFull             ErrorCode = "QUEUE_FULL"
	ErrCodeUnauthorized          ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal              ErrorCode = "INTERNAL_ERROR"
)

var errorDescriptions = map[ErrorCode]string{
	ErrCodeValidation:            "Request validation failed",
	ErrCodeNotFound:              "Requested resource does not exist",
	ErrCodeNotIncluded:           "Wallet address is not included in the payout merkle tree",
	ErrCodeInvalidBlock:          "Payout block number is not reachable on the chain",
	ErrCodeChainQuery:            "Failed to query the blockchain",
	ErrCodeInternalInconsistency: "Computed snapshot failed consistency checks",
	ErrCodeTaskTimeout:           "Snapshot task did not finish in time",
	ErrCodeQueueFull:             "Snapshot task queue is full",
	ErrCodeUnauthorized:          "Missing or invalid access token",
	ErrCodeInternal:              "Internal server error",
}

var errorStatuses = map[ErrorCode]int{
	ErrCodeValidation:            http.StatusBadRequest,
	ErrCodeNotFound:              http.StatusNotFound,
	ErrCodeNotIncluded:           http.StatusNotFound,
	ErrCodeInvalidBlock:          http.StatusBadRequest,
	ErrCodeChainQuery:            http.StatusBadGateway,
	ErrCodeInternalInconsistency: http.StatusInternalServerError,
	ErrCodeTaskTimeout:           http.StatusGatewayTimeout,
	ErrCodeQueueFull:             http.StatusServiceUnavailable,
	ErrCodeUnauthorized:          http.StatusUnauthorized,
	ErrCodeInternal:              http.StatusInternalServerError,
}

// Description returns the human readable summary for the code
func (c ErrorCode) Description() string {
	if d, ok := errorDescriptions[c]; ok {
		return d
	}
	return errorDescriptions[ErrCodeInternal]
}

// HTTPStatus returns the status code the API responds with for this error code
func (c ErrorCode) HTTPStatus() int {
	if s, ok := errorStatuses[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// PayoutError is the domain error carried through the snapshot pipeline and the query layer.
// Two PayoutErrors match with errors.Is when their codes are equal.
type PayoutError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *PayoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PayoutError) Unwrap() error {
	return e.Err
}

func (e *PayoutError) Is(target error) bool {
	var pe *PayoutError
	if !errors.As(target, &pe) {
		return false
	}
	return pe.Code == e.Code
}

// Sentinels for errors.Is checks
var (
	ErrValidation            = &PayoutError{Code: ErrCodeValidation}
	ErrNotFound              = &PayoutError{Code: ErrCodeNotFound}
	ErrNotIncluded           = &PayoutError{Code: ErrCodeNotIncluded}
	ErrInvalidBlock          = &PayoutError{Code: ErrCodeInvalidBlock}
	ErrChainQuery            = &PayoutError{Code: ErrCodeChainQuery}
	ErrInternalInconsistency = &PayoutError{Code: ErrCodeInternalInconsistency}
	ErrTaskTimeout           = &PayoutError{Code: ErrCodeTaskTimeout}
	ErrUnauthorized          = &PayoutError{Code: ErrCodeUnauthorized}
)

func NewValidationError(format string, args ...interface{}) *PayoutError {
	return &PayoutError{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(format string, args ...interface{}) *PayoutError {
	return &PayoutError{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewNotIncludedError(wallet string, root string) *PayoutError {
	return &PayoutError{
		Code:    ErrCodeNotIncluded,
		Message: fmt.Sprintf("wallet %s is not included in merkle tree with root %s", wallet, root),
	}
}

func NewInvalidBlockError(target, head uint64) *PayoutError {
	return &PayoutError{
		Code:    ErrCodeInvalidBlock,
		Message: fmt.Sprintf("block %d is ahead of current chain head %d", target, head),
	}
}

func NewChainQueryError(message string, err error) *PayoutError {
	return &PayoutError{Code: ErrCodeChainQuery, Message: message, Err: err}
}

func NewInconsistencyError(format string, args ...interface{}) *PayoutError {
	return &PayoutError{Code: ErrCodeInternalInconsistency, Message: fmt.Sprintf(format, args...)}
}

func NewUnauthorizedError(format string, args ...interface{}) *PayoutError {
	return &PayoutError{Code: ErrCodeUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the error code of err, falling back to INTERNAL_ERROR for foreign errors
func CodeOf(err error) ErrorCode {
	var pe *PayoutError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ErrCodeInternal
}
