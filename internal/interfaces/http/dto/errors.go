package dto

import "net/http"

// Error codes returned in the error envelope.
// Format: ERR_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Request error codes
const (
	// ErrCodeValidation is used when a request fails binding or field validation
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid identifiers and query values
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidAmount is used when a money amount is zero, negative, finer than a cent or unparsable
	ErrCodeInvalidAmount = "ERR_INVALID_AMOUNT"
	// ErrCodeInvalidSignature is used when a processor webhook fails verification
	ErrCodeInvalidSignature = "ERR_INVALID_SIGNATURE"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Ledger error codes
const (
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeInvalidState is used when the invoice or payment status forbids the command
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeConcurrencyConflict is used when the retry budget for a contended invoice ran out
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	// ErrCodeExternalProcessor is used when the payment processor call failed
	ErrCodeExternalProcessor = "ERR_EXTERNAL_PROCESSOR"
	// ErrCodeSettlementIncomplete is used when some invoices of a settlement
	// failed transiently and the processor should redeliver the event
	ErrCodeSettlementIncomplete = "ERR_SETTLEMENT_INCOMPLETE"
)

// Rate limiting error codes
const (
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Request errors -> 400 Bad Request
	ErrCodeValidation:       http.StatusBadRequest,
	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeInvalidInput:     http.StatusBadRequest,
	ErrCodeInvalidAmount:    http.StatusBadRequest,
	ErrCodeInvalidSignature: http.StatusBadRequest,
	ErrCodeRequestTooLarge:  http.StatusRequestEntityTooLarge,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	ErrCodeNotFound:             http.StatusNotFound,
	ErrCodeInvalidState:         http.StatusUnprocessableEntity,
	ErrCodeConcurrencyConflict:  http.StatusConflict,
	ErrCodeExternalProcessor:    http.StatusBadGateway,
	ErrCodeSettlementIncomplete: http.StatusServiceUnavailable,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps shared.DomainError codes to envelope codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":                ErrCodeNotFound,
	"INVALID_INPUT":            ErrCodeInvalidInput,
	"INVALID_AMOUNT":           ErrCodeInvalidAmount,
	"INVALID_STATE":            ErrCodeInvalidState,
	"VALIDATION_ERROR":         ErrCodeValidation,
	"CONCURRENCY_CONFLICT":     ErrCodeConcurrencyConflict,
	"EXTERNAL_PROCESSOR_ERROR": ErrCodeExternalProcessor,
	"UNAUTHORIZED":             ErrCodeUnauthorized,
	"FORBIDDEN":                ErrCodeForbidden,
}

// NormalizeErrorCode converts a domain error code to the envelope format.
// Codes already in envelope format, and unknown codes, are returned as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}

// IsRetryableCode reports whether a client may resend the same request
func IsRetryableCode(code string) bool {
	switch code {
	case ErrCodeConcurrencyConflict, ErrCodeExternalProcessor, ErrCodeSettlementIncomplete, ErrCodeRateLimited:
		return true
	}
	return false
}
