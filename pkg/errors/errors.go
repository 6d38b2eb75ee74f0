// Package errors defines custom error types and error handling utilities for the
// WalletGate service. Every failure surfaced by the vault, store, registry,
// authorization protocol, or execution gate is a WGError carrying a stable code,
// an HTTP status for the API layer, and structured metadata.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/chainvault/walletgate/pkg/constants"
)

// ================================================================================
// Base Error Interface
// ================================================================================

// WGError represents a structured error with additional metadata.
type WGError interface {
	error

	// Code returns the stable error code
	Code() constants.ErrorCode

	// HTTPStatus returns the HTTP status code
	HTTPStatus() int

	// Description returns a human-readable description
	Description() string

	// Unwrap returns the underlying error for error chain support
	Unwrap() error

	// WithCause adds a cause error to the error chain
	WithCause(cause error) WGError

	// WithMetadata adds additional context metadata
	WithMetadata(key string, value interface{}) WGError

	// Metadata returns all metadata
	Metadata() map[string]interface{}
}

// ================================================================================
// Base Error Implementation
// ================================================================================

// baseError is the internal implementation of WGError
type baseError struct {
	code        constants.ErrorCode
	httpStatus  int
	description string
	message     string
	cause       error
	metadata    map[string]interface{}
}

// Error implements the error interface
func (e *baseError) Error() string {
	if e.message != "" {
		return e.message
	}
	return e.description
}

// Code returns the stable error code
func (e *baseError) Code() constants.ErrorCode {
	return e.code
}

// HTTPStatus returns the HTTP status code
func (e *baseError) HTTPStatus() int {
	return e.httpStatus
}

// Description returns the error description
func (e *baseError) Description() string {
	return e.description
}

// Unwrap returns the underlying cause error
func (e *baseError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause error to the error chain
func (e *baseError) WithCause(cause error) WGError {
	e.cause = cause
	return e
}

// WithMetadata adds additional context metadata
func (e *baseError) WithMetadata(key string, value interface{}) WGError {
	if e.metadata == nil {
		e.metadata = make(map[string]interface{})
	}
	e.metadata[key] = value
	return e
}

// Metadata returns all metadata
func (e *baseError) Metadata() map[string]interface{} {
	return e.metadata
}

// ================================================================================
// Error Constructor
// ================================================================================

// NewError creates a new WGError with the specified parameters
func NewError(code constants.ErrorCode, httpStatus int, description string, message string) WGError {
	return &baseError{
		code:        code,
		httpStatus:  httpStatus,
		description: description,
		message:     message,
		metadata:    make(map[string]interface{}),
	}
}

// ================================================================================
// Key Vault Errors
// ================================================================================

// ErrKeyUnsupportedEnvironment indicates the platform lacks a secure RNG or the
// AES-GCM primitive.
func ErrKeyUnsupportedEnvironment(reason string) WGError {
	return NewError(
		constants.ErrCodeKeyUnsupportedEnvironment,
		http.StatusInternalServerError,
		"The platform does not provide the cryptographic primitives required for key management.",
		fmt.Sprintf("unsupported environment: %s", reason),
	)
}

// ErrKeyNotInitialized indicates the vault was used before Initialize succeeded.
func ErrKeyNotInitialized() WGError {
	return NewError(
		constants.ErrCodeKeyNotInitialized,
		http.StatusInternalServerError,
		"The encryption key has not been initialized.",
		"key vault not initialized",
	)
}

// ErrKeyDecryptionFailed indicates an AES-GCM authentication failure: the record
// was tampered with, corrupted, or encrypted under a different key. The message
// never includes ciphertext or key material.
func ErrKeyDecryptionFailed() WGError {
	return NewError(
		constants.ErrCodeKeyDecryptionFailed,
		http.StatusInternalServerError,
		"Decryption failed: the record is corrupted, tampered with, or encrypted under a different key.",
		"decryption failed",
	)
}

// ================================================================================
// Secure Store Errors
// ================================================================================

// ErrStoreSerialization indicates a record could not be encoded or decoded.
func ErrStoreSerialization(key string) WGError {
	return NewError(
		constants.ErrCodeStoreSerialization,
		http.StatusInternalServerError,
		"A stored record could not be serialized or deserialized.",
		fmt.Sprintf("serialization failed for record %q", key),
	).WithMetadata("record_key", key)
}

// ErrStoreBackend indicates raw key-value backend I/O failure.
func ErrStoreBackend(op string, cause error) WGError {
	return NewError(
		constants.ErrCodeStoreBackend,
		http.StatusInternalServerError,
		"The underlying key-value backend failed.",
		fmt.Sprintf("storage backend %s failed", op),
	).WithMetadata("operation", op).WithCause(cause)
}

// ================================================================================
// Validation Errors
// ================================================================================

// ErrBadAddressFormat indicates an address failed its chain's format validator.
func ErrBadAddressFormat(chain constants.ChainID, address string) WGError {
	return NewError(
		constants.ErrCodeValidationBadFormat,
		http.StatusBadRequest,
		"The address does not match the chain's required format.",
		fmt.Sprintf("invalid %s address: %s", chain, address),
	).WithMetadata("chain", string(chain)).WithMetadata("address", address)
}

// ErrUnknownChain indicates a chain identifier outside the registry.
func ErrUnknownChain(chain constants.ChainID) WGError {
	return NewError(
		constants.ErrCodeValidationUnknownChain,
		http.StatusBadRequest,
		"The chain is not in the supported set.",
		fmt.Sprintf("unknown chain: %s", chain),
	).WithMetadata("chain", string(chain))
}

// ================================================================================
// Connector and Oracle Errors
// ================================================================================

// ErrSourceUnavailable indicates the expected wallet provider is absent.
func ErrSourceUnavailable(chain constants.ChainID, source constants.WalletSource) WGError {
	return NewError(
		constants.ErrCodeConnectSourceUnavailable,
		http.StatusServiceUnavailable,
		"The requested wallet provider is not available.",
		fmt.Sprintf("wallet source %s unavailable for %s", source, chain),
	).WithMetadata("chain", string(chain)).WithMetadata("source", string(source))
}

// ErrUserRejected indicates the user declined the connection request.
func ErrUserRejected(chain constants.ChainID) WGError {
	return NewError(
		constants.ErrCodeConnectUserRejected,
		http.StatusBadRequest,
		"The user rejected the wallet connection request.",
		fmt.Sprintf("connection to %s rejected by user", chain),
	).WithMetadata("chain", string(chain))
}

// ErrSignRejected indicates the external signer declined or failed. The reason is
// surfaced verbatim but must never carry key material; callers pass sanitized text.
func ErrSignRejected(chain constants.ChainID, reason string) WGError {
	return NewError(
		constants.ErrCodeSignRejected,
		http.StatusBadRequest,
		"The signer declined or failed to sign the challenge message.",
		fmt.Sprintf("signing on %s rejected: %s", chain, reason),
	).WithMetadata("chain", string(chain))
}

// ErrBalanceFetchFailed indicates a balance oracle failure.
func ErrBalanceFetchFailed(chain constants.ChainID, cause error) WGError {
	return NewError(
		constants.ErrCodeFetchFailed,
		http.StatusBadGateway,
		"The balance oracle could not be reached or returned an error.",
		fmt.Sprintf("balance fetch for %s failed", chain),
	).WithMetadata("chain", string(chain)).WithCause(cause)
}

// ================================================================================
// Authorization Protocol Errors
// ================================================================================

// ErrChallengeNotFound indicates an unknown challenge id.
func ErrChallengeNotFound(challengeID string) WGError {
	return NewError(
		constants.ErrCodeAuthNotFound,
		http.StatusNotFound,
		"No challenge exists with this id.",
		fmt.Sprintf("challenge not found: %s", challengeID),
	).WithMetadata("challenge_id", challengeID)
}

// ErrChallengeExpired indicates a challenge past its expiry. The user must start
// a new challenge; resubmitting against an expired one never succeeds.
func ErrChallengeExpired(challengeID string) WGError {
	return NewError(
		constants.ErrCodeAuthExpired,
		http.StatusGone,
		"The challenge expired before a valid signature was submitted.",
		fmt.Sprintf("challenge expired: %s", challengeID),
	).WithMetadata("challenge_id", challengeID)
}

// ErrChallengeAlreadyConsumed indicates a second submission against a consumed
// challenge, even when the signature itself is cryptographically valid.
func ErrChallengeAlreadyConsumed(challengeID string) WGError {
	return NewError(
		constants.ErrCodeAuthAlreadyConsumed,
		http.StatusConflict,
		"The challenge was already consumed by a previous authorization.",
		fmt.Sprintf("challenge already consumed: %s", challengeID),
	).WithMetadata("challenge_id", challengeID)
}

// ErrInvalidSignature indicates signature verification failure. The challenge
// stays unconsumed so the user may retry within the expiry window.
func ErrInvalidSignature(chain constants.ChainID) WGError {
	return NewError(
		constants.ErrCodeAuthInvalidSignature,
		http.StatusUnauthorized,
		"The signature does not verify against the signing address.",
		fmt.Sprintf("invalid %s signature", chain),
	).WithMetadata("chain", string(chain))
}

// ErrUnsupportedChain indicates no signature verifier exists for the chain family.
// Verification for such chains is denied, never skipped.
func ErrUnsupportedChain(chain constants.ChainID) WGError {
	return NewError(
		constants.ErrCodeAuthUnsupportedChain,
		http.StatusBadRequest,
		"Signature verification is not supported for this chain.",
		fmt.Sprintf("no signature verifier for %s", chain),
	).WithMetadata("chain", string(chain))
}

// ErrChallengeRateLimited indicates challenge issuance was throttled for an address.
func ErrChallengeRateLimited(address string) WGError {
	return NewError(
		constants.ErrCodeAuthRateLimited,
		http.StatusTooManyRequests,
		"Too many challenges requested for this address. Please try again later.",
		fmt.Sprintf("challenge issuance rate limited for %s", address),
	).WithMetadata("address", address)
}

// ErrSessionInvalid indicates a session token failed validation.
func ErrSessionInvalid(reason string) WGError {
	return NewError(
		constants.ErrCodeSessionInvalid,
		http.StatusUnauthorized,
		"The session token is invalid or expired.",
		fmt.Sprintf("invalid session: %s", reason),
	)
}

// ================================================================================
// Execution Gate Errors
// ================================================================================

// ErrMissingWallets indicates required chains without registry entries. The gate
// fails atomically: no challenge is created when any chain is missing.
func ErrMissingWallets(chains []constants.ChainID) WGError {
	names := make([]string, len(chains))
	for i, c := range chains {
		names[i] = string(c)
	}
	return NewError(
		constants.ErrCodeGateMissingWallets,
		http.StatusBadRequest,
		"One or more required chains have no registered wallet.",
		fmt.Sprintf("missing wallets for chains: %s", strings.Join(names, ", ")),
	).WithMetadata("missing_chains", names)
}

// ErrChainNotAllowed indicates a chain outside the user's permission policy.
func ErrChainNotAllowed(chain constants.ChainID) WGError {
	return NewError(
		constants.ErrCodeGateChainNotAllowed,
		http.StatusForbidden,
		"The chain is not in the user's allowed set.",
		fmt.Sprintf("chain not allowed by policy: %s", chain),
	).WithMetadata("chain", string(chain))
}

// ErrDailyLimitExceeded indicates the execution would exceed the daily spending cap.
func ErrDailyLimitExceeded(amount, spent, limit float64) WGError {
	return NewError(
		constants.ErrCodeGateLimitExceeded,
		http.StatusForbidden,
		"The execution would exceed the daily spending limit.",
		fmt.Sprintf("daily limit exceeded: amount %.2f, spent today %.2f, limit %.2f", amount, spent, limit),
	).WithMetadata("amount", amount).
		WithMetadata("spent_today", spent).
		WithMetadata("limit", limit)
}

// ErrExecutionFailed indicates the external strategy executor reported failure
// after a fully authorized flow.
func ErrExecutionFailed(strategyID string, cause error) WGError {
	return NewError(
		constants.ErrCodeExecutionFailed,
		http.StatusBadGateway,
		"The strategy executor reported a failure.",
		fmt.Sprintf("execution of strategy %s failed", strategyID),
	).WithMetadata("strategy_id", strategyID).WithCause(cause)
}

// ================================================================================
// Generic Errors
// ================================================================================

// ErrInvalidRequest creates an invalid_request error
func ErrInvalidRequest(message string) WGError {
	return NewError(
		constants.ErrCodeInvalidRequest,
		http.StatusBadRequest,
		"The request is missing a required parameter or is otherwise malformed.",
		message,
	)
}

// ErrNotFound indicates an unknown API resource or route.
func ErrNotFound(resource string) WGError {
	return NewError(
		constants.ErrCodeNotFound,
		http.StatusNotFound,
		"The requested resource was not found.",
		fmt.Sprintf("not found: %s", resource),
	)
}

// ErrDuplicateRequest indicates a mutating request replayed an
// idempotency key that was already accepted.
func ErrDuplicateRequest(key string) WGError {
	return NewError(
		constants.ErrCodeDuplicateRequest,
		http.StatusConflict,
		"A request with this idempotency key was already processed.",
		fmt.Sprintf("duplicate request: idempotency key %s already used", key),
	)
}

// ErrInternal creates an internal_error
func ErrInternal(message string) WGError {
	return NewError(
		constants.ErrCodeInternal,
		http.StatusInternalServerError,
		"An unexpected internal condition prevented the operation from completing.",
		message,
	)
}

// ================================================================================
// Error Validation Utilities
// ================================================================================

// IsWGError checks if an error is a WGError
func IsWGError(err error) bool {
	var wgErr WGError
	return stderrors.As(err, &wgErr)
}

// AsWGError attempts to cast an error to WGError, unwrapping as needed
func AsWGError(err error) (WGError, bool) {
	var wgErr WGError
	if stderrors.As(err, &wgErr) {
		return wgErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given error code anywhere in its chain.
func IsCode(err error, code constants.ErrorCode) bool {
	if wgErr, ok := AsWGError(err); ok {
		return wgErr.Code() == code
	}
	return false
}

// MissingChains extracts the missing chain list from a gate_missing_wallets error.
func MissingChains(err error) []string {
	wgErr, ok := AsWGError(err)
	if !ok || wgErr.Code() != constants.ErrCodeGateMissingWallets {
		return nil
	}
	chains, _ := wgErr.Metadata()["missing_chains"].([]string)
	return chains
}

// WrapError wraps a generic error into a WGError
func WrapError(err error, code constants.ErrorCode, message string) WGError {
	var httpStatus int

	switch code {
	case constants.ErrCodeValidationBadFormat, constants.ErrCodeValidationUnknownChain,
		constants.ErrCodeInvalidRequest, constants.ErrCodeGateMissingWallets:
		httpStatus = http.StatusBadRequest
	case constants.ErrCodeAuthInvalidSignature, constants.ErrCodeSessionInvalid:
		httpStatus = http.StatusUnauthorized
	case constants.ErrCodeGateChainNotAllowed, constants.ErrCodeGateLimitExceeded:
		httpStatus = http.StatusForbidden
	case constants.ErrCodeAuthNotFound:
		httpStatus = http.StatusNotFound
	case constants.ErrCodeAuthAlreadyConsumed:
		httpStatus = http.StatusConflict
	case constants.ErrCodeAuthExpired:
		httpStatus = http.StatusGone
	case constants.ErrCodeAuthRateLimited:
		httpStatus = http.StatusTooManyRequests
	case constants.ErrCodeFetchFailed, constants.ErrCodeExecutionFailed:
		httpStatus = http.StatusBadGateway
	case constants.ErrCodeConnectSourceUnavailable:
		httpStatus = http.StatusServiceUnavailable
	default:
		httpStatus = http.StatusInternalServerError
	}

	return NewError(code, httpStatus, err.Error(), message).WithCause(err)
}

// ================================================================================
// Error Response Builder
// ================================================================================

// ErrorResponse represents the JSON structure for error responses
type ErrorResponse struct {
	Error            string                 `json:"error"`
	ErrorDescription string                 `json:"error_description"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// ToErrorResponse converts a WGError to an ErrorResponse
func ToErrorResponse(err WGError) *ErrorResponse {
	return &ErrorResponse{
		Error:            string(err.Code()),
		ErrorDescription: err.Description(),
		Metadata:         err.Metadata(),
	}
}

// ToGenericErrorResponse converts any error to an ErrorResponse
func ToGenericErrorResponse(err error) *ErrorResponse {
	if wgErr, ok := AsWGError(err); ok {
		return ToErrorResponse(wgErr)
	}

	// Fallback to generic server error
	return &ErrorResponse{
		Error:            string(constants.ErrCodeInternal),
		ErrorDescription: "An unexpected error occurred",
	}
}

// ================================================================================
// Error Logging Utilities
// ================================================================================

// ShouldLogError determines if an error should be logged based on severity
func ShouldLogError(err error) bool {
	if wgErr, ok := AsWGError(err); ok {
		// Client errors (4xx) are expected traffic except rate limiting
		status := wgErr.HTTPStatus()
		return status >= 500 || status == http.StatusTooManyRequests
	}
	return true
}
