package oracle

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies why Decide did not return a validated JsonObject.
type ErrorKind string

const (
	// BadOracleResponse means the provider's response could not be parsed
	// as JSON, or failed schema validation, after the one allowed reprompt.
	BadOracleResponse ErrorKind = "bad_oracle_response"
	// ProvidersExhausted means every credential in the ring was tried and
	// none produced a usable response within its retry budget.
	ProvidersExhausted ErrorKind = "providers_exhausted"
)

// Error is the Err branch of the decide(prompt, schema) -> JsonObject | Err
// contract.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func badResponse(message string, cause error) *Error {
	return &Error{Kind: BadOracleResponse, Message: message, Cause: cause}
}

func exhausted(message string, cause error) *Error {
	return &Error{Kind: ProvidersExhausted, Message: message, Cause: cause}
}

// failoverReason categorizes a raw provider error for retry/rotation
// decisions, mirroring the classification the teacher's provider adapters
// perform ad hoc per-provider, collapsed here into one shared classifier
// every Provider implementation's wrapped errors are run through.
type failoverReason string

const (
	reasonRateLimit  failoverReason = "rate_limit"
	reasonAuth       failoverReason = "auth"
	reasonQuota      failoverReason = "quota"
	reasonServer     failoverReason = "server_error"
	reasonTimeout    failoverReason = "timeout"
	reasonUnknown    failoverReason = "unknown"
)

// retryableSameCredential reports whether the same credential should be
// retried with backoff (transient), as opposed to rotating to the next one.
func (r failoverReason) retryableSameCredential() bool {
	switch r {
	case reasonTimeout, reasonServer:
		return true
	default:
		return false
	}
}

// advancesRing reports whether this failure should advance the credential
// ring per spec.md's "on 429/auth/quota errors, advance and retry" rule.
func (r failoverReason) advancesRing() bool {
	switch r {
	case reasonRateLimit, reasonAuth, reasonQuota:
		return true
	default:
		return false
	}
}

func classifyError(err error) failoverReason {
	if err == nil {
		return reasonUnknown
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "rate_limit"),
		strings.Contains(msg, "too many requests"), strings.Contains(msg, "429"):
		return reasonRateLimit
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "invalid api key"),
		strings.Contains(msg, "invalid_api_key"), strings.Contains(msg, "authentication"),
		strings.Contains(msg, "401"), strings.Contains(msg, "403"):
		return reasonAuth
	case strings.Contains(msg, "quota"), strings.Contains(msg, "billing"),
		strings.Contains(msg, "insufficient"), strings.Contains(msg, "402"):
		return reasonQuota
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return reasonTimeout
	case strings.Contains(msg, "internal server"), strings.Contains(msg, "server error"),
		strings.Contains(msg, "500"), strings.Contains(msg, "502"),
		strings.Contains(msg, "503"), strings.Contains(msg, "504"):
		return reasonServer
	default:
		return reasonUnknown
	}
}

func classifyStatus(status int) failoverReason {
	switch {
	case status == http.StatusTooManyRequests:
		return reasonRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return reasonAuth
	case status == http.StatusPaymentRequired:
		return reasonQuota
	case status >= 500:
		return reasonServer
	default:
		return reasonUnknown
	}
}
