package docgate

import (
	"errors"
	"net/http"
)

// Code is the stable machine-readable error identifier sent to clients.
type Code string

const (
	CodeUnauthenticated     Code = "UNAUTHENTICATED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeInsufficientCredits Code = "INSUFFICIENT_CREDITS"
	CodeRateLimited         Code = "RATE_LIMITED"
	CodeInvalidArgument     Code = "INVALID_ARGUMENT"
	CodeNotFound            Code = "NOT_FOUND"
	CodeConflict            Code = "CONFLICT"
	CodeUpstream            Code = "UPSTREAM_FAILURE"
	CodeUnavailable         Code = "UNAVAILABLE"
	CodeInternal            Code = "INTERNAL"
)

type mapping struct {
	err     error
	status  int
	code    Code
	message string
}

// Authentication messages stay generic so callers cannot tell which check failed,
// except for the states a user can act on (unverified, locked).
var mappings = []mapping{
	{ErrNoToken, http.StatusUnauthorized, CodeUnauthenticated, "No token, authorization denied"},
	{ErrTokenInvalid, http.StatusUnauthorized, CodeUnauthenticated, "Token is not valid"},
	{ErrSessionInvalid, http.StatusUnauthorized, CodeUnauthenticated, "Session expired or invalid"},
	{ErrUnauthorized, http.StatusUnauthorized, CodeUnauthenticated, "Token is not valid"},
	{ErrUserNotFound, http.StatusUnauthorized, CodeUnauthenticated, "Token is not valid"},
	{ErrAccountUnverified, http.StatusUnauthorized, CodeUnauthenticated, "Please verify your email first"},
	{ErrAccountLocked, http.StatusUnauthorized, CodeUnauthenticated, "Account is temporarily locked"},
	{ErrInvalidCredentials, http.StatusUnauthorized, CodeUnauthenticated, "Invalid credentials"},
	{ErrTwoFactorInvalid, http.StatusUnauthorized, CodeUnauthenticated, "Invalid two-factor code"},
	{ErrTwoFactorChallengeInvalid, http.StatusUnauthorized, CodeUnauthenticated, "Login challenge expired"},

	{ErrForbidden, http.StatusForbidden, CodeForbidden, "Access denied"},
	{ErrIPBlocked, http.StatusForbidden, CodeForbidden, "Your IP has been temporarily blocked"},
	{ErrSuspiciousActivity, http.StatusForbidden, CodeForbidden, "Access denied due to suspicious activity"},
	{ErrInsufficientCredits, http.StatusForbidden, CodeInsufficientCredits, "Insufficient credits"},

	{ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited, "Too many requests, please try again later"},
	{ErrBurstLimited, http.StatusTooManyRequests, CodeRateLimited, "Too many requests, your IP has been temporarily blocked"},

	{ErrInvalidInput, http.StatusBadRequest, CodeInvalidArgument, "Invalid request"},
	{ErrPasswordPolicy, http.StatusBadRequest, CodeInvalidArgument, "Password does not meet requirements"},
	{ErrVerificationInvalid, http.StatusBadRequest, CodeInvalidArgument, "Invalid or expired verification token"},
	{ErrResetInvalid, http.StatusBadRequest, CodeInvalidArgument, "Invalid or expired reset token"},
	{ErrTwoFactorNotConfigured, http.StatusBadRequest, CodeInvalidArgument, "Two-factor authentication is not set up"},
	{ErrUnsupportedDocument, http.StatusBadRequest, CodeInvalidArgument, "Unsupported document type"},
	{ErrDocumentTooLarge, http.StatusRequestEntityTooLarge, CodeInvalidArgument, "Document too large"},

	{ErrCreditRequestNotFound, http.StatusNotFound, CodeNotFound, "Credit request not found"},
	{ErrNotFound, http.StatusNotFound, CodeNotFound, "Not found"},

	{ErrAccountExists, http.StatusConflict, CodeConflict, "Email already registered"},
	{ErrCreditRequestProcessed, http.StatusConflict, CodeConflict, "Request has already been processed"},
	{ErrTwoFactorAlreadyEnabled, http.StatusConflict, CodeConflict, "Two-factor authentication is already enabled"},

	{ErrAnalysisFailed, http.StatusBadGateway, CodeUpstream, "Document analysis failed"},
	{ErrAnalyzerUnavailable, http.StatusServiceUnavailable, CodeUnavailable, "Document analysis is unavailable"},
	{ErrMailUnavailable, http.StatusServiceUnavailable, CodeUnavailable, "Email delivery is unavailable"},
}

// StatusCode maps err to its HTTP status. Unknown errors are 500.
func StatusCode(err error) int {
	status, _, _ := Classify(err)
	return status
}

// Classify returns the HTTP status, error code and client-safe message for err.
func Classify(err error) (int, Code, string) {
	if err == nil {
		return http.StatusOK, "", ""
	}
	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return m.status, m.code, m.message
		}
	}
	return http.StatusInternalServerError, CodeInternal, "Server error"
}
