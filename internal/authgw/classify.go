package authgw

import "strings"

// FailureKind is a stable identifier for why an authentication call failed.
type FailureKind string

const (
	KindInvalidCredentials     FailureKind = "invalid_credentials"
	KindEmailNotVerified       FailureKind = "email_not_verified"
	KindEmailAlreadyRegistered FailureKind = "email_already_registered"
	KindRateLimited            FailureKind = "rate_limited"
	KindNetworkError           FailureKind = "network_error"
	KindServerError            FailureKind = "server_error"
	KindValidationError        FailureKind = "validation_error"
)

// classifyStatus maps a backend error response to a failure kind.
//
// The backend signals an unverified email as a 403 whose message contains
// "not verified". That convention is brittle but load-bearing; this function
// is the only place in the repository where the substring match occurs, so a
// future structured error code from the backend needs exactly one change here.
func classifyStatus(status int, message string) FailureKind {
	if status == 403 && containsNotVerified(message) {
		return KindEmailNotVerified
	}

	switch {
	case status == 401 || status == 403:
		return KindInvalidCredentials
	case status == 409:
		return KindEmailAlreadyRegistered
	case status == 429:
		return KindRateLimited
	case status == 400 || status == 422:
		return KindValidationError
	default:
		return KindServerError
	}
}

func containsNotVerified(message string) bool {
	return strings.Contains(strings.ToLower(message), "not verified")
}
