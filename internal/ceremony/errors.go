// ABOUTME: Typed error variants for ceremony rejection outcomes
// ABOUTME: Replaces stringly-typed failures with a closed set callers can branch on

package ceremony

import "errors"

// Ceremony errors. Handlers map these to HTTP responses; anything else
// coming out of the ceremony package is a storage or internal failure.
var (
	// ErrChallengeMismatch means the session has no pending challenge or the
	// pending challenge was bound to a different email. Either way the
	// challenge has already been consumed and the ceremony must restart.
	ErrChallengeMismatch = errors.New("no pending challenge for this ceremony")

	// ErrUnknownIdentity means authentication was attempted for an email
	// with no registered user.
	ErrUnknownIdentity = errors.New("unknown identity")

	// ErrCredentialNotRegistered means the presented credential does not
	// belong to the claimed identity, even if it exists elsewhere in the
	// store.
	ErrCredentialNotRegistered = errors.New("credential not registered for identity")

	// ErrInvalidResponse means the authenticator response body could not be
	// parsed.
	ErrInvalidResponse = errors.New("invalid authenticator response")

	// ErrVerificationFailed means the cryptographic verification of the
	// authenticator response was rejected.
	ErrVerificationFailed = errors.New("credential verification failed")
)

// IsRejection reports whether err is one of the typed ceremony rejections,
// as opposed to a storage or internal failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrChallengeMismatch) ||
		errors.Is(err, ErrUnknownIdentity) ||
		errors.Is(err, ErrCredentialNotRegistered) ||
		errors.Is(err, ErrInvalidResponse) ||
		errors.Is(err, ErrVerificationFailed)
}
