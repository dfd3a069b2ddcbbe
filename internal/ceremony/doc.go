// Package ceremony orchestrates the register-or-login passkey ceremony.
//
// A ceremony is one round trip: the OptionsBuilder decides registration or
// authentication for an email, issues public-key options with a fresh
// challenge, and binds the challenge to the caller's session; the Verifier
// consumes that challenge and resolves the authenticator response into a
// verified user or a typed rejection.
//
// # Security invariants
//
//   - Challenges are single-use. The Verifier consumes the pending
//     challenge before doing any other work, so retried or concurrent
//     completions on the same session cannot reuse it.
//   - A challenge is bound to the email it was issued for. Completing with
//     a different email fails closed with ErrChallengeMismatch.
//   - A presented credential must belong to the claimed identity. A
//     credential registered to another user is rejected with
//     ErrCredentialNotRegistered before cryptographic verification runs.
//   - Re-registering a credential already bound to the same user is an
//     idempotent success.
//
// The cryptographic verification itself is delegated to the go-webauthn
// library behind the RelyingParty interface.
package ceremony
