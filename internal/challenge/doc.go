// Package challenge binds single-use WebAuthn challenges to browser
// sessions for the lifetime of one register-or-login ceremony.
//
// Each session holds at most one pending challenge. Starting a new ceremony
// overwrites the previous challenge, and completing a ceremony consumes it
// atomically, so a challenge can never be replayed or double-spent by
// concurrent completion attempts.
package challenge
