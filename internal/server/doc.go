// Package server exposes the passkey ceremony and notes API over HTTP.
//
// # Ceremony flow
//
// POST /authenticate begins a ceremony for an email. The server decides
// register-vs-authenticate from stored credentials, binds a fresh challenge
// to an opaque ceremony cookie, and returns browser-ready options with a
// create flag. POST /signup/verify and POST /login/verify complete the
// matching ceremony; success returns a session JWT in the body and as the
// token cookie.
//
// Every completion attempt consumes the pending challenge, so a rejected or
// malformed submission cannot be retried against the same challenge.
//
// # Rejection shape
//
// All ceremony rejections produce the same 400 response regardless of cause.
// Distinguishing an unknown email from a bad signature would let callers
// enumerate registered accounts.
//
// # Authenticated routes
//
// GET /user, GET/POST /notes, and DELETE /notes/{id} require a valid token
// cookie. Notes are scoped to the token's identity.
package server
