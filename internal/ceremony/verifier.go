// ABOUTME: Completes register-or-login ceremonies against the bound challenge
// ABOUTME: Consume-first ordering defends against challenge replay and double submission

package ceremony

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/google/uuid"

	"github.com/venlabs/passnote/internal/challenge"
	"github.com/venlabs/passnote/internal/store"
)

// Verifier resolves a client's authenticator response against the session's
// pending challenge and the stored credentials.
type Verifier struct {
	rp     RelyingParty
	store  store.Store
	binder *challenge.Binder
	logger *slog.Logger
}

// NewVerifier creates a Verifier.
func NewVerifier(rp RelyingParty, st store.Store, binder *challenge.Binder) *Verifier {
	return &Verifier{
		rp:     rp,
		store:  st,
		binder: binder,
		logger: slog.Default().With("component", "ceremony"),
	}
}

// consumeBound removes the session's pending challenge and checks it was
// bound to the submitted email. The challenge is consumed before anything
// else happens, so a concurrent or retried completion on the same session
// can never observe a still-valid challenge.
func (v *Verifier) consumeBound(sessionID, email string) (*challenge.Pending, error) {
	pending, ok := v.binder.Consume(sessionID)
	if !ok {
		return nil, ErrChallengeMismatch
	}
	if pending.Email != email {
		v.logger.Warn("challenge bound to different email", "bound", pending.Email)
		return nil, ErrChallengeMismatch
	}
	return pending, nil
}

// CompleteRegistration verifies an attestation response and persists the new
// credential, creating the user on first registration. Re-submitting an
// already-registered credential for the same user succeeds without change.
func (v *Verifier) CompleteRegistration(ctx context.Context, sessionID, email string, response io.Reader) (*store.User, error) {
	pending, err := v.consumeBound(sessionID, email)
	if err != nil {
		return nil, err
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	// The adapter's handle must match the one the options were issued for.
	waUser := &ceremonyUser{handle: pending.Session.UserID, email: email}

	cred, err := v.rp.CreateCredential(waUser, *pending.Session, parsed)
	if err != nil {
		v.logger.Warn("registration verification failed", "email", email, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	user, err := v.ensureUser(ctx, email)
	if err != nil {
		return nil, err
	}

	credID := encodeCredentialID(cred.ID)
	_, err = v.store.GetCredential(ctx, user.ID, credID)
	switch {
	case err == nil:
		// Already bound to this user; idempotent success.
		v.logger.Info("credential already registered", "user_id", user.ID)
		return user, nil
	case errors.Is(err, store.ErrNotFound):
		// Fall through to insert.
	default:
		return nil, fmt.Errorf("checking existing credential: %w", err)
	}

	if err := v.store.CreateCredential(ctx, &store.Credential{
		ID:        credID,
		UserID:    user.ID,
		PublicKey: cred.PublicKey,
		SignCount: cred.Authenticator.SignCount,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("storing credential: %w", err)
	}

	v.logger.Info("passkey registered", "user_id", user.ID, "email", email)
	return user, nil
}

// ensureUser returns the user for the email, creating one if this is the
// first successful registration. A concurrent create is resolved by
// re-reading.
func (v *Verifier) ensureUser(ctx context.Context, email string) (*store.User, error) {
	user, err := v.store.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	user = &store.User{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	err = v.store.CreateUser(ctx, user)
	if errors.Is(err, store.ErrEmailExists) {
		return v.store.GetUserByEmail(ctx, email)
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

// CompleteAuthentication verifies an assertion response against a credential
// that must belong to the claimed email's user. A credential registered to a
// different user is rejected before any cryptographic verification happens.
func (v *Verifier) CompleteAuthentication(ctx context.Context, sessionID, email string, response io.Reader) (*store.User, error) {
	pending, err := v.consumeBound(sessionID, email)
	if err != nil {
		return nil, err
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	user, err := v.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnknownIdentity
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	credID := encodeCredentialID(parsed.RawID)
	if _, err := v.store.GetCredential(ctx, user.ID, credID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			v.logger.Warn("credential not registered for identity", "email", email)
			return nil, ErrCredentialNotRegistered
		}
		return nil, fmt.Errorf("looking up credential: %w", err)
	}

	creds, err := v.store.GetCredentials(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("looking up credentials: %w", err)
	}
	waUser := &ceremonyUser{handle: []byte(user.ID), email: email, creds: creds}

	validated, err := v.rp.ValidateLogin(waUser, *pending.Session, parsed)
	if err != nil {
		v.logger.Warn("authentication verification failed", "email", email, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	if err := v.store.UpdateCredentialSignCount(ctx, credID, validated.Authenticator.SignCount); err != nil {
		v.logger.Warn("failed to update sign count", "error", err)
	}

	v.logger.Info("passkey login successful", "user_id", user.ID, "email", email)
	return user, nil
}
