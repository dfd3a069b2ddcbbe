// ABOUTME: Tests for ceremony completion
// ABOUTME: Covers replay defense, email binding, credential cross-matching, and idempotent re-registration

package ceremony

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/descope/virtualwebauthn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venlabs/passnote/internal/store"
)

func TestCompleteRegistration_CreatesUserAndCredential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	opts, err := f.builder.Build(ctx, "sess-1", "a@x.com")
	require.NoError(t, err)
	require.Equal(t, KindRegister, opts.Kind)

	user, err := f.verifier().CompleteRegistration(ctx, "sess-1", "a@x.com", f.attestFor(t, opts, auth, cred))
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", user.Email)
	assert.NotEmpty(t, user.ID)

	stored, err := f.store.GetUserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)

	creds, err := f.store.GetCredentials(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, creds, 1)
}

func TestCompleteRegistration_NoPendingChallenge(t *testing.T) {
	f := newFixture(t)

	_, err := f.verifier().CompleteRegistration(context.Background(), "sess-1", "a@x.com", strings.NewReader("{}"))
	assert.ErrorIs(t, err, ErrChallengeMismatch)
}

func TestCompleteRegistration_ChallengeBoundToDifferentEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	// Challenge was issued for a@x.com; completion claims b@x.com with a
	// response that would otherwise verify.
	opts, err := f.builder.Build(ctx, "sess-1", "a@x.com")
	require.NoError(t, err)

	_, err = f.verifier().CompleteRegistration(ctx, "sess-1", "b@x.com", f.attestFor(t, opts, auth, cred))
	assert.ErrorIs(t, err, ErrChallengeMismatch)

	// The challenge was consumed by the failed attempt; retrying with the
	// correct email must also fail.
	_, err = f.verifier().CompleteRegistration(ctx, "sess-1", "a@x.com", f.attestFor(t, opts, auth, cred))
	assert.ErrorIs(t, err, ErrChallengeMismatch)
}

func TestCompleteRegistration_ChallengeIsSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	opts, err := f.builder.Build(ctx, "sess-1", "a@x.com")
	require.NoError(t, err)

	_, err = f.verifier().CompleteRegistration(ctx, "sess-1", "a@x.com", f.attestFor(t, opts, auth, cred))
	require.NoError(t, err)

	// Replaying the same valid response must fail: the challenge is gone.
	_, err = f.verifier().CompleteRegistration(ctx, "sess-1", "a@x.com", f.attestFor(t, opts, auth, cred))
	assert.ErrorIs(t, err, ErrChallengeMismatch)
}

func TestCompleteRegistration_MalformedResponseConsumesChallenge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.builder.Build(ctx, "sess-1", "a@x.com")
	require.NoError(t, err)

	_, err = f.verifier().CompleteRegistration(ctx, "sess-1", "a@x.com", strings.NewReader("not json"))
	assert.ErrorIs(t, err, ErrInvalidResponse)

	_, ok := f.binder.Consume("sess-1")
	assert.False(t, ok, "failed completion must still consume the challenge")
}

func TestCompleteRegistration_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	user := f.registerUser(t, "sess-1", "a@x.com", auth, cred)

	// A fresh ceremony re-submitting the same authenticator credential.
	// Build would pick authentication now, so drive registration directly.
	waUser := &ceremonyUser{handle: []byte(user.ID), email: "a@x.com"}
	creation, session, err := f.rp.BeginRegistration(waUser)
	require.NoError(t, err)
	f.binder.Bind("sess-2", "a@x.com", session)

	opts := &Options{Kind: KindRegister, Creation: creation}
	again, err := f.verifier().CompleteRegistration(ctx, "sess-2", "a@x.com", f.attestFor(t, opts, auth, cred))
	require.NoError(t, err, "re-registering an already-bound authenticator must succeed")
	assert.Equal(t, user.ID, again.ID)

	creds, err := f.store.GetCredentials(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, creds, 1, "no duplicate credential row")
}

func TestCompleteRegistration_StorageFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	opts, err := f.builder.Build(ctx, "sess-1", "a@x.com")
	require.NoError(t, err)

	f.store.FailNext = errors.New("disk full")
	_, err = f.verifier().CompleteRegistration(ctx, "sess-1", "a@x.com", f.attestFor(t, opts, auth, cred))
	require.Error(t, err)
	assert.False(t, IsRejection(err), "storage failures are not ceremony rejections")
}

func TestCompleteAuthentication_Succeeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	user := f.registerUser(t, "sess-reg", "a@x.com", auth, cred)

	opts, err := f.builder.Build(ctx, "sess-login", "a@x.com")
	require.NoError(t, err)
	require.Equal(t, KindAuthenticate, opts.Kind)

	loggedIn, err := f.verifier().CompleteAuthentication(ctx, "sess-login", "a@x.com", f.assertFor(t, opts, auth, cred))
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
}

func TestCompleteAuthentication_UnknownIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	f.registerUser(t, "sess-reg", "a@x.com", auth, cred)

	// Bind a login challenge for an email that has no user. Build would
	// choose registration for it, so bind directly.
	opts, err := f.builder.Build(ctx, "sess-login", "a@x.com")
	require.NoError(t, err)
	pending, ok := f.binder.Consume("sess-login")
	require.True(t, ok)
	f.binder.Bind("sess-login", "ghost@x.com", pending.Session)

	_, err = f.verifier().CompleteAuthentication(ctx, "sess-login", "ghost@x.com", f.assertFor(t, opts, auth, cred))
	assert.ErrorIs(t, err, ErrUnknownIdentity)
}

func TestCompleteAuthentication_CredentialBelongsToOtherIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Two users, each with their own passkey.
	authA := virtualwebauthn.NewAuthenticator()
	credA := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	f.registerUser(t, "sess-a", "a@x.com", authA, credA)

	authB := virtualwebauthn.NewAuthenticator()
	credB := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	f.registerUser(t, "sess-b", "b@x.com", authB, credB)

	// Login ceremony claims a@x.com but answers with b's credential, which
	// is cryptographically valid for its true owner.
	opts, err := f.builder.Build(ctx, "sess-login", "a@x.com")
	require.NoError(t, err)

	_, err = f.verifier().CompleteAuthentication(ctx, "sess-login", "a@x.com", f.assertFor(t, opts, authB, credB))
	assert.ErrorIs(t, err, ErrCredentialNotRegistered)
}

func TestCompleteAuthentication_TamperedSignature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	f.registerUser(t, "sess-reg", "a@x.com", auth, cred)

	opts, err := f.builder.Build(ctx, "sess-login", "a@x.com")
	require.NoError(t, err)

	// Flip bits in the assertion signature before submitting it.
	raw, err := io.ReadAll(f.assertFor(t, opts, auth, cred))
	require.NoError(t, err)

	var response map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &response))
	var inner map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(response["response"], &inner))

	var sig string
	require.NoError(t, json.Unmarshal(inner["signature"], &sig))
	require.NotEmpty(t, sig)
	flipped := "A"
	if strings.HasPrefix(sig, "A") {
		flipped = "B"
	}
	sigJSON, err := json.Marshal(flipped + sig[1:])
	require.NoError(t, err)
	inner["signature"] = sigJSON
	innerJSON, err := json.Marshal(inner)
	require.NoError(t, err)
	response["response"] = innerJSON
	tampered, err := json.Marshal(response)
	require.NoError(t, err)

	_, err = f.verifier().CompleteAuthentication(ctx, "sess-login", "a@x.com", bytes.NewReader(tampered))
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestCompleteAuthentication_NoPendingChallenge(t *testing.T) {
	f := newFixture(t)

	_, err := f.verifier().CompleteAuthentication(context.Background(), "sess-1", "a@x.com", strings.NewReader("{}"))
	assert.ErrorIs(t, err, ErrChallengeMismatch)
}

func TestCompleteAuthentication_UpdatesSignCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auth := virtualwebauthn.NewAuthenticator()
	cred := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	user := f.registerUser(t, "sess-reg", "a@x.com", auth, cred)

	cred.Counter++

	opts, err := f.builder.Build(ctx, "sess-login", "a@x.com")
	require.NoError(t, err)

	_, err = f.verifier().CompleteAuthentication(ctx, "sess-login", "a@x.com", f.assertFor(t, opts, auth, cred))
	require.NoError(t, err)

	creds, err := f.store.GetCredentials(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, uint32(cred.Counter), creds[0].SignCount)
}

func TestIsRejection(t *testing.T) {
	assert.True(t, IsRejection(ErrChallengeMismatch))
	assert.True(t, IsRejection(ErrUnknownIdentity))
	assert.True(t, IsRejection(ErrCredentialNotRegistered))
	assert.True(t, IsRejection(ErrInvalidResponse))
	assert.True(t, IsRejection(ErrVerificationFailed))
	assert.False(t, IsRejection(errors.New("disk full")))
	assert.False(t, IsRejection(store.ErrNotFound))
}
