// ABOUTME: Shared test fixtures for ceremony tests
// ABOUTME: Wires a real relying party, a virtual authenticator, and in-memory stores

package ceremony

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/descope/virtualwebauthn"
	"github.com/stretchr/testify/require"

	"github.com/venlabs/passnote/internal/challenge"
	"github.com/venlabs/passnote/internal/store"
)

const (
	testRPName   = "passnote"
	testRPID     = "example.com"
	testRPOrigin = "https://example.com"
)

// ceremonyFixture bundles everything one ceremony test needs.
type ceremonyFixture struct {
	rp      RelyingParty
	store   *store.MockStore
	binder  *challenge.Binder
	builder *OptionsBuilder
	vrp     virtualwebauthn.RelyingParty
}

func newFixture(t *testing.T) *ceremonyFixture {
	t.Helper()

	rp, err := NewRelyingParty(RPConfig{
		Name:    testRPName,
		ID:      testRPID,
		Origin:  testRPOrigin,
		Timeout: time.Minute,
	})
	require.NoError(t, err)

	st := store.NewMockStore()
	binder := challenge.NewBinder(0)
	t.Cleanup(binder.Close)

	return &ceremonyFixture{
		rp:      rp,
		store:   st,
		binder:  binder,
		builder: NewOptionsBuilder(rp, st, binder),
		vrp: virtualwebauthn.RelyingParty{
			Name:   testRPName,
			ID:     testRPID,
			Origin: testRPOrigin,
		},
	}
}

func (f *ceremonyFixture) verifier() *Verifier {
	return NewVerifier(f.rp, f.store, f.binder)
}

// attestFor simulates the browser answering registration options with the
// given virtual authenticator and credential.
func (f *ceremonyFixture) attestFor(t *testing.T, opts *Options, auth virtualwebauthn.Authenticator, cred virtualwebauthn.Credential) io.Reader {
	t.Helper()
	require.Equal(t, KindRegister, opts.Kind)

	optionsJSON, err := json.Marshal(opts.Creation.Response)
	require.NoError(t, err)

	parsed, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	require.NoError(t, err)

	return strings.NewReader(virtualwebauthn.CreateAttestationResponse(f.vrp, auth, cred, *parsed))
}

// assertFor simulates the browser answering authentication options.
func (f *ceremonyFixture) assertFor(t *testing.T, opts *Options, auth virtualwebauthn.Authenticator, cred virtualwebauthn.Credential) io.Reader {
	t.Helper()
	require.Equal(t, KindAuthenticate, opts.Kind)

	optionsJSON, err := json.Marshal(opts.Assertion.Response)
	require.NoError(t, err)

	parsed, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	require.NoError(t, err)

	return strings.NewReader(virtualwebauthn.CreateAssertionResponse(f.vrp, auth, cred, *parsed))
}

// registerUser runs a complete registration ceremony and returns the user.
func (f *ceremonyFixture) registerUser(t *testing.T, sessionID, email string, auth virtualwebauthn.Authenticator, cred virtualwebauthn.Credential) *store.User {
	t.Helper()
	ctx := context.Background()

	opts, err := f.builder.Build(ctx, sessionID, email)
	require.NoError(t, err)

	user, err := f.verifier().CompleteRegistration(ctx, sessionID, email, f.attestFor(t, opts, auth, cred))
	require.NoError(t, err)
	return user
}
