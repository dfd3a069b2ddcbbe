// ABOUTME: Decides register-vs-authenticate for an email and produces ceremony options
// ABOUTME: Binds the freshly generated challenge to the session before returning

package ceremony

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/venlabs/passnote/internal/challenge"
	"github.com/venlabs/passnote/internal/store"
)

// Kind tells the client which browser API call the options are for.
type Kind string

const (
	KindRegister     Kind = "register"
	KindAuthenticate Kind = "authenticate"
)

// Options is the outcome of beginning a ceremony: either creation options
// (registration) or assertion options (authentication), never both.
type Options struct {
	Kind      Kind
	Creation  *protocol.CredentialCreation
	Assertion *protocol.CredentialAssertion
}

// PublicKeyOptions returns the bare publicKey options object the browser
// consumes, independent of kind.
func (o *Options) PublicKeyOptions() any {
	if o.Kind == KindRegister {
		return o.Creation.Response
	}
	return o.Assertion.Response
}

// OptionsBuilder decides whether an email should register a new passkey or
// authenticate with an existing one, and produces the matching options.
type OptionsBuilder struct {
	rp     RelyingParty
	store  store.Store
	binder *challenge.Binder
	logger *slog.Logger
}

// NewOptionsBuilder creates an OptionsBuilder.
func NewOptionsBuilder(rp RelyingParty, st store.Store, binder *challenge.Binder) *OptionsBuilder {
	return &OptionsBuilder{
		rp:     rp,
		store:  st,
		binder: binder,
		logger: slog.Default().With("component", "ceremony"),
	}
}

// Build produces ceremony options for the given email. An email with no
// stored credentials, including one never seen before, gets registration
// options; an email with at least one credential gets authentication
// options. The generated challenge is bound to the session before Build
// returns, replacing any prior pending challenge.
func (b *OptionsBuilder) Build(ctx context.Context, sessionID, email string) (*Options, error) {
	user, err := b.store.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	var creds []*store.Credential
	if user != nil {
		creds, err = b.store.GetCredentials(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("looking up credentials: %w", err)
		}
	}

	// No user or a user with zero credentials both mean registration; the
	// user record itself is only created on verified completion.
	if user == nil || len(creds) == 0 {
		return b.buildRegistration(sessionID, email, creds)
	}
	return b.buildAuthentication(sessionID, email, user, creds)
}

func (b *OptionsBuilder) buildRegistration(sessionID, email string, creds []*store.Credential) (*Options, error) {
	handle := make([]byte, 32)
	if _, err := rand.Read(handle); err != nil {
		return nil, fmt.Errorf("generating user handle: %w", err)
	}

	waUser := &ceremonyUser{handle: handle, email: email, creds: creds}

	creation, session, err := b.rp.BeginRegistration(waUser,
		webauthn.WithExclusions(credentialDescriptors(creds)),
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			UserVerification:        protocol.VerificationRequired,
		}),
		webauthn.WithConveyancePreference(protocol.PreferNoAttestation),
		webauthn.WithCredentialParameters([]protocol.CredentialParameter{
			{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgES256},
			{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgRS256},
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("beginning registration: %w", err)
	}

	b.binder.Bind(sessionID, email, session)
	b.logger.Debug("registration options issued", "email", email, "excluded", len(creds))

	return &Options{Kind: KindRegister, Creation: creation}, nil
}

func (b *OptionsBuilder) buildAuthentication(sessionID, email string, user *store.User, creds []*store.Credential) (*Options, error) {
	waUser := &ceremonyUser{handle: []byte(user.ID), email: email, creds: creds}

	assertion, session, err := b.rp.BeginLogin(waUser,
		webauthn.WithUserVerification(protocol.VerificationRequired),
	)
	if err != nil {
		return nil, fmt.Errorf("beginning login: %w", err)
	}

	b.binder.Bind(sessionID, email, session)
	b.logger.Debug("authentication options issued", "email", email, "allowed", len(creds))

	return &Options{Kind: KindAuthenticate, Assertion: assertion}, nil
}
