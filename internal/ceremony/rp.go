// ABOUTME: RelyingParty abstraction over the go-webauthn verification library
// ABOUTME: Satisfied by *webauthn.WebAuthn; faked in tests

package ceremony

import (
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// RelyingParty is the external cryptographic collaborator for ceremonies.
// It generates challenge-bearing options and verifies attestation and
// assertion responses. *webauthn.WebAuthn satisfies it directly.
type RelyingParty interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	BeginLogin(user webauthn.User, opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	ValidateLogin(user webauthn.User, session webauthn.SessionData, response *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error)
}

var _ RelyingParty = (*webauthn.WebAuthn)(nil)

// RPConfig describes the relying party identity credentials are scoped to.
type RPConfig struct {
	Name    string
	ID      string
	Origin  string
	Timeout time.Duration
}

// NewRelyingParty constructs the go-webauthn relying party from config.
func NewRelyingParty(cfg RPConfig) (*webauthn.WebAuthn, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	w, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.Name,
		RPID:          cfg.ID,
		RPOrigins:     []string{cfg.Origin},
		Timeouts: webauthn.TimeoutsConfig{
			Login: webauthn.TimeoutConfig{
				Enforce:    true,
				Timeout:    timeout,
				TimeoutUVD: timeout,
			},
			Registration: webauthn.TimeoutConfig{
				Enforce:    true,
				Timeout:    timeout,
				TimeoutUVD: timeout,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("configuring relying party: %w", err)
	}
	return w, nil
}
