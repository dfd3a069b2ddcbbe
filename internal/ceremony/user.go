// ABOUTME: webauthn.User adapter over store users and credentials
// ABOUTME: Bridges stored base64url credential IDs to the library's byte form

package ceremony

import (
	"encoding/base64"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/venlabs/passnote/internal/store"
)

// ceremonyUser implements webauthn.User for one ceremony. The handle is the
// stored user ID for authentication, or a fresh random handle when the user
// does not exist yet (registration bootstrap).
type ceremonyUser struct {
	handle []byte
	email  string
	creds  []*store.Credential
}

func (u *ceremonyUser) WebAuthnID() []byte {
	return u.handle
}

func (u *ceremonyUser) WebAuthnName() string {
	return u.email
}

func (u *ceremonyUser) WebAuthnDisplayName() string {
	return u.email
}

func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, 0, len(u.creds))
	for _, c := range u.creds {
		id, err := decodeCredentialID(c.ID)
		if err != nil {
			continue
		}
		creds = append(creds, webauthn.Credential{
			ID:        id,
			PublicKey: c.PublicKey,
			Transport: []protocol.AuthenticatorTransport{protocol.Internal},
			Authenticator: webauthn.Authenticator{
				SignCount: c.SignCount,
			},
		})
	}
	return creds
}

// encodeCredentialID converts a raw credential identifier to the base64url
// form it is stored and transmitted as.
func encodeCredentialID(id []byte) string {
	return base64.RawURLEncoding.EncodeToString(id)
}

func decodeCredentialID(id string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(id)
}

// credentialDescriptors converts stored credentials to the descriptor list
// used for exclusion (registration) and allow-lists (authentication).
func credentialDescriptors(creds []*store.Credential) []protocol.CredentialDescriptor {
	descriptors := make([]protocol.CredentialDescriptor, 0, len(creds))
	for _, c := range creds {
		id, err := decodeCredentialID(c.ID)
		if err != nil {
			continue
		}
		descriptors = append(descriptors, protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: protocol.URLEncodedBase64(id),
			Transport:    []protocol.AuthenticatorTransport{protocol.Internal},
		})
	}
	return descriptors
}
