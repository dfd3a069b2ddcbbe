// ABOUTME: Store interface and data types for passnote persistence
// ABOUTME: Defines User, Credential, Note structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when trying to create a user with an existing email
var ErrEmailExists = errors.New("email already exists")

// User represents a registered identity. A user is created on the first
// successful passkey registration and is never mutated afterwards.
type User struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// Credential represents one registered passkey for a user. The ID is the
// base64url-encoded credential identifier assigned by the authenticator,
// unique within the store. Many credentials may belong to one user.
type Credential struct {
	ID        string
	UserID    string
	PublicKey []byte
	SignCount uint32
	CreatedAt time.Time
}

// Note is a free-text note owned by a user.
type Note struct {
	ID        string
	UserID    string
	Text      string
	CreatedAt time.Time
}

// Store defines the interface for user, credential, and note persistence.
// Lookups return ErrNotFound when no row matches.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// Credentials
	CreateCredential(ctx context.Context, cred *Credential) error
	GetCredentials(ctx context.Context, userID string) ([]*Credential, error)
	GetCredential(ctx context.Context, userID, credentialID string) (*Credential, error)
	UpdateCredentialSignCount(ctx context.Context, credentialID string, signCount uint32) error

	// Notes
	CreateNote(ctx context.Context, note *Note) error
	ListNotes(ctx context.Context, userID string) ([]*Note, error)
	DeleteNote(ctx context.Context, userID, noteID string) error

	Close() error
}
