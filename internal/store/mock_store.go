// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu          sync.RWMutex
	users       map[string]*User       // keyed by user ID
	usersByMail map[string]string      // keyed by email -> user ID
	credentials map[string]*Credential // keyed by "userID:credentialID"
	notes       map[string]*Note       // keyed by note ID

	// FailNext, when set, makes the next mutating call return this error.
	FailNext error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:       make(map[string]*User),
		usersByMail: make(map[string]string),
		credentials: make(map[string]*Credential),
		notes:       make(map[string]*Note),
	}
}

func (m *MockStore) takeFailure() error {
	err := m.FailNext
	m.FailNext = nil
	return err
}

// CreateUser stores a new user.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return err
	}
	if _, ok := m.usersByMail[user.Email]; ok {
		return ErrEmailExists
	}

	u := *user
	m.users[u.ID] = &u
	m.usersByMail[u.Email] = u.ID
	return nil
}

// GetUser retrieves a user by ID.
func (m *MockStore) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u := *user
	return &u, nil
}

// GetUserByEmail retrieves a user by email.
func (m *MockStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.usersByMail[email]
	if !ok {
		return nil, ErrNotFound
	}
	u := *m.users[id]
	return &u, nil
}

// CreateCredential stores a new credential. Duplicate inserts for the same
// (user, credential) pair are a no-op, matching the SQLite behavior.
func (m *MockStore) CreateCredential(ctx context.Context, cred *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return err
	}

	key := cred.UserID + ":" + cred.ID
	if _, ok := m.credentials[key]; ok {
		return nil
	}
	c := *cred
	m.credentials[key] = &c
	return nil
}

// GetCredentials retrieves all credentials for a user, oldest first.
func (m *MockStore) GetCredentials(ctx context.Context, userID string) ([]*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var creds []*Credential
	for _, cred := range m.credentials {
		if cred.UserID == userID {
			c := *cred
			creds = append(creds, &c)
		}
	}
	sort.Slice(creds, func(i, j int) bool {
		return creds[i].CreatedAt.Before(creds[j].CreatedAt)
	})
	return creds, nil
}

// GetCredential retrieves a credential by user and credential ID.
func (m *MockStore) GetCredential(ctx context.Context, userID, credentialID string) (*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cred, ok := m.credentials[userID+":"+credentialID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *cred
	return &c, nil
}

// UpdateCredentialSignCount updates the signature counter.
func (m *MockStore) UpdateCredentialSignCount(ctx context.Context, credentialID string, signCount uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, cred := range m.credentials {
		if cred.ID == credentialID {
			cred.SignCount = signCount
			return nil
		}
	}
	return ErrNotFound
}

// CreateNote stores a new note.
func (m *MockStore) CreateNote(ctx context.Context, note *Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return err
	}
	n := *note
	m.notes[n.ID] = &n
	return nil
}

// ListNotes retrieves all notes for a user, oldest first.
func (m *MockStore) ListNotes(ctx context.Context, userID string) ([]*Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var notes []*Note
	for _, note := range m.notes {
		if note.UserID == userID {
			n := *note
			notes = append(notes, &n)
		}
	}
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].CreatedAt.Before(notes[j].CreatedAt)
	})
	return notes, nil
}

// DeleteNote removes a note owned by the given user.
func (m *MockStore) DeleteNote(ctx context.Context, userID, noteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	note, ok := m.notes[noteID]
	if !ok || note.UserID != userID {
		return ErrNotFound
	}
	delete(m.notes, noteID)
	return nil
}

// Close is a no-op for the mock.
func (m *MockStore) Close() error {
	return nil
}

// Ensure MockStore implements Store.
var _ Store = (*MockStore)(nil)
