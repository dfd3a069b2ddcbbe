// ABOUTME: Integration tests for the SQLite store
// ABOUTME: Covers user, credential, and note persistence including idempotent inserts

package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func testUser(email string) *User {
	return &User{
		ID:        "user-" + email,
		Email:     email,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestStore_CreateUser(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	user := testUser("a@x.com")
	require.NoError(t, store.CreateUser(ctx, user))

	retrieved, err := store.GetUserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, retrieved.ID)
	assert.Equal(t, "a@x.com", retrieved.Email)

	byID, err := store.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", byID.Email)
}

func TestStore_CreateUser_DuplicateEmail(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, testUser("a@x.com")))

	dup := testUser("a@x.com")
	dup.ID = "user-other"
	err := store.CreateUser(ctx, dup)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestStore_GetUser_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetUserByEmail(ctx, "missing@x.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CreateCredential(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	user := testUser("a@x.com")
	require.NoError(t, store.CreateUser(ctx, user))

	cred := &Credential{
		ID:        "cred-1",
		UserID:    user.ID,
		PublicKey: []byte{0x01, 0x02, 0x03},
		SignCount: 0,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.CreateCredential(ctx, cred))

	retrieved, err := store.GetCredential(ctx, user.ID, "cred-1")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, retrieved.PublicKey)
}

func TestStore_CreateCredential_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	user := testUser("a@x.com")
	require.NoError(t, store.CreateUser(ctx, user))

	cred := &Credential{
		ID:        "cred-1",
		UserID:    user.ID,
		PublicKey: []byte{0x01},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.CreateCredential(ctx, cred))

	// Re-inserting the same credential must not error or duplicate
	require.NoError(t, store.CreateCredential(ctx, cred))

	creds, err := store.GetCredentials(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, creds, 1)
}

func TestStore_GetCredential_WrongUser(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	owner := testUser("owner@x.com")
	other := testUser("other@x.com")
	require.NoError(t, store.CreateUser(ctx, owner))
	require.NoError(t, store.CreateUser(ctx, other))

	cred := &Credential{
		ID:        "cred-1",
		UserID:    owner.ID,
		PublicKey: []byte{0x01},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.CreateCredential(ctx, cred))

	// The credential exists, but not for this user
	_, err := store.GetCredential(ctx, other.ID, "cred-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetCredentials_Ordering(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	user := testUser("a@x.com")
	require.NoError(t, store.CreateUser(ctx, user))

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		cred := &Credential{
			ID:        fmt.Sprintf("cred-%d", i),
			UserID:    user.ID,
			PublicKey: []byte{byte(i)},
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.CreateCredential(ctx, cred))
	}

	creds, err := store.GetCredentials(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, creds, 3)
	assert.Equal(t, "cred-0", creds[0].ID)
	assert.Equal(t, "cred-2", creds[2].ID)
}

func TestStore_UpdateCredentialSignCount(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	user := testUser("a@x.com")
	require.NoError(t, store.CreateUser(ctx, user))
	require.NoError(t, store.CreateCredential(ctx, &Credential{
		ID:        "cred-1",
		UserID:    user.ID,
		PublicKey: []byte{0x01},
		CreatedAt: time.Now().UTC(),
	}))

	require.NoError(t, store.UpdateCredentialSignCount(ctx, "cred-1", 7))

	cred, err := store.GetCredential(ctx, user.ID, "cred-1")
	require.NoError(t, err)
	assert.Equal(t, uint32(7), cred.SignCount)

	err = store.UpdateCredentialSignCount(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Notes(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	user := testUser("a@x.com")
	require.NoError(t, store.CreateUser(ctx, user))

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 2; i++ {
		note := &Note{
			ID:        fmt.Sprintf("note-%d", i),
			UserID:    user.ID,
			Text:      fmt.Sprintf("note text %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.CreateNote(ctx, note))
	}

	notes, err := store.ListNotes(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "note text 0", notes[0].Text)

	require.NoError(t, store.DeleteNote(ctx, user.ID, "note-0"))

	notes, err = store.ListNotes(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestStore_DeleteNote_WrongUser(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	owner := testUser("owner@x.com")
	other := testUser("other@x.com")
	require.NoError(t, store.CreateUser(ctx, owner))
	require.NoError(t, store.CreateUser(ctx, other))

	require.NoError(t, store.CreateNote(ctx, &Note{
		ID:        "note-1",
		UserID:    owner.ID,
		Text:      "private",
		CreatedAt: time.Now().UTC(),
	}))

	err := store.DeleteNote(ctx, other.ID, "note-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Still there for the owner
	notes, err := store.ListNotes(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}
