// ABOUTME: In-memory binding of pending WebAuthn challenges to browser sessions
// ABOUTME: Enforces single-use consumption with TTL expiry and background cleanup

package challenge

import (
	"context"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// DefaultTTL is how long a pending challenge stays valid. A ceremony that
// takes longer than this must start over.
const DefaultTTL = 5 * time.Minute

// Pending is a challenge bound to one browser session for the duration of a
// single ceremony. It carries the library session data (challenge value and
// user handle) plus the email the ceremony was started for.
type Pending struct {
	Session   *webauthn.SessionData
	Email     string
	CreatedAt time.Time
}

type pendingEntry struct {
	pending   *Pending
	expiresAt time.Time
}

// Binder holds at most one pending challenge per session. Binding a new
// challenge overwrites any previous one, and Consume removes the challenge
// atomically so it can never be used twice.
type Binder struct {
	mu      sync.Mutex
	pending map[string]*pendingEntry // keyed by session ID
	ttl     time.Duration
	cancel  context.CancelFunc
}

// NewBinder creates a Binder with the given challenge TTL. A TTL of zero
// uses DefaultTTL. A cleanup goroutine removes expired entries until Close
// is called.
func NewBinder(ttl time.Duration) *Binder {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Binder{
		pending: make(map[string]*pendingEntry),
		ttl:     ttl,
		cancel:  cancel,
	}
	go b.cleanupLoop(ctx)
	return b
}

// Close stops the cleanup goroutine.
func (b *Binder) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}

// Bind stores a pending challenge for the session, replacing any prior one.
// A session has at most one pending challenge at any time.
func (b *Binder) Bind(sessionID, email string, session *webauthn.SessionData) {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[sessionID] = &pendingEntry{
		pending: &Pending{
			Session:   session,
			Email:     email,
			CreatedAt: now,
		},
		expiresAt: now.Add(b.ttl),
	}
}

// Consume removes and returns the session's pending challenge in one atomic
// step. After Consume returns, the session has no pending challenge whether
// or not the ceremony goes on to succeed. An expired or absent challenge
// yields (nil, false); callers must treat that as an abandoned ceremony.
func (b *Binder) Consume(sessionID string) (*Pending, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.pending[sessionID]
	if !ok {
		return nil, false
	}
	delete(b.pending, sessionID)

	if time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.pending, true
}

func (b *Binder) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.mu.Lock()
			now := time.Now()
			for k, v := range b.pending {
				if now.After(v.expiresAt) {
					delete(b.pending, k)
				}
			}
			b.mu.Unlock()
		}
	}
}
