// ABOUTME: HTTP server wiring for the passkey ceremony and notes API
// ABOUTME: Owns routing, cookies, and the JSON response envelope

package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/venlabs/passnote/internal/ceremony"
	"github.com/venlabs/passnote/internal/session"
	"github.com/venlabs/passnote/internal/store"
)

const (
	// CeremonyCookieName identifies an in-progress ceremony. Its value is an
	// opaque random token that keys the pending challenge.
	CeremonyCookieName = "passnote_ceremony"

	// TokenCookieName carries the session JWT after a successful ceremony.
	TokenCookieName = "token"
)

// rejectMessage is the single message returned for every ceremony rejection.
// Challenge mismatches, unknown emails, foreign credentials, and signature
// failures are indistinguishable to the caller, so responses cannot be used
// to probe which emails are registered.
const rejectMessage = "could not verify passkey"

// Server is the HTTP surface over the ceremony and notes machinery.
type Server struct {
	store    store.Store
	builder  *ceremony.OptionsBuilder
	verifier *ceremony.Verifier
	issuer   *session.Issuer
	mux      *http.ServeMux
	logger   *slog.Logger
}

// New creates a Server and registers its routes.
func New(st store.Store, builder *ceremony.OptionsBuilder, verifier *ceremony.Verifier, issuer *session.Issuer) *Server {
	s := &Server{
		store:    st,
		builder:  builder,
		verifier: verifier,
		issuer:   issuer,
		mux:      http.NewServeMux(),
		logger:   slog.Default().With("component", "server"),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	// Ceremony routes (no auth)
	s.mux.HandleFunc("POST /authenticate", s.handleAuthenticate)
	s.mux.HandleFunc("POST /signup/verify", s.handleSignupVerify)
	s.mux.HandleFunc("POST /login/verify", s.handleLoginVerify)

	// Protected routes (token cookie required)
	s.mux.HandleFunc("GET /user", s.requireAuth(s.handleUser))
	s.mux.HandleFunc("GET /notes", s.requireAuth(s.handleNotesList))
	s.mux.HandleFunc("POST /notes", s.requireAuth(s.handleNoteCreate))
	s.mux.HandleFunc("DELETE /notes/{id}", s.requireAuth(s.handleNoteDelete))

	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

type identityContextKey struct{}

// requireAuth wraps a handler to require a valid token cookie.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(TokenCookieName)
		if err != nil || cookie.Value == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody("not authenticated"))
			return
		}

		identity, err := s.issuer.Validate(cookie.Value)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody("not authenticated"))
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
		next(w, r.WithContext(ctx))
	}
}

// identityFromContext retrieves the authenticated identity set by requireAuth.
func identityFromContext(ctx context.Context) *session.Identity {
	identity, _ := ctx.Value(identityContextKey{}).(*session.Identity)
	return identity
}

// ceremonySessionID returns the ceremony cookie value, minting a fresh token
// when the request carries none. The bool reports whether a new cookie must
// be set on the response.
func ceremonySessionID(r *http.Request) (string, bool, error) {
	if cookie, err := r.Cookie(CeremonyCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, false, nil
	}
	token, err := generateSecureToken(32)
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

func setCeremonyCookie(w http.ResponseWriter, r *http.Request, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CeremonyCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearCeremonyCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CeremonyCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func (s *Server) setTokenCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(s.issuer.TTL()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// generateSecureToken generates a cryptographically secure random token
func generateSecureToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorBody(message string) map[string]any {
	return map[string]any{"success": false, "message": message}
}
