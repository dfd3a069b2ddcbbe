// ABOUTME: HTTP handlers for ceremony begin/complete, session introspection, and notes
// ABOUTME: Maps ceremony rejections to one uniform 400 response

package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/venlabs/passnote/internal/ceremony"
	"github.com/venlabs/passnote/internal/store"
)

// handleAuthenticate begins a ceremony for an email. The response tells the
// client whether to create a new passkey or assert an existing one.
func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("email is required"))
		return
	}

	sessionID, minted, err := ceremonySessionID(r)
	if err != nil {
		s.logger.Error("failed to mint ceremony session", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	opts, err := s.builder.Build(r.Context(), sessionID, req.Email)
	if err != nil {
		s.logger.Error("failed to build ceremony options", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	if minted {
		setCeremonyCookie(w, r, sessionID)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"create":      opts.Kind == ceremony.KindRegister,
		"authOptions": opts.PublicKeyOptions(),
	})
}

// verifyRequest is the completion payload: the claimed email plus the raw
// authenticator response produced by the browser.
type verifyRequest struct {
	Email    string          `json:"email"`
	Response json.RawMessage `json:"response"`
}

func parseVerifyRequest(r *http.Request) (*verifyRequest, bool) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, false
	}
	if req.Email == "" || len(req.Response) == 0 {
		return nil, false
	}
	return &req, true
}

// handleSignupVerify completes a registration ceremony.
func (s *Server) handleSignupVerify(w http.ResponseWriter, r *http.Request) {
	req, ok := parseVerifyRequest(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("email and response are required"))
		return
	}

	cookie, err := r.Cookie(CeremonyCookieName)
	if err != nil || cookie.Value == "" {
		writeJSON(w, http.StatusBadRequest, errorBody(rejectMessage))
		return
	}

	user, err := s.verifier.CompleteRegistration(r.Context(), cookie.Value, req.Email, bytes.NewReader(req.Response))
	s.finishCeremony(w, r, user, err, "registration")
}

// handleLoginVerify completes an authentication ceremony.
func (s *Server) handleLoginVerify(w http.ResponseWriter, r *http.Request) {
	req, ok := parseVerifyRequest(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("email and response are required"))
		return
	}

	cookie, err := r.Cookie(CeremonyCookieName)
	if err != nil || cookie.Value == "" {
		writeJSON(w, http.StatusBadRequest, errorBody(rejectMessage))
		return
	}

	user, err := s.verifier.CompleteAuthentication(r.Context(), cookie.Value, req.Email, bytes.NewReader(req.Response))
	s.finishCeremony(w, r, user, err, "login")
}

// finishCeremony issues the session token on success and maps failures to
// the uniform rejection response. The ceremony cookie is cleared either way:
// every completion attempt ends the ceremony.
func (s *Server) finishCeremony(w http.ResponseWriter, r *http.Request, user *store.User, verifyErr error, kind string) {
	clearCeremonyCookie(w)

	if verifyErr != nil {
		if ceremony.IsRejection(verifyErr) {
			s.logger.Info("ceremony rejected", "kind", kind, "error", verifyErr)
			writeJSON(w, http.StatusBadRequest, errorBody(rejectMessage))
			return
		}
		s.logger.Error("ceremony failed", "kind", kind, "error", verifyErr)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	token, err := s.issuer.Issue(user)
	if err != nil {
		s.logger.Error("failed to issue token", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	s.setTokenCookie(w, r, token)
	s.logger.Info("ceremony completed", "kind", kind, "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": token})
}

// handleUser returns the identity embedded in the session token.
func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    map[string]string{"id": identity.ID, "email": identity.Email},
	})
}

type noteResponse struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func toNoteResponse(n *store.Note) noteResponse {
	return noteResponse{ID: n.ID, Text: n.Text, CreatedAt: n.CreatedAt}
}

// handleNotesList returns the caller's notes.
func (s *Server) handleNotesList(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())

	notes, err := s.store.ListNotes(r.Context(), identity.ID)
	if err != nil {
		s.logger.Error("failed to list notes", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	out := make([]noteResponse, 0, len(notes))
	for _, n := range notes {
		out = append(out, toNoteResponse(n))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "notes": out})
}

// handleNoteCreate stores a new note for the caller.
func (s *Server) handleNoteCreate(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("text is required"))
		return
	}

	note := &store.Note{
		ID:        uuid.NewString(),
		UserID:    identity.ID,
		Text:      req.Text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateNote(r.Context(), note); err != nil {
		s.logger.Error("failed to create note", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "note": toNoteResponse(note)})
}

// handleNoteDelete removes one of the caller's notes. Notes owned by other
// users are indistinguishable from absent ones.
func (s *Server) handleNoteDelete(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())

	noteID := r.PathValue("id")
	if noteID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("note id is required"))
		return
	}

	if err := s.store.DeleteNote(r.Context(), identity.ID, noteID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		s.logger.Error("failed to delete note", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleHealthz reports liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
