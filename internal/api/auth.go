package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/signage-core/internal/audit"
	"github.com/nerrad567/signage-core/internal/auth"
	"github.com/nerrad567/signage-core/internal/signage"
)

// displaySessionRequest is the body of POST /auth/display.
type displaySessionRequest struct {
	ClientID string `json:"client_id"`
}

// handleDisplaySession exchanges a display's client identifier for a
// session token used to open the websocket.
func (s *Server) handleDisplaySession(w http.ResponseWriter, r *http.Request) {
	var req displaySessionRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" {
		writeBadRequest(w, "client_id is required")
		return
	}

	d, err := s.service.GetDisplayByClientID(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, signage.ErrNotFound) {
			writeUnauthorized(w, "unknown client identifier")
			return
		}
		s.writeServiceError(w, r, err)
		return
	}

	session, err := auth.IssueDisplayToken(d, s.secCfg.JWT.Secret, s.sessionTTL())
	switch {
	case errors.Is(err, auth.ErrDisplayInactive):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "display is inactive")
		return
	case err != nil:
		s.logger.Error("issuing display session failed", "display_id", d.ID, "error", err)
		writeInternalError(w, "failed to issue session")
		return
	}

	s.auditLog(audit.ActionSession, audit.EntityDisplay, d.ID, d.ID, nil)
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) sessionTTL() time.Duration {
	return time.Duration(s.secCfg.JWT.SessionTTL) * time.Minute
}

// authenticateDisplay validates a session token and returns the active
// display it was issued to.
func (s *Server) authenticateDisplay(r *http.Request, token string) (*signage.Display, error) {
	claims, err := auth.ParseDisplayToken(token, s.secCfg.JWT.Secret)
	if err != nil {
		return nil, err
	}
	d, err := s.service.GetDisplay(r.Context(), claims.DisplayID())
	if err != nil {
		return nil, err
	}
	if !d.Active {
		return nil, auth.ErrDisplayInactive
	}
	return d, nil
}
