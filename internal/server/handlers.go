package server

import (
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/Tyrowin/relaychat/internal/apperr"
	"github.com/Tyrowin/relaychat/internal/identity"
	"github.com/Tyrowin/relaychat/internal/ids"
	"github.com/Tyrowin/relaychat/internal/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	sessionKeyHeader = "X-Session-Key"
	sessionKeyParam  = "sessionKey"

	maxBodyBytes = 1 << 16
)

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, "relaychat server is running!")
}

// RegisterHandler handles POST /register.
func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	s.authenticate(w, r, s.store.Register)
}

// LoginHandler handles POST /login. A successful login invalidates the
// user's previous session and closes its connection.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	s.authenticate(w, r, s.store.Authenticate)
}

type authFunc func(username, password string) (identity.UserSummary, session.Record, error)

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, fn authFunc) {
	var req credentialsRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, r, invalidInput(err, "Username and password are required."))
		return
	}

	user, rec, err := fn(req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, authResponse{
		Message:           "Authentication successful",
		SessionCredential: rec.Credential.String(),
		UserID:            user.ID.String(),
		Username:          user.Username,
	})
}

// AddContactHandler handles POST /contacts.
func (s *Server) AddContactHandler(w http.ResponseWriter, r *http.Request) {
	rec, err := s.resolveSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req addContactRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, r, invalidInput(err, "contactUsername cannot be empty"))
		return
	}

	if err := s.store.AddContact(rec.Username, req.ContactUsername); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ListContactsHandler handles GET /contacts.
func (s *Server) ListContactsHandler(w http.ResponseWriter, r *http.Request) {
	rec, err := s.resolveSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	contacts, err := s.store.ListContacts(rec.Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if contacts == nil {
		contacts = []contactResponse{}
	}
	s.writeJSON(w, http.StatusOK, contacts)
}

// WebSocketHandler authenticates the request, upgrades it and hands the
// socket to the hub. An unknown credential is refused before the upgrade.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	rec, err := s.resolveSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		s.log.Warn("websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	if err := s.hub.Serve(conn, rec, r.RemoteAddr); err != nil {
		s.log.Info("websocket refused after upgrade",
			zap.String("username", rec.Username),
			zap.Error(err))
	}
}

// resolveSession reads the credential from the X-Session-Key header or, for
// browser WebSockets that cannot set headers, the sessionKey query parameter.
func (s *Server) resolveSession(r *http.Request) (session.Record, error) {
	raw := r.Header.Get(sessionKeyHeader)
	if raw == "" {
		raw = r.URL.Query().Get(sessionKeyParam)
	}
	if raw == "" {
		return session.Record{}, errors.Wrap(apperr.ErrUnauthorized, "missing session key")
	}

	cred, err := ids.ParseCredential(raw)
	if err != nil {
		return session.Record{}, errors.Mark(err, apperr.ErrUnauthorized)
	}
	return s.dir.Resolve(cred)
}

// invalidInput turns a validation failure into a caller-facing error. Missing
// fields report required; oversized ones name the field.
func invalidInput(err error, required string) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			if fe.Tag() == "max" {
				return apperr.Public(apperr.ErrInvalidInput, fe.Field()+" is too long.")
			}
		}
	}
	return apperr.Public(apperr.ErrInvalidInput, required)
}

func (s *Server) decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(err, "read request body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperr.Public(apperr.ErrInvalidInput, "Invalid request body.")
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.log.Error("encoding response failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		s.log.Debug("request rejected",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
	s.writeJSON(w, status, errorResponse{Message: apperr.PublicMessage(err)})
}
