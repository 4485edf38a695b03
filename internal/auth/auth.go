// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package auth implements the browser login flow against the identity
// provider and exposes the signed-in user's token and remote file list.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"

	"github.com/pdiddy/texmark/pkg/types"
)

// CookieName is the session cookie set by the login route.
const CookieName = "texmark_session"

// DefaultScopes are requested when the configuration names none.
var DefaultScopes = []string{drive.DriveReadonlyScope}

// ErrInsecureRedirect reports a plain-http redirect URL while insecure
// transport is disabled.
var ErrInsecureRedirect = errors.New("redirect URL must use https unless insecure transport is enabled")

// FileLister lists remote files with an authorised HTTP client.
type FileLister interface {
	ListFiles(ctx context.Context, client *http.Client) ([]types.DriveFile, error)
}

// Service serves the /auth routes.
type Service struct {
	oauth       *oauth2.Config
	frontendURL string
	insecure    bool
	sessions    *SessionStore
	files       FileLister
	log         zerolog.Logger
}

// NewService builds the service from an OAuth client secret JSON document
// as downloaded from the provider console.
func NewService(cfg types.AuthConfig, clientSecret []byte, sessions *SessionStore, files FileLister, log zerolog.Logger) (*Service, error) {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	oc, err := google.ConfigFromJSON(clientSecret, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing client secret: %w", err)
	}
	if cfg.RedirectURL != "" {
		oc.RedirectURL = cfg.RedirectURL
	}

	u, err := url.Parse(oc.RedirectURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid redirect URL %q", oc.RedirectURL)
	}
	if u.Scheme != "https" && !cfg.InsecureTransport {
		return nil, fmt.Errorf("%q: %w", oc.RedirectURL, ErrInsecureRedirect)
	}

	frontend := cfg.FrontendURL
	if frontend == "" {
		frontend = "/"
	}

	return &Service{
		oauth:       oc,
		frontendURL: frontend,
		insecure:    cfg.InsecureTransport,
		sessions:    sessions,
		files:       files,
		log:         log.With().Str("component", "auth").Logger(),
	}, nil
}

// LoadService reads the client secret file named in cfg and calls
// NewService.
func LoadService(cfg types.AuthConfig, sessions *SessionStore, files FileLister, log zerolog.Logger) (*Service, error) {
	data, err := os.ReadFile(cfg.ClientSecretFile)
	if err != nil {
		return nil, fmt.Errorf("reading client secret: %w", err)
	}
	return NewService(cfg, data, sessions, files, log)
}

// Routes returns the router mounted at /auth.
func (s *Service) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/login", s.Login)
	r.Get("/callback", s.Callback)
	r.Get("/me", s.Me)
	r.Get("/files", s.Files)
	r.Post("/logout", s.Logout)
	return r
}

// Login starts the authorization-code flow: it records a fresh state in the
// caller's session and redirects to the provider's consent page.
func (s *Service) Login(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(r)
	if !ok {
		sess = s.sessions.Create()
	}
	sess.State = uuid.NewString()
	s.sessions.Save(sess)
	s.setCookie(w, sess.ID)

	authURL := s.oauth.AuthCodeURL(sess.State,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// Callback completes the flow: it checks the state, exchanges the code for
// a token, stores the token in the session, and redirects to the frontend.
func (s *Service) Callback(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(r)
	if !ok || sess.State == "" {
		writeError(w, http.StatusBadRequest, "No login in progress")
		return
	}

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		writeError(w, http.StatusBadRequest, "Authorization denied: "+e)
		return
	}
	if q.Get("state") != sess.State {
		writeError(w, http.StatusBadRequest, "State mismatch")
		return
	}
	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "Missing authorization code")
		return
	}

	tok, err := s.oauth.Exchange(r.Context(), code)
	if err != nil {
		s.log.Warn().Err(err).Msg("token exchange failed")
		writeError(w, http.StatusBadGateway, "Token exchange failed")
		return
	}

	sess.State = ""
	sess.Token = tok
	s.sessions.Save(sess)

	s.log.Info().Str("session", sess.ID).Msg("signed in")
	http.Redirect(w, r, s.frontendURL, http.StatusTemporaryRedirect)
}

// Me returns the signed-in user's access token.
func (s *Service) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.authenticated(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": sess.Token.AccessToken})
}

// Files lists the signed-in user's non-trashed remote files. A token
// refreshed during the listing is kept in the session.
func (s *Service) Files(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.authenticated(w, r)
	if !ok {
		return
	}

	ts := s.oauth.TokenSource(r.Context(), sess.Token)
	files, err := s.files.ListFiles(r.Context(), oauth2.NewClient(r.Context(), ts))
	if err != nil {
		s.log.Warn().Err(err).Msg("listing files failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	if tok, err := ts.Token(); err == nil && tok.AccessToken != sess.Token.AccessToken {
		sess.Token = tok
		s.sessions.Save(sess)
	}

	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

// Logout forgets the caller's session and expires the cookie. It succeeds
// whether or not a session exists.
func (s *Service) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(CookieName); err == nil {
		s.sessions.Delete(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !s.insecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) session(r *http.Request) (Session, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return Session{}, false
	}
	return s.sessions.Get(c.Value)
}

func (s *Service) authenticated(w http.ResponseWriter, r *http.Request) (Session, bool) {
	sess, ok := s.session(r)
	if !ok || sess.Token == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return Session{}, false
	}
	return sess, true
}

func (s *Service) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   !s.insecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
