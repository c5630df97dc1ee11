package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/semmidev/dailybackup/internal/adapter/remote"
	"github.com/semmidev/dailybackup/internal/infrastructure/logger"
)

// DriveAuthServer walks an operator through the Google consent screen and
// prints the refresh token to paste into a gdrive remote's credential.
type DriveAuthServer struct {
	config *oauth2.Config
	logger *logger.Logger
	server *http.Server
	state  string
}

func NewDriveAuthServer(log *logger.Logger, clientSecretPath, state string) (*DriveAuthServer, error) {
	if log == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if clientSecretPath == "" {
		return nil, errors.New("client secret path cannot be empty")
	}

	cfg, err := remote.OAuthConfig(clientSecretPath)
	if err != nil {
		return nil, err
	}

	return &DriveAuthServer{config: cfg, logger: log, state: state}, nil
}

func (s *DriveAuthServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /auth/google/drive", func(w http.ResponseWriter, r *http.Request) {
		authURL := s.config.AuthCodeURL(s.state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
		http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
	})

	mux.HandleFunc("GET /auth/google/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != s.state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code parameter", http.StatusBadRequest)
			return
		}

		token, err := s.config.Exchange(r.Context(), code)
		if err != nil {
			s.logger.Errorf("OAuth token exchange failed: %v", err)
			http.Error(w, "token exchange failed", http.StatusBadGateway)
			return
		}

		if token.RefreshToken == "" {
			fmt.Fprintln(w, "No refresh token returned. Revoke app access and re-authorize.")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"refresh_token": token.RefreshToken,
			"hint":          "store this value as the remote credential of the gdrive target",
		})
	})

	return mux
}

// Start serves the handler in the background.
func (s *DriveAuthServer) Start(addr string) {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Infof("Google Drive OAuth server listening on %s, open /auth/google/drive", addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("OAuth server error: %v", err)
		}
	}()
}

func (s *DriveAuthServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown OAuth server: %w", err)
	}
	s.logger.Infof("OAuth server stopped")
	return nil
}
