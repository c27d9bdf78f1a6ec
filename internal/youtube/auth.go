package youtube

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	yt "google.golang.org/api/youtube/v3"

	"postcast/internal/logging"
	"postcast/internal/services"
)

// preferredRedirectAddr is the loopback callback the OAuth consent screen
// redirects to. When the port is taken the flow falls back to a random one;
// Google accepts any loopback port for installed apps.
const preferredRedirectAddr = "localhost:8080"

// oauthScopes covers metadata updates, thumbnail uploads and caption tracks.
var oauthScopes = []string{yt.YoutubeForceSslScope, yt.YoutubeUploadScope}

// Authenticator manages the installed-app OAuth2 credentials: the client
// secret downloaded from the Google Cloud console and the token cached on
// disk after the one-time browser authorization.
type Authenticator struct {
	credentialsFile string
	tokenFile       string
	logger          *slog.Logger
}

// NewAuthenticator creates an authenticator over the given credential paths.
func NewAuthenticator(credentialsFile, tokenFile string, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		credentialsFile: credentialsFile,
		tokenFile:       tokenFile,
		logger:          logging.NewComponentLogger(logger, "auth"),
	}
}

// HasToken reports whether a stored authorization exists.
func (a *Authenticator) HasToken() bool {
	_, err := a.loadToken()
	return err == nil
}

// Client returns an HTTP client that attaches and silently refreshes the
// stored token. Refreshed tokens are re-persisted so the next run does not
// repeat the refresh.
func (a *Authenticator) Client(ctx context.Context) (*http.Client, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	token, err := a.loadToken()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "youtube", "load token",
			"no stored authorization, run 'postcast auth' first", err)
	}

	source := oauth2.ReuseTokenSource(token, &savingTokenSource{
		src:  cfg.TokenSource(ctx, token),
		auth: a,
		last: token,
	})
	return oauth2.NewClient(ctx, source), nil
}

// Authorize runs the one-time installed-app flow: it opens a loopback
// callback listener, hands the consent URL to announce (the CLI prints it),
// waits for the redirect, exchanges the code and stores the token.
func (a *Authenticator) Authorize(ctx context.Context, announce func(authURL string)) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", preferredRedirectAddr)
	if err != nil {
		listener, err = net.Listen("tcp", "localhost:0")
		if err != nil {
			return fmt.Errorf("open oauth callback listener: %w", err)
		}
		a.logger.Info("preferred oauth port taken, using a random one",
			logging.String("address", listener.Addr().String()))
	}
	defer listener.Close()
	cfg.RedirectURL = fmt.Sprintf("http://%s/", listener.Addr().String())

	state, err := randomState()
	if err != nil {
		return err
	}

	type callback struct {
		code string
		err  error
	}
	results := make(chan callback, 1)
	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		switch {
		case query.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			results <- callback{err: errors.New("oauth state mismatch")}
		case query.Get("error") != "":
			http.Error(w, "authorization denied", http.StatusBadRequest)
			results <- callback{err: fmt.Errorf("authorization denied: %s", query.Get("error"))}
		default:
			fmt.Fprintln(w, "Autenticación exitosa. Puedes cerrar esta ventana.")
			results <- callback{code: query.Get("code")}
		}
	})}
	go server.Serve(listener)
	defer server.Close()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	if announce != nil {
		announce(authURL)
	}
	a.logger.Info("waiting for oauth authorization",
		logging.String("redirect", cfg.RedirectURL))

	var result callback
	select {
	case <-ctx.Done():
		return ctx.Err()
	case result = <-results:
	}
	if result.err != nil {
		return result.err
	}
	if result.code == "" {
		return errors.New("authorization response carried no code")
	}

	token, err := cfg.Exchange(ctx, result.code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	if err := a.saveToken(token); err != nil {
		return err
	}
	a.logger.Info("authorization stored", logging.String("token_file", a.tokenFile))
	return nil
}

func (a *Authenticator) config() (*oauth2.Config, error) {
	raw, err := os.ReadFile(a.credentialsFile)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "youtube", "load credentials",
			"download the OAuth client secret from the Google Cloud console", err)
	}
	cfg, err := google.ConfigFromJSON(raw, oauthScopes...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "youtube", "parse credentials", "", err)
	}
	return cfg, nil
}

func (a *Authenticator) loadToken() (*oauth2.Token, error) {
	raw, err := os.ReadFile(a.tokenFile)
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return nil, errors.New("token file has no credentials")
	}
	return &token, nil
}

func (a *Authenticator) saveToken(token *oauth2.Token) error {
	raw, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if dir := filepath.Dir(a.tokenFile); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create token directory: %w", err)
		}
	}
	// The token grants channel write access; keep it owner-only.
	if err := os.WriteFile(a.tokenFile, append(raw, '\n'), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// savingTokenSource persists tokens whenever the underlying source rotates
// them, so silent refreshes survive process restarts.
type savingTokenSource struct {
	src  oauth2.TokenSource
	auth *Authenticator
	last *oauth2.Token
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.last == nil || token.AccessToken != s.last.AccessToken {
		s.last = token
		if err := s.auth.saveToken(token); err != nil {
			s.auth.logger.Warn("could not persist refreshed token", logging.Error(err))
		}
	}
	return token, nil
}
