package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"

	"clipper/internal/fileutil"
	"clipper/internal/services"
)

// Scope is the OAuth scope clipper requests: read and write files.
const Scope = drive.DriveScope

// LoadOAuthConfig reads an installed-app client secret JSON.
func LoadOAuthConfig(clientSecretPath string) (*oauth2.Config, error) {
	data, err := os.ReadFile(clientSecretPath)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "drive", "read client secret", clientSecretPath, err)
	}
	cfg, err := google.ConfigFromJSON(data, Scope)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "drive", "parse client secret", clientSecretPath, err)
	}
	return cfg, nil
}

// LoadToken reads a token saved by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrConfiguration, "drive", "read token", "no Drive token; run clipper drive auth", err)
		}
		return nil, fmt.Errorf("read drive token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "drive", "parse token", path, err)
	}
	return &tok, nil
}

// SaveToken writes tok to path readable only by the owner.
func SaveToken(path string, tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("encode drive token: %w", err)
	}
	return fileutil.WriteFileAtomic(path, data, 0o600)
}

// AuthorizedClient returns an HTTP client that refreshes the stored token
// as needed and persists refreshed tokens.
func AuthorizedClient(ctx context.Context, clientSecretPath, tokenPath string) (*http.Client, error) {
	cfg, err := LoadOAuthConfig(clientSecretPath)
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(tokenPath)
	if err != nil {
		return nil, err
	}
	source := &savingTokenSource{
		base: cfg.TokenSource(ctx, tok),
		path: tokenPath,
		last: tok.AccessToken,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, source)), nil
}

type savingTokenSource struct {
	mu   sync.Mutex
	base oauth2.TokenSource
	path string
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		_ = SaveToken(s.path, tok)
	}
	return tok, nil
}

// AuthorizeLoopback runs the installed-app flow: it listens on a loopback
// port, hands the consent URL to prompt, and exchanges the returned code.
func AuthorizeLoopback(ctx context.Context, cfg *oauth2.Config, prompt func(url string)) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen for oauth callback: %w", err)
	}
	defer listener.Close()

	flow := *cfg
	flow.RedirectURL = fmt.Sprintf("http://%s/", listener.Addr().String())
	state := fmt.Sprintf("clipper-%d", os.Getpid())

	codes := make(chan string, 1)
	failures := make(chan error, 1)
	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		if msg := query.Get("error"); msg != "" {
			http.Error(w, "authorization failed", http.StatusBadRequest)
			select {
			case failures <- fmt.Errorf("authorization denied: %s", msg):
			default:
			}
			return
		}
		_, _ = fmt.Fprintln(w, "clipper is authorized. You can close this tab.")
		select {
		case codes <- query.Get("code"):
		default:
		}
	})}
	go func() { _ = server.Serve(listener) }()
	defer server.Close()

	prompt(flow.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))

	select {
	case code := <-codes:
		tok, err := flow.Exchange(ctx, code)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "drive", "exchange code", "", err)
		}
		return tok, nil
	case err := <-failures:
		return nil, services.Wrap(services.ErrConfiguration, "drive", "authorize", "", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
