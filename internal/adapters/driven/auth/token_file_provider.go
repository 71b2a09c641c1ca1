package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/ports/driven"
)

// Ensure TokenFileProvider implements the TokenProvider interface.
var _ driven.TokenProvider = (*TokenFileProvider)(nil)

// DriveReadonlyScope grants read access to file metadata and content.
const DriveReadonlyScope = "https://www.googleapis.com/auth/drive.readonly"

// GoogleEndpoint is Google's OAuth 2.0 endpoint.
var GoogleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// TokenFileConfig configures a TokenFileProvider.
type TokenFileConfig struct {
	// Path is the JSON token file. It holds an oauth2.Token.
	Path string

	ClientID     string
	ClientSecret string

	// Endpoint defaults to GoogleEndpoint.
	Endpoint oauth2.Endpoint

	// Scopes default to DriveReadonlyScope.
	Scopes []string

	// RedirectURL is used by the login flow. Defaults to the out-of-band loopback.
	RedirectURL string
}

// TokenFileProvider serves OAuth access tokens stored in a JSON file,
// refreshing them through the token endpoint and writing refreshed tokens back.
type TokenFileProvider struct {
	path   string
	config *oauth2.Config

	mu            sync.RWMutex
	cachedToken   *oauth2.Token
	refreshBuffer time.Duration
}

// NewTokenFileProvider creates a provider for the token file in cfg.
func NewTokenFileProvider(cfg TokenFileConfig) (*TokenFileProvider, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: token file path is required", domain.ErrInvalidInput)
	}
	if cfg.Endpoint.TokenURL == "" {
		cfg.Endpoint = GoogleEndpoint
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{DriveReadonlyScope}
	}
	if cfg.RedirectURL == "" {
		cfg.RedirectURL = "http://127.0.0.1"
	}

	return &TokenFileProvider{
		path: cfg.Path,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     cfg.Endpoint,
			Scopes:       cfg.Scopes,
			RedirectURL:  cfg.RedirectURL,
		},
		refreshBuffer: 5 * time.Minute,
	}, nil
}

// GetToken returns a valid access token, refreshing if necessary.
func (p *TokenFileProvider) GetToken(ctx context.Context) (string, error) {
	// Fast path: check cache with read lock
	p.mu.RLock()
	if p.fresh(p.cachedToken) {
		token := p.cachedToken.AccessToken
		p.mu.RUnlock()
		return token, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if p.fresh(p.cachedToken) {
		return p.cachedToken.AccessToken, nil
	}

	stored, err := p.readToken()
	if err != nil {
		return "", err
	}

	token := stored
	if !p.fresh(stored) {
		if stored.RefreshToken == "" {
			return "", fmt.Errorf("%w: token expired and no refresh token is stored", domain.ErrAuthRequired)
		}
		// Expire the copy so the token source refreshes inside the buffer too.
		expired := *stored
		expired.Expiry = time.Now().Add(-time.Second)
		token, err = p.config.TokenSource(ctx, &expired).Token()
		if err != nil {
			return "", fmt.Errorf("%w: refresh token: %w", domain.ErrAuthRequired, err)
		}
		if token.RefreshToken == "" {
			token.RefreshToken = stored.RefreshToken
		}
		if err := p.writeToken(token); err != nil {
			return "", fmt.Errorf("save refreshed token: %w", err)
		}
	}

	p.cachedToken = token
	return token.AccessToken, nil
}

// IsAuthenticated returns true if a usable token is stored.
func (p *TokenFileProvider) IsAuthenticated() bool {
	p.mu.RLock()
	if p.fresh(p.cachedToken) {
		p.mu.RUnlock()
		return true
	}
	p.mu.RUnlock()

	token, err := p.readToken()
	if err != nil {
		return false
	}
	return token.RefreshToken != "" || p.fresh(token)
}

// AuthCodeURL returns the consent page URL for the login flow.
// verifier is a PKCE verifier from oauth2.GenerateVerifier.
func (p *TokenFileProvider) AuthCodeURL(state, verifier string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades an authorization code for tokens and stores them.
func (p *TokenFileProvider) Exchange(ctx context.Context, code, verifier string) error {
	token, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.writeToken(token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	p.cachedToken = token
	return nil
}

// InvalidateCache clears the cached token.
func (p *TokenFileProvider) InvalidateCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cachedToken = nil
}

// Path returns the token file path.
func (p *TokenFileProvider) Path() string {
	return p.path
}

// fresh reports whether token can be used without a refresh.
// Tokens without an expiry never expire.
func (p *TokenFileProvider) fresh(token *oauth2.Token) bool {
	if token == nil || token.AccessToken == "" {
		return false
	}
	if token.Expiry.IsZero() {
		return true
	}
	return time.Until(token.Expiry) > p.refreshBuffer
}

func (p *TokenFileProvider) readToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: no token at %s, run 'changelens auth login'", domain.ErrAuthRequired, p.path)
		}
		return nil, fmt.Errorf("read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("%w: token file %s is not valid JSON: %w", domain.ErrAuthRequired, p.path, err)
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: token file %s holds no tokens", domain.ErrAuthRequired, p.path)
	}
	return &token, nil
}

// writeToken persists token atomically with restricted permissions.
func (p *TokenFileProvider) writeToken(token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0700); err != nil {
		return err
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, p.path)
}
