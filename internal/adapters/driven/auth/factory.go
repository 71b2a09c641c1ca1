// Package auth provides TokenProvider implementations for storage sources.
package auth

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/core/ports/driven"
)

// DefaultTokenFile is the token file name inside the changelens directory.
const DefaultTokenFile = "token.json"

// NewTokenProvider creates the TokenProvider for a configured source.
// Sources that need no authentication get a NullTokenProvider.
func NewTokenProvider(source domain.SourceSettings, auth domain.AuthSettings) (driven.TokenProvider, error) {
	if !source.Type.RequiresAuth() {
		return NewNullTokenProvider(), nil
	}
	return NewTokenFileProviderFromSettings(auth)
}

// NewTokenFileProviderFromSettings builds a TokenFileProvider from auth
// settings. An empty token file defaults to ~/.changelens/token.json.
func NewTokenFileProviderFromSettings(auth domain.AuthSettings) (*TokenFileProvider, error) {
	path := auth.TokenFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		path = filepath.Join(home, ".changelens", DefaultTokenFile)
	}

	return NewTokenFileProvider(TokenFileConfig{
		Path:         path,
		ClientID:     auth.ClientID,
		ClientSecret: auth.ClientSecret,
	})
}
