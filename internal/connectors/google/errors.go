package google

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/changelens/internal/core/domain"
)

// Common Google API errors. Each wraps the matching domain error so the
// core can branch on it without knowing about Google.
var (
	// ErrUnauthorized indicates invalid or expired credentials.
	ErrUnauthorized = fmt.Errorf("google: unauthorised: %w", domain.ErrAuthExpired)

	// ErrForbidden indicates insufficient permissions.
	ErrForbidden = fmt.Errorf("google: forbidden: %w", domain.ErrAuthInvalid)

	// ErrNotFound indicates the requested file or folder does not exist.
	ErrNotFound = fmt.Errorf("google: resource not found: %w", domain.ErrNotFound)

	// ErrRateLimited indicates the API rate limit or quota was exceeded.
	ErrRateLimited = fmt.Errorf("google: rate limit exceeded: %w", domain.ErrRateLimited)

	// ErrGone indicates a resource or page token is no longer valid (410 GONE).
	ErrGone = errors.New("google: resource gone")
)

// rateLimitReasons are the 403 reasons Drive uses for throttling.
var rateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"quotaExceeded":         true,
}

// IsUnauthorized returns true if the error indicates invalid credentials.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) || apiCode(err) == http.StatusUnauthorized
}

// IsForbidden returns true if the error indicates insufficient permissions.
// Throttling reported as 403 is not a permission problem.
func IsForbidden(err error) bool {
	if errors.Is(err, ErrForbidden) {
		return true
	}
	return apiCode(err) == http.StatusForbidden && !IsRateLimited(err)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || apiCode(err) == http.StatusNotFound
}

// IsRateLimited returns true if the error indicates rate limiting, either as
// 429 or as a 403 carrying a rate limit reason.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.Code == http.StatusTooManyRequests {
		return true
	}
	if gerr.Code != http.StatusForbidden {
		return false
	}
	for _, item := range gerr.Errors {
		if rateLimitReasons[item.Reason] {
			return true
		}
	}
	return false
}

// WrapError converts a Google API error to the matching sentinel, keeping
// the API message.
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}

	var sentinel error
	switch {
	case IsRateLimited(err):
		sentinel = ErrRateLimited
	case gerr.Code == http.StatusUnauthorized:
		sentinel = ErrUnauthorized
	case gerr.Code == http.StatusForbidden:
		sentinel = ErrForbidden
	case gerr.Code == http.StatusNotFound:
		sentinel = ErrNotFound
	case gerr.Code == http.StatusGone:
		sentinel = ErrGone
	default:
		return err
	}
	if gerr.Message == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, gerr.Message)
}

func apiCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}
