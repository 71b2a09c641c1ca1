package filesystem

import (
	"net/url"
	"path/filepath"
)

// ResolveURL converts a listed file's external ID to a file:// URL.
func ResolveURL(externalID string) string {
	if externalID == "" {
		return ""
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(externalID)}
	return u.String()
}
