package drive

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/custodia-labs/changelens/internal/connectors/google"
)

// Config holds Google Drive lister configuration.
type Config struct {
	// PageSize is the page size for files.list requests.
	PageSize int64
	// MaxDownloadSize caps the bytes read per file. Larger files get a placeholder.
	MaxDownloadSize int64
	// RateLimit throttles API calls.
	RateLimit google.RateLimitConfig
	// MaxRetries is how often a throttled call is retried.
	MaxRetries int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PageSize:        100,
		MaxDownloadSize: MaxExportSize,
		RateLimit:       google.DefaultDriveRateLimit,
		MaxRetries:      3,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.PageSize <= 0 {
		c.PageSize = def.PageSize
	}
	if c.MaxDownloadSize <= 0 {
		c.MaxDownloadSize = def.MaxDownloadSize
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		c.RateLimit = def.RateLimit
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}

var (
	folderPathID = regexp.MustCompile(`/folders/([A-Za-z0-9_-]+)`)
	validID      = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// ParseFolderID accepts a bare folder ID or a Drive folder URL such as
// https://drive.google.com/drive/folders/<id> or ...?id=<id>.
// Returns "" when no ID can be found.
func ParseFolderID(location string) string {
	location = strings.TrimSpace(location)
	if validID.MatchString(location) {
		return location
	}

	u, err := url.Parse(location)
	if err != nil || u.Host == "" {
		return ""
	}
	if m := folderPathID.FindStringSubmatch(u.Path); m != nil {
		return m[1]
	}
	if id := u.Query().Get("id"); validID.MatchString(id) {
		return id
	}
	return ""
}
