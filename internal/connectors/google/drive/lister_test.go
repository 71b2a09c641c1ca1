package drive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/custodia-labs/changelens/internal/connectors/google"
	"github.com/custodia-labs/changelens/internal/core/domain"
	"github.com/custodia-labs/changelens/internal/normalisers"
)

var parentQuery = regexp.MustCompile(`'([^']+)' in parents`)

// fakeDrive serves the subset of the Drive v3 API the lister uses.
type fakeDrive struct {
	t *testing.T

	mu        sync.Mutex
	children  map[string][]*drive.File
	downloads map[string]string
	exports   map[string]string
	throttle  int
	status    int
	listCalls int
	queries   []string
}

func newFakeDrive(t *testing.T) *fakeDrive {
	return &fakeDrive{
		t:         t,
		children:  make(map[string][]*drive.File),
		downloads: make(map[string]string),
		exports:   make(map[string]string),
	}
}

func (f *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	switch {
	case path == "files":
		f.list(w, r)
	case strings.HasSuffix(path, "/export"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "files/"), "/export")
		assert.Equal(f.t, exportFormats[f.mimeOf(id)], r.URL.Query().Get("mimeType"))
		f.media(w, f.exports, id)
	case strings.HasPrefix(path, "files/"):
		assert.Equal(f.t, "media", r.URL.Query().Get("alt"))
		f.media(w, f.downloads, strings.TrimPrefix(path, "files/"))
	default:
		writeAPIError(w, http.StatusNotFound, "notFound")
	}
}

func (f *fakeDrive) list(w http.ResponseWriter, r *http.Request) {
	f.listCalls++
	if f.status != 0 {
		writeAPIError(w, f.status, http.StatusText(f.status))
		return
	}
	if f.throttle > 0 {
		f.throttle--
		w.Header().Set("Retry-After", "1")
		writeAPIError(w, http.StatusTooManyRequests, "rateLimitExceeded")
		return
	}

	q := r.URL.Query()
	f.queries = append(f.queries, q.Get("q"))
	assert.Contains(f.t, q.Get("q"), "trashed = false")
	assert.Contains(f.t, q.Get("fields"), "md5Checksum")

	m := parentQuery.FindStringSubmatch(q.Get("q"))
	require.NotNil(f.t, m)
	children, ok := f.children[m[1]]
	if !ok {
		writeAPIError(w, http.StatusNotFound, "notFound")
		return
	}

	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	offset, _ := strconv.Atoi(q.Get("pageToken"))
	end := min(offset+pageSize, len(children))

	page := &drive.FileList{Files: children[offset:end]}
	if end < len(children) {
		page.NextPageToken = strconv.Itoa(end)
	}
	w.Header().Set("Content-Type", "application/json")
	assert.NoError(f.t, json.NewEncoder(w).Encode(page))
}

func (f *fakeDrive) media(w http.ResponseWriter, bodies map[string]string, id string) {
	body, ok := bodies[id]
	if !ok {
		writeAPIError(w, http.StatusNotFound, "notFound")
		return
	}
	_, _ = w.Write([]byte(body))
}

func (f *fakeDrive) mimeOf(id string) string {
	for _, files := range f.children {
		for _, file := range files {
			if file.Id == id {
				return file.MimeType
			}
		}
	}
	return ""
}

func writeAPIError(w http.ResponseWriter, code int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"error":{"code":` + strconv.Itoa(code) +
		`,"message":"` + reason + `","errors":[{"reason":"` + reason + `"}]}}`))
}

func newTestLister(t *testing.T, fake *fakeDrive, cfg Config) *Lister {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	svc, err := drive.NewService(context.Background(),
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)

	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit = google.RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 100}
	}
	return NewLister(svc, normalisers.NewDefaultRegistry(), cfg)
}

func TestLister_ListFiles_FlattensFolders(t *testing.T) {
	fake := newFakeDrive(t)
	fake.children["root-folder"] = []*drive.File{
		{Id: "doc-1", Name: "Leave Policy", MimeType: MimeTypeGoogleDoc, ModifiedTime: "2025-03-01T10:00:00.000Z"},
		{Id: "sub-1", Name: "Procedures", MimeType: MimeTypeFolder},
		{Id: "pdf-1", Name: "Handbook.pdf", MimeType: "application/pdf", Md5Checksum: "ABC123", Size: 2048,
			ModifiedTime: "2025-02-01T09:30:00Z"},
	}
	fake.children["sub-1"] = []*drive.File{
		{Id: "txt-1", Name: "sop.txt", MimeType: "text/plain", Md5Checksum: "def456"},
		{Id: "sub-2", Name: "Archive", MimeType: MimeTypeFolder},
		// A shortcut loop back to the root must not be walked twice.
		{Id: "root-folder", Name: "Root again", MimeType: MimeTypeFolder},
	}
	fake.children["sub-2"] = []*drive.File{
		{Id: "md-1", Name: "old.md", MimeType: "text/markdown"},
	}

	lister := newTestLister(t, fake, Config{PageSize: 2})
	files, err := lister.ListFiles(context.Background(), "https://drive.google.com/drive/folders/root-folder?usp=sharing")
	require.NoError(t, err)

	sort.Slice(files, func(i, j int) bool { return files[i].ExternalID < files[j].ExternalID })
	ids := make([]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.ExternalID)
	}
	assert.Equal(t, []string{"doc-1", "md-1", "pdf-1", "txt-1"}, ids)

	pdf := files[2]
	assert.Equal(t, "Handbook.pdf", pdf.Name)
	assert.Equal(t, "ABC123", pdf.NativeChecksum)
	assert.EqualValues(t, 2048, pdf.Size)
	assert.Equal(t, time.Date(2025, 2, 1, 9, 30, 0, 0, time.UTC), pdf.ModifiedTime)

	doc := files[0]
	assert.Empty(t, doc.NativeChecksum, "Workspace files have no md5")
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), doc.ModifiedTime)

	// root: 2 pages, sub-1: 2 pages, sub-2: 1 page.
	assert.Equal(t, 5, fake.listCalls)
}

func TestLister_ListFiles_Errors(t *testing.T) {
	fake := newFakeDrive(t)
	lister := newTestLister(t, fake, Config{})

	_, err := lister.ListFiles(context.Background(), "not a folder!")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = lister.ListFiles(context.Background(), "missing-folder")
	assert.ErrorIs(t, err, google.ErrNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLister_ListFiles_ClassifiesAccessErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
		message  string
	}{
		{name: "unauthorised", status: http.StatusUnauthorized, sentinel: domain.ErrAuthRequired, message: "list folder folder"},
		{name: "forbidden", status: http.StatusForbidden, sentinel: domain.ErrAuthInvalid, message: "cannot read it"},
		{name: "not found", status: http.StatusNotFound, sentinel: domain.ErrNotFound, message: "check source.location"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeDrive(t)
			fake.status = tt.status
			lister := newTestLister(t, fake, Config{})

			_, err := lister.ListFiles(context.Background(), "folder")

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLister_ListFiles_RetriesThrottledCalls(t *testing.T) {
	fake := newFakeDrive(t)
	fake.throttle = 1
	fake.children["folder"] = []*drive.File{{Id: "a", Name: "a.txt", MimeType: "text/plain"}}

	lister := newTestLister(t, fake, Config{})
	files, err := lister.ListFiles(context.Background(), "folder")

	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, 2, fake.listCalls)
}

func TestLister_ListFiles_GivesUpAfterRetries(t *testing.T) {
	fake := newFakeDrive(t)
	fake.throttle = 5
	fake.children["folder"] = nil

	lister := newTestLister(t, fake, Config{MaxRetries: -1})
	_, err := lister.ListFiles(context.Background(), "folder")

	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, 1, fake.listCalls)
}

func TestLister_FetchContent(t *testing.T) {
	fake := newFakeDrive(t)
	fake.children["folder"] = []*drive.File{
		{Id: "doc-1", MimeType: MimeTypeGoogleDoc},
		{Id: "sheet-1", MimeType: MimeTypeGoogleSheet},
	}
	fake.exports["doc-1"] = "\ufeffPurpose:\r\n\r\nAll agents must log calls.\r\n"
	fake.exports["sheet-1"] = "owner,task\nsupervisors,review"
	fake.downloads["md-1"] = "# Escalation\n\nCall the **duty manager**."
	fake.downloads["png-1"] = "\x89PNG"
	fake.downloads["blank-1"] = "   "

	lister := newTestLister(t, fake, Config{})

	tests := []struct {
		name string
		file domain.ListedFile
		want string
	}{
		{
			name: "google doc exported as text",
			file: domain.ListedFile{ExternalID: "doc-1", Name: "Policy", MIMEType: MimeTypeGoogleDoc},
			want: "Purpose:\n\nAll agents must log calls.",
		},
		{
			name: "sheet exported as csv",
			file: domain.ListedFile{ExternalID: "sheet-1", Name: "Rota", MIMEType: MimeTypeGoogleSheet},
			want: "owner,task\nsupervisors,review",
		},
		{
			name: "uploaded markdown extracted",
			file: domain.ListedFile{ExternalID: "md-1", Name: "esc.md", MIMEType: "text/markdown"},
			want: "# Escalation\n\nCall the duty manager.",
		},
		{
			name: "unsupported upload",
			file: domain.ListedFile{ExternalID: "png-1", Name: "logo.png", MIMEType: "image/png"},
			want: domain.PlaceholderContent("unsupported type image/png"),
		},
		{
			name: "blank upload",
			file: domain.ListedFile{ExternalID: "blank-1", Name: "blank.txt", MIMEType: "text/plain"},
			want: domain.PlaceholderContent("no text content"),
		},
		{
			name: "unexportable workspace type",
			file: domain.ListedFile{ExternalID: "form-1", Name: "Survey", MIMEType: "application/vnd.google-apps.form"},
			want: domain.PlaceholderContent("cannot export application/vnd.google-apps.form"),
		},
		{
			name: "oversized upload",
			file: domain.ListedFile{ExternalID: "big-1", Name: "big.pdf", MIMEType: "application/pdf", Size: MaxExportSize + 1},
			want: domain.PlaceholderContent("file larger than 5242880 bytes"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := lister.FetchContent(context.Background(), tt.file)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLister_FetchContent_DownloadFailure(t *testing.T) {
	lister := newTestLister(t, newFakeDrive(t), Config{})

	_, err := lister.FetchContent(context.Background(), domain.ListedFile{
		ExternalID: "gone", Name: "gone.txt", MIMEType: "text/plain",
	})

	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
	assert.ErrorIs(t, err, google.ErrNotFound)
}

func TestLister_SupportedMIMETypes(t *testing.T) {
	lister := newTestLister(t, newFakeDrive(t), Config{})
	types := lister.SupportedMIMETypes()

	assert.Contains(t, types, MimeTypeGoogleDoc)
	assert.Contains(t, types, MimeTypeGoogleSheet)
	assert.Contains(t, types, "application/pdf")
	assert.NotContains(t, types, MimeTypeFolder)
}

func TestParseFolderID(t *testing.T) {
	tests := []struct {
		location string
		want     string
	}{
		{"1AbC_d-9", "1AbC_d-9"},
		{"  1AbC  ", "1AbC"},
		{"https://drive.google.com/drive/folders/1AbC_d-9", "1AbC_d-9"},
		{"https://drive.google.com/drive/u/0/folders/XyZ?usp=sharing", "XyZ"},
		{"https://drive.google.com/open?id=Q1w2", "Q1w2"},
		{"https://example.com/nothing", ""},
		{"not a folder!", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseFolderID(tt.location))
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := Config{}.withDefaults()

	assert.Equal(t, DefaultConfig(), cfg)
	assert.EqualValues(t, MaxExportSize, cfg.MaxDownloadSize)
}
