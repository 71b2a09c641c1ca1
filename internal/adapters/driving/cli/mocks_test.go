package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/custodia-labs/changelens/internal/core/domain"
)

// mockIngestion implements driving.IngestionService for testing.
type mockIngestion struct {
	mu        sync.Mutex
	locations []string
	run       *domain.IngestionRun
	err       error
}

func (m *mockIngestion) Run(_ context.Context, runID, location string) (*domain.IngestionRun, error) {
	return m.RunNow(context.Background(), location)
}

func (m *mockIngestion) RunNow(_ context.Context, location string) (*domain.IngestionRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations = append(m.locations, location)
	return m.run, m.err
}

func (m *mockIngestion) InProgress() bool { return false }

func (m *mockIngestion) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.locations...)
}

// mockChanges implements driving.ChangeService for testing.
type mockChanges struct {
	records   []domain.ChangeRecord
	runs      []domain.IngestionRun
	documents map[string]*domain.Document
	lastLimit int
	err       error
}

func (m *mockChanges) ListChanges(_ context.Context, limit int) ([]domain.ChangeRecord, error) {
	m.lastLimit = limit
	return m.records, m.err
}

func (m *mockChanges) GetChange(_ context.Context, id string) (*domain.ChangeRecord, error) {
	for i := range m.records {
		if m.records[i].ID == id {
			return &m.records[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockChanges) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	if doc, ok := m.documents[id]; ok {
		return doc, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockChanges) ListRuns(_ context.Context, limit int) ([]domain.IngestionRun, error) {
	m.lastLimit = limit
	return m.runs, m.err
}

// mockExplanation implements driving.ExplanationService for testing.
type mockExplanation struct {
	explained  []string
	backfilled int
	err        error
}

func (m *mockExplanation) Explain(_ context.Context, record *domain.ChangeRecord) error {
	m.explained = append(m.explained, record.ID)
	return m.err
}

func (m *mockExplanation) ExplainByID(_ context.Context, changeID string) error {
	m.explained = append(m.explained, changeID)
	return m.err
}

func (m *mockExplanation) Backfill(_ context.Context) (int, error) {
	return m.backfilled, m.err
}

// mockScheduler implements driving.Scheduler for testing.
type mockScheduler struct {
	started atomic.Bool
	stopped atomic.Bool
}

func (m *mockScheduler) Start(ctx context.Context) error {
	m.started.Store(true)
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockScheduler) Stop() error {
	m.stopped.Store(true)
	return nil
}

// mockSettings implements driving.SettingsService for testing.
type mockSettings struct {
	settings    domain.Settings
	validateErr error
	pingErr     error
}

func newMockSettings() *mockSettings {
	return &mockSettings{settings: domain.DefaultSettings()}
}

func (m *mockSettings) Get() (*domain.Settings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettings) Save(settings *domain.Settings) error {
	m.settings = *settings
	return nil
}

func (m *mockSettings) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	m.settings.LLM = domain.LLMSettings{Provider: provider, Model: model, APIKey: apiKey}
	return nil
}

func (m *mockSettings) SetAIEnabled(enabled bool) error {
	m.settings.Explain.AIEnabled = enabled
	return nil
}

func (m *mockSettings) SetSource(sourceType domain.SourceType, location string) error {
	if !sourceType.IsValid() {
		return domain.ErrInvalidInput
	}
	m.settings.Source.Type = sourceType
	m.settings.Source.Location = location
	return nil
}

func (m *mockSettings) Validate() error { return m.validateErr }

func (m *mockSettings) GetDefaults() domain.Settings { return domain.DefaultSettings() }

func (m *mockSettings) ValidateLLMConfig() error { return m.pingErr }

// mockLogin implements LoginFlow for testing.
type mockLogin struct {
	authenticated bool
	state         string
	code          string
	verifier      string
}

func (m *mockLogin) AuthCodeURL(state, verifier string) string {
	m.state = state
	m.verifier = verifier
	return "https://accounts.example.com/auth?state=" + state
}

func (m *mockLogin) Exchange(_ context.Context, code, verifier string) error {
	m.code = code
	if verifier != m.verifier {
		return domain.ErrAuthInvalid
	}
	m.authenticated = true
	return nil
}

func (m *mockLogin) IsAuthenticated() bool { return m.authenticated }

// runCLI executes args against a, with stdin as input, and returns the
// combined output.
func runCLI(t *testing.T, a *App, stdin string, args ...string) (string, error) {
	t.Helper()

	oldApp := app
	app = a
	t.Cleanup(func() {
		app = oldApp
		changesLimit = 20
		runsLimit = 20
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return buf.String(), err
}
