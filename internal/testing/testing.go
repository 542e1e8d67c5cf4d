// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/desertthunder/podkeep/internal/services"
)

// MockService is a configurable test double for [services.Service]
type MockService struct {
	Shows      []services.Show
	Episodes   map[string][]services.Episode
	Saved      []services.Episode
	SavedIDs   [][]string
	RemovedIDs [][]string

	AuthErr   error
	ShowsErr  error
	ListErr   error
	SavedErr  error
	SaveErr   error
	RemoveErr error
}

func (m *MockService) Authenticate(ctx context.Context, credentials map[string]string) error {
	return m.AuthErr
}

func (m *MockService) SavedShows(ctx context.Context) ([]services.Show, error) {
	if m.ShowsErr != nil {
		return nil, m.ShowsErr
	}
	return m.Shows, nil
}

func (m *MockService) ShowEpisodes(ctx context.Context, showID string) ([]services.Episode, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Episodes[showID], nil
}

func (m *MockService) SavedEpisodes(ctx context.Context) ([]services.Episode, error) {
	if m.SavedErr != nil {
		return nil, m.SavedErr
	}
	return m.Saved, nil
}

func (m *MockService) SaveEpisodes(ctx context.Context, ids []string) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.SavedIDs = append(m.SavedIDs, ids)
	return nil
}

func (m *MockService) RemoveEpisodes(ctx context.Context, ids []string) error {
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	m.RemovedIDs = append(m.RemovedIDs, ids)
	return nil
}

func (m *MockService) Name() string { return "mock" }

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
