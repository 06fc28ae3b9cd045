package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gamewarden/gamewarden/internal/resolver"
)

// TestFetch_WritesArchive downloads a payload and verifies the file content.
func TestFetch_WritesArchive(t *testing.T) {
	t.Parallel()

	body := []byte("archive-bytes")

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "server.tar.xz")
	f := New(nil, 0)

	err := f.Fetch(context.Background(), &resolver.Build{DownloadURL: ts.URL}, dest)
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, body, got)
}

// TestFetch_RetriesTransientFailure serves one 500 then succeeds, and
// expects the retry policy to absorb the transient failure.
func TestFetch_RetriesTransientFailure(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "server.tar.xz")
	f := New(nil, 3)

	err := f.Fetch(context.Background(), &resolver.Build{DownloadURL: ts.URL}, dest)
	require.NoError(t, err)
	require.GreaterOrEqual(t, calls.Load(), int32(2))
}

// TestFetch_PermanentStatus ensures a 404 fails without burning retries.
func TestFetch_PermanentStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "server.tar.xz")
	f := New(nil, 3)

	err := f.Fetch(context.Background(), &resolver.Build{DownloadURL: ts.URL}, dest)
	require.ErrorIs(t, err, errBadHTTPStatus)
	require.Equal(t, int32(1), calls.Load())
}

// TestFetch_ContextDeadline ensures the configured deadline bounds the download.
func TestFetch_ContextDeadline(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	dest := filepath.Join(t.TempDir(), "server.tar.xz")
	f := New(nil, 3)

	err := f.Fetch(ctx, &resolver.Build{DownloadURL: ts.URL}, dest)
	require.Error(t, err)
}

// TestFetch_OverwritesExisting ensures a stale file at the destination is replaced.
func TestFetch_OverwritesExisting(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("new"))
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "server.tar.xz")
	require.NoError(t, os.WriteFile(dest, []byte("old-and-longer"), 0o600))

	f := New(nil, 0)

	err := f.Fetch(context.Background(), &resolver.Build{DownloadURL: ts.URL}, dest)
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, []byte("new"), got)
}
