package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	newestToken = "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0"
	olderToken  = "0123456789abcdef0123456789abcdef01234567"
)

// TestResolve_PicksFirstToken serves an index with several build entries and
// verifies the first (newest) token wins and the download URL is derived from it.
func TestResolve_PicksFirstToken(t *testing.T) {
	t.Parallel()

	index := `<html><body>
	<a href="../">../</a>
	<a href="` + newestToken + `/">` + newestToken + `/</a>
	<a href="` + olderToken + `/">` + olderToken + `/</a>
	</body></html>`

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(index))
	}))
	defer ts.Close()

	r := New(ts.URL, "server.tar.xz", nil)

	build, err := r.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, newestToken, build.Token)
	require.True(t, strings.HasSuffix(build.DownloadURL, newestToken+"/server.tar.xz"))
}

// TestResolve_NoToken ensures an index without a recognizable build path fails.
func TestResolve_NoToken(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>nothing here</body></html>"))
	}))
	defer ts.Close()

	r := New(ts.URL, "server.tar.xz", nil)

	_, err := r.Resolve(context.Background())
	require.ErrorIs(t, err, errNoBuildToken)
}

// TestResolve_BadStatus ensures a non-success index response fails.
func TestResolve_BadStatus(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	r := New(ts.URL, "server.tar.xz", nil)

	_, err := r.Resolve(context.Background())
	require.ErrorIs(t, err, errBadHTTPStatus)
}

// TestResolve_Unreachable ensures a dead index address fails cleanly.
func TestResolve_Unreachable(t *testing.T) {
	t.Parallel()

	r := New("http://127.0.0.1:1/index", "server.tar.xz", nil)

	_, err := r.Resolve(context.Background())
	require.Error(t, err)
}
