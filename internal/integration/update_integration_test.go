package integration

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/user"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gamewarden/gamewarden/internal/fetcher"
	"github.com/gamewarden/gamewarden/internal/install"
	"github.com/gamewarden/gamewarden/internal/resolver"
	"github.com/gamewarden/gamewarden/internal/service/sysctl"
	"github.com/gamewarden/gamewarden/internal/service/update"
)

const buildToken = "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0"

// recordingController satisfies sysctl.Controller and records call order.
type recordingController struct {
	calls []string
}

func (c *recordingController) Stop(context.Context) error {
	c.calls = append(c.calls, "stop")
	return nil
}

func (c *recordingController) Start(context.Context) error {
	c.calls = append(c.calls, "start")
	return nil
}

func (c *recordingController) Status(context.Context) (sysctl.Status, error) {
	return sysctl.StatusUnknown, nil
}

// buildArchive produces a tar.gz payload with a single run.sh entry.
func buildArchive(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	body := "#!/bin/sh\nexec ./server --data ../server-data\n"
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "run.sh",
		Typeflag: tar.TypeReg,
		Mode:     0o755,
		Size:     int64(len(body)),
	}))

	_, err := tw.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	return buf.Bytes()
}

// serveBuilds returns a test server exposing a build index and the archive.
func serveBuilds(t *testing.T, archive []byte) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/builds/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/builds/":
			_, _ = w.Write([]byte(`<a href="` + buildToken + `/">` + buildToken + `/</a>`))
		case "/builds/" + buildToken + "/server.tar.gz":
			_, _ = w.Write(archive)
		default:
			http.NotFound(w, r)
		}
	})

	return httptest.NewServer(mux)
}

func newOrchestrator(t *testing.T, indexURL string, ctrl sysctl.Controller, owner string) (*update.Orchestrator, install.Target) {
	t.Helper()

	serverDir := filepath.Join(t.TempDir(), "server")
	target := install.Target{
		PayloadDir:   serverDir,
		LauncherPath: filepath.Join(serverDir, "run.sh"),
	}

	orchestrator := update.NewOrchestrator(
		ctrl,
		resolver.New(indexURL, "server.tar.gz", nil),
		fetcher.New(nil, 0),
		install.New(target, "gz"),
		owner,
		t.TempDir(),
		"server.tar.gz",
		time.Minute,
	)

	return orchestrator, target
}

// TestUpdate_EndToEnd runs the full flow against a mock index and archive:
// the install target ends up with run.sh owned by the configured identity
// and the outcome is successful.
func TestUpdate_EndToEnd(t *testing.T) {
	t.Parallel()

	current, err := user.Current()
	require.NoError(t, err)

	ts := serveBuilds(t, buildArchive(t))
	defer ts.Close()

	ctrl := &recordingController{}
	orchestrator, target := newOrchestrator(t, ts.URL+"/builds/", ctrl, current.Username)

	outcome := orchestrator.Execute(context.Background())

	require.NoError(t, outcome.Err)
	require.True(t, outcome.Success)
	require.Equal(t, update.StageDone, outcome.Terminal)
	require.Equal(t, []string{"stop", "start"}, ctrl.calls)
	require.Greater(t, outcome.Duration, time.Duration(0))

	launcher, err := os.ReadFile(target.LauncherPath)
	require.NoError(t, err)
	require.Contains(t, string(launcher), "exec ./server")
}

// TestUpdate_EndToEnd_Idempotent runs the flow twice against identical
// remote state; the second run re-clears and re-extracts without error and
// converges to the same content.
func TestUpdate_EndToEnd_Idempotent(t *testing.T) {
	t.Parallel()

	current, err := user.Current()
	require.NoError(t, err)

	ts := serveBuilds(t, buildArchive(t))
	defer ts.Close()

	ctrl := &recordingController{}
	orchestrator, target := newOrchestrator(t, ts.URL+"/builds/", ctrl, current.Username)

	first := orchestrator.Execute(context.Background())
	require.True(t, first.Success)

	firstContent, err := os.ReadFile(target.LauncherPath)
	require.NoError(t, err)

	second := orchestrator.Execute(context.Background())
	require.True(t, second.Success)

	secondContent, err := os.ReadFile(target.LauncherPath)
	require.NoError(t, err)
	require.Equal(t, firstContent, secondContent)
	require.Equal(t, []string{"stop", "start", "stop", "start"}, ctrl.calls)
}

// TestUpdate_EndToEnd_FetchFailure serves a 500 for the archive: the
// orchestrator calls stop then the recovery start, and the outcome reports
// the fetching stage.
func TestUpdate_EndToEnd_FetchFailure(t *testing.T) {
	t.Parallel()

	current, err := user.Current()
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/builds/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/builds/" {
			_, _ = w.Write([]byte(`<a href="` + buildToken + `/">` + buildToken + `/</a>`))
			return
		}

		w.WriteHeader(http.StatusInternalServerError)
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()

	ctrl := &recordingController{}
	orchestrator, target := newOrchestrator(t, ts.URL+"/builds/", ctrl, current.Username)

	outcome := orchestrator.Execute(context.Background())

	require.False(t, outcome.Success)
	require.Equal(t, update.StageFailed, outcome.Terminal)
	require.Equal(t, update.StagePayloadFetching, outcome.FailedStage)
	require.True(t, outcome.Recovered)
	require.Equal(t, []string{"stop", "start"}, ctrl.calls)

	// Nothing was extracted.
	_, err = os.Stat(target.LauncherPath)
	require.ErrorIs(t, err, os.ErrNotExist)
}
