package selfupdate

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/gamewarden/gamewarden/internal/config"
	"github.com/gamewarden/gamewarden/internal/version"
)

// TestFileChecksum matches the stdlib digest of the same content.
func TestFileChecksum(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "binary")
	body := []byte("binary-bytes")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	got, err := FileChecksum(path)
	require.NoError(t, err)

	want := sha512.Sum512(body)
	require.Equal(t, want[:], got)
}

// TestPublish_WritesManifest produces a manifest describing the binary.
func TestPublish_WritesManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	binary := filepath.Join(dir, "gamewarden")
	body := []byte("fake-binary")
	require.NoError(t, os.WriteFile(binary, body, 0o755))

	err := Publish(context.Background(), &PublishOptions{BinaryPath: binary})
	require.NoError(t, err)

	contents, err := os.ReadFile(filepath.Join(dir, ManifestFilename))
	require.NoError(t, err)

	var manifest Manifest
	require.NoError(t, yaml.Unmarshal(contents, &manifest))
	require.Equal(t, version.Short(), manifest.VersionNumber)
	require.Equal(t, "gamewarden", manifest.Executable)

	checksum := sha512.Sum512(body)
	require.Equal(t, base64.StdEncoding.EncodeToString(checksum[:]), manifest.Checksum)
}

// TestRun_AlreadyCurrent skips the apply when the published version matches.
func TestRun_AlreadyCurrent(t *testing.T) {
	t.Parallel()

	manifest := &Manifest{
		VersionNumber: version.Short(),
		Executable:    "gamewarden",
		Checksum:      base64.StdEncoding.EncodeToString([]byte("unused")),
	}

	manifestBytes, err := yaml.Marshal(manifest)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/"+ManifestFilename, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(manifestBytes)
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()

	cfgPath := filepath.Join(t.TempDir(), config.DefaultConfigFilename)
	cfg := &config.Config{
		ServiceUser:     "gameserver",
		BaseDir:         "/opt/gameserver",
		BuildIndexURL:   "https://builds.example.com/latest/",
		ArchiveFilename: "server.tar.xz",
		UpdateFolder:    ts.URL,
	}

	require.NoError(t, config.Save(cfgPath, cfg))

	err = Run(context.Background(), &Options{ConfigPath: cfgPath})
	require.NoError(t, err)
}

// TestRun_NoUpdateFolder fails fast when the folder is not configured.
func TestRun_NoUpdateFolder(t *testing.T) {
	t.Parallel()

	cfgPath := filepath.Join(t.TempDir(), config.DefaultConfigFilename)
	cfg := &config.Config{
		ServiceUser:     "gameserver",
		BaseDir:         "/opt/gameserver",
		BuildIndexURL:   "https://builds.example.com/latest/",
		ArchiveFilename: "server.tar.xz",
	}

	require.NoError(t, config.Save(cfgPath, cfg))

	err := Run(context.Background(), &Options{ConfigPath: cfgPath})
	require.ErrorIs(t, err, errNoUpdateFolder)
}
