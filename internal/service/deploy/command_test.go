package deploy

import (
	"context"
	"os"
	"os/user"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gamewarden/gamewarden/internal/config"
)

// TestRun_CreatesLayout provisions into a temp directory using the current
// user as the service identity; service unit and firewall steps are skipped
// because they mutate the host.
func TestRun_CreatesLayout(t *testing.T) {
	t.Parallel()

	current, err := user.Current()
	require.NoError(t, err)

	base := filepath.Join(t.TempDir(), "gameserver")
	cfgPath := filepath.Join(t.TempDir(), config.DefaultConfigFilename)
	cfg := &config.Config{
		ServiceUser:     current.Username,
		BaseDir:         base,
		BuildIndexURL:   "https://builds.example.com/latest/",
		ArchiveFilename: "server.tar.xz",
	}

	require.NoError(t, config.Save(cfgPath, cfg))

	opts := &Options{
		ConfigPath:   cfgPath,
		SkipService:  true,
		SkipFirewall: true,
	}

	require.NoError(t, Run(context.Background(), opts))

	for _, dir := range []string{base, filepath.Join(base, "server"), filepath.Join(base, "server-data")} {
		info, statErr := os.Stat(dir)
		require.NoError(t, statErr)
		require.True(t, info.IsDir())
	}
}

// TestRun_IsRepeatable runs the flow twice; existing directories are fine.
func TestRun_IsRepeatable(t *testing.T) {
	t.Parallel()

	current, err := user.Current()
	require.NoError(t, err)

	base := filepath.Join(t.TempDir(), "gameserver")
	cfgPath := filepath.Join(t.TempDir(), config.DefaultConfigFilename)
	cfg := &config.Config{
		ServiceUser:     current.Username,
		BaseDir:         base,
		BuildIndexURL:   "https://builds.example.com/latest/",
		ArchiveFilename: "server.tar.xz",
	}

	require.NoError(t, config.Save(cfgPath, cfg))

	opts := &Options{
		ConfigPath:   cfgPath,
		SkipService:  true,
		SkipFirewall: true,
	}

	require.NoError(t, Run(context.Background(), opts))
	require.NoError(t, Run(context.Background(), opts))
}
