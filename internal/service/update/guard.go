package update

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/gamewarden/gamewarden/internal/logger"
)

// MarkerFilename marks that an update run is in flight. Two concurrent runs
// against the same install target would race on stop/clear/extract/start,
// so the marker is a required invariant, not optional hardening.
const MarkerFilename = "gamewarden-update-marker.bin"

var errUpdateAlreadyRunning = errors.New("an update is already running")

// Guard is a held single-flight marker. Release removes it.
type Guard struct {
	path string
}

// AcquireGuard claims the update marker under dir. The marker records the
// owning pid; a marker whose process is no longer alive is stale and is
// recovered instead of blocking updates forever.
func AcquireGuard(ctx context.Context, dir string) (*Guard, error) {
	path := filepath.Join(dir, MarkerFilename)

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case err == nil:
		if ownerAlive(contents) {
			return nil, errUpdateAlreadyRunning
		}

		logger.Info(ctx, "Removing stale update marker")

		if err = os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale marker: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read marker: %w", err)
	}

	pid := []byte(strconv.Itoa(os.Getpid()))
	if err := os.WriteFile(path, pid, 0o600); err != nil {
		return nil, fmt.Errorf("create marker: %w", err)
	}

	return &Guard{path: path}, nil
}

// Release removes the marker. Safe to call once per acquired guard.
func (g *Guard) Release(ctx context.Context) {
	if err := os.Remove(g.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warnf(ctx, "Unable to remove update marker: %v", err)
	}
}

// ownerAlive reports whether the process that wrote the marker still exists.
// An unreadable pid is treated as alive: refusing a run is safer than racing
// a writer mid-claim.
func ownerAlive(marker []byte) bool {
	pid, err := strconv.Atoi(strings.TrimSpace(string(marker)))
	if err != nil {
		return true
	}

	if pid == os.Getpid() {
		return true
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		return true
	}

	return process != nil
}
