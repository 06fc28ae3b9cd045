package install

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"

	"github.com/gamewarden/gamewarden/internal/logger"
)

// Target is the on-disk location of the currently installed artifact: the
// payload directory tree plus the launcher entry point inside it.
type Target struct {
	// PayloadDir is the directory holding the installed server tree.
	PayloadDir string
	// LauncherPath is the entry point started by the service unit.
	LauncherPath string
}

// Reconciler mutates the install target in place. Operations are composed
// by the orchestrator and must run in order: clear, extract, finalize.
type Reconciler struct {
	target      Target
	compression string
}

// New returns a Reconciler for the given target. compression selects the
// archive decoder: xz, gz, zst or none.
func New(target Target, compression string) *Reconciler {
	return &Reconciler{target: target, compression: compression}
}

// Target returns the reconciler's install target.
func (r *Reconciler) Target() Target {
	return r.target
}

// ClearStalePayload removes the previous payload tree and launcher entry
// point. A missing target is a no-op, not an error: the first-ever update
// runs against a fresh install.
func (r *Reconciler) ClearStalePayload(ctx context.Context) error {
	if _, err := os.Stat(r.target.PayloadDir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info(ctx, "No stale payload to clear")
			return nil
		}

		return fmt.Errorf("stat payload: %w", err)
	}

	if err := os.RemoveAll(r.target.PayloadDir); err != nil {
		return fmt.Errorf("remove payload: %w", err)
	}

	// The launcher normally lives inside the payload tree, but tolerate
	// layouts where it sits next to it.
	if err := os.Remove(r.target.LauncherPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove launcher: %w", err)
	}

	logger.InfoKV(ctx, "Cleared stale payload", "path", r.target.PayloadDir)

	return nil
}

// Finalize recursively sets ownership of the target tree to the configured
// operating identity. It runs unconditionally after a successful extraction
// to correct files created under an elevated identity.
func (r *Reconciler) Finalize(ctx context.Context, owner string) error {
	if err := ChownTree(r.target.PayloadDir, owner); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Payload ownership fixed", "owner", owner)

	return nil
}

// ChownTree recursively sets ownership of the tree rooted at dir to the
// given user. Symlinks themselves are re-owned, not their targets.
func ChownTree(dir, owner string) error {
	uid, gid, err := lookupIDs(owner)
	if err != nil {
		return err
	}

	err = filepath.WalkDir(dir, func(path string, _ fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if chownErr := os.Lchown(path, uid, gid); chownErr != nil {
			return fmt.Errorf("chown %s: %w", path, chownErr)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("fix ownership: %w", err)
	}

	return nil
}

// lookupIDs resolves a user name to numeric uid and gid.
func lookupIDs(owner string) (int, int, error) {
	account, err := user.Lookup(owner)
	if err != nil {
		return 0, 0, fmt.Errorf("lookup user %s: %w", owner, err)
	}

	uid, err := strconv.Atoi(account.Uid)
	if err != nil {
		return 0, 0, fmt.Errorf("parse uid %s: %w", account.Uid, err)
	}

	gid, err := strconv.Atoi(account.Gid)
	if err != nil {
		return 0, 0, fmt.Errorf("parse gid %s: %w", account.Gid, err)
	}

	return uid, gid, nil
}
