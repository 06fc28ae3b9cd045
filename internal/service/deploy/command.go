package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"strconv"

	"github.com/gamewarden/gamewarden/internal/config"
	"github.com/gamewarden/gamewarden/internal/install"
	"github.com/gamewarden/gamewarden/internal/logger"
	"github.com/gamewarden/gamewarden/internal/service/sysctl"
)

// Options are inputs accepted by the deploy entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// SkipService leaves the service unit alone (useful in containers).
	SkipService bool
	// SkipFirewall leaves the firewall alone.
	SkipFirewall bool
}

const directoryMode os.FileMode = 0o755

// deployer provisions a host for the managed game server. One-time setup:
// every step is idempotent where the host allows it.
type deployer struct {
	cfg  *config.Config
	opts *Options
}

// Run executes the provisioning workflow and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "deploy")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	d := &deployer{cfg: cfg, opts: opts}

	if err = d.ensureServiceUser(ctx); err != nil {
		return fmt.Errorf("ensure service user: %w", err)
	}

	if err = d.ensureDirectories(ctx); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	if err = d.seedData(ctx); err != nil {
		return fmt.Errorf("seed server data: %w", err)
	}

	if err = install.ChownTree(cfg.BaseDir, cfg.ServiceUser); err != nil {
		return fmt.Errorf("own deployment tree: %w", err)
	}

	if !opts.SkipService {
		if err = d.ensureServiceUnit(ctx); err != nil {
			return fmt.Errorf("ensure service unit: %w", err)
		}
	}

	if !opts.SkipFirewall {
		if err = d.openFirewall(ctx); err != nil {
			return fmt.Errorf("open firewall: %w", err)
		}
	}

	logger.Info(ctx, "Deployment completed")

	return nil
}

// ensureServiceUser creates the operating identity as a system account when
// it does not exist yet.
func (d *deployer) ensureServiceUser(ctx context.Context) error {
	_, err := user.Lookup(d.cfg.ServiceUser)
	if err == nil {
		logger.InfoKV(ctx, "Service user already exists", "user", d.cfg.ServiceUser)
		return nil
	}

	var unknown user.UnknownUserError
	if !errors.As(err, &unknown) {
		return fmt.Errorf("lookup %s: %w", d.cfg.ServiceUser, err)
	}

	logger.InfoKV(ctx, "Creating service user", "user", d.cfg.ServiceUser)

	cmd := exec.CommandContext(ctx, "useradd",
		"--system",
		"--home-dir", d.cfg.BaseDir,
		"--shell", "/usr/sbin/nologin",
		d.cfg.ServiceUser,
	)

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("useradd: %s: %w", string(output), err)
	}

	return nil
}

// ensureDirectories creates the deployment layout.
func (d *deployer) ensureDirectories(ctx context.Context) error {
	for _, dir := range []string{d.cfg.BaseDir, d.cfg.ServerDir, d.cfg.DataDir} {
		if err := os.MkdirAll(dir, directoryMode); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	logger.InfoKV(ctx, "Deployment directories ready", "base", d.cfg.BaseDir)

	return nil
}

// seedData clones the configured data repository into an empty data
// directory. An already-populated directory is left untouched.
func (d *deployer) seedData(ctx context.Context) error {
	if d.cfg.DataRepoURL == "" {
		return nil
	}

	entries, err := os.ReadDir(d.cfg.DataDir)
	if err != nil {
		return fmt.Errorf("read %s: %w", d.cfg.DataDir, err)
	}

	if len(entries) > 0 {
		logger.Info(ctx, "Server data already present, skipping clone")
		return nil
	}

	logger.InfoKV(ctx, "Cloning server data", "repo", d.cfg.DataRepoURL)

	cmd := exec.CommandContext(ctx, "git", "clone", d.cfg.DataRepoURL, d.cfg.DataDir)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git clone: %s: %w", string(output), err)
	}

	return nil
}

// ensureServiceUnit registers the unit with the host service manager unless
// it is already known.
func (d *deployer) ensureServiceUnit(ctx context.Context) error {
	manager, err := sysctl.NewManager(d.cfg)
	if err != nil {
		return err
	}

	if _, err = manager.Status(ctx); err == nil {
		logger.InfoKV(ctx, "Service unit already installed", "service", d.cfg.ServiceName)
		return nil
	}

	return manager.Install(ctx)
}

// openFirewall allows the game port through ufw when both the port and the
// tool are present. Hosts without ufw are left alone.
func (d *deployer) openFirewall(ctx context.Context) error {
	if d.cfg.GamePort <= 0 {
		return nil
	}

	if _, err := exec.LookPath("ufw"); err != nil {
		logger.Info(ctx, "ufw not found, skipping firewall rule")
		return nil //nolint:nilerr // Missing firewall tooling is not an error.
	}

	port := strconv.Itoa(d.cfg.GamePort)
	logger.InfoKV(ctx, "Opening game port", "port", port)

	cmd := exec.CommandContext(ctx, "ufw", "allow", port)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ufw allow: %s: %w", string(output), err)
	}

	return nil
}
