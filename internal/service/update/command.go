package update

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gamewarden/gamewarden/internal/config"
	"github.com/gamewarden/gamewarden/internal/fetcher"
	"github.com/gamewarden/gamewarden/internal/install"
	"github.com/gamewarden/gamewarden/internal/logger"
	"github.com/gamewarden/gamewarden/internal/resolver"
	"github.com/gamewarden/gamewarden/internal/service/sysctl"
)

// Options are inputs accepted by the update entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
}

// buildResolver discovers the newest published build.
type buildResolver interface {
	Resolve(ctx context.Context) (*resolver.Build, error)
}

// artifactFetcher downloads a build's archive to a local path.
type artifactFetcher interface {
	Fetch(ctx context.Context, build *resolver.Build, destPath string) error
}

// payloadReconciler mutates the install target in place.
type payloadReconciler interface {
	ClearStalePayload(ctx context.Context) error
	ExtractPayload(ctx context.Context, archivePath string) error
	Finalize(ctx context.Context, owner string) error
}

// Orchestrator sequences one update run: stop the service, replace the
// payload, restore the service, report the outcome. It assumes exclusive
// access to the install target; callers hold the update guard.
type Orchestrator struct {
	controller      sysctl.Controller
	resolver        buildResolver
	fetcher         artifactFetcher
	reconciler      payloadReconciler
	owner           string
	workDir         string
	archiveFilename string
	fetchTimeout    time.Duration
}

// NewOrchestrator wires an update run from its collaborators. workDir is
// where the downloaded archive is staged.
func NewOrchestrator(
	controller sysctl.Controller,
	buildRes buildResolver,
	artFetcher artifactFetcher,
	reconciler payloadReconciler,
	owner, workDir, archiveFilename string,
	fetchTimeout time.Duration,
) *Orchestrator {
	return &Orchestrator{
		controller:      controller,
		resolver:        buildRes,
		fetcher:         artFetcher,
		reconciler:      reconciler,
		owner:           owner,
		workDir:         workDir,
		archiveFilename: archiveFilename,
		fetchTimeout:    fetchTimeout,
	}
}

// Run executes the update lifecycle and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "update")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	guard, err := AcquireGuard(ctx, cfg.BaseDir)
	if err != nil {
		return err
	}

	defer guard.Release(ctx)

	controller, err := sysctl.NewManager(cfg)
	if err != nil {
		return err
	}

	workDir, err := os.MkdirTemp("", "gamewarden-update-")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}

	defer func() {
		_ = os.RemoveAll(workDir)
	}()

	orchestrator := NewOrchestrator(
		controller,
		resolver.New(cfg.BuildIndexURL, cfg.ArchiveFilename, nil),
		fetcher.New(nil, *cfg.FetchRetries),
		install.New(install.Target{
			PayloadDir:   cfg.ServerDir,
			LauncherPath: cfg.LauncherPath(),
		}, cfg.Compression),
		cfg.ServiceUser,
		workDir,
		cfg.ArchiveFilename,
		cfg.FetchTimeout,
	)

	outcome := orchestrator.Execute(ctx)
	report(ctx, outcome)

	return outcome.Err
}

// Execute drives the state machine for a single run and produces exactly
// one Outcome. Duration is measured from entry into ServiceStopping.
func (o *Orchestrator) Execute(ctx context.Context) *Outcome {
	started := time.Now()

	// ServiceStopping. A stop failure is fatal with no recovery: there is
	// no payload to protect yet.
	logger.Info(ctx, "Stopping the managed service")

	if err := o.controller.Stop(ctx); err != nil {
		return o.fail(started, StageServiceStopping, err)
	}

	// PayloadClearing. Failure here is fatal too: a half-removed tree is
	// an ambiguous state and extraction must not proceed over it.
	logger.Info(ctx, "Clearing the stale payload")

	if err := o.reconciler.ClearStalePayload(ctx); err != nil {
		return o.fail(started, StagePayloadClearing, err)
	}

	// PayloadFetching covers both latest-build resolution and the archive
	// download, bounded together by the fetch timeout.
	logger.Info(ctx, "Resolving and downloading the latest build")

	archivePath, err := o.obtainPayload(ctx)
	if err != nil {
		return o.recoverAndFail(ctx, started, StagePayloadFetching, err)
	}

	// PayloadExtracting.
	logger.Info(ctx, "Extracting the new payload")

	if err = o.reconciler.ExtractPayload(ctx, archivePath); err != nil {
		return o.recoverAndFail(ctx, started, StagePayloadExtracting, err)
	}

	// PermissionFixing. The old payload is gone by now, so a restart would
	// run the new tree anyway; failures surface without a recovery attempt.
	// Known availability gap.
	logger.Info(ctx, "Fixing payload ownership")

	if err = o.reconciler.Finalize(ctx, o.owner); err != nil {
		return o.fail(started, StagePermissionFixing, err)
	}

	// ServiceStarting.
	logger.Info(ctx, "Starting the managed service")

	if err = o.controller.Start(ctx); err != nil {
		return o.fail(started, StageServiceStarting, err)
	}

	return &Outcome{
		Success:  true,
		Duration: time.Since(started),
		Terminal: StageDone,
	}
}

// obtainPayload resolves the newest build and streams its archive into the
// staging directory, returning the archive path.
func (o *Orchestrator) obtainPayload(ctx context.Context) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, o.fetchTimeout)
	defer cancel()

	build, err := o.resolver.Resolve(fetchCtx)
	if err != nil {
		return "", err
	}

	archivePath := filepath.Join(o.workDir, o.archiveFilename)
	if err = o.fetcher.Fetch(fetchCtx, build, archivePath); err != nil {
		return "", err
	}

	return archivePath, nil
}

// fail terminates the run without a recovery attempt.
func (o *Orchestrator) fail(started time.Time, stage Stage, err error) *Outcome {
	return &Outcome{
		Duration:    time.Since(started),
		Terminal:    StageFailed,
		FailedStage: stage,
		Err:         fmt.Errorf("%s: %w", stage, err),
	}
}

// recoverAndFail attempts to restore service availability with whatever
// payload remains on disk, then terminates the run as failed. The restart
// is best-effort and attempted exactly once; its outcome is reported
// separately from the original failure.
func (o *Orchestrator) recoverAndFail(ctx context.Context, started time.Time, stage Stage, err error) *Outcome {
	logger.WarnKV(ctx, "Update failed, attempting to restore service availability",
		"stage", StageRecovering.String(), "failed_stage", stage.String(), "error", err)

	outcome := o.fail(started, stage, err)

	if recErr := o.controller.Start(ctx); recErr != nil {
		logger.ErrorKV(ctx, "Recovery restart failed", "error", recErr)

		outcome.RecoveryErr = recErr
	} else {
		logger.Info(ctx, "Service restarted with the remaining payload")

		outcome.Recovered = true
	}

	outcome.Duration = time.Since(started)

	return outcome
}

// report logs the single outcome record of a run.
func report(ctx context.Context, outcome *Outcome) {
	if outcome.Success {
		logger.InfoKV(ctx, "Update completed",
			"duration_seconds", outcome.Duration.Seconds())

		return
	}

	kvs := []any{
		"stage", outcome.FailedStage.String(),
		"duration_seconds", outcome.Duration.Seconds(),
		"error", outcome.Err,
	}

	if outcome.Recovered {
		kvs = append(kvs, "recovered", true)
	} else if outcome.RecoveryErr != nil {
		kvs = append(kvs, "recovery_error", outcome.RecoveryErr)
	}

	logger.ErrorKV(ctx, "Update failed", kvs...)
}
