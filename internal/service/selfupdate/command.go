package selfupdate

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"
	"gopkg.in/yaml.v3"

	"github.com/gamewarden/gamewarden/internal/config"
	"github.com/gamewarden/gamewarden/internal/logger"
	"github.com/gamewarden/gamewarden/internal/version"
)

var (
	errNoUpdateFolder = errors.New("update folder is not configured")
	errBadHTTPStatus  = errors.New("unexpected http status")
)

// Options are inputs accepted by the self-update entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
}

// Run replaces the running gamewarden binary with the published release
// when the manifest advertises a different version.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "self-update")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	if cfg.UpdateFolder == "" {
		return errNoUpdateFolder
	}

	manifest, err := fetchManifest(ctx, cfg.UpdateFolder)
	if err != nil {
		return fmt.Errorf("fetch release manifest: %w", err)
	}

	if manifest.VersionNumber == version.Short() {
		logger.InfoKV(ctx, "Already on the published release", "version", version.Short())
		return nil
	}

	logger.InfoKV(ctx, "Applying release",
		"current", version.Short(), "published", manifest.VersionNumber)

	if err = applyRelease(ctx, cfg.UpdateFolder, manifest); err != nil {
		return fmt.Errorf("apply release: %w", err)
	}

	logger.Info(ctx, "Self-update completed; restart to run the new version")

	return nil
}

// fetchManifest downloads and parses the published release manifest.
func fetchManifest(ctx context.Context, folder string) (*Manifest, error) {
	body, err := getFileBody(ctx, folder, ManifestFilename)
	if err != nil {
		return nil, err
	}

	var manifest Manifest
	if err = yaml.Unmarshal(body, &manifest); err != nil {
		return nil, err
	}

	return &manifest, nil
}

// applyRelease downloads the published binary and swaps it in place with
// checksum verification. go-update restores the previous binary on failure.
func applyRelease(ctx context.Context, folder string, manifest *Manifest) error {
	data, err := getFileBody(ctx, folder, manifest.Executable)
	if err != nil {
		return err
	}

	checksum, err := base64.StdEncoding.DecodeString(manifest.Checksum)
	if err != nil {
		return fmt.Errorf("decode checksum: %w", err)
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate running binary: %w", err)
	}

	options := goupdate.Options{
		TargetPath: self,
		TargetMode: DefaultFileMode,
		Checksum:   checksum,
		Hash:       DefaultChecksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return err
	}

	oldFileName := self + ".old"
	if _, err = os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	logger.InfoKV(ctx, "Replaced binary", "path", self)

	return nil
}

// getFileBody fetches a file hosted under the update folder.
func getFileBody(ctx context.Context, folder, fileName string) ([]byte, error) {
	folderURL, err := url.Parse(folder)
	if err != nil {
		return nil, err
	}

	// path.Join normalizes duplicate slashes when composing the URL path.
	folderURL.Path = path.Join(folderURL.Path, fileName)
	finalURL := folderURL.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	response, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s, %s: %w", finalURL, response.Status, errBadHTTPStatus)
	}

	return io.ReadAll(response.Body)
}

// PublishOptions are inputs for generating a release manifest.
type PublishOptions struct {
	// BinaryPath is the built gamewarden binary to describe.
	BinaryPath string
	// OutputDir is where the manifest is written (defaults to the binary's directory).
	OutputDir string
}

// Publish computes the checksum of a built binary and writes the release
// manifest next to it, ready to upload to the update folder.
func Publish(ctx context.Context, opts *PublishOptions) error {
	ctx = logger.WithName(ctx, "release")

	checksum, err := FileChecksum(opts.BinaryPath)
	if err != nil {
		return fmt.Errorf("checksum %s: %w", opts.BinaryPath, err)
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = filepath.Dir(opts.BinaryPath)
	}

	manifest := &Manifest{
		VersionNumber: version.Short(),
		Executable:    filepath.Base(opts.BinaryPath),
		Checksum:      base64.StdEncoding.EncodeToString(checksum),
	}

	contents, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	manifestPath := filepath.Join(outputDir, ManifestFilename)
	if err = os.WriteFile(manifestPath, contents, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	logger.InfoKV(ctx, "Release manifest written",
		"path", manifestPath, "version", manifest.VersionNumber)
	logger.Infof(ctx, "Upload %s and %s to the update folder",
		filepath.Base(opts.BinaryPath), ManifestFilename)

	return nil
}
