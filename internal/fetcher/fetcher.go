package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/cenkalti/backoff/v4"

	"github.com/gamewarden/gamewarden/internal/logger"
	"github.com/gamewarden/gamewarden/internal/resolver"
)

var errBadHTTPStatus = errors.New("unexpected http status")

// Fetcher streams a build's package archive to local storage. Packages are
// large (tens to hundreds of MB), so the body is copied straight to disk and
// never buffered in memory.
type Fetcher struct {
	client  *http.Client
	retries uint64
}

// New returns a Fetcher. A nil client falls back to http.DefaultClient;
// retries is the number of extra attempts on transient failures.
func New(client *http.Client, retries uint64) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}

	return &Fetcher{client: client, retries: retries}
}

// Fetch downloads the build archive to destPath, overwriting any existing
// file there. Transient network failures and server errors are retried with
// exponential backoff until the context deadline; write failures are not.
// Completion is only signaled after the file reports a successful close.
func (f *Fetcher) Fetch(ctx context.Context, build *resolver.Build, destPath string) error {
	attempt := 0
	operation := func() error {
		attempt++
		if attempt > 1 {
			logger.InfoKV(ctx, "Retrying download", "attempt", attempt)
		}

		return f.fetchOnce(ctx, build.DownloadURL, destPath)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), f.retries),
		ctx,
	)

	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("fetch %s: %w", build.DownloadURL, err)
	}

	return nil
}

// fetchOnce performs a single streaming download attempt.
func (f *Fetcher) fetchOnce(ctx context.Context, downloadURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, http.NoBody)
	if err != nil {
		return backoff.Permanent(err)
	}

	response, err := f.client.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("%s: %w", response.Status, errBadHTTPStatus)
		if response.StatusCode >= http.StatusInternalServerError {
			return statusErr
		}

		return backoff.Permanent(statusErr)
	}

	outputFile, err := os.Create(filepath.Clean(destPath))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create %s: %w", destPath, err))
	}

	written, err := io.Copy(outputFile, response.Body)
	if err != nil {
		_ = outputFile.Close()

		// A torn transfer leaves a partial file behind; the next attempt
		// truncates it via os.Create.
		return fmt.Errorf("write %s: %w", destPath, err)
	}

	if err = outputFile.Close(); err != nil {
		return backoff.Permanent(fmt.Errorf("close %s: %w", destPath, err))
	}

	logger.InfoKV(ctx, "Downloaded archive", "path", destPath, "bytes", written)

	return nil
}
