package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"

	"github.com/gamewarden/gamewarden/internal/logger"
)

var (
	errBadHTTPStatus = errors.New("unexpected http status")
	errNoBuildToken  = errors.New("no build token found in index")

	// buildTokenPattern matches a published build path segment: a long
	// lowercase-hex token followed by a slash. The index lists builds
	// newest-first, so the first match is the latest build.
	buildTokenPattern = regexp.MustCompile(`([0-9a-f]{40,})/`)
)

// Build identifies a specific published build together with its derived
// download location. It is produced once per update cycle and not persisted.
type Build struct {
	// Token is the opaque build identifier extracted from the index.
	Token string
	// DownloadURL is where the build's package archive can be fetched.
	DownloadURL string
}

// Resolver discovers the newest available build from a remote build index.
type Resolver struct {
	indexURL        string
	archiveFilename string
	client          *http.Client
}

// New returns a Resolver querying the given index for the given archive.
// A nil client falls back to http.DefaultClient.
func New(indexURL, archiveFilename string, client *http.Client) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}

	return &Resolver{
		indexURL:        indexURL,
		archiveFilename: archiveFilename,
		client:          client,
	}
}

// Resolve fetches the build index and returns the newest build reference.
// It is a pure query: one network round trip, no retries, no side effects.
func (r *Resolver) Resolve(ctx context.Context) (*Build, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.indexURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build index request: %w", err)
	}

	response, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch build index: %w", err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s, %s: %w", r.indexURL, response.Status, errBadHTTPStatus)
	}

	document, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("read build index: %w", err)
	}

	match := buildTokenPattern.FindSubmatch(document)
	if match == nil {
		return nil, fmt.Errorf("%s: %w", r.indexURL, errNoBuildToken)
	}

	token := string(match[1])

	downloadURL, err := r.downloadURL(token)
	if err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Resolved latest build", "token", token, "url", downloadURL)

	return &Build{Token: token, DownloadURL: downloadURL}, nil
}

// downloadURL appends the build token and archive filename to the index URL.
func (r *Resolver) downloadURL(token string) (string, error) {
	u, err := url.Parse(r.indexURL)
	if err != nil {
		return "", fmt.Errorf("parse index URL: %w", err)
	}

	// path.Join normalizes duplicate slashes when composing the URL path.
	u.Path = path.Join(u.Path, token, r.archiveFilename)

	return u.String(), nil
}
