// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/moby/go-archive"

	"github.com/boltstep/boltstep/internal/jobspec"
	"github.com/boltstep/boltstep/internal/workspace"
)

type (
	// TarballFetcher downloads and extracts a project archive.
	TarballFetcher struct {
		ws         *workspace.Workspace
		httpClient *http.Client
		userAgent  string
	}

	// TarballOption configures a TarballFetcher.
	TarballOption func(*TarballFetcher)
)

// WithHTTPClient sets the client used for archive downloads.
func WithHTTPClient(c *http.Client) TarballOption {
	return func(f *TarballFetcher) {
		f.httpClient = c
	}
}

// NewTarballFetcher creates a fetcher that stages downloads in ws.
func NewTarballFetcher(ws *workspace.Workspace, opts ...TarballOption) *TarballFetcher {
	f := &TarballFetcher{
		ws:         ws,
		httpClient: http.DefaultClient,
		userAgent:  "boltstep/dev",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads src.Source (http, https, file URL or local path) and
// extracts it into dest. A failed extraction removes dest.
func (f *TarballFetcher) Fetch(ctx context.Context, src jobspec.ProjectSource, dest string) (*Project, error) {
	archivePath, cleanup, err := f.stage(ctx, src.Source)
	if err != nil {
		return nil, &FetchError{Op: "download", Source: RedactSource(src.Source), Err: err}
	}
	defer cleanup()

	if err := extract(archivePath, dest); err != nil {
		_ = os.RemoveAll(dest)
		return nil, &FetchError{Op: "extract", Source: RedactSource(src.Source), Err: err}
	}
	return &Project{Dir: dest, Kind: jobspec.ProjectTarball}, nil
}

// stage returns a local path to the archive and a cleanup func that removes
// any downloaded copy.
func (f *TarballFetcher) stage(ctx context.Context, source string) (string, func(), error) {
	noop := func() {}

	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Bare paths, including Windows drive letters.
		return source, noop, nil
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return u.Path, noop, nil
	case "http", "https":
		path := f.ws.DownloadPath()
		if err := f.download(ctx, source, path); err != nil {
			_ = os.Remove(path)
			return "", noop, err
		}
		return path, func() { _ = os.Remove(path) }, nil
	default:
		return "", noop, fmt.Errorf("unsupported archive URL scheme %q", u.Scheme)
	}
}

func (f *TarballFetcher) download(ctx context.Context, source, path string) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DownloadStatusError{URL: RedactSource(source), Status: resp.StatusCode}
	}

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, workspace.ArtifactFileMode)
	if err != nil {
		return fmt.Errorf("creating download file: %w", err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("writing download file: %w", err)
	}
	return nil
}

// extract unpacks a tar archive, compressed or not, into dest.
func extract(archivePath, dest string) error {
	in, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("creating project directory: %w", err)
	}
	if err := archive.Untar(in, dest, &archive.TarOptions{NoLchown: true}); err != nil {
		return fmt.Errorf("unpacking archive: %w", err)
	}
	return nil
}

// RedactSource strips credentials and query strings from URL sources before
// they are logged.
func RedactSource(source string) string {
	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return source
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
