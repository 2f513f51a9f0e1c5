// Package subtitle retrieves a remote subtitle file and persists it under the
// deterministic per-episode name the delivery layer expects.
package subtitle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/animecourier/anime-courier/internal/httpclient"
	"github.com/animecourier/anime-courier/internal/safeurl"
)

// ErrDownloadFailed wraps non-2xx and transport failures. The orchestrator
// treats it as non-fatal: video delivery proceeds and the omission is
// reported.
var ErrDownloadFailed = errors.New("subtitle download failed")

// Fetch streams subtitleURL to destDir/Episode {label}.vtt and returns the
// local path. The body is copied in chunks, never buffered whole.
func Fetch(ctx context.Context, client *http.Client, subtitleURL, episodeLabel, destDir string) (string, error) {
	if client == nil {
		client = httpclient.Default()
	}
	// Track URLs come from an external API; only http(s) is fetched.
	if !safeurl.IsHTTPOrHTTPS(subtitleURL) {
		return "", fmt.Errorf("%w: refusing scheme of %q", ErrDownloadFailed, subtitleURL)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	release, err := httpclient.Gate.Acquire(ctx, subtitleURL)
	if err != nil {
		return "", err
	}
	defer release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, subtitleURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w: HTTP %d", ErrDownloadFailed, resp.StatusCode)
	}

	path := filepath.Join(destDir, fmt.Sprintf("Episode %s.vtt", episodeLabel))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return path, nil
}
