// Package health offers a startup preflight against the catalogue API, so a
// dead or misconfigured upstream is reported before the first user request.
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/animecourier/anime-courier/internal/httpclient"
)

// CheckCatalogue issues a throwaway search against the catalogue base URL.
// Returns nil when the API answers 200; body content is not inspected.
func CheckCatalogue(ctx context.Context, baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("no catalogue API URL configured")
	}
	u := baseURL + "/search?keyword=" + url.QueryEscape("ping")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := httpclient.Default().Do(req)
	if err != nil {
		return fmt.Errorf("catalogue unreachable: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalogue returned HTTP %d", resp.StatusCode)
	}
	return nil
}
