// Package safeurl guards URLs that arrive from the catalogue API before they
// are fetched or handed to external tools as arguments.
package safeurl

import "net/url"

// IsHTTPOrHTTPS returns true if u is a valid URL with scheme http or https.
// Anything else (file://, ftp://, data:, a bare path) is rejected: stream and
// track URLs come from an upstream we don't control.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	s := parsed.Scheme
	return s == "http" || s == "https"
}
