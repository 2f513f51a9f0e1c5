package httpclient

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// decodingTransport advertises gzip+brotli and transparently decodes the
// response body. The catalogue API sits behind CDN fronts that serve br to
// browsers; advertising it avoids the occasional identity-refusing edge.
type decodingTransport struct {
	next http.RoundTripper
}

func (t *decodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}
	if req.Header.Get("Accept-Encoding") == "" {
		// Setting the header manually disables net/http's transparent gzip,
		// so both encodings are handled here.
		req.Header.Set("Accept-Encoding", "gzip, br")
	}
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		resp.Body = &decodedBody{r: gz, underlying: resp.Body}
	case "br":
		resp.Body = &decodedBody{r: brotli.NewReader(resp.Body), underlying: resp.Body}
	default:
		return resp, nil
	}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	return resp, nil
}

// decodedBody reads from the decompressor but closes the network body.
type decodedBody struct {
	r          io.Reader
	underlying io.ReadCloser
}

func (b *decodedBody) Read(p []byte) (int, error) { return b.r.Read(p) }

func (b *decodedBody) Close() error {
	if c, ok := b.r.(io.Closer); ok {
		c.Close()
	}
	return b.underlying.Close()
}
