package httpclient

import (
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// AcceptEncoding is what a current desktop browser advertises.
const AcceptEncoding = "gzip, deflate, br"

// MaxBodyBytes caps how much of a decoded response is read.
const MaxBodyBytes = 8 << 20

// DecodeBody returns a reader that undoes the response's Content-Encoding.
// The caller still closes resp.Body.
func DecodeBody(resp *http.Response) (io.Reader, error) {
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "", "identity":
		return resp.Body, nil
	case "br":
		return brotli.NewReader(resp.Body), nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		return zr, nil
	case "deflate":
		return flate.NewReader(resp.Body), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}

// ReadBody decodes and reads up to MaxBodyBytes of the response body.
func ReadBody(resp *http.Response) ([]byte, error) {
	r, err := DecodeBody(resp)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(io.LimitReader(r, MaxBodyBytes))
}

// DrainBody decodes and discards the response body, returning the decoded size.
func DrainBody(resp *http.Response) (int64, error) {
	r, err := DecodeBody(resp)
	if err != nil {
		return 0, err
	}
	return io.Copy(io.Discard, io.LimitReader(r, MaxBodyBytes))
}
