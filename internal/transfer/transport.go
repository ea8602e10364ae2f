package transfer

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// compressionTransport wraps an http.RoundTripper to advertise and
// transparently decode gzip, brotli, and zstd response encodings.
type compressionTransport struct {
	transport http.RoundTripper
}

// newCompressionTransport creates a transport that handles automatic decompression.
func newCompressionTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &compressionTransport{transport: base}
}

// RoundTrip implements http.RoundTripper.
func (t *compressionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = cloneRequest(req)

	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "gzip, br, zstd")
	}

	resp, err := t.transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	// Nothing to decompress for bodyless responses (HEAD, 204, 304).
	if resp.Body == nil || resp.Body == http.NoBody {
		return resp, nil
	}

	encoding := parseContentEncoding(resp.Header.Get("Content-Encoding"))
	if encoding == "" {
		return resp, nil
	}

	var reader io.ReadCloser
	switch encoding {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		reader = gz
	case "br":
		reader = io.NopCloser(brotli.NewReader(resp.Body))
	case "zstd":
		zr, err := zstd.NewReader(resp.Body)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}
		reader = zr.IOReadCloser()
	default:
		// Unknown encoding, hand the body through untouched.
		return resp, nil
	}

	resp.Body = &decompressReadCloser{reader: reader, originalBody: resp.Body}

	// The encoding headers no longer describe the body.
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1

	return resp, nil
}

// parseContentEncoding extracts the first encoding from a possibly
// comma-separated Content-Encoding header.
func parseContentEncoding(header string) string {
	encoding := strings.TrimSpace(header)
	if idx := strings.IndexByte(encoding, ','); idx >= 0 {
		encoding = strings.TrimSpace(encoding[:idx])
	}
	return strings.ToLower(encoding)
}

// cloneRequest returns a shallow copy of req with a deep copy of its headers.
func cloneRequest(req *http.Request) *http.Request {
	clone := req.Clone(req.Context())
	return clone
}

// decompressReadCloser reads from the decompressor and closes both it and
// the original response body.
type decompressReadCloser struct {
	reader       io.ReadCloser
	originalBody io.ReadCloser
}

func (rc *decompressReadCloser) Read(p []byte) (int, error) {
	return rc.reader.Read(p)
}

func (rc *decompressReadCloser) Close() error {
	readerErr := rc.reader.Close()
	bodyErr := rc.originalBody.Close()
	if readerErr != nil {
		return readerErr
	}
	return bodyErr
}
