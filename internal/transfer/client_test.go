package transfer

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/grabtree/grabtree/internal/models"
	"github.com/grabtree/grabtree/internal/testutil"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	return NewWithHTTPClient(&http.Client{Transport: newCompressionTransport(http.DefaultTransport)}, 2)
}

func TestFetchFile(t *testing.T) {
	t.Parallel()

	var gotReferer atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer.Store(r.Header.Get("Referer"))
		w.Write([]byte("video bytes"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "a.mp4")
	headers := map[string]string{"Referer": "https://example.com/"}

	var updates atomic.Int32
	sink := func(info models.ProgressInfo) { updates.Add(1) }

	if err := testClient(t).FetchFile(context.Background(), server.URL, headers, dest, sink); err != nil {
		t.Fatalf("FetchFile: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "video bytes" {
		t.Fatalf("Unexpected content %q", data)
	}
	if gotReferer.Load() != "https://example.com/" {
		t.Fatal("Per-item headers must be sent with the request")
	}
	if updates.Load() == 0 {
		t.Fatal("Progress sink must observe the completed transfer")
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Fatal("Temporary file must not survive a successful fetch")
	}
}

func TestFetchFileServerError(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "a.mp4")
	err := testClient(t).FetchFile(context.Background(), server.URL, nil, dest, nil)
	if err == nil {
		t.Fatal("Expected an error for a 500 response")
	}
	if requests.Load() < 2 {
		t.Fatalf("Expected the fetch to retry, saw %d requests", requests.Load())
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatal("No file must be left behind after a failed fetch")
	}
}

func TestFetchFileRetrySucceeds(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "a.mp4")
	if err := testClient(t).FetchFile(context.Background(), server.URL, nil, dest, nil); err != nil {
		t.Fatalf("FetchFile: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "recovered" {
		t.Fatalf("Unexpected content %q", data)
	}
}

func TestFetchFileGzipResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Encoding") == "" {
			t.Error("Client must advertise supported encodings")
		}
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		gz.Write([]byte("compressed payload"))
		gz.Close()
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "a.bin")
	if err := testClient(t).FetchFile(context.Background(), server.URL, nil, dest, nil); err != nil {
		t.Fatalf("FetchFile: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "compressed payload" {
		t.Fatalf("Expected the body decompressed on disk, got %q", data)
	}
}

func TestResolveSegmentURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		playlist string
		segment  string
		want     string
	}{
		{"relative", "https://cdn.example.com/v/playlist.m3u8", "seg0.ts", "https://cdn.example.com/v/seg0.ts"},
		{"rooted", "https://cdn.example.com/v/playlist.m3u8", "/other/seg0.ts", "https://cdn.example.com/other/seg0.ts"},
		{"absolute", "https://cdn.example.com/v/playlist.m3u8", "https://mirror.example.com/seg0.ts", "https://mirror.example.com/seg0.ts"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := resolveSegmentURL(tc.playlist, tc.segment)
			if err != nil {
				t.Fatalf("resolveSegmentURL: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParsePlaylist(t *testing.T) {
	t.Parallel()

	playlist := "#EXTM3U\n#EXT-X-VERSION:3\n#EXTINF:4.0,\nseg0.ts\n#EXTINF:4.0,\nseg1.ts\n\n#EXT-X-ENDLIST\n"
	segments, err := parsePlaylist(playlist, "https://cdn.example.com/v/playlist.m3u8")
	if err != nil {
		t.Fatalf("parsePlaylist: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("Expected 2 segments, got %d", len(segments))
	}
	if segments[0] != "https://cdn.example.com/v/seg0.ts" {
		t.Fatalf("Unexpected first segment %q", segments[0])
	}
}

func TestParsePlaylistWithoutEndTag(t *testing.T) {
	t.Parallel()

	playlist := testutil.GeneratePlaylist(testutil.PlaylistOptions{
		SegmentURIs: []string{"seg0.ts", "seg1.ts"},
		OmitEndTag:  true,
	})
	segments, err := parsePlaylist(playlist, "https://cdn.example.com/v/playlist.m3u8")
	if err != nil {
		t.Fatalf("parsePlaylist: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("Expected 2 segments, got %d", len(segments))
	}
}

func TestParsePlaylistEmpty(t *testing.T) {
	t.Parallel()

	if _, err := parsePlaylist("#EXTM3U\n#EXT-X-ENDLIST\n", "https://example.com/p.m3u8"); err == nil {
		t.Fatal("Expected an error for a playlist with no segments")
	}
}
