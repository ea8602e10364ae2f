package transfer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/grabtree/grabtree/internal/models"
	"github.com/grabtree/grabtree/internal/testutil"
)

// streamServer serves a playlist at /playlist.m3u8 and numbered segments at
// /seg<i>.ts containing "segment-<i>;".
func streamServer(t *testing.T, segmentCount int, failSegment int) *httptest.Server {
	t.Helper()

	playlist := testutil.GeneratePlaylist(testutil.PlaylistOptions{
		SegmentURIs: testutil.NumberedSegmentURIs(segmentCount),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/playlist.m3u8", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(playlist))
	})
	for i := 0; i < segmentCount; i++ {
		i := i
		mux.HandleFunc(fmt.Sprintf("/seg%d.ts", i), func(w http.ResponseWriter, r *http.Request) {
			if i == failSegment {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			fmt.Fprintf(w, "segment-%d;", i)
		})
	}

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestFetchStream(t *testing.T) {
	t.Parallel()

	server := streamServer(t, 5, -1)
	dest := filepath.Join(t.TempDir(), "movie.mp4")

	var lastProgress atomic.Value
	sink := func(info models.ProgressInfo) { lastProgress.Store(info) }

	client := testClient(t)
	if err := client.FetchStream(context.Background(), server.URL+"/playlist.m3u8", nil, dest, sink); err != nil {
		t.Fatalf("FetchStream: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "segment-0;segment-1;segment-2;segment-3;segment-4;"
	if string(data) != want {
		t.Fatalf("Merged content: got %q, want %q", data, want)
	}

	// The scratch directory is removed after a successful merge.
	entries, err := os.ReadDir(filepath.Dir(dest))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "movie.mp4" {
		t.Fatalf("Expected only the merged file to remain, found %d entries", len(entries))
	}

	if lastProgress.Load() == nil {
		t.Fatal("Progress sink must observe segment completion")
	}
}

func TestFetchStreamSegmentFailure(t *testing.T) {
	t.Parallel()

	server := streamServer(t, 5, 2)
	dest := filepath.Join(t.TempDir(), "movie.mp4")

	err := testClient(t).FetchStream(context.Background(), server.URL+"/playlist.m3u8", nil, dest, nil)
	if err == nil {
		t.Fatal("Expected an error when a segment cannot be fetched")
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatal("No merged file must exist after a failed stream fetch")
	}
}

func TestFetchStreamReusesCompletedSegments(t *testing.T) {
	t.Parallel()

	var segmentRequests atomic.Int32
	mux := http.NewServeMux()
	playlist := testutil.GeneratePlaylist(testutil.PlaylistOptions{
		SegmentURIs: []string{"seg0.ts", "seg1.ts"},
	})
	mux.HandleFunc("/playlist.m3u8", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(playlist))
	})
	mux.HandleFunc("/seg0.ts", func(w http.ResponseWriter, r *http.Request) {
		segmentRequests.Add(1)
		w.Write([]byte("first;"))
	})
	mux.HandleFunc("/seg1.ts", func(w http.ResponseWriter, r *http.Request) {
		segmentRequests.Add(1)
		w.Write([]byte("second;"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "movie.mp4")

	// Simulate an interrupted previous run that completed segment 0.
	client := testClient(t)
	playlistURL := server.URL + "/playlist.m3u8"
	body, err := client.fetchPlaylist(context.Background(), playlistURL, nil)
	if err != nil {
		t.Fatalf("fetchPlaylist: %v", err)
	}
	scratchDir := scratchDirFor(dest, body)
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(segmentPath(scratchDir, 0), []byte("first;"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	before := segmentRequests.Load()

	if err := client.FetchStream(context.Background(), playlistURL, nil, dest, nil); err != nil {
		t.Fatalf("FetchStream: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "first;second;" {
		t.Fatalf("Merged content: got %q", data)
	}
	if got := segmentRequests.Load() - before; got != 1 {
		t.Fatalf("Expected 1 segment request after resume, saw %d", got)
	}
}

func TestMergeSegmentsMissingSegment(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(segmentPath(dir, 0), []byte("only"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	dest := filepath.Join(dir, "out.mp4")
	if _, err := mergeSegments(dir, 2, dest); err == nil {
		t.Fatal("Expected an error when a segment file is missing")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatal("No merged file must exist after a failed merge")
	}
}
