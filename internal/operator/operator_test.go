package operator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grabtree/grabtree/internal/models"
)

type fakeFetcher struct {
	url     string
	headers map[string]string
	dest    string
	err     error
}

func (f *fakeFetcher) FetchFile(ctx context.Context, url string, headers map[string]string, dest string, sink models.ProgressSink) error {
	f.url = url
	f.headers = headers
	f.dest = dest
	return f.err
}

type fakeStreamFetcher struct {
	url  string
	dest string
	err  error
}

func (f *fakeStreamFetcher) FetchStream(ctx context.Context, url string, headers map[string]string, dest string, sink models.ProgressSink) error {
	f.url = url
	f.dest = dest
	return f.err
}

func videoItem(t *testing.T, url string) *models.OperationItem {
	t.Helper()

	item, err := models.NewVideoItem(models.VideoParams{
		URL:   url,
		Title: "Test Movie",
		Site:  "example",
		Code:  "ABC-123",
	})
	if err != nil {
		t.Fatalf("NewVideoItem: %v", err)
	}
	return item
}

func TestHTTPExecute(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	op := NewHTTP(fetcher)

	item := videoItem(t, "https://example.com/a.mp4")
	item.Headers = map[string]string{"Referer": "https://example.com/"}
	item.SetTargetPath(filepath.Join(t.TempDir(), "a.mp4"))

	if !op.Execute(context.Background(), item) {
		t.Fatal("Execute must succeed when the fetcher succeeds")
	}
	if fetcher.url != item.URL {
		t.Fatalf("Fetcher got URL %q", fetcher.url)
	}
	if fetcher.dest != item.TargetPath() {
		t.Fatalf("Fetcher got dest %q", fetcher.dest)
	}
	if fetcher.headers["Referer"] != "https://example.com/" {
		t.Fatal("Item headers must reach the fetcher")
	}
}

func TestHTTPExecuteFetchFailure(t *testing.T) {
	t.Parallel()

	op := NewHTTP(&fakeFetcher{err: errors.New("connection reset")})
	item := videoItem(t, "https://example.com/a.mp4")
	item.SetTargetPath(filepath.Join(t.TempDir(), "a.mp4"))

	if op.Execute(context.Background(), item) {
		t.Fatal("Execute must report failure when the fetcher fails")
	}
}

func TestHTTPExecuteMissingTargetPath(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	op := NewHTTP(fetcher)
	item := videoItem(t, "https://example.com/a.mp4")

	if op.Execute(context.Background(), item) {
		t.Fatal("Execute must fail when the target path was never resolved")
	}
	if fetcher.dest != "" {
		t.Fatal("Fetcher must not be invoked without a target path")
	}
}

func TestStreamExecute(t *testing.T) {
	t.Parallel()

	fetcher := &fakeStreamFetcher{}
	op := NewStream(fetcher)

	item, err := models.NewStreamItem(models.VideoParams{
		URL:   "https://example.com/playlist.m3u8",
		Title: "Test Stream",
		Site:  "example",
		Code:  "ABC-123",
	})
	if err != nil {
		t.Fatalf("NewStreamItem: %v", err)
	}
	item.SetTargetPath(filepath.Join(t.TempDir(), "a.mp4"))

	if !op.Execute(context.Background(), item) {
		t.Fatal("Execute must succeed when the fetcher succeeds")
	}
	if fetcher.url != item.URL {
		t.Fatalf("Fetcher got URL %q", fetcher.url)
	}
}

func TestStreamExecuteFetchFailure(t *testing.T) {
	t.Parallel()

	op := NewStream(&fakeStreamFetcher{err: errors.New("segment 12 failed")})
	item, err := models.NewStreamItem(models.VideoParams{
		URL:   "https://example.com/playlist.m3u8",
		Title: "Test Stream",
		Site:  "example",
		Code:  "ABC-123",
	})
	if err != nil {
		t.Fatalf("NewStreamItem: %v", err)
	}
	item.SetTargetPath(filepath.Join(t.TempDir(), "a.mp4"))

	if op.Execute(context.Background(), item) {
		t.Fatal("Execute must report failure when the fetcher fails")
	}
}

func TestMetadataWriterExecute(t *testing.T) {
	t.Parallel()

	item, err := models.NewMetadataItem("Test Movie", &models.Metadata{
		Title:  "Test Movie",
		Code:   "ABC-123",
		Studio: "Example Studio",
	})
	if err != nil {
		t.Fatalf("NewMetadataItem: %v", err)
	}
	target := filepath.Join(t.TempDir(), "ABC-123.nfo")
	item.SetTargetPath(target)

	if !NewMetadataWriter().Execute(context.Background(), item) {
		t.Fatal("Execute must succeed")
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "<movie>") {
		t.Fatal("NFO must contain a movie element")
	}
	if !strings.Contains(content, "<title>Test Movie</title>") {
		t.Fatal("NFO must contain the title")
	}
	if !strings.Contains(content, "Example Studio") {
		t.Fatal("NFO must contain the studio")
	}
}

func TestMetadataWriterRejectsNonMetadataItem(t *testing.T) {
	t.Parallel()

	item := videoItem(t, "https://example.com/a.mp4")
	item.SetTargetPath(filepath.Join(t.TempDir(), "a.nfo"))

	if NewMetadataWriter().Execute(context.Background(), item) {
		t.Fatal("Execute must fail for a non-metadata item")
	}
}

func TestMetadataWriterRequiresTargetPath(t *testing.T) {
	t.Parallel()

	item, err := models.NewMetadataItem("Test Movie", &models.Metadata{Title: "Test Movie"})
	if err != nil {
		t.Fatalf("NewMetadataItem: %v", err)
	}

	if NewMetadataWriter().Execute(context.Background(), item) {
		t.Fatal("Execute must fail without a resolved target path")
	}
}

func TestNoopExecute(t *testing.T) {
	t.Parallel()

	item := videoItem(t, "https://example.com/a.mp4")
	if !NewNoop().Execute(context.Background(), item) {
		t.Fatal("Noop must always succeed")
	}
}
