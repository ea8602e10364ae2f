package resolver

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/grabtree/grabtree/internal/apperrors"
	"github.com/grabtree/grabtree/internal/config"
	"github.com/grabtree/grabtree/internal/models"
)

func testConfig(t *testing.T, autoOrganize bool) *config.Config {
	t.Helper()

	cfg := &config.Config{}
	cfg.Download.OutputDir = t.TempDir()
	cfg.Organize.AutoOrganize = autoOrganize
	cfg.Organize.FolderStructure = "{studio}"
	cfg.Organize.NamingPattern = "{code}"
	return cfg
}

func videoItem(t *testing.T) *models.OperationItem {
	t.Helper()

	item, err := models.NewVideoItem(models.VideoParams{
		URL:    "https://example.com/v/1.mp4",
		Title:  "Some Title",
		Site:   "example",
		Code:   "ABC-123",
		Studio: "ABC",
	})
	if err != nil {
		t.Fatalf("NewVideoItem: %v", err)
	}
	return item
}

func TestResolveWithoutOrganizing(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, false)
	res, err := New(cfg).Resolve(videoItem(t))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if res.Folder != cfg.Download.OutputDir {
		t.Fatalf("Expected folder %s, got %s", cfg.Download.OutputDir, res.Folder)
	}
	if res.Prefix != "Some Title" {
		t.Fatalf("Expected title-derived prefix, got %q", res.Prefix)
	}
	if res.Path != filepath.Join(cfg.Download.OutputDir, "Some Title.mp4") {
		t.Fatalf("Unexpected path: %s", res.Path)
	}
}

func TestResolveWithOrganizing(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, true)
	item := videoItem(t)
	res, err := New(cfg).Resolve(item)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	want := filepath.Join(cfg.Download.OutputDir, "ABC", "ABC-123.mp4")
	if res.Path != want {
		t.Fatalf("Expected %s, got %s", want, res.Path)
	}
	if item.TargetPath() != want {
		t.Fatalf("Target path not recorded on item, got %q", item.TargetPath())
	}

	// Resolution creates the destination folder.
	info, err := os.Stat(res.Folder)
	if err != nil || !info.IsDir() {
		t.Fatalf("Expected destination folder to exist: %v", err)
	}
}

func TestResolveCustomPrefixBypassesOrganizing(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, true)
	item := videoItem(t)
	item.SetCustomPrefix("My Pick")

	res, err := New(cfg).Resolve(item)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Folder != cfg.Download.OutputDir {
		t.Fatalf("Custom prefix must bypass organizing, got folder %s", res.Folder)
	}
	if res.Path != filepath.Join(cfg.Download.OutputDir, "My Pick.mp4") {
		t.Fatalf("Unexpected path: %s", res.Path)
	}
}

func TestResolveFolderPatternFallback(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, true)
	cfg.Organize.FolderStructure = "{actors}" // renders empty for this item
	cfg.Organize.NamingPattern = "{code}"

	res, err := New(cfg).Resolve(videoItem(t))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Folder != cfg.Download.OutputDir {
		t.Fatalf("Expected fallback to output dir, got %s", res.Folder)
	}
}

func TestResolveEmptyPrefixFails(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, true)
	cfg.Organize.NamingPattern = "{actors}" // renders empty for this item

	_, err := New(cfg).Resolve(videoItem(t))
	if !errors.Is(err, &apperrors.ErrInvalidInput{}) {
		t.Fatalf("Expected ErrInvalidInput for empty prefix, got %v", err)
	}
}

func TestResolveIdempotent(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, true)
	item := videoItem(t)
	r := New(cfg)

	first, err := r.Resolve(item)
	if err != nil {
		t.Fatalf("First resolve: %v", err)
	}
	second, err := r.Resolve(item)
	if err != nil {
		t.Fatalf("Second resolve: %v", err)
	}
	if first.Path != second.Path {
		t.Fatalf("Resolution must be idempotent: %s vs %s", first.Path, second.Path)
	}
}

func TestResolveExistingDestination(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, true)
	item := videoItem(t)
	r := New(cfg)

	res, err := r.Resolve(item)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := os.WriteFile(res.Path, []byte("existing"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// Without overwrite the collision aborts the node.
	if _, err := r.Resolve(videoItem(t)); !errors.Is(err, &apperrors.ErrAlreadyExists{}) {
		t.Fatalf("Expected ErrAlreadyExists, got %v", err)
	}

	// With overwrite enabled the same resolution succeeds.
	cfg.Download.OverwriteExisting = true
	if _, err := New(cfg).Resolve(videoItem(t)); err != nil {
		t.Fatalf("Resolve with overwrite: %v", err)
	}
}

func TestResolveChildInheritsFolderAndPrefix(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, true)
	r := New(cfg)

	parent := videoItem(t)
	parentRes, err := r.Resolve(parent)
	if err != nil {
		t.Fatalf("Resolve parent: %v", err)
	}

	cover, err := models.NewCoverItem("https://example.com/c.jpg", "Some Title", nil)
	if err != nil {
		t.Fatalf("NewCoverItem: %v", err)
	}
	nfo, err := models.NewMetadataItem("Some Title", &models.Metadata{Title: "Some Title"})
	if err != nil {
		t.Fatalf("NewMetadataItem: %v", err)
	}

	coverRes, err := r.ResolveChild(cover, parentRes)
	if err != nil {
		t.Fatalf("ResolveChild cover: %v", err)
	}
	nfoRes, err := r.ResolveChild(nfo, parentRes)
	if err != nil {
		t.Fatalf("ResolveChild nfo: %v", err)
	}

	if coverRes.Folder != parentRes.Folder || nfoRes.Folder != parentRes.Folder {
		t.Fatal("Children must reuse the parent's folder")
	}
	if coverRes.Prefix != parentRes.Prefix || nfoRes.Prefix != parentRes.Prefix {
		t.Fatal("Children must reuse the parent's prefix")
	}
	if want := filepath.Join(parentRes.Folder, "ABC-123-cover.jpg"); coverRes.Path != want {
		t.Fatalf("Expected %s, got %s", want, coverRes.Path)
	}
	if want := filepath.Join(parentRes.Folder, "ABC-123.nfo"); nfoRes.Path != want {
		t.Fatalf("Expected %s, got %s", want, nfoRes.Path)
	}
}

func TestResolveChildRequiresResolvedParent(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, true)
	cover, err := models.NewCoverItem("https://example.com/c.jpg", "t", nil)
	if err != nil {
		t.Fatalf("NewCoverItem: %v", err)
	}

	_, err = New(cfg).ResolveChild(cover, Resolution{})
	if !errors.Is(err, &apperrors.ErrInvalidInput{}) {
		t.Fatalf("Expected ErrInvalidInput, got %v", err)
	}
}
