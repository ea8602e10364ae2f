package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/grabtree/grabtree/internal/apperrors"
	"github.com/grabtree/grabtree/internal/naming"
)

// OperationItem is one artifact-producing work unit: download a file, write a
// metadata sidecar, or relocate a completed download. Primary items own an
// ordered list of sidecar children (cover image, NFO document) which inherit
// the parent's resolved folder and filename prefix during execution.
type OperationItem struct {
	OptType OperationType
	Type    ItemType

	// URL is the source descriptor for download items.
	URL string
	// SourcePath is the existing on-disk file for organize (move) items.
	SourcePath string

	Subtype ImageSubtype
	Quality Quality
	Site    string
	Code    string
	Title   string
	Studio  string
	Actors  []string
	Year    int
	// Part is the episode/disc number for multi-part releases; zero means none.
	Part int
	// Headers are per-item HTTP headers merged over the transfer defaults.
	Headers map[string]string
	// ImageFormat overrides the guessed extension for image items (e.g. "png").
	ImageFormat string

	Metadata *Metadata

	desc         string
	customPrefix string
	targetPath   string
	progress     ProgressSink
	children     []*OperationItem
}

// Description returns the human-readable label used in logs and prompts.
func (i *OperationItem) Description() string {
	return i.desc
}

// AppendChild attaches a sidecar child. Only primary item types own children.
func (i *OperationItem) AppendChild(child *OperationItem) error {
	if !i.Type.SupportsChildren() {
		return apperrors.NewInvalidInputError("item", fmt.Sprintf("%s items cannot own children", i.Type))
	}
	i.children = append(i.children, child)
	return nil
}

// Children returns the owned child items in insertion order.
func (i *OperationItem) Children() []*OperationItem {
	return i.children
}

// HasChildren reports whether any children are attached.
func (i *OperationItem) HasChildren() bool {
	return len(i.children) > 0
}

// SetCustomPrefix overrides pattern-based naming for this item. Empty values
// are ignored so callers can pass through optional user input unconditionally.
func (i *OperationItem) SetCustomPrefix(prefix string) {
	if prefix == "" {
		return
	}
	i.customPrefix = prefix
}

// CustomPrefix returns the explicit filename prefix, or "" when naming is
// pattern-derived.
func (i *OperationItem) CustomPrefix() string {
	return i.customPrefix
}

// SetTargetPath records the resolved output path. Empty values are ignored.
func (i *OperationItem) SetTargetPath(path string) {
	if path == "" {
		return
	}
	i.targetPath = path
}

// TargetPath returns the resolved output path, or "" before resolution.
func (i *OperationItem) TargetPath() string {
	return i.targetPath
}

// SetProgressSink attaches the transfer progress sink. Only the execution
// engine calls this, and only for transfer-type items.
func (i *OperationItem) SetProgressSink(sink ProgressSink) {
	i.progress = sink
}

// ProgressSink returns the attached sink, or nil.
func (i *OperationItem) ProgressSink() ProgressSink {
	return i.progress
}

// Attributes bundles the descriptive fields for pattern rendering.
func (i *OperationItem) Attributes() naming.Attributes {
	return naming.Attributes{
		Code:   i.Code,
		Studio: i.Studio,
		Actors: i.Actors,
		Title:  i.Title,
		Year:   i.Year,
	}
}

// EffectiveHeaders merges the item's custom headers over the given defaults.
func (i *OperationItem) EffectiveHeaders(defaults map[string]string) map[string]string {
	merged := make(map[string]string, len(defaults)+len(i.Headers))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range i.Headers {
		merged[k] = v
	}
	return merged
}

// FilenamePrefix derives the filename prefix for this item. An explicit custom
// prefix wins; otherwise the pattern is rendered against the item's
// attributes; with no pattern the normalized title is used.
func (i *OperationItem) FilenamePrefix(pattern string) string {
	if i.customPrefix != "" {
		return naming.Normalize(i.customPrefix)
	}
	if pattern == "" {
		return naming.Normalize(i.Title)
	}
	return naming.Render(pattern, i.Attributes())
}

// TargetSubfolder renders the folder-structure pattern against the item's
// attributes. An empty render means no subfolder can be derived.
func (i *OperationItem) TargetSubfolder(pattern string) string {
	return naming.Render(pattern, i.Attributes())
}

// imageExtensions lists recognized image extensions, first entry is the default.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// imageExtension guesses the extension from an explicit format override or the
// source URL, defaulting to .jpg.
func (i *OperationItem) imageExtension() string {
	if i.ImageFormat != "" {
		return "." + strings.ToLower(strings.TrimPrefix(i.ImageFormat, "."))
	}
	lowered := strings.ToLower(i.URL)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lowered, ext) {
			return ext
		}
	}
	return imageExtensions[0]
}

// extension returns the bare file extension for the item type, or "" for
// types that carry none (torrent, unknown). Move items keep the source
// file's extension.
func (i *OperationItem) extension() string {
	switch i.Type {
	case ItemTypeVideo, ItemTypeStream:
		return ".mp4"
	case ItemTypeImage:
		return i.imageExtension()
	case ItemTypeSubtitle:
		return ".srt"
	case ItemTypeMetadata:
		return ".nfo"
	case ItemTypeMove:
		return filepath.Ext(i.SourcePath)
	default:
		return ""
	}
}

// FileSuffix derives the full filename suffix appended to the prefix. Image
// sidecars embed their subtype so siblings sharing one prefix never collide:
// "-cover.jpg", "-poster.jpg", and so on.
func (i *OperationItem) FileSuffix() string {
	ext := i.extension()
	switch i.Type {
	case ItemTypeVideo, ItemTypeStream, ItemTypeSubtitle, ItemTypeMetadata, ItemTypeMove:
		return ext
	case ItemTypeImage:
		switch i.Subtype {
		case SubtypeCover:
			return "-cover" + ext
		case SubtypePoster:
			return "-poster" + ext
		case SubtypeThumbnail:
			return "-thumbnail" + ext
		case SubtypeBackdrop:
			return "-backdrop" + ext
		default:
			return ext
		}
	default:
		return ""
	}
}

// VideoParams describes a primary video or stream item.
type VideoParams struct {
	URL     string
	Title   string
	Site    string
	Quality Quality
	Code    string
	Studio  string
	Actors  []string
	Year    int
	Part    int
	Subtype ImageSubtype
	Headers map[string]string
}

// NewVideoItem creates a DOWNLOAD item for a directly fetchable video file.
func NewVideoItem(p VideoParams) (*OperationItem, error) {
	return newPrimaryItem(ItemTypeVideo, p, false)
}

// NewStreamItem creates a DOWNLOAD item for a segmented stream. Unlike plain
// videos, streams require a site-assigned code.
func NewStreamItem(p VideoParams) (*OperationItem, error) {
	return newPrimaryItem(ItemTypeStream, p, true)
}

func newPrimaryItem(itemType ItemType, p VideoParams, requireCode bool) (*OperationItem, error) {
	if p.URL == "" {
		return nil, apperrors.NewInvalidInputError("url", "must not be empty")
	}
	if p.Title == "" {
		return nil, apperrors.NewInvalidInputError("title", "must not be empty")
	}
	if p.Site == "" {
		return nil, apperrors.NewInvalidInputError("site", "must not be empty")
	}
	if requireCode && p.Code == "" {
		return nil, apperrors.NewInvalidInputError("code", "must not be empty")
	}

	code := p.Code
	if code == "" {
		// Synthesize a stable code so organizing patterns always have one.
		code = naming.Hash(p.Title)
	}
	studio := p.Studio
	if studio == "" {
		studio = "Unknown"
	}
	year := p.Year
	if year == 0 {
		year = time.Now().Year()
	}

	return &OperationItem{
		OptType: OperationDownload,
		Type:    itemType,
		URL:     p.URL,
		Subtype: p.Subtype,
		Quality: p.Quality,
		Site:    p.Site,
		Code:    code,
		Title:   p.Title,
		Studio:  studio,
		Actors:  p.Actors,
		Year:    year,
		Part:    p.Part,
		Headers: p.Headers,
		desc:    fmt.Sprintf("%s (%s)", p.Title, p.Quality),
	}, nil
}

// NewImageItem creates a DOWNLOAD item for an image sidecar.
func NewImageItem(url, title string, subtype ImageSubtype, headers map[string]string) (*OperationItem, error) {
	if url == "" {
		return nil, apperrors.NewInvalidInputError("url", "must not be empty")
	}
	if title == "" {
		return nil, apperrors.NewInvalidInputError("title", "must not be empty")
	}

	desc := title
	if subtype != SubtypeUnknown {
		desc = fmt.Sprintf("%s (%s)", title, subtype)
	}
	return &OperationItem{
		OptType: OperationDownload,
		Type:    ItemTypeImage,
		URL:     url,
		Subtype: subtype,
		Title:   title,
		Headers: headers,
		desc:    desc,
	}, nil
}

// NewCoverItem creates a cover image sidecar item.
func NewCoverItem(url, title string, headers map[string]string) (*OperationItem, error) {
	return NewImageItem(url, title, SubtypeCover, headers)
}

// NewPosterItem creates a poster image sidecar item.
func NewPosterItem(url, title string, headers map[string]string) (*OperationItem, error) {
	return NewImageItem(url, title, SubtypePoster, headers)
}

// NewThumbnailItem creates a thumbnail image sidecar item.
func NewThumbnailItem(url, title string, headers map[string]string) (*OperationItem, error) {
	return NewImageItem(url, title, SubtypeThumbnail, headers)
}

// NewBackdropItem creates a backdrop image sidecar item.
func NewBackdropItem(url, title string, headers map[string]string) (*OperationItem, error) {
	return NewImageItem(url, title, SubtypeBackdrop, headers)
}

// NewMetadataItem creates a SAVE_METADATA item carrying the payload the
// metadata operator serializes to the resolved target path.
func NewMetadataItem(title string, metadata *Metadata) (*OperationItem, error) {
	if title == "" {
		return nil, apperrors.NewInvalidInputError("title", "must not be empty")
	}
	if metadata == nil {
		return nil, apperrors.NewInvalidInputError("metadata", "must not be nil")
	}
	return &OperationItem{
		OptType:  OperationSaveMetadata,
		Type:     ItemTypeMetadata,
		Title:    title,
		Metadata: metadata,
		desc:     fmt.Sprintf("%s (metadata)", title),
	}, nil
}

// NewMoveItem creates an ORGANIZE item that relocates an existing file.
func NewMoveItem(sourcePath, title string) (*OperationItem, error) {
	if sourcePath == "" {
		return nil, apperrors.NewInvalidInputError("source path", "must not be empty")
	}
	if title == "" {
		return nil, apperrors.NewInvalidInputError("title", "must not be empty")
	}
	return &OperationItem{
		OptType:    OperationOrganize,
		Type:       ItemTypeMove,
		SourcePath: sourcePath,
		Title:      title,
		desc:       fmt.Sprintf("%s (move)", title),
	}, nil
}
