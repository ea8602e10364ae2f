// Package resolver computes the on-disk destination for an operation item.
// Roots derive their folder and filename prefix from configuration patterns;
// children always reuse the parent's resolved folder and prefix and differ
// only by file-type suffix, so siblings can never collide.
package resolver

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/grabtree/grabtree/internal/apperrors"
	"github.com/grabtree/grabtree/internal/config"
	"github.com/grabtree/grabtree/internal/models"
)

// Resolution is the outcome of resolving one item: the destination folder,
// the filename prefix shared with any children, and the final file path.
type Resolution struct {
	Folder string
	Prefix string
	Path   string
}

// Resolver derives target paths from the download and organize configuration.
type Resolver struct {
	download config.DownloadConfig
	organize config.OrganizeConfig
}

// New creates a Resolver bound to the given configuration.
func New(cfg *config.Config) *Resolver {
	return &Resolver{
		download: cfg.Download,
		organize: cfg.Organize,
	}
}

// Resolve computes the destination for a root item and records it on the item.
func (r *Resolver) Resolve(item *models.OperationItem) (Resolution, error) {
	res, err := r.resolve(item, "", "")
	if err != nil {
		return Resolution{}, err
	}
	item.SetTargetPath(res.Path)
	return res, nil
}

// ResolveChild computes the destination for a child item, forcing the
// parent's already-resolved folder and filename prefix, and records it on
// the item.
func (r *Resolver) ResolveChild(item *models.OperationItem, parent Resolution) (Resolution, error) {
	if parent.Folder == "" || parent.Prefix == "" {
		return Resolution{}, apperrors.NewInvalidInputError("parent resolution", "folder and prefix must be resolved first")
	}
	res, err := r.resolve(item, parent.Folder, parent.Prefix)
	if err != nil {
		return Resolution{}, err
	}
	item.SetTargetPath(res.Path)
	return res, nil
}

func (r *Resolver) resolve(item *models.OperationItem, targetFolder, inheritedPrefix string) (Resolution, error) {
	folder := targetFolder
	if folder == "" {
		switch {
		case item.CustomPrefix() != "":
			// Explicit naming wins over pattern-based organizing.
			folder = r.download.OutputDir
		case r.organize.AutoOrganize:
			sub := item.TargetSubfolder(r.organize.FolderStructure)
			if sub == "" {
				folder = r.download.OutputDir
			} else {
				folder = filepath.Join(r.download.OutputDir, sub)
			}
		default:
			folder = r.download.OutputDir
		}
	}

	var prefix string
	switch {
	case inheritedPrefix != "":
		prefix = inheritedPrefix
	case item.CustomPrefix() != "":
		prefix = item.FilenamePrefix("")
	case r.organize.AutoOrganize:
		prefix = item.FilenamePrefix(r.organize.NamingPattern)
	default:
		prefix = item.FilenamePrefix("")
	}
	if prefix == "" {
		return Resolution{}, apperrors.NewInvalidInputError("filename prefix", "rendered to empty string")
	}

	filename := prefix + item.FileSuffix()
	path := filepath.Join(folder, filename)

	if _, err := os.Stat(path); err == nil && !r.download.OverwriteExisting {
		return Resolution{}, apperrors.NewAlreadyExistsError(path)
	}

	// The destination folder is guaranteed to exist before the operator runs.
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return Resolution{}, fmt.Errorf("creating destination folder: %w", apperrors.NewPermissionDeniedError(folder, err))
	}

	return Resolution{Folder: folder, Prefix: prefix, Path: path}, nil
}
