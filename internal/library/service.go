// Package library integrates with an external media server for duplicate
// detection and post-download filing. Every call is best-effort: failures are
// logged and reported as "no result", never as errors, so a broken or absent
// server degrades the tool to plain downloading.
package library

import "context"

// QualityInfo summarizes an existing library copy so the user can decide
// whether a re-download is worth it.
type QualityInfo struct {
	Path       string
	Size       string
	Resolution string
	Bitrate    string
	Codec      string
	AddedDate  string
	Runtime    string
}

// Item is a media item known to the library server.
type Item struct {
	ID   string
	Name string
	Path string
	Year int
}

// DuplicateCheckResult reports an existing copy found in the library.
type DuplicateCheckResult struct {
	Exists  bool
	Item    *Item
	Quality *QualityInfo
}

// Service is the capability the execution engine talks to. Implementations
// must never propagate errors: a failed call returns nil, false or an empty
// map, and the engine continues without library integration.
type Service interface {
	// IsAvailable reports whether the server can currently be reached.
	IsAvailable(ctx context.Context) bool

	// CheckDuplicate looks for an existing copy by code (preferred) or
	// title. A nil result means no duplicate was found or the check failed.
	CheckDuplicate(ctx context.Context, title, code string) *DuplicateCheckResult

	// GetLibraryFolders maps each library name to its filesystem folders.
	GetLibraryFolders(ctx context.Context) map[string][]string

	// MoveToLibrary relocates a downloaded file into a library folder.
	MoveToLibrary(ctx context.Context, sourcePath, destFolder string) bool

	// RefreshLibrary asks the server to rescan the named library.
	RefreshLibrary(ctx context.Context, name string) bool
}
