package models

import "strings"

// ItemType classifies the artifact an operation item produces and determines
// which operator variant applies and whether a progress sink is attached.
type ItemType int

const (
	ItemTypeUnknown ItemType = iota
	ItemTypeVideo
	ItemTypeStream
	ItemTypeImage
	ItemTypeSubtitle
	ItemTypeMetadata
	ItemTypeTorrent
	ItemTypeMove
)

// String returns the string representation of the item type.
func (t ItemType) String() string {
	switch t {
	case ItemTypeVideo:
		return "video"
	case ItemTypeStream:
		return "stream"
	case ItemTypeImage:
		return "image"
	case ItemTypeSubtitle:
		return "subtitle"
	case ItemTypeMetadata:
		return "metadata"
	case ItemTypeTorrent:
		return "torrent"
	case ItemTypeMove:
		return "move"
	default:
		return "unknown"
	}
}

// SupportsChildren reports whether this item type may own child items.
// Only primary artifacts (video, stream, move) carry sidecar children.
func (t ItemType) SupportsChildren() bool {
	return t == ItemTypeVideo || t == ItemTypeStream || t == ItemTypeMove
}

// OperationType selects the operator family used to execute an item.
type OperationType int

const (
	OperationUnknown OperationType = iota
	OperationDownload
	OperationSaveMetadata
	OperationOrganize
)

// String returns the string representation of the operation type.
func (o OperationType) String() string {
	switch o {
	case OperationDownload:
		return "download"
	case OperationSaveMetadata:
		return "save_metadata"
	case OperationOrganize:
		return "organize"
	default:
		return "unknown"
	}
}

// ImageSubtype refines image items so sidecar files get distinct,
// deterministic filename suffixes next to their parent.
type ImageSubtype int

const (
	SubtypeUnknown ImageSubtype = iota
	SubtypeCover
	SubtypePoster
	SubtypeThumbnail
	SubtypeBackdrop
)

// String returns the string representation of the image subtype.
func (s ImageSubtype) String() string {
	switch s {
	case SubtypeCover:
		return "cover"
	case SubtypePoster:
		return "poster"
	case SubtypeThumbnail:
		return "thumbnail"
	case SubtypeBackdrop:
		return "backdrop"
	default:
		return "unknown"
	}
}

// ParseImageSubtype converts a subtype string to ImageSubtype.
func ParseImageSubtype(s string) ImageSubtype {
	switch strings.ToLower(s) {
	case "cover":
		return SubtypeCover
	case "poster":
		return SubtypePoster
	case "thumbnail":
		return SubtypeThumbnail
	case "backdrop":
		return SubtypeBackdrop
	default:
		return SubtypeUnknown
	}
}
