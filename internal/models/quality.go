package models

import "strings"

// Quality represents the video quality of a downloadable item.
// It is a hint for operator selection display and duplicate comparison,
// never a hard requirement.
type Quality int

const (
	QualityUnknown Quality = iota
	Quality360p
	Quality480p
	Quality720p
	Quality1080p
	Quality2160p // 4K
)

// String returns the string representation of the quality.
func (q Quality) String() string {
	switch q {
	case Quality360p:
		return "360p"
	case Quality480p:
		return "480p"
	case Quality720p:
		return "720p"
	case Quality1080p:
		return "1080p"
	case Quality2160p:
		return "2160p"
	default:
		return "unknown"
	}
}

// ParseQuality converts a quality string to Quality.
func ParseQuality(qualityStr string) Quality {
	switch strings.ToLower(qualityStr) {
	case "360p":
		return Quality360p
	case "480p":
		return Quality480p
	case "720p":
		return Quality720p
	case "1080p":
		return Quality1080p
	case "2160p", "4k":
		return Quality2160p
	default:
		return QualityUnknown
	}
}

// QualityFromHeight maps a pixel height reported by a media server to the
// nearest known quality bucket.
func QualityFromHeight(height int) Quality {
	switch {
	case height >= 2000:
		return Quality2160p
	case height >= 1000:
		return Quality1080p
	case height >= 700:
		return Quality720p
	case height >= 460:
		return Quality480p
	case height >= 340:
		return Quality360p
	default:
		return QualityUnknown
	}
}
