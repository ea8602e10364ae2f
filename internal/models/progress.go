package models

// ProgressInfo is a snapshot of an in-flight transfer, delivered to the
// progress sink attached to the item being transferred.
type ProgressInfo struct {
	// Downloaded is the number of bytes received so far.
	Downloaded int64
	// TotalSize is the expected total in bytes. Zero means indeterminate.
	TotalSize int64
	// Speed is the observed transfer rate in bytes per second.
	Speed float64
	// StatusMessage optionally describes the current phase (e.g. "merging segments").
	StatusMessage string
}

// Percentage returns completion as a value in [0, 100], or 0 when the total
// size is indeterminate.
func (p ProgressInfo) Percentage() float64 {
	if p.TotalSize <= 0 {
		return 0
	}
	return float64(p.Downloaded) / float64(p.TotalSize) * 100
}

// ProgressSink receives transfer progress updates. A sink is owned exclusively
// by the item it was attached to and is never shared across siblings.
type ProgressSink func(ProgressInfo)
