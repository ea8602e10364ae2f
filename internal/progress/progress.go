// Package progress provides progress sinks for transfer operations: a console
// sink rendering an in-place progress bar, and a silent sink for
// non-interactive runs.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grabtree/grabtree/internal/models"
)

const barWidth = 50

// FormatBytes renders a byte count as a human-readable string.
func FormatBytes(bytes int64) string {
	size := float64(bytes)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024.0 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024.0
	}
	return fmt.Sprintf("%.1f TB", size)
}

// NewConsoleSink returns a sink that renders an in-place progress bar to w.
// A nil writer defaults to stdout.
func NewConsoleSink(w io.Writer) models.ProgressSink {
	if w == nil {
		w = os.Stdout
	}
	return func(info models.ProgressInfo) {
		if info.TotalSize > 0 {
			filled := int(float64(barWidth) * float64(info.Downloaded) / float64(info.TotalSize))
			if filled > barWidth {
				filled = barWidth
			}
			bar := strings.Repeat("█", filled) + strings.Repeat("-", barWidth-filled)

			fmt.Fprintf(w, "\r[%s] %.1f%% (%s/%s) %s/s",
				bar,
				info.Percentage(),
				FormatBytes(info.Downloaded),
				FormatBytes(info.TotalSize),
				FormatBytes(int64(info.Speed)),
			)
			if info.Downloaded >= info.TotalSize {
				fmt.Fprintln(w)
			}
			return
		}

		// Indeterminate total: show running byte count only.
		msg := info.StatusMessage
		if msg == "" {
			msg = "downloading"
		}
		fmt.Fprintf(w, "\r%s... %s %s/s", msg, FormatBytes(info.Downloaded), FormatBytes(int64(info.Speed)))
	}
}

// NewSilentSink returns a sink that discards all updates.
func NewSilentSink() models.ProgressSink {
	return func(models.ProgressInfo) {}
}
