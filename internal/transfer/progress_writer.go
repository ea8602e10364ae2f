package transfer

import (
	"io"
	"time"

	"github.com/grabtree/grabtree/internal/models"
)

// progressUpdateInterval throttles sink updates so a fast transfer does not
// flood the console.
const progressUpdateInterval = 200 * time.Millisecond

// progressWriter counts bytes flowing to the underlying writer and reports
// them to the sink with an observed transfer rate.
type progressWriter struct {
	inner      io.Writer
	sink       models.ProgressSink
	total      int64
	written    int64
	started    time.Time
	lastUpdate time.Time
}

// newProgressWriter wraps w. A total of -1 (unknown Content-Length) is
// reported as 0, meaning indeterminate. A nil sink disables reporting.
func newProgressWriter(w io.Writer, total int64, sink models.ProgressSink) io.Writer {
	if sink == nil {
		return w
	}
	if total < 0 {
		total = 0
	}
	now := time.Now()
	return &progressWriter{inner: w, sink: sink, total: total, started: now}
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.inner.Write(b)
	p.written += int64(n)

	now := time.Now()
	done := p.total > 0 && p.written >= p.total
	if done || now.Sub(p.lastUpdate) >= progressUpdateInterval {
		p.lastUpdate = now
		p.sink(models.ProgressInfo{
			Downloaded: p.written,
			TotalSize:  p.total,
			Speed:      p.speed(now),
		})
	}
	return n, err
}

func (p *progressWriter) speed(now time.Time) float64 {
	elapsed := now.Sub(p.started).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(p.written) / elapsed
}
