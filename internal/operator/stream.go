package operator

import (
	"context"

	"github.com/grabtree/grabtree/internal/config"
	"github.com/grabtree/grabtree/internal/metrics"
	"github.com/grabtree/grabtree/internal/models"
	"github.com/grabtree/grabtree/internal/transfer"
)

// Stream is the transfer operator for segmented (playlist-based) streams.
// Segment fetching may be internally concurrent, but the operator presents a
// single synchronous Execute boundary to the engine.
type Stream struct {
	fetcher transfer.StreamFetcher
}

// NewStream creates a stream transfer operator around the given fetcher.
func NewStream(fetcher transfer.StreamFetcher) *Stream {
	return &Stream{fetcher: fetcher}
}

// Name implements Operator.
func (s *Stream) Name() string {
	return "stream"
}

// Execute implements Operator.
func (s *Stream) Execute(ctx context.Context, item *models.OperationItem) bool {
	logger := config.GetLogger()

	if item.URL == "" || item.TargetPath() == "" {
		logger.Error().
			Str("item", item.Description()).
			Str("target_path", item.TargetPath()).
			Msg("Stream transfer requires a playlist URL and a resolved target path")
		metrics.OperationsTotal.WithLabelValues(s.Name(), "failure").Inc()
		return false
	}

	err := s.fetcher.FetchStream(ctx, item.URL, item.EffectiveHeaders(nil), item.TargetPath(), item.ProgressSink())
	if err != nil {
		logger.Error().Err(err).
			Str("item", item.Description()).
			Str("url", item.URL).
			Str("target_path", item.TargetPath()).
			Msg("Stream download failed")
		metrics.OperationsTotal.WithLabelValues(s.Name(), "failure").Inc()
		return false
	}

	logger.Info().Str("target_path", item.TargetPath()).Msg("Stream download complete")
	metrics.OperationsTotal.WithLabelValues(s.Name(), "success").Inc()
	return true
}
