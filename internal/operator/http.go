package operator

import (
	"context"

	"github.com/grabtree/grabtree/internal/config"
	"github.com/grabtree/grabtree/internal/metrics"
	"github.com/grabtree/grabtree/internal/models"
	"github.com/grabtree/grabtree/internal/transfer"
)

// HTTP is the transfer operator for directly fetchable artifacts (video files
// and image sidecars). The byte-moving mechanics live behind the injected
// fetcher; this operator only enforces the item contract.
type HTTP struct {
	fetcher transfer.Fetcher
}

// NewHTTP creates an HTTP transfer operator around the given fetcher.
func NewHTTP(fetcher transfer.Fetcher) *HTTP {
	return &HTTP{fetcher: fetcher}
}

// Name implements Operator.
func (h *HTTP) Name() string {
	return "http"
}

// Execute implements Operator.
func (h *HTTP) Execute(ctx context.Context, item *models.OperationItem) bool {
	logger := config.GetLogger()

	if item.URL == "" || item.TargetPath() == "" {
		logger.Error().
			Str("item", item.Description()).
			Str("target_path", item.TargetPath()).
			Msg("Transfer requires a source URL and a resolved target path")
		metrics.OperationsTotal.WithLabelValues(h.Name(), "failure").Inc()
		return false
	}

	err := h.fetcher.FetchFile(ctx, item.URL, item.EffectiveHeaders(nil), item.TargetPath(), item.ProgressSink())
	if err != nil {
		logger.Error().Err(err).
			Str("item", item.Description()).
			Str("url", item.URL).
			Str("target_path", item.TargetPath()).
			Msg("Download failed")
		metrics.OperationsTotal.WithLabelValues(h.Name(), "failure").Inc()
		return false
	}

	logger.Info().Str("target_path", item.TargetPath()).Msg("Download complete")
	metrics.OperationsTotal.WithLabelValues(h.Name(), "success").Inc()
	return true
}
