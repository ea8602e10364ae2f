package operator

import (
	"context"
	"os"

	"github.com/grabtree/grabtree/internal/config"
	"github.com/grabtree/grabtree/internal/metrics"
	"github.com/grabtree/grabtree/internal/models"
)

// MetadataWriter serializes an item's metadata payload to its resolved target
// path as an NFO document.
type MetadataWriter struct{}

// NewMetadataWriter creates a metadata writer operator.
func NewMetadataWriter() *MetadataWriter {
	return &MetadataWriter{}
}

// Name implements Operator.
func (w *MetadataWriter) Name() string {
	return "metadata"
}

// Execute implements Operator. It fails when the item is not a metadata item,
// or when either the target path or the payload is absent.
func (w *MetadataWriter) Execute(ctx context.Context, item *models.OperationItem) bool {
	logger := config.GetLogger()

	if item == nil || item.Type != models.ItemTypeMetadata {
		logger.Error().Msg("Metadata writer invoked with a non-metadata item")
		metrics.OperationsTotal.WithLabelValues(w.Name(), "failure").Inc()
		return false
	}

	targetPath := item.TargetPath()
	if targetPath == "" || item.Metadata == nil {
		logger.Error().
			Str("item", item.Description()).
			Str("target_path", targetPath).
			Msg("Metadata writer requires a resolved target path and a payload")
		metrics.OperationsTotal.WithLabelValues(w.Name(), "failure").Inc()
		return false
	}

	nfo, err := item.Metadata.ToNFO()
	if err != nil {
		logger.Error().Err(err).
			Str("item", item.Description()).
			Msg("Failed to serialize metadata")
		metrics.OperationsTotal.WithLabelValues(w.Name(), "failure").Inc()
		return false
	}

	if err := os.WriteFile(targetPath, []byte(nfo), 0o644); err != nil {
		logger.Error().Err(err).
			Str("item", item.Description()).
			Str("target_path", targetPath).
			Msg("Failed to write metadata file")
		metrics.OperationsTotal.WithLabelValues(w.Name(), "failure").Inc()
		return false
	}

	logger.Info().Str("target_path", targetPath).Msg("Metadata saved")
	metrics.OperationsTotal.WithLabelValues(w.Name(), "success").Inc()
	return true
}
