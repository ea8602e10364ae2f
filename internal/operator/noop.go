package operator

import (
	"context"

	"github.com/grabtree/grabtree/internal/config"
	"github.com/grabtree/grabtree/internal/metrics"
	"github.com/grabtree/grabtree/internal/models"
)

// Noop is the placeholder operator selected when no real operator matches an
// item's type/operation combination. It only logs; it never performs work.
type Noop struct{}

// NewNoop creates a placeholder operator.
func NewNoop() *Noop {
	return &Noop{}
}

// Name implements Operator.
func (n *Noop) Name() string {
	return "noop"
}

// Execute implements Operator. It always succeeds.
func (n *Noop) Execute(ctx context.Context, item *models.OperationItem) bool {
	logger := config.GetLogger()
	logger.Info().
		Str("item", item.Description()).
		Str("item_type", item.Type.String()).
		Str("opt_type", item.OptType.String()).
		Msg("No operator available for item, skipping")
	metrics.OperationsTotal.WithLabelValues(n.Name(), "success").Inc()
	return true
}
