// Package operator contains the executors the engine dispatches operation
// items to. Every operator presents a single synchronous Execute boundary:
// recoverable failures are logged and reported as false, never as panics.
package operator

import (
	"context"

	"github.com/grabtree/grabtree/internal/models"
)

// Operator executes one operation item. Side effects are confined to network
// I/O, filesystem writes under the item's resolved target path, and updates
// through the item's progress sink if one is attached.
type Operator interface {
	// Name identifies the operator in logs and metrics.
	Name() string

	// Execute performs the item's operation. It returns false on any
	// recoverable failure after logging enough context to reproduce.
	Execute(ctx context.Context, item *models.OperationItem) bool
}
