// Package execution orchestrates operation-item trees: it resolves each
// node's destination, dispatches it to the matching operator, and walks the
// children depth-first. Library integration and interactive prompts happen
// only at top-level download boundaries.
package execution

import (
	"context"
	"errors"
	"os"

	"github.com/grabtree/grabtree/internal/apperrors"
	"github.com/grabtree/grabtree/internal/config"
	"github.com/grabtree/grabtree/internal/extractor"
	"github.com/grabtree/grabtree/internal/library"
	"github.com/grabtree/grabtree/internal/metrics"
	"github.com/grabtree/grabtree/internal/models"
	"github.com/grabtree/grabtree/internal/operator"
	"github.com/grabtree/grabtree/internal/progress"
	"github.com/grabtree/grabtree/internal/prompt"
	"github.com/grabtree/grabtree/internal/resolver"
	"github.com/grabtree/grabtree/internal/transfer"
)

// Engine runs one operation item tree per Run call. Traversal is synchronous
// and depth-first: a node's children run only after the node succeeded, in
// the order they were appended, and a failing child never stops its siblings.
type Engine struct {
	cfg      *config.Config
	resolver *resolver.Resolver
	library  library.Service
	prompter prompt.Prompter

	httpOp     operator.Operator
	streamOp   operator.Operator
	metadataOp operator.Operator
	moverOp    operator.Operator
	noopOp     operator.Operator
}

// Option customizes an Engine, mainly for swapping collaborators in tests.
type Option func(*Engine)

// WithLibrary sets the library service. A nil service disables the
// duplicate-check and post-download hooks.
func WithLibrary(svc library.Service) Option {
	return func(e *Engine) { e.library = svc }
}

// WithPrompter sets the interactive prompter.
func WithPrompter(p prompt.Prompter) Option {
	return func(e *Engine) { e.prompter = p }
}

// WithOperators overrides the transfer and metadata operators.
func WithOperators(httpOp, streamOp, metadataOp, moverOp operator.Operator) Option {
	return func(e *Engine) {
		e.httpOp = httpOp
		e.streamOp = streamOp
		e.metadataOp = metadataOp
		e.moverOp = moverOp
	}
}

// New creates an engine with the default operator set built from the
// configuration.
func New(cfg *config.Config, opts ...Option) *Engine {
	client := transfer.New(cfg)
	e := &Engine{
		cfg:        cfg,
		resolver:   resolver.New(cfg),
		prompter:   prompt.NewConsole(os.Stdin, os.Stdout),
		httpOp:     operator.NewHTTP(client),
		streamOp:   operator.NewStream(client),
		metadataOp: operator.NewMetadataWriter(),
		moverOp:    operator.NewMover(cfg),
		noopOp:     operator.NewNoop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DownloadFromURL extracts the candidate items for a URL, picks one, and runs
// it. When autoSelect is set the first candidate wins without prompting.
func (e *Engine) DownloadFromURL(ctx context.Context, url string, silent, autoSelect bool) (bool, error) {
	logger := config.GetLogger()
	logger.Info().Str("url", url).Msg("Analyzing URL")

	items, err := extractor.Extract(ctx, url)
	if err != nil {
		return false, err
	}

	var selected *models.OperationItem
	if autoSelect || silent {
		selected = items[0]
		logger.Info().Str("item", selected.Description()).Msg("Auto-selected first option")
	} else {
		selected, err = e.prompter.SelectItem(items)
		if err != nil {
			return false, err
		}
	}

	return e.Run(ctx, selected, silent)
}

// Run executes one root item and its subtree. The bool is the logical AND of
// the root's and every processed child's outcome. A non-nil error means the
// user cancelled; it terminates the whole request rather than one node.
func (e *Engine) Run(ctx context.Context, item *models.OperationItem, silent bool) (bool, error) {
	return e.run(ctx, item, silent, nil)
}

func (e *Engine) run(ctx context.Context, item *models.OperationItem, silent bool, parent *resolver.Resolution) (bool, error) {
	logger := config.GetLogger()

	topLevelDownload := parent == nil && item.OptType == models.OperationDownload

	if topLevelDownload && !silent {
		proceed, err := e.checkDuplicate(ctx, item)
		if err != nil {
			return false, err
		}
		if !proceed {
			logger.Info().Str("item", item.Description()).Msg("Skipping download, existing copy kept")
			return false, nil
		}
	}

	res, err := e.resolveNode(item, parent)
	if err != nil {
		// Resolution failures abort this node only; the caller sees false.
		logger.Error().Err(err).Str("item", item.Description()).Msg("Path resolution failed")
		return false, nil
	}

	// Only primary transfers get a progress sink.
	if item.Type == models.ItemTypeVideo || item.Type == models.ItemTypeStream {
		if silent {
			item.SetProgressSink(progress.NewSilentSink())
		} else {
			item.SetProgressSink(progress.NewConsoleSink(os.Stdout))
		}
	}

	op := e.operatorFor(item)
	logger.Debug().
		Str("item", item.Description()).
		Str("operator", op.Name()).
		Str("target_path", item.TargetPath()).
		Msg("Executing item")

	if !op.Execute(ctx, item) {
		logger.Error().Str("item", item.Description()).Str("target_path", item.TargetPath()).Msg("Execution failed")
		return false, nil
	}

	if topLevelDownload && !silent {
		if err := e.offerFiling(ctx, item); err != nil {
			return false, err
		}
	}

	return e.runChildren(ctx, item, silent, res)
}

// checkDuplicate runs the pre-download library hook. It returns false when
// the user decides to keep the existing copy, and an error only on cancel.
func (e *Engine) checkDuplicate(ctx context.Context, item *models.OperationItem) (bool, error) {
	if e.library == nil || !e.library.IsAvailable(ctx) {
		return true, nil
	}

	result := e.library.CheckDuplicate(ctx, item.Title, item.Code)
	if result == nil || !result.Exists {
		metrics.DuplicateChecksTotal.WithLabelValues("miss").Inc()
		return true, nil
	}
	metrics.DuplicateChecksTotal.WithLabelValues("hit").Inc()

	proceed, err := e.prompter.ConfirmDuplicateDownload(item.Description(), result)
	if err != nil {
		return false, err
	}
	return proceed, nil
}

// offerFiling runs the post-download library hook. Filing and refresh are
// best-effort: only a user cancel surfaces as an error.
func (e *Engine) offerFiling(ctx context.Context, item *models.OperationItem) error {
	logger := config.GetLogger()

	if e.library == nil || !e.library.IsAvailable(ctx) {
		return nil
	}

	folders := e.library.GetLibraryFolders(ctx)
	if len(folders) == 0 {
		return nil
	}

	libName, folder, accepted, err := e.prompter.OfferLibraryFiling(item.TargetPath(), folders)
	if err != nil {
		return err
	}
	if !accepted {
		return nil
	}

	if !e.library.MoveToLibrary(ctx, item.TargetPath(), folder) {
		logger.Warn().Str("target_path", item.TargetPath()).Str("folder", folder).Msg("Library filing failed, file left in place")
		return nil
	}
	if !e.library.RefreshLibrary(ctx, libName) {
		logger.Warn().Str("library", libName).Msg("Library refresh failed")
	}
	return nil
}

func (e *Engine) resolveNode(item *models.OperationItem, parent *resolver.Resolution) (resolver.Resolution, error) {
	if parent == nil {
		return e.resolver.Resolve(item)
	}
	return e.resolver.ResolveChild(item, *parent)
}

// runChildren walks the node's children in order, skipping artifact types
// the organize configuration disables. The node's own success ANDs with
// every processed child's outcome.
func (e *Engine) runChildren(ctx context.Context, item *models.OperationItem, silent bool, res resolver.Resolution) (bool, error) {
	logger := config.GetLogger()

	if !item.HasChildren() {
		return true, nil
	}
	if !e.cfg.Organize.AutoOrganize {
		logger.Warn().Str("item", item.Description()).Msg("Item has children but auto organize is disabled, children will not be processed")
		return true, nil
	}

	success := true
	for _, child := range item.Children() {
		if child.Type == models.ItemTypeMetadata && !e.cfg.Organize.CreateNFO {
			logger.Info().Str("item", child.Description()).Msg("Skipping metadata file creation")
			continue
		}
		if child.Type == models.ItemTypeImage && !e.cfg.Organize.DownloadCover {
			logger.Info().Str("item", child.Description()).Msg("Skipping image download")
			continue
		}

		ok, err := e.run(ctx, child, silent, &res)
		if err != nil {
			// User cancel terminates the whole request.
			return false, err
		}
		if !ok {
			logger.Error().Str("item", child.Description()).Msg("Child item failed")
			success = false
		}
	}
	return success, nil
}

// operatorFor selects the operator for an item's type and operation.
func (e *Engine) operatorFor(item *models.OperationItem) operator.Operator {
	switch item.OptType {
	case models.OperationDownload:
		switch item.Type {
		case models.ItemTypeStream:
			return e.streamOp
		case models.ItemTypeVideo, models.ItemTypeImage:
			return e.httpOp
		default:
			return e.noopOp
		}
	case models.OperationSaveMetadata:
		return e.metadataOp
	case models.OperationOrganize:
		return e.moverOp
	default:
		logger := config.GetLogger()
		logger.Warn().Str("item", item.Description()).Msg("No operator for operation type, using placeholder")
		return e.noopOp
	}
}

// IsCancelled reports whether err is a user cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, &apperrors.ErrUserCancelled{})
}
