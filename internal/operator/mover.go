package operator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/grabtree/grabtree/internal/apperrors"
	"github.com/grabtree/grabtree/internal/config"
	"github.com/grabtree/grabtree/internal/metrics"
	"github.com/grabtree/grabtree/internal/models"
)

// backupSuffix is appended to an existing destination before an overwriting
// move. A backup never survives a completed run: it is deleted on success and
// restored to the destination on failure.
const backupSuffix = ".bak"

// Mover relocates a file on disk transactionally: validation before any
// mutation, backup of an overwritten destination, post-move verification, and
// rollback on failure.
type Mover struct {
	overwrite bool

	// moveFile performs the actual relocation. Overridable in tests to
	// inject mid-move failures.
	moveFile func(source, dest string) error
}

// NewMover creates a mover honoring the configured overwrite policy.
func NewMover(cfg *config.Config) *Mover {
	return &Mover{
		overwrite: cfg.Download.OverwriteExisting,
		moveFile:  moveFile,
	}
}

// Name implements Operator.
func (m *Mover) Name() string {
	return "mover"
}

// Execute implements Operator. The item must carry a source path and a
// resolved target path. Failures are logged and reported as false; the
// detailed error taxonomy is available through Move.
func (m *Mover) Execute(ctx context.Context, item *models.OperationItem) bool {
	logger := config.GetLogger()

	if item.SourcePath == "" {
		logger.Error().Str("item", item.Description()).Msg("Move item has no source path")
		metrics.OperationsTotal.WithLabelValues(m.Name(), "failure").Inc()
		return false
	}
	if item.TargetPath() == "" {
		logger.Error().Str("item", item.Description()).Msg("Move item has no resolved target path")
		metrics.OperationsTotal.WithLabelValues(m.Name(), "failure").Inc()
		return false
	}

	if err := m.Move(item.SourcePath, item.TargetPath()); err != nil {
		logger.Error().Err(err).
			Str("item", item.Description()).
			Str("source", item.SourcePath).
			Str("target_path", item.TargetPath()).
			Msg("File move failed")
		metrics.OperationsTotal.WithLabelValues(m.Name(), "failure").Inc()
		return false
	}

	metrics.OperationsTotal.WithLabelValues(m.Name(), "success").Inc()
	return true
}

// Move relocates source to dest. Validation failures abort before any
// mutation. When dest exists and overwriting is enabled, the old file is
// renamed aside first and restored if the move or its verification fails;
// the original error is returned after rollback.
func (m *Mover) Move(source, dest string) error {
	same, err := m.validate(source, dest)
	if err != nil {
		return err
	}
	if same {
		// Source and destination are the same file: nothing to do.
		logger := config.GetLogger()
		logger.Warn().Str("source", source).Msg("Source and destination are identical, skipping move")
		return nil
	}
	return m.perform(source, dest)
}

// validate checks every precondition without mutating anything, except for
// creating the destination's parent directory. It returns true when source
// and dest resolve to the same path (a no-op, not an error).
func (m *Mover) validate(source, dest string) (bool, error) {
	info, err := os.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			return false, apperrors.NewNotFoundError("source file", source)
		}
		return false, fmt.Errorf("inspecting source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return false, apperrors.NewInvalidInputError("source path", "must be a regular file")
	}
	if info.Size() == 0 {
		return false, apperrors.NewInvalidInputError("source file", "must not be empty")
	}

	resolvedSource, err := filepath.Abs(source)
	if err != nil {
		return false, fmt.Errorf("resolving source path: %w", err)
	}
	resolvedDest, err := filepath.Abs(dest)
	if err != nil {
		return false, fmt.Errorf("resolving destination path: %w", err)
	}
	if resolvedSource == resolvedDest {
		return true, nil
	}

	destDir := filepath.Dir(dest)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return false, apperrors.NewPermissionDeniedError(destDir, err)
	}
	dirInfo, err := os.Stat(destDir)
	if err != nil || !dirInfo.IsDir() {
		return false, apperrors.NewInvalidInputError("destination parent", "must be a directory")
	}
	if !isWritable(destDir) {
		return false, apperrors.NewPermissionDeniedError(destDir, nil)
	}

	if destInfo, err := os.Stat(dest); err == nil {
		if destInfo.IsDir() {
			return false, apperrors.NewInvalidInputError("destination path", "must be a file, not a directory")
		}
		if !m.overwrite {
			return false, apperrors.NewAlreadyExistsError(dest)
		}
	}

	return false, nil
}

// perform executes the move with backup and rollback.
func (m *Mover) perform(source, dest string) error {
	logger := config.GetLogger()
	backupPath := ""

	// Back up an existing destination before overwriting it.
	if _, err := os.Stat(dest); err == nil {
		backupPath = dest + backupSuffix
		logger.Info().Str("dest", dest).Str("backup", backupPath).Msg("Backing up existing file")
		if err := m.moveFile(dest, backupPath); err != nil {
			return fmt.Errorf("backing up destination: %w", err)
		}
	}

	if err := m.moveAndVerify(source, dest); err != nil {
		if backupPath != "" {
			m.rollback(backupPath, dest)
		}
		return err
	}

	if backupPath != "" {
		if err := os.Remove(backupPath); err != nil {
			logger.Warn().Err(err).Str("backup", backupPath).Msg("Failed to delete backup file")
		}
	}

	logger.Info().Str("source", source).Str("dest", dest).Msg("File moved")
	return nil
}

func (m *Mover) moveAndVerify(source, dest string) error {
	if err := m.moveFile(source, dest); err != nil {
		return fmt.Errorf("moving file: %w", err)
	}

	// Post-conditions. Any violation is a fatal inconsistency.
	if _, err := os.Stat(dest); err != nil {
		return apperrors.NewInconsistentError(fmt.Sprintf("destination %s missing after move", dest))
	}
	if _, err := os.Stat(source); err == nil {
		return apperrors.NewInconsistentError(fmt.Sprintf("source %s still present after move", source))
	}
	return nil
}

// rollback restores the backup to the destination path after a failed move.
func (m *Mover) rollback(backupPath, dest string) {
	logger := config.GetLogger()
	metrics.MoveRollbacksTotal.Inc()

	logger.Info().Str("backup", backupPath).Str("dest", dest).Msg("Rolling back, restoring backup")
	if err := os.Rename(backupPath, dest); err != nil {
		logger.Error().Err(err).Str("backup", backupPath).Msg("Rollback failed")
		return
	}
	logger.Info().Str("dest", dest).Msg("Rollback complete")
}

// moveFile renames source to dest, falling back to copy-and-delete when the
// rename crosses filesystems.
func moveFile(source, dest string) error {
	if err := os.Rename(source, dest); err == nil {
		return nil
	}

	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return err
	}
	return os.Remove(source)
}

// isWritable reports whether the directory accepts new files.
func isWritable(dir string) bool {
	probe, err := os.CreateTemp(dir, ".grabtree-probe-*")
	if err != nil {
		return false
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return true
}
