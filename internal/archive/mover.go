// Package archive moves graded submissions into the done directory.
package archive

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	appErr "autojunit/pkg/errors"
	"autojunit/pkg/utils/logger"
)

// Mover relocates processed submission folders under the done directory
// so a later run never picks them up again.
type Mover struct {
	doneDir string
}

// NewMover creates a mover targeting doneDir.
func NewMover(doneDir string) *Mover {
	return &Mover{doneDir: doneDir}
}

// Move renames the submission folder into the done directory. An existing
// destination left by an earlier partial run is replaced. Calling Move
// again after the source is gone succeeds as long as the destination is
// in place.
func (m *Mover) Move(ctx context.Context, srcPath string) error {
	if m.doneDir == "" {
		return appErr.ValidationError("done_dir", "required")
	}
	if srcPath == "" {
		return appErr.ValidationError("source_path", "required")
	}
	if err := os.MkdirAll(m.doneDir, 0755); err != nil {
		return appErr.Wrapf(err, appErr.MoveFailed, "create done dir failed")
	}

	dest := filepath.Join(m.doneDir, filepath.Base(srcPath))

	if _, err := os.Stat(srcPath); os.IsNotExist(err) {
		if _, destErr := os.Stat(dest); destErr == nil {
			logger.Info(ctx, "submission already archived", zap.String("dest", dest))
			return nil
		}
		return appErr.Newf(appErr.MoveSourceMissing, "submission folder missing: %s", srcPath)
	}

	if _, err := os.Stat(dest); err == nil {
		if err := os.RemoveAll(dest); err != nil {
			return appErr.Wrapf(err, appErr.MoveFailed, "replace archived copy failed")
		}
	}

	if err := os.Rename(srcPath, dest); err != nil {
		return appErr.Wrapf(err, appErr.MoveFailed, "move submission to done failed")
	}
	logger.Info(ctx, "submission archived", zap.String("dest", dest))
	return nil
}
