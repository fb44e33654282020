// Package workspace materializes volume directories on the host and guards
// them against cross-deployment reuse via marker files.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bosun-dev/bosun/internal/core/plan"
)

const markerFile = ".bosun-owner"

// Workspace implements plan.PathClaimer over the real filesystem.
type Workspace struct {
	logger *slog.Logger
}

// New creates a workspace.
func New(logger *slog.Logger) *Workspace {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{logger: logger.With("component", "workspace")}
}

// Claim creates hostPath if absent and records ownership with a marker
// file written at first use. A marker naming a different entry means the
// path belongs to an unrelated deployment: that is plan.ErrPathConflict.
//
// Claiming is idempotent: repeated deployments of the same entry find
// their own marker and succeed. Directories are created, never reused
// destructively.
func (w *Workspace) Claim(entryID, hostPath string) error {
	if err := os.MkdirAll(hostPath, 0o755); err != nil {
		return fmt.Errorf("create volume directory %s: %w", hostPath, err)
	}

	marker := filepath.Join(hostPath, markerFile)
	data, err := os.ReadFile(marker)
	switch {
	case err == nil:
		owner := strings.TrimSpace(string(data))
		if owner != entryID {
			return fmt.Errorf("%w: %s is owned by %q", plan.ErrPathConflict, hostPath, owner)
		}
		return nil
	case os.IsNotExist(err):
		if err := os.WriteFile(marker, []byte(entryID+"\n"), 0o644); err != nil {
			return fmt.Errorf("write ownership marker %s: %w", marker, err)
		}
		w.logger.Debug("claimed volume directory", "entry", entryID, "path", hostPath)
		return nil
	default:
		return fmt.Errorf("read ownership marker %s: %w", marker, err)
	}
}
