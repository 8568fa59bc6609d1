package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/llm-daily-brief/internal/core"
	"go.uber.org/zap"
)

// FileDelivery writes each brief as an HTML file into a directory
type FileDelivery struct {
	dir    string
	logger *zap.Logger
}

// NewFileDelivery creates a new file delivery
func NewFileDelivery(dir string, logger *zap.Logger) *FileDelivery {
	return &FileDelivery{dir: dir, logger: logger}
}

// Method implements core.BriefDelivery
func (d *FileDelivery) Method() string {
	return "file"
}

// Deliver writes brief-<date>-<id>.html into the directory
func (d *FileDelivery) Deliver(ctx context.Context, brief *core.Brief, recipient string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	content, err := RenderHTML(brief)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create brief directory: %w", err)
	}

	path := filepath.Join(d.dir, fmt.Sprintf("brief-%s-%s.html", brief.GeneratedAt.Format("2006-01-02"), brief.ID))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("failed to write brief: %w", err)
	}

	d.logger.Info("Wrote brief to file",
		zap.String("brief_id", brief.ID),
		zap.String("path", path),
		zap.String("recipient", recipient))
	return nil
}
