package grid

// export.go saves a server-side export of the whole collection to disk.
//
// Exports ignore the current view: no page, filter, sort or search
// parameters are forwarded. A failed export only raises a notification and
// never touches any grid's load state.

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// DefaultExportDateLayout names export files by calendar date.
const DefaultExportDateLayout = "2006-01-02"

const exportFailedMessage = "Error while exporting to CSV"

// ExportSource fetches the export payload for a collection.
type ExportSource interface {
	Export(ctx context.Context) (io.ReadCloser, error)
}

// ExportOptions configures an Exporter.
type ExportOptions struct {
	Dir        string // destination directory, the working directory when empty
	DateLayout string // time layout used in the file name
	Now        func() time.Time
	Notifier   Notifier
	Logger     *slog.Logger
}

// Exporter downloads exports and writes them as export_<date>.csv.
type Exporter struct {
	src  ExportSource
	opts ExportOptions
}

// NewExporter creates an exporter reading from src.
func NewExporter(src ExportSource, opts ExportOptions) *Exporter {
	if opts.DateLayout == "" {
		opts.DateLayout = DefaultExportDateLayout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{Logger: opts.Logger}
	}
	return &Exporter{src: src, opts: opts}
}

// FileName returns the name the next export will be saved under.
func (e *Exporter) FileName() string {
	return fmt.Sprintf("export_%s.csv", e.opts.Now().Format(e.opts.DateLayout))
}

// Export fetches the payload and saves it, returning the written path.
// On failure a notification is emitted and no file is left behind.
func (e *Exporter) Export(ctx context.Context) (string, error) {
	path, err := e.export(ctx)
	if err != nil {
		e.opts.Logger.Warn("export failed", "error", err)
		e.opts.Notifier.Error(exportFailedMessage)
		return "", err
	}

	e.opts.Logger.Info("export saved", "path", path)
	e.opts.Notifier.Success("Exported " + filepath.Base(path))
	return path, nil
}

func (e *Exporter) export(ctx context.Context) (string, error) {
	body, err := e.src.Export(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch export: %w", err)
	}
	defer body.Close()

	dir := e.opts.Dir
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, e.FileName())

	tmp, err := os.CreateTemp(dir, ".export-*.csv")
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close export file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("save export: %w", err)
	}

	return path, nil
}
