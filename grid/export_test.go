package grid

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type exportFunc func(ctx context.Context) (io.ReadCloser, error)

func (f exportFunc) Export(ctx context.Context) (io.ReadCloser, error) { return f(ctx) }

// brokenReader fails part way through the body.
type brokenReader struct{ sent bool }

func (r *brokenReader) Read(p []byte) (int, error) {
	if r.sent {
		return 0, errors.New("connection reset")
	}
	r.sent = true
	return copy(p, "id,name\n"), nil
}

func (r *brokenReader) Close() error { return nil }

func fixedNow() time.Time { return time.Date(2024, 11, 3, 22, 15, 0, 0, time.UTC) }

func TestExporter_FileName(t *testing.T) {
	e := NewExporter(nil, ExportOptions{Now: fixedNow})
	if got := e.FileName(); got != "export_2024-11-03.csv" {
		t.Errorf("FileName() = %q", got)
	}

	e = NewExporter(nil, ExportOptions{Now: fixedNow, DateLayout: "20060102-1504"})
	if got := e.FileName(); got != "export_20241103-2215.csv" {
		t.Errorf("FileName() with layout = %q", got)
	}
}

func TestExporter_Success(t *testing.T) {
	dir := t.TempDir()
	notifier := &recordingNotifier{}
	src := exportFunc(func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("id,name\n1,Ann\n")), nil
	})

	path, err := NewExporter(src, ExportOptions{Dir: dir, Now: fixedNow, Notifier: notifier}).Export(context.Background())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if path != filepath.Join(dir, "export_2024-11-03.csv") {
		t.Errorf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(data) != "id,name\n1,Ann\n" {
		t.Errorf("contents = %q", data)
	}
	if got := notifier.Successes(); len(got) != 1 || got[0] != "Exported export_2024-11-03.csv" {
		t.Errorf("successes = %v", got)
	}
	if len(notifier.Errors()) != 0 {
		t.Errorf("errors = %v", notifier.Errors())
	}
}

func TestExporter_Failures(t *testing.T) {
	tests := []struct {
		name string
		src  exportFunc
	}{
		{"request fails", func(context.Context) (io.ReadCloser, error) { return nil, errServer }},
		{"body breaks", func(context.Context) (io.ReadCloser, error) { return &brokenReader{}, nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			notifier := &recordingNotifier{}

			_, err := NewExporter(tt.src, ExportOptions{Dir: dir, Now: fixedNow, Notifier: notifier}).Export(context.Background())
			if err == nil {
				t.Fatal("Export() succeeded")
			}
			if got := notifier.Errors(); len(got) != 1 || got[0] != "Error while exporting to CSV" {
				t.Errorf("errors = %v", got)
			}

			entries, _ := os.ReadDir(dir)
			if len(entries) != 0 {
				t.Errorf("left %d files behind", len(entries))
			}
		})
	}
}
