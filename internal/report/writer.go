package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finagent/internal/common"
)

// Files are the paths a report was written to. PDF is empty when no PDF was
// produced.
type Files struct {
	Markdown string
	PDF      string
}

// Writer stores reports as <dir>/<TICKER>_<timestamp>.md and .pdf
type Writer struct {
	dir    string
	pdf    *PDFRenderer
	logger arbor.ILogger
}

// NewWriter creates a report writer. A nil renderer writes Markdown only.
func NewWriter(dir string, pdf *PDFRenderer, logger arbor.ILogger) *Writer {
	return &Writer{dir: dir, pdf: pdf, logger: logger}
}

// Dir returns the reports directory
func (w *Writer) Dir() string {
	return w.dir
}

// BaseName returns the file name stem for a report
func BaseName(ticker string, createdAt time.Time) string {
	return fmt.Sprintf("%s_%s", common.ParseTicker(ticker).FileSafe(), createdAt.UTC().Format("20060102T150405Z"))
}

// Write saves markdown and, when enabled, its PDF rendering. A Markdown write
// failure is an error; a PDF failure is returned as a warning.
func (w *Writer) Write(ticker string, createdAt time.Time, markdown string) (Files, []string, error) {
	var files Files
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return files, nil, fmt.Errorf("failed to create reports directory: %w", err)
	}

	base := filepath.Join(w.dir, BaseName(ticker, createdAt))
	files.Markdown = base + ".md"
	if err := os.WriteFile(files.Markdown, []byte(markdown), 0644); err != nil {
		return Files{}, nil, fmt.Errorf("failed to write markdown report: %w", err)
	}

	if w.pdf == nil {
		return files, nil, nil
	}

	data, err := w.pdf.Render(markdown, w.dir)
	if err != nil {
		w.logger.Warn().Err(err).Str("ticker", ticker).Msg("PDF rendering failed")
		return files, []string{"pdf: " + err.Error()}, nil
	}
	pdfPath := base + ".pdf"
	if err := os.WriteFile(pdfPath, data, 0644); err != nil {
		w.logger.Warn().Err(err).Str("path", pdfPath).Msg("Failed to write PDF report")
		return files, []string{"pdf: " + err.Error()}, nil
	}
	files.PDF = pdfPath

	w.logger.Info().
		Str("markdown", files.Markdown).
		Str("pdf", files.PDF).
		Msg("Report written")
	return files, nil, nil
}
