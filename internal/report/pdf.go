package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// A4 portrait layout in millimetres
const (
	pageHeight   = 297.0
	pageMargin   = 10.0
	contentWidth = 190.0
	tableWidth   = 180.0
	maxCellLines = 8
)

// PDFRenderer converts report Markdown into a PDF document
type PDFRenderer struct {
	logger arbor.ILogger
}

// NewPDFRenderer creates a PDF renderer
func NewPDFRenderer(logger arbor.ILogger) *PDFRenderer {
	return &PDFRenderer{logger: logger}
}

// Render converts markdown to PDF bytes. Relative image paths are resolved
// against baseDir; PNG charts are embedded, missing images are replaced by
// their alt text. The output is checked with pdfcpu before it is returned.
func (s *PDFRenderer) Render(markdown, baseDir string) ([]byte, error) {
	s.logger.Debug().
		Int("markdown_len", len(markdown)).
		Str("base_dir", baseDir).
		Msg("Rendering report PDF")

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AddPage()
	pdf.SetFont("Arial", "", 9)

	md := goldmark.New(
		goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)

	source := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(source))

	w := &pdfWriter{
		pdf:       pdf,
		source:    source,
		baseDir:   baseDir,
		logger:    s.logger,
		translate: pdf.UnicodeTranslatorFromDescriptor(""),
		font:      "Arial",
		size:      9,
	}

	if err := ast.Walk(doc, w.walk); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF output: %w", err)
	}

	if err := ValidatePDF(buf.Bytes()); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Int("pdf_size", buf.Len()).
		Int("images", w.images).
		Msg("Report PDF rendered")
	return buf.Bytes(), nil
}

// ValidatePDF checks that data parses as a well formed PDF
func ValidatePDF(data []byte) error {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return fmt.Errorf("generated PDF failed validation: %w", err)
	}
	return nil
}

type pdfWriter struct {
	pdf       *fpdf.Fpdf
	source    []byte
	baseDir   string
	logger    arbor.ILogger
	translate func(string) string
	font      string
	size      float64
	bold      bool
	italic    bool
	listLevel int
	images    int
}

func (w *pdfWriter) updateFont() {
	style := ""
	if w.bold {
		style += "B"
	}
	if w.italic {
		style += "I"
	}
	w.pdf.SetFont(w.font, style, w.size)
}

func (w *pdfWriter) write(s string) {
	w.pdf.Write(5, w.translate(s))
}

func (w *pdfWriter) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		w.heading(node, entering)
	case *ast.Paragraph:
		if !entering {
			w.pdf.Ln(7)
		}
	case *ast.Text:
		if entering {
			w.write(string(node.Text(w.source)))
			if node.SoftLineBreak() {
				w.write(" ")
			}
			if node.HardLineBreak() {
				w.pdf.Ln(5)
			}
		}
	case *ast.String:
		if entering {
			w.write(string(node.Value))
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			w.bold = entering
		} else {
			w.italic = entering
		}
		w.updateFont()
	case *ast.CodeSpan:
		if entering {
			w.pdf.SetFont("Courier", "", w.size)
			w.write(string(node.Text(w.source)))
			w.updateFont()
		}
		return ast.WalkSkipChildren, nil
	case *ast.FencedCodeBlock:
		if entering {
			w.codeBlock(node.Lines())
		}
		return ast.WalkSkipChildren, nil
	case *ast.CodeBlock:
		if entering {
			w.codeBlock(node.Lines())
		}
		return ast.WalkSkipChildren, nil
	case *ast.List:
		if entering {
			w.listLevel++
		} else {
			w.listLevel--
			if w.listLevel == 0 {
				w.pdf.Ln(2)
			}
		}
	case *ast.ListItem:
		if entering {
			w.pdf.Ln(5)
			w.pdf.SetX(15 + float64(w.listLevel)*5)
			w.write("- ")
		}
	case *ast.TextBlock:
		// list item content; the item already started a line
	case *ast.ThematicBreak:
		if entering {
			w.pdf.Ln(2)
			w.pdf.Line(15, w.pdf.GetY(), 195, w.pdf.GetY())
			w.pdf.Ln(2)
		}
	case *ast.Image:
		if entering {
			w.image(node)
		}
		return ast.WalkSkipChildren, nil
	case *extast.Table:
		if entering {
			w.table(node)
		}
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func (w *pdfWriter) heading(n *ast.Heading, entering bool) {
	if !entering {
		w.pdf.Ln(6)
		w.updateFont()
		return
	}
	w.pdf.Ln(6)
	size := 10.0
	switch n.Level {
	case 1:
		size = 14
	case 2:
		size = 12
	case 3:
		size = 11
	}
	w.pdf.SetFont(w.font, "B", size)
}

func (w *pdfWriter) codeBlock(lines *text.Segments) {
	w.pdf.Ln(2)
	w.pdf.SetFont("Courier", "", 8)
	w.pdf.SetFillColor(245, 245, 245)
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		w.pdf.MultiCell(0, 4, w.translate(strings.TrimRight(string(line.Value(w.source)), "\n")), "", "L", true)
	}
	w.pdf.SetFillColor(255, 255, 255)
	w.updateFont()
	w.pdf.Ln(2)
}

// image embeds a PNG or JPEG scaled to the content width. Flowing images
// start a new page when they do not fit.
func (w *pdfWriter) image(n *ast.Image) {
	dest := string(n.Destination)
	alt := string(n.Text(w.source))
	path := dest
	if !filepath.IsAbs(path) && w.baseDir != "" {
		path = filepath.Join(w.baseDir, filepath.FromSlash(dest))
	}

	imageType := imageTypeFor(path)
	if _, err := os.Stat(path); err != nil || imageType == "" {
		w.logger.Warn().Str("image", dest).Msg("Report image not embeddable, using alt text")
		w.write("[" + alt + "]")
		return
	}

	w.pdf.Ln(2)
	opts := fpdf.ImageOptions{ImageType: imageType, ReadDpi: true}
	info := w.pdf.RegisterImageOptions(path, opts)
	if info == nil || w.pdf.Error() != nil {
		w.logger.Warn().Str("image", dest).Err(w.pdf.Error()).Msg("Failed to register report image")
		w.pdf.ClearError()
		w.write("[" + alt + "]")
		return
	}

	width := contentWidth
	if info.Width() > 0 {
		height := width * info.Height() / info.Width()
		if limit := pageHeight - 2*pageMargin; height > limit {
			width = width * limit / height
		}
	}
	w.pdf.ImageOptions(path, pageMargin, w.pdf.GetY(), width, 0, true, opts, 0, "")
	w.images++
}

func imageTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "PNG"
	case ".jpg", ".jpeg":
		return "JPG"
	}
	return ""
}

func (w *pdfWriter) table(n *extast.Table) {
	var rows [][]string
	var collect func(node ast.Node)
	collect = func(node ast.Node) {
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			switch child.(type) {
			case *extast.TableHeader, *extast.TableRow:
				var row []string
				for cell := child.FirstChild(); cell != nil; cell = cell.NextSibling() {
					if _, ok := cell.(*extast.TableCell); ok {
						row = append(row, w.translate(string(cell.Text(w.source))))
					}
				}
				rows = append(rows, row)
			}
		}
	}
	collect(n)
	w.renderTable(rows)
}

func (w *pdfWriter) renderTable(rows [][]string) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}
	w.pdf.Ln(2)

	numCols := len(rows[0])
	fontSize := 8.0
	lineHeight := 4.0
	colWidths := w.columnWidths(rows, numCols, tableWidth, fontSize)

	for i, row := range rows {
		if i == 0 {
			w.pdf.SetFont("Arial", "B", fontSize)
		} else {
			w.pdf.SetFont("Arial", "", fontSize)
		}

		lines := 1
		for j, cell := range row {
			if j < numCols {
				if n := w.linesNeeded(cell, colWidths[j]-2); n > lines {
					lines = n
				}
			}
		}
		if lines > maxCellLines {
			lines = maxCellLines
		}

		rowHeight := float64(lines)*lineHeight + 2
		startX := w.pdf.GetX()
		startY := w.pdf.GetY()
		if startY+rowHeight > pageHeight-15 {
			w.pdf.AddPage()
			startY = w.pdf.GetY()
		}

		x := startX
		for j := 0; j < numCols; j++ {
			cell := ""
			if j < len(row) {
				cell = row[j]
			}
			if i == 0 {
				w.pdf.SetFillColor(230, 230, 230)
				w.pdf.Rect(x, startY, colWidths[j], rowHeight, "FD")
			} else {
				w.pdf.Rect(x, startY, colWidths[j], rowHeight, "D")
			}
			w.pdf.SetXY(x+1, startY+1)
			w.cellText(cell, colWidths[j]-2, lineHeight, lines)
			x += colWidths[j]
		}

		w.pdf.SetXY(startX, startY+rowHeight)
	}

	w.pdf.SetFillColor(255, 255, 255)
	w.pdf.Ln(3)
	w.updateFont()
}

// columnWidths sizes columns from measured content, clamped to a third of
// the table width and scaled to fit.
func (w *pdfWriter) columnWidths(rows [][]string, numCols int, width, fontSize float64) []float64 {
	widths := make([]float64, numCols)
	for i, row := range rows {
		style := ""
		if i == 0 {
			style = "B"
		}
		w.pdf.SetFont("Arial", style, fontSize)
		for j, cell := range row {
			if j < numCols {
				if cw := w.pdf.GetStringWidth(cell) + 4; cw > widths[j] {
					widths[j] = cw
				}
			}
		}
	}
	w.pdf.SetFont("Arial", "", fontSize)

	minWidth := 12.0
	maxWidth := width / 3
	total := 0.0
	for j := range widths {
		if widths[j] < minWidth {
			widths[j] = minWidth
		}
		if widths[j] > maxWidth {
			widths[j] = maxWidth
		}
		total += widths[j]
	}

	switch {
	case total > width:
		scale := width / total
		for j := range widths {
			widths[j] *= scale
		}
	case total < width*0.9:
		scale := width * 0.95 / total
		if scale > 1.5 {
			scale = 1.5
		}
		for j := range widths {
			widths[j] *= scale
		}
	}
	return widths
}

func (w *pdfWriter) wrap(s string, width float64) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}
	space := w.pdf.GetStringWidth(" ")
	var lines []string
	current := words[0]
	currentWidth := w.pdf.GetStringWidth(current)
	for _, word := range words[1:] {
		ww := w.pdf.GetStringWidth(word)
		if currentWidth+space+ww <= width {
			current += " " + word
			currentWidth += space + ww
			continue
		}
		lines = append(lines, current)
		current, currentWidth = word, ww
	}
	return append(lines, current)
}

func (w *pdfWriter) linesNeeded(s string, width float64) int {
	if n := len(w.wrap(s, width)); n > 0 {
		return n
	}
	return 1
}

// cellText writes wrapped text inside a cell, ending with an ellipsis when
// the text needs more than maxLines.
func (w *pdfWriter) cellText(s string, width, lineHeight float64, maxLines int) {
	x := w.pdf.GetX()
	lines := w.wrap(s, width)
	for i := 0; i < len(lines) && i < maxLines; i++ {
		line := lines[i]
		if i == maxLines-1 && len(lines) > maxLines {
			for w.pdf.GetStringWidth(line+"...") > width && len(line) > 3 {
				line = line[:len(line)-1]
			}
			line += "..."
		}
		w.pdf.SetX(x)
		w.pdf.CellFormat(width, lineHeight, line, "", 2, "L", false, 0, "")
	}
}
