package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// PdfToText extracts the text layer of PDFs with the poppler pdftotext
// binary. Scanned PDFs without a text layer come back blank.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. An empty binPath looks up
// "pdftotext" on PATH.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractText pipes the PDF through pdftotext in layout mode. pdftotext
// ends every page with a form feed.
func (p *PdfToText) ExtractText(ctx context.Context, name string, pdf []byte) (string, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", "-enc", "UTF-8", "-", "-")
	cmd.Stdin = bytes.NewReader(pdf)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", eris.Wrapf(ctx.Err(), "ocr: pdftotext %s", name)
		}
		return "", eris.Wrapf(err, "ocr: pdftotext %s: %s", name, strings.TrimSpace(stderr.String()))
	}

	pages := strings.Split(strings.TrimRight(stdout.String(), "\f\n"), "\f")
	return joinPages(pages), nil
}
