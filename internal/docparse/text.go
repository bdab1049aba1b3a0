package docparse

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealdesk/internal/intake"
)

// maxDocumentChars bounds the text sent per document.
const maxDocumentChars = 120_000

type docKind int

const (
	kindUnsupported docKind = iota
	kindPDF
	kindText
)

func classify(f intake.File) docKind {
	mime := strings.ToLower(strings.TrimSpace(f.MimeType))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch {
	case mime == "application/pdf":
		return kindPDF
	case strings.HasPrefix(mime, "text/"), mime == "application/json", mime == "application/csv":
		return kindText
	}

	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".pdf":
		return kindPDF
	case ".txt", ".csv", ".json", ".md", ".tsv":
		return kindText
	}
	return kindUnsupported
}

// documentText returns the plain text of f. PDFs go through the OCR
// extractor; text payloads are used as-is.
func (p *Parser) documentText(ctx context.Context, f intake.File) (string, error) {
	switch classify(f) {
	case kindPDF:
		text, err := p.ocr.ExtractText(ctx, f.Name, f.Data)
		if err != nil {
			return "", eris.Wrapf(err, "docparse: extract text from %s", f.Name)
		}
		return text, nil
	case kindText:
		return string(f.Data), nil
	}
	return "", errUnsupported
}

var errUnsupported = eris.New("docparse: unsupported document type")

// renderDocuments concatenates the text of files under per-document
// headers. Unreadable or empty documents become warnings; an error is
// returned only when extraction itself fails or nothing is readable.
func (p *Parser) renderDocuments(ctx context.Context, files []intake.File) (string, []string, error) {
	var (
		sb       strings.Builder
		warnings []string
		readable int
	)
	for _, f := range files {
		text, err := p.documentText(ctx, f)
		if eris.Is(err, errUnsupported) {
			warnings = append(warnings, fmt.Sprintf("%s skipped: unsupported document type %q", f.Name, f.MimeType))
			continue
		}
		if err != nil {
			return "", warnings, err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			warnings = append(warnings, fmt.Sprintf("no text could be read from %s", f.Name))
			continue
		}
		if len(text) > maxDocumentChars {
			text = truncate(text, maxDocumentChars)
			warnings = append(warnings, fmt.Sprintf("%s truncated to %d characters", f.Name, maxDocumentChars))
		}
		readable++
		fmt.Fprintf(&sb, "=== Document: %s ===\n%s\n\n", f.Name, text)
	}
	if readable == 0 {
		return "", warnings, eris.New("docparse: no readable text in documents")
	}
	return sb.String(), warnings, nil
}
