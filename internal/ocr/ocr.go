// Package ocr turns PDF bytes into plain text for the document parser.
// Both providers mark page boundaries the same way so prompts can cite
// page numbers.
package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealdesk/internal/config"
)

// Extractor extracts text content from a PDF held in memory. Name is used
// for diagnostics only.
type Extractor interface {
	ExtractText(ctx context.Context, name string, pdf []byte) (string, error)
}

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg config.OCRConfig) (Extractor, error) {
	switch cfg.Provider {
	case "local", "":
		return NewPdfToText(cfg.PdfToTextPath), nil
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires mistral_api_key")
		}
		return NewMistralOCR(cfg.MistralKey, cfg.MistralModel), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

// joinPages renders pages with a "--- page N ---" header before each
// non-blank page. A single-page document gets no header.
func joinPages(pages []string) string {
	var kept []int
	for i, p := range pages {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, i)
		}
	}
	if len(pages) == 1 && len(kept) == 1 {
		return strings.TrimSpace(pages[0])
	}

	var sb strings.Builder
	for n, i := range kept {
		if n > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "--- page %d ---\n", i+1)
		sb.WriteString(strings.TrimSpace(pages[i]))
	}
	return sb.String()
}
