package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealdesk/internal/remote"
)

const (
	mistralEndpoint     = "https://api.mistral.ai/v1/ocr"
	defaultMistralModel = "mistral-ocr-latest"
	mistralTimeout      = 2 * time.Minute
)

// MistralOCR extracts text from scanned PDFs with the Mistral OCR API.
type MistralOCR struct {
	apiKey   string
	model    string
	endpoint string
	http     *http.Client
}

// MistralOption configures a MistralOCR.
type MistralOption func(*MistralOCR)

// WithEndpoint overrides the OCR endpoint URL.
func WithEndpoint(url string) MistralOption {
	return func(m *MistralOCR) { m.endpoint = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) MistralOption {
	return func(m *MistralOCR) { m.http = c }
}

// NewMistralOCR creates a MistralOCR extractor. An empty model uses
// mistral-ocr-latest.
func NewMistralOCR(apiKey, model string, opts ...MistralOption) *MistralOCR {
	if model == "" {
		model = defaultMistralModel
	}
	m := &MistralOCR{
		apiKey:   apiKey,
		model:    model,
		endpoint: mistralEndpoint,
		http:     &http.Client{Timeout: mistralTimeout},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

type ocrRequest struct {
	Model    string      `json:"model"`
	Document ocrDocument `json:"document"`
}

type ocrDocument struct {
	Type         string `json:"type"`
	DocumentURL  string `json:"document_url"`
	DocumentName string `json:"document_name,omitempty"`
}

type ocrResponse struct {
	Pages []struct {
		Index    int    `json:"index"`
		Markdown string `json:"markdown"`
	} `json:"pages"`
}

// ExtractText uploads the PDF inline as a data URL and returns the page
// markdown in page order.
func (m *MistralOCR) ExtractText(ctx context.Context, name string, pdf []byte) (string, error) {
	body, err := json.Marshal(ocrRequest{
		Model: m.model,
		Document: ocrDocument{
			Type:         "document_url",
			DocumentURL:  "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdf),
			DocumentName: name,
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "ocr: encode mistral request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "ocr: build mistral request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	op := "ocr " + name
	resp, err := m.http.Do(req)
	if err != nil {
		return "", remote.Wrap("mistral", op, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", remote.Wrap("mistral", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", remote.HTTP("mistral", op, resp.StatusCode, raw)
	}

	var out ocrResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", eris.Wrap(err, "ocr: decode mistral response")
	}
	sort.SliceStable(out.Pages, func(i, j int) bool { return out.Pages[i].Index < out.Pages[j].Index })

	pages := make([]string, len(out.Pages))
	for i, p := range out.Pages {
		pages[i] = p.Markdown
	}
	return joinPages(pages), nil
}
