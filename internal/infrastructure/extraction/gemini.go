// Package extraction implements the invoice extractor port against the
// Gemini generateContent API.
package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	appstatement "github.com/Jc7j/ProperlyOld-sub000/internal/application/statement"
	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared"
	"github.com/Jc7j/ProperlyOld-sub000/internal/infrastructure/config"
)

const (
	// maxGeminiResponseSize limits the response body size to prevent memory exhaustion
	maxGeminiResponseSize = 10 * 1024 * 1024 // 10MB max response

	defaultGeminiEndpoint = "https://generativelanguage.googleapis.com"
	defaultGeminiModel    = "gemini-2.0-flash"
	defaultGeminiTimeout  = 60 * time.Second
)

// ErrMissingAPIKey indicates the extractor was constructed without credentials
var ErrMissingAPIKey = errors.New("extraction api key is required")

// GeminiExtractor implements InvoiceExtractor against the Gemini REST API.
// Calls are of unbounded latency; callers must never invoke it inside a
// database transaction.
type GeminiExtractor struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// GeminiExtractorOption is a functional option for configuring GeminiExtractor
type GeminiExtractorOption func(*GeminiExtractor)

// WithLogger sets a custom logger for GeminiExtractor
func WithLogger(logger *zap.Logger) GeminiExtractorOption {
	return func(g *GeminiExtractor) {
		g.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client, mainly for tests
func WithHTTPClient(client *http.Client) GeminiExtractorOption {
	return func(g *GeminiExtractor) {
		g.httpClient = client
	}
}

// NewGeminiExtractor creates a new Gemini-backed invoice extractor
func NewGeminiExtractor(cfg config.ExtractionConfig, opts ...GeminiExtractorOption) (*GeminiExtractor, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultGeminiEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGeminiTimeout
	}

	g := &GeminiExtractor{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// ExtractExpenses sends the invoice document to the model and parses the
// property-name-keyed expense map out of its answer. The returned keys are
// the model's best effort at the candidate names; callers re-match them
// against the actual properties.
func (g *GeminiExtractor) ExtractExpenses(ctx context.Context, doc appstatement.InvoiceDocument, candidateNames []string) (map[string][]appstatement.ExtractedExpense, error) {
	if len(doc.Data) == 0 {
		return nil, shared.NewValidationError("invoice document is empty")
	}

	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}

	temperature := 0.0
	reqBody := geminiRequest{
		Contents: []geminiContent{
			{
				Parts: []geminiPart{
					{Text: buildExpensePrompt(candidateNames)},
					{InlineData: &geminiInlineData{
						MimeType: contentType,
						Data:     base64.StdEncoding.EncodeToString(doc.Data),
					}},
				},
			},
		},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:      &temperature,
			ResponseMimeType: "application/json",
		},
	}

	respBody, err := g.doRequest(ctx, reqBody)
	if err != nil {
		return nil, err
	}

	var resp geminiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, shared.NewExtractionError("gemini: failed to parse response: %v", err)
	}
	if resp.Error != nil {
		return nil, shared.NewExtractionError("gemini: %d %s - %s", resp.Error.Code, resp.Error.Status, resp.Error.Message)
	}
	if !resp.IsSuccess() {
		return nil, shared.NewExtractionError("gemini: response contained no candidates")
	}

	expenses, err := parseExpenseMap(resp.Text())
	if err != nil {
		return nil, err
	}

	g.logger.Debug("extracted invoice expenses",
		zap.String("model", g.model),
		zap.Int("properties", len(expenses)),
	)

	return expenses, nil
}

// doRequest performs the generateContent HTTP call
func (g *GeminiExtractor) doRequest(ctx context.Context, reqBody geminiRequest) ([]byte, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, shared.NewExtractionError("gemini: failed to marshal request: %v", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.endpoint, g.model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, shared.NewExtractionError("gemini: failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, shared.NewExtractionError("gemini: request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGeminiResponseSize))
	if err != nil {
		return nil, shared.NewExtractionError("gemini: failed to read response: %v", err)
	}

	if resp.StatusCode >= 400 {
		return nil, shared.NewExtractionError("gemini: HTTP %d: %s", resp.StatusCode, truncateForError(body))
	}

	return body, nil
}

// buildExpensePrompt embeds the candidate property names into the extraction
// prompt. Keying the answer by these exact strings is the contract; the
// matcher downstream still re-verifies every key.
func buildExpensePrompt(candidateNames []string) string {
	var b strings.Builder
	b.WriteString("You are given a vendor invoice for short-term rental properties. ")
	b.WriteString("Extract every billed line item and group them by the property they belong to.\n\n")
	b.WriteString("Use EXACTLY these property names as keys (copy them verbatim, do not invent new ones):\n")
	for _, name := range candidateNames {
		b.WriteString("- ")
		b.WriteString(name)
		b.WriteString("\n")
	}
	b.WriteString("\nRespond with a single JSON object and nothing else, in this shape:\n")
	b.WriteString(`{"<property name>": [{"date": "YYYY-MM-DD", "amount": 123.45}]}` + "\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- \"amount\" is the charge for that line as a plain number.\n")
	b.WriteString("- \"date\" is the service date for that line; use \"\" when the invoice does not show one.\n")
	b.WriteString("- Omit properties that do not appear on the invoice.\n")
	b.WriteString("- If no line items can be attributed to any listed property, respond with {}.\n")
	return b.String()
}

// parseExpenseMap parses the model's JSON answer into the expense map.
// Models occasionally wrap JSON in markdown fences even when asked not to,
// so fences are stripped before parsing.
func parseExpenseMap(text string) (map[string][]appstatement.ExtractedExpense, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return nil, shared.NewExtractionError("gemini: model returned an empty answer")
	}

	var expenses map[string][]appstatement.ExtractedExpense
	if err := json.Unmarshal([]byte(cleaned), &expenses); err != nil {
		return nil, shared.NewExtractionError("gemini: model answer is not the expected JSON map: %v", err)
	}

	// Drop keys with no rows so callers can treat presence as "has expenses"
	for name, rows := range expenses {
		if len(rows) == 0 {
			delete(expenses, name)
		}
	}

	return expenses, nil
}

// truncateForError shortens a response body for inclusion in an error message
func truncateForError(body []byte) string {
	const max = 256
	s := string(body)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// Ensure GeminiExtractor implements InvoiceExtractor
var _ appstatement.InvoiceExtractor = (*GeminiExtractor)(nil)
