package statement

import (
	"context"
	"time"
)

// WorkbookRow is a single spreadsheet row keyed by lowercased column header.
// Readers make no schema promise; services validate the fields they need.
type WorkbookRow map[string]string

// SpreadsheetReader turns uploaded workbook bytes into ordered rows.
// Implemented by the infrastructure layer (xlsx today).
type SpreadsheetReader interface {
	Rows(data []byte) ([]WorkbookRow, error)
}

// ExtractedExpense is one expense line pulled out of an invoice document.
// Date may be empty when the invoice omits per-line dates; the apply step
// substitutes a fallback.
type ExtractedExpense struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

// InvoiceDocument is an uploaded invoice file
type InvoiceDocument struct {
	Filename    string
	ContentType string
	Data        []byte
}

// InvoiceExtractor pulls a property-name-keyed expense map out of an
// invoice. Implementations call an external model over the network and are
// of unbounded latency, so they must never run inside a database
// transaction. The extractor is prompted with the candidate names but the
// returned keys are best-effort; callers re-match them.
type InvoiceExtractor interface {
	ExtractExpenses(ctx context.Context, doc InvoiceDocument, candidateNames []string) (map[string][]ExtractedExpense, error)
}

// InvoiceArchive keeps a copy of processed invoice documents for audit.
// Implemented by the infrastructure layer (S3 today).
type InvoiceArchive interface {
	// Store uploads the document under the given storage key
	Store(ctx context.Context, storageKey string, data []byte, contentType string) error

	// GenerateDownloadURL generates a presigned URL for retrieving an
	// archived document
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)
}
