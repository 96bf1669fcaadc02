package extraction

import (
	"context"

	appstatement "github.com/Jc7j/ProperlyOld-sub000/internal/application/statement"
	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared"
)

// DisabledExtractor is the extractor used when extraction is disabled in
// config. Every call fails with a state error, so the parse endpoint stays
// routable and reports the missing capability instead of panicking.
type DisabledExtractor struct{}

// NewDisabledExtractor creates a new DisabledExtractor
func NewDisabledExtractor() *DisabledExtractor {
	return &DisabledExtractor{}
}

// Ensure DisabledExtractor implements InvoiceExtractor
var _ appstatement.InvoiceExtractor = (*DisabledExtractor)(nil)

// ExtractExpenses always fails; extraction is switched off for this deployment
func (e *DisabledExtractor) ExtractExpenses(ctx context.Context, doc appstatement.InvoiceDocument, candidateNames []string) (map[string][]appstatement.ExtractedExpense, error) {
	return nil, shared.NewStateError("invoice extraction is not configured")
}
