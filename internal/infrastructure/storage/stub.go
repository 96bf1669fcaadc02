// Package storage provides object storage implementations for invoice
// archival.
package storage

import (
	"context"
	"errors"
	"time"

	appstatement "github.com/Jc7j/ProperlyOld-sub000/internal/application/statement"
)

// StubInvoiceArchive is the archive used when storage is disabled in config.
// Store is a no-op, so invoice parsing still works in deployments that have
// no object storage; only the audit copy is skipped.
type StubInvoiceArchive struct {
	// BaseURL is the base URL for generating download URLs
	// Defaults to "https://storage.example.com" if not set
	BaseURL string
}

// NewStubInvoiceArchive creates a new StubInvoiceArchive
func NewStubInvoiceArchive() *StubInvoiceArchive {
	return &StubInvoiceArchive{
		BaseURL: "https://storage.example.com",
	}
}

// Ensure StubInvoiceArchive implements InvoiceArchive
var _ appstatement.InvoiceArchive = (*StubInvoiceArchive)(nil)

// Store is a no-op that always succeeds
func (s *StubInvoiceArchive) Store(ctx context.Context, storageKey string, data []byte, contentType string) error {
	if storageKey == "" {
		return errors.New("storage key is required")
	}
	// No-op: in stub mode nothing is archived
	return nil
}

// GenerateDownloadURL generates a stub presigned URL for downloading a file
func (s *StubInvoiceArchive) GenerateDownloadURL(
	ctx context.Context,
	storageKey string,
	expiresIn time.Duration,
) (string, time.Time, error) {
	if storageKey == "" {
		return "", time.Time{}, errors.New("storage key is required")
	}

	expiresAt := time.Now().Add(expiresIn)
	url := s.BaseURL + "/download/" + storageKey + "?expires=" + expiresAt.Format(time.RFC3339)

	return url, expiresAt, nil
}

// DeleteObject is a no-op stub that always succeeds
func (s *StubInvoiceArchive) DeleteObject(ctx context.Context, storageKey string) error {
	if storageKey == "" {
		return errors.New("storage key is required")
	}
	return nil
}

// ObjectExists always returns true in stub mode
func (s *StubInvoiceArchive) ObjectExists(ctx context.Context, storageKey string) (bool, error) {
	if storageKey == "" {
		return false, errors.New("storage key is required")
	}
	return true, nil
}
