package statement

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/property"
	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared"
	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared/valueobject"
	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/statement"
	"github.com/Jc7j/ProperlyOld-sub000/internal/infrastructure/telemetry"
)

// VendorExpenseConfig holds tuning for vendor expense imports
type VendorExpenseConfig struct {
	// MaxRows is the most expense rows accepted per call
	MaxRows int
	// RowChunkSize is how many expense rows are written per transaction
	RowChunkSize int
	// ArchivePrefix is the storage key prefix for archived invoices
	ArchivePrefix string
}

// DefaultVendorExpenseConfig returns the default import configuration
func DefaultVendorExpenseConfig() VendorExpenseConfig {
	return VendorExpenseConfig{
		MaxRows:       1000,
		RowChunkSize:  200,
		ArchivePrefix: "invoices",
	}
}

// VendorExpenseService merges vendor expenses into a month's statements,
// whether they arrive as spreadsheet rows or as lines extracted from an
// invoice document
type VendorExpenseService struct {
	statements statement.Repository
	properties property.Repository
	reader     SpreadsheetReader
	extractor  InvoiceExtractor
	archive    InvoiceArchive
	config     VendorExpenseConfig
	logger     *zap.Logger
	metrics    *telemetry.StatementMetrics
}

// NewVendorExpenseService creates a new VendorExpenseService. The archive
// may be nil, which disables invoice archiving.
func NewVendorExpenseService(
	statements statement.Repository,
	properties property.Repository,
	reader SpreadsheetReader,
	extractor InvoiceExtractor,
	archive InvoiceArchive,
	logger *zap.Logger,
) *VendorExpenseService {
	return &VendorExpenseService{
		statements: statements,
		properties: properties,
		reader:     reader,
		extractor:  extractor,
		archive:    archive,
		config:     DefaultVendorExpenseConfig(),
		logger:     logger,
	}
}

// SetConfig sets the service configuration
func (s *VendorExpenseService) SetConfig(config VendorExpenseConfig) {
	s.config = config
}

// SetStatementMetrics sets the business metrics collector
func (s *VendorExpenseService) SetStatementMetrics(sm *telemetry.StatementMetrics) {
	s.metrics = sm
}

// recordRows notes distributed expense rows when metrics are wired
func (s *VendorExpenseService) recordRows(ctx context.Context, orgID uuid.UUID, source telemetry.RowSource, rows int) {
	if s.metrics != nil && rows > 0 {
		s.metrics.RecordVendorExpenseRows(ctx, orgID, source, int64(rows))
	}
}

// expenseRow is one validated expense bound for a specific statement
type expenseRow struct {
	statementID  uuid.UUID
	propertyName string
	item         statement.ExpenseItem
}

// ===================== Workbook import =====================

// VendorImportResult reports a workbook import. Chunks commit
// independently; FailedProperties lists properties whose rows were lost to
// a failed chunk.
type VendorImportResult struct {
	CreatedCount      int      `json:"created_count"`
	UpdatedProperties []string `json:"updated_properties"`
	FailedProperties  []string `json:"failed_properties,omitempty"`
}

// ImportFromWorkbook appends expense rows from an uploaded workbook to the
// live statements of the anchor statement's month. Every row is validated
// before anything is written: an unknown property name or a malformed date
// rejects the whole upload.
func (s *VendorExpenseService) ImportFromWorkbook(ctx context.Context, orgID, userID, statementID uuid.UUID, data []byte) (*VendorImportResult, error) {
	anchor, err := s.statements.FindByIDForOrg(ctx, orgID, statementID)
	if err != nil {
		return nil, err
	}
	month := anchor.StatementMonth

	rows, err := s.reader.Rows(data)
	if err != nil {
		return nil, shared.NewValidationError("could not read workbook: %v", err)
	}
	if len(rows) == 0 {
		return nil, shared.NewValidationError("workbook contains no expense rows")
	}
	if len(rows) > s.config.MaxRows {
		return nil, shared.NewValidationError("workbook has %d rows, the limit is %d per upload", len(rows), s.config.MaxRows)
	}

	index, byProperty, err := s.monthMatchingIndex(ctx, orgID, month)
	if err != nil {
		return nil, err
	}

	parsed := make([]expenseRow, 0, len(rows))
	for i, row := range rows {
		n := i + 1

		name := cell(row, "property", "property_name")
		if name == "" {
			return nil, shared.NewValidationError("row %d: missing property name", n)
		}
		prop, ok := index.Match(name)
		if !ok {
			return nil, shared.NewValidationError("row %d: no statement for property %q in %s", n, name, statement.FormatMonth(month))
		}

		dateStr := cell(row, "date")
		date, err := statement.ParseItemDate(dateStr)
		if err != nil {
			return nil, shared.NewValidationError("row %d: invalid date %q, expected %s", n, dateStr, statement.ItemDateLayout)
		}

		amountStr := cell(row, "amount")
		amount, err := strconv.ParseFloat(strings.ReplaceAll(amountStr, ",", ""), 64)
		if err != nil {
			return nil, shared.NewValidationError("row %d: invalid amount %q", n, amountStr)
		}

		parsed = append(parsed, expenseRow{
			statementID:  byProperty[prop.ID].ID,
			propertyName: prop.Name,
			item: statement.ExpenseItem{
				Date:        date.Format(statement.ItemDateLayout),
				Description: cell(row, "description", "memo"),
				Vendor:      cell(row, "vendor", "payee"),
				Amount:      valueobject.NewMoneyFromFloat(amount),
			},
		})
	}

	created, updated, failed := s.appendInChunks(ctx, orgID, userID, parsed)
	s.recordRows(ctx, orgID, telemetry.RowSourceWorkbook, created)
	s.logger.Info("workbook expenses imported",
		zap.String("month", statement.FormatMonth(month)),
		zap.Int("rows", created),
		zap.Int("properties", len(updated)))
	return &VendorImportResult{
		CreatedCount:      created,
		UpdatedProperties: updated,
		FailedProperties:  failed,
	}, nil
}

// ===================== Invoice parsing =====================

// ParseInvoiceRequest submits an invoice document for extraction
type ParseInvoiceRequest struct {
	Filename       string
	ContentType    string
	Data           []byte
	CandidateNames []string
}

// ParseInvoiceResponse carries the extracted per-property expenses. Keys of
// Expenses are canonical candidate names; extractor output that matched no
// candidate is listed under Unmatched for user review.
type ParseInvoiceResponse struct {
	Expenses   map[string][]ExtractedExpense `json:"expenses"`
	Unmatched  []string                      `json:"unmatched,omitempty"`
	ArchiveKey string                        `json:"archive_key,omitempty"`
}

// ParseInvoice runs the extractor over an invoice document and maps the
// result onto candidate property names. The extractor call is network-bound
// and happens before any persistence work; nothing is written here.
func (s *VendorExpenseService) ParseInvoice(ctx context.Context, orgID uuid.UUID, req ParseInvoiceRequest) (*ParseInvoiceResponse, error) {
	// Start tracing span for invoice extraction
	ctx, span := telemetry.StartServiceSpan(ctx, "vendor_expense", "parse_invoice")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrgID, orgID.String(),
		"filename", filepath.Base(req.Filename),
		"candidates", len(req.CandidateNames),
	)

	// Wrap in profiling labels for performance analysis
	var resp *ParseInvoiceResponse
	var operationErr error
	telemetry.WithProfilingLabels(ctx, telemetry.StatementOperationLabels(telemetry.OperationInvoiceParse, orgID.String()), func(c context.Context) {
		if len(req.Data) == 0 {
			err := shared.NewValidationError("invoice document is empty")
			telemetry.RecordError(span, err)
			operationErr = err
			return
		}

		candidates := req.CandidateNames
		if len(candidates) == 0 {
			props, err := s.properties.FindAllForOrg(c, orgID, true, shared.Filter{Page: 1, PageSize: 1000, OrderBy: "name", OrderDir: "asc"})
			if err != nil {
				telemetry.RecordError(span, err)
				operationErr = err
				return
			}
			for _, p := range props {
				candidates = append(candidates, p.Name)
			}
		}
		if len(candidates) == 0 {
			err := shared.NewStateError("organization has no properties to match against")
			telemetry.RecordError(span, err)
			operationErr = err
			return
		}

		doc := InvoiceDocument{
			Filename:    req.Filename,
			ContentType: req.ContentType,
			Data:        req.Data,
		}
		started := time.Now()
		extracted, err := s.extractor.ExtractExpenses(c, doc, candidates)
		if err != nil {
			wrapped := shared.NewExtractionError("invoice extraction failed: %v", err)
			telemetry.RecordError(span, wrapped)
			operationErr = wrapped
			return
		}
		if s.metrics != nil {
			s.metrics.RecordExtractionDuration(c, orgID, time.Since(started))
		}

		total := 0
		for _, list := range extracted {
			total += len(list)
		}
		if total == 0 {
			err := shared.NewDomainError(shared.ErrNotFound.Code, "no expenses were extracted from the invoice")
			telemetry.RecordError(span, err)
			operationErr = err
			return
		}
		telemetry.SetAttribute(span, telemetry.SpanAttrRowCount, total)

		archiveKey := s.archiveInvoice(c, orgID, doc)
		if archiveKey != "" {
			telemetry.AddEvent(span, "invoice_archived",
				telemetry.SpanAttrArchiveKey, archiveKey,
			)
		}

		canonical := make(map[string]string, len(candidates))
		for _, cand := range candidates {
			if key := property.Normalize(cand); key != "" {
				if _, exists := canonical[key]; !exists {
					canonical[key] = cand
				}
			}
		}

		resp = &ParseInvoiceResponse{
			Expenses:   make(map[string][]ExtractedExpense),
			ArchiveKey: archiveKey,
		}
		for name, list := range extracted {
			if canon, ok := canonical[property.Normalize(name)]; ok {
				resp.Expenses[canon] = append(resp.Expenses[canon], list...)
			} else {
				resp.Unmatched = append(resp.Unmatched, name)
			}
		}
		sort.Strings(resp.Unmatched)
	})

	return resp, operationErr
}

// archiveInvoice stores a copy of the document for audit. Archiving is
// best-effort: a storage failure is logged and the parse continues.
func (s *VendorExpenseService) archiveInvoice(ctx context.Context, orgID uuid.UUID, doc InvoiceDocument) string {
	if s.archive == nil {
		return ""
	}
	name := filepath.Base(doc.Filename)
	if name == "." || name == "/" || name == "" {
		name = "invoice.pdf"
	}
	key := fmt.Sprintf("%s/%s/%s/%s_%s",
		s.config.ArchivePrefix, orgID, time.Now().UTC().Format("2006/01"), uuid.New(), name)
	if err := s.archive.Store(ctx, key, doc.Data, doc.ContentType); err != nil {
		s.logger.Warn("invoice archive failed", zap.String("key", key), zap.Error(err))
		return ""
	}
	return key
}

// ===================== Monthly apply =====================

// VendorExpenseInput is one extracted expense submitted for application.
// Date may be empty; a fallback is substituted.
type VendorExpenseInput struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

// ApplyVendorExpensesRequest applies one vendor's invoice lines to a
// month's statements. Vendor and description apply uniformly to every row.
type ApplyVendorExpensesRequest struct {
	Month       string                          `json:"statement_month" binding:"required,statement_month"`
	Vendor      string                          `json:"vendor" binding:"required"`
	Description string                          `json:"description" binding:"required"`
	Expenses    map[string][]VendorExpenseInput `json:"expenses" binding:"required"`
}

// VendorApplyResult reports a monthly vendor expense application
type VendorApplyResult struct {
	CreatedCount      int      `json:"created_count"`
	UpdatedProperties []string `json:"updated_properties"`
	Unmatched         []string `json:"unmatched,omitempty"`
	FailedProperties  []string `json:"failed_properties,omitempty"`
}

// ApplyMonthlyVendorExpenses appends extracted expense rows to the live
// statements of a month. A (vendor, description) pair may be applied to a
// month only once; a pre-check rejects the call listing the properties that
// already carry it. Rows without a parseable date get the median of the
// call's valid dates, or the 15th of the month when there are none.
func (s *VendorExpenseService) ApplyMonthlyVendorExpenses(ctx context.Context, orgID, userID uuid.UUID, req ApplyVendorExpensesRequest) (*VendorApplyResult, error) {
	month, err := statement.ParseMonth(req.Month)
	if err != nil {
		return nil, err
	}
	vendor := strings.TrimSpace(req.Vendor)
	description := strings.TrimSpace(req.Description)
	if vendor == "" || description == "" {
		return nil, shared.NewValidationError("vendor and description are required")
	}

	total := 0
	for _, list := range req.Expenses {
		total += len(list)
	}
	if total == 0 {
		return nil, shared.NewValidationError("no expense rows to apply")
	}
	if total > s.config.MaxRows {
		return nil, shared.NewValidationError("request has %d rows, the limit is %d per call", total, s.config.MaxRows)
	}

	collisions, err := s.statements.FindVendorCollisionsForMonth(ctx, orgID, month, vendor, description)
	if err != nil {
		return nil, err
	}
	if len(collisions) > 0 {
		return nil, shared.NewValidationError("vendor %q with description %q was already applied to %s, affected properties: %s",
			vendor, description, statement.FormatMonth(month), strings.Join(collisions, ", "))
	}

	index, byProperty, err := s.monthMatchingIndex(ctx, orgID, month)
	if err != nil {
		return nil, err
	}
	if index.Len() == 0 {
		return nil, shared.NewStateError("no live statements exist for %s", statement.FormatMonth(month))
	}

	var validDates []time.Time
	for _, list := range req.Expenses {
		for _, in := range list {
			if d, err := statement.ParseItemDate(in.Date); err == nil {
				validDates = append(validDates, d)
			}
		}
	}
	fallback := statement.FallbackExpenseDate(validDates, month).Format(statement.ItemDateLayout)

	names := make([]string, 0, len(req.Expenses))
	for name := range req.Expenses {
		names = append(names, name)
	}
	sort.Strings(names)

	var parsed []expenseRow
	var unmatched []string
	for _, name := range names {
		prop, ok := index.Match(name)
		if !ok {
			unmatched = append(unmatched, name)
			continue
		}
		st := byProperty[prop.ID]
		for _, in := range req.Expenses[name] {
			dateStr := fallback
			if d, err := statement.ParseItemDate(in.Date); err == nil {
				dateStr = d.Format(statement.ItemDateLayout)
			}
			parsed = append(parsed, expenseRow{
				statementID:  st.ID,
				propertyName: prop.Name,
				item: statement.ExpenseItem{
					Date:        dateStr,
					Description: description,
					Vendor:      vendor,
					Amount:      valueobject.NewMoneyFromFloat(in.Amount),
				},
			})
		}
	}
	if len(parsed) == 0 {
		return nil, shared.NewStateError("none of the %d property names matched a statement for %s", len(names), statement.FormatMonth(month))
	}

	created, updated, failed := s.appendInChunks(ctx, orgID, userID, parsed)
	s.recordRows(ctx, orgID, telemetry.RowSourceInvoice, created)
	s.logger.Info("vendor expenses applied",
		zap.String("month", statement.FormatMonth(month)),
		zap.String("vendor", vendor),
		zap.Int("rows", created),
		zap.Int("properties", len(updated)),
		zap.Int("unmatched", len(unmatched)))
	return &VendorApplyResult{
		CreatedCount:      created,
		UpdatedProperties: updated,
		Unmatched:         unmatched,
		FailedProperties:  failed,
	}, nil
}

// ===================== Shared plumbing =====================

// monthMatchingIndex loads the live statements of a month and builds a
// normalized name index over their properties, plus a property-to-statement
// lookup
func (s *VendorExpenseService) monthMatchingIndex(ctx context.Context, orgID uuid.UUID, month time.Time) (*property.Index, map[uuid.UUID]*statement.OwnerStatement, error) {
	live, err := s.statements.FindLiveByMonthForOrg(ctx, orgID, month)
	if err != nil {
		return nil, nil, err
	}

	byProperty := make(map[uuid.UUID]*statement.OwnerStatement, len(live))
	ids := make([]uuid.UUID, 0, len(live))
	for _, st := range live {
		if _, ok := byProperty[st.PropertyID]; !ok {
			ids = append(ids, st.PropertyID)
		}
		byProperty[st.PropertyID] = st
	}

	props, err := s.properties.FindByIDsForOrg(ctx, orgID, ids)
	if err != nil {
		return nil, nil, err
	}
	return property.NewIndex(props), byProperty, nil
}

// appendInChunks writes validated expense rows in fixed-size chunks, one
// transaction per chunk, recomputing each touched statement's summary
// inside that transaction. On a chunk failure the committed chunks stand;
// the remaining rows' properties are returned as failed.
func (s *VendorExpenseService) appendInChunks(ctx context.Context, orgID, userID uuid.UUID, rows []expenseRow) (created int, updated, failed []string) {
	chunkSize := s.config.RowChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultVendorExpenseConfig().RowChunkSize
	}

	touched := make(map[string]bool)
	for start := 0; start < len(rows); start += chunkSize {
		end := min(start+chunkSize, len(rows))
		chunk := rows[start:end]

		itemsByID := make(map[uuid.UUID][]statement.ExpenseItem)
		ids := make([]uuid.UUID, 0, len(chunk))
		for _, r := range chunk {
			if _, ok := itemsByID[r.statementID]; !ok {
				ids = append(ids, r.statementID)
			}
			itemsByID[r.statementID] = append(itemsByID[r.statementID], r.item)
		}

		err := s.statements.MutateMany(ctx, orgID, ids, func(st *statement.OwnerStatement) error {
			st.AppendExpenses(itemsByID[st.ID])
			st.SetUpdatedBy(userID)
			return nil
		})
		if err != nil {
			s.logger.Error("expense chunk failed, aborting remaining chunks",
				zap.Int("committed_rows", created), zap.Error(err))
			failedSet := make(map[string]bool)
			for _, r := range rows[start:] {
				if !failedSet[r.propertyName] {
					failedSet[r.propertyName] = true
					failed = append(failed, r.propertyName)
				}
			}
			sort.Strings(failed)
			break
		}

		created += len(chunk)
		for _, r := range chunk {
			touched[r.propertyName] = true
		}
	}

	updated = make([]string, 0, len(touched))
	for name := range touched {
		updated = append(updated, name)
	}
	sort.Strings(updated)
	return created, updated, failed
}

// cell reads the first non-empty of several columns from a workbook row
func cell(row WorkbookRow, keys ...string) string {
	for _, k := range keys {
		if v, ok := row[k]; ok {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
