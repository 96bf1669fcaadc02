package statement

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/property"
	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared"
	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/statement"
	"github.com/Jc7j/ProperlyOld-sub000/internal/infrastructure/telemetry"
)

// BatchConfig holds tuning for monthly batch imports
type BatchConfig struct {
	// MaxStatements is the largest accepted batch
	MaxStatements int
	// ChunkSize is how many statements are written per transaction. The
	// persistence store aborts transactions that outlive its wall-clock
	// budget, so one transaction never covers the whole batch.
	ChunkSize int
	// RetentionMonths is how far back a statement month may lie
	RetentionMonths int
	// IdempotencyTTL is how long a submitted batch key stays claimed
	IdempotencyTTL time.Duration
}

// DefaultBatchConfig returns the default batch import configuration
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxStatements:   100,
		ChunkSize:       25,
		RetentionMonths: 24,
		IdempotencyTTL:  24 * time.Hour,
	}
}

// BatchService creates a month of statements from pre-matched drafts
type BatchService struct {
	statements  statement.Repository
	properties  property.Repository
	idempotency shared.IdempotencyStore
	config      BatchConfig
	logger      *zap.Logger
	metrics     *telemetry.StatementMetrics
}

// NewBatchService creates a new BatchService. The idempotency store may be
// nil, which disables replay protection.
func NewBatchService(
	statements statement.Repository,
	properties property.Repository,
	idempotency shared.IdempotencyStore,
	logger *zap.Logger,
) *BatchService {
	return &BatchService{
		statements:  statements,
		properties:  properties,
		idempotency: idempotency,
		config:      DefaultBatchConfig(),
		logger:      logger,
	}
}

// SetConfig sets the service configuration
func (s *BatchService) SetConfig(config BatchConfig) {
	s.config = config
}

// SetStatementMetrics sets the business metrics collector
func (s *BatchService) SetStatementMetrics(sm *telemetry.StatementMetrics) {
	s.metrics = sm
}

// recordChunk notes one chunk commit outcome when metrics are wired
func (s *BatchService) recordChunk(ctx context.Context, orgID uuid.UUID, result telemetry.ChunkResult) {
	if s.metrics != nil {
		s.metrics.RecordBatchChunk(ctx, orgID, result)
	}
}

// DraftInput is one per-property draft in a monthly batch. Drafts arrive
// already grouped and matched by the review step.
type DraftInput struct {
	PropertyID  uuid.UUID             `json:"property_id" binding:"required"`
	Notes       string                `json:"notes"`
	Incomes     []IncomeItemInput     `json:"incomes"`
	Expenses    []ExpenseItemInput    `json:"expenses"`
	Adjustments []AdjustmentItemInput `json:"adjustments"`
}

// CreateMonthlyBatchRequest submits a month of drafts
type CreateMonthlyBatchRequest struct {
	Month          string       `json:"statement_month" binding:"required,statement_month"`
	Drafts         []DraftInput `json:"drafts" binding:"required"`
	SkipExisting   bool         `json:"skip_existing"`
	IdempotencyKey string       `json:"idempotency_key"`
}

// BatchResult reports what a monthly batch actually did. Chunks commit
// independently, so a late failure still leaves CreatedCount statements in
// place; FailedProperties lists the drafts that never made it.
type BatchResult struct {
	CreatedCount     int        `json:"created_count"`
	ExistingCount    int        `json:"existing_count"`
	ReplacedCount    int        `json:"replaced_count"`
	FirstStatementID *uuid.UUID `json:"first_statement_id,omitempty"`
	FailedProperties []string   `json:"failed_properties,omitempty"`
}

// CreateMonthlyBatch validates the batch, resolves the skip-or-replace
// conflict policy against existing statements, and writes the drafts in
// fixed-size chunks, each in its own transaction
func (s *BatchService) CreateMonthlyBatch(ctx context.Context, orgID, userID uuid.UUID, req CreateMonthlyBatchRequest) (*BatchResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "owner_statement", "monthly_batch")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrgID, orgID.String(),
		telemetry.SpanAttrStatementMonth, req.Month,
		telemetry.SpanAttrBatchSize, len(req.Drafts),
	)

	month, err := statement.ParseMonth(req.Month)
	if err != nil {
		return nil, err
	}

	// Guards run before any query touches the store
	if len(req.Drafts) == 0 {
		return nil, shared.NewValidationError("batch contains no draft statements")
	}
	if len(req.Drafts) > s.config.MaxStatements {
		return nil, shared.NewValidationError("batch of %d drafts exceeds the limit of %d per call", len(req.Drafts), s.config.MaxStatements)
	}
	current := statement.MonthOf(time.Now().UTC())
	if month.After(current) {
		return nil, shared.NewValidationError("statement month %s is in the future", statement.FormatMonth(month))
	}
	if horizon := current.AddDate(0, -s.config.RetentionMonths, 0); month.Before(horizon) {
		return nil, shared.NewValidationError("statement month %s is older than the %d-month retention horizon", statement.FormatMonth(month), s.config.RetentionMonths)
	}

	if req.IdempotencyKey != "" && s.idempotency != nil {
		key := fmt.Sprintf("monthly-batch:%s:%s", orgID, req.IdempotencyKey)
		first, err := s.idempotency.MarkProcessed(ctx, key, s.config.IdempotencyTTL)
		if err != nil {
			// Replay protection is best-effort; an unreachable store must
			// not block the import
			s.logger.Warn("idempotency store unavailable, continuing without replay protection",
				zap.String("key", req.IdempotencyKey), zap.Error(err))
		} else if !first {
			return nil, shared.NewStateError("batch %q was already submitted", req.IdempotencyKey)
		}
	}

	propertyIDs := make([]uuid.UUID, 0, len(req.Drafts))
	seen := make(map[uuid.UUID]bool, len(req.Drafts))
	for _, d := range req.Drafts {
		if !seen[d.PropertyID] {
			seen[d.PropertyID] = true
			propertyIDs = append(propertyIDs, d.PropertyID)
		}
	}

	props, err := s.properties.FindByIDsForOrg(ctx, orgID, propertyIDs)
	if err != nil {
		return nil, err
	}
	nameByID := make(map[uuid.UUID]string, len(props))
	for _, p := range props {
		nameByID[p.ID] = p.Name
	}
	if len(props) != len(propertyIDs) {
		var unknown []string
		for _, id := range propertyIDs {
			if _, ok := nameByID[id]; !ok {
				unknown = append(unknown, id.String())
			}
		}
		return nil, shared.NewValidationError("properties do not belong to this organization: %s", strings.Join(unknown, ", "))
	}

	existing, err := s.statements.FindLiveByMonthForOrg(ctx, orgID, month)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{}
	drafts := req.Drafts
	if req.SkipExisting {
		taken := make(map[uuid.UUID]bool, len(existing))
		for _, st := range existing {
			taken[st.PropertyID] = true
		}
		kept := make([]DraftInput, 0, len(drafts))
		for _, d := range drafts {
			if taken[d.PropertyID] {
				result.ExistingCount++
				continue
			}
			kept = append(kept, d)
		}
		drafts = kept
	} else if len(existing) > 0 {
		replaced, err := s.statements.TombstoneAllForMonth(ctx, orgID, month, &userID)
		if err != nil {
			return nil, err
		}
		result.ReplacedCount = int(replaced)
	}

	if len(drafts) == 0 {
		return nil, shared.NewStateError("all %d properties already have a statement for %s; nothing to create", result.ExistingCount, statement.FormatMonth(month))
	}

	statements := make([]*statement.OwnerStatement, 0, len(drafts))
	for _, d := range drafts {
		st, err := statement.NewOwnerStatement(
			orgID, d.PropertyID, month, d.Notes,
			toDomainIncomes(d.Incomes),
			toDomainExpenses(d.Expenses),
			toDomainAdjustments(d.Adjustments),
		)
		if err != nil {
			return nil, err
		}
		st.CreatedBy = &userID
		statements = append(statements, st)
	}

	chunkSize := s.config.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultBatchConfig().ChunkSize
	}
	var aborted bool
	telemetry.WithProfilingLabels(ctx, telemetry.StatementOperationLabels(telemetry.OperationMonthlyBatch, orgID.String()), func(c context.Context) {
		for start := 0; start < len(statements); start += chunkSize {
			end := min(start+chunkSize, len(statements))
			if err := s.statements.CreateBatch(c, statements[start:end]); err != nil {
				// Committed chunks stay committed; everything from this chunk
				// on is reported back for the caller to retry
				s.recordChunk(c, orgID, telemetry.ChunkFailed)
				telemetry.RecordError(span, err)
				s.logger.Error("batch chunk failed, aborting remaining chunks",
					zap.String("month", statement.FormatMonth(month)),
					zap.Int("committed", result.CreatedCount),
					zap.Error(err))
				for _, st := range statements[start:] {
					result.FailedProperties = append(result.FailedProperties, nameByID[st.PropertyID])
				}
				sort.Strings(result.FailedProperties)
				aborted = true
				return
			}
			s.recordChunk(c, orgID, telemetry.ChunkCommitted)
			result.CreatedCount += end - start
			if result.FirstStatementID == nil {
				first := statements[start].ID
				result.FirstStatementID = &first
			}
		}
	})

	if s.metrics != nil {
		s.metrics.RecordStatementsCreated(ctx, orgID, telemetry.StatementSourceBatch, int64(result.CreatedCount))
	}
	if aborted {
		return result, nil
	}

	telemetry.AddEvent(span, "monthly_batch_created",
		"created", result.CreatedCount,
		"replaced", result.ReplacedCount,
	)
	s.logger.Info("monthly batch created",
		zap.String("month", statement.FormatMonth(month)),
		zap.Int("created", result.CreatedCount),
		zap.Int("existing", result.ExistingCount),
		zap.Int("replaced", result.ReplacedCount))
	return result, nil
}
