package statement

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/property"
	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared"
	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/statement"
)

func newTestBatchService() (*BatchService, *MockStatementRepository, *MockPropertyRepository, *MockIdempotencyStore) {
	mockStmts := new(MockStatementRepository)
	mockProps := new(MockPropertyRepository)
	mockIdem := new(MockIdempotencyStore)
	service := NewBatchService(mockStmts, mockProps, mockIdem, zap.NewNop())
	return service, mockStmts, mockProps, mockIdem
}

// currentBatchMonth returns the present calendar month, which always passes
// the future and retention guards
func currentBatchMonth() time.Time {
	return statement.MonthOf(time.Now().UTC())
}

func batchProperties(n int) []*property.Property {
	props := make([]*property.Property, 0, n)
	for i := 0; i < n; i++ {
		p, _ := property.NewProperty(testOrgID(), fmt.Sprintf("Unit %c", 'A'+i), "")
		props = append(props, p)
	}
	return props
}

// draftFor sums to income 500.00, expenses 120.00, grand total 380.00
func draftFor(propertyID uuid.UUID) DraftInput {
	return DraftInput{
		PropertyID: propertyID,
		Incomes: []IncomeItemInput{
			{CheckIn: "2024-06-01", CheckOut: "2024-06-05", Days: 4, Platform: "Airbnb", GrossIncome: 500.00},
		},
		Expenses: []ExpenseItemInput{
			{Date: "2024-06-10", Description: "Cleaning", Vendor: "TidyCo", Amount: 120.00},
		},
	}
}

func TestBatchService_CreateMonthlyBatch_Success(t *testing.T) {
	service, mockStmts, mockProps, _ := newTestBatchService()

	ctx := context.Background()
	orgID := testOrgID()
	month := currentBatchMonth()
	props := batchProperties(3)

	drafts := make([]DraftInput, 0, len(props))
	ids := make([]uuid.UUID, 0, len(props))
	for _, p := range props {
		drafts = append(drafts, draftFor(p.ID))
		ids = append(ids, p.ID)
	}
	req := CreateMonthlyBatchRequest{
		Month:  statement.FormatMonth(month),
		Drafts: drafts,
	}

	mockProps.On("FindByIDsForOrg", mock.Anything, orgID, ids).Return(props, nil)
	mockStmts.On("FindLiveByMonthForOrg", mock.Anything, orgID, month).Return([]*statement.OwnerStatement{}, nil)
	mockStmts.On("CreateBatch", mock.Anything, mock.MatchedBy(func(sts []*statement.OwnerStatement) bool {
		return len(sts) == 3
	})).Return(nil)

	result, err := service.CreateMonthlyBatch(ctx, orgID, testUserID(), req)

	assert.NoError(t, err)
	assert.Equal(t, 3, result.CreatedCount)
	assert.Equal(t, 0, result.ExistingCount)
	assert.Equal(t, 0, result.ReplacedCount)
	assert.NotNil(t, result.FirstStatementID)
	assert.Empty(t, result.FailedProperties)
	mockStmts.AssertExpectations(t)
	mockProps.AssertExpectations(t)
}

func TestBatchService_CreateMonthlyBatch_AggregatesComputedBeforeInsert(t *testing.T) {
	service, mockStmts, mockProps, _ := newTestBatchService()

	ctx := context.Background()
	orgID := testOrgID()
	month := currentBatchMonth()
	props := batchProperties(1)

	req := CreateMonthlyBatchRequest{
		Month:  statement.FormatMonth(month),
		Drafts: []DraftInput{draftFor(props[0].ID)},
	}

	mockProps.On("FindByIDsForOrg", mock.Anything, orgID, []uuid.UUID{props[0].ID}).Return(props, nil)
	mockStmts.On("FindLiveByMonthForOrg", mock.Anything, orgID, month).Return([]*statement.OwnerStatement{}, nil)
	mockStmts.On("CreateBatch", mock.Anything, mock.MatchedBy(func(sts []*statement.OwnerStatement) bool {
		return len(sts) == 1 &&
			sts[0].TotalIncome.String() == "500.00" &&
			sts[0].TotalExpenses.String() == "120.00" &&
			sts[0].GrandTotal.String() == "380.00"
	})).Return(nil)

	result, err := service.CreateMonthlyBatch(ctx, orgID, testUserID(), req)

	assert.NoError(t, err)
	assert.Equal(t, 1, result.CreatedCount)
	mockStmts.AssertExpectations(t)
}

func TestBatchService_CreateMonthlyBatch_FutureMonth(t *testing.T) {
	service, mockStmts, mockProps, _ := newTestBatchService()

	future := currentBatchMonth().AddDate(0, 2, 0)
	req := CreateMonthlyBatchRequest{
		Month:  statement.FormatMonth(future),
		Drafts: []DraftInput{draftFor(testPropertyID())},
	}

	result, err := service.CreateMonthlyBatch(context.Background(), testOrgID(), testUserID(), req)

	assert.Error(t, err)
	assert.Nil(t, result)
	var domainErr *shared.DomainError
	assert.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "VALIDATION_ERROR", domainErr.Code)
	assert.Contains(t, domainErr.Message, "future")
	// Guards run before any store access
	mockProps.AssertNotCalled(t, "FindByIDsForOrg", mock.Anything, mock.Anything, mock.Anything)
	mockStmts.AssertNotCalled(t, "FindLiveByMonthForOrg", mock.Anything, mock.Anything, mock.Anything)
}

func TestBatchService_CreateMonthlyBatch_MonthBeyondRetention(t *testing.T) {
	service, mockStmts, mockProps, _ := newTestBatchService()

	old := currentBatchMonth().AddDate(-3, 0, 0)
	req := CreateMonthlyBatchRequest{
		Month:  statement.FormatMonth(old),
		Drafts: []DraftInput{draftFor(testPropertyID())},
	}

	result, err := service.CreateMonthlyBatch(context.Background(), testOrgID(), testUserID(), req)

	assert.Error(t, err)
	assert.Nil(t, result)
	var domainErr *shared.DomainError
	assert.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "VALIDATION_ERROR", domainErr.Code)
	assert.Contains(t, domainErr.Message, "retention")
	mockProps.AssertNotCalled(t, "FindByIDsForOrg", mock.Anything, mock.Anything, mock.Anything)
	mockStmts.AssertNotCalled(t, "FindLiveByMonthForOrg", mock.Anything, mock.Anything, mock.Anything)
}

func TestBatchService_CreateMonthlyBatch_OverLimit(t *testing.T) {
	service, mockStmts, mockProps, _ := newTestBatchService()
	cfg := DefaultBatchConfig()
	cfg.MaxStatements = 2
	service.SetConfig(cfg)

	drafts := []DraftInput{
		draftFor(uuid.New()),
		draftFor(uuid.New()),
		draftFor(uuid.New()),
	}
	req := CreateMonthlyBatchRequest{Month: statement.FormatMonth(currentBatchMonth()), Drafts: drafts}

	result, err := service.CreateMonthlyBatch(context.Background(), testOrgID(), testUserID(), req)

	assert.Error(t, err)
	assert.Nil(t, result)
	var domainErr *shared.DomainError
	assert.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "VALIDATION_ERROR", domainErr.Code)
	mockProps.AssertNotCalled(t, "FindByIDsForOrg", mock.Anything, mock.Anything, mock.Anything)
	mockStmts.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
}

func TestBatchService_CreateMonthlyBatch_EmptyBatch(t *testing.T) {
	service, _, _, _ := newTestBatchService()

	req := CreateMonthlyBatchRequest{Month: statement.FormatMonth(currentBatchMonth())}

	result, err := service.CreateMonthlyBatch(context.Background(), testOrgID(), testUserID(), req)

	assert.Error(t, err)
	assert.Nil(t, result)
	var domainErr *shared.DomainError
	assert.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "VALIDATION_ERROR", domainErr.Code)
}

func TestBatchService_CreateMonthlyBatch_UnknownProperty(t *testing.T) {
	service, mockStmts, mockProps, _ := newTestBatchService()

	ctx := context.Background()
	orgID := testOrgID()
	month := currentBatchMonth()
	props := batchProperties(1)
	strangerID := uuid.MustParse("99999999-9999-9999-9999-999999999999")

	req := CreateMonthlyBatchRequest{
		Month:  statement.FormatMonth(month),
		Drafts: []DraftInput{draftFor(props[0].ID), draftFor(strangerID)},
	}

	mockProps.On("FindByIDsForOrg", mock.Anything, orgID, []uuid.UUID{props[0].ID, strangerID}).Return(props, nil)

	result, err := service.CreateMonthlyBatch(ctx, orgID, testUserID(), req)

	assert.Error(t, err)
	assert.Nil(t, result)
	var domainErr *shared.DomainError
	assert.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "VALIDATION_ERROR", domainErr.Code)
	assert.Contains(t, domainErr.Message, strangerID.String())
	// The whole batch is rejected, not partially imported
	mockStmts.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
	mockStmts.AssertNotCalled(t, "TombstoneAllForMonth", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBatchService_CreateMonthlyBatch_SkipExisting(t *testing.T) {
	service, mockStmts, mockProps, _ := newTestBatchService()

	ctx := context.Background()
	orgID := testOrgID()
	month := currentBatchMonth()
	props := batchProperties(2)
	taken := createTestStatement(orgID, props[0].ID, month)

	req := CreateMonthlyBatchRequest{
		Month:        statement.FormatMonth(month),
		Drafts:       []DraftInput{draftFor(props[0].ID), draftFor(props[1].ID)},
		SkipExisting: true,
	}

	mockProps.On("FindByIDsForOrg", mock.Anything, orgID, []uuid.UUID{props[0].ID, props[1].ID}).Return(props, nil)
	mockStmts.On("FindLiveByMonthForOrg", mock.Anything, orgID, month).Return([]*statement.OwnerStatement{taken}, nil)
	mockStmts.On("CreateBatch", mock.Anything, mock.MatchedBy(func(sts []*statement.OwnerStatement) bool {
		return len(sts) == 1 && sts[0].PropertyID == props[1].ID
	})).Return(nil)

	result, err := service.CreateMonthlyBatch(ctx, orgID, testUserID(), req)

	assert.NoError(t, err)
	assert.Equal(t, 1, result.CreatedCount)
	assert.Equal(t, 1, result.ExistingCount)
	assert.Equal(t, 0, result.ReplacedCount)
	mockStmts.AssertNotCalled(t, "TombstoneAllForMonth", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockStmts.AssertExpectations(t)
}

func TestBatchService_CreateMonthlyBatch_ReplaceExisting(t *testing.T) {
	service, mockStmts, mockProps, _ := newTestBatchService()

	ctx := context.Background()
	orgID := testOrgID()
	userID := testUserID()
	month := currentBatchMonth()
	props := batchProperties(2)
	existing := []*statement.OwnerStatement{
		createTestStatement(orgID, props[0].ID, month),
		createTestStatement(orgID, props[1].ID, month),
	}

	req := CreateMonthlyBatchRequest{
		Month:        statement.FormatMonth(month),
		Drafts:       []DraftInput{draftFor(props[0].ID), draftFor(props[1].ID)},
		SkipExisting: false,
	}

	mockProps.On("FindByIDsForOrg", mock.Anything, orgID, []uuid.UUID{props[0].ID, props[1].ID}).Return(props, nil)
	mockStmts.On("FindLiveByMonthForOrg", mock.Anything, orgID, month).Return(existing, nil)
	mockStmts.On("TombstoneAllForMonth", mock.Anything, orgID, month, &userID).Return(int64(2), nil)
	mockStmts.On("CreateBatch", mock.Anything, mock.MatchedBy(func(sts []*statement.OwnerStatement) bool {
		return len(sts) == 2
	})).Return(nil)

	result, err := service.CreateMonthlyBatch(ctx, orgID, userID, req)

	assert.NoError(t, err)
	assert.Equal(t, 2, result.CreatedCount)
	assert.Equal(t, 2, result.ReplacedCount)
	assert.Equal(t, 0, result.ExistingCount)
	mockStmts.AssertExpectations(t)
}

func TestBatchService_CreateMonthlyBatch_NothingLeftToCreate(t *testing.T) {
	service, mockStmts, mockProps, _ := newTestBatchService()

	ctx := context.Background()
	orgID := testOrgID()
	month := currentBatchMonth()
	props := batchProperties(1)
	taken := createTestStatement(orgID, props[0].ID, month)

	req := CreateMonthlyBatchRequest{
		Month:        statement.FormatMonth(month),
		Drafts:       []DraftInput{draftFor(props[0].ID)},
		SkipExisting: true,
	}

	mockProps.On("FindByIDsForOrg", mock.Anything, orgID, []uuid.UUID{props[0].ID}).Return(props, nil)
	mockStmts.On("FindLiveByMonthForOrg", mock.Anything, orgID, month).Return([]*statement.OwnerStatement{taken}, nil)

	result, err := service.CreateMonthlyBatch(ctx, orgID, testUserID(), req)

	assert.Error(t, err)
	assert.Nil(t, result)
	var domainErr *shared.DomainError
	assert.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_STATE", domainErr.Code)
	mockStmts.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
}

func TestBatchService_CreateMonthlyBatch_DuplicateSubmission(t *testing.T) {
	service, mockStmts, mockProps, mockIdem := newTestBatchService()

	ctx := context.Background()
	orgID := testOrgID()

	req := CreateMonthlyBatchRequest{
		Month:          statement.FormatMonth(currentBatchMonth()),
		Drafts:         []DraftInput{draftFor(testPropertyID())},
		IdempotencyKey: "june-upload-1",
	}

	mockIdem.On("MarkProcessed", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("time.Duration")).Return(false, nil)

	result, err := service.CreateMonthlyBatch(ctx, orgID, testUserID(), req)

	assert.Error(t, err)
	assert.Nil(t, result)
	var domainErr *shared.DomainError
	assert.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_STATE", domainErr.Code)
	assert.Contains(t, domainErr.Message, "june-upload-1")
	mockProps.AssertNotCalled(t, "FindByIDsForOrg", mock.Anything, mock.Anything, mock.Anything)
	mockStmts.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
	mockIdem.AssertExpectations(t)
}

func TestBatchService_CreateMonthlyBatch_IdempotencyStoreDown(t *testing.T) {
	service, mockStmts, mockProps, mockIdem := newTestBatchService()

	ctx := context.Background()
	orgID := testOrgID()
	month := currentBatchMonth()
	props := batchProperties(1)

	req := CreateMonthlyBatchRequest{
		Month:          statement.FormatMonth(month),
		Drafts:         []DraftInput{draftFor(props[0].ID)},
		IdempotencyKey: "june-upload-2",
	}

	// An unreachable idempotency store degrades to no replay protection
	mockIdem.On("MarkProcessed", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("time.Duration")).Return(false, errors.New("connection refused"))
	mockProps.On("FindByIDsForOrg", mock.Anything, orgID, []uuid.UUID{props[0].ID}).Return(props, nil)
	mockStmts.On("FindLiveByMonthForOrg", mock.Anything, orgID, month).Return([]*statement.OwnerStatement{}, nil)
	mockStmts.On("CreateBatch", mock.Anything, mock.Anything).Return(nil)

	result, err := service.CreateMonthlyBatch(ctx, orgID, testUserID(), req)

	assert.NoError(t, err)
	assert.Equal(t, 1, result.CreatedCount)
	mockStmts.AssertExpectations(t)
}

func TestBatchService_CreateMonthlyBatch_ChunkFailureKeepsCommittedChunks(t *testing.T) {
	service, mockStmts, mockProps, _ := newTestBatchService()
	cfg := DefaultBatchConfig()
	cfg.ChunkSize = 1
	service.SetConfig(cfg)

	ctx := context.Background()
	orgID := testOrgID()
	month := currentBatchMonth()
	props := batchProperties(3)

	drafts := make([]DraftInput, 0, len(props))
	ids := make([]uuid.UUID, 0, len(props))
	for _, p := range props {
		drafts = append(drafts, draftFor(p.ID))
		ids = append(ids, p.ID)
	}
	req := CreateMonthlyBatchRequest{Month: statement.FormatMonth(month), Drafts: drafts}

	mockProps.On("FindByIDsForOrg", mock.Anything, orgID, ids).Return(props, nil)
	mockStmts.On("FindLiveByMonthForOrg", mock.Anything, orgID, month).Return([]*statement.OwnerStatement{}, nil)
	mockStmts.On("CreateBatch", mock.Anything, mock.Anything).Return(nil).Once()
	mockStmts.On("CreateBatch", mock.Anything, mock.Anything).Return(errors.New("transaction timeout")).Once()

	result, err := service.CreateMonthlyBatch(ctx, orgID, testUserID(), req)

	assert.NoError(t, err)
	assert.Equal(t, 1, result.CreatedCount)
	assert.NotNil(t, result.FirstStatementID)
	// Unit B failed mid-batch, Unit C was never attempted
	assert.Equal(t, []string{"Unit B", "Unit C"}, result.FailedProperties)
	mockStmts.AssertExpectations(t)
}
