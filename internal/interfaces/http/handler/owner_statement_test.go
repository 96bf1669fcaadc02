package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	statementapp "github.com/Jc7j/ProperlyOld-sub000/internal/application/statement"
	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/property"
	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared"
	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared/valueobject"
	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/statement"
	"github.com/Jc7j/ProperlyOld-sub000/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockStatementRepository implements statement.Repository for handler tests.
// Mutate and MutateMany execute the supplied closure against the canned
// statements so edit semantics stay observable end to end.
type MockStatementRepository struct {
	mock.Mock
	// statements backs MutateMany lookups, keyed by statement id
	statements map[uuid.UUID]*statement.OwnerStatement
}

func (m *MockStatementRepository) FindByIDForOrg(ctx context.Context, orgID, id uuid.UUID) (*statement.OwnerStatement, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*statement.OwnerStatement), args.Error(1)
}

func (m *MockStatementRepository) FindAnyByIDForOrg(ctx context.Context, orgID, id uuid.UUID) (*statement.OwnerStatement, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*statement.OwnerStatement), args.Error(1)
}

func (m *MockStatementRepository) FindSummariesForOrg(ctx context.Context, orgID uuid.UUID, q statement.SummaryQuery) ([]statement.Summary, error) {
	args := m.Called(ctx, orgID, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]statement.Summary), args.Error(1)
}

func (m *MockStatementRepository) FindLiveByMonthForOrg(ctx context.Context, orgID uuid.UUID, month time.Time) ([]*statement.OwnerStatement, error) {
	args := m.Called(ctx, orgID, month)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*statement.OwnerStatement), args.Error(1)
}

func (m *MockStatementRepository) Create(ctx context.Context, s *statement.OwnerStatement) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockStatementRepository) CreateBatch(ctx context.Context, statements []*statement.OwnerStatement) error {
	args := m.Called(ctx, statements)
	return args.Error(0)
}

func (m *MockStatementRepository) Update(ctx context.Context, s *statement.OwnerStatement) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockStatementRepository) Mutate(ctx context.Context, orgID, id uuid.UUID, fn func(*statement.OwnerStatement) error) (*statement.OwnerStatement, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	st := args.Get(0).(*statement.OwnerStatement)
	if err := fn(st); err != nil {
		return nil, err
	}
	return st, args.Error(1)
}

func (m *MockStatementRepository) MutateMany(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID, fn func(*statement.OwnerStatement) error) error {
	args := m.Called(ctx, orgID, ids)
	if err := args.Error(0); err != nil {
		return err
	}
	for _, id := range ids {
		if st, ok := m.statements[id]; ok {
			if err := fn(st); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MockStatementRepository) Tombstone(ctx context.Context, s *statement.OwnerStatement) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockStatementRepository) TombstoneAllForMonth(ctx context.Context, orgID uuid.UUID, month time.Time, deletedBy *uuid.UUID) (int64, error) {
	args := m.Called(ctx, orgID, month, deletedBy)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStatementRepository) FindVendorCollisionsForMonth(ctx context.Context, orgID uuid.UUID, month time.Time, vendor, description string) ([]string, error) {
	args := m.Called(ctx, orgID, month, vendor, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

var _ statement.Repository = (*MockStatementRepository)(nil)

// MockPropertyRepository implements property.Repository for handler tests
type MockPropertyRepository struct {
	mock.Mock
}

func (m *MockPropertyRepository) FindByIDForOrg(ctx context.Context, orgID, id uuid.UUID) (*property.Property, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*property.Property), args.Error(1)
}

func (m *MockPropertyRepository) FindByIDsForOrg(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) ([]*property.Property, error) {
	args := m.Called(ctx, orgID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*property.Property), args.Error(1)
}

func (m *MockPropertyRepository) FindAllForOrg(ctx context.Context, orgID uuid.UUID, activeOnly bool, filter shared.Filter) ([]*property.Property, error) {
	args := m.Called(ctx, orgID, activeOnly, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*property.Property), args.Error(1)
}

func (m *MockPropertyRepository) CountForOrg(ctx context.Context, orgID uuid.UUID, activeOnly bool) (int64, error) {
	args := m.Called(ctx, orgID, activeOnly)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPropertyRepository) ExistsByNameForOrg(ctx context.Context, orgID uuid.UUID, name string) (bool, error) {
	args := m.Called(ctx, orgID, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockPropertyRepository) Save(ctx context.Context, p *property.Property) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

var _ property.Repository = (*MockPropertyRepository)(nil)

// MockIdempotencyStore implements shared.IdempotencyStore for handler tests
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ shared.IdempotencyStore = (*MockIdempotencyStore)(nil)

// Test helpers

var (
	testOrgID  = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	testUserID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

func money(f float64) valueobject.Money {
	return valueobject.NewMoneyFromFloat(f)
}

func createTestProperty(orgID uuid.UUID, name string) *property.Property {
	p, _ := property.NewProperty(orgID, name, "1 Somewhere Rd")
	return p
}

// createTestStatement builds a statement totalling income 1000.00, expenses
// 150.00, adjustments 25.00, grand total 875.00
func createTestStatement(orgID, propertyID uuid.UUID, month time.Time) *statement.OwnerStatement {
	st, _ := statement.NewOwnerStatement(orgID, propertyID, month, "",
		[]statement.IncomeItem{{
			CheckIn:      "2025-06-01",
			CheckOut:     "2025-06-08",
			Days:         7,
			Platform:     "Airbnb",
			Guest:        "S. Tenant",
			GrossRevenue: money(1100),
			HostFee:      money(60),
			PlatformFee:  money(40),
			GrossIncome:  money(1000),
		}},
		[]statement.ExpenseItem{{
			Date:        "2025-06-05",
			Description: "Pool service",
			Vendor:      "AquaCo",
			Amount:      money(150),
		}},
		[]statement.AdjustmentItem{{
			Description: "Damage credit",
			Amount:      money(25),
		}},
	)
	return st
}

func setupStatementTestRouter() (*gin.Engine, *MockStatementRepository, *MockPropertyRepository, *OwnerStatementHandler) {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()

	mockStmts := new(MockStatementRepository)
	mockProps := new(MockPropertyRepository)
	service := statementapp.NewService(mockStmts, mockProps)
	batches := statementapp.NewBatchService(mockStmts, mockProps, nil, zap.NewNop())
	handler := NewOwnerStatementHandler(service, batches)

	router := gin.New()
	// Test authentication middleware that sets JWT context values
	router.Use(func(c *gin.Context) {
		setJWTContext(c, testOrgID, testUserID)
		c.Next()
	})

	return router, mockStmts, mockProps, handler
}

// validCreateBody sums to income 1000.75, expenses 150.25, adjustments
// -50.50, grand total 800.00
func validCreateBody(propertyID uuid.UUID) statementapp.CreateStatementRequest {
	return statementapp.CreateStatementRequest{
		PropertyID: propertyID,
		Month:      "2025-06",
		Notes:      "June payout",
		Incomes: []statementapp.IncomeItemInput{
			{CheckIn: "2025-06-01", CheckOut: "2025-06-08", Days: 7, Platform: "Airbnb", Guest: "A. Guest", GrossIncome: 600.50},
			{CheckIn: "2025-06-10", CheckOut: "2025-06-14", Days: 4, Platform: "Vrbo", Guest: "B. Guest", GrossIncome: 400.25},
		},
		Expenses: []statementapp.ExpenseItemInput{
			{Date: "2025-06-05", Description: "Pool service", Vendor: "AquaCo", Amount: 150.25},
		},
		Adjustments: []statementapp.AdjustmentItemInput{
			{Description: "Prior month correction", Amount: -50.50},
		},
		Totals: statementapp.TotalsInput{
			TotalIncome:      1000.75,
			TotalExpenses:    150.25,
			TotalAdjustments: -50.50,
			GrandTotal:       800.00,
		},
	}
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// Tests

func TestOwnerStatementHandler_List(t *testing.T) {
	t.Run("should list statements for the organization", func(t *testing.T) {
		router, mockStmts, _, handler := setupStatementTestRouter()
		router.GET("/owner-statements", handler.List)

		month := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
		summaries := []statement.Summary{
			{
				ID:             uuid.New(),
				PropertyID:     uuid.New(),
				PropertyName:   "Seaside Cottage",
				StatementMonth: month,
				TotalIncome:    money(1000),
				TotalExpenses:  money(150),
				GrandTotal:     money(850),
			},
			{
				ID:             uuid.New(),
				PropertyID:     uuid.New(),
				PropertyName:   "Hilltop Lodge",
				StatementMonth: month,
				TotalIncome:    money(2000),
				TotalExpenses:  money(300),
				GrandTotal:     money(1700),
			},
		}
		mockStmts.On("FindSummariesForOrg", mock.Anything, testOrgID, statement.SummaryQuery{}).
			Return(summaries, nil)

		w := doJSON(router, http.MethodGet, "/owner-statements", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		assert.True(t, resp["success"].(bool))
		data := resp["data"].([]interface{})
		assert.Len(t, data, 2)
		first := data[0].(map[string]interface{})
		assert.Equal(t, "Seaside Cottage", first["property_name"])
		assert.Equal(t, "2025-06", first["statement_month"])
		assert.Equal(t, 850.0, first["grand_total"])

		mockStmts.AssertExpectations(t)
	})

	t.Run("should pass the month filter through", func(t *testing.T) {
		router, mockStmts, _, handler := setupStatementTestRouter()
		router.GET("/owner-statements", handler.List)

		wantMonth := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
		mockStmts.On("FindSummariesForOrg", mock.Anything, testOrgID, statement.SummaryQuery{Month: &wantMonth}).
			Return([]statement.Summary{}, nil)

		w := doJSON(router, http.MethodGet, "/owner-statements?month=2025-06", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		mockStmts.AssertExpectations(t)
	})

	t.Run("should reject a malformed month filter", func(t *testing.T) {
		router, mockStmts, _, handler := setupStatementTestRouter()
		router.GET("/owner-statements", handler.List)

		w := doJSON(router, http.MethodGet, "/owner-statements?month=13-2025", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		errInfo := resp["error"].(map[string]interface{})
		assert.Equal(t, "ERR_VALIDATION", errInfo["code"])
		mockStmts.AssertNotCalled(t, "FindSummariesForOrg", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("should require organization context", func(t *testing.T) {
		_, _, _, handler := setupStatementTestRouter()

		// Router without the JWT middleware
		bare := gin.New()
		bare.GET("/owner-statements", handler.List)

		w := doJSON(bare, http.MethodGet, "/owner-statements", nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestOwnerStatementHandler_GetByID(t *testing.T) {
	t.Run("should return a full statement", func(t *testing.T) {
		router, mockStmts, mockProps, handler := setupStatementTestRouter()
		router.GET("/owner-statements/:id", handler.GetByID)

		month := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
		prop := createTestProperty(testOrgID, "Seaside Cottage")
		stmt := createTestStatement(testOrgID, prop.ID, month)

		mockStmts.On("FindByIDForOrg", mock.Anything, testOrgID, stmt.ID).Return(stmt, nil)
		mockProps.On("FindByIDForOrg", mock.Anything, testOrgID, prop.ID).Return(prop, nil)

		w := doJSON(router, http.MethodGet, "/owner-statements/"+stmt.ID.String(), nil)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		assert.True(t, resp["success"].(bool))
		data := resp["data"].(map[string]interface{})
		assert.Equal(t, "Seaside Cottage", data["property_name"])
		assert.Equal(t, 875.0, data["grand_total"])
		assert.Len(t, data["incomes"].([]interface{}), 1)
		assert.Len(t, data["expenses"].([]interface{}), 1)

		mockStmts.AssertExpectations(t)
	})

	t.Run("should return 404 for an unknown statement", func(t *testing.T) {
		router, mockStmts, _, handler := setupStatementTestRouter()
		router.GET("/owner-statements/:id", handler.GetByID)

		statementID := uuid.New()
		mockStmts.On("FindByIDForOrg", mock.Anything, testOrgID, statementID).
			Return(nil, shared.ErrNotFound)

		w := doJSON(router, http.MethodGet, "/owner-statements/"+statementID.String(), nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		mockStmts.AssertExpectations(t)
	})

	t.Run("should reject a malformed statement ID", func(t *testing.T) {
		router, _, _, handler := setupStatementTestRouter()
		router.GET("/owner-statements/:id", handler.GetByID)

		w := doJSON(router, http.MethodGet, "/owner-statements/not-a-uuid", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestOwnerStatementHandler_Create(t *testing.T) {
	t.Run("should create a statement", func(t *testing.T) {
		router, mockStmts, mockProps, handler := setupStatementTestRouter()
		router.POST("/owner-statements", handler.Create)

		prop := createTestProperty(testOrgID, "Seaside Cottage")
		mockProps.On("FindByIDForOrg", mock.Anything, testOrgID, prop.ID).Return(prop, nil)
		mockStmts.On("FindSummariesForOrg", mock.Anything, testOrgID, mock.AnythingOfType("statement.SummaryQuery")).
			Return([]statement.Summary{}, nil)
		mockStmts.On("Create", mock.Anything, mock.AnythingOfType("*statement.OwnerStatement")).Return(nil)

		w := doJSON(router, http.MethodPost, "/owner-statements", validCreateBody(prop.ID))

		assert.Equal(t, http.StatusCreated, w.Code)
		resp := decodeResponse(t, w)
		assert.True(t, resp["success"].(bool))
		data := resp["data"].(map[string]interface{})
		assert.Equal(t, "2025-06", data["statement_month"])
		assert.Equal(t, "Seaside Cottage", data["property_name"])
		assert.Equal(t, 800.0, data["grand_total"])

		mockStmts.AssertExpectations(t)
		mockProps.AssertExpectations(t)
	})

	t.Run("should reject a malformed statement month", func(t *testing.T) {
		router, mockStmts, _, handler := setupStatementTestRouter()
		router.POST("/owner-statements", handler.Create)

		body := validCreateBody(uuid.New())
		body.Month = "2025-13"

		w := doJSON(router, http.MethodPost, "/owner-statements", body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "YYYY-MM")
		mockStmts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("should reject totals that disagree with the line items", func(t *testing.T) {
		router, mockStmts, mockProps, handler := setupStatementTestRouter()
		router.POST("/owner-statements", handler.Create)

		prop := createTestProperty(testOrgID, "Seaside Cottage")
		mockProps.On("FindByIDForOrg", mock.Anything, testOrgID, prop.ID).Return(prop, nil)
		mockStmts.On("FindSummariesForOrg", mock.Anything, testOrgID, mock.AnythingOfType("statement.SummaryQuery")).
			Return([]statement.Summary{}, nil)

		body := validCreateBody(prop.ID)
		body.Totals.GrandTotal = 999.99

		w := doJSON(router, http.MethodPost, "/owner-statements", body)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decodeResponse(t, w)
		errInfo := resp["error"].(map[string]interface{})
		assert.Equal(t, "ERR_CONSISTENCY", errInfo["code"])
		mockStmts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("should reject a property from another organization", func(t *testing.T) {
		router, mockStmts, mockProps, handler := setupStatementTestRouter()
		router.POST("/owner-statements", handler.Create)

		foreignPropID := uuid.New()
		mockProps.On("FindByIDForOrg", mock.Anything, testOrgID, foreignPropID).
			Return(nil, shared.ErrNotFound)

		w := doJSON(router, http.MethodPost, "/owner-statements", validCreateBody(foreignPropID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		errInfo := resp["error"].(map[string]interface{})
		assert.Equal(t, "ERR_VALIDATION", errInfo["code"])
		mockStmts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("should reject a body without incomes", func(t *testing.T) {
		router, _, _, handler := setupStatementTestRouter()
		router.POST("/owner-statements", handler.Create)

		body := map[string]interface{}{
			"property_id":     uuid.New().String(),
			"statement_month": "2025-06",
			"totals":          map[string]float64{"grand_total": 0},
		}

		w := doJSON(router, http.MethodPost, "/owner-statements", body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("should require user context", func(t *testing.T) {
		_, _, _, handler := setupStatementTestRouter()

		// Router that authenticates the organization but not the user
		orgOnly := gin.New()
		orgOnly.Use(func(c *gin.Context) {
			c.Set("jwt_org_id", testOrgID.String())
			c.Next()
		})
		orgOnly.POST("/owner-statements", handler.Create)

		w := doJSON(orgOnly, http.MethodPost, "/owner-statements", validCreateBody(uuid.New()))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestOwnerStatementHandler_Update(t *testing.T) {
	t.Run("should replace items and notes", func(t *testing.T) {
		router, mockStmts, mockProps, handler := setupStatementTestRouter()
		router.PUT("/owner-statements/:id", handler.Update)

		month := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
		prop := createTestProperty(testOrgID, "Seaside Cottage")
		stmt := createTestStatement(testOrgID, prop.ID, month)

		mockStmts.On("FindByIDForOrg", mock.Anything, testOrgID, stmt.ID).Return(stmt, nil)
		mockStmts.On("Update", mock.Anything, mock.AnythingOfType("*statement.OwnerStatement")).Return(nil)
		mockProps.On("FindByIDForOrg", mock.Anything, testOrgID, prop.ID).Return(prop, nil)

		body := statementapp.UpdateStatementRequest{
			Notes: "Corrected payout",
			Incomes: []statementapp.IncomeItemInput{
				{CheckIn: "2025-06-01", CheckOut: "2025-06-08", Days: 7, Platform: "Airbnb", Guest: "A. Guest", GrossIncome: 500},
			},
			Totals: statementapp.TotalsInput{
				TotalIncome: 500,
				GrandTotal:  500,
			},
		}

		w := doJSON(router, http.MethodPut, "/owner-statements/"+stmt.ID.String(), body)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		data := resp["data"].(map[string]interface{})
		assert.Equal(t, "Corrected payout", data["notes"])
		assert.Equal(t, 500.0, data["grand_total"])
		assert.Len(t, data["expenses"].([]interface{}), 0)

		mockStmts.AssertExpectations(t)
	})

	t.Run("should return 404 for an unknown statement", func(t *testing.T) {
		router, mockStmts, _, handler := setupStatementTestRouter()
		router.PUT("/owner-statements/:id", handler.Update)

		statementID := uuid.New()
		mockStmts.On("FindByIDForOrg", mock.Anything, testOrgID, statementID).
			Return(nil, shared.ErrNotFound)

		body := statementapp.UpdateStatementRequest{
			Incomes: []statementapp.IncomeItemInput{{GrossIncome: 100}},
			Totals:  statementapp.TotalsInput{TotalIncome: 100, GrandTotal: 100},
		}

		w := doJSON(router, http.MethodPut, "/owner-statements/"+statementID.String(), body)

		assert.Equal(t, http.StatusNotFound, w.Code)
		mockStmts.AssertExpectations(t)
	})
}

func TestOwnerStatementHandler_Delete(t *testing.T) {
	t.Run("should soft-delete a statement", func(t *testing.T) {
		router, mockStmts, _, handler := setupStatementTestRouter()
		router.DELETE("/owner-statements/:id", handler.Delete)

		month := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
		stmt := createTestStatement(testOrgID, uuid.New(), month)

		mockStmts.On("FindAnyByIDForOrg", mock.Anything, testOrgID, stmt.ID).Return(stmt, nil)
		mockStmts.On("Tombstone", mock.Anything, mock.AnythingOfType("*statement.OwnerStatement")).Return(nil)

		w := doJSON(router, http.MethodDelete, "/owner-statements/"+stmt.ID.String(), nil)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.Bytes())
		mockStmts.AssertExpectations(t)
	})

	t.Run("should reject deleting an already deleted statement", func(t *testing.T) {
		router, mockStmts, _, handler := setupStatementTestRouter()
		router.DELETE("/owner-statements/:id", handler.Delete)

		month := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
		stmt := createTestStatement(testOrgID, uuid.New(), month)
		require.NoError(t, stmt.Tombstone(time.Now()))

		mockStmts.On("FindAnyByIDForOrg", mock.Anything, testOrgID, stmt.ID).Return(stmt, nil)

		w := doJSON(router, http.MethodDelete, "/owner-statements/"+stmt.ID.String(), nil)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decodeResponse(t, w)
		errInfo := resp["error"].(map[string]interface{})
		assert.Equal(t, "ERR_INVALID_STATE", errInfo["code"])
		mockStmts.AssertNotCalled(t, "Tombstone", mock.Anything, mock.Anything)
	})
}

func TestOwnerStatementHandler_UpdateItemField(t *testing.T) {
	t.Run("should edit one field and recompute totals", func(t *testing.T) {
		router, mockStmts, mockProps, handler := setupStatementTestRouter()
		router.PATCH("/owner-statements/:id/items", handler.UpdateItemField)

		month := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
		prop := createTestProperty(testOrgID, "Seaside Cottage")
		stmt := createTestStatement(testOrgID, prop.ID, month)

		mockStmts.On("Mutate", mock.Anything, testOrgID, stmt.ID).Return(stmt, nil)
		mockProps.On("FindByIDForOrg", mock.Anything, testOrgID, prop.ID).Return(prop, nil)

		body := statementapp.EditItemFieldRequest{
			Section: "expenses",
			Index:   0,
			Field:   "amount",
			Value:   300,
		}

		w := doJSON(router, http.MethodPatch, "/owner-statements/"+stmt.ID.String()+"/items", body)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		data := resp["data"].(map[string]interface{})
		// 1000 income - 300 expenses + 25 adjustments
		assert.Equal(t, 725.0, data["grand_total"])
		assert.Equal(t, 300.0, data["total_expenses"])

		mockStmts.AssertExpectations(t)
	})

	t.Run("should reject an unknown field", func(t *testing.T) {
		router, mockStmts, _, handler := setupStatementTestRouter()
		router.PATCH("/owner-statements/:id/items", handler.UpdateItemField)

		body := statementapp.EditItemFieldRequest{
			Section: "expenses",
			Index:   0,
			Field:   "color",
			Value:   "blue",
		}

		w := doJSON(router, http.MethodPatch, "/owner-statements/"+uuid.New().String()+"/items", body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockStmts.AssertNotCalled(t, "Mutate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("should reject an out-of-range index", func(t *testing.T) {
		router, mockStmts, _, handler := setupStatementTestRouter()
		router.PATCH("/owner-statements/:id/items", handler.UpdateItemField)

		month := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
		stmt := createTestStatement(testOrgID, uuid.New(), month)

		mockStmts.On("Mutate", mock.Anything, testOrgID, stmt.ID).Return(stmt, nil)

		body := statementapp.EditItemFieldRequest{
			Section: "expenses",
			Index:   5,
			Field:   "amount",
			Value:   300,
		}

		w := doJSON(router, http.MethodPatch, "/owner-statements/"+stmt.ID.String()+"/items", body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestOwnerStatementHandler_AddItem(t *testing.T) {
	t.Run("should append an expense row", func(t *testing.T) {
		router, mockStmts, mockProps, handler := setupStatementTestRouter()
		router.POST("/owner-statements/:id/items", handler.AddItem)

		month := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
		prop := createTestProperty(testOrgID, "Seaside Cottage")
		stmt := createTestStatement(testOrgID, prop.ID, month)

		mockStmts.On("Mutate", mock.Anything, testOrgID, stmt.ID).Return(stmt, nil)
		mockProps.On("FindByIDForOrg", mock.Anything, testOrgID, prop.ID).Return(prop, nil)

		body := statementapp.AddItemRequest{
			Section: "expenses",
			Expense: &statementapp.ExpenseItemInput{
				Date:        "2025-06-20",
				Description: "Lawn care",
				Vendor:      "GreenCo",
				Amount:      100,
			},
		}

		w := doJSON(router, http.MethodPost, "/owner-statements/"+stmt.ID.String()+"/items", body)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		data := resp["data"].(map[string]interface{})
		assert.Len(t, data["expenses"].([]interface{}), 2)
		// 1000 income - 250 expenses + 25 adjustments
		assert.Equal(t, 775.0, data["grand_total"])

		mockStmts.AssertExpectations(t)
	})

	t.Run("should reject a payload that does not match the section", func(t *testing.T) {
		router, mockStmts, _, handler := setupStatementTestRouter()
		router.POST("/owner-statements/:id/items", handler.AddItem)

		body := statementapp.AddItemRequest{
			Section: "expenses",
			Income:  &statementapp.IncomeItemInput{GrossIncome: 100},
		}

		w := doJSON(router, http.MethodPost, "/owner-statements/"+uuid.New().String()+"/items", body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockStmts.AssertNotCalled(t, "Mutate", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestOwnerStatementHandler_RemoveItem(t *testing.T) {
	t.Run("should remove an adjustment row", func(t *testing.T) {
		router, mockStmts, mockProps, handler := setupStatementTestRouter()
		router.DELETE("/owner-statements/:id/items", handler.RemoveItem)

		month := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
		prop := createTestProperty(testOrgID, "Seaside Cottage")
		stmt := createTestStatement(testOrgID, prop.ID, month)

		mockStmts.On("Mutate", mock.Anything, testOrgID, stmt.ID).Return(stmt, nil)
		mockProps.On("FindByIDForOrg", mock.Anything, testOrgID, prop.ID).Return(prop, nil)

		body := statementapp.RemoveItemRequest{Section: "adjustments", Index: 0}

		w := doJSON(router, http.MethodDelete, "/owner-statements/"+stmt.ID.String()+"/items", body)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		data := resp["data"].(map[string]interface{})
		assert.Len(t, data["adjustments"].([]interface{}), 0)
		// 1000 income - 150 expenses, damage credit gone
		assert.Equal(t, 850.0, data["grand_total"])

		mockStmts.AssertExpectations(t)
	})

	t.Run("should reject an unknown section", func(t *testing.T) {
		router, mockStmts, _, handler := setupStatementTestRouter()
		router.DELETE("/owner-statements/:id/items", handler.RemoveItem)

		body := statementapp.RemoveItemRequest{Section: "fees", Index: 0}

		w := doJSON(router, http.MethodDelete, "/owner-statements/"+uuid.New().String()+"/items", body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockStmts.AssertNotCalled(t, "Mutate", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestOwnerStatementHandler_CreateMonthlyBatch(t *testing.T) {
	currentMonth := statement.MonthOf(time.Now().UTC())

	t.Run("should create a month of statements", func(t *testing.T) {
		router, mockStmts, mockProps, handler := setupStatementTestRouter()
		router.POST("/owner-statements/batch", handler.CreateMonthlyBatch)

		propA := createTestProperty(testOrgID, "Seaside Cottage")
		propB := createTestProperty(testOrgID, "Hilltop Lodge")

		mockProps.On("FindByIDsForOrg", mock.Anything, testOrgID, []uuid.UUID{propA.ID, propB.ID}).
			Return([]*property.Property{propA, propB}, nil)
		mockStmts.On("FindLiveByMonthForOrg", mock.Anything, testOrgID, currentMonth).
			Return([]*statement.OwnerStatement{}, nil)
		mockStmts.On("CreateBatch", mock.Anything, mock.AnythingOfType("[]*statement.OwnerStatement")).
			Return(nil)

		body := statementapp.CreateMonthlyBatchRequest{
			Month: statement.FormatMonth(currentMonth),
			Drafts: []statementapp.DraftInput{
				{
					PropertyID: propA.ID,
					Incomes:    []statementapp.IncomeItemInput{{GrossIncome: 1000}},
				},
				{
					PropertyID: propB.ID,
					Incomes:    []statementapp.IncomeItemInput{{GrossIncome: 2000}},
				},
			},
		}

		w := doJSON(router, http.MethodPost, "/owner-statements/batch", body)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		assert.True(t, resp["success"].(bool))
		data := resp["data"].(map[string]interface{})
		assert.Equal(t, 2.0, data["created_count"])

		mockStmts.AssertExpectations(t)
		mockProps.AssertExpectations(t)
	})

	t.Run("should take the idempotency key from the header", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		middleware.SetupValidator()

		mockStmts := new(MockStatementRepository)
		mockProps := new(MockPropertyRepository)
		mockIdem := new(MockIdempotencyStore)
		service := statementapp.NewService(mockStmts, mockProps)
		batches := statementapp.NewBatchService(mockStmts, mockProps, mockIdem, zap.NewNop())
		handler := NewOwnerStatementHandler(service, batches)

		router := gin.New()
		router.Use(func(c *gin.Context) {
			setJWTContext(c, testOrgID, testUserID)
			c.Next()
		})
		router.POST("/owner-statements/batch", handler.CreateMonthlyBatch)

		// A replayed key rejects the whole batch before any store reads
		expectedKey := fmt.Sprintf("monthly-batch:%s:%s", testOrgID, "retry-42")
		mockIdem.On("MarkProcessed", mock.Anything, expectedKey, mock.Anything).
			Return(false, nil)

		body := statementapp.CreateMonthlyBatchRequest{
			Month: statement.FormatMonth(currentMonth),
			Drafts: []statementapp.DraftInput{
				{PropertyID: uuid.New(), Incomes: []statementapp.IncomeItemInput{{GrossIncome: 1000}}},
			},
		}
		buf, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/owner-statements/batch", bytes.NewBuffer(buf))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "retry-42")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decodeResponse(t, w)
		errInfo := resp["error"].(map[string]interface{})
		assert.Equal(t, "ERR_INVALID_STATE", errInfo["code"])

		mockIdem.AssertExpectations(t)
		mockProps.AssertNotCalled(t, "FindByIDsForOrg", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("should reject an empty batch", func(t *testing.T) {
		router, _, _, handler := setupStatementTestRouter()
		router.POST("/owner-statements/batch", handler.CreateMonthlyBatch)

		body := map[string]interface{}{
			"statement_month": statement.FormatMonth(currentMonth),
			"drafts":          []interface{}{},
		}

		w := doJSON(router, http.MethodPost, "/owner-statements/batch", body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("should reject a future month", func(t *testing.T) {
		router, _, _, handler := setupStatementTestRouter()
		router.POST("/owner-statements/batch", handler.CreateMonthlyBatch)

		future := statement.FormatMonth(currentMonth.AddDate(0, 2, 0))
		body := statementapp.CreateMonthlyBatchRequest{
			Month: future,
			Drafts: []statementapp.DraftInput{
				{PropertyID: uuid.New(), Incomes: []statementapp.IncomeItemInput{{GrossIncome: 1000}}},
			},
		}

		w := doJSON(router, http.MethodPost, "/owner-statements/batch", body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		errInfo := resp["error"].(map[string]interface{})
		assert.Equal(t, "ERR_VALIDATION", errInfo["code"])
	})
}
