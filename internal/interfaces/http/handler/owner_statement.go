package handler

import (
	statementapp "github.com/Jc7j/ProperlyOld-sub000/internal/application/statement"
	"github.com/Jc7j/ProperlyOld-sub000/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OwnerStatementHandler handles owner statement API endpoints
type OwnerStatementHandler struct {
	BaseHandler
	statements *statementapp.Service
	batches    *statementapp.BatchService
}

// NewOwnerStatementHandler creates a new OwnerStatementHandler
func NewOwnerStatementHandler(statements *statementapp.Service, batches *statementapp.BatchService) *OwnerStatementHandler {
	return &OwnerStatementHandler{
		statements: statements,
		batches:    batches,
	}
}

// List godoc
// @ID           listOwnerStatements
// @Summary      List owner statements
// @Description  List statement summaries for the organization, optionally filtered by property and month
// @Tags         owner-statements
// @Produce      json
// @Param        X-Org-ID header string false "Organization ID (optional for dev)"
// @Param        property_id query string false "Filter by property ID" format(uuid)
// @Param        month query string false "Filter by statement month (YYYY-MM)"
// @Param        sort_by query string false "Sort column" Enums(id, statement_month, grand_total, created_at, updated_at) default(statement_month)
// @Param        sort_dir query string false "Sort direction" Enums(asc, desc)
// @Success      200 {object} APIResponse[[]statementapp.SummaryResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /owner-statements [get]
func (h *OwnerStatementHandler) List(c *gin.Context) {
	orgID, err := getOrgID(c)
	if err != nil {
		h.Unauthorized(c, "Organization context required")
		return
	}

	var q statementapp.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	statements, err := h.statements.List(c.Request.Context(), orgID, q)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, statements)
}

// GetByID godoc
// @ID           getOwnerStatement
// @Summary      Get owner statement by ID
// @Description  Retrieve a full owner statement including its income, expense and adjustment lines
// @Tags         owner-statements
// @Produce      json
// @Param        X-Org-ID header string false "Organization ID (optional for dev)"
// @Param        id path string true "Statement ID" format(uuid)
// @Success      200 {object} APIResponse[statementapp.StatementResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /owner-statements/{id} [get]
func (h *OwnerStatementHandler) GetByID(c *gin.Context) {
	orgID, err := getOrgID(c)
	if err != nil {
		h.Unauthorized(c, "Organization context required")
		return
	}

	statementID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid statement ID format")
		return
	}

	stmt, err := h.statements.Get(c.Request.Context(), orgID, statementID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, stmt)
}

// Create godoc
// @ID           createOwnerStatement
// @Summary      Create an owner statement
// @Description  Create a statement for a property and month; stored totals are checked against the line items
// @Tags         owner-statements
// @Accept       json
// @Produce      json
// @Param        X-Org-ID header string false "Organization ID (optional for dev)"
// @Param        request body statementapp.CreateStatementRequest true "Statement creation request"
// @Success      201 {object} APIResponse[statementapp.StatementResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /owner-statements [post]
func (h *OwnerStatementHandler) Create(c *gin.Context) {
	orgID, err := getOrgID(c)
	if err != nil {
		h.Unauthorized(c, "Organization context required")
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User context required")
		return
	}

	var req statementapp.CreateStatementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	stmt, err := h.statements.Create(c.Request.Context(), orgID, userID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, stmt)
}

// Update godoc
// @ID           updateOwnerStatement
// @Summary      Update an owner statement
// @Description  Replace the line items and notes of a statement; the month and property never change
// @Tags         owner-statements
// @Accept       json
// @Produce      json
// @Param        X-Org-ID header string false "Organization ID (optional for dev)"
// @Param        id path string true "Statement ID" format(uuid)
// @Param        request body statementapp.UpdateStatementRequest true "Statement update request"
// @Success      200 {object} APIResponse[statementapp.StatementResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /owner-statements/{id} [put]
func (h *OwnerStatementHandler) Update(c *gin.Context) {
	orgID, err := getOrgID(c)
	if err != nil {
		h.Unauthorized(c, "Organization context required")
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User context required")
		return
	}

	statementID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid statement ID format")
		return
	}

	var req statementapp.UpdateStatementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	stmt, err := h.statements.Update(c.Request.Context(), orgID, userID, statementID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, stmt)
}

// Delete godoc
// @ID           deleteOwnerStatement
// @Summary      Delete an owner statement
// @Description  Soft-delete a statement; it disappears from lists but remains recoverable
// @Tags         owner-statements
// @Produce      json
// @Param        X-Org-ID header string false "Organization ID (optional for dev)"
// @Param        id path string true "Statement ID" format(uuid)
// @Success      204
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /owner-statements/{id} [delete]
func (h *OwnerStatementHandler) Delete(c *gin.Context) {
	orgID, err := getOrgID(c)
	if err != nil {
		h.Unauthorized(c, "Organization context required")
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User context required")
		return
	}

	statementID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid statement ID format")
		return
	}

	if err := h.statements.Delete(c.Request.Context(), orgID, userID, statementID); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

// UpdateItemField godoc
// @ID           updateOwnerStatementItemField
// @Summary      Edit a single field of a statement line
// @Description  Update one field of one line item in place; totals are recomputed from the result
// @Tags         owner-statements
// @Accept       json
// @Produce      json
// @Param        X-Org-ID header string false "Organization ID (optional for dev)"
// @Param        id path string true "Statement ID" format(uuid)
// @Param        request body statementapp.EditItemFieldRequest true "Field edit request"
// @Success      200 {object} APIResponse[statementapp.StatementResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /owner-statements/{id}/items [patch]
func (h *OwnerStatementHandler) UpdateItemField(c *gin.Context) {
	orgID, err := getOrgID(c)
	if err != nil {
		h.Unauthorized(c, "Organization context required")
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User context required")
		return
	}

	statementID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid statement ID format")
		return
	}

	var req statementapp.EditItemFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	stmt, err := h.statements.EditItemField(c.Request.Context(), orgID, userID, statementID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, stmt)
}

// AddItem godoc
// @ID           addOwnerStatementItem
// @Summary      Add a line item to a statement
// @Description  Append an income, expense or adjustment line; totals are recomputed from the result
// @Tags         owner-statements
// @Accept       json
// @Produce      json
// @Param        X-Org-ID header string false "Organization ID (optional for dev)"
// @Param        id path string true "Statement ID" format(uuid)
// @Param        request body statementapp.AddItemRequest true "Line item to add"
// @Success      200 {object} APIResponse[statementapp.StatementResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /owner-statements/{id}/items [post]
func (h *OwnerStatementHandler) AddItem(c *gin.Context) {
	orgID, err := getOrgID(c)
	if err != nil {
		h.Unauthorized(c, "Organization context required")
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User context required")
		return
	}

	statementID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid statement ID format")
		return
	}

	var req statementapp.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	stmt, err := h.statements.AddItem(c.Request.Context(), orgID, userID, statementID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, stmt)
}

// RemoveItem godoc
// @ID           removeOwnerStatementItem
// @Summary      Remove a line item from a statement
// @Description  Remove one line item by section and index; totals are recomputed from the result
// @Tags         owner-statements
// @Accept       json
// @Produce      json
// @Param        X-Org-ID header string false "Organization ID (optional for dev)"
// @Param        id path string true "Statement ID" format(uuid)
// @Param        request body statementapp.RemoveItemRequest true "Line item to remove"
// @Success      200 {object} APIResponse[statementapp.StatementResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /owner-statements/{id}/items [delete]
func (h *OwnerStatementHandler) RemoveItem(c *gin.Context) {
	orgID, err := getOrgID(c)
	if err != nil {
		h.Unauthorized(c, "Organization context required")
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User context required")
		return
	}

	statementID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid statement ID format")
		return
	}

	var req statementapp.RemoveItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	stmt, err := h.statements.RemoveItem(c.Request.Context(), orgID, userID, statementID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, stmt)
}

// CreateMonthlyBatch godoc
// @ID           createOwnerStatementBatch
// @Summary      Create a month of statements in one call
// @Description  Create statements for many properties in one month; chunks commit independently and the result reports per-property failures
// @Tags         owner-statements
// @Accept       json
// @Produce      json
// @Param        X-Org-ID header string false "Organization ID (optional for dev)"
// @Param        Idempotency-Key header string false "Idempotency key; repeating a key replays the recorded result"
// @Param        request body statementapp.CreateMonthlyBatchRequest true "Monthly batch request"
// @Success      200 {object} APIResponse[statementapp.BatchResult]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /owner-statements/batch [post]
func (h *OwnerStatementHandler) CreateMonthlyBatch(c *gin.Context) {
	orgID, err := getOrgID(c)
	if err != nil {
		h.Unauthorized(c, "Organization context required")
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "User context required")
		return
	}

	var req statementapp.CreateMonthlyBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	// The header wins over the body field when both are present
	if key := c.GetHeader("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	result, err := h.batches.CreateMonthlyBatch(c.Request.Context(), orgID, userID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}
