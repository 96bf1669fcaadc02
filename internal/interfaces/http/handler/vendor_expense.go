package handler

import (
	"io"
	"net/http"

	statementapp "github.com/Jc7j/ProperlyOld-sub000/internal/application/statement"
	"github.com/Jc7j/ProperlyOld-sub000/internal/interfaces/http/dto"
	"github.com/Jc7j/ProperlyOld-sub000/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// Maximum file size for workbook and invoice uploads (10MB)
	maxUploadFileSize = 10 * 1024 * 1024
)

// VendorExpenseHandler handles vendor expense import and invoice extraction endpoints
type VendorExpenseHandler struct {
	BaseHandler
	vendorExpenses *statementapp.VendorExpenseService
}

// NewVendorExpenseHandler creates a new VendorExpenseHandler
func NewVendorExpenseHandler(vendorExpenses *statementapp.VendorExpenseService) *VendorExpenseHandler {
	return &VendorExpenseHandler{
		vendorExpenses: vendorExpenses,
	}
}

// ImportWorkbook godoc
// @ID           importVendorExpenseWorkbook
// @Summary      Import vendor expenses from a workbook
// @Description  Parses an uploaded xlsx workbook and appends its expense rows to the live statements of the anchor statement's month
// @Tags         owner-statements
// @Accept       multipart/form-data
// @Produce      json
// @Param        X-Org-ID header string false "Organization ID (optional for dev)"
// @Param        id path string true "Anchor statement ID" format(uuid)
// @Param        file formData file true "Workbook file (xlsx)"
// @Success      200 {object} APIResponse[statementapp.VendorImportResult]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      413 {object} ErrorResponse
// @Failure      415 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /owner-statements/{id}/vendor-expenses/import [post]
func (h *VendorExpenseHandler) ImportWorkbook(c *gin.Context) {
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

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.BadRequest(c, "file is required")
		return
	}
	defer file.Close()

	if header.Size > maxUploadFileSize {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeValidation, "file exceeds maximum size of 10MB")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType != "" && contentType != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" &&
		contentType != "application/vnd.ms-excel" && contentType != "application/octet-stream" {
		h.Error(c, http.StatusUnsupportedMediaType, dto.ErrCodeValidation, "file must be an xlsx workbook")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.InternalError(c, "failed to read uploaded file")
		return
	}

	result, err := h.vendorExpenses.ImportFromWorkbook(c.Request.Context(), orgID, userID, statementID, data)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// ParseInvoice godoc
// @ID           parseVendorInvoice
// @Summary      Extract per-property expenses from an invoice
// @Description  Sends an uploaded invoice document to the extraction backend and maps the result onto candidate property names. Nothing is persisted.
// @Tags         owner-statements
// @Accept       multipart/form-data
// @Produce      json
// @Param        X-Org-ID header string false "Organization ID (optional for dev)"
// @Param        file formData file true "Invoice document (PDF)"
// @Param        candidate_names formData []string false "Property names to match against; defaults to all active properties" collectionFormat(multi)
// @Success      200 {object} APIResponse[statementapp.ParseInvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      413 {object} ErrorResponse
// @Failure      415 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /owner-statements/invoice/parse [post]
func (h *VendorExpenseHandler) ParseInvoice(c *gin.Context) {
	orgID, err := getOrgID(c)
	if err != nil {
		h.Unauthorized(c, "Organization context required")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.BadRequest(c, "file is required")
		return
	}
	defer file.Close()

	if header.Size > maxUploadFileSize {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeValidation, "file exceeds maximum size of 10MB")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType != "" && contentType != "application/pdf" && contentType != "application/octet-stream" {
		h.Error(c, http.StatusUnsupportedMediaType, dto.ErrCodeValidation, "file must be a PDF document")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.InternalError(c, "failed to read uploaded file")
		return
	}

	req := statementapp.ParseInvoiceRequest{
		Filename:       header.Filename,
		ContentType:    contentType,
		Data:           data,
		CandidateNames: c.PostFormArray("candidate_names"),
	}

	result, err := h.vendorExpenses.ParseInvoice(c.Request.Context(), orgID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// ApplyVendorExpenses godoc
// @ID           applyVendorExpenses
// @Summary      Apply extracted vendor expenses to a month
// @Description  Appends extracted expense rows to the live statements of a month. A vendor and description pair may be applied to a month only once.
// @Tags         owner-statements
// @Accept       json
// @Produce      json
// @Param        X-Org-ID header string false "Organization ID (optional for dev)"
// @Param        request body statementapp.ApplyVendorExpensesRequest true "Expenses keyed by property name"
// @Success      200 {object} APIResponse[statementapp.VendorApplyResult]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /owner-statements/vendor-expenses/apply [post]
func (h *VendorExpenseHandler) ApplyVendorExpenses(c *gin.Context) {
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

	var req statementapp.ApplyVendorExpensesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.vendorExpenses.ApplyMonthlyVendorExpenses(c.Request.Context(), orgID, userID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}
