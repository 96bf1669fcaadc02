package handler

import (
	propertyapp "github.com/Jc7j/ProperlyOld-sub000/internal/application/property"
	"github.com/Jc7j/ProperlyOld-sub000/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PropertyHandler handles property directory API endpoints
type PropertyHandler struct {
	BaseHandler
	properties *propertyapp.Service
}

// NewPropertyHandler creates a new PropertyHandler
func NewPropertyHandler(properties *propertyapp.Service) *PropertyHandler {
	return &PropertyHandler{
		properties: properties,
	}
}

// List godoc
// @ID           listProperties
// @Summary      List properties
// @Description  List the organization's property directory with pagination and name search
// @Tags         properties
// @Produce      json
// @Param        X-Org-ID header string false "Organization ID (optional for dev)"
// @Param        active_only query bool false "Only active properties"
// @Param        search query string false "Filter by name substring"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Param        sort_by query string false "Sort column" Enums(id, name, address, active, created_at, updated_at) default(name)
// @Param        sort_dir query string false "Sort direction" Enums(asc, desc) default(asc)
// @Success      200 {object} APIResponse[[]propertyapp.PropertyResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /properties [get]
func (h *PropertyHandler) List(c *gin.Context) {
	orgID, err := getOrgID(c)
	if err != nil {
		h.Unauthorized(c, "Organization context required")
		return
	}

	var q propertyapp.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	page, err := h.properties.List(c.Request.Context(), orgID, q)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// GetByID godoc
// @ID           getProperty
// @Summary      Get a property
// @Description  Get a single property by ID
// @Tags         properties
// @Produce      json
// @Param        X-Org-ID header string false "Organization ID (optional for dev)"
// @Param        id path string true "Property ID" format(uuid)
// @Success      200 {object} APIResponse[propertyapp.PropertyResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /properties/{id} [get]
func (h *PropertyHandler) GetByID(c *gin.Context) {
	orgID, err := getOrgID(c)
	if err != nil {
		h.Unauthorized(c, "Organization context required")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid property ID format")
		return
	}

	prop, err := h.properties.Get(c.Request.Context(), orgID, id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, prop)
}

// Create godoc
// @ID           createProperty
// @Summary      Create a property
// @Description  Add a property to the organization's directory. Names must be unique among active properties.
// @Tags         properties
// @Accept       json
// @Produce      json
// @Param        X-Org-ID header string false "Organization ID (optional for dev)"
// @Param        request body propertyapp.CreatePropertyRequest true "Property to create"
// @Success      201 {object} APIResponse[propertyapp.PropertyResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /properties [post]
func (h *PropertyHandler) Create(c *gin.Context) {
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

	var req propertyapp.CreatePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	prop, err := h.properties.Create(c.Request.Context(), orgID, userID, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, prop)
}

// Update godoc
// @ID           updateProperty
// @Summary      Update a property
// @Description  Apply a partial update to a property. Omitted fields are left unchanged.
// @Tags         properties
// @Accept       json
// @Produce      json
// @Param        X-Org-ID header string false "Organization ID (optional for dev)"
// @Param        id path string true "Property ID" format(uuid)
// @Param        request body propertyapp.UpdatePropertyRequest true "Fields to update"
// @Success      200 {object} APIResponse[propertyapp.PropertyResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /properties/{id} [put]
func (h *PropertyHandler) Update(c *gin.Context) {
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

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid property ID format")
		return
	}

	var req propertyapp.UpdatePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	prop, err := h.properties.Update(c.Request.Context(), orgID, userID, id, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, prop)
}

// Delete godoc
// @ID           deactivateProperty
// @Summary      Deactivate a property
// @Description  Retire a property from the directory. Statements already written against it are untouched.
// @Tags         properties
// @Produce      json
// @Param        X-Org-ID header string false "Organization ID (optional for dev)"
// @Param        id path string true "Property ID" format(uuid)
// @Success      204 "No Content"
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /properties/{id} [delete]
func (h *PropertyHandler) Delete(c *gin.Context) {
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

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid property ID format")
		return
	}

	if err := h.properties.Deactivate(c.Request.Context(), orgID, userID, id); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}
