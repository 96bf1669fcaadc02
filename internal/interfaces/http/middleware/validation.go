package middleware

import (
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/Jc7j/ProperlyOld-sub000/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RequestIDKey is the context key for request ID
const RequestIDKey = "X-Request-ID"

// statementMonthRegex matches the "YYYY-MM" wire form used for statement months.
var statementMonthRegex = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// SetupValidator installs custom validation tags on gin's binding validator
// and makes error messages report wire field names instead of Go ones.
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	v.RegisterTagNameFunc(wireFieldName)

	// statement_month validates the YYYY-MM form used by statement endpoints
	_ = v.RegisterValidation("statement_month", func(fl validator.FieldLevel) bool {
		return statementMonthRegex.MatchString(fl.Field().String())
	})
}

// wireFieldName resolves a struct field to its json tag, falling back to the
// form tag for query-bound inputs.
func wireFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
	}
	return name
}

// FormatValidationErrors turns a binding error into the standard error
// envelope, with one detail per failed field.
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			details = append(details, dto.ValidationDetail{
				Field:   e.Field(),
				Message: getValidationMessage(e),
			})
		}
	} else if err != nil {
		// Malformed bodies fail before the validator runs; keep the decode error
		details = append(details, dto.ValidationDetail{
			Field:   "body",
			Message: err.Error(),
		})
	}

	return dto.NewValidationErrorResponse(
		"Request validation failed",
		requestID,
		details,
	)
}

// HandleValidationError writes a 400 with the formatted validation details.
func HandleValidationError(c *gin.Context, err error) {
	requestID := getRequestIDFromContext(c)
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, requestID))
}

func getRequestIDFromContext(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(RequestIDKey)
}

// fixedValidationMessages covers the tags whose message takes no parameter.
var fixedValidationMessages = map[string]string{
	"required":        "This field is required",
	"email":           "Invalid email format",
	"uuid":            "Invalid UUID format",
	"url":             "Invalid URL format",
	"numeric":         "Must be numeric",
	"alphanum":        "Must be alphanumeric",
	"alpha":           "Must contain only letters",
	"statement_month": "Must be a calendar month in YYYY-MM format",
}

// getValidationMessage renders a field error as client-facing prose.
func getValidationMessage(e validator.FieldError) string {
	if msg, ok := fixedValidationMessages[e.Tag()]; ok {
		return msg
	}

	switch e.Tag() {
	case "min":
		return boundMessage("Must be at least ", e)
	case "max":
		return boundMessage("Must be at most ", e)
	case "len":
		return "Must be exactly " + e.Param() + " characters"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "lte":
		return "Must be less than or equal to " + e.Param()
	case "gt":
		return "Must be greater than " + e.Param()
	case "lt":
		return "Must be less than " + e.Param()
	}
	return "Invalid value"
}

// boundMessage appends "characters" for string fields so length bounds read
// as lengths rather than values.
func boundMessage(prefix string, e validator.FieldError) string {
	if e.Type().Kind() == reflect.String {
		return prefix + e.Param() + " characters"
	}
	return prefix + e.Param()
}
