package persistence

import (
	"strings"
)

// Sort fields arrive from query parameters and are interpolated into
// ORDER BY clauses, so every repository validates them against a
// whitelist here before they reach SQL.

// PropertySortFields lists the columns property listings may sort by.
var PropertySortFields = map[string]bool{
	"id":         true,
	"name":       true,
	"address":    true,
	"active":     true,
	"created_at": true,
	"updated_at": true,
}

// StatementSortFields lists the columns statement listings may sort by.
var StatementSortFields = map[string]bool{
	"id":              true,
	"statement_month": true,
	"grand_total":     true,
	"created_at":      true,
	"updated_at":      true,
}

// ValidateSortField returns candidate when it is in the whitelist,
// defaultField otherwise.
func ValidateSortField(candidate string, allowed map[string]bool, defaultField string) string {
	field := strings.TrimSpace(candidate)
	if allowed[field] {
		return field
	}
	return defaultField
}

// ValidateSortOrder normalizes a sort direction to ASC or DESC.
// Anything other than "desc" sorts ascending.
func ValidateSortOrder(direction string) string {
	if strings.EqualFold(strings.TrimSpace(direction), "desc") {
		return "DESC"
	}
	return "ASC"
}
