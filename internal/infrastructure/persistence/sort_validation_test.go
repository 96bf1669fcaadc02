package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercase desc", "desc", "DESC"},
		{"uppercase desc", "DESC", "DESC"},
		{"mixed case desc", "DeSc", "DESC"},
		{"padded desc", "  desc  ", "DESC"},
		{"lowercase asc", "asc", "ASC"},
		{"uppercase asc", "ASC", "ASC"},
		{"empty defaults to asc", "", "ASC"},
		{"garbage defaults to asc", "sideways", "ASC"},
		{"injection attempt defaults to asc", "ASC; DROP TABLE properties;--", "ASC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateSortOrder(tt.input))
		})
	}
}

func TestValidateSortField(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		allowed      map[string]bool
		defaultField string
		expected     string
	}{
		{"allowed property field", "name", PropertySortFields, "name", "name"},
		{"allowed with padding", "  address  ", PropertySortFields, "name", "address"},
		{"empty falls back", "", PropertySortFields, "name", "name"},
		{"unknown falls back", "owner_payout", PropertySortFields, "name", "name"},
		{"case sensitive", "NAME", PropertySortFields, "name", "name"},
		{"statement month allowed", "statement_month", StatementSortFields, "statement_month", "statement_month"},
		{"grand total allowed", "grand_total", StatementSortFields, "statement_month", "grand_total"},
		{"property column not valid for statements", "address", StatementSortFields, "statement_month", "statement_month"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateSortField(tt.input, tt.allowed, tt.defaultField))
		})
	}
}

func TestSortFieldWhitelists(t *testing.T) {
	// Every whitelist carries the audit columns.
	for name, fields := range map[string]map[string]bool{
		"property":  PropertySortFields,
		"statement": StatementSortFields,
	} {
		assert.True(t, fields["id"], "%s whitelist must allow id", name)
		assert.True(t, fields["created_at"], "%s whitelist must allow created_at", name)
		assert.True(t, fields["updated_at"], "%s whitelist must allow updated_at", name)
	}

	assert.True(t, PropertySortFields["name"])
	assert.True(t, PropertySortFields["active"])
	assert.True(t, StatementSortFields["statement_month"])
	assert.True(t, StatementSortFields["grand_total"])

	// Tenancy and soft-delete columns are never user-driven sorts.
	assert.False(t, PropertySortFields["org_id"])
	assert.False(t, StatementSortFields["org_id"])
	assert.False(t, StatementSortFields["deleted_at"])
}

func TestSortValidationBlocksInjection(t *testing.T) {
	payloads := []string{
		"name; DROP TABLE owner_statements;--",
		"name' OR '1'='1",
		"(SELECT secret FROM credentials)",
		"created_at, (CASE WHEN 1=1 THEN 1 ELSE 2 END)",
		"name UNION SELECT * FROM properties",
		"name/**/;DELETE FROM properties",
		"name\n; DROP TABLE properties",
	}

	for _, payload := range payloads {
		t.Run(payload, func(t *testing.T) {
			assert.Equal(t, "name", ValidateSortField(payload, PropertySortFields, "name"))
			assert.Equal(t, "ASC", ValidateSortOrder(payload))
		})
	}
}
