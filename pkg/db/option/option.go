// Package option provides composable query modifiers for the generic
// repository. Options are applied to a *gorm.DB after the struct filter.
package option

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type queryOptionFunc func(db *gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// Operator is a SQL comparison operator usable in a Condition.
type Operator string

const (
	EQ  Operator = "="
	NEQ Operator = "<>"
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
)

// Condition is a single field comparison.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a WHERE clause for the given condition.
func ApplyOperator(cond Condition) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if cond.Field == "" || cond.Operator == "" {
			return db
		}
		return db.Where(fmt.Sprintf("%s %s ?", cond.Field, cond.Operator), cond.Value)
	})
}

// QuerySortBy constrains sorting to an allow-list of columns.
type QuerySortBy struct {
	Allow   map[string]bool
	Field   string
	Desc    bool
	Default string
}

// WithSortBy orders the result set by an allowed column, falling back to
// the configured default when the requested field is not allowed.
func WithSortBy(sort QuerySortBy) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(sort.Field)
		if field == "" || !sort.Allow[field] {
			field = sort.Default
		}
		if field == "" {
			return db
		}
		direction := "ASC"
		if sort.Desc {
			direction = "DESC"
		}
		return db.Order(fmt.Sprintf("%s %s", field, direction))
	})
}

// WithLimit caps the number of returned rows.
func WithLimit(limit int) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}
