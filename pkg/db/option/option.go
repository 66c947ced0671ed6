package option

import (
	"fmt"
	"strings"

	"github.com/smallbiznis/taskhub/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption mutates a gorm statement before it is executed.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type queryOptionFunc func(db *gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB {
	return f(db)
}

// ApplyAll applies opts in order.
func ApplyAll(db *gorm.DB, opts ...QueryOption) *gorm.DB {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		db = opt.Apply(db)
	}
	return db
}

// ApplyPagination limits the statement to one offset page.
func ApplyPagination(page pagination.Page) QueryOption {
	page = page.Normalize()
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Offset(page.Offset()).Limit(page.Limit)
	})
}

type Operator string

const (
	EQ  Operator = "="
	GTE Operator = ">="
	LTE Operator = "<="
)

// Condition is a single column comparison. Field must be a column name chosen by code, never input.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

func ApplyOperator(cond Condition) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		switch cond.Operator {
		case EQ, GTE, LTE:
		default:
			db.AddError(fmt.Errorf("unsupported operator %q", cond.Operator))
			return db
		}
		return db.Where(fmt.Sprintf("%s %s ?", cond.Field, cond.Operator), cond.Value)
	})
}

// QuerySortBy orders by Field when it is in Allow, falling back to the first default column.
type QuerySortBy struct {
	Allow   map[string]bool
	Field   string
	Default string
	Asc     bool
}

func WithSortBy(sort QuerySortBy) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(sort.Field)
		if !sort.Allow[field] {
			field = sort.Default
		}
		if field == "" {
			return db
		}
		return db.Order(clause.OrderByColumn{
			Column: clause.Column{Name: field},
			Desc:   !sort.Asc,
		}).Order(clause.OrderByColumn{
			Column: clause.Column{Name: "id"},
			Desc:   !sort.Asc,
		})
	})
}
