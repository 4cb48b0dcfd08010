package option

import (
	"strings"

	"gorm.io/gorm"
)

// QueryOption narrows or shapes a gorm statement built by the generic store.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type QueryOptionFunc func(db *gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB {
	return f(db)
}

// WithWhere adds an explicit condition. Use it for zero-valued filters that a
// struct query would drop, such as is_invoiced = false.
func WithWhere(query string, args ...any) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	})
}

// WithOrder appends order clauses in the given sequence.
func WithOrder(clauses ...string) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		for _, clause := range clauses {
			if clause = strings.TrimSpace(clause); clause != "" {
				db = db.Order(clause)
			}
		}
		return db
	})
}

func WithOffset(offset int) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if offset <= 0 {
			return db
		}
		return db.Offset(offset)
	})
}

func WithLimit(limit int) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}
