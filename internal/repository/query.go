package repository

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// orderClause resolves a user supplied sort key against an allow-list.
func orderClause(allowed map[string]string, sortBy, fallback, sortOrder string) string {
	column, ok := allowed[sortBy]
	if !ok {
		column = allowed[fallback]
	}
	order := strings.ToUpper(sortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	return fmt.Sprintf("%s %s", column, order)
}

// where joins conditions into a WHERE clause, or returns an empty string.
func where(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conditions, " AND ")
}

// likePattern builds a case-insensitive contains pattern.
func likePattern(term string) string {
	return "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
}

// pick returns exec when set so statements can join a caller's transaction.
func pick(db *sqlx.DB, exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return db
}
