// Package repository implements the data access layer for the application.
package repository

import (
	"errors"
	"strings"

	"taskhub/internal/database"
	"taskhub/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

func readDB(primary *gorm.DB) *gorm.DB {
	if db := database.GetReadDB(); db != nil {
		return db
	}
	return primary
}

// isUniqueConstraintError recognises duplicate-key failures from Postgres and SQLite.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// likeOperator returns the case-insensitive LIKE for the connected dialect.
func likeOperator(db *gorm.DB) string {
	if db.Dialector.Name() == "postgres" {
		return "ILIKE"
	}
	// SQLite's LIKE is already case-insensitive for ASCII.
	return "LIKE"
}

// likeClause renders "<column> ILIKE ? ESCAPE '\'" for use with containsPattern.
func likeClause(db *gorm.DB, column string) string {
	return column + " " + likeOperator(db) + ` ? ESCAPE '\'`
}

// containsPattern escapes LIKE wildcards in q and wraps it in %...%.
func containsPattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(q)) + "%"
}

// notFoundOr maps gorm.ErrRecordNotFound onto a NOT_FOUND AppError and wraps anything else.
func notFoundOr(err error, resource string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewInternalError(err)
}

// takenOr maps unique violations onto the "has already been taken" validation error.
func takenOr(err error, field string) error {
	if isUniqueConstraintError(err) {
		return models.NewValidationError(field + " has already been taken")
	}
	return models.NewInternalError(err)
}

// page applies limit and offset; a non-positive limit means no limit.
func page(db *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		db = db.Limit(limit)
	}
	if offset > 0 {
		db = db.Offset(offset)
	}
	return db
}
