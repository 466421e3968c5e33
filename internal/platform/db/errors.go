package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/orms/orms/pkg/apperrors"
)

// PostgreSQL SQLSTATE codes we classify.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNotNullViolation    = "23502"
	codeQueryCanceled       = "57014"
)

// TranslateError converts a storage error into the apperrors taxonomy.
// Raw driver text is kept only as the wrapped cause.
func TranslateError(err error, entity string) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &apperrors.Error{Kind: apperrors.KindNotFound, Entity: entity, Message: entity + " not found", Err: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		field := fieldFromConstraint(pgErr.TableName, pgErr.ConstraintName)
		switch pgErr.Code {
		case codeUniqueViolation:
			return &apperrors.Error{Kind: apperrors.KindUniquenessConflict, Entity: entity, Field: field,
				Message: field + " already exists", Err: err}
		case codeForeignKeyViolation:
			return &apperrors.Error{Kind: apperrors.KindReferentialConflict, Entity: entity, Field: field,
				Message: "violates reference on " + field, Err: err}
		case codeCheckViolation:
			return &apperrors.Error{Kind: apperrors.KindValidation, Entity: entity, Field: field,
				Message: field + " is out of range", Err: err}
		case codeNotNullViolation:
			return &apperrors.Error{Kind: apperrors.KindValidation, Entity: entity, Field: pgErr.ColumnName,
				Message: pgErr.ColumnName + " is required", Err: err}
		case codeQueryCanceled:
			return apperrors.Internal("statement timed out", err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.Internal("operation cancelled", err)
	}
	return apperrors.Internal("storage failure", err)
}

// TranslateRowError is TranslateError for single-row lookups: a missing row
// becomes NotFound naming id.
func TranslateRowError(err error, entity string, id interface{}) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound(entity, id)
	}
	return TranslateError(err, entity)
}

// fieldFromConstraint recovers the column from PostgreSQL's default
// constraint names, e.g. doctors_license_number_key -> license_number.
func fieldFromConstraint(table, constraint string) string {
	name := strings.TrimPrefix(constraint, table+"_")
	for _, suffix := range []string{"_fkey", "_key", "_check"} {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}
