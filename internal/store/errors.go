package store

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	apperrors "github.com/aabubakar17/meetEasy/internal/errors"
)

// pqInsufficientPrivilege is SQLSTATE 42501.
const pqInsufficientPrivilege = "42501"

// mapError classifies a driver error into a STORE error.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewStoreError(apperrors.CodeNotFound, op+": not found", err)
	}
	if IsPermissionDenied(err) {
		return apperrors.NewStoreError(apperrors.CodePermissionDenied, op+": permission denied", err)
	}
	return apperrors.NewStoreError(apperrors.CodeQueryFailed, op, err)
}

// IsPermissionDenied reports whether err is an authorization failure raised
// by either driver, or a STORE error already classified as one.
func IsPermissionDenied(err error) bool {
	if apperrors.HasCode(err, apperrors.CodePermissionDenied) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pqInsufficientPrivilege
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrAuth || liteErr.Code == sqlite3.ErrPerm
	}
	return false
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return apperrors.GetCategory(err) == apperrors.ErrCategoryStore &&
		apperrors.HasCode(err, apperrors.CodeNotFound)
}
