package main

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Domain errors raised by the account and loan services. Handlers map them
// onto the envelope error codes.
var (
	errNotFound        = errors.New("record not found")
	errMissingField    = errors.New("missing required field for account type")
	errBadAmount       = errors.New("amount must not be negative")
	errEmptyPartyList  = errors.New("holder/borrower list must not be empty")
	errLastHolder      = errors.New("an account must keep at least one holder")
	errNotBound        = errors.New("customer is not bound to this account")
	errUnknownSearch   = errors.New("unknown search method or keyword type")
	errLoanOverLimit   = errors.New("disbursement exceeds loan principal")
	errLoanDisbursing  = errors.New("loan is not fully disbursed yet")
	errDuplicateEntry  = errors.New("duplicate entry")
	errNoReferencedRow = errors.New("referenced row does not exist")
	errRowReferenced   = errors.New("row is still referenced")
)

// Postgres SQLSTATE classes for constraint violations.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// classifyDBError folds a persistence error into one of the domain constraint
// errors so every route reports them uniformly. Unrecognized errors pass
// through unchanged.
func classifyDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return errDuplicateEntry
		case pgForeignKeyViolation:
			// The same SQLSTATE covers both directions: inserting a child
			// without its parent and deleting a parent with children.
			if strings.Contains(pgErr.Message, "still referenced") {
				return errRowReferenced
			}
			return errNoReferencedRow
		}
	}
	// Fallback for stores that do not surface *pgconn.PgError.
	s := err.Error()
	switch {
	case strings.Contains(s, "duplicate key") || strings.Contains(s, "UNIQUE constraint"):
		return errDuplicateEntry
	case strings.Contains(s, "still referenced"):
		return errRowReferenced
	case strings.Contains(s, "foreign key constraint") || strings.Contains(s, "FOREIGN KEY constraint"):
		return errNoReferencedRow
	}
	return err
}

// errCode maps a (classified) error to the envelope code for the response.
func errCode(err error) int {
	switch {
	case errors.Is(err, errNotFound), errors.Is(err, errNotBound):
		return codeNotFound
	case errors.Is(err, errMissingField), errors.Is(err, errBadAmount):
		return codeBadRequest
	case errors.Is(err, errUnknownSearch):
		return codeUnknownMethod
	case errors.Is(err, errEmptyPartyList):
		return codeEmptyPartyList
	case errors.Is(err, errLastHolder):
		return codeLastHolder
	case errors.Is(err, errLoanOverLimit):
		return codeLoanOverLimit
	case errors.Is(err, errLoanDisbursing):
		return codeLoanDisbursing
	case errors.Is(err, errDuplicateEntry):
		return codeDuplicateEntry
	case errors.Is(err, errRowReferenced):
		return codeRowReferenced
	case errors.Is(err, errNoReferencedRow):
		return codeNoReferencedRow
	default:
		return codeUnknownSQL
	}
}
