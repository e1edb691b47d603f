package rdb

import (
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation   = "23505"
	pgNotNullViolation  = "23502"
	mysqlDuplicateEntry = 1062
	mysqlBadNull        = 1048

	columnUsername = "username"
	columnEmail    = "email"
)

// Helper functions for database error checking
func isUniqueConstraintViolation(err error) bool {
	// Check for GORM's duplicate key error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isNotNullConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgNotNullViolation
	}

	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlBadNull
	}

	return strings.Contains(err.Error(), "NOT NULL constraint failed")
}

// duplicateColumn names the unique column a violation was raised on, or "" when
// the driver error does not say.
func duplicateColumn(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return columnFromConstraint(pgErr.ConstraintName)
	}

	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		// Duplicate entry '<value>' for key 'accounts.uq_accounts_username'
		if idx := strings.LastIndex(myErr.Message, "for key"); idx >= 0 {
			return columnFromConstraint(myErr.Message[idx:])
		}

		return ""
	}

	// UNIQUE constraint failed: accounts.username
	msg := err.Error()
	if idx := strings.Index(msg, "UNIQUE constraint failed:"); idx >= 0 {
		return columnFromConstraint(msg[idx:])
	}

	return ""
}

func columnFromConstraint(s string) string {
	switch {
	case strings.Contains(s, "uq_accounts_username"), strings.Contains(s, "accounts.username"):
		return columnUsername
	case strings.Contains(s, "uq_accounts_email"), strings.Contains(s, "accounts.email"):
		return columnEmail
	default:
		return ""
	}
}
