// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the caller attempted to change a
// book owned by someone else, while ErrEmailExists signals that the
// unique email index rejected an insert.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Services translate this into
// their own forbidden error and handlers into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrEmailExists is returned when a user with the same email exists.
var ErrEmailExists = errors.New("email already exists")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
