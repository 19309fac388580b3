package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"gorm.io/gorm"
)

// Failure kinds. Every error returned by Client wraps exactly one of them.
var (
	// ErrUnavailable means the store could not be reached: the connection was
	// refused or closed, or the caller's context ended.
	ErrUnavailable = errors.New("store unavailable")
	// ErrRejected means the store answered and refused the operation.
	ErrRejected = errors.New("store rejected operation")
)

// ErrDuplicate identifies a unique-constraint rejection. It is always
// reported together with ErrRejected.
var ErrDuplicate = errors.New("duplicate record")

// Error describes a failed store operation.
type Error struct {
	Op    string // query, first, insert, update, delete, count, ping, transaction
	Table string
	Kind  error
	Err   error
}

func (e *Error) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Table, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// IsUnavailable reports whether err is a store failure of kind ErrUnavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

func wrap(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	kind := classify(err)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		err = errors.Join(ErrDuplicate, err)
	}
	return &Error{Op: op, Table: table, Kind: kind, Err: err}
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return ErrUnavailable
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrUnavailable
	}

	// database/sql does not export this one.
	if strings.Contains(err.Error(), "sql: database is closed") {
		return ErrUnavailable
	}

	return ErrRejected
}
