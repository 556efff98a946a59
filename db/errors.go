package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"laptop_tracker/lifecycle"
	"laptop_tracker/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgErrUniqueViolation = "23505"

// uniqueConstraints maps Postgres unique constraint names onto the
// lifecycle taxonomy.
var uniqueConstraints = map[string]error{
	"laptops_serial_number_key":           lifecycle.ErrDuplicateSerial,
	"biometric_devices_serial_number_key": lifecycle.ErrDuplicateSerial,
	"persons_name_key_key":                lifecycle.ErrDuplicateName,
	models.LaptopTable + "_pkey":          lifecycle.ErrDuplicateID,
	models.AssignmentTable + "_pkey":      lifecycle.ErrDuplicateID,
	OpenAssignmentIndex:                   lifecycle.ErrInvalidTransition,
}

// classify wraps driver errors into the lifecycle taxonomy. Errors that
// already belong to it are returned unchanged.
func classify(err error) error {
	if err == nil || lifecycle.IsDomain(err) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %v", lifecycle.ErrNotFound, err)
	}
	if pgErr, ok := maybePgError(err); ok {
		if pgErr.Code == pgErrUniqueViolation {
			if target, ok := uniqueConstraints[pgErr.ConstraintName]; ok {
				return fmt.Errorf("%w: %s", target, pgErr.Detail)
			}
		}
		return err
	}
	if isConnectionError(err) {
		return fmt.Errorf("%w: %v", lifecycle.ErrStoreUnavailable, err)
	}
	return err
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func isConnectionError(err error) bool {
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
