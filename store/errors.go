// Package store provides the GORM-backed data access layer. Uniqueness and
// compare-and-swap conditions live in the database schema so that multiple
// process instances can race safely; no in-memory locking is relied on.
//
// The sentinel errors below let the service and handler layers distinguish
// business conflicts from transient infrastructure failures.
package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrInvalidRange is returned when a slot generation request carries dates or
// times that cannot be parsed, or a non-positive interval.
var ErrInvalidRange = errors.New("invalid schedule range")

// ErrDuplicateAssignment is returned when a provider publishes a slot that is
// already assigned to a provider.
var ErrDuplicateAssignment = errors.New("schedule already assigned to a provider")

// ErrSlotAlreadyReserved is returned when a reservation loses the race for a
// slot. Callers must pick another slot rather than retry.
var ErrSlotAlreadyReserved = errors.New("slot already reserved")

// ErrUnknownCorrelation is returned when a gateway event references an
// appointment/payment pair that does not exist.
var ErrUnknownCorrelation = errors.New("no appointment matches the event correlation ids")

// ErrScheduleInUse is returned when deleting a schedule that a provider
// assignment still references.
var ErrScheduleInUse = errors.New("schedule is referenced by a provider assignment")

// ErrTransientStore marks persistence failures that are safe to retry with
// backoff: nothing was committed.
var ErrTransientStore = errors.New("store temporarily unavailable")

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation, optionally on a specific index.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// classify maps connection-level Postgres failures onto ErrTransientStore and
// passes every other error through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 = connection exception, 57P03 = cannot_connect_now.
		if strings.HasPrefix(pgErr.Code, "08") || pgErr.Code == "57P03" {
			return fmt.Errorf("%w: %v", ErrTransientStore, err)
		}
	}
	return err
}
