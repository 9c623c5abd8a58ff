// Package repository implements raw-SQL persistence for the catalog,
// patrons, loans and reservations, plus the transactional store the
// circulation engine runs on.  Sentinel errors declared here are
// shared across repositories so handlers can map failure scenarios to
// HTTP statuses without string matching.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot proceed
// because of dependent records, such as removing a category that
// still has children or items, or withdrawing an item that is out on
// loan.  Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned when registering a patron with an email
// address that is already taken.
var ErrEmailExists = errors.New("email already exists")
