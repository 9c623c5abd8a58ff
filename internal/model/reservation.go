package model

import "time"

// Reservation is a patron's claim on an item that is currently out on
// loan, stored in the `reservations` table.  Active reservations for
// one item form a strict FIFO queue ordered by ReservedAt (ties broken
// by id).  A reservation is deactivated, never deleted, when it is
// cancelled or converted into a loan at pickup.  Expiry is advisory:
// there is no automatic sweep, staff cancel stale reservations by
// hand.
//
// Fields:
//  ID         – primary key identifier.
//  PatronID   – reserving patron.
//  ItemID     – reserved item.
//  ReservedAt – when the reservation was placed; queue position.
//  ExpiresAt  – pickup deadline; extended when the reservation is
//               activated by a return.
//  Active     – whether the reservation still waits in the queue.
type Reservation struct {
	ID         uint64    // reservations.id
	PatronID   uint64    // reservations.patron_id
	ItemID     uint64    // reservations.item_id
	ReservedAt time.Time // reservations.reserved_at
	ExpiresAt  time.Time // reservations.expires_at
	Active     bool      // reservations.active
}
