package model

import "time"

// Loan is a borrowing record for one item by one patron as stored in
// the `loans` table.  A nil ReturnedAt marks the loan as open; at
// most one open loan exists per item at any time.  Loans are never
// deleted: the return workflow sets ReturnedAt and the renewal policy
// extends DueAt exactly once.
//
// Fields:
//  ID           – primary key identifier.
//  PatronID     – borrowing patron.
//  ItemID       – borrowed item.
//  CheckedOutAt – checkout timestamp.
//  DueAt        – expected return timestamp.
//  ReturnedAt   – actual return timestamp (nullable, null = open).
//  Renewed      – whether the one permitted renewal was used.
type Loan struct {
	ID           uint64     // loans.id
	PatronID     uint64     // loans.patron_id
	ItemID       uint64     // loans.item_id
	CheckedOutAt time.Time  // loans.checked_out_at
	DueAt        time.Time  // loans.due_at
	ReturnedAt   *time.Time // loans.returned_at (nullable)
	Renewed      bool       // loans.renewed
}

// Open reports whether the loan has not been returned yet.
func (l Loan) Open() bool { return l.ReturnedAt == nil }

// Overdue reports whether an open loan has passed its due date.
func (l Loan) Overdue(now time.Time) bool { return l.Open() && l.DueAt.Before(now) }
