// Package queue defines message payloads exchanged over the message broker.
package queue

// Event kinds published to the circulation.events queue.
const (
	KindLoanCheckedOut       = "loan.checked_out"
	KindLoanReturned         = "loan.returned"
	KindReservationActivated = "reservation.activated"
	KindPickupFinalized      = "pickup.finalized"
)

// CirculationEvent is the single envelope published for every
// circulation state change.  Downstream consumers (notification
// senders, audit log) get enough context to act without querying the
// primary database.  Fields that do not apply to a given kind stay
// zero and are omitted from the JSON body.
type CirculationEvent struct {
	Kind          string `json:"kind"`
	PatronID      uint64 `json:"patron_id"`
	PatronEmail   string `json:"patron_email,omitempty"`
	ItemID        uint64 `json:"item_id"`
	ItemTitle     string `json:"item_title,omitempty"`
	LoanID        uint64 `json:"loan_id,omitempty"`
	ReservationID uint64 `json:"reservation_id,omitempty"`
	DueAt         string `json:"due_at,omitempty"`
	PickupBy      string `json:"pickup_by,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}
