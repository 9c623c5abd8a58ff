package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatLine(t *testing.T) {
	checkedOut := CirculationEvent{
		Kind:       KindLoanCheckedOut,
		PatronID:   10,
		ItemID:     1,
		ItemTitle:  "Dune",
		LoanID:     7,
		DueAt:      "2025-06-15T12:00:00Z",
		OccurredAt: "2025-06-01T12:00:00Z",
	}
	line := formatLine(checkedOut)
	assert.Contains(t, line, "Loan checked out")
	assert.Contains(t, line, "loan_id=7")
	assert.Contains(t, line, `"Dune"`)
	assert.Contains(t, line, "due_at=2025-06-15T12:00:00Z")

	activated := CirculationEvent{
		Kind:          KindReservationActivated,
		PatronID:      20,
		ItemID:        1,
		ReservationID: 3,
		PickupBy:      "2025-06-03T12:00:00Z",
		OccurredAt:    "2025-06-01T12:00:00Z",
	}
	line = formatLine(activated)
	assert.Contains(t, line, "Reservation ready for pickup")
	assert.Contains(t, line, "pickup_by=2025-06-03T12:00:00Z")

	unknown := CirculationEvent{Kind: "something.else", PatronID: 1, ItemID: 2, OccurredAt: "t"}
	line = formatLine(unknown)
	assert.Contains(t, line, "something.else")
}
