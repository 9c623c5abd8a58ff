package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestItemStateValid(t *testing.T) {
	for _, s := range []ItemState{ItemAvailable, ItemLoaned, ItemReadyForPickup, ItemWithdrawn} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, ItemState("").Valid())
	assert.False(t, ItemState("LOST").Valid())
}

func TestLoanOpenAndOverdue(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	due := now.Add(24 * time.Hour)

	open := Loan{DueAt: due}
	assert.True(t, open.Open())
	assert.False(t, open.Overdue(now))
	assert.True(t, open.Overdue(due.Add(time.Minute)))

	ret := now
	closed := Loan{DueAt: due, ReturnedAt: &ret}
	assert.False(t, closed.Open())
	assert.False(t, closed.Overdue(due.Add(48*time.Hour)), "closed loans are never overdue")
}
