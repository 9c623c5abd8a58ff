package model

import "time"

// ItemState enumerates the lifecycle states of a lendable item.
// The state column is the single source of truth for what may
// happen to an item next; only the circulation engine mutates it.
type ItemState string

const (
	// ItemAvailable means the item sits on the shelf and may be
	// added to a basket or checked out.
	ItemAvailable ItemState = "AVAILABLE"
	// ItemLoaned means exactly one patron currently holds the item.
	ItemLoaned ItemState = "LOANED"
	// ItemReadyForPickup means the item has been returned and is
	// held at the desk for the head of its reservation queue.
	ItemReadyForPickup ItemState = "READY_FOR_PICKUP"
	// ItemWithdrawn is terminal; the item is no longer lendable.
	ItemWithdrawn ItemState = "WITHDRAWN"
)

// Valid reports whether s is one of the known item states.
func (s ItemState) Valid() bool {
	switch s {
	case ItemAvailable, ItemLoaned, ItemReadyForPickup, ItemWithdrawn:
		return true
	}
	return false
}

// Item represents a physical holding in the catalog as stored in the
// `items` table.
//
// Fields:
//  ID         – primary key identifier.
//  Title      – bibliographic title.
//  Author     – bibliographic author.
//  ISBN       – ISBN string (searched by substring, never validated).
//  Tag        – free-form keyword used by catalog search.
//  CategoryID – reference into the categories tree.
//  State      – circulation state, see ItemState.
//  CreatedAt  – timestamp of creation.
//  UpdatedAt  – timestamp of last update.
type Item struct {
	ID         uint64    // items.id
	Title      string    // items.title
	Author     string    // items.author
	ISBN       string    // items.isbn
	Tag        string    // items.tag
	CategoryID uint64    // items.category_id
	State      ItemState // items.state
	CreatedAt  time.Time // items.created_at
	UpdatedAt  time.Time // items.updated_at
}
