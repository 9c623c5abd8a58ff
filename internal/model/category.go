package model

import "time"

// Category is a node of the catalog's category tree.  A nil ParentID
// marks a root category.  Parent-to-child is one-to-many and the tree
// must stay acyclic; parent assignment is validated on write and
// deletion is refused while children or items still reference the
// category.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – display name of the category.
//  ParentID  – optional reference to the parent category.
//  CreatedAt – timestamp of creation.
type Category struct {
	ID        uint64    // categories.id
	Name      string    // categories.name
	ParentID  *uint64   // categories.parent_id (nullable)
	CreatedAt time.Time // categories.created_at
}
