package handler

import (
	"time"

	"github.com/openshelf/circulation/internal/model"
	"github.com/openshelf/circulation/internal/repository"
)

// Response views.  Models deliberately carry no JSON tags; handlers
// map them into these shapes, the way the rest of the API keeps its
// wire format decoupled from table layout.

type itemView struct {
	ID           uint64          `json:"id"`
	Title        string          `json:"title"`
	Author       string          `json:"author,omitempty"`
	ISBN         string          `json:"isbn,omitempty"`
	Tag          string          `json:"tag,omitempty"`
	CategoryID   uint64          `json:"category_id"`
	CategoryName string          `json:"category_name,omitempty"`
	State        model.ItemState `json:"state"`
}

func itemViewOf(it model.Item, categoryName string) itemView {
	return itemView{
		ID:           it.ID,
		Title:        it.Title,
		Author:       it.Author,
		ISBN:         it.ISBN,
		Tag:          it.Tag,
		CategoryID:   it.CategoryID,
		CategoryName: categoryName,
		State:        it.State,
	}
}

type categoryView struct {
	ID         uint64  `json:"id"`
	Name       string  `json:"name"`
	ParentID   *uint64 `json:"parent_id,omitempty"`
	ParentName *string `json:"parent_name,omitempty"`
}

type loanView struct {
	ID           uint64     `json:"id"`
	ItemID       uint64     `json:"item_id"`
	ItemTitle    string     `json:"item_title,omitempty"`
	PatronID     uint64     `json:"patron_id"`
	PatronEmail  string     `json:"patron_email,omitempty"`
	PatronName   string     `json:"patron_name,omitempty"`
	CheckedOutAt time.Time  `json:"checked_out_at"`
	DueAt        time.Time  `json:"due_at"`
	ReturnedAt   *time.Time `json:"returned_at,omitempty"`
	Renewed      bool       `json:"renewed"`
}

func loanViews(rows []repository.LoanRow) []loanView {
	out := make([]loanView, 0, len(rows))
	for _, r := range rows {
		out = append(out, loanView{
			ID:           r.ID,
			ItemID:       r.ItemID,
			ItemTitle:    r.ItemTitle,
			PatronID:     r.PatronID,
			PatronEmail:  r.PatronEmail,
			PatronName:   r.PatronName,
			CheckedOutAt: r.CheckedOutAt,
			DueAt:        r.DueAt,
			ReturnedAt:   r.ReturnedAt,
			Renewed:      r.Renewed,
		})
	}
	return out
}

type reservationView struct {
	ID          uint64          `json:"id"`
	ItemID      uint64          `json:"item_id"`
	ItemTitle   string          `json:"item_title,omitempty"`
	ItemState   model.ItemState `json:"item_state,omitempty"`
	PatronID    uint64          `json:"patron_id"`
	PatronEmail string          `json:"patron_email,omitempty"`
	ReservedAt  time.Time       `json:"reserved_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

func reservationViewOf(r model.Reservation) reservationView {
	return reservationView{
		ID:         r.ID,
		ItemID:     r.ItemID,
		PatronID:   r.PatronID,
		ReservedAt: r.ReservedAt,
		ExpiresAt:  r.ExpiresAt,
	}
}

func reservationViews(rows []repository.ReservationRow) []reservationView {
	out := make([]reservationView, 0, len(rows))
	for _, r := range rows {
		v := reservationViewOf(r.Reservation)
		v.ItemTitle = r.ItemTitle
		v.ItemState = r.ItemState
		v.PatronEmail = r.PatronEmail
		out = append(out, v)
	}
	return out
}

type patronView struct {
	ID            uint64    `json:"id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"first_name,omitempty"`
	LastName      string    `json:"last_name,omitempty"`
	Role          string    `json:"role"`
	BorrowedCount int       `json:"borrowed_count"`
	Blocked       bool      `json:"blocked"`
	PenaltyCents  int64     `json:"penalty_cents"`
	CreatedAt     time.Time `json:"created_at"`
}

func patronViewOf(p model.Patron) patronView {
	return patronView{
		ID:            p.ID,
		Email:         p.Email,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		Role:          p.Role,
		BorrowedCount: p.BorrowedCount,
		Blocked:       p.Blocked,
		PenaltyCents:  p.PenaltyCents,
		CreatedAt:     p.CreatedAt,
	}
}
