// Package basket implements the per-session checkout basket.  A basket
// is the only non-durable structure in the service: it lives for the
// duration of a patron's session, holds each item identifier at most
// once and is cleared after a successful checkout.  Baskets are
// single-writer per session, so no cross-request locking is required
// beyond what each backend already provides.
package basket

import (
	"context"
	"errors"
)

// ErrAlreadyInBasket is returned by Add when the item identifier is
// already present.  A basket has no quantity semantics.
var ErrAlreadyInBasket = errors.New("item already in basket")

// Basket is the handle the web layer passes into the circulation
// engine.  Remove is no-op safe; Clear empties the basket.
type Basket interface {
	Add(ctx context.Context, itemID uint64) error
	Remove(ctx context.Context, itemID uint64) error
	List(ctx context.Context) ([]uint64, error)
	Clear(ctx context.Context) error
}

// Store hands out the basket belonging to one session.  Both the
// Redis-backed store and the in-memory fallback implement it.
type Store interface {
	ForSession(sessionID string) Basket
}
