package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/openshelf/circulation/internal/basket"
	"github.com/openshelf/circulation/internal/circulation"
)

// BasketHandler exposes the patron's checkout basket.  Each patron has
// exactly one basket, keyed by patron ID, so the basket survives as
// long as the backend TTL allows and follows the patron across
// devices.
type BasketHandler struct {
	Engine  *circulation.Engine
	Baskets basket.Store
}

func NewBasketHandler(eng *circulation.Engine, baskets basket.Store) *BasketHandler {
	return &BasketHandler{Engine: eng, Baskets: baskets}
}

func (h *BasketHandler) basketFor(patronID uint64) basket.Basket {
	return h.Baskets.ForSession(strconv.FormatUint(patronID, 10))
}

// Add puts one item into the caller's basket.  The engine performs a
// courtesy availability check; the binding decision happens at
// checkout.
func (h *BasketHandler) Add(c echo.Context) error {
	patronID, err := getPatronID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	itemID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Engine.AddToBasket(ctx, h.basketFor(patronID), itemID); err != nil {
		if err == basket.ErrAlreadyInBasket {
			return c.JSON(http.StatusConflict, echo.Map{"error": "item already in basket"})
		}
		return engineError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Remove takes one item out of the basket.  Removing an absent item
// is a no-op.
func (h *BasketHandler) Remove(c echo.Context) error {
	patronID, err := getPatronID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	itemID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.basketFor(patronID).Remove(ctx, itemID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "remove failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// View lists the basket contents in insertion order.
func (h *BasketHandler) View(c echo.Context) error {
	patronID, err := getPatronID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ids, err := h.basketFor(patronID).List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	if ids == nil {
		ids = []uint64{}
	}
	return c.JSON(http.StatusOK, echo.Map{"item_ids": ids, "count": len(ids)})
}
