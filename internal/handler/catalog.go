package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/openshelf/circulation/internal/model"
	"github.com/openshelf/circulation/internal/repository"
)

// CatalogHandler serves the public browse endpoints and the staff-only
// catalog management endpoints (items and the category tree).
type CatalogHandler struct {
	Items        *repository.ItemRepo
	Categories   *repository.CategoryRepo
	Reservations *repository.ReservationRepo
}

func NewCatalogHandler(items *repository.ItemRepo, cats *repository.CategoryRepo, res *repository.ReservationRepo) *CatalogHandler {
	return &CatalogHandler{Items: items, Categories: cats, Reservations: res}
}

// SearchItems lists catalog items, optionally filtered by ?category=
// and a ?q= substring over title, author, tag and ISBN.  Public.
func (h *CatalogHandler) SearchItems(c echo.Context) error {
	var q repository.ItemSearchQuery
	if raw := strings.TrimSpace(c.QueryParam("category")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid category"})
		}
		q.CategoryID = id
	}
	q.Query = strings.TrimSpace(c.QueryParam("q"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Items.Search(ctx, q)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "search failed"})
	}
	out := make([]itemView, 0, len(rows))
	for _, r := range rows {
		out = append(out, itemViewOf(r.Item, r.CategoryName))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "count": len(out)})
}

// GetItem returns one item with its active reservation queue length,
// so patrons can see how many holds precede a new reservation.
func (h *CatalogHandler) GetItem(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	it, err := h.Items.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	queue, err := h.Reservations.ListActiveByItem(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": itemViewOf(it, ""), "reservation_queue": len(queue)})
}

type itemReq struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	ISBN       string `json:"isbn"`
	Tag        string `json:"tag"`
	CategoryID uint64 `json:"category_id"`
}

// CreateItem adds a catalog item in the AVAILABLE state.  Staff only.
func (h *CatalogHandler) CreateItem(c echo.Context) error {
	var req itemReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.CategoryID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title and category_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Categories.GetByID(ctx, req.CategoryID); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown category"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	it := model.Item{
		Title:      req.Title,
		Author:     strings.TrimSpace(req.Author),
		ISBN:       strings.TrimSpace(req.ISBN),
		Tag:        strings.TrimSpace(req.Tag),
		CategoryID: req.CategoryID,
	}
	if err := h.Items.Create(ctx, &it); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, itemViewOf(it, ""))
}

// DeleteItem removes an item that has never circulated.  Items with
// loan or reservation history get 409; withdraw them instead.
func (h *CatalogHandler) DeleteItem(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Items.Delete(ctx, id); err != nil {
		switch err {
		case sql.ErrNoRows:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
		case repository.ErrConflict:
			return c.JSON(http.StatusConflict, echo.Map{"error": "item has circulation history, withdraw it instead"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// WithdrawItem moves an AVAILABLE item out of circulation for good.
// Loaned or ready-for-pickup items must complete their cycle first.
func (h *CatalogHandler) WithdrawItem(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Items.Withdraw(ctx, id); err != nil {
		switch err {
		case sql.ErrNoRows:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
		case repository.ErrConflict:
			return c.JSON(http.StatusConflict, echo.Map{"error": "only available items can be withdrawn"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "withdraw failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ListCategories returns the full category tree as a flat list with
// parent names resolved.  Public.
func (h *CatalogHandler) ListCategories(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Categories.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]categoryView, 0, len(rows))
	for _, r := range rows {
		out = append(out, categoryView{ID: r.ID, Name: r.Name, ParentID: r.ParentID, ParentName: r.ParentName})
	}
	return c.JSON(http.StatusOK, echo.Map{"categories": out, "count": len(out)})
}

type categoryReq struct {
	Name     string  `json:"name"`
	ParentID *uint64 `json:"parent_id"`
}

// CreateCategory adds a category, optionally under a parent.
func (h *CatalogHandler) CreateCategory(c echo.Context) error {
	var req categoryReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cat := model.Category{Name: req.Name, ParentID: req.ParentID}
	if err := h.Categories.Create(ctx, &cat); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown parent"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, categoryView{ID: cat.ID, Name: cat.Name, ParentID: cat.ParentID})
}

// UpdateCategory renames a category or moves it under a new parent.
// Moves that would create a cycle in the tree are rejected.
func (h *CatalogHandler) UpdateCategory(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req categoryReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.Categories.Update(ctx, model.Category{ID: id, Name: req.Name, ParentID: req.ParentID})
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "category not found"})
		case repository.ErrConflict:
			return c.JSON(http.StatusConflict, echo.Map{"error": "move would create a cycle"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteCategory removes an empty leaf category.  Categories with
// children or items get 409.
func (h *CatalogHandler) DeleteCategory(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Categories.Delete(ctx, id); err != nil {
		switch err {
		case sql.ErrNoRows:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "category not found"})
		case repository.ErrConflict:
			return c.JSON(http.StatusConflict, echo.Map{"error": "category still has children or items"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
