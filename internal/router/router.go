// Package router wires HTTP routes to handlers and their middleware.
// Routes fall into four tiers: public browse, authenticated patron,
// staff desk and admin.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/openshelf/circulation/internal/handler"
	"github.com/openshelf/circulation/internal/middleware"
	"github.com/openshelf/circulation/internal/model"
)

// RegisterPublic registers unauthenticated endpoints: the health
// check and the catalog browse API.  The cache middleware is applied
// here only, so authenticated views are never served stale.
func RegisterPublic(e *echo.Echo, h *handler.CatalogHandler, cache echo.MiddlewareFunc) {
	e.GET("/healthz", handler.Health)

	g := e.Group("/v1", cache)
	g.GET("/items", h.SearchItems)
	g.GET("/items/:id", h.GetItem)
	g.GET("/categories", h.ListCategories)
}

// RegisterAuth registers the token lifecycle endpoints.  Register,
// login, refresh and logout need no session; /v1/me requires a valid
// access token with any role.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterPatron registers the circulation endpoints patrons use:
// basket management, checkout, reservations and renewals.  Staff and
// admins hold accounts too, so all three roles are accepted.
func RegisterPatron(e *echo.Echo, b *handler.BasketHandler, circ *handler.CirculationHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RolePatron, model.RoleStaff, model.RoleAdmin),
	)

	g.GET("/basket", b.View)
	g.POST("/basket/items/:id", b.Add)
	g.DELETE("/basket/items/:id", b.Remove)

	g.POST("/checkout", circ.Checkout)
	g.POST("/items/:id/reservations", circ.Reserve)
	g.POST("/loans/:id/extend", circ.Extend)

	g.GET("/my-loans", circ.MyLoans)
	g.GET("/my-reservations", circ.MyReservations)
	g.DELETE("/my-reservations/:id", circ.CancelMyReservation)
}

// RegisterStaff registers the desk workflows and catalog management
// under /v1/staff.  Admins can do everything staff can.
func RegisterStaff(e *echo.Echo, s *handler.StaffHandler, cat *handler.CatalogHandler, jwtSecret string) {
	g := e.Group(
		"/v1/staff",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStaff, model.RoleAdmin),
	)

	g.GET("/loans", s.OpenLoans)
	g.POST("/loans/:id/return", s.ReturnLoan)

	g.GET("/reservations", s.ListReservations)
	g.POST("/reservations/:id/pickup", s.FinalizePickup)
	g.DELETE("/reservations/:id", s.CancelReservation)

	g.GET("/patrons/:id", s.PatronDetail)

	g.POST("/items", cat.CreateItem)
	g.DELETE("/items/:id", cat.DeleteItem)
	g.POST("/items/:id/withdraw", cat.WithdrawItem)

	g.POST("/categories", cat.CreateCategory)
	g.PUT("/categories/:id", cat.UpdateCategory)
	g.DELETE("/categories/:id", cat.DeleteCategory)
}

// RegisterAdmin registers the admin-only patron administration
// endpoints.
func RegisterAdmin(e *echo.Echo, s *handler.StaffHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	g.PUT("/patrons/:id/status", s.UpdatePatronStatus)
}
