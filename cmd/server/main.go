package main

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/openshelf/circulation/internal/basket"
	"github.com/openshelf/circulation/internal/circulation"
	"github.com/openshelf/circulation/internal/config"
	"github.com/openshelf/circulation/internal/database"
	"github.com/openshelf/circulation/internal/handler"
	"github.com/openshelf/circulation/internal/middleware"
	"github.com/openshelf/circulation/internal/queue"
	"github.com/openshelf/circulation/internal/repository"
	"github.com/openshelf/circulation/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable: baskets fall back to memory, cache and rate limiting disabled")
	}

	var baskets basket.Store
	if rdb != nil {
		baskets = basket.NewRedisStore(rdb, time.Duration(cfg.BasketTTLHours)*time.Hour)
	} else {
		baskets = basket.NewMemoryStore()
	}

	items := repository.NewItemRepo(db)
	categories := repository.NewCategoryRepo(db)
	patrons := repository.NewPatronRepo(db)
	tokens := repository.NewTokenRepo(db)
	loans := repository.NewLoanRepo(db)
	reservations := repository.NewReservationRepo(db)

	engine := circulation.NewEngine(repository.NewCirculationStore(db))

	authH := handler.NewAuthHandler(cfg, patrons, tokens)
	catalogH := handler.NewCatalogHandler(items, categories, reservations)
	basketH := handler.NewBasketHandler(engine, baskets)
	circH := handler.NewCirculationHandler(engine, baskets, loans, reservations, items)
	staffH := handler.NewStaffHandler(engine, loans, reservations, patrons, items)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	router.RegisterPublic(e, catalogH, cache)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterPatron(e, basketH, circH, cfg.JWTSecret)
	router.RegisterStaff(e, staffH, catalogH, cfg.JWTSecret)
	router.RegisterAdmin(e, staffH, cfg.JWTSecret)

	// Event consumer writes circulation events to logs/circulation.log.
	go func() {
		if err := queue.StartCirculationConsumer(); err != nil {
			log.Printf("circulation consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
