package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-checkin/internal/config"
	"github.com/iliyamo/ticket-checkin/internal/database"
	"github.com/iliyamo/ticket-checkin/internal/handler"
	"github.com/iliyamo/ticket-checkin/internal/queue"
	"github.com/iliyamo/ticket-checkin/internal/repository"
	"github.com/iliyamo/ticket-checkin/internal/router"
	"github.com/iliyamo/ticket-checkin/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.Migrate("migrations", cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	// Redis is optional: without it the service runs with caching and
	// rate limiting disabled.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis: not reachable, response cache and rate limiting disabled")
	}

	events := repository.NewEventRepo(db)
	tickets := repository.NewTicketRepo(db)
	checkins := repository.NewCheckinRepo(db)

	h := handler.NewCheckinHandler(
		service.NewRedemptionEngine(tickets, checkins),
		service.NewStatusAggregator(tickets, checkins),
		service.NewViews(tickets, checkins),
		queue.PublishCheckinRecorded,
	)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterCheckinAPI(e, h, events, rdb)

	// Background consumer turning published checkins into the audit log.
	// It reconnects forever; losing the broker never stops the API.
	go func() {
		if err := queue.StartCheckinConsumer(); err != nil {
			log.Printf("checkin-consumer: stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
