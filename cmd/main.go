// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sharmaishaan04/Event-Booking-System/internal/booking"
	"github.com/sharmaishaan04/Event-Booking-System/internal/clock"
	"github.com/sharmaishaan04/Event-Booking-System/internal/config"
	"github.com/sharmaishaan04/Event-Booking-System/internal/database"
	"github.com/sharmaishaan04/Event-Booking-System/internal/handler"
	"github.com/sharmaishaan04/Event-Booking-System/internal/realtime"
	"github.com/sharmaishaan04/Event-Booking-System/internal/repository"
	"github.com/sharmaishaan04/Event-Booking-System/internal/seatlock"
	"github.com/sharmaishaan04/Event-Booking-System/internal/service"
	"github.com/sharmaishaan04/Event-Booking-System/migrations"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	// ── 1. Connect to PostgreSQL and apply the schema ─────────────────────
	pool, err := database.NewPool(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database connect")
	}
	defer pool.Close()
	log.Info().Msg("connected to PostgreSQL")

	if err := migrations.Apply(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("apply migrations")
	}

	// ── 2. Wire up layers ─────────────────────────────────────────────────
	store := repository.NewStore(pool)
	eventRepo := repository.NewEventRepository(store)
	bookingRepo := repository.NewBookingRepository(store)

	clk := clock.NewSystem()
	lockMgr := seatlock.NewManager(seatlock.Config{
		TTL:             cfg.LockTTL,
		CleanupInterval: cfg.CleanupInterval,
	}, clk, log)
	go lockMgr.Run(ctx)

	engine := booking.NewEngine(
		repository.NewBookingStore(store, eventRepo, bookingRepo),
		lockMgr, clk, log,
		booking.WithTxTimeout(cfg.BookingTxTimeout),
	)

	hub := realtime.NewHub(log)
	bcast := realtime.NewBroadcaster(eventRepo, lockMgr, hub, log)
	gateway := realtime.NewGateway(ctx, hub, eventRepo, lockMgr, engine, bcast, log)

	eventSvc := service.NewEventService(eventRepo)
	bookingSvc := service.NewBookingService(engine, bookingRepo, eventRepo, bcast)
	eventHandler := handler.NewEventHandler(eventSvc, bookingSvc)

	// Expired-lock sweeps publish availability for each affected event.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case eventID := <-lockMgr.Evictions():
				bcast.Publish(ctx, eventID)
			}
		}
	}()

	// ── 3. Build the router ───────────────────────────────────────────────
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(handler.Logger(log))
	r.Use(handler.CORS)

	r.Get("/health", handler.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", gateway.ServeWS)

	r.Route("/events", func(r chi.Router) {
		r.Post("/", eventHandler.CreateEvent)
		r.Get("/", eventHandler.ListEvents)
		r.Get("/{id}", eventHandler.GetEvent)
		r.Patch("/{id}", eventHandler.UpdateEvent)
		r.Delete("/{id}", eventHandler.DeleteEvent)
		r.Get("/{id}/bookings", eventHandler.ListBookings)
	})
	r.Post("/bookings", eventHandler.CreateBooking)

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}
