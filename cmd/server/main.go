package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cajapos/internal/cache"
	"cajapos/internal/config"
	"cajapos/internal/infra"
	"cajapos/internal/realtime"
	"cajapos/internal/repository"
	"cajapos/internal/router"
	"cajapos/internal/service"
	"cajapos/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	configurarLogger(cfg)

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cajaRepo := repository.NewCajaRepository(db)
	ordenRepo := repository.NewOrdenRepository(db)
	sesionCache := cache.NewSesionCache(rdb, time.Duration(cfg.SesionCacheTTLSeconds)*time.Second)
	hub := realtime.NewHub(64)
	dispatcher := worker.NewDispatcher(rdb)
	mailer := infra.NewMailer(cfg)

	// Worker handlers are wired here so the pool sees every infrastructure
	// dependency. The inventory side is optional: without INVENTARIO_URL
	// paid orders keep inventario_pendiente and their jobs wait in Redis.
	pool := worker.NewPool(rdb)
	pool.Register(worker.QueueEmail, worker.JobEmail, worker.NewEmailWorker(mailer))

	var (
		inventarioCB *infra.CircuitBreaker
		notifier     service.InventarioNotifier
	)
	if cfg.InventarioURL != "" {
		inventarioCB = infra.NewCircuitBreaker(infra.DefaultCBConfig("inventario"))
		client := infra.NewInventarioClient(cfg.InventarioURL,
			time.Duration(cfg.InventarioTimeoutSeconds)*time.Second, inventarioCB)
		notifier = client

		pool.Register(worker.QueueInventario, worker.JobInventario, worker.NewInventarioWorker(client, ordenRepo))
		worker.StartReconciliacion(ctx, worker.ReconciliacionConfig{
			Ordenes: ordenRepo,
			Queue:   dispatcher,
			CB:      inventarioCB,
			DLQ:     worker.NewDLQ(rdb, worker.QueueInventario),
		})
	} else {
		log.Warn().Msg("INVENTARIO_URL not set: stock decrements are deferred")
	}
	if !mailer.Configured() {
		log.Warn().Msg("SMTP_HOST not set: discrepancy reports are logged only")
	}
	pool.Start(ctx, cfg.WorkerPoolSize)

	cajaSvc := service.NewCajaService(cajaRepo, ordenRepo, sesionCache, hub, dispatcher, cfg.CierreNotifyEmail)
	ordenSvc := service.NewOrdenService(ordenRepo, cajaRepo, notifier, dispatcher, hub, sesionCache)

	r := router.New(ctx, cfg, router.Deps{
		DB:           db,
		Redis:        rdb,
		InventarioCB: inventarioCB,
		Hub:          hub,
		Caja:         cajaSvc,
		Ordenes:      ordenSvc,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("cajapos listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	cancel()
	pool.Wait()
	log.Info().Msg("server exited")
}

// configurarLogger: dev gets the pretty console writer, prod plain JSON.
func configurarLogger(cfg *config.Config) {
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
