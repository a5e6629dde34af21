package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	log "github.com/sirupsen/logrus"

	"comment-thread/internal/config"
	"comment-thread/internal/engine"
	"comment-thread/internal/fixture"
	"comment-thread/internal/handlers"
	"comment-thread/internal/logging"
	"comment-thread/internal/middleware"
	"comment-thread/internal/utils"
	"comment-thread/internal/websocket"
)

// App holds everything main starts and later stops.
type App struct {
	Engine  *engine.Engine
	Hub     *websocket.Hub
	Handler http.Handler
}

func newApp(cfg *config.Config) (*App, error) {
	seed, err := fixture.LoadFile(cfg.Session.FixturePath)
	if err != nil {
		return nil, err
	}

	metrics := utils.NewMetricsCollector()
	hub := websocket.NewHub()
	go hub.Run()

	threads := engine.NewEngine(actor.NewActorSystem(), engine.Options{
		Fixture:        seed,
		Notifier:       hub,
		Metrics:        metrics,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxSessions:    cfg.Session.MaxSessions,
	})

	server := handlers.NewServer(
		threads,
		hub,
		middleware.NewTokenManager(cfg.Session.TokenSecret, cfg.Session.TokenTTL),
		metrics,
		middleware.DefaultCORSConfig(cfg.AllowedOrigins),
	)
	server.MetricsEnabled = cfg.Server.MetricsEnabled
	server.RequestTimeout = cfg.Server.RequestTimeout

	return &App{Engine: threads, Hub: hub, Handler: server.Routes()}, nil
}

// Close drops every session and disconnects websocket clients.
func (a *App) Close() {
	a.Engine.Shutdown()
	a.Hub.Stop()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("[server] failed to load configuration: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	app, err := newApp(cfg)
	if err != nil {
		log.Fatalf("[server] failed to initialize: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("[server] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[server] HTTP server error: %v", err)
		}
		log.Info("[server] stopped serving new connections")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownRelease()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("[server] HTTP shutdown error: %v", err)
	}
	app.Close()
	log.Info("[server] stopped")
}
