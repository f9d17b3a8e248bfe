package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wanderhall/walkd/internal/config"
	httpapi "wanderhall/walkd/internal/http"
	"wanderhall/walkd/internal/input"
	"wanderhall/walkd/internal/logging"
	"wanderhall/walkd/internal/physics"
	"wanderhall/walkd/internal/scene"
	"wanderhall/walkd/internal/simulation"
	"wanderhall/walkd/internal/timesync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.L().Fatal("invalid configuration", logging.Error(err))
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		logging.L().Fatal("configure logging", logging.Error(err))
	}

	walkScene, err := scene.Load(cfg.ScenePath)
	if err != nil {
		logger.Fatal("load scene", logging.String("path", cfg.ScenePath), logging.Error(err))
	}
	logger.Info("scene loaded",
		logging.String("name", walkScene.Name),
		logging.Int("colliders", len(walkScene.Colliders)),
		logging.Int("props", len(walkScene.Props)))

	integrator := physics.NewIntegrator(walkScene.Boxes(), physics.DefaultTuning())
	gate := input.NewGate(input.GateConfig{
		MaxAge:      cfg.InputMaxAge,
		MinInterval: cfg.InputMinInterval,
	})

	brokerOpts := []BrokerOption{
		WithLogger(logger),
		WithTickRate(cfg.TickHz),
		WithMaxSessions(cfg.MaxSessions),
		WithMaxPayloadBytes(cfg.MaxPayloadBytes),
		WithPingInterval(cfg.PingInterval),
		WithAllowedOrigins(cfg.AllowedOrigins),
		WithResyncPolicy(cfg.ResyncWindow, cfg.ResyncBurst),
	}
	if cfg.AuthSecret != "" {
		authenticator, err := newHMACWebsocketAuthenticator(cfg.AuthSecret)
		if err != nil {
			logger.Fatal("configure websocket auth", logging.Error(err))
		}
		brokerOpts = append(brokerOpts, WithWebsocketAuthenticator(authenticator))
	}
	broker := NewBroker(walkScene, integrator, gate, brokerOpts...)

	stepper := simulation.NewStepper(integrator, broker, simulation.NewTickMonitor())
	loop := simulation.NewLoop(cfg.TickHz, stepper.Advance)

	tracker := timesync.NewTracker(stepper)

	mux := http.NewServeMux()
	handlers := httpapi.NewHandlerSet(httpapi.Options{
		Logger:      logger,
		Readiness:   broker,
		TickStats:   stepper.Stats,
		Clock:       stepper.Clock,
		GateMetrics: broker.GateMetrics,
		Scene:       walkScene,
		Timesync:    tracker,
	})
	handlers.Register(mux)
	mux.HandleFunc("/ws", broker.ServeWS)
	if cfg.ViewerDir != "" {
		if _, err := os.Stat(cfg.ViewerDir); err != nil {
			logger.Fatal("viewer directory unavailable", logging.String("path", cfg.ViewerDir), logging.Error(err))
		}
		fs := http.FileServer(http.Dir(cfg.ViewerDir))
		mux.Handle("/viewer/", http.StripPrefix("/viewer/", fs))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop.Start(ctx)
	defer loop.Stop()

	server := &http.Server{
		Addr:    cfg.Address,
		Handler: logging.HTTPTraceMiddleware(logger)(mux),
	}

	tlsEnabled := cfg.TLSCertPath != "" && cfg.TLSKeyPath != ""
	logger.Info("walkd listening",
		logging.String("url", listenerURL(cfg.Address, tlsEnabled)),
		logging.Float64("tick_hz", cfg.TickHz))

	errCh := make(chan error, 1)
	go func() {
		if tlsEnabled {
			errCh <- server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
			return
		}
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", logging.Error(err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", logging.Error(err))
		}
	}
}
