package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	appcontainer "xbasis/internal/application/container"
	"xbasis/internal/application/usecase/broadcast"
	dsvc "xbasis/internal/domain/service"
	"xbasis/internal/infrastructure/config"
	infracontainer "xbasis/internal/infrastructure/container"
	"xbasis/internal/infrastructure/exchange"
	"xbasis/internal/infrastructure/logger"
	"xbasis/internal/interfaces/console"
	"xbasis/internal/interfaces/httpapi"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Parse()

	logger.Setup("info")
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logger.Setup(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	infra, err := infracontainer.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init infrastructure failed")
	}
	defer infra.Close()

	relays := infra.Relays()
	if cfg.App.Console {
		relays = append(relays, console.NewSink(os.Stdout, console.NewFormatter(5, 0, exchange.NewCommonSymbolConverter(cfg.Basis.Quote))))
	}

	app := appcontainer.New(infra.MarketSource(), appcontainer.Settings{
		FeedTimeout: cfg.FeedTimeout(),
		Rules: dsvc.Rules{
			MinNotional:     cfg.Basis.MinNotional,
			MaxBasisPercent: cfg.Basis.MaxBasisPercent,
		},
		TopK: cfg.Basis.TopK,
		Broadcast: broadcast.Options{
			Interval:        cfg.Interval(),
			IdleInterval:    cfg.IdleInterval(),
			Backoff:         cfg.Backoff(),
			SendTimeout:     cfg.SendTimeout(),
			SendConcurrency: cfg.Broadcast.SendConcurrency,
			Relays:          relays,
			Recorder:        infra.Recorder(),
		},
	})
	hub := app.Hub()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("broadcast loop exited")
		}
	}()

	srv := httpapi.NewServer(cfg.App.ListenAddr, httpapi.NewHandler(app.PullService(), hub))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	log.Info().
		Str("config", *configPath).
		Str("listen", cfg.App.ListenAddr).
		Str("quote", cfg.Basis.Quote).
		Dur("interval", cfg.Interval()).
		Int("relays", len(relays)).
		Msg("xbasis started")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	// hijacked websocket connections are not covered by Shutdown
	_ = app.Close()
	<-loopDone
}
