package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pulsefeed/bootstrap"
	"pulsefeed/config"
	"pulsefeed/internal/channel"
	"pulsefeed/internal/clock"
	"pulsefeed/logger"
	"pulsefeed/processor"
	"pulsefeed/reader"
	"pulsefeed/state"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	streamURL := cfg.ResolveStreamURL()

	log.WithFields(logger.Fields{
		"service": cfg.Pulsefeed.Name,
		"version": cfg.Pulsefeed.Version,
		"env":     config.AppEnvironment(),
		"stream":  streamURL,
	}).Info("starting pulsefeed")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channels := channel.NewChannels(cfg.Channels.FrameBuffer)
	defer channels.Close()

	market := state.NewMarket(cfg)

	router := processor.NewRouter(cfg, channels.Frames, market)
	if err := router.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start frame router")
		os.Exit(1)
	}

	streamReader := reader.NewStreamReader(cfg, streamURL, channels.Frames, clock.New())
	streamReader.OnStateChange(func(s reader.ConnState) {
		log.WithFields(logger.Fields{"state": string(s)}).Info("stream connection state changed")
	})
	if err := streamReader.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start stream reader")
		os.Exit(1)
	}

	if cfg.Bootstrap.Enabled {
		bootstrapURL, err := cfg.ResolveBootstrapURL(streamURL)
		if err != nil {
			log.WithError(err).Warn("could not derive bootstrap URL; skipping alert hydration")
		} else {
			loader := bootstrap.NewLoader(cfg, bootstrapURL, market)
			go func() {
				if err := loader.Run(ctx); err != nil {
					log.WithError(err).Warn("alert hydration failed; continuing with stream only")
				}
			}()
		}
	}

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")

	log.Info("stopping stream reader")
	streamReader.Stop()

	cancel()

	done := make(chan struct{})
	go func() {
		log.Info("stopping frame router")
		router.Stop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("pulsefeed stopped")
}
