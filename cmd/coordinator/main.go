// Command coordinator runs the Ring Coordinator process: the bootstrap and
// registry service new nodes contact to join, and the fan-out point for
// client lookup and bulk-insert requests. Grounded on johnjansen-torua's
// cmd/coordinator/main.go signal-handling and graceful-shutdown shape.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chordring/chord/config"
	"github.com/chordring/chord/coordinator"
	"github.com/chordring/chord/logging"
	"github.com/chordring/chord/transport/httptransport"
)

func main() {
	configPath := flag.String("config", "", "path to a coordinator YAML config file")
	listen := flag.String("listen", "", "override the listen address")
	flag.Parse()

	cfg := defaultCoordinatorConfig()
	if *configPath != "" {
		if err := config.LoadYAML(*configPath, cfg); err != nil {
			fmt.Fprintln(os.Stderr, "coordinator: failed to load config:", err)
			os.Exit(1)
		}
	}
	cfg.ApplyCoordinatorEnvOverrides()
	if *listen != "" {
		cfg.Listen = *listen
	}
	if err := cfg.Ring.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "coordinator: invalid configuration:", err)
		os.Exit(1)
	}

	log, err := logging.New(logging.Config{
		Level: cfg.Logger.Level, Encoding: cfg.Logger.Encoding, Mode: cfg.Logger.Mode,
		File: logging.FileConfig{
			Path: cfg.Logger.FilePath, MaxSizeMB: cfg.Logger.MaxSizeMB,
			MaxBackups: cfg.Logger.MaxBackups, MaxAgeDays: cfg.Logger.MaxAgeDays,
			Compress: cfg.Logger.Compress,
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "coordinator: failed to build logger:", err)
		os.Exit(1)
	}

	tr := httptransport.New(log)
	ringCfg := cfg.Ring.ToChordConfig()
	c := coordinator.New(ringCfg, tr, log)
	tr.Register(cfg.Listen, c)
	c.Start()

	srv := &http.Server{Addr: cfg.Listen, Handler: coordinator.NewServer(c, log)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server exited", logging.F("err", err.Error()))
		}
	}()
	log.Info("coordinator listening", logging.F("addr", cfg.Listen))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")

	c.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("http server shutdown error", logging.F("err", err.Error()))
	}
}

func defaultCoordinatorConfig() *config.CoordinatorConfig {
	return &config.CoordinatorConfig{
		Listen: "127.0.0.1:9000",
		Ring: config.RingConfig{
			HashBits: 8, NumSuccessors: 4,
			StabilizeInterval: 5 * time.Second, FingerInterval: 5 * time.Second, LivenessInterval: 30 * time.Second,
			ChannelSize: 128,
		},
		Logger: config.LoggerConfig{Level: "info", Encoding: "json", Mode: "stdout"},
	}
}
