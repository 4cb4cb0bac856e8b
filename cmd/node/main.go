// Command node runs a single DHT Node process: it joins a ring through a
// coordinator endpoint, serves the node's HTTP wire contract, and leaves
// gracefully on SIGINT/SIGTERM. Grounded on johnjansen-torua's cmd/*/main.go
// signal-handling and graceful-shutdown shape.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chordring/chord/chorderr"
	"github.com/chordring/chord/config"
	"github.com/chordring/chord/logging"
	"github.com/chordring/chord/node"
	"github.com/chordring/chord/store"
	"github.com/chordring/chord/transport/httptransport"
)

func main() {
	configPath := flag.String("config", "", "path to a node YAML config file")
	listen := flag.String("listen", "", "override the listen address")
	bootstrap := flag.String("bootstrap", "", "override the ring coordinator endpoint")
	flag.Parse()

	cfg := defaultNodeConfig()
	if *configPath != "" {
		if err := config.LoadYAML(*configPath, cfg); err != nil {
			fmt.Fprintln(os.Stderr, "node: failed to load config:", err)
			os.Exit(1)
		}
	}
	cfg.ApplyNodeEnvOverrides()
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *bootstrap != "" {
		cfg.Ring.Bootstrap = *bootstrap
	}
	if err := cfg.Ring.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "node: invalid configuration:", err)
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
		fmt.Fprintln(os.Stderr, "node: failed to build logger:", err)
		os.Exit(1)
	}

	tr := httptransport.New(log)
	ringCfg := cfg.Ring.ToChordConfig()
	n := node.New(cfg.Listen, ringCfg, tr, store.NewMemory(), log, nil)
	tr.Register(cfg.Listen, n)
	n.Start()

	// The HTTP listener must be up before Join: ResJoin/NodeExists arrive as
	// a new inbound message to this node's own /msg endpoint, sent by a
	// remote peer after our outbound ReqJoin, not as that call's direct
	// reply. Dialing out before we can be dialed back leaves the join
	// rendezvous to time out.
	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		fmt.Fprintln(os.Stderr, "node: failed to listen:", err)
		os.Exit(1)
	}

	srv := &http.Server{Handler: node.NewServer(n, log)}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server exited", logging.F("err", err.Error()))
		}
	}()
	log.Info("node listening", logging.F("addr", cfg.Listen))

	if err := n.Join(ringCfg.Bootstrap); err != nil {
		// Per spec §7: NodeExists and RingFull are fatal; transport exhaustion
		// during join also terminates the process with a nonzero exit.
		if errors.Is(err, chorderr.ErrNodeExists) {
			log.Error("join refused: node already exists", logging.F("err", err.Error()))
		} else if errors.Is(err, chorderr.ErrRingFull) {
			log.Error("join refused: ring is full", logging.F("err", err.Error()))
		} else {
			log.Error("join failed", logging.F("err", err.Error()))
		}
		os.Exit(1)
	}
	log.Info("joined ring", logging.F("coordinator", ringCfg.Bootstrap))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down, leaving ring")

	if err := n.Leave(); err != nil {
		log.Warn("graceful leave failed", logging.F("err", err.Error()))
	}
	n.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("http server shutdown error", logging.F("err", err.Error()))
	}
}

func defaultNodeConfig() *config.NodeConfig {
	return &config.NodeConfig{
		Listen: "127.0.0.1:8000",
		Ring: config.RingConfig{
			HashBits: 8, NumSuccessors: 4,
			StabilizeInterval: 5 * time.Second, FingerInterval: 5 * time.Second, LivenessInterval: 30 * time.Second,
			ChannelSize: 128, Bootstrap: "127.0.0.1:9000",
		},
		Logger: config.LoggerConfig{Level: "info", Encoding: "json", Mode: "stdout"},
	}
}
