package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/linechat/internal/chat"
	"github.com/Tyrowin/linechat/internal/logger"
	"github.com/Tyrowin/linechat/internal/metrics"
	"github.com/Tyrowin/linechat/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the components together and blocks until a signal arrives or a
// listener fails. Startup failures, including an unavailable port, are
// returned before anything is served.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	cfg, err := server.NewConfigFromEnv()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	// 2. Hub
	m := metrics.NewMetrics()
	hub, err := chat.NewHub(cfg.HubOptions(m), log)
	if err != nil {
		return fmt.Errorf("hub setup failed: %w", err)
	}

	// 3. Listeners
	tcp, err := server.Listen(*cfg, hub, log)
	if err != nil {
		return err
	}

	var httpListener net.Listener
	if cfg.HTTPEnabled() {
		httpListener, err = net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			_ = tcp.Close()
			return fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
		}
	}

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return tcp.Serve(gctx)
	})

	if httpListener != nil {
		mux := server.SetupRoutes(hub, server.NewGateway(hub, *cfg, log), m.Handler())
		httpServer := server.CreateServer(cfg.HTTPAddr, mux)
		g.Go(func() error {
			return server.RunServer(gctx, httpServer, httpListener, cfg.ShutdownTimeout, log)
		})
	}

	// 5. Wait for Stop or Error, then close every session
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Int("online", hub.Roster().Len()).Msg("Shutting down gracefully...")
		if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				log.Warn().Dur("timeout", cfg.ShutdownTimeout).Msg("Sessions still open after shutdown timeout")
				return nil
			}
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Server stopped cleanly")
	return nil
}
