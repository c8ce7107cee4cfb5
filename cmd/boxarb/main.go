// Command boxarb runs the cross-venue box-arbitrage engine: it loads
// configuration, wires the venue transports, the engine's collaborators
// and the status server, then blocks running the engine's event loop
// until a shutdown signal arrives. Shutdown on SIGINT/SIGTERM cancels
// the event loop, drains the status server, and flushes a daily summary
// notification before exit.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/arbengine/boxarb/internal/api"
	"github.com/arbengine/boxarb/internal/config"
	"github.com/arbengine/boxarb/internal/discovery"
	"github.com/arbengine/boxarb/internal/engine"
	"github.com/arbengine/boxarb/internal/eventlog"
	"github.com/arbengine/boxarb/internal/notify"
	"github.com/arbengine/boxarb/internal/paper"
	"github.com/arbengine/boxarb/internal/venue"
	"github.com/arbengine/boxarb/internal/wsfeed"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	schedulePath := flag.String("schedule", "schedule.yaml", "path to the interval discovery schedule file")
	flag.Parse()

	cfg, err := config.LoadFile(*cfgPath)
	if err != nil {
		log.Printf("warning: config file: %v, using defaults", err)
		cfg = config.Default()
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	log.Printf("boxarb starting (dry_run=%t, trading_mode=%s)", cfg.DryRun, cfg.TradingMode)

	elog, err := eventlog.New(cfg.LogDir)
	if err != nil {
		log.Fatalf("eventlog: %v", err)
	}

	notifier := buildNotifier(cfg)

	clientA := buildVenueClient(cfg.VenueA, cfg.DryRun, cfg.Paper)
	clientB := buildVenueClient(cfg.VenueB, cfg.DryRun, cfg.Paper)

	sched, err := discovery.LoadStaticFile(*schedulePath)
	if err != nil {
		log.Printf("warning: discovery schedule: %v, starting with an empty schedule", err)
		sched = discovery.NewStatic()
	}

	eng := engine.New(cfg, clientA, clientB, sched, notifier, elog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg.API.Addr, eng, cfg.DryRun)
		if err := apiServer.Start(ctx); err != nil {
			log.Fatalf("api server: %v", err)
		}
	}

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- eng.Run(ctx) }()

	select {
	case <-sigCh:
		log.Println("shutdown signal received")
		cancel()
	case err := <-runErrCh:
		if err != nil && err != context.Canceled {
			log.Printf("engine: %v", err)
		}
		cancel()
	}

	if apiServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("api server shutdown: %v", err)
		}
		shutdownCancel()
	}

	pnl, fills, volume := eng.DailySummary()
	if err := notifier.NotifyDailySummary(context.Background(), pnl, fills, volume); err != nil {
		log.Printf("notify daily summary: %v", err)
	}
	log.Printf("session complete: fills=%d volume=%s pnl=%s", fills, volume.String(), pnl.String())

	_ = clientA.Close()
	_ = clientB.Close()
	_ = elog.Close()
}

const shutdownTimeout = 5 * time.Second

func buildNotifier(cfg config.Config) notify.Notifier {
	if !cfg.Telegram.Enabled {
		return notify.NoOp{}
	}
	t := notify.NewTelegram(strings.TrimSpace(cfg.Telegram.BotToken), strings.TrimSpace(cfg.Telegram.ChatID))
	if !t.Enabled() {
		log.Println("telegram notifier configured but missing bot token or chat id, falling back to no-op")
		return notify.NoOp{}
	}
	return t
}

// buildVenueClient wires the generic internal/wsfeed transport at v's
// configured endpoints, wrapping it in the paper simulator when dryRun
// is set so no live order ever reaches the venue. The bearer token is
// read from the environment, never from the config file.
func buildVenueClient(v config.VenueConfig, dryRun bool, paperCfg config.PaperConfig) venue.Client {
	id := venue.ID(v.Name)
	tokenEnv := fmt.Sprintf("BOXARB_%s_TOKEN", strings.ToUpper(strings.ReplaceAll(v.Name, "-", "_")))

	underlying := wsfeed.New(wsfeed.Config{
		ID:          id,
		WSURL:       v.WSURL,
		RESTBaseURL: v.RESTBaseURL,
		AuthToken:   strings.TrimSpace(os.Getenv(tokenEnv)),
	})

	if !dryRun {
		return underlying
	}
	return paper.NewSimulator(id, underlying, paper.Config(paperCfg))
}
