package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/hashicorp/go-hclog"
	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
	"github.com/tcriess/lightspeed-hubs/config"
	"github.com/tcriess/lightspeed-hubs/gateway"
	"github.com/tcriess/lightspeed-hubs/globals"
	"github.com/tcriess/lightspeed-hubs/orchestrator"
	"github.com/tcriess/lightspeed-hubs/persistence"
	"github.com/tcriess/lightspeed-hubs/platform"
)

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
)

func main() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)
	pflag.Parse()
	log.SetFlags(0)

	cfg, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}

	if cfg.LogLevel != "" {
		globals.AppLogger.SetLevel(hclog.LevelFromString(cfg.LogLevel))
	}

	persister, err := persistence.NewPersister(cfg)
	if err != nil {
		panic(err)
	}
	if persister == nil {
		panic("no persistence backend configured")
	}
	defer persister.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var client platform.Client
	var events <-chan platform.Event
	var remoteDone <-chan struct{}
	if cfg.GatewayConfig.Url != "" {
		remote, err := gateway.Dial(cfg.GatewayConfig.Url, globals.AppLogger)
		if err != nil {
			panic(err)
		}
		defer remote.Close()
		client = remote
		events = remote.Events()
		remoteDone = remote.Done()
	} else {
		globals.AppLogger.Warn("no gateway url configured, running against the in-memory simulator")
		client = platform.NewMemory()
	}

	manager := orchestrator.NewManager(cfg, persister, client, nil, globals.AppLogger)
	if err := manager.Load(ctx); err != nil {
		panic(err)
	}

	if events != nil {
		adapter := gateway.NewAdapter(manager, globals.AppLogger)
		go adapter.Run(ctx, events)
	}

	var cr *cron.Cron
	if cfg.SweepConfig.CronSpec != "" {
		cr = cron.New()
		_, err := cr.AddFunc(cfg.SweepConfig.CronSpec, func() {
			if _, err := manager.Sweep(ctx); err != nil {
				globals.AppLogger.Error("periodic sweep failed", "error", err)
			}
		})
		if err != nil {
			panic(err)
		}
		cr.Start()
		defer cr.Stop()
	}

	go func() {
		// remoteDone is nil in simulator mode, which never fires
		select {
		case <-c:
			globals.AppLogger.Info("interrupted, shutting down")
		case <-remoteDone:
			globals.AppLogger.Error("gateway connection lost, shutting down")
		}
		cancel()
		os.Exit(1)
	}()

	router := gateway.NewRouter(manager, globals.AppLogger)
	err = http.ListenAndServe(cfg.GatewayConfig.ListenAddr, router)
	globals.AppLogger.Error("stopped listening", "error", err)
}
