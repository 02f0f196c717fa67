package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"b5factor/internal/api"
	"b5factor/internal/config"
	"b5factor/internal/db"
	"b5factor/internal/levels"
	"b5factor/internal/logger"
	"b5factor/internal/paper"
	"b5factor/internal/snapshot"
)

var version = "dev"

func main() {
	port := flag.Int("port", 0, "HTTP server port (overrides PORT)")
	flag.Parse()

	logger.Banner(version)

	cfg := config.Load()
	if *port != 0 {
		cfg.Port = *port
	}

	logger.Section("Config")
	logger.Info("Config", fmt.Sprintf("snapshot=%s tf=%s factor=%s mode=%s", cfg.SnapshotFile, cfg.PaperTF, cfg.PaperFactor, cfg.TradeMode))

	store, err := db.Open(cfg.PaperDB)
	if err != nil {
		logger.Error("DB", fmt.Sprintf("Failed to open paper DB: %v", err))
		os.Exit(1)
	}
	defer store.Close()

	firstClose, err := db.OpenFirstClose(cfg.FirstCloseDB)
	if err != nil {
		logger.Warn("DB", fmt.Sprintf("First-close DB unavailable, stats degrade to zero: %v", err))
		firstClose = nil
	} else {
		defer firstClose.Close()
	}

	svc := levels.NewService(snapshot.NewLoader(cfg.SnapshotFile), levels.Options{
		TouchLookbackSec:       int64(cfg.JackpotTouchLookback),
		JackpotMinConfirmation: cfg.JackpotMinConfirmation,
		JackpotMinRR:           cfg.JackpotMinRR,
		MinVolumeAccel:         cfg.MinVolumeAccel,
		MaxSpikePointsMult:     cfg.MaxSpikePointsMult,
		MCXFactor:              cfg.PaperFactorMCX,
	})

	engine := paper.NewEngine(cfg, store, svc)
	go engine.Run(context.Background())

	srv := api.NewServer(cfg, store, firstClose, svc)
	srv.StartStream()

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logger.Server(addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		logger.Error("Server", fmt.Sprintf("Failed: %v", err))
		os.Exit(1)
	}
}
