package main

import (
	"context"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/Premkumarr7/WatchMovie/internal/config"
	"github.com/Premkumarr7/WatchMovie/internal/media"
	"github.com/Premkumarr7/WatchMovie/internal/room"
	"github.com/Premkumarr7/WatchMovie/internal/server"
)

func main() {
	cfg := config.Load()

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if cfg.Env == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	}

	// The registry is the single owner of all room state; everything that
	// needs it receives this instance.
	registry := room.NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go registry.Reap(ctx, cfg.ReapInterval, cfg.RoomIdleTTL)

	store := media.NewStore(cfg.UploadDir)
	srv := server.New(registry, store)

	log.WithField("port", cfg.Port).Info("starting watch party server")
	log.Fatal(http.ListenAndServe(":"+cfg.Port, srv.Router()))
}
