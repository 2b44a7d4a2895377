package main

import (
	"log"
	"os"

	"github.com/salesdeskhq/salesdesk/internal/config"
	"github.com/salesdeskhq/salesdesk/internal/db"
	"github.com/salesdeskhq/salesdesk/internal/httpapi"
	"github.com/salesdeskhq/salesdesk/internal/hub"
	"github.com/salesdeskhq/salesdesk/internal/store"
	"github.com/salesdeskhq/salesdesk/internal/store/rabbitmq"
	"github.com/salesdeskhq/salesdesk/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	if err := store.AutoMigrate(gdb); err != nil {
		log.Fatalf("automigrate: %v", err)
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("upload dir: %v", err)
	}

	h := hub.New()

	previews := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer previews.Close()

	events, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		// offline notifications degrade; the per-session poller still covers gaps
		log.Printf("rabbit unavailable, message events disabled err=%v", err)
		events = nil
	} else {
		defer events.Close()
	}

	r := httpapi.NewRouter(gdb, cfg, h, previews, events)

	log.Printf("server listening addr=%s queue=%s", cfg.HTTPAddr, cfg.RabbitQueue)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
