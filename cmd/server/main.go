package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/maulanarifai114/research-chat-backend/internal/api"
	"github.com/maulanarifai114/research-chat-backend/internal/config"
	"github.com/maulanarifai114/research-chat-backend/internal/delivery"
	"github.com/maulanarifai114/research-chat-backend/internal/events"
	"github.com/maulanarifai114/research-chat-backend/internal/handlers"
	"github.com/maulanarifai114/research-chat-backend/internal/logger"
	"github.com/maulanarifai114/research-chat-backend/internal/presence"
	"github.com/maulanarifai114/research-chat-backend/internal/registry"
	"github.com/maulanarifai114/research-chat-backend/internal/repository"
	"github.com/maulanarifai114/research-chat-backend/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	lg, err := logger.New(cfg.App.Env != "production")
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx := context.Background()
	mongoClient, err := repository.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		lg.Fatalw("mongo connect", "err", err)
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	db := mongoClient.Database(cfg.Mongo.Database)
	userRepo := repository.NewUserRepository(db.Collection("users"))
	convRepo := repository.NewConversationRepository(db.Collection("conversations"))
	msgRepo := repository.NewMessageRepository(db.Collection("messages"))

	var pres *presence.Store
	if cfg.Redis.Addr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pres = presence.NewStore(rdb, cfg.Redis.Prefix, 24*time.Hour)
	}

	var producer *events.Producer
	var publisher delivery.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer = events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicMessageSent)
		publisher = producer
		defer func() { _ = producer.Close() }()
	}

	reg := registry.New()
	engine := delivery.NewEngine(userRepo, convRepo, msgRepo, reg, publisher, lg)
	wsSrv := ws.NewServer(reg, engine, pres, cfg.App.JWTSecret,
		cfg.PingInterval, cfg.WriteDeadline, cfg.WS.MaxMessageSizeBytes, cfg.WS.SendBufferSize, lg)
	h := handlers.New(userRepo, convRepo, msgRepo, presenceReader(pres), lg)
	app := api.NewServer(h, wsSrv, cfg.App.JWTSecret)

	errs := make(chan error, 1)
	go func() {
		addr := ":" + strconv.Itoa(cfg.App.Port)
		lg.Infow("starting realtime chat backend", "addr", addr, "env", cfg.App.Env)
		errs <- app.Listen(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errs:
		lg.Fatalw("server error", "err", err)
	case s := <-sig:
		lg.Infow("signal received", "signal", s.String())
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		lg.Warnw("shutdown", "err", err)
	}
	lg.Info("shut down")
}

// presenceReader keeps the nil *Store from becoming a non-nil interface.
func presenceReader(p *presence.Store) handlers.PresenceReader {
	if p == nil {
		return nil
	}
	return p
}
