package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"devrelay/internal/aliases"
	"devrelay/internal/chat"
	"devrelay/internal/config"
	"devrelay/internal/github"
	"devrelay/internal/logger"
	"devrelay/internal/redis"
	"devrelay/internal/routing"
	"devrelay/internal/stream"
	"devrelay/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.LogFilePath); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			log.Printf("Failed to sync logger: %v", err)
		}
	}()

	store, err := routing.NewStore(cfg.DefaultRoom, cfg.Projects, cfg.Secret)
	if err != nil {
		logger.Log.Fatal("Failed to build routing store", zap.Error(err))
	}
	aliasTable := aliases.FromMap(cfg.UsernameAliases)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var dedup webhook.DedupStore
	if cfg.Redis.Host != "" {
		dedupStore, err := redis.New(ctx, &cfg.Redis)
		if err != nil {
			logger.Log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer func() {
			if err := dedupStore.Close(); err != nil {
				logger.Log.Error("Failed to close redis", zap.Error(err))
			}
		}()
		dedup = dedupStore
	}

	var gh *github.Client
	if cfg.GitHubAPIUser != "" {
		gh = github.NewClient(cfg.GitHubAPIUser, cfg.GitHubAPIPassword)
	}

	chatClient := chat.NewClient(cfg.Server, cfg.LoginURL, cfg.User, cfg.Password, store, aliasTable)
	go func() {
		if err := chatClient.Run(ctx); err != nil {
			logger.Log.Error("chat client stopped", zap.Error(err))
		}
	}()

	server := webhook.NewServer(cfg, store, aliasTable, chatClient, dedup, gh, stream.NewHub())
	if err := server.Run(ctx); err != nil {
		logger.Log.Fatal("webhook server failed", zap.Error(err))
	}
}
