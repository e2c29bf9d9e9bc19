// Copyright (c) 2026 Userbase
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Userbase — AI Moderation Assist Service
//
// Entry point for the assist service. It:
//  1. Loads configuration from config.yaml (optionally overlaid from the
//     forum's extension config table)
//  2. Connects to the forum's PostgreSQL database and to Redis
//  3. Loads the forum rule texts used in evaluation prompts
//  4. Serves the assist endpoint and a health probe
//  5. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/userbase/aimodhelp/internal/api"
	"github.com/userbase/aimodhelp/internal/config"
	"github.com/userbase/aimodhelp/internal/evaluate"
	"github.com/userbase/aimodhelp/internal/forum"
	"github.com/userbase/aimodhelp/internal/llm"
	"github.com/userbase/aimodhelp/internal/markup"
	"github.com/userbase/aimodhelp/internal/session"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting aimodhelp assist service")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	if err := pgPool.Ping(ctx); err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to PostgreSQL")

	// The forum's admin panel writes AI settings to its config table;
	// those win over the YAML file when enabled.
	if cfg.ConfigFromDB {
		if err := config.LoadDBOverrides(ctx, pgPool, cfg); err != nil {
			slog.Error("failed to load config overrides from forum database", "error", err)
			os.Exit(1)
		}
		slog.Info("config overlaid from forum database")
	}

	slog.Info("configuration loaded",
		"port", cfg.Port,
		"provider", cfg.AI.Provider,
		"model", cfg.AI.Model,
		"max_topic_posts", cfg.MaxTopicPosts,
	)

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	// --- Forum Rules ---
	rules := evaluate.LoadRules(cfg.GeneralRulesFile, cfg.MarketplaceRulesFile)

	// --- Model Backend ---
	client := llm.NewClient(llm.Config{
		Provider: cfg.AI.Provider,
		APIKey:   cfg.AI.APIKey,
		Model:    cfg.AI.Model,
		BaseURL:  cfg.AI.BaseURL,
	})
	evalService := evaluate.NewService(rules, client)

	// --- Sessions and Permissions (Redis-cached) ---
	pgResolver := session.NewPGResolver(pgPool, cfg.TablePrefix)
	resolver := session.NewCachedResolver(pgResolver, rdb)
	perms := session.NewCachedPermissions(pgResolver, rdb)

	// --- Forum Content ---
	store := forum.NewPGStore(pgPool, cfg.TablePrefix)
	fetcher := forum.NewFetcher(store, markup.NewRenderer(), perms)

	// --- Assist Server ---
	handler := api.NewHandler(resolver, fetcher, evalService, cfg.CookieName, cfg.MaxTopicPosts)
	ready, err := api.Serve(ctx, cfg.Port, handler)
	if err != nil {
		slog.Error("failed to start assist server", "error", err)
		os.Exit(1)
	}
	<-ready
	slog.Info("assist service ready")

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	slog.Info("received shutdown signal", "signal", sig)
	cancel()

	rdb.Close()
	pgPool.Close()

	slog.Info("assist service stopped")
}
