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

// Userbase — Post Evaluation Command
//
// Standalone CLI tool that runs one evaluation or summary straight
// against the forum database, bypassing the HTTP endpoint and session
// checks. Intended for tuning rule texts and prompts from a shell.
//
// Usage:
//
//	go run ./cmd/evalpost/ --post 12345 [--action evaluate_general] [--output bbcode]
//	go run ./cmd/evalpost/ --topic 678 [--count 20] [--days 7] [--action summarize]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/userbase/aimodhelp/internal/auditlog"
	"github.com/userbase/aimodhelp/internal/config"
	"github.com/userbase/aimodhelp/internal/evaluate"
	"github.com/userbase/aimodhelp/internal/forum"
	"github.com/userbase/aimodhelp/internal/llm"
	"github.com/userbase/aimodhelp/internal/markup"
)

// allowAll skips forum read permission checks; this tool talks to the
// database directly as an operator.
type allowAll struct{}

func (allowAll) CanReadForum(ctx context.Context, userID, forumID int64) (bool, error) {
	return true, nil
}

// overrideCompleter pins per-call backend/model options onto every
// completion, so --provider and --model take effect without touching the
// loaded configuration.
type overrideCompleter struct {
	inner *llm.Client
	opts  []llm.Option
}

func (o overrideCompleter) Complete(ctx context.Context, log *auditlog.Log, prompt string, opts ...llm.Option) (string, error) {
	return o.inner.Complete(ctx, log, prompt, append(o.opts, opts...)...)
}

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// --- CLI Flags ---
	postFlag := flag.Int64("post", 0, "Post ID to process")
	topicFlag := flag.Int64("topic", 0, "Topic ID to process")
	actionFlag := flag.String("action", "summarize", "Action: evaluate_general, evaluate_marketplace or summarize")
	countFlag := flag.Int("count", 0, "Most recent N posts of the topic (0 = all)")
	daysFlag := flag.Int("days", 0, "Only posts from the last N days (0 = no cutoff)")
	outputFlag := flag.String("output", "html", "Output format for evaluations: html or bbcode")
	providerFlag := flag.String("provider", "", "Override the configured provider for this run")
	modelFlag := flag.String("model", "", "Override the configured model for this run")
	flag.Parse()

	if (*postFlag == 0) == (*topicFlag == 0) {
		fmt.Fprintf(os.Stderr, "Error: exactly one of --post or --topic is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

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

	if cfg.ConfigFromDB {
		if err := config.LoadDBOverrides(ctx, pgPool, cfg); err != nil {
			slog.Error("failed to load config overrides from forum database", "error", err)
			os.Exit(1)
		}
	}

	// --- Wiring ---
	rules := evaluate.LoadRules(cfg.GeneralRulesFile, cfg.MarketplaceRulesFile)
	client := llm.NewClient(llm.Config{
		Provider: firstNonEmpty(*providerFlag, cfg.AI.Provider),
		APIKey:   cfg.AI.APIKey,
		Model:    cfg.AI.Model,
		BaseURL:  cfg.AI.BaseURL,
	})

	var completer evaluate.Completer = client
	if *modelFlag != "" {
		completer = overrideCompleter{inner: client, opts: []llm.Option{llm.WithModel(*modelFlag)}}
	}
	service := evaluate.NewService(rules, completer)

	store := forum.NewPGStore(pgPool, cfg.TablePrefix)
	fetcher := forum.NewFetcher(store, markup.NewRenderer(), allowAll{})

	log := auditlog.New(uuid.NewString())

	// --- Resolve Content ---
	var content forum.Content
	if *postFlag > 0 {
		rec, err := fetcher.FetchPost(ctx, log, 0, *postFlag)
		if err != nil {
			slog.Error("failed to fetch post", "post_id", *postFlag, "error", err)
			os.Exit(1)
		}
		content = forum.Content{
			Body:  forum.RenderForModel([]forum.PostRecord{*rec}, rec.TopicTitle),
			Shape: forum.ShapeSinglePost,
		}
	} else {
		win, err := fetcher.FetchTopicWindow(ctx, log, 0, *topicFlag, *countFlag, *daysFlag)
		if err != nil {
			slog.Error("failed to fetch topic", "topic_id", *topicFlag, "error", err)
			os.Exit(1)
		}
		if len(win.Posts) == 0 {
			slog.Error("no posts matched the given constraints", "topic_id", *topicFlag)
			os.Exit(1)
		}
		content = forum.Content{
			Body:  forum.RenderForModel(win.Posts, win.TopicTitle),
			Shape: forum.ShapeTopicWindow,
		}
	}

	// --- Run Action ---
	out := evaluate.ParseOutputFormat(*outputFlag)

	var result evaluate.Result
	switch *actionFlag {
	case "evaluate_general":
		result = service.EvaluateGeneral(ctx, log, content, out)
	case "evaluate_marketplace":
		result = service.EvaluateMarketplace(ctx, log, content, out)
	case "summarize":
		result = service.Summarize(ctx, log, content)
	default:
		slog.Error("unknown action", "action", *actionFlag)
		os.Exit(1)
	}

	// --- Output ---
	fmt.Println(result.Message)

	slog.Info("done",
		"action", *actionFlag,
		"content_length", result.ContentLength,
		"audit_lines", len(log.Lines()),
	)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
