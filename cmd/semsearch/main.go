// Copyright 2025 Lexeme Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/lexemelabs/semsearch"
	"github.com/lexemelabs/semsearch/ai"
	"github.com/lexemelabs/semsearch/ai/openai"
	"github.com/lexemelabs/semsearch/config"
	"github.com/lexemelabs/semsearch/core"
	"github.com/lexemelabs/semsearch/rank"
	"github.com/lexemelabs/semsearch/source/pmc"
	"github.com/lexemelabs/semsearch/storage/badger"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "semsearch",
		Usage: "Semantic search over open-access biomedical literature",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				Value:   "config.yaml",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Search PMC and rank results by semantic similarity",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of results to return (0 uses the configured default)",
					},
					&cli.StringSliceFlag{
						Name:  "filter",
						Usage: "Fielded filter as field=value (e.g. AUTH=smith), repeatable",
					},
					&cli.BoolFlag{
						Name:  "mean",
						Usage: "Score documents by mean section similarity instead of best section",
					},
					&cli.BoolFlag{
						Name:  "timings",
						Usage: "Print per-stage timings after the results",
					},
				},
			},
			{
				Name:   "cache",
				Usage:  "Inspect or prune the persistent embedding cache",
				Subcommands: []*cli.Command{
					{
						Name:   "stats",
						Usage:  "Show entry counts for the persistent cache",
						Action: cacheStatsCommand,
					},
					{
						Name:      "prune",
						Usage:     "Prune the persistent cache down to a maximum entry count",
						ArgsUsage: "<max-entries>",
						Action:    cachePruneCommand,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func searchCommand(c *cli.Context) error {
	queryText := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if queryText == "" {
		return fmt.Errorf("a query is required")
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	filters, err := parseFilters(c.StringSlice("filter"))
	if err != nil {
		return err
	}

	embedder, err := openai.NewEmbedder(ai.NewConfig(
		ai.WithHost(cfg.Embedding.Host),
		ai.WithModel(cfg.Embedding.Model),
	))
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	sourceOpts := []pmc.Option{}
	engineOpts := []semsearch.Option{
		semsearch.WithCacheCapacity(cfg.Cache.Capacity),
		semsearch.WithBatchSize(cfg.Embedding.BatchSize),
		semsearch.WithEmbedConcurrency(cfg.Embedding.Concurrency),
		semsearch.WithFetchConcurrency(cfg.Fetch.Concurrency),
		semsearch.WithFetchTimeout(cfg.Fetch.Timeout()),
		semsearch.WithFetchAttempts(cfg.Fetch.MaxAttempts),
		semsearch.WithSectionLengths(cfg.Sections.MaxLength, cfg.Sections.MinLength),
		semsearch.WithSummaryLength(cfg.Summary.MaxLength),
	}

	if cfg.Cache.Path != "" {
		backend, err := badger.OpenBackend(cfg.Cache.Path, false)
		if err != nil {
			return fmt.Errorf("failed to open cache database: %w", err)
		}
		defer backend.Close()

		entries, err := badger.NewEntryStore(backend)
		if err != nil {
			return fmt.Errorf("failed to create entry store: %w", err)
		}
		responses, err := badger.NewResponseStore(backend)
		if err != nil {
			return fmt.Errorf("failed to create response store: %w", err)
		}

		sourceOpts = append(sourceOpts, pmc.WithResponseStore(responses))
		engineOpts = append(engineOpts, semsearch.WithEntryStore(entries))
		if cfg.Cache.StoreCapacity > 0 {
			engineOpts = append(engineOpts, semsearch.WithStoreCapacity(cfg.Cache.StoreCapacity))
		}
	}
	if c.Bool("mean") {
		engineOpts = append(engineOpts, semsearch.WithAggregation(rank.AggregateMean))
	}

	engine, err := semsearch.New(pmc.NewClient(sourceOpts...), embedder, engineOpts...)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer engine.Release()

	query := core.Query{
		Text:    queryText,
		TopK:    c.Int("top-k"),
		Filters: filters,
	}
	if query.TopK < 1 {
		query.TopK = cfg.TopK
	}

	monitor := &semsearch.TimingMonitor{}
	resp, err := engine.SearchWithMonitor(context.Background(), query, monitor)
	if err != nil {
		return err
	}

	printResults(resp)
	if c.Bool("timings") {
		printTimings(monitor)
	}
	return nil
}

func cacheStatsCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Cache.Path == "" {
		return fmt.Errorf("no cache path configured")
	}

	backend, err := badger.OpenBackend(cfg.Cache.Path, false)
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}
	defer backend.Close()

	entries, err := badger.NewEntryStore(backend)
	if err != nil {
		return err
	}

	count, err := entries.CountEntries(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("cache path: %s\n", cfg.Cache.Path)
	fmt.Printf("embedding entries: %d\n", count)
	return nil
}

func cachePruneCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: semsearch cache prune <max-entries>")
	}
	var maxEntries int
	if _, err := fmt.Sscanf(c.Args().First(), "%d", &maxEntries); err != nil || maxEntries < 0 {
		return fmt.Errorf("invalid max-entries %q", c.Args().First())
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Cache.Path == "" {
		return fmt.Errorf("no cache path configured")
	}

	backend, err := badger.OpenBackend(cfg.Cache.Path, false)
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}
	defer backend.Close()

	entries, err := badger.NewEntryStore(backend)
	if err != nil {
		return err
	}

	removed, err := entries.PruneEntries(context.Background(), maxEntries)
	if err != nil {
		return err
	}

	fmt.Printf("pruned %d entries\n", removed)
	return nil
}

func parseFilters(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	filters := make(map[string]string, len(raw))
	for _, pair := range raw {
		field, value, ok := strings.Cut(pair, "=")
		if !ok || field == "" || value == "" {
			return nil, fmt.Errorf("invalid filter %q: expected field=value", pair)
		}
		filters[field] = value
	}
	return filters, nil
}

func printResults(resp *semsearch.Response) {
	fmt.Printf("query: %s\n", resp.Query.Text)
	fmt.Printf("retrieved at: %s\n\n", resp.RetrievedAt.Format("2006-01-02 15:04:05 MST"))

	if len(resp.Results) == 0 {
		fmt.Println("no results")
		return
	}

	for i, result := range resp.Results {
		fmt.Printf("%d. %s (score %.4f)\n", i+1, result.DocumentID, result.Score)
		if result.Title != "" {
			fmt.Printf("   %s\n", result.Title)
		}
		if result.SourceURI != "" {
			fmt.Printf("   %s\n", result.SourceURI)
		}
		if result.Summary != "" {
			fmt.Printf("   %s\n", result.Summary)
		}
		fmt.Println()
	}
}

func printTimings(monitor *semsearch.TimingMonitor) {
	timings := monitor.Timings()
	fmt.Println("timings:")
	for _, stage := range []string{"retrieve", "extract", "embed", "rank", "summarize", "total"} {
		if d, ok := timings[stage]; ok {
			fmt.Printf("  %-9s %s\n", stage, d)
		}
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
