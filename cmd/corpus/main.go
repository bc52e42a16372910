// Copyright 2025 Poiesic Systems
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


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/corpus"
	"github.com/poiesic/corpus/ai"
	"github.com/poiesic/corpus/connector"
	"github.com/poiesic/corpus/connector/dirsource"
	"github.com/poiesic/corpus/indexsync"
)

func main() {
	app := &cli.App{
		Name:  "corpus",
		Usage: "Incremental document ingestion with a synchronized vector index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Path to the data directory (record store and vector index)",
				Value:   "./corpus-data",
			},
			&cli.StringSliceFlag{
				Name:  "dir-source",
				Usage: "Register a directory source as name=path (repeatable)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "fetch",
				Usage:     "Fetch one source, or all registered sources",
				ArgsUsage: "[source|all]",
				Action:    fetchCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rebuild",
						Usage: "Clear previously persisted records and re-fetch everything",
					},
				},
			},
			{
				Name:      "index-update",
				Usage:     "Bring the vector index up to date with the record store",
				ArgsUsage: "[source|all]",
				Action:    indexUpdateCommand,
				Flags: append([]cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Re-embed every accepted record, not just stale ones",
					},
				}, embeddingFlags()...),
			},
			{
				Name:   "reconcile",
				Usage:  "Remove index entries whose records are gone or rejected",
				Action: reconcileCommand,
			},
			{
				Name:      "search",
				Usage:     "Search the vector index",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of matches to return",
						Value: 10,
					},
				}, embeddingFlags()...),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func embeddingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.StringFlag{
			Name:    "api-token",
			Usage:   "API token for the embedding service",
			Value:   "none",
			EnvVars: []string{"CORPUS_API_TOKEN"},
		},
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Number of chunks to embed in each request",
			Value: 64,
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Number of records to index concurrently",
			Value: 4,
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Maximum retry attempts for failed embedding requests",
			Value: 3,
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Base delay for exponential backoff",
			Value: 1 * time.Second,
		},
		&cli.IntFlag{
			Name:  "report-interval",
			Usage: "Report progress every N records",
			Value: 100,
		},
	}
}

// buildConnectors assembles the registry contents from the repeatable
// --dir-source flags.
func buildConnectors(c *cli.Context) ([]connector.Connector, error) {
	specs := c.StringSlice("dir-source")
	connectors := make([]connector.Connector, 0, len(specs))
	for _, spec := range specs {
		name, path, ok := strings.Cut(spec, "=")
		if !ok || name == "" || path == "" {
			return nil, fmt.Errorf("invalid --dir-source %q: expected name=path", spec)
		}
		connectors = append(connectors, dirsource.New(name, path))
	}
	if len(connectors) == 0 {
		return nil, fmt.Errorf("no sources registered: pass at least one --dir-source name=path")
	}
	return connectors, nil
}

func openCorpus(c *cli.Context) (*corpus.Corpus, error) {
	connectors, err := buildConnectors(c)
	if err != nil {
		return nil, err
	}

	opts := []corpus.Option{
		corpus.WithProgressWriter(os.Stderr),
	}

	// Embedding flags exist only on the commands that embed.
	if c.IsSet("embedding-host") || c.String("embedding-model") != "" {
		aiConfig := ai.NewConfig(
			ai.WithEmbeddingHost(c.String("embedding-host")),
			ai.WithEmbeddingModel(c.String("embedding-model")),
			ai.WithAPIToken(c.String("api-token")),
			ai.WithBatchSize(c.Int("batch-size")),
		)
		opts = append(opts, corpus.WithAIConfig(aiConfig))
	}

	if c.Int("workers") > 0 {
		syncConfig := &indexsync.Config{
			BatchSize:      c.Int("batch-size"),
			Workers:        c.Int("workers"),
			MaxRetries:     c.Int("max-retries"),
			RetryDelay:     c.Duration("retry-delay"),
			ReportInterval: c.Int("report-interval"),
		}
		opts = append(opts, corpus.WithSyncConfig(syncConfig))
	}

	return corpus.Open(c.String("data"), connectors, opts...)
}

func sourceArg(c *cli.Context) string {
	source := c.Args().First()
	if source == "" {
		return corpus.SourceAll
	}
	return source
}

func fetchCommand(c *cli.Context) error {
	db, err := openCorpus(c)
	if err != nil {
		return err
	}
	defer db.Close()

	results, err := db.Fetch(context.Background(), sourceArg(c), c.Bool("rebuild"))
	for _, result := range results {
		fmt.Printf("%s: seen=%d written=%d skipped=%d failed=%d\n",
			result.Source, result.Seen, result.Written, result.Skipped, result.Failed)
	}
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	return nil
}

func indexUpdateCommand(c *cli.Context) error {
	db, err := openCorpus(c)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := db.IndexUpdate(context.Background(), sourceArg(c), c.Bool("force"))
	if err != nil {
		return fmt.Errorf("index update failed: %w", err)
	}

	fmt.Printf("candidates=%d indexed=%d failed=%d\n",
		result.Candidates, result.Indexed, result.Failed)
	return nil
}

func reconcileCommand(c *cli.Context) error {
	db, err := openCorpus(c)
	if err != nil {
		return err
	}
	defer db.Close()

	removed, err := db.Reconcile(context.Background())
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	fmt.Printf("removed=%d\n", removed)
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("query is required")
	}

	db, err := openCorpus(c)
	if err != nil {
		return err
	}
	defer db.Close()

	matches, err := db.Search(context.Background(), query, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	for _, match := range matches {
		fmt.Printf("%.4f  %s  %s (chunk %d)\n    %s\n",
			match.Score, match.Source, match.Title, match.Ordinal, match.URL)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
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
