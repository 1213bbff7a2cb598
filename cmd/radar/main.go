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
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/radar"
	"github.com/poiesic/radar/ai/openai"
	"github.com/poiesic/radar/config"
	"github.com/poiesic/radar/content"
	"github.com/poiesic/radar/digest"
	"github.com/poiesic/radar/ingestion"
	"github.com/poiesic/radar/reembed"
	"github.com/poiesic/radar/search"
	"github.com/urfave/cli/v2"
)

const configKey = "config"

// newProvider builds the embedding provider for commands that need one.
var newProvider = openai.NewProvider

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "radar",
		Usage: "Content memory and source-balanced digests over embedded text",
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
				Usage:   "Path to the TOML configuration file",
				Value:   config.DefaultFile,
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file loaded before the configuration",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Storage path (overrides [storage] path)",
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Storage backend, badger or sqlite (overrides [storage] backend)",
			},
		},
		Before: func(c *cli.Context) error {
			if err := setupLogger(c); err != nil {
				return err
			}
			return loadConfig(c)
		},
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Embed and store new content records from a JSONL file",
				ArgsUsage: "<file.jsonl | ->",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records handed to the pipeline at once",
						Value: 50,
					},
					&cli.StringFlag{
						Name:  "raw-text-dir",
						Usage: "Directory for plain text copies of new items (overrides [storage] raw_text_dir)",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Rank stored chunks by similarity to a query",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of results (0 returns every chunk)",
						Value:   10,
					},
					&cli.StringSliceFlag{
						Name:    "source",
						Aliases: []string{"s"},
						Usage:   "Restrict results to a source (repeatable)",
					},
				},
			},
			{
				Name:      "digest",
				Usage:     "Render a source-balanced digest for a query",
				ArgsUsage: "<query>",
				Action:    digestCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "per-source",
						Usage: "Hits per source (overrides [digest] per_source)",
					},
					&cli.BoolFlag{
						Name:  "connections",
						Usage: "Follow the highlights with new sources compared against existing ones",
					},
					&cli.StringSliceFlag{
						Name:  "existing",
						Usage: "Existing sources for --connections (overrides [digest] existing_sources)",
					},
					&cli.StringSliceFlag{
						Name:  "new",
						Usage: "New sources for --connections (overrides [digest] new_sources)",
					},
				},
			},
			{
				Name:      "init",
				Usage:     "Write the effective configuration to a TOML file",
				ArgsUsage: "[path]",
				Action:    initCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
			},
			{
				Name:   "known",
				Usage:  "List the content identities that have stored chunks",
				Action: knownCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Reembed every stored chunk with the configured embedding model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name (overrides [embedding] model)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: reembed.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}
}

func loadConfig(c *cli.Context) error {
	if err := config.LoadEnv(c.String("env-file")); err != nil {
		return err
	}
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if path := c.String("data"); path != "" {
		cfg.Storage.Path = path
	}
	if backend := c.String("backend"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func appConfig(c *cli.Context) *config.Config {
	cfg, _ := c.App.Metadata[configKey].(*config.Config)
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg
}

func openDatabase(cfg *config.Config) (*radar.Database, error) {
	aiConfig := cfg.AIConfig()
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	provider, err := newProvider(aiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}
	db, err := radar.NewDatabase(cfg.Storage.Path,
		radar.WithBackend(cfg.Storage.Backend),
		radar.WithProvider(provider),
		radar.WithLogger(slog.Default()),
	)
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func queryArg(c *cli.Context) (string, error) {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return "", errors.New("a query is required")
	}
	return query, nil
}

func ingestCommand(c *cli.Context) error {
	cfg := appConfig(c)
	if c.Args().Len() != 1 {
		return errors.New("exactly one input file is required (use - for stdin)")
	}
	batchSize := c.Int("batch-size")
	if batchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}

	var input io.Reader = c.App.Reader
	if name := c.Args().First(); name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return err
		}
		defer f.Close()
		input = f
	}

	chunker, err := cfg.Chunker()
	if err != nil {
		return err
	}
	opts := []ingestion.Option{ingestion.WithChunker(chunker)}
	rawTextDir := cfg.Storage.RawTextDir
	if dir := c.String("raw-text-dir"); dir != "" {
		rawTextDir = dir
	}
	if rawTextDir != "" {
		opts = append(opts, ingestion.WithTextArchive(rawTextDir, cfg.Storage.ArchiveSources...))
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	pipeline, err := db.NewIngestionPipeline(opts...)
	if err != nil {
		return err
	}

	total, err := ingestBatched(c.Context, pipeline, content.Records(input), batchSize)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Fetched %d, new %d, chunks %d, archived %d\n",
		total.Fetched, total.New, total.Chunks, total.Archived)
	return nil
}

func searchCommand(c *cli.Context) error {
	cfg := appConfig(c)
	query, err := queryArg(c)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher(cfg.SearchOptions()...)
	if err != nil {
		return err
	}
	defer searcher.Release()

	results, err := searcher.Search(c.Context, query, c.Int("top-k"), c.StringSlice("source")...)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(c.App.Writer, "No results")
		return nil
	}
	for i, hit := range results {
		fmt.Fprintf(c.App.Writer, "%2d. %.4f [%s] %s (%s)\n    %s%s\n",
			i+1, hit.Score, hit.Source, hit.ExternalID, hit.ChunkID,
			content.Prefix(hit.TextExcerpt, 160), content.Ellipsis)
	}
	return nil
}

func digestCommand(c *cli.Context) error {
	cfg := appConfig(c)
	query, err := queryArg(c)
	if err != nil {
		return err
	}
	perSource := cfg.Digest.PerSource
	if c.IsSet("per-source") {
		perSource = c.Int("per-source")
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher(cfg.SearchOptions()...)
	if err != nil {
		return err
	}
	defer searcher.Release()

	balancer, err := db.NewBalancer(searcher,
		search.WithScanDepth(cfg.Digest.ScanDepth),
		search.WithOversample(cfg.Digest.Oversample),
	)
	if err != nil {
		return err
	}
	builder, err := db.NewDigestBuilder(balancer)
	if err != nil {
		return err
	}

	body, err := builder.Build(c.Context, query, perSource)
	if err != nil {
		return err
	}
	if c.Bool("connections") {
		existing := cfg.Digest.ExistingSources
		if c.IsSet("existing") {
			existing = c.StringSlice("existing")
		}
		fresh := cfg.Digest.NewSources
		if c.IsSet("new") {
			fresh = c.StringSlice("new")
		}
		connections, err := builder.BuildConnections(c.Context, query, existing, fresh, perSource)
		if err != nil {
			return err
		}
		body += "\n\n---\n" + connections
	}

	fmt.Fprintf(c.App.Writer, "Subject: %s\n\n%s\n", digest.Subject(query), body)
	return nil
}

func initCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		path = c.String("config")
	}
	if !c.Bool("force") {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if err := appConfig(c).Write(path); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Wrote %s\n", path)
	return nil
}

func knownCommand(c *cli.Context) error {
	db, err := openDatabase(appConfig(c))
	if err != nil {
		return err
	}
	defer db.Close()

	keys, err := db.EmbeddingRepository().KnownKeys(c.Context)
	if err != nil {
		return err
	}
	lines := make([]string, 0, len(keys))
	for key := range keys {
		lines = append(lines, key.Source+"\t"+key.ExternalID)
	}
	slices.Sort(lines)
	for _, line := range lines {
		fmt.Fprintln(c.App.Writer, line)
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	cfg := appConfig(c)
	if model := c.String("embedding-model"); model != "" {
		cfg.Embedding.Model = model
	}

	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	progress := c.App.ErrWriter
	fmt.Fprintf(progress, "Database: %s (%s)\n", cfg.Storage.Path, cfg.Storage.Backend)
	fmt.Fprintf(progress, "Embedding host: %s\n", cfg.AIConfig().EmbeddingHost)
	fmt.Fprintf(progress, "Embedding model: %s\n", cfg.Embedding.Model)
	fmt.Fprintln(progress)

	if _, err := db.NewReembedder(reembedConfig, progress).Run(c.Context); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
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
