// Package main implements meeteasy-search, a command line client that runs
// one search against the ticketing API and the local event database and
// prints the merged results as JSON.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aabubakar17/meetEasy/internal/config"
	"github.com/aabubakar17/meetEasy/internal/logging"
	"github.com/aabubakar17/meetEasy/internal/search"
	"github.com/aabubakar17/meetEasy/internal/store"
	"github.com/aabubakar17/meetEasy/internal/ticketing"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one search and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	var (
		configFile string
		keyword    string
		location   string
		category   string
		size       int
		timeout    time.Duration
		verbose    bool
	)

	fs := flag.NewFlagSet("meeteasy-search", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	fs.StringVar(&keyword, "keyword", "", "Free-text keyword")
	fs.StringVar(&location, "location", "", "City or area")
	fs.StringVar(&category, "category", "", "Category label, e.g. Music or Community Events")
	fs.IntVar(&size, "size", 0, "External page size (0 uses the default)")
	fs.DurationVar(&timeout, "timeout", 30*time.Second, "Overall search timeout")
	fs.BoolVar(&verbose, "v", false, "Log source calls to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	_ = godotenv.Load()

	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return fail(stderr, "failed to load config file: %v", err)
		}
	}
	config.LoadFromEnv(cfg)
	cfg.Resolve()
	if err := cfg.EnsureDirectories(); err != nil {
		return fail(stderr, "%v", err)
	}

	q := search.Query{Keyword: keyword, Location: location, Category: category, PageSize: size}
	if q.IsEmpty() {
		return fail(stderr, "one of -keyword, -location or -category is required")
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger := logging.NewWithSink(logging.Config{
		Environment: "development",
		Level:       level,
		Service:     "meeteasy-search",
	}, zapcore.AddSync(stderr))
	defer logger.Sync()

	db, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	defer db.Close()

	client := ticketing.New(cfg.Ticketing, ticketing.WithLogger(logger.Named("ticketing")))
	svc := search.NewService(client,
		search.NewLocalSource(db, cfg.Search.KeywordConcurrency, logger.Named("store")),
		search.WithLogger(logger.Named("search")),
		search.WithCategoryPageSize(cfg.Search.CategoryPageSize),
		search.WithRetries(client.MaxRetries()),
	)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := svc.Search(ctx, q)
	if err != nil {
		logger.Error("search failed", zap.Error(err))
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return fail(stderr, "failed to write results: %v", err)
	}
	return 0
}

func fail(w io.Writer, format string, args ...interface{}) int {
	fmt.Fprintf(w, "meeteasy-search: "+format+"\n", args...)
	return 1
}
