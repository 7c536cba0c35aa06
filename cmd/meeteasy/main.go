// Package main implements the unified meetEasy binary.
// This binary can run the API and the payment-intent service together or
// either one on its own, based on the --mode flag.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/aabubakar17/meetEasy/internal/app"
	"github.com/aabubakar17/meetEasy/internal/config"
	"github.com/aabubakar17/meetEasy/internal/logging"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile   string
		envFile      string
		dataDir      string
		mode         string
		apiAddr      string
		paymentsAddr string
		grpcAddr     string
		logLevel     string
		showVersion  bool
		showHelp     bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before the environment is read")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for the event database and local images")
	flag.StringVar(&mode, "mode", "", "Service mode: all, api, payments")
	flag.StringVar(&apiAddr, "http-api", "", "HTTP address for the API service")
	flag.StringVar(&paymentsAddr, "http-payments", "", "HTTP address for the payment-intent service")
	flag.StringVar(&grpcAddr, "grpc-addr", "", "gRPC search server address (enables gRPC)")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "meetEasy - event discovery, registration and payments\n\n")
		fmt.Fprintf(os.Stderr, "Usage: meeteasy [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  meeteasy --data-dir /data/meeteasy\n")
		fmt.Fprintf(os.Stderr, "  meeteasy --mode payments --http-payments :5000\n")
		fmt.Fprintf(os.Stderr, "  meeteasy --config /etc/meeteasy/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  MEETEASY_MODE              Service mode (all, api, payments)\n")
		fmt.Fprintf(os.Stderr, "  MEETEASY_DATA_DIR          Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  TICKETMASTER_API_KEY       Ticketing search API key\n")
		fmt.Fprintf(os.Stderr, "  STRIPE_SECRET_KEY          Payment provider secret key\n")
		fmt.Fprintf(os.Stderr, "  MEETEASY_STORAGE_TYPE      Image storage type (local, s3)\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("meeteasy version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	// A missing dotenv file is normal in production.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", envFile, err)
			os.Exit(1)
		}
	}

	cfg, err := loadConfig(configFile, dataDir, mode, apiAddr, paymentsAddr, grpcAddr, logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Environment: cfg.Log.Environment,
		Level:       cfg.Log.Level,
		Service:     "meeteasy",
	})
	defer logger.Sync()

	logStartup(logger, cfg)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create application", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		logger.Fatal("Failed to start application", zap.Error(err))
	}

	if err := application.WaitForShutdown(ctx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(configFile, dataDir, mode, apiAddr, paymentsAddr, grpcAddr, logLevel string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	// Start with defaults or load from file
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	// Apply environment variables
	config.LoadFromEnv(cfg)

	// Apply command line flags (highest priority)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if mode != "" {
		cfg.Mode = config.Mode(mode)
	}
	if apiAddr != "" {
		cfg.HTTP.APIAddr = apiAddr
	}
	if paymentsAddr != "" {
		cfg.HTTP.PaymentsAddr = paymentsAddr
	}
	if grpcAddr != "" {
		cfg.GRPC.Addr = grpcAddr
		cfg.GRPC.Enabled = true
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	return cfg, nil
}

// logStartup logs the configuration summary.
func logStartup(logger *zap.Logger, cfg *config.Config) {
	fields := []zap.Field{
		zap.String("version", version),
		zap.String("mode", string(cfg.Mode)),
		zap.String("data_dir", cfg.DataDir),
		zap.String("store", cfg.Store.Driver),
		zap.String("storage", cfg.Storage.Type),
	}
	if cfg.ShouldRunAPI() {
		fields = append(fields, zap.String("api_addr", cfg.HTTP.APIAddr))
		if cfg.GRPC.Enabled {
			fields = append(fields, zap.String("grpc_addr", cfg.GRPC.Addr))
		}
	}
	if cfg.ShouldRunPayments() {
		fields = append(fields, zap.String("payments_addr", cfg.HTTP.PaymentsAddr))
	}
	logger.Info("Starting meetEasy", fields...)
}
