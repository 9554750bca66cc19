package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/vaultkeeper-hq/vaultkeeper/clients/evm"
	"github.com/vaultkeeper-hq/vaultkeeper/clients/hermes"
	"github.com/vaultkeeper-hq/vaultkeeper/cmd/vaultkeeper/httpjson"
	"github.com/vaultkeeper-hq/vaultkeeper/config"
	"github.com/vaultkeeper-hq/vaultkeeper/contracts"
	"github.com/vaultkeeper-hq/vaultkeeper/db"
	"github.com/vaultkeeper-hq/vaultkeeper/http"
	"github.com/vaultkeeper-hq/vaultkeeper/logging"
	"github.com/vaultkeeper-hq/vaultkeeper/services"
)

func main() {
	flags := parseFlags()
	log := logging.New(os.Stdout, flags.LogLevel, flags.LogJSON)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database. Persistence is optional; without DATABASE_URL the
	// service runs with in-memory state only.
	var database db.Database
	if cfg.DatabaseURL != "" {
		log.Info().Msg("Initializing database connection")

		postgres, err := db.NewPostgresDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}

		defer func() {
			if err := postgres.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close database")
			}
		}()

		database = postgres
		log.Info().Msg("Database connection established successfully")
	}

	// Initialize Ethereum clients
	clients, err := evm.ResolveClientsFromConfig(ctx, *cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Ethereum clients")
	}

	metricsService := services.NewMetricsService(log)

	registry := services.NewClientRegistryFromEthClients(clients)
	publisher := services.NewStatusPublisher(log)
	monitor := services.NewMonitorService(registry, publisher, database, metricsService, log)

	// Start the keeper when configured
	var keeper *services.KeeperService
	if cfg.Keeper.Enabled {
		keeper, err = createKeeper(*cfg, clients, database, metricsService, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create keeper")
		}

		keeper.Start(ctx)
		log.Info().Uint64(logging.FieldChain, cfg.Keeper.ChainID).Msg("Keeper started")
	}

	// Create and start the server
	server := httpjson.New(httpjson.Config{
		Addr:           fmt.Sprintf(":%s", cfg.Port),
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         log,
		LogRequests:    true,
		BaseContext:    ctx,
		Dependencies: httpjson.Dependencies{
			Database: database,
			Registry: registry,
			Monitor:  monitor,
			Keeper:   keeperDep(keeper),
			Metrics:  metricsService,
		},
	})

	serverShutdown := http.StartAsync(server, log)

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info().Msg("Shutdown signal received, cleaning up services...")

	serverShutdown(context.Background())

	if keeper != nil {
		log.Info().Msg("Shutting down keeper...")
		keeper.Stop()
	}

	log.Info().Msg("All services shut down successfully")
}

// createKeeper wires the vault contract and the attestation client for the
// keeper chain.
func createKeeper(
	cfg config.Config,
	clients map[uint64]*ethclient.Client,
	database db.Database,
	metrics *services.MetricsService,
	logger zerolog.Logger,
) (*services.KeeperService, error) {
	client, ok := clients[cfg.Keeper.ChainID]
	if !ok {
		return nil, fmt.Errorf("no RPC client configured for keeper chain %d", cfg.Keeper.ChainID)
	}

	vault, err := contracts.NewVault(cfg.Keeper, client)
	if err != nil {
		return nil, fmt.Errorf("failed to bind vault contract: %w", err)
	}

	fetcher := hermes.NewClient(cfg.HermesURL, map[string]string{
		cfg.Keeper.PriceFeedID: cfg.Keeper.FeedSymbol,
	}, logger)

	return services.NewKeeperService(cfg.Keeper, vault, fetcher, database, metrics, logger), nil
}

// keeperDep narrows a possibly-nil keeper to the handler dependency without
// producing a non-nil interface around a nil pointer.
func keeperDep(keeper *services.KeeperService) httpjson.KeeperService {
	if keeper == nil {
		return nil
	}
	return keeper
}

type flagSet struct {
	LogJSON  bool
	LogLevel zerolog.Level
}

func parseFlags() flagSet {
	var (
		logJSON        bool
		logLevel       string
		logLevelParsed zerolog.Level
	)

	flag.BoolVar(&logJSON, "log-json", false, "Output logs in JSON format")
	flag.StringVar(&logLevel, "log-level", "info", "Set log level (debug, info, warn, error)")

	flag.Parse()

	switch logLevel {
	case "debug":
		logLevelParsed = zerolog.DebugLevel
	case "warn":
		logLevelParsed = zerolog.WarnLevel
	case "error":
		logLevelParsed = zerolog.ErrorLevel
	default:
		logLevelParsed = zerolog.InfoLevel
	}

	return flagSet{
		LogJSON:  logJSON,
		LogLevel: logLevelParsed,
	}
}
