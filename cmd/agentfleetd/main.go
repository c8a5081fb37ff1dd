package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"AgentFleet-Chain/internal/api"
	"AgentFleet-Chain/internal/config"
	"AgentFleet-Chain/internal/guardrails"
	"AgentFleet-Chain/internal/harness"
	"AgentFleet-Chain/internal/journal"
	"AgentFleet-Chain/internal/ledger"
	"AgentFleet-Chain/internal/observability/alerting"
	"AgentFleet-Chain/internal/state"
	"AgentFleet-Chain/internal/token"
	"AgentFleet-Chain/internal/txpipeline"
	"AgentFleet-Chain/internal/wallet"
	"AgentFleet-Chain/pkg/logger"
)

// EnvPassphrase supplies the keystore passphrase. It is never read from the
// config file so key material and its secret do not travel together.
const EnvPassphrase = "KEYSTORE_PASSPHRASE"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("agentfleetd failed: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("AGENTFLEET_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "agentfleet.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
		},
	}); err != nil {
		return err
	}
	defer logger.Sync()
	mainLog := logger.Named("agentfleetd")

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return err
	}

	passphrase := os.Getenv(EnvPassphrase)
	if passphrase == "" {
		return errors.New(EnvPassphrase + " is not set")
	}

	guards := guardrails.New(guardrails.FromEnv(txpipeline.ProgramToken, txpipeline.ProgramATA))

	defs, err := ledger.LoadEndpointDefinitions(cfg.Ledger.EndpointsConfig)
	if err != nil {
		return err
	}
	client, endpointName, err := ledger.SelectHealthy(ctx, cfg.Ledger.RPCURL, defs)
	if err != nil {
		return err
	}
	defer client.Close()
	mainLog.Info("ledger endpoint selected", "endpoint", endpointName)

	wallets, err := wallet.NewDirectory(cfg.Runtime.KeystoreDir, passphrase, client)
	if err != nil {
		return err
	}

	pipeline := txpipeline.New(client)
	tokens := token.NewClient(pipeline, client)

	var store state.Store
	switch cfg.State.Driver {
	case "", "file":
		store = state.NewFileStore(cfg.State.Path)
	case "redis":
		redisStore, err := state.NewRedisStore(state.RedisConfig{
			Address:  cfg.State.Redis.Address,
			Password: cfg.State.Redis.Password,
			DB:       cfg.State.Redis.DB,
			Key:      cfg.State.Redis.Key,
		})
		if err != nil {
			return err
		}
		defer redisStore.Close()
		store = redisStore
	default:
		return errors.New("unsupported state store driver: " + cfg.State.Driver)
	}

	var recorder journal.Recorder
	switch cfg.Journal.Driver {
	case "", "memory":
		recorder = journal.NewMemoryRecorder()
	case "mysql":
		recorder, err = journal.NewMySQLRecorder(ctx, journal.MySQLConfig{DSN: cfg.Journal.DSN})
		if err != nil {
			return err
		}
	default:
		return errors.New("unsupported journal driver: " + cfg.Journal.Driver)
	}
	defer recorder.Close()

	notifiers := []alerting.Notifier{&alerting.LogNotifier{}}
	if cfg.Alerts.WebhookURL != "" {
		notifiers = append(notifiers, &alerting.WebhookNotifier{URL: cfg.Alerts.WebhookURL})
	}

	opts := []harness.Option{
		harness.WithRecorder(recorder),
		harness.WithAlerts(alerting.NewFanout(notifiers...)),
	}
	if cfg.Journal.RabbitMQ.Enabled {
		publisher, err := journal.NewAMQPPublisher(journal.AMQPConfig{
			URL:     cfg.Journal.RabbitMQ.URL,
			Queue:   cfg.Journal.RabbitMQ.Queue,
			Durable: cfg.Journal.RabbitMQ.Durable,
		})
		if err != nil {
			return err
		}
		defer publisher.Close()
		opts = append(opts, harness.WithEventPublisher(publisher))
	}

	fleet := harness.New(wallets, tokens, store, guards, opts...)

	var apiErrCh chan error
	if cfg.API.Enabled {
		statusServer := api.NewServer(cfg.API.ListenAddr, recorder, store, os.Getenv("AGENTFLEET_API_TOKEN"))
		apiErrCh = make(chan error, 1)
		go func() {
			apiErrCh <- statusServer.Start(ctx)
		}()
		mainLog.Info("status api listening", "addr", cfg.API.ListenAddr)
	}

	if cfg.Harness.BootstrapMint {
		mint, err := fleet.EnsureMint(ctx, harness.BootstrapConfig{Decimals: cfg.Harness.Decimals})
		if err != nil {
			return err
		}
		mainLog.Info("mint ready", "mint", mint)
	}

	if err := fleet.Run(ctx, harness.Config{
		AgentCount:         cfg.Harness.AgentCount,
		Rounds:             cfg.Harness.Rounds,
		SeedTokensPerAgent: cfg.Harness.SeedTokensPerAgent,
		ThresholdTokens:    cfg.Harness.ThresholdTokens,
		SendTokens:         cfg.Harness.SendTokens,
	}); err != nil {
		return err
	}

	// With the status API enabled the daemon stays up after the run so
	// operators can inspect results; otherwise it exits.
	if apiErrCh != nil {
		mainLog.Info("run complete, serving status api until interrupted")
		if err := <-apiErrCh; err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}
