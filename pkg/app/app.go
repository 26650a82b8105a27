// Package app wires the ledger, the settlement engine and the payout processor
// from a Config. The HTTP server and both lambdas share it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/chris/wallet-ledger/pkg/audit"
	"github.com/chris/wallet-ledger/pkg/config"
	"github.com/chris/wallet-ledger/pkg/ledger"
	prommetrics "github.com/chris/wallet-ledger/pkg/metrics/prometheus"
	"github.com/chris/wallet-ledger/pkg/payout"
	"github.com/chris/wallet-ledger/pkg/risk"
	"github.com/chris/wallet-ledger/pkg/scheduler"
	"github.com/chris/wallet-ledger/pkg/settlement"
	"github.com/chris/wallet-ledger/pkg/storage"
	dydbstore "github.com/chris/wallet-ledger/pkg/storage/dynamodb"
	"github.com/chris/wallet-ledger/pkg/storage/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App holds the wired components.
type App struct {
	Config     config.Config
	Logger     *slog.Logger
	Store      storage.Storage
	Ledger     *ledger.Ledger
	Settlement *settlement.Service
	Payouts    *payout.Processor
	Risk       *risk.Gate
	// Scheduler is nil when no queue is configured.
	Scheduler scheduler.Scheduler
	Registry  *prometheus.Registry
}

// New builds an App from cfg.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := prommetrics.NewCollector(cfg.MetricsNamespace)
	if err := collector.Register(registry); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	a := &App{Config: cfg, Logger: logger, Registry: registry}

	needsAWS := cfg.StoreBackend == config.BackendDynamoDB || cfg.SQSQueueURL != ""
	var clients *awsClients
	if needsAWS {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("unable to load SDK config: %w", err)
		}
		clients = &awsClients{dynamo: dynamodb.NewFromConfig(awsCfg), sqs: sqs.NewFromConfig(awsCfg)}
	}

	switch cfg.StoreBackend {
	case config.BackendDynamoDB:
		a.Store = dydbstore.New(clients.dynamo, dydbstore.Tables{
			Wallets:      cfg.Tables.Wallets,
			Ledger:       cfg.Tables.Ledger,
			Transactions: cfg.Tables.Transactions,
			Batches:      cfg.Tables.Batches,
			Idempotency:  cfg.Tables.Idempotency,
		})
	default:
		logger.Warn("using in-memory store; balances are lost on restart")
		a.Store = memory.New()
	}

	if cfg.SQSQueueURL != "" {
		a.Scheduler = scheduler.NewSQSScheduler(clients.sqs, cfg.SQSQueueURL)
	}

	auditLog := audit.NewSlogLogger(logger)

	a.Ledger = ledger.New(a.Store, ledger.Options{
		MaxAttempts:     cfg.RetryAttempts,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Audit:           auditLog,
		Metrics:         collector,
		Logger:          logger,
	})

	a.Risk = risk.NewGate(risk.ThresholdEvaluator{Threshold: cfg.RiskFlagThreshold}, risk.Options{
		Concurrency: cfg.RiskConcurrency,
		Timeout:     cfg.RiskTimeout,
		OnFlag: func(ctx context.Context, flag risk.Flag) {
			audit.Emit(ctx, auditLog, logger, audit.Event{
				Actor:      audit.System,
				Action:     "risk.flag",
				Resource:   "transaction",
				ResourceID: flag.TransactionID,
				After:      flag,
			})
		},
		Logger:  logger,
		Metrics: collector,
	})

	settlementOpts := settlement.Options{
		Fees:       settlement.BasisPoints{Rate: cfg.FXFeeBasisPoints},
		FeeWallets: cfg.FeeWallets,
		Risk:       a.Risk,
		Audit:      auditLog,
		Metrics:    collector,
		Logger:     logger,
	}
	payoutOpts := payout.Options{
		Workers: cfg.PayoutWorkers,
		Audit:   auditLog,
		Metrics: collector,
		Logger:  logger,
	}
	if a.Scheduler != nil {
		settlementOpts.Scheduler = a.Scheduler
		payoutOpts.Scheduler = a.Scheduler
	}
	a.Settlement = settlement.New(a.Store, a.Ledger, settlementOpts)
	a.Payouts = payout.New(a.Store, a.Ledger, payoutOpts)

	return a, nil
}

// Close waits for in-flight risk evaluations.
func (a *App) Close() {
	a.Risk.Wait()
}

type awsClients struct {
	dynamo *dynamodb.Client
	sqs    *sqs.Client
}
