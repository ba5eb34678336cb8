// Package app assembles repositories and services on top of one database pool.
package app

import (
	"context"
	"fmt"

	"condo/internal/config"
	"condo/internal/domain/auth"
	"condo/internal/domain/charge"
	"condo/internal/domain/fund"
	"condo/internal/domain/payment"
	"condo/internal/domain/unitupdate"
	"condo/internal/infrastructure/paygate"
	"condo/internal/infrastructure/sms"
	"condo/internal/infrastructure/storage/postgres"
	"condo/internal/infrastructure/storage/postgres/account_repo"
	"condo/internal/infrastructure/storage/postgres/billing_repo"
	"condo/internal/infrastructure/storage/postgres/occupancy_repo"
	"condo/pkg/logger"
	"condo/pkg/numerator"
)

// App holds the wired services of one process.
type App struct {
	Config *config.Config
	Pool   *postgres.Pool
	Tx     *postgres.TxManager
	Audit  *postgres.AuditService

	Charges  *billing_repo.ChargeRepo
	Ledger   *fund.Ledger
	Units    *unitupdate.Service
	Billing  *charge.Service
	Sweeper  *charge.Sweeper
	Payments *payment.Service
	JWT      *auth.JWTService
}

// New connects to the database and wires every service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	txm := postgres.NewTxManager(pool)
	audit, err := postgres.NewAuditService(txm)
	if err != nil {
		pool.Close()
		return nil, err
	}

	gen := numerator.NewWithResolver(func(ctx context.Context) numerator.Querier {
		return txm.GetQuerier(ctx)
	})

	units := occupancy_repo.NewUnitRepo(txm)
	renters := occupancy_repo.NewRenterRepo(txm)
	charges := billing_repo.NewChargeRepo(txm)
	ledger := fund.NewLedger(billing_repo.NewFundRepo(txm), gen).WithSnapshots(txm)
	events := postgres.NewOutboxPublisher(txm)

	a := &App{
		Config:  cfg,
		Pool:    pool,
		Tx:      txm,
		Audit:   audit,
		Charges: charges,
		Ledger:  ledger,
		JWT:     auth.NewJWTService(auth.DefaultJWTConfig(cfg.JWTSecret)),
	}

	a.Units = unitupdate.NewService(unitupdate.ServiceConfig{
		Units:     units,
		Renters:   renters,
		History:   occupancy_repo.NewHistoryRepo(txm),
		Houses:    occupancy_repo.NewHouseRepo(txm),
		Accounts:  account_repo.NewUserRepo(txm),
		Ledger:    ledger,
		Audit:     audit,
		TxManager: txm,
		Location:  cfg.Location,
	})
	a.Billing = charge.NewService(charge.ServiceConfig{
		Definitions: billing_repo.NewDefinitionRepo(txm),
		Charges:     charges,
		Targets:     billing_repo.NewTargetRepo(txm),
		Events:      events,
		TxManager:   txm,
		Location:    cfg.Location,
	})
	a.Sweeper = charge.NewSweeper(charges, txm, cfg.SweepBatchSize)
	a.Payments = payment.NewService(payment.ServiceConfig{
		Charges:  charges,
		Units:    units,
		Renters:  renters,
		Ledger:   ledger,
		Events:   events,
		Gateway: paygate.New(paygate.Config{
			BaseURL:    cfg.Payment.URL,
			MerchantID: cfg.Payment.MerchantID,
		}),
		TxManager:   txm,
		CallbackURL: cfg.Payment.CallbackURL,
		Location:    cfg.Location,
	})
	return a, nil
}

// Relay builds the outbox relay with every configured event handler.
func (a *App) Relay(log *logger.Logger) *postgres.OutboxRelay {
	mux := postgres.NewOutboxMux()
	if a.Config.SMS.Enabled() {
		sms.NewNotifier(sms.NewClient(sms.Config{
			URL:    a.Config.SMS.URL,
			APIKey: a.Config.SMS.APIKey,
			Sender: a.Config.SMS.Sender,
		})).Register(mux)
	} else {
		log.Warn("sms provider not configured, charge notices are acknowledged without delivery")
	}
	return postgres.NewOutboxRelay(a.Tx, postgres.DefaultRelayConfig(), mux)
}

// Close releases the database pool.
func (a *App) Close() {
	a.Pool.Close()
}
