// Command seed provisions a set of demo wallets for local development.
// Re-running it is safe: owners that already have a wallet are skipped.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/Haleralex/walletledger/internal/application/dtos"
	"github.com/Haleralex/walletledger/internal/application/usecases/wallet"
	"github.com/Haleralex/walletledger/internal/config"
	domainerrors "github.com/Haleralex/walletledger/internal/domain/errors"
	"github.com/Haleralex/walletledger/internal/infrastructure/persistence/postgres"
)

// demoOwners are the owner handles the seed provisions.
var demoOwners = []string{"demo-alice", "demo-bob", "demo-carol"}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var balance string
	flag.StringVar(&balance, "balance", "1000.00", "Initial balance for each demo wallet")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("skipping .env: %v", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ctx := context.Background()

	pool, err := postgres.NewConnectionPool(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Database:        cfg.Database.Name,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        2,
		MinConns:        1,
		ConnectTimeout:  cfg.Database.AcquireTimeout(),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.IdleTimeout(),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	walletRepo := postgres.NewWalletRepository(pool)
	outboxRepo := postgres.NewOutboxRepository(pool)
	uow := postgres.NewUnitOfWork(pool)

	createWallet := wallet.NewCreateWalletUseCase(walletRepo, outboxRepo, uow)

	for _, owner := range demoOwners {
		result, err := createWallet.Execute(ctx, dtos.CreateWalletCommand{
			OwnerID:        owner,
			InitialBalance: balance,
		})
		if err != nil {
			if errors.Is(err, domainerrors.ErrOwnerAlreadyExists) {
				existing, lookupErr := walletRepo.FindByOwnerID(ctx, owner)
				if lookupErr == nil && existing != nil {
					logger.Info("wallet already provisioned",
						slog.String("owner", owner),
						slog.String("wallet_id", existing.ID().String()),
					)
					continue
				}
			}
			return fmt.Errorf("failed to seed wallet for %s: %w", owner, err)
		}

		logger.Info("wallet created",
			slog.String("owner", owner),
			slog.String("wallet_id", result.ID),
			slog.String("balance", result.Balance),
		)
	}

	logger.Info("seed complete", slog.Int("owners", len(demoOwners)))
	return nil
}
