// Package postgres - integration tests for the PostgreSQL repositories,
// backed by testcontainers.
//
// Running:
//
//	go test ./internal/infrastructure/persistence/postgres/...
//
// Requirements:
//   - a running Docker daemon
package postgres

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Haleralex/walletledger/internal/application/ports"
	"github.com/Haleralex/walletledger/internal/domain/entities"
	domainErrors "github.com/Haleralex/walletledger/internal/domain/errors"
	"github.com/Haleralex/walletledger/internal/domain/events"
	"github.com/Haleralex/walletledger/internal/domain/valueobjects"
)

// ============================================
// Test Helpers
// ============================================

// testContainer bundles the container with the pool the tests use.
type testContainer struct {
	container *postgres.PostgresContainer
	pool      *pgxpool.Pool
}

// Shared container for all tests (performance optimization).
var sharedTestContainer *testContainer

// setupSharedTestDB creates or returns the reusable PostgreSQL container.
// One container serves every test; tables are truncated between them.
func setupSharedTestDB(t *testing.T) *testContainer {
	if sharedTestContainer != nil {
		cleanupTables(t, sharedTestContainer.pool)
		return sharedTestContainer
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		postgres.WithInitScripts(migrationScripts()...),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := newTestPool(ctx, connStr)
	require.NoError(t, err)

	sharedTestContainer = &testContainer{
		container: container,
		pool:      pool,
	}

	return sharedTestContainer
}

// setupTestDB creates a throwaway PostgreSQL container. Used by tests that
// need exclusive control over table contents.
func setupTestDB(t *testing.T) *testContainer {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		postgres.WithInitScripts(migrationScripts()...),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := newTestPool(ctx, connStr)
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Close()
	})

	return &testContainer{
		container: container,
		pool:      pool,
	}
}

// migrationScripts lists the up migrations in apply order, relative to this
// file.
func migrationScripts() []string {
	migrationsPath := filepath.Join("..", "..", "..", "..", "migrations")
	return []string{
		filepath.Join(migrationsPath, "000001_create_wallets.up.sql"),
		filepath.Join(migrationsPath, "000002_create_transaction_logs.up.sql"),
		filepath.Join(migrationsPath, "000003_create_outbox.up.sql"),
	}
}

func newTestPool(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// cleanupTables truncates everything for the next test.
func cleanupTables(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()

	tables := []string{"outbox", "transaction_logs", "wallets"}
	for _, table := range tables {
		_, err := pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s", table))
		if err != nil {
			t.Logf("Warning: failed to cleanup %s: %v", table, err)
		}
	}
}

func money(t *testing.T, s string) valueobjects.Money {
	t.Helper()
	m, err := valueobjects.NewMoney(s)
	require.NoError(t, err)
	return m
}

func createWallet(t *testing.T, repo *WalletRepository, owner, balance string) *entities.Wallet {
	t.Helper()
	wallet, err := entities.NewWallet(owner, money(t, balance))
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), wallet))
	return wallet
}

// ============================================
// WalletRepository Tests
// ============================================

func TestWalletRepository_Integration_Create(t *testing.T) {
	tc := setupSharedTestDB(t)

	repo := NewWalletRepository(tc.pool)
	ctx := context.Background()

	t.Run("CreateNewWallet", func(t *testing.T) {
		wallet, err := entities.NewWallet("alice", money(t, "100.50"))
		require.NoError(t, err)

		err = repo.Create(ctx, wallet)
		assert.NoError(t, err)

		loaded, err := repo.FindByID(ctx, wallet.ID())
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, wallet.ID(), loaded.ID())
		assert.Equal(t, "alice", loaded.OwnerID())
		assert.Equal(t, "100.5000", loaded.Balance().String())
		assert.Equal(t, int64(0), loaded.Version())
	})

	t.Run("DuplicateOwner", func(t *testing.T) {
		first, _ := entities.NewWallet("bob", valueobjects.Zero())
		require.NoError(t, repo.Create(ctx, first))

		second, _ := entities.NewWallet("bob", valueobjects.Zero())
		err := repo.Create(ctx, second)

		assert.Error(t, err)
		assert.ErrorIs(t, err, domainErrors.ErrOwnerAlreadyExists)
	})
}

func TestWalletRepository_Integration_FindByID(t *testing.T) {
	tc := setupSharedTestDB(t)

	repo := NewWalletRepository(tc.pool)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		wallet := createWallet(t, repo, "find-by-id", "42.00")

		found, err := repo.FindByID(ctx, wallet.ID())

		assert.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, wallet.ID(), found.ID())
	})

	t.Run("NotFound", func(t *testing.T) {
		found, err := repo.FindByID(ctx, uuid.New())

		assert.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestWalletRepository_Integration_FindByOwnerID(t *testing.T) {
	tc := setupSharedTestDB(t)

	repo := NewWalletRepository(tc.pool)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		wallet := createWallet(t, repo, "carol", "0")

		found, err := repo.FindByOwnerID(ctx, "carol")

		assert.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, wallet.ID(), found.ID())
	})

	t.Run("NotFound", func(t *testing.T) {
		found, err := repo.FindByOwnerID(ctx, "nobody")

		assert.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestWalletRepository_Integration_Update(t *testing.T) {
	tc := setupSharedTestDB(t)

	repo := NewWalletRepository(tc.pool)
	ctx := context.Background()

	t.Run("BalanceRoundTrip", func(t *testing.T) {
		wallet := createWallet(t, repo, "round-trip", "100.25")

		require.NoError(t, wallet.Credit(money(t, "50.50")))
		err := repo.Update(ctx, wallet)
		assert.NoError(t, err)

		loaded, err := repo.FindByID(ctx, wallet.ID())
		require.NoError(t, err)
		assert.Equal(t, "150.7500", loaded.Balance().String())
		assert.Equal(t, int64(1), loaded.Version())
	})

	t.Run("OptimisticLockingConflict", func(t *testing.T) {
		wallet := createWallet(t, repo, "locking", "10.00")

		// Load the row twice, mutate both copies.
		wallet1, err := repo.FindByID(ctx, wallet.ID())
		require.NoError(t, err)
		wallet2, err := repo.FindByID(ctx, wallet.ID())
		require.NoError(t, err)

		require.NoError(t, wallet1.Credit(money(t, "1.00")))
		require.NoError(t, repo.Update(ctx, wallet1))

		// The second copy still carries the stale version.
		require.NoError(t, wallet2.Credit(money(t, "2.00")))
		err = repo.Update(ctx, wallet2)

		assert.Error(t, err)
		assert.True(t, domainErrors.IsConcurrencyError(err))
	})
}

func TestWalletRepository_Integration_FindByIDForUpdate(t *testing.T) {
	tc := setupSharedTestDB(t)

	repo := NewWalletRepository(tc.pool)
	uow := NewUnitOfWork(tc.pool)
	ctx := context.Background()

	wallet := createWallet(t, repo, "for-update", "500.00")

	err := uow.Execute(ctx, func(txCtx context.Context) error {
		locked, err := repo.FindByIDForUpdate(txCtx, wallet.ID())
		if err != nil {
			return err
		}
		if locked == nil {
			return fmt.Errorf("wallet disappeared")
		}
		if err := locked.Debit(money(t, "100.00")); err != nil {
			return err
		}
		return repo.Update(txCtx, locked)
	})
	require.NoError(t, err)

	loaded, err := repo.FindByID(ctx, wallet.ID())
	require.NoError(t, err)
	assert.Equal(t, "400.0000", loaded.Balance().String())
}

// ============================================
// TransactionLogRepository Tests
// ============================================

func TestTransactionLogRepository_Integration_Create(t *testing.T) {
	tc := setupSharedTestDB(t)

	repo := NewTransactionLogRepository(tc.pool)
	ctx := context.Background()

	t.Run("SaveNewLog", func(t *testing.T) {
		key := uuid.New().String()
		log, err := entities.NewTransactionLog(uuid.New(), uuid.New(), money(t, "25.00"), key)
		require.NoError(t, err)

		err = repo.Create(ctx, log)
		assert.NoError(t, err)

		loaded, err := repo.FindByIdempotencyKey(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, log.ID(), loaded.ID())
		assert.Equal(t, log.FromWalletID(), loaded.FromWalletID())
		assert.Equal(t, log.ToWalletID(), loaded.ToWalletID())
		assert.Equal(t, "25.0000", loaded.Amount().String())
		assert.Equal(t, entities.TransactionStatusPending, loaded.Status())
		assert.Empty(t, loaded.ErrorMessage())
	})

	t.Run("DuplicateIdempotencyKey", func(t *testing.T) {
		key := uuid.New().String()
		first, _ := entities.NewTransactionLog(uuid.New(), uuid.New(), money(t, "10.00"), key)
		require.NoError(t, repo.Create(ctx, first))

		second, _ := entities.NewTransactionLog(uuid.New(), uuid.New(), money(t, "99.00"), key)
		err := repo.Create(ctx, second)

		assert.Error(t, err)
		assert.ErrorIs(t, err, domainErrors.ErrDuplicateIdempotencyKey)
	})
}

func TestTransactionLogRepository_Integration_Update(t *testing.T) {
	tc := setupSharedTestDB(t)

	repo := NewTransactionLogRepository(tc.pool)
	ctx := context.Background()

	t.Run("MarkCompleted", func(t *testing.T) {
		key := uuid.New().String()
		log, _ := entities.NewTransactionLog(uuid.New(), uuid.New(), money(t, "30.00"), key)
		require.NoError(t, repo.Create(ctx, log))

		require.NoError(t, log.MarkCompleted(money(t, "70.00"), money(t, "130.00")))
		err := repo.Update(ctx, log)
		assert.NoError(t, err)

		loaded, err := repo.FindByIdempotencyKey(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, entities.TransactionStatusSuccess, loaded.Status())

		fromAfter, ok := loaded.FromBalanceAfter()
		assert.True(t, ok)
		assert.Equal(t, "70.0000", fromAfter)

		toAfter, ok := loaded.ToBalanceAfter()
		assert.True(t, ok)
		assert.Equal(t, "130.0000", toAfter)
	})

	t.Run("MarkFailed", func(t *testing.T) {
		key := uuid.New().String()
		log, _ := entities.NewTransactionLog(uuid.New(), uuid.New(), money(t, "30.00"), key)
		require.NoError(t, repo.Create(ctx, log))

		require.NoError(t, log.MarkFailed("insufficient balance"))
		err := repo.Update(ctx, log)
		assert.NoError(t, err)

		loaded, err := repo.FindByIdempotencyKey(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, entities.TransactionStatusFailed, loaded.Status())
		assert.Equal(t, "insufficient balance", loaded.ErrorMessage())
	})

	t.Run("MissingLog", func(t *testing.T) {
		log, _ := entities.NewTransactionLog(uuid.New(), uuid.New(), money(t, "5.00"), uuid.New().String())

		// Never inserted.
		err := repo.Update(ctx, log)

		assert.Error(t, err)
		assert.ErrorIs(t, err, domainErrors.ErrLogNotFound)
	})
}

func TestTransactionLogRepository_Integration_FindByIdempotencyKey_NotFound(t *testing.T) {
	tc := setupSharedTestDB(t)

	repo := NewTransactionLogRepository(tc.pool)

	found, err := repo.FindByIdempotencyKey(context.Background(), uuid.New().String())

	assert.NoError(t, err)
	assert.Nil(t, found)
}

func TestTransactionLogRepository_Integration_ListByWallet(t *testing.T) {
	tc := setupSharedTestDB(t)

	repo := NewTransactionLogRepository(tc.pool)
	ctx := context.Background()

	walletID := uuid.New()
	otherID := uuid.New()

	// Three transfers out of the wallet, two into it. The sleeps force
	// distinct created_at values so the ordering assertion is stable.
	var lastID uuid.UUID
	for i := 0; i < 3; i++ {
		log, _ := entities.NewTransactionLog(walletID, uuid.New(), money(t, "1.00"), uuid.New().String())
		require.NoError(t, repo.Create(ctx, log))
		lastID = log.ID()
		time.Sleep(5 * time.Millisecond)
	}
	for i := 0; i < 2; i++ {
		log, _ := entities.NewTransactionLog(uuid.New(), walletID, money(t, "2.00"), uuid.New().String())
		require.NoError(t, repo.Create(ctx, log))
		lastID = log.ID()
		time.Sleep(5 * time.Millisecond)
	}

	t.Run("BothDirectionsNewestFirst", func(t *testing.T) {
		logs, err := repo.ListByWallet(ctx, walletID, 10)

		require.NoError(t, err)
		require.Len(t, logs, 5)
		assert.Equal(t, lastID, logs[0].ID())
		for i := 1; i < len(logs); i++ {
			assert.False(t, logs[i].CreatedAt().After(logs[i-1].CreatedAt()),
				"expected newest-first ordering")
		}
	})

	t.Run("LimitApplies", func(t *testing.T) {
		logs, err := repo.ListByWallet(ctx, walletID, 2)

		require.NoError(t, err)
		assert.Len(t, logs, 2)
	})

	t.Run("UninvolvedWallet", func(t *testing.T) {
		logs, err := repo.ListByWallet(ctx, otherID, 10)

		require.NoError(t, err)
		assert.Empty(t, logs)
	})
}

// ============================================
// OutboxRepository Tests
// ============================================

// The outbox lifecycle test owns the whole table, so it runs on an isolated
// container instead of the shared one.
func TestOutboxRepository_Integration_Lifecycle(t *testing.T) {
	tc := setupTestDB(t)

	repo := NewOutboxRepository(tc.pool)
	uow := NewUnitOfWork(tc.pool)
	ctx := context.Background()

	event := events.NewWalletCreated(uuid.New(), "outbox-owner", "0.0000")
	require.NoError(t, repo.Save(ctx, event))

	// FindUnpublished locks with FOR UPDATE SKIP LOCKED, so claiming runs
	// inside a transaction.
	var claimed []ports.OutboxMessage
	err := uow.Execute(ctx, func(txCtx context.Context) error {
		messages, err := repo.FindUnpublished(txCtx, 10)
		if err != nil {
			return err
		}
		claimed = messages
		return nil
	})
	require.NoError(t, err)

	require.Len(t, claimed, 1)
	assert.Equal(t, event.EventID(), claimed[0].ID)
	assert.Equal(t, events.EventTypeWalletCreated, claimed[0].EventType)
	assert.Equal(t, "Wallet", claimed[0].AggregateType)

	t.Run("MarkPublished", func(t *testing.T) {
		err := repo.MarkPublished(ctx, event.EventID())
		assert.NoError(t, err)

		// A published message never comes back.
		err = uow.Execute(ctx, func(txCtx context.Context) error {
			messages, err := repo.FindUnpublished(txCtx, 10)
			if err != nil {
				return err
			}
			assert.Empty(t, messages)
			return nil
		})
		assert.NoError(t, err)

		// And cannot be published twice.
		err = repo.MarkPublished(ctx, event.EventID())
		assert.Error(t, err)
	})

	t.Run("CleanupPublished", func(t *testing.T) {
		deleted, err := repo.CleanupPublished(ctx, time.Hour)
		assert.NoError(t, err)
		assert.Zero(t, deleted, "fresh rows must survive an hour-long retention window")

		deleted, err = repo.CleanupPublished(ctx, 0)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
	})
}

func TestOutboxRepository_Integration_RetryFlow(t *testing.T) {
	tc := setupTestDB(t)

	repo := NewOutboxRepository(tc.pool)
	ctx := context.Background()

	t.Run("MarkFailedThenRetry", func(t *testing.T) {
		event := events.NewTransferFailed(uuid.New(), uuid.New(), uuid.New(), "10.0000", "broker down", "retry-key")
		require.NoError(t, repo.Save(ctx, event))

		require.NoError(t, repo.MarkFailed(ctx, event.EventID(), "connection refused"))

		err := repo.MarkForRetry(ctx, event.EventID())
		assert.NoError(t, err)
	})

	t.Run("RetryBudgetExhausted", func(t *testing.T) {
		event := events.NewTransferFailed(uuid.New(), uuid.New(), uuid.New(), "10.0000", "broker down", "budget-key")
		require.NoError(t, repo.Save(ctx, event))

		// Burn all but the last slot of the retry budget.
		for i := 1; i < maxOutboxRetries; i++ {
			require.NoError(t, repo.MarkFailed(ctx, event.EventID(), "still failing"))
			require.NoError(t, repo.MarkForRetry(ctx, event.EventID()))
		}

		// The next failure hits the cap and the message stays FAILED.
		require.NoError(t, repo.MarkFailed(ctx, event.EventID(), "still failing"))
		err := repo.MarkForRetry(ctx, event.EventID())
		assert.Error(t, err)
	})
}

func TestOutboxRepository_Integration_PublishBatch(t *testing.T) {
	tc := setupTestDB(t)

	repo := NewOutboxRepository(tc.pool)
	uow := NewUnitOfWork(tc.pool)
	ctx := context.Background()

	batch := []events.DomainEvent{
		events.NewWalletCreated(uuid.New(), "batch-1", "0.0000"),
		events.NewTransferCompleted(uuid.New(), uuid.New(), uuid.New(), "5.0000", "95.0000", "105.0000", "batch-key"),
	}
	require.NoError(t, repo.PublishBatch(ctx, batch))

	err := uow.Execute(ctx, func(txCtx context.Context) error {
		messages, err := repo.FindUnpublished(txCtx, 10)
		if err != nil {
			return err
		}
		require.Len(t, messages, 2)

		// Aggregate types derive from the event type prefix.
		types := map[string]string{}
		for _, msg := range messages {
			types[msg.EventType] = msg.AggregateType
		}
		assert.Equal(t, "Wallet", types[events.EventTypeWalletCreated])
		assert.Equal(t, "Transfer", types[events.EventTypeTransferCompleted])
		return nil
	})
	require.NoError(t, err)
}

// ============================================
// UnitOfWork Tests
// ============================================

func TestUnitOfWork_Integration_Commit(t *testing.T) {
	tc := setupSharedTestDB(t)

	uow := NewUnitOfWork(tc.pool)
	walletRepo := NewWalletRepository(tc.pool)
	ctx := context.Background()

	t.Run("CommitSuccess", func(t *testing.T) {
		err := uow.Execute(ctx, func(txCtx context.Context) error {
			wallet, _ := entities.NewWallet("commit-owner", valueobjects.Zero())
			return walletRepo.Create(txCtx, wallet)
		})

		assert.NoError(t, err)

		found, err := walletRepo.FindByOwnerID(ctx, "commit-owner")
		assert.NoError(t, err)
		assert.NotNil(t, found)
	})

	t.Run("RollbackOnError", func(t *testing.T) {
		err := uow.Execute(ctx, func(txCtx context.Context) error {
			wallet, _ := entities.NewWallet("rollback-owner", valueobjects.Zero())
			if err := walletRepo.Create(txCtx, wallet); err != nil {
				return err
			}
			return fmt.Errorf("intentional error")
		})

		assert.Error(t, err)

		found, err := walletRepo.FindByOwnerID(ctx, "rollback-owner")
		assert.NoError(t, err)
		assert.Nil(t, found, "wallet must not survive the rollback")
	})
}

func TestUnitOfWork_Integration_AtomicTransfer(t *testing.T) {
	tc := setupSharedTestDB(t)

	uow := NewUnitOfWork(tc.pool)
	walletRepo := NewWalletRepository(tc.pool)
	logRepo := NewTransactionLogRepository(tc.pool)
	ctx := context.Background()

	source := createWallet(t, walletRepo, "transfer-source", "1000.00")
	dest := createWallet(t, walletRepo, "transfer-dest", "0")

	key := uuid.New().String()
	log, err := entities.NewTransactionLog(source.ID(), dest.ID(), money(t, "100.00"), key)
	require.NoError(t, err)

	// The PENDING row commits on its own, outside the money movement.
	require.NoError(t, logRepo.Create(ctx, log))

	err = uow.Execute(ctx, func(txCtx context.Context) error {
		from, err := walletRepo.FindByIDForUpdate(txCtx, source.ID())
		if err != nil {
			return fmt.Errorf("failed to lock source: %w", err)
		}
		to, err := walletRepo.FindByIDForUpdate(txCtx, dest.ID())
		if err != nil {
			return fmt.Errorf("failed to lock destination: %w", err)
		}

		amount := money(t, "100.00")
		if err := from.Debit(amount); err != nil {
			return err
		}
		if err := to.Credit(amount); err != nil {
			return err
		}

		if err := walletRepo.Update(txCtx, from); err != nil {
			return fmt.Errorf("failed to save source: %w", err)
		}
		if err := walletRepo.Update(txCtx, to); err != nil {
			return fmt.Errorf("failed to save destination: %w", err)
		}

		if err := log.MarkCompleted(from.Balance(), to.Balance()); err != nil {
			return err
		}
		return logRepo.Update(txCtx, log)
	})
	require.NoError(t, err, "transfer transaction should commit")

	// Balances and the ledger row all reflect the commit.
	fromAfter, err := walletRepo.FindByID(ctx, source.ID())
	require.NoError(t, err)
	toAfter, err := walletRepo.FindByID(ctx, dest.ID())
	require.NoError(t, err)

	assert.Equal(t, "900.0000", fromAfter.Balance().String())
	assert.Equal(t, "100.0000", toAfter.Balance().String())

	settled, err := logRepo.FindByIdempotencyKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionStatusSuccess, settled.Status())
}
