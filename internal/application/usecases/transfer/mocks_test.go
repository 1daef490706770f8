package transfer

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/walletledger/internal/application/dtos"
	"github.com/Haleralex/walletledger/internal/domain/entities"
	domainerrors "github.com/Haleralex/walletledger/internal/domain/errors"
	"github.com/Haleralex/walletledger/internal/domain/events"
	"github.com/Haleralex/walletledger/internal/domain/valueobjects"
)

// ============================================
// Mocks
// ============================================

// mockWalletRepo is an in-memory wallet store. Function fields override the
// default behavior per test; lockedOrder records the FindByIDForUpdate call
// sequence for lock-ordering assertions.
type mockWalletRepo struct {
	mu          sync.Mutex
	wallets     map[uuid.UUID]*entities.Wallet
	lockedOrder []uuid.UUID

	findForUpdateFunc func(ctx context.Context, id uuid.UUID) (*entities.Wallet, error)
	updateFunc        func(ctx context.Context, wallet *entities.Wallet) error
}

func newMockWalletRepo(wallets ...*entities.Wallet) *mockWalletRepo {
	m := &mockWalletRepo{wallets: make(map[uuid.UUID]*entities.Wallet)}
	for _, w := range wallets {
		m.wallets[w.ID()] = w
	}
	return m
}

func (m *mockWalletRepo) Create(ctx context.Context, wallet *entities.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[wallet.ID()] = wallet
	return nil
}

func (m *mockWalletRepo) Update(ctx context.Context, wallet *entities.Wallet) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, wallet)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[wallet.ID()] = wallet
	return nil
}

func (m *mockWalletRepo) FindByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wallets[id], nil
}

func (m *mockWalletRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	if m.findForUpdateFunc != nil {
		return m.findForUpdateFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockedOrder = append(m.lockedOrder, id)
	return m.wallets[id], nil
}

func (m *mockWalletRepo) FindByOwnerID(ctx context.Context, ownerID string) (*entities.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.wallets {
		if w.OwnerID() == ownerID {
			return w, nil
		}
	}
	return nil, nil
}

func (m *mockWalletRepo) balanceOf(id uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wallets[id].Balance().String()
}

// mockLogRepo is an in-memory transaction log store keyed by idempotency
// key, mirroring the unique constraint the real table enforces.
type mockLogRepo struct {
	mu      sync.Mutex
	byKey   map[string]*entities.TransactionLog
	creates int
	updates int

	createFunc    func(ctx context.Context, log *entities.TransactionLog) error
	findByKeyFunc func(ctx context.Context, key string) (*entities.TransactionLog, error)
	listFunc      func(ctx context.Context, walletID uuid.UUID, limit int) ([]*entities.TransactionLog, error)
}

func newMockLogRepo() *mockLogRepo {
	return &mockLogRepo{byKey: make(map[string]*entities.TransactionLog)}
}

func (m *mockLogRepo) Create(ctx context.Context, log *entities.TransactionLog) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, log)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byKey[log.IdempotencyKey()]; exists {
		return domainerrors.ErrDuplicateIdempotencyKey
	}
	m.byKey[log.IdempotencyKey()] = log
	m.creates++
	return nil
}

func (m *mockLogRepo) Update(ctx context.Context, log *entities.TransactionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byKey[log.IdempotencyKey()] = log
	m.updates++
	return nil
}

func (m *mockLogRepo) FindByIdempotencyKey(ctx context.Context, key string) (*entities.TransactionLog, error) {
	if m.findByKeyFunc != nil {
		return m.findByKeyFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byKey[key], nil
}

func (m *mockLogRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, limit int) ([]*entities.TransactionLog, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, walletID, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entities.TransactionLog
	for _, log := range m.byKey {
		if log.FromWalletID() == walletID || log.ToWalletID() == walletID {
			out = append(out, log)
		}
	}
	return out, nil
}

func (m *mockLogRepo) get(key string) *entities.TransactionLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byKey[key]
}

func (m *mockLogRepo) createCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates
}

// mockCache is an in-memory CacheStore with real SETNX semantics. Setting
// failAll makes every call return errFail, for degraded-Redis scenarios.
type mockCache struct {
	mu      sync.Mutex
	entries map[string]string
	failAll bool
	errFail error

	setNXFunc func(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string]string)}
}

func (m *mockCache) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return "", false, m.errFail
	}
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *mockCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return m.errFail
	}
	m.entries[key] = value
	return nil
}

func (m *mockCache) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if m.setNXFunc != nil {
		return m.setNXFunc(ctx, key, value, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return false, m.errFail
	}
	if _, held := m.entries[key]; held {
		return false, nil
	}
	m.entries[key] = value
	return true, nil
}

func (m *mockCache) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return m.errFail
	}
	delete(m.entries, key)
	return nil
}

func (m *mockCache) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return m.errFail
	}
	return nil
}

func (m *mockCache) get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok
}

func (m *mockCache) put(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
}

func (m *mockCache) remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// mockPublisher records published events grouped by type.
type mockPublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent

	publishFunc func(ctx context.Context, event events.DomainEvent) error
}

func (m *mockPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	if m.publishFunc != nil {
		return m.publishFunc(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	for _, e := range evts {
		if err := m.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockPublisher) eventsOfType(eventType string) []events.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []events.DomainEvent
	for _, e := range m.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// mockUnitOfWork runs the closure directly; no transaction, no rollback.
type mockUnitOfWork struct {
	executeFunc func(ctx context.Context, fn func(context.Context) error) error
}

func (m *mockUnitOfWork) Execute(ctx context.Context, fn func(context.Context) error) error {
	if m.executeFunc != nil {
		return m.executeFunc(ctx, fn)
	}
	return fn(ctx)
}

func (m *mockUnitOfWork) ExecuteWithResult(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	return fn(ctx)
}

// ============================================
// Test environment
// ============================================

// testEnv wires a TransferUseCase over the in-memory mocks with two seeded
// wallets holding 1000.0000 each.
type testEnv struct {
	wallets   *mockWalletRepo
	logs      *mockLogRepo
	cache     *mockCache
	publisher *mockPublisher
	uow       *mockUnitOfWork
	useCase   *TransferUseCase

	fromID uuid.UUID
	toID   uuid.UUID
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustMoney(t *testing.T, s string) valueobjects.Money {
	t.Helper()
	m, err := valueobjects.NewMoney(s)
	if err != nil {
		t.Fatalf("NewMoney(%q): %v", s, err)
	}
	return m
}

func testWallet(t *testing.T, owner, balance string) *entities.Wallet {
	t.Helper()
	now := time.Now().UTC()
	return entities.ReconstructWallet(uuid.New(), owner, mustMoney(t, balance), 1, now, now)
}

func newTestEnv(t *testing.T, cfg IdempotencyConfig) *testEnv {
	t.Helper()
	from := testWallet(t, "alice", "1000.0000")
	to := testWallet(t, "bob", "1000.0000")

	env := &testEnv{
		wallets:   newMockWalletRepo(from, to),
		logs:      newMockLogRepo(),
		cache:     newMockCache(),
		publisher: &mockPublisher{},
		uow:       &mockUnitOfWork{},
		fromID:    from.ID(),
		toID:      to.ID(),
	}
	env.useCase = NewTransferUseCase(
		env.wallets, env.logs, env.cache, env.publisher, env.uow, cfg, testLogger(),
	)
	return env
}

// fastConfig keeps lock waiting negligible for tests that never contend.
func fastConfig() IdempotencyConfig {
	return IdempotencyConfig{
		ResultTTL:      time.Hour,
		LockTTL:        time.Second,
		LockRetries:    2,
		LockRetryDelay: time.Millisecond,
	}
}

func (e *testEnv) transferCommand(amount, key string) dtos.TransferCommand {
	return dtos.TransferCommand{
		FromWalletID:   e.fromID.String(),
		ToWalletID:     e.toID.String(),
		Amount:         amount,
		IdempotencyKey: key,
	}
}
