package wallet

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Haleralex/walletledger/internal/domain/entities"
	"github.com/Haleralex/walletledger/internal/domain/events"
)

// ============================================
// Mocks
// ============================================

// mockWalletRepo is an in-memory wallet store. Function fields override the
// default behavior per test.
type mockWalletRepo struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*entities.Wallet
	creates int

	createFunc        func(ctx context.Context, wallet *entities.Wallet) error
	findByIDFunc      func(ctx context.Context, id uuid.UUID) (*entities.Wallet, error)
	findByOwnerIDFunc func(ctx context.Context, ownerID string) (*entities.Wallet, error)
}

func newMockWalletRepo(wallets ...*entities.Wallet) *mockWalletRepo {
	m := &mockWalletRepo{wallets: make(map[uuid.UUID]*entities.Wallet)}
	for _, w := range wallets {
		m.wallets[w.ID()] = w
	}
	return m
}

func (m *mockWalletRepo) Create(ctx context.Context, wallet *entities.Wallet) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, wallet)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[wallet.ID()] = wallet
	m.creates++
	return nil
}

func (m *mockWalletRepo) Update(ctx context.Context, wallet *entities.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[wallet.ID()] = wallet
	return nil
}

func (m *mockWalletRepo) FindByID(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wallets[id], nil
}

func (m *mockWalletRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Wallet, error) {
	return m.FindByID(ctx, id)
}

func (m *mockWalletRepo) FindByOwnerID(ctx context.Context, ownerID string) (*entities.Wallet, error) {
	if m.findByOwnerIDFunc != nil {
		return m.findByOwnerIDFunc(ctx, ownerID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.wallets {
		if w.OwnerID() == ownerID {
			return w, nil
		}
	}
	return nil, nil
}

func (m *mockWalletRepo) byOwner(ownerID string) *entities.Wallet {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.wallets {
		if w.OwnerID() == ownerID {
			return w
		}
	}
	return nil
}

func (m *mockWalletRepo) createCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates
}

// mockPublisher records published events.
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

func (m *mockPublisher) published() []events.DomainEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.DomainEvent(nil), m.events...)
}

// mockUnitOfWork runs the closure directly; no transaction, no rollback.
type mockUnitOfWork struct {
	calls int
}

func (m *mockUnitOfWork) Execute(ctx context.Context, fn func(context.Context) error) error {
	m.calls++
	return fn(ctx)
}

func (m *mockUnitOfWork) ExecuteWithResult(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	m.calls++
	return fn(ctx)
}
