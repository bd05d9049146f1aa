package testutil

import (
	"context"
	"sync"

	"github.com/chainfolio/valuator/internal/domain/entities"
	"github.com/chainfolio/valuator/internal/domain/providers"
)

// MockCall records one invocation on a mock
type MockCall struct {
	Method string
	Args   []interface{}
}

// MockWalletRepository is a mock implementation of WalletRepository
type MockWalletRepository struct {
	mu      sync.RWMutex
	Wallets []entities.Wallet

	// Function hooks for custom behavior
	GetAllFunc  func(ctx context.Context) ([]entities.Wallet, error)
	GetByIDFunc func(ctx context.Context, id int64) (*entities.Wallet, error)

	// Call tracking
	Calls []MockCall
}

func NewMockWalletRepository() *MockWalletRepository {
	return &MockWalletRepository{
		Wallets: make([]entities.Wallet, 0),
		Calls:   make([]MockCall, 0),
	}
}

func (m *MockWalletRepository) record(method string, args ...interface{}) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
	m.mu.Unlock()
}

func (m *MockWalletRepository) GetAll(ctx context.Context) ([]entities.Wallet, error) {
	m.record("GetAll")

	if m.GetAllFunc != nil {
		return m.GetAllFunc(ctx)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]entities.Wallet, len(m.Wallets))
	copy(result, m.Wallets)
	return result, nil
}

func (m *MockWalletRepository) GetByID(ctx context.Context, id int64) (*entities.Wallet, error) {
	m.record("GetByID", id)

	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.Wallets {
		if w.ID == id {
			wallet := w
			return &wallet, nil
		}
	}
	return nil, nil
}

// MockSnapshotRepository is a mock implementation of SnapshotRepository
type MockSnapshotRepository struct {
	mu        sync.RWMutex
	Committed *entities.PortfolioSnapshot
	Prior     map[entities.AssetKey]entities.Asset

	// Function hooks for custom behavior
	CommitFunc    func(ctx context.Context, snapshot *entities.PortfolioSnapshot, walletIDs []int64) error
	GetLastFunc   func(ctx context.Context) (*entities.PortfolioSnapshot, error)
	GetAssetsFunc func(ctx context.Context, walletIDs []int64) (map[entities.AssetKey]entities.Asset, error)

	// Call tracking
	Calls []MockCall
}

func NewMockSnapshotRepository() *MockSnapshotRepository {
	return &MockSnapshotRepository{
		Prior: make(map[entities.AssetKey]entities.Asset),
		Calls: make([]MockCall, 0),
	}
}

func (m *MockSnapshotRepository) record(method string, args ...interface{}) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
	m.mu.Unlock()
}

func (m *MockSnapshotRepository) Commit(ctx context.Context, snapshot *entities.PortfolioSnapshot, walletIDs []int64) error {
	m.record("Commit", walletIDs)

	if m.CommitFunc != nil {
		return m.CommitFunc(ctx, snapshot, walletIDs)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot.ID = 1
	if m.Committed != nil {
		snapshot.ID = m.Committed.ID + 1
	}
	m.Committed = snapshot
	return nil
}

func (m *MockSnapshotRepository) GetLast(ctx context.Context) (*entities.PortfolioSnapshot, error) {
	m.record("GetLast")

	if m.GetLastFunc != nil {
		return m.GetLastFunc(ctx)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Committed, nil
}

func (m *MockSnapshotRepository) GetAssets(ctx context.Context, walletIDs []int64) (map[entities.AssetKey]entities.Asset, error) {
	m.record("GetAssets", walletIDs)

	if m.GetAssetsFunc != nil {
		return m.GetAssetsFunc(ctx, walletIDs)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[entities.AssetKey]entities.Asset, len(m.Prior))
	for k, v := range m.Prior {
		result[k] = v
	}
	return result, nil
}

// MockHiddenAssetRepository is a mock implementation of HiddenAssetRepository
type MockHiddenAssetRepository struct {
	mu      sync.RWMutex
	Entries map[entities.AssetKey]entities.HiddenAssetEntry

	// Function hooks for custom behavior
	GetAllFunc func(ctx context.Context) ([]entities.HiddenAssetEntry, error)
	UpsertFunc func(ctx context.Context, entry *entities.HiddenAssetEntry) error
	DeleteFunc func(ctx context.Context, walletID int64, tokenAddress string) error

	// Call tracking
	Calls []MockCall
}

func NewMockHiddenAssetRepository() *MockHiddenAssetRepository {
	return &MockHiddenAssetRepository{
		Entries: make(map[entities.AssetKey]entities.HiddenAssetEntry),
		Calls:   make([]MockCall, 0),
	}
}

func (m *MockHiddenAssetRepository) record(method string, args ...interface{}) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
	m.mu.Unlock()
}

func (m *MockHiddenAssetRepository) GetAll(ctx context.Context) ([]entities.HiddenAssetEntry, error) {
	m.record("GetAll")

	if m.GetAllFunc != nil {
		return m.GetAllFunc(ctx)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]entities.HiddenAssetEntry, 0, len(m.Entries))
	for _, e := range m.Entries {
		result = append(result, e)
	}
	return result, nil
}

func (m *MockHiddenAssetRepository) Upsert(ctx context.Context, entry *entities.HiddenAssetEntry) error {
	m.record("Upsert", *entry)

	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, entry)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries[entry.Key()] = *entry
	return nil
}

func (m *MockHiddenAssetRepository) Delete(ctx context.Context, walletID int64, tokenAddress string) error {
	m.record("Delete", walletID, tokenAddress)

	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, walletID, tokenAddress)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Entries, entities.AssetKey{WalletID: walletID, TokenAddress: tokenAddress})
	return nil
}

// MockOverrideRepository is a mock implementation of OverrideRepository
type MockOverrideRepository struct {
	mu        sync.RWMutex
	Overrides map[entities.AssetKey]entities.ManualOverride

	// Function hooks for custom behavior
	GetAllFunc func(ctx context.Context) (map[entities.AssetKey]entities.ManualOverride, error)

	// Call tracking
	Calls []MockCall
}

func NewMockOverrideRepository() *MockOverrideRepository {
	return &MockOverrideRepository{
		Overrides: make(map[entities.AssetKey]entities.ManualOverride),
		Calls:     make([]MockCall, 0),
	}
}

func (m *MockOverrideRepository) GetAll(ctx context.Context) (map[entities.AssetKey]entities.ManualOverride, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetAll"})
	m.mu.Unlock()

	if m.GetAllFunc != nil {
		return m.GetAllFunc(ctx)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[entities.AssetKey]entities.ManualOverride, len(m.Overrides))
	for k, v := range m.Overrides {
		result[k] = v
	}
	return result, nil
}

// MockBalanceProvider is a mock implementation of BalanceProvider
type MockBalanceProvider struct {
	mu sync.Mutex

	// Function hooks for custom behavior
	GetHoldingsFunc func(ctx context.Context, address, chain string) (*providers.Holdings, error)

	// Call tracking
	Calls []MockCall
}

func NewMockBalanceProvider() *MockBalanceProvider {
	return &MockBalanceProvider{Calls: make([]MockCall, 0)}
}

func (m *MockBalanceProvider) GetHoldings(ctx context.Context, address, chain string) (*providers.Holdings, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetHoldings", Args: []interface{}{address, chain}})
	m.mu.Unlock()

	if m.GetHoldingsFunc != nil {
		return m.GetHoldingsFunc(ctx, address, chain)
	}

	return &providers.Holdings{}, nil
}

// MockPriceSource is a mock implementation of PriceSource
type MockPriceSource struct {
	mu sync.Mutex

	SourceName string
	BatchSize  int

	// Function hooks for custom behavior
	GetPricesFunc func(ctx context.Context, network string, tokenAddresses []string) (map[string]float64, error)

	// Call tracking
	Calls []MockCall
}

func NewMockPriceSource(name string, batchSize int) *MockPriceSource {
	return &MockPriceSource{
		SourceName: name,
		BatchSize:  batchSize,
		Calls:      make([]MockCall, 0),
	}
}

func (m *MockPriceSource) Name() string { return m.SourceName }

func (m *MockPriceSource) MaxBatchSize() int { return m.BatchSize }

func (m *MockPriceSource) GetPrices(ctx context.Context, network string, tokenAddresses []string) (map[string]float64, error) {
	m.mu.Lock()
	args := make([]string, len(tokenAddresses))
	copy(args, tokenAddresses)
	m.Calls = append(m.Calls, MockCall{Method: "GetPrices", Args: []interface{}{network, args}})
	m.mu.Unlock()

	if m.GetPricesFunc != nil {
		return m.GetPricesFunc(ctx, network, tokenAddresses)
	}

	return map[string]float64{}, nil
}

// BatchCalls returns the address batches passed to GetPrices, in order
func (m *MockPriceSource) BatchCalls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	batches := make([][]string, 0, len(m.Calls))
	for _, c := range m.Calls {
		batches = append(batches, c.Args[1].([]string))
	}
	return batches
}

// MockNativePriceSource is a mock implementation of NativePriceSource
type MockNativePriceSource struct {
	mu sync.Mutex

	// Function hooks for custom behavior
	GetTickerPriceFunc func(ctx context.Context, symbol string) (float64, error)

	// Call tracking
	Calls []MockCall
}

func NewMockNativePriceSource() *MockNativePriceSource {
	return &MockNativePriceSource{Calls: make([]MockCall, 0)}
}

func (m *MockNativePriceSource) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetTickerPrice", Args: []interface{}{symbol}})
	m.mu.Unlock()

	if m.GetTickerPriceFunc != nil {
		return m.GetTickerPriceFunc(ctx, symbol)
	}

	return 0, nil
}

// MockNFTProvider is a mock implementation of NFTProvider
type MockNFTProvider struct {
	mu sync.Mutex

	// Function hooks for custom behavior
	GetOwnedNFTsFunc func(ctx context.Context, address, chain string) ([]entities.NFTRecord, error)

	// Call tracking
	Calls []MockCall
}

func NewMockNFTProvider() *MockNFTProvider {
	return &MockNFTProvider{Calls: make([]MockCall, 0)}
}

func (m *MockNFTProvider) GetOwnedNFTs(ctx context.Context, address, chain string) ([]entities.NFTRecord, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetOwnedNFTs", Args: []interface{}{address, chain}})
	m.mu.Unlock()

	if m.GetOwnedNFTsFunc != nil {
		return m.GetOwnedNFTsFunc(ctx, address, chain)
	}

	return nil, nil
}
