package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/coinwatch/internal/core/domain"
	"github.com/vietddude/coinwatch/internal/infra/storage"
)

// MemoryStorage keeps every table in maps behind one lock.
type MemoryStorage struct {
	clients       map[int64]*domain.Client
	wallets       map[int64]*domain.Wallet
	clientWallets map[[2]int64]*domain.ClientWallet
	coins         map[int64]*domain.Coin
	clientCoins   map[domain.ClientCoinKey]*domain.ClientCoin
	txs           map[domain.TxKey]*domain.Transaction
	filters       map[int64]*domain.ClientFilters
	nextID        int64
	mu            sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		clients:       make(map[int64]*domain.Client),
		wallets:       make(map[int64]*domain.Wallet),
		clientWallets: make(map[[2]int64]*domain.ClientWallet),
		coins:         make(map[int64]*domain.Coin),
		clientCoins:   make(map[domain.ClientCoinKey]*domain.ClientCoin),
		txs:           make(map[domain.TxKey]*domain.Transaction),
		filters:       make(map[int64]*domain.ClientFilters),
	}
}

// NewStore returns a storage.Store backed by a fresh MemoryStorage.
func NewStore() *storage.Store {
	s := NewMemoryStorage()
	return &storage.Store{
		Clients:      NewClientRepo(s),
		Wallets:      NewWalletRepo(s),
		Coins:        NewCoinRepo(s),
		Transactions: NewTxRepo(s),
		Filters:      NewFiltersRepo(s),
	}
}

func (s *MemoryStorage) id() int64 {
	s.nextID++
	return s.nextID
}

// -----------------------------------------------------------------------------
// Client Repository
// -----------------------------------------------------------------------------

type ClientRepo struct {
	store *MemoryStorage
}

func NewClientRepo(store *MemoryStorage) *ClientRepo {
	return &ClientRepo{store: store}
}

func (r *ClientRepo) Upsert(ctx context.Context, client *domain.Client) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if c, ok := r.store.clients[client.ID]; ok {
		c.FirstName = client.FirstName
		c.LastName = client.LastName
		c.Username = client.Username
		c.IsPremium = client.IsPremium
		return false, nil
	}
	c := *client
	c.AlertsEnabled = true
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	r.store.clients[c.ID] = &c
	return true, nil
}

func (r *ClientRepo) Get(ctx context.Context, id int64) (*domain.Client, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	c, ok := r.store.clients[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *ClientRepo) SetAlertsEnabled(ctx context.Context, id int64, enabled bool) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if c, ok := r.store.clients[id]; ok {
		c.AlertsEnabled = enabled
	}
	return nil
}

func (r *ClientRepo) UpdateFilter(ctx context.Context, id int64, filter domain.AlertFilter) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if c, ok := r.store.clients[id]; ok {
		c.Filter = filter
	}
	return nil
}

func (r *ClientRepo) ListByWallet(ctx context.Context, walletID int64) ([]*domain.Client, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.Client
	for key := range r.store.clientWallets {
		if key[1] != walletID {
			continue
		}
		if c, ok := r.store.clients[key[0]]; ok && c.AlertsEnabled {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ClientRepo) Count(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.clients), nil
}

// -----------------------------------------------------------------------------
// Wallet Repository
// -----------------------------------------------------------------------------

type WalletRepo struct {
	store *MemoryStorage
}

func NewWalletRepo(store *MemoryStorage) *WalletRepo {
	return &WalletRepo{store: store}
}

func (r *WalletRepo) GetByAddress(ctx context.Context, address string, chain domain.Chain) (*domain.Wallet, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.findLocked(address, chain), nil
}

func (r *WalletRepo) findLocked(address string, chain domain.Chain) *domain.Wallet {
	for _, w := range r.store.wallets {
		if w.Address == address && w.Chain == chain {
			cp := *w
			return &cp
		}
	}
	return nil
}

func (r *WalletRepo) GetOrCreate(ctx context.Context, wallet *domain.Wallet) (*domain.Wallet, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if w := r.findLocked(wallet.Address, wallet.Chain); w != nil {
		return w, nil
	}
	w := *wallet
	w.ID = r.store.id()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now()
	}
	r.store.wallets[w.ID] = &w
	cp := w
	return &cp, nil
}

func (r *WalletRepo) ListTracked(ctx context.Context) ([]*domain.Wallet, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	ids := make(map[int64]bool)
	for key := range r.store.clientWallets {
		if c, ok := r.store.clients[key[0]]; ok && c.AlertsEnabled {
			ids[key[1]] = true
		}
	}
	var out []*domain.Wallet
	for id := range ids {
		if w, ok := r.store.wallets[id]; ok {
			cp := *w
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *WalletRepo) ListByClient(ctx context.Context, clientID int64) ([]*domain.Wallet, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.Wallet
	for key := range r.store.clientWallets {
		if key[0] != clientID {
			continue
		}
		if w, ok := r.store.wallets[key[1]]; ok {
			cp := *w
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *WalletRepo) Subscribe(ctx context.Context, clientID, walletID int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := [2]int64{clientID, walletID}
	if _, ok := r.store.clientWallets[key]; ok {
		return domain.ErrDuplicateSubscription
	}
	r.store.clientWallets[key] = &domain.ClientWallet{
		ClientID:  clientID,
		WalletID:  walletID,
		CreatedAt: time.Now(),
	}
	return nil
}

func (r *WalletRepo) Unsubscribe(ctx context.Context, clientID, walletID int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := [2]int64{clientID, walletID}
	if _, ok := r.store.clientWallets[key]; !ok {
		return domain.ErrSubscriptionNotFound
	}
	delete(r.store.clientWallets, key)
	return nil
}

func (r *WalletRepo) Count(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.wallets), nil
}

// -----------------------------------------------------------------------------
// Coin Repository
// -----------------------------------------------------------------------------

type CoinRepo struct {
	store *MemoryStorage
}

func NewCoinRepo(store *MemoryStorage) *CoinRepo {
	return &CoinRepo{store: store}
}

func (r *CoinRepo) findLocked(address string, chain domain.Chain) *domain.Coin {
	for _, c := range r.store.coins {
		if c.Address == address && c.Chain == chain {
			cp := *c
			return &cp
		}
	}
	return nil
}

func (r *CoinRepo) GetByAddress(ctx context.Context, address string, chain domain.Chain) (*domain.Coin, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.findLocked(address, chain), nil
}

func (r *CoinRepo) GetByAddresses(ctx context.Context, chain domain.Chain, addresses []string) ([]*domain.Coin, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.Coin
	for _, a := range addresses {
		if c := r.findLocked(a, chain); c != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *CoinRepo) GetOrCreate(ctx context.Context, coin *domain.Coin) (*domain.Coin, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if c := r.findLocked(coin.Address, coin.Chain); c != nil {
		return c, nil
	}
	c := *coin
	c.ID = r.store.id()
	r.store.coins[c.ID] = &c
	cp := c
	return &cp, nil
}

func (r *CoinRepo) GroupTrackedByChain(ctx context.Context) (map[domain.Chain][]string, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	seen := make(map[int64]bool)
	out := make(map[domain.Chain][]string)
	for key := range r.store.clientCoins {
		if seen[key.CoinID] {
			continue
		}
		seen[key.CoinID] = true
		if c, ok := r.store.coins[key.CoinID]; ok {
			out[c.Chain] = append(out[c.Chain], c.Address)
		}
	}
	for chain := range out {
		sort.Strings(out[chain])
	}
	return out, nil
}

func (r *CoinRepo) ListByClient(ctx context.Context, clientID int64) ([]*domain.ClientCoin, []*domain.Coin, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var subs []*domain.ClientCoin
	for key, sub := range r.store.clientCoins {
		if key.ClientID == clientID {
			cp := *sub
			subs = append(subs, &cp)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].CoinID < subs[j].CoinID })
	coins := make([]*domain.Coin, 0, len(subs))
	for _, sub := range subs {
		cp := *r.store.coins[sub.CoinID]
		coins = append(coins, &cp)
	}
	return subs, coins, nil
}

func (r *CoinRepo) Subscribe(ctx context.Context, sub *domain.ClientCoin) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := domain.ClientCoinKey{ClientID: sub.ClientID, CoinID: sub.CoinID}
	if _, ok := r.store.clientCoins[key]; ok {
		return domain.ErrDuplicateSubscription
	}
	cp := *sub
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.store.clientCoins[key] = &cp
	return nil
}

func (r *CoinRepo) Unsubscribe(ctx context.Context, clientID, coinID int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := domain.ClientCoinKey{ClientID: clientID, CoinID: coinID}
	if _, ok := r.store.clientCoins[key]; !ok {
		return domain.ErrSubscriptionNotFound
	}
	delete(r.store.clientCoins, key)
	return nil
}

func (r *CoinRepo) UpdateTracking(ctx context.Context, sub *domain.ClientCoin) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := domain.ClientCoinKey{ClientID: sub.ClientID, CoinID: sub.CoinID}
	cur, ok := r.store.clientCoins[key]
	if !ok {
		return domain.ErrSubscriptionNotFound
	}
	cur.Direction = sub.Direction
	cur.StartPrice = sub.StartPrice
	cur.Percentage = sub.Percentage
	cur.NotificationSent = false
	return nil
}

func (r *CoinRepo) PendingAlerts(ctx context.Context, coinID int64) ([]*domain.ClientCoin, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.ClientCoin
	for key, sub := range r.store.clientCoins {
		if key.CoinID != coinID || sub.NotificationSent || !sub.Tracking() {
			continue
		}
		if c, ok := r.store.clients[key.ClientID]; !ok || !c.AlertsEnabled {
			continue
		}
		cp := *sub
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out, nil
}

func (r *CoinRepo) MarkNotified(ctx context.Context, keys []domain.ClientCoinKey) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, k := range keys {
		if sub, ok := r.store.clientCoins[k]; ok {
			sub.NotificationSent = true
		}
	}
	return nil
}

func (r *CoinRepo) Count(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.coins), nil
}

// -----------------------------------------------------------------------------
// Transaction Repository
// -----------------------------------------------------------------------------

type TxRepo struct {
	store *MemoryStorage
}

func NewTxRepo(store *MemoryStorage) *TxRepo {
	return &TxRepo{store: store}
}

func (r *TxRepo) ExistingSignatures(ctx context.Context, walletID int64, sigs []string) ([]string, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []string
	for _, s := range sigs {
		if _, ok := r.store.txs[domain.TxKey{WalletID: walletID, Signature: s}]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *TxRepo) SaveBatch(ctx context.Context, txs []*domain.Transaction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, tx := range txs {
		key := domain.TxKey{WalletID: tx.WalletID, Signature: tx.Signature}
		cp := *tx
		if cur, ok := r.store.txs[key]; ok {
			cp.ID = cur.ID
			cp.Sent = cur.Sent || tx.Sent
		} else {
			cp.ID = r.store.id()
		}
		r.store.txs[key] = &cp
	}
	return nil
}

func (r *TxRepo) SavePlaceholders(ctx context.Context, walletID int64, sigs []string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, s := range sigs {
		key := domain.TxKey{WalletID: walletID, Signature: s}
		if _, ok := r.store.txs[key]; ok {
			continue
		}
		r.store.txs[key] = &domain.Transaction{ID: r.store.id(), WalletID: walletID, Signature: s}
	}
	return nil
}

func (r *TxRepo) MarkSent(ctx context.Context, keys []domain.TxKey) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, k := range keys {
		if tx, ok := r.store.txs[k]; ok {
			tx.Sent = true
		}
	}
	return nil
}

// Get returns a stored row, or nil. Used by tests.
func (r *TxRepo) Get(walletID int64, sig string) *domain.Transaction {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	tx, ok := r.store.txs[domain.TxKey{WalletID: walletID, Signature: sig}]
	if !ok {
		return nil
	}
	cp := *tx
	return &cp
}

// Len returns the number of stored rows.
func (r *TxRepo) Len() int {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.txs)
}

// -----------------------------------------------------------------------------
// Filters Repository
// -----------------------------------------------------------------------------

type FiltersRepo struct {
	store *MemoryStorage
}

func NewFiltersRepo(store *MemoryStorage) *FiltersRepo {
	return &FiltersRepo{store: store}
}

func (r *FiltersRepo) Get(ctx context.Context, clientID int64) (*domain.ClientFilters, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	f, ok := r.store.filters[clientID]
	if !ok {
		return nil, nil
	}
	cp := *f
	cp.Results = append([]domain.CoinSummary(nil), f.Results...)
	return &cp, nil
}

func (r *FiltersRepo) Save(ctx context.Context, filters *domain.ClientFilters) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *filters
	cp.Results = append([]domain.CoinSummary(nil), filters.Results...)
	cp.UpdatedAt = time.Now()
	r.store.filters[cp.ClientID] = &cp
	return nil
}

func (r *FiltersRepo) Delete(ctx context.Context, clientID int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.filters, clientID)
	return nil
}

func (r *FiltersRepo) DeleteStale(ctx context.Context, before time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	n := 0
	for id, f := range r.store.filters {
		if f.UpdatedAt.Before(before) {
			delete(r.store.filters, id)
			n++
		}
	}
	return n, nil
}
