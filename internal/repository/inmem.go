package repository

import (
	"context"
	"sync"

	"marketmaker-backend/internal/domain"
)

// In-memory repositories, used in tests and when no DATABASE_URL is
// configured. Records are copied on the way in and out so callers never
// share mutable state with the store.

type InMemoryBotRepository struct {
	bots map[string]domain.Bot
	mu   sync.RWMutex
}

func NewInMemoryBotRepository() *InMemoryBotRepository {
	return &InMemoryBotRepository{bots: make(map[string]domain.Bot)}
}

func (r *InMemoryBotRepository) Create(bot *domain.Bot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := bot.Key()
	if _, ok := r.bots[key]; ok {
		return domain.ErrBotExists
	}
	r.bots[key] = *bot
	return nil
}

func (r *InMemoryBotRepository) Get(owner, tokenAddress string) (*domain.Bot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bot, ok := r.bots[domain.BotKey(owner, tokenAddress)]
	if !ok {
		return nil, domain.ErrBotNotFound
	}
	copied := bot
	return &copied, nil
}

func (r *InMemoryBotRepository) Update(bot *domain.Bot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := bot.Key()
	if _, ok := r.bots[key]; !ok {
		return domain.ErrBotNotFound
	}
	r.bots[key] = *bot
	return nil
}

func (r *InMemoryBotRepository) Delete(owner, tokenAddress string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := domain.BotKey(owner, tokenAddress)
	if _, ok := r.bots[key]; !ok {
		return domain.ErrBotNotFound
	}
	delete(r.bots, key)
	return nil
}

func (r *InMemoryBotRepository) GetActive() []*domain.Bot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	active := make([]*domain.Bot, 0)
	for _, bot := range r.bots {
		if bot.Active {
			copied := bot
			active = append(active, &copied)
		}
	}
	return active
}

type InMemoryTradeLogRepository struct {
	entries []domain.TradeLogEntry
	mu      sync.RWMutex
}

func NewInMemoryTradeLogRepository() *InMemoryTradeLogRepository {
	return &InMemoryTradeLogRepository{}
}

func (r *InMemoryTradeLogRepository) Append(entry *domain.TradeLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *InMemoryTradeLogRepository) History(owner, tokenAddress string, limit int) []*domain.TradeLogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.TradeLogEntry, 0)
	for i := len(r.entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		e := r.entries[i]
		if e.Owner == owner && e.TokenAddress == tokenAddress {
			out = append(out, &e)
		}
	}
	return out
}

func (r *InMemoryTradeLogRepository) Recent(limit int) []*domain.TradeLogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.TradeLogEntry, 0)
	for i := len(r.entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		e := r.entries[i]
		out = append(out, &e)
	}
	return out
}

// InMemoryOwnerWalletStore maps owners to their custodial wallets.
type InMemoryOwnerWalletStore struct {
	wallets map[string]domain.Wallet
	mu      sync.RWMutex
}

func NewInMemoryOwnerWalletStore() *InMemoryOwnerWalletStore {
	return &InMemoryOwnerWalletStore{wallets: make(map[string]domain.Wallet)}
}

func (r *InMemoryOwnerWalletStore) Put(owner string, wallet domain.Wallet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wallets[owner] = wallet
}

func (r *InMemoryOwnerWalletStore) Get(ctx context.Context, owner string) (domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wallet, ok := r.wallets[owner]
	if !ok {
		return domain.Wallet{}, domain.ErrWalletNotFound
	}
	return wallet, nil
}

// InMemoryTokenRegistry is a static allow-list of token addresses.
type InMemoryTokenRegistry struct {
	tokens map[string]bool
	mu     sync.RWMutex
}

func NewInMemoryTokenRegistry(tokenAddresses ...string) *InMemoryTokenRegistry {
	tokens := make(map[string]bool, len(tokenAddresses))
	for _, addr := range tokenAddresses {
		tokens[addr] = true
	}
	return &InMemoryTokenRegistry{tokens: tokens}
}

func (r *InMemoryTokenRegistry) Add(tokenAddress string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[tokenAddress] = true
}

func (r *InMemoryTokenRegistry) Exists(ctx context.Context, tokenAddress string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tokens[tokenAddress], nil
}

var (
	_ domain.BotRepository      = (*InMemoryBotRepository)(nil)
	_ domain.TradeLogRepository = (*InMemoryTradeLogRepository)(nil)
	_ domain.OwnerWalletStore   = (*InMemoryOwnerWalletStore)(nil)
	_ domain.TokenRegistry      = (*InMemoryTokenRegistry)(nil)
)
