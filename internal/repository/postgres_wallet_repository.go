package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketmaker-backend/internal/domain"
)

// PostgresOwnerWalletStore reads custodial owner wallets. Wallet rows
// are written by the account layer; this side only resolves them for
// funding and refunds.
type PostgresOwnerWalletStore struct {
	pool *pgxpool.Pool
}

func NewPostgresOwnerWalletStore(pool *pgxpool.Pool) *PostgresOwnerWalletStore {
	return &PostgresOwnerWalletStore{pool: pool}
}

func (r *PostgresOwnerWalletStore) Get(ctx context.Context, owner string) (domain.Wallet, error) {
	var w domain.Wallet
	err := r.pool.QueryRow(ctx,
		`select address, private_key from owner_wallets where owner = $1`, owner,
	).Scan(&w.Address, &w.PrivateKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Wallet{}, domain.ErrWalletNotFound
		}
		return domain.Wallet{}, err
	}
	return w, nil
}

// PostgresTokenRegistry answers token existence from the indexer's
// tokens table.
type PostgresTokenRegistry struct {
	pool *pgxpool.Pool
}

func NewPostgresTokenRegistry(pool *pgxpool.Pool) *PostgresTokenRegistry {
	return &PostgresTokenRegistry{pool: pool}
}

func (r *PostgresTokenRegistry) Exists(ctx context.Context, tokenAddress string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`select exists(select 1 from tokens where address = $1)`, tokenAddress,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

var (
	_ domain.OwnerWalletStore = (*PostgresOwnerWalletStore)(nil)
	_ domain.TokenRegistry    = (*PostgresTokenRegistry)(nil)
)
