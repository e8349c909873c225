package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the minimal tables needed by this app.
// This keeps setup simple (no external migration tool), but still gives persistence.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`create table if not exists market_maker_bots (
			owner text not null,
			token_address text not null,
			wallet_address text not null,
			private_key text not null,
			target_growth_per_hour double precision not null,
			budget_usdt double precision not null,
			min_trade_pct double precision not null default 1,
			max_trade_pct double precision not null default 3,
			min_pause_sec int not null default 40,
			max_pause_sec int not null default 80,
			growth_buy_bias double precision not null default 0.02,
			active boolean not null default false,
			consecutive_buys int not null default 0,
			consecutive_sells int not null default 0,
			total_trades int not null default 0,
			total_buy_volume double precision not null default 0,
			total_sell_volume double precision not null default 0,
			last_usdt_balance double precision not null default 0,
			last_token_balance double precision not null default 0,
			initial_price double precision not null default 0,
			created_at timestamptz not null default now(),
			last_trade_at timestamptz null,
			next_trade_at timestamptz null,
			primary key (owner, token_address)
		);`,
		`create index if not exists market_maker_bots_active_idx on market_maker_bots(active);`,
		`create table if not exists trade_log (
			id text primary key,
			owner text not null,
			token_address text not null,
			action text not null,
			amount double precision not null default 0,
			price_before double precision not null default 0,
			price_after double precision not null default 0,
			tx_hash text not null default '',
			usdt_balance double precision not null default 0,
			token_balance double precision not null default 0,
			success boolean not null,
			error_message text not null default '',
			next_trade_at timestamptz null,
			created_at timestamptz not null
		);`,
		`create index if not exists trade_log_bot_idx on trade_log(owner, token_address, created_at desc);`,
		`create index if not exists trade_log_created_idx on trade_log(created_at desc);`,
		`create table if not exists tokens (
			address text primary key,
			name text not null default '',
			symbol text not null default '',
			created_at timestamptz not null default now()
		);`,
		`create table if not exists owner_wallets (
			owner text primary key,
			address text not null,
			private_key text not null,
			created_at timestamptz not null default now()
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
