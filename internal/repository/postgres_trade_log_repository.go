package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketmaker-backend/internal/domain"
)

// PostgresTradeLogRepository stores the append-only trade log. Entries
// are never updated or deleted; they exist for observability and
// manual reconciliation.
type PostgresTradeLogRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresTradeLogRepository(pool *pgxpool.Pool) *PostgresTradeLogRepository {
	return &PostgresTradeLogRepository{pool: pool}
}

const tradeLogColumns = `
	id, owner, token_address, action, amount,
	price_before, price_after, tx_hash,
	usdt_balance, token_balance, success, error_message,
	next_trade_at, created_at`

func (r *PostgresTradeLogRepository) Append(entry *domain.TradeLogEntry) error {
	if entry == nil {
		return errors.New("nil entry")
	}

	_, err := r.pool.Exec(context.Background(), `
		insert into trade_log(`+tradeLogColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		entry.ID,
		entry.Owner,
		entry.TokenAddress,
		string(entry.Action),
		entry.Amount,
		entry.PriceBefore,
		entry.PriceAfter,
		entry.TxHash,
		entry.USDTBalance,
		entry.TokenBalance,
		entry.Success,
		entry.ErrorMessage,
		nullableTime(entry.NextTradeAt),
		entry.CreatedAt,
	)
	return err
}

func (r *PostgresTradeLogRepository) History(owner, tokenAddress string, limit int) []*domain.TradeLogEntry {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(context.Background(), `
		select `+tradeLogColumns+`
		from trade_log
		where owner = $1 and token_address = $2
		order by created_at desc
		limit $3
	`, owner, tokenAddress, limit)
	if err != nil {
		return []*domain.TradeLogEntry{}
	}
	defer rows.Close()
	return collectTradeLog(rows)
}

func (r *PostgresTradeLogRepository) Recent(limit int) []*domain.TradeLogEntry {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(context.Background(), `
		select `+tradeLogColumns+`
		from trade_log
		order by created_at desc
		limit $1
	`, limit)
	if err != nil {
		return []*domain.TradeLogEntry{}
	}
	defer rows.Close()
	return collectTradeLog(rows)
}

func collectTradeLog(rows interface {
	Next() bool
	Scan(dest ...any) error
}) []*domain.TradeLogEntry {
	entries := make([]*domain.TradeLogEntry, 0)
	for rows.Next() {
		var e domain.TradeLogEntry
		var action string
		var nextTradeAt pgtype.Timestamptz

		if err := rows.Scan(
			&e.ID,
			&e.Owner,
			&e.TokenAddress,
			&action,
			&e.Amount,
			&e.PriceBefore,
			&e.PriceAfter,
			&e.TxHash,
			&e.USDTBalance,
			&e.TokenBalance,
			&e.Success,
			&e.ErrorMessage,
			&nextTradeAt,
			&e.CreatedAt,
		); err != nil {
			continue
		}
		e.Action = domain.TradeAction(action)
		if nextTradeAt.Valid {
			v := nextTradeAt.Time
			e.NextTradeAt = &v
		}
		entries = append(entries, &e)
	}
	return entries
}

var _ domain.TradeLogRepository = (*PostgresTradeLogRepository)(nil)
