package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketmaker-backend/internal/domain"
)

// PostgresBotRepository stores bot records in Postgres, keyed by
// (owner, token_address). The whole row is written back per mutation.
type PostgresBotRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresBotRepository(pool *pgxpool.Pool) *PostgresBotRepository {
	return &PostgresBotRepository{pool: pool}
}

const botColumns = `
	owner, token_address, wallet_address, private_key,
	target_growth_per_hour, budget_usdt,
	min_trade_pct, max_trade_pct, min_pause_sec, max_pause_sec, growth_buy_bias,
	active, consecutive_buys, consecutive_sells, total_trades,
	total_buy_volume, total_sell_volume,
	last_usdt_balance, last_token_balance, initial_price,
	created_at, last_trade_at, next_trade_at`

func (r *PostgresBotRepository) Create(bot *domain.Bot) error {
	if bot == nil {
		return errors.New("nil bot")
	}

	_, err := r.pool.Exec(context.Background(), `
		insert into market_maker_bots(`+botColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
	`,
		bot.Owner,
		bot.TokenAddress,
		bot.WalletAddress,
		bot.PrivateKey,
		bot.TargetGrowthPerHour,
		bot.BudgetUSDT,
		bot.MinTradePct,
		bot.MaxTradePct,
		bot.MinPauseSec,
		bot.MaxPauseSec,
		bot.GrowthBuyBias,
		bot.Active,
		bot.ConsecutiveBuys,
		bot.ConsecutiveSells,
		bot.TotalTrades,
		bot.TotalBuyVolume,
		bot.TotalSellVolume,
		bot.LastUSDTBalance,
		bot.LastTokenBalance,
		bot.InitialPrice,
		bot.CreatedAt,
		nullableTime(bot.LastTradeAt),
		nullableTime(bot.NextTradeAt),
	)
	return err
}

func (r *PostgresBotRepository) Get(owner, tokenAddress string) (*domain.Bot, error) {
	row := r.pool.QueryRow(context.Background(), `
		select `+botColumns+`
		from market_maker_bots
		where owner = $1 and token_address = $2
	`, owner, tokenAddress)

	bot, err := scanBot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBotNotFound
		}
		return nil, err
	}
	return bot, nil
}

func (r *PostgresBotRepository) Update(bot *domain.Bot) error {
	if bot == nil {
		return errors.New("nil bot")
	}

	_, err := r.pool.Exec(context.Background(), `
		update market_maker_bots set
			wallet_address=$3,
			private_key=$4,
			target_growth_per_hour=$5,
			budget_usdt=$6,
			min_trade_pct=$7,
			max_trade_pct=$8,
			min_pause_sec=$9,
			max_pause_sec=$10,
			growth_buy_bias=$11,
			active=$12,
			consecutive_buys=$13,
			consecutive_sells=$14,
			total_trades=$15,
			total_buy_volume=$16,
			total_sell_volume=$17,
			last_usdt_balance=$18,
			last_token_balance=$19,
			initial_price=$20,
			created_at=$21,
			last_trade_at=$22,
			next_trade_at=$23
		where owner=$1 and token_address=$2
	`,
		bot.Owner,
		bot.TokenAddress,
		bot.WalletAddress,
		bot.PrivateKey,
		bot.TargetGrowthPerHour,
		bot.BudgetUSDT,
		bot.MinTradePct,
		bot.MaxTradePct,
		bot.MinPauseSec,
		bot.MaxPauseSec,
		bot.GrowthBuyBias,
		bot.Active,
		bot.ConsecutiveBuys,
		bot.ConsecutiveSells,
		bot.TotalTrades,
		bot.TotalBuyVolume,
		bot.TotalSellVolume,
		bot.LastUSDTBalance,
		bot.LastTokenBalance,
		bot.InitialPrice,
		bot.CreatedAt,
		nullableTime(bot.LastTradeAt),
		nullableTime(bot.NextTradeAt),
	)
	return err
}

func (r *PostgresBotRepository) Delete(owner, tokenAddress string) error {
	tag, err := r.pool.Exec(context.Background(),
		`delete from market_maker_bots where owner=$1 and token_address=$2`, owner, tokenAddress)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBotNotFound
	}
	return nil
}

func (r *PostgresBotRepository) GetActive() []*domain.Bot {
	rows, err := r.pool.Query(context.Background(), `
		select `+botColumns+`
		from market_maker_bots
		where active = true
		order by created_at
	`)
	if err != nil {
		return []*domain.Bot{}
	}
	defer rows.Close()

	bots := make([]*domain.Bot, 0)
	for rows.Next() {
		bot, scanErr := scanBot(rows)
		if scanErr != nil {
			continue
		}
		bots = append(bots, bot)
	}
	return bots
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBot(s scanner) (*domain.Bot, error) {
	var b domain.Bot
	var lastTradeAt pgtype.Timestamptz
	var nextTradeAt pgtype.Timestamptz

	if err := s.Scan(
		&b.Owner,
		&b.TokenAddress,
		&b.WalletAddress,
		&b.PrivateKey,
		&b.TargetGrowthPerHour,
		&b.BudgetUSDT,
		&b.MinTradePct,
		&b.MaxTradePct,
		&b.MinPauseSec,
		&b.MaxPauseSec,
		&b.GrowthBuyBias,
		&b.Active,
		&b.ConsecutiveBuys,
		&b.ConsecutiveSells,
		&b.TotalTrades,
		&b.TotalBuyVolume,
		&b.TotalSellVolume,
		&b.LastUSDTBalance,
		&b.LastTokenBalance,
		&b.InitialPrice,
		&b.CreatedAt,
		&lastTradeAt,
		&nextTradeAt,
	); err != nil {
		return nil, err
	}

	if lastTradeAt.Valid {
		v := lastTradeAt.Time
		b.LastTradeAt = &v
	}
	if nextTradeAt.Valid {
		v := nextTradeAt.Time
		b.NextTradeAt = &v
	}

	return &b, nil
}

func nullableTime(v *time.Time) any {
	if v == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Valid: true, Time: *v}
}

var _ domain.BotRepository = (*PostgresBotRepository)(nil)
