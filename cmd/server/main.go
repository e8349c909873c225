package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"marketmaker-backend/internal/config"
	httpdelivery "marketmaker-backend/internal/delivery/http"
	"marketmaker-backend/internal/delivery/websocket"
	"marketmaker-backend/internal/domain"
	"marketmaker-backend/internal/infrastructure/chain"
	"marketmaker-backend/internal/infrastructure/db"
	"marketmaker-backend/internal/infrastructure/fcm"
	"marketmaker-backend/internal/repository"
	"marketmaker-backend/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	// 1. Chain client: oracle, exchange and the tx submission layer.
	chainClient, err := chain.Dial(cfg.RPCURL, cfg.ChainID, cfg.CurveAddress, cfg.OperatorKey, cfg.TopUpAmountUSDT)
	if err != nil {
		log.Fatal(err)
	}

	// 2. Persistence: Postgres when configured, in-memory otherwise.
	var (
		bots    domain.BotRepository
		logs    domain.TradeLogRepository
		tokens  domain.TokenRegistry
		wallets domain.OwnerWalletStore
	)
	if cfg.DatabaseURL != "" {
		ctx := context.Background()
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolConfigFromEnv())
		if err != nil {
			log.Fatal(err)
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			log.Fatal(err)
		}
		bots = repository.NewPostgresBotRepository(pool)
		logs = repository.NewPostgresTradeLogRepository(pool)
		tokens = repository.NewPostgresTokenRegistry(pool)
		wallets = repository.NewPostgresOwnerWalletStore(pool)
	} else {
		log.Println("Warning: DATABASE_URL not set, using in-memory stores")
		bots = repository.NewInMemoryBotRepository()
		logs = repository.NewInMemoryTradeLogRepository()
		tokens = repository.NewInMemoryTokenRegistry()
		wallets = repository.NewInMemoryOwnerWalletStore()
	}

	// 3. Alerts (FCM optional). Devices subscribe over the token
	// registration endpoint below.
	deviceTokens := repository.NewDeviceTokenRepository()
	fcmClient, err := fcm.NewClient()
	if err != nil {
		log.Printf("FCM init failed, alerts disabled: %v", err)
	}
	var alerts usecase.TradeAlerter
	if fcmClient != nil {
		alerts = usecase.NewAlertService(fcmClient, deviceTokens)
	}

	// 4. Engine: scheduler, tick executor, lifecycle manager.
	scheduler := usecase.NewTradeScheduler(bots)
	usecase.NewTradeExecutor(bots, logs, chainClient, chainClient, scheduler, alerts)
	manager := usecase.NewBotManager(bots, logs, tokens, chainClient, chainClient,
		chain.NewWalletFactory(), wallets, scheduler, alerts)

	// 5. Re-arm bots that were active before the restart.
	manager.InitializeOnStartup()

	// 6. Delivery: live trade feed plus alert-device registration.
	wsHandler := websocket.NewHandler(logs)
	http.HandleFunc("/ws/trades", wsHandler.Handle)

	tokenHandler := httpdelivery.NewDeviceTokenHandler(deviceTokens)
	http.HandleFunc("/api/device-tokens/register", tokenHandler.HandleRegister)
	http.HandleFunc("/api/device-tokens/unregister", tokenHandler.HandleUnregister)

	go func() {
		log.Printf("Server listening on %s", cfg.ListenAddr)
		if err := http.ListenAndServe(cfg.ListenAddr, nil); err != nil {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down, cancelling bot timers")
	scheduler.CancelAll()
}
