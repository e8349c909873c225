package usecase

import (
	"fmt"
	"log"
	"sync"
	"time"

	"marketmaker-backend/internal/domain"
	"marketmaker-backend/internal/infrastructure/fcm"
	"marketmaker-backend/internal/repository"
)

// AlertService pushes FCM notifications for conditions that need
// operator attention: exhausted trade retries and failed refunds left
// for manual reconciliation. Alerts per bot are rate limited with a
// cooldown so a flapping bot does not spam devices.
type AlertService struct {
	fcmClient *fcm.Client
	tokenRepo *repository.DeviceTokenRepository

	mu       sync.Mutex
	notified map[string]time.Time // bot key -> last alert
	cooldown time.Duration
}

func NewAlertService(fcmClient *fcm.Client, tokenRepo *repository.DeviceTokenRepository) *AlertService {
	return &AlertService{
		fcmClient: fcmClient,
		tokenRepo: tokenRepo,
		notified:  make(map[string]time.Time),
		cooldown:  5 * time.Minute,
	}
}

// TradeFailed notifies that a bot's trade failed after all retries.
func (a *AlertService) TradeFailed(bot *domain.Bot, err error) {
	title := fmt.Sprintf("⚠️ Bot %s trade failed", bot.TokenAddress)
	body := fmt.Sprintf("Owner %s | %v", bot.Owner, err)
	a.send(bot.Key(), title, body, map[string]string{
		"type":  "trade_failed",
		"owner": bot.Owner,
		"token": bot.TokenAddress,
	})
}

// RefundFailed notifies that a deletion refund did not go through and
// the custody balance needs manual reconciliation.
func (a *AlertService) RefundFailed(bot *domain.Bot, asset string, err error) {
	title := fmt.Sprintf("🚨 Refund failed for bot %s", bot.TokenAddress)
	body := fmt.Sprintf("%s refund to %s failed: %v", asset, bot.Owner, err)
	a.send(bot.Key(), title, body, map[string]string{
		"type":   "refund_failed",
		"owner":  bot.Owner,
		"token":  bot.TokenAddress,
		"asset":  asset,
		"wallet": bot.WalletAddress,
	})
}

func (a *AlertService) send(key, title, body string, data map[string]string) {
	if a.fcmClient == nil || !a.fcmClient.IsEnabled() {
		return
	}

	now := time.Now()
	a.mu.Lock()
	if last, ok := a.notified[key]; ok && now.Sub(last) < a.cooldown {
		a.mu.Unlock()
		return
	}
	a.notified[key] = now
	for k, ts := range a.notified {
		if now.Sub(ts) > a.cooldown*2 {
			delete(a.notified, k)
		}
	}
	a.mu.Unlock()

	tokens := a.tokenRepo.GetAllTokens()
	if len(tokens) == 0 {
		return
	}
	if err := a.fcmClient.SendMulticast(tokens, title, body, data); err != nil {
		log.Printf("Error sending alert %q: %v", title, err)
	}
}

var _ TradeAlerter = (*AlertService)(nil)
