package usecase

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"marketmaker-backend/internal/domain"
)

// TradeScheduler owns one timer per active bot. The registry guarantees
// at most one outstanding timer per bot key; arming a key replaces any
// prior timer. Timer creation and randomness are injectable so tests
// run without a real clock.
type TradeScheduler struct {
	bots    domain.BotRepository
	execute func(owner, tokenAddress string)

	afterFunc func(d time.Duration, f func()) *time.Timer
	draw      func() float64
	now       func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewTradeScheduler(bots domain.BotRepository) *TradeScheduler {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &TradeScheduler{
		bots:      bots,
		afterFunc: time.AfterFunc,
		draw:      rng.Float64,
		now:       time.Now,
		timers:    make(map[string]*time.Timer),
	}
}

// SetExecutor wires the function invoked when a timer fires. Must be
// called before any bot is scheduled.
func (s *TradeScheduler) SetExecutor(execute func(owner, tokenAddress string)) {
	s.execute = execute
}

// ScheduleNext arms the bot's next trade after a uniformly random pause
// within its configured range. A bot that is gone or no longer active
// is left alone.
func (s *TradeScheduler) ScheduleNext(owner, tokenAddress string) error {
	bot, err := s.loadSchedulable(owner, tokenAddress)
	if err != nil {
		return err
	}
	if bot == nil {
		return nil
	}

	pauseRange := bot.MaxPauseSec - bot.MinPauseSec
	pause := time.Duration(float64(bot.MinPauseSec)+s.draw()*float64(pauseRange)) * time.Second

	return s.scheduleAt(bot, pause)
}

// ScheduleAfter arms the bot's next trade after an explicit delay, used
// for error backoff instead of the random pause.
func (s *TradeScheduler) ScheduleAfter(owner, tokenAddress string, delay time.Duration) error {
	bot, err := s.loadSchedulable(owner, tokenAddress)
	if err != nil {
		return err
	}
	if bot == nil {
		return nil
	}
	return s.scheduleAt(bot, delay)
}

// loadSchedulable reloads the bot for scheduling. A gone or inactive
// bot is a nil no-op; a store failure propagates so RescheduleActive
// can deactivate instead of leaving an active bot with no timer.
func (s *TradeScheduler) loadSchedulable(owner, tokenAddress string) (*domain.Bot, error) {
	bot, err := s.bots.Get(owner, tokenAddress)
	if err != nil {
		if errors.Is(err, domain.ErrBotNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading bot %s: %w", domain.BotKey(owner, tokenAddress), err)
	}
	if bot == nil || !bot.Active {
		return nil, nil
	}
	return bot, nil
}

func (s *TradeScheduler) scheduleAt(bot *domain.Bot, delay time.Duration) error {
	if s.execute == nil {
		return fmt.Errorf("scheduler has no executor")
	}

	next := s.now().Add(delay)
	bot.NextTradeAt = &next
	if err := s.bots.Update(bot); err != nil {
		return fmt.Errorf("persisting next trade time: %w", err)
	}

	owner, token, key := bot.Owner, bot.TokenAddress, bot.Key()

	s.mu.Lock()
	defer s.mu.Unlock()
	if prior, ok := s.timers[key]; ok {
		prior.Stop()
	}
	s.timers[key] = s.afterFunc(delay, func() {
		s.clear(key)
		s.execute(owner, token)
	})
	return nil
}

func (s *TradeScheduler) clear(key string) {
	s.mu.Lock()
	delete(s.timers, key)
	s.mu.Unlock()
}

// Cancel clears the bot's timer if one is outstanding. Idempotent.
func (s *TradeScheduler) Cancel(owner, tokenAddress string) {
	key := domain.BotKey(owner, tokenAddress)
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
}

// CancelAll stops every outstanding timer without waiting on in-flight
// trades. Used on process shutdown.
func (s *TradeScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}

// PendingCount reports the number of outstanding timers.
func (s *TradeScheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// RescheduleActive re-arms every bot persisted as active, called once
// on process startup. A bot whose rescheduling fails is marked inactive
// instead of being retried forever.
func (s *TradeScheduler) RescheduleActive() {
	bots := s.bots.GetActive()
	for _, bot := range bots {
		if err := s.ScheduleNext(bot.Owner, bot.TokenAddress); err != nil {
			log.Printf("Failed to reschedule bot %s, deactivating: %v", bot.Key(), err)
			bot.Active = false
			bot.NextTradeAt = nil
			if uerr := s.bots.Update(bot); uerr != nil {
				log.Printf("Failed to deactivate bot %s: %v", bot.Key(), uerr)
			}
		}
	}
	if len(bots) > 0 {
		log.Printf("Rescheduled %d active bot(s) on startup", len(bots))
	}
}
