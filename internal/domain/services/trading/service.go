// Package trading records simulated trading session gains and sweeps them
// into the main balance, once per session key.
package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/covest/covest-service/internal/domain/entities"
	domainerrors "github.com/covest/covest-service/internal/domain/errors"
	"github.com/covest/covest-service/internal/domain/services/ledger"
	"github.com/covest/covest-service/internal/domain/services/notify"
	"github.com/covest/covest-service/pkg/logger"
	"github.com/covest/covest-service/pkg/metrics"
)

// Cooldown is the minimum gap between two trading sessions per user.
const Cooldown = 24 * time.Hour

// AccountStore is the slice of the account repository this service needs.
type AccountStore interface {
	Get(ctx context.Context, userID int64) (*entities.Account, error)
	AtomicUpdate(ctx context.Context, userID int64, mutate func(*entities.Account) error) (*entities.Account, error)
}

// SessionStore records processed sessions and audit entries.
type SessionStore interface {
	RecordSession(ctx context.Context, session *entities.TradingSession) (bool, error)
	Append(ctx context.Context, entry *entities.LedgerEntry) error
}

// Service settles trading gains.
type Service struct {
	accounts AccountStore
	sessions SessionStore
	notifier notify.Notifier
	catalog  entities.PlanCatalog
	now      func() time.Time
	log      *logger.Logger
}

// NewService creates a trading service. now is replaceable for tests; nil
// means the wall clock.
func NewService(accounts AccountStore, sessions SessionStore, notifier notify.Notifier,
	catalog entities.PlanCatalog, now func() time.Time, log *logger.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		accounts: accounts,
		sessions: sessions,
		notifier: notifier,
		catalog:  catalog,
		now:      now,
		log:      log,
	}
}

// StartSession checks the cooldown gate without mutating anything. The chat
// layer calls this before animating a session.
func (s *Service) StartSession(ctx context.Context, userID int64) error {
	acct, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return err
	}
	return s.checkCooldown(acct)
}

// RecordGain settles one session's gain. Idempotent per (user, sessionKey):
// a replayed session records nothing and sweeps nothing.
func (s *Service) RecordGain(ctx context.Context, userID int64, sessionKey string, gain decimal.Decimal) (decimal.Decimal, error) {
	if !gain.IsPositive() {
		return decimal.Zero, domainerrors.ValidationError("gain", "gain must be positive")
	}

	first, err := s.sessions.RecordSession(ctx, &entities.TradingSession{
		UserID:     userID,
		SessionKey: sessionKey,
		Gain:       gain,
	})
	if err != nil {
		return decimal.Zero, err
	}
	if !first {
		s.log.Info("trading session already settled", "user_id", userID, "session_key", sessionKey)
		return decimal.Zero, domainerrors.ErrSessionReplayed
	}

	var swept decimal.Decimal
	_, err = s.accounts.AtomicUpdate(ctx, userID, func(acct *entities.Account) error {
		if err := s.checkCooldown(acct); err != nil {
			return err
		}
		swept = ledger.CreditSub(acct, entities.SubAccountTrading, gain)
		now := s.now().UTC()
		acct.LastTradeAt = &now
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	if err := s.sessions.Append(ctx, &entities.LedgerEntry{
		UserID:      userID,
		EntryType:   entities.EntryTradingGain,
		Amount:      swept,
		Description: fmt.Sprintf("trading session %s", sessionKey),
	}); err != nil {
		s.log.Error("audit append failed", "user_id", userID, "error", err)
	}

	metrics.GainsSwept.WithLabelValues(string(entities.SubAccountTrading)).Inc()
	s.notifier.Notify(ctx, userID, notify.EventTradingGain, map[string]interface{}{
		"gain": swept.String(),
	})
	s.log.Info("trading gain swept",
		"user_id", userID, "session_key", sessionKey, "gain", swept.String())
	return swept, nil
}

// DailyGain returns the configured gain for the account's best plan,
// used by the session simulator.
func (s *Service) DailyGain(ctx context.Context, userID int64) (decimal.Decimal, error) {
	acct, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	best := s.catalog.Get(entities.PlanFree)
	for _, key := range acct.ActivePlans {
		if p, ok := s.catalog[key]; ok && p.DailyGain.GreaterThan(best.DailyGain) {
			best = p
		}
	}
	return best.DailyGain, nil
}

func (s *Service) checkCooldown(acct *entities.Account) error {
	if acct.LastTradeAt == nil {
		return nil
	}
	if s.now().Sub(*acct.LastTradeAt) < Cooldown {
		return domainerrors.ErrTradeCooldown
	}
	return nil
}
