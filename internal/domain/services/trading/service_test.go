package trading

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covest/covest-service/internal/domain/entities"
	domainerrors "github.com/covest/covest-service/internal/domain/errors"
	"github.com/covest/covest-service/internal/domain/services/notify"
	"github.com/covest/covest-service/pkg/logger"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[int64]*entities.Account
}

func (f *fakeAccounts) Get(_ context.Context, userID int64) (*entities.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[userID]
	if !ok {
		return nil, domainerrors.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccounts) AtomicUpdate(_ context.Context, userID int64, mutate func(*entities.Account) error) (*entities.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[userID]
	if !ok {
		return nil, domainerrors.ErrAccountNotFound
	}
	cp := *a
	if err := mutate(&cp); err != nil {
		return nil, err
	}
	f.accounts[userID] = &cp
	out := cp
	return &out, nil
}

type fakeSessions struct {
	mu      sync.Mutex
	seen    map[string]bool
	entries []entities.LedgerEntry
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{seen: make(map[string]bool)}
}

func (f *fakeSessions) RecordSession(_ context.Context, s *entities.TradingSession) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%d:%s", s.UserID, s.SessionKey)
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeSessions) Append(_ context.Context, e *entities.LedgerEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *e)
	return nil
}

var frozen = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(acct *entities.Account) (*Service, *fakeAccounts, *fakeSessions) {
	accts := &fakeAccounts{accounts: map[int64]*entities.Account{acct.UserID: acct}}
	sessions := newFakeSessions()
	svc := NewService(accts, sessions, notify.Nop{}, entities.DefaultPlans(),
		func() time.Time { return frozen }, logger.New("debug", "test"))
	return svc, accts, sessions
}

func proAccount() *entities.Account {
	return &entities.Account{
		UserID:      9,
		MainBalance: d("1"),
		ActivePlans: pq.StringArray{entities.PlanFree, entities.PlanPro},
	}
}

func TestRecordGain(t *testing.T) {
	ctx := context.Background()

	t.Run("gain sweeps into main", func(t *testing.T) {
		svc, accts, sessions := newTestService(proAccount())

		swept, err := svc.RecordGain(ctx, 9, "s1", d("0.1"))
		require.NoError(t, err)
		assert.True(t, swept.Equal(d("0.1")))

		acct, _ := accts.Get(ctx, 9)
		assert.True(t, acct.MainBalance.Equal(d("1.1")))
		assert.True(t, acct.LifetimeTradingEarnings.Equal(d("0.1")))
		require.NotNil(t, acct.LastTradeAt)
		assert.Equal(t, frozen, *acct.LastTradeAt)
		assert.Len(t, sessions.entries, 1)
	})

	t.Run("replayed session key settles once", func(t *testing.T) {
		svc, accts, _ := newTestService(proAccount())

		_, err := svc.RecordGain(ctx, 9, "s1", d("0.1"))
		require.NoError(t, err)

		_, err = svc.RecordGain(ctx, 9, "s1", d("0.1"))
		assert.ErrorIs(t, err, domainerrors.ErrSessionReplayed)

		acct, _ := accts.Get(ctx, 9)
		assert.True(t, acct.MainBalance.Equal(d("1.1")))
	})

	t.Run("cooldown blocks a second session", func(t *testing.T) {
		acct := proAccount()
		recent := frozen.Add(-time.Hour)
		acct.LastTradeAt = &recent
		svc, _, _ := newTestService(acct)

		_, err := svc.RecordGain(ctx, 9, "s2", d("0.1"))
		assert.ErrorIs(t, err, domainerrors.ErrTradeCooldown)
	})

	t.Run("cooldown elapsed allows trading", func(t *testing.T) {
		acct := proAccount()
		old := frozen.Add(-25 * time.Hour)
		acct.LastTradeAt = &old
		svc, _, _ := newTestService(acct)

		_, err := svc.RecordGain(ctx, 9, "s3", d("0.1"))
		assert.NoError(t, err)
	})

	t.Run("non-positive gain rejected", func(t *testing.T) {
		svc, _, _ := newTestService(proAccount())

		_, err := svc.RecordGain(ctx, 9, "s4", decimal.Zero)
		assert.Error(t, err)
		_, err = svc.RecordGain(ctx, 9, "s5", d("-0.1"))
		assert.Error(t, err)
	})
}

func TestStartSession(t *testing.T) {
	ctx := context.Background()

	acct := proAccount()
	svc, _, _ := newTestService(acct)
	assert.NoError(t, svc.StartSession(ctx, 9))

	recent := frozen.Add(-time.Minute)
	acct2 := proAccount()
	acct2.UserID = 10
	acct2.LastTradeAt = &recent
	svc2, _, _ := newTestService(acct2)
	assert.ErrorIs(t, svc2.StartSession(ctx, 10), domainerrors.ErrTradeCooldown)
}

func TestDailyGain(t *testing.T) {
	ctx := context.Background()

	svc, _, _ := newTestService(proAccount())
	gain, err := svc.DailyGain(ctx, 9)
	require.NoError(t, err)
	// Pro beats the free trial's rate.
	assert.True(t, gain.Equal(d("0.10")))
}
