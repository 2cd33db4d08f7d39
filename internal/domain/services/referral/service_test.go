package referral

import (
	"context"
	"fmt"
	"sync"
	"testing"

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

func newFakeAccounts(accts ...*entities.Account) *fakeAccounts {
	m := make(map[int64]*entities.Account)
	for _, a := range accts {
		m[a.UserID] = a
	}
	return &fakeAccounts{accounts: m}
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

type fakeReferrals struct {
	mu      sync.Mutex
	bonuses []entities.ReferralBonus
	valid   map[string]bool
}

func newFakeReferrals() *fakeReferrals {
	return &fakeReferrals{valid: make(map[string]bool)}
}

func (f *fakeReferrals) RecordBonus(_ context.Context, b *entities.ReferralBonus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bonuses = append(f.bonuses, *b)
	return nil
}

func (f *fakeReferrals) MarkValid(_ context.Context, referrerID, referralID int64, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%d:%d", referrerID, referralID)
	if f.valid[key] {
		return false, nil
	}
	f.valid[key] = true
	return true, nil
}

func (f *fakeReferrals) CountValid(_ context.Context, referrerID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := fmt.Sprintf("%d:", referrerID)
	count := 0
	for k := range f.valid {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			count++
		}
	}
	return count, nil
}

func (f *fakeReferrals) CountReferred(_ context.Context, _ int64) (int, error) {
	return len(f.valid), nil
}

func (f *fakeReferrals) SumBonuses(_ context.Context, referrerID int64) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := decimal.Zero
	for _, b := range f.bonuses {
		if b.ReferrerID == referrerID {
			total = total.Add(b.Amount)
		}
	}
	return total, nil
}

type fakePayments struct {
	mu   sync.Mutex
	rows map[string]*entities.Payment
}

func newFakePayments(payments ...*entities.Payment) *fakePayments {
	m := make(map[string]*entities.Payment)
	for _, p := range payments {
		m[p.InvoiceID] = p
	}
	return &fakePayments{rows: m}
}

func (f *fakePayments) GetByInvoiceID(_ context.Context, invoiceID string) (*entities.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[invoiceID]
	if !ok {
		return nil, domainerrors.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePayments) Settle(_ context.Context, invoiceID string, status entities.PaymentStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[invoiceID]
	if !ok {
		return false, domainerrors.ErrPaymentNotFound
	}
	if p.Status.IsSettled() {
		return false, nil
	}
	p.Status = status
	return true, nil
}

func (f *fakePayments) UpdateStatus(_ context.Context, invoiceID string, status entities.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.rows[invoiceID]; ok {
		p.Status = status
	}
	return nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []entities.LedgerEntry
}

func (f *fakeAudit) Append(_ context.Context, e *entities.LedgerEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *e)
	return nil
}

func referrer() *entities.Account {
	return &entities.Account{
		UserID:            100,
		ActivePlans:       pq.StringArray{entities.PlanFree},
		FreePlanActivated: true,
		ReferralCode:      "ab12cd34ef",
	}
}

func buyer(referrerID int64) *entities.Account {
	return &entities.Account{
		UserID:      200,
		ActivePlans: pq.StringArray{entities.PlanFree},
		ReferrerID:  &referrerID,
	}
}

func basicPurchase(invoiceID string) *entities.Payment {
	return &entities.Payment{
		UserID:    200,
		PlanKey:   entities.PlanBasic,
		Amount:    d("0.5"),
		AmountUSD: d("75"),
		InvoiceID: invoiceID,
		OrderID:   "order-" + invoiceID,
		Status:    entities.PaymentStatusPending,
	}
}

func newTestService(accts *fakeAccounts, refs *fakeReferrals, pays *fakePayments) (*Service, *fakeAudit) {
	audit := &fakeAudit{}
	svc := NewService(accts, refs, pays, audit, notify.Nop{},
		entities.DefaultPlans(), logger.New("debug", "test"))
	return svc, audit
}

func TestSettlePurchase(t *testing.T) {
	ctx := context.Background()

	t.Run("activates plan and credits upline", func(t *testing.T) {
		accts := newFakeAccounts(referrer(), buyer(100))
		refs := newFakeReferrals()
		pays := newFakePayments(basicPurchase("inv-1"))
		svc, audit := newTestService(accts, refs, pays)

		require.NoError(t, svc.SettlePurchase(ctx, "inv-1", entities.PaymentStatusConfirmed))

		b, _ := accts.Get(ctx, 200)
		assert.True(t, b.HasPlan(entities.PlanBasic))
		assert.True(t, b.TotalDeposited.Equal(d("0.5")))

		r, _ := accts.Get(ctx, 100)
		// 10% of 0.5, swept straight into main.
		assert.True(t, r.MainBalance.Equal(d("0.05")))
		assert.True(t, r.LifetimeReferralEarnings.Equal(d("0.05")))
		assert.Equal(t, 1, r.ValidReferralCount)

		assert.Len(t, refs.bonuses, 1)
		assert.Len(t, audit.entries, 2)
	})

	t.Run("webhook redelivery settles once", func(t *testing.T) {
		accts := newFakeAccounts(referrer(), buyer(100))
		refs := newFakeReferrals()
		pays := newFakePayments(basicPurchase("inv-1"))
		svc, _ := newTestService(accts, refs, pays)

		require.NoError(t, svc.SettlePurchase(ctx, "inv-1", entities.PaymentStatusConfirmed))
		err := svc.SettlePurchase(ctx, "inv-1", entities.PaymentStatusFinished)
		assert.ErrorIs(t, err, domainerrors.ErrPaymentAlreadyProcessed)

		r, _ := accts.Get(ctx, 100)
		assert.True(t, r.MainBalance.Equal(d("0.05")))
		assert.Len(t, refs.bonuses, 1)
		assert.Equal(t, 1, r.ValidReferralCount)
	})

	t.Run("second purchase pays bonus but not a second valid flag", func(t *testing.T) {
		accts := newFakeAccounts(referrer(), buyer(100))
		refs := newFakeReferrals()
		second := basicPurchase("inv-2")
		second.PlanKey = entities.PlanStarter
		second.Amount = d("1")
		pays := newFakePayments(basicPurchase("inv-1"), second)
		svc, _ := newTestService(accts, refs, pays)

		require.NoError(t, svc.SettlePurchase(ctx, "inv-1", entities.PaymentStatusConfirmed))
		require.NoError(t, svc.SettlePurchase(ctx, "inv-2", entities.PaymentStatusConfirmed))

		r, _ := accts.Get(ctx, 100)
		// 0.05 + 0.1 in bonuses, one valid referral.
		assert.True(t, r.MainBalance.Equal(d("0.15")))
		assert.Len(t, refs.bonuses, 2)
		assert.Equal(t, 1, r.ValidReferralCount)
	})

	t.Run("third valid referral unlocks the free plan", func(t *testing.T) {
		ref := referrer()
		accts := newFakeAccounts(ref)
		refs := newFakeReferrals()
		pays := newFakePayments()
		svc, _ := newTestService(accts, refs, pays)

		for i := int64(0); i < 3; i++ {
			uid := int64(200 + i)
			b := buyer(100)
			b.UserID = uid
			accts.accounts[uid] = b

			p := basicPurchase(fmt.Sprintf("inv-%d", i))
			p.UserID = uid
			pays.rows[p.InvoiceID] = p

			require.NoError(t, svc.SettlePurchase(ctx, p.InvoiceID, entities.PaymentStatusConfirmed))
		}

		r, _ := accts.Get(ctx, 100)
		assert.Equal(t, 3, r.ValidReferralCount)
		assert.True(t, r.FreePlanRequirementsMet)
	})

	t.Run("purchase without referrer settles quietly", func(t *testing.T) {
		solo := buyer(100)
		solo.ReferrerID = nil
		accts := newFakeAccounts(solo)
		pays := newFakePayments(basicPurchase("inv-1"))
		svc, _ := newTestService(accts, newFakeReferrals(), pays)

		require.NoError(t, svc.SettlePurchase(ctx, "inv-1", entities.PaymentStatusConfirmed))

		b, _ := accts.Get(ctx, 200)
		assert.True(t, b.HasPlan(entities.PlanBasic))
	})

	t.Run("activation failure leaves the payment retryable", func(t *testing.T) {
		// The buyer's account row is missing, so activation fails after the
		// settle claim.
		accts := newFakeAccounts(referrer())
		pays := newFakePayments(basicPurchase("inv-1"))
		svc, _ := newTestService(accts, newFakeReferrals(), pays)

		err := svc.SettlePurchase(ctx, "inv-1", entities.PaymentStatusConfirmed)
		assert.ErrorIs(t, err, domainerrors.ErrAccountNotFound)

		p, _ := pays.GetByInvoiceID(ctx, "inv-1")
		assert.Equal(t, entities.PaymentStatusPending, p.Status)

		// Redelivery after the account exists completes the purchase.
		accts.accounts[200] = buyer(100)
		require.NoError(t, svc.SettlePurchase(ctx, "inv-1", entities.PaymentStatusConfirmed))
		b, _ := accts.Get(ctx, 200)
		assert.True(t, b.HasPlan(entities.PlanBasic))
	})

	t.Run("unknown plan key rejects before settling", func(t *testing.T) {
		accts := newFakeAccounts(referrer(), buyer(100))
		bogus := basicPurchase("inv-1")
		bogus.PlanKey = "diamond"
		pays := newFakePayments(bogus)
		svc, _ := newTestService(accts, newFakeReferrals(), pays)

		err := svc.SettlePurchase(ctx, "inv-1", entities.PaymentStatusConfirmed)
		assert.ErrorIs(t, err, domainerrors.ErrPlanNotFound)

		p, _ := pays.GetByInvoiceID(ctx, "inv-1")
		assert.Equal(t, entities.PaymentStatusPending, p.Status)
		b, _ := accts.Get(ctx, 200)
		assert.False(t, b.HasPlan(entities.PlanBasic))
	})

	t.Run("unknown invoice is not found", func(t *testing.T) {
		accts := newFakeAccounts(referrer())
		svc, _ := newTestService(accts, newFakeReferrals(), newFakePayments())

		err := svc.SettlePurchase(ctx, "missing", entities.PaymentStatusConfirmed)
		assert.ErrorIs(t, err, domainerrors.ErrPaymentNotFound)
	})
}
