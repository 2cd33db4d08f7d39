package account

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covest/covest-service/internal/adapters/payments"
	"github.com/covest/covest-service/internal/domain/entities"
	domainerrors "github.com/covest/covest-service/internal/domain/errors"
	"github.com/covest/covest-service/pkg/logger"
)

type fakeAccounts struct {
	byID      map[int64]*entities.Account
	byRefCode map[string]*entities.Account
	deleted   []int64
}

func newFakeAccounts(accts ...*entities.Account) *fakeAccounts {
	f := &fakeAccounts{
		byID:      make(map[int64]*entities.Account),
		byRefCode: make(map[string]*entities.Account),
	}
	for _, a := range accts {
		f.byID[a.UserID] = a
		f.byRefCode[a.ReferralCode] = a
	}
	return f
}

func (f *fakeAccounts) Get(_ context.Context, userID int64) (*entities.Account, error) {
	a, ok := f.byID[userID]
	if !ok {
		return nil, domainerrors.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccounts) GetByReferralCode(_ context.Context, code string) (*entities.Account, error) {
	a, ok := f.byRefCode[code]
	if !ok {
		return nil, domainerrors.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccounts) CreateIfAbsent(_ context.Context, userID int64, username string, referrerID *int64) (*entities.Account, error) {
	if a, ok := f.byID[userID]; ok {
		cp := *a
		return &cp, nil
	}
	a := &entities.Account{
		UserID:       userID,
		Username:     username,
		ReferrerID:   referrerID,
		ReferralCode: fmt.Sprintf("ref-%d", userID),
	}
	f.byID[userID] = a
	f.byRefCode[a.ReferralCode] = a
	cp := *a
	return &cp, nil
}

func (f *fakeAccounts) AtomicUpdate(_ context.Context, userID int64, mutate func(*entities.Account) error) (*entities.Account, error) {
	a, ok := f.byID[userID]
	if !ok {
		return nil, domainerrors.ErrAccountNotFound
	}
	cp := *a
	if err := mutate(&cp); err != nil {
		return nil, err
	}
	*a = cp
	out := cp
	return &out, nil
}

func (f *fakeAccounts) SetWalletAddress(_ context.Context, userID int64, address string) error {
	a, ok := f.byID[userID]
	if !ok {
		return domainerrors.ErrAccountNotFound
	}
	a.WalletAddress = &address
	return nil
}

func (f *fakeAccounts) Delete(_ context.Context, userID int64) error {
	if _, ok := f.byID[userID]; !ok {
		return domainerrors.ErrAccountNotFound
	}
	delete(f.byID, userID)
	f.deleted = append(f.deleted, userID)
	return nil
}

type fakePayments struct {
	created []*entities.Payment
}

func (f *fakePayments) Create(_ context.Context, p *entities.Payment) error {
	f.created = append(f.created, p)
	return nil
}

func (f *fakePayments) ListByUser(_ context.Context, _ int64, _ int) ([]entities.Payment, error) {
	out := make([]entities.Payment, 0, len(f.created))
	for _, p := range f.created {
		out = append(out, *p)
	}
	return out, nil
}

type fakeAudit struct {
	entries []*entities.LedgerEntry
}

func (f *fakeAudit) Append(_ context.Context, e *entities.LedgerEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeAudit) ListByUser(_ context.Context, _ int64, _ int) ([]entities.LedgerEntry, error) {
	out := make([]entities.LedgerEntry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, *e)
	}
	return out, nil
}

type fakeProcessor struct {
	invoices int
	err      error
}

func (f *fakeProcessor) CreateInvoice(_ context.Context, orderID string, amount decimal.Decimal, _ string) (*payments.Invoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.invoices++
	return &payments.Invoice{
		InvoiceID:  fmt.Sprintf("inv-%d", f.invoices),
		OrderID:    orderID,
		PaymentURL: "https://pay.example/inv",
		PayAmount:  amount,
		Status:     "waiting",
	}, nil
}

type fakeOracle struct {
	price decimal.Decimal
	err   error
}

func (f *fakeOracle) SolPriceUSD(_ context.Context) (decimal.Decimal, error) {
	return f.price, f.err
}

var frozenNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(accts *fakeAccounts, proc *fakeProcessor, oracle *fakeOracle) (*Service, *fakePayments, *fakeAudit) {
	pay := &fakePayments{}
	audit := &fakeAudit{}
	svc := NewService(accts, pay, audit, proc, oracle, entities.DefaultPlans(),
		14, func() time.Time { return frozenNow }, logger.New("debug", "test"))
	return svc, pay, audit
}

func TestRegister_AppliesReferralCode(t *testing.T) {
	upline := &entities.Account{UserID: 1, ReferralCode: "ABC123XY"}
	accts := newFakeAccounts(upline)
	svc, _, _ := newTestService(accts, &fakeProcessor{}, &fakeOracle{price: decimal.NewFromInt(100)})

	acct, err := svc.Register(context.Background(), 7, "alice", "ABC123XY")
	require.NoError(t, err)
	require.NotNil(t, acct.ReferrerID)
	assert.Equal(t, int64(1), *acct.ReferrerID)
}

func TestRegister_UnknownCodeIgnored(t *testing.T) {
	accts := newFakeAccounts()
	svc, _, _ := newTestService(accts, &fakeProcessor{}, &fakeOracle{price: decimal.NewFromInt(100)})

	acct, err := svc.Register(context.Background(), 7, "alice", "NOPE0000")
	require.NoError(t, err)
	assert.Nil(t, acct.ReferrerID)
}

func TestRegister_SelfReferralIgnored(t *testing.T) {
	self := &entities.Account{UserID: 7, ReferralCode: "SELF0001"}
	accts := newFakeAccounts(self)
	svc, _, _ := newTestService(accts, &fakeProcessor{}, &fakeOracle{price: decimal.NewFromInt(100)})

	acct, err := svc.Register(context.Background(), 7, "alice", "SELF0001")
	require.NoError(t, err)
	assert.Nil(t, acct.ReferrerID)
}

func TestActivateFreePlan(t *testing.T) {
	accts := newFakeAccounts(&entities.Account{UserID: 7, ReferralCode: "R7"})
	svc, _, _ := newTestService(accts, &fakeProcessor{}, &fakeOracle{price: decimal.NewFromInt(100)})

	acct, err := svc.ActivateFreePlan(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, acct.FreePlanActivated)
	assert.True(t, acct.HasPlan(entities.PlanFree))
	require.NotNil(t, acct.FreePlanExpiry)
	assert.Equal(t, frozenNow.AddDate(0, 0, 14), *acct.FreePlanExpiry)

	// Second activation keeps the original expiry.
	again, err := svc.ActivateFreePlan(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, *acct.FreePlanExpiry, *again.FreePlanExpiry)
}

func TestBalance_USDDegradesOnOracleFailure(t *testing.T) {
	accts := newFakeAccounts(&entities.Account{
		UserID:       7,
		ReferralCode: "R7",
		MainBalance:  decimal.NewFromFloat(2.5),
	})
	svc, _, _ := newTestService(accts, &fakeProcessor{}, &fakeOracle{err: domainerrors.ErrPriceUnavailable})

	view, err := svc.Balance(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, view.MainBalanceUSD.IsZero())
	assert.True(t, view.MainBalance.Equal(decimal.NewFromFloat(2.5)))
}

func TestBalance_USDQuoted(t *testing.T) {
	accts := newFakeAccounts(&entities.Account{
		UserID:       7,
		ReferralCode: "R7",
		MainBalance:  decimal.NewFromFloat(2.5),
	})
	svc, _, _ := newTestService(accts, &fakeProcessor{}, &fakeOracle{price: decimal.NewFromInt(100)})

	view, err := svc.Balance(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, view.MainBalanceUSD.Equal(decimal.NewFromInt(250)))
}

func TestSetWallet_RejectsBadAddress(t *testing.T) {
	accts := newFakeAccounts(&entities.Account{UserID: 7, ReferralCode: "R7"})
	svc, _, _ := newTestService(accts, &fakeProcessor{}, &fakeOracle{price: decimal.NewFromInt(100)})

	err := svc.SetWallet(context.Background(), 7, "tooshort")
	assert.Error(t, err)

	err = svc.SetWallet(context.Background(), 7, "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
	assert.NoError(t, err)
}

func TestPurchasePlan(t *testing.T) {
	accts := newFakeAccounts(&entities.Account{UserID: 7, ReferralCode: "R7"})
	proc := &fakeProcessor{}
	svc, pay, _ := newTestService(accts, proc, &fakeOracle{price: decimal.NewFromInt(100)})

	t.Run("free plan is not purchasable", func(t *testing.T) {
		_, err := svc.PurchasePlan(context.Background(), 7, entities.PlanFree)
		assert.ErrorIs(t, err, domainerrors.ErrPlanNotFound)
	})

	t.Run("unknown plan rejected", func(t *testing.T) {
		_, err := svc.PurchasePlan(context.Background(), 7, "platinum")
		assert.ErrorIs(t, err, domainerrors.ErrPlanNotFound)
	})

	t.Run("unknown user rejected", func(t *testing.T) {
		_, err := svc.PurchasePlan(context.Background(), 99, entities.PlanPro)
		assert.ErrorIs(t, err, domainerrors.ErrAccountNotFound)
	})

	t.Run("paid plan opens pending invoice", func(t *testing.T) {
		payment, err := svc.PurchasePlan(context.Background(), 7, entities.PlanPro)
		require.NoError(t, err)
		assert.Equal(t, entities.PaymentStatusPending, payment.Status)
		assert.Equal(t, entities.PlanPro, payment.PlanKey)
		assert.Equal(t, "inv-1", payment.InvoiceID)
		assert.Contains(t, payment.OrderID, "7-pro-")
		require.Len(t, pay.created, 1)
	})
}

func TestAdminAdjust(t *testing.T) {
	accts := newFakeAccounts(&entities.Account{
		UserID:       7,
		ReferralCode: "R7",
		MainBalance:  decimal.NewFromInt(1),
	})
	svc, _, audit := newTestService(accts, &fakeProcessor{}, &fakeOracle{price: decimal.NewFromInt(100)})

	t.Run("zero amount rejected", func(t *testing.T) {
		_, err := svc.AdminAdjust(context.Background(), 7, decimal.Zero, "noop")
		assert.Error(t, err)
	})

	t.Run("credit", func(t *testing.T) {
		acct, err := svc.AdminAdjust(context.Background(), 7, decimal.NewFromFloat(0.5), "bonus")
		require.NoError(t, err)
		assert.True(t, acct.MainBalance.Equal(decimal.NewFromFloat(1.5)))
		require.Len(t, audit.entries, 1)
		assert.Equal(t, entities.EntryAdminCredit, audit.entries[0].EntryType)
	})

	t.Run("debit below zero rejected", func(t *testing.T) {
		_, err := svc.AdminAdjust(context.Background(), 7, decimal.NewFromInt(-5), "clawback")
		assert.ErrorIs(t, err, domainerrors.ErrInsufficientFunds)
		acct, gerr := accts.Get(context.Background(), 7)
		require.NoError(t, gerr)
		assert.True(t, acct.MainBalance.Equal(decimal.NewFromFloat(1.5)))
	})

	t.Run("debit within balance", func(t *testing.T) {
		acct, err := svc.AdminAdjust(context.Background(), 7, decimal.NewFromFloat(-0.5), "correction")
		require.NoError(t, err)
		assert.True(t, acct.MainBalance.Equal(decimal.NewFromInt(1)))
		require.Len(t, audit.entries, 2)
		assert.Equal(t, entities.EntryAdminDebit, audit.entries[1].EntryType)
	})
}

func TestPurgeUser(t *testing.T) {
	accts := newFakeAccounts(&entities.Account{UserID: 7, ReferralCode: "R7"})
	svc, _, _ := newTestService(accts, &fakeProcessor{}, &fakeOracle{price: decimal.NewFromInt(100)})

	require.NoError(t, svc.PurgeUser(context.Background(), 7))
	assert.Equal(t, []int64{7}, accts.deleted)

	err := svc.PurgeUser(context.Background(), 7)
	assert.ErrorIs(t, err, domainerrors.ErrAccountNotFound)
}
