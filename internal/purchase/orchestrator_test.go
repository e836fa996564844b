package purchase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/ebookstore/internal/apperr"
	"github.com/mrlokans/ebookstore/internal/config"
	"github.com/mrlokans/ebookstore/internal/database"
	"github.com/mrlokans/ebookstore/internal/database/catalog"
	"github.com/mrlokans/ebookstore/internal/database/ledger"
	"github.com/mrlokans/ebookstore/internal/entities"
	"github.com/mrlokans/ebookstore/internal/gateway"
	"github.com/mrlokans/ebookstore/internal/lock"
)

const readerEmail = "reader@example.com"

var goodCard = CardDetails{Number: "4242424242424242", ExpMonth: "12", ExpYear: "2030"}

type recordingSettler struct {
	mu  sync.Mutex
	ids []uint
	err error
}

func (s *recordingSettler) EnqueueSettlement(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, id)
	return s.err
}

type recordingAuditor struct {
	mu      sync.Mutex
	actions []string
}

func (a *recordingAuditor) add(action string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
}

func (a *recordingAuditor) LogPurchase(_, _ uint, action, _ string, _ error) { a.add(action) }
func (a *recordingAuditor) LogPayment(_, _ uint, _ string, _ int64, err error) {
	if err != nil {
		a.add("charge_failed")
		return
	}
	a.add("charge_paid")
}
func (a *recordingAuditor) LogReconciliation(_, _ uint, action, _ string, _ error) { a.add(action) }

// brokenLedger fails the confirm step after the charge went through.
type brokenLedger struct {
	*ledger.Repository
	err error
}

func (b *brokenLedger) ConfirmPurchase(context.Context, uint, string) (*entities.Purchase, error) {
	return nil, b.err
}

type fixture struct {
	db      *database.Database
	orch    *Orchestrator
	gate    *Gate
	ledger  *ledger.Repository
	catalog *catalog.Repository
	gw      *gateway.FakeGateway
	locker  *lock.LocalLocker
	settler *recordingSettler
	auditor *recordingAuditor
	user    *entities.User
	paid    *entities.Book
	free    *entities.Book
}

type fixtureOption func(*Dependencies, *fixture)

func withLedger(l Ledger) fixtureOption {
	return func(d *Dependencies, _ *fixture) { d.Ledger = l }
}

func withGateway(g gateway.Gateway) fixtureOption {
	return func(d *Dependencies, _ *fixture) { d.Gateway = g }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "purchase.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		db:      db,
		ledger:  ledger.NewRepository(db.DB),
		catalog: catalog.NewRepository(db.DB),
		gw:      gateway.NewFakeGateway(),
		locker:  lock.NewLocalLocker(),
		settler: &recordingSettler{},
		auditor: &recordingAuditor{},
	}

	author := &entities.Author{Username: "writer", Email: "writer@example.com"}
	require.NoError(t, f.catalog.CreateAuthor(ctx, author))
	f.user = &entities.User{Username: "reader", Email: readerEmail}
	require.NoError(t, f.catalog.CreateUser(ctx, f.user))
	f.paid = &entities.Book{Title: "Book A", Category: entities.CategoryFiction, Price: 500, AuthorID: author.ID}
	require.NoError(t, f.catalog.CreateBook(ctx, f.paid))
	f.free = &entities.Book{Title: "Book B", Category: entities.CategoryDrama, IsFree: true, AuthorID: author.ID}
	require.NoError(t, f.catalog.CreateBook(ctx, f.free))

	deps := Dependencies{
		Catalog: f.catalog,
		Ledger:  f.ledger,
		Gateway: f.gw,
		Locker:  f.locker,
		Settler: f.settler,
		Auditor: f.auditor,
	}
	for _, opt := range opts {
		opt(&deps, f)
	}

	f.orch = NewOrchestrator(deps, config.Payment{Currency: "usd", GatewayTimeout: time.Second}, "http://localhost:8000")
	f.orch.now = func() time.Time { return time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC) }
	keys := 0
	f.orch.newKey = func() string {
		keys++
		return fmt.Sprintf("key-%d", keys)
	}
	f.gate = NewGate(f.ledger)
	return f
}

func (f *fixture) intent(t *testing.T) *entities.PurchaseIntent {
	t.Helper()
	intent, err := f.ledger.FindIntent(context.Background(), f.user.ID, f.paid.ID)
	require.NoError(t, err)
	return intent
}

func (f *fixture) canDownload(t *testing.T) bool {
	t.Helper()
	ok, err := f.gate.CanDownload(context.Background(), f.user, f.paid)
	require.NoError(t, err)
	return ok
}

func TestInitiatePurchase(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown book is not found", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.orch.InitiatePurchase(ctx, readerEmail, 999)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})

	t.Run("unknown user is unauthorized", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.orch.InitiatePurchase(ctx, "ghost@example.com", f.paid.ID)
		assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

		_, err = f.orch.InitiatePurchase(ctx, "", f.paid.ID)
		assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	})

	t.Run("free book returns direct access without an intent", func(t *testing.T) {
		f := newFixture(t)

		d, err := f.orch.InitiatePurchase(ctx, readerEmail, f.free.ID)
		require.NoError(t, err)
		assert.Equal(t, "This book is free", d.Message)
		assert.Equal(t, fmt.Sprintf("http://localhost:8000/get-book-pdf/%d", f.free.ID), d.PDF)

		intent, err := f.ledger.FindIntent(ctx, f.user.ID, f.free.ID)
		require.NoError(t, err)
		assert.Nil(t, intent)
	})

	t.Run("paid book creates one pending intent at the book price", func(t *testing.T) {
		f := newFixture(t)

		d, err := f.orch.InitiatePurchase(ctx, readerEmail, f.paid.ID)
		require.NoError(t, err)
		assert.Equal(t, StateIntentPending, d.State)
		assert.Equal(t, fmt.Sprintf("http://localhost:8000/process-payment/%d", f.paid.ID), d.URL)

		intent := f.intent(t)
		require.NotNil(t, intent)
		assert.Equal(t, int64(500), intent.Price)
		assert.False(t, intent.Verified)
		assert.Empty(t, intent.GatewayRef)
		assert.Equal(t, []string{"intent_created"}, f.auditor.actions)
	})

	t.Run("repeat request reuses the pending intent", func(t *testing.T) {
		f := newFixture(t)

		first, err := f.orch.InitiatePurchase(ctx, readerEmail, f.paid.ID)
		require.NoError(t, err)
		second, err := f.orch.InitiatePurchase(ctx, readerEmail, f.paid.ID)
		require.NoError(t, err)
		assert.Equal(t, first, second)

		var count int64
		require.NoError(t, f.db.DB.Model(&entities.PurchaseIntent{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("already purchased returns direct access without a new intent", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.ledger.RecordPurchase(ctx, f.user.ID, f.paid.ID, 0)
		require.NoError(t, err)

		d, err := f.orch.InitiatePurchase(ctx, readerEmail, f.paid.ID)
		require.NoError(t, err)
		assert.Equal(t, "You have purchased this book", d.Message)
		assert.Equal(t, StateVerified, d.State)
		assert.Nil(t, f.intent(t))
	})

	t.Run("open reconciliation reports the payment as received", func(t *testing.T) {
		f := newFixture(t)
		intent, err := f.ledger.CreateIntent(ctx, f.user.ID, f.paid.ID, 500)
		require.NoError(t, err)
		_, err = f.ledger.CreateReconciliation(ctx, &entities.Reconciliation{
			UserID: f.user.ID, BookID: f.paid.ID, IntentID: intent.ID, ChargeRef: "ch_lost",
		})
		require.NoError(t, err)

		d, err := f.orch.InitiatePurchase(ctx, readerEmail, f.paid.ID)
		require.NoError(t, err)
		assert.Equal(t, StateAwaitingReconciliation, d.State)
		assert.Empty(t, d.PDF)
	})
}

func TestSubmitPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("paid charge verifies the intent and grants the download", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.orch.InitiatePurchase(ctx, readerEmail, f.paid.ID)
		require.NoError(t, err)

		d, err := f.orch.SubmitPayment(ctx, readerEmail, f.paid.ID, goodCard)
		require.NoError(t, err)
		assert.Equal(t, "Payment was successful, return back to the url", d.Message)
		assert.Equal(t, fmt.Sprintf("http://localhost:8000/purchase-book/%d", f.paid.ID), d.URL)

		intent := f.intent(t)
		assert.True(t, intent.Verified)
		assert.NotEmpty(t, intent.GatewayRef)

		purchase, err := f.ledger.FindPurchase(ctx, f.user.ID, f.paid.ID)
		require.NoError(t, err)
		require.NotNil(t, purchase)
		assert.Equal(t, intent.ID, purchase.IntentID)

		assert.True(t, f.canDownload(t))
		assert.True(t, f.canDownload(t))

		assert.Equal(t, []string{"customer", "card", "charge"}, f.gw.Calls)
		assert.Equal(t, []string{"key-1", "key-1", "key-1"}, f.gw.Keys)
		require.Len(t, f.gw.Charges, 1)
		assert.Equal(t, int64(500), f.gw.Charges[0].Amount)
		assert.Equal(t, "usd", f.gw.Charges[0].Currency)
		assert.Equal(t, "Customer: reader, paying for Book A", f.gw.Charges[0].Description)
		assert.Equal(t, []string{"intent_created", "charge_paid", "purchase_confirmed"}, f.auditor.actions)
	})

	t.Run("without an intent fails before charging", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.orch.SubmitPayment(ctx, readerEmail, f.paid.ID, goodCard)
		assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
		assert.Zero(t, f.gw.CallCount())

		purchase, err := f.ledger.FindPurchase(ctx, f.user.ID, f.paid.ID)
		require.NoError(t, err)
		assert.Nil(t, purchase)
	})

	t.Run("unpaid charge leaves the intent pending", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.orch.InitiatePurchase(ctx, readerEmail, f.paid.ID)
		require.NoError(t, err)

		declined := CardDetails{Number: gateway.DeclinedCardNumber, ExpMonth: "12", ExpYear: "2030"}
		_, err = f.orch.SubmitPayment(ctx, readerEmail, f.paid.ID, declined)
		assert.Equal(t, apperr.KindPaymentFailed, apperr.KindOf(err))

		intent := f.intent(t)
		assert.False(t, intent.Verified)
		assert.Empty(t, intent.GatewayRef)
		assert.False(t, f.canDownload(t))
		assert.Contains(t, f.auditor.actions, "charge_failed")
	})

	t.Run("gateway error stops the sequence", func(t *testing.T) {
		f := newFixture(t)
		f.gw.FailOn["card"] = errors.New("your card number is incorrect")
		_, err := f.orch.InitiatePurchase(ctx, readerEmail, f.paid.ID)
		require.NoError(t, err)

		_, err = f.orch.SubmitPayment(ctx, readerEmail, f.paid.ID, goodCard)
		assert.Equal(t, apperr.KindPaymentFailed, apperr.KindOf(err))
		assert.Contains(t, err.Error(), "your card number is incorrect")
		assert.Equal(t, []string{"customer", "card"}, f.gw.Calls)
		assert.False(t, f.intent(t).Verified)
	})

	t.Run("free book has nothing to pay for", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.orch.SubmitPayment(ctx, readerEmail, f.free.ID, goodCard)
		assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
		assert.Zero(t, f.gw.CallCount())
	})

	t.Run("invalid card is rejected before the gateway", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.orch.InitiatePurchase(ctx, readerEmail, f.paid.ID)
		require.NoError(t, err)

		_, err = f.orch.SubmitPayment(ctx, readerEmail, f.paid.ID, CardDetails{Number: "1234", ExpMonth: "12", ExpYear: "2030"})
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		assert.Zero(t, f.gw.CallCount())
	})

	t.Run("second payment after purchase is refused", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.orch.InitiatePurchase(ctx, readerEmail, f.paid.ID)
		require.NoError(t, err)
		_, err = f.orch.SubmitPayment(ctx, readerEmail, f.paid.ID, goodCard)
		require.NoError(t, err)

		_, err = f.orch.SubmitPayment(ctx, readerEmail, f.paid.ID, goodCard)
		assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
		assert.Len(t, f.gw.Charges, 1)

		count, err := f.ledger.CountPurchases(ctx, f.paid.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("held lock is a conflict", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.orch.InitiatePurchase(ctx, readerEmail, f.paid.ID)
		require.NoError(t, err)

		release, err := f.locker.Acquire(ctx, lock.PurchaseKey(f.user.ID, f.paid.ID))
		require.NoError(t, err)
		defer release()

		_, err = f.orch.SubmitPayment(ctx, readerEmail, f.paid.ID, goodCard)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
		assert.Zero(t, f.gw.CallCount())
	})

	t.Run("hung gateway times out as a payment failure", func(t *testing.T) {
		f := newFixture(t, withGateway(hangingGateway{}))
		f.orch.timeout = 20 * time.Millisecond
		_, err := f.orch.InitiatePurchase(ctx, readerEmail, f.paid.ID)
		require.NoError(t, err)

		_, err = f.orch.SubmitPayment(ctx, readerEmail, f.paid.ID, goodCard)
		assert.Equal(t, apperr.KindPaymentFailed, apperr.KindOf(err))
		assert.Contains(t, err.Error(), "timed out")
		assert.False(t, f.intent(t).Verified)
	})
}

func TestSubmitPayment_LedgerFailureAfterCharge(t *testing.T) {
	ctx := context.Background()

	var broken *brokenLedger
	f := newFixture(t, func(d *Dependencies, f *fixture) {
		broken = &brokenLedger{Repository: f.ledger, err: errors.New("database is locked")}
		d.Ledger = broken
	})
	_, err := f.orch.InitiatePurchase(ctx, readerEmail, f.paid.ID)
	require.NoError(t, err)

	_, err = f.orch.SubmitPayment(ctx, readerEmail, f.paid.ID, goodCard)
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	require.Len(t, f.gw.Charges, 1)

	recs, err := f.ledger.PendingReconciliations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, f.user.ID, rec.UserID)
	assert.Equal(t, f.paid.ID, rec.BookID)
	assert.Equal(t, f.intent(t).ID, rec.IntentID)
	assert.NotEmpty(t, rec.ChargeRef)
	assert.Equal(t, int64(500), rec.Amount)
	assert.Equal(t, "usd", rec.Currency)
	assert.Equal(t, "database is locked", rec.Reason)

	assert.Equal(t, []uint{rec.ID}, f.settler.ids)
	assert.Contains(t, f.auditor.actions, "reconciliation_required")
	assert.False(t, f.canDownload(t))

	t.Run("retry does not charge again", func(t *testing.T) {
		_, err := f.orch.SubmitPayment(ctx, readerEmail, f.paid.ID, goodCard)
		assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
		assert.Len(t, f.gw.Charges, 1)
	})

	t.Run("settling the recorded charge grants the download", func(t *testing.T) {
		_, err := f.ledger.ConfirmPurchase(ctx, rec.IntentID, rec.ChargeRef)
		require.NoError(t, err)
		require.NoError(t, f.ledger.ResolveReconciliation(ctx, rec.ID))

		assert.True(t, f.canDownload(t))
		intent := f.intent(t)
		assert.Equal(t, rec.ChargeRef, intent.GatewayRef)
	})
}

func TestSubmitPayment_SettlerFailureStillRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(d *Dependencies, f *fixture) {
		d.Ledger = &brokenLedger{Repository: f.ledger, err: errors.New("disk full")}
	})
	f.settler.err = errors.New("queue unavailable")

	_, err := f.orch.InitiatePurchase(ctx, readerEmail, f.paid.ID)
	require.NoError(t, err)

	_, err = f.orch.SubmitPayment(ctx, readerEmail, f.paid.ID, goodCard)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	open, err := f.ledger.FindOpenReconciliation(ctx, f.user.ID, f.paid.ID)
	require.NoError(t, err)
	assert.NotNil(t, open)
}

func TestSubmitPayment_ConcurrentSubmissionsChargeOnce(t *testing.T) {
	ctx := context.Background()
	gw := &gatedGateway{FakeGateway: gateway.NewFakeGateway(), entered: make(chan struct{}), proceed: make(chan struct{})}
	f := newFixture(t, withGateway(gw))

	_, err := f.orch.InitiatePurchase(ctx, readerEmail, f.paid.ID)
	require.NoError(t, err)

	firstErr := make(chan error, 1)
	go func() {
		_, err := f.orch.SubmitPayment(ctx, readerEmail, f.paid.ID, goodCard)
		firstErr <- err
	}()

	<-gw.entered
	_, err = f.orch.SubmitPayment(ctx, readerEmail, f.paid.ID, goodCard)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	close(gw.proceed)
	require.NoError(t, <-firstErr)

	count, err := f.ledger.CountPurchases(ctx, f.paid.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Len(t, gw.Charges, 1)
}

// hangingGateway blocks every call until the context ends.
type hangingGateway struct{}

func (hangingGateway) CreateCustomer(ctx context.Context, _, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (hangingGateway) AttachCard(ctx context.Context, _ string, _ gateway.Card, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (hangingGateway) CreateCharge(ctx context.Context, _ gateway.ChargeRequest) (*gateway.Charge, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// gatedGateway pauses the first CreateCustomer until proceed is closed.
type gatedGateway struct {
	*gateway.FakeGateway
	once    sync.Once
	entered chan struct{}
	proceed chan struct{}
}

func (g *gatedGateway) CreateCustomer(ctx context.Context, description, key string) (string, error) {
	g.once.Do(func() {
		close(g.entered)
		<-g.proceed
	})
	return g.FakeGateway.CreateCustomer(ctx, description, key)
}

// pruningGateway runs the stale intent prune while the charge is in flight.
type pruningGateway struct {
	gateway.Gateway
	ledger *ledger.Repository
	pruned int64
}

func (g *pruningGateway) CreateCharge(ctx context.Context, req gateway.ChargeRequest) (*gateway.Charge, error) {
	n, err := g.ledger.DeleteStaleIntents(ctx, 7*24*time.Hour)
	if err != nil {
		return nil, err
	}
	g.pruned += n
	return g.Gateway.CreateCharge(ctx, req)
}

func TestSubmitPayment_StaleIntentPrune(t *testing.T) {
	ctx := context.Background()
	var pruner *pruningGateway
	f := newFixture(t, func(d *Dependencies, f *fixture) {
		pruner = &pruningGateway{Gateway: f.gw, ledger: f.ledger}
		d.Gateway = pruner
	})

	_, err := f.orch.InitiatePurchase(ctx, readerEmail, f.paid.ID)
	require.NoError(t, err)

	// Phase one happened long before the reader pays.
	past := time.Now().Add(-8 * 24 * time.Hour)
	require.NoError(t, f.db.DB.Model(&entities.PurchaseIntent{}).
		Where("id = ?", f.intent(t).ID).
		UpdateColumns(map[string]any{"created_at": past, "updated_at": past}).Error)

	_, err = f.orch.SubmitPayment(ctx, readerEmail, f.paid.ID, goodCard)
	require.NoError(t, err)

	assert.Zero(t, pruner.pruned)
	assert.True(t, f.canDownload(t))
	intent := f.intent(t)
	require.NotNil(t, intent)
	assert.True(t, intent.Verified)
	assert.NotEmpty(t, intent.GatewayRef)
}

func TestSubmitPayment_LongLedgerErrorIsTruncated(t *testing.T) {
	ctx := context.Background()
	long := errors.New(strings.Repeat("ошибка записи ", 100))
	f := newFixture(t, func(d *Dependencies, f *fixture) {
		d.Ledger = &brokenLedger{Repository: f.ledger, err: long}
	})

	_, err := f.orch.InitiatePurchase(ctx, readerEmail, f.paid.ID)
	require.NoError(t, err)
	_, err = f.orch.SubmitPayment(ctx, readerEmail, f.paid.ID, goodCard)
	require.Error(t, err)

	rec, err := f.ledger.FindOpenReconciliation(ctx, f.user.ID, f.paid.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.LessOrEqual(t, len(rec.Reason), maxReasonLength)
	assert.True(t, utf8.ValidString(rec.Reason))
}
