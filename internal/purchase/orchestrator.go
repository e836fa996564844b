// Package purchase drives a book from viewable to paid to downloadable.
//
// A purchase is two calls. InitiatePurchase records a pending intent at the
// book's price. SubmitPayment charges the card through the gateway and, once
// the charge is paid, confirms the purchase in the ledger. Gate answers
// whether a PDF may be served.
//
// # Partial failure
//
// When the charge is paid but the ledger write fails, the charge reference is
// logged, stored as a Reconciliation and handed to a Settler. The request
// itself still fails. Nothing is refunded.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mrlokans/ebookstore/internal/apperr"
	"github.com/mrlokans/ebookstore/internal/config"
	"github.com/mrlokans/ebookstore/internal/entities"
	"github.com/mrlokans/ebookstore/internal/gateway"
	"github.com/mrlokans/ebookstore/internal/lock"
	"github.com/mrlokans/ebookstore/internal/utils"
)

const (
	reconcileWriteTimeout = 10 * time.Second
	maxReasonLength       = 500
)

// Catalog resolves the book and the acting user.
type Catalog interface {
	GetBook(ctx context.Context, id uint) (*entities.Book, error)
	GetUserByEmail(ctx context.Context, email string) (*entities.User, error)
}

// Ledger is the entitlement storage the orchestrator writes to.
type Ledger interface {
	FindIntent(ctx context.Context, userID, bookID uint) (*entities.PurchaseIntent, error)
	CreateIntent(ctx context.Context, userID, bookID uint, price int64) (*entities.PurchaseIntent, error)
	TouchIntent(ctx context.Context, intentID uint) error
	FindPurchase(ctx context.Context, userID, bookID uint) (*entities.Purchase, error)
	ConfirmPurchase(ctx context.Context, intentID uint, gatewayRef string) (*entities.Purchase, error)
	CreateReconciliation(ctx context.Context, rec *entities.Reconciliation) (*entities.Reconciliation, error)
	FindOpenReconciliation(ctx context.Context, userID, bookID uint) (*entities.Reconciliation, error)
}

// Settler schedules a ledger-only retry for a recorded reconciliation.
type Settler interface {
	EnqueueSettlement(ctx context.Context, reconciliationID uint) error
}

// Auditor receives the purchase trail.
type Auditor interface {
	LogPurchase(userID, bookID uint, action, description string, err error)
	LogPayment(userID, bookID uint, chargeRef string, amount int64, err error)
	LogReconciliation(userID, reconciliationID uint, action, chargeRef string, err error)
}

// Dependencies are the collaborators of an Orchestrator. Settler, Auditor
// and Logger are optional.
type Dependencies struct {
	Catalog Catalog
	Ledger  Ledger
	Gateway gateway.Gateway
	Locker  lock.Locker
	Settler Settler
	Auditor Auditor
	Logger  *zap.Logger
}

type Orchestrator struct {
	catalog  Catalog
	ledger   Ledger
	gateway  gateway.Gateway
	locker   lock.Locker
	settler  Settler
	audit    Auditor
	logger   *zap.Logger
	links    Links
	currency string
	timeout  time.Duration

	newKey func() string
	now    func() time.Time
}

// NewOrchestrator wires the purchase flow. cfg supplies the currency and
// gateway timeout, baseURL prefixes the follow-up URLs in descriptors.
func NewOrchestrator(deps Dependencies, cfg config.Payment, baseURL string) *Orchestrator {
	o := &Orchestrator{
		catalog:  deps.Catalog,
		ledger:   deps.Ledger,
		gateway:  deps.Gateway,
		locker:   deps.Locker,
		settler:  deps.Settler,
		audit:    deps.Auditor,
		logger:   deps.Logger,
		links:    Links{BaseURL: baseURL},
		currency: cfg.Currency,
		timeout:  cfg.GatewayTimeout,
		newKey:   uuid.NewString,
		now:      time.Now,
	}
	if o.locker == nil {
		o.locker = lock.NewLocalLocker()
	}
	if o.audit == nil {
		o.audit = nopAuditor{}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.currency == "" {
		o.currency = config.DefaultCurrency
	}
	if o.timeout <= 0 {
		o.timeout = 30 * time.Second
	}
	return o
}

// Links returns the URL builder used for descriptors.
func (o *Orchestrator) Links() Links {
	return o.links
}

// InitiatePurchase is phase one. Free and already purchased books get a
// direct-access descriptor. Otherwise a pending intent is created, or the
// existing one reused, and the caller is told where to post card details.
func (o *Orchestrator) InitiatePurchase(ctx context.Context, email string, bookID uint) (*Descriptor, error) {
	book, user, err := o.resolve(ctx, email, bookID)
	if err != nil {
		return nil, err
	}

	if !book.RequiresPayment() {
		return o.links.free(book), nil
	}

	state, _, err := o.state(ctx, user.ID, book.ID)
	if err != nil {
		return nil, err
	}

	switch state {
	case StateVerified:
		return o.links.purchased(book), nil
	case StateAwaitingReconciliation:
		return o.links.awaitingReconciliation(book), nil
	case StateIntentPending:
		return o.links.awaitingPayment(book), nil
	}

	intent, err := o.ledger.CreateIntent(ctx, user.ID, book.ID, book.Price)
	if errors.Is(err, apperr.ErrConflict) {
		// A concurrent phase one created it first.
		return o.links.awaitingPayment(book), nil
	}
	if err != nil {
		return nil, fmt.Errorf("create intent: %w", err)
	}

	o.audit.LogPurchase(user.ID, book.ID, "intent_created",
		fmt.Sprintf("Intent %d for %q at %d", intent.ID, book.Title, intent.Price), nil)
	o.logger.Info("purchase intent created",
		zap.Uint("user_id", user.ID),
		zap.Uint("book_id", book.ID),
		zap.Uint("intent_id", intent.ID),
		zap.Int64("price", intent.Price))

	return o.links.awaitingPayment(book), nil
}

// SubmitPayment is phase two. It holds the (user, book) lock for the whole
// call, refuses to charge unless a pending intent exists, then runs the
// gateway sequence once and confirms the purchase.
func (o *Orchestrator) SubmitPayment(ctx context.Context, email string, bookID uint, card CardDetails) (*Descriptor, error) {
	book, user, err := o.resolve(ctx, email, bookID)
	if err != nil {
		return nil, err
	}
	if !book.RequiresPayment() {
		return nil, apperr.InvalidState("book %d is free, there is nothing to pay for", book.ID)
	}
	if err := card.Validate(o.now()); err != nil {
		return nil, err
	}

	release, err := o.locker.Acquire(ctx, lock.PurchaseKey(user.ID, book.ID))
	if errors.Is(err, lock.ErrLocked) {
		return nil, apperr.Conflict("a payment for this book is already in progress")
	}
	if err != nil {
		return nil, fmt.Errorf("acquire purchase lock: %w", err)
	}
	defer release()

	state, intent, err := o.state(ctx, user.ID, book.ID)
	if err != nil {
		return nil, err
	}
	switch state {
	case StateVerified:
		return nil, apperr.InvalidState("you have already purchased this book")
	case StateUnpurchased:
		return nil, apperr.InvalidState("no purchase intent for book %d, request %s first", book.ID, o.links.PurchaseBook(book.ID))
	case StateAwaitingReconciliation:
		return nil, apperr.InvalidState("payment for book %d was already received and is awaiting reconciliation", book.ID)
	}

	// Keeps the stale intent prune away from an intent that is about to be charged.
	if err := o.ledger.TouchIntent(ctx, intent.ID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.InvalidState("no purchase intent for book %d, request %s first", book.ID, o.links.PurchaseBook(book.ID))
		}
		return nil, err
	}

	charge, err := o.charge(ctx, user, book, card)
	if err != nil {
		o.audit.LogPayment(user.ID, book.ID, "", book.Price, err)
		o.logger.Warn("payment failed",
			zap.Uint("user_id", user.ID),
			zap.Uint("book_id", book.ID),
			zap.Error(err))
		return nil, apperr.PaymentFailed("%v", err)
	}
	if !charge.Paid {
		err := fmt.Errorf("charge %s was not paid", charge.ID)
		o.audit.LogPayment(user.ID, book.ID, charge.ID, book.Price, err)
		o.logger.Warn("charge not paid",
			zap.Uint("user_id", user.ID),
			zap.Uint("book_id", book.ID),
			zap.String("charge_ref", charge.ID))
		return nil, apperr.PaymentFailed("Payment Unsuccessful")
	}
	o.audit.LogPayment(user.ID, book.ID, charge.ID, book.Price, nil)

	purchase, err := o.ledger.ConfirmPurchase(ctx, intent.ID, charge.ID)
	if err != nil {
		o.recordReconciliation(ctx, user, book, intent, charge, err)
		// Not wrapped: the caller sees an internal failure whatever the ledger returned.
		return nil, fmt.Errorf("charge %s succeeded but the purchase could not be recorded: %v", charge.ID, err)
	}

	o.audit.LogPurchase(user.ID, book.ID, "purchase_confirmed",
		fmt.Sprintf("Purchase %d confirmed by charge %s", purchase.ID, charge.ID), nil)
	o.logger.Info("purchase confirmed",
		zap.Uint("user_id", user.ID),
		zap.Uint("book_id", book.ID),
		zap.Uint("intent_id", intent.ID),
		zap.String("charge_ref", charge.ID))

	return o.links.paid(book), nil
}

func (o *Orchestrator) resolve(ctx context.Context, email string, bookID uint) (*entities.Book, *entities.User, error) {
	book, err := o.catalog.GetBook(ctx, bookID)
	if err != nil {
		return nil, nil, err
	}
	if book == nil {
		return nil, nil, apperr.NotFound("Book does not exist")
	}

	if email == "" {
		return nil, nil, apperr.Unauthorized("You are not registered as a user")
	}
	user, err := o.catalog.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, apperr.Unauthorized("You are not registered as a user")
	}
	return book, user, nil
}

func (o *Orchestrator) state(ctx context.Context, userID, bookID uint) (State, *entities.PurchaseIntent, error) {
	purchase, err := o.ledger.FindPurchase(ctx, userID, bookID)
	if err != nil {
		return "", nil, err
	}
	intent, err := o.ledger.FindIntent(ctx, userID, bookID)
	if err != nil {
		return "", nil, err
	}
	if purchase != nil {
		return ResolveState(intent, purchase, nil), intent, nil
	}
	open, err := o.ledger.FindOpenReconciliation(ctx, userID, bookID)
	if err != nil {
		return "", nil, err
	}
	return ResolveState(intent, purchase, open), intent, nil
}

// charge runs customer, card and charge under one deadline. All three calls
// share an idempotency key for this attempt.
func (o *Orchestrator) charge(ctx context.Context, user *entities.User, book *entities.Book, card CardDetails) (*gateway.Charge, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	key := o.newKey()
	description := fmt.Sprintf("Customer: %s, paying for %s", user.Username, book.Title)

	customerID, err := o.gateway.CreateCustomer(ctx, description, key)
	if err != nil {
		return nil, gatewayErr(err)
	}
	sourceID, err := o.gateway.AttachCard(ctx, customerID, card.gatewayCard(), key)
	if err != nil {
		return nil, gatewayErr(err)
	}
	charge, err := o.gateway.CreateCharge(ctx, gateway.ChargeRequest{
		CustomerID:     customerID,
		SourceID:       sourceID,
		Amount:         book.Price,
		Currency:       o.currency,
		Description:    description,
		IdempotencyKey: key,
	})
	if err != nil {
		return nil, gatewayErr(err)
	}
	return charge, nil
}

func gatewayErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("payment gateway timed out: %w", err)
	}
	return err
}

// recordReconciliation keeps the charge reference of a paid charge the ledger
// rejected. It runs on a context detached from the request so a cancelled
// request still leaves a record.
func (o *Orchestrator) recordReconciliation(ctx context.Context, user *entities.User, book *entities.Book, intent *entities.PurchaseIntent, charge *gateway.Charge, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reconcileWriteTimeout)
	defer cancel()

	fields := []zap.Field{
		zap.Uint("user_id", user.ID),
		zap.Uint("book_id", book.ID),
		zap.Uint("intent_id", intent.ID),
		zap.String("charge_ref", charge.ID),
		zap.Int64("amount", book.Price),
		zap.String("currency", o.currency),
		zap.Error(cause),
	}
	o.logger.Error("reconciliation required", fields...)

	rec, err := o.ledger.CreateReconciliation(ctx, &entities.Reconciliation{
		UserID:    user.ID,
		BookID:    book.ID,
		IntentID:  intent.ID,
		ChargeRef: charge.ID,
		Amount:    book.Price,
		Currency:  o.currency,
		Reason:    utils.Truncate(cause.Error(), maxReasonLength),
	})
	if err != nil {
		o.logger.Error("failed to persist reconciliation", append(fields, zap.NamedError("persist_error", err))...)
		return
	}
	o.audit.LogReconciliation(user.ID, rec.ID, "reconciliation_required", charge.ID, cause)

	if o.settler == nil {
		return
	}
	if err := o.settler.EnqueueSettlement(ctx, rec.ID); err != nil {
		o.logger.Warn("failed to enqueue settlement",
			zap.Uint("reconciliation_id", rec.ID),
			zap.String("charge_ref", charge.ID),
			zap.Error(err))
	}
}

type nopAuditor struct{}

func (nopAuditor) LogPurchase(uint, uint, string, string, error)       {}
func (nopAuditor) LogPayment(uint, uint, string, int64, error)         {}
func (nopAuditor) LogReconciliation(uint, uint, string, string, error) {}
