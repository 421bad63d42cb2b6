package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"trx_discount_back/models"
	"trx_discount_back/pkg/bridge"
	"trx_discount_back/pkg/config"
	"trx_discount_back/pkg/converter"
	"trx_discount_back/pkg/metrics"
	"trx_discount_back/pkg/payment"
	"trx_discount_back/pkg/units"
)

const defaultRefreshTimeout = 30 * time.Second

var errNoTxID = errors.New("no transaction id returned")

type RateSource interface {
	Rate() *models.QuoteRate
}

type WalletStater interface {
	State() models.WalletState
}

type BalanceChecker interface {
	Check(ctx context.Context, required int64) (bool, models.ContractBalanceSnapshot)
	Refresh(ctx context.Context) error
}

// Transactor is the state-mutating part of the wallet bridge.
type Transactor interface {
	SendTrx(ctx context.Context, to string, amount int64, from string) (string, error)
	TriggerSmartContract(ctx context.Context, call bridge.Call, opts bridge.CallOptions) (string, error)
}

type Refresher interface {
	Refresh(ctx context.Context) error
}

type Notifier interface {
	Notify(result models.PurchaseResult) error
}

type PurchaseDeps struct {
	Config    config.Purchase
	Converter *converter.Converter
	Rates     RateSource
	Wallet    WalletStater
	Balance   BalanceChecker
	Bridge    Transactor
	Payments  *payment.Generator
	// History and Notifier are optional.
	History  Refresher
	Notifier Notifier
}

// PurchaseService runs one purchase attempt at a time through the state machine:
//
//	Idle → Validating → BuildingFallback → AwaitingManualPayment
//	                  → CheckingBalance → SendingTransfer → InvokingBuy → Succeeded
//
// with Failed reachable from Validating, CheckingBalance and SendingTransfer,
// and PartialFailure from InvokingBuy.
type PurchaseService struct {
	cfg       config.Purchase
	converter *converter.Converter
	rates     RateSource
	wallet    WalletStater
	balance   BalanceChecker
	bridge    Transactor
	payments  *payment.Generator
	history   Refresher
	notifier  Notifier

	refreshTimeout time.Duration
	running        atomic.Bool
	background     sync.WaitGroup

	mu        sync.RWMutex
	state     models.PurchaseState
	enteredAt time.Time
	records   []models.TransactionRecord
	last      *models.PurchaseResult
	input     string
}

func NewPurchaseService(deps PurchaseDeps) *PurchaseService {
	conv := deps.Converter
	if conv == nil {
		conv = converter.NewConverter(deps.Config.DiscountFactor)
	}
	payments := deps.Payments
	if payments == nil {
		payments = payment.NewGenerator(deps.Config.PaymentScheme, nil)
	}
	return &PurchaseService{
		cfg:            deps.Config,
		converter:      conv,
		rates:          deps.Rates,
		wallet:         deps.Wallet,
		balance:        deps.Balance,
		bridge:         deps.Bridge,
		payments:       payments,
		history:        deps.History,
		notifier:       deps.Notifier,
		refreshTimeout: defaultRefreshTimeout,
		state:          models.StateIdle,
		enteredAt:      time.Now(),
	}
}

type attempt struct {
	result models.PurchaseResult
	log    *logrus.Entry
}

// Purchase runs one attempt to a terminal state. The error is non-nil only when
// another attempt is in flight; every other failure is reported in the result.
func (s *PurchaseService) Purchase(ctx context.Context, req models.PurchaseRequest) (models.PurchaseResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		metrics.PurchaseRejected.Inc()
		return models.PurchaseResult{}, models.ErrPurchaseInFlight
	}
	defer s.running.Store(false)

	id := uuid.NewString()
	a := &attempt{
		result: models.PurchaseResult{AttemptID: id, StartedAt: time.Now()},
		log:    logrus.WithField("attempt_id", id),
	}

	s.mu.Lock()
	s.records = nil
	s.mu.Unlock()

	s.transition(a, models.StateValidating)
	amount, ok := converter.ParseAmount(req.Amount)
	if !ok {
		return s.fail(a, models.KindValidation, fmt.Sprintf("Enter a TRX amount greater than 0 (got %q)", req.Amount)), nil
	}
	usdt := s.converter.Discount(amount)
	a.result.TRXAmount = amount.String()
	a.result.USDTAmount = usdt.StringFixed(converter.DisplayPlaces)

	sun, err := units.ToBase(amount, s.cfg.NativeDecimals)
	if err != nil {
		return s.fail(a, models.KindValidation, fmt.Sprintf("TRX amount %s is too large", req.Amount)), nil
	}
	required, err := units.ToBase(usdt, s.cfg.TokenDecimals)
	if err != nil {
		return s.fail(a, models.KindValidation, fmt.Sprintf("USDT amount %s is too large", a.result.USDTAmount)), nil
	}

	wallet := s.wallet.State()
	if !wallet.Ready() {
		a.log.WithField("wallet", wallet.Status).Info("no wallet, building manual payment request")
		return s.fallback(a, amount, usdt), nil
	}

	// Submitted transfers cannot be revoked, so the on-chain sequence ignores caller cancellation.
	return s.onChain(context.WithoutCancel(ctx), a, wallet.Account, sun, required, usdt), nil
}

func (s *PurchaseService) fallback(a *attempt, amount, usdt decimal.Decimal) models.PurchaseResult {
	s.transition(a, models.StateBuildingFallback)
	req := s.payments.Request(s.cfg.ReceivingAddress, amount, usdt)
	a.result.PaymentRequest = &req

	msg := fmt.Sprintf("No wallet detected. Send exactly %s TRX to %s to receive %s USDT. Do not modify the address or the USDT cannot be delivered.",
		req.Amount, req.Address, req.USDT)
	result := s.finish(a, models.StateAwaitingManualPayment, models.OutcomeAwaitingManualPayment, models.KindNone, msg)
	s.notify(result)
	return result
}

// onChain runs with sun and required already range-checked by validation.
func (s *PurchaseService) onChain(ctx context.Context, a *attempt, account string, sun, required int64, usdt decimal.Decimal) models.PurchaseResult {
	s.transition(a, models.StateCheckingBalance)
	ok, snap := s.balance.Check(ctx, required)
	if !ok {
		if !snap.TokenKnown() {
			return s.fail(a, models.KindBalanceQueryFailed,
				fmt.Sprintf("Could not verify the contract USDT balance (%s). No TRX was sent; try again later.", snap.TokenError))
		}
		a.result.Shortfall = &models.Shortfall{Current: snap.TokenBalance, Required: usdt}
		return s.fail(a, models.KindInsufficientBalance,
			fmt.Sprintf("Contract USDT balance too low: %s available, %s required. No TRX was sent.",
				snap.TokenBalance.StringFixed(converter.DisplayPlaces), usdt.StringFixed(converter.DisplayPlaces)))
	}

	s.transition(a, models.StateSendingTransfer)
	transferID, err := s.bridge.SendTrx(ctx, s.cfg.ReceivingAddress, sun, account)
	if err == nil && transferID == "" {
		err = errNoTxID
	}
	if err != nil {
		a.log.WithError(err).Warn("TRX transfer failed")
		return s.fail(a, models.KindTransferFailed, fmt.Sprintf("TRX transfer failed: %v", err))
	}
	s.record(models.TransactionTransfer, transferID)

	s.transition(a, models.StateInvokingBuy)
	param, err := bridge.UintParam(required)
	if err != nil {
		return s.partialFailure(a, transferID, err)
	}
	buyID, err := s.bridge.TriggerSmartContract(ctx, bridge.Call{
		Owner:     account,
		Contract:  s.cfg.PayingContract,
		Selector:  s.cfg.BuySelector,
		Parameter: param,
	}, bridge.CallOptions{
		CallValue: 0,
		FeeLimit:  s.cfg.FeeLimit,
		From:      account,
	})
	if err == nil && buyID == "" {
		err = errNoTxID
	}
	if err != nil {
		return s.partialFailure(a, transferID, err)
	}
	s.record(models.TransactionBuy, buyID)

	s.mu.Lock()
	s.input = ""
	s.mu.Unlock()
	s.refreshAfterSuccess()

	return s.finish(a, models.StateSucceeded, models.OutcomeSucceeded, models.KindNone,
		fmt.Sprintf("Purchase complete: %s USDT for %s TRX. Transfer %s, buy %s.",
			a.result.USDTAmount, a.result.TRXAmount, transferID, buyID))
}

func (s *PurchaseService) partialFailure(a *attempt, transferID string, err error) models.PurchaseResult {
	reason := revertReason(err)
	a.result.RevertReason = reason
	a.log.WithError(err).WithFields(logrus.Fields{"transfer_tx": transferID, "reason": reason}).
		Error("buy call failed after TRX transfer")

	msg := fmt.Sprintf("TRX transfer %s completed and the funds were sent, but the USDT purchase call failed: %v (revert reason: %s). "+
		"Do not retry; contact support with the transfer id.", transferID, err, reason)
	result := s.finish(a, models.StatePartialFailure, models.OutcomePartialFailure, models.KindBuyFailedAfterTransfer, msg)
	s.notify(result)
	return result
}

func (s *PurchaseService) fail(a *attempt, kind models.ErrorKind, msg string) models.PurchaseResult {
	return s.finish(a, models.StateFailed, models.OutcomeFailed, kind, msg)
}

func (s *PurchaseService) finish(a *attempt, state models.PurchaseState, outcome models.Outcome, kind models.ErrorKind, msg string) models.PurchaseResult {
	s.transition(a, state)

	s.mu.Lock()
	a.result.Records = append([]models.TransactionRecord{}, s.records...)
	a.result.State = state
	a.result.Outcome = outcome
	a.result.Kind = kind
	a.result.Message = msg
	a.result.FinishedAt = time.Now()
	result := a.result
	s.last = &result
	s.mu.Unlock()

	metrics.PurchaseOutcomes.WithLabelValues(string(outcome), string(kind)).Inc()
	a.log.WithFields(logrus.Fields{"outcome": outcome, "kind": kind}).Info(msg)
	return result
}

func (s *PurchaseService) transition(a *attempt, next models.PurchaseState) {
	s.mu.Lock()
	prev, since := s.state, s.enteredAt
	s.state = next
	s.enteredAt = time.Now()
	s.mu.Unlock()

	metrics.PurchaseStepDuration.WithLabelValues(string(prev)).Observe(time.Since(since).Seconds())
	a.log.Debugf("purchase state %s -> %s", prev, next)
}

func (s *PurchaseService) record(kind models.TransactionKind, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, models.TransactionRecord{Kind: kind, ID: id, Timestamp: time.Now()})
}

// refreshAfterSuccess updates the balance and history panels without affecting the result.
func (s *PurchaseService) refreshAfterSuccess() {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.refreshTimeout)
		defer cancel()

		if err := s.balance.Refresh(ctx); err != nil {
			logrus.WithError(err).Warn("balance refresh after purchase failed")
		}
		if s.history != nil {
			if err := s.history.Refresh(ctx); err != nil {
				logrus.WithError(err).Warn("history refresh after purchase failed")
			}
		}
	}()
}

func (s *PurchaseService) notify(result models.PurchaseResult) {
	if s.notifier == nil {
		return
	}
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if err := s.notifier.Notify(result); err != nil {
			logrus.WithError(err).WithField("attempt_id", result.AttemptID).Warn("operator notification failed")
		}
	}()
}

// Wait blocks until background refreshes and notifications have finished.
func (s *PurchaseService) Wait() {
	s.background.Wait()
}

func (s *PurchaseService) State() models.PurchaseState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *PurchaseService) InFlight() bool {
	return s.running.Load()
}

// Status returns the last terminal result, if any.
func (s *PurchaseService) Status() (models.PurchaseResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return models.PurchaseResult{}, false
	}
	return *s.last, true
}

// Convert returns the displayed USDT amount for input, "" when unavailable.
func (s *PurchaseService) Convert(input string) string {
	var rate *models.QuoteRate
	if s.rates != nil {
		rate = s.rates.Rate()
	}
	return s.converter.Convert(input, rate)
}

// SetInput applies an edit to the stored amount; malformed edits keep the prior value.
func (s *PurchaseService) SetInput(value string) (string, string) {
	s.mu.Lock()
	s.input = converter.FilterInput(s.input, value)
	input := s.input
	s.mu.Unlock()
	return input, s.Convert(input)
}

func (s *PurchaseService) Input() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.input
}
