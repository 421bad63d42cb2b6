package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"trx_discount_back/models"
	"trx_discount_back/pkg/balance"
	"trx_discount_back/pkg/bridge"
	"trx_discount_back/pkg/cache"
	"trx_discount_back/pkg/config"
	"trx_discount_back/pkg/converter"
	"trx_discount_back/pkg/history"
	"trx_discount_back/pkg/monitor"
	"trx_discount_back/pkg/oracle"
	"trx_discount_back/pkg/payment"
)

type Rates interface {
	Rate() *models.QuoteRate
	FetchRate(ctx context.Context) models.QuoteRate
	Stale() bool
}

type Wallet interface {
	State() models.WalletState
	Subscribe() (<-chan models.WalletState, func())
	Restart(ctx context.Context)
}

type Balance interface {
	Snapshot(ctx context.Context) models.ContractBalanceSnapshot
	Last() models.ContractBalanceSnapshot
}

type History interface {
	RecentTransfers(ctx context.Context, contractAddress string) []models.TransferEvent
	Recent() []models.TransferEvent
	Refresh(ctx context.Context) error
}

type Purchase interface {
	Purchase(ctx context.Context, req models.PurchaseRequest) (models.PurchaseResult, error)
	Status() (models.PurchaseResult, bool)
	State() models.PurchaseState
	InFlight() bool
	Convert(input string) string
	SetInput(value string) (string, string)
	Input() string
	Wait()
}

type Service struct {
	Config   config.Purchase
	Rates    Rates
	Wallet   Wallet
	Balance  Balance
	History  History
	Purchase Purchase
	Payments *payment.Generator

	monitor *monitor.Monitor
}

// NewService wires the purchase flow around a wallet bridge. notifier and clip may be nil.
func NewService(cfg config.Config, b bridge.Bridge, notifier Notifier, clip payment.Clipboard) *Service {
	rates := oracle.NewClient(cfg.Oracle, cache.NewRateHolder(cfg.Oracle.FallbackRate, cfg.Oracle.MaxAge))
	mon := monitor.NewMonitor(b, cfg.Wallet)
	verifier := balance.NewVerifier(b, cfg.Purchase)
	reader := history.NewReader(b, cfg.Purchase, cfg.History)
	payments := payment.NewGenerator(cfg.Purchase.PaymentScheme, clip)

	deps := PurchaseDeps{
		Config:    cfg.Purchase,
		Converter: converter.NewConverter(cfg.Purchase.DiscountFactor),
		Rates:     rates,
		Wallet:    mon,
		Balance:   verifier,
		Bridge:    b,
		Payments:  payments,
		History:   reader,
		Notifier:  notifier,
	}

	return &Service{
		Config:   cfg.Purchase,
		Rates:    rates,
		Wallet:   mon,
		Balance:  verifier,
		History:  reader,
		Purchase: NewPurchaseService(deps),
		Payments: payments,
		monitor:  mon,
	}
}

// Start begins wallet monitoring and the startup rate fetch without blocking.
func (s *Service) Start(ctx context.Context) {
	s.monitor.Start(ctx)
	go s.Rates.FetchRate(ctx)
	go s.refreshHistory(ctx)
}

func (s *Service) refreshHistory(ctx context.Context) {
	if err := s.History.Refresh(ctx); err != nil {
		logrus.WithError(err).Warn("startup history refresh failed")
	}
}

// Stop ends wallet monitoring and waits for pending refreshes and notifications.
func (s *Service) Stop() {
	s.monitor.Stop()
	s.Purchase.Wait()
}
