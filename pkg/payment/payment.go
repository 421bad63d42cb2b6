package payment

import (
	"fmt"
	"net/url"

	"github.com/atotto/clipboard"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"trx_discount_back/models"
)

const (
	AmountPlaces     = 6
	walletDeepLink   = "tronlink://trx/transfer"
	WalletInstallURL = "https://tronlink.org"
)

type Clipboard interface {
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) WriteAll(text string) error {
	return clipboard.WriteAll(text)
}

// Generator builds manual payment instructions for the no-wallet path.
type Generator struct {
	scheme string
	clip   Clipboard
}

// NewGenerator uses the system clipboard when clip is nil.
func NewGenerator(scheme string, clip Clipboard) *Generator {
	if clip == nil {
		clip = systemClipboard{}
	}
	return &Generator{scheme: scheme, clip: clip}
}

// BuildPaymentRequest returns scheme:<address>?amount=<6 places>.
func BuildPaymentRequest(scheme, address string, amount decimal.Decimal) string {
	return fmt.Sprintf("%s:%s?amount=%s", scheme, address, amount.StringFixed(AmountPlaces))
}

// WalletDeepLink opens the TronLink transfer screen prefilled with address and amount.
func WalletDeepLink(address string, amount decimal.Decimal) string {
	q := url.Values{}
	q.Set("address", address)
	q.Set("amount", amount.StringFixed(AmountPlaces))
	return walletDeepLink + "?" + q.Encode()
}

func (g *Generator) Request(address string, amount, usdt decimal.Decimal) models.PaymentRequest {
	return models.PaymentRequest{
		URI:            BuildPaymentRequest(g.scheme, address, amount),
		Address:        address,
		Amount:         amount.StringFixed(AmountPlaces),
		USDT:           usdt.StringFixed(4),
		WalletDeepLink: WalletDeepLink(address, amount),
		WalletInstall:  WalletInstallURL,
	}
}

// Copy writes text to the clipboard. Failures are returned, never raised.
func (g *Generator) Copy(text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("clipboard: %v", r)
		}
	}()

	if text == "" {
		return errors.New("nothing to copy")
	}
	if err := g.clip.WriteAll(text); err != nil {
		logrus.WithError(err).Warn("clipboard write failed")
		return errors.Wrap(err, "clipboard")
	}
	return nil
}
