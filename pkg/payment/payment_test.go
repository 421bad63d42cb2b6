package payment

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

const receiving = "TA4Wt1DUCqz6YegbnsmqsWC5uUfbdBqPxm"

type fakeClipboard struct {
	text  string
	err   error
	panic bool
}

func (f *fakeClipboard) WriteAll(text string) error {
	if f.panic {
		panic("no display")
	}
	f.text = text
	return f.err
}

func TestBuildPaymentRequest(t *testing.T) {
	assert.Equal(t, "tron:"+receiving+"?amount=50.000000",
		BuildPaymentRequest("tron", receiving, decimal.NewFromInt(50)))
	assert.Equal(t, "tron:"+receiving+"?amount=0.123457",
		BuildPaymentRequest("tron", receiving, decimal.RequireFromString("0.1234567")))
}

func TestWalletDeepLink(t *testing.T) {
	assert.Equal(t, "tronlink://trx/transfer?address="+receiving+"&amount=12.500000",
		WalletDeepLink(receiving, decimal.RequireFromString("12.5")))
}

func TestRequest(t *testing.T) {
	g := NewGenerator("tron", &fakeClipboard{})
	req := g.Request(receiving, decimal.NewFromInt(50), decimal.RequireFromString("71.4286"))

	assert.Equal(t, "tron:"+receiving+"?amount=50.000000", req.URI)
	assert.Equal(t, receiving, req.Address)
	assert.Equal(t, "50.000000", req.Amount)
	assert.Equal(t, "71.4286", req.USDT)
	assert.Equal(t, WalletInstallURL, req.WalletInstall)
}

func TestCopy(t *testing.T) {
	clip := &fakeClipboard{}
	g := NewGenerator("tron", clip)

	assert.NoError(t, g.Copy(receiving))
	assert.Equal(t, receiving, clip.text)

	assert.Error(t, g.Copy(""))

	clip.err = errors.New("denied")
	assert.Error(t, g.Copy("50"))
}

func TestCopyNeverPanics(t *testing.T) {
	g := NewGenerator("tron", &fakeClipboard{panic: true})
	assert.NotPanics(t, func() {
		assert.Error(t, g.Copy("50"))
	})
}
