package oracle

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"trx_discount_back/models"
	"trx_discount_back/pkg/cache"
	"trx_discount_back/pkg/config"
	"trx_discount_back/pkg/metrics"
)

type Client struct {
	http     *resty.Client
	url      string
	fallback float64
	rates    *cache.RateHolder
}

func NewClient(cfg config.Oracle, rates *cache.RateHolder) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		http:     resty.New().SetTimeout(timeout).SetHeader("Accept", "application/json"),
		url:      cfg.URL,
		fallback: cfg.FallbackRate,
		rates:    rates,
	}
}

// Rate returns the current quote without blocking.
func (c *Client) Rate() *models.QuoteRate {
	return c.rates.Get()
}

// Stale reports whether the quote is older than the configured max age.
func (c *Client) Stale() bool {
	return c.rates.Stale()
}

// FetchRate issues one request and stores the result. Any failure yields the fallback rate.
func (c *Client) FetchRate(ctx context.Context) models.QuoteRate {
	rate := models.QuoteRate{Value: c.fallback, Source: models.RateSourceFallback, FetchedAt: time.Now()}

	value, err := c.fetch(ctx)
	if err != nil {
		logrus.WithError(err).Warnf("TRX rate unavailable, using fallback %.2f", c.fallback)
	} else {
		rate.Value = value
		rate.Source = models.RateSourceOracle
	}

	c.rates.Set(rate)
	metrics.TRXRate.Set(rate.Value)
	return rate
}

func (c *Client) fetch(ctx context.Context) (float64, error) {
	logrus.WithField("url", c.url).Debug("requesting CoinGecko rate")

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(map[string]map[string]float64{}).
		Get(c.url)
	if err != nil {
		return 0, errors.Wrap(err, "price request")
	}
	if resp.IsError() {
		return 0, errors.Errorf("price endpoint returned %s", resp.Status())
	}

	data, ok := resp.Result().(*map[string]map[string]float64)
	if !ok || data == nil {
		return 0, errors.New("unexpected price payload")
	}
	rate := (*data)["tron"]["usd"]
	if rate <= 0 {
		return 0, errors.Errorf("non-positive rate %v", rate)
	}
	return rate, nil
}
