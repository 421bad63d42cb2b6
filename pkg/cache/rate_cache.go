package cache

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"trx_discount_back/models"
)

// RateHolder keeps the current quote. It is seeded with the fallback so readers never wait.
type RateHolder struct {
	mu   sync.RWMutex
	rate models.QuoteRate
	ttl  time.Duration
}

func NewRateHolder(fallback float64, ttl time.Duration) *RateHolder {
	return &RateHolder{
		rate: models.QuoteRate{
			Value:     fallback,
			Source:    models.RateSourceFallback,
			FetchedAt: time.Now(),
		},
		ttl: ttl,
	}
}

// Get returns a copy of the current rate.
func (h *RateHolder) Get() *models.QuoteRate {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rate := h.rate
	return &rate
}

// Set replaces the rate wholesale.
func (h *RateHolder) Set(rate models.QuoteRate) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.rate = rate
	logrus.WithFields(logrus.Fields{"rate": rate.Value, "source": rate.Source}).Info("TRX rate updated")
}

// Stale reports whether the oracle value is older than the ttl. A zero ttl never goes stale.
func (h *RateHolder) Stale() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.ttl <= 0 {
		return false
	}
	return time.Since(h.rate.FetchedAt) > h.ttl
}
