package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"trx_discount_back/models"
	"trx_discount_back/pkg/config"
	"trx_discount_back/pkg/metrics"
)

// Readiness is the part of the wallet bridge the monitor needs.
type Readiness interface {
	Ready(ctx context.Context) bool
	DefaultAddress() string
}

// Monitor polls the bridge until it is ready or the attempt budget is spent.
// One Observe run is one session; it never re-polls after a terminal state.
type Monitor struct {
	bridge   Readiness
	attempts int
	interval time.Duration

	mu      sync.RWMutex
	state   models.WalletState
	session int
	cancel  context.CancelFunc
	done    chan struct{}
	subs    map[int]chan models.WalletState
	nextSub int
}

func NewMonitor(bridge Readiness, cfg config.Wallet) *Monitor {
	attempts := cfg.PollAttempts
	if attempts < 1 {
		attempts = 1
	}
	done := make(chan struct{})
	close(done)
	return &Monitor{
		bridge:   bridge,
		attempts: attempts,
		interval: cfg.PollInterval,
		state:    models.WalletState{Status: models.WalletAbsent},
		done:     done,
		subs:     make(map[int]chan models.WalletState),
	}
}

// Start begins a session in the background. A running session is cancelled first.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.session++
	session := m.session
	m.cancel = cancel
	done := make(chan struct{})
	m.done = done
	m.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		m.observe(ctx, session)
	}()
}

// Restart starts a fresh session, the equivalent of reloading the page.
func (m *Monitor) Restart(ctx context.Context) {
	logrus.Info("wallet monitor restarted")
	m.Start(ctx)
}

// Observe runs one session in the caller's goroutine and returns its terminal state.
func (m *Monitor) Observe(ctx context.Context) models.WalletState {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.session++
	session := m.session
	m.mu.Unlock()

	return m.observe(ctx, session)
}

func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	done := m.done
	m.mu.Unlock()
	<-done
}

// Done is closed when the current background session has finished.
func (m *Monitor) Done() <-chan struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.done
}

func (m *Monitor) State() models.WalletState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Subscribe streams state changes, starting with the current state. Slow readers only see the latest.
func (m *Monitor) Subscribe() (<-chan models.WalletState, func()) {
	ch := make(chan models.WalletState, 1)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.state
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

func (m *Monitor) observe(ctx context.Context, session int) models.WalletState {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for attempt := 1; attempt <= m.attempts; attempt++ {
		if attempt > 1 {
			if timer == nil {
				timer = time.NewTimer(m.interval)
			} else {
				timer.Reset(m.interval)
			}
			select {
			case <-ctx.Done():
				return m.publish(session, models.WalletState{Status: models.WalletAbsent, Attempt: attempt - 1})
			case <-timer.C:
			}
		}

		m.publish(session, models.WalletState{Status: models.WalletConnecting, Attempt: attempt})
		if m.bridge.Ready(ctx) {
			if account := m.bridge.DefaultAddress(); account != "" {
				logrus.WithFields(logrus.Fields{"account": account, "attempt": attempt}).Info("wallet ready")
				return m.publish(session, models.WalletState{Status: models.WalletReady, Account: account, Attempt: attempt})
			}
		}
		logrus.Debugf("wallet not ready, attempt %d/%d", attempt, m.attempts)
	}

	logrus.Warnf("wallet not detected after %d attempts, using manual payment", m.attempts)
	return m.publish(session, models.WalletState{Status: models.WalletAbsent, Attempt: m.attempts})
}

// publish stores s unless a newer session has started.
func (m *Monitor) publish(session int, s models.WalletState) models.WalletState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session != m.session {
		return s
	}
	m.state = s
	if s.Ready() {
		metrics.WalletReady.Set(1)
	} else {
		metrics.WalletReady.Set(0)
	}
	for _, ch := range m.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
	return s
}
