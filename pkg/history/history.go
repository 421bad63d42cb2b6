package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"trx_discount_back/models"
	"trx_discount_back/pkg/bridge"
	"trx_discount_back/pkg/config"
	"trx_discount_back/pkg/units"
)

const transferEvent = "Transfer"

type EventSource interface {
	GetEvents(ctx context.Context, q bridge.EventQuery) ([]bridge.Event, error)
}

// Reader builds the recent-activity panel from token Transfer events.
type Reader struct {
	source   EventSource
	token    string
	watched  string
	window   int
	cap      int
	decimals int32

	mu     sync.RWMutex
	recent []models.TransferEvent
}

func NewReader(source EventSource, purchase config.Purchase, cfg config.History) *Reader {
	return &Reader{
		source:   source,
		token:    purchase.TokenContract,
		watched:  purchase.PayingContract,
		window:   cfg.FetchWindow,
		cap:      cfg.DisplayCap,
		decimals: purchase.TokenDecimals,
		recent:   []models.TransferEvent{},
	}
}

// RecentTransfers returns the newest transfers touching contractAddress. Failures yield an empty slice.
func (r *Reader) RecentTransfers(ctx context.Context, contractAddress string) []models.TransferEvent {
	events, err := r.fetch(ctx, contractAddress)
	if err != nil {
		logrus.WithError(err).Warn("recent transfers unavailable")
		return []models.TransferEvent{}
	}
	return events
}

// Refresh reloads the cached panel for the paying contract.
func (r *Reader) Refresh(ctx context.Context) error {
	events, err := r.fetch(ctx, r.watched)
	if err != nil {
		events = []models.TransferEvent{}
	}

	r.mu.Lock()
	r.recent = events
	r.mu.Unlock()
	return err
}

func (r *Reader) Recent() []models.TransferEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.TransferEvent, len(r.recent))
	copy(out, r.recent)
	return out
}

func (r *Reader) fetch(ctx context.Context, contractAddress string) ([]models.TransferEvent, error) {
	raw, err := r.source.GetEvents(ctx, bridge.EventQuery{
		Name:    transferEvent,
		Address: r.token,
		Limit:   r.window,
	})
	if err != nil {
		return nil, errors.Wrap(models.ErrQueryFailed, err.Error())
	}

	events := make([]models.TransferEvent, 0, len(raw))
	for _, e := range raw {
		if e.Name != "" && e.Name != transferEvent {
			continue
		}
		from, to := e.Result["from"], e.Result["to"]
		if from != contractAddress && to != contractAddress {
			continue
		}
		value, err := units.FromBaseString(e.Result["value"], r.decimals)
		if err != nil {
			logrus.Debugf("skip transfer %s: bad value %q", e.TxID, e.Result["value"])
			continue
		}
		events = append(events, models.TransferEvent{
			From:      from,
			To:        to,
			Value:     value.String(),
			TxID:      e.TxID,
			Timestamp: time.UnixMilli(e.BlockTimestamp),
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	if len(events) > r.cap {
		events = events[:r.cap]
	}
	return events, nil
}
