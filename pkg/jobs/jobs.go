package jobs

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"trx_discount_back/models"
	"trx_discount_back/pkg/config"
)

const jobTimeout = time.Minute

type RateFetcher interface {
	FetchRate(ctx context.Context) models.QuoteRate
}

type HistoryRefresher interface {
	Refresh(ctx context.Context) error
}

// Worker refreshes the TRX rate and the transfer history on a schedule.
type Worker struct {
	rates   RateFetcher
	history HistoryRefresher
	oracle  config.Oracle
	window  config.History
	cron    *cron.Cron
}

func NewWorker(rates RateFetcher, history HistoryRefresher, oracle config.Oracle, window config.History) *Worker {
	return &Worker{
		rates:   rates,
		history: history,
		oracle:  oracle,
		window:  window,
		cron:    cron.New(),
	}
}

// Start registers the jobs whose schedule is set and starts the scheduler.
func (w *Worker) Start() error {
	if w.oracle.Schedule != "" {
		if _, err := w.cron.AddFunc(w.oracle.Schedule, w.RefreshRate); err != nil {
			return errors.Wrapf(err, "oracle.schedule %q", w.oracle.Schedule)
		}
	}
	if w.window.Schedule != "" {
		if _, err := w.cron.AddFunc(w.window.Schedule, w.RefreshHistory); err != nil {
			return errors.Wrapf(err, "history.schedule %q", w.window.Schedule)
		}
	}

	w.cron.Start()
	logrus.Infof("refresh worker started with %d jobs", len(w.cron.Entries()))
	return nil
}

// Stop waits for running jobs to finish.
func (w *Worker) Stop() {
	<-w.cron.Stop().Done()
	logrus.Info("refresh worker stopped")
}

func (w *Worker) RefreshRate() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	rate := w.rates.FetchRate(ctx)
	logrus.WithField("source", rate.Source).Debugf("scheduled rate refresh: %.4f", rate.Value)
}

func (w *Worker) RefreshHistory() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := w.history.Refresh(ctx); err != nil {
		logrus.WithError(err).Warn("scheduled history refresh failed")
	}
}
