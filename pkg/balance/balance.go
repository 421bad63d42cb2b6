package balance

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"trx_discount_back/models"
	"trx_discount_back/pkg/bridge"
	"trx_discount_back/pkg/config"
	"trx_discount_back/pkg/units"
)

const balanceOfSelector = "balanceOf(address)"

// Querier is the read-only part of the wallet bridge.
type Querier interface {
	TriggerConstant(ctx context.Context, call bridge.Call) ([]byte, error)
	GetBalance(ctx context.Context, address string) (int64, error)
}

// Verifier reads the paying contract's token and TRX balances.
type Verifier struct {
	bridge Querier
	cfg    config.Purchase

	mu   sync.RWMutex
	last models.ContractBalanceSnapshot
}

func NewVerifier(q Querier, cfg config.Purchase) *Verifier {
	return &Verifier{
		bridge: q,
		cfg:    cfg,
		last: models.ContractBalanceSnapshot{
			Contract:     cfg.PayingContract,
			TokenStatus:  models.QueryFailed,
			TokenError:   "not queried yet",
			NativeStatus: models.QueryFailed,
			NativeError:  "not queried yet",
		},
	}
}

// Snapshot queries both balances and stores the result as the latest snapshot.
func (v *Verifier) Snapshot(ctx context.Context) models.ContractBalanceSnapshot {
	snap, _ := v.snapshot(ctx)
	return snap
}

// Refresh re-queries the balances; the error reports a failed token query.
func (v *Verifier) Refresh(ctx context.Context) error {
	snap, _ := v.snapshot(ctx)
	if snap.TokenStatus == models.QueryFailed {
		return errors.Wrap(models.ErrQueryFailed, snap.TokenError)
	}
	if snap.NativeStatus == models.QueryFailed {
		return errors.Wrap(models.ErrQueryFailed, snap.NativeError)
	}
	return nil
}

// Last returns the most recent snapshot without querying.
func (v *Verifier) Last() models.ContractBalanceSnapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.last
}

// Check compares the contract token balance with required base units.
// A failed query is never sufficient.
func (v *Verifier) Check(ctx context.Context, required int64) (bool, models.ContractBalanceSnapshot) {
	snap, tokenBase := v.snapshot(ctx)
	if tokenBase == nil || required < 0 {
		return false, snap
	}
	return tokenBase.Cmp(big.NewInt(required)) >= 0, snap
}

func (v *Verifier) HasSufficientBalance(ctx context.Context, required int64) bool {
	ok, _ := v.Check(ctx, required)
	return ok
}

func (v *Verifier) snapshot(ctx context.Context) (models.ContractBalanceSnapshot, *big.Int) {
	snap := models.ContractBalanceSnapshot{
		Contract:     v.cfg.PayingContract,
		TokenStatus:  models.QueryOK,
		NativeStatus: models.QueryOK,
		FetchedAt:    time.Now(),
	}

	tokenBase, err := v.tokenBalance(ctx)
	if err != nil {
		snap.TokenStatus = models.QueryFailed
		snap.TokenError = err.Error()
		logrus.WithError(err).Warn("contract token balance query failed")
	} else {
		snap.TokenBalance = units.FromBaseBig(tokenBase, v.cfg.TokenDecimals)
	}

	sun, err := v.bridge.GetBalance(ctx, v.cfg.PayingContract)
	if err != nil {
		snap.NativeStatus = models.QueryFailed
		snap.NativeError = err.Error()
		logrus.WithError(err).Warn("contract TRX balance query failed")
	} else {
		snap.NativeBalance = units.FromBase(sun, v.cfg.NativeDecimals)
	}

	v.mu.Lock()
	v.last = snap
	v.mu.Unlock()

	return snap, tokenBase
}

func (v *Verifier) tokenBalance(ctx context.Context) (*big.Int, error) {
	param, err := bridge.AddressParam(v.cfg.PayingContract)
	if err != nil {
		return nil, errors.Wrap(err, "encode balanceOf parameter")
	}

	res, err := v.bridge.TriggerConstant(ctx, bridge.Call{
		Owner:     v.cfg.PayingContract,
		Contract:  v.cfg.TokenContract,
		Selector:  balanceOfSelector,
		Parameter: param,
	})
	if err != nil {
		return nil, errors.Wrapf(models.ErrQueryFailed, "balanceOf: %v", err)
	}
	if len(res) == 0 {
		return nil, errors.Wrap(models.ErrQueryFailed, "balanceOf: empty result")
	}
	return new(big.Int).SetBytes(res), nil
}
