package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type QueryStatus string

const (
	QueryOK     QueryStatus = "ok"
	QueryFailed QueryStatus = "failed"
)

// ContractBalanceSnapshot is a point-in-time view of the paying contract's balances
// in human units. A failed query is reported through the status fields, never as zero.
type ContractBalanceSnapshot struct {
	Contract      string          `json:"contract"`
	TokenBalance  decimal.Decimal `json:"token_balance"`
	TokenStatus   QueryStatus     `json:"token_status"`
	TokenError    string          `json:"token_error,omitempty"`
	NativeBalance decimal.Decimal `json:"native_balance"`
	NativeStatus  QueryStatus     `json:"native_status"`
	NativeError   string          `json:"native_error,omitempty"`
	FetchedAt     time.Time       `json:"fetched_at"`
}

func (s ContractBalanceSnapshot) TokenKnown() bool {
	return s.TokenStatus == QueryOK
}

// Shortfall describes an insufficient contract token balance.
type Shortfall struct {
	Current  decimal.Decimal `json:"current"`
	Required decimal.Decimal `json:"required"`
}
