// Package bridge describes the wallet capabilities the purchase flow consumes.
package bridge

import (
	"context"
	"fmt"
)

// Call is a contract invocation. Addresses are base58; Parameter is hex ABI data without selector.
type Call struct {
	Owner     string
	Contract  string
	Selector  string
	Parameter string
}

// CallOptions apply to state-mutating calls only.
type CallOptions struct {
	CallValue int64
	FeeLimit  int64
	From      string
}

type EventQuery struct {
	Name    string
	Address string
	Limit   int
}

// Event is a decoded contract log. Result values are strings; addresses in Result are base58.
type Event struct {
	TxID           string
	Name           string
	Contract       string
	BlockTimestamp int64
	Result         map[string]string
}

type Bridge interface {
	// Ready is true once the bridge is initialised and has an active account.
	Ready(ctx context.Context) bool
	DefaultAddress() string
	TriggerConstant(ctx context.Context, call Call) ([]byte, error)
	TriggerSmartContract(ctx context.Context, call Call, opts CallOptions) (string, error)
	SendTrx(ctx context.Context, to string, amount int64, from string) (string, error)
	GetBalance(ctx context.Context, address string) (int64, error)
	GetEvents(ctx context.Context, q EventQuery) ([]Event, error)
}

// CallError is a failed contract call that may carry the raw result payload.
type CallError struct {
	Op      string
	Message string
	Result  []byte
}

func (e *CallError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed", e.Op)
	}
	return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
}
