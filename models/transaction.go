package models

import "time"

type TransactionKind string

const (
	TransactionTransfer TransactionKind = "transfer"
	TransactionBuy      TransactionKind = "buy"
)

// TransactionRecord is appended once per successful on-chain step of a purchase attempt.
type TransactionRecord struct {
	Kind      TransactionKind `json:"kind"`
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
}

// TransferEvent is one row of the recent token transfers panel.
type TransferEvent struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Value     string    `json:"value"`
	TxID      string    `json:"tx_id"`
	Timestamp time.Time `json:"timestamp"`
}
