package models

import "time"

// PurchaseState is a node of the purchase state machine.
type PurchaseState string

const (
	StateIdle                  PurchaseState = "idle"
	StateValidating            PurchaseState = "validating"
	StateBuildingFallback      PurchaseState = "building_fallback"
	StateAwaitingManualPayment PurchaseState = "awaiting_manual_payment"
	StateCheckingBalance       PurchaseState = "checking_balance"
	StateSendingTransfer       PurchaseState = "sending_transfer"
	StateInvokingBuy           PurchaseState = "invoking_buy"
	StateSucceeded             PurchaseState = "succeeded"
	StateFailed                PurchaseState = "failed"
	StatePartialFailure        PurchaseState = "partial_failure"
)

// Outcome is the tag presentation derives its colouring from.
type Outcome string

const (
	OutcomeSucceeded             Outcome = "succeeded"
	OutcomeFailed                Outcome = "failed"
	OutcomePartialFailure        Outcome = "partial_failure"
	OutcomeAwaitingManualPayment Outcome = "awaiting_manual_payment"
)

// ErrorKind classifies a failed or partially failed attempt.
type ErrorKind string

const (
	KindNone                   ErrorKind = ""
	KindValidation             ErrorKind = "validation"
	KindInsufficientBalance    ErrorKind = "insufficient_balance"
	KindBalanceQueryFailed     ErrorKind = "balance_query_failed"
	KindTransferFailed         ErrorKind = "transfer_failed"
	KindBuyFailedAfterTransfer ErrorKind = "buy_failed_after_transfer"
)

type PurchaseRequest struct {
	Amount string `json:"amount"`
}

type PurchaseResult struct {
	AttemptID      string              `json:"attempt_id"`
	State          PurchaseState       `json:"state"`
	Outcome        Outcome             `json:"outcome"`
	Kind           ErrorKind           `json:"error_kind,omitempty"`
	Message        string              `json:"message"`
	RevertReason   string              `json:"revert_reason,omitempty"`
	TRXAmount      string              `json:"trx_amount,omitempty"`
	USDTAmount     string              `json:"usdt_amount,omitempty"`
	Records        []TransactionRecord `json:"records"`
	PaymentRequest *PaymentRequest     `json:"payment_request,omitempty"`
	Shortfall      *Shortfall          `json:"shortfall,omitempty"`
	StartedAt      time.Time           `json:"started_at"`
	FinishedAt     time.Time           `json:"finished_at"`
}

// Record returns the id of the first record of the given kind.
func (r PurchaseResult) Record(kind TransactionKind) (string, bool) {
	for _, rec := range r.Records {
		if rec.Kind == kind {
			return rec.ID, true
		}
	}
	return "", false
}

// FundsMoved is true once the TRX transfer has been accepted by the network.
func (r PurchaseResult) FundsMoved() bool {
	_, ok := r.Record(TransactionTransfer)
	return ok
}
