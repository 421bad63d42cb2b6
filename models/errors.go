package models

import "errors"

var (
	ErrValidation             = errors.New("invalid amount")
	ErrWalletUnavailable      = errors.New("wallet unavailable")
	ErrInsufficientBalance    = errors.New("insufficient contract balance")
	ErrTransferFailed         = errors.New("transfer failed")
	ErrBuyFailedAfterTransfer = errors.New("buy failed after transfer")
	ErrQueryFailed            = errors.New("query failed")
	ErrPurchaseInFlight       = errors.New("purchase already in progress")
)
