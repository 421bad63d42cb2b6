package service

import (
	"bytes"
	"errors"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"trx_discount_back/pkg/bridge"
)

// ReasonUnavailable replaces a revert reason that cannot be decoded.
const ReasonUnavailable = "reason unavailable"

// selector(4) + string offset word(32) + string length word(32)
const revertReasonOffset = 68

// DecodeRevertReason extracts a text reason from a contract result payload.
// It tries standard Error(string) unpacking first, then the fixed 68-byte offset.
func DecodeRevertReason(payload []byte) (reason string) {
	defer func() {
		if r := recover(); r != nil {
			reason = ReasonUnavailable
		}
	}()

	if len(payload) == 0 {
		return ReasonUnavailable
	}
	if r, err := abi.UnpackRevert(payload); err == nil && r != "" {
		return r
	}
	if len(payload) <= revertReasonOffset {
		return ReasonUnavailable
	}

	text := bytes.Trim(payload[revertReasonOffset:], "\x00")
	if len(text) == 0 || !utf8.Valid(text) {
		return ReasonUnavailable
	}
	return string(text)
}

// revertReason decodes the payload carried by a *bridge.CallError, if any.
func revertReason(err error) string {
	var callErr *bridge.CallError
	if !errors.As(err, &callErr) {
		return ReasonUnavailable
	}
	return DecodeRevertReason(callErr.Result)
}
