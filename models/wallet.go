package models

// WalletStatus is the connection state of the wallet bridge.
type WalletStatus string

const (
	WalletAbsent     WalletStatus = "absent"
	WalletConnecting WalletStatus = "connecting"
	WalletReady      WalletStatus = "ready"
)

// WalletState carries Account only when Status is ready.
type WalletState struct {
	Status  WalletStatus `json:"status"`
	Account string       `json:"account,omitempty"`
	Attempt int          `json:"attempt"`
}

func (s WalletState) Ready() bool {
	return s.Status == WalletReady && s.Account != ""
}

// Terminal reports whether the monitor has stopped polling for this session.
func (s WalletState) Terminal() bool {
	return s.Status == WalletReady || s.Status == WalletAbsent
}
