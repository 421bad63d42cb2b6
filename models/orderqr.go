package models

// PaymentRequest is what the fallback path hands to the presentation layer:
// the QR payload plus the values the user may copy by hand.
type PaymentRequest struct {
	URI            string `json:"uri"`
	Address        string `json:"address"`
	Amount         string `json:"amount"`
	USDT           string `json:"usdt"`
	WalletDeepLink string `json:"wallet_deep_link"`
	WalletInstall  string `json:"wallet_install_url"`
}
