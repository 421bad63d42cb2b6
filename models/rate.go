package models

import "time"

type RateSource string

const (
	RateSourceOracle   RateSource = "oracle"
	RateSourceFallback RateSource = "fallback"
)

// QuoteRate is the TRX price in USD. Replaced wholesale on every refresh.
type QuoteRate struct {
	Value     float64    `json:"value"`
	Source    RateSource `json:"source"`
	FetchedAt time.Time  `json:"fetched_at"`
}

type ConvertRequest struct {
	Amount string `json:"amount"`
}

type ConvertResponse struct {
	Amount string    `json:"amount"`
	USDT   string    `json:"usdt"`
	Rate   QuoteRate `json:"rate"`
}

type InputRequest struct {
	Value string `json:"value"`
}
