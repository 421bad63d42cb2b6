package converter

import (
	"regexp"

	"github.com/shopspring/decimal"

	"trx_discount_back/models"
)

// DisplayPlaces is the number of fractional digits shown for the USDT amount.
const DisplayPlaces = 4

var amountPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

// DefaultDiscount is the fixed 30% discount: USDT = TRX / 0.7.
var DefaultDiscount = decimal.RequireFromString("0.7")

type Converter struct {
	discount decimal.Decimal
}

func NewConverter(discount decimal.Decimal) *Converter {
	if !discount.IsPositive() {
		discount = DefaultDiscount
	}
	return &Converter{discount: discount}
}

// FilterInput returns next when it is a well-formed amount, otherwise prev.
func FilterInput(prev, next string) string {
	if !amountPattern.MatchString(next) {
		return prev
	}
	return next
}

// ParseAmount parses a digits[.digits] string into a positive amount.
func ParseAmount(input string) (decimal.Decimal, bool) {
	if !amountPattern.MatchString(input) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(input)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

// Discount returns amount / discount rounded to DisplayPlaces, the value both shown and charged.
func (c *Converter) Discount(amount decimal.Decimal) decimal.Decimal {
	return amount.DivRound(c.discount, DisplayPlaces+8).Round(DisplayPlaces)
}

// Convert returns "" until a rate is known or when input is not a positive amount.
// The rate only gates readiness; the discount is a fixed ratio.
func (c *Converter) Convert(input string, rate *models.QuoteRate) string {
	if rate == nil {
		return ""
	}
	amount, ok := ParseAmount(input)
	if !ok {
		return ""
	}
	return c.Discount(amount).StringFixed(DisplayPlaces)
}
