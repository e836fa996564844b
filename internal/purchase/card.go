package purchase

import (
	"strconv"
	"strings"
	"time"

	"github.com/mrlokans/ebookstore/internal/apperr"
	"github.com/mrlokans/ebookstore/internal/gateway"
)

// CardDetails are the card fields submitted with a payment.
type CardDetails struct {
	Number   string
	ExpMonth string
	ExpYear  string
}

// Normalize strips spaces and dashes from the number and whitespace from the expiry.
func (c CardDetails) Normalize() CardDetails {
	number := strings.NewReplacer(" ", "", "-", "").Replace(c.Number)
	return CardDetails{
		Number:   number,
		ExpMonth: strings.TrimSpace(c.ExpMonth),
		ExpYear:  strings.TrimSpace(c.ExpYear),
	}
}

// Validate checks the number format and checksum and that the card has not expired.
// Two-digit years are read as 20YY.
func (c CardDetails) Validate(now time.Time) error {
	c = c.Normalize()

	if len(c.Number) < 12 || len(c.Number) > 19 {
		return apperr.Validation("card_number must have 12 to 19 digits")
	}
	for _, r := range c.Number {
		if r < '0' || r > '9' {
			return apperr.Validation("card_number must contain only digits")
		}
	}
	if !luhnValid(c.Number) {
		return apperr.Validation("card_number is invalid")
	}

	month, err := strconv.Atoi(c.ExpMonth)
	if err != nil || month < 1 || month > 12 {
		return apperr.Validation("card_expiration_month must be between 1 and 12")
	}

	year, err := strconv.Atoi(c.ExpYear)
	if err != nil || year < 0 || (len(c.ExpYear) != 2 && len(c.ExpYear) != 4) {
		return apperr.Validation("card_expiration_year must be a 2 or 4 digit year")
	}
	if len(c.ExpYear) == 2 {
		year += 2000
	}

	// Cards stay valid through the last day of the expiry month.
	expires := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	if !now.UTC().Before(expires) {
		return apperr.Validation("card has expired")
	}
	return nil
}

func (c CardDetails) gatewayCard() gateway.Card {
	c = c.Normalize()
	return gateway.Card{Number: c.Number, ExpMonth: c.ExpMonth, ExpYear: c.ExpYear}
}

func luhnValid(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
