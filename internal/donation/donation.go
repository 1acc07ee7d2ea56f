package donation

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
)

// Error taxonomy shared by the handlers and both provider clients.
var (
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrProviderNotConfigured = errors.New("provider not configured")
	ErrProviderAPI           = errors.New("provider API error")
	ErrAuthFailure           = errors.New("provider auth failure")
)

const (
	// MinCardAmount is the smallest accepted card-checkout donation, in NOK.
	MinCardAmount = 10
	// MinWalletAmount is the smallest accepted Vipps donation, in NOK.
	MinWalletAmount = 50

	// BeneficiaryCost is the monthly cost of supporting one child, in NOK.
	BeneficiaryCost = 250
)

// Presets are the suggested donation amounts in NOK, keyed by the number of
// children the amount supports each month. Mirrored by the frontend.
var Presets = map[int]float64{
	1:  250,
	2:  500,
	4:  1000,
	10: 2500,
	20: 5000,
}

// Request is the donor's intake from the presentation layer.
type Request struct {
	Amount    float64 `json:"amount"`
	Recurring bool    `json:"isRecurring"`
}

// ValidateAmount rejects amounts that are absent, not a number, or below the
// provider-specific minimum. No currency conversion happens anywhere; the
// deployment currency is fixed.
func ValidateAmount(amount, min float64) error {
	if math.IsNaN(amount) || amount <= 0 {
		return errors.Wrap(ErrInvalidAmount, "amount must be a positive number")
	}
	if amount < min {
		return errors.Wrapf(ErrInvalidAmount, "amount must be at least NOK %.0f", min)
	}
	return nil
}

// MinorUnits converts a major-unit amount to the smallest currency
// denomination (øre for NOK). Both providers price in minor units.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// NewReference generates a locally-unique payment reference. It is created
// before the provider call so failed calls can still be correlated in logs.
func NewReference() string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("donation-%d-%s", time.Now().UnixMilli(), hex.EncodeToString(suffix))
}

// NewAgreementID generates a locally-unique id for a monthly donation. It
// only travels in the merchant redirect URL so the success page can identify
// the agreement; the provider assigns its own agreement id.
func NewAgreementID() string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("monthly-%d-%s", time.Now().UnixMilli(), hex.EncodeToString(suffix))
}

// BeneficiaryCount is how many children a monthly amount supports. Display
// value only.
func BeneficiaryCount(amount float64) int {
	return int(math.Floor(amount / BeneficiaryCost))
}

// RecurringDescription builds the product description attached to a recurring
// agreement.
func RecurringDescription(amount float64) string {
	count := BeneficiaryCount(amount)
	switch {
	case count == 1:
		return "Support 1 child every month"
	case count > 1:
		return fmt.Sprintf("Support %d children every month", count)
	default:
		return fmt.Sprintf("Monthly donation of NOK %.0f", amount)
	}
}
