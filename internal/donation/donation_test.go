package donation

import (
	"math"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		name        string
		amount      float64
		min         float64
		expectError bool
	}{
		{"CardBelowMinimum", 9.99, MinCardAmount, true},
		{"CardAtMinimum", 10, MinCardAmount, false},
		{"CardAboveMinimum", 250, MinCardAmount, false},
		{"WalletBelowMinimum", 49, MinWalletAmount, true},
		{"WalletAtMinimum", 50, MinWalletAmount, false},
		{"WalletAboveMinimum", 5000, MinWalletAmount, false},
		{"Zero", 0, MinCardAmount, true},
		{"Negative", -10, MinCardAmount, true},
		{"NaN", math.NaN(), MinCardAmount, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAmount(tt.amount, tt.min)
			if tt.expectError {
				assert.Error(t, err)
				assert.ErrorIs(t, errors.Cause(err), ErrInvalidAmount)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount   float64
		expected int64
	}{
		{10, 1000},
		{50, 5000},
		{99.5, 9950},
		{250, 25000},
		{0.01, 1},
		{1234.56, 123456},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, MinorUnits(tt.amount), "amount %v", tt.amount)
	}
}

func TestNewReference_Unique(t *testing.T) {
	// Two references generated back to back share a millisecond timestamp;
	// the random suffix must still keep them distinct.
	first := NewReference()
	second := NewReference()

	assert.True(t, strings.HasPrefix(first, "donation-"))
	assert.True(t, strings.HasPrefix(second, "donation-"))
	assert.NotEqual(t, first, second)
}

func TestBeneficiaryCount(t *testing.T) {
	tests := []struct {
		amount   float64
		expected int
	}{
		{0, 0},
		{249, 0},
		{250, 1},
		{500, 2},
		{999, 3},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, BeneficiaryCount(tt.amount), "amount %v", tt.amount)
	}
}

func TestRecurringDescription(t *testing.T) {
	assert.Equal(t, "Monthly donation of NOK 100", RecurringDescription(100))
	assert.Equal(t, "Support 1 child every month", RecurringDescription(250))
	assert.Equal(t, "Support 2 children every month", RecurringDescription(500))
	assert.Equal(t, "Support 20 children every month", RecurringDescription(5000))
}
