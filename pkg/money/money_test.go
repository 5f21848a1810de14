package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDollars(t *testing.T) {
	assert.Equal(t, "$2,500,000", Dollars(2500000))
	assert.Equal(t, "$1,750,000", Dollars(1749999.6))
	assert.Equal(t, "$0", Dollars(0))
	assert.Equal(t, "-$250,000", Dollars(-250000))
}

func TestCents(t *testing.T) {
	assert.Equal(t, "$0.63", Cents(0.625))
	assert.Equal(t, "$1,234.50", Cents(1234.5))
	assert.Equal(t, "-$3.10", Cents(-3.1))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "83.33%", Percent(8000000.0/9600000.0, 2))
	assert.Equal(t, "0.0%", Percent(0, 1))
}

func TestMultipleAndRound(t *testing.T) {
	assert.Equal(t, "9.5x", Multiple(9.5))
	assert.Equal(t, "10.0x", Multiple(10))
	assert.Equal(t, 0.63, Round(0.625, 2))
	assert.Equal(t, 1.67, Round(1.666, 2))
}
