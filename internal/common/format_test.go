package common

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatAmount(t *testing.T) {
	out := FormatAmount(decimal.RequireFromString("12.5"))
	assert.Len(t, out, 20)
	assert.Equal(t, "12.500000", strings.TrimSpace(out))
}
