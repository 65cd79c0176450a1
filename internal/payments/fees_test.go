package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smehubhq/payments-service/internal/models"
)

var testLimits = Limits{Min: 100, Max: 1_000_000}

func TestComputeFee(t *testing.T) {
	cases := []struct {
		name    string
		gross   int64
		feeBps  int64
		wantFee int64
		wantNet int64
	}{
		{"five percent", 10_000, 500, 500, 9_500},
		{"zero fee", 10_000, 0, 0, 10_000},
		{"truncates toward zero", 999, 250, 24, 975}, // 999*250/10000 = 24.975
		{"one minor unit fee", 101, 100, 1, 100},
		{"band lower edge", 100, 500, 5, 95},
		{"band upper edge", 1_000_000, 150, 15_000, 985_000},
		{"full fee", 10_000, 10_000, 10_000, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fb, err := ComputeFee(tc.gross, tc.feeBps, testLimits)
			require.NoError(t, err)
			assert.Equal(t, tc.wantFee, fb.Fee)
			assert.Equal(t, tc.wantNet, fb.Net)
			assert.Equal(t, tc.gross, fb.Fee+fb.Net, "fee + net must reconstruct gross")
		})
	}
}

func TestComputeFeeRejects(t *testing.T) {
	cases := []struct {
		name   string
		gross  int64
		feeBps int64
	}{
		{"zero gross", 0, 500},
		{"negative gross", -10_000, 500},
		{"below band", 99, 500},
		{"above band", 1_000_001, 500},
		{"negative fee", 10_000, -1},
		{"fee above 100 percent", 10_000, 10_001},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeFee(tc.gross, tc.feeBps, testLimits)
			assert.ErrorIs(t, err, models.ErrInvalidAmount)
		})
	}
}

func TestComputeFeeDeterministic(t *testing.T) {
	a, err := ComputeFee(123_457, 375, testLimits)
	require.NoError(t, err)
	b, err := ComputeFee(123_457, 375, testLimits)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
