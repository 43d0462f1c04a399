package walkforward

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func tradesFromReturns(returns ...float64) []Trade {
	out := make([]Trade, len(returns))
	for i, r := range returns {
		out[i] = Trade{Return: r, Size: 1}
	}
	return out
}

func TestComputeStats(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		stats := ComputeStats(nil)
		assert.Zero(t, stats.Trades)
		assert.Zero(t, stats.TotalReturn)
		assert.Zero(t, stats.Sharpe)
	})

	t.Run("mixed returns", func(t *testing.T) {
		stats := ComputeStats(tradesFromReturns(0.1, -0.05, 0.2, -0.1))
		assert.Equal(t, 4, stats.Trades)
		assert.InDelta(t, 0.15, stats.TotalReturn, 1e-12)
		assert.InDelta(t, 0.5, stats.WinRate, 1e-12)
	})

	t.Run("constant returns have zero sharpe", func(t *testing.T) {
		stats := ComputeStats(tradesFromReturns(0.1, 0.1, 0.1))
		assert.Zero(t, stats.Sharpe)
	})
}

func TestMaxDrawdown(t *testing.T) {
	// 累计曲线: 0.1, 0.3, 0.1, -0.1, 0.0 → 峰 0.3，谷 -0.1
	stats := ComputeStats(tradesFromReturns(0.1, 0.2, -0.2, -0.2, 0.1))
	assert.InDelta(t, 0.4, stats.MaxDrawdown, 1e-12)

	// 单调上涨无回撤
	stats = ComputeStats(tradesFromReturns(0.1, 0.2, 0.3))
	assert.Zero(t, stats.MaxDrawdown)
}

func TestEquityCurve(t *testing.T) {
	assert.Nil(t, EquityCurve(nil))

	curve := EquityCurve(tradesFromReturns(0.1, -0.05, 0.2))
	assert.InDeltaSlice(t, []float64{0.1, 0.05, 0.25}, curve, 1e-12)
}
