package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candlesAt(times ...int64) []Candle {
	out := make([]Candle, len(times))
	for i, ts := range times {
		out[i] = Candle{OpenTime: ts, CloseTime: ts + 59_999, Close: 100 + float64(i)}
	}
	return out
}

func TestNewSeries(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		s, err := NewSeries(candlesAt(0, 60_000, 120_000))
		require.NoError(t, err)
		assert.Equal(t, 3, s.Len())
		assert.Equal(t, int64(0), s.First().OpenTime)
		assert.Equal(t, int64(120_000), s.Last().OpenTime)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := NewSeries(nil)
		assert.Error(t, err)
	})

	t.Run("duplicate timestamp", func(t *testing.T) {
		_, err := NewSeries(candlesAt(0, 60_000, 60_000))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "重复时间戳")
	})

	t.Run("out of order", func(t *testing.T) {
		_, err := NewSeries(candlesAt(0, 120_000, 60_000))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "时间戳乱序")
	})

	t.Run("owns its copy", func(t *testing.T) {
		input := candlesAt(0, 60_000)
		s, err := NewSeries(input)
		require.NoError(t, err)
		input[0].Close = -1
		assert.Equal(t, 100.0, s.At(0).Close)
	})
}

func TestSeries_Range(t *testing.T) {
	s, err := NewSeries(candlesAt(0, 60_000, 120_000, 180_000))
	require.NoError(t, err)

	assert.Len(t, s.Range(1, 3), 2)
	assert.Len(t, s.Range(-5, 2), 2, "负起点截断为 0")
	assert.Len(t, s.Range(2, 99), 2, "越界终点截断为 Len")
	assert.Nil(t, s.Range(3, 3))
	assert.Nil(t, s.Range(3, 1))
}

func TestSeries_IndexAtOrAfter(t *testing.T) {
	s, err := NewSeries(candlesAt(0, 60_000, 120_000))
	require.NoError(t, err)

	assert.Equal(t, 0, s.IndexAtOrAfter(0))
	assert.Equal(t, 1, s.IndexAtOrAfter(1))
	assert.Equal(t, 1, s.IndexAtOrAfter(60_000))
	assert.Equal(t, 3, s.IndexAtOrAfter(999_999), "超过末尾返回 Len")
}

func TestSeries_DetectGaps(t *testing.T) {
	s, err := NewSeries(candlesAt(0, 60_000, 240_000, 300_000))
	require.NoError(t, err)

	gaps := s.DetectGaps(60_000)
	require.Len(t, gaps, 1)
	assert.Equal(t, Gap{AfterTime: 60_000, BeforeTime: 240_000, Missing: 2}, gaps[0])

	assert.Nil(t, s.DetectGaps(0))

	dense, err := NewSeries(candlesAt(0, 60_000, 120_000))
	require.NoError(t, err)
	assert.Nil(t, dense.DetectGaps(60_000))
}

func TestSeries_Closes(t *testing.T) {
	s, err := NewSeries(candlesAt(0, 60_000, 120_000))
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 101, 102}, s.Closes())
}
