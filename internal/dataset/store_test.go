package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgeproof/internal/market"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleCandles(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		ts := int64(i+1) * 60_000
		out[i] = market.Candle{
			OpenTime:  ts,
			CloseTime: ts + 59_999,
			Open:      100,
			High:      101,
			Low:       99,
			Close:     100 + float64(i),
			Volume:    10,
			Trades:    int64(i),
		}
	}
	return out
}

func TestStore_InsertAndLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.InsertCandles(ctx, "ETHUSDT", "1h", sampleCandles(10))
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	series, err := s.LoadSeries(ctx, "ETHUSDT", "1h", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, series.Len())
	assert.Equal(t, int64(60_000), series.First().OpenTime)

	m, err := s.Manifest(ctx, "ETHUSDT", "1h")
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", m.Symbol)
	assert.Equal(t, "1h", m.Timeframe)
	assert.Equal(t, int64(10), m.Rows)
	assert.Equal(t, int64(60_000), m.MinTime)
	assert.Equal(t, int64(600_000), m.MaxTime)
}

func TestStore_UpsertOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	candles := sampleCandles(3)
	_, err := s.InsertCandles(ctx, "BTCUSDT", "1h", candles)
	require.NoError(t, err)

	candles[1].Close = 999
	_, err = s.InsertCandles(ctx, "BTCUSDT", "1h", candles[1:2])
	require.NoError(t, err)

	all, err := s.ListAllCandles(ctx, "BTCUSDT", "1h")
	require.NoError(t, err)
	require.Len(t, all, 3, "重复 open_time 覆盖而不是追加")
	assert.Equal(t, 999.0, all[1].Close)
}

func TestStore_RangeCandles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.InsertCandles(ctx, "ETHUSDT", "1h", sampleCandles(10))
	require.NoError(t, err)

	got, err := s.RangeCandles(ctx, "ETHUSDT", "1h", 120_000, 300_000)
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, int64(120_000), got[0].OpenTime)

	_, err = s.RangeCandles(ctx, "ETHUSDT", "1h", 0, 0)
	assert.Error(t, err)
}

func TestStore_LoadSeriesEmptyRange(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadSeries(context.Background(), "ETHUSDT", "1h", 1, 2)
	assert.Error(t, err, "空区间必须报错而不是返回空序列")
}

func TestStore_Validation(t *testing.T) {
	_, err := NewStore("")
	assert.Error(t, err)

	s := newTestStore(t)
	_, err = s.ListAllCandles(context.Background(), "", "1h")
	assert.Error(t, err)
}

func TestImportCSV(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	writeCSV := func(t *testing.T, content string) string {
		path := filepath.Join(t.TempDir(), "bars.csv")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("roundtrip", func(t *testing.T) {
		path := writeCSV(t, `open_time,close_time,open,high,low,close,volume,trades
60000,119999,100,101,99,100.5,10,3
120000,179999,100.5,102,100,101,12,5
`)
		n, err := s.ImportCSV(ctx, "ETHUSDT", "4h", path)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		series, err := s.LoadSeries(ctx, "ETHUSDT", "4h", 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, series.Len())
		assert.Equal(t, 100.5, series.At(0).Close)
		assert.Equal(t, int64(5), series.At(1).Trades)
	})

	t.Run("optional columns", func(t *testing.T) {
		path := writeCSV(t, `open_time,open,high,low,close,volume
60000,100,101,99,100.5,10
`)
		n, err := s.ImportCSV(ctx, "SOLUSDT", "1h", path)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("missing required column", func(t *testing.T) {
		path := writeCSV(t, "open_time,open,high,low,volume\n60000,100,101,99,10\n")
		_, err := s.ImportCSV(ctx, "ETHUSDT", "1h", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "close")
	})

	t.Run("bad row aborts whole import", func(t *testing.T) {
		path := writeCSV(t, `open_time,open,high,low,close,volume
60000,100,101,99,100.5,10
oops,100,101,99,100.5,10
`)
		_, err := s.ImportCSV(ctx, "ADAUSDT", "1h", path)
		assert.Error(t, err)

		_, err = s.LoadSeries(ctx, "ADAUSDT", "1h", 0, 0)
		assert.Error(t, err, "失败的导入不能留下半截数据")
	})

	t.Run("header only", func(t *testing.T) {
		path := writeCSV(t, "open_time,open,high,low,close,volume\n")
		_, err := s.ImportCSV(ctx, "ETHUSDT", "1h", path)
		assert.Error(t, err)
	})
}
