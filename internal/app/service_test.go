package app

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgeproof/internal/config"
	"edgeproof/internal/dataset"
	"edgeproof/internal/market"
	"edgeproof/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := &config.Config{
		Engine: config.EngineConfig{
			ISLength: 60, OOSLength: 30, Step: 30,
			PurgeMultiplier: 1.5, Objective: "total_return",
		},
		Executor:  config.ExecutorConfig{Workers: 2, UnitTimeoutSeconds: 30},
		Validator: config.ValidatorConfig{ConsistencyMin: 0.5, Alpha: 0.05, EfficiencyMin: 0.3},
		Scenarios: []config.ScenarioConfig{{ID: "frictionless"}},
	}

	data, err := dataset.NewStore(t.TempDir())
	require.NoError(t, err)
	runs, err := store.NewRunStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = runs.Close()
		_ = data.Close()
	})
	return NewService(cfg, data, runs, nil)
}

func seedCandles(t *testing.T, svc *Service, n int) {
	t.Helper()
	candles := make([]market.Candle, n)
	for i := range candles {
		ts := int64(i+1) * 3_600_000
		// 正弦波保证均线来回交叉
		c := 100 + 10*math.Sin(float64(i)/7)
		candles[i] = market.Candle{OpenTime: ts, CloseTime: ts + 3_599_999, Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	_, err := svc.data.InsertCandles(context.Background(), "ETHUSDT", "1h", candles)
	require.NoError(t, err)
}

func waitForStatus(t *testing.T, svc *Service, runID string, statuses ...string) store.RunRecord {
	t.Helper()
	var rec store.RunRecord
	require.Eventually(t, func() bool {
		r, ok, err := svc.GetRun(context.Background(), runID)
		if err != nil || !ok {
			return false
		}
		rec = r
		for _, s := range statuses {
			if r.Status == s {
				return true
			}
		}
		return false
	}, 30*time.Second, 50*time.Millisecond, "运行没有在期限内到达终态")
	return rec
}

func TestService_SubmitRunEndToEnd(t *testing.T) {
	svc := newTestService(t)
	seedCandles(t, svc, 300)

	rec, err := svc.SubmitRun(context.Background(), RunRequest{
		Symbol:    "ethusdt",
		Timeframe: "1H",
		Strategy:  "sma_cross",
		Grid:      map[string][]float64{"fast": {3}, "slow": {6}, "allow_short": {0, 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", rec.Symbol)
	assert.Equal(t, "1h", rec.Timeframe)
	assert.Equal(t, store.RunStatusPending, rec.Status)

	final := waitForStatus(t, svc, rec.RunID, store.RunStatusDone)
	assert.NotEmpty(t, final.Verdict)

	report, ok, err := svc.GetReport(context.Background(), rec.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.RunID, report.RunID)
	assert.NotEmpty(t, report.FoldResults)

	results, err := svc.ListFoldResults(context.Background(), rec.RunID, "")
	require.NoError(t, err)
	assert.Len(t, results, len(report.FoldResults))
}

func TestService_SubmitRunFailsWithoutData(t *testing.T) {
	svc := newTestService(t)

	rec, err := svc.SubmitRun(context.Background(), RunRequest{
		Symbol:    "GHOSTUSDT",
		Timeframe: "1h",
		Strategy:  "sma_cross",
		Grid:      map[string][]float64{"fast": {3}, "slow": {6}},
	})
	require.NoError(t, err, "提交本身成功，失败在后台暴露")

	final := waitForStatus(t, svc, rec.RunID, store.RunStatusFailed)
	assert.Contains(t, final.Error, "加载数据失败")
}

func TestService_SubmitRunFailsWithoutGrid(t *testing.T) {
	svc := newTestService(t)
	seedCandles(t, svc, 300)

	rec, err := svc.SubmitRun(context.Background(), RunRequest{
		Symbol:    "ETHUSDT",
		Timeframe: "1h",
		Strategy:  "sma_cross",
	})
	require.NoError(t, err)

	final := waitForStatus(t, svc, rec.RunID, store.RunStatusFailed)
	assert.Contains(t, final.Error, "grid")
}

func TestService_SubmitRunValidation(t *testing.T) {
	svc := newTestService(t)

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.SubmitRun(context.Background(), RunRequest{})
		assert.Error(t, err)
	})
	t.Run("bad timeframe", func(t *testing.T) {
		_, err := svc.SubmitRun(context.Background(), RunRequest{Symbol: "ETHUSDT", Timeframe: "banana", Strategy: "sma_cross"})
		assert.Error(t, err)
	})
	t.Run("unknown strategy", func(t *testing.T) {
		_, err := svc.SubmitRun(context.Background(), RunRequest{Symbol: "ETHUSDT", Timeframe: "1h", Strategy: "nope"})
		assert.Error(t, err)
	})
	t.Run("invalid range", func(t *testing.T) {
		_, err := svc.SubmitRun(context.Background(), RunRequest{
			Symbol: "ETHUSDT", Timeframe: "1h", Strategy: "sma_cross",
			StartTS: 100, EndTS: 50,
		})
		assert.Error(t, err)
	})
}

func TestService_CancelUnknownRun(t *testing.T) {
	svc := newTestService(t)
	assert.False(t, svc.CancelRun("ghost"))
}

func TestService_Strategies(t *testing.T) {
	svc := newTestService(t)
	assert.Contains(t, svc.Strategies(), "sma_cross")
}

func TestService_BackfillDisabled(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Backfill(context.Background(), "ETHUSDT", "1h", 1, 2)
	assert.Error(t, err, "没有配置行情源时回补必须报错")
}
