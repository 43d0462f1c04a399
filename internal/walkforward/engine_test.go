package walkforward

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engineConfig() EngineConfig {
	return EngineConfig{
		Folds:     FoldConfig{ISLength: 100, OOSLength: 50, Step: 50},
		Grid:      ParameterGrid{"x": {1, 2}},
		Scenarios: []CostScenario{{ID: "frictionless"}},
		Objective: "total_return",
		Validator: DefaultValidatorConfig(),
		Executor:  ExecutorConfig{Workers: 2},
	}
}

func TestRunEngine_EndToEnd(t *testing.T) {
	series := testSeries(t, 400)
	report, err := RunEngine(context.Background(), "e2e", series, alternator(), engineConfig())
	require.NoError(t, err)

	assert.Equal(t, "e2e", report.RunID)
	assert.Contains(t, []string{VerdictValidated, VerdictRejected, VerdictInsufficientData}, report.Verdict)
	assert.Equal(t, len(report.FoldResults), report.Statistics.FoldCount)
	assert.NotEmpty(t, report.FoldResults)
	for _, r := range report.FoldResults {
		assert.Equal(t, UnitStatusOK, r.Status)
	}
}

func TestRunEngine_Deterministic(t *testing.T) {
	first, err := RunEngine(context.Background(), "same", testSeries(t, 400), alternator(), engineConfig())
	require.NoError(t, err)
	second, err := RunEngine(context.Background(), "same", testSeries(t, 400), alternator(), engineConfig())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRunEngine_InsufficientData(t *testing.T) {
	_, err := RunEngine(context.Background(), "short", testSeries(t, 120), alternator(), engineConfig())
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestRunEngine_InvalidInput(t *testing.T) {
	t.Run("nil series", func(t *testing.T) {
		_, err := RunEngine(context.Background(), "x", nil, alternator(), engineConfig())
		assert.ErrorIs(t, err, ErrInsufficientData)
	})
	t.Run("empty grid", func(t *testing.T) {
		cfg := engineConfig()
		cfg.Grid = nil
		_, err := RunEngine(context.Background(), "x", testSeries(t, 400), alternator(), cfg)
		assert.Error(t, err)
	})
	t.Run("unknown objective", func(t *testing.T) {
		cfg := engineConfig()
		cfg.Objective = "bogus"
		_, err := RunEngine(context.Background(), "x", testSeries(t, 400), alternator(), cfg)
		assert.Error(t, err)
	})
}
