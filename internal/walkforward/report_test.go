package walkforward

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate_Validated(t *testing.T) {
	params := ParameterSet{"fast": 10, "slow": 50}
	var results []FoldResult
	for i, r := range []float64{1.0, 1.1, 0.9, 1.2, 1.05} {
		fr := okFold(i, 1.0, r, r, 1)
		fr.Params = params
		fr.ParamsHash = params.Hash()
		results = append(results, fr)
	}

	report := Aggregate("run-1", results, nil, DefaultValidatorConfig())
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, VerdictValidated, report.Verdict)
	assert.Equal(t, params, report.Production)
	assert.Len(t, report.FoldResults, 5)
}

func TestAggregate_Rejected(t *testing.T) {
	params := ParameterSet{"fast": 5, "slow": 20}
	var results []FoldResult
	for i := 0; i < 8; i++ {
		fr := okFold(i, 2, 1, 0.5, 4)
		fr.Params = params
		fr.ParamsHash = params.Hash()
		results = append(results, fr)
	}
	for i := 8; i < 10; i++ {
		fr := okFold(i, 2, -5, -1.0, 4)
		fr.Params = params
		fr.ParamsHash = params.Hash()
		results = append(results, fr)
	}

	report := Aggregate("run-2", results, nil, DefaultValidatorConfig())
	assert.Equal(t, VerdictRejected, report.Verdict)
	// 选举与裁决无关：有 OOS 为正的 fold 就报告胜出参数
	assert.Equal(t, params, report.Production)
}

func TestAggregate_InsufficientData(t *testing.T) {
	results := []FoldResult{
		{FoldID: 0, ScenarioID: "frictionless", Status: UnitStatusNoViable},
		{FoldID: 1, ScenarioID: "frictionless", Status: UnitStatusTimeout},
		okFold(2, 1, 0.5, 0.5, 1),
	}

	report := Aggregate("run-3", results, nil, DefaultValidatorConfig())
	assert.Equal(t, VerdictInsufficientData, report.Verdict)
	assert.Nil(t, report.Production)
}

func TestAggregate_WarningsCarried(t *testing.T) {
	warnings := []string{"fold 0 退化（purge=30 >= 可用 IS=20），跳过"}
	results := []FoldResult{okFold(0, 1, 0.5, 0.5, 1), okFold(1, 1, 0.6, 0.6, 1)}

	report := Aggregate("run-4", results, warnings, DefaultValidatorConfig())
	assert.Equal(t, warnings, report.Warnings)
}

func TestAggregate_SortsResults(t *testing.T) {
	results := []FoldResult{
		okFold(1, 1, 0.5, 0.5, 1),
		{FoldID: 0, ScenarioID: "retail", Status: UnitStatusOK, Candidates: 1, OOSReturn: 0.4},
		{FoldID: 0, ScenarioID: "frictionless", Status: UnitStatusOK, Candidates: 1, OOSReturn: 0.6},
	}

	report := Aggregate("run-5", results, nil, DefaultValidatorConfig())
	require.Len(t, report.FoldResults, 3)
	assert.Equal(t, 0, report.FoldResults[0].FoldID)
	assert.Equal(t, "frictionless", report.FoldResults[0].ScenarioID)
	assert.Equal(t, "retail", report.FoldResults[1].ScenarioID)
	assert.Equal(t, 1, report.FoldResults[2].FoldID)
}

func TestProductionParams(t *testing.T) {
	a := ParameterSet{"n": 1}
	b := ParameterSet{"n": 2}

	withParams := func(id int, p ParameterSet, oos float64) FoldResult {
		fr := okFold(id, 1, oos, oos, 1)
		fr.Params = p
		fr.ParamsHash = p.Hash()
		return fr
	}

	t.Run("most frequent winner", func(t *testing.T) {
		results := []FoldResult{
			withParams(0, a, 0.1),
			withParams(1, a, 0.1),
			withParams(2, a, 0.1),
			withParams(3, b, 5.0),
			withParams(4, b, 5.0),
		}
		assert.Equal(t, a, productionParams(results))
	})

	t.Run("tie broken by oos sum", func(t *testing.T) {
		results := []FoldResult{
			withParams(0, a, 1.0),
			withParams(1, a, 1.0),
			withParams(2, b, 1.5),
			withParams(3, b, 1.5),
		}
		assert.Equal(t, b, productionParams(results))
	})

	t.Run("negative folds excluded from tally", func(t *testing.T) {
		results := []FoldResult{
			withParams(0, a, -1.0),
			withParams(1, a, -1.0),
			withParams(2, b, 0.5),
		}
		assert.Equal(t, b, productionParams(results))
	})

	t.Run("no positive winners", func(t *testing.T) {
		results := []FoldResult{withParams(0, a, -1.0)}
		assert.Nil(t, productionParams(results))
	})

	t.Run("empty params excluded", func(t *testing.T) {
		assert.Nil(t, productionParams([]FoldResult{okFold(0, 1, 0.5, 0.5, 1)}))
	})
}
