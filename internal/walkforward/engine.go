package walkforward

import (
	"context"
	"fmt"

	"edgeproof/internal/logger"
	"edgeproof/internal/market"
)

// EngineConfig 聚合一次运行的全部配置。
type EngineConfig struct {
	Folds     FoldConfig      `json:"folds"`
	Grid      ParameterGrid   `json:"grid"`
	Scenarios []CostScenario  `json:"scenarios"`
	Objective string          `json:"objective"`
	Validator ValidatorConfig `json:"validator"`
	Executor  ExecutorConfig  `json:"executor"`
}

// RunEngine 是引擎的唯一入口：切 fold、并行执行、统计验证、出报告。
// 数据不足以生成 2 个 fold 时返回 ErrInsufficientData，不产出报告。
// 同样的输入（数据、配置、确定性成本场景）产出逐字节相同的报告。
func RunEngine(ctx context.Context, runID string, series *market.Series, strat Strategy, cfg EngineConfig) (*ValidationReport, error) {
	if series == nil || series.Len() == 0 {
		return nil, fmt.Errorf("series 为空: %w", ErrInsufficientData)
	}
	if strat == nil {
		return nil, fmt.Errorf("strategy 不能为空")
	}

	candidates, err := cfg.Grid.Expand()
	if err != nil {
		return nil, fmt.Errorf("展开参数网格失败: %w", err)
	}

	objName := cfg.Objective
	if objName == "" {
		objName = "sharpe"
	}
	objective, err := ObjectiveByName(objName)
	if err != nil {
		return nil, err
	}

	// purge 要覆盖最坏情况：取全部候选里最大的 lookback。
	foldCfg := cfg.Folds
	maxLookback := 0
	for _, p := range candidates {
		if lb := strat.Lookback(p); lb > maxLookback {
			maxLookback = lb
		}
	}
	if maxLookback <= 0 {
		return nil, fmt.Errorf("策略 %s 没有声明有效的 lookback", strat.Name())
	}
	if foldCfg.Lookback < maxLookback {
		foldCfg.Lookback = maxLookback
	}

	folds, warnings, err := GenerateFolds(series.Len(), foldCfg)
	if err != nil {
		return nil, err
	}

	logger.Infof("[engine] run=%s strategy=%s candidates=%d folds=%d objective=%s",
		runID, strat.Name(), len(candidates), len(folds), objName)

	results, err := NewExecutor(cfg.Executor).Run(ctx, RunInput{
		Series:     series,
		Folds:      folds,
		Candidates: candidates,
		Scenarios:  cfg.Scenarios,
		Strategy:   strat,
		Objective:  objective,
	})
	if err != nil {
		return nil, err
	}

	return Aggregate(runID, results, warnings, cfg.Validator), nil
}
