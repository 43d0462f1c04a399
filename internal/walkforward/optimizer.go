package walkforward

import (
	"context"
	"fmt"
	"sort"

	"edgeproof/internal/market"
)

// ParameterGrid 是参数名到候选取值列表的映射，笛卡尔积展开成全部候选组合。
type ParameterGrid map[string][]float64

// Expand 按参数名排序后做笛卡尔积，顺序确定，同一网格永远得到同一序列。
func (g ParameterGrid) Expand() ([]ParameterSet, error) {
	if len(g) == 0 {
		return nil, fmt.Errorf("参数网格为空")
	}
	names := make([]string, 0, len(g))
	for name, values := range g {
		if len(values) == 0 {
			return nil, fmt.Errorf("参数 %q 没有候选取值", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	out := []ParameterSet{{}}
	for _, name := range names {
		next := make([]ParameterSet, 0, len(out)*len(g[name]))
		for _, base := range out {
			for _, v := range g[name] {
				p := base.Clone()
				p[name] = v
				next = append(next, p)
			}
		}
		out = next
	}
	return out, nil
}

// OptimizeResult 是一次 IS 优化的胜出结果。
type OptimizeResult struct {
	Params     ParameterSet
	Stats      PerfStats
	Score      float64
	Candidates int // 实际评估的候选数，DSR 去噪要用
}

// Optimize 在给定（已做 purge 截断的）IS K 线上评估全部候选参数，
// 返回目标函数得分最高者。平局时取复杂度更低的参数组合；复杂度也相同时
// 按 Hash 字典序取最小，保证结果可复现。
// 单个候选的模拟是有界的，取消/超时在候选之间协作式生效。
// 所有候选都没有产生任何交易时返回 ErrNoViableParameters。
func Optimize(ctx context.Context, bars []market.Candle, candidates []ParameterSet, scenario CostScenario, strat Strategy, objective Objective) (*OptimizeResult, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("候选参数列表为空")
	}
	var best *OptimizeResult
	traded := false
	for _, params := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		trades, err := Simulate(bars, params, scenario, strat)
		if err != nil {
			return nil, fmt.Errorf("评估候选 %s 失败: %w", params.Hash(), err)
		}
		if len(trades) == 0 {
			continue
		}
		traded = true
		stats := ComputeStats(trades)
		score := objective(stats, trades)
		if best == nil || better(score, params, best) {
			best = &OptimizeResult{Params: params, Stats: stats, Score: score}
		}
	}
	if !traded {
		return nil, fmt.Errorf("%d 个候选均未产生交易: %w", len(candidates), ErrNoViableParameters)
	}
	best.Candidates = len(candidates)
	return best, nil
}

func better(score float64, params ParameterSet, cur *OptimizeResult) bool {
	if score != cur.Score {
		return score > cur.Score
	}
	pc, cc := params.Complexity(), cur.Params.Complexity()
	if pc != cc {
		return pc < cc
	}
	return params.Hash() < cur.Params.Hash()
}
