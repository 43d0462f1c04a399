package walkforward

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"edgeproof/internal/logger"
	"edgeproof/internal/market"
)

// ExecutorConfig 控制并发与单元超时。
type ExecutorConfig struct {
	// Workers <= 0 时取 NumCPU-1（留一个核给调度与 I/O）。
	Workers int `json:"workers"`
	// UnitTimeout 是单个 (fold × 场景) 单元的最长运行时间，<=0 表示不限。
	UnitTimeout time.Duration `json:"unit_timeout"`
	// IncludeEquity 控制是否在结果里携带 OOS 累计收益曲线（报表用）。
	IncludeEquity bool `json:"include_equity"`
}

func (c ExecutorConfig) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

// RunInput 是一次完整执行需要的全部只读输入。
// Series 和 Folds 在执行期间不再变更，worker 之间无需任何锁。
type RunInput struct {
	Series     *market.Series
	Folds      []Fold
	Candidates []ParameterSet
	Scenarios  []CostScenario
	Strategy   Strategy
	Objective  Objective
}

// Executor 把 fold × 成本场景的全组合摊给有界 worker 池。
// 每个单元内部对全部候选参数做 IS 寻优，再用胜出参数跑 OOS。
// 单元之间完全独立：超时、报错、panic 都只影响自己那条结果，
// 提交多少单元就回收多少条结果，一条不多一条不少。
type Executor struct {
	cfg ExecutorConfig
}

func NewExecutor(cfg ExecutorConfig) *Executor {
	return &Executor{cfg: cfg}
}

// Run 执行全部单元并按 (fold_id, scenario_id) 排序返回。
// ctx 取消是协作式的：在途单元跑完，未开始的单元不再提交。
func (e *Executor) Run(ctx context.Context, in RunInput) ([]FoldResult, error) {
	if in.Series == nil || in.Series.Len() == 0 {
		return nil, fmt.Errorf("series 为空: %w", ErrInsufficientData)
	}
	if len(in.Folds) == 0 {
		return nil, fmt.Errorf("没有可执行的 fold: %w", ErrInsufficientData)
	}
	if in.Strategy == nil || in.Objective == nil {
		return nil, fmt.Errorf("strategy/objective 不能为空")
	}
	scenarios := in.Scenarios
	if len(scenarios) == 0 {
		scenarios = []CostScenario{{ID: "frictionless"}}
	}

	workers := e.cfg.workers()
	total := len(in.Folds) * len(scenarios)
	logger.Infof("[executor] %d fold × %d 场景 = %d 单元，workers=%d",
		len(in.Folds), len(scenarios), total, workers)

	sem := semaphore.NewWeighted(int64(workers))
	results := make([]FoldResult, 0, total)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, fold := range in.Folds {
		for _, scenario := range scenarios {
			if ctx.Err() != nil {
				break
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}
			wg.Add(1)
			go func(fold Fold, scenario CostScenario) {
				defer wg.Done()
				defer sem.Release(1)
				r := e.runUnit(ctx, in, fold, scenario)
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
			}(fold, scenario)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("运行被取消（完成 %d/%d 单元）: %w", len(results), total, err)
	}
	if len(results) != total {
		// 不应发生：取消之外每个单元必须落一条结果。
		return nil, fmt.Errorf("单元对账失败: 提交 %d 回收 %d", total, len(results))
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].FoldID != results[j].FoldID {
			return results[i].FoldID < results[j].FoldID
		}
		return results[i].ScenarioID < results[j].ScenarioID
	})
	return results, nil
}

// runUnit 跑一个 (fold × 场景) 单元，任何失败模式都折叠成带状态的结果。
func (e *Executor) runUnit(parent context.Context, in RunInput, fold Fold, scenario CostScenario) (result FoldResult) {
	result = FoldResult{FoldID: fold.ID, ScenarioID: scenario.ID, Candidates: len(in.Candidates)}

	defer func() {
		if rec := recover(); rec != nil {
			result.Status = UnitStatusError
			result.Err = fmt.Sprintf("panic: %v", rec)
			logger.Errorf("[executor] fold=%d scenario=%s panic: %v", fold.ID, scenario.ID, rec)
		}
	}()

	ctx := parent
	if e.cfg.UnitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, e.cfg.UnitTimeout)
		defer cancel()
	}

	lookback := in.Strategy.Lookback(nil)

	trainStart, trainEnd := fold.TrainRange()
	isBars := in.Series.Range(trainStart, trainEnd)
	opt, err := Optimize(ctx, isBars, in.Candidates, scenario, in.Strategy, in.Objective)
	if err != nil {
		return e.classify(result, fold, scenario, err)
	}
	result.Params = opt.Params
	result.ParamsHash = opt.Params.Hash()
	result.ISReturn = opt.Stats.TotalReturn
	result.ISSharpe = opt.Stats.Sharpe

	// OOS 热身用 OOS 之前的 lookback 根历史（全部是过去数据），
	// 第一笔决策恰好落在 oos_start。
	if lb := in.Strategy.Lookback(opt.Params); lb > 0 {
		lookback = lb
	}
	oosStart, oosEnd := fold.TestRange()
	warmupStart := oosStart - lookback
	if warmupStart < 0 {
		warmupStart = 0
	}
	oosBars := in.Series.Range(warmupStart, oosEnd)
	trades, err := Simulate(oosBars, opt.Params, scenario, in.Strategy)
	if err != nil {
		return e.classify(result, fold, scenario, err)
	}
	if err := ctx.Err(); err != nil {
		return e.classify(result, fold, scenario, err)
	}

	oosStats := ComputeStats(trades)
	result.Status = UnitStatusOK
	result.OOSReturn = oosStats.TotalReturn
	result.OOSSharpe = oosStats.Sharpe
	result.OOSTrades = oosStats.Trades
	result.OOSMaxDrawdown = oosStats.MaxDrawdown
	if e.cfg.IncludeEquity {
		result.OOSEquity = EquityCurve(trades)
	}
	return result
}

func (e *Executor) classify(r FoldResult, fold Fold, scenario CostScenario, err error) FoldResult {
	switch {
	case errors.Is(err, ErrNoViableParameters):
		r.Status = UnitStatusNoViable
	case errors.Is(err, context.DeadlineExceeded):
		r.Status = UnitStatusTimeout
		logger.Warnf("[executor] fold=%d scenario=%s 超时", fold.ID, scenario.ID)
	case errors.Is(err, context.Canceled):
		// 整体取消：单元照常落账，最终由 Run 统一报取消。
		r.Status = UnitStatusError
	default:
		r.Status = UnitStatusError
		logger.Errorf("[executor] fold=%d scenario=%s 失败: %v", fold.ID, scenario.ID, err)
	}
	r.Err = err.Error()
	return r
}
