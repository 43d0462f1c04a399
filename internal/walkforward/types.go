package walkforward

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// 结果状态。每个提交的工作单元最终都落在其中之一，报告必须 100% 对账。
const (
	UnitStatusOK       = "ok"
	UnitStatusNoViable = "no_viable_params"
	UnitStatusTimeout  = "timeout"
	UnitStatusError    = "error"
)

// 最终裁决。
const (
	VerdictValidated        = "validated"
	VerdictRejected         = "rejected"
	VerdictInsufficientData = "insufficient_data"
)

var (
	// ErrInsufficientData 表示数据不足以生成至少 2 个 fold，整个运行终止。
	ErrInsufficientData = errors.New("insufficient data for walk-forward folds")
	// ErrNoViableParameters 表示某个 fold 的所有候选参数都没有产生任何交易。
	ErrNoViableParameters = errors.New("no viable parameters")
)

// Action 是决策函数的输出。
type Action int

const (
	Hold Action = iota
	EnterLong
	EnterShort
	Exit
)

func (a Action) String() string {
	switch a {
	case EnterLong:
		return "enter_long"
	case EnterShort:
		return "enter_short"
	case Exit:
		return "exit"
	default:
		return "hold"
	}
}

// ParameterSet 是策略参数的命名映射，引擎不解释其内容。
type ParameterSet map[string]float64

// Clone 返回深拷贝。
func (p ParameterSet) Clone() ParameterSet {
	out := make(ParameterSet, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Hash 返回稳定的字符串键（按参数名排序），用于结果表 join 与胜者计数。
func (p ParameterSet) Hash() string {
	if len(p) == 0 {
		return ""
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%g", k, p[k])
	}
	return b.String()
}

// Complexity 用参数个数加绝对值之和度量复杂度，优化器用它打破平局，
// 偏向更简单的参数组合。
func (p ParameterSet) Complexity() float64 {
	c := float64(len(p))
	for _, v := range p {
		c += math.Abs(v)
	}
	return c
}

// CostScenario 描述一种执行摩擦假设，应用于该场景下的每一笔成交。
type CostScenario struct {
	ID            string  `json:"id"`
	Spread        float64 `json:"spread"`         // 绝对价差，成交时收取一半
	CommissionPct float64 `json:"commission_pct"` // 按名义价值的比例佣金
	SlippageBps   float64 `json:"slippage_bps"`   // 固定滑点（基点）
}

// SlipFor 返回给定方向下对成交价的滑点修正（买入抬价、卖出压价）。
// 确定性模型：同样输入永远得到同样输出，保证整个引擎可复现。
func (c CostScenario) SlipFor(price float64, long bool) float64 {
	slip := price*c.SlippageBps/10000 + c.Spread/2
	if long {
		return slip
	}
	return -slip
}

// Direction 是持仓方向。
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// Trade 是模拟器产出的一笔完整交易。ExitTime >= EntryTime 恒成立。
type Trade struct {
	EntryTime  int64     `json:"entry_time"`
	EntryPrice float64   `json:"entry_price"`
	ExitTime   int64     `json:"exit_time"`
	ExitPrice  float64   `json:"exit_price"`
	Direction  Direction `json:"direction"`
	Size       float64   `json:"size"`
	Return     float64   `json:"return"` // 含摩擦成本的单笔收益率
	Forced     bool      `json:"forced"` // 区间结束强制平仓
}

// Fold 描述一个训练/检验窗口对，全部用序列下标表示（半开区间）。
// 不变量: ISStart <= PurgeStart <= ISEnd == OOSStart <= OOSEnd <= EmbargoEnd。
type Fold struct {
	ID         int `json:"id"`
	ISStart    int `json:"is_start"`
	PurgeStart int `json:"purge_start"` // purge 之后可用的 IS 终点
	ISEnd      int `json:"is_end"`      // == OOSStart
	OOSStart   int `json:"oos_start"`
	OOSEnd     int `json:"oos_end"`
	EmbargoEnd int `json:"embargo_end"`
}

// TrainRange 返回 purge 截断后的可用 IS 区间。
func (f Fold) TrainRange() (start, end int) { return f.ISStart, f.PurgeStart }

// TestRange 返回 OOS 区间。
func (f Fold) TestRange() (start, end int) { return f.OOSStart, f.OOSEnd }

// PerfStats 汇总一段交易序列的绩效。
type PerfStats struct {
	TotalReturn float64 `json:"total_return"`
	Sharpe      float64 `json:"sharpe"`
	MaxDrawdown float64 `json:"max_drawdown"`
	Trades      int     `json:"trades"`
	WinRate     float64 `json:"win_rate"`
}

// FoldResult 是 (fold × 胜出参数 × 成本场景) 的一条最终记录，写入后不再修改。
type FoldResult struct {
	FoldID         int          `json:"fold_id"`
	Params         ParameterSet `json:"params"`
	ParamsHash     string       `json:"params_hash"`
	ScenarioID     string       `json:"scenario_id"`
	Status         string       `json:"status"`
	Err            string       `json:"error,omitempty"`
	Candidates     int          `json:"candidates"` // 该 fold 实际评估的候选数
	ISReturn       float64      `json:"is_return"`
	ISSharpe       float64      `json:"is_sharpe"`
	OOSReturn      float64      `json:"oos_return"`
	OOSSharpe      float64      `json:"oos_sharpe"`
	OOSTrades      int          `json:"oos_trades"`
	OOSMaxDrawdown float64      `json:"oos_max_drawdown"`
	OOSEquity      []float64    `json:"oos_equity,omitempty"`
}

// Informative 返回该记录是否应计入显著性统计。
// no_viable/timeout/error 的 fold 保留在报告里但不参与检验。
func (r FoldResult) Informative() bool {
	return r.Status == UnitStatusOK
}

// Statistics 是验证器的输出。
type Statistics struct {
	FoldCount         int     `json:"fold_count"`
	InformativeFolds  int     `json:"informative_folds"`
	ConsistencyRatio  float64 `json:"consistency_ratio"`
	TStat             float64 `json:"t_stat"`
	PValue            float64 `json:"p_value"`
	Significant       bool    `json:"significant"`
	Efficiency        float64 `json:"efficiency"`
	ObservedMaxSharpe float64 `json:"observed_max_sharpe"`
	ExpectedNoiseMax  float64 `json:"expected_noise_max_sharpe"`
	DeflatedSharpe    float64 `json:"deflated_sharpe"`
}

// ValidationReport 是交给下游（执行桥/看板）的终态对象。
type ValidationReport struct {
	RunID       string       `json:"run_id"`
	Verdict     string       `json:"verdict"`
	Statistics  Statistics   `json:"statistics"`
	FoldResults []FoldResult `json:"fold_results"`
	Production  ParameterSet `json:"production_params,omitempty"`
	Warnings    []string     `json:"warnings,omitempty"`
}
