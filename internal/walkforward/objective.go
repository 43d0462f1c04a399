package walkforward

import (
	"fmt"
	"math"
)

// Objective 把一段交易账本压缩成一个可比较的分数，越大越好。
type Objective func(stats PerfStats, trades []Trade) float64

var objectives = map[string]Objective{
	"sharpe": func(stats PerfStats, _ []Trade) float64 {
		return stats.Sharpe
	},
	"total_return": func(stats PerfStats, _ []Trade) float64 {
		return stats.TotalReturn
	},
	"profit_factor": func(_ PerfStats, trades []Trade) float64 {
		grossWin, grossLoss := 0.0, 0.0
		for _, t := range trades {
			if t.Return > 0 {
				grossWin += t.Return
			} else {
				grossLoss += -t.Return
			}
		}
		if grossLoss == 0 {
			if grossWin == 0 {
				return 0
			}
			return math.Inf(1)
		}
		return grossWin / grossLoss
	},
}

// ObjectiveByName 按名称查找目标函数。未知名称直接报错，不做静默回退。
func ObjectiveByName(name string) (Objective, error) {
	fn, ok := objectives[name]
	if !ok {
		return nil, fmt.Errorf("未知的目标函数: %q（可选: sharpe/total_return/profit_factor）", name)
	}
	return fn, nil
}
