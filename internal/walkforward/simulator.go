package walkforward

import (
	"fmt"

	"edgeproof/internal/market"
)

// Window 是决策函数能看到的全部世界：到当前 K 线为止的历史。
// 模拟器逐根推进并重新切出 Window，策略拿不到任何未来数据，
// 因果性靠结构保证，不靠约定。
type Window struct {
	bars   []market.Candle
	closes []float64
}

func (w *Window) Len() int               { return len(w.bars) }
func (w *Window) At(i int) market.Candle { return w.bars[i] }
func (w *Window) Last() market.Candle    { return w.bars[len(w.bars)-1] }
func (w *Window) Time() int64            { return w.Last().CloseTime }

// Closes 返回到当前为止的收盘价序列。共享底层数组，调用方不得修改。
func (w *Window) Closes() []float64 { return w.closes }

// Strategy 是被测策略需要实现的最小契约。引擎不关心内部逻辑。
type Strategy interface {
	Name() string
	// Lookback 声明给出有效信号前需要的历史 K 线数，用于 purge 的计算与热身。
	Lookback(params ParameterSet) int
	Decide(win *Window, params ParameterSet) Action
}

type simPosition struct {
	direction  Direction
	entryTime  int64
	entryPrice float64
}

// Simulate 在一段 K 线上回放策略，返回交易账本。
// 无任何副作用（不做 I/O、不碰共享状态），可以跨 fold/参数并发调用。
// 同一时刻最多持有一个仓位；区间结束仍未平仓的按最后一根收盘强制平仓，
// 计为真实交易而不是丢弃。
func Simulate(bars []market.Candle, params ParameterSet, scenario CostScenario, strat Strategy) ([]Trade, error) {
	if strat == nil {
		return nil, fmt.Errorf("strategy 不能为空")
	}
	if len(bars) == 0 {
		return nil, nil
	}
	lookback := strat.Lookback(params)
	if lookback <= 0 {
		return nil, fmt.Errorf("策略 %s 的 lookback 必须 > 0 (got %d)", strat.Name(), lookback)
	}
	if len(bars) <= lookback {
		return nil, nil
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	var trades []Trade
	var pos *simPosition
	for i := lookback; i < len(bars); i++ {
		// 三下标切片把容量也钉在窗口末尾，重切超过 len 只会 panic。
		end := i + 1
		win := &Window{bars: bars[:end:end], closes: closes[:end:end]}
		bar := bars[i]
		action := strat.Decide(win, params)
		switch {
		case pos == nil && action == EnterLong:
			pos = &simPosition{
				direction:  Long,
				entryTime:  bar.CloseTime,
				entryPrice: bar.Close + scenario.SlipFor(bar.Close, true),
			}
		case pos == nil && action == EnterShort:
			pos = &simPosition{
				direction:  Short,
				entryTime:  bar.CloseTime,
				entryPrice: bar.Close + scenario.SlipFor(bar.Close, false),
			}
		case pos != nil && shouldClose(pos.direction, action):
			trades = append(trades, closePosition(pos, bar, scenario, false))
			pos = nil
		}
	}
	if pos != nil {
		trades = append(trades, closePosition(pos, bars[len(bars)-1], scenario, true))
	}
	return trades, nil
}

// shouldClose 判断持仓时的动作是否意味着平仓。
// 反向进场信号视为平仓信号，不做同一根 K 线上的反手。
func shouldClose(dir Direction, action Action) bool {
	switch action {
	case Exit:
		return true
	case EnterLong:
		return dir == Short
	case EnterShort:
		return dir == Long
	}
	return false
}

func closePosition(pos *simPosition, bar market.Candle, scenario CostScenario, forced bool) Trade {
	// 平仓滑点方向与开仓相反：多头卖出压价，空头买回抬价。
	exitPrice := bar.Close - scenario.SlipFor(bar.Close, pos.direction == Long)
	var gross float64
	if pos.entryPrice > 0 {
		if pos.direction == Long {
			gross = (exitPrice - pos.entryPrice) / pos.entryPrice
		} else {
			gross = (pos.entryPrice - exitPrice) / pos.entryPrice
		}
	}
	// 开仓、平仓各收一次佣金。
	net := gross - 2*scenario.CommissionPct
	return Trade{
		EntryTime:  pos.entryTime,
		EntryPrice: pos.entryPrice,
		ExitTime:   bar.CloseTime,
		ExitPrice:  exitPrice,
		Direction:  pos.direction,
		Size:       1,
		Return:     net,
		Forced:     forced,
	}
}
