package strategy

import (
	"github.com/markcheno/go-talib"

	"edgeproof/internal/walkforward"
)

func init() {
	register(smaCross{})
}

// smaCross 双均线交叉：快线上穿慢线做多，下穿平多做空。
// 参数: fast（快线周期）、slow（慢线周期）、allow_short（1 开启做空）。
type smaCross struct{}

func (smaCross) Name() string { return "sma_cross" }

// Lookback 需要慢线周期加一根，才能比较前后两根的均线位置关系。
func (smaCross) Lookback(params walkforward.ParameterSet) int {
	return intParam(params, "slow", 50) + 1
}

func (s smaCross) Decide(win *walkforward.Window, params walkforward.ParameterSet) walkforward.Action {
	fast := intParam(params, "fast", 10)
	slow := intParam(params, "slow", 50)
	if fast >= slow || win.Len() < slow+1 {
		return walkforward.Hold
	}
	closes := win.Closes()
	fastMA := talib.Sma(closes, fast)
	slowMA := talib.Sma(closes, slow)
	n := len(closes) - 1
	crossUp := fastMA[n-1] <= slowMA[n-1] && fastMA[n] > slowMA[n]
	crossDown := fastMA[n-1] >= slowMA[n-1] && fastMA[n] < slowMA[n]
	switch {
	case crossUp:
		return walkforward.EnterLong
	case crossDown:
		if floatParam(params, "allow_short", 0) >= 1 {
			return walkforward.EnterShort
		}
		return walkforward.Exit
	}
	return walkforward.Hold
}
