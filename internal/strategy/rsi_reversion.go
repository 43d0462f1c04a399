package strategy

import (
	"github.com/markcheno/go-talib"

	"edgeproof/internal/walkforward"
)

func init() {
	register(rsiReversion{})
}

// rsiReversion RSI 均值回归：超卖进多，回到超买区平仓。只做多。
// 参数: period、oversold、overbought。
type rsiReversion struct{}

func (rsiReversion) Name() string { return "rsi_reversion" }

func (rsiReversion) Lookback(params walkforward.ParameterSet) int {
	// RSI 前 period 根没有输出，再加一根用于判断穿越。
	return intParam(params, "period", 14) + 1
}

func (r rsiReversion) Decide(win *walkforward.Window, params walkforward.ParameterSet) walkforward.Action {
	period := intParam(params, "period", 14)
	oversold := floatParam(params, "oversold", 30)
	overbought := floatParam(params, "overbought", 70)
	if win.Len() < period+1 || oversold >= overbought {
		return walkforward.Hold
	}
	rsi := talib.Rsi(win.Closes(), period)
	cur := rsi[len(rsi)-1]
	switch {
	case cur < oversold:
		return walkforward.EnterLong
	case cur > overbought:
		return walkforward.Exit
	}
	return walkforward.Hold
}
