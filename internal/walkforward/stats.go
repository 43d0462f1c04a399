package walkforward

import "math"

// ComputeStats 从一段交易账本汇总绩效指标。
// 收益按简单加总（不复利），回撤基于累计收益曲线的峰谷差。
func ComputeStats(trades []Trade) PerfStats {
	stats := PerfStats{Trades: len(trades)}
	if len(trades) == 0 {
		return stats
	}
	returns := make([]float64, len(trades))
	wins := 0
	for i, t := range trades {
		returns[i] = t.Return
		stats.TotalReturn += t.Return
		if t.Return > 0 {
			wins++
		}
	}
	stats.WinRate = float64(wins) / float64(len(trades))
	stats.Sharpe = sharpeRatio(returns)
	stats.MaxDrawdown = maxDrawdown(returns)
	return stats
}

// EquityCurve 返回累计收益序列，第 i 项是前 i+1 笔交易的累计收益。
func EquityCurve(trades []Trade) []float64 {
	if len(trades) == 0 {
		return nil
	}
	out := make([]float64, len(trades))
	cum := 0.0
	for i, t := range trades {
		cum += t.Return
		out[i] = cum
	}
	return out
}

// sharpeRatio 按单笔收益计算（无风险利率取 0）。
// 标准差为 0 或样本不足时返回 0，避免把常数序列夸成无穷大。
func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	m := mean(returns)
	sd := stddev(returns, m)
	if sd == 0 {
		return 0
	}
	return m / sd
}

func maxDrawdown(returns []float64) float64 {
	peak, cum, maxDD := 0.0, 0.0, 0.0
	for _, r := range returns {
		cum += r
		if cum > peak {
			peak = cum
		}
		if dd := peak - cum; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev 使用样本标准差（n-1），与 t 检验的自由度保持一致。
func stddev(xs []float64, m float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}
