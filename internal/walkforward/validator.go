package walkforward

import (
	"math"

	"edgeproof/internal/logger"
)

// ValidatorConfig 是三道独立关卡的阈值。任何一道不过，策略都不能标记通过。
type ValidatorConfig struct {
	// ConsistencyMin 是 OOS 正收益 fold 占比的下限。
	ConsistencyMin float64 `json:"consistency_min"`
	// Alpha 是 t 检验的显著性水平。
	Alpha float64 `json:"alpha"`
	// EfficiencyMin 是 walk-forward 效率下限；接近 0 或为负说明只在样本内有效。
	EfficiencyMin float64 `json:"efficiency_min"`
}

// DefaultValidatorConfig 的阈值偏保守：宁可拒掉边缘策略。
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		ConsistencyMin: 0.5,
		Alpha:          0.05,
		EfficiencyMin:  0.3,
	}
}

func (c ValidatorConfig) normalized() ValidatorConfig {
	if c.ConsistencyMin <= 0 {
		c.ConsistencyMin = 0.5
	}
	if c.Alpha <= 0 || c.Alpha >= 1 {
		c.Alpha = 0.05
	}
	return c
}

// Validate 汇总全部 fold 结果并计算验证统计量。
// 只有 informative（status=ok）的 fold 参与检验；no_viable/timeout/error
// 的 fold 留在报告里但不计入样本，避免把执行故障当成市场证据。
func Validate(results []FoldResult, cfg ValidatorConfig) Statistics {
	cfg = cfg.normalized()
	stats := Statistics{FoldCount: len(results)}

	var oosReturns, oosSharpes []float64
	sumIS, sumOOS := 0.0, 0.0
	maxCandidates := 0
	positives := 0
	for _, r := range results {
		if !r.Informative() {
			continue
		}
		stats.InformativeFolds++
		oosReturns = append(oosReturns, r.OOSReturn)
		oosSharpes = append(oosSharpes, r.OOSSharpe)
		sumIS += r.ISReturn
		sumOOS += r.OOSReturn
		if r.OOSReturn > 0 {
			positives++
		}
		if r.Candidates > maxCandidates {
			maxCandidates = r.Candidates
		}
	}
	if stats.InformativeFolds == 0 {
		return stats
	}

	stats.ConsistencyRatio = float64(positives) / float64(stats.InformativeFolds)
	stats.TStat, stats.PValue = oneSampleTTest(oosReturns)
	stats.Significant = stats.PValue < cfg.Alpha && stats.TStat > 0

	// 效率：OOS 总收益 / IS 总收益。IS 总收益非正时整个比值失去意义，记 0。
	if sumIS > 0 {
		stats.Efficiency = sumOOS / sumIS
	}

	stats.ObservedMaxSharpe = maxOf(oosSharpes)
	stats.ExpectedNoiseMax = expectedMaxNoiseSharpe(maxCandidates, stddev(oosSharpes, mean(oosSharpes)))
	stats.DeflatedSharpe = stats.ObservedMaxSharpe - stats.ExpectedNoiseMax

	logger.Debugf("[validator] folds=%d/%d consistency=%.3f t=%.3f p=%.4f eff=%.3f dsr=%.3f",
		stats.InformativeFolds, stats.FoldCount, stats.ConsistencyRatio,
		stats.TStat, stats.PValue, stats.Efficiency, stats.DeflatedSharpe)
	return stats
}

// Passed 返回三道关卡是否全部通过。单项达标不构成任何结论。
func (c ValidatorConfig) Passed(s Statistics) bool {
	c = c.normalized()
	if s.InformativeFolds < 2 {
		return false
	}
	return s.ConsistencyRatio >= c.ConsistencyMin &&
		s.Significant &&
		s.Efficiency > c.EfficiencyMin &&
		s.DeflatedSharpe > 0
}

// tStatCap 是 t 统计量的上限。零方差序列的 t 在数学上是 ±∞，
// 但 encoding/json 拒绝 ±Inf，报告会在落库时整体失败，统一截到该值。
const tStatCap = 1e9

// oneSampleTTest 对零均值做单样本 t 检验，返回 t 统计量和双侧 p 值。
func oneSampleTTest(xs []float64) (t, p float64) {
	n := len(xs)
	if n < 2 {
		return 0, 1
	}
	m := mean(xs)
	sd := stddev(xs, m)
	if sd == 0 {
		if m == 0 {
			return 0, 1
		}
		// 全部同号的常数序列：方向确定，p 值取 0，t 截到上限保持可序列化。
		return math.Copysign(tStatCap, m), 0
	}
	t = m / (sd / math.Sqrt(float64(n)))
	p = studentTTwoSided(t, float64(n-1))
	return t, p
}

// expectedMaxNoiseSharpe 估计纯噪声下 n 个候选的期望最大 Sharpe：
//
//	E[max] ≈ σ · ((1−γ)·Φ⁻¹(1−1/n) + γ·Φ⁻¹(1−1/(n·e)))
//
// γ 为 Euler–Mascheroni 常数。优化器每个 fold 都挑了 n 个候选里的最优者，
// 观测到的最大 Sharpe 必须先扣掉这部分选择偏差才有资格谈技能。
func expectedMaxNoiseSharpe(n int, sharpeStd float64) float64 {
	if n < 2 || sharpeStd <= 0 {
		return 0
	}
	const gamma = 0.5772156649015329
	nf := float64(n)
	return sharpeStd * ((1-gamma)*invNormCDF(1-1/nf) + gamma*invNormCDF(1-1/(nf*math.E)))
}

// invNormCDF 是标准正态分布的分位数函数。
func invNormCDF(p float64) float64 {
	return math.Sqrt2 * math.Erfinv(2*p-1)
}

// studentTTwoSided 返回自由度 df 下 |T| >= |t| 的双侧概率，
// 通过正则化不完全 Beta 函数计算。
func studentTTwoSided(t, df float64) float64 {
	if df <= 0 {
		return 1
	}
	x := df / (df + t*t)
	return regIncBeta(df/2, 0.5, x)
}

// regIncBeta 计算正则化不完全 Beta 函数 I_x(a, b)，
// Lentz 连分数展开（Numerical Recipes betacf）。
func regIncBeta(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	lbeta, _ := math.Lgamma(a + b)
	la, _ := math.Lgamma(a)
	lb, _ := math.Lgamma(b)
	front := math.Exp(lbeta - la - lb + a*math.Log(x) + b*math.Log(1-x))
	if x < (a+1)/(a+b+2) {
		return front * betaCF(a, b, x) / a
	}
	return 1 - front*betaCF(b, a, 1-x)/b
}

func betaCF(a, b, x float64) float64 {
	const (
		maxIter = 200
		eps     = 3e-14
		tiny    = 1e-30
	)
	qab, qap, qam := a+b, a+1, a-1
	c, d := 1.0, 1.0-qab*x/qap
	if math.Abs(d) < tiny {
		d = tiny
	}
	d = 1 / d
	h := d
	for m := 1; m <= maxIter; m++ {
		mf := float64(m)
		aa := mf * (b - mf) * x / ((qam + 2*mf) * (a + 2*mf))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		h *= d * c
		aa = -(a + mf) * (qab + mf) * x / ((a + 2*mf) * (qap + 2*mf))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		del := d * c
		h *= del
		if math.Abs(del-1) < eps {
			break
		}
	}
	return h
}

func maxOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}
