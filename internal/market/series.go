package market

import (
	"fmt"
)

// Series 是一段按 open_time 升序排列、时间戳唯一的 K 线序列。
// 构建成功后只读；引擎的所有窗口切分都基于它的下标。
type Series struct {
	candles []Candle
}

// Gap 描述序列中一段缺失的 K 线区间（仅记录，不回填）。
type Gap struct {
	AfterTime  int64 `json:"after_time"`
	BeforeTime int64 `json:"before_time"`
	Missing    int   `json:"missing"`
}

// NewSeries 校验并封装一段 K 线：时间戳必须严格递增（重复或乱序直接拒绝）。
func NewSeries(candles []Candle) (*Series, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("series 不能为空")
	}
	for i := 1; i < len(candles); i++ {
		prev, cur := candles[i-1].OpenTime, candles[i].OpenTime
		if cur == prev {
			return nil, fmt.Errorf("重复时间戳: open_time=%d (index %d)", cur, i)
		}
		if cur < prev {
			return nil, fmt.Errorf("时间戳乱序: index %d (%d < %d)", i, cur, prev)
		}
	}
	owned := make([]Candle, len(candles))
	copy(owned, candles)
	return &Series{candles: owned}, nil
}

func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.candles)
}

// At 返回第 i 根 K 线。越界视为调用方 bug，保持 slice 语义直接 panic。
func (s *Series) At(i int) Candle {
	return s.candles[i]
}

// Range 返回 [start, end) 的副本视图。底层数组共享，调用方不得修改。
func (s *Series) Range(start, end int) []Candle {
	if s == nil {
		return nil
	}
	if start < 0 {
		start = 0
	}
	if end > len(s.candles) {
		end = len(s.candles)
	}
	if start >= end {
		return nil
	}
	return s.candles[start:end]
}

func (s *Series) First() Candle { return s.candles[0] }
func (s *Series) Last() Candle  { return s.candles[len(s.candles)-1] }

// IndexAtOrAfter 返回第一个 open_time >= ts 的下标（二分查找）。
func (s *Series) IndexAtOrAfter(ts int64) int {
	lo, hi := 0, len(s.candles)
	for lo < hi {
		mid := (lo + hi) / 2
		if s.candles[mid].OpenTime < ts {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// DetectGaps 按给定周期扫描缺口。缺口只报告，绝不静默补值。
func (s *Series) DetectGaps(intervalMs int64) []Gap {
	if s == nil || intervalMs <= 0 || len(s.candles) < 2 {
		return nil
	}
	var gaps []Gap
	for i := 1; i < len(s.candles); i++ {
		delta := s.candles[i].OpenTime - s.candles[i-1].OpenTime
		if delta > intervalMs {
			gaps = append(gaps, Gap{
				AfterTime:  s.candles[i-1].OpenTime,
				BeforeTime: s.candles[i].OpenTime,
				Missing:    int(delta/intervalMs) - 1,
			})
		}
	}
	return gaps
}

// Closes 提取收盘价序列，供指标计算使用。
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.candles))
	for i, c := range s.candles {
		out[i] = c.Close
	}
	return out
}
