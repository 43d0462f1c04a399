package walkforward

import (
	"fmt"
	"math"

	"edgeproof/internal/logger"
)

// FoldConfig 控制 fold 切分。长度单位都是 K 线根数。
type FoldConfig struct {
	ISLength  int  `json:"is_length"`
	OOSLength int  `json:"oos_length"`
	Step      int  `json:"step"`
	Anchored  bool `json:"anchored"`

	// Lookback 由被测策略声明：指标需要多少根历史 K 线才能给出有效信号。
	Lookback int `json:"lookback"`

	// PurgeMultiplier 默认 1.5（保守经验值，可调）。purge_bars = ceil(lookback * multiplier)。
	PurgeMultiplier float64 `json:"purge_multiplier"`

	// PurgeBars / EmbargoBars 显式覆盖；<=0 时按 multiplier 推导，embargo 默认等于 purge。
	PurgeBars   int `json:"purge_bars"`
	EmbargoBars int `json:"embargo_bars"`
}

func (c FoldConfig) purgeBars() int {
	if c.PurgeBars > 0 {
		return c.PurgeBars
	}
	mult := c.PurgeMultiplier
	if mult <= 0 {
		mult = 1.5
	}
	return int(math.Ceil(float64(c.Lookback) * mult))
}

func (c FoldConfig) embargoBars() int {
	if c.EmbargoBars > 0 {
		return c.EmbargoBars
	}
	return c.purgeBars()
}

func (c FoldConfig) validate(span int) error {
	if span <= 0 {
		return fmt.Errorf("数据区间为空: %w", ErrInsufficientData)
	}
	if c.Lookback <= 0 {
		return fmt.Errorf("lookback 必须 > 0 (got %d)", c.Lookback)
	}
	if c.ISLength <= 0 || c.OOSLength <= 0 {
		return fmt.Errorf("is_length/oos_length 必须 > 0 (got %d/%d)", c.ISLength, c.OOSLength)
	}
	if c.Step <= 0 {
		return fmt.Errorf("step 必须 > 0 (got %d)", c.Step)
	}
	return nil
}

// GenerateFolds 把长度为 span 的数据区间切成带 purge/embargo 的 fold 序列。
// 运行开始时计算一次，之后不再变更。不足 2 个 fold 返回 ErrInsufficientData；
// purge 吃掉整个 IS 的退化 fold 会被跳过并告警，但不中断运行。
// 第二个返回值是写进最终报告的警告列表。
func GenerateFolds(span int, cfg FoldConfig) ([]Fold, []string, error) {
	if err := cfg.validate(span); err != nil {
		return nil, nil, err
	}
	purge := cfg.purgeBars()
	embargo := cfg.embargoBars()

	var folds []Fold
	var warnings []string
	skipped := 0
	id := 0
	for isEnd := cfg.ISLength; isEnd+cfg.OOSLength <= span; isEnd += cfg.Step {
		isStart := 0
		if !cfg.Anchored {
			isStart = isEnd - cfg.ISLength
		}
		// embargo：上一 fold 的 OOS 之后留出死区，新的 IS 不得落进去。
		if n := len(folds); n > 0 {
			prev := folds[n-1]
			if isStart >= prev.OOSEnd && isStart < prev.EmbargoEnd {
				isStart = prev.EmbargoEnd
			}
		}
		oosEnd := isEnd + cfg.OOSLength
		embargoEnd := oosEnd + embargo
		if embargoEnd > span {
			embargoEnd = span
		}
		f := Fold{
			ID:         id,
			ISStart:    isStart,
			PurgeStart: isEnd - purge,
			ISEnd:      isEnd,
			OOSStart:   isEnd,
			OOSEnd:     oosEnd,
			EmbargoEnd: embargoEnd,
		}
		id++
		if f.PurgeStart <= f.ISStart {
			// 退化 fold：purge 之后没有可用的训练数据。
			msg := fmt.Sprintf("fold %d 退化（purge=%d >= 可用 IS=%d），跳过", f.ID, purge, isEnd-isStart)
			logger.Warnf("[folds] %s", msg)
			warnings = append(warnings, msg)
			skipped++
			continue
		}
		folds = append(folds, f)
	}
	if len(folds) < 2 {
		return nil, warnings, fmt.Errorf("只生成了 %d 个可用 fold（跳过 %d 个退化 fold）: %w",
			len(folds), skipped, ErrInsufficientData)
	}
	logger.Debugf("[folds] 生成 %d 个 fold（purge=%d embargo=%d anchored=%v，跳过 %d）",
		len(folds), purge, embargo, cfg.Anchored, skipped)
	return folds, warnings, nil
}
