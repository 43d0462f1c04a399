package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Engine.validate(); err != nil {
		return err
	}
	if err := c.Executor.validate(); err != nil {
		return err
	}
	if err := c.Validator.validate(); err != nil {
		return err
	}
	if err := c.Revalidate.validate(); err != nil {
		return err
	}
	return validateScenarios(c.Scenarios)
}

func (r *RevalidateConfig) validate() error {
	if !r.Enabled {
		return nil
	}
	if strings.TrimSpace(r.Symbol) == "" || strings.TrimSpace(r.Timeframe) == "" || strings.TrimSpace(r.Strategy) == "" {
		return fmt.Errorf("revalidate requires symbol/timeframe/strategy")
	}
	if strings.TrimSpace(r.GridFile) == "" {
		return fmt.Errorf("revalidate.grid_file cannot be empty")
	}
	if !IsValidInterval(r.Interval) {
		return fmt.Errorf("revalidate.interval invalid: %q", r.Interval)
	}
	return nil
}

func (e *EngineConfig) validate() error {
	if e.ISLength <= 0 || e.OOSLength <= 0 {
		return fmt.Errorf("engine.is_length/oos_length must be > 0")
	}
	if e.Step <= 0 {
		return fmt.Errorf("engine.step must be > 0")
	}
	if e.ISLength <= e.OOSLength {
		return fmt.Errorf("engine.is_length must be > oos_length")
	}
	if e.PurgeMultiplier <= 0 && e.PurgeBars <= 0 {
		return fmt.Errorf("engine requires purge_multiplier > 0 or explicit purge_bars")
	}
	switch e.Objective {
	case "sharpe", "total_return", "profit_factor":
	default:
		return fmt.Errorf("engine.objective must be one of sharpe/total_return/profit_factor, got %q", e.Objective)
	}
	return nil
}

func (e *ExecutorConfig) validate() error {
	if e.Workers < 0 {
		return fmt.Errorf("executor.workers must be >= 0 (0 = NumCPU-1)")
	}
	return nil
}

func (v *ValidatorConfig) validate() error {
	if v.ConsistencyMin <= 0 || v.ConsistencyMin > 1 {
		return fmt.Errorf("validator.consistency_min must be in (0, 1]")
	}
	if v.Alpha <= 0 || v.Alpha >= 1 {
		return fmt.Errorf("validator.alpha must be in (0, 1)")
	}
	return nil
}

func validateScenarios(scenarios []ScenarioConfig) error {
	seen := make(map[string]bool, len(scenarios))
	for i, sc := range scenarios {
		id := strings.TrimSpace(sc.ID)
		if id == "" {
			return fmt.Errorf("scenarios[%d] missing id", i)
		}
		if seen[id] {
			return fmt.Errorf("duplicate scenario id: %s", id)
		}
		seen[id] = true
		if sc.Spread < 0 || sc.CommissionPct < 0 || sc.SlippageBps < 0 {
			return fmt.Errorf("scenario %s has negative cost component", id)
		}
	}
	return nil
}

// IsValidInterval 简易校验：以数字开头，以 m/h/d/w 结尾
func IsValidInterval(s string) bool {
	if s == "" {
		return false
	}
	suf := s[len(s)-1]
	if suf != 'm' && suf != 'h' && suf != 'd' && suf != 'w' {
		return false
	}
	for i := 0; i < len(s)-1; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
