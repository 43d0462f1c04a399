package config

import "strings"

// Config 是 edgeproof 的主配置载体。
type Config struct {
	App        AppConfig        `toml:"app"`
	Data       DataConfig       `toml:"data"`
	Engine     EngineConfig     `toml:"engine"`
	Executor   ExecutorConfig   `toml:"executor"`
	Validator  ValidatorConfig  `toml:"validator"`
	Report     ReportConfig     `toml:"report"`
	Revalidate RevalidateConfig `toml:"revalidate"`
	Scenarios  []ScenarioConfig `toml:"scenarios"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// DataConfig 描述 K 线数据与运行库的位置，以及行情回补的接入方式。
type DataConfig struct {
	Root           string `toml:"root"`       // 每个 symbol@timeframe 一个 sqlite 文件
	RunDBPath      string `toml:"run_db_path"`
	RESTBaseURL    string `toml:"rest_base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// EngineConfig 是 walk-forward 切分与寻优的配置。长度单位都是 K 线根数。
type EngineConfig struct {
	ISLength        int     `toml:"is_length"`
	OOSLength       int     `toml:"oos_length"`
	Step            int     `toml:"step"`
	Anchored        bool    `toml:"anchored"`
	PurgeMultiplier float64 `toml:"purge_multiplier"`
	PurgeBars       int     `toml:"purge_bars"`
	EmbargoBars     int     `toml:"embargo_bars"`
	Objective       string  `toml:"objective"`
}

type ExecutorConfig struct {
	Workers            int  `toml:"workers"`
	UnitTimeoutSeconds int  `toml:"unit_timeout_seconds"`
	IncludeEquity      bool `toml:"include_equity"`
}

type ValidatorConfig struct {
	ConsistencyMin float64 `toml:"consistency_min"`
	Alpha          float64 `toml:"alpha"`
	EfficiencyMin  float64 `toml:"efficiency_min"`
}

type ReportConfig struct {
	HTMLDir string `toml:"html_dir"`
	Enabled bool   `toml:"enabled"`
}

// RevalidateConfig 控制周期性重验证：每根 K 线收盘后重跑一次固定的验证请求，
// 盯住已上线参数是否仍然过关。
type RevalidateConfig struct {
	Enabled       bool   `toml:"enabled"`
	Interval      string `toml:"interval"` // 对齐周期，如 "1h"
	OffsetSeconds int    `toml:"offset_seconds"`
	Symbol        string `toml:"symbol"`
	Timeframe     string `toml:"timeframe"`
	Strategy      string `toml:"strategy"`
	GridFile      string `toml:"grid_file"`
}

// ScenarioConfig 描述一种执行摩擦假设。
type ScenarioConfig struct {
	ID            string  `toml:"id"`
	Spread        float64 `toml:"spread"`
	CommissionPct float64 `toml:"commission_pct"`
	SlippageBps   float64 `toml:"slippage_bps"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
