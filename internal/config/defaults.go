package config

import "strings"

// 默认值常量
const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":9992"
	defaultAppLogPath  = "/data/logs/edgeproof.log"
	defaultDataRoot    = "/data/candles"
	defaultRunDBPath   = "/data/db/runs.db"
	defaultRESTBaseURL = "https://fapi.binance.com"
	defaultDataTimeout = 30
	defaultISLength    = 600
	defaultOOSLength   = 200
	defaultStep        = 200
	defaultPurgeMult   = 1.5
	defaultObjective   = "sharpe"
	defaultUnitTimeout = 120
	defaultConsistency = 0.5
	defaultAlpha       = 0.05
	defaultEfficiency  = 0.3
	defaultReportHTML  = "/data/reports"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Data.applyDefaults(keys)
	c.Engine.applyDefaults(keys)
	c.Executor.applyDefaults(keys)
	c.Validator.applyDefaults(keys)
	c.Report.applyDefaults(keys)
	c.Revalidate.applyDefaults(keys)
	if len(c.Scenarios) == 0 {
		c.Scenarios = []ScenarioConfig{{ID: "frictionless"}}
	}
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (d *DataConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("data.root", &d.Root, defaultDataRoot),
		stringFieldDefault("data.run_db_path", &d.RunDBPath, defaultRunDBPath),
		stringFieldDefault("data.rest_base_url", &d.RESTBaseURL, defaultRESTBaseURL),
		fieldDefault{
			key:   "data.timeout_seconds",
			need:  func() bool { return d.TimeoutSeconds <= 0 },
			apply: func() { d.TimeoutSeconds = defaultDataTimeout },
		},
	)
}

func (e *EngineConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "engine.is_length",
			need:  func() bool { return e.ISLength <= 0 },
			apply: func() { e.ISLength = defaultISLength },
		},
		fieldDefault{
			key:   "engine.oos_length",
			need:  func() bool { return e.OOSLength <= 0 },
			apply: func() { e.OOSLength = defaultOOSLength },
		},
		fieldDefault{
			key:   "engine.step",
			need:  func() bool { return e.Step <= 0 },
			apply: func() { e.Step = defaultStep },
		},
		fieldDefault{
			key:   "engine.purge_multiplier",
			need:  func() bool { return e.PurgeMultiplier <= 0 },
			apply: func() { e.PurgeMultiplier = defaultPurgeMult },
		},
		stringFieldDefault("engine.objective", &e.Objective, defaultObjective),
	)
}

func (e *ExecutorConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "executor.unit_timeout_seconds",
			need:  func() bool { return e.UnitTimeoutSeconds <= 0 },
			apply: func() { e.UnitTimeoutSeconds = defaultUnitTimeout },
		},
	)
}

func (v *ValidatorConfig) applyDefaults(keys keySet) {
	if v == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "validator.consistency_min",
			need:  func() bool { return v.ConsistencyMin <= 0 },
			apply: func() { v.ConsistencyMin = defaultConsistency },
		},
		fieldDefault{
			key:   "validator.alpha",
			need:  func() bool { return v.Alpha <= 0 || v.Alpha >= 1 },
			apply: func() { v.Alpha = defaultAlpha },
		},
		fieldDefault{
			key:   "validator.efficiency_min",
			need:  func() bool { return v.EfficiencyMin <= 0 },
			apply: func() { v.EfficiencyMin = defaultEfficiency },
		},
	)
}

func (r *ReportConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("report.html_dir", &r.HTMLDir, defaultReportHTML),
	)
}

func (r *RevalidateConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "revalidate.offset_seconds",
			need:  func() bool { return r.OffsetSeconds <= 0 },
			apply: func() { r.OffsetSeconds = 10 },
		},
	)
	if r.Interval == "" {
		r.Interval = r.Timeframe
	}
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
