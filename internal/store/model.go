// Package store 负责运行与报告的落盘：gorm + SQLite，WAL 模式。
package store

import (
	"time"

	"gorm.io/datatypes"
)

// 运行状态机：pending -> running -> done/failed/canceled。
const (
	RunStatusPending  = "pending"
	RunStatusRunning  = "running"
	RunStatusDone     = "done"
	RunStatusFailed   = "failed"
	RunStatusCanceled = "canceled"
)

// RunRecord 是一次验证运行的元信息。
type RunRecord struct {
	RunID       string    `json:"run_id"`
	Symbol      string    `json:"symbol"`
	Timeframe   string    `json:"timeframe"`
	Strategy    string    `json:"strategy"`
	Status      string    `json:"status"`
	Verdict     string    `json:"verdict,omitempty"`
	RequestJSON string    `json:"request_json,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
}

type runModel struct {
	ID          int64          `gorm:"column:id;primaryKey"`
	RunUUID     string         `gorm:"column:run_uuid;uniqueIndex"`
	Symbol      string         `gorm:"column:symbol;index"`
	Timeframe   string         `gorm:"column:timeframe"`
	Strategy    string         `gorm:"column:strategy;index"`
	Status      string         `gorm:"column:status;index"`
	Verdict     string         `gorm:"column:verdict"`
	RequestJSON datatypes.JSON `gorm:"column:request_json"`
	Error       string         `gorm:"column:error"`
	CreatedAt   int64          `gorm:"column:created_at;index"`
	StartedAt   int64          `gorm:"column:started_at"`
	FinishedAt  int64          `gorm:"column:finished_at"`
}

func (runModel) TableName() string { return "runs" }

type foldResultModel struct {
	ID             int64          `gorm:"column:id;primaryKey"`
	RunUUID        string         `gorm:"column:run_uuid;index:idx_fold_unit,unique"`
	FoldID         int            `gorm:"column:fold_id;index:idx_fold_unit,unique"`
	ScenarioID     string         `gorm:"column:scenario_id;index:idx_fold_unit,unique"`
	ParamsHash     string         `gorm:"column:params_hash;index"`
	ParamsJSON     datatypes.JSON `gorm:"column:params_json"`
	Status         string         `gorm:"column:status"`
	Error          string         `gorm:"column:error"`
	Candidates     int            `gorm:"column:candidates"`
	ISReturn       float64        `gorm:"column:is_return"`
	ISSharpe       float64        `gorm:"column:is_sharpe"`
	OOSReturn      float64        `gorm:"column:oos_return"`
	OOSSharpe      float64        `gorm:"column:oos_sharpe"`
	OOSTrades      int            `gorm:"column:oos_trades"`
	OOSMaxDrawdown float64        `gorm:"column:oos_max_drawdown"`
	EquityJSON     datatypes.JSON `gorm:"column:equity_json"`
	CreatedAt      int64          `gorm:"column:created_at"`
}

func (foldResultModel) TableName() string { return "fold_results" }

type reportModel struct {
	ID               int64          `gorm:"column:id;primaryKey"`
	RunUUID          string         `gorm:"column:run_uuid;uniqueIndex"`
	Verdict          string         `gorm:"column:verdict;index"`
	FoldCount        int            `gorm:"column:fold_count"`
	InformativeFolds int            `gorm:"column:informative_folds"`
	ConsistencyRatio float64        `gorm:"column:consistency_ratio"`
	TStat            float64        `gorm:"column:t_stat"`
	PValue           float64        `gorm:"column:p_value"`
	Efficiency       float64        `gorm:"column:efficiency"`
	DeflatedSharpe   float64        `gorm:"column:deflated_sharpe"`
	ReportJSON       datatypes.JSON `gorm:"column:report_json"`
	CreatedAt        int64          `gorm:"column:created_at"`
}

func (reportModel) TableName() string { return "reports" }
