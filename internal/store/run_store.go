package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"edgeproof/internal/walkforward"
)

// RunStore 持久化运行、单元结果与最终报告。
type RunStore struct {
	db *gorm.DB
}

func NewRunStore(path string) (*RunStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("run store: 数据库路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&runModel{}, &foldResultModel{}, &reportModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: 允许少量并行读，锁竞争保持在低位。
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &RunStore{db: db}, nil
}

func (s *RunStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateRun 登记一次新的运行（状态 pending）。
func (s *RunStore) CreateRun(ctx context.Context, rec RunRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store 未初始化")
	}
	if strings.TrimSpace(rec.RunID) == "" {
		return fmt.Errorf("run_id 必填")
	}
	if rec.Status == "" {
		rec.Status = RunStatusPending
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	request := strings.TrimSpace(rec.RequestJSON)
	if request == "" {
		request = "{}"
	}
	model := runModel{
		RunUUID:     rec.RunID,
		Symbol:      strings.ToUpper(strings.TrimSpace(rec.Symbol)),
		Timeframe:   strings.ToLower(strings.TrimSpace(rec.Timeframe)),
		Strategy:    strings.TrimSpace(rec.Strategy),
		Status:      rec.Status,
		RequestJSON: datatypes.JSON(request),
		CreatedAt:   rec.CreatedAt.UnixMilli(),
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

// MarkRunning 把运行置为 running 并记录开始时间。
func (s *RunStore) MarkRunning(ctx context.Context, runID string) error {
	return s.updateRun(ctx, runID, map[string]interface{}{
		"status":     RunStatusRunning,
		"started_at": time.Now().UnixMilli(),
	})
}

// MarkFailed 记录失败原因并结束运行。
func (s *RunStore) MarkFailed(ctx context.Context, runID string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	status := RunStatusFailed
	if errors.Is(runErr, context.Canceled) {
		status = RunStatusCanceled
	}
	return s.updateRun(ctx, runID, map[string]interface{}{
		"status":      status,
		"error":       msg,
		"finished_at": time.Now().UnixMilli(),
	})
}

func (s *RunStore) updateRun(ctx context.Context, runID string, payload map[string]interface{}) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store 未初始化")
	}
	res := s.db.WithContext(ctx).Model(&runModel{}).
		Where("run_uuid = ?", runID).
		Updates(payload)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SaveReport 在一个事务里落下全部单元结果和终态报告，并把运行置为 done。
// 结果表以 (run_uuid, fold_id, scenario_id) 唯一，重放同一运行是幂等覆盖。
func (s *RunStore) SaveReport(ctx context.Context, report *walkforward.ValidationReport) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store 未初始化")
	}
	if report == nil || strings.TrimSpace(report.RunID) == "" {
		return fmt.Errorf("report/run_id 必填")
	}
	now := time.Now().UnixMilli()
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("序列化报告失败: %w", err)
	}

	models := make([]foldResultModel, 0, len(report.FoldResults))
	for _, r := range report.FoldResults {
		paramsJSON, err := json.Marshal(r.Params)
		if err != nil {
			return fmt.Errorf("序列化 fold %d 参数失败: %w", r.FoldID, err)
		}
		m := foldResultModel{
			RunUUID:        report.RunID,
			FoldID:         r.FoldID,
			ScenarioID:     r.ScenarioID,
			ParamsHash:     r.ParamsHash,
			ParamsJSON:     datatypes.JSON(paramsJSON),
			Status:         r.Status,
			Error:          r.Err,
			Candidates:     r.Candidates,
			ISReturn:       r.ISReturn,
			ISSharpe:       r.ISSharpe,
			OOSReturn:      r.OOSReturn,
			OOSSharpe:      r.OOSSharpe,
			OOSTrades:      r.OOSTrades,
			OOSMaxDrawdown: r.OOSMaxDrawdown,
			CreatedAt:      now,
		}
		if len(r.OOSEquity) > 0 {
			equityJSON, err := json.Marshal(r.OOSEquity)
			if err != nil {
				return fmt.Errorf("序列化 fold %d 权益曲线失败: %w", r.FoldID, err)
			}
			m.EquityJSON = datatypes.JSON(equityJSON)
		}
		models = append(models, m)
	}

	stats := report.Statistics
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(models) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "run_uuid"}, {Name: "fold_id"}, {Name: "scenario_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"params_hash", "params_json", "status", "error", "candidates",
					"is_return", "is_sharpe", "oos_return", "oos_sharpe",
					"oos_trades", "oos_max_drawdown", "equity_json", "created_at",
				}),
			}).Create(&models).Error; err != nil {
				return err
			}
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "run_uuid"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"verdict", "fold_count", "informative_folds", "consistency_ratio",
				"t_stat", "p_value", "efficiency", "deflated_sharpe", "report_json", "created_at",
			}),
		}).Create(&reportModel{
			RunUUID:          report.RunID,
			Verdict:          report.Verdict,
			FoldCount:        stats.FoldCount,
			InformativeFolds: stats.InformativeFolds,
			ConsistencyRatio: stats.ConsistencyRatio,
			TStat:            stats.TStat,
			PValue:           stats.PValue,
			Efficiency:       stats.Efficiency,
			DeflatedSharpe:   stats.DeflatedSharpe,
			ReportJSON:       datatypes.JSON(reportJSON),
			CreatedAt:        now,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&runModel{}).
			Where("run_uuid = ?", report.RunID).
			Updates(map[string]interface{}{
				"status":      RunStatusDone,
				"verdict":     report.Verdict,
				"finished_at": now,
			}).Error
	})
}

// GetRun 按 run_id 查询运行元信息。
func (s *RunStore) GetRun(ctx context.Context, runID string) (RunRecord, bool, error) {
	if s == nil || s.db == nil {
		return RunRecord{}, false, fmt.Errorf("run store 未初始化")
	}
	var m runModel
	if err := s.db.WithContext(ctx).Where("run_uuid = ?", runID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RunRecord{}, false, nil
		}
		return RunRecord{}, false, err
	}
	return runModelToRecord(m), true, nil
}

// ListRuns 按创建时间倒序分页列出运行。
func (s *RunStore) ListRuns(ctx context.Context, limit, offset int) ([]RunRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("run store 未初始化")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var models []runModel
	if err := s.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]RunRecord, 0, len(models))
	for _, m := range models {
		out = append(out, runModelToRecord(m))
	}
	return out, nil
}

// GetReport 读取终态报告（反序列化自 report_json，保证逐字节回放）。
func (s *RunStore) GetReport(ctx context.Context, runID string) (*walkforward.ValidationReport, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, fmt.Errorf("run store 未初始化")
	}
	var m reportModel
	if err := s.db.WithContext(ctx).Where("run_uuid = ?", runID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var report walkforward.ValidationReport
	if err := json.Unmarshal(m.ReportJSON, &report); err != nil {
		return nil, false, fmt.Errorf("反序列化报告失败: %w", err)
	}
	return &report, true, nil
}

// ListFoldResults 返回一次运行的全部单元结果（fold_id、scenario_id 升序）。
func (s *RunStore) ListFoldResults(ctx context.Context, runID string) ([]walkforward.FoldResult, error) {
	return s.listFoldResults(ctx, runID, "")
}

// ListFoldResultsByParams 按参数 hash 过滤，用于跨 fold 追踪同一组参数的表现。
func (s *RunStore) ListFoldResultsByParams(ctx context.Context, runID, paramsHash string) ([]walkforward.FoldResult, error) {
	return s.listFoldResults(ctx, runID, paramsHash)
}

func (s *RunStore) listFoldResults(ctx context.Context, runID, paramsHash string) ([]walkforward.FoldResult, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("run store 未初始化")
	}
	query := s.db.WithContext(ctx).Where("run_uuid = ?", runID)
	if paramsHash != "" {
		query = query.Where("params_hash = ?", paramsHash)
	}
	var models []foldResultModel
	if err := query.Order("fold_id ASC, scenario_id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]walkforward.FoldResult, 0, len(models))
	for _, m := range models {
		r := walkforward.FoldResult{
			FoldID:         m.FoldID,
			ParamsHash:     m.ParamsHash,
			ScenarioID:     m.ScenarioID,
			Status:         m.Status,
			Err:            m.Error,
			Candidates:     m.Candidates,
			ISReturn:       m.ISReturn,
			ISSharpe:       m.ISSharpe,
			OOSReturn:      m.OOSReturn,
			OOSSharpe:      m.OOSSharpe,
			OOSTrades:      m.OOSTrades,
			OOSMaxDrawdown: m.OOSMaxDrawdown,
		}
		if len(m.ParamsJSON) > 0 {
			if err := json.Unmarshal(m.ParamsJSON, &r.Params); err != nil {
				return nil, fmt.Errorf("反序列化 fold %d 参数失败: %w", m.FoldID, err)
			}
		}
		if len(m.EquityJSON) > 0 {
			if err := json.Unmarshal(m.EquityJSON, &r.OOSEquity); err != nil {
				return nil, fmt.Errorf("反序列化 fold %d 权益曲线失败: %w", m.FoldID, err)
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func runModelToRecord(m runModel) RunRecord {
	rec := RunRecord{
		RunID:     m.RunUUID,
		Symbol:    m.Symbol,
		Timeframe: m.Timeframe,
		Strategy:  m.Strategy,
		Status:    m.Status,
		Verdict:   m.Verdict,
		Error:     m.Error,
	}
	if len(m.RequestJSON) > 0 {
		rec.RequestJSON = string(m.RequestJSON)
	}
	if m.CreatedAt > 0 {
		rec.CreatedAt = time.UnixMilli(m.CreatedAt)
	}
	if m.StartedAt > 0 {
		rec.StartedAt = time.UnixMilli(m.StartedAt)
	}
	if m.FinishedAt > 0 {
		rec.FinishedAt = time.UnixMilli(m.FinishedAt)
	}
	return rec
}
