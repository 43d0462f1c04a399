// Package app 把数据、引擎、存储、报告装配成对外服务。
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"edgeproof/internal/config"
	"edgeproof/internal/dataset"
	"edgeproof/internal/logger"
	"edgeproof/internal/market"
	"edgeproof/internal/report"
	"edgeproof/internal/store"
	"edgeproof/internal/strategy"
	"edgeproof/internal/walkforward"
)

// 同时在跑的验证运行上限。满了直接拒绝提交，而不是排队。
const maxConcurrentRuns = 2

// RunRequest 是一次验证运行的提交参数。
type RunRequest struct {
	Symbol    string               `json:"symbol"`
	Timeframe string               `json:"timeframe"`
	Strategy  string               `json:"strategy"`
	StartTS   int64                `json:"start_ts,omitempty"`
	EndTS     int64                `json:"end_ts,omitempty"`
	Grid      map[string][]float64 `json:"grid,omitempty"`
	GridFile  string               `json:"grid_file,omitempty"`
	Objective string               `json:"objective,omitempty"`
	Anchored  *bool                `json:"anchored,omitempty"`
	ISLength  int                  `json:"is_length,omitempty"`
	OOSLength int                  `json:"oos_length,omitempty"`
	Step      int                  `json:"step,omitempty"`
}

// Service 管理验证运行的生命周期。
type Service struct {
	cfg     *config.Config
	data    *dataset.Store
	runs    *store.RunStore
	fetcher *dataset.BinanceFetcher

	sem *semaphore.Weighted

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewService(cfg *config.Config, data *dataset.Store, runs *store.RunStore, fetcher *dataset.BinanceFetcher) *Service {
	return &Service{
		cfg:     cfg,
		data:    data,
		runs:    runs,
		fetcher: fetcher,
		sem:     semaphore.NewWeighted(maxConcurrentRuns),
		cancels: make(map[string]context.CancelFunc),
	}
}

// SubmitRun 登记并在后台启动一次验证运行，立即返回 run 元信息。
// 并发槽位满时直接报错，调用方应稍后重试。
func (s *Service) SubmitRun(ctx context.Context, req RunRequest) (store.RunRecord, error) {
	if err := s.normalizeRequest(&req); err != nil {
		return store.RunRecord{}, err
	}
	if _, err := strategy.ByName(req.Strategy); err != nil {
		return store.RunRecord{}, err
	}
	if !s.sem.TryAcquire(1) {
		return store.RunRecord{}, fmt.Errorf("已有 %d 个运行在跑，稍后再试", maxConcurrentRuns)
	}

	runID := uuid.NewString()
	reqJSON, _ := json.Marshal(req)
	rec := store.RunRecord{
		RunID:       runID,
		Symbol:      req.Symbol,
		Timeframe:   req.Timeframe,
		Strategy:    req.Strategy,
		Status:      store.RunStatusPending,
		RequestJSON: string(reqJSON),
		CreatedAt:   time.Now(),
	}
	if err := s.runs.CreateRun(ctx, rec); err != nil {
		s.sem.Release(1)
		return store.RunRecord{}, fmt.Errorf("登记运行失败: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[runID] = cancel
	s.mu.Unlock()

	go func() {
		defer s.sem.Release(1)
		defer func() {
			s.mu.Lock()
			delete(s.cancels, runID)
			s.mu.Unlock()
			cancel()
		}()
		s.execute(runCtx, runID, req)
	}()

	logger.Infof("[app] 提交运行 run=%s %s@%s strategy=%s", runID, req.Symbol, req.Timeframe, req.Strategy)
	return rec, nil
}

// CancelRun 协作式取消一个在跑的运行。
func (s *Service) CancelRun(runID string) bool {
	s.mu.Lock()
	cancel, ok := s.cancels[runID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (s *Service) execute(ctx context.Context, runID string, req RunRequest) {
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic: %v", rec)
			logger.Errorf("[app] run=%s panic: %v", runID, rec)
			_ = s.runs.MarkFailed(context.Background(), runID, err)
		}
	}()

	if err := s.runs.MarkRunning(ctx, runID); err != nil {
		logger.Warnf("[app] run=%s 标记 running 失败: %v", runID, err)
	}

	rep, err := s.runOnce(ctx, runID, req)
	if err != nil {
		logger.Errorf("[app] run=%s 失败: %v", runID, err)
		_ = s.runs.MarkFailed(context.Background(), runID, err)
		return
	}
	// 落盘用独立 ctx：运行已经完成，结果不应因取消而丢失。
	if err := s.runs.SaveReport(context.Background(), rep); err != nil {
		logger.Errorf("[app] run=%s 报告落盘失败: %v", runID, err)
		_ = s.runs.MarkFailed(context.Background(), runID, err)
		return
	}
	if s.cfg.Report.Enabled {
		htmlPath := filepath.Join(s.cfg.Report.HTMLDir, runID+".html")
		if err := report.WriteHTML(rep, htmlPath); err != nil {
			logger.Warnf("[app] run=%s 渲染 HTML 失败: %v", runID, err)
		}
	}
}

// runOnce 完成一次完整的验证：加载数据、缺口告警、执行引擎。
func (s *Service) runOnce(ctx context.Context, runID string, req RunRequest) (*walkforward.ValidationReport, error) {
	series, err := s.data.LoadSeries(ctx, req.Symbol, req.Timeframe, req.StartTS, req.EndTS)
	if err != nil {
		return nil, fmt.Errorf("加载数据失败: %w", err)
	}
	var warnings []string
	if dur, ok := market.ParseInterval(req.Timeframe); ok {
		for _, gap := range series.DetectGaps(dur.Milliseconds()) {
			msg := fmt.Sprintf("数据缺口: %d~%d 缺 %d 根", gap.AfterTime, gap.BeforeTime, gap.Missing)
			logger.Warnf("[app] run=%s %s", runID, msg)
			warnings = append(warnings, msg)
		}
	}

	strat, err := strategy.ByName(req.Strategy)
	if err != nil {
		return nil, err
	}
	grid, err := s.resolveGrid(req)
	if err != nil {
		return nil, err
	}

	rep, err := walkforward.RunEngine(ctx, runID, series, strat, s.engineConfig(req, grid))
	if err != nil {
		return nil, err
	}
	rep.Warnings = append(warnings, rep.Warnings...)
	return rep, nil
}

func (s *Service) engineConfig(req RunRequest, grid walkforward.ParameterGrid) walkforward.EngineConfig {
	eng := s.cfg.Engine
	if req.ISLength > 0 {
		eng.ISLength = req.ISLength
	}
	if req.OOSLength > 0 {
		eng.OOSLength = req.OOSLength
	}
	if req.Step > 0 {
		eng.Step = req.Step
	}
	objective := eng.Objective
	if req.Objective != "" {
		objective = req.Objective
	}
	anchored := eng.Anchored
	if req.Anchored != nil {
		anchored = *req.Anchored
	}

	scenarios := make([]walkforward.CostScenario, 0, len(s.cfg.Scenarios))
	for _, sc := range s.cfg.Scenarios {
		scenarios = append(scenarios, walkforward.CostScenario{
			ID:            sc.ID,
			Spread:        sc.Spread,
			CommissionPct: sc.CommissionPct,
			SlippageBps:   sc.SlippageBps,
		})
	}

	return walkforward.EngineConfig{
		Folds: walkforward.FoldConfig{
			ISLength:        eng.ISLength,
			OOSLength:       eng.OOSLength,
			Step:            eng.Step,
			Anchored:        anchored,
			PurgeMultiplier: eng.PurgeMultiplier,
			PurgeBars:       eng.PurgeBars,
			EmbargoBars:     eng.EmbargoBars,
		},
		Grid:      grid,
		Scenarios: scenarios,
		Objective: objective,
		Validator: walkforward.ValidatorConfig{
			ConsistencyMin: s.cfg.Validator.ConsistencyMin,
			Alpha:          s.cfg.Validator.Alpha,
			EfficiencyMin:  s.cfg.Validator.EfficiencyMin,
		},
		Executor: walkforward.ExecutorConfig{
			Workers:       s.cfg.Executor.Workers,
			UnitTimeout:   time.Duration(s.cfg.Executor.UnitTimeoutSeconds) * time.Second,
			IncludeEquity: s.cfg.Executor.IncludeEquity,
		},
	}
}

func (s *Service) resolveGrid(req RunRequest) (walkforward.ParameterGrid, error) {
	if len(req.Grid) > 0 {
		return walkforward.ParameterGrid(req.Grid), nil
	}
	if req.GridFile != "" {
		return LoadGridFile(req.GridFile)
	}
	return nil, fmt.Errorf("grid 或 grid_file 必须提供其一")
}

func (s *Service) normalizeRequest(req *RunRequest) error {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	req.Timeframe = strings.ToLower(strings.TrimSpace(req.Timeframe))
	req.Strategy = strings.TrimSpace(req.Strategy)
	if req.Symbol == "" || req.Timeframe == "" || req.Strategy == "" {
		return fmt.Errorf("symbol/timeframe/strategy 必填")
	}
	if !config.IsValidInterval(req.Timeframe) {
		return fmt.Errorf("无效的 timeframe: %q", req.Timeframe)
	}
	if req.StartTS < 0 || req.EndTS < 0 || (req.EndTS > 0 && req.StartTS > req.EndTS) {
		return fmt.Errorf("start_ts/end_ts 区间无效")
	}
	return nil
}

// GetRun 查询运行元信息。
func (s *Service) GetRun(ctx context.Context, runID string) (store.RunRecord, bool, error) {
	return s.runs.GetRun(ctx, runID)
}

// ListRuns 按创建时间倒序列出运行。
func (s *Service) ListRuns(ctx context.Context, limit, offset int) ([]store.RunRecord, error) {
	return s.runs.ListRuns(ctx, limit, offset)
}

// GetReport 读取终态报告。
func (s *Service) GetReport(ctx context.Context, runID string) (*walkforward.ValidationReport, bool, error) {
	return s.runs.GetReport(ctx, runID)
}

// ListFoldResults 返回一次运行的全部单元结果，可按参数 hash 过滤。
func (s *Service) ListFoldResults(ctx context.Context, runID, paramsHash string) ([]walkforward.FoldResult, error) {
	if paramsHash == "" {
		return s.runs.ListFoldResults(ctx, runID)
	}
	return s.runs.ListFoldResultsByParams(ctx, runID, paramsHash)
}

// Backfill 同步回补一段历史 K 线。
func (s *Service) Backfill(ctx context.Context, symbol, interval string, start, end int64) (int, error) {
	if s.fetcher == nil {
		return 0, fmt.Errorf("行情回补未启用")
	}
	return s.fetcher.Backfill(ctx, s.data, symbol, interval, start, end)
}

// ImportCSV 从本地 CSV 文件导入 K 线。
func (s *Service) ImportCSV(ctx context.Context, symbol, timeframe, path string) (int, error) {
	return s.data.ImportCSV(ctx, symbol, timeframe, path)
}

// ManifestInfo 返回某个数据文件的统计信息。
func (s *Service) ManifestInfo(ctx context.Context, symbol, timeframe string) (dataset.Manifest, error) {
	return s.data.Manifest(ctx, symbol, timeframe)
}

// Strategies 返回内置策略名列表。
func (s *Service) Strategies() []string {
	return strategy.Names()
}
