package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"edgeproof/internal/config"
	"edgeproof/internal/dataset"
	"edgeproof/internal/logger"
	"edgeproof/internal/market"
	"edgeproof/internal/scheduler"
	"edgeproof/internal/store"
)

// App 负责应用级编排：加载配置→初始化依赖→启动 HTTP 服务。
type App struct {
	cfg  *config.Config
	svc  *Service
	data *dataset.Store
	runs *store.RunStore

	httpServer interface {
		Start(ctx context.Context) error
	}
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	data, err := dataset.NewStore(cfg.Data.Root)
	if err != nil {
		return nil, fmt.Errorf("初始化数据存储失败: %w", err)
	}
	runs, err := store.NewRunStore(cfg.Data.RunDBPath)
	if err != nil {
		_ = data.Close()
		return nil, fmt.Errorf("初始化运行存储失败: %w", err)
	}
	fetcher := dataset.NewBinanceFetcher(cfg.Data.RESTBaseURL, time.Duration(cfg.Data.TimeoutSeconds)*time.Second)
	svc := NewService(cfg, data, runs, fetcher)

	return &App{cfg: cfg, svc: svc, data: data, runs: runs}, nil
}

// Service 暴露装配好的服务实例（供 HTTP 层与测试使用）。
func (a *App) Service() *Service {
	if a == nil {
		return nil
	}
	return a.svc
}

// SetHTTPServer 注入 HTTP 服务。放在这里而不是 NewApp，
// 避免 app 包反向依赖 transport 包。
func (a *App) SetHTTPServer(srv interface {
	Start(ctx context.Context) error
}) {
	a.httpServer = srv
}

// Run 启动服务，阻塞直到 ctx 取消或出现错误。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)

	if a.httpServer != nil {
		group.Go(func() error {
			if err := a.httpServer.Start(ctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}

	if a.cfg.Revalidate.Enabled {
		group.Go(func() error {
			a.runRevalidateLoop(ctx)
			return nil
		})
	}

	group.Go(func() error {
		<-ctx.Done()
		return nil
	})

	err := group.Wait()
	a.Close()
	return err
}

// runRevalidateLoop 周期性重跑固定的验证请求，盯住已上线参数。
// 并发槽位满时跳过本轮，下个周期再试。
func (a *App) runRevalidateLoop(ctx context.Context) {
	rv := a.cfg.Revalidate
	dur, ok := market.ParseInterval(rv.Interval)
	if !ok {
		logger.Errorf("[app] revalidate.interval 无效: %q，重验证不启动", rv.Interval)
		return
	}
	sched := scheduler.NewAlignedScheduler(ctx, dur, time.Duration(rv.OffsetSeconds)*time.Second)
	sched.Start(func() {
		run, err := a.svc.SubmitRun(ctx, RunRequest{
			Symbol:    rv.Symbol,
			Timeframe: rv.Timeframe,
			Strategy:  rv.Strategy,
			GridFile:  rv.GridFile,
		})
		if err != nil {
			logger.Warnf("[app] 重验证提交失败: %v", err)
			return
		}
		logger.Infof("[app] 重验证已提交 run=%s", run.RunID)
	})
}

// Close 释放底层存储。
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.runs != nil {
		if err := a.runs.Close(); err != nil {
			logger.Warnf("[app] 关闭运行存储失败: %v", err)
		}
	}
	if a.data != nil {
		if err := a.data.Close(); err != nil {
			logger.Warnf("[app] 关闭数据存储失败: %v", err)
		}
	}
}
