package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	brcfg "papersim/internal/config"
	"papersim/internal/engine"
	"papersim/internal/logger"
	simhttp "papersim/internal/transport/http/sim"
)

// App 负责应用级编排：加载配置→初始化依赖→启动回放时钟与 HTTP 服务。
type App struct {
	cfg     *brcfg.Config
	engine  *engine.Engine
	http    *simhttp.Server
	closers []func() error
	Summary *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *brcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.SetFormat(cfg.App.LogFormat)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动回放时钟与 HTTP 服务，直到 ctx 结束；退出时关闭缓存与审计库。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.engine == nil {
		return fmt.Errorf("engine not initialized")
	}
	defer a.Close()

	if a.Summary != nil {
		a.Summary.Print()
	}

	group, ctx := errgroup.WithContext(ctx)
	if a.http != nil {
		group.Go(func() error {
			if err := a.http.Start(ctx); err != nil {
				return fmt.Errorf("sim http server error: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		return a.engine.Run(ctx)
	})
	return group.Wait()
}

// Close 释放构建期间打开的资源，可重复调用。
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Engine exposes the replay engine (for tests and embedding).
func (a *App) Engine() *engine.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}

func (a *App) HTTPAddr() string {
	if a == nil {
		return ""
	}
	return a.http.Addr()
}
