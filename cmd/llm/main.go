package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"nof0-core/internal/cli"
	appconfig "nof0-core/internal/config"
	"nof0-core/internal/svc"
	"nof0-core/pkg/scheduler"
)

const defaultFrequency = 5 * time.Minute

func main() {
	// -f (path to the application config) is registered by internal/config
	// itself; MustLoad resolves it through that package's own search path.
	flag.Parse()
	logx.MustSetup(logx.LogConf{})
	logx.DisableStat()

	cfg := appconfig.MustLoad()
	cli.LogConfigSummary(cfg)

	svcCtx := svc.NewServiceContext(*cfg, cfg.MainPath())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched, err := buildScheduler(ctx, svcCtx)
	if err != nil {
		logx.Errorf("build scheduler: %v", err)
		os.Exit(1)
	}

	go svcCtx.Cache.Run(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logx.Infof("received signal %s, shutting down trading core", sig)
		sched.Stop()
		cancel()
	}()

	logx.Info("starting per-model scheduler")
	sched.Run(ctx)
	logx.Info("scheduler stopped")
}

// buildScheduler loads the model roster from the Store, tracks every
// model's held symbols in the Market Cache so they get refreshed even
// when not in the operator-curated symbol set, and registers each
// model with the Scheduler (C9) on top of svcCtx.Runner.
func buildScheduler(ctx context.Context, svcCtx *svc.ServiceContext) (*scheduler.Scheduler, error) {
	models, err := svcCtx.Store.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	frequency := defaultFrequency
	for _, m := range models {
		if m.TradingFrequencyMinutes <= 0 {
			continue
		}
		d := time.Duration(m.TradingFrequencyMinutes) * time.Minute
		if d < frequency {
			frequency = d
		}
	}

	sched := scheduler.New(svcCtx.Runner, frequency)
	for _, m := range models {
		recovered, err := svcCtx.Store.Recover(ctx, m.ID, m.InitialCapital)
		if err != nil {
			logx.Errorf("recover model %s: %v", m.ID, err)
		} else {
			for _, pos := range recovered.Positions {
				svcCtx.Cache.TrackHeldSymbol(pos.Symbol)
			}
		}
		sched.RegisterModel(m.ID, m.Enabled)
		logx.Infof("registered model %s (%s) provider=%s frequency=%dm", m.ID, m.Name, m.Provider, m.TradingFrequencyMinutes)
	}

	if len(models) == 0 {
		logx.Slowf("no models registered; store returned an empty roster (check Postgres config / models table)")
	}

	return sched, nil
}
