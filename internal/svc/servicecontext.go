package svc

import (
	"fmt"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "nof0-core/internal/cache"
	"nof0-core/internal/config"
	"nof0-core/internal/model"
	"nof0-core/internal/runner"
	"nof0-core/internal/store"
	"nof0-core/pkg/confkit"
	exchangepkg "nof0-core/pkg/exchange"
	"nof0-core/pkg/journal"
	llmpkg "nof0-core/pkg/llm"
	marketpkg "nof0-core/pkg/market"
	"nof0-core/pkg/portfolio"
	"nof0-core/pkg/scheduler"
)

// ServiceContext wires every component a cmd/ entrypoint needs to run
// the trading core: the Store, the Market Cache, the LLM Client, the
// Portfolio Engine, and the Runner/Scheduler pair that drives them
// through the Per-Model Scheduler (C9).
type ServiceContext struct {
	Config config.Config

	LLMConfig      *llmpkg.Config
	ExchangeConfig *exchangepkg.Config
	MarketConfig   *marketpkg.Config

	ExchangeAdapters map[string]exchangepkg.Adapter
	DefaultExchange  exchangepkg.Adapter

	Cache  *marketpkg.Cache
	Engine *portfolio.Engine
	LLM    *llmpkg.Client

	// DBConn is non-nil only when Postgres.DataSource is configured.
	// Store falls back to a no-op implementation otherwise, so
	// everything upstream of it (scheduler, decision applier) can run
	// against an in-memory-only deployment (tests, a dry-run CLI).
	DBConn sqlx.SqlConn
	Store  store.Store

	Runner    *runner.Runner
	Scheduler *scheduler.Scheduler
}

// NewServiceContext loads every configured section, builds the real
// adapters behind them, and wires the Runner. It leaves Scheduler nil;
// the cmd/ entrypoint builds the Scheduler on top of Runner. mainConfigPath anchors relative section file paths (LLM,
// Exchange, Market) the same way goctl-generated service contexts do.
func NewServiceContext(c config.Config, mainConfigPath string) *ServiceContext {
	svc := &ServiceContext{Config: c}
	baseDir := confkit.BaseDir(mainConfigPath)

	if c.LLM.File != "" {
		llmCfg, err := llmpkg.LoadConfig(confkit.ResolvePath(baseDir, c.LLM.File))
		if err != nil {
			log.Fatalf("failed to load llm config: %v", err)
		}
		if c.IsTestEnv() {
			llmCfg.DefaultModel = "google/gemini-2.5-flash-lite"
		}
		svc.LLMConfig = llmCfg
	}
	if svc.LLMConfig == nil {
		log.Fatalf("llm config is required (config.llm.file not set)")
	}
	llmClient, err := llmpkg.NewClient(svc.LLMConfig)
	if err != nil {
		log.Fatalf("initialise llm client: %v", err)
	}
	svc.LLM = llmClient

	if c.Exchange.File != "" {
		exchangeCfg, err := exchangepkg.LoadConfig(confkit.ResolvePath(baseDir, c.Exchange.File))
		if err != nil {
			log.Fatalf("failed to load exchange config: %v", err)
		}
		if c.IsTestEnv() {
			for _, provider := range exchangeCfg.Providers {
				provider.Testnet = true
			}
		}
		adapters, err := exchangeCfg.BuildProviders()
		if err != nil {
			log.Fatalf("failed to build exchange adapters: %v", err)
		}
		svc.ExchangeConfig = exchangeCfg
		svc.ExchangeAdapters = adapters
		if exchangeCfg.Default != "" {
			svc.DefaultExchange = adapters[exchangeCfg.Default]
		}
	}
	if svc.DefaultExchange == nil {
		log.Fatalf("exchange config is required and must declare a default provider (config.exchange.file)")
	}

	if c.Market.File != "" {
		marketCfg, err := marketpkg.LoadConfig(confkit.ResolvePath(baseDir, c.Market.File))
		if err != nil {
			log.Fatalf("failed to load market config: %v", err)
		}
		svc.MarketConfig = marketCfg
		svc.Cache = marketCfg.BuildCache(svc.DefaultExchange)
	}
	if svc.Cache == nil {
		log.Fatalf("market config is required (config.market.file not set)")
	}

	// Only wire a real Store when a data source is configured; business
	// logic always goes through store.Store so it never cares which.
	if c.Postgres.DataSource != "" {
		ttlSet := cachekeys.NewTTLSet(c.TTL)
		conn := sqlx.NewSqlConn("pgx", c.Postgres.DataSource)
		svc.DBConn = conn
		svc.Store = store.New(
			model.NewModelsModel(conn, nil, ttlSet),
			model.NewTradesModel(conn, nil, ttlSet),
			model.NewPortfolioSnapshotsModel(conn, nil, ttlSet),
			model.NewConversationsModel(conn, nil),
			model.NewConversationMessagesModel(conn, nil),
			model.NewDecisionCyclesModel(conn, nil),
			model.NewTraderStateModel(conn, nil, ttlSet),
			model.NewSettingsModel(conn, nil, ttlSet),
		)
	} else {
		svc.Store = store.NewNoop()
	}

	jw := journal.NewWriter(fmt.Sprintf("%s/journal", c.DataPath))
	jw.SetMirror(svc.Store)

	svc.Engine = portfolio.NewEngine()
	svc.Runner = runner.New(svc.Store, svc.Cache, svc.Engine, svc.LLM, jw)

	return svc
}
