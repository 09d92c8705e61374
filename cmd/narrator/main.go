// Package main provides the narrator binary: an interactive console that plays
// campaigns through the turn pipeline backed by PostgreSQL and an LLM narrator.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/chronicle/internal/config"
	"github.com/cory-johannsen/chronicle/internal/console"
	"github.com/cory-johannsen/chronicle/internal/game/combat"
	"github.com/cory-johannsen/chronicle/internal/game/discrepancy"
	"github.com/cory-johannsen/chronicle/internal/game/entity"
	"github.com/cory-johannsen/chronicle/internal/game/npc"
	"github.com/cory-johannsen/chronicle/internal/game/numeric"
	"github.com/cory-johannsen/chronicle/internal/game/tier"
	"github.com/cory-johannsen/chronicle/internal/game/turn"
	"github.com/cory-johannsen/chronicle/internal/llm"
	"github.com/cory-johannsen/chronicle/internal/observability"
	"github.com/cory-johannsen/chronicle/internal/scripting"
	"github.com/cory-johannsen/chronicle/internal/server"
	"github.com/cory-johannsen/chronicle/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	campaignID := flag.String("campaign", "", "campaign to resume on startup")
	debugCampaigns := flag.Bool("debug", false, "create new campaigns with debug mode on")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting narrator",
		zap.String("environment", cfg.Server.Environment),
		zap.String("llm_provider", cfg.LLM.Provider),
	)

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	defer pool.Close()
	status, err := pool.Health(ctx, 5*time.Second)
	if err != nil {
		logger.Fatal("database health check failed; apply migrations with cmd/migrate", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.String("name", cfg.Database.Name),
		zap.Int64("campaigns", status.Campaigns),
		zap.Int32("conns", status.TotalConns),
	)
	repo := postgres.NewCampaignRepository(pool.DB())

	table := numeric.DefaultTable()
	if cfg.Game.NumericTablePath != "" {
		table, err = numeric.LoadTable(cfg.Game.NumericTablePath)
		if err != nil {
			logger.Fatal("loading numeric table", zap.String("path", cfg.Game.NumericTablePath), zap.Error(err))
		}
		logger.Info("loaded numeric table",
			zap.String("path", cfg.Game.NumericTablePath),
			zap.Int("fields", len(table.Fields())),
		)
	}
	converter := numeric.NewConverter(table, logger)

	var validatorOpts []entity.Option
	if cfg.Game.StrictHealth {
		validatorOpts = append(validatorOpts, entity.WithStrictHealth())
	}
	validator, err := entity.NewValidator(converter, logger, validatorOpts...)
	if err != nil {
		logger.Fatal("compiling entity schemas", zap.Error(err))
	}

	rules := discrepancy.DefaultRules()
	if cfg.Game.RulesDir != "" {
		scriptMgr := scripting.NewManager(logger)
		defer scriptMgr.Close()
		campaigns, err := scriptMgr.LoadRulesDir(cfg.Game.RulesDir, cfg.Game.RuleInstructionLimit)
		if err != nil {
			logger.Fatal("loading discrepancy scripts", zap.String("dir", cfg.Game.RulesDir), zap.Error(err))
		}
		logger.Info("loaded discrepancy scripts", zap.Strings("campaign_rulesets", campaigns))
		rules = append(rules, discrepancy.ScriptRule{Evaluator: scriptMgr, Logger: logger})
	}
	detector := discrepancy.NewDetector(logger, rules...)

	var templates []*npc.Template
	if cfg.Game.NPCTemplateDir != "" {
		templates, err = npc.LoadTemplates(cfg.Game.NPCTemplateDir)
		if err != nil {
			logger.Fatal("loading npc templates", zap.Error(err))
		}
		logger.Info("loaded npc templates", zap.Int("count", len(templates)))
	}

	var narrator llm.Client
	switch cfg.LLM.Provider {
	case config.ProviderAnthropic:
		narrator = llm.NewAnthropicClient(cfg.LLM, logger)
	default:
		narrator = llm.EchoClient{}
	}

	svc := turn.NewService(
		repo,
		narrator,
		converter,
		validator,
		combat.NewCleaner(logger),
		detector,
		tier.NewEvaluator(cfg.Game.Tier),
		templates,
		logger,
		turn.WithStoryContext(cfg.Game.StoryContextEntries),
		turn.WithProduction(cfg.Server.IsProduction()),
	)

	con := console.New(svc, os.Stdin, os.Stdout, logger,
		console.WithCampaign(*campaignID),
		console.WithDebugCampaigns(*debugCampaigns),
		console.WithProduction(cfg.Server.IsProduction()),
	)

	lifecycle := server.NewLifecycle(logger, cfg.Server.ShutdownTimeout)
	lifecycle.Add("console", &server.FuncService{
		StartFn: con.Run,
	})

	logger.Info("narrator initialized", zap.Duration("startup", time.Since(start)))

	if err := lifecycle.Run(ctx); err != nil {
		logger.Error("narrator exited with error", zap.Error(err))
		os.Exit(1)
	}
}
