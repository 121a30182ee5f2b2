package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/gtpooniwala/LBSClubTreasurer/internal/ai"
	"github.com/gtpooniwala/LBSClubTreasurer/internal/config"
	"github.com/gtpooniwala/LBSClubTreasurer/internal/dashboard"
	httpapi "github.com/gtpooniwala/LBSClubTreasurer/internal/interfaces/http"
	"github.com/gtpooniwala/LBSClubTreasurer/internal/rules"
	"github.com/gtpooniwala/LBSClubTreasurer/internal/service"
	"github.com/gtpooniwala/LBSClubTreasurer/internal/store"
	"github.com/gtpooniwala/LBSClubTreasurer/internal/validation"
	"github.com/gtpooniwala/LBSClubTreasurer/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	// .env is optional; real deployments set the environment directly
	gotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting club treasurer service",
		zap.Int("port", cfg.Server.Port))

	ruleStore, err := rules.Load(cfg.Rules.RulesPath, cfg.Rules.SchemaPath, cfg.Rules.EventCodesPath, logger)
	if err != nil {
		logger.Fatal("Failed to load rule configuration", zap.Error(err))
	}

	auditLog, err := store.NewAuditLog(cfg.Storage.AuditLogPath, logger)
	if err != nil {
		logger.Fatal("Failed to open audit log", zap.Error(err))
	}

	requestStore, err := store.New(cfg.Storage.RequestsDir, auditLog, logger)
	if err != nil {
		logger.Fatal("Failed to open request store", zap.Error(err))
	}

	engine := validation.NewEngine(ruleStore, requestStore, logger)

	extractor := ai.NewExtractor(
		ai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Timeout),
		ruleStore,
		cfg.OpenAI.Model,
		cfg.OpenAI.Temperature,
		logger,
	)

	intakeService := service.NewIntakeService(extractor, engine, requestStore, ruleStore, logger)
	reviewService := service.NewReviewService(requestStore, logger)
	projection := dashboard.NewProjection(requestStore, ruleStore, logger)
	exporter := dashboard.NewExporter(requestStore, logger)

	handlers := httpapi.NewHandlers(
		intakeService,
		reviewService,
		projection,
		exporter,
		&adminOps{rules: ruleStore, store: requestStore},
		logger,
	)

	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		CORSOrigins:  cfg.Server.CORSOrigins,
	}, handlers, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited")
}

// adminOps bundles the maintenance operations the admin endpoints expose
type adminOps struct {
	rules *rules.Store
	store *store.RequestStore
}

func (a *adminOps) ReloadRules() error {
	return a.rules.Reload()
}

func (a *adminOps) RebuildAudit(ctx context.Context) error {
	return a.store.RebuildAudit(ctx)
}
