package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/voltledger/internal/api/handlers"
	"github.com/langchou/voltledger/internal/config"
	"github.com/langchou/voltledger/internal/repository"
	"github.com/langchou/voltledger/internal/repository/memory"
	"github.com/langchou/voltledger/internal/service"
	"github.com/langchou/voltledger/pkg/ws"
)

// 新连接推送的最近交易条数
const initRecentEntries = 20

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting VoltLedger",
		zap.String("port", cfg.ServerPort),
		zap.String("storage", cfg.Storage),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 存储
	var store service.Store
	switch cfg.Storage {
	case config.StorageMemory:
		store = memory.New()
		logger.Warn("Using in-memory storage, data is lost on restart")
	default:
		db, err := repository.New(ctx, cfg.DatabaseURL, repository.PoolOptions{
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			logger.Fatal("Failed to connect database", zap.Error(err))
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		logger.Info("Database migrated successfully")
		store = repository.NewStore(db)
	}

	// 账本与实时推送
	wsHub := ws.NewHub(logger)
	ledger := service.NewLedger(store, logger)
	ledger.SetNotifier(wsHub)

	svc := handlers.Services{
		Vehicles:  service.NewVehicleService(store, store, ledger, logger),
		Ownership: service.NewOwnershipService(store, store, store, ledger, logger),
		Charging:  service.NewChargingService(store, store, ledger, logger),
		Telemetry: service.NewTelemetryService(store, store, ledger, logger),
		Query:     service.NewQueryService(store, logger, cfg.LedgerDefaultPageSize, cfg.LedgerMaxPageSize),
	}

	wsHub.SetInitDataProvider(func(ctx context.Context) (*ws.InitData, error) {
		recent, err := svc.Query.ListTransactions(ctx, 1, initRecentEntries, "")
		if err != nil {
			return nil, err
		}
		counts, err := svc.Query.CountsByType(ctx)
		if err != nil {
			return nil, err
		}
		return &ws.InitData{Recent: recent.Entries, Counts: counts}, nil
	})
	go wsHub.Run(ctx)

	handler := handlers.NewHandler(logger, svc, wsHub)

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	handler.RegisterRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", server.Addr))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	cancel()

	logger.Info("Server exited")
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}

// corsMiddleware CORS 中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+handlers.UserIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
