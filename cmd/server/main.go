package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/simaogato/wealthflow-valuation/internal/adapter/cache"
	grpcadapter "github.com/simaogato/wealthflow-valuation/internal/adapter/grpc"
	"github.com/simaogato/wealthflow-valuation/internal/adapter/httpapi"
	"github.com/simaogato/wealthflow-valuation/internal/adapter/repository/postgres"
	"github.com/simaogato/wealthflow-valuation/internal/adapter/repository/sqlite"
	"github.com/simaogato/wealthflow-valuation/internal/adapter/script"
	"github.com/simaogato/wealthflow-valuation/internal/config"
	"github.com/simaogato/wealthflow-valuation/internal/domain"
	"github.com/simaogato/wealthflow-valuation/internal/logger"
	"github.com/simaogato/wealthflow-valuation/internal/scheduler"
	"github.com/simaogato/wealthflow-valuation/internal/usecase/contribution"
	"github.com/simaogato/wealthflow-valuation/internal/usecase/dashboard"
	"github.com/simaogato/wealthflow-valuation/internal/usecase/investment"
	"github.com/simaogato/wealthflow-valuation/internal/usecase/seeder"
	"github.com/simaogato/wealthflow-valuation/internal/usecase/valuation"
)

func main() {
	// 1. Load configuration and logger
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	ctx := context.Background()

	// 2. Setup Database (Postgres may still be starting under docker compose)
	connectCtx, cancelConnect := context.WithTimeout(ctx, 30*time.Second)
	assetRepo, planRepo, db, err := openStore(connectCtx, cfg)
	cancelConnect()
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("Failed to open database")
	}
	defer db.Close()
	log.Info().Str("driver", cfg.DBDriver).Msg("Database ready")

	if cfg.SeedDemo {
		created, err := seeder.NewDemoSeeder(assetRepo, nil).Seed(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to seed demo portfolio")
		}
		log.Info().Int("created", created).Msg("Demo portfolio seeded")
	}

	// 3. Initialize the script sandbox and its result cache
	scriptCache := cache.NewScriptCache(cfg.Script.CacheRetention, cfg.Script.CacheCleanupInterval, nil)
	runner := script.NewRunner(script.Config{
		Timeout: cfg.Script.Timeout,
		Fetch: script.FetchConfig{
			Timeout: cfg.Script.FetchTimeout,
			Rate:    cfg.Script.FetchRate,
			Burst:   cfg.Script.FetchBurst,
			MaxBody: cfg.Script.FetchMaxBody,
		},
	}, log)

	// 4. Initialize Services (Use Cases)
	valuationService := valuation.NewValuationService(assetRepo, runner, scriptCache, valuation.Config{TTL: cfg.Script.CacheTTL}, log)
	dashboardService := dashboard.NewDashboardService(assetRepo, valuationService, log)
	investmentService := investment.NewInvestmentService(assetRepo, valuationService, nil)
	contributionService := contribution.NewContributionService(planRepo, assetRepo, valuationService, log)

	// 5. Schedule recurring contributions
	sched := scheduler.New(log)
	contributionJob := scheduler.NewContributionJob(scheduler.ContributionJobConfig{
		Runner: contributionService,
		Log:    log,
	})
	if err := sched.AddJob(cfg.Contribution.Schedule, contributionJob); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Contribution.Schedule).Msg("Failed to schedule contribution job")
	}
	sched.Start()

	// Catch up on anything missed while the process was down
	go func() {
		if err := sched.RunNow(contributionJob); err != nil {
			log.Error().Err(err).Msg("Initial contribution run failed")
		}
	}()

	// 6. Start gRPC Server
	grpcServer := grpclib.NewServer(
		grpclib.ChainUnaryInterceptor(
			grpcadapter.LoggingInterceptor(log),
			grpcadapter.AuthInterceptor(cfg.APIToken),
		),
	)
	grpcadapter.RegisterValuationServiceServer(grpcServer, grpcadapter.NewServer(valuationService, dashboardService))
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.GRPCPort).Msg("Failed to listen")
	}

	go func() {
		log.Info().Str("addr", cfg.GRPCPort).Msg("gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal().Err(err).Msg("Failed to serve gRPC server")
		}
	}()

	// 7. Start HTTP Server
	httpServer := httpapi.New(httpapi.Config{
		Port:         cfg.HTTPPort,
		APIToken:     cfg.APIToken,
		Log:          log,
		Valuation:    valuationService,
		Dashboard:    dashboardService,
		Investment:   investmentService,
		Contribution: contributionService,
	})

	go func() {
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to serve HTTP server")
		}
	}()

	// Graceful shutdown
	waitForShutdown(log, grpcServer, httpServer, sched)
}

// openStore connects to the configured database and applies the schema
func openStore(ctx context.Context, cfg *config.Config) (domain.AssetRepository, domain.ContributionPlanRepository, io.Closer, error) {
	switch cfg.DBDriver {
	case "sqlite":
		db, err := sqlite.NewDB(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		return sqlite.NewAssetRepository(db), sqlite.NewContributionPlanRepository(db), db, nil
	default:
		db, err := postgres.NewDB(ctx, cfg.DBConnStr)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		return postgres.NewAssetRepository(db), postgres.NewContributionPlanRepository(db), db, nil
	}
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the servers
func waitForShutdown(log zerolog.Logger, grpcServer *grpclib.Server, httpServer *httpapi.Server, sched *scheduler.Scheduler) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully")

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	grpcServer.GracefulStop()
	log.Info().Msg("Servers stopped")
}
