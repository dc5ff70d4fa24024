// Package main is the entry point for releasectl's API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/skyline-ota/releasectl/internal/api"
	"github.com/skyline-ota/releasectl/internal/api/handlers"
	"github.com/skyline-ota/releasectl/internal/assembler"
	"github.com/skyline-ota/releasectl/internal/build"
	"github.com/skyline-ota/releasectl/internal/cdn"
	"github.com/skyline-ota/releasectl/internal/cohort"
	"github.com/skyline-ota/releasectl/internal/config"
	"github.com/skyline-ota/releasectl/internal/configservice"
	"github.com/skyline-ota/releasectl/internal/database"
	"github.com/skyline-ota/releasectl/internal/database/postgres"
	"github.com/skyline-ota/releasectl/internal/dimension"
	"github.com/skyline-ota/releasectl/internal/objectstorage"
	"github.com/skyline-ota/releasectl/internal/packagestore"
	"github.com/skyline-ota/releasectl/internal/property"
	"github.com/skyline-ota/releasectl/internal/release"
	"github.com/skyline-ota/releasectl/internal/releaseview"
	repopostgres "github.com/skyline-ota/releasectl/internal/repository/postgres"
	"github.com/skyline-ota/releasectl/internal/resolver"
	"github.com/skyline-ota/releasectl/internal/resolvercache"
)

const (
	defaultPort    = "8080"
	serviceName    = "releasectl"
	serviceVersion = "1.0.0"
)

func main() {
	var showVersion = flag.Bool("version", false, "Show version information")
	var showHelp = flag.Bool("help", false, "Show help information")
	var configPath = flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", serviceName, serviceVersion)
		os.Exit(0)
	}

	if *showHelp {
		fmt.Printf("releasectl - OTA release orchestration control plane\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		fmt.Printf("  -version    Show version information\n")
		fmt.Printf("  -help       Show this help message\n")
		fmt.Printf("  -config     Path to YAML config file\n\n")
		fmt.Printf("Environment variables:\n")
		fmt.Printf("  PORT        HTTP server port (default: %s)\n\n", defaultPort)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting releasectl", "service", serviceName, "version", serviceVersion)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := connectDatabase(ctx, cfg, logger)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL")

	if err := database.RunMigrations(ctx, pool, logger); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		slog.Warn("Continuing without migrations - manual intervention may be required")
	} else {
		slog.Info("Database migrations completed successfully")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.ObjectStorage.Region))
	if err != nil {
		slog.Error("Failed to load AWS configuration", "error", err)
		os.Exit(1)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.ObjectStorage.Endpoint != "" {
			o.BaseEndpoint = &cfg.ObjectStorage.Endpoint
		}
		o.UsePathStyle = cfg.ObjectStorage.ForcePathStyle
	})
	objects := objectstorage.New(s3Client, objectstorage.Config{
		Bucket:         cfg.ObjectStorage.Bucket,
		ForcePathStyle: cfg.ObjectStorage.ForcePathStyle,
		UploadTimeout:  cfg.ObjectStorage.UploadTimeout,
	})

	var invalidator *cdn.Invalidator
	if cfg.CDN.DistributionID != "" {
		cloudfrontAwsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.CDN.Region))
		if err != nil {
			slog.Error("Failed to load AWS configuration for CloudFront", "error", err)
			os.Exit(1)
		}
		cfClient := cloudfront.NewFromConfig(cloudfrontAwsCfg)
		invalidator = cdn.New(cfClient, cfg.CDN.DistributionID, cfg.CDN.Timeout, logger)
	} else {
		slog.Warn("CDN distribution_id not configured - invalidation hook disabled")
	}

	resolverCache, err := buildResolverCache(cfg)
	if err != nil {
		slog.Error("Failed to build resolver cache", "error", err)
		os.Exit(1)
	}

	configSvc := configservice.New(configservice.Config{
		BaseURL:    cfg.ConfigService.BaseURL,
		AuthToken:  cfg.ConfigService.AuthToken,
		Workspace:  cfg.ConfigService.Workspace,
		Timeout:    cfg.ConfigService.Timeout,
		MaxRetries: cfg.ConfigService.MaxRetries,
	})

	// invalidator is typed nil when the CDN is unconfigured; each of the
	// domain packages below declares its own narrow CDNInvalidator
	// interface, so the nil check must happen before it's boxed into one.
	var cohortCDN configservice.CDNInvalidator
	var dimensionCDN dimension.CDNInvalidator
	var releaseCDN release.CDNInvalidator
	if invalidator != nil {
		cohortCDN, dimensionCDN, releaseCDN = invalidator, invalidator, invalidator
	}
	cohortStore := configservice.NewCohortSchemaStore(configSvc, cohortCDN)

	fileRepo := repopostgres.NewFileRepository(pool.Pool(), logger)
	packageRepo := repopostgres.NewPackageRepository(pool.Pool(), logger)
	releaseRepo := repopostgres.NewReleaseRepository(pool.Pool(), logger)
	buildRepo := repopostgres.NewBuildRepository(pool.Pool(), logger)
	releaseViewRepo := repopostgres.NewReleaseViewRepository(pool.Pool(), logger)

	dimensionRegistry := dimension.New(configSvc, releaseRepo, dimensionCDN)
	cohortEngine := cohort.New(cohortStore)
	propertyManager := property.New(configSvc, releaseRepo)
	packageStore := packagestore.New(fileRepo, packageRepo)
	releaseOrchestrator := release.New(configSvc, releaseRepo, releaseCDN, nil)
	resolverSvc := resolver.New(configSvc, fileRepo, resolverCache)
	buildPipeline := build.New(buildRepo, nil, nil)
	releaseViewRegistry := releaseview.New(releaseViewRepo, configSvc)
	artifactAssembler := assembler.New(fileRepo, nil)

	routerConfig := api.DefaultRouterConfig(logger)
	routerConfig.Dimension = handlers.NewDimensionHandler(dimensionRegistry)
	routerConfig.Cohort = handlers.NewCohortHandler(cohortEngine)
	routerConfig.Property = handlers.NewPropertyHandler(propertyManager, configSvc)
	routerConfig.PackageStore = handlers.NewPackageStoreHandler(packageStore)
	routerConfig.Release = handlers.NewReleaseHandler(releaseOrchestrator)
	routerConfig.Resolver = handlers.NewResolverHandler(resolverSvc)
	routerConfig.Build = handlers.NewBuildHandler(buildPipeline, resolverSvc, releaseOrchestrator, artifactAssembler, objects, invalidator)
	routerConfig.ReleaseView = handlers.NewReleaseViewHandler(releaseViewRegistry)

	router := api.NewRouter(routerConfig)

	port := os.Getenv("PORT")
	if port == "" {
		port = fmt.Sprintf("%d", cfg.Server.Port)
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("HTTP server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := pool.Disconnect(shutdownCtx); err != nil {
		slog.Error("Failed to close database connection cleanly", "error", err)
	}

	slog.Info("Server exited")
}

func connectDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*postgres.PostgresPool, error) {
	dbConfig := &postgres.PostgresConfig{
		Host:              cfg.Database.Host,
		Port:              cfg.Database.Port,
		Database:          cfg.Database.Database,
		User:              cfg.Database.Username,
		Password:          cfg.Database.Password,
		SSLMode:           cfg.Database.SSLMode,
		MaxConns:          int32(cfg.Database.MaxConnections),
		MinConns:          int32(cfg.Database.MinConnections),
		MaxConnLifetime:   cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:   cfg.Database.MaxConnIdleTime,
		HealthCheckPeriod: 30 * time.Second,
		ConnectTimeout:    cfg.Database.ConnectTimeout,
	}

	pool := postgres.NewPostgresPool(dbConfig, logger)
	if err := pool.Connect(ctx); err != nil {
		return nil, err
	}
	return pool, nil
}

// buildResolverCache selects the Resolver's cache backend (§4.6): Redis
// when an address is configured, an in-process LRU otherwise.
func buildResolverCache(cfg *config.Config) (resolver.Cache, error) {
	if cfg.UsesRedisCache() {
		client := redis.NewClient(&redis.Options{
			Addr:            cfg.ResolverCache.Addr,
			Password:        cfg.Redis.Password,
			DB:              cfg.Redis.DB,
			PoolSize:        cfg.Redis.PoolSize,
			MinIdleConns:    cfg.Redis.MinIdleConns,
			DialTimeout:     cfg.Redis.DialTimeout,
			ReadTimeout:     cfg.Redis.ReadTimeout,
			WriteTimeout:    cfg.Redis.WriteTimeout,
			MaxRetries:      cfg.Redis.MaxRetries,
			MinRetryBackoff: cfg.Redis.MinRetryBackoff,
			MaxRetryBackoff: cfg.Redis.MaxRetryBackoff,
		})
		return resolvercache.NewRedis(client, cfg.ResolverCache.TTL), nil
	}
	return resolvercache.NewLRU(cfg.ResolverCache.LRUEntries)
}
