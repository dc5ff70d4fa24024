package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/skyline-ota/releasectl/internal/api/handlers"
	"github.com/skyline-ota/releasectl/internal/api/middleware"
)

// RouterConfig holds the router's middleware configuration and the
// handler set wired in cmd/server/main.go against the live dependency
// graph (dimension registry, cohort engine, property manager, package
// store, release orchestrator, resolver, build pipeline, release views).
type RouterConfig struct {
	EnableAuth        bool
	EnableRateLimit   bool
	EnableCompression bool
	EnableCORS        bool
	EnableMetrics     bool

	AuthConfig middleware.AuthConfig

	RateLimitPerMinute int
	RateLimitBurst     int

	CORSConfig middleware.CORSConfig

	Logger *slog.Logger

	Dimension    *handlers.DimensionHandler
	Cohort       *handlers.CohortHandler
	Property     *handlers.PropertyHandler
	PackageStore *handlers.PackageStoreHandler
	Release      *handlers.ReleaseHandler
	Resolver     *handlers.ResolverHandler
	Build        *handlers.BuildHandler
	ReleaseView  *handlers.ReleaseViewHandler
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig(logger *slog.Logger) RouterConfig {
	return RouterConfig{
		EnableAuth:         true,
		EnableRateLimit:    true,
		EnableCompression:  true,
		EnableCORS:         true,
		EnableMetrics:      true,
		RateLimitPerMinute: 100,
		RateLimitBurst:     20,
		CORSConfig:         middleware.DefaultCORSConfig(),
		Logger:             logger,
		AuthConfig: middleware.AuthConfig{
			EnableAPIKey: true,
			EnableJWT:    false,
			APIKeys:      make(map[string]*middleware.User),
		},
	}
}

// NewRouter creates the API router with all middleware configured.
//
// The middleware stack is applied in order:
//  1. RequestID (always)
//  2. Logging (always)
//  3. Metrics (if enabled)
//  4. CORS (if enabled)
//  5. Compression (if enabled)
//  6. Route-specific: Auth, RateLimit
//
// @title Release Orchestration Control Plane API
// @version 1.0.0
// @description REST surface over the OTA release orchestration engine:
// dimensions, cohorts, default config properties, packages, releases,
// the resolver, the build pipeline, and release views.
// @contact.name Release Engineering
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
func NewRouter(config RouterConfig) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(config.Logger))

	if config.EnableMetrics {
		router.Use(middleware.MetricsMiddleware)
	}
	if config.EnableCORS {
		router.Use(middleware.CORSMiddleware(config.CORSConfig))
	}
	if config.EnableCompression {
		router.Use(middleware.CompressionMiddleware)
	}

	router.HandleFunc("/health", HealthCheckHandler(config.Logger)).Methods("GET")

	v1 := router.PathPrefix("/api/v1").Subrouter()
	if config.EnableAuth {
		v1.Use(middleware.AuthMiddleware(config.AuthConfig))
	}
	if config.EnableRateLimit {
		v1.Use(middleware.RateLimitMiddleware(config.RateLimitPerMinute, config.RateLimitBurst))
	}

	org := v1.PathPrefix("/organisations/{org}/applications/{app}").Subrouter()

	setupDimensionRoutes(org, config)
	setupPropertyRoutes(org, config)
	setupPackageStoreRoutes(org, config)
	setupReleaseRoutes(org, config)
	setupResolverRoutes(org, config)
	setupBuildRoutes(org, config)
	setupReleaseViewRoutes(org, config)

	setupDocumentationRoutes(router)

	return router
}

func setupDimensionRoutes(router *mux.Router, config RouterConfig) {
	if config.Dimension == nil {
		return
	}
	dim := router.PathPrefix("/dimension").Subrouter()
	dim.HandleFunc("", config.Dimension.Create).Methods("POST")
	dim.HandleFunc("", config.Dimension.List).Methods("GET")
	dim.HandleFunc("/{name}", config.Dimension.Update).Methods("PATCH")
	dim.HandleFunc("/{name}", config.Dimension.Delete).Methods("DELETE")

	if config.Cohort == nil {
		return
	}
	dim.HandleFunc("/{name}/cohort/checkpoint", config.Cohort.InsertCheckpoint).Methods("POST")
	dim.HandleFunc("/{name}/cohort/group", config.Cohort.InsertGroup).Methods("POST")
	dim.HandleFunc("/{name}/cohort/priority", config.Cohort.UpdatePriority).Methods("PATCH")
}

func setupPropertyRoutes(router *mux.Router, config RouterConfig) {
	if config.Property == nil {
		return
	}
	prop := router.PathPrefix("/default_config").Subrouter()
	prop.HandleFunc("", config.Property.List).Methods("GET")
	prop.HandleFunc("", config.Property.Apply).Methods("PUT")
}

func setupPackageStoreRoutes(router *mux.Router, config RouterConfig) {
	if config.PackageStore == nil {
		return
	}
	router.HandleFunc("/package_group", config.PackageStore.CreateGroup).Methods("POST")
	router.HandleFunc("/package_group/{group_id}/package", config.PackageStore.CreatePackage).Methods("POST")
	router.HandleFunc("/package_group/{group_id}/package", config.PackageStore.GetPackage).Methods("GET")
}

func setupReleaseRoutes(router *mux.Router, config RouterConfig) {
	if config.Release == nil {
		return
	}
	rel := router.PathPrefix("/release").Subrouter()
	rel.HandleFunc("", config.Release.Create).Methods("POST")
	rel.HandleFunc("", config.Release.List).Methods("GET")
	rel.HandleFunc("/{id}", config.Release.Get).Methods("GET")
	rel.HandleFunc("/{id}/ramp", config.Release.Ramp).Methods("POST")
	rel.HandleFunc("/{id}/conclude", config.Release.Conclude).Methods("POST")
}

func setupResolverRoutes(router *mux.Router, config RouterConfig) {
	if config.Resolver == nil {
		return
	}
	router.HandleFunc("/release_config", config.Resolver.Serve).Methods("GET")
}

func setupBuildRoutes(router *mux.Router, config RouterConfig) {
	if config.Build == nil {
		return
	}
	router.HandleFunc("/build", config.Build.Serve).Methods("GET")
}

func setupReleaseViewRoutes(router *mux.Router, config RouterConfig) {
	if config.ReleaseView == nil {
		return
	}
	rv := router.PathPrefix("/release_view").Subrouter()
	rv.HandleFunc("", config.ReleaseView.Create).Methods("POST")
	rv.HandleFunc("", config.ReleaseView.List).Methods("GET")
	rv.HandleFunc("/{name}", config.ReleaseView.Get).Methods("GET")
	rv.HandleFunc("/{name}", config.ReleaseView.Delete).Methods("DELETE")
}

// setupDocumentationRoutes configures the Swagger UI and OpenAPI routes.
func setupDocumentationRoutes(router *mux.Router) {
	router.PathPrefix("/api/v1/docs").Handler(httpSwagger.WrapHandler)
}

// HealthCheckHandler returns overall system health.
//
// @Summary System health check
// @Description Returns health status of all subsystems
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{} "Healthy"
// @Router /health [get]
func HealthCheckHandler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"status":  "healthy",
			"version": "1.0.0",
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(response); err != nil {
			logger.Error("failed to encode health response", "error", err)
		}
	}
}
