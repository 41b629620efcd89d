package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"muscat-water/internal/api/handlers"
	"muscat-water/internal/api/middleware"
	"muscat-water/internal/config"
	"muscat-water/internal/data"
	"muscat-water/internal/model"
	"muscat-water/internal/service"
	"muscat-water/internal/sink"
)

func main() {
	configPath := flag.String("config", os.Getenv("WATER_CONFIG"), "Path to YAML config (optional)")
	flag.Parse()

	if err := config.LoadEnv(); err != nil {
		log.Printf("Warning: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	loader, closeSource, err := cfg.NewLoader()
	if err != nil {
		log.Fatalf("Failed to set up %s source: %v", cfg.Source.Kind, err)
	}
	defer func() {
		if err := closeSource(); err != nil {
			log.Printf("Error closing source: %v", err)
		}
	}()
	log.Printf("Meter registry source: %s", cfg.Source.Kind)

	var (
		metersCache data.Cache[[]model.MeterRecord]
		aggsCache   data.Cache[*model.PeriodAggregate]
	)
	if !cfg.Cache.Disabled {
		mc := data.NewMemoryCache[[]model.MeterRecord](cfg.Cache.Cleanup)
		ac := data.NewMemoryCache[*model.PeriodAggregate](cfg.Cache.Cleanup)
		defer mc.Stop()
		defer ac.Stop()
		metersCache, aggsCache = mc, ac
	}
	svc := service.New(loader, cfg.EngineOptions(), metersCache, aggsCache, cfg.Cache.TTL)

	var publisher service.Publisher
	if cfg.Refresh.Publish {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		p, err := sink.NewInfluxPublisher(ctx, cfg.InfluxSink())
		cancel()
		if err != nil {
			log.Printf("Warning: InfluxDB unavailable, publishing disabled: %v", err)
		} else {
			defer p.Close()
			publisher = p
		}
	}

	if cfg.Refresh.Enabled {
		sched, err := service.NewScheduler(svc, cfg.Refresh.Schedule, publisher)
		if err != nil {
			log.Fatalf("Failed to create scheduler: %v", err)
		}
		sched.Start()
		defer func() { <-sched.Stop().Done() }()
		log.Printf("Scheduled registry refresh: %s", cfg.Refresh.Schedule)
	}

	// Set up Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.CORS(cfg.Server.CORSOrigins...))
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "source": cfg.Source.Kind})
	})

	waterHandler := handlers.NewWaterHandler(svc)
	api := router.Group("/api/v1")
	waterHandler.Register(api.Group("/water"))

	serveStatic(router)

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}

// serveStatic serves the dashboard build from STATIC_DIR when present.
func serveStatic(router *gin.Engine) {
	staticDir := os.Getenv("STATIC_DIR")
	if staticDir == "" {
		staticDir = "./web/dist"
	}
	if _, err := os.Stat(staticDir); err != nil {
		log.Printf("Static directory %s not found, skipping static file serving", staticDir)
		return
	}

	router.Static("/assets", staticDir+"/assets")
	router.StaticFile("/favicon.ico", staticDir+"/favicon.ico")

	// Serve index.html for all non-API routes (SPA routing)
	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		c.File(staticDir + "/index.html")
	})
	log.Printf("Serving static files from %s", staticDir)
}
