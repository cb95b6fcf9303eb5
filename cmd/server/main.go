package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"time"

	"dnswatch/internal/config"
	"dnswatch/internal/handler"
	"dnswatch/internal/model"
	"dnswatch/internal/notify"
	"dnswatch/internal/service"
	"dnswatch/internal/storage"
	"dnswatch/internal/utils"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	_ = godotenv.Load()
	utils.InitLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		utils.Log.Fatal("invalid configuration", utils.Field("error", err.Error()))
	}

	store := storage.NewStorage(cfg.RedisHost, cfg.RedisPort)
	if err := store.Ping(context.Background()); err != nil {
		utils.Log.Fatal("redis unreachable", utils.Field("error", err.Error()))
	}

	resolvers := buildResolvers(cfg)
	if len(resolvers) == 0 {
		utils.Log.Fatal("no resolvers configured")
	}

	intel := service.NewIntelService(cfg.GeoDBPath, cfg.GeoFallbackURL, cfg.ReputationAPIURL, cfg.ReputationAPIKey, cfg.PTRResolver)
	defer intel.Close()

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.WebhookURL)
	}

	monitor := service.NewMonitorService(store, resolvers, intel, notifier)
	monitor.MaxConcurrentChecks = cfg.MaxConcurrentChecks
	monitor.MaxDomainsPerCycle = cfg.MaxDomainsPerCycle
	monitor.EnableIPAnalysis = cfg.EnableIPAnalysis
	monitor.EnableWhois = cfg.EnableWhois

	if cfg.DomainsFile != "" {
		seedWatchList(store, cfg.DomainsFile)
	}

	sched := service.NewScheduler(store, monitor, cfg.CronSchedule)
	sched.Start()
	defer sched.Stop()

	h := handler.NewHandler(store, monitor)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))

	e.GET("/domains", h.ListDomains)
	e.POST("/domains", h.AddDomain)
	e.DELETE("/domains/:domain", h.RemoveDomain)
	e.POST("/check", h.RunCheck)
	e.GET("/results/:domain", h.GetLastResult)
	e.GET("/history/:domain", h.GetHistory)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
}

func buildResolvers(cfg *config.Config) []service.Resolver {
	var resolvers []service.Resolver
	for _, pair := range config.ParseResolverList(cfg.DoHResolvers) {
		resolvers = append(resolvers, service.NewDoHResolver(pair[0], pair[1]))
	}
	for _, pair := range config.ParseResolverList(cfg.UDPResolvers) {
		resolvers = append(resolvers, service.NewUDPResolver(pair[0], pair[1]))
	}
	return resolvers
}

// seedWatchList merges a JSON file of domain specs into the stored watch
// list. Entries already present are left alone.
func seedWatchList(store *storage.Storage, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		utils.Log.Warn("cannot read domains file", utils.Field("path", path), utils.Field("error", err.Error()))
		return
	}
	var specs []model.DomainSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		utils.Log.Warn("cannot parse domains file", utils.Field("path", path), utils.Field("error", err.Error()))
		return
	}
	ctx := context.Background()
	added := 0
	for _, spec := range specs {
		if spec.RecordType == "" {
			spec.RecordType = model.RecordTypeA
		}
		if !utils.IsValidDomain(spec.Domain) || !spec.RecordType.Valid() {
			utils.Log.Warn("skipping invalid watch entry", utils.Field("domain", spec.Domain), utils.Field("type", spec.RecordType))
			continue
		}
		if err := store.AddWatchedDomain(ctx, spec); err != nil {
			utils.Log.Error("failed to seed watch entry", utils.Field("domain", spec.Domain), utils.Field("error", err.Error()))
			continue
		}
		added++
	}
	utils.Log.Info("watch list seeded", utils.Field("file", path), utils.Field("entries", added))
}
