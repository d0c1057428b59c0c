package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tagcompliance/internal/audit"
	"tagcompliance/internal/cache"
	"tagcompliance/internal/catalog"
	"tagcompliance/internal/cloudclient"
	"tagcompliance/internal/compliance"
	"tagcompliance/internal/config"
	"tagcompliance/internal/dispatcher"
	"tagcompliance/internal/dispatcher/schema"
	"tagcompliance/internal/guardrails"
	"tagcompliance/internal/history"
	"tagcompliance/internal/policy"
	"tagcompliance/internal/region"
	"tagcompliance/internal/scanner"
	"tagcompliance/internal/transport/httpapi"
	"tagcompliance/internal/transport/stdio"
)

func main() {
	cfg := config.Load()

	cat, err := catalog.Load(cfg.ResourceTypesConfigPath)
	if err != nil {
		log.Printf("resource-type catalog not found at %q, using built-in defaults: %v", cfg.ResourceTypesConfigPath, err)
		cat = catalog.LoadDefault()
	}

	policyStore, err := policy.Load(cfg.PolicyPath)
	if err != nil {
		log.Fatalf("failed to load tagging policy: %v", err)
	}

	namingEngine, err := policy.NewNamingEngine(policyStore.Current().NamingRules)
	if err != nil {
		log.Fatalf("failed to compile naming rules: %v", err)
	}

	resultCache := cache.New(cfg.CacheURL, cfg.CachePassword)

	factory := cloudclient.NewFactory(cfg.CostRegion)

	regionDiscoverer, err := region.New(cfg.CostRegion, resultCache, cfg.RegionCacheTTL)
	if err != nil {
		log.Fatalf("failed to initialize region discoverer: %v", err)
	}

	complianceSvc := compliance.New(namingEngine)

	scan := scanner.New(factory, complianceSvc, cfg.MaxConcurrentRegions, cfg.RegionScanTimeout)

	auditDBURL := cfg.DatabaseURL
	if cfg.AuditStorePath != "" {
		auditDBURL = cfg.AuditStorePath
	}
	auditStore, err := audit.Open(auditDBURL)
	if err != nil {
		log.Fatalf("failed to open audit store: %v", err)
	}

	historyDBURL := cfg.DatabaseURL
	if cfg.HistoryStorePath != "" {
		historyDBURL = cfg.HistoryStorePath
	}
	historyStore, err := history.Open(historyDBURL)
	if err != nil {
		log.Fatalf("failed to open compliance-history store: %v", err)
	}

	var budget *guardrails.BudgetTracker
	if cfg.BudgetTrackingEnabled {
		budget = guardrails.NewBudgetTracker(resultCache, cfg.MaxToolCallsPerSession, cfg.SessionBudgetTTL)
	}

	var loop *guardrails.LoopDetector
	if cfg.LoopDetectionEnabled {
		loop = guardrails.NewLoopDetector(resultCache, cfg.MaxIdenticalCalls, cfg.LoopDetectionWindow)
	}

	schemas, err := schema.Compile()
	if err != nil {
		log.Fatalf("failed to compile tool schemas: %v", err)
	}

	svc := &dispatcher.Service{
		Catalog:             cat,
		Policy:              policyStore,
		Cache:               resultCache,
		Factory:             factory,
		Region:              regionDiscoverer,
		Compliance:          complianceSvc,
		Scanner:             scan,
		AuditStore:          auditStore,
		HistoryStore:        historyStore,
		AllowedRegions:      cfg.AllowedRegions,
		ComplianceCacheTTL:  cfg.ComplianceCacheTTL,
		CostAttributionTags: policyStore.Current().CostAttributionTags,
	}

	bounds := guardrails.DefaultBounds
	bounds.MaxBodySizeBytes = cfg.MaxRequestSizeBytes
	bounds.MaxHeaderSizeBytes = cfg.MaxHeaderSizeBytes
	bounds.MaxHeaderCount = cfg.MaxHeaderCount
	bounds.MaxQueryStringLength = cfg.MaxQueryStringLength
	bounds.MaxPathLength = cfg.MaxPathLength

	d := dispatcher.New(svc, dispatcher.Config{
		Schemas:         schemas,
		AuditStore:      auditStore,
		Bounds:          bounds,
		Budget:          budget,
		Loop:            loop,
		SanitizeEnabled: cfg.RequestSanitizationEnabled,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	httpApp := httpapi.New(d, cfg.SharedSecret, bounds)
	go func() {
		if err := httpApp.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("http transport stopped: %v", err)
		}
	}()

	go func() {
		if err := stdio.Serve(ctx, d, os.Stdin, os.Stdout); err != nil {
			log.Printf("stdio transport stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	cancel()
	_ = httpApp.Shutdown()
}
