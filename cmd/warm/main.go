package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"watttime-api/internal/cli"
	"watttime-api/internal/config"
	"watttime-api/internal/svc"
	"watttime-api/pkg/carbon"
	"watttime-api/pkg/journal"

	// Import for side-effects: registers the watttime source
	_ "watttime-api/pkg/carbon/sources/watttime"
)

const (
	fetchTimeout    = 60 * time.Second // Timeout for one region's fetch
	shutdownTimeout = 10 * time.Second // Grace period for shutdown
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("[main] Starting cache warmer...")

	configFlag := flag.String("config", "etc/watttime.yaml", "path to main configuration")
	flag.Parse()

	// Load application configuration
	appCfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("[main] Failed to load app config: %v", err)
	}
	cli.ApplyLogLevel(appCfg.LogLevel)

	// Log configuration information
	log.Printf("[main] Configuration loaded:")
	for _, line := range cli.ConfigSummaryLines(appCfg) {
		log.Printf("  - %s", line)
	}

	if len(appCfg.Warm.Regions) == 0 {
		log.Fatalf("[main] No regions configured; set Warm.Regions in %s", *configFlag)
	}

	sc := svc.NewServiceContext(*appCfg)
	client, err := sc.ClientFor("")
	if err != nil {
		log.Fatalf("[main] Failed to build carbon client: %v", err)
	}

	var jw *journal.Writer
	if dir := appCfg.Warm.JournalDir; dir != "" {
		jw = journal.NewWriter(dir)
	}

	log.Printf("  - Warm Regions: %v", appCfg.Warm.Regions)
	log.Printf("  - Warm Market: %s", appCfg.Warm.Market)
	log.Printf("  - Warm Intervals: refresh=%s, lookback=%s", appCfg.WarmInterval(), appCfg.WarmLookback())

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		runWarmLoop(ctx, appCfg, client, jw)
	}()

	log.Println("[main] Cache warmer started. Press Ctrl+C to stop.")

	// Wait for signal
	<-ctx.Done()
	log.Println("[main] Shutdown signal received, stopping...")

	select {
	case <-done:
		log.Println("[main] Warm loop stopped cleanly")
	case <-time.After(shutdownTimeout):
		log.Println("[main] Shutdown timeout exceeded, forcing exit")
	}

	log.Println("[main] Cache warmer stopped")
}

// runWarmLoop refreshes the cache on a schedule
func runWarmLoop(ctx context.Context, cfg *config.Config, client *carbon.Client, jw *journal.Writer) {
	ticker := time.NewTicker(cfg.WarmInterval())
	defer ticker.Stop()

	// Run once immediately on startup
	cycle := 1
	warmCycle(ctx, cfg, client, jw, cycle)

	for {
		select {
		case <-ctx.Done():
			log.Println("[warm] Stopping warm loop")
			return
		case <-ticker.C:
			cycle++
			warmCycle(ctx, cfg, client, jw, cycle)
		}
	}
}

// warmCycle fetches the lookback window for every configured region and
// journals the outcome.
func warmCycle(parentCtx context.Context, cfg *config.Config, client *carbon.Client, jw *journal.Writer, cycle int) {
	if parentCtx.Err() != nil {
		return
	}

	end := time.Now().UTC()
	start := end.Add(-cfg.WarmLookback())
	market := cfg.Warm.Market

	rec := &journal.CycleRecord{
		Timestamp:   end,
		CycleNumber: cycle,
		Market:      market,
		WindowStart: start,
		WindowEnd:   end,
		Success:     true,
	}

	for _, region := range cfg.Warm.Regions {
		func(region string) {
			ctx, cancel := context.WithTimeout(parentCtx, fetchTimeout)
			defer cancel()

			began := time.Now()
			samples, err := client.Fetch(ctx, start, end, region, market, nil)
			elapsed := time.Since(began)

			result := journal.RegionResult{
				Region:     region,
				Samples:    len(samples),
				DurationMS: float64(elapsed.Microseconds()) / 1000,
			}
			if err != nil {
				result.ErrorMessage = err.Error()
				rec.Success = false
				log.Printf("[warm.%s] [ERROR] %v, took %dms", region, err, elapsed.Milliseconds())
			} else {
				if latest, ok, lerr := client.Buckets().Latest(ctx, end, region, market); lerr == nil && ok {
					result.LatestSample = latest.Time.Format(carbon.RecordTimeLayout)
				}
				log.Printf("[warm.%s] [OK] cached %d samples, took %dms", region, len(samples), elapsed.Milliseconds())
			}
			rec.Regions = append(rec.Regions, result)
		}(region)
	}

	if jw != nil {
		path, err := jw.WriteCycle(rec)
		if err != nil {
			log.Printf("[warm] [WARN] journal write failed: %v", err)
			return
		}
		log.Printf("[warm] journaled cycle %d to %s", cycle, path)
	}
}
