package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"watttime-api/internal/config"
	"watttime-api/pkg/carbon"
)

func probe(fetcher carbon.Fetcher, region string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	end := time.Now().UTC().Truncate(time.Minute)
	start := end.Add(-30 * time.Minute)

	records, err := fetcher.FetchRaw(ctx, start, end, region, carbon.DefaultMarket, nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Records: %d\n", len(records))
	if len(records) == 0 {
		return
	}
	last := records[len(records)-1]
	fmt.Printf("Latest timestamp: %s\n", last.Timestamp)
	if v, ok := last.Value(); ok {
		fmt.Printf("Latest value: %.1f lb/MWh\n", v)
	}
}

func maskToken(token string) string {
	if len(token) <= 6 {
		return "******"
	}
	return token[:6] + strings.Repeat("*", len(token)-6)
}

func main() {
	// Ensure default carbon config (and .env) is loaded before reading env vars.
	cfg := config.MustLoadCarbon()

	name := cfg.DefaultName()
	source := cfg.Sources[name]
	if source == nil || strings.TrimSpace(source.Token) == "" {
		fmt.Println("WATTTIME_API_TOKEN not set in env/.env")
		fmt.Println("")
		fmt.Println("To obtain a token:")
		fmt.Println("1. Register an account with the WattTime API")
		fmt.Println("2. Export WATTTIME_API_TOKEN or add it to .env")
		os.Exit(1)
	}

	fetchers, err := cfg.BuildSources()
	if err != nil {
		fmt.Printf("build sources error: %v\n", err)
		os.Exit(1)
	}
	fetcher, ok := fetchers[name]
	if !ok {
		fmt.Printf("default source %q not built\n", name)
		os.Exit(1)
	}

	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Printf("Source: %s\n", name)
	fmt.Printf("Token:  %s\n", maskToken(source.Token))
	if source.BaseURL != "" {
		fmt.Printf("URL:    %s\n", source.BaseURL)
	}
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println()

	regions := []string{"CAISO_NORTH", "PJM"}
	if override := strings.TrimSpace(os.Getenv("WATTTIME_CHECK_REGIONS")); override != "" {
		regions = strings.Split(override, ",")
	}

	for i, region := range regions {
		region = strings.TrimSpace(region)
		if region == "" {
			continue
		}
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("--- %s ---\n", strings.ToUpper(region))
		probe(fetcher, region)
	}
}
