package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"newsharvest/config"
	"newsharvest/enrich"
	"newsharvest/fetch"
	"newsharvest/ingest"
	"newsharvest/store"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	configPath := getEnv("NEWSHARVEST_CONFIG", "newsharvest.yaml")
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	subcommand := os.Args[1]
	switch subcommand {
	case "run":
		handleRun(cfg, os.Args[2:])
	case "enrich":
		handleEnrich(cfg, os.Args[2:])
	case "db":
		if len(os.Args) < 3 {
			printDBUsage()
			os.Exit(1)
		}
		handleDB(cfg, os.Args[2], os.Args[3:])
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func handleRun(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	section := fs.String("section", "latest", "Section to harvest (latest, tech, business, regulation, people, features, opinion, markets)")
	num := fs.Int("num", 0, "Stop after this many articles")
	dateStr := fs.String("date", "", "Stop at articles published on or before this date (YYYY-MM-DD)")
	dayBoundary := fs.Bool("day-boundary", false, "Compare the date limit by calendar day instead of exact instant")
	feed := fs.Bool("feed", false, "Read the section's listing from its configured feed (see feeds: in the config file)")
	batch := fs.Int("batch", cfg.BatchSize, "Batch size for detail fetches and commits")
	fs.Parse(args)

	if (*num > 0) == (*dateStr != "") {
		fmt.Fprintln(os.Stderr, "Error: exactly one of -num or -date is required")
		fs.Usage()
		os.Exit(2)
	}

	var stop ingest.StopSpec
	if *num > 0 {
		stop = ingest.CountLimit(*num)
	} else {
		cutoff, err := time.Parse("2006-01-02", *dateStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid -date %q: must be YYYY-MM-DD\n", *dateStr)
			os.Exit(2)
		}
		policy := ingest.CompareInstant
		if *dayBoundary {
			policy = ingest.CompareCalendarDay
		}
		stop = ingest.DateLimit(cutoff, policy)
	}

	st := openStore(cfg)
	defer st.Close()

	fetcher := fetch.NewSiteFetcher(cfg.Site.BaseURL, cfg.FetchTimeout(), *batch)

	// Listing stubs come from the HTML listing pages, or from the section's
	// feed when -feed is set. Detail fetches go to the site either way.
	var pages ingest.PageFetcher = fetcher
	if *feed {
		if len(cfg.Feeds) == 0 {
			fmt.Fprintln(os.Stderr, "Error: -feed requires a feeds: section in the config file")
			os.Exit(2)
		}
		pages = fetch.NewFeedFetcher(cfg.Feeds)
	}

	controller, err := ingest.NewController(pages, fetcher, st, ingest.Config{
		BatchSize: *batch,
		Source:    cfg.Site.Name,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	start := time.Now()
	report, err := controller.Run(context.Background(), *section, stop)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: run failed: %v\n", err)
		os.Exit(1)
	}

	printReport(report, time.Since(start))
}

func handleEnrich(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("enrich", flag.ExitOnError)
	tag := fs.String("tag", "", "Tag to search for (default: most popular stored tag)")
	num := fs.Int("num", 20, "Maximum number of articles to request (1-100)")
	from := fs.String("from", "", "Only articles published after this date (YYYY-MM-DD)")
	to := fs.String("to", "", "Only articles published before this date (YYYY-MM-DD)")
	sortBy := fs.String("sort", enrich.SortPublishedAt, "Sort order: publishedAt, popularity, or relevancy")
	batch := fs.Int("batch", cfg.BatchSize, "Batch size for commits")
	fs.Parse(args)

	st := openStore(cfg)
	defer st.Close()

	searchTag := *tag
	if searchTag == "" {
		counts, err := st.TopTags(cfg.Site.Name, 1)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to pick a tag: %v\n", err)
			os.Exit(1)
		}
		if len(counts) == 0 {
			fmt.Fprintln(os.Stderr, "Error: no stored tags to enrich; pass -tag or run an ingestion first")
			os.Exit(1)
		}
		searchTag = counts[0].Name
		fmt.Printf("Enriching most popular tag: %s\n", searchTag)
	}

	client := enrich.NewClient(cfg.Enrichment.BaseURL, cfg.Enrichment.APIKey, siteDomain(cfg.Site.BaseURL), cfg.FetchTimeout())
	raws, err := client.Search(context.Background(), enrich.Params{
		Tag:        searchTag,
		MaxResults: *num,
		FromDate:   *from,
		ToDate:     *to,
		Domains:    cfg.Enrichment.Domains,
		SortBy:     *sortBy,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: search failed: %v\n", err)
		os.Exit(1)
	}

	controller, err := ingest.NewController(nil, nil, st, ingest.Config{
		BatchSize: *batch,
		Source:    cfg.Site.Name,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	start := time.Now()
	report, err := controller.RunEnrichment(context.Background(), raws, searchTag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: enrichment failed: %v\n", err)
		os.Exit(1)
	}

	printReport(report, time.Since(start))
}

func handleDB(cfg *config.Config, action string, args []string) {
	switch action {
	case "init":
		st := openStore(cfg)
		st.Close()
		fmt.Printf("Initialized database at %s\n", cfg.Storage.DSN)
	case "reset":
		st := openStore(cfg)
		defer st.Close()
		if err := st.Reset(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to reset database: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Reset database at %s\n", cfg.Storage.DSN)
	case "show":
		st := openStore(cfg)
		defer st.Close()
		handleDBShow(cfg, st)
	case "help", "--help", "-h":
		printDBUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown db command: %s\n\n", action)
		printDBUsage()
		os.Exit(1)
	}
}

func handleDBShow(cfg *config.Config, st *store.Store) {
	counts, err := st.TableCounts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to inspect database: %v\n", err)
		os.Exit(1)
	}
	printTableCounts(counts)

	tags, err := st.TopTags(cfg.Site.Name, 10)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to query tags: %v\n", err)
		os.Exit(1)
	}
	printTopTags(cfg.Site.Name, tags)
}

// openStore opens the configured database, exiting on failure.
func openStore(cfg *config.Config) *store.Store {
	st, err := store.New(cfg.Storage.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open database: %v\n", err)
		os.Exit(1)
	}
	return st
}

// siteDomain extracts the bare domain of the harvested site so enrichment
// results exclude it.
func siteDomain(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

func printUsage() {
	fmt.Println("newsharvest - incremental article ingestion")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  newsharvest <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run        Harvest a section up to a count or date limit")
	fmt.Println("  enrich     Pull related articles for a tag from the search API")
	fmt.Println("  db         Initialize, reset, or inspect the database")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  NEWSHARVEST_CONFIG   Path to config file (default: newsharvest.yaml)")
	fmt.Println("  NEWSHARVEST_DSN      Path to the sqlite database")
	fmt.Println("  NEWSHARVEST_API_KEY  Search API key for enrichment")
}

func printDBUsage() {
	fmt.Println("newsharvest db - Manage the article database")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  newsharvest db <action>")
	fmt.Println()
	fmt.Println("Actions:")
	fmt.Println("  init       Create the schema if it doesn't exist")
	fmt.Println("  reset      Drop and recreate all tables")
	fmt.Println("  show       Print table row counts and top tags")
}
