package main

import (
	"fmt"
	"time"

	"newsharvest/ingest"
	"newsharvest/store"
)

// printReport prints a run summary.
func printReport(report *ingest.Report, elapsed time.Duration) {
	fmt.Printf("Persisted %d articles in %d batches (%.3fs)\n",
		report.Persisted, report.Batches, elapsed.Seconds())
	if report.Exhausted {
		fmt.Println("Source exhausted before the stop condition was met.")
	}
}

// printTableCounts prints row counts in a fixed table order.
func printTableCounts(counts map[string]int) {
	order := []string{
		"articles", "summaries", "authors", "tags", "categories",
		"authors_in_articles", "tags_in_articles", "categories_in_articles",
	}

	fmt.Printf("%-25s %s\n", "TABLE", "ROWS")
	for _, table := range order {
		fmt.Printf("%-25s %d\n", table, counts[table])
	}
}

// printTopTags prints the most used tags for a source.
func printTopTags(source string, tags []store.TagCount) {
	if len(tags) == 0 {
		return
	}

	fmt.Printf("\nTop tags for %s:\n", source)
	for _, tc := range tags {
		fmt.Printf("  %-30s %d\n", tc.Name, tc.Count)
	}
}
