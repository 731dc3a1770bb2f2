// engram-demo is a scripted walkthrough of the engine: add a handful of
// memories, recall them under a few queries, apply reward feedback, add a
// contradiction, and consolidate. Mirrors try_engram.py's demo script.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/vthunder/engram"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	dbPath := envOr("ENGRAM_DB_PATH", ":memory:")

	e, err := engram.New(engram.Options{DBPath: dbPath})
	if err != nil {
		log.Fatalf("engram.New: %v", err)
	}
	defer e.Close()

	fmt.Println("=== adding memories ===")
	rustID, err := e.Add("potato likes writing Rust code", engram.TypeRelational, 0.8, nil)
	must(err)
	must1(e.Add("SaltyHall is an AI social platform, built on Vercel+Supabase", engram.TypeFactual, 0.9, nil))
	must1(e.Add("yesterday I wrote a TypeScript port of engram", engram.TypeEpisodic, 0.7, nil))
	must1(e.Add("always run tests before deploying", engram.TypeProcedural, 0.85, nil))
	must1(e.Add("potato is interested in trading", engram.TypeRelational, 0.6, nil))
	fmt.Println("added 5 memories")

	fmt.Println("\n=== recall ===")
	printRecall(e, "potato", 3)
	printRecall(e, "code", 3)
	printRecall(e, "deploy test", 3)

	fmt.Println("\n=== reward ===")
	must(e.Reward("positive"))
	fmt.Println("gave positive feedback to the most recent recall")

	fmt.Println("\n--- recall(\"deploy\") after reward ---")
	results, err := e.Recall("deploy", 3, false)
	must(err)
	for _, r := range results {
		fmt.Printf("  [%s] activation=%.3f | %s\n", r.ConfidenceLabel, r.Activation, r.Content)
	}

	fmt.Println("\n=== contradiction ===")
	must1(e.Add("potato likes writing Python code", engram.TypeRelational, 0.8, &rustID))
	fmt.Println("added a memory contradicting the Rust one")

	fmt.Println("\n--- recall(\"potato code\") showing confidence shift ---")
	results, err = e.Recall("potato code", 3, false)
	must(err)
	for _, r := range results {
		fmt.Printf("  [%s] conf=%.2f | %s\n", r.ConfidenceLabel, r.Confidence, r.Content)
	}

	fmt.Println("\n=== stats ===")
	printStats(e)

	fmt.Println("\n=== consolidating (simulated sleep) ===")
	nPromoted, err := e.Consolidate(1.0)
	must(err)
	fmt.Printf("promoted %d memories from working to core\n", nPromoted)
	printStats(e)
}

func printRecall(e *engram.Engine, query string, limit int) {
	fmt.Printf("\n--- recall(%q) ---\n", query)
	results, err := e.Recall(query, limit, false)
	must(err)
	for _, r := range results {
		fmt.Printf("  [%s] %s\n", r.ConfidenceLabel, r.Content)
	}
}

func printStats(e *engram.Engine) {
	stats, err := e.Stats()
	must(err)
	fmt.Printf("total memories: %d\n", stats.TotalMemories)
	fmt.Printf("working layer: %d\n", stats.WorkingCount)
	fmt.Printf("core layer: %d\n", stats.CoreCount)
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func must1(_ string, err error) {
	must(err)
}
