// mastersync downloads the broker's instrument master archives and loads
// them into the local SQLite store used by the dashboard's instrument
// search. The master files are public, so no login is required.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joho/godotenv"

	"integrate-dash/internal/master"
	"integrate-dash/pkg/integrate"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		dbPath  = flag.String("db", envOr("MASTER_DB", "data/master.db"), "sqlite database path")
		fileKey = flag.String("file", "ALL", "master file key to sync ("+keyList()+")")
		timeout = flag.Duration("timeout", 5*time.Minute, "overall sync timeout")
	)
	flag.Parse()

	godotenv.Load()

	client := integrate.NewClient(integrate.Config{
		FilesBase: os.Getenv("INTEGRATE_FILES_BASE"),
	})

	os.MkdirAll(filepath.Dir(*dbPath), 0o755)
	store, err := master.Open(*dbPath)
	if err != nil {
		log.Fatalf("[mastersync] open store: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	n, err := master.Sync(ctx, client, store, *fileKey)
	if err != nil {
		log.Fatalf("[mastersync] sync failed: %v", err)
	}

	total, _ := store.Count(ctx)
	log.Printf("[mastersync] synced %d instruments (%d total) in %s",
		n, total, time.Since(start).Round(time.Millisecond))
}

func keyList() string {
	keys := make([]string, 0, len(master.Files))
	for k := range master.Files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += k
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
