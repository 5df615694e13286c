package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/keyvet-hq/keyvet/core/patterns"
)

// runWatch re-runs a full scan whenever files under the configured scan
// paths change, debounced so bursts of writes trigger a single scan.
func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	debounce := fs.Duration("debounce", 2*time.Second, "debounce interval for file changes")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, scanner, store, _, err := bootstrap()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer store.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: creating watcher: %v\n", err)
		return 1
	}
	defer watcher.Close()

	for _, root := range cfg.ScanPaths {
		if err := addDirsRecursive(watcher, root); err != nil {
			fmt.Fprintf(os.Stderr, "error: watching %s: %v\n", root, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runOnce := func() {
		summary, err := scanner.RunFullScan(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: scan failed: %v\n", err)
			return
		}
		ff, err := store.ListAll(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return
		}
		printSummary(os.Stdout, summary, ff)
	}

	fmt.Printf("watch: scanning %d paths (debounce: %s)\n", len(cfg.ScanPaths), *debounce)
	runOnce()

	var mu sync.Mutex
	var timer *time.Timer
	resetTimer := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(*debounce, func() {
			fmt.Println("watch: changes detected, re-scanning")
			runOnce()
		})
	}

	for {
		select {
		case <-ctx.Done():
			return 0
		case event, ok := <-watcher.Events:
			if !ok {
				return 0
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
				resetTimer()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return 0
			}
			fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		}
	}
}

// addDirsRecursive registers root and every non-ignored subdirectory with
// the watcher.
func addDirsRecursive(watcher *fsnotify.Watcher, root string) error {
	if _, err := os.Stat(root); err != nil {
		return err
	}
	return filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil || !entry.IsDir() {
			return nil
		}
		if path != root && patterns.IgnoredDir(entry.Name()) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
