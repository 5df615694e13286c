// Package main is the entry point for the keyvet agent. The CLI is a thin
// host around the core pipeline and the HTTP server; it wires the vault,
// storage, and scanner together and dispatches subcommands.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/keyvet-hq/keyvet/core"
	"github.com/keyvet-hq/keyvet/core/appdir"
	"github.com/keyvet-hq/keyvet/core/storage"
	"github.com/keyvet-hq/keyvet/core/vault"
	"github.com/keyvet-hq/keyvet/server"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch args[0] {
	case "serve":
		return runServe(args[1:])
	case "scan":
		return runScan(args[1:])
	case "findings":
		return runFindings(args[1:])
	case "watch":
		return runWatch(args[1:])
	case "version", "--version", "-v":
		fmt.Printf("keyvet %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Print(`keyvet — on-host credential hygiene agent

Usage:
  keyvet serve [-addr host:port]   run the HTTP agent
  keyvet scan [-json]              run one full scan and print the summary
  keyvet findings [-json]          list stored findings
  keyvet watch [-debounce dur]     re-scan when files under the scan paths change
  keyvet version                   print the version
`)
}

// bootstrap loads config, unseals the master key, and opens the store. The
// caller owns closing the returned store.
func bootstrap() (*core.Config, *core.Scanner, *storage.Store, string, error) {
	appData, err := appdir.AppData()
	if err != nil {
		return nil, nil, nil, "", fmt.Errorf("resolving app-data dir: %w", err)
	}

	cfg, err := core.LoadConfig(appData)
	if err != nil {
		return nil, nil, nil, "", err
	}

	sealer, err := vault.NewSealer(cfg.AllowInsecureKeystore)
	if err != nil {
		return nil, nil, nil, "", err
	}
	if cfg.AllowInsecureKeystore {
		slog.Warn("insecure keystore enabled: master key is stored unsealed on disk")
	}

	key, err := vault.LoadMasterKey(appData, sealer)
	if err != nil {
		return nil, nil, nil, "", err
	}
	cipher, err := vault.NewCipher(key)
	if err != nil {
		return nil, nil, nil, "", err
	}

	dbPath := filepath.Join(appData, core.DBFileName)
	store, err := storage.Open(dbPath, cipher)
	if err != nil {
		return nil, nil, nil, "", err
	}

	scanner, err := core.NewScanner(cfg, store)
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, "", err
	}
	return cfg, scanner, store, dbPath, nil
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", "127.0.0.1:8400", "listen address")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	_, scanner, store, dbPath, err := bootstrap()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("keyvet agent listening", "addr", *addr, "db", dbPath)
	if err := server.New(scanner, store, dbPath).ListenAndServe(ctx, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func runScan(args []string) int {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "print the summary as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	_, scanner, store, _, err := bootstrap()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := scanner.RunFullScan(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	if *jsonOut {
		_ = json.NewEncoder(os.Stdout).Encode(summary)
		return 0
	}

	ff, err := store.ListAll(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	printSummary(os.Stdout, summary, ff)
	return 0
}

func runFindings(args []string) int {
	fs := flag.NewFlagSet("findings", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "print findings as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	_, _, store, _, err := bootstrap()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer store.Close()

	ff, err := store.ListAll(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	if *jsonOut {
		_ = json.NewEncoder(os.Stdout).Encode(ff)
		return 0
	}
	printFindings(os.Stdout, ff)
	return 0
}
