package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"neuroplex/pkg/neuroplex"
)

type networkFlags struct {
	file    string
	seed    int64
	verbose bool
}

func bindNetworkFlags(fs *flag.FlagSet) *networkFlags {
	f := &networkFlags{}
	fs.StringVar(&f.file, "file", defaultNetworkFile, "network file")
	fs.Int64Var(&f.seed, "seed", 1, "random seed")
	fs.BoolVar(&f.verbose, "v", false, "debug logging")
	return f
}

func (f *networkFlags) options() neuroplex.Options {
	return neuroplex.Options{Seed: f.seed, Logger: newLogger(f.verbose)}
}

func (f *networkFlags) load() (*neuroplex.Network, error) {
	return neuroplex.Load(f.file, f.options())
}

type storeFlags struct {
	kind   string
	dbPath string
}

func bindStoreFlags(fs *flag.FlagSet) *storeFlags {
	f := &storeFlags{}
	fs.StringVar(&f.kind, "store", neuroplex.DefaultStoreKind(), "store backend: memory|sqlite")
	fs.StringVar(&f.dbPath, "db-path", "neuroplex.db", "sqlite database path")
	return f
}

func (f *storeFlags) open(ctx context.Context) (neuroplex.Store, error) {
	store, err := neuroplex.NewStore(f.kind, f.dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		_ = neuroplex.CloseStore(store)
		return nil, err
	}
	return store, nil
}

// parseAssignments reads name=value arguments.
func parseAssignments(args []string) (map[string]float64, error) {
	out := make(map[string]float64, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid assignment %q: want name=value", arg)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", name, err)
		}
		out[strings.TrimSpace(name)] = value
	}
	return out, nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
