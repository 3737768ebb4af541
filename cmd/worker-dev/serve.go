package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	worker "github.com/cryguy/worker-go"
	"github.com/cryguy/worker-go/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveOpts struct {
	addr     string
	pool     int
	colo     string
	debug    bool
	vars     []string
	secrets  []string
	kv       []string
	kvPath   string
	d1       []string
	d1Dir    string
	queues   []string
	scripts  []string
	compress bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the demo handler",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveOpts.addr, "addr", ":8787", "listen address")
	f.IntVar(&serveOpts.pool, "pool", 4, "number of pooled hosts")
	f.StringVar(&serveOpts.colo, "colo", "DEV", "colo reported in request cf")
	f.BoolVar(&serveOpts.debug, "debug", false, "development logging")
	f.StringArrayVar(&serveOpts.vars, "var", nil, "plain text binding NAME=VALUE")
	f.StringArrayVar(&serveOpts.secrets, "secret", nil, "secret binding NAME=VALUE")
	f.StringArrayVar(&serveOpts.kv, "kv", nil, "KV namespace binding NAME")
	f.StringVar(&serveOpts.kvPath, "kv-path", "", "SQLite file for KV data, in-memory when empty")
	f.StringArrayVar(&serveOpts.d1, "d1", nil, "D1 binding NAME=DATABASE_ID")
	f.StringVar(&serveOpts.d1Dir, "d1-dir", "", "directory for D1 databases, in-memory when empty")
	f.StringArrayVar(&serveOpts.queues, "queue", nil, "in-memory queue binding NAME")
	f.StringArrayVar(&serveOpts.scripts, "script", nil, "script binding NAME=FILE (.js or .ts)")
	f.BoolVar(&serveOpts.compress, "compress", true, "compress responses")
}

func runServe(cmd *cobra.Command, _ []string) error {
	log, err := newLogger(serveOpts.debug)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	worker.SetLogger(log)

	bindings, cleanup, err := buildBindings()
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := worker.DefaultHostConfig()
	cfg.PoolSize = serveOpts.pool
	cfg.Colo = serveOpts.colo
	cfg.CompressResponses = serveOpts.compress

	pool, err := worker.NewPool(cfg, bindings)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return worker.ListenAndServe(ctx, serveOpts.addr, worker.NewHandler(pool, demoHandler))
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func buildBindings() (worker.Bindings, func(), error) {
	b := worker.Bindings{
		Vars:      map[string]string{},
		Secrets:   map[string]string{},
		D1DataDir: serveOpts.d1Dir,
	}
	cleanup := func() {}
	for _, kv := range serveOpts.vars {
		name, val, err := splitPair(kv, "--var")
		if err != nil {
			return b, cleanup, err
		}
		b.Vars[name] = val
	}
	for _, kv := range serveOpts.secrets {
		name, val, err := splitPair(kv, "--secret")
		if err != nil {
			return b, cleanup, err
		}
		b.Secrets[name] = val
	}
	if len(serveOpts.kv) > 0 {
		db, err := store.OpenKV(serveOpts.kvPath)
		if err != nil {
			return b, cleanup, err
		}
		cleanup = func() { _ = db.Close() }
		b.KV = map[string]worker.KVStore{}
		for _, name := range serveOpts.kv {
			b.KV[name] = db.Namespace(name)
		}
	}
	if len(serveOpts.d1) > 0 {
		b.D1 = map[string]string{}
		for _, kv := range serveOpts.d1 {
			name, id, err := splitPair(kv, "--d1")
			if err != nil {
				return b, cleanup, err
			}
			b.D1[name] = id
		}
	}
	if len(serveOpts.queues) > 0 {
		b.Queues = map[string]worker.QueueSender{}
		for _, name := range serveOpts.queues {
			b.Queues[name] = store.NewMemoryQueue(name)
		}
	}
	if len(serveOpts.scripts) > 0 {
		b.Scripts = map[string]string{}
		for _, kv := range serveOpts.scripts {
			name, path, err := splitPair(kv, "--script")
			if err != nil {
				return b, cleanup, err
			}
			src, err := os.ReadFile(path)
			if err != nil {
				return b, cleanup, fmt.Errorf("reading script binding %s: %w", name, err)
			}
			b.Scripts[name] = string(src)
		}
	}
	return b, cleanup, nil
}

func splitPair(s, flag string) (string, string, error) {
	name, val, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", "", fmt.Errorf("%s expects NAME=VALUE, got %q", flag, s)
	}
	return name, val, nil
}
