// Copyright 2025 The Pantry Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the pantry ingredient completion server and CLI.

Pantry builds a prefix index over the ingredient lists of a recipe corpus and
answers "which ingredients start with this prefix" and "is this an
ingredient" queries. The index is persisted next to the user's cache and is
reused for as long as it is newer than the corpus.

# Usage

Start the IPC server with default settings:

	pantry

Use a specific corpus and rebuild the index unconditionally:

	pantry -corpus data/recipes_search.csv -rebuild

Run in CLI mode for interactive browsing:

	pantry -c -limit 10

Serve HTTP next to the IPC server, with Prometheus metrics on /metrics:

	pantry -http :8080

# Configuration

Runtime configuration is read from pantry.toml in the config dir (created with
defaults on first run), or from the file given with -config. Flags override
the file:

	[index]
	corpus = "data/recipes_search.csv"
	separator = ";"
	policy = "mtime"

	[suggest]
	default_limit = 5
	min_prefix = 2

# IPC Protocol

The server reads msgpack requests on stdin and writes msgpack responses on
stdout. See package server for the message shapes:

	{"id": "req1", "p": "be", "l": 5}
	{"id": "req1", "s": [{"w": "beef", "r": 1, "n": 2}], "c": 1, "t": 14}

Logs always go to stderr.
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bastiangx/pantry/internal/cli"
	"github.com/bastiangx/pantry/internal/logger"
	"github.com/bastiangx/pantry/internal/utils"
	"github.com/bastiangx/pantry/pkg/config"
	"github.com/bastiangx/pantry/pkg/corpus"
	"github.com/bastiangx/pantry/pkg/index"
	"github.com/bastiangx/pantry/pkg/metrics"
	"github.com/bastiangx/pantry/pkg/server"
	"github.com/bastiangx/pantry/pkg/suggest"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

const (
	Version = "0.3.0"
	AppName = "pantry"
	gh      = "https://github.com/bastiangx/pantry"
)

// sigHandler cancels ctx on SIGINT/SIGTERM, gives the HTTP server a moment
// to drain and exits.
func sigHandler(cancel context.CancelFunc, httpSrv *server.HTTPServer) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		cancel()
		if httpSrv != nil {
			ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
			httpSrv.Shutdown(ctx)
			done()
		}
		os.Exit(0)
	}()
}

func showVersion() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: false,
		Prefix:          "",
	})

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	logger.SetStyles(styles)

	logger.Print("")
	logger.Print("[ Pantry ] ingredient completion from your recipes")
	logger.Print("", "version", Version)
	logger.Print("")
	logger.Print("use -h or --help to see available options")
	logger.Print("Github Repo", "gh", gh)
}

// main only manages the flow; the packages implement the logic.
func main() {
	configFile := flag.String("config", "", "Path to a custom config file (TOML or YAML)")
	corpusFlag := flag.String("corpus", "", "Recipe corpus CSV (overrides config)")
	indexFlag := flag.String("index", "", "Persisted index file, .bin or .json (overrides config)")
	policyFlag := flag.String("policy", "", "Freshness policy: mtime or digest (overrides config)")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	cliMode := flag.Bool("c", false, "Run CLI -- useful for browsing the index")
	httpAddr := flag.String("http", "", "Also serve HTTP on this address, e.g. :8080")
	rebuild := flag.Bool("rebuild", false, "Rebuild the index from the corpus even if it is fresh")
	limit := flag.Int("limit", 0, "Number of suggestions to return in CLI mode (default from config)")
	versionFlag := flag.Bool("version", false, "Show current version")
	flag.Parse()

	if *versionFlag {
		showVersion()
		os.Exit(0)
	}

	logger.Setup("warn", *debugMode)

	pathResolver, err := utils.NewPathResolver()
	if err != nil {
		log.Fatalf("Failed to initialize path resolver: %v", err)
	}

	defaultConfigPath, err := pathResolver.GetConfigPath(AppName + ".toml")
	if err != nil {
		log.Warnf("Failed to determine config path: %v", err)
	}
	cfg, activeConfig, err := config.LoadConfigWithPriority(*configFile, defaultConfigPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Setup(cfg.Log.Level, *debugMode)
	if activeConfig != "" {
		log.Debugf("Using config file: %s", config.GetActiveConfigPath(activeConfig))
	}

	if *corpusFlag != "" {
		cfg.Index.Corpus = *corpusFlag
	}
	if *indexFlag != "" {
		cfg.Index.Path = *indexFlag
	}
	if *policyFlag != "" {
		cfg.Index.Policy = *policyFlag
	}
	if *httpAddr != "" {
		cfg.Server.HTTPAddr = *httpAddr
	}
	cfg.Sanitize()

	corpusPath := pathResolver.GetCorpusPath(cfg.Index.Corpus)
	if corpusPath == "" && cfg.Index.Corpus != "" {
		log.Warnf("Corpus %s not found", cfg.Index.Corpus)
	}
	indexPath := pathResolver.GetIndexPath(cfg.Index.Path, config.DefaultIndexName)
	log.Debug("Resolved paths",
		"corpus", corpusPath, "index", indexPath, "policy", cfg.Index.Policy,
		"configDir", pathResolver.GetConfigDir(), "execDir", pathResolver.GetExecutableDir())

	m := metrics.New()
	gate := index.NewGate(index.Options{
		CorpusPath: corpusPath,
		IndexPath:  indexPath,
		Corpus: corpus.Options{
			IDColumn:   cfg.Index.IDColumn,
			TextColumn: cfg.Index.TextColumn,
			Separator:  cfg.SeparatorRune(),
			Comma:      cfg.CommaRune(),
		},
		Policy: index.ParsePolicy(cfg.Index.Policy),
	})
	gate.SetObserver(m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	open := gate.OpenOrBuild
	if *rebuild {
		open = gate.Rebuild
	}
	idx, err := open(ctx)
	var werr *index.WriteError
	switch {
	case errors.As(err, &werr):
		log.Warnf("Serving from memory: %v", werr)
	case err != nil:
		log.Fatalf("Failed to open index: %v", err)
	}

	completer := suggest.NewCompleter(idx, suggest.Options{
		DefaultLimit: cfg.Suggest.DefaultLimit,
		MaxLimit:     cfg.Suggest.MaxLimit,
		MinPrefix:    cfg.Suggest.MinPrefix,
		MaxPrefix:    cfg.Suggest.MaxPrefix,
		EnableFilter: cfg.Suggest.EnableFilter,
	})
	completer.SetRecorder(m)

	var httpSrv *server.HTTPServer
	if cfg.Server.HTTPAddr != "" {
		httpSrv = server.NewHTTPServer(cfg.Server.HTTPAddr, completer, gate, m)
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil {
				log.Errorf("HTTP server stopped: %v", err)
			}
		}()
	}
	sigHandler(cancel, httpSrv)

	if *cliMode {
		log.SetReportTimestamp(false)
		n := *limit
		if n < 1 {
			n = cfg.Suggest.DefaultLimit
		}
		if err := cli.NewInputHandler(completer, n).Start(); err != nil {
			log.Fatalf("CLI error: %v", err)
		}
		return
	}

	showStartupInfo(gate.LastReport(), indexPath)

	srv := server.NewServer(completer, gate, os.Stdin, os.Stdout)
	srv.SetMaxRequestSize(cfg.Server.MaxRequestSize)
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("IPC server failed: %v", err)
	}
}

// showStartupInfo displays some basic info about the index on stderr.
func showStartupInfo(rep index.Report, indexPath string) {
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)

	log.Infof("Version: %s", Version)
	log.Infof("Process ID: [ %d ]", os.Getpid())
	log.Infof("index: ( %s ) %s from %s", indexPath, rep.State, rep.Source)
	log.Infof("tokens: %s", utils.FormatWithCommas(rep.Tokens))
	if rep.Corpus.Skipped > 0 {
		log.Warnf("corpus rows skipped: %s", utils.FormatWithCommas(rep.Corpus.Skipped))
	}
	log.Info("status: ready")

	log.SetLevel(currentLevel)
}
