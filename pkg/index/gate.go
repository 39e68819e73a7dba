/*
Package index decides whether the persisted ingredient index can be reused or
has to be rebuilt from the corpus, and performs the build, write or load.

	gate := index.NewGate(index.Options{
		CorpusPath: "data/recipes_search.csv",
		IndexPath:  "cache/ingredients_trie.bin",
	})
	idx, err := gate.OpenOrBuild(ctx)

OpenOrBuild never fails because of bad source data or a corrupt index file:
those are logged and answered with a rebuild or an empty index. The only error
it returns for a usable index is a *WriteError, when a fresh build could not
be persisted; the index is returned alongside it.
*/
package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bastiangx/pantry/internal/logger"
	"github.com/bastiangx/pantry/pkg/corpus"
	"github.com/bastiangx/pantry/pkg/trie"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

// Source says where the index of the last open came from.
type Source string

const (
	SourceCorpus    Source = "corpus"
	SourcePersisted Source = "persisted"
	SourceEmpty     Source = "empty"
)

// Options configures a Gate.
type Options struct {
	CorpusPath string
	IndexPath  string
	Corpus     corpus.Options
	Policy     Policy
}

// Report describes the outcome of the last open.
type Report struct {
	State   State
	Source  Source
	Tokens  int
	Corpus  corpus.Stats
	Elapsed time.Duration
	Err     error
}

// Observer receives open outcomes, e.g. for metrics.
type Observer interface {
	IndexOpened(r Report)
}

// Gate wraps index build and load with the freshness policy.
type Gate struct {
	opts     Options
	reader   *corpus.Reader
	group    singleflight.Group
	logger   *log.Logger
	observer Observer
	openFn   func(ctx context.Context, force bool) (Report, *trie.Index, error)

	mu   sync.Mutex
	last Report
}

// NewGate returns a gate for opts.
func NewGate(opts Options) *Gate {
	if opts.Policy == "" {
		opts.Policy = PolicyMtime
	}
	g := &Gate{
		opts:   opts,
		reader: corpus.NewReader(opts.Corpus),
		logger: logger.New("index"),
	}
	g.openFn = g.open
	return g
}

// SetObserver registers o to be told about every open.
func (g *Gate) SetObserver(o Observer) {
	g.observer = o
}

// Options returns the gate configuration.
func (g *Gate) Options() Options {
	return g.opts
}

// Status reports the current freshness by modification time without
// opening anything.
func (g *Gate) Status() State {
	return Compare(g.corpusPath(), g.opts.IndexPath)
}

// LastReport returns the report of the most recent open.
func (g *Gate) LastReport() Report {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

type result struct {
	idx *trie.Index
	err error
}

// OpenOrBuild returns the index, loading the persisted file when it is fresh
// and rebuilding from the corpus otherwise. Concurrent calls share one open,
// which runs under the context of the caller that started it. A caller whose
// shared open was cancelled by someone else's context retries with its own;
// only a caller's own cancellation is returned to it.
func (g *Gate) OpenOrBuild(ctx context.Context) (*trie.Index, error) {
	return g.do(ctx, false)
}

// Rebuild ignores the persisted file, builds from the corpus and writes the
// result.
func (g *Gate) Rebuild(ctx context.Context) (*trie.Index, error) {
	return g.do(ctx, true)
}

func (g *Gate) do(ctx context.Context, force bool) (*trie.Index, error) {
	key := "open"
	if force {
		key = "rebuild"
	}
	for {
		v, _, _ := g.group.Do(key, func() (any, error) {
			return g.run(ctx, force), nil
		})
		res := v.(result)
		if res.idx == nil && isCancellation(res.err) && ctx.Err() == nil {
			g.logger.Debug("Shared index open was cancelled by another caller, retrying", "key", key)
			continue
		}
		return res.idx, res.err
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (g *Gate) run(ctx context.Context, force bool) result {
	start := time.Now()
	rep, idx, err := g.openFn(ctx, force)
	rep.Elapsed = time.Since(start)
	rep.Err = err
	if idx != nil {
		rep.Tokens = idx.Len()
	}
	g.mu.Lock()
	g.last = rep
	g.mu.Unlock()
	if g.observer != nil {
		g.observer.IndexOpened(rep)
	}
	g.logger.Debug("Index open finished",
		"state", rep.State, "source", rep.Source, "tokens", rep.Tokens, "took", rep.Elapsed)
	return result{idx: idx, err: err}
}

func (g *Gate) corpusPath() string {
	if g.opts.CorpusPath == "" {
		return ""
	}
	if _, err := os.Stat(g.opts.CorpusPath); err != nil {
		return ""
	}
	return g.opts.CorpusPath
}

func (g *Gate) open(ctx context.Context, force bool) (Report, *trie.Index, error) {
	corpusPath := g.corpusPath()
	if g.opts.CorpusPath != "" && corpusPath == "" {
		g.logger.Warnf("Corpus %s is not readable", g.opts.CorpusPath)
	}

	state := Compare(corpusPath, g.opts.IndexPath)
	if force && corpusPath != "" {
		state = StateStale
	}
	rep := Report{State: state}

	if state == StateFresh {
		idx, err := g.load(corpusPath)
		if err == nil {
			rep.Source = SourcePersisted
			return rep, idx, nil
		}
		if errors.Is(err, errDigestMismatch) {
			g.logger.Info("Corpus content changed, rebuilding", "index", g.opts.IndexPath)
		} else {
			g.logger.Warnf("Failed to load index %s, rebuilding: %v", g.opts.IndexPath, err)
		}
		rep.State = StateStale
	}

	if corpusPath == "" {
		if rep.State == StateMissing {
			g.logger.Warn("No corpus and no persisted index, starting empty")
		}
		rep.Source = SourceEmpty
		return rep, trie.Empty(), nil
	}

	g.logger.Infof("Building index from %s (%s)", corpusPath, rep.State)
	idx, stats, err := g.build(ctx, corpusPath)
	rep.Corpus = stats
	if err != nil {
		return rep, nil, err
	}
	rep.Source = SourceCorpus

	if g.opts.IndexPath == "" {
		return rep, idx, nil
	}
	if err := Save(idx, g.opts.IndexPath); err != nil {
		g.logger.Errorf("Failed to write index: %v", err)
		return rep, idx, &WriteError{Path: g.opts.IndexPath, Err: err}
	}
	g.logger.Debugf("Index written to %s", g.opts.IndexPath)
	return rep, idx, nil
}

var errDigestMismatch = errors.New("corpus digest differs from index")

func (g *Gate) load(corpusPath string) (*trie.Index, error) {
	idx, err := Load(g.opts.IndexPath)
	if err != nil {
		return nil, err
	}
	if g.opts.Policy != PolicyDigest || corpusPath == "" {
		return idx, nil
	}
	digest, err := Digest(corpusPath)
	if err != nil {
		g.logger.Warnf("Cannot hash corpus, trusting mtime: %v", err)
		return idx, nil
	}
	if idx.Fingerprint().Digest != digest {
		return nil, errDigestMismatch
	}
	return idx, nil
}

// build scans the corpus into a new index. Unusable corpora produce an empty
// index; only cancellation is returned as an error.
func (g *Gate) build(ctx context.Context, corpusPath string) (*trie.Index, corpus.Stats, error) {
	b := trie.NewBuilder()
	stats, err := g.reader.ScanFile(ctx, corpusPath, func(p corpus.Pair) error {
		b.Add(p)
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, stats, fmt.Errorf("index build cancelled: %w", ctxErr)
		}
		g.logger.Warnf("Corpus only partly usable: %v", err)
	}

	fp, err := StatFingerprint(corpusPath)
	if err != nil {
		g.logger.Warnf("Cannot fingerprint corpus: %v", err)
	}
	if g.opts.Policy == PolicyDigest {
		if fp.Digest, err = Digest(corpusPath); err != nil {
			g.logger.Warnf("Cannot hash corpus: %v", err)
		}
	}
	return b.Index().WithFingerprint(fp), stats, nil
}
