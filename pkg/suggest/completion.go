package suggest

import (
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/bastiangx/pantry/internal/utils"
	"github.com/bastiangx/pantry/pkg/trie"
	"github.com/charmbracelet/log"
)

// Suggestion is one completion. Rank is the 1-based position in the result;
// Recipes is how many corpus rows contain the ingredient.
type Suggestion struct {
	Word    string
	Rank    uint16
	Recipes int
}

// Options bounds live queries.
type Options struct {
	DefaultLimit int
	MaxLimit     int
	MinPrefix    int
	MaxPrefix    int
	EnableFilter bool
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions() Options {
	return Options{
		DefaultLimit: trie.DefaultLimit,
		MaxLimit:     64,
		MinPrefix:    2,
		MaxPrefix:    60,
		EnableFilter: true,
	}
}

// Recorder receives per-query measurements.
type Recorder interface {
	ObserveQuery(kind, outcome string, elapsed time.Duration)
	ObserveSuggestions(n int)
}

// Completer answers queries against the current index. The index itself is
// immutable; Swap replaces it wholesale, so readers never need a lock.
type Completer struct {
	index    atomic.Pointer[trie.Index]
	opts     Options
	recorder Recorder
	queries  atomic.Int64
}

// NewCompleter returns a completer over idx. A nil idx is treated as empty.
func NewCompleter(idx *trie.Index, opts Options) *Completer {
	if opts.DefaultLimit < 1 {
		opts.DefaultLimit = trie.DefaultLimit
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = opts.DefaultLimit
	}
	c := &Completer{opts: opts}
	c.Swap(idx)
	return c
}

// SetRecorder registers r for query measurements.
func (c *Completer) SetRecorder(r Recorder) {
	c.recorder = r
}

// Swap installs a new index.
func (c *Completer) Swap(idx *trie.Index) {
	if idx == nil {
		idx = trie.Empty()
	}
	c.index.Store(idx)
}

// Index returns the index currently served.
func (c *Completer) Index() *trie.Index {
	return c.index.Load()
}

// Options returns the query bounds in effect.
func (c *Completer) Options() Options {
	return c.opts
}

// Accepts reports whether prefix is within the configured bounds and passes
// the input filter.
func (c *Completer) Accepts(prefix string) bool {
	n := utf8.RuneCountInString(prefix)
	if n < c.opts.MinPrefix || (c.opts.MaxPrefix > 0 && n > c.opts.MaxPrefix) {
		return false
	}
	if c.opts.EnableFilter && !utils.IsValidInput(prefix) {
		return false
	}
	return true
}

// Complete returns up to limit completions of prefix. Prefixes outside the
// configured bounds get an empty result, as do unknown prefixes.
func (c *Completer) Complete(prefix string, limit int) []Suggestion {
	start := time.Now()
	c.queries.Add(1)

	if !c.Accepts(prefix) {
		log.Debugf("Prefix '%s' rejected", prefix)
		c.observe("suggest", "rejected", start, 0)
		return []Suggestion{}
	}
	if limit < 1 {
		limit = c.opts.DefaultLimit
	}
	if limit > c.opts.MaxLimit {
		limit = c.opts.MaxLimit
	}

	idx := c.index.Load()
	words := idx.Suggest(prefix, limit)
	suggestions := make([]Suggestion, len(words))
	for i, w := range words {
		suggestions[i] = Suggestion{
			Word:    w,
			Rank:    uint16(i + 1),
			Recipes: len(idx.IDs(w)),
		}
	}

	outcome := "hit"
	if len(suggestions) == 0 {
		outcome = "miss"
	}
	c.observe("suggest", outcome, start, len(suggestions))
	return suggestions
}

// Validate reports whether token is a complete ingredient and returns its ids.
func (c *Completer) Validate(token string) (bool, []int64) {
	start := time.Now()
	c.queries.Add(1)

	ids := c.index.Load().IDs(token)
	outcome := "hit"
	if ids == nil {
		outcome = "miss"
	}
	c.observe("validate", outcome, start, -1)
	return ids != nil, ids
}

func (c *Completer) observe(kind, outcome string, start time.Time, n int) {
	if c.recorder == nil {
		return
	}
	c.recorder.ObserveQuery(kind, outcome, time.Since(start))
	if n >= 0 {
		c.recorder.ObserveSuggestions(n)
	}
}

// Stats returns statistics about the loaded index
func (c *Completer) Stats() map[string]int {
	return map[string]int{
		"tokens":       c.index.Load().Len(),
		"queries":      int(c.queries.Load()),
		"defaultLimit": c.opts.DefaultLimit,
		"maxLimit":     c.opts.MaxLimit,
		"minPrefix":    c.opts.MinPrefix,
	}
}
