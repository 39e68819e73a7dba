package trie

import (
	"unicode/utf8"

	"github.com/bastiangx/pantry/pkg/corpus"
	"github.com/charmbracelet/log"
)

// Builder accumulates (token, id) pairs into a trie. Insertion is a
// commutative fold: any order of the same pairs yields an equal Index.
type Builder struct {
	root    *Node
	count   int
	pairs   int
	skipped int
	frozen  bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{root: &Node{}}
}

// Insert normalizes token and attaches id to it. Empty tokens and tokens
// longer than maxDepth runes are dropped. It reports whether the token was new
// to the trie.
func (b *Builder) Insert(token string, id int64) bool {
	if b.frozen {
		log.Errorf("Insert on a frozen builder, token '%s' dropped", token)
		return false
	}
	token = NormalizeToken(token)
	if token == "" {
		b.skipped++
		return false
	}
	if n := utf8.RuneCountInString(token); n > maxDepth {
		log.Warnf("Token of %d characters dropped (limit %d), id %d", n, maxDepth, id)
		b.skipped++
		return false
	}
	b.pairs++

	node := b.root
	for _, r := range token {
		node = node.ensureChild(r)
	}
	if node.addID(id) {
		b.count++
		return true
	}
	return false
}

// Add inserts a corpus pair.
func (b *Builder) Add(p corpus.Pair) bool {
	return b.Insert(p.Token, p.ID)
}

// Index freezes the builder and returns the finished index. The builder
// rejects further inserts.
func (b *Builder) Index() *Index {
	b.frozen = true
	log.Debugf("Trie built: %d tokens from %d pairs (%d skipped)", b.count, b.pairs, b.skipped)
	return &Index{root: b.root, count: b.count}
}

// Build folds pairs into a new Index.
func Build(pairs []corpus.Pair) *Index {
	b := NewBuilder()
	for _, p := range pairs {
		b.Add(p)
	}
	return b.Index()
}
