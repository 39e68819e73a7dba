/*
Package trie is the ingredient index engine: a character trie whose terminal
nodes carry the identifiers of the corpus rows that produced each token.

An Index is built once, either by folding corpus pairs through a Builder or by
decoding a persisted file, and is read-only afterwards. Every method on Index
is safe for concurrent use without locking.

	idx := trie.Build(pairs)
	idx.Suggest("be", 5)  // [beef beetroot ...]
	idx.IsMember("Beef")  // true

Traversal order is fixed: siblings are visited in ascending rune order and a
node is reported before its descendants, so Suggest returns the
lexicographically smallest completions first.
*/
package trie

import (
	"errors"
	"slices"
)

// DefaultLimit is the suggestion count used when the caller passes limit <= 0.
const DefaultLimit = 5

// ErrStopWalk may be returned by a Walk callback to end the walk early
// without an error.
var ErrStopWalk = errors.New("trie: stop walk")

// Fingerprint identifies the corpus an index was built from.
type Fingerprint struct {
	Source  string `msgpack:"src"`
	ModTime int64  `msgpack:"mtime"`
	Size    int64  `msgpack:"size"`
	Digest  string `msgpack:"digest,omitempty"`
	BuiltAt int64  `msgpack:"built"`
}

// IsZero reports whether no fingerprint was recorded.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// Index is an immutable token trie.
type Index struct {
	root        *Node
	count       int
	fingerprint Fingerprint
}

// Empty returns a valid index with no tokens.
func Empty() *Index {
	return &Index{root: &Node{}}
}

// WithFingerprint returns a copy of the index carrying fp. The node tree is
// shared, which is fine since neither copy mutates it.
func (x *Index) WithFingerprint(fp Fingerprint) *Index {
	return &Index{root: x.root, count: x.count, fingerprint: fp}
}

// Fingerprint returns the corpus fingerprint recorded at build time.
func (x *Index) Fingerprint() Fingerprint {
	return x.fingerprint
}

// Len returns the number of distinct tokens.
func (x *Index) Len() int {
	return x.count
}

// Root exposes the root node for read-only inspection.
func (x *Index) Root() *Node {
	return x.root
}

type frame struct {
	node *Node
	word string
}

// Suggest returns up to limit complete tokens starting with prefix.
// The prefix is lower-cased but not trimmed. An empty prefix, an empty index
// or an unknown prefix all yield an empty slice.
func (x *Index) Suggest(prefix string, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	results := []string{}
	if prefix == "" || x.root.Children() == 0 {
		return results
	}

	prefix = NormalizePrefix(prefix)
	start := x.root.descend(prefix)
	if start == nil {
		return results
	}

	stack := []frame{{node: start, word: prefix}}
	for len(stack) > 0 && len(results) < limit {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.node.Terminal() {
			results = append(results, top.word)
		}
		// pushed in reverse so the smallest label pops first
		for i := len(top.node.edges) - 1; i >= 0; i-- {
			e := top.node.edges[i]
			stack = append(stack, frame{node: e.node, word: top.word + string(e.label)})
		}
	}
	return results
}

// IsMember reports whether token, normalized like an inserted token, is a
// complete entry. Nodes that only sit on the path of a longer token are not
// members.
func (x *Index) IsMember(token string) bool {
	return x.lookup(token) != nil
}

// IDs returns the identifiers attached to token, or nil if it is not a member.
func (x *Index) IDs(token string) []int64 {
	node := x.lookup(token)
	if node == nil {
		return nil
	}
	return node.IDs()
}

func (x *Index) lookup(token string) *Node {
	if token == "" {
		return nil
	}
	token = NormalizeToken(token)
	if token == "" {
		return nil
	}
	node := x.root.descend(token)
	if node == nil || !node.Terminal() {
		return nil
	}
	return node
}

// Walk calls fn for every token in traversal order. Returning ErrStopWalk
// ends the walk and Walk returns nil; any other error is passed through.
// The ids slice is shared with the index and must not be modified.
func (x *Index) Walk(fn func(token string, ids []int64) error) error {
	stack := []frame{{node: x.root}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.node.Terminal() {
			if err := fn(top.word, top.node.ids); err != nil {
				if errors.Is(err, ErrStopWalk) {
					return nil
				}
				return err
			}
		}
		for i := len(top.node.edges) - 1; i >= 0; i-- {
			e := top.node.edges[i]
			stack = append(stack, frame{node: e.node, word: top.word + string(e.label)})
		}
	}
	return nil
}

// Equal reports whether both indexes hold the same tokens with the same
// identifier sets. Fingerprints are ignored.
func (x *Index) Equal(o *Index) bool {
	if x == nil || o == nil {
		return x == o
	}
	if x.count != o.count {
		return false
	}
	type pair struct{ a, b *Node }
	stack := []pair{{x.root, o.root}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !slices.Equal(p.a.ids, p.b.ids) || len(p.a.edges) != len(p.b.edges) {
			return false
		}
		for i := range p.a.edges {
			if p.a.edges[i].label != p.b.edges[i].label {
				return false
			}
			stack = append(stack, pair{p.a.edges[i].node, p.b.edges[i].node})
		}
	}
	return true
}
