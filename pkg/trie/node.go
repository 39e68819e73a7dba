package trie

import (
	"sort"
	"strings"
)

// IDsKey is the reserved key holding a terminal node's identifier set in the
// persisted nested mapping. Edge labels are always a single rune, so it can
// never collide with a child key.
const IDsKey = "__ids__"

// maxDepth bounds how deep a decoder will follow a persisted node chain. The
// builder drops longer tokens so that every built index can be read back.
const maxDepth = 4096

type edge struct {
	label rune
	node  *Node
}

// Node is a single trie vertex. Edges are kept sorted by label, which fixes
// the sibling order used by every traversal.
type Node struct {
	edges []edge
	ids   []int64
}

// Terminal reports whether a token ends at this node.
func (n *Node) Terminal() bool {
	return len(n.ids) > 0
}

// IDs returns a copy of the identifiers attached to the node.
func (n *Node) IDs() []int64 {
	if len(n.ids) == 0 {
		return nil
	}
	out := make([]int64, len(n.ids))
	copy(out, n.ids)
	return out
}

// Children returns the number of outgoing edges.
func (n *Node) Children() int {
	return len(n.edges)
}

func (n *Node) search(r rune) int {
	return sort.Search(len(n.edges), func(i int) bool {
		return n.edges[i].label >= r
	})
}

func (n *Node) child(r rune) *Node {
	i := n.search(r)
	if i < len(n.edges) && n.edges[i].label == r {
		return n.edges[i].node
	}
	return nil
}

func (n *Node) ensureChild(r rune) *Node {
	i := n.search(r)
	if i < len(n.edges) && n.edges[i].label == r {
		return n.edges[i].node
	}
	c := &Node{}
	n.edges = append(n.edges, edge{})
	copy(n.edges[i+1:], n.edges[i:])
	n.edges[i] = edge{label: r, node: c}
	return c
}

// addID inserts id into the sorted identifier set. It reports whether the
// node became terminal because of this call.
func (n *Node) addID(id int64) bool {
	wasTerminal := n.Terminal()
	i := sort.Search(len(n.ids), func(i int) bool { return n.ids[i] >= id })
	if i < len(n.ids) && n.ids[i] == id {
		return false
	}
	n.ids = append(n.ids, 0)
	copy(n.ids[i+1:], n.ids[i:])
	n.ids[i] = id
	return !wasTerminal
}

// descend follows key from n and returns the node it ends on, or nil.
func (n *Node) descend(key string) *Node {
	node := n
	for _, r := range key {
		node = node.child(r)
		if node == nil {
			return nil
		}
	}
	return node
}

// NormalizeToken lower-cases and trims a token the way it is stored.
func NormalizeToken(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// NormalizePrefix lower-cases a live query prefix. Whitespace is kept as typed.
func NormalizePrefix(s string) string {
	return strings.ToLower(s)
}

// normalizeIDs sorts ids and collapses duplicates in place.
func normalizeIDs(ids []int64) []int64 {
	if len(ids) < 2 {
		return ids
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}
