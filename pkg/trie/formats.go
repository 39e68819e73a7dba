package trie

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// Format identifies a persisted index encoding.
type Format int

const (
	FormatUnknown Format = iota
	FormatMsgpack        // msgpack envelope with fingerprint
	FormatJSON           // bare nested mapping, readable by older tooling
)

// FormatVersion is written into every msgpack envelope.
const FormatVersion = 1

var (
	// ErrFormat is returned when persisted bytes cannot be decoded into a
	// well-formed trie.
	ErrFormat = errors.New("trie: malformed index data")
	// ErrInvalidNode marks a non-root node that has neither children nor ids.
	ErrInvalidNode = errors.New("trie: node without children or ids")
)

// FormatInfo describes a supported encoding.
type FormatInfo struct {
	Format      Format
	Description string
	Extensions  []string
}

var supportedFormats = map[Format]FormatInfo{
	FormatMsgpack: {
		Format:      FormatMsgpack,
		Description: "MessagePack Trie Index",
		Extensions:  []string{".bin", ".msgpack", ".mpk"},
	},
	FormatJSON: {
		Format:      FormatJSON,
		Description: "JSON Trie Index",
		Extensions:  []string{".json"},
	},
}

func (f Format) String() string {
	if info, ok := supportedFormats[f]; ok {
		return info.Description
	}
	return "unknown"
}

// DetectFormat picks the encoding for path from its extension. Anything not
// recognised is treated as msgpack.
func DetectFormat(path string) Format {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range []Format{FormatJSON, FormatMsgpack} {
		for _, e := range supportedFormats[f].Extensions {
			if ext == e {
				return f
			}
		}
	}
	return FormatMsgpack
}

// GetFormatInfo returns information about a specific format.
func GetFormatInfo(format Format) (FormatInfo, bool) {
	info, ok := supportedFormats[format]
	return info, ok
}

// Encode writes x to w in the given format.
func (x *Index) Encode(w io.Writer, format Format) error {
	switch format {
	case FormatMsgpack:
		return encodeMsgpack(w, x)
	case FormatJSON:
		return encodeJSON(w, x)
	}
	return fmt.Errorf("unsupported format: %v", format)
}

// Decode reads an index from r. Decoding validates the structure: every
// non-root node must carry children or ids, and edge labels must be single
// runes.
func Decode(r io.Reader, format Format) (*Index, error) {
	switch format {
	case FormatMsgpack:
		return decodeMsgpack(r)
	case FormatJSON:
		return decodeJSON(r)
	}
	return nil, fmt.Errorf("unsupported format: %v", format)
}

// nodeBuilder tracks the token count while a decoder assembles nodes.
type nodeBuilder struct {
	count int
}

// finish sorts and validates a freshly decoded node.
func (nb *nodeBuilder) finish(n *Node, depth int) error {
	n.ids = normalizeIDs(n.ids)
	if len(n.edges) > 1 {
		sortEdges(n.edges)
		for i := 1; i < len(n.edges); i++ {
			if n.edges[i].label == n.edges[i-1].label {
				return fmt.Errorf("%w: duplicate edge %q", ErrFormat, n.edges[i].label)
			}
		}
	}
	if depth > 0 && len(n.edges) == 0 && len(n.ids) == 0 {
		return fmt.Errorf("%w: %w at depth %d", ErrFormat, ErrInvalidNode, depth)
	}
	if n.Terminal() {
		nb.count++
	}
	return nil
}

func edgeLabel(key string) (rune, error) {
	r, size := utf8.DecodeRuneInString(key)
	// U+FFFD itself is a valid label; only a lone invalid byte is not.
	if size == 0 || size != len(key) || (r == utf8.RuneError && size == 1) {
		return 0, fmt.Errorf("%w: edge key %q is not a single character", ErrFormat, key)
	}
	return r, nil
}

func sortEdges(edges []edge) {
	sort.Slice(edges, func(i, j int) bool { return edges[i].label < edges[j].label })
}
