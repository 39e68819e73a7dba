package trie

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// envelope is the msgpack file layout:
//
//	{"v": 1, "fp": {...}, "n": 1234, "root": {"a": {...}, "__ids__": [...]}}
type envelope struct {
	Version     int         `msgpack:"v"`
	Fingerprint Fingerprint `msgpack:"fp"`
	Count       int         `msgpack:"n"`
	Root        *Node       `msgpack:"root"`
}

var (
	_ msgpack.CustomEncoder = (*Node)(nil)
	_ msgpack.CustomDecoder = (*Node)(nil)
)

func encodeMsgpack(w io.Writer, x *Index) error {
	bw := bufio.NewWriter(w)
	enc := msgpack.NewEncoder(bw)
	env := envelope{
		Version:     FormatVersion,
		Fingerprint: x.fingerprint,
		Count:       x.count,
		Root:        x.root,
	}
	if err := enc.Encode(&env); err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	return bw.Flush()
}

func decodeMsgpack(r io.Reader) (*Index, error) {
	dec := msgpack.NewDecoder(bufio.NewReader(r))
	var env envelope
	if err := dec.Decode(&env); err != nil {
		if errors.Is(err, ErrFormat) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if env.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrFormat, env.Version)
	}
	if env.Root == nil {
		return nil, fmt.Errorf("%w: missing root", ErrFormat)
	}

	nb := &nodeBuilder{}
	if err := nb.recount(env.Root); err != nil {
		return nil, err
	}
	if nb.count != env.Count {
		return nil, fmt.Errorf("%w: header says %d tokens, found %d", ErrFormat, env.Count, nb.count)
	}
	return &Index{root: env.Root, count: nb.count, fingerprint: env.Fingerprint}, nil
}

// EncodeMsgpack writes the node as a map of single-rune keys to child nodes
// plus IDsKey when terminal.
func (n *Node) EncodeMsgpack(enc *msgpack.Encoder) error {
	size := len(n.edges)
	if n.Terminal() {
		size++
	}
	if err := enc.EncodeMapLen(size); err != nil {
		return err
	}
	if n.Terminal() {
		if err := enc.EncodeString(IDsKey); err != nil {
			return err
		}
		if err := enc.EncodeArrayLen(len(n.ids)); err != nil {
			return err
		}
		for _, id := range n.ids {
			if err := enc.EncodeInt(id); err != nil {
				return err
			}
		}
	}
	for _, e := range n.edges {
		if err := enc.EncodeString(string(e.label)); err != nil {
			return err
		}
		if err := e.node.EncodeMsgpack(enc); err != nil {
			return err
		}
	}
	return nil
}

// DecodeMsgpack reads a node written by EncodeMsgpack. It is only invoked for
// the root; descendants go through decodeNode so depth is tracked.
func (n *Node) DecodeMsgpack(dec *msgpack.Decoder) error {
	return decodeNode(dec, n, 0)
}

func decodeNode(dec *msgpack.Decoder, n *Node, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: nesting deeper than %d", ErrFormat, maxDepth)
	}
	size, err := dec.DecodeMapLen()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if size < 0 {
		return fmt.Errorf("%w: nil node at depth %d", ErrFormat, depth)
	}

	for i := 0; i < size; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFormat, err)
		}
		if key == IDsKey {
			count, err := dec.DecodeArrayLen()
			if err != nil {
				return fmt.Errorf("%w: %w", ErrFormat, err)
			}
			for j := 0; j < count; j++ {
				id, err := dec.DecodeInt64()
				if err != nil {
					return fmt.Errorf("%w: %w", ErrFormat, err)
				}
				n.ids = append(n.ids, id)
			}
			continue
		}

		label, err := edgeLabel(key)
		if err != nil {
			return err
		}
		child := &Node{}
		if err := decodeNode(dec, child, depth+1); err != nil {
			return err
		}
		n.edges = append(n.edges, edge{label: label, node: child})
	}
	return nil
}

// recount validates a decoded tree and counts its terminals.
func (nb *nodeBuilder) recount(root *Node) error {
	type item struct {
		node  *Node
		depth int
	}
	stack := []item{{root, 0}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if err := nb.finish(it.node, it.depth); err != nil {
			return err
		}
		for _, e := range it.node.edges {
			stack = append(stack, item{e.node, it.depth + 1})
		}
	}
	return nil
}
