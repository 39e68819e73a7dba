package trie

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// The JSON form is the bare nested mapping with no envelope, so it carries no
// fingerprint:
//
//	{"b":{"e":{"e":{"f":{"__ids__":[1,2]}}}}}
func encodeJSON(w io.Writer, x *Index) error {
	bw := bufio.NewWriter(w)
	if err := writeJSONNode(bw, x.root); err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	return bw.Flush()
}

func writeJSONNode(w *bufio.Writer, n *Node) error {
	w.WriteByte('{')
	first := true
	if n.Terminal() {
		w.WriteString(strconv.Quote(IDsKey))
		w.WriteString(":[")
		for i, id := range n.ids {
			if i > 0 {
				w.WriteByte(',')
			}
			w.WriteString(strconv.FormatInt(id, 10))
		}
		w.WriteByte(']')
		first = false
	}
	for _, e := range n.edges {
		if !first {
			w.WriteByte(',')
		}
		first = false
		key, err := json.Marshal(string(e.label))
		if err != nil {
			return err
		}
		w.Write(key)
		w.WriteByte(':')
		if err := writeJSONNode(w, e.node); err != nil {
			return err
		}
	}
	return w.WriteByte('}')
}

func decodeJSON(r io.Reader) (*Index, error) {
	dec := json.NewDecoder(bufio.NewReader(r))
	dec.UseNumber()

	root := &Node{}
	if err := readJSONNode(dec, root, 0); err != nil {
		return nil, err
	}
	if tok, err := dec.Token(); err != io.EOF {
		if err != nil {
			return nil, fmt.Errorf("%w: trailing data: %w", ErrFormat, err)
		}
		return nil, fmt.Errorf("%w: trailing data %v", ErrFormat, tok)
	}
	nb := &nodeBuilder{}
	if err := nb.recount(root); err != nil {
		return nil, err
	}
	return &Index{root: root, count: nb.count}, nil
}

func readJSONNode(dec *json.Decoder, n *Node, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: nesting deeper than %d", ErrFormat, maxDepth)
	}
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFormat, err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: unexpected token %v", ErrFormat, tok)
		}

		if key == IDsKey {
			if err := readJSONIDs(dec, n); err != nil {
				return err
			}
			continue
		}
		label, err := edgeLabel(key)
		if err != nil {
			return err
		}
		child := &Node{}
		if err := readJSONNode(dec, child, depth+1); err != nil {
			return err
		}
		n.edges = append(n.edges, edge{label: label, node: child})
	}
	return expectDelim(dec, '}')
}

func readJSONIDs(dec *json.Decoder, n *Node) error {
	if err := expectDelim(dec, '['); err != nil {
		return err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFormat, err)
		}
		num, ok := tok.(json.Number)
		if !ok {
			return fmt.Errorf("%w: id %v is not a number", ErrFormat, tok)
		}
		id, err := num.Int64()
		if err != nil {
			return fmt.Errorf("%w: id %s: %w", ErrFormat, num, err)
		}
		n.ids = append(n.ids, id)
	}
	return expectDelim(dec, ']')
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected %q, got %v", ErrFormat, want, tok)
	}
	return nil
}
