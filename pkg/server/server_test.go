package server

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bastiangx/pantry/pkg/corpus"
	"github.com/bastiangx/pantry/pkg/index"
	"github.com/bastiangx/pantry/pkg/suggest"
	"github.com/bastiangx/pantry/pkg/trie"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func init() {
	log.SetLevel(log.ErrorLevel)
}

func scenarioIndex() *trie.Index {
	return trie.Build([]corpus.Pair{
		{Token: "beef", ID: 1},
		{Token: "onion", ID: 1},
		{Token: "BEEF", ID: 2},
		{Token: "Garlic", ID: 2},
		{Token: "bean", ID: 3},
	})
}

// runIPC feeds reqs to a server and returns the raw responses, ready message
// excluded.
func runIPC(t *testing.T, s func(in, out *bytes.Buffer) *Server, reqs ...any) *msgpack.Decoder {
	t.Helper()
	in, out := &bytes.Buffer{}, &bytes.Buffer{}
	enc := msgpack.NewEncoder(in)
	for _, r := range reqs {
		require.NoError(t, enc.Encode(r))
	}
	require.NoError(t, s(in, out).Start(context.Background()))

	dec := msgpack.NewDecoder(out)
	var ready map[string]string
	require.NoError(t, dec.Decode(&ready))
	assert.Equal(t, "ready", ready["status"])
	return dec
}

func TestIPCComplete(t *testing.T) {
	completer := suggest.NewCompleter(scenarioIndex(), suggest.DefaultOptions())
	dec := runIPC(t, func(in, out *bytes.Buffer) *Server {
		return NewServer(completer, nil, in, out)
	},
		Request{ID: "req_001", Prefix: "be", Limit: 5},
		Request{ID: "req_002", Action: ActionComplete, Prefix: "BE", Limit: 1},
		Request{ID: "req_003", Prefix: "zz"},
	)

	var resp CompletionResponse
	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, "req_001", resp.ID)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, []CompletionSuggestion{
		{Word: "bean", Rank: 1, Recipes: 1},
		{Word: "beef", Rank: 2, Recipes: 2},
	}, resp.Suggestions)

	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, "req_002", resp.ID)
	assert.Equal(t, []CompletionSuggestion{{Word: "bean", Rank: 1, Recipes: 1}}, resp.Suggestions)

	resp = CompletionResponse{}
	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, "req_003", resp.ID)
	assert.Equal(t, 0, resp.Count)
	assert.Empty(t, resp.Suggestions)
}

func TestIPCValidateAndStats(t *testing.T) {
	completer := suggest.NewCompleter(scenarioIndex(), suggest.DefaultOptions())
	dec := runIPC(t, func(in, out *bytes.Buffer) *Server {
		return NewServer(completer, nil, in, out)
	},
		Request{ID: "v1", Action: ActionValidate, Token: "Beef"},
		Request{ID: "v2", Action: ActionValidate, Token: "bee"},
		Request{ID: "s1", Action: ActionStats},
	)

	var v ValidateResponse
	require.NoError(t, dec.Decode(&v))
	assert.Equal(t, ValidateResponse{ID: "v1", Token: "Beef", Valid: true, IDs: []int64{1, 2}}, v)

	v = ValidateResponse{}
	require.NoError(t, dec.Decode(&v))
	assert.Equal(t, "v2", v.ID)
	assert.False(t, v.Valid)
	assert.Empty(t, v.IDs)

	var st StatsResponse
	require.NoError(t, dec.Decode(&st))
	assert.Equal(t, "s1", st.ID)
	assert.Equal(t, "ok", st.Status)
	assert.Equal(t, 4, st.Tokens)
	assert.Equal(t, 2, st.Queries)
}

func TestIPCErrors(t *testing.T) {
	completer := suggest.NewCompleter(scenarioIndex(), suggest.DefaultOptions())
	dec := runIPC(t, func(in, out *bytes.Buffer) *Server {
		s := NewServer(completer, nil, in, out)
		s.SetMaxRequestSize(64)
		return s
	},
		Request{ID: "e1"},
		Request{ID: "e2", Prefix: strings.Repeat("a", 61)},
		Request{ID: "e3", Action: "explode"},
		Request{ID: "e4", Action: ActionReload},
		Request{ID: "e5", Prefix: strings.Repeat("b", 65)},
	)

	expected := []CompletionError{
		{ID: "e1", Error: "missing prefix", Code: 400},
		{ID: "e2", Error: "prefix exceeds maximum length of 60 characters", Code: 400},
		{ID: "e3", Error: "unknown action: explode", Code: 400},
		{ID: "e4", Error: "reload not available", Code: 501},
		{ID: "e5", Error: "request exceeds 64 bytes", Code: 413},
	}
	for _, want := range expected {
		var got CompletionError
		require.NoError(t, dec.Decode(&got))
		assert.Equal(t, want, got)
	}
}

func TestIPCMalformedInput(t *testing.T) {
	completer := suggest.NewCompleter(scenarioIndex(), suggest.DefaultOptions())
	in := bytes.NewBufferString("\xc1")
	out := &bytes.Buffer{}
	err := NewServer(completer, nil, in, out).Start(context.Background())
	require.Error(t, err)

	dec := msgpack.NewDecoder(out)
	var ready map[string]string
	require.NoError(t, dec.Decode(&ready))
	var e CompletionError
	require.NoError(t, dec.Decode(&e))
	assert.Equal(t, 400, e.Code)
}

func TestIPCReload(t *testing.T) {
	dir := t.TempDir()
	corpusPath := filepath.Join(dir, "recipes.csv")
	indexPath := filepath.Join(dir, "ingredients_trie.bin")
	writeCorpus := func(data string, mtime time.Time) {
		require.NoError(t, os.WriteFile(corpusPath, []byte(data), 0644))
		require.NoError(t, os.Chtimes(corpusPath, mtime, mtime))
	}
	writeCorpus("id,ingredients_serialized\n1,beef;onion\n", time.Now().Add(-time.Hour))

	gate := index.NewGate(index.Options{CorpusPath: corpusPath, IndexPath: indexPath})
	idx, err := gate.OpenOrBuild(context.Background())
	require.NoError(t, err)
	completer := suggest.NewCompleter(idx, suggest.DefaultOptions())

	writeCorpus("id,ingredients_serialized\n1,beef;onion\n2,saffron\n", time.Now().Add(time.Hour))

	dec := runIPC(t, func(in, out *bytes.Buffer) *Server {
		return NewServer(completer, gate, in, out)
	},
		Request{ID: "r1", Action: ActionReload},
		Request{ID: "q1", Prefix: "sa"},
	)

	var st StatsResponse
	require.NoError(t, dec.Decode(&st))
	assert.Equal(t, "r1", st.ID)
	assert.Equal(t, "ok", st.Status)
	assert.Equal(t, 3, st.Tokens)
	assert.Equal(t, "stale", st.State)
	assert.Equal(t, "corpus", st.Source)

	var resp CompletionResponse
	require.NoError(t, dec.Decode(&resp))
	require.Len(t, resp.Suggestions, 1)
	assert.Equal(t, "saffron", resp.Suggestions[0].Word)
}
