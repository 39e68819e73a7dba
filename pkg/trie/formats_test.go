package trie

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/bastiangx/pantry/pkg/corpus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestDetectFormat(t *testing.T) {
	testCases := []struct {
		path     string
		expected Format
	}{
		{"cache/ingredients_trie.bin", FormatMsgpack},
		{"idx.MSGPACK", FormatMsgpack},
		{"idx.mpk", FormatMsgpack},
		{"ingredients_trie.json", FormatJSON},
		{"ingredients_trie.JSON", FormatJSON},
		{"no_extension", FormatMsgpack},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, DetectFormat(tc.path), tc.path)
	}

	info, ok := GetFormatInfo(FormatJSON)
	require.True(t, ok)
	assert.Contains(t, info.Extensions, ".json")
	assert.Equal(t, "unknown", FormatUnknown.String())
}

func TestRoundTrip(t *testing.T) {
	fp := Fingerprint{Source: "recipes.csv", ModTime: 1700000000, Size: 42, Digest: "ab12", BuiltAt: 1700000001}
	indexes := map[string]*Index{
		"empty":    Empty(),
		"scenario": Build(scenarioPairs()).WithFingerprint(fp),
		"random":   Build(randomPairs(rand.New(rand.NewSource(5)), 2000)).WithFingerprint(fp),
	}

	for name, idx := range indexes {
		for _, format := range []Format{FormatMsgpack, FormatJSON} {
			t.Run(name+"/"+format.String(), func(t *testing.T) {
				var buf bytes.Buffer
				require.NoError(t, idx.Encode(&buf, format))

				got, err := Decode(&buf, format)
				require.NoError(t, err)
				assert.True(t, idx.Equal(got))
				assert.Equal(t, idx.Len(), got.Len())
				assert.Equal(t, idx.Suggest("b", 50), got.Suggest("b", 50))

				if format == FormatMsgpack {
					assert.Equal(t, idx.Fingerprint(), got.Fingerprint())
				} else {
					assert.True(t, got.Fingerprint().IsZero())
				}
			})
		}
	}
}

func TestJSONLayout(t *testing.T) {
	idx := Build(scenarioPairs())
	var buf bytes.Buffer
	require.NoError(t, idx.Encode(&buf, FormatJSON))
	assert.True(t, strings.HasPrefix(buf.String(), `{"b":{"e":{"e":{"f":{"__ids__":[1,2]}}}}`))
}

func TestDecodeJSONFromOtherWriters(t *testing.T) {
	// unsorted keys, unsorted and repeated ids, whitespace
	doc := `{
		"o": {"n": {"i": {"o": {"n": {"__ids__": [1]}}}}},
		"b": {"e": {"e": {"f": {"__ids__": [2, 1, 2]}}}},
		"g": {"a": {"r": {"l": {"i": {"c": {"__ids__": [2]}}}}}}
	}`
	got, err := Decode(strings.NewReader(doc), FormatJSON)
	require.NoError(t, err)
	assert.True(t, Build(scenarioPairs()).Equal(got))
	assert.Equal(t, []int64{1, 2}, got.IDs("beef"))
	assert.Empty(t, got.Suggest("", 5))
	assert.Equal(t, []string{"garlic"}, got.Suggest("g", 5))

	got, err = Decode(strings.NewReader(`{"a":{"__ids__":[1]}}`+"\n\n"), FormatJSON)
	require.NoError(t, err, "trailing whitespace is fine")
	assert.True(t, got.IsMember("a"))
}

func TestRoundTripReplacementCharacter(t *testing.T) {
	idx := Build([]corpus.Pair{
		{ID: 1, Token: "JALAPE\xf1O"},
		{ID: 2, Token: "pi\ufffdon"},
		{ID: 3, Token: "jalapeno"},
	})
	require.True(t, idx.IsMember("jalape\ufffdo"), "invalid bytes are stored as U+FFFD")

	for _, format := range []Format{FormatMsgpack, FormatJSON} {
		t.Run(format.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, idx.Encode(&buf, format))

			got, err := Decode(&buf, format)
			require.NoError(t, err)
			assert.True(t, idx.Equal(got))
			assert.True(t, got.IsMember("JALAPE\xf1O"))
			assert.Equal(t, []int64{2}, got.IDs("pi\ufffdon"))
			assert.Equal(t, idx.Suggest("jalape", 5), got.Suggest("jalape", 5))
		})
	}
}

func TestLongTokensStayDecodable(t *testing.T) {
	b := NewBuilder()
	longest := strings.Repeat("b", maxDepth)
	assert.False(t, b.Insert(strings.Repeat("a", maxDepth+1), 1))
	assert.True(t, b.Insert(longest, 2))
	assert.True(t, b.Insert("beef", 3))
	idx := b.Index()
	assert.Equal(t, 2, idx.Len())
	assert.False(t, idx.IsMember(strings.Repeat("a", maxDepth+1)))

	for _, format := range []Format{FormatMsgpack, FormatJSON} {
		t.Run(format.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, idx.Encode(&buf, format))

			got, err := Decode(&buf, format)
			require.NoError(t, err)
			assert.True(t, idx.Equal(got))
			assert.Equal(t, []int64{2}, got.IDs(longest))
		})
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	jsonCases := map[string]string{
		"not json":       `beef`,
		"truncated":      `{"b":{"__ids__":[1]`,
		"multi rune key": `{"be":{"__ids__":[1]}}`,
		"empty key":      `{"":{"__ids__":[1]}}`,
		"empty child":    `{"b":{}}`,
		"empty ids leaf": `{"b":{"__ids__":[]}}`,
		"string id":      `{"b":{"__ids__":["1"]}}`,
		"fractional id":  `{"b":{"__ids__":[1.5]}}`,
		"ids not array":  `{"b":{"__ids__":1}}`,
		"array root":     `[1,2]`,
		"duplicate edge": `{"b":{"__ids__":[1]},"b":{"__ids__":[2]}}`,
		"trailing data":  `{"b":{"__ids__":[1]}}garbage`,
		"second value":   `{"b":{"__ids__":[1]}}{}`,
	}
	for name, doc := range jsonCases {
		t.Run("json/"+name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(doc), FormatJSON)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFormat)
		})
	}

	t.Run("json/too deep", func(t *testing.T) {
		doc := strings.Repeat(`{"a":`, maxDepth+2) + `{"__ids__":[1]}` + strings.Repeat(`}`, maxDepth+2)
		_, err := Decode(strings.NewReader(doc), FormatJSON)
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("json/empty node is invalid", func(t *testing.T) {
		_, err := Decode(strings.NewReader(`{"b":{}}`), FormatJSON)
		assert.ErrorIs(t, err, ErrInvalidNode)
	})

	var good bytes.Buffer
	require.NoError(t, Build(scenarioPairs()).Encode(&good, FormatMsgpack))

	msgpackCases := map[string][]byte{
		"garbage":   []byte("not msgpack at all"),
		"truncated": good.Bytes()[:good.Len()/2],
		"empty":     {},
		"wrong version": mustMarshal(t, map[string]any{
			"v": 99, "n": 0, "root": map[string]any{},
		}),
		"count mismatch": mustMarshal(t, map[string]any{
			"v": FormatVersion, "n": 5, "root": map[string]any{"a": map[string]any{IDsKey: []int64{1}}},
		}),
		"nil root": mustMarshal(t, map[string]any{
			"v": FormatVersion, "n": 0, "root": nil,
		}),
		"empty child": mustMarshal(t, map[string]any{
			"v": FormatVersion, "n": 0, "root": map[string]any{"a": map[string]any{}},
		}),
		"multi rune key": mustMarshal(t, map[string]any{
			"v": FormatVersion, "n": 1, "root": map[string]any{"ab": map[string]any{IDsKey: []int64{1}}},
		}),
		"invalid byte key": mustMarshal(t, map[string]any{
			"v": FormatVersion, "n": 1, "root": map[string]any{"\xf1": map[string]any{IDsKey: []int64{1}}},
		}),
	}
	for name, data := range msgpackCases {
		t.Run("msgpack/"+name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(data), FormatMsgpack)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFormat)
		})
	}
}

func TestUnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Empty().Encode(&buf, FormatUnknown))
	_, err := Decode(&buf, FormatUnknown)
	assert.Error(t, err)
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := msgpack.Marshal(v)
	require.NoError(t, err)
	return data
}
