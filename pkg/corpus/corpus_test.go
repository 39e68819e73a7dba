package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.SetLevel(log.ErrorLevel)
}

func scan(t *testing.T, r *Reader, data string) ([]Pair, Stats, error) {
	t.Helper()
	var pairs []Pair
	stats, err := r.Scan(context.Background(), strings.NewReader(data), func(p Pair) error {
		pairs = append(pairs, p)
		return nil
	})
	return pairs, stats, err
}

func TestScanScenario(t *testing.T) {
	data := "id,title,ingredients_serialized\n" +
		"1,Stew,beef;onion\n" +
		"2,Roast,\"BEEF; Garlic\"\n"

	pairs, stats, err := scan(t, NewReader(Options{}), data)
	require.NoError(t, err)
	assert.Equal(t, []Pair{
		{Token: "beef", ID: 1},
		{Token: "onion", ID: 1},
		{Token: "BEEF", ID: 2},
		{Token: "Garlic", ID: 2},
	}, pairs)
	assert.Equal(t, Stats{Rows: 2, Skipped: 0, Pairs: 4}, stats)
}

func TestScanSkipsBadRows(t *testing.T) {
	data := "\ufeffingredients_serialized,id\n" +
		"salt;pepper,10\n" +
		"sugar,abc\n" +
		",11\n" +
		" ; ;,12\n" +
		"flour\n" +
		"butter, 13.0 \n" +
		"milk,13.5\n"

	pairs, stats, err := scan(t, NewReader(DefaultOptions()), data)
	require.NoError(t, err)
	assert.Equal(t, []Pair{
		{Token: "salt", ID: 10},
		{Token: "pepper", ID: 10},
		{Token: "butter", ID: 13},
	}, pairs)
	assert.Equal(t, 7, stats.Rows)
	assert.Equal(t, 5, stats.Skipped)
	assert.Equal(t, 3, stats.Pairs)
}

func TestScanCustomColumns(t *testing.T) {
	r := NewReader(Options{IDColumn: "recipe", TextColumn: "items", Separator: '|', Comma: '\t'})
	pairs, _, err := scan(t, r, "recipe\titems\n7\tegg | cream\n")
	require.NoError(t, err)
	assert.Equal(t, []Pair{{Token: "egg", ID: 7}, {Token: "cream", ID: 7}}, pairs)
	assert.Equal(t, '|', r.Options().Separator)
}

func TestScanMissingColumn(t *testing.T) {
	_, _, err := scan(t, NewReader(DefaultOptions()), "id,title\n1,Stew\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "ingredients_serialized")
}

func TestScanEmpty(t *testing.T) {
	pairs, stats, err := scan(t, NewReader(DefaultOptions()), "")
	require.NoError(t, err)
	assert.Empty(t, pairs)
	assert.Equal(t, Stats{}, stats)

	pairs, _, err = scan(t, NewReader(DefaultOptions()), "id,ingredients_serialized\n")
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestScanStops(t *testing.T) {
	data := "id,ingredients_serialized\n1,a;b\n2,c\n"

	boom := errors.New("boom")
	n := 0
	_, err := NewReader(DefaultOptions()).Scan(context.Background(), strings.NewReader(data), func(Pair) error {
		n++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewReader(DefaultOptions()).Scan(ctx, strings.NewReader(data), func(Pair) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipes.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,ingredients_serialized\n1,beef;onion\n"), 0644))

	pairs, stats, err := NewReader(DefaultOptions()).LoadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, pairs, 2)
	assert.Equal(t, 1, stats.Rows)

	_, _, err = NewReader(DefaultOptions()).LoadFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSplitCell(t *testing.T) {
	testCases := []struct {
		cell     string
		expected []string
	}{
		{"beef;onion", []string{"beef", "onion"}},
		{"BEEF; Garlic", []string{"BEEF", "Garlic"}},
		{" ; ;", []string{}},
		{"", []string{}},
		{"olive oil;;salt ", []string{"olive oil", "salt"}},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, SplitCell(tc.cell, ';'), tc.cell)
	}
}

func TestParseID(t *testing.T) {
	testCases := []struct {
		in string
		id int64
		ok bool
	}{
		{"12", 12, true},
		{" 12 ", 12, true},
		{"12.0", 12, true},
		{"-3", -3, true},
		{"12.5", 0, false},
		{"", 0, false},
		{"twelve", 0, false},
	}
	for _, tc := range testCases {
		id, ok := parseID(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.id, id, tc.in)
	}
}
