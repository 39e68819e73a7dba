// Package corpus reads the recipe CSV and turns its multi-value ingredient
// cells into (token, identifier) pairs for the trie builder.
package corpus

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/bastiangx/pantry/internal/logger"
	"github.com/charmbracelet/log"
)

// ErrMissingColumn is returned when the header lacks a configured column.
var ErrMissingColumn = errors.New("corpus: column not found in header")

// Pair is one token occurrence in one row.
type Pair struct {
	Token string
	ID    int64
}

// Options selects the columns to read and the cell separator.
type Options struct {
	IDColumn   string
	TextColumn string
	Separator  rune
	// Comma is the CSV field delimiter; zero means ','.
	Comma rune
}

// DefaultOptions matches the recipe search export.
func DefaultOptions() Options {
	return Options{
		IDColumn:   "id",
		TextColumn: "ingredients_serialized",
		Separator:  ';',
		Comma:      ',',
	}
}

// Stats counts what a scan saw.
type Stats struct {
	Rows    int
	Skipped int
	Pairs   int
}

// Reader scans CSV corpora.
type Reader struct {
	opts   Options
	logger *log.Logger
}

// NewReader returns a Reader, filling zero options from DefaultOptions.
func NewReader(opts Options) *Reader {
	def := DefaultOptions()
	if opts.IDColumn == "" {
		opts.IDColumn = def.IDColumn
	}
	if opts.TextColumn == "" {
		opts.TextColumn = def.TextColumn
	}
	if opts.Separator == 0 {
		opts.Separator = def.Separator
	}
	if opts.Comma == 0 {
		opts.Comma = def.Comma
	}
	return &Reader{opts: opts, logger: logger.New("corpus")}
}

// Options returns the effective options.
func (r *Reader) Options() Options {
	return r.opts
}

// ScanFile opens path and calls Scan on it.
func (r *Reader) ScanFile(ctx context.Context, path string, fn func(Pair) error) (Stats, error) {
	file, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open corpus %s: %w", path, err)
	}
	defer file.Close()

	stats, err := r.Scan(ctx, file, fn)
	if err != nil {
		return stats, fmt.Errorf("corpus %s: %w", path, err)
	}
	return stats, nil
}

// Scan reads CSV rows from src and calls fn for every token of every usable
// row. Rows with an unparsable id or an empty text cell are skipped and
// counted; only a missing header column, a read failure, a cancelled context
// or an error from fn stop the scan.
func (r *Reader) Scan(ctx context.Context, src io.Reader, fn func(Pair) error) (Stats, error) {
	var stats Stats

	cr := csv.NewReader(bufio.NewReader(src))
	cr.Comma = r.opts.Comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			r.logger.Warn("Corpus is empty")
			return stats, nil
		}
		return stats, fmt.Errorf("failed to read header: %w", err)
	}
	idCol, textCol := -1, -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		switch name {
		case r.opts.IDColumn:
			idCol = i
		case r.opts.TextColumn:
			textCol = i
		}
	}
	if idCol < 0 {
		return stats, fmt.Errorf("%w: %q", ErrMissingColumn, r.opts.IDColumn)
	}
	if textCol < 0 {
		return stats, fmt.Errorf("%w: %q", ErrMissingColumn, r.opts.TextColumn)
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				stats.Rows++
				stats.Skipped++
				r.logger.Debugf("Skipping malformed row at line %d: %v", perr.Line, perr.Err)
				continue
			}
			return stats, fmt.Errorf("failed to read row: %w", err)
		}
		stats.Rows++

		if idCol >= len(record) || textCol >= len(record) {
			stats.Skipped++
			r.logger.Debugf("Skipping row %d: missing columns", stats.Rows)
			continue
		}
		id, ok := parseID(record[idCol])
		if !ok {
			stats.Skipped++
			r.logger.Debugf("Skipping row %d: bad id %q", stats.Rows, record[idCol])
			continue
		}
		tokens := SplitCell(record[textCol], r.opts.Separator)
		if len(tokens) == 0 {
			stats.Skipped++
			r.logger.Debugf("Skipping row %d (id %d): empty text cell", stats.Rows, id)
			continue
		}
		for _, tok := range tokens {
			stats.Pairs++
			if err := fn(Pair{Token: tok, ID: id}); err != nil {
				return stats, err
			}
		}
	}

	if stats.Skipped > 0 {
		r.logger.Warnf("Skipped %d of %d rows", stats.Skipped, stats.Rows)
	}
	return stats, nil
}

// LoadFile collects every pair of the corpus at path.
func (r *Reader) LoadFile(ctx context.Context, path string) ([]Pair, Stats, error) {
	var pairs []Pair
	stats, err := r.ScanFile(ctx, path, func(p Pair) error {
		pairs = append(pairs, p)
		return nil
	})
	return pairs, stats, err
}

// SplitCell splits a multi-value cell on sep, trimming each part and
// dropping empty ones. Case is left alone; the trie lower-cases on insert.
func SplitCell(cell string, sep rune) []string {
	parts := strings.Split(cell, string(sep))
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseID accepts integers, and floats with no fractional part since
// spreadsheet exports often write ids as "12.0".
func parseID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}
