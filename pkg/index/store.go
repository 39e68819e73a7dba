package index

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/bastiangx/pantry/internal/utils"
	"github.com/bastiangx/pantry/pkg/trie"
	"github.com/dchest/safefile"
	"github.com/pkg/errors"
)

// WriteError reports that a freshly built index could not be persisted. The
// index returned alongside it is complete and usable.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return "failed to persist index to " + e.Path + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// writeFile replaces path atomically: the data goes to a temp file in the
// same directory which is renamed over path on commit.
func writeFile(path string, write func(w io.Writer) error) error {
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return errors.Wrap(err, "mkdir failed")
	}
	file, err := safefile.Create(path, 0644)
	if err != nil {
		return errors.Wrap(err, "create failed")
	}
	defer file.Close()

	bw := bufio.NewWriter(file)
	if err := write(bw); err != nil {
		return errors.Wrap(err, "write failed")
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, "flush failed")
	}
	if err := file.Commit(); err != nil {
		return errors.Wrap(err, "commit failed")
	}
	return nil
}

// Save writes idx to path in the format its extension selects.
func Save(idx *trie.Index, path string) error {
	format := trie.DetectFormat(path)
	return writeFile(path, func(w io.Writer) error {
		return idx.Encode(w, format)
	})
}

// Load reads an index from path in the format its extension selects.
func Load(path string) (*trie.Index, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open failed")
	}
	defer file.Close()

	idx, err := trie.Decode(bufio.NewReader(file), trie.DetectFormat(path))
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s failed", path)
	}
	return idx, nil
}
