package index

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bastiangx/pantry/pkg/trie"
	"golang.org/x/crypto/blake2b"
)

// Policy selects how freshness is decided.
type Policy string

const (
	// PolicyMtime trusts modification times only. A fresh index is loaded
	// without reading the corpus at all.
	PolicyMtime Policy = "mtime"
	// PolicyDigest also compares a blake2b digest of the corpus with the one
	// recorded in the index, so clock skew cannot hide a change.
	PolicyDigest Policy = "digest"
)

// ParsePolicy maps a config value to a Policy, defaulting to PolicyMtime.
func ParsePolicy(s string) Policy {
	if Policy(s) == PolicyDigest {
		return PolicyDigest
	}
	return PolicyMtime
}

// State is the freshness of the persisted index relative to the corpus.
type State int

const (
	StateMissing State = iota
	StateStale
	StateFresh
)

func (s State) String() string {
	switch s {
	case StateMissing:
		return "missing"
	case StateStale:
		return "stale"
	case StateFresh:
		return "fresh"
	}
	return "unknown"
}

// NeedsBuild reports whether the state calls for a rebuild.
func (s State) NeedsBuild() bool {
	return s != StateFresh
}

// StatFingerprint records path, modification time and size of a corpus.
func StatFingerprint(path string) (trie.Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return trie.Fingerprint{}, err
	}
	return trie.Fingerprint{
		Source:  path,
		ModTime: info.ModTime().UnixNano(),
		Size:    info.Size(),
		BuiltAt: time.Now().UnixNano(),
	}, nil
}

// Digest returns the hex blake2b-256 digest of the file at path.
func Digest(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Compare decides the state of indexPath against corpusPath by modification
// time. The index is fresh only when it is strictly newer than the corpus.
// With no corpus to compare against, an existing index is fresh.
func Compare(corpusPath, indexPath string) State {
	indexInfo, err := os.Stat(indexPath)
	if err != nil || indexInfo.IsDir() {
		return StateMissing
	}
	if corpusPath == "" {
		return StateFresh
	}
	corpusInfo, err := os.Stat(corpusPath)
	if err != nil {
		return StateFresh
	}
	if indexInfo.ModTime().After(corpusInfo.ModTime()) {
		return StateFresh
	}
	return StateStale
}
