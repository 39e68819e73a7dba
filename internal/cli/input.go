// Package cli handles cmd line input for browsing the ingredient index interactively
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bastiangx/pantry/internal/utils"
	"github.com/bastiangx/pantry/pkg/suggest"
	"github.com/charmbracelet/log"
	"golang.org/x/term"
)

const maxDumped = 200

// InputHandler reads lines and answers them against the completer.
//
//	be          suggestions for the prefix "be"
//	?beef       membership check with recipe ids
//	:stats      index and query statistics
//	:dump be    every token under "be" with its ids
type InputHandler struct {
	completer *suggest.Completer
	limit     int
	in        io.Reader
	out       io.Writer
	color     bool
}

// NewInputHandler returns a handler reading stdin and writing stdout.
func NewInputHandler(completer *suggest.Completer, limit int) *InputHandler {
	return &InputHandler{
		completer: completer,
		limit:     limit,
		in:        os.Stdin,
		out:       os.Stdout,
		color:     term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// WithIO redirects input and output, turning color off.
func (h *InputHandler) WithIO(in io.Reader, out io.Writer) *InputHandler {
	h.in = in
	h.out = out
	h.color = false
	return h
}

// Start runs the loop until input ends.
func (h *InputHandler) Start() error {
	if h.color {
		fmt.Fprintln(h.out, "Pantry CLI")
		fmt.Fprintln(h.out, "type a prefix and press Enter (?token to check, :stats, :dump prefix, Ctrl+C to exit):")
	}
	scanner := bufio.NewScanner(h.in)
	for {
		if h.color {
			fmt.Fprint(h.out, "> ")
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		h.handleInput(line)
	}
}

func (h *InputHandler) handleInput(line string) {
	switch {
	case line == ":stats":
		h.printStats()
	case strings.HasPrefix(line, ":dump"):
		h.dump(strings.TrimSpace(strings.TrimPrefix(line, ":dump")))
	case strings.HasPrefix(line, "?"):
		h.validate(strings.TrimPrefix(line, "?"))
	default:
		h.complete(line)
	}
}

func (h *InputHandler) complete(prefix string) {
	if !h.completer.Accepts(prefix) {
		opts := h.completer.Options()
		log.Warnf("Prefix '%s' rejected (length %d..%d, letters only)", prefix, opts.MinPrefix, opts.MaxPrefix)
		return
	}

	start := time.Now()
	suggestions := h.completer.Complete(prefix, h.limit)
	log.Debugf("Took [ %v ] for prefix '%s'", time.Since(start), prefix)

	if len(suggestions) == 0 {
		fmt.Fprintf(h.out, "No ingredients start with '%s'\n", prefix)
		return
	}
	for _, s := range suggestions {
		fmt.Fprintf(h.out, "%2d. %-32s (recipes: %6s)\n", s.Rank, h.paint(s.Word), utils.FormatWithCommas(s.Recipes))
	}
}

func (h *InputHandler) validate(token string) {
	ok, ids := h.completer.Validate(token)
	if !ok {
		fmt.Fprintf(h.out, "'%s' is not an ingredient\n", token)
		return
	}
	fmt.Fprintf(h.out, "'%s' is an ingredient in %s recipes: %s\n",
		h.paint(token), utils.FormatWithCommas(len(ids)), utils.FormatIDs(ids, 10))
}

func (h *InputHandler) printStats() {
	st := h.completer.Stats()
	fmt.Fprintf(h.out, "tokens:  %s\n", utils.FormatWithCommas(st["tokens"]))
	fmt.Fprintf(h.out, "queries: %s\n", utils.FormatWithCommas(st["queries"]))
	fmt.Fprintf(h.out, "limits:  default %d, max %d, min prefix %d\n", st["defaultLimit"], st["maxLimit"], st["minPrefix"])
}

var errDumpFull = errors.New("dump limit reached")

func (h *InputHandler) dump(prefix string) {
	prefix = strings.ToLower(prefix)
	n := 0
	err := h.completer.Index().Walk(func(token string, ids []int64) error {
		if !strings.HasPrefix(token, prefix) {
			return nil
		}
		if n == maxDumped {
			return errDumpFull
		}
		n++
		fmt.Fprintf(h.out, "%s %s\n", h.paint(token), utils.FormatIDs(ids, 5))
		return nil
	})
	if errors.Is(err, errDumpFull) {
		fmt.Fprintf(h.out, "... stopped after %d tokens\n", maxDumped)
	}
}

func (h *InputHandler) paint(s string) string {
	if !h.color {
		return s
	}
	return fmt.Sprintf("\033[38;5;75m%s\033[0m", s)
}
