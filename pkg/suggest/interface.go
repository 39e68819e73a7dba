// Package suggest wraps the ingredient index with the limits a live-typing
// caller needs: prefix length bounds, input filtering and result caps.
package suggest

// ICompleter defines the interface the CLI and servers query through
type ICompleter interface {
	// Complete returns suggestions for a given prefix with a limit
	Complete(prefix string, limit int) []Suggestion

	// Validate reports whether token is a known ingredient and its recipe ids
	Validate(token string) (bool, []int64)

	// Stats returns statistics about the loaded index
	Stats() map[string]int
}
