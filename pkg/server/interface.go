/*
Package server exposes the completer over msgpack IPC on stdin/stdout and,
optionally, over HTTP.

# IPC

Clients write msgpack maps back to back on stdin and read one msgpack map per
request from stdout. The server announces itself with {"status": "ready"}.

Completion requests carry a prefix and an optional limit:

	{"id": "req_001", "p": "be", "l": 5}

and are answered with suggestions in traversal order:

	{"id": "req_001", "s": [{"w": "beef", "r": 1, "n": 2}], "c": 1, "t": 14}

where "n" is the number of recipes using the ingredient and "t" the lookup
time in microseconds.

Other requests name an action:

	{"id": "v1", "action": "validate", "token": "Beef"}
	{"id": "s1", "action": "stats"}
	{"id": "r1", "action": "reload"}

Failures are reported as {"id": ..., "e": "message", "c": 400}.
*/
package server

// Request is any client message. An empty Action means completion.
type Request struct {
	ID     string `msgpack:"id"`
	Action string `msgpack:"action,omitempty"`
	Prefix string `msgpack:"p,omitempty"`
	Limit  int    `msgpack:"l,omitempty"`
	Token  string `msgpack:"token,omitempty"`
}

// Actions understood by the IPC server.
const (
	ActionComplete = "complete"
	ActionValidate = "validate"
	ActionStats    = "stats"
	ActionReload   = "reload"
)

// CompletionSuggestion - minimal suggestion response
type CompletionSuggestion struct {
	Word    string `msgpack:"w" json:"word"`
	Rank    uint16 `msgpack:"r" json:"rank"`
	Recipes int    `msgpack:"n" json:"recipes"`
}

// CompletionResponse - completion response
type CompletionResponse struct {
	ID          string                 `msgpack:"id" json:"id,omitempty"`
	Suggestions []CompletionSuggestion `msgpack:"s" json:"suggestions"`
	Count       int                    `msgpack:"c" json:"count"`
	TimeTaken   int64                  `msgpack:"t" json:"time_us"`
}

// ValidateResponse - membership check response
type ValidateResponse struct {
	ID    string  `msgpack:"id" json:"id,omitempty"`
	Token string  `msgpack:"token" json:"token"`
	Valid bool    `msgpack:"ok" json:"valid"`
	IDs   []int64 `msgpack:"ids,omitempty" json:"ids,omitempty"`
}

// StatsResponse - index and query statistics
type StatsResponse struct {
	ID      string `msgpack:"id" json:"id,omitempty"`
	Status  string `msgpack:"status" json:"status"`
	Tokens  int    `msgpack:"tokens" json:"tokens"`
	Queries int    `msgpack:"queries" json:"queries"`
	State   string `msgpack:"state,omitempty" json:"state,omitempty"`
	Source  string `msgpack:"source,omitempty" json:"source,omitempty"`
	Error   string `msgpack:"error,omitempty" json:"error,omitempty"`
}

// CompletionError holds basic error information for failed requests
type CompletionError struct {
	ID    string `msgpack:"id" json:"id,omitempty"`
	Error string `msgpack:"e" json:"error"`
	Code  int    `msgpack:"c" json:"code"`
}
