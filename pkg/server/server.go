package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/bastiangx/pantry/internal/logger"
	"github.com/bastiangx/pantry/pkg/index"
	"github.com/bastiangx/pantry/pkg/suggest"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

// Server handles msgpack IPC for ingredient completion.
type Server struct {
	completer *suggest.Completer
	gate      *index.Gate
	decoder   *msgpack.Decoder
	writer    *bufio.Writer
	encoder   *msgpack.Encoder
	logger    *log.Logger
	maxPrefix int
	maxSize   int
}

// NewServer creates an IPC server reading requests from r and writing
// responses to w. gate may be nil, which disables reload.
func NewServer(completer *suggest.Completer, gate *index.Gate, r io.Reader, w io.Writer) *Server {
	bw := bufio.NewWriter(w)
	return &Server{
		completer: completer,
		gate:      gate,
		decoder:   msgpack.NewDecoder(bufio.NewReader(r)),
		writer:    bw,
		encoder:   msgpack.NewEncoder(bw),
		logger:    logger.New("ipc"),
		maxPrefix: completer.Options().MaxPrefix,
	}
}

// SetMaxRequestSize rejects requests whose prefix and token together exceed
// n bytes. Zero disables the check.
func (s *Server) SetMaxRequestSize(n int) {
	s.maxSize = n
}

// Start announces readiness and serves requests until the input ends or ctx
// is cancelled. A clean end of input returns nil.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Debug("Starting IPC server")
	if err := s.send(map[string]string{"status": "ready"}); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		var req Request
		if err := s.decoder.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Debug("Input closed, stopping")
				return nil
			}
			s.logger.Errorf("Decoding request: %v", err)
			s.sendError("", "invalid msgpack request", 400)
			return fmt.Errorf("failed to decode request: %w", err)
		}
		s.handleRequest(ctx, req)
	}
}

func (s *Server) handleRequest(ctx context.Context, req Request) {
	if s.maxSize > 0 && len(req.Prefix)+len(req.Token) > s.maxSize {
		s.sendError(req.ID, fmt.Sprintf("request exceeds %d bytes", s.maxSize), 413)
		return
	}
	switch req.Action {
	case "", ActionComplete:
		s.handleComplete(req)
	case ActionValidate:
		s.handleValidate(req)
	case ActionStats:
		s.send(s.stats(req.ID))
	case ActionReload:
		s.handleReload(ctx, req)
	default:
		s.sendError(req.ID, fmt.Sprintf("unknown action: %s", req.Action), 400)
	}
}

func (s *Server) handleComplete(req Request) {
	if req.Prefix == "" {
		s.sendError(req.ID, "missing prefix", 400)
		return
	}
	if s.maxPrefix > 0 && utf8.RuneCountInString(req.Prefix) > s.maxPrefix {
		s.sendError(req.ID, fmt.Sprintf("prefix exceeds maximum length of %d characters", s.maxPrefix), 400)
		return
	}

	start := time.Now()
	suggestions := s.completer.Complete(req.Prefix, req.Limit)
	elapsed := time.Since(start)

	s.send(CompletionResponse{
		ID:          req.ID,
		Suggestions: toWire(suggestions),
		Count:       len(suggestions),
		TimeTaken:   elapsed.Microseconds(),
	})
}

func (s *Server) handleValidate(req Request) {
	ok, ids := s.completer.Validate(req.Token)
	s.send(ValidateResponse{
		ID:    req.ID,
		Token: req.Token,
		Valid: ok,
		IDs:   ids,
	})
}

func (s *Server) handleReload(ctx context.Context, req Request) {
	if s.gate == nil {
		s.sendError(req.ID, "reload not available", 501)
		return
	}
	idx, err := s.gate.OpenOrBuild(ctx)
	if idx == nil {
		s.sendError(req.ID, fmt.Sprintf("reload failed: %v", err), 500)
		return
	}
	s.completer.Swap(idx)
	resp := s.stats(req.ID)
	if err != nil {
		resp.Status = "degraded"
		resp.Error = err.Error()
	}
	s.send(resp)
}

func (s *Server) stats(id string) StatsResponse {
	st := s.completer.Stats()
	resp := StatsResponse{
		ID:      id,
		Status:  "ok",
		Tokens:  st["tokens"],
		Queries: st["queries"],
	}
	if s.gate != nil {
		rep := s.gate.LastReport()
		resp.State = rep.State.String()
		resp.Source = string(rep.Source)
	}
	return resp
}

func toWire(suggestions []suggest.Suggestion) []CompletionSuggestion {
	out := make([]CompletionSuggestion, len(suggestions))
	for i, sg := range suggestions {
		out[i] = CompletionSuggestion{Word: sg.Word, Rank: sg.Rank, Recipes: sg.Recipes}
	}
	return out
}

// send encodes one response and flushes it so the client sees it at once.
func (s *Server) send(v any) error {
	if err := s.encoder.Encode(v); err != nil {
		s.logger.Errorf("Encoding response: %v", err)
		return err
	}
	if err := s.writer.Flush(); err != nil {
		s.logger.Errorf("Writing response: %v", err)
		return err
	}
	return nil
}

func (s *Server) sendError(id, message string, code int) {
	s.send(CompletionError{ID: id, Error: message, Code: code})
}
