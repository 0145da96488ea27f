// platform-mcp - MCP servers for developer platforms
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/freitascorp/platform-mcp/pkg/audit"
	"github.com/freitascorp/platform-mcp/pkg/logger"
	"github.com/freitascorp/platform-mcp/pkg/observability"
	"github.com/freitascorp/platform-mcp/pkg/tools"
)

const (
	// ProtocolVersion is the MCP protocol revision this server speaks.
	ProtocolVersion = "2024-11-05"
	ServerName      = "platform-mcp"
	ServerVersion   = "1.0.0"
)

// Server dispatches MCP requests to a ToolRegistry. Transports feed it
// one request at a time through Handle.
type Server struct {
	registry *tools.ToolRegistry
	info     EntityInfo
	audit    *audit.Logger
	metrics  *observability.ServerMetrics

	in  io.Reader
	out io.Writer
	mu  sync.Mutex // serializes writes to out
}

// Option configures a Server.
type Option func(*Server)

// WithServerInfo sets the name and version reported by initialize.
func WithServerInfo(name, version string) Option {
	return func(s *Server) { s.info = EntityInfo{Name: name, Version: version} }
}

// WithAudit records every tools/call through l.
func WithAudit(l *audit.Logger) Option {
	return func(s *Server) { s.audit = l }
}

// WithMetrics counts tools/call outcomes in m.
func WithMetrics(m *observability.ServerMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer creates an MCP server bound to stdin/stdout.
func NewServer(registry *tools.ToolRegistry, opts ...Option) *Server {
	return NewServerWithIO(registry, os.Stdin, os.Stdout, opts...)
}

// NewServerWithIO creates an MCP server with custom I/O (for testing).
func NewServerWithIO(registry *tools.ToolRegistry, in io.Reader, out io.Writer, opts ...Option) *Server {
	s := &Server{
		registry: registry,
		info:     EntityInfo{Name: ServerName, Version: ServerVersion},
		in:       in,
		out:      out,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Info returns the server identity reported by initialize.
func (s *Server) Info() EntityInfo { return s.info }

// Serve runs the stdio loop until EOF (nil) or ctx cancellation
// (ctx.Err()). Requests are handled strictly one after another.
func (s *Server) Serve(ctx context.Context) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		// MCP messages can be large (file contents, tool results).
		scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("stdin read error: %w", err)
					}
				default:
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return nil
			}
			s.handleLine(ctx, line)
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.writeJSON(errorResponse(nil, &Error{Code: ErrParse, Message: "parse error: " + err.Error()}))
		return
	}
	if resp := s.Handle(ctx, &req); resp != nil {
		s.writeJSON(resp)
	}
}

// Handle dispatches a single JSON-RPC request. Notifications (no id) get
// a nil response.
func (s *Server) Handle(ctx context.Context, req *Request) *Response {
	notification := req.ID == nil
	if !notification && req.JSONRPC != "2.0" {
		return errorResponse(req.ID, &Error{Code: ErrInvalidReq, Message: `jsonrpc must be "2.0"`})
	}

	var (
		result any
		rpcErr *Error
	)
	switch req.Method {
	case "initialize":
		result = s.initialize()
	case "notifications/initialized":
		// Client ack.
		return nil
	case "tools/list":
		result = s.toolsList()
	case "tools/call":
		result, rpcErr = s.toolsCall(ctx, req.Params)
	case "ping":
		result = map[string]any{}
	default:
		rpcErr = &Error{Code: ErrNotFound, Message: "method not found: " + req.Method}
	}

	if notification {
		return nil
	}
	if rpcErr != nil {
		return errorResponse(req.ID, rpcErr)
	}
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

// ── Method handlers ────────────────────────────────────────────────

func (s *Server) initialize() InitializeResult {
	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ServerCapability{
			Tools: &ToolsCapability{ListChanged: false},
		},
		ServerInfo: s.info,
	}
}

func (s *Server) toolsList() ToolsListResult {
	defs := s.registry.Definitions()
	out := make([]ToolInfo, 0, len(defs))
	for _, d := range defs {
		out = append(out, ToolInfo{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema})
	}
	return ToolsListResult{Tools: out}
}

func (s *Server) toolsCall(ctx context.Context, params any) (*ToolCallResult, *Error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, &Error{Code: ErrInternal, Message: "failed to marshal params"}
	}
	var p ToolCallParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &Error{Code: ErrInvalidReq, Message: "invalid tools/call params: " + err.Error()}
	}
	return s.CallTool(ctx, p.Name, p.Arguments)
}

// CallTool runs one tool invocation and maps the outcome onto the wire:
// a platform failure is a result with IsError set, everything that stops
// the invocation before or outside the handler is a JSON-RPC error.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*ToolCallResult, *Error) {
	if name == "" {
		return nil, &Error{Code: ErrInvalidReq, Message: "tool name is required"}
	}

	logger.InfoCF("mcp", "Tool call", map[string]any{"tool": name, "server": s.info.Name})

	var finish func(observability.Outcome)
	if s.metrics != nil {
		finish = s.metrics.Begin()
	}
	start := time.Now()
	res, err := s.execute(ctx, name, args)

	var (
		out     *ToolCallResult
		rpcErr  *Error
		outcome observability.Outcome
		status  string
		errText string
	)
	var verr *tools.ValidationError
	switch {
	case err == nil:
		text := res.Text()
		if text == "" {
			text = "(no output)"
		}
		out = &ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}, IsError: res.IsError}
		outcome, status = observability.OutcomeSuccess, audit.StatusSuccess
		if res.IsError {
			outcome, status, errText = observability.OutcomeError, audit.StatusError, text
		}
	case errors.Is(err, tools.ErrToolNotFound):
		rpcErr = &Error{Code: ErrNotFound, Message: "unknown tool: " + name}
		outcome, status, errText = observability.OutcomeRejected, audit.StatusRejected, rpcErr.Message
	case errors.As(err, &verr):
		rpcErr = &Error{
			Code:    ErrInvalidParams,
			Message: verr.Error(),
			Data:    InvalidParamsData{Required: verr.Required, Missing: verr.Missing, Invalid: verr.Invalid},
		}
		outcome, status, errText = observability.OutcomeRejected, audit.StatusRejected, rpcErr.Message
	default:
		logger.ErrorCF("mcp", "Tool call failed", map[string]any{"tool": name, "error": err.Error()})
		rpcErr = &Error{Code: ErrInternal, Message: "internal error: " + err.Error()}
		outcome, status, errText = observability.OutcomeFailed, audit.StatusFailed, err.Error()
	}

	if finish != nil {
		finish(outcome)
	}
	if s.audit != nil {
		if aerr := s.audit.LogToolCall(ctx, audit.ToolCall{
			Tool:     name,
			Args:     args,
			Status:   status,
			Duration: time.Since(start),
			Err:      errText,
		}); aerr != nil {
			logger.WarnCF("mcp", "Audit write failed", map[string]any{"tool": name, "error": aerr.Error()})
		}
	}
	return out, rpcErr
}

// execute runs the registry and turns a handler panic into an error so a
// single bad invocation cannot take the server down.
func (s *Server) execute(ctx context.Context, name string, args map[string]any) (res *tools.ToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("mcp", "Tool panicked", map[string]any{
				"tool":  name,
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			})
			res, err = nil, fmt.Errorf("panic in %s: %v", name, r)
		}
	}()
	return s.registry.Execute(ctx, name, args)
}

// ── Wire helpers ───────────────────────────────────────────────────

func errorResponse(id any, e *Error) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Error: e}
}

func (s *Server) writeJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.ErrorCF("mcp", "Failed to marshal response",
			map[string]any{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// MCP stdio transport: one JSON object per line.
	_, _ = s.out.Write(append(data, '\n'))
}
