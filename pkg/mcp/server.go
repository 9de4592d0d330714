// Package mcp serves skillgate as a Model Context Protocol tool server over
// stdio using line-delimited JSON-RPC 2.0.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/pario-ai/skillgate/pkg/api"
)

const maxLineBytes = 1024 * 1024

// Server is a minimal MCP server. Besides its own tools it exposes every
// schema registered with the service's tool validator.
type Server struct {
	svc     *api.Service
	logger  *zap.Logger
	version string
}

// New creates an MCP Server. A nil logger disables logging.
func New(svc *api.Service, logger *zap.Logger, version string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{svc: svc, logger: logger, version: version}
}

// Run reads requests from r line by line and writes responses to w. It
// blocks until r is exhausted or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, maxLineBytes), maxLineBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(w, Response{
				JSONRPC: jsonrpcVersion,
				Error:   &RPCError{Code: CodeParseError, Message: "parse error"},
			})
			continue
		}

		resp := s.dispatch(ctx, &req)
		if resp == nil {
			continue
		}
		s.writeResponse(w, *resp)
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	s.logger.Debug("mcp request", zap.String("method", req.Method))
	if req.JSONRPC != jsonrpcVersion {
		return s.errorResponse(req, CodeInvalidRequest, "jsonrpc must be "+jsonrpcVersion)
	}
	switch req.Method {
	case "initialize":
		return s.result(req, InitializeResult{
			ProtocolVersion: ProtocolVersion,
			ServerInfo:      ServerInfo{Name: "skillgate", Version: s.version},
			Capabilities:    map[string]any{"tools": map[string]any{}},
		})
	case "notifications/initialized":
		return nil
	case "ping":
		return s.result(req, map[string]any{})
	case "tools/list":
		return s.result(req, ToolsListResult{Tools: s.toolDefinitions()})
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		return s.errorResponse(req, CodeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method))
	}
}

func (s *Server) result(req *Request, v any) *Response {
	return &Response{JSONRPC: jsonrpcVersion, ID: req.ID, Result: v}
}

func (s *Server) errorResponse(req *Request, code int, msg string) *Response {
	return &Response{JSONRPC: jsonrpcVersion, ID: req.ID, Error: &RPCError{Code: code, Message: msg}}
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return s.errorResponse(req, CodeInvalidParams, "invalid params")
	}

	if handler, ok := toolHandlers[params.Name]; ok {
		return s.result(req, handler(ctx, s, params.Arguments))
	}
	return s.result(req, s.callValidated(ctx, params))
}

func (s *Server) writeResponse(w io.Writer, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("mcp marshal failed", zap.Error(err))
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		s.logger.Error("mcp write failed", zap.Error(err))
	}
}
