// Package mcp exposes engine requests as Model Context Protocol tools over a
// single JSON-RPC endpoint, with optional HMAC request signing.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"brickforge.ai/internal/lattice/catalogs"
	"brickforge.ai/internal/protocol"
)

const (
	mcpProtocolVersion = "2024-11-05"
	maxBodyBytes       = 32 << 20
)

type Engine interface {
	Handle(ctx context.Context, req protocol.Request) protocol.Response
	Catalogs() *catalogs.Catalogs
}

type Config struct {
	Engine Engine
	// HMACSecret enables signed requests; empty disables auth.
	HMACSecret string
	Skew       time.Duration
	Logger     *log.Logger
}

type Server struct {
	engine Engine
	secret []byte
	skew   time.Duration
	guard  *replayGuard
	logger *log.Logger
	now    func() time.Time
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("nil engine")
	}
	if cfg.Skew <= 0 {
		cfg.Skew = defaultSkew
	}
	s := &Server{
		engine: cfg.Engine,
		skew:   cfg.Skew,
		logger: cfg.Logger,
		now:    time.Now,
	}
	if secret := strings.TrimSpace(cfg.HMACSecret); secret != "" {
		s.secret = []byte(secret)
		s.guard = newReplayGuard(2 * cfg.Skew)
	}
	return s, nil
}

func (s *Server) Handler() http.HandlerFunc {
	return s.handleMCP
}

func (s *Server) handleMCP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(rw, "bad body", http.StatusBadRequest)
		return
	}

	clientID := strings.TrimSpace(r.Header.Get(headerClientID))
	if len(s.secret) > 0 {
		ar := verifyHMAC(r, body, s.secret, s.now(), s.skew)
		if ar.Status != 0 {
			http.Error(rw, ar.Message, ar.Status)
			return
		}
		if !s.guard.allow(ar.ClientID, ar.Signature, s.now()) {
			http.Error(rw, "replayed request", http.StatusConflict)
			return
		}
		clientID = ar.ClientID
	}
	if clientID == "" {
		clientID = "anonymous"
	}

	req, err := parseRPCRequest(body)
	if err != nil {
		writeRPC(rw, rpcErr(nil, codeParseError, "bad jsonrpc request", err.Error()))
		return
	}
	if len(req.ID) == 0 {
		// Notifications get no response body.
		rw.WriteHeader(http.StatusAccepted)
		return
	}
	writeRPC(rw, s.dispatch(r.Context(), clientID, req))
}

func (s *Server) dispatch(ctx context.Context, clientID string, req rpcRequest) rpcResponse {
	switch req.Method {
	case "initialize":
		return rpcOK(req.ID, map[string]any{
			"protocolVersion": mcpProtocolVersion,
			"capabilities": map[string]any{
				"tools": map[string]any{"listChanged": false},
			},
			"serverInfo": map[string]any{"name": "brickforge", "version": protocol.Version},
		})
	case "ping":
		return rpcOK(req.ID, map[string]any{})
	case "tools/list":
		return rpcOK(req.ID, map[string]any{"tools": toolList()})
	case "tools/call":
		var p struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if len(req.Params) == 0 {
			return rpcErr(req.ID, codeInvalidParams, "missing params", nil)
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return rpcErr(req.ID, codeInvalidParams, "bad params", err.Error())
		}
		if !isKnownTool(p.Name) {
			return rpcErr(req.ID, codeMethodNotFound, "tool not found", map[string]any{"name": p.Name})
		}
		out, err := s.callTool(ctx, clientID, p.Name, p.Arguments)
		if err != nil {
			return rpcErr(req.ID, codeToolFailed, err.Error(), nil)
		}
		return rpcOK(req.ID, out)
	default:
		return rpcErr(req.ID, codeMethodNotFound, "method not found", map[string]any{"method": req.Method})
	}
}

// toolResult is the MCP tools/call result shape.
type toolResult struct {
	Content           []textContent `json:"content"`
	StructuredContent any           `json:"structuredContent,omitempty"`
	IsError           bool          `json:"isError"`
}

type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func newToolResult(v any, isError bool) (toolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return toolResult{}, err
	}
	return toolResult{
		Content:           []textContent{{Type: "text", Text: string(b)}},
		StructuredContent: v,
		IsError:           isError,
	}, nil
}

func (s *Server) callTool(ctx context.Context, clientID, name string, args json.RawMessage) (toolResult, error) {
	if name == catalogTool {
		var p struct {
			Name string `json:"name"`
		}
		if len(args) > 0 {
			if err := json.Unmarshal(args, &p); err != nil {
				return toolResult{}, fmt.Errorf("bad arguments: %w", err)
			}
		}
		cat, err := catalogView(s.engine.Catalogs(), p.Name)
		if err != nil {
			return toolResult{}, err
		}
		return newToolResult(cat, false)
	}

	raw, err := requestFromArgs(requestType(name), args)
	if err != nil {
		return toolResult{}, err
	}
	req, err := protocol.DecodeRequest(raw)
	if err != nil {
		return newToolResult(protocol.Response{
			Type:            protocol.TypeResult,
			ProtocolVersion: protocol.Version,
			For:             requestType(name),
			Code:            protocol.ErrBadRequest,
			Error:           err.Error(),
		}, true)
	}
	req.RequestID = "mcp-" + uuid.NewString()
	resp := s.engine.Handle(ctx, req)
	if !resp.OK && s.logger != nil {
		s.logger.Printf("mcp client=%s tool=%s: %s %s", clientID, name, resp.Code, resp.Error)
	}
	return newToolResult(resp, !resp.OK)
}

// requestFromArgs wraps tool arguments into a protocol request document.
// Only name, units and params are accepted from the caller.
func requestFromArgs(typ string, args json.RawMessage) ([]byte, error) {
	doc := map[string]json.RawMessage{}
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &doc); err != nil {
			return nil, fmt.Errorf("bad arguments: %w", err)
		}
	}
	for k := range doc {
		switch k {
		case "name", "units", "params":
		default:
			return nil, fmt.Errorf("bad arguments: unknown field %q", k)
		}
	}
	t, _ := json.Marshal(typ)
	doc["type"] = t
	return json.Marshal(doc)
}

func writeRPC(rw http.ResponseWriter, resp rpcResponse) {
	rw.Header().Set("content-type", "application/json")
	_ = json.NewEncoder(rw).Encode(resp)
}
