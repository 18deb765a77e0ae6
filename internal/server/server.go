package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/ironsheep/image-release-tools/internal/augment"
	pix "github.com/ironsheep/image-release-tools/internal/imaging"
	"github.com/ironsheep/image-release-tools/internal/logging"
	"github.com/ironsheep/image-release-tools/internal/release"
)

// Name and Version are reported in the initialize handshake.
var (
	Name    = "image-release-mcp"
	Version = "0.1.0"
)

// Server handles MCP protocol communication
type Server struct {
	orch   *release.Orchestrator
	cache  *pix.ImageCache
	engine *augment.Engine
	log    *slog.Logger

	// ctx bounds releases started through release_start.
	ctx context.Context

	mu  sync.Mutex
	enc *json.Encoder
	// announcing counts releases whose completion notice is still pending.
	announcing sync.WaitGroup
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPNotification represents an outgoing notification (no ID)
type MCPNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// New creates a server over orch. Preview images are decoded through a cache
// that lives as long as the server.
func New(orch *release.Orchestrator) *Server {
	cache := pix.NewImageCache()
	log := logging.L().With("component", "mcp")
	return &Server{
		orch:   orch,
		cache:  cache,
		engine: augment.New(orch.Catalog(), pix.NewCodec(cache, 0), augment.WithLogger(log)),
		log:    log,
		ctx:    context.Background(),
	}
}

// Run serves stdin/stdout until stdin closes or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC request per line from in and writes responses to
// out. Releases started during the session run under ctx; when in is
// exhausted Serve waits until each of them has been announced.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.ctx = ctx
	scanner := bufio.NewScanner(in)
	// requests may carry whole release definitions
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	s.mu.Lock()
	s.enc = json.NewEncoder(out)
	s.mu.Unlock()
	defer func() {
		s.announcing.Wait()
		s.mu.Lock()
		s.enc = nil
		s.mu.Unlock()
	}()

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.Warn("failed to parse request", "error", err)
			s.send(s.errorResponse(nil, -32700, "Parse error", err.Error()))
			continue
		}

		if resp := s.handleRequest(&req); resp != nil {
			s.send(resp)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// send writes one message. Outside Serve there is no writer and the message
// is discarded.
func (s *Server) send(v interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enc == nil {
		return
	}
	if err := s.enc.Encode(v); err != nil {
		s.log.Error("failed to encode message", "error", err)
	}
}

// announce sends a notifications/message once job reaches a terminal state.
func (s *Server) announce(job *release.Job) {
	s.announcing.Add(1)
	go func() {
		defer s.announcing.Done()
		<-job.Done()

		level := "info"
		data := map[string]interface{}{"release_id": job.ID()}
		if p, ok := s.orch.Tracker().Get(job.ID()); ok {
			data["status"] = p.Status
			data["generated_images"] = p.GeneratedImages
			data["failed_images"] = p.FailedImages
			if p.Status == release.StatusFailed {
				level = "error"
				data["error"] = p.ErrorMessage
			}
		}
		s.send(MCPNotification{
			JSONRPC: "2.0",
			Method:  "notifications/message",
			Params: map[string]interface{}{
				"level":  level,
				"logger": "release",
				"data":   data,
			},
		})
	}()
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    Name,
				"version": Version,
			},
		},
	}
}
