package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"seekchat/model"
)

// ServerManager is the tool catalog backed by MCP servers. Connections are
// opened on first use and kept in a pool keyed by server id.
type ServerManager struct {
	mu      sync.Mutex
	servers []ServerConfig
	conns   map[string]*serverConn
	logger  *slog.Logger
	dial    Dialer
	tokens  TokenStores
	now     func() time.Time
}

// TokenStores returns where the OAuth token of a server is kept.
type TokenStores func(serverID string) transport.TokenStore

// ManagerOption configures a ServerManager.
type ManagerOption func(*ServerManager)

// WithLogger sets the manager's logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *ServerManager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithDialer replaces how servers are reached.
func WithDialer(d Dialer) ManagerOption {
	return func(m *ServerManager) {
		if d != nil {
			m.dial = d
		}
	}
}

// WithTokenStores sets the OAuth token persistence for remote servers.
func WithTokenStores(t TokenStores) ManagerOption {
	return func(m *ServerManager) {
		m.tokens = t
	}
}

// NewServerManager creates a manager for the given servers. Nothing is
// started until tools are listed or called.
func NewServerManager(servers []ServerConfig, opts ...ManagerOption) *ServerManager {
	m := &ServerManager{
		conns:  make(map[string]*serverConn),
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "mcp")
	if m.dial == nil {
		m.dial = dialServer(m.logger, m.tokens)
	}
	m.SetServers(servers)
	return m
}

// SetServers replaces the configured servers. Pooled connections to servers
// that were removed or deactivated are closed.
func (m *ServerManager) SetServers(servers []ServerConfig) {
	m.mu.Lock()
	m.servers = append([]ServerConfig(nil), servers...)
	var stale []string
	for id := range m.conns {
		if cfg, ok := m.lookup(id); !ok || !cfg.Active {
			stale = append(stale, id)
		}
	}
	m.mu.Unlock()

	for _, id := range stale {
		m.disconnect(id)
	}
}

// Servers returns the configured servers.
func (m *ServerManager) Servers() []ServerConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ServerConfig(nil), m.servers...)
}

func (m *ServerManager) lookup(id string) (ServerConfig, bool) {
	for _, s := range m.servers {
		if s.ID == id {
			return s, true
		}
	}
	return ServerConfig{}, false
}

// connection returns the pooled connection for cfg, opening it when
// absent.
func (m *ServerManager) connection(ctx context.Context, cfg ServerConfig) (*serverConn, error) {
	m.mu.Lock()
	if conn, ok := m.conns[cfg.ID]; ok {
		conn.lastUsed = m.now()
		m.mu.Unlock()
		return conn, nil
	}
	m.mu.Unlock()

	m.logger.Info("connecting to MCP server", "server", cfg.ID, "type", cfg.Type)
	conn, err := openConn(ctx, m.dial, m.logger, cfg)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.conns[cfg.ID]; ok {
		// Another caller connected first.
		go closeConn(context.Background(), m.logger, cfg.ID, conn)
		existing.lastUsed = m.now()
		return existing, nil
	}
	conn.lastUsed = m.now()
	m.conns[cfg.ID] = conn
	return conn, nil
}

func (m *ServerManager) disconnect(id string) {
	m.mu.Lock()
	conn, ok := m.conns[id]
	delete(m.conns, id)
	m.mu.Unlock()
	if ok {
		closeConn(context.Background(), m.logger, id, conn)
	}
}

// ListActiveTools returns a snapshot of the tools of every active server.
// A server that cannot be reached is logged and skipped. Tool ids are the
// MCP tool names; a name already taken by an earlier server is skipped.
func (m *ServerManager) ListActiveTools(ctx context.Context) ([]model.ToolDescriptor, error) {
	var (
		tools []model.ToolDescriptor
		seen  = make(map[string]string)
	)
	for _, cfg := range m.Servers() {
		if !cfg.Active {
			continue
		}
		conn, err := m.connection(ctx, cfg)
		if err != nil {
			if ctx.Err() != nil {
				return nil, model.Cancelled(ctx.Err())
			}
			m.logger.Warn("skipping unreachable MCP server", "server", cfg.ID, "error", err)
			continue
		}
		for _, t := range conn.tools {
			if owner, dup := seen[t.Name]; dup {
				m.logger.Warn("duplicate tool name, keeping first", "tool", t.Name, "server", cfg.ID, "owner", owner)
				continue
			}
			seen[t.Name] = cfg.ID
			tools = append(tools, toDescriptor(cfg, t))
		}
	}
	return tools, nil
}

// CallTool runs toolID on serverID. Failures are reported in the returned
// execution rather than as an error. A call that fails with a connection
// error is retried once on a fresh connection.
func (m *ServerManager) CallTool(ctx context.Context, serverID, toolID string, args map[string]any) model.ToolExecution {
	return m.callTool(ctx, serverID, toolID, args, 1)
}

func (m *ServerManager) callTool(ctx context.Context, serverID, toolID string, args map[string]any, retries int) model.ToolExecution {
	m.mu.Lock()
	cfg, ok := m.lookup(serverID)
	m.mu.Unlock()
	if !ok {
		return failed(fmt.Errorf("MCP server %s not found", serverID))
	}
	if !cfg.Active {
		return failed(fmt.Errorf("MCP server %s is not active", cfg.DisplayName()))
	}
	if args == nil {
		args = map[string]any{}
	}

	conn, err := m.connection(ctx, cfg)
	if err == nil {
		var result *mcptypes.CallToolResult
		result, err = m.invoke(ctx, conn, toolID, args)
		if err == nil {
			return toExecution(result)
		}
	}

	if ctx.Err() != nil {
		return failed(model.Cancelled(ctx.Err()))
	}
	if retries > 0 && isConnectionError(err) {
		m.logger.Warn("MCP connection error, reconnecting", "server", serverID, "error", err)
		m.disconnect(serverID)
		return m.callTool(ctx, serverID, toolID, args, retries-1)
	}
	m.logger.Error("tool call failed", "server", serverID, "tool", toolID, "error", err)
	return failed(err)
}

func (m *ServerManager) invoke(ctx context.Context, conn *serverConn, toolID string, args map[string]any) (*mcptypes.CallToolResult, error) {
	listed, err := conn.client.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	found := false
	for _, t := range listed.Tools {
		if t.Name == toolID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", model.ErrToolNotFound, toolID)
	}

	m.logger.Debug("calling tool", "tool", toolID, "args", args)
	return conn.client.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      toolID,
			Arguments: args,
		},
	})
}

// TestServer connects to cfg without pooling the connection and returns
// the tools it offers.
func (m *ServerManager) TestServer(ctx context.Context, cfg ServerConfig) ([]model.ToolDescriptor, error) {
	if (cfg.Type == TransportSSE || cfg.Type == TransportStreamableHTTP) && !strings.HasPrefix(cfg.URL, "http") {
		return nil, fmt.Errorf("invalid URL %q", cfg.URL)
	}
	conn, err := openConn(ctx, m.dial, m.logger, cfg)
	if err != nil {
		return nil, err
	}
	defer closeConn(context.Background(), m.logger, cfg.ID, conn)

	tools := make([]model.ToolDescriptor, 0, len(conn.tools))
	for _, t := range conn.tools {
		tools = append(tools, toDescriptor(cfg, t))
	}
	return tools, nil
}

// CloseIdle closes pooled connections unused for longer than maxIdle and
// returns how many were closed.
func (m *ServerManager) CloseIdle(maxIdle time.Duration) int {
	m.mu.Lock()
	var idle []string
	for id, conn := range m.conns {
		if m.now().Sub(conn.lastUsed) > maxIdle {
			idle = append(idle, id)
		}
	}
	m.mu.Unlock()

	for _, id := range idle {
		m.logger.Info("closing idle MCP connection", "server", id)
		m.disconnect(id)
	}
	return len(idle)
}

// Connected reports whether a pooled connection to id exists.
func (m *ServerManager) Connected(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.conns[id]
	return ok
}

// Shutdown closes every pooled connection in parallel.
func (m *ServerManager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	conns := m.conns
	m.conns = make(map[string]*serverConn)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for id, conn := range conns {
		wg.Add(1)
		go func(id string, conn *serverConn) {
			defer wg.Done()
			closeConn(ctx, m.logger, id, conn)
		}(id, conn)
	}
	wg.Wait()
}

func toDescriptor(cfg ServerConfig, t mcptypes.Tool) model.ToolDescriptor {
	return model.ToolDescriptor{
		ID:          t.Name,
		Name:        t.Name,
		Description: t.Description,
		ServerID:    cfg.ID,
		ServerName:  cfg.DisplayName(),
		Parameters:  toSchema(t),
	}
}

func toSchema(t mcptypes.Tool) model.ToolSchema {
	schema := model.ToolSchema{
		Type:       t.InputSchema.Type,
		Properties: t.InputSchema.Properties,
		Required:   t.InputSchema.Required,
	}
	if len(t.RawInputSchema) > 0 {
		var raw model.ToolSchema
		if err := json.Unmarshal(t.RawInputSchema, &raw); err == nil {
			schema = raw
		}
	}
	if schema.Type == "" {
		schema.Type = "object"
	}
	if schema.Properties == nil {
		schema.Properties = map[string]any{}
	}
	return schema
}

func toExecution(result *mcptypes.CallToolResult) model.ToolExecution {
	if result == nil {
		return model.ToolExecution{Success: true}
	}
	if result.IsError {
		msg := resultText(result)
		if msg == "" {
			msg = "tool reported an error"
		}
		return model.ToolExecution{Success: false, Result: result, Message: msg}
	}
	return model.ToolExecution{Success: true, Result: result}
}

// resultText joins the text items of a tool result.
func resultText(result *mcptypes.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		switch tc := c.(type) {
		case mcptypes.TextContent:
			parts = append(parts, tc.Text)
		case *mcptypes.TextContent:
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func failed(err error) model.ToolExecution {
	return model.ToolExecution{Success: false, Message: err.Error()}
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection") || strings.Contains(msg, "transport")
}
