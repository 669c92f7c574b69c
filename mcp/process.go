package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

const (
	protocolVersion = "2025-06-18"
	clientName      = "seekchat-client"
	clientVersion   = "1.0.0"
)

// Dialer opens an uninitialized client for a server. The returned command
// is the spawned process for stdio servers and nil otherwise.
type Dialer func(ctx context.Context, cfg ServerConfig) (*client.Client, *exec.Cmd, error)

// dialServer is the default Dialer.
func dialServer(logger *slog.Logger, tokens TokenStores) Dialer {
	return func(ctx context.Context, cfg ServerConfig) (*client.Client, *exec.Cmd, error) {
		switch cfg.Type {
		case TransportStdio, "":
			return dialStdio(logger, cfg)
		case TransportSSE:
			c, err := dialSSE(ctx, logger, cfg, tokens)
			return c, nil, err
		case TransportStreamableHTTP:
			c, err := dialStreamableHTTP(ctx, logger, cfg, tokens)
			return c, nil, err
		default:
			return nil, nil, fmt.Errorf("unsupported MCP server type: %s", cfg.Type)
		}
	}
}

func dialStdio(logger *slog.Logger, cfg ServerConfig) (*client.Client, *exec.Cmd, error) {
	command, args := cfg.commandLine()
	path, err := resolveCommand(command)
	if err != nil {
		return nil, nil, err
	}

	var spawned *exec.Cmd
	cmdFunc := func(ctx context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Env = env
		spawned = cmd
		return cmd, nil
	}

	logger.Debug("starting stdio server", "server", cfg.ID, "command", path, "args", args)
	c, err := client.NewStdioMCPClientWithOptions(path, stdioEnv(cfg.Env), args, transport.WithCommandFunc(cmdFunc))
	if err != nil {
		return nil, nil, err
	}
	if spawned != nil && spawned.Process != nil {
		logger.Debug("stdio server started", "server", cfg.ID, "pid", spawned.Process.Pid)
	}
	return c, spawned, nil
}

// oauthConfig builds the OAuth client configuration for a server, or nil
// when the server does not use OAuth.
func oauthConfig(cfg ServerConfig, tokens TokenStores) *client.OAuthConfig {
	if cfg.OAuth == nil {
		return nil
	}
	var store transport.TokenStore
	if tokens != nil {
		store = tokens(cfg.ID)
	}
	if store == nil {
		store = transport.NewMemoryTokenStore()
	}
	return &client.OAuthConfig{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		RedirectURI:  cfg.OAuth.RedirectURI,
		Scopes:       cfg.OAuth.Scopes,
		TokenStore:   store,
		PKCEEnabled:  true,
	}
}

func dialSSE(ctx context.Context, logger *slog.Logger, cfg ServerConfig, tokens TokenStores) (*client.Client, error) {
	var opts []transport.ClientOption
	if len(cfg.Headers) > 0 {
		opts = append(opts, transport.WithHeaders(cfg.Headers))
	}
	var (
		c   *client.Client
		err error
	)
	if oauth := oauthConfig(cfg, tokens); oauth != nil {
		c, err = client.NewOAuthSSEClient(cfg.URL, *oauth, opts...)
	} else {
		c, err = client.NewSSEMCPClient(cfg.URL, opts...)
	}
	if err != nil {
		return nil, err
	}
	// The event stream outlives the call that opened it.
	if err := c.GetTransport().Start(context.WithoutCancel(ctx)); err != nil {
		return nil, fmt.Errorf("failed to start SSE transport: %w", err)
	}
	logger.Debug("started SSE transport", "server", cfg.ID, "url", cfg.URL)
	return c, nil
}

func dialStreamableHTTP(ctx context.Context, logger *slog.Logger, cfg ServerConfig, tokens TokenStores) (*client.Client, error) {
	var opts []transport.StreamableHTTPCOption
	if len(cfg.Headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
	}
	var (
		c   *client.Client
		err error
	)
	if oauth := oauthConfig(cfg, tokens); oauth != nil {
		c, err = client.NewOAuthStreamableHttpClient(cfg.URL, *oauth, opts...)
	} else {
		c, err = client.NewStreamableHttpClient(cfg.URL, opts...)
	}
	if err != nil {
		return nil, err
	}
	if err := c.GetTransport().Start(context.WithoutCancel(ctx)); err != nil {
		return nil, fmt.Errorf("failed to start HTTP transport: %w", err)
	}
	logger.Debug("started streamable HTTP transport", "server", cfg.ID, "url", cfg.URL)
	return c, nil
}

// openConn dials a server, performs the MCP handshake and lists its tools.
func openConn(ctx context.Context, dial Dialer, logger *slog.Logger, cfg ServerConfig) (*serverConn, error) {
	c, cmd, err := dial(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.DisplayName(), err)
	}
	conn := &serverConn{client: c, cmd: cmd, lastUsed: time.Now()}

	_, err = c.Initialize(ctx, mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: protocolVersion,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    clientName,
				Version: clientVersion,
			},
		},
	})
	if err != nil {
		closeConn(context.Background(), logger, cfg.ID, conn)
		return nil, fmt.Errorf("failed to initialize %s: %w", cfg.DisplayName(), err)
	}

	tools, err := c.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		closeConn(context.Background(), logger, cfg.ID, conn)
		return nil, fmt.Errorf("failed to list tools for %s: %w", cfg.DisplayName(), err)
	}
	conn.tools = tools.Tools
	return conn, nil
}

// closeConn closes the client, waiting at most one second, and kills a
// stdio process whose client did not close cleanly.
func closeConn(ctx context.Context, logger *slog.Logger, id string, conn *serverConn) {
	closed := false
	if conn.client != nil {
		closeCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- conn.client.Close()
		}()

		select {
		case err := <-done:
			if err != nil {
				logger.Debug("error closing client", "server", id, "error", err)
			} else {
				closed = true
			}
		case <-closeCtx.Done():
			logger.Debug("close timed out", "server", id)
		}
	}

	if !closed && conn.cmd != nil && conn.cmd.Process != nil {
		if err := conn.cmd.Process.Kill(); err != nil {
			logger.Debug("error killing server process", "server", id, "pid", conn.cmd.Process.Pid, "error", err)
		}
	}
}
