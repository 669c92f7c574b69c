package mcp

import (
	"os/exec"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// TransportType selects how a tool server is reached.
type TransportType string

const (
	TransportStdio          TransportType = "stdio"
	TransportSSE            TransportType = "sse"
	TransportStreamableHTTP TransportType = "streamable-http"
)

// ServerConfig describes one configured MCP tool server.
type ServerConfig struct {
	ID      string            `toml:"id"`
	Name    string            `toml:"name"`
	Type    TransportType     `toml:"type"`
	Command string            `toml:"command"`
	Args    []string          `toml:"args"`
	Env     map[string]string `toml:"env"`
	URL     string            `toml:"url"`
	Headers map[string]string `toml:"headers"`
	Active  bool              `toml:"active"`
	// OAuth enables the OAuth flow for sse and streamable-http servers.
	OAuth *OAuthSettings `toml:"oauth,omitempty"`
}

// OAuthSettings are the client registration details for a remote server.
type OAuthSettings struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret,omitempty"`
	RedirectURI  string   `toml:"redirect_uri"`
	Scopes       []string `toml:"scopes,omitempty"`
}

// DisplayName returns Name, falling back to ID.
func (c ServerConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// commandLine returns the executable and arguments for a stdio server. A
// server configured with only a URL holds the whole command line there.
func (c ServerConfig) commandLine() (string, []string) {
	if c.Command != "" {
		return c.Command, c.Args
	}
	fields := strings.Fields(c.URL)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], append(fields[1:], c.Args...)
}

// serverConn is a live connection to one server.
type serverConn struct {
	client   *client.Client
	cmd      *exec.Cmd
	tools    []mcptypes.Tool
	lastUsed time.Time
}
