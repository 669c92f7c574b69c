package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mark3labs/mcp-go/client/transport"
)

// FileTokenStore persists the OAuth token of one MCP server next to the
// credentials, sealed when the credential store is encrypted.
type FileTokenStore struct {
	serverID string
	dataDir  string
	security SecurityMethod
	encMgr   *EncryptionManager
	mu       sync.RWMutex
}

var _ transport.TokenStore = (*FileTokenStore)(nil)

// NewFileTokenStore creates a token store for serverID.
func NewFileTokenStore(serverID string, dataDir string, security SecurityMethod, encMgr *EncryptionManager) *FileTokenStore {
	return &FileTokenStore{
		serverID: serverID,
		dataDir:  dataDir,
		security: security,
		encMgr:   encMgr,
	}
}

// TokenStoreFor returns the token store for an MCP server. Servers fall
// back to an in-memory store when the encrypted store is not unlocked.
func (c *Config) TokenStoreFor(serverID string) transport.TokenStore {
	if c.CredentialStore == nil {
		return transport.NewMemoryTokenStore()
	}
	method := c.CredentialStore.GetMethod()
	encMgr := c.CredentialStore.GetEncryptionManager()
	if method == SecuritySSHKey && encMgr == nil {
		if err := c.CredentialStore.ensureEncryption(); err != nil {
			DebugLog.Warn("token store falls back to memory", "component", "config", "server", serverID, "error", err)
			return transport.NewMemoryTokenStore()
		}
		encMgr = c.CredentialStore.GetEncryptionManager()
	}
	return NewFileTokenStore(serverID, c.DataDir(), method, encMgr)
}

// GetToken loads the stored token. transport.ErrNoToken means none yet.
func (s *FileTokenStore) GetToken(ctx context.Context) (*transport.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path())
	if os.IsNotExist(err) {
		return nil, transport.ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	if s.security == SecuritySSHKey {
		if s.encMgr == nil {
			return nil, fmt.Errorf("encryption manager not initialized")
		}
		if data, err = s.encMgr.Decrypt(data); err != nil {
			return nil, fmt.Errorf("failed to decrypt token: %w", err)
		}
	}

	var token transport.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	return &token, nil
}

// SaveToken writes the token with 0600 permissions.
func (s *FileTokenStore) SaveToken(ctx context.Context, token *transport.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if s.security == SecuritySSHKey {
		if s.encMgr == nil {
			return fmt.Errorf("encryption manager not initialized")
		}
		if data, err = s.encMgr.Encrypt(data); err != nil {
			return fmt.Errorf("failed to encrypt token: %w", err)
		}
	}

	if err := EnsureDir(filepath.Dir(s.path())); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(s.path(), data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

func (s *FileTokenStore) path() string {
	ext := "json"
	if s.security == SecuritySSHKey {
		ext = "enc"
	}
	return filepath.Join(s.dataDir, "tokens", fmt.Sprintf("%s.%s", s.serverID, ext))
}
