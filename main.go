package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"seekchat/chat"
	"seekchat/config"
	"seekchat/mcp"
	"seekchat/provider"
	"seekchat/storage"
	"seekchat/ui"
)

const (
	Version = "v0.01.00"
	License = "Apache-2.0"
)

const (
	idleServerTimeout = 15 * time.Minute
	shutdownTimeout   = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		showError("Configuration Error", fmt.Sprintf("Failed to load config: %v", err))
		os.Exit(1)
	}

	// Initialize debug logging after config is loaded
	logCloser := config.InitDebugLog(cfg.DataDir())
	defer logCloser.Close()
	logger := config.DebugLog

	store, err := storage.Open(cfg.DataDir(), logger)
	if err != nil {
		showError("Storage Error", fmt.Sprintf("Failed to open session storage: %v", err))
		os.Exit(1)
	}
	defer store.Close()

	servers := mcp.NewServerManager(cfg.MCPServers,
		mcp.WithLogger(logger),
		mcp.WithTokenStores(cfg.TokenStoreFor),
	)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		servers.Shutdown(ctx)
	}()

	registry := provider.NewRegistry(provider.WithLogger(logger))
	orchestrator := chat.NewOrchestrator(registry, servers,
		chat.WithMaxToolRounds(cfg.MaxToolRounds()),
		chat.WithOrchestratorLogger(logger),
	)
	service := chat.NewService(store, servers, orchestrator, chat.WithServiceLogger(logger))

	stopReaper := make(chan struct{})
	defer close(stopReaper)
	go func() {
		ticker := time.NewTicker(idleServerTimeout / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := servers.CloseIdle(idleServerTimeout); n > 0 {
					logger.Debug("closed idle tool servers", "count", n)
				}
			case <-stopReaper:
				return
			}
		}
	}()

	app := ui.New(ui.Deps{
		Config:  cfg,
		Store:   store,
		Chat:    service,
		Tools:   servers,
		Version: Version,
	})
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running seekchat: %v\n", err)
		os.Exit(1)
	}
}

func showError(title, message string) {
	p := tea.NewProgram(ui.NewErrorModal(title, message), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}
