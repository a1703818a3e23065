package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/clinicore/medical-assistant/internal/bootstrap"
	"github.com/clinicore/medical-assistant/internal/config"
	"github.com/clinicore/medical-assistant/internal/observability/logging"
)

const (
	serverName    = "medical-assistant"
	serverVersion = "1.0.0"
)

func main() {
	cfg := config.Load()
	// stdout carries the MCP wire protocol, logs go to stderr.
	slog.SetDefault(logging.NewStderrJSONLogger("mcp", cfg.LogLevel))

	app, err := bootstrap.New(context.Background(), cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createSearchPassagesTool(), handleSearchPassages(app.Vectors))
	mcpServer.AddTool(createGetPatientDocumentsTool(), handleGetPatientDocuments(app.DocumentUC))
	mcpServer.AddTool(createPreviewContextTool(), handlePreviewContext(app.ChatUC))

	slog.Info("mcp_server_started", "name", serverName, "version", serverVersion)

	if err := server.ServeStdio(mcpServer); err != nil {
		slog.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
