package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/kaitorecca/guardian-redact/internal/common"
	"github.com/kaitorecca/guardian-redact/internal/services/llm"
	"github.com/kaitorecca/guardian-redact/internal/services/pdf"
	"github.com/kaitorecca/guardian-redact/internal/services/transport"
	"github.com/kaitorecca/guardian-redact/internal/storage"
)

func main() {
	configPath := os.Getenv("GUARDIAN_CONFIG")
	if configPath == "" {
		configPath = "guardian.toml"
	}

	var config *common.Config
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := common.LoadFromFile(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		config = loaded
	} else {
		config = common.NewDefaultConfig()
	}

	// stdout carries the MCP protocol, keep logging minimal
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer storageManager.Close()

	providers := llm.NewProviderFactory(&config.Gemini, &config.Claude, &config.LLM, storageManager.KeyValueStorage(), logger)
	defer providers.Close()

	redactor := pdf.NewRedactor("", logger)
	transportService, err := transport.NewService(&config.Transport, storageManager.TempFileStorage(), redactor, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize transport")
	}

	kit := &toolkit{
		config:    config,
		logger:    logger,
		providers: providers,
		inspector: pdf.NewInspector("", logger),
		transport: transportService,
	}

	mcpServer := server.NewMCPServer(
		"guardian-redact",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createScanDocumentTool(), handleScanDocument(kit))
	mcpServer.AddTool(createScanAudioTool(), handleScanAudio(kit))
	mcpServer.AddTool(createExportDocumentTool(), handleExportDocument(kit))

	// Blocks on stdio
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
