package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/common"
	"github.com/kaitorecca/guardian-redact/internal/models"
	"github.com/kaitorecca/guardian-redact/internal/review"
	"github.com/kaitorecca/guardian-redact/internal/services/analysis"
	"github.com/kaitorecca/guardian-redact/internal/services/events"
	"github.com/kaitorecca/guardian-redact/internal/services/llm"
	"github.com/kaitorecca/guardian-redact/internal/services/orchestrator"
	"github.com/kaitorecca/guardian-redact/internal/services/pdf"
	"github.com/kaitorecca/guardian-redact/internal/services/status"
	"github.com/kaitorecca/guardian-redact/internal/services/transport"
)

const defaultMinConfidence = 0.5

// toolkit holds the long-lived services shared by every tool call
type toolkit struct {
	config    *common.Config
	logger    arbor.ILogger
	providers *llm.ProviderFactory
	inspector *pdf.Inspector
	transport *transport.Service
}

// run is the per-call pipeline; each tool call reviews in its own session
type run struct {
	session      *review.Session
	orchestrator *orchestrator.Service
	events       *events.Service
}

func (k *toolkit) newRun() *run {
	cfg := k.config
	eventService := events.NewService(k.logger)
	session := review.NewSession(cfg.Review.OverlayPadding, eventService, k.logger)

	analysisModel := cfg.Gemini.Model
	if cfg.LLM.DefaultProvider == common.LLMProviderClaude {
		analysisModel = cfg.Claude.Model
	}

	orch := orchestrator.NewService(
		session,
		status.NewService(eventService, k.logger),
		analysis.NewDocumentAnalyzer(k.inspector, k.providers, analysisModel, k.logger),
		analysis.NewAudioAnalyzer(k.providers, cfg.Gemini.Model, analysisModel, k.logger),
		eventService,
		common.Duration(cfg.Review.UnitTimeout, 2*time.Minute),
		k.logger,
	)
	return &run{session: session, orchestrator: orch, events: eventService}
}

func (r *run) close() {
	r.orchestrator.Close()
	r.events.Close()
}

// scanDocument validates the file, then analyzes every page synchronously
func (k *toolkit) scanDocument(ctx context.Context, r *run, path, profile string) (review.Source, error) {
	if filepath.Ext(path) != ".pdf" {
		return review.Source{}, fmt.Errorf("only PDF documents are supported: %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		return review.Source{}, fmt.Errorf("cannot read document: %w", err)
	}

	totalUnits, err := k.inspector.PageCount(path)
	if err != nil {
		return review.Source{}, fmt.Errorf("unreadable PDF: %w", err)
	}

	src := review.Source{Path: path, Name: filepath.Base(path), TotalUnits: totalUnits, Profile: profile}
	if err := r.orchestrator.ProcessDocument(ctx, src); err != nil {
		return src, err
	}
	return src, nil
}

func resolveProfile(requested, fallback string) (string, error) {
	profile := requested
	if profile == "" {
		profile = fallback
	}
	if profile != analysis.ProfileQuick && profile != analysis.ProfileDeep {
		return "", fmt.Errorf("unknown profile '%s' (use 'quick' or 'deep')", profile)
	}
	return profile, nil
}

// handleScanDocument implements the scan_document tool
func handleScanDocument(k *toolkit) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := request.RequireString("path")
		if err != nil {
			return nil, fmt.Errorf("path parameter is required: %w", err)
		}
		profile, err := resolveProfile(request.GetString("profile", ""), k.config.Review.DefaultProfile)
		if err != nil {
			return nil, err
		}

		r := k.newRun()
		defer r.close()

		src, err := k.scanDocument(ctx, r, path, profile)
		if err != nil {
			k.logger.Warn().Err(err).Str("path", path).Msg("scan_document failed")
			return nil, err
		}

		store := r.session.Store()
		markdown := formatDocumentScan(src, store.SortedByUnit(), store.Outcomes())
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(markdown)},
		}, nil
	}
}

// handleScanAudio implements the scan_audio tool
func handleScanAudio(k *toolkit) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := request.RequireString("path")
		if err != nil {
			return nil, fmt.Errorf("path parameter is required: %w", err)
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("cannot read recording: %w", err)
		}

		r := k.newRun()
		defer r.close()

		r.session.SetAudio(review.Source{Path: path, Name: filepath.Base(path)})
		result, err := r.orchestrator.ProcessAudio(ctx, path)
		if err != nil {
			k.logger.Warn().Err(err).Str("path", path).Msg("scan_audio failed")
			return nil, err
		}

		markdown := formatAudioScan(filepath.Base(path), result.Transcript, r.session.Engine().Detections())
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(markdown)},
		}, nil
	}
}

// handleExportDocument implements the export_document tool
func handleExportDocument(k *toolkit) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := request.RequireString("path")
		if err != nil {
			return nil, fmt.Errorf("path parameter is required: %w", err)
		}
		minConfidence := request.GetFloat("min_confidence", defaultMinConfidence)
		if minConfidence < 0 || minConfidence > 1 {
			return nil, fmt.Errorf("min_confidence must be between 0 and 1")
		}
		name := request.GetString("name", "")

		r := k.newRun()
		defer r.close()

		src, err := k.scanDocument(ctx, r, path, k.config.Review.DefaultProfile)
		if err != nil {
			k.logger.Warn().Err(err).Str("path", path).Msg("export_document scan failed")
			return nil, err
		}

		accepted := selectByConfidence(r.session, minConfidence)
		outPath, err := k.transport.ExportDocument(ctx, path, accepted, name)
		if err != nil {
			return nil, err
		}

		markdown := formatExport(src, outPath, minConfidence, accepted, r.session.Store().Total())
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(markdown)},
		}, nil
	}
}

// selectByConfidence accepts suggestions at or above the threshold and returns the accepted set
func selectByConfidence(session *review.Session, minConfidence float64) []models.DocumentSuggestion {
	store := session.Store()
	for _, sg := range store.SortedByUnit() {
		if sg.Confidence >= minConfidence && !sg.Accepted {
			session.ToggleSuggestion(sg.Coordinates.Unit, sg.ID)
		}
	}
	return store.Accepted()
}

