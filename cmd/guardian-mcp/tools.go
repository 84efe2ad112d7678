package main

import "github.com/mark3labs/mcp-go/mcp"

func createScanDocumentTool() mcp.Tool {
	return mcp.NewTool("scan_document",
		mcp.WithDescription("Analyze a PDF page by page and list the PII redaction suggestions found on each page."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute path to the PDF file"),
		),
		mcp.WithString("profile",
			mcp.Description("Analysis depth: 'quick' (names, contacts, IDs) or 'deep' (also indirect identifiers). Defaults to the configured profile."),
		),
	)
}

func createScanAudioTool() mcp.Tool {
	return mcp.NewTool("scan_audio",
		mcp.WithDescription("Transcribe an audio recording and list the PII detected in it with time ranges."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute path to the audio file (mp3, wav, m4a, aac, ogg, flac, webm)"),
		),
	)
}

func createExportDocumentTool() mcp.Tool {
	return mcp.NewTool("export_document",
		mcp.WithDescription("Scan a PDF, accept every suggestion at or above a confidence threshold and write a redacted copy."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute path to the PDF file"),
		),
		mcp.WithNumber("min_confidence",
			mcp.Description("Minimum confidence (0-1) for a suggestion to be applied (default: 0.5)"),
		),
		mcp.WithString("name",
			mcp.Description("File name for the redacted output (default: redacted_<original>)"),
		),
	)
}
