package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/interfaces"
)

var contentFilePattern = regexp.MustCompile(`Content_page_(\d+)`)

// Inspector reads page structure from PDFs using pdfcpu
type Inspector struct {
	logger  arbor.ILogger
	tempDir string
}

var _ interfaces.PDFInspector = (*Inspector)(nil)

// NewInspector creates a PDF inspector that extracts page content under tempDir
func NewInspector(tempDir string, logger arbor.ILogger) *Inspector {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "guardian-pdf")
	}
	return &Inspector{logger: logger, tempDir: tempDir}
}

// PageCount returns the number of pages
func (i *Inspector) PageCount(path string) (int, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF context: %w", err)
	}
	return ctx.PageCount, nil
}

// PageSizes returns every page's native size in points
func (i *Inspector) PageSizes(path string) ([]interfaces.PageSize, error) {
	dims, err := api.PageDimsFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read page dimensions: %w", err)
	}

	sizes := make([]interfaces.PageSize, 0, len(dims))
	for _, d := range dims {
		sizes = append(sizes, interfaces.PageSize{Width: d.Width, Height: d.Height})
	}
	return sizes, nil
}

// PageText returns the text runs of one page with top-left origin boxes
func (i *Inspector) PageText(path string, page int) ([]interfaces.TextRun, error) {
	sizes, err := i.PageSizes(path)
	if err != nil {
		return nil, err
	}
	if page < 1 || page > len(sizes) {
		return nil, fmt.Errorf("page %d out of range 1-%d", page, len(sizes))
	}

	content, err := i.pageContent(path, page)
	if err != nil {
		return nil, err
	}

	runs := textRuns(parseTextShows(content), sizes[page-1].Height)
	i.logger.Debug().
		Str("file", filepath.Base(path)).
		Int("page", page).
		Int("runs", len(runs)).
		Msg("Extracted page text")
	return runs, nil
}

// pageContent returns the decoded content stream of a page
func (i *Inspector) pageContent(path string, page int) ([]byte, error) {
	contents, err := extractContents(path, i.tempDir, []string{strconv.Itoa(page)})
	if err != nil {
		return nil, err
	}
	return contents[page], nil
}

// extractContents runs pdfcpu content extraction and returns decoded content by page number
func extractContents(path, tempDir string, pages []string) (map[int][]byte, error) {
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	outDir, err := os.MkdirTemp(tempDir, "content_")
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction directory: %w", err)
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(path, outDir, pages, model.NewDefaultConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to extract PDF content: %w", err)
	}

	files, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted content: %w", err)
	}

	contents := make(map[int][]byte)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		matches := contentFilePattern.FindStringSubmatch(file.Name())
		if len(matches) < 2 {
			continue
		}
		pageNum, _ := strconv.Atoi(matches[1])
		data, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read content of page %d: %w", pageNum, err)
		}
		contents[pageNum] = data
	}
	return contents, nil
}

// textRuns converts text operations to runs with top-left origin boxes
func textRuns(shows []textShow, pageHeight float64) []interfaces.TextRun {
	runs := make([]interfaces.TextRun, 0, len(shows))
	for _, show := range shows {
		text := show.text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		x, baseline, width, size, ok := show.bounds()
		if !ok {
			continue
		}
		runs = append(runs, interfaces.TextRun{
			Text:   text,
			X:      x,
			Y:      pageHeight - (baseline + ascentRatio*size),
			Width:  width,
			Height: size,
		})
	}
	return runs
}
