package pdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"

	"github.com/kaitorecca/guardian-redact/internal/interfaces"
	"github.com/kaitorecca/guardian-redact/internal/models"
)

// Redactor writes redacted copies of PDFs.
// Shown characters under a box are replaced with spaces and a filled black
// rectangle is painted over each box. Text inside form XObjects is covered but not removed.
type Redactor struct {
	logger  arbor.ILogger
	tempDir string
}

var _ interfaces.PDFRedactor = (*Redactor)(nil)

func NewRedactor(tempDir string, logger arbor.ILogger) *Redactor {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "guardian-pdf")
	}
	return &Redactor{logger: logger, tempDir: tempDir}
}

// Redact writes inPath to outPath with the given boxes (top-left origin, native units) redacted.
// Boxes on pages outside the document are skipped.
func (r *Redactor) Redact(inPath, outPath string, boxes []models.Coordinates) error {
	dims, err := api.PageDimsFile(inPath)
	if err != nil {
		return fmt.Errorf("failed to read page dimensions: %w", err)
	}

	byPage := make(map[int][]models.Coordinates)
	for _, b := range boxes {
		if b.Unit < 1 || b.Unit > len(dims) {
			r.logger.Warn().Int("page", b.Unit).Int("page_count", len(dims)).Msg("Skipping redaction outside document")
			continue
		}
		byPage[b.Unit] = append(byPage[b.Unit], b)
	}

	if len(byPage) == 0 {
		return copyFile(inPath, outPath)
	}

	pages := make([]int, 0, len(byPage))
	selected := make([]string, 0, len(byPage))
	for p := range byPage {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	for _, p := range pages {
		selected = append(selected, strconv.Itoa(p))
	}

	contents, err := extractContents(inPath, r.tempDir, selected)
	if err != nil {
		return err
	}

	ctx, err := api.ReadContextFile(inPath)
	if err != nil {
		return fmt.Errorf("failed to read PDF context: %w", err)
	}

	for _, p := range pages {
		height := dims[p-1].Height
		scrubbed, removed := scrubText(contents[p], byPage[p], height)
		stream := redactedContent(scrubbed, byPage[p], height)

		if err := replacePageContent(ctx, p, stream); err != nil {
			return fmt.Errorf("failed to redact page %d: %w", p, err)
		}

		r.logger.Debug().
			Int("page", p).
			Int("boxes", len(byPage[p])).
			Int("characters_removed", removed).
			Msg("Page redacted")
	}

	if err := api.WriteContextFile(ctx, outPath); err != nil {
		return fmt.Errorf("failed to write redacted PDF: %w", err)
	}

	r.logger.Info().
		Str("output", filepath.Base(outPath)).
		Int("boxes", len(boxes)).
		Int("pages", len(pages)).
		Msg("Redacted PDF written")
	return nil
}

// scrubText blanks every shown character whose box intersects a redaction box
func scrubText(content []byte, boxes []models.Coordinates, pageHeight float64) ([]byte, int) {
	type edit struct {
		start, end int
		value      []byte
	}
	var edits []edit
	removed := 0

	for _, show := range parseTextShows(content) {
		for _, part := range show.Parts {
			value := append([]byte(nil), part.Value...)
			changed := false
			top := pageHeight - (part.Y + ascentRatio*part.Size)
			for i := range value {
				if value[i] == ' ' {
					continue
				}
				glyph := models.Coordinates{
					X:      part.X + part.Advance*float64(i),
					Y:      top,
					Width:  part.Advance,
					Height: part.Size,
				}
				if intersectsAny(glyph, boxes) {
					value[i] = ' '
					changed = true
					removed++
				}
			}
			if changed {
				edits = append(edits, edit{start: part.Start, end: part.End, value: encodeLiteral(value)})
			}
		}
	}

	if len(edits) == 0 {
		return content, 0
	}

	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })
	var out bytes.Buffer
	pos := 0
	for _, e := range edits {
		if e.start < pos {
			continue
		}
		out.Write(content[pos:e.start])
		out.Write(e.value)
		pos = e.end
	}
	out.Write(content[pos:])
	return out.Bytes(), removed
}

func intersectsAny(c models.Coordinates, boxes []models.Coordinates) bool {
	for _, b := range boxes {
		if c.X < b.X+b.Width && b.X < c.X+c.Width && c.Y < b.Y+b.Height && b.Y < c.Y+c.Height {
			return true
		}
	}
	return false
}

// redactedContent wraps the page content in a saved graphics state and paints the boxes after it
func redactedContent(content []byte, boxes []models.Coordinates, pageHeight float64) []byte {
	var b bytes.Buffer
	b.WriteString("q\n")
	b.Write(content)
	b.WriteString("\nQ\nq\n0 0 0 rg\n")
	for _, box := range boxes {
		// PDF user space has a bottom-left origin
		y := pageHeight - box.Y - box.Height
		fmt.Fprintf(&b, "%.2f %.2f %.2f %.2f re f\n", box.X, y, box.Width, box.Height)
	}
	b.WriteString("Q\n")
	return b.Bytes()
}

// replacePageContent replaces a page's content streams with a single new stream
func replacePageContent(ctx *model.Context, pageNr int, content []byte) error {
	d, _, _, err := ctx.PageDict(pageNr, false)
	if err != nil {
		return err
	}
	if d == nil {
		return fmt.Errorf("page dictionary not found")
	}

	sd, err := ctx.NewStreamDictForBuf(content)
	if err != nil {
		return err
	}
	if err := sd.Encode(); err != nil {
		return err
	}

	ir, err := ctx.IndRefForNewObject(*sd)
	if err != nil {
		return err
	}

	d.Update("Contents", *ir)
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(src), err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(dst), err)
	}
	return nil
}
