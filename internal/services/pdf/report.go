package pdf

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/kaitorecca/guardian-redact/internal/models"
)

// ReviewSummary is the state of a review at the time a report is requested
type ReviewSummary struct {
	DocumentName string
	Profile      string
	TotalUnits   int
	Suggestions  []models.DocumentSuggestion
	Outcomes     []models.UnitOutcome
	AudioName    string
	Detections   []models.AudioDetection
	Actions      []models.RedactionAction
	GeneratedAt  time.Time
}

// ReportService renders review summaries as PDF
type ReportService struct {
	logger arbor.ILogger
}

func NewReportService(logger arbor.ILogger) *ReportService {
	return &ReportService{logger: logger}
}

// BuildReviewReport renders the summary as markdown and then as PDF
func (s *ReportService) BuildReviewReport(summary ReviewSummary) ([]byte, error) {
	markdown := ReviewMarkdown(summary)

	s.logger.Debug().
		Int("markdown_len", len(markdown)).
		Int("suggestions", len(summary.Suggestions)).
		Msg("Rendering review report")

	data, err := s.render(markdown, "Redaction review")
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to render review report")
		return nil, err
	}
	return data, nil
}

// ReviewMarkdown formats a review summary as markdown
func ReviewMarkdown(summary ReviewSummary) string {
	var b strings.Builder

	generated := summary.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	b.WriteString("# Redaction review\n\n")
	if summary.DocumentName != "" {
		fmt.Fprintf(&b, "**Document:** %s\n\n", summary.DocumentName)
	}
	fmt.Fprintf(&b, "**Generated:** %s\n\n", generated.UTC().Format(time.RFC3339))

	if summary.DocumentName != "" || len(summary.Suggestions) > 0 {
		accepted := 0
		for _, sg := range summary.Suggestions {
			if sg.Accepted {
				accepted++
			}
		}

		b.WriteString("## Summary\n\n")
		fmt.Fprintf(&b, "- Pages: %d\n", summary.TotalUnits)
		if summary.Profile != "" {
			fmt.Fprintf(&b, "- Profile: %s\n", summary.Profile)
		}
		fmt.Fprintf(&b, "- Suggestions: %d\n", len(summary.Suggestions))
		fmt.Fprintf(&b, "- Accepted: %d\n\n", accepted)

		b.WriteString("## By category\n\n")
		b.WriteString("| Category | Suggested | Accepted |\n|---|---|---|\n")
		for _, category := range models.DocumentCategories {
			total, acc := 0, 0
			for _, sg := range summary.Suggestions {
				if sg.Category != category {
					continue
				}
				total++
				if sg.Accepted {
					acc++
				}
			}
			if total > 0 {
				fmt.Fprintf(&b, "| %s | %d | %d |\n", category, total, acc)
			}
		}
		b.WriteString("\n")

		if len(summary.Outcomes) > 0 {
			outcomes := append([]models.UnitOutcome(nil), summary.Outcomes...)
			sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Unit < outcomes[j].Unit })

			b.WriteString("## Pages\n\n")
			b.WriteString("| Page | Result | Suggestions | Error |\n|---|---|---|---|\n")
			for _, o := range outcomes {
				fmt.Fprintf(&b, "| %d | %s | %d | %s |\n", o.Unit, o.State, o.SuggestionCount, tableCell(o.Error))
			}
			b.WriteString("\n")
		}

		if accepted > 0 {
			b.WriteString("## Accepted redactions\n\n")
			b.WriteString("| Page | Category | Confidence | Text |\n|---|---|---|---|\n")
			for _, sg := range summary.Suggestions {
				if !sg.Accepted {
					continue
				}
				fmt.Fprintf(&b, "| %d | %s | %.2f | %s |\n", sg.Coordinates.Unit, sg.Category, sg.Confidence, tableCell(sg.Text))
			}
			b.WriteString("\n")
		}
	}

	if summary.AudioName != "" {
		fmt.Fprintf(&b, "## Audio: %s\n\n", summary.AudioName)
		fmt.Fprintf(&b, "- Detections: %d\n", len(summary.Detections))
		fmt.Fprintf(&b, "- Redactions: %d\n\n", len(summary.Actions))

		if len(summary.Actions) > 0 {
			b.WriteString("| Start | End | Treatment | Source |\n|---|---|---|---|\n")
			for _, a := range summary.Actions {
				source := a.SourceDetectionID
				if a.Manual() {
					source = "manual"
				}
				fmt.Fprintf(&b, "| %.2f | %.2f | %s | %s |\n", a.StartTime, a.EndTime, a.Action, source)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func tableCell(s string) string {
	s = strings.ReplaceAll(s, "|", "/")
	s = strings.ReplaceAll(s, "\n", " ")
	if s == "" {
		return "-"
	}
	return s
}

func (s *ReportService) render(markdown, title string) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle(title, true)
	doc.SetMargins(10, 10, 10)
	doc.SetAutoPageBreak(true, 10)
	doc.AddPage()
	doc.SetFont("Arial", "", 9)

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	source := []byte(markdown)
	root := md.Parser().Parse(text.NewReader(source))

	r := &reportRenderer{
		pdf:    doc,
		source: source,
		tr:     doc.UnicodeTranslatorFromDescriptor(""),
		size:   9,
	}
	if err := ast.Walk(root, r.walk); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}
	return buf.Bytes(), nil
}

type reportRenderer struct {
	pdf       *fpdf.Fpdf
	source    []byte
	tr        func(string) string
	size      float64
	bold      bool
	italic    bool
	listLevel int
}

func (r *reportRenderer) setFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont("Arial", style, r.size)
}

func (r *reportRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			r.pdf.Ln(4)
			size := 10.0
			switch node.Level {
			case 1:
				size = 14
			case 2:
				size = 12
			}
			r.pdf.SetFont("Arial", "B", size)
		} else {
			r.pdf.Ln(6)
			r.setFont()
		}
	case *ast.Paragraph:
		if !entering && r.listLevel == 0 {
			r.pdf.Ln(6)
		}
	case *ast.Text:
		if entering {
			r.pdf.Write(5, r.tr(string(node.Segment.Value(r.source))))
			if node.SoftLineBreak() {
				r.pdf.Write(5, " ")
			}
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.setFont()
	case *ast.List:
		if entering {
			r.listLevel++
		} else {
			r.listLevel--
			if r.listLevel == 0 {
				r.pdf.Ln(7)
			}
		}
	case *ast.ListItem:
		if entering {
			if node.PreviousSibling() != nil {
				r.pdf.Ln(5)
			}
			r.pdf.SetX(10 + float64(r.listLevel)*5)
			r.pdf.Write(5, "- ")
		}
	case *extast.Table:
		if entering {
			r.table(node)
			return ast.WalkSkipChildren, nil
		}
	}
	return ast.WalkContinue, nil
}

func (r *reportRenderer) table(n *extast.Table) {
	var rows [][]string
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		var row []string
		for cell := child.FirstChild(); cell != nil; cell = cell.NextSibling() {
			row = append(row, r.tr(string(cell.Text(r.source))))
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	const (
		pageWidth  = 190.0
		lineHeight = 4.0
	)
	cols := len(rows[0])

	r.pdf.SetFont("Arial", "", 8)
	widths := make([]float64, cols)
	total := 0.0
	for c := 0; c < cols; c++ {
		for _, row := range rows {
			if c < len(row) {
				if w := r.pdf.GetStringWidth(row[c]) + 4; w > widths[c] {
					widths[c] = w
				}
			}
		}
		if widths[c] < 15 {
			widths[c] = 15
		}
		total += widths[c]
	}
	if total > pageWidth {
		for c := range widths {
			widths[c] *= pageWidth / total
		}
	}

	_, pageHeight := r.pdf.GetPageSize()
	_, _, _, bottom := r.pdf.GetMargins()

	for i, row := range rows {
		if i == 0 {
			r.pdf.SetFont("Arial", "B", 8)
			r.pdf.SetFillColor(230, 230, 230)
		} else {
			r.pdf.SetFont("Arial", "", 8)
		}

		lines := make([][]string, cols)
		height := lineHeight
		for c := 0; c < cols; c++ {
			cell := ""
			if c < len(row) {
				cell = row[c]
			}
			lines[c] = r.pdf.SplitText(cell, widths[c]-2)
			if h := float64(len(lines[c])) * lineHeight; h > height {
				height = h
			}
		}
		height += 2

		x, y := r.pdf.GetX(), r.pdf.GetY()
		if y+height > pageHeight-bottom {
			r.pdf.AddPage()
			y = r.pdf.GetY()
		}

		for c := 0; c < cols; c++ {
			style := "D"
			if i == 0 {
				style = "FD"
			}
			r.pdf.Rect(x, y, widths[c], height, style)
			for l, line := range lines[c] {
				r.pdf.Text(x+1, y+1+float64(l+1)*lineHeight-1, line)
			}
			x += widths[c]
		}
		r.pdf.SetXY(10, y+height)
	}

	r.pdf.Ln(3)
	r.setFont()
}
