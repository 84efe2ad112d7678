package interfaces

import "github.com/kaitorecca/guardian-redact/internal/models"

// PageSize is a page's native size in PDF points
type PageSize struct {
	Width  float64
	Height float64
}

// TextRun is a run of text shown on a page with its native box (top-left origin)
type TextRun struct {
	Text   string
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// PDFInspector reads page structure from a PDF
type PDFInspector interface {
	PageCount(path string) (int, error)
	PageSizes(path string) ([]PageSize, error)
	PageText(path string, page int) ([]TextRun, error)
}

// PDFRedactor writes a copy of a PDF with opaque boxes over the given rectangles
type PDFRedactor interface {
	Redact(inPath, outPath string, boxes []models.Coordinates) error
}
