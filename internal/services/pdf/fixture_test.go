package pdf

import (
	"path/filepath"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/require"
)

type fixtureLine struct {
	X, Y float64 // top-left origin, points
	Size float64
	Text string
}

// writeFixturePDF writes a US Letter PDF with one page per entry in pages
func writeFixturePDF(t *testing.T, pages ...[]fixtureLine) string {
	t.Helper()

	doc := fpdf.New("P", "pt", "Letter", "")
	for _, lines := range pages {
		doc.AddPage()
		for _, line := range lines {
			doc.SetFont("Helvetica", "", line.Size)
			doc.Text(line.X, line.Y, line.Text)
		}
	}

	path := filepath.Join(t.TempDir(), "fixture.pdf")
	require.NoError(t, doc.OutputFileAndClose(path))
	return path
}
