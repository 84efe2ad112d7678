package pdf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestInspector_PageCountAndSizes(t *testing.T) {
	path := writeFixturePDF(t,
		[]fixtureLine{{X: 72, Y: 100, Size: 12, Text: "first page"}},
		[]fixtureLine{{X: 72, Y: 100, Size: 12, Text: "second page"}},
	)
	inspector := NewInspector(t.TempDir(), arbor.NewNoOpLogger())

	count, err := inspector.PageCount(path)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	sizes, err := inspector.PageSizes(path)
	require.NoError(t, err)
	require.Len(t, sizes, 2)
	assert.InDelta(t, 612, sizes[0].Width, 0.5)
	assert.InDelta(t, 792, sizes[0].Height, 0.5)
}

func TestInspector_PageText(t *testing.T) {
	path := writeFixturePDF(t,
		[]fixtureLine{{X: 72, Y: 100, Size: 12, Text: "Cover"}},
		[]fixtureLine{
			{X: 72, Y: 100, Size: 12, Text: "Contact John Smith at 555-1234"},
			{X: 72, Y: 140, Size: 10, Text: "Account 12345678"},
		},
	)
	inspector := NewInspector(t.TempDir(), arbor.NewNoOpLogger())

	runs, err := inspector.PageText(path, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "Contact John Smith at 555-1234", runs[0].Text)
	assert.InDelta(t, 72, runs[0].X, 0.01)
	// baseline 692 in PDF space, ascent 0.8em above it, flipped to a top-left origin
	assert.InDelta(t, 792-(692+0.8*12), runs[0].Y, 0.01)
	assert.InDelta(t, 12, runs[0].Height, 0.01)
	assert.InDelta(t, 30*6, runs[0].Width, 0.01)

	assert.Equal(t, "Account 12345678", runs[1].Text)
	assert.Greater(t, runs[1].Y, runs[0].Y)
}

func TestInspector_PageTextOutOfRange(t *testing.T) {
	path := writeFixturePDF(t, []fixtureLine{{X: 72, Y: 100, Size: 12, Text: "only"}})
	inspector := NewInspector(t.TempDir(), arbor.NewNoOpLogger())

	for _, page := range []int{0, 2} {
		_, err := inspector.PageText(path, page)
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "out of range"))
	}
}

func TestInspector_MissingFile(t *testing.T) {
	inspector := NewInspector(t.TempDir(), arbor.NewNoOpLogger())
	_, err := inspector.PageCount("/nonexistent/file.pdf")
	assert.Error(t, err)
}
