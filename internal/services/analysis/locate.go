package analysis

import (
	"strings"

	"github.com/kaitorecca/guardian-redact/internal/interfaces"
	"github.com/kaitorecca/guardian-redact/internal/models"
)

// minWordMatchScore is the lowest fuzzy score accepted when no run contains the text exactly
const minWordMatchScore = 0.3

// Locate finds the native box of target on a page.
// An exact (case-insensitive) occurrence inside a run wins; otherwise the best scoring
// single word is used if it scores above minWordMatchScore. Boxes inside a run are
// interpolated by character offset.
func Locate(target string, runs []interfaces.TextRun) (models.Coordinates, bool) {
	needle := strings.ToLower(strings.TrimSpace(target))
	if needle == "" {
		return models.Coordinates{}, false
	}

	for _, run := range runs {
		haystack := strings.ToLower(run.Text)
		if idx := strings.Index(haystack, needle); idx >= 0 {
			return subBox(run, idx, len(needle)), true
		}
	}

	best, bestScore := interfaces.TextRun{}, 0.0
	targetWords := strings.Fields(needle)
	for _, run := range runs {
		for _, word := range splitWords(run) {
			score := wordScore(needle, targetWords, strings.ToLower(word.Text))
			if score > bestScore {
				best, bestScore = word, score
			}
		}
	}

	if bestScore <= minWordMatchScore {
		return models.Coordinates{}, false
	}
	return models.Coordinates{X: best.X, Y: best.Y, Width: best.Width, Height: best.Height}, true
}

func wordScore(needle string, targetWords []string, word string) float64 {
	if word == "" {
		return 0
	}
	for _, tw := range targetWords {
		if tw == word {
			return 1.0
		}
	}
	if strings.Contains(needle, word) || strings.Contains(word, needle) {
		shorter, longer := len(needle), len(word)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		return float64(shorter) / float64(longer)
	}
	if len(targetWords) > 0 && strings.Contains(word, targetWords[0]) {
		return 0.8
	}
	return 0
}

// splitWords breaks a run into words with interpolated boxes
func splitWords(run interfaces.TextRun) []interfaces.TextRun {
	var words []interfaces.TextRun
	start := -1
	for i := 0; i <= len(run.Text); i++ {
		space := i == len(run.Text) || run.Text[i] == ' ' || run.Text[i] == '\t'
		if !space && start < 0 {
			start = i
		}
		if space && start >= 0 {
			box := subBox(run, start, i-start)
			words = append(words, interfaces.TextRun{
				Text:   run.Text[start:i],
				X:      box.X,
				Y:      box.Y,
				Width:  box.Width,
				Height: box.Height,
			})
			start = -1
		}
	}
	return words
}

func subBox(run interfaces.TextRun, offset, length int) models.Coordinates {
	total := len(run.Text)
	if total == 0 {
		return models.Coordinates{X: run.X, Y: run.Y, Width: run.Width, Height: run.Height}
	}
	charWidth := run.Width / float64(total)
	return models.Coordinates{
		X:      run.X + charWidth*float64(offset),
		Y:      run.Y,
		Width:  charWidth * float64(length),
		Height: run.Height,
	}
}
