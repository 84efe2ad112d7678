package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaitorecca/guardian-redact/internal/models"
)

func TestCleanJSONArray(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", `[{"text":"a"}]`, `[{"text":"a"}]`},
		{"fenced", "```json\n[{\"text\":\"a\"}]\n```", `[{"text":"a"}]`},
		{"bare fence", "```\n[]\n```", `[]`},
		{"prose around", "Here you go:\n[{\"text\":\"a\"}]\nHope that helps", `[{"text":"a"}]`},
		{"trailing commas", `[{"text":"a",},]`, `[{"text":"a"}]`},
		{"missing comma", "[{\"text\":\"a\"}\n  {\"text\":\"b\"}]", "[{\"text\":\"a\"},\n{\"text\":\"b\"}]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CleanJSONArray(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, json.Valid([]byte(got)))
		})
	}
}

func TestCleanJSONArray_NoArray(t *testing.T) {
	_, err := CleanJSONArray(`{"text":"a"}`)
	assert.ErrorIs(t, err, ErrNoJSONArray)

	_, err = CleanJSONArray("I could not find anything")
	assert.ErrorIs(t, err, ErrNoJSONArray)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"00:00:01.640", 1.64},
		{"01:02:03.500", 3723.5},
		{"[ 00:00:12.000 ]", 12},
		{"02:30", 150},
		{"42.5", 42.5},
		{"00:61:00", 0},
		{"1:2:3:4", 0},
		{"abc", 0},
		{"-3", 0},
		{"10001", 0},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.InDelta(t, tt.want, ParseTimestamp(tt.input), 1e-9)
		})
	}
}

func TestFlexibleFields(t *testing.T) {
	var items []rawDetection
	data := `[
		{"text":"a","start_time":"00:00:01.000","end_time":2.5,"confidence":"0.9"},
		{"text":"b","start_time":3,"end_time":"4","confidence":"high"},
		{"text":"c","start_time":99999,"end_time":null},
		{"text":"d","start_time":1,"end_time":2,"confidence":0.4}
	]`
	require.NoError(t, json.Unmarshal([]byte(data), &items))
	require.Len(t, items, 4)

	assert.Equal(t, 1.0, float64(items[0].StartTime))
	assert.Equal(t, 2.5, float64(items[0].EndTime))
	assert.InDelta(t, 0.9, confidenceOrDefault(items[0].Confidence), 1e-9)
	assert.Equal(t, 4.0, float64(items[1].EndTime))
	assert.Equal(t, DefaultConfidence, confidenceOrDefault(items[1].Confidence))
	assert.Equal(t, 0.0, float64(items[2].StartTime))
	assert.Equal(t, DefaultConfidence, confidenceOrDefault(items[2].Confidence))
	assert.Equal(t, 0.4, confidenceOrDefault(items[3].Confidence))
}

func TestFormatTranscript(t *testing.T) {
	words := []models.TranscriptWord{
		{Text: " My", Start: 0.5, End: 0.7},
		{Text: "name", Start: 3725.25, End: 3725.5},
	}

	assert.Equal(t, "[ 00:00:00.500 ] My\n[ 01:02:05.250 ] name", FormatTranscript(words))
}
