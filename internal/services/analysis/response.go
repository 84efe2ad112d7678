package analysis

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// DefaultConfidence is used when a model returns a confidence that cannot be read as a number
const DefaultConfidence = 0.8

// MaxTimestamp bounds accepted transcript timestamps, in seconds
const MaxTimestamp = 10000.0

// ErrNoJSONArray is returned when a model response contains no JSON array
var ErrNoJSONArray = errors.New("no JSON array found in response")

var (
	fencePattern        = regexp.MustCompile("(?s)^\\s*```(?:json|JSON)?\\s*\\n?(.*?)\\n?\\s*```\\s*$")
	trailingCommaRegex  = regexp.MustCompile(`,\s*([\]}])`)
	missingCommaPattern = regexp.MustCompile(`}\s*\n\s*{`)
)

// CleanJSONArray extracts the JSON array from a model response.
// Markdown fences are removed, text outside the outermost brackets is dropped,
// and trailing or missing commas between objects are repaired.
func CleanJSONArray(s string) (string, error) {
	s = strings.TrimSpace(s)
	if matches := fencePattern.FindStringSubmatch(s); len(matches) > 1 {
		s = matches[1]
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start == -1 || end < start {
		return "", ErrNoJSONArray
	}
	s = s[start : end+1]

	s = trailingCommaRegex.ReplaceAllString(s, "$1")
	s = missingCommaPattern.ReplaceAllString(s, "},\n{")
	return s, nil
}

// flexFloat accepts a JSON number or a numeric string.
// Unparseable strings read as DefaultConfidence.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*f = DefaultConfidence
		return nil
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		*f = DefaultConfidence
		return nil
	}
	*f = flexFloat(n)
	return nil
}

func confidenceOrDefault(f *flexFloat) float64 {
	if f == nil {
		return DefaultConfidence
	}
	return float64(*f)
}

// timestamp accepts seconds as a number or string, or a clock value
// ("HH:MM:SS.mmm" or "MM:SS"). Values that fail to parse or fall outside
// 0..MaxTimestamp read as zero.
type timestamp float64

func (t *timestamp) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*t = timestamp(boundSeconds(n))
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*t = 0
		return nil
	}
	*t = timestamp(ParseTimestamp(s))
	return nil
}

// ParseTimestamp converts a transcript timestamp to seconds
func ParseTimestamp(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "[] ")
	if s == "" {
		return 0
	}

	if !strings.Contains(s, ":") {
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return boundSeconds(n)
	}

	parts := strings.Split(s, ":")
	var hours, minutes int
	var seconds float64
	var err error

	switch len(parts) {
	case 3:
		if hours, err = strconv.Atoi(parts[0]); err != nil {
			return 0
		}
		if minutes, err = strconv.Atoi(parts[1]); err != nil {
			return 0
		}
		if seconds, err = strconv.ParseFloat(parts[2], 64); err != nil {
			return 0
		}
	case 2:
		if minutes, err = strconv.Atoi(parts[0]); err != nil {
			return 0
		}
		if seconds, err = strconv.ParseFloat(parts[1], 64); err != nil {
			return 0
		}
	default:
		return 0
	}

	if hours < 0 || minutes < 0 || minutes > 59 || seconds < 0 || seconds >= 60 {
		return 0
	}
	return boundSeconds(float64(hours*3600+minutes*60) + seconds)
}

func boundSeconds(n float64) float64 {
	if n < 0 || n > MaxTimestamp || n != n {
		return 0
	}
	return n
}
