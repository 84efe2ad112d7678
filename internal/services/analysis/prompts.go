package analysis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kaitorecca/guardian-redact/internal/models"
)

const (
	ProfileQuick = "quick"
	ProfileDeep  = "deep"
)

// ErrUnknownProfile is returned for a profile other than quick or deep
var ErrUnknownProfile = errors.New("unknown analysis profile")

const documentSystemInstruction = "You identify sensitive information that must be redacted from documents. You respond only with JSON."

const quickPrompt = `Analyze the following text and identify ALL instances of sensitive information that should be redacted for privacy protection.

TEXT TO ANALYZE:
%s

Respond ONLY with a JSON array. Each object has:
- "text": the exact text to redact, copied character for character from the page
- "category": one of ["PII", "FINANCIAL", "MEDICAL", "LEGAL", "CONTACT"]
- "confidence": a number between 0 and 1
- "reason": a brief explanation

Priority targets:
- Full names of people
- Email addresses and phone numbers
- Street addresses and specific locations
- Names of employers and educational institutions tied to a person
- Dates tied to a person (birth, graduation)
- Account numbers, ID numbers, grades and scores
- Social media handles and profile links

Do NOT redact software names, general skills, job titles without a person, or general places.

Example:
[
  {"text": "Jane Doe", "category": "PII", "confidence": 0.95, "reason": "Person's full name"},
  {"text": "jane.doe@example.com", "category": "CONTACT", "confidence": 0.98, "reason": "Email address"}
]`

const deepPrompt = `Perform a comprehensive privacy analysis of the following text, as an expert in data protection regulation (GDPR, HIPAA, FERPA, financial privacy).

TEXT TO ANALYZE:
%s

Respond ONLY with a JSON array. Each object has:
- "text": the exact text to redact, copied character for character from the page
- "category": one of ["PII", "FINANCIAL", "MEDICAL", "LEGAL", "CONTACT"]
- "confidence": a number between 0 and 1
- "reason": an explanation including the relevant regulation

Look for:
- Direct identifiers (names, ID numbers, addresses)
- Quasi-identifiers (age, location and occupation combinations)
- Financial data (account numbers, transaction details)
- Health information (conditions, treatments, provider names)
- Legal information (case details, privileged communication)
- Contextual details (relationships, private circumstances)
- Items that identify a person when combined with others`

const transcriptionPrompt = `Transcribe this audio recording word by word.

Respond ONLY with a JSON array with one object per spoken word:
- "text": the word as spoken
- "start": start time in seconds from the beginning of the recording
- "end": end time in seconds

Example:
[
  {"text": "Hello", "start": 0.32, "end": 0.61},
  {"text": "my", "start": 0.61, "end": 0.74}
]`

const transcriptPrompt = `Analyze the following transcript and identify all instances of Personally Identifiable Information (PII).

Respond ONLY with a JSON array. If no PII is found, respond with [].

For each PII item create an object with these exact fields:
- "text": the exact text of the PII
- "category": one of "Name", "Age", "Location", "Address", "Phone", "Email", "Date", "ID", "Other"
- "start_time": the start timestamp as shown in the transcript
- "end_time": the end timestamp as shown in the transcript plus 1 second
- "explanation": a brief reason why this is PII
- "confidence": a score between 0.0 and 1.0

Transcript:
%s`

// DocumentPrompt builds the page analysis prompt for a profile
func DocumentPrompt(profile, pageText string) (string, error) {
	switch profile {
	case ProfileQuick:
		return fmt.Sprintf(quickPrompt, pageText), nil
	case ProfileDeep:
		return fmt.Sprintf(deepPrompt, pageText), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProfile, profile)
	}
}

// FormatTranscript renders words as "[ HH:MM:SS.mmm ] word" lines
func FormatTranscript(words []models.TranscriptWord) string {
	lines := make([]string, 0, len(words))
	for _, w := range words {
		lines = append(lines, fmt.Sprintf("%s %s", FormatTimestamp(w.Start), strings.TrimSpace(w.Text)))
	}
	return strings.Join(lines, "\n")
}

// FormatTimestamp renders seconds as "[ HH:MM:SS.mmm ]"
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	rest := seconds - float64(hours*3600+minutes*60)
	return fmt.Sprintf("[ %02d:%02d:%06.3f ]", hours, minutes, rest)
}
