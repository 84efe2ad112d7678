package interfaces

import "context"

// Message is a single turn sent to a language model
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// Attachment is inline binary content sent alongside a prompt (audio for transcription)
type Attachment struct {
	MIMEType string
	Data     []byte
}

// ContentGenerator produces model output for a prompt
type ContentGenerator interface {
	Generate(ctx context.Context, request *GenerateRequest) (string, error)
}

// GenerateRequest is a provider-agnostic generation request
type GenerateRequest struct {
	Messages          []Message
	Model             string
	SystemInstruction string
	Attachments       []Attachment
	Temperature       float32
	MaxTokens         int
	JSONOutput        bool
}
