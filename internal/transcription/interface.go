// Package transcription defines the speech-to-text contract.
package transcription

import (
	"context"

	"language-toolkit/internal/subtitle"
)

// ProviderType identifies a transcription provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
)

// Result is a transcript with optional timed segments.
type Result struct {
	Text     string
	Language string
	Segments subtitle.List
}

// Transcriber converts an audio file to text. language is an ISO 639-1
// hint; empty means auto-detect.
type Transcriber interface {
	Provider() ProviderType
	Transcribe(ctx context.Context, audioPath, language string) (*Result, error)
}

// SupportedExtensions lists audio containers accepted for upload.
var SupportedExtensions = []string{".mp3", ".mp4", ".mpeg", ".mpga", ".m4a", ".wav", ".webm", ".ogg", ".flac"}

// MaxUploadBytes is the largest file the transcription API accepts.
const MaxUploadBytes = 25 << 20
