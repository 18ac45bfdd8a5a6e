// Package tts defines the text-to-speech contract.
package tts

import (
	"context"
	"io"
)

// ProviderType identifies a speech synthesis provider.
type ProviderType string

const (
	ProviderElevenLabs ProviderType = "elevenlabs"
)

// Synthesizer renders text as audio and streams it to w.
type Synthesizer interface {
	Provider() ProviderType
	Synthesize(ctx context.Context, text, voice string, w io.Writer) error
}

// MaxCharsPerRequest bounds one synthesis request; longer input is chunked.
const MaxCharsPerRequest = 2500

// OutputExtension is the container produced by synthesis.
const OutputExtension = ".mp3"
