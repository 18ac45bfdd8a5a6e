package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"language-toolkit/internal/config"
	"language-toolkit/internal/errs"
	"language-toolkit/internal/tts"
)

// ElevenLabsSynthesizer renders speech through the ElevenLabs API.
type ElevenLabsSynthesizer struct {
	apiKey string
	base   string
	model  string
	call   upstreamCall
}

// NewElevenLabsSynthesizer creates an ElevenLabs adapter.
func NewElevenLabsSynthesizer(apiKey string, opts Options) *ElevenLabsSynthesizer {
	return &ElevenLabsSynthesizer{
		apiKey: apiKey,
		base:   opts.baseURL(config.ElevenLabsAPIEndpoint),
		model:  config.ElevenLabsModel,
		call: upstreamCall{
			provider: string(tts.ProviderElevenLabs),
			op:       "elevenlabs.synthesize",
			client:   opts.client(sharedMediaClient),
			observer: opts.Observer,
		},
	}
}

func (e *ElevenLabsSynthesizer) Provider() tts.ProviderType {
	return tts.ProviderElevenLabs
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type speechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize streams MP3 audio for text into w. An empty voice selects the
// default voice.
func (e *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text, voice string, w io.Writer) error {
	if strings.TrimSpace(text) == "" {
		return errs.E(errs.KindInvalidParams, e.call.op, "nothing to synthesize")
	}
	if e.apiKey == "" {
		return errs.Upstream(errs.KindAuthFailed, e.call.provider, e.call.op, "ElevenLabs API key is required")
	}
	if voice == "" {
		voice = config.DefaultElevenLabsVoice
	}

	body, err := json.Marshal(speechRequest{
		Text:          text,
		ModelID:       e.model,
		VoiceSettings: voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
	})
	if err != nil {
		return errs.Wrap(errs.KindInternal, e.call.op, err)
	}

	endpoint := e.base + fmt.Sprintf(config.ElevenLabsTextToSpeechFmt, url.PathEscape(voice))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errs.Wrap(errs.KindInternal, e.call.op, err)
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := e.call.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return errs.Wrap(errs.KindUpstreamFailed, e.call.op, fmt.Errorf("failed to read audio: %w", err))
	}
	if n == 0 {
		return errs.Upstream(errs.KindUpstreamFailed, e.call.provider, e.call.op, "empty audio response")
	}
	return nil
}
