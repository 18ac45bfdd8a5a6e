package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"language-toolkit/internal/config"
	"language-toolkit/internal/errs"
	"language-toolkit/internal/logger"
	"language-toolkit/internal/subtitle"
	"language-toolkit/internal/transcription"
)

// OpenAITranscriber uploads audio to the Whisper transcription endpoint.
type OpenAITranscriber struct {
	apiKey string
	base   string
	model  string
	call   upstreamCall
}

// NewOpenAITranscriber creates a Whisper adapter.
func NewOpenAITranscriber(apiKey string, opts Options) *OpenAITranscriber {
	return &OpenAITranscriber{
		apiKey: apiKey,
		base:   opts.baseURL(config.OpenAIAPIEndpoint),
		model:  config.OpenAITranscriptionModel,
		call: upstreamCall{
			provider: "openai",
			op:       "openai.transcribe",
			client:   opts.client(sharedMediaClient),
			observer: opts.Observer,
		},
	}
}

func (o *OpenAITranscriber) Provider() transcription.ProviderType {
	return transcription.ProviderOpenAI
}

type verboseTranscript struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe sends audioPath with response_format=verbose_json so segment
// timing is available for SRT output.
func (o *OpenAITranscriber) Transcribe(ctx context.Context, audioPath, language string) (*transcription.Result, error) {
	if o.apiKey == "" {
		return nil, errs.Upstream(errs.KindAuthFailed, o.call.provider, o.call.op, "OpenAI API key is required")
	}

	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidParams, o.call.op, err)
	}
	if info.Size() > transcription.MaxUploadBytes {
		return nil, errs.E(errs.KindInvalidParams, o.call.op,
			fmt.Sprintf("%s is %d MB, the transcription limit is %d MB",
				filepath.Base(audioPath), info.Size()>>20, transcription.MaxUploadBytes>>20))
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	f, err := os.Open(audioPath)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, o.call.op, err)
	}
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err == nil {
		_, err = io.Copy(part, f)
	}
	f.Close()
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, o.call.op, fmt.Errorf("failed to build upload: %w", err))
	}

	writer.WriteField("model", o.model)
	writer.WriteField("response_format", "verbose_json")
	if language != "" {
		writer.WriteField("language", strings.ToLower(language))
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.base+config.OpenAITranscriptionPath, body)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, o.call.op, err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out verboseTranscript
	if err := o.call.doJSON(ctx, req, &out); err != nil {
		return nil, err
	}

	result := &transcription.Result{Text: strings.TrimSpace(out.Text), Language: out.Language}
	for i, seg := range out.Segments {
		t := strings.TrimSpace(seg.Text)
		if t == "" {
			continue
		}
		result.Segments = append(result.Segments, subtitle.Cue{
			Index: i + 1,
			Start: subtitle.FromSeconds(seg.Start),
			End:   subtitle.FromSeconds(seg.End),
			Text:  t,
		})
	}
	logger.Debug("Whisper: %s -> %d chars, %d segments", filepath.Base(audioPath), len(result.Text), len(result.Segments))
	return result, nil
}
