// Package config provides centralized constants for the language-toolkit application.
package config

import (
	"runtime"
	"time"
)

// Task execution
const (
	// DefaultTaskTimeout bounds the wall-clock time of a single task.
	DefaultTaskTimeout = 30 * time.Minute

	// DefaultTaskRetention is how long terminal tasks are kept before eviction.
	DefaultTaskRetention = 24 * time.Hour

	// DefaultJanitorInterval is how often the eviction sweep runs.
	DefaultJanitorInterval = 10 * time.Minute

	// ProgressBufferSize is the capacity of the per-task progress channel.
	ProgressBufferSize = 64

	// ShutdownGracePeriod bounds how long serve waits for running tasks.
	ShutdownGracePeriod = 10 * time.Second
)

// Worker pool sizes
const (
	WorkersTranslateChunks = 4 // paragraphs translated concurrently within one file
	WorkersBatchFiles      = 2 // files processed concurrently within one task
)

// Global resource limits (across all tasks)
const (
	// MaxConcurrentProviderCalls limits in-flight upstream API calls process-wide.
	MaxConcurrentProviderCalls = 16

	// MaxConcurrentConversions limits concurrent external converter processes.
	MaxConcurrentConversions = 2
)

// Translation chunking
const (
	// MaxChunkChars keeps a single translate call well under provider request limits.
	MaxChunkChars = 4500
)

// Retry settings for upstream throttling
const (
	DefaultMaxRetries     = 4
	DefaultRetryDelayBase = time.Second
	DefaultRetryDelayMax  = 30 * time.Second
)

// HTTP client settings
const (
	HTTPTimeout             = 2 * time.Minute
	HTTPMaxIdleConns        = 20
	HTTPMaxIdleConnsPerHost = 10
	HTTPIdleConnTimeout     = 90 * time.Second
)

// API endpoints
const (
	DeepLAPIEndpoint          = "https://api.deepl.com"
	DeepLFreeAPIEndpoint      = "https://api-free.deepl.com"
	GoogleTranslateEndpoint   = "https://translation.googleapis.com/language/translate/v2"
	OpenAIAPIEndpoint         = "https://api.openai.com/v1"
	ElevenLabsAPIEndpoint     = "https://api.elevenlabs.io/v1"
	OpenAIChatPath            = "/chat/completions"
	OpenAITranscriptionPath   = "/audio/transcriptions"
	ElevenLabsTextToSpeechFmt = "/text-to-speech/%s"
)

// API models
const (
	OpenAITranslationModel   = "gpt-4o-mini"
	OpenAITranscriptionModel = "whisper-1"
	ElevenLabsModel          = "eleven_multilingual_v2"
	DefaultElevenLabsVoice   = "21m00Tcm4TlvDq8rnrv1" // Rachel
)

// Temperature settings for LLM calls
const (
	TranslationTemperature = 0.3
	TranslationMaxTokens   = 4096
)

// Server defaults
const (
	DefaultServerAddr = "127.0.0.1:8000"
	DefaultMaxUpload  = 200 << 20 // 200 MiB
	TempDirPrefix     = "language_toolkit_"
)

// Exec command timeouts (for os/exec calls)
const (
	ExecTimeoutConvert = 10 * time.Minute
)

// DynamicWorkerCount returns a worker count for the given kind of work,
// scaled to the number of CPUs.
func DynamicWorkerCount(kind string) int {
	cpus := runtime.NumCPU()

	switch kind {
	case "translation-api":
		// I/O-bound API calls
		return minInt(cpus*2, WorkersTranslateChunks*2)
	case "conversion":
		return minInt(maxInt(cpus/2, 1), MaxConcurrentConversions)
	default:
		return minInt(cpus, WorkersBatchFiles)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
