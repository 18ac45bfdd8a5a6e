package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"language-toolkit/internal/config"
	"language-toolkit/internal/errs"
	internalhttp "language-toolkit/internal/http"
	"language-toolkit/internal/subtitle"
	"language-toolkit/internal/tasks"
	"language-toolkit/internal/text"
	"language-toolkit/internal/transcription"
	"language-toolkit/internal/translation"
	"language-toolkit/internal/tts"
	"language-toolkit/internal/worker"
	"language-toolkit/models"
)

// Toolkit holds the configured providers and builds a task handler for
// every operation kind.
type Toolkit struct {
	translation  *translation.Service
	transcriber  transcription.Transcriber
	synthesizer  tts.Synthesizer
	converter    *Converter
	ffmpeg       *FFmpeg
	retry        internalhttp.RetryConfig
	defaultVoice string
}

// ToolkitOptions wires a Toolkit. Nil providers make their operations fail
// with provider_unavailable.
type ToolkitOptions struct {
	Translation *translation.Service
	Transcriber transcription.Transcriber
	Synthesizer tts.Synthesizer
	Converter   *Converter
	// FFmpeg compresses oversized audio before transcription. Optional.
	FFmpeg       *FFmpeg
	Retry        internalhttp.RetryConfig
	DefaultVoice string
}

func NewToolkit(opts ToolkitOptions) *Toolkit {
	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = internalhttp.DefaultRetryConfig()
	}
	retry.Retryable = internalhttp.RateLimitedOnly
	return &Toolkit{
		translation:  opts.Translation,
		transcriber:  opts.Transcriber,
		synthesizer:  opts.Synthesizer,
		converter:    opts.Converter,
		ffmpeg:       opts.FFmpeg,
		retry:        retry,
		defaultVoice: opts.DefaultVoice,
	}
}

// Register installs all handlers on s.
func (t *Toolkit) Register(s *tasks.Scheduler) {
	for kind, h := range t.Handlers() {
		s.Register(kind, h)
	}
}

// Handlers returns a handler per operation kind.
func (t *Toolkit) Handlers() map[models.OperationKind]tasks.Handler {
	return map[models.OperationKind]tasks.Handler{
		models.KindTranslateText:     {Validate: validateTranslateText, Process: t.processTranslateText},
		models.KindTranslateDocument: {Validate: validateTranslateDocument, Process: t.processTranslateDocument},
		models.KindTranscribe:        {Validate: validateTranscribe, Process: t.processTranscribe},
		models.KindSynthesizeSpeech:  {Validate: validateSynthesize, Process: t.processSynthesize},
		models.KindConvertFormat:     {Validate: validateConvert, Process: t.processConvert},
	}
}

// Validation

func invalid(format string, args ...interface{}) error {
	return errs.E(errs.KindInvalidParams, "validate", fmt.Sprintf(format, args...))
}

func requireTargets(p models.Params) error {
	for _, lang := range p.TargetLangs {
		if strings.TrimSpace(lang) != "" {
			return nil
		}
	}
	return invalid("at least one target language is required")
}

func requireFiles(p models.Params, accept func(path string) bool, what string) error {
	if len(p.Files) == 0 {
		return invalid("at least one input file is required")
	}
	for _, f := range p.Files {
		info, err := os.Stat(f)
		if err != nil || info.IsDir() {
			return invalid("input file %s not found", filepath.Base(f))
		}
		if accept != nil && !accept(f) {
			return invalid("%s: unsupported file type, expected %s", filepath.Base(f), what)
		}
	}
	return nil
}

func validateTranslateText(p models.Params) error {
	if strings.TrimSpace(p.Text) == "" {
		return invalid("text is required")
	}
	return requireTargets(p)
}

func validateTranslateDocument(p models.Params) error {
	if err := requireFiles(p, SupportedDocument, strings.Join(DocumentExtensions, ", ")); err != nil {
		return err
	}
	return requireTargets(p)
}

func supportedAudio(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range transcription.SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func validateTranscribe(p models.Params) error {
	switch strings.ToLower(p.OutputFormat) {
	case "", "txt", "srt":
	default:
		return invalid("output format must be txt or srt, got %q", p.OutputFormat)
	}
	return requireFiles(p, supportedAudio, strings.Join(transcription.SupportedExtensions, ", "))
}

func plainText(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".txt" || ext == ".md"
}

func validateSynthesize(p models.Params) error {
	if strings.TrimSpace(p.Text) == "" && len(p.Files) == 0 {
		return invalid("text or at least one text file is required")
	}
	if len(p.Files) > 0 {
		return requireFiles(p, plainText, ".txt, .md")
	}
	return nil
}

func validateConvert(p models.Params) error {
	if !ValidConvertFormat(p.OutputFormat) {
		return invalid("output format must be one of %s", strings.Join(ConvertFormats, ", "))
	}
	return requireFiles(p, nil, "")
}

// Shared plumbing

// withRetry runs fn under the toolkit's retry policy. Every retried attempt
// and a success after retries are reported as task messages.
func withRetry[T any](ctx context.Context, cfg internalhttp.RetryConfig, rep tasks.Reporter, label string, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		tasks.Reportf(rep, "%s: attempt %d failed (%s), retrying in %s", label, attempt, errs.KindOf(err), delay)
	}
	var attempts int
	out, err := internalhttp.Do(ctx, cfg, func(attempt int) (T, error) {
		attempts = attempt
		return fn(ctx)
	})
	if err == nil && attempts > 1 {
		tasks.Reportf(rep, "%s: succeeded on attempt %d", label, attempts)
	}
	return out, err
}

func progressTo(rep tasks.Reporter) worker.ProgressFunc {
	return func(completed, total int) {
		if total > 0 {
			rep.Progress(completed * 100 / total)
		}
	}
}

func outputDir(p models.Params) (string, error) {
	dir := filepath.Join(p.WorkDir, "output")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errs.Wrap(errs.KindInternal, "output", err)
	}
	return dir, nil
}

// uniqueTargets collapses targets naming the same language. Known codes and
// aliases become their canonical code; unknown codes stay as given so each
// fails on its own.
func (t *Toolkit) uniqueTargets(langs []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range langs {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		key := strings.ToLower(l)
		if t.translation != nil {
			if entry, ok := t.translation.Router().Lookup(l); ok {
				l = entry.Code
				key = strings.ToLower(entry.Code)
			}
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, l)
	}
	return out
}

// collect applies the batch policy: any success completes the task with the
// successful files; if every item failed the most relevant error fails it.
func collect(rep tasks.Reporter, labels, paths []string, failures []error) ([]string, error) {
	var files []string
	var errList []error
	for i, label := range labels {
		if i < len(failures) && failures[i] != nil {
			errList = append(errList, failures[i])
			tasks.Reportf(rep, "Failed: %s: %v", label, failures[i])
			continue
		}
		files = append(files, paths[i])
	}
	if len(files) == 0 {
		return nil, pickError(errList)
	}
	if len(errList) > 0 {
		tasks.Reportf(rep, "Finished %d of %d items (%d failed)", len(files), len(labels), len(errList))
	}
	return files, nil
}

// pickError prefers a configuration error so the task names what to fix.
func pickError(list []error) error {
	if len(list) == 0 {
		return errs.E(errs.KindInternal, "batch", "no items processed")
	}
	for _, err := range list {
		if errs.KindOf(err).Configuration() {
			return err
		}
	}
	return list[0]
}

// Translation

type targetRoute struct {
	route translation.PairRoute
	tr    translation.Translator
	err   error
}

// resolveTargets routes every target once, before any network call.
func (t *Toolkit) resolveTargets(source string, targets []string, rep tasks.Reporter) map[string]targetRoute {
	out := make(map[string]targetRoute, len(targets))
	for _, target := range targets {
		if t.translation == nil {
			out[target] = targetRoute{err: errs.E(errs.KindProviderUnavailable, "route", "no translation providers configured")}
			continue
		}
		route, tr, err := t.translation.Prepare(source, target)
		if err == nil {
			if route.FallbackFrom != "" {
				tasks.Reportf(rep, "%s: %s has no credentials, falling back to %s (%s)",
					route.Canonical, route.FallbackFrom, route.Provider, route.ProviderCode)
			} else {
				tasks.Reportf(rep, "%s: routed to %s (%s)", route.Canonical, route.Provider, route.ProviderCode)
			}
		}
		out[target] = targetRoute{route: route, tr: tr, err: err}
	}
	return out
}

func (t *Toolkit) textFunc(r targetRoute, rep tasks.Reporter) TextFunc {
	label := fmt.Sprintf("%s %s", r.route.Provider, r.route.Canonical)
	return func(ctx context.Context, input string) (string, error) {
		return withRetry(ctx, t.retry, rep, label, func(ctx context.Context) (string, error) {
			return r.tr.Translate(ctx, input, r.route.SourceCode, r.route.ProviderCode)
		})
	}
}

func (t *Toolkit) processTranslateText(ctx context.Context, p models.Params, rep tasks.Reporter) ([]string, error) {
	targets := t.uniqueTargets(p.TargetLangs)
	routes := t.resolveTargets(p.SourceLang, targets, rep)
	dir, err := outputDir(p)
	if err != nil {
		return nil, err
	}

	tasks.Reportf(rep, "Translating %d characters into %s", len([]rune(p.Text)), strings.Join(targets, ", "))
	paths, failures := worker.ProcessWithErrors(ctx, targets, config.WorkersBatchFiles,
		func(ctx context.Context, job worker.Job[string]) (string, error) {
			r := routes[job.Data]
			if r.err != nil {
				return "", r.err
			}
			out, err := TranslateText(ctx, p.Text, t.textFunc(r, rep), nil)
			if err != nil {
				return "", err
			}
			path := filepath.Join(dir, fmt.Sprintf("translation_%s.txt", r.route.Canonical))
			if err := writeFile(path, []byte(out)); err != nil {
				return "", err
			}
			tasks.Reportf(rep, "Translated into %s", r.route.Canonical)
			return path, nil
		}, progressTo(rep))

	return collect(rep, targets, paths, failures)
}

type documentJob struct {
	input  string
	target string
}

func (t *Toolkit) processTranslateDocument(ctx context.Context, p models.Params, rep tasks.Reporter) ([]string, error) {
	targets := t.uniqueTargets(p.TargetLangs)
	routes := t.resolveTargets(p.SourceLang, targets, rep)
	dir, err := outputDir(p)
	if err != nil {
		return nil, err
	}

	var jobs []documentJob
	var labels []string
	for _, f := range p.Files {
		for _, target := range targets {
			jobs = append(jobs, documentJob{input: f, target: target})
			labels = append(labels, fmt.Sprintf("%s (%s)", filepath.Base(f), target))
		}
	}
	tasks.Reportf(rep, "Translating %d files into %s", len(p.Files), strings.Join(targets, ", "))

	paths, failures := worker.ProcessWithErrors(ctx, jobs, config.WorkersBatchFiles,
		func(ctx context.Context, job worker.Job[documentJob]) (string, error) {
			r := routes[job.Data.target]
			if r.err != nil {
				return "", r.err
			}
			name := filepath.Base(job.Data.input)
			outName := "translated_" + name
			if len(targets) > 1 {
				outName = fmt.Sprintf("translated_%s_%s", r.route.Canonical, name)
			}
			outPath := filepath.Join(dir, outName)

			tasks.Reportf(rep, "Translating %s into %s", name, r.route.Canonical)
			if err := TranslateDocument(ctx, job.Data.input, outPath, t.textFunc(r, rep), nil); err != nil {
				return "", err
			}
			tasks.Reportf(rep, "Finished %s", outName)
			return outPath, nil
		}, progressTo(rep))

	return collect(rep, labels, paths, failures)
}

// Transcription

// languageHint reduces a canonical code to the ISO 639-1 hint Whisper takes.
func languageHint(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" || code == translation.AutoDetect {
		return ""
	}
	if i := strings.IndexByte(code, '-'); i > 0 {
		code = code[:i]
	}
	return code
}

func (t *Toolkit) processTranscribe(ctx context.Context, p models.Params, rep tasks.Reporter) ([]string, error) {
	if t.transcriber == nil {
		return nil, errs.Upstream(errs.KindProviderUnavailable, "openai", "transcribe",
			"transcription requires provider openai: set OPENAI_API_KEY")
	}
	dir, err := outputDir(p)
	if err != nil {
		return nil, err
	}
	format := strings.ToLower(p.OutputFormat)
	if format == "" {
		format = "txt"
	}
	hint := languageHint(p.SourceLang)

	labels := make([]string, len(p.Files))
	for i, f := range p.Files {
		labels[i] = filepath.Base(f)
	}
	tasks.Reportf(rep, "Transcribing %d files", len(p.Files))

	paths, failures := worker.ProcessWithErrors(ctx, p.Files, config.WorkersBatchFiles,
		func(ctx context.Context, job worker.Job[string]) (string, error) {
			name := filepath.Base(job.Data)
			upload, err := t.prepareUpload(ctx, job.Data, p.WorkDir, rep)
			if err != nil {
				return "", err
			}
			res, err := withRetry(ctx, t.retry, rep, "transcribe "+name, func(ctx context.Context) (*transcription.Result, error) {
				return t.transcriber.Transcribe(ctx, upload, hint)
			})
			if err != nil {
				return "", err
			}

			stem := strings.TrimSuffix(name, filepath.Ext(name))
			outPath := filepath.Join(dir, fmt.Sprintf("transcript_%s.%s", stem, format))
			content := res.Text
			if format == "srt" {
				if len(res.Segments) == 0 {
					return "", errs.E(errs.KindUpstreamFailed, "transcribe", name+": no timed segments returned")
				}
				content = subtitle.Format(res.Segments)
			}
			if err := writeFile(outPath, []byte(content)); err != nil {
				return "", err
			}
			tasks.Reportf(rep, "Transcribed %s (%s, %d characters)", name, res.Language, len([]rune(res.Text)))
			return outPath, nil
		}, progressTo(rep))

	return collect(rep, labels, paths, failures)
}

// prepareUpload returns a path the transcription API will accept,
// compressing files over the upload limit when ffmpeg is available.
func (t *Toolkit) prepareUpload(ctx context.Context, path, workDir string, rep tasks.Reporter) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errs.Wrap(errs.KindInternal, "transcribe", err)
	}
	if info.Size() <= transcription.MaxUploadBytes || t.ffmpeg == nil {
		return path, nil
	}
	tasks.Reportf(rep, "Compressing %s (%d MB) for upload", filepath.Base(path), info.Size()>>20)
	return t.ffmpeg.CompressForUpload(ctx, path, filepath.Join(workDir, "work"))
}

// Speech synthesis

type speechJob struct {
	label  string
	source string // file path; empty for inline text
	text   string
	output string
}

func (t *Toolkit) processSynthesize(ctx context.Context, p models.Params, rep tasks.Reporter) ([]string, error) {
	if t.synthesizer == nil {
		return nil, errs.Upstream(errs.KindProviderUnavailable, "elevenlabs", "synthesize",
			"speech synthesis requires provider elevenlabs: set ELEVENLABS_API_KEY")
	}
	dir, err := outputDir(p)
	if err != nil {
		return nil, err
	}
	voice := p.Voice
	if voice == "" {
		voice = t.defaultVoice
	}

	var jobs []speechJob
	if strings.TrimSpace(p.Text) != "" {
		jobs = append(jobs, speechJob{label: "text", text: p.Text, output: filepath.Join(dir, "audio_speech"+tts.OutputExtension)})
	}
	for _, f := range p.Files {
		name := filepath.Base(f)
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		jobs = append(jobs, speechJob{label: name, source: f, output: filepath.Join(dir, "audio_"+stem+tts.OutputExtension)})
	}
	labels := make([]string, len(jobs))
	for i, j := range jobs {
		labels[i] = j.label
	}

	paths, failures := worker.ProcessWithErrors(ctx, jobs, config.WorkersBatchFiles,
		func(ctx context.Context, job worker.Job[speechJob]) (string, error) {
			return t.synthesizeOne(ctx, job.Data, voice, rep)
		}, progressTo(rep))

	return collect(rep, labels, paths, failures)
}

func (t *Toolkit) synthesizeOne(ctx context.Context, job speechJob, voice string, rep tasks.Reporter) (string, error) {
	content := job.text
	if job.source != "" {
		data, err := os.ReadFile(job.source)
		if err != nil {
			return "", errs.Wrap(errs.KindInternal, "synthesize", err)
		}
		content = string(data)
	}
	chunks := text.ChunkText(content, tts.MaxCharsPerRequest)
	if len(chunks) == 0 {
		return "", errs.E(errs.KindInvalidParams, "synthesize", job.label+" is empty")
	}

	var audio bytes.Buffer
	for i, chunk := range chunks {
		label := fmt.Sprintf("speech %s %d/%d", job.label, i+1, len(chunks))
		part, err := withRetry(ctx, t.retry, rep, label, func(ctx context.Context) ([]byte, error) {
			var buf bytes.Buffer
			err := t.synthesizer.Synthesize(ctx, chunk, voice, &buf)
			return buf.Bytes(), err
		})
		if err != nil {
			return "", err
		}
		// MP3 frames are self-delimiting, so parts concatenate.
		audio.Write(part)
	}

	if err := writeFile(job.output, audio.Bytes()); err != nil {
		return "", err
	}
	tasks.Reportf(rep, "Synthesized %s (%d parts, %d KB)", job.label, len(chunks), audio.Len()>>10)
	return job.output, nil
}

// Conversion

func (t *Toolkit) processConvert(ctx context.Context, p models.Params, rep tasks.Reporter) ([]string, error) {
	if t.converter == nil {
		return nil, errs.E(errs.KindProviderUnavailable, "convert", "no document converter configured")
	}
	dir, err := outputDir(p)
	if err != nil {
		return nil, err
	}
	format := strings.ToLower(p.OutputFormat)

	labels := make([]string, len(p.Files))
	for i, f := range p.Files {
		labels[i] = filepath.Base(f)
	}
	tasks.Reportf(rep, "Converting %d files to %s", len(p.Files), format)

	paths, failures := worker.ProcessWithErrors(ctx, p.Files, config.DynamicWorkerCount("conversion"),
		func(ctx context.Context, job worker.Job[string]) (string, error) {
			out, err := t.converter.Convert(ctx, job.Data, dir, format)
			if err != nil {
				return "", err
			}
			tasks.Reportf(rep, "Converted %s", filepath.Base(out))
			return out, nil
		}, progressTo(rep))

	return collect(rep, labels, paths, failures)
}
