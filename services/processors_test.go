package services

import (
	"archive/zip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"language-toolkit/internal/errs"
	internalhttp "language-toolkit/internal/http"
	"language-toolkit/internal/subtitle"
	"language-toolkit/internal/tasks"
	"language-toolkit/internal/transcription"
	"language-toolkit/internal/translation"
	"language-toolkit/internal/tts"
	"language-toolkit/models"
)

// scriptedTranslator prefixes text with the target code. failures are
// returned, in order, before any success; failFor fails matching inputs.
type scriptedTranslator struct {
	provider translation.Provider

	mu       sync.Mutex
	calls    []string
	failures []error
	failFor  func(text string) error
}

func (s *scriptedTranslator) Provider() translation.Provider { return s.provider }

func (s *scriptedTranslator) Translate(ctx context.Context, text, src, tgt string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, src+">"+tgt)
	var err error
	if len(s.failures) > 0 {
		err, s.failures = s.failures[0], s.failures[1:]
	}
	s.mu.Unlock()

	if err != nil {
		return "", err
	}
	if s.failFor != nil {
		if err := s.failFor(text); err != nil {
			return "", err
		}
	}
	return "[" + tgt + "] " + text, nil
}

func (s *scriptedTranslator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func fastRetry() internalhttp.RetryConfig {
	return internalhttp.RetryConfig{
		MaxAttempts:   4,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2,
	}
}

func rateLimited() error {
	return errs.Upstream(errs.KindRateLimited, "deepl", "deepl.translate", "HTTP 429: Too many requests")
}

func runTask(t *testing.T, tk *Toolkit, kind models.OperationKind, p models.Params) *models.Task {
	t.Helper()
	r := tasks.NewRegistry()
	s := tasks.NewScheduler(r, tasks.Options{TaskTimeout: 10 * time.Second, WorkRoot: t.TempDir()})
	tk.Register(s)

	id, err := s.Submit(kind, p)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		task, _ := r.Get(id)
		if task.Status.IsTerminal() {
			return task
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s did not finish", id)
	return nil
}

func hasMessage(task *models.Task, substr string) bool {
	for _, m := range task.Messages {
		if strings.Contains(m.Text, substr) {
			return true
		}
	}
	return false
}

func countMessages(task *models.Task, substr string) int {
	n := 0
	for _, m := range task.Messages {
		if strings.Contains(m.Text, substr) {
			n++
		}
	}
	return n
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTranslateText_FrenchRoutesToDeepLCode(t *testing.T) {
	var targets []string
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		mu.Lock()
		targets = append(targets, r.Form.Get("target_lang"))
		mu.Unlock()
		w.Write([]byte(`{"translations":[{"text":"Bonjour le monde"}]}`))
	}))
	defer server.Close()

	svc := translation.NewService(translation.DefaultTable(), NewDeepLTranslator("k", Options{BaseURL: server.URL}))
	tk := NewToolkit(ToolkitOptions{Translation: svc, Retry: fastRetry()})

	task := runTask(t, tk, models.KindTranslateText, models.Params{
		Text: "Hello world", SourceLang: "en", TargetLangs: []string{"fr"},
	})
	if task.Status != models.StatusCompleted {
		t.Fatalf("status = %s, error = %v", task.Status, task.Error)
	}
	if len(targets) != 1 || targets[0] != "FR" {
		t.Errorf("DeepL received target codes %v, want [FR]", targets)
	}
	data, err := os.ReadFile(task.ResultFiles[0])
	if err != nil || string(data) != "Bonjour le monde" {
		t.Errorf("result = %q, %v", data, err)
	}
	if filepath.Base(task.ResultFiles[0]) != "translation_fr.txt" {
		t.Errorf("result name = %s", filepath.Base(task.ResultFiles[0]))
	}
}

func TestTranslateText_UnknownLanguageNoNetwork(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	svc := translation.NewService(translation.DefaultTable(),
		NewDeepLTranslator("k", Options{BaseURL: server.URL}),
		NewGoogleTranslator("k", Options{BaseURL: server.URL}),
	)
	tk := NewToolkit(ToolkitOptions{Translation: svc, Retry: fastRetry()})

	task := runTask(t, tk, models.KindTranslateText, models.Params{Text: "Hello", TargetLangs: []string{"xx"}})
	if task.Status != models.StatusFailed || task.Error == nil || task.Error.Kind != string(errs.KindUnknownLanguage) {
		t.Fatalf("task = %s %+v, want failed/unknown_language", task.Status, task.Error)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Errorf("%d network calls for an unknown language", hits)
	}
}

func TestTranslateText_RetriesRateLimit(t *testing.T) {
	deepL := &scriptedTranslator{provider: translation.ProviderDeepL, failures: []error{rateLimited(), rateLimited()}}
	tk := NewToolkit(ToolkitOptions{
		Translation: translation.NewService(translation.DefaultTable(), deepL),
		Retry:       fastRetry(),
	})

	task := runTask(t, tk, models.KindTranslateText, models.Params{Text: "Hello", TargetLangs: []string{"de"}})
	if task.Status != models.StatusCompleted {
		t.Fatalf("status = %s, error = %v", task.Status, task.Error)
	}
	if got := deepL.callCount(); got != 3 {
		t.Errorf("adapter called %d times, want 3", got)
	}
	for _, want := range []string{"attempt 1 failed", "attempt 2 failed", "succeeded on attempt 3"} {
		if !hasMessage(task, want) {
			t.Errorf("missing message %q in %+v", want, task.Messages)
		}
	}
}

func TestTranslateText_RateLimitExhausted(t *testing.T) {
	var failures []error
	for i := 0; i < 10; i++ {
		failures = append(failures, rateLimited())
	}
	deepL := &scriptedTranslator{provider: translation.ProviderDeepL, failures: failures}
	tk := NewToolkit(ToolkitOptions{
		Translation: translation.NewService(translation.DefaultTable(), deepL),
		Retry:       fastRetry(),
	})

	task := runTask(t, tk, models.KindTranslateText, models.Params{Text: "Hello", TargetLangs: []string{"de"}})
	if task.Status != models.StatusFailed || task.Error.Kind != string(errs.KindRateLimited) {
		t.Fatalf("task = %s %+v", task.Status, task.Error)
	}
	if !strings.Contains(task.Error.Message, "retries exhausted") {
		t.Errorf("message = %q", task.Error.Message)
	}
	if got := deepL.callCount(); got != 4 {
		t.Errorf("adapter called %d times, want 4", got)
	}
}

func TestTranslateText_AuthFailureNotRetried(t *testing.T) {
	deepL := &scriptedTranslator{
		provider: translation.ProviderDeepL,
		failures: []error{errs.Upstream(errs.KindAuthFailed, "deepl", "deepl.translate", "HTTP 403: Forbidden")},
	}
	tk := NewToolkit(ToolkitOptions{
		Translation: translation.NewService(translation.DefaultTable(), deepL),
		Retry:       fastRetry(),
	})

	task := runTask(t, tk, models.KindTranslateText, models.Params{Text: "Hello", TargetLangs: []string{"fr"}})
	if task.Status != models.StatusFailed || task.Error.Kind != string(errs.KindAuthFailed) {
		t.Fatalf("task = %s %+v", task.Status, task.Error)
	}
	if got := deepL.callCount(); got != 1 {
		t.Errorf("adapter called %d times, want 1", got)
	}
	if hasMessage(task, "retrying") {
		t.Errorf("auth failure was retried: %+v", task.Messages)
	}
}

func TestTranslateText_FallbackIsReported(t *testing.T) {
	google := &scriptedTranslator{provider: translation.ProviderGoogle}
	tk := NewToolkit(ToolkitOptions{
		Translation: translation.NewService(translation.DefaultTable(), google),
		Retry:       fastRetry(),
	})

	task := runTask(t, tk, models.KindTranslateText, models.Params{Text: "Hello", SourceLang: "en", TargetLangs: []string{"zh-Hans"}})
	if task.Status != models.StatusCompleted {
		t.Fatalf("status = %s, error = %v", task.Status, task.Error)
	}
	if !hasMessage(task, "falling back to google") {
		t.Errorf("fallback not reported: %+v", task.Messages)
	}
	if google.calls[0] != "en>zh-CN" {
		t.Errorf("google call = %s", google.calls[0])
	}
}

func TestTranslateText_MultipleTargetsPartialSuccess(t *testing.T) {
	deepL := &scriptedTranslator{provider: translation.ProviderDeepL}
	tk := NewToolkit(ToolkitOptions{
		Translation: translation.NewService(translation.DefaultTable(), deepL),
		Retry:       fastRetry(),
	})

	// hi needs google, which is not configured.
	task := runTask(t, tk, models.KindTranslateText, models.Params{Text: "Hello", TargetLangs: []string{"fr", "hi", "de", "FR"}})
	if task.Status != models.StatusCompleted {
		t.Fatalf("status = %s, error = %v", task.Status, task.Error)
	}
	if len(task.ResultFiles) != 2 {
		t.Errorf("result files = %v, want fr and de", task.ResultFiles)
	}
	if !hasMessage(task, "Failed: hi") {
		t.Errorf("per-target failure not recorded: %+v", task.Messages)
	}
}

func TestTranslateText_AliasTargetsCollapse(t *testing.T) {
	deepL := &scriptedTranslator{provider: translation.ProviderDeepL}
	tk := NewToolkit(ToolkitOptions{
		Translation: translation.NewService(translation.DefaultTable(), deepL),
		Retry:       fastRetry(),
	})

	task := runTask(t, tk, models.KindTranslateText, models.Params{Text: "Hello", TargetLangs: []string{"zh", "zh-CN", "zh-Hans"}})
	if task.Status != models.StatusCompleted {
		t.Fatalf("status = %s, error = %v", task.Status, task.Error)
	}
	if len(task.ResultFiles) != 1 || filepath.Base(task.ResultFiles[0]) != "translation_zh-Hans.txt" {
		t.Errorf("result files = %v, want one translation_zh-Hans.txt", task.ResultFiles)
	}
	if got := deepL.callCount(); got != 1 {
		t.Errorf("adapter called %d times, want 1", got)
	}
}

func TestTranslateDocument_AliasTargetsCollapse(t *testing.T) {
	deepL := &scriptedTranslator{provider: translation.ProviderDeepL}
	tk := NewToolkit(ToolkitOptions{
		Translation: translation.NewService(translation.DefaultTable(), deepL),
		Retry:       fastRetry(),
	})

	in := writeInput(t, "notes.txt", "Meeting at noon.")
	task := runTask(t, tk, models.KindTranslateDocument, models.Params{Files: []string{in}, TargetLangs: []string{"zh-CN", "ZH", "zh-hans"}})
	if task.Status != models.StatusCompleted {
		t.Fatalf("status = %s, error = %v", task.Status, task.Error)
	}
	if len(task.ResultFiles) != 1 || filepath.Base(task.ResultFiles[0]) != "translated_notes.txt" {
		t.Errorf("result files = %v, want one translated_notes.txt", task.ResultFiles)
	}
	if got := deepL.callCount(); got != 1 {
		t.Errorf("adapter called %d times, want 1", got)
	}
}

func TestUniqueTargets(t *testing.T) {
	tk := NewToolkit(ToolkitOptions{Translation: translation.NewService(translation.DefaultTable())})

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"aliases collapse to canonical", []string{"zh", "zh-CN", "zh-Hans"}, []string{"zh-Hans"}},
		{"case differences", []string{"fr", "FR", " fr "}, []string{"fr"}},
		{"unknown codes kept per item", []string{"xx", "yy", "XX"}, []string{"xx", "yy"}},
		{"blanks dropped", []string{"", "de", "  "}, []string{"de"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tk.uniqueTargets(tt.in)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("uniqueTargets(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTranslateDocument_PartialSuccess(t *testing.T) {
	deepL := &scriptedTranslator{
		provider: translation.ProviderDeepL,
		failFor: func(text string) error {
			if strings.Contains(text, "BROKEN") {
				return errs.Upstream(errs.KindUpstreamFailed, "deepl", "deepl.translate", "HTTP 500: Internal Server Error")
			}
			return nil
		},
	}
	tk := NewToolkit(ToolkitOptions{
		Translation: translation.NewService(translation.DefaultTable(), deepL),
		Retry:       fastRetry(),
	})

	good := writeInput(t, "good.txt", "First paragraph.\n\nSecond paragraph.")
	bad := writeInput(t, "bad.txt", "BROKEN content")

	task := runTask(t, tk, models.KindTranslateDocument, models.Params{Files: []string{good, bad}, TargetLangs: []string{"fr"}})
	if task.Status != models.StatusCompleted {
		t.Fatalf("status = %s, error = %v", task.Status, task.Error)
	}
	if len(task.ResultFiles) != 1 || filepath.Base(task.ResultFiles[0]) != "translated_good.txt" {
		t.Fatalf("result files = %v", task.ResultFiles)
	}
	data, _ := os.ReadFile(task.ResultFiles[0])
	if string(data) != "[FR] First paragraph.\n\nSecond paragraph." {
		t.Errorf("translated = %q", data)
	}
	if !hasMessage(task, "Failed: bad.txt (fr)") {
		t.Errorf("failure not recorded: %+v", task.Messages)
	}
}

func TestTranslateDocument_AllFail(t *testing.T) {
	deepL := &scriptedTranslator{
		provider: translation.ProviderDeepL,
		failFor: func(string) error {
			return errs.Upstream(errs.KindUpstreamFailed, "deepl", "deepl.translate", "HTTP 500")
		},
	}
	tk := NewToolkit(ToolkitOptions{
		Translation: translation.NewService(translation.DefaultTable(), deepL),
		Retry:       fastRetry(),
	})

	a := writeInput(t, "a.txt", "one")
	b := writeInput(t, "b.txt", "two")
	task := runTask(t, tk, models.KindTranslateDocument, models.Params{Files: []string{a, b}, TargetLangs: []string{"fr"}})
	if task.Status != models.StatusFailed || task.Error.Kind != string(errs.KindUpstreamFailed) {
		t.Fatalf("task = %s %+v", task.Status, task.Error)
	}
	if countMessages(task, "Failed:") != 2 {
		t.Errorf("messages = %+v", task.Messages)
	}
}

func TestTranslateDocument_Subtitles(t *testing.T) {
	deepL := &scriptedTranslator{provider: translation.ProviderDeepL}
	tk := NewToolkit(ToolkitOptions{
		Translation: translation.NewService(translation.DefaultTable(), deepL),
		Retry:       fastRetry(),
	})

	srt := "1\n00:00:01,000 --> 00:00:02,500\nHello\n\n2\n00:00:03,000 --> 00:00:04,000\nGood bye\n"
	in := writeInput(t, "clip.srt", srt)

	task := runTask(t, tk, models.KindTranslateDocument, models.Params{Files: []string{in}, TargetLangs: []string{"de", "fr"}})
	if task.Status != models.StatusCompleted || len(task.ResultFiles) != 2 {
		t.Fatalf("task = %s files=%v err=%v", task.Status, task.ResultFiles, task.Error)
	}

	var deOut string
	for _, f := range task.ResultFiles {
		if filepath.Base(f) == "translated_de_clip.srt" {
			deOut = f
		}
	}
	if deOut == "" {
		t.Fatalf("no German output in %v", task.ResultFiles)
	}
	fh, _ := os.Open(deOut)
	defer fh.Close()
	cues, err := subtitle.Parse(fh)
	if err != nil || len(cues) != 2 {
		t.Fatalf("cues = %v, err = %v", cues, err)
	}
	if cues[1].Text != "[DE] Good bye" || cues[1].Start != 3*time.Second {
		t.Errorf("cue = %+v", cues[1])
	}
}

func buildPresentation(t *testing.T, slides map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deck.pptx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	entries := map[string]string{"[Content_Types].xml": `<Types/>`, "ppt/media/image1.png": "PNG"}
	for k, v := range slides {
		entries[k] = v
	}
	for name, content := range entries {
		w, _ := zw.Create(name)
		w.Write([]byte(content))
	}
	zw.Close()
	f.Close()
	return path
}

func readZipText(t *testing.T, path, name string) string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name == name {
			rc, _ := f.Open()
			defer rc.Close()
			data, _ := io.ReadAll(rc)
			return string(data)
		}
	}
	t.Fatalf("%s not in %s", name, path)
	return ""
}

func TestTranslateDocument_Presentation(t *testing.T) {
	deepL := &scriptedTranslator{provider: translation.ProviderDeepL}
	tk := NewToolkit(ToolkitOptions{
		Translation: translation.NewService(translation.DefaultTable(), deepL),
		Retry:       fastRetry(),
	})

	slide := `<p:sld><a:p><a:r><a:t>Hello</a:t></a:r><a:r><a:t xml:space="preserve">Tom &amp; Jerry</a:t></a:r></a:p>` +
		`<a:p><a:r><a:t>Hello</a:t></a:r><a:r><a:t> </a:t></a:r></a:p></p:sld>`
	in := buildPresentation(t, map[string]string{"ppt/slides/slide1.xml": slide})

	task := runTask(t, tk, models.KindTranslateDocument, models.Params{Files: []string{in}, TargetLangs: []string{"fr"}})
	if task.Status != models.StatusCompleted {
		t.Fatalf("status = %s, error = %v", task.Status, task.Error)
	}

	out := task.ResultFiles[0]
	if filepath.Base(out) != "translated_deck.pptx" {
		t.Errorf("output name = %s", filepath.Base(out))
	}
	got := readZipText(t, out, "ppt/slides/slide1.xml")
	if strings.Count(got, "<a:t>[FR] Hello</a:t>") != 2 {
		t.Errorf("slide = %s", got)
	}
	if !strings.Contains(got, `<a:t xml:space="preserve">[FR] Tom &amp; Jerry</a:t>`) {
		t.Errorf("escaped run not preserved: %s", got)
	}
	if !strings.Contains(got, "<a:t> </a:t>") {
		t.Errorf("blank run changed: %s", got)
	}
	if readZipText(t, out, "ppt/media/image1.png") != "PNG" {
		t.Error("media part not copied")
	}
	// Repeated runs are translated once.
	if got := deepL.callCount(); got != 2 {
		t.Errorf("adapter called %d times, want 2", got)
	}
}

type fakeTranscriber struct {
	failures []error
	calls    int32
}

func (f *fakeTranscriber) Provider() transcription.ProviderType { return transcription.ProviderOpenAI }

func (f *fakeTranscriber) Transcribe(ctx context.Context, path, lang string) (*transcription.Result, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if int(n) <= len(f.failures) {
		return nil, f.failures[n-1]
	}
	return &transcription.Result{
		Text:     "Hello there",
		Language: "english",
		Segments: subtitle.List{{Index: 1, Start: 0, End: time.Second, Text: "Hello there"}},
	}, nil
}

func TestTranscribe_Formats(t *testing.T) {
	audio := writeInput(t, "talk.mp3", "ID3")

	tk := NewToolkit(ToolkitOptions{Transcriber: &fakeTranscriber{}, Retry: fastRetry()})
	task := runTask(t, tk, models.KindTranscribe, models.Params{Files: []string{audio}})
	if task.Status != models.StatusCompleted || filepath.Base(task.ResultFiles[0]) != "transcript_talk.txt" {
		t.Fatalf("task = %s files=%v err=%v", task.Status, task.ResultFiles, task.Error)
	}

	fake := &fakeTranscriber{failures: []error{rateLimited()}}
	tk = NewToolkit(ToolkitOptions{Transcriber: fake, Retry: fastRetry()})
	task = runTask(t, tk, models.KindTranscribe, models.Params{Files: []string{audio}, OutputFormat: "srt"})
	if task.Status != models.StatusCompleted {
		t.Fatalf("status = %s, error = %v", task.Status, task.Error)
	}
	data, _ := os.ReadFile(task.ResultFiles[0])
	if !strings.Contains(string(data), "00:00:00,000 --> 00:00:01,000") {
		t.Errorf("srt = %q", data)
	}
	if atomic.LoadInt32(&fake.calls) != 2 {
		t.Errorf("transcriber called %d times, want 2", fake.calls)
	}
}

func TestTranscribe_NotConfigured(t *testing.T) {
	audio := writeInput(t, "talk.mp3", "ID3")
	tk := NewToolkit(ToolkitOptions{})
	task := runTask(t, tk, models.KindTranscribe, models.Params{Files: []string{audio}})
	if task.Status != models.StatusFailed || task.Error.Kind != string(errs.KindProviderUnavailable) {
		t.Fatalf("task = %s %+v", task.Status, task.Error)
	}
	if !strings.Contains(task.Error.Message, "OPENAI_API_KEY") {
		t.Errorf("message should name the credential: %q", task.Error.Message)
	}
}

type pathTranscriber struct {
	mu    sync.Mutex
	paths []string
}

func (p *pathTranscriber) Provider() transcription.ProviderType { return transcription.ProviderOpenAI }

func (p *pathTranscriber) Transcribe(ctx context.Context, path, lang string) (*transcription.Result, error) {
	p.mu.Lock()
	p.paths = append(p.paths, path)
	p.mu.Unlock()
	return &transcription.Result{Text: "ok", Language: "english"}, nil
}

func TestTranscribe_CompressesOversizedAudio(t *testing.T) {
	big := filepath.Join(t.TempDir(), "lecture.wav")
	f, err := os.Create(big)
	if err != nil {
		t.Fatal(err)
	}
	f.Truncate(transcription.MaxUploadBytes + 1)
	f.Close()

	ff := &FFmpeg{binary: "ffmpeg", run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, os.WriteFile(args[len(args)-1], []byte("mp3"), 0644)
	}}
	tr := &pathTranscriber{}
	tk := NewToolkit(ToolkitOptions{Transcriber: tr, FFmpeg: ff, Retry: fastRetry()})

	task := runTask(t, tk, models.KindTranscribe, models.Params{Files: []string{big}})
	if task.Status != models.StatusCompleted {
		t.Fatalf("status = %s, error = %v", task.Status, task.Error)
	}
	if len(tr.paths) != 1 || filepath.Base(tr.paths[0]) != "lecture.compressed.mp3" {
		t.Errorf("uploaded %v", tr.paths)
	}
	if !hasMessage(task, "Compressing lecture.wav") {
		t.Errorf("messages = %+v", task.Messages)
	}
}

type fakeSynthesizer struct {
	mu     sync.Mutex
	inputs []string
}

func (f *fakeSynthesizer) Provider() tts.ProviderType { return tts.ProviderElevenLabs }

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text, voice string, w io.Writer) error {
	f.mu.Lock()
	f.inputs = append(f.inputs, voice+":"+text)
	f.mu.Unlock()
	_, err := w.Write([]byte("<mp3>"))
	return err
}

func TestSynthesize_TextAndFiles(t *testing.T) {
	synth := &fakeSynthesizer{}
	tk := NewToolkit(ToolkitOptions{Synthesizer: synth, Retry: fastRetry(), DefaultVoice: "rachel"})

	long := strings.Repeat("A sentence that goes on. ", 200) // > one request
	script := writeInput(t, "script.txt", long)

	task := runTask(t, tk, models.KindSynthesizeSpeech, models.Params{Text: "Hi", Files: []string{script}})
	if task.Status != models.StatusCompleted || len(task.ResultFiles) != 2 {
		t.Fatalf("task = %s files=%v err=%v", task.Status, task.ResultFiles, task.Error)
	}
	names := map[string]bool{}
	for _, f := range task.ResultFiles {
		names[filepath.Base(f)] = true
	}
	if !names["audio_speech.mp3"] || !names["audio_script.mp3"] {
		t.Errorf("outputs = %v", names)
	}
	if len(synth.inputs) < 3 {
		t.Errorf("long script was not split: %d requests", len(synth.inputs))
	}
	if !strings.HasPrefix(synth.inputs[0], "rachel:") {
		t.Errorf("default voice not used: %s", synth.inputs[0])
	}
}

func TestConvert_UsesConverter(t *testing.T) {
	var args []string
	conv := &Converter{binary: "soffice", run: func(ctx context.Context, name string, a ...string) ([]byte, error) {
		args = a
		outDir := a[len(a)-2]
		in := a[len(a)-1]
		stem := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
		return nil, os.WriteFile(filepath.Join(outDir, stem+".pdf"), []byte("%PDF"), 0644)
	}}
	tk := NewToolkit(ToolkitOptions{Converter: conv})

	in := writeInput(t, "slides.pptx", "PK")
	task := runTask(t, tk, models.KindConvertFormat, models.Params{Files: []string{in}, OutputFormat: "pdf"})
	if task.Status != models.StatusCompleted || filepath.Base(task.ResultFiles[0]) != "slides.pdf" {
		t.Fatalf("task = %s files=%v err=%v", task.Status, task.ResultFiles, task.Error)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "--headless") || !strings.Contains(joined, "--convert-to pdf") {
		t.Errorf("args = %v", args)
	}
}

func TestConvert_MissingBinary(t *testing.T) {
	conv := &Converter{binary: "/nonexistent/soffice", run: execRunner}
	in := writeInput(t, "slides.pptx", "PK")
	_, err := conv.Convert(context.Background(), in, t.TempDir(), "pdf")
	if !errs.Is(err, errs.KindProviderUnavailable) {
		t.Errorf("err = %v, want provider_unavailable", err)
	}
}

func blockUntilDone(ctx context.Context, name string, a ...string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestConvert_ExecTimeoutIsUpstreamFailure(t *testing.T) {
	conv := &Converter{binary: "soffice", run: blockUntilDone, timeout: 10 * time.Millisecond}
	in := writeInput(t, "slides.pptx", "PK")

	_, err := conv.Convert(context.Background(), in, t.TempDir(), "pdf")
	if !errs.Is(err, errs.KindUpstreamFailed) {
		t.Fatalf("err = %v, want upstream_failed", err)
	}
	if !strings.Contains(err.Error(), "conversion of slides.pptx timed out") {
		t.Errorf("err = %v", err)
	}
}

func TestConvert_ParentDeadlineStaysTimeout(t *testing.T) {
	conv := &Converter{binary: "soffice", run: blockUntilDone, timeout: time.Minute}
	in := writeInput(t, "slides.pptx", "PK")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := conv.Convert(ctx, in, t.TempDir(), "pdf")
	if !errs.Is(err, errs.KindTimeout) {
		t.Errorf("err = %v, want timeout", err)
	}
}

func TestConvert_TaskReportsExecTimeout(t *testing.T) {
	conv := &Converter{binary: "soffice", run: blockUntilDone, timeout: 10 * time.Millisecond}
	tk := NewToolkit(ToolkitOptions{Converter: conv})

	in := writeInput(t, "slides.pptx", "PK")
	task := runTask(t, tk, models.KindConvertFormat, models.Params{Files: []string{in}, OutputFormat: "pdf"})
	if task.Status != models.StatusFailed || task.Error.Kind != string(errs.KindUpstreamFailed) {
		t.Fatalf("task = %s %+v, want failed/upstream_failed", task.Status, task.Error)
	}
}

func TestHandlers_Validate(t *testing.T) {
	tk := NewToolkit(ToolkitOptions{})
	h := tk.Handlers()
	doc := writeInput(t, "doc.txt", "x")
	pdf := writeInput(t, "doc.pdf", "x")
	audio := writeInput(t, "a.wav", "x")

	tests := []struct {
		name  string
		kind  models.OperationKind
		p     models.Params
		valid bool
	}{
		{"text ok", models.KindTranslateText, models.Params{Text: "hi", TargetLangs: []string{"fr"}}, true},
		{"text empty", models.KindTranslateText, models.Params{Text: " ", TargetLangs: []string{"fr"}}, false},
		{"text no target", models.KindTranslateText, models.Params{Text: "hi"}, false},
		{"unknown target still valid", models.KindTranslateText, models.Params{Text: "hi", TargetLangs: []string{"xx"}}, true},
		{"doc ok", models.KindTranslateDocument, models.Params{Files: []string{doc}, TargetLangs: []string{"fr"}}, true},
		{"doc unsupported", models.KindTranslateDocument, models.Params{Files: []string{pdf}, TargetLangs: []string{"fr"}}, false},
		{"doc missing", models.KindTranslateDocument, models.Params{Files: []string{"/no/such.txt"}, TargetLangs: []string{"fr"}}, false},
		{"audio ok", models.KindTranscribe, models.Params{Files: []string{audio}, OutputFormat: "srt"}, true},
		{"audio bad format", models.KindTranscribe, models.Params{Files: []string{audio}, OutputFormat: "vtt"}, false},
		{"audio wrong type", models.KindTranscribe, models.Params{Files: []string{doc}}, false},
		{"speech text", models.KindSynthesizeSpeech, models.Params{Text: "hi"}, true},
		{"speech nothing", models.KindSynthesizeSpeech, models.Params{}, false},
		{"convert ok", models.KindConvertFormat, models.Params{Files: []string{doc}, OutputFormat: "pdf"}, true},
		{"convert bad format", models.KindConvertFormat, models.Params{Files: []string{doc}, OutputFormat: "exe"}, false},
	}
	for _, tt := range tests {
		err := h[tt.kind].Validate(tt.p)
		if tt.valid && err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
		}
		if !tt.valid && !errs.Is(err, errs.KindInvalidParams) {
			t.Errorf("%s: err = %v, want invalid_params", tt.name, err)
		}
	}
}

func TestLanguageHint(t *testing.T) {
	tests := map[string]string{"": "", "auto": "", "EN": "en", "pt-BR": "pt", "zh-Hans": "zh"}
	for in, want := range tests {
		if got := languageHint(in); got != want {
			t.Errorf("languageHint(%q) = %q, want %q", in, got, want)
		}
	}
}
