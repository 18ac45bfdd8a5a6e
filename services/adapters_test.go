package services

import (
	"bytes"
	"context"
	"encoding/json"
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
)

type recordedCall struct {
	provider string
	outcome  string
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (o *recordingObserver) ObserveCall(provider, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, recordedCall{provider, outcome})
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   errs.Kind
	}{
		{"unauthorized", 401, `{"message":"Invalid auth key"}`, errs.KindAuthFailed},
		{"forbidden", 403, `{"message":"Wrong endpoint"}`, errs.KindAuthFailed},
		{"too many requests", 429, `{"message":"Too many requests"}`, errs.KindRateLimited},
		{"deepl overloaded", 529, ``, errs.KindRateLimited},
		{"openai quota", 429, `{"error":{"message":"You exceeded your quota","type":"insufficient_quota","code":"insufficient_quota"}}`, errs.KindUpstreamFailed},
		{"google rate limit", 403, `{"error":{"code":403,"message":"Rate Limit Exceeded","errors":[{"reason":"userRateLimitExceeded"}]}}`, errs.KindRateLimited},
		{"google bad key", 400, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key."}}`, errs.KindAuthFailed},
		{"deepl quota", 456, `{"message":"Quota exceeded"}`, errs.KindUpstreamFailed},
		{"server error", 500, `oops`, errs.KindUpstreamFailed},
		{"bad request", 400, `{"error":{"message":"target_lang invalid"}}`, errs.KindUpstreamFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyStatus("p", "p.op", tt.status, []byte(tt.body))
			if got := errs.KindOf(err); got != tt.want {
				t.Errorf("kind = %s, want %s (%v)", got, tt.want, err)
			}
		})
	}
}

func TestAPIErrorMessage(t *testing.T) {
	tests := []struct {
		body   string
		msg    string
		reason string
	}{
		{`{"error":{"message":"bad key","code":"invalid_api_key"}}`, "bad key", "invalid_api_key"},
		{`{"error":{"code":400,"message":"Invalid Value","errors":[{"reason":"invalid"}]}}`, "Invalid Value", "invalid"},
		{`{"error":{"code":429,"message":"slow down","type":"rate_limit"}}`, "slow down", "rate_limit"},
		{`{"detail":{"status":"quota_exceeded","message":"no credits"}}`, "no credits", "quota_exceeded"},
		{`{"detail":"Not Found"}`, "Not Found", ""},
		{`{"message":"Wrong endpoint"}`, "Wrong endpoint", ""},
		{`<html>gateway</html>`, "<html>gateway</html>", ""},
	}
	for _, tt := range tests {
		msg, reason := apiErrorMessage([]byte(tt.body))
		if msg != tt.msg || reason != tt.reason {
			t.Errorf("apiErrorMessage(%s) = %q, %q; want %q, %q", tt.body, msg, reason, tt.msg, tt.reason)
		}
	}
}

func TestDeepLTranslator_Translate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/translate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "DeepL-Auth-Key test-key" {
			t.Errorf("Authorization = %q", got)
		}
		r.ParseForm()
		if r.Form.Get("target_lang") != "FR" || r.Form.Get("source_lang") != "EN" || r.Form.Get("text") != "Hello" {
			t.Errorf("form = %v", r.Form)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"translations":[{"detected_source_language":"EN","text":"Bonjour"}]}`))
	}))
	defer server.Close()

	obs := &recordingObserver{}
	d := NewDeepLTranslator("test-key", Options{BaseURL: server.URL, Observer: obs})
	out, err := d.Translate(context.Background(), "Hello", "EN", "FR")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "Bonjour" {
		t.Errorf("out = %q", out)
	}
	if len(obs.calls) != 1 || obs.calls[0] != (recordedCall{"deepl", "ok"}) {
		t.Errorf("observer calls = %v", obs.calls)
	}
}

func TestDeepLTranslator_FreeKeyEndpoint(t *testing.T) {
	if d := NewDeepLTranslator("abc:fx", Options{}); !strings.Contains(d.base, "api-free") {
		t.Errorf("free key base = %s", d.base)
	}
	if d := NewDeepLTranslator("abc", Options{}); strings.Contains(d.base, "api-free") {
		t.Errorf("pro key base = %s", d.base)
	}
}

func TestAdapters_EmptyTextSkipsNetwork(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	opts := Options{BaseURL: server.URL}
	for _, tr := range []interface {
		Translate(ctx context.Context, text, src, tgt string) (string, error)
	}{
		NewDeepLTranslator("k", opts),
		NewGoogleTranslator("k", opts),
		NewOpenAITranslator("k", opts),
	} {
		out, err := tr.Translate(context.Background(), "  \n", "EN", "FR")
		if err != nil || out != "  \n" {
			t.Errorf("empty text: out=%q err=%v", out, err)
		}
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Errorf("server hit %d times", hits)
	}
}

func TestAdapters_ErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		want   errs.Kind
	}{
		{http.StatusUnauthorized, errs.KindAuthFailed},
		{http.StatusTooManyRequests, errs.KindRateLimited},
		{http.StatusBadGateway, errs.KindUpstreamFailed},
	}
	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(`{"error":{"message":"nope"}}`))
		}))
		opts := Options{BaseURL: server.URL}

		if _, err := NewDeepLTranslator("k", opts).Translate(context.Background(), "Hi", "", "DE"); errs.KindOf(err) != tt.want {
			t.Errorf("deepl %d: %v", tt.status, err)
		}
		if _, err := NewGoogleTranslator("k", opts).Translate(context.Background(), "Hi", "", "de"); errs.KindOf(err) != tt.want {
			t.Errorf("google %d: %v", tt.status, err)
		}
		if _, err := NewOpenAITranslator("k", opts).Translate(context.Background(), "Hi", "", "German"); errs.KindOf(err) != tt.want {
			t.Errorf("openai %d: %v", tt.status, err)
		}
		server.Close()
	}
}

func TestAdapters_MissingKey(t *testing.T) {
	_, err := NewGoogleTranslator("", Options{BaseURL: "http://127.0.0.1:1"}).Translate(context.Background(), "Hi", "", "de")
	if !errs.Is(err, errs.KindAuthFailed) {
		t.Errorf("err = %v, want auth_failed", err)
	}
}

func TestGoogleTranslator_Translate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("key") != "gkey" || r.Form.Get("target") != "zh-CN" || r.Form.Get("format") != "text" {
			t.Errorf("form = %v", r.Form)
		}
		if _, ok := r.Form["source"]; ok {
			t.Error("source should be omitted for auto-detect")
		}
		w.Write([]byte(`{"data":{"translations":[{"translatedText":"你好","detectedSourceLanguage":"en"}]}}`))
	}))
	defer server.Close()

	out, err := NewGoogleTranslator("gkey", Options{BaseURL: server.URL}).Translate(context.Background(), "Hello", "", "zh-CN")
	if err != nil || out != "你好" {
		t.Errorf("out=%q err=%v", out, err)
	}
}

func TestOpenAITranslator_Translate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 || !strings.Contains(req.Messages[0].Content, "into Latin") ||
			!strings.Contains(req.Messages[0].Content, "source language is French") {
			t.Errorf("messages = %+v", req.Messages)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"Translation: \"Salve\""}}]}`))
	}))
	defer server.Close()

	out, err := NewOpenAITranslator("k", Options{BaseURL: server.URL}).Translate(context.Background(), "Bonjour", "French", "Latin")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "Salve" {
		t.Errorf("out = %q", out)
	}
}

func TestOpenAITranscriber_Transcribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("multipart: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.FormValue("model") != "whisper-1" || r.FormValue("response_format") != "verbose_json" || r.FormValue("language") != "fr" {
			t.Errorf("form = %v", r.MultipartForm.Value)
		}
		if _, hdr, err := r.FormFile("file"); err != nil || hdr.Filename != "clip.mp3" {
			t.Errorf("file part: %v", err)
		}
		w.Write([]byte(`{"text":" Bonjour. Ça va ?","language":"french","segments":[
			{"start":0.0,"end":1.2,"text":" Bonjour."},{"start":1.2,"end":2.5,"text":" Ça va ?"}]}`))
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "clip.mp3")
	os.WriteFile(path, []byte("ID3fake"), 0644)

	res, err := NewOpenAITranscriber("k", Options{BaseURL: server.URL}).Transcribe(context.Background(), path, "fr")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "Bonjour. Ça va ?" || len(res.Segments) != 2 {
		t.Errorf("result = %+v", res)
	}
	if res.Segments[1].Start != 1200*time.Millisecond || res.Segments[1].Text != "Ça va ?" {
		t.Errorf("segment = %+v", res.Segments[1])
	}
}

func TestElevenLabsSynthesizer_Synthesize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-speech/voice-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "xi" {
			t.Error("missing xi-api-key header")
		}
		body, _ := io.ReadAll(r.Body)
		if !bytes.Contains(body, []byte(`"model_id":"eleven_multilingual_v2"`)) {
			t.Errorf("body = %s", body)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("MP3DATA"))
	}))
	defer server.Close()

	var buf bytes.Buffer
	err := NewElevenLabsSynthesizer("xi", Options{BaseURL: server.URL}).Synthesize(context.Background(), "Hello", "voice-1", &buf)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if buf.String() != "MP3DATA" {
		t.Errorf("audio = %q", buf.String())
	}
}
