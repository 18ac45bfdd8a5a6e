package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"language-toolkit/internal/errs"
	internalhttp "language-toolkit/internal/http"
	"language-toolkit/internal/limiter"
	"language-toolkit/internal/logger"
)

// CallObserver receives the outcome of every upstream call. outcome is
// "ok" or an error kind.
type CallObserver interface {
	ObserveCall(provider, outcome string, elapsed time.Duration)
}

// Options configures an adapter. Zero values select the public endpoint
// and the shared pooled client.
type Options struct {
	BaseURL  string
	Client   *http.Client
	Observer CallObserver
}

func (o Options) client(fallback *http.Client) *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return fallback
}

func (o Options) baseURL(fallback string) string {
	if o.BaseURL != "" {
		return strings.TrimRight(o.BaseURL, "/")
	}
	return fallback
}

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// upstreamCall describes one HTTP exchange with a provider.
type upstreamCall struct {
	provider string
	op       string
	client   *http.Client
	observer CallObserver
}

// do sends req under the global provider limiter and classifies non-2xx
// responses. On success the caller owns resp.Body.
func (c upstreamCall) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := limiter.AcquireProviderSlot(ctx); err != nil {
		return nil, err
	}
	defer limiter.ReleaseProviderSlot()

	start := time.Now()
	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		if ctx.Err() != nil {
			c.observe(errs.KindOf(ctx.Err()), start)
			return nil, ctx.Err()
		}
		c.observe(errs.KindUpstreamFailed, start)
		return nil, errs.Wrap(errs.KindUpstreamFailed, c.op, fmt.Errorf("request failed: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		classified := classifyStatus(c.provider, c.op, resp.StatusCode, body)
		c.observe(errs.KindOf(classified), start)
		logger.Debug("%s: HTTP %d: %s", c.op, resp.StatusCode, classified)
		return nil, classified
	}

	c.observe("ok", start)
	return resp, nil
}

// doJSON sends req and decodes a JSON response into out.
func (c upstreamCall) doJSON(ctx context.Context, req *http.Request, out interface{}) error {
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Wrap(errs.KindUpstreamFailed, c.op, fmt.Errorf("failed to parse response: %w", err))
	}
	return nil
}

func (c upstreamCall) observe(outcome errs.Kind, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveCall(c.provider, string(outcome), time.Since(start))
	}
}

// classifyStatus maps an HTTP failure to an error kind:
// 401/403 auth, 429/529 throttling, everything else upstream failure.
// Provider quirks are handled here so adapters stay uniform.
func classifyStatus(provider, op string, status int, body []byte) error {
	msg, reason := apiErrorMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	detail := fmt.Sprintf("HTTP %d: %s", status, msg)

	kind := errs.KindUpstreamFailed
	switch {
	case status == http.StatusTooManyRequests || status == 529:
		kind = errs.KindRateLimited
		if reason == "insufficient_quota" {
			// OpenAI uses 429 for an exhausted billing quota; waiting does not help.
			kind = errs.KindUpstreamFailed
		}
	case status == http.StatusForbidden && strings.Contains(strings.ToLower(reason), "ratelimit"):
		// Google reports per-user throttling as 403 rateLimitExceeded.
		kind = errs.KindRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = errs.KindAuthFailed
	case status == http.StatusBadRequest && strings.Contains(msg, "API key not valid"):
		kind = errs.KindAuthFailed
	case status == 456:
		// DeepL: character quota for the billing period is used up.
		detail = "HTTP 456: translation quota exceeded"
	}
	return errs.Upstream(kind, provider, op, detail)
}

// apiErrorMessage extracts a human message and a machine reason from the
// error envelopes used by the supported providers.
func apiErrorMessage(body []byte) (msg, reason string) {
	var env struct {
		Message string `json:"message"`
		Error   json.RawMessage
		Detail  json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &env) != nil {
		return truncate(strings.TrimSpace(string(body)), 200), ""
	}

	if len(env.Error) > 0 {
		var e struct {
			Message string      `json:"message"`
			Code    interface{} `json:"code"`
			Type    string      `json:"type"`
			Errors  []struct {
				Reason string `json:"reason"`
			} `json:"errors"`
		}
		if json.Unmarshal(env.Error, &e) == nil {
			if len(e.Errors) > 0 {
				reason = e.Errors[0].Reason
			} else if s, ok := e.Code.(string); ok {
				reason = s
			} else {
				reason = e.Type
			}
			return e.Message, reason
		}
		var s string
		if json.Unmarshal(env.Error, &s) == nil {
			return s, ""
		}
	}

	if len(env.Detail) > 0 {
		var d struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}
		if json.Unmarshal(env.Detail, &d) == nil && d.Message != "" {
			return d.Message, d.Status
		}
		var s string
		if json.Unmarshal(env.Detail, &s) == nil {
			return s, ""
		}
	}

	return env.Message, ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// sharedTranslationClient is the default client for translate calls.
var sharedTranslationClient = internalhttp.TranslationClient

// sharedMediaClient is the default client for audio uploads and downloads.
var sharedMediaClient = internalhttp.MediaClient
