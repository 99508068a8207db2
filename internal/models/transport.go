package models

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody bounds how much of a failed response is kept for diagnostics.
const maxErrorBody = 512

// checkedTransport turns transport failures, HTTP error statuses and
// non-model responses (e.g. a proxy page saying "no available server") into
// *ErrModelUnavailable. The status line is kept in Body so HandleError can
// classify it.
type checkedTransport struct {
	inner    http.RoundTripper
	provider string
}

func (t *checkedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		return nil, &ErrModelUnavailable{Provider: t.provider, Cause: err}
	}

	if resp.StatusCode >= 400 {
		return nil, t.unavailable(resp, resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !modelContentType(ct) {
		return nil, t.unavailable(resp, "unexpected "+ct)
	}
	return resp, nil
}

func (t *checkedTransport) unavailable(resp *http.Response, reason string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
	text := strings.TrimSpace(string(body))
	if text != "" {
		reason = fmt.Sprintf("%s: %s", reason, text)
	}
	return &ErrModelUnavailable{Provider: t.provider, Body: reason}
}

// modelContentType accepts JSON bodies, NDJSON streams (ollama) and
// server-sent events (gemini, openai).
func modelContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "json") || strings.Contains(ct, "event-stream")
}

// newHTTPClient returns a client whose failures carry the provider name.
func newHTTPClient(provider string, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &checkedTransport{inner: http.DefaultTransport, provider: provider},
	}
}
