// Package translate adapts the external translation service behind the
// domain's Translator port. Responses are treated as opaque payloads: the
// negotiation core stores them verbatim and never interprets their content.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxResponseBytes caps how much of a translation response is read.
const maxResponseBytes = 1 << 20

// HTTPTranslator calls a translation endpoint speaking the
// {text, source_lang, target_lang} -> {text, confidence} contract.
type HTTPTranslator struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTranslator creates a translator client for the given base URL
func NewHTTPTranslator(baseURL string, timeout time.Duration) *HTTPTranslator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPTranslator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type translateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang,omitempty"`
	TargetLang string `json:"target_lang"`
}

// Translate posts the text and returns the raw JSON response body untouched.
func (t *HTTPTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (json.RawMessage, error) {
	body, err := json.Marshal(translateRequest{
		Text:       text,
		SourceLang: sourceLang,
		TargetLang: targetLang,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal translate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build translate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("translate request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("translate service returned status %d", res.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read translate response: %w", err)
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("translate service returned invalid JSON")
	}
	return payload, nil
}
