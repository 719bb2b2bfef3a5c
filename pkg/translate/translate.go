// SPDX-License-Identifier: Apache-2.0

// Package translate renders final responses in the requester's language.
// Translation is strictly best-effort: any failure returns the original
// English text so a translation outage can never block an answer.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultLanguage needs no translation.
const DefaultLanguage = "en-IN"

// Translator converts English text into a target language.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

// Nop returns the input unchanged. Used when translation is disabled.
type Nop struct{}

func (Nop) Translate(_ context.Context, text, _ string) (string, error) {
	return text, nil
}

var _ Translator = Nop{}

// Client talks to an HTTP translation service.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a translation client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type translateRequest struct {
	Input          string `json:"input"`
	SourceLanguage string `json:"source_language_code"`
	TargetLanguage string `json:"target_language_code"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
}

// Translate converts text to the target language.
func (c *Client) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	body, err := json.Marshal(translateRequest{
		Input:          text,
		SourceLanguage: DefaultLanguage,
		TargetLanguage: targetLanguage,
	})
	if err != nil {
		return "", fmt.Errorf("marshal translate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create translate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translation call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translation service returned status %d", resp.StatusCode)
	}

	var decoded translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode translate response: %w", err)
	}
	if strings.TrimSpace(decoded.TranslatedText) == "" {
		return "", fmt.Errorf("translation service returned empty text")
	}
	return decoded.TranslatedText, nil
}

var _ Translator = (*Client)(nil)

// Apply translates text, falling back to the original on any failure. The
// default language and an empty target are no-ops.
func Apply(ctx context.Context, tr Translator, logger *slog.Logger, text, targetLanguage string) string {
	if tr == nil || targetLanguage == "" || targetLanguage == DefaultLanguage {
		return text
	}
	translated, err := tr.Translate(ctx, text, targetLanguage)
	if err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "translation failed, returning original text",
				slog.String("target_language", targetLanguage),
				slog.String("error", err.Error()))
		}
		return text
	}
	return translated
}
