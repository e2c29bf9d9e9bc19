// Copyright (c) 2026 Userbase
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package llm sends prompts to a configured model backend and returns the
// generated text. Two wire shapes are supported: an OpenRouter-style
// chat-completions API (bearer auth) and a Gemini-style generateContent
// API (key in URL). Adding a backend means adding one Backend value, one
// request builder, and one response extractor — callers are untouched.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/userbase/aimodhelp/internal/auditlog"
)

// requestTimeout bounds one round trip to the backend. Generation is slow;
// there is no retry — a visible failure beats a stale answer.
const requestTimeout = 120 * time.Second

// Default API roots, used when no base URL is configured.
const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultGeminiBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
)

// Backend selects the wire shape used to talk to the model API.
type Backend int

const (
	// BackendGemini is the generateContent shape. It is also the fallback
	// for unrecognised provider strings.
	BackendGemini Backend = iota
	// BackendOpenRouter is the chat-completions shape.
	BackendOpenRouter
)

// ParseBackend maps a configured provider string to a Backend.
func ParseBackend(provider string) Backend {
	if strings.EqualFold(provider, "openrouter") {
		return BackendOpenRouter
	}
	return BackendGemini
}

func (b Backend) String() string {
	if b == BackendOpenRouter {
		return "openrouter"
	}
	return "gemini"
}

// TransportError reports that the request never produced a usable HTTP
// response (connection refused, timeout, DNS).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("backend transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError reports that the backend answered but the response did not
// contain the expected text field. RawBody carries the full response for
// diagnosis.
type APIError struct {
	Backend Backend
	RawBody string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API response error or unexpected format: %s", e.Backend, e.RawBody)
}

// Config holds the backend selection and credentials, all opaque strings
// from configuration.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

// Client is a stateless model backend adapter.
type Client struct {
	backend Backend
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

// NewClient creates an adapter for the configured backend.
func NewClient(cfg Config) *Client {
	backend := ParseBackend(cfg.Provider)

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		if backend == BackendOpenRouter {
			baseURL = defaultOpenRouterBaseURL
		} else {
			baseURL = defaultGeminiBaseURL
		}
	}

	return &Client{
		backend: backend,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// Option overrides the configured backend or model for one call.
type Option func(*callConfig)

type callConfig struct {
	backend Backend
	model   string
}

// WithBackend overrides the configured backend for one call.
func WithBackend(b Backend) Option {
	return func(c *callConfig) { c.backend = b }
}

// WithModel overrides the configured model for one call.
func WithModel(model string) Option {
	return func(c *callConfig) {
		if model != "" {
			c.model = model
		}
	}
}

// Complete sends a prompt and returns the single generated text. Failures
// are typed: *TransportError when the call never completed, *APIError when
// the response body lacked the expected text field. The body is inspected
// regardless of HTTP status, so upstream error payloads surface through
// *APIError with the raw body attached.
func (c *Client) Complete(ctx context.Context, log *auditlog.Log, prompt string, opts ...Option) (string, error) {
	call := callConfig{backend: c.backend, model: c.model}
	for _, opt := range opts {
		opt(&call)
	}

	var (
		req *http.Request
		err error
	)
	switch call.backend {
	case BackendOpenRouter:
		log.Appendf("Sending request to OpenRouter API. Model: %s", call.model)
		req, err = c.buildChatRequest(ctx, call.model, prompt)
	default:
		log.Appendf("Sending request to Gemini API. Model: %s", call.model)
		req, err = c.buildGenerateRequest(ctx, call.model, prompt)
	}
	if err != nil {
		return "", fmt.Errorf("build %s request: %w", call.backend, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Appendf("Transport error: %v", err)
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Appendf("Transport error reading response: %v", err)
		return "", &TransportError{Err: err}
	}

	var text string
	switch call.backend {
	case BackendOpenRouter:
		text, err = extractChatText(body)
	default:
		text, err = extractGenerateText(body)
	}
	if err != nil {
		log.Appendf("%s API response error or unexpected format: %s", call.backend, string(body))
		return "", &APIError{Backend: call.backend, RawBody: string(body)}
	}

	log.Appendf("Received successful response from %s API.", call.backend)
	return text, nil
}

// buildChatRequest builds an OpenRouter-style chat-completions request.
// Reasoning is pinned low and excluded from the output; the caller wants a
// moderation answer, not a chain of thought.
func (c *Client) buildChatRequest(ctx context.Context, model, prompt string) (*http.Request, error) {
	payload := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"reasoning": map[string]any{
			"effort":  "low",
			"exclude": true,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return req, nil
}

// buildGenerateRequest builds a Gemini-style generateContent request with
// the API key embedded in the URL.
func (c *Client) buildGenerateRequest(ctx context.Context, model, prompt string) (*http.Request, error) {
	payload := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(model), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// extractChatText pulls choices[0].message.content out of a
// chat-completions response.
func extractChatText(body []byte) (string, error) {
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("missing choices[0].message.content")
	}
	return parsed.Choices[0].Message.Content, nil
}

// extractGenerateText pulls candidates[0].content.parts[0].text out of a
// generateContent response.
func extractGenerateText(body []byte) (string, error) {
	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 ||
		parsed.Candidates[0].Content.Parts[0].Text == "" {
		return "", fmt.Errorf("missing candidates[0].content.parts[0].text")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
