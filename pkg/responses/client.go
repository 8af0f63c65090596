// Package responses is a minimal client for the Responses API dialect shared
// by xAI and OpenAI, covering web-search tool calls and citation annotations.
package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Well-known hosted search tool types.
const (
	ToolWebSearch        = "web_search"
	ToolWebSearchPreview = "web_search_preview"
)

// Client creates responses.
type Client interface {
	Create(ctx context.Context, req Request) (*Response, error)
}

// Request is the body for POST /responses.
type Request struct {
	Model           string `json:"model"`
	Input           string `json:"input"`
	Instructions    string `json:"instructions,omitempty"`
	Tools           []Tool `json:"tools,omitempty"`
	MaxOutputTokens int64  `json:"max_output_tokens,omitempty"`
}

// Tool enables a hosted tool.
type Tool struct {
	Type string `json:"type"`
}

// Response is the decoded reply.
type Response struct {
	ID        string       `json:"id"`
	Model     string       `json:"model"`
	Status    string       `json:"status"`
	Output    []OutputItem `json:"output"`
	Usage     Usage        `json:"usage"`
	Citations []string     `json:"citations,omitempty"`
}

// OutputItem is one entry of the output array. Only message items carry
// content; tool-call items are skipped by Text and Annotations.
type OutputItem struct {
	Type    string          `json:"type"`
	Role    string          `json:"role,omitempty"`
	Content []OutputContent `json:"content,omitempty"`
}

// OutputContent is a content block inside a message item.
type OutputContent struct {
	Type        string       `json:"type"`
	Text        string       `json:"text"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// Annotation is an inline reference attached to output text.
type Annotation struct {
	Type  string `json:"type"`
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
}

// Usage is token accounting.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Text concatenates every output_text block in order.
func (r *Response) Text() string {
	var b strings.Builder
	for _, item := range r.Output {
		for _, c := range item.Content {
			if c.Type == "output_text" {
				b.WriteString(c.Text)
			}
		}
	}
	return b.String()
}

// URLCitations returns url_citation annotations in output order, followed by
// any bare URLs from the top-level citations list. Duplicates are kept.
func (r *Response) URLCitations() []Annotation {
	var out []Annotation
	for _, item := range r.Output {
		for _, c := range item.Content {
			if c.Type != "output_text" {
				continue
			}
			for _, a := range c.Annotations {
				if a.Type == "url_citation" {
					out = append(out, a)
				}
			}
		}
	}
	for _, u := range r.Citations {
		out = append(out, Annotation{Type: "url_citation", URL: u})
	}
	return out
}

// StatusError is a non-2xx reply.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("responses: unexpected status %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus exposes the status code to retry classification.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient builds a client for baseURL (e.g. https://api.x.ai/v1).
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 180 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

const maxErrorBody = 2048

func (c *httpClient) Create(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "responses: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "responses: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "responses: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "responses: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(respBody)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, eris.Wrap(&StatusError{StatusCode: resp.StatusCode, Body: msg}, "responses: create")
	}

	var out Response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, eris.Wrap(err, "responses: unmarshal response")
	}
	if out.Status == "failed" || out.Status == "incomplete" {
		if out.Text() == "" {
			return nil, eris.Errorf("responses: response %s ended with status %s", out.ID, out.Status)
		}
	}
	return &out, nil
}
