package responses

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const grokReply = `{
  "id": "resp_1",
  "model": "grok-4-0709",
  "status": "completed",
  "output": [
    {"type": "web_search_call", "status": "completed"},
    {"type": "message", "role": "assistant", "content": [
      {"type": "output_text", "text": "ON24 is widely used. ", "annotations": [
        {"type": "url_citation", "url": "https://www.on24.com/", "title": "ON24"},
        {"type": "url_citation", "url": "https://www.g2.com/webinar", "title": "G2"}
      ]},
      {"type": "output_text", "text": "Goldcast is newer.", "annotations": [
        {"type": "url_citation", "url": "https://www.on24.com/", "title": "ON24 again"},
        {"type": "file_citation"}
      ]}
    ]}
  ],
  "usage": {"input_tokens": 50, "output_tokens": 200}
}`

func TestCreate(t *testing.T) {
	var got Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/responses", r.URL.Path)
		assert.Equal(t, "Bearer xai-key", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(grokReply)) //nolint:errcheck
	}))
	defer ts.Close()

	c := NewClient(ts.URL+"/v1/", "xai-key")
	resp, err := c.Create(context.Background(), Request{
		Model: "grok-4-0709",
		Input: "system\n\nquestion",
		Tools: []Tool{{Type: ToolWebSearch}},
	})
	require.NoError(t, err)

	assert.Equal(t, "grok-4-0709", got.Model)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, "web_search", got.Tools[0].Type)

	assert.Equal(t, "ON24 is widely used. Goldcast is newer.", resp.Text())
	assert.Equal(t, int64(50), resp.Usage.InputTokens)
	assert.Equal(t, int64(200), resp.Usage.OutputTokens)

	cites := resp.URLCitations()
	require.Len(t, cites, 3)
	assert.Equal(t, "https://www.on24.com/", cites[0].URL)
	assert.Equal(t, "G2", cites[1].Title)
	assert.Equal(t, "ON24 again", cites[2].Title)
}

func TestURLCitations_TopLevelList(t *testing.T) {
	r := &Response{
		Output:    []OutputItem{{Type: "message", Content: []OutputContent{{Type: "output_text", Text: "x"}}}},
		Citations: []string{"https://goldcast.io", "https://zoom.us"},
	}
	cites := r.URLCitations()
	require.Len(t, cites, 2)
	assert.Equal(t, "https://goldcast.io", cites[0].URL)
}

func TestCreate_StatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(strings.Repeat("x", 5000))) //nolint:errcheck
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL, "k").Create(context.Background(), Request{Model: "m", Input: "q"})
	require.Error(t, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 503, se.HTTPStatus())
	assert.Len(t, se.Body, maxErrorBody)
}

func TestCreate_FailedStatusWithoutText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"id":"resp_2","status":"failed","output":[]}`)) //nolint:errcheck
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL, "k").Create(context.Background(), Request{Model: "m", Input: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
}

func TestCreate_BadJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{not json`)) //nolint:errcheck
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL, "k").Create(context.Background(), Request{Model: "m", Input: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestCreate_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(grokReply)) //nolint:errcheck
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(ts.URL, "k", WithHTTPClient(ts.Client())).Create(ctx, Request{Model: "m", Input: "q"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
